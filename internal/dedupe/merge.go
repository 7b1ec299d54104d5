package dedupe

import (
	"fmt"
	"strings"

	"github.com/DeafMist/news-collector/internal/models"
)

// Policy selects how a fresh batch is reconciled with the persisted table.
type Policy string

const (
	// PolicyID deduplicates on row id, newest row wins. Default.
	PolicyID Policy = "id"
	// PolicyTitleDate deduplicates on (title, date), newest row wins.
	PolicyTitleDate Policy = "title-date"
	// PolicyReplace discards the persisted table and keeps only the fresh batch.
	PolicyReplace Policy = "replace"
	// PolicyAppend appends the fresh batch without any duplicate check.
	// It reproduces legacy output and lets duplicates accumulate.
	PolicyAppend Policy = "append"
)

// ParsePolicy maps a configuration value onto a Policy. Empty selects PolicyID.
func ParsePolicy(raw string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return PolicyID, nil
	case PolicyID, PolicyTitleDate, PolicyReplace, PolicyAppend:
		return p, nil
	default:
		return "", fmt.Errorf("unknown merge policy %q", raw)
	}
}

// Rewrites reports whether the policy persists by rewriting the whole table.
func (p Policy) Rewrites() bool {
	return p != PolicyAppend
}

// Merge combines the persisted rows with a fresh batch under policy.
//
// For the keyed policies the two slices are concatenated and, for every key,
// only the last occurrence survives. Survivors keep their position in the
// concatenation, so untouched old rows come first followed by the new ones.
// PolicyAppend returns the plain concatenation.
func Merge(existing, fresh []models.NewsRow, policy Policy) []models.NewsRow {
	switch policy {
	case PolicyReplace:
		return append([]models.NewsRow(nil), fresh...)
	case PolicyAppend:
		out := make([]models.NewsRow, 0, len(existing)+len(fresh))
		out = append(out, existing...)
		return append(out, fresh...)
	}

	keyOf := idKey
	if policy == PolicyTitleDate {
		keyOf = titleDateKey
	}

	combined := make([]models.NewsRow, 0, len(existing)+len(fresh))
	combined = append(combined, existing...)
	combined = append(combined, fresh...)

	last := make(map[string]int, len(combined))
	for i, row := range combined {
		last[keyOf(row)] = i
	}

	out := make([]models.NewsRow, 0, len(last))
	for i, row := range combined {
		if last[keyOf(row)] == i {
			out = append(out, row)
		}
	}
	return out
}

func idKey(row models.NewsRow) string {
	if row.ID == "" {
		return titleDateKey(row)
	}
	return "id\x00" + row.ID
}

func titleDateKey(row models.NewsRow) string {
	return "td\x00" + row.Title + "\x00" + row.Date
}
