package processing

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/DeafMist/news-collector/internal/models"
)

const (
	// PubDateLayout is the format of the search API pubDate field.
	PubDateLayout = "Mon, 02 Jan 2006 15:04:05 -0700"
	// DateLayout is the calendar date format persisted in the dataset.
	DateLayout = "2006-01-02"
)

// RowIdentifier derives the stable id of a row.
type RowIdentifier interface {
	RowID(title, date string) string
}

// ContentHash identifies rows by the SHA-256 of title followed by the normalized date.
type ContentHash struct{}

// RowID implements RowIdentifier.
func (ContentHash) RowID(title, date string) string {
	sum := sha256.Sum256([]byte(title + date))
	return hex.EncodeToString(sum[:])
}

// NormalizeDate reduces a pubDate to its calendar date in the zone it was
// expressed in. Unparseable input is returned unchanged.
func NormalizeDate(raw string) string {
	t, err := time.Parse(PubDateLayout, raw)
	if err != nil {
		return raw
	}
	return t.Format(DateLayout)
}

// Normalizer maps raw search items to dataset rows.
type Normalizer struct {
	ids RowIdentifier
}

// NewNormalizer returns a Normalizer; a nil identifier selects ContentHash.
func NewNormalizer(ids RowIdentifier) *Normalizer {
	if ids == nil {
		ids = ContentHash{}
	}
	return &Normalizer{ids: ids}
}

// Normalize converts one item fetched for keyword. Title, description and link
// are passed through untouched.
func (n *Normalizer) Normalize(item models.NewsItem, keyword string) models.NewsRow {
	date := NormalizeDate(item.PubDate)
	return models.NewsRow{
		ID:      n.ids.RowID(item.Title, date),
		Keyword: keyword,
		Date:    date,
		Title:   item.Title,
		Summary: item.Description,
		URL:     item.Link,
	}
}

// NormalizeAll converts a batch fetched for keyword, preserving API order.
func (n *Normalizer) NormalizeAll(items []models.NewsItem, keyword string) []models.NewsRow {
	rows := make([]models.NewsRow, 0, len(items))
	for _, item := range items {
		rows = append(rows, n.Normalize(item, keyword))
	}
	return rows
}

// Identifier exposes the strategy so loaders can backfill ids.
func (n *Normalizer) Identifier() RowIdentifier {
	return n.ids
}
