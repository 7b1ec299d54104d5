package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/DeafMist/news-collector/internal/models"
	"github.com/DeafMist/news-collector/internal/processing"
)

// DefaultPath is where the collector keeps its dataset.
const DefaultPath = "news_results.csv"

// Store persists rows as a UTF-8 (with BOM) CSV table.
type Store struct {
	path string
	ids  processing.RowIdentifier
}

// NewStore returns a Store for path. ids backfills the id of rows read from
// files written before the id column existed; nil selects ContentHash.
func NewStore(path string, ids processing.RowIdentifier) *Store {
	if path == "" {
		path = DefaultPath
	}
	if ids == nil {
		ids = processing.ContentHash{}
	}
	return &Store{path: path, ids: ids}
}

// Path returns the dataset location.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether the dataset file is present.
func (s *Store) Exists() (bool, error) {
	_, err := os.Stat(s.path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat dataset: %w", err)
}

// Load reads the persisted table. A missing file yields an empty table.
// Columns are matched by header name, so their order in the file is irrelevant.
func (s *Store) Load() ([]models.NewsRow, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(transform.NewReader(f, unicode.UTF8BOM.NewDecoder()))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dataset header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"title", "date"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("dataset %s: missing %q column", s.path, required)
		}
	}

	field := func(rec []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	var rows []models.NewsRow
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read dataset line %d: %w", line, err)
		}

		row := models.NewsRow{
			ID:      field(rec, "id"),
			Keyword: field(rec, "keyword"),
			Date:    field(rec, "date"),
			Title:   field(rec, "title"),
			Summary: field(rec, "summary"),
			URL:     field(rec, "url"),
		}
		if row.ID == "" {
			row.ID = s.ids.RowID(row.Title, row.Date)
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// Write replaces the dataset with rows, header first. The table is written to
// a temporary file next to the target and renamed over it.
func (s *Store) Write(rows []models.NewsRow) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp dataset: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	bom := transform.NewWriter(tmp, unicode.UTF8BOM.NewEncoder())
	if err := writeRecords(bom, rows, true); err != nil {
		tmp.Close()
		return err
	}
	if err := bom.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush dataset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp dataset: %w", err)
	}
	if err := os.Chmod(tmpName, s.fileMode()); err != nil {
		return fmt.Errorf("chmod dataset: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace dataset: %w", err)
	}
	return nil
}

// Append adds rows to the end of an existing dataset without a header and
// without any duplicate check. A missing dataset is created with Write.
func (s *Store) Append(rows []models.NewsRow) error {
	exists, err := s.Exists()
	if err != nil {
		return err
	}
	if !exists {
		return s.Write(rows)
	}

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open dataset for append: %w", err)
	}
	if err := writeRecords(f, rows, false); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close dataset: %w", err)
	}
	return nil
}

// fileMode returns the permissions of the current dataset, or 0644 when there is none yet.
func (s *Store) fileMode() fs.FileMode {
	if info, err := os.Stat(s.path); err == nil {
		return info.Mode().Perm()
	}
	return 0o644
}

func writeRecords(w io.Writer, rows []models.NewsRow, header bool) error {
	cw := csv.NewWriter(w)
	if header {
		if err := cw.Write(models.Columns); err != nil {
			return fmt.Errorf("write dataset header: %w", err)
		}
	}
	for _, row := range rows {
		if err := cw.Write(row.Record()); err != nil {
			return fmt.Errorf("write dataset row %s: %w", row.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush dataset rows: %w", err)
	}
	return nil
}
