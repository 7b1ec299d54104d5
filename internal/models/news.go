package models

import "time"

// NewsItem is a single entry of the search API "items" array.
type NewsItem struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Link         string `json:"link"`
	OriginalLink string `json:"originallink,omitempty"`
	PubDate      string `json:"pubDate"`
}

// NewsRow is one normalized line of the persisted dataset.
type NewsRow struct {
	ID      string `json:"id"`
	Keyword string `json:"keyword"`
	Date    string `json:"date"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
	URL     string `json:"url"`
}

// Columns is the dataset header in persisted order.
var Columns = []string{"id", "keyword", "date", "title", "summary", "url"}

// Record returns the row's fields in Columns order.
func (r NewsRow) Record() []string {
	return []string{r.ID, r.Keyword, r.Date, r.Title, r.Summary, r.URL}
}

// NewsDocument represents the canonical structure stored in Elasticsearch.
type NewsDocument struct {
	NewsRow
	Terms     []string  `json:"terms"`
	IndexedAt time.Time `json:"indexed_at"`
}
