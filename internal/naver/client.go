package naver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/DeafMist/news-collector/internal/config"
	"github.com/DeafMist/news-collector/internal/logger"
	"github.com/DeafMist/news-collector/internal/models"
)

const (
	headerClientID     = "X-Naver-Client-Id"
	headerClientSecret = "X-Naver-Client-Secret"
	maxResponseBytes   = 4 << 20
)

// StatusError reports a non-200 answer from the search API.
type StatusError struct {
	Keyword string
	Code    int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("naver search %q: unexpected status %d", e.Keyword, e.Code)
}

// Batch is the outcome of one keyword search.
type Batch struct {
	Keyword string
	Items   []models.NewsItem
	Err     error
}

type searchResponse struct {
	LastBuildDate string            `json:"lastBuildDate"`
	Total         int               `json:"total"`
	Start         int               `json:"start"`
	Display       int               `json:"display"`
	Items         []models.NewsItem `json:"items"`
}

// Client queries the news search endpoint, one page per keyword.
type Client struct {
	http     *http.Client
	endpoint string
	id       string
	secret   string
	display  int
	log      *slog.Logger
}

// NewClient builds a Client from the search API settings.
func NewClient(cfg config.Naver, log *slog.Logger) *Client {
	if log == nil {
		log = logger.Discard()
	}
	display := cfg.Display
	if display <= 0 {
		display = 1
	}
	if display > config.MaxDisplay {
		display = config.MaxDisplay
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http:     &http.Client{Timeout: timeout},
		endpoint: cfg.Endpoint,
		id:       cfg.ClientID,
		secret:   cfg.ClientSecret,
		display:  display,
		log:      log,
	}
}

// Search fetches a single page of results for keyword.
func (c *Client) Search(ctx context.Context, keyword string) ([]models.NewsItem, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("naver: parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("query", keyword)
	q.Set("display", strconv.Itoa(c.display))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("naver: build request: %w", err)
	}
	req.Header.Set(headerClientID, c.id)
	req.Header.Set(headerClientSecret, c.secret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("naver: search %q: %w", keyword, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, &StatusError{Keyword: keyword, Code: resp.StatusCode}
	}

	var parsed searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("naver: decode %q: %w", keyword, err)
	}

	c.log.Debug("search page received",
		slog.String("keyword", keyword),
		slog.Int("total", parsed.Total),
		slog.Int("items", len(parsed.Items)),
	)
	return parsed.Items, nil
}

// FetchAll searches every keyword in order. A failed keyword is logged and
// reported in its Batch; it never stops the remaining searches.
func (c *Client) FetchAll(ctx context.Context, keywords []string) []Batch {
	batches := make([]Batch, 0, len(keywords))
	for _, keyword := range keywords {
		items, err := c.Search(ctx, keyword)
		if err != nil {
			c.log.Error("search failed", slog.String("keyword", keyword), slog.Any("err", err))
		} else {
			c.log.Info("search done", slog.String("keyword", keyword), slog.Int("items", len(items)))
		}
		batches = append(batches, Batch{Keyword: keyword, Items: items, Err: err})
	}
	return batches
}
