package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/news-collector/internal/config"
	"github.com/DeafMist/news-collector/internal/dataset"
	"github.com/DeafMist/news-collector/internal/dedupe"
	"github.com/DeafMist/news-collector/internal/models"
	"github.com/DeafMist/news-collector/internal/naver"
	"github.com/DeafMist/news-collector/internal/notify"
	"github.com/DeafMist/news-collector/internal/pipeline"
	"github.com/DeafMist/news-collector/internal/processing"
)

const pageB = `{"items": [
  {"title": "B 첫 기사", "link": "https://n.news.naver.com/b1", "description": "요약 1", "pubDate": "Tue, 02 Jan 2024 08:00:00 +0900"},
  {"title": "B 둘째 기사", "link": "https://n.news.naver.com/b2", "description": "요약 2", "pubDate": "invalid-date"}
]}`

type staticFetcher struct {
	batches []naver.Batch
}

func (s *staticFetcher) FetchAll(context.Context, []string) []naver.Batch {
	return s.batches
}

type stubNotifier struct {
	calls int
	err   error
}

func (s *stubNotifier) Notify(context.Context, notify.Summary) error {
	s.calls++
	return s.err
}

type stubPublisher struct {
	rows []models.NewsRow
	err  error
}

func (s *stubPublisher) Publish(_ context.Context, _ string, rows []models.NewsRow) error {
	s.rows = append(s.rows, rows...)
	return s.err
}

func naverServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("query") == "A" {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, pageB)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newCollector(t *testing.T, opts pipeline.Options) *pipeline.Collector {
	t.Helper()
	c, err := pipeline.New(opts)
	require.NoError(t, err)
	return c
}

func TestRunPartialFailureIsolation(t *testing.T) {
	srv := naverServer(t)
	store := dataset.NewStore(filepath.Join(t.TempDir(), "news_results.csv"), nil)
	client := naver.NewClient(config.Naver{ClientID: "id", ClientSecret: "secret", Endpoint: srv.URL, Display: 5, Timeout: time.Second}, nil)

	c := newCollector(t, pipeline.Options{
		Keywords: []string{"A", "B"},
		Fetcher:  client,
		Store:    store,
	})

	res, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"A"}, res.FailedKeywords)
	require.Equal(t, 2, res.Fetched)
	require.Equal(t, 2, res.Stored)
	require.NotEmpty(t, res.RunID)

	rows, err := store.Load()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		require.Equal(t, "B", row.Keyword)
	}
	require.Equal(t, "2024-01-02", rows[0].Date)
	require.Equal(t, "invalid-date", rows[1].Date)
}

func TestRunTwiceIsIdempotent(t *testing.T) {
	srv := naverServer(t)
	path := filepath.Join(t.TempDir(), "news_results.csv")
	store := dataset.NewStore(path, nil)
	client := naver.NewClient(config.Naver{ClientID: "id", ClientSecret: "secret", Endpoint: srv.URL, Display: 5, Timeout: time.Second}, nil)
	c := newCollector(t, pipeline.Options{Keywords: []string{"B"}, Fetcher: client, Store: store})

	_, err := c.Run(context.Background())
	require.NoError(t, err)
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	res, err := c.Run(context.Background())
	require.NoError(t, err)
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, 2, res.Stored)
}

func TestRunKeepsLastVersionOfRow(t *testing.T) {
	store := dataset.NewStore(filepath.Join(t.TempDir(), "news_results.csv"), nil)
	item := models.NewsItem{Title: "같은 기사", Description: "A", Link: "https://n.news.naver.com/1", PubDate: "Tue, 02 Jan 2024 08:00:00 +0900"}

	fetcher := &staticFetcher{batches: []naver.Batch{{Keyword: "반도체", Items: []models.NewsItem{item}}}}
	c := newCollector(t, pipeline.Options{Keywords: []string{"반도체"}, Fetcher: fetcher, Store: store})
	_, err := c.Run(context.Background())
	require.NoError(t, err)

	item.Description = "B"
	fetcher.batches = []naver.Batch{{Keyword: "반도체", Items: []models.NewsItem{item}}}
	_, err = c.Run(context.Background())
	require.NoError(t, err)

	rows, err := store.Load()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "B", rows[0].Summary)
	require.Equal(t, processing.ContentHash{}.RowID("같은 기사", "2024-01-02"), rows[0].ID)
}

func TestRunNotifierFailureIsNonFatal(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)
	require.NoError(t, l.Close())
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	store := dataset.NewStore(filepath.Join(t.TempDir(), "news_results.csv"), nil)
	fetcher := &staticFetcher{batches: []naver.Batch{{Keyword: "반도체", Items: []models.NewsItem{
		{Title: "기사", Description: "요약", Link: "https://n.news.naver.com/1", PubDate: "Tue, 02 Jan 2024 08:00:00 +0900"},
	}}}}
	mailer := notify.NewMailer(config.Mail{Host: host, Port: port, Username: "bot@naver.com", Password: "x", To: "me@example.com"})

	c := newCollector(t, pipeline.Options{Keywords: []string{"반도체"}, Fetcher: fetcher, Store: store, Notifier: mailer})

	res, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, res.Stored)

	rows, err := store.Load()
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestRunPublishesAndNotifiesAfterPersist(t *testing.T) {
	store := dataset.NewStore(filepath.Join(t.TempDir(), "news_results.csv"), nil)
	fetcher := &staticFetcher{batches: []naver.Batch{{Keyword: "반도체", Items: []models.NewsItem{
		{Title: "기사", Description: "요약", Link: "https://n.news.naver.com/1", PubDate: "Tue, 02 Jan 2024 08:00:00 +0900"},
	}}}}
	pub := &stubPublisher{err: errors.New("broker down")}
	notifier := &stubNotifier{}

	c := newCollector(t, pipeline.Options{
		Keywords: []string{"반도체"}, Fetcher: fetcher, Store: store, Publisher: pub, Notifier: notifier,
	})

	_, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, pub.rows, 1)
	require.Equal(t, 1, notifier.calls)
}

func TestRunAppendPolicyKeepsDuplicates(t *testing.T) {
	store := dataset.NewStore(filepath.Join(t.TempDir(), "news_results.csv"), nil)
	fetcher := &staticFetcher{batches: []naver.Batch{{Keyword: "반도체", Items: []models.NewsItem{
		{Title: "기사", Description: "요약", Link: "https://n.news.naver.com/1", PubDate: "Tue, 02 Jan 2024 08:00:00 +0900"},
	}}}}
	c := newCollector(t, pipeline.Options{Keywords: []string{"반도체"}, Fetcher: fetcher, Store: store, Policy: dedupe.PolicyAppend})

	for i := 0; i < 2; i++ {
		_, err := c.Run(context.Background())
		require.NoError(t, err)
	}

	rows, err := store.Load()
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestRunReplacePolicyDropsOldRows(t *testing.T) {
	store := dataset.NewStore(filepath.Join(t.TempDir(), "news_results.csv"), nil)
	require.NoError(t, store.Write([]models.NewsRow{{ID: "old", Keyword: "x", Date: "2023-12-31", Title: "old"}}))

	fetcher := &staticFetcher{batches: []naver.Batch{{Keyword: "반도체", Items: []models.NewsItem{
		{Title: "기사", PubDate: "Tue, 02 Jan 2024 08:00:00 +0900"},
	}}}}
	c := newCollector(t, pipeline.Options{Keywords: []string{"반도체"}, Fetcher: fetcher, Store: store, Policy: dedupe.PolicyReplace})

	res, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, res.Stored)

	rows, err := store.Load()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "기사", rows[0].Title)
}

func TestRunMalformedDatasetIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "news_results.csv")
	require.NoError(t, os.WriteFile(path, []byte("keyword,summary\na,b\n"), 0o644))
	notifier := &stubNotifier{}

	c := newCollector(t, pipeline.Options{
		Keywords: []string{"반도체"},
		Fetcher:  &staticFetcher{},
		Store:    dataset.NewStore(path, nil),
		Notifier: notifier,
	})

	_, err := c.Run(context.Background())
	require.Error(t, err)
	require.Zero(t, notifier.calls)
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := pipeline.New(pipeline.Options{Keywords: []string{"a"}, Store: dataset.NewStore("x.csv", nil)})
	require.Error(t, err)

	_, err = pipeline.New(pipeline.Options{Keywords: []string{"a"}, Fetcher: &staticFetcher{}})
	require.Error(t, err)

	_, err = pipeline.New(pipeline.Options{Fetcher: &staticFetcher{}, Store: dataset.NewStore("x.csv", nil)})
	require.Error(t, err)
}

func TestRunCanceledLeavesDatasetUntouched(t *testing.T) {
	srv := naverServer(t)
	path := filepath.Join(t.TempDir(), "news_results.csv")
	store := dataset.NewStore(path, nil)
	require.NoError(t, store.Write([]models.NewsRow{{ID: "old", Keyword: "x", Date: "2023-12-31", Title: "old"}}))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	client := naver.NewClient(config.Naver{ClientID: "id", ClientSecret: "secret", Endpoint: srv.URL, Display: 5, Timeout: time.Second}, nil)
	notifier := &stubNotifier{}
	pub := &stubPublisher{}
	c := newCollector(t, pipeline.Options{
		Keywords:  []string{"A", "B"},
		Policy:    dedupe.PolicyReplace,
		Fetcher:   client,
		Store:     store,
		Publisher: pub,
		Notifier:  notifier,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = c.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, notifier.calls)
	require.Empty(t, pub.rows)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, before, after)
}
