package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/DeafMist/news-collector/internal/dataset"
	"github.com/DeafMist/news-collector/internal/dedupe"
	"github.com/DeafMist/news-collector/internal/logger"
	"github.com/DeafMist/news-collector/internal/models"
	"github.com/DeafMist/news-collector/internal/naver"
	"github.com/DeafMist/news-collector/internal/notify"
	"github.com/DeafMist/news-collector/internal/processing"
)

// Fetcher searches every keyword and reports one batch per keyword.
type Fetcher interface {
	FetchAll(ctx context.Context, keywords []string) []naver.Batch
}

// Publisher forwards the rows of a run downstream.
type Publisher interface {
	Publish(ctx context.Context, runID string, rows []models.NewsRow) error
}

// Options wires the collaborators of a Collector. Publisher and Notifier are optional.
type Options struct {
	Keywords   []string
	Policy     dedupe.Policy
	Fetcher    Fetcher
	Normalizer *processing.Normalizer
	Store      *dataset.Store
	Publisher  Publisher
	Notifier   notify.Notifier
	Logger     *slog.Logger
}

// Result summarizes one run.
type Result struct {
	RunID          string
	Policy         dedupe.Policy
	Keywords       []string
	FailedKeywords []string
	Fetched        int
	Stored         int
	OutputPath     string
}

// Collector runs fetch, normalize, merge, persist, then the optional publish
// and notify steps, strictly in that order.
type Collector struct {
	opts Options
	log  *slog.Logger
}

// New validates opts and returns a Collector.
func New(opts Options) (*Collector, error) {
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("pipeline: fetcher is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("pipeline: store is required")
	}
	if len(opts.Keywords) == 0 {
		return nil, fmt.Errorf("pipeline: at least one keyword is required")
	}
	if opts.Policy == "" {
		opts.Policy = dedupe.PolicyID
	}
	if opts.Normalizer == nil {
		opts.Normalizer = processing.NewNormalizer(nil)
	}
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	return &Collector{opts: opts, log: log}, nil
}

// Run performs one collection run. Search, publish and notification failures
// are logged and absorbed; only dataset load/write errors are returned.
func (c *Collector) Run(ctx context.Context) (*Result, error) {
	res := &Result{
		RunID:      uuid.NewString(),
		Policy:     c.opts.Policy,
		Keywords:   c.opts.Keywords,
		OutputPath: c.opts.Store.Path(),
	}
	log := c.log.With(slog.String("run_id", res.RunID))
	log.Info("collection run started",
		slog.Any("keywords", c.opts.Keywords),
		slog.String("policy", string(c.opts.Policy)),
	)

	var fresh []models.NewsRow
	for _, batch := range c.opts.Fetcher.FetchAll(ctx, c.opts.Keywords) {
		if batch.Err != nil {
			res.FailedKeywords = append(res.FailedKeywords, batch.Keyword)
			continue
		}
		fresh = append(fresh, c.opts.Normalizer.NormalizeAll(batch.Items, batch.Keyword)...)
	}
	res.Fetched = len(fresh)

	// A canceled run must not touch the dataset or report completion.
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("collection run canceled: %w", err)
	}

	stored, err := c.persist(log, fresh)
	if err != nil {
		return res, err
	}
	res.Stored = stored

	log.Info("dataset saved",
		slog.String("path", res.OutputPath),
		slog.Int("fetched", res.Fetched),
		slog.Int("stored", res.Stored),
		slog.Int("failed_keywords", len(res.FailedKeywords)),
	)

	if c.opts.Publisher != nil {
		if err := c.opts.Publisher.Publish(ctx, res.RunID, fresh); err != nil {
			log.Error("publish rows", slog.Any("err", err))
		} else {
			log.Info("rows published", slog.Int("rows", len(fresh)))
		}
	}

	if c.opts.Notifier != nil {
		summary := notify.Summary{
			Keywords:   c.opts.Keywords,
			OutputPath: res.OutputPath,
			Fetched:    res.Fetched,
			Stored:     res.Stored,
		}
		if err := c.opts.Notifier.Notify(ctx, summary); err != nil {
			log.Error("send notification", slog.Any("err", err))
		} else {
			log.Info("notification sent")
		}
	}

	return res, nil
}

// persist applies the merge policy and returns the number of rows in the dataset
// (for the append policy, the number of rows appended).
func (c *Collector) persist(log *slog.Logger, fresh []models.NewsRow) (int, error) {
	store := c.opts.Store

	if !c.opts.Policy.Rewrites() {
		log.Warn("append policy keeps duplicate rows", slog.String("path", store.Path()))
		if err := store.Append(fresh); err != nil {
			return 0, fmt.Errorf("append dataset: %w", err)
		}
		return len(fresh), nil
	}

	var existing []models.NewsRow
	if c.opts.Policy != dedupe.PolicyReplace {
		rows, err := store.Load()
		if err != nil {
			return 0, fmt.Errorf("load dataset: %w", err)
		}
		existing = rows
	}

	merged := dedupe.Merge(existing, fresh, c.opts.Policy)
	if err := store.Write(merged); err != nil {
		return 0, fmt.Errorf("write dataset: %w", err)
	}
	log.Debug("dataset merged",
		slog.Int("existing", len(existing)),
		slog.Int("fresh", len(fresh)),
		slog.Int("merged", len(merged)),
	)
	return len(merged), nil
}
