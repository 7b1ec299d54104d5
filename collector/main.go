package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/DeafMist/news-collector/internal/config"
	"github.com/DeafMist/news-collector/internal/dataset"
	"github.com/DeafMist/news-collector/internal/dedupe"
	"github.com/DeafMist/news-collector/internal/logger"
	"github.com/DeafMist/news-collector/internal/naver"
	"github.com/DeafMist/news-collector/internal/notify"
	"github.com/DeafMist/news-collector/internal/pipeline"
	"github.com/DeafMist/news-collector/internal/processing"
	"github.com/DeafMist/news-collector/internal/stream"
)

func main() {
	log := logger.New("collector")
	cfg, err := config.LoadCollector()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	policy, err := dedupe.ParsePolicy(cfg.MergePolicy)
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	normalizer := processing.NewNormalizer(nil)
	opts := pipeline.Options{
		Keywords:   cfg.Keywords,
		Policy:     policy,
		Fetcher:    naver.NewClient(cfg.Naver, log),
		Normalizer: normalizer,
		Store:      dataset.NewStore(cfg.OutputPath, normalizer.Identifier()),
		Logger:     log,
	}

	if len(cfg.KafkaBrokers) > 0 {
		pub := stream.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer pub.Close()
		opts.Publisher = pub
		log.Info("row stream enabled", slog.String("topic", cfg.KafkaTopic))
	}
	if cfg.Mail.Enabled {
		opts.Notifier = notify.NewMailer(cfg.Mail)
	}

	collector, err := pipeline.New(opts)
	if err != nil {
		log.Error("init pipeline", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if cfg.CronSpec == "" {
		if _, err := collector.Run(ctx); err != nil {
			log.Error("collection run failed", slog.Any("err", err))
			stop()
			os.Exit(1)
		}
		return
	}

	c, err := newScheduler(cfg.CronSpec, log, func() {
		if _, err := collector.Run(ctx); err != nil {
			log.Error("collection run failed", slog.Any("err", err))
		}
	})
	if err != nil {
		log.Error("parse schedule", slog.String("spec", cfg.CronSpec), slog.Any("err", err))
		os.Exit(1)
	}

	c.Start()
	log.Info("collector scheduled", slog.String("spec", cfg.CronSpec))

	<-ctx.Done()
	log.Info("shutdown signal received")

	// Wait for an in-flight run to finish writing the dataset.
	select {
	case <-c.Stop().Done():
	case <-time.After(time.Minute):
		log.Warn("collection run still in progress at shutdown")
	}
}

// newScheduler registers job on spec. A tick that fires while the previous run
// is still going is skipped, so runs never overlap.
func newScheduler(spec string, log *slog.Logger, job func()) (*cron.Cron, error) {
	cl := cronLogger{log: log}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(spec, job); err != nil {
		return nil, err
	}
	return c, nil
}

// cronLogger routes scheduler events into slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("scheduler: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("scheduler: "+msg, append([]any{slog.Any("err", err)}, keysAndValues...)...)
}
