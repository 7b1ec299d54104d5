package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/news-collector/internal/config"
	"github.com/DeafMist/news-collector/internal/logger"
)

type stubPurger struct {
	maxAge    time.Duration
	batchSize int
	deleted   int64
	err       error
}

func (s *stubPurger) DeleteOlderThan(_ context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	s.maxAge = maxAge
	s.batchSize = batchSize
	return s.deleted, s.err
}

func TestRunOncePassesRetentionWindow(t *testing.T) {
	cfg := &config.Retention{MaxAge: 720 * time.Hour, BatchSize: 500}
	p := &stubPurger{deleted: 7}

	require.Equal(t, int64(7), runOnce(context.Background(), logger.Discard(), p, cfg))
	require.Equal(t, 720*time.Hour, p.maxAge)
	require.Equal(t, 500, p.batchSize)
}

func TestRunOnceSwallowsErrors(t *testing.T) {
	cfg := &config.Retention{MaxAge: time.Hour, BatchSize: 10}
	p := &stubPurger{deleted: 3, err: errors.New("timeout")}

	require.Equal(t, int64(3), runOnce(context.Background(), logger.Discard(), p, cfg))
}
