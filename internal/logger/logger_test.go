package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/news-collector/internal/logger"
)

func TestNewWithWriterJSONCarriesService(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "collector", "info", "json")
	log.Info("run finished", "rows", 3)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "collector", line["service"])
	require.Equal(t, "run finished", line["msg"])
	require.EqualValues(t, 3, line["rows"])
}

func TestNewWithWriterRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "worker", "warn", "")
	log.Info("hidden")
	require.Zero(t, buf.Len())

	log.Warn("shown")
	require.Contains(t, buf.String(), "shown")
	require.Contains(t, buf.String(), "service=worker")
}
