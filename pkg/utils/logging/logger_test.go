package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"slices"
	"strings"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/querymem/pkg/utils/logging"
)

func TestNewWithFormatJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logging.NewWithFormat(logging.FormatJSON, "info", buf)

	logger.Debug("hidden")
	logger.Info("memory entry added", "session_id", "s1", "entries", 3)

	var record map[string]any
	gt.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	gt.Equal(t, record["msg"], "memory entry added")
	gt.Equal(t, record["session_id"], "s1")
	gt.Equal(t, record["entries"], any(float64(3)))
	gt.S(t, buf.String()).NotContains("hidden")
}

func TestNewWithFormatJSONKeepsErrorValues(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logging.NewWithFormat("JSON", "info", buf)

	err := goerr.New("index is not usable", goerr.V("reason", "count_mismatch"))
	logger.Warn("rebuilding vector index", "error", err)

	gt.S(t, buf.String()).Contains("index is not usable")
	gt.S(t, buf.String()).Contains("count_mismatch")
}

func TestNewWithFormatConsole(t *testing.T) {
	for _, format := range []string{logging.FormatConsole, "", "yaml"} {
		buf := &bytes.Buffer{}
		logging.NewWithFormat(format, "info", buf).Info("console message")
		gt.S(t, buf.String()).Contains("console message")
		gt.False(t, strings.HasPrefix(buf.String(), "{"))
	}
}

func TestLevels(t *testing.T) {
	testCases := []struct {
		level  string
		expect []string
	}{
		{"debug", []string{"debug", "info", "warn", "error"}},
		{"info", []string{"info", "warn", "error"}},
		{"warning", []string{"warn", "error"}},
		{"error", []string{"error"}},
		{"DEBUG", []string{"debug", "info", "warn", "error"}}, // Case-insensitive
		{"invalid", []string{"info", "warn", "error"}},        // Defaults to info
	}

	for _, format := range []string{logging.FormatConsole, logging.FormatJSON} {
		for _, tc := range testCases {
			t.Run(format+"/"+tc.level, func(t *testing.T) {
				buf := &bytes.Buffer{}
				logger := logging.NewWithFormat(format, tc.level, buf)

				logger.Debug("debug message")
				logger.Info("info message")
				logger.Warn("warn message")
				logger.Error("error message")

				output := buf.String()
				for _, name := range []string{"debug", "info", "warn", "error"} {
					if slices.Contains(tc.expect, name) {
						gt.S(t, output).Contains(name + " message")
					} else {
						gt.S(t, output).NotContains(name + " message")
					}
				}
			})
		}
	}
}

func TestWithAndFrom(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logging.New("info", buf).With("session_id", "s1")

	ctx := logging.With(context.Background(), logger)
	retrieved := logging.From(ctx)
	gt.Equal(t, retrieved, logger)

	retrieved.Info("search done")
	gt.S(t, buf.String()).Contains("search done")
	gt.S(t, buf.String()).Contains("s1")
}

func TestFromUsesDefault(t *testing.T) {
	original := logging.Default()
	t.Cleanup(func() { logging.SetDefault(original) })

	buf := &bytes.Buffer{}
	custom := logging.NewWithFormat(logging.FormatJSON, "warn", buf)
	logging.SetDefault(custom)
	gt.Equal(t, logging.Default(), custom)

	// No logger in the context
	logging.From(context.Background()).Warn("warning from default")
	gt.S(t, buf.String()).Contains("warning from default")
}
