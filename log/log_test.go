package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestCloudLoggingHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCloudLoggingHandlerWithWriter(&buf, slog.LevelInfo))

	ctx := WithTraceID(context.Background(), "projects/p/traces/abc")
	logger.DebugContext(ctx, "hidden")
	logger.With(slog.String("userID", "A")).WarnContext(ctx, "mirrored write failed",
		slog.Any("errorMsg", errors.New("unavailable")),
		slog.Int("step", 2),
	)
	logger.WithGroup("request").Error("bad", slog.String("path", "/Send"))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)

	assert.Equal(t, "WARNING", entries[0]["severity"])
	assert.Equal(t, "mirrored write failed", entries[0]["message"])
	assert.Equal(t, "projects/p/traces/abc", entries[0]["logging.googleapis.com/trace"])
	assert.Equal(t, "A", entries[0]["userID"])
	assert.Equal(t, "unavailable", entries[0]["errorMsg"])
	assert.Equal(t, float64(2), entries[0]["step"])
	assert.NotEmpty(t, entries[0]["time"])

	assert.Equal(t, "ERROR", entries[1]["severity"])
	assert.Equal(t, map[string]any{"path": "/Send"}, entries[1]["request"])
	assert.NotContains(t, entries[1], "logging.googleapis.com/trace")
}

func TestSeverity(t *testing.T) {
	tests := []struct {
		level    slog.Level
		expected string
	}{
		{slog.LevelDebug, "DEBUG"},
		{slog.LevelInfo, "INFO"},
		{slog.LevelWarn, "WARNING"},
		{slog.LevelError, "ERROR"},
		{slog.LevelError + 4, "ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, severity(tt.level))
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" WARN "))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestTraceFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/RecentMessages", nil)
	assert.Empty(t, TraceFromRequest(r, "dapper"))

	r.Header.Set("X-Cloud-Trace-Context", "105445aa7843bc8bf206b12000100000/1;o=1")
	assert.Equal(t, "projects/dapper/traces/105445aa7843bc8bf206b12000100000", TraceFromRequest(r, "dapper"))
	assert.Empty(t, TraceFromRequest(r, ""))
}

func TestLoggerFromContext(t *testing.T) {
	assert.NotNil(t, LoggerFromContext(context.Background()))

	logger := slog.New(NewCloudLoggingHandlerWithWriter(&bytes.Buffer{}, slog.LevelDebug))
	assert.Same(t, logger, LoggerFromContext(WithLogger(context.Background(), logger)))
}
