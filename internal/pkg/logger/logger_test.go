package logger

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestLogShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log")
	f, err := os.Create(path)
	require.NoError(t, err)

	RequestLog(f, "req-1", "POST", "/api/v1/webhook/falco", 200, 12*time.Millisecond, "")
	RequestLog(f, "req-2", "GET", "/api/v1/threats/x", 404, time.Millisecond, "Not Found")
	RequestLog(f, "req-3", "GET", "/api/v1/threats", 500, time.Millisecond, "boom")
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entries []LogEntry
	for _, line := range splitLines(data) {
		var e LogEntry
		require.NoError(t, json.Unmarshal(line, &e))
		entries = append(entries, e)
	}
	require.Len(t, entries, 3)

	assert.Equal(t, "info", entries[0].Level)
	assert.Equal(t, "req-1", entries[0].RequestID)
	assert.Equal(t, 200, entries[0].Status)
	assert.Equal(t, "warn", entries[1].Level)
	assert.Equal(t, "error", entries[2].Level)
	assert.Equal(t, "boom", entries[2].Error)
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			if i > start {
				lines = append(lines, data[start:i])
			}
			start = i + 1
		}
	}
	return lines
}

func TestFromContext(t *testing.T) {
	assert.Empty(t, FromContext(context.Background()))

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-9")
	assert.Equal(t, "req-9", FromContext(ctx))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARNING"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("anything"))
}
