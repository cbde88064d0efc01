package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decodeLines parses one JSON record per line
func decodeLines(t *testing.T, out *bytes.Buffer) []map[string]any {
	t.Helper()
	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		records = append(records, rec)
	}
	return records
}

func TestLogger_RunnerRecord(t *testing.T) {
	out := &bytes.Buffer{}
	logger, err := New(&Config{Level: "info", Format: "json", writer: out})
	require.NoError(t, err)

	logger.Component("runner").Info("Job completed successfully",
		slog.String("job_id", "alice_images_1700000000"),
		slog.Int("file_count", 2),
	)

	records := decodeLines(t, out)
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, "INFO", rec["level"])
	assert.Equal(t, "Job completed successfully", rec["msg"])
	assert.Equal(t, "runner", rec["component"])
	assert.Equal(t, "alice_images_1700000000", rec["job_id"])
	assert.Equal(t, float64(2), rec["file_count"])
	assert.NotContains(t, rec, "source")
}

func TestLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		wantMsgs []string
	}{
		{name: "debug", level: "debug", wantMsgs: []string{"Job queued", "Job submitted", "Job was not queued", "Fetcher failed"}},
		{name: "uppercase debug", level: "DEBUG", wantMsgs: []string{"Job queued", "Job submitted", "Job was not queued", "Fetcher failed"}},
		{name: "empty falls back to info", level: "", wantMsgs: []string{"Job submitted", "Job was not queued", "Fetcher failed"}},
		{name: "unknown falls back to info", level: "verbose", wantMsgs: []string{"Job submitted", "Job was not queued", "Fetcher failed"}},
		{name: "padded warning", level: " Warning ", wantMsgs: []string{"Job was not queued", "Fetcher failed"}},
		{name: "error", level: "error", wantMsgs: []string{"Fetcher failed"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			logger, err := New(&Config{Level: tt.level, Format: "json", writer: out})
			require.NoError(t, err)

			jobID := slog.String("job_id", "bob_journal_1")
			logger.Component("worker").Debug("Job queued", jobID)
			logger.Component("service").Info("Job submitted", jobID)
			logger.Component("service").Warn("Job was not queued", jobID)
			logger.Component("runner").Error("Fetcher failed", jobID)

			var got []string
			for _, rec := range decodeLines(t, out) {
				got = append(got, rec["msg"].(string))
				assert.Equal(t, "bob_journal_1", rec["job_id"])
			}
			assert.Equal(t, tt.wantMsgs, got)
		})
	}
}

func TestLogger_ConsoleFormat(t *testing.T) {
	out := &bytes.Buffer{}
	logger, err := New(&Config{Level: "info", Format: "console", NoColor: true, writer: out})
	require.NoError(t, err)

	logger.Component("cleanup").Info("Deleted delivered artifact",
		slog.String("path", "/var/lib/archive-service/artifacts/alice_images_1.zip"),
	)

	line := out.String()
	assert.Contains(t, line, "Deleted delivered artifact")
	assert.Contains(t, line, "component=cleanup")
	assert.Contains(t, line, "alice_images_1.zip")
	assert.NotContains(t, line, "\x1b[")
}

func TestLogger_SourceLocation(t *testing.T) {
	out := &bytes.Buffer{}
	logger, err := New(&Config{Level: "info", Format: "json", EnableSource: true, writer: out})
	require.NoError(t, err)

	logger.Info("Starting archive service", slog.String("version", "test"))

	records := decodeLines(t, out)
	require.Len(t, records, 1)
	source, ok := records[0]["source"].(map[string]any)
	require.True(t, ok, "source attribute missing")
	assert.Contains(t, source["file"], "logger_test.go")
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "archive-service.log")

	logger, err := New(&Config{
		Level:  "info",
		Format: "console",
		Output: path,
	})
	require.NoError(t, err)

	logger.Component("packager").Info("Archive written",
		slog.String("job_id", "alice_images_1"),
		slog.Int("file_count", 3),
	)
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Archive written")
	assert.Contains(t, string(data), "job_id=alice_images_1")
	// colors are forced off for files
	assert.NotContains(t, string(data), "\x1b[")

	// a second logger appends
	again, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)
	again.Info("Archive service shutdown complete")
	require.NoError(t, again.Close())

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Archive written")
	assert.Contains(t, string(data), "Archive service shutdown complete")
}

func TestNew_FileOutputError(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	logger, err := New(&Config{Output: filepath.Join(blocker, "app.log")})
	require.Error(t, err)
	assert.Nil(t, logger)
}

func TestLogger_CloseWithoutFile(t *testing.T) {
	logger, err := New(&Config{Format: "json", writer: &bytes.Buffer{}})
	require.NoError(t, err)
	assert.NoError(t, logger.Close())
}
