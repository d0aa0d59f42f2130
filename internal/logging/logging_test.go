package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogFilePath(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC)

	tests := []struct {
		name    string
		logsDir string
		want    string
	}{
		{"relative", "logs", filepath.Join("logs", "turnkernel.20260301_120005.log")},
		{"dotted", "./logs", filepath.Join(".", "logs", "turnkernel.20260301_120005.log")},
		{"absolute", filepath.Join("/var", "log", "tk"), filepath.Join("/var", "log", "tk", "turnkernel.20260301_120005.log")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LogFilePath(tt.logsDir, "turnkernel", started))
		})
	}
}

func TestLogFilePath_ConvertsToUTC(t *testing.T) {
	started := time.Date(2026, 3, 1, 13, 0, 0, 0, time.FixedZone("CET", 3600))
	assert.Equal(t, filepath.Join("l", "x.20260301_120000.log"), LogFilePath("l", "x", started))
}

func TestOpenLogFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	started := time.Now()

	f, err := OpenLogFile(dir, "turnkernel", started)
	require.NoError(t, err)
	_, err = f.WriteString("line\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	data, err := os.ReadFile(LogFilePath(dir, "turnkernel", started))
	require.NoError(t, err)
	assert.Equal(t, "line\n", string(data))
}
