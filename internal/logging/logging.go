package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LogFilePath builds a per-run log file path, e.g. logs/turnkernel.20260301_120000.log.
func LogFilePath(logsDir, name string, started time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", name, started.UTC().Format("20060102_150405")),
	)
}

// OpenLogFile creates the logs directory and opens a fresh log file for this run.
func OpenLogFile(logsDir, name string, started time.Time) (*os.File, error) {
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}
	f, err := os.OpenFile(LogFilePath(logsDir, name, started), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}
