package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/turnkernel/internal/dispatcher"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestDispatcherLogger_Levels(t *testing.T) {
	tests := []struct {
		level string
		log   func(*DispatcherLogger)
	}{
		{"debug", func(l *DispatcherLogger) { l.Debug("m", "key1", "value1", "key2", 42) }},
		{"info", func(l *DispatcherLogger) { l.Info("m", "key1", "value1", "key2", 42) }},
		{"error", func(l *DispatcherLogger) { l.Error("m", "key1", "value1", "key2", 42) }},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.DebugLevel)))

			entry := decodeEntry(t, &buf)
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, "m", entry["message"])
			assert.Equal(t, "dispatcher", entry["component"])
			assert.Equal(t, "value1", entry["key1"])
			assert.Equal(t, float64(42), entry["key2"])
		})
	}
}

func TestDispatcherLogger_ErrorField(t *testing.T) {
	var buf bytes.Buffer
	l := NewDispatcherLogger(zerolog.New(&buf))

	l.Error("handler failed", "command", ":SEEK:", "error", errors.New("boom"))

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "boom", entry[zerolog.ErrorFieldName])
	assert.Equal(t, ":SEEK:", entry["command"])
}

func TestDispatcherLogger_OddAndNonStringKeys(t *testing.T) {
	var buf bytes.Buffer
	l := NewDispatcherLogger(zerolog.New(&buf))

	l.Info("odd", 7, "ignored", "dangling")

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "odd", entry["message"])
	assert.NotContains(t, entry, "dangling")
}

func TestDispatcherLogger_ImplementsInterface(t *testing.T) {
	var _ dispatcher.Logger = NewDispatcherLogger(zerolog.Nop())
}
