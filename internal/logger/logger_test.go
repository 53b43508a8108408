package logger

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_InfoLevel(t *testing.T) {
	logger := New("info")
	assert.NotNil(t, logger)
}

func TestNew_DebugLevel(t *testing.T) {
	logger := New("debug")
	assert.NotNil(t, logger)
}

func TestNew_ErrorLevel(t *testing.T) {
	logger := New("error")
	assert.NotNil(t, logger)
}

func TestNew_DefaultLevel(t *testing.T) {
	logger := New("unknown")
	assert.NotNil(t, logger)
}

func TestNewJSON(t *testing.T) {
	logger := NewJSON("info")
	assert.NotNil(t, logger)
}

func TestParseLevel_CaseInsensitive(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected slog.Level
	}{
		{"lowercase debug", "debug", slog.LevelDebug},
		{"uppercase DEBUG", "DEBUG", slog.LevelDebug},
		{"mixed cAsE", "DeBuG", slog.LevelDebug},
		{"lowercase info", "info", slog.LevelInfo},
		{"uppercase INFO", "INFO", slog.LevelInfo},
		{"lowercase error", "error", slog.LevelError},
		{"uppercase ERROR", "ERROR", slog.LevelError},
		{"unknown", "unknown", slog.LevelInfo},
		{"empty", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level := parseLevel(tt.input)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestTruncatePrompt_ShortPrompt(t *testing.T) {
	assert.Equal(t, "a portrait", TruncatePrompt("a portrait", 100))
}

func TestTruncatePrompt_LongPrompt(t *testing.T) {
	long := strings.Repeat("x", 300)

	result := TruncatePrompt(long, 100)

	assert.True(t, strings.HasSuffix(result, "... [truncated]"))
	assert.Less(t, len(result), len(long))
	assert.Equal(t, long[:100], result[:100])
}

func TestTruncatePrompt_ZeroMax(t *testing.T) {
	long := strings.Repeat("x", 300)
	assert.Equal(t, long, TruncatePrompt(long, 0))
}

func TestTruncatePrompt_ExactLength(t *testing.T) {
	prompt := strings.Repeat("x", 50)
	assert.Equal(t, prompt, TruncatePrompt(prompt, 50))
}
