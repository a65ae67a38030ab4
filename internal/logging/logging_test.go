package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "production", "")
	logger.Info().Str("component", "test").Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "hello" || entry["service"] != "furnicolor" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestNewLevels(t *testing.T) {
	tests := []struct {
		env, level string
		want       zerolog.Level
	}{
		{"production", "", zerolog.InfoLevel},
		{"development", "", zerolog.DebugLevel},
		{"production", "warn", zerolog.WarnLevel},
		{"production", "bogus", zerolog.InfoLevel},
	}
	for _, tc := range tests {
		logger := NewWithWriter(&bytes.Buffer{}, tc.env, tc.level)
		if got := logger.GetLevel(); got != tc.want {
			t.Fatalf("env=%s level=%s: got %s want %s", tc.env, tc.level, got, tc.want)
		}
	}
}
