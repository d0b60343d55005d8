// ABOUTME: Tests for logger configuration
// ABOUTME: Checks level mapping and JSON file output
package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestConfigureLevels(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"none", zerolog.Disabled},
		{"error", zerolog.ErrorLevel},
		{"warn", zerolog.WarnLevel},
		{"info", zerolog.InfoLevel},
		{"debug", zerolog.DebugLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			closer, err := Configure(tt.level, "")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if closer != nil {
				t.Error("expected no closer without a file")
			}
			if got := zerolog.GlobalLevel(); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}

	if _, err := Configure("verbose", ""); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestConfigureFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streamout.log")
	closer, err := Configure("info", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	log.Debug().Msg("hidden")
	log.Info().Str("stream", "theme").Msg("refilled")
	closer.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), data)
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("expected JSON line: %v", err)
	}
	if entry["stream"] != "theme" || entry["message"] != "refilled" || entry["level"] != "info" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestConfigureBadFile(t *testing.T) {
	if _, err := Configure("info", filepath.Join(t.TempDir(), "missing", "x.log")); err == nil {
		t.Error("expected error for unwritable path")
	}
}
