package logging

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected log.Level
	}{
		{"debug lowercase", "debug", log.DebugLevel},
		{"verbose mixed case", "Verbose", log.DebugLevel},
		{"info uppercase", "INFO", log.InfoLevel},
		{"warn", "warn", log.WarnLevel},
		{"warning uppercase", "WARNING", log.WarnLevel},
		{"error", "error", log.ErrorLevel},
		{"quiet", "quiet", log.FatalLevel},
		{"silent uppercase", "SILENT", log.FatalLevel},
		{"unknown string", "foobar", log.InfoLevel},
		{"empty string", "", log.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatline.log")

	logger := New(Options{Level: "debug", File: path})
	logger.WithField("session_id", "s-1").Warn("desync")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected log file: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected log output in file")
	}
	if logger.GetLevel() != log.DebugLevel {
		t.Errorf("expected debug level, got %v", logger.GetLevel())
	}
}
