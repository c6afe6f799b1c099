package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/richinex/chatline/storage"
)

func TestNewDefaults(t *testing.T) {
	settings, err := New("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Backend.BaseURL != DefaultBaseURL {
		t.Errorf("expected base URL %q, got %q", DefaultBaseURL, settings.Backend.BaseURL)
	}
	if settings.Store.Backend != "sqlite" {
		t.Errorf("expected store 'sqlite', got %q", settings.Store.Backend)
	}
	if settings.Chat.SyncWorkers != DefaultSyncWorkers {
		t.Errorf("expected %d sync workers, got %d", DefaultSyncWorkers, settings.Chat.SyncWorkers)
	}
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv("CHATLINE_BASE_URL", "http://backend:9000")
	t.Setenv("CHATLINE_TIMEOUT", "5s")
	t.Setenv("CHATLINE_TTS", "true")
	t.Setenv("CHATLINE_STORE", "memory")

	settings, err := New("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Backend.BaseURL != "http://backend:9000" {
		t.Errorf("expected env base URL, got %q", settings.Backend.BaseURL)
	}
	if settings.Backend.Timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v", settings.Backend.Timeout)
	}
	if !settings.Chat.TTS {
		t.Error("expected TTS enabled")
	}
	if settings.Store.Backend != "memory" {
		t.Errorf("expected memory store, got %q", settings.Store.Backend)
	}
}

func TestNewFromFileEnvWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatline.yaml")
	content := `
backend:
  base_url: http://from-file:8000
  timeout: 10s
store:
  backend: file
  path: /tmp/chatline-store
chat:
  sync_workers: 2
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("CHATLINE_SYNC_WORKERS", "8")

	settings, err := New(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Backend.BaseURL != "http://from-file:8000" {
		t.Errorf("expected file base URL, got %q", settings.Backend.BaseURL)
	}
	if settings.Backend.Timeout != 10*time.Second {
		t.Errorf("expected 10s timeout, got %v", settings.Backend.Timeout)
	}
	if settings.Store.Backend != "file" {
		t.Errorf("expected file store, got %q", settings.Store.Backend)
	}
	if settings.Chat.SyncWorkers != 8 {
		t.Errorf("expected env to override sync workers, got %d", settings.Chat.SyncWorkers)
	}
	if settings.Chat.AudioDir != DefaultAudioDir {
		t.Errorf("expected default audio dir to survive, got %q", settings.Chat.AudioDir)
	}
}

func TestNewWithInvalidEnvVar(t *testing.T) {
	t.Setenv("CHATLINE_TIMEOUT", "not-a-duration")

	_, err := New("")
	if err == nil {
		t.Error("expected error for invalid CHATLINE_TIMEOUT")
	}
}

func TestNewUnknownStore(t *testing.T) {
	t.Setenv("CHATLINE_STORE", "redis")

	_, err := New("")
	if !errors.Is(err, storage.ErrUnknownBackend) {
		t.Errorf("expected ErrUnknownBackend, got %v", err)
	}
}

func TestNewAcceptsStoreAliases(t *testing.T) {
	for _, name := range []string{"mem", "json", "sqlite3", "SQLite"} {
		t.Setenv("CHATLINE_STORE", name)

		settings, err := New("")
		if err != nil {
			t.Errorf("store %q: expected success, got %v", name, err)
			continue
		}
		store, err := storage.Open(settings.Store.Backend, filepath.Join(t.TempDir(), "store"))
		if err != nil {
			t.Errorf("store %q: validated name rejected by storage.Open: %v", name, err)
			continue
		}
		store.Close()
	}
}

func TestNewInvalidBaseURL(t *testing.T) {
	t.Setenv("CHATLINE_BASE_URL", "not a url")

	_, err := New("")
	if err == nil {
		t.Error("expected error for invalid base URL")
	}
}

func TestNewMissingFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestMustNewPanics(t *testing.T) {
	t.Setenv("CHATLINE_SYNC_WORKERS", "0")

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for invalid sync workers")
		}
	}()
	MustNew("")
}
