// Package config provides application settings loaded from a YAML file and environment variables.
//
// Settings are created via New() which handles:
// - Default value application
// - Optional YAML file overlay
// - Environment variable parsing with validation (environment wins)

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/richinex/chatline/storage"
)

// Settings holds all application configuration.
type Settings struct {
	Backend BackendConfig `yaml:"backend"`
	Store   StoreConfig   `yaml:"store"`
	Chat    ChatConfig    `yaml:"chat"`
	Log     LogConfig     `yaml:"log"`
}

// BackendConfig holds chat backend connection settings.
type BackendConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// StoreConfig selects the persistent store.
type StoreConfig struct {
	Backend string `yaml:"backend"` // sqlite, file, memory
	Path    string `yaml:"path"`
}

// ChatConfig holds message exchange behaviour.
type ChatConfig struct {
	TTS         bool   `yaml:"tts"`
	AudioDir    string `yaml:"audio_dir"`
	SyncWorkers int    `yaml:"sync_workers"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default values.
const (
	DefaultBaseURL     = "http://127.0.0.1:8000"
	DefaultTimeout     = 60 * time.Second
	DefaultStore       = "sqlite"
	DefaultStorePath   = ".chatline/chatline.db"
	DefaultAudioDir    = ".chatline/audio"
	DefaultSyncWorkers = 4
)

// Defaults returns settings with every default applied.
func Defaults() Settings {
	return Settings{
		Backend: BackendConfig{BaseURL: DefaultBaseURL, Timeout: DefaultTimeout},
		Store:   StoreConfig{Backend: DefaultStore, Path: DefaultStorePath},
		Chat:    ChatConfig{AudioDir: DefaultAudioDir, SyncWorkers: DefaultSyncWorkers},
		Log:     LogConfig{Level: "info"},
	}
}

// New creates settings from defaults, the optional YAML file at path, and environment variables.
// An empty path skips the file. Returns an error if the file or any variable holds an invalid value.
func New(path string) (Settings, error) {
	settings := Defaults()

	if path != "" {
		if err := settings.loadFile(path); err != nil {
			return Settings{}, err
		}
	}

	if err := settings.applyEnv(); err != nil {
		return Settings{}, err
	}

	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// MustNew creates settings.
// Panics if the file or environment variables are invalid.
// Use this only when configuration errors should be fatal.
func MustNew(path string) Settings {
	settings, err := New(path)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

func (s *Settings) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (s *Settings) applyEnv() error {
	s.Backend.BaseURL = getEnvString("CHATLINE_BASE_URL", s.Backend.BaseURL)
	s.Store.Backend = getEnvString("CHATLINE_STORE", s.Store.Backend)
	s.Store.Path = getEnvString("CHATLINE_STORE_PATH", s.Store.Path)
	s.Chat.AudioDir = getEnvString("CHATLINE_AUDIO_DIR", s.Chat.AudioDir)
	s.Log.Level = getEnvString("CHATLINE_LOG_LEVEL", s.Log.Level)
	s.Log.File = getEnvString("CHATLINE_LOG_FILE", s.Log.File)

	timeout, err := getEnvDuration("CHATLINE_TIMEOUT", s.Backend.Timeout)
	if err != nil {
		return err
	}
	s.Backend.Timeout = timeout

	tts, err := getEnvBool("CHATLINE_TTS", s.Chat.TTS)
	if err != nil {
		return err
	}
	s.Chat.TTS = tts

	workers, err := getEnvInt("CHATLINE_SYNC_WORKERS", s.Chat.SyncWorkers)
	if err != nil {
		return err
	}
	s.Chat.SyncWorkers = workers

	return nil
}

// Validate checks cross-field constraints.
func (s Settings) Validate() error {
	u, err := url.Parse(s.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid backend base URL: %q", s.Backend.BaseURL)
	}
	if s.Backend.Timeout <= 0 {
		return errors.New("backend timeout must be positive")
	}
	if _, err := storage.ParseBackend(s.Store.Backend); err != nil {
		return fmt.Errorf("invalid store: %w", err)
	}
	if s.Chat.SyncWorkers < 1 {
		return fmt.Errorf("sync workers must be at least 1, got %d", s.Chat.SyncWorkers)
	}
	return nil
}

// Environment variable helpers with proper error handling

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return b, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return d, nil
}
