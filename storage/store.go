// Package storage provides the persistent key-value store behind the session registry.
//
// Information Hiding:
// - Storage backend implementation details hidden behind interface
// - Allows swapping between memory, filesystem, SQLite without API changes
// - Values are opaque bytes; encoding belongs to the caller

package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Well-known keys written by the session registry.
const (
	// KeySessionID holds the identifier of the current session.
	KeySessionID = "session_id"
	// KeySessions holds the JSON map from session id to ordered message list.
	KeySessions = "sessions"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown storage backend")

// Store defines the interface for persisting registry state.
// Implementations can use different backends (memory, file, database).
type Store interface {
	// Load returns the value stored under key.
	// Returns nil, nil if the key doesn't exist.
	// Returns error only for storage failures (I/O errors, etc.), not missing keys.
	Load(ctx context.Context, key string) ([]byte, error)

	// Save replaces the value stored under key.
	Save(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}

// Canonical backend names.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSqlite = "sqlite"
)

// ParseBackend maps a backend name or alias to its canonical name.
// An empty name selects SQLite.
func ParseBackend(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "memory", "mem":
		return BackendMemory, nil
	case "file", "json":
		return BackendFile, nil
	case "sqlite", "sqlite3", "":
		return BackendSqlite, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
}

// Open opens a store by backend name.
// path is a database file for "sqlite" and a directory for "file"; "memory" ignores it.
func Open(backend, path string) (Store, error) {
	kind, err := ParseBackend(backend)
	if err != nil {
		return nil, err
	}
	switch kind {
	case BackendMemory:
		return NewInMemoryStore(), nil
	case BackendFile:
		return NewFileStore(path), nil
	default:
		return OpenSqlite(path)
	}
}
