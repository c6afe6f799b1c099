// Package session holds the client-side session registry and the controller
// that owns the current-session pointer.
//
// Information Hiding:
// - In-memory layout and insertion order hidden behind Registry methods
// - Persistence encoding (ordered JSON object) hidden from callers
// - Every mutation writes both store keys before returning

package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/richinex/chatline/internal/dsa"
	"github.com/richinex/chatline/model"
	"github.com/richinex/chatline/storage"
)

// maxIDAttempts bounds the retry loop in Create.
const maxIDAttempts = 8

// ErrIDExhausted is returned when Create cannot find an unused identifier.
var ErrIDExhausted = errors.New("could not generate a unique session id")

// Registry maps session identifiers to ordered message histories and mirrors
// itself into a storage.Store after every mutation.
// Thread-safe: all access goes through an RWMutex.
type Registry struct {
	mu       sync.RWMutex
	store    storage.Store
	logger   log.FieldLogger
	order    []string
	sessions map[string][]model.Message
	index    *dsa.Trie[struct{}]
	current  string
	newID    func() string
}

// NewRegistry creates an empty registry backed by store.
func NewRegistry(store storage.Store, logger log.FieldLogger) *Registry {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Registry{
		store:    store,
		logger:   logger,
		sessions: make(map[string][]model.Message),
		index:    dsa.NewTrie[struct{}](),
		newID:    NewID,
	}
}

// Load rebuilds a registry from the two keys held in store.
// A missing store entry yields an empty registry. A persisted current id that
// no longer names a session is dropped with a warning.
func Load(ctx context.Context, store storage.Store, logger log.FieldLogger) (*Registry, error) {
	r := NewRegistry(store, logger)

	data, err := store.Load(ctx, storage.KeySessions)
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}
	if len(data) > 0 {
		order, sessions, err := decodeSessions(data)
		if err != nil {
			return nil, err
		}
		r.order = order
		r.sessions = sessions
		for _, id := range order {
			r.index.Insert(id, struct{}{})
		}
	}

	current, err := store.Load(ctx, storage.KeySessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load current session: %w", err)
	}
	if id := string(current); id != "" {
		if _, ok := r.sessions[id]; ok {
			r.current = id
		} else {
			r.logger.WithField("session_id", id).Warn("persisted current session not found, clearing")
		}
	}

	return r, nil
}

// Create inserts a fresh empty session and returns its identifier.
func (r *Registry) Create(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id := r.newID()
		if _, exists := r.sessions[id]; exists {
			continue
		}
		r.insertLocked(id)
		return id, r.persistLocked(ctx)
	}
	return "", ErrIDExhausted
}

// Get returns a copy of the session's history.
// Returns an empty slice (not nil) if the session doesn't exist.
func (r *Registry) Get(id string) []model.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()

	history := r.sessions[id]
	copied := make([]model.Message, len(history))
	copy(copied, history)
	return copied
}

// Exists reports whether id names a session.
func (r *Registry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.sessions[id]
	return ok
}

// Append adds messages to the end of a session, creating it first if needed.
func (r *Registry) Append(ctx context.Context, id string, messages ...model.Message) error {
	if id == "" {
		return errors.New("append: empty session id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		r.insertLocked(id)
	}
	r.sessions[id] = append(r.sessions[id], messages...)
	return r.persistLocked(ctx)
}

// AppendIfExists appends messages only when the session still exists.
// Reports false, without touching the store, when it does not.
func (r *Registry) AppendIfExists(ctx context.Context, id string, messages ...model.Message) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return false, nil
	}
	r.sessions[id] = append(r.sessions[id], messages...)
	return true, r.persistLocked(ctx)
}

// Delete removes a session. Deleting an unknown id is a no-op.
// Clears the current pointer if it named the deleted session.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return nil
	}
	delete(r.sessions, id)
	r.index.Delete(id)
	r.order = slices.DeleteFunc(r.order, func(s string) bool { return s == id })
	if r.current == id {
		r.current = ""
	}
	return r.persistLocked(ctx)
}

// List enumerates sessions in insertion order.
func (r *Registry) List() []model.SessionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]model.SessionInfo, 0, len(r.order))
	for _, id := range r.order {
		infos = append(infos, model.SessionInfo{ID: id, Name: DisplayName(id)})
	}
	return infos
}

// Resolve expands ref into a session id. ref may be a full id or a prefix
// shared by exactly one session. ok is false when ref names no session or is
// ambiguous.
func (r *Registry) Resolve(ref string) (id string, ok bool) {
	if ref == "" {
		return "", false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, exact := r.index.Search(ref); exact {
		return ref, true
	}
	matches := r.index.StartsWith(ref, 2)
	if len(matches) != 1 {
		return "", false
	}
	return matches[0], true
}

// Rename moves the history of from under the identifier to. When to already
// exists the moved messages are appended after its own. The current pointer
// follows the rename.
func (r *Registry) Rename(ctx context.Context, from, to string) error {
	if to == "" {
		return errors.New("rename: empty target id")
	}
	if from == to {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	moved, hadFrom := r.sessions[from]
	if _, ok := r.sessions[to]; !ok {
		if hadFrom {
			// Take over the provisional session's position in the listing.
			r.order[slices.Index(r.order, from)] = to
			r.index.Insert(to, struct{}{})
			r.sessions[to] = nil
		} else {
			r.insertLocked(to)
		}
	} else if hadFrom {
		r.order = slices.DeleteFunc(r.order, func(s string) bool { return s == from })
	}

	if hadFrom {
		r.sessions[to] = append(r.sessions[to], moved...)
		delete(r.sessions, from)
		r.index.Delete(from)
	}
	if r.current == from {
		r.current = to
	}
	return r.persistLocked(ctx)
}

// Replace overwrites a session's history, creating the session if needed.
// Used when importing state from the backend.
func (r *Registry) Replace(ctx context.Context, id string, history []model.Message) error {
	if id == "" {
		return errors.New("replace: empty session id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		r.insertLocked(id)
	}
	r.sessions[id] = slices.Clone(history)
	return r.persistLocked(ctx)
}

// Current returns the persisted current-session id, or "" when none is set.
func (r *Registry) Current() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// SetCurrent updates and persists the current-session pointer.
// id must name an existing session or be empty.
func (r *Registry) SetCurrent(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id != "" {
		if _, ok := r.sessions[id]; !ok {
			return fmt.Errorf("set current: unknown session %q", id)
		}
	}
	r.current = id
	return r.persistLocked(ctx)
}

func (r *Registry) insertLocked(id string) {
	r.sessions[id] = []model.Message{}
	r.index.Insert(id, struct{}{})
	r.order = append(r.order, id)
}

// persistLocked writes both keys. The in-memory mutation stays applied on
// failure; the next successful write carries it.
func (r *Registry) persistLocked(ctx context.Context) error {
	data, err := encodeSessions(r.order, r.sessions)
	if err != nil {
		return err
	}
	if err := r.store.Save(ctx, storage.KeySessions, data); err != nil {
		return fmt.Errorf("failed to persist sessions: %w", err)
	}

	if r.current == "" {
		err = r.store.Delete(ctx, storage.KeySessionID)
	} else {
		err = r.store.Save(ctx, storage.KeySessionID, []byte(r.current))
	}
	if err != nil {
		return fmt.Errorf("failed to persist current session: %w", err)
	}
	return nil
}

// encodeSessions writes the session map as a JSON object whose keys appear in
// insertion order, so listing order survives a reload.
func encodeSessions(order []string, sessions map[string][]model.Message) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, fmt.Errorf("failed to encode session id: %w", err)
		}
		history := sessions[id]
		if history == nil {
			history = []model.Message{}
		}
		value, err := json.Marshal(history)
		if err != nil {
			return nil, fmt.Errorf("failed to encode session %s: %w", id, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// decodeSessions parses the persisted object, keeping key order.
func decodeSessions(data []byte) ([]string, map[string][]model.Message, error) {
	if !gjson.ValidBytes(data) {
		return nil, nil, errors.New("persisted sessions are not valid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, nil, errors.New("persisted sessions must be a JSON object")
	}

	var (
		order     []string
		sessions  = make(map[string][]model.Message)
		decodeErr error
	)
	root.ForEach(func(key, value gjson.Result) bool {
		id := key.String()
		if !value.IsArray() {
			decodeErr = fmt.Errorf("persisted session %q is not a message list", id)
			return false
		}
		var history []model.Message
		if err := json.Unmarshal([]byte(value.Raw), &history); err != nil {
			decodeErr = fmt.Errorf("failed to decode session %q: %w", id, err)
			return false
		}
		for i, msg := range history {
			// Invalid role indicates data corruption; return error rather than silently defaulting.
			if _, err := model.ParseRole(string(msg.Role)); err != nil {
				decodeErr = fmt.Errorf("session %q message %d: %w", id, i, err)
				return false
			}
		}
		if _, dup := sessions[id]; !dup {
			order = append(order, id)
		}
		if history == nil {
			history = []model.Message{}
		}
		sessions[id] = history
		return true
	})
	if decodeErr != nil {
		return nil, nil, decodeErr
	}
	return order, sessions, nil
}
