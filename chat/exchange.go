// Package chat exchanges messages with the backend and merges replies into the
// session registry.
//
// Information Hiding:
// - Per-session request serialization hidden inside Exchange
// - Backend identity reassignment applied transparently
// - Every failure converted into a renderer notice before it is returned

package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/richinex/chatline/backend"
	"github.com/richinex/chatline/model"
	"github.com/richinex/chatline/session"
	"github.com/richinex/chatline/view"
)

var (
	// ErrNoSession is returned when no session is selected.
	ErrNoSession = session.ErrNoSession
	// ErrEmptyMessage is returned for blank single sends.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrEmptyBatch is returned when a batch has no non-blank lines.
	ErrEmptyBatch = errors.New("batch has no messages")
)

// Backend is the subset of the backend client used by the exchange.
type Backend interface {
	Chat(ctx context.Context, req backend.ChatRequest) (backend.ChatResponse, error)
	ChatBatch(ctx context.Context, req backend.BatchRequest) (backend.BatchResponse, error)
	Sessions(ctx context.Context) ([]model.SessionInfo, error)
	History(ctx context.Context, sessionID string) ([]model.Message, error)
}

// SendOptions tunes a single send.
type SendOptions struct {
	TTS bool // ask the backend for a spoken reply
}

// Reply is the outcome of a successful single send.
type Reply struct {
	SessionID string        // session the reply belongs to, after any reassignment
	Message   model.Message // the assistant message
	Dropped   bool          // session vanished while the request was in flight
}

// BatchResult is the outcome of a successful batch send.
type BatchResult struct {
	SessionID string
	Lines     []string
	Replies   []model.Message
	Dropped   bool
}

// Exchange sends messages for the controller's current session.
// Sends against the same session are serialized so replies land in request order.
type Exchange struct {
	ctrl        *session.Controller
	backend     Backend
	logger      log.FieldLogger
	syncWorkers int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates an exchange.
func New(ctrl *session.Controller, b Backend, logger log.FieldLogger) *Exchange {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Exchange{
		ctrl:        ctrl,
		backend:     b,
		logger:      logger,
		syncWorkers: 4,
		locks:       make(map[string]*sync.Mutex),
	}
}

// WithSyncWorkers sets how many histories Sync fetches concurrently.
func (e *Exchange) WithSyncWorkers(n int) *Exchange {
	if n > 0 {
		e.syncWorkers = n
	}
	return e
}

// Send delivers one message and appends the backend's reply.
// The user message is appended before the request and is never rolled back.
func (e *Exchange) Send(ctx context.Context, text string, opts SendOptions) (Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{}, e.fail(ErrEmptyMessage)
	}
	id, unlock, err := e.acquire()
	if err != nil {
		return Reply{}, e.fail(err)
	}
	defer unlock()

	logger := e.logger.WithField("session_id", id)
	registry := e.ctrl.Registry()
	renderer := e.ctrl.Renderer()

	user := model.UserMessage(text)
	ok, err := registry.AppendIfExists(ctx, id, user)
	if err != nil {
		logger.WithError(err).Error("failed to persist user message")
	}
	if !ok {
		return Reply{}, e.fail(ErrNoSession)
	}
	renderer.Append(id, user)

	resp, err := e.backend.Chat(ctx, backend.ChatRequest{
		Message:   text,
		SessionID: id,
		TTS:       opts.TTS,
	})
	if err != nil {
		logger.WithError(err).Warn("send failed")
		return Reply{}, e.fail(fmt.Errorf("send: %w", err))
	}

	target, err := e.confirm(ctx, id, resp.SessionID)
	if err != nil {
		return Reply{}, e.fail(err)
	}

	assistant := model.AssistantMessage(resp.Reply, resp.AudioPath)
	dropped, err := e.apply(ctx, target, assistant)
	if err != nil {
		return Reply{}, e.fail(err)
	}
	return Reply{SessionID: target, Message: assistant, Dropped: dropped}, nil
}

// SendBatch sends every non-blank line of input in one request and appends one
// assistant message per reply. Input lines are not appended as user messages.
// A reply list whose length differs from the line count is a format error and
// nothing is appended.
func (e *Exchange) SendBatch(ctx context.Context, input string) (BatchResult, error) {
	lines := SplitLines(input)
	if len(lines) == 0 {
		return BatchResult{}, e.fail(ErrEmptyBatch)
	}
	id, unlock, err := e.acquire()
	if err != nil {
		return BatchResult{}, e.fail(err)
	}
	defer unlock()

	logger := e.logger.WithFields(log.Fields{"session_id": id, "lines": len(lines)})
	e.ctrl.Renderer().Notify(view.Notice{
		Level: view.LevelInfo,
		Text:  fmt.Sprintf("Sending %d messages...", len(lines)),
	})

	resp, err := e.backend.ChatBatch(ctx, backend.BatchRequest{Messages: lines, SessionID: id})
	if err != nil {
		logger.WithError(err).Warn("batch send failed")
		return BatchResult{}, e.fail(fmt.Errorf("batch: %w", err))
	}
	// The backend reports no per-line status; a count mismatch is the only detectable failure.
	if len(resp.Replies) != len(lines) {
		err := fmt.Errorf("batch: %w: expected %d replies, got %d",
			backend.ErrMalformedResponse, len(lines), len(resp.Replies))
		logger.WithError(err).Warn("batch reply count mismatch")
		return BatchResult{}, e.fail(err)
	}

	target, err := e.confirm(ctx, id, resp.SessionID)
	if err != nil {
		return BatchResult{}, e.fail(err)
	}

	replies := make([]model.Message, len(resp.Replies))
	for i, r := range resp.Replies {
		replies[i] = model.AssistantMessage(r, "")
	}
	dropped, err := e.apply(ctx, target, replies...)
	if err != nil {
		return BatchResult{}, e.fail(err)
	}
	return BatchResult{SessionID: target, Lines: lines, Replies: replies, Dropped: dropped}, nil
}

// RemoteSessions lists the sessions known to the backend.
func (e *Exchange) RemoteSessions(ctx context.Context) ([]model.SessionInfo, error) {
	sessions, err := e.backend.Sessions(ctx)
	if err != nil {
		return nil, e.fail(fmt.Errorf("list sessions: %w", err))
	}
	return sessions, nil
}

// RemoteHistory fetches the backend's copy of a session.
func (e *Exchange) RemoteHistory(ctx context.Context, id string) ([]model.Message, error) {
	history, err := e.backend.History(ctx, id)
	if err != nil {
		return nil, e.fail(fmt.Errorf("history: %w", err))
	}
	return history, nil
}

// confirm adopts a backend-assigned id when it differs from the one sent.
func (e *Exchange) confirm(ctx context.Context, sent, returned string) (string, error) {
	if returned == "" || returned == sent {
		return sent, nil
	}
	if !e.ctrl.Registry().Exists(sent) {
		// The provisional session was deleted mid-flight; don't resurrect it under a new name.
		return returned, nil
	}
	return e.ctrl.Adopt(ctx, sent, returned)
}

// apply appends replies to a session that still exists. Replies for a session
// deleted while the request was in flight are dropped with a warning.
func (e *Exchange) apply(ctx context.Context, id string, messages ...model.Message) (bool, error) {
	logger := e.logger.WithField("session_id", id)

	ok, err := e.ctrl.Registry().AppendIfExists(ctx, id, messages...)
	if !ok {
		logger.Warn("session no longer exists, dropping reply")
		return true, nil
	}
	if err != nil {
		logger.WithError(err).Error("failed to persist reply")
	}
	if e.ctrl.Current() == id {
		e.ctrl.Renderer().Append(id, messages...)
	}
	return false, nil
}

// fail surfaces err as an inline notice and returns it.
func (e *Exchange) fail(err error) error {
	e.ctrl.Renderer().Notify(view.Notice{Level: view.LevelError, Text: Describe(err)})
	return err
}

// lock serializes requests per session id.
// acquire locks the current session. A send queued behind one that renamed or
// deleted the session re-reads the pointer once it holds the lock.
func (e *Exchange) acquire() (string, func(), error) {
	for {
		id := e.ctrl.Current()
		if id == "" {
			return "", nil, ErrNoSession
		}
		unlock := e.lock(id)
		if e.ctrl.Current() == id {
			return id, unlock, nil
		}
		unlock()
	}
}

func (e *Exchange) lock(id string) func() {
	e.mu.Lock()
	l, ok := e.locks[id]
	if !ok {
		l = &sync.Mutex{}
		e.locks[id] = l
	}
	e.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// SplitLines returns the trimmed non-blank lines of input, in order.
func SplitLines(input string) []string {
	var lines []string
	for _, line := range strings.Split(strings.ReplaceAll(input, "\r\n", "\n"), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Describe turns an error into a short user-facing sentence.
func Describe(err error) string {
	var statusErr *backend.StatusError
	switch {
	case errors.Is(err, ErrEmptyMessage):
		return "Message is empty."
	case errors.Is(err, ErrEmptyBatch):
		return "Batch is empty: enter at least one non-blank line."
	case errors.Is(err, ErrNoSession):
		return "No session selected: create or switch to a session first."
	case errors.Is(err, backend.ErrUnreachable):
		return "Error: could not connect to the server."
	case errors.Is(err, backend.ErrMalformedResponse):
		return "Error: the server returned an unexpected response format."
	case errors.As(err, &statusErr):
		return fmt.Sprintf("Error: the server returned HTTP %d.", statusErr.StatusCode)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Request cancelled."
	default:
		return "Error: " + err.Error()
	}
}
