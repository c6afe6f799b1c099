// Package view defines the render surface contract consumed by the session
// controller and message exchange. Renderers receive plain data, never markup.
package view

import (
	"sync"

	"github.com/richinex/chatline/model"
)

// Level classifies a notice.
type Level int

const (
	// LevelInfo is a neutral status line (e.g. "sending 3 messages").
	LevelInfo Level = iota
	// LevelError is a visible, non-fatal failure shown inline in the conversation.
	LevelError
)

// Notice is a transient message for the user that is not part of any history.
type Notice struct {
	Level Level
	Text  string
}

// Renderer reflects registry state into some UI.
type Renderer interface {
	// Render shows the full history of a session. An empty id means no session is selected.
	Render(sessionID string, history []model.Message)
	// Append shows messages just added to the session on screen.
	Append(sessionID string, messages ...model.Message)
	// Clear empties the conversation view.
	Clear()
	// Notify shows a transient notice.
	Notify(n Notice)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Render(string, []model.Message)  {}
func (Nop) Append(string, ...model.Message) {}
func (Nop) Clear()                          {}
func (Nop) Notify(Notice)                   {}

// Recorder keeps every call in memory. Used by tests and headless callers.
type Recorder struct {
	mu       sync.Mutex
	Renders  []Rendered
	Appended []model.Message
	Notices  []Notice
	Clears   int
}

// Rendered is one recorded Render call.
type Rendered struct {
	SessionID string
	History   []model.Message
}

func (r *Recorder) Render(sessionID string, history []model.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Renders = append(r.Renders, Rendered{SessionID: sessionID, History: append([]model.Message(nil), history...)})
}

func (r *Recorder) Append(_ string, messages ...model.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Appended = append(r.Appended, messages...)
}

func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Clears++
}

func (r *Recorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Notices = append(r.Notices, n)
}

// LastRender returns the most recent Render call.
func (r *Recorder) LastRender() (Rendered, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Renders) == 0 {
		return Rendered{}, false
	}
	return r.Renders[len(r.Renders)-1], true
}

// Errors returns the error-level notices.
func (r *Recorder) Errors() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notice
	for _, n := range r.Notices {
		if n.Level == LevelError {
			out = append(out, n)
		}
	}
	return out
}

var (
	_ Renderer = Nop{}
	_ Renderer = (*Recorder)(nil)
)
