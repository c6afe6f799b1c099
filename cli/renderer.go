package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/richinex/chatline/model"
	"github.com/richinex/chatline/session"
	"github.com/richinex/chatline/view"
)

const ruleWidth = 48

// TerminalRenderer prints sessions and notices to a terminal.
type TerminalRenderer struct {
	mu  sync.Mutex
	out io.Writer
	st  styles
}

// NewTerminalRenderer creates a renderer writing to out.
func NewTerminalRenderer(out io.Writer) *TerminalRenderer {
	return &TerminalRenderer{
		out: out,
		st:  newStyles(lipgloss.NewRenderer(out)),
	}
}

// Render prints the full history of a session.
func (r *TerminalRenderer) Render(sessionID string, history []model.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sessionID == "" {
		fmt.Fprintln(r.out, r.st.muted.Render("(no session selected)"))
		return
	}
	fmt.Fprintln(r.out, r.st.header.Render(fmt.Sprintf("── %s ──", session.DisplayName(sessionID))))
	if len(history) == 0 {
		fmt.Fprintln(r.out, r.st.muted.Render("(no messages yet)"))
		return
	}
	for _, m := range history {
		r.writeMessage(m)
	}
}

// Append prints messages just added to a session.
func (r *TerminalRenderer) Append(_ string, messages ...model.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range messages {
		r.writeMessage(m)
	}
}

// Clear starts a fresh conversation area.
func (r *TerminalRenderer) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, r.st.muted.Render(strings.Repeat("─", ruleWidth)))
}

// Notify prints an inline notice.
func (r *TerminalRenderer) Notify(n view.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.Level == view.LevelError {
		fmt.Fprintln(r.out, r.st.err.Render(n.Text))
		return
	}
	fmt.Fprintln(r.out, r.st.info.Render(n.Text))
}

// Sessions prints a session list, marking current.
func (r *TerminalRenderer) Sessions(title string, sessions []model.SessionInfo, current string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintln(r.out, r.st.header.Render(title))
	if len(sessions) == 0 {
		fmt.Fprintln(r.out, r.st.muted.Render("(none)"))
		return
	}
	for _, s := range sessions {
		line := fmt.Sprintf("  %s  %s", s.ID, s.Name)
		if s.ID == current {
			fmt.Fprintln(r.out, r.st.current.Render("* "+strings.TrimPrefix(line, "  ")))
			continue
		}
		fmt.Fprintln(r.out, line)
	}
}

// Prompt prints the REPL prompt for the given session without a newline.
func (r *TerminalRenderer) Prompt(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	label := "no session"
	if sessionID != "" {
		label = session.DisplayName(sessionID)
	}
	fmt.Fprint(r.out, r.st.prompt.Render(fmt.Sprintf("[%s] > ", label)))
}

// Ask prints a question without a newline.
func (r *TerminalRenderer) Ask(question string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprint(r.out, question)
}

// Println prints plain text.
func (r *TerminalRenderer) Println(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, text)
}

func (r *TerminalRenderer) writeMessage(m model.Message) {
	label := r.st.assistant.Render("Assistant:")
	if m.Role == model.RoleUser {
		label = r.st.user.Render("You:")
	}
	fmt.Fprintf(r.out, "%s %s\n", label, m.Content)
	if m.HasAudio() {
		fmt.Fprintln(r.out, r.st.audio.Render("  ♪ "+m.AudioPath))
	}
}

var _ view.Renderer = (*TerminalRenderer)(nil)
