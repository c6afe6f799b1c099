package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/richinex/chatline/model"
	"github.com/richinex/chatline/view"
)

func TestTerminalRendererRender(t *testing.T) {
	var out bytes.Buffer
	r := NewTerminalRenderer(&out)

	r.Render("20251018T120000_session-0123456789ab", []model.Message{
		model.UserMessage("hi"),
		model.AssistantMessage("hello", "audio/r1.wav"),
	})

	got := out.String()
	for _, want := range []string{"2025-10-18 12:00:00", "You:", "hi", "Assistant:", "hello", "audio/r1.wav"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, got)
		}
	}
}

func TestTerminalRendererEmptyStates(t *testing.T) {
	var out bytes.Buffer
	r := NewTerminalRenderer(&out)

	r.Render("", nil)
	r.Render("abc", nil)

	got := out.String()
	if !strings.Contains(got, "(no session selected)") {
		t.Errorf("expected no-session marker, got:\n%s", got)
	}
	if !strings.Contains(got, "(no messages yet)") {
		t.Errorf("expected empty-history marker, got:\n%s", got)
	}
}

func TestTerminalRendererNotifyAndAppend(t *testing.T) {
	var out bytes.Buffer
	r := NewTerminalRenderer(&out)

	r.Append("abc", model.UserMessage("question"))
	r.Notify(view.Notice{Level: view.LevelError, Text: "Error: could not connect to the server."})
	r.Notify(view.Notice{Level: view.LevelInfo, Text: "Sending 3 messages..."})

	got := out.String()
	for _, want := range []string{"question", "could not connect", "Sending 3 messages..."} {
		if !strings.Contains(got, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, got)
		}
	}
}

func TestTerminalRendererSessions(t *testing.T) {
	var out bytes.Buffer
	r := NewTerminalRenderer(&out)

	r.Sessions("Local sessions", []model.SessionInfo{
		{ID: "s1", Name: "first"},
		{ID: "s2", Name: "second"},
	}, "s2")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected title plus two rows, got %d lines:\n%s", len(lines), out.String())
	}
	if strings.Contains(lines[1], "*") {
		t.Errorf("non-current row should not be marked: %q", lines[1])
	}
	if !strings.Contains(lines[2], "* s2") {
		t.Errorf("expected current row marked, got %q", lines[2])
	}
}
