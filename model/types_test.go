package model

import "testing"

func TestParseRole(t *testing.T) {
	tests := []struct {
		input   string
		want    Role
		wantErr bool
	}{
		{"user", RoleUser, false},
		{"Assistant", RoleAssistant, false},
		{" user ", RoleUser, false},
		{"system", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseRole(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRole(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseRole(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestAssistantMessageAudio(t *testing.T) {
	msg := AssistantMessage("hi", "")
	if msg.HasAudio() {
		t.Error("expected no audio for empty path")
	}

	msg = AssistantMessage("hi", "audio/abc.wav")
	if !msg.HasAudio() {
		t.Error("expected audio reference")
	}
	if msg.Role != RoleAssistant {
		t.Errorf("expected role assistant, got %q", msg.Role)
	}
}
