// Package model provides domain types shared across packages.
package model

import (
	"fmt"
	"strings"
)

// Role identifies the author of a message.
type Role string

const (
	// RoleUser marks messages typed by the person at the client.
	RoleUser Role = "user"
	// RoleAssistant marks replies produced by the backend.
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// ParseRole parses a string into a Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user":
		return RoleUser, nil
	case "assistant":
		return RoleAssistant, nil
	default:
		return "", fmt.Errorf("unknown role: %q", s)
	}
}

// Message is one turn in a session.
// AudioPath is only set on assistant replies produced with speech synthesis.
type Message struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	AudioPath string `json:"audio_path,omitempty"`
}

// UserMessage creates a user message.
func UserMessage(content string) Message {
	return Message{
		Role:    RoleUser,
		Content: content,
	}
}

// AssistantMessage creates an assistant message with an optional audio reference.
func AssistantMessage(content, audioPath string) Message {
	return Message{
		Role:      RoleAssistant,
		Content:   content,
		AudioPath: audioPath,
	}
}

// HasAudio reports whether the message references an audio artifact.
func (m Message) HasAudio() bool {
	return m.AudioPath != ""
}

// SessionInfo is the listing entry for a session.
type SessionInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
