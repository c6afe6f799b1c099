package backend

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	TTS       bool   `json:"-"` // sent as "tts" only when true
}

// ChatResponse is the decoded body of POST /api/chat.
// SessionID is empty when the backend did not echo one back.
type ChatResponse struct {
	Reply     string
	SessionID string
	AudioPath string
}

// BatchRequest is the body of POST /api/chat/batch.
type BatchRequest struct {
	Messages  []string `json:"messages"`
	SessionID string   `json:"session_id"`
}

// BatchResponse is the decoded body of POST /api/chat/batch.
type BatchResponse struct {
	Replies   []string
	SessionID string
}
