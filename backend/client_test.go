package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinex/chatline/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL, 5*time.Second)
	require.NoError(t, err)
	return client
}

func TestClient_Chat(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"reply":"hello back","session_id":"s-1","audio_path":null}`)
	})

	resp, err := client.Chat(context.Background(), ChatRequest{Message: "hello", SessionID: "s-1"})
	require.NoError(t, err)

	assert.Equal(t, "hello back", resp.Reply)
	assert.Equal(t, "s-1", resp.SessionID)
	assert.Empty(t, resp.AudioPath)
	assert.Equal(t, "hello", got["message"])
	assert.Equal(t, "s-1", got["session_id"])
	_, hasTTS := got["tts"]
	assert.False(t, hasTTS, "tts must be omitted unless requested")
}

func TestClient_ChatWithTTS(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body["tts"])
		io.WriteString(w, `{"reply":"spoken","session_id":"s-2","audio_path":"audio/s-2.wav"}`)
	})

	resp, err := client.Chat(context.Background(), ChatRequest{Message: "say it", SessionID: "s-1", TTS: true})
	require.NoError(t, err)
	assert.Equal(t, "s-2", resp.SessionID)
	assert.Equal(t, "audio/s-2.wav", resp.AudioPath)
}

func TestClient_ChatMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing reply", `{"session_id":"s-1"}`},
		{"reply not string", `{"reply":42,"session_id":"s-1"}`},
		{"session id not string", `{"reply":"ok","session_id":7}`},
		{"not json", `<html>oops</html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, tt.body)
			})

			_, err := client.Chat(context.Background(), ChatRequest{Message: "hi", SessionID: "s-1"})
			assert.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}

func TestClient_ChatStatusError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := client.Chat(context.Background(), ChatRequest{Message: "hi", SessionID: "s-1"})
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Equal(t, "boom", statusErr.Body)
}

func TestClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client, err := NewClient(url, time.Second)
	require.NoError(t, err)

	_, err = client.Chat(context.Background(), ChatRequest{Message: "hi", SessionID: "s-1"})
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestClient_ChatBatch(t *testing.T) {
	var got BatchRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat/batch", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		io.WriteString(w, `{"replies":["A","B"],"session_id":"s-1","message_count":2}`)
	})

	resp, err := client.ChatBatch(context.Background(), BatchRequest{Messages: []string{"a", "b"}, SessionID: "s-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, resp.Replies)
	assert.Equal(t, "s-1", resp.SessionID)
	assert.Equal(t, []string{"a", "b"}, got.Messages)
}

func TestClient_ChatBatchMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing replies", `{"session_id":"s-1"}`},
		{"replies not array", `{"replies":"A"}`},
		{"reply not string", `{"replies":["A",1]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, tt.body)
			})

			_, err := client.ChatBatch(context.Background(), BatchRequest{Messages: []string{"a"}, SessionID: "s-1"})
			assert.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}

func TestClient_Sessions(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/sessions", r.URL.Path)
		io.WriteString(w, `[{"id":"s-1","name":"first"},{"id":"s-2","name":null}]`)
	})

	sessions, err := client.Sessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.SessionInfo{{ID: "s-1", Name: "first"}, {ID: "s-2"}}, sessions)
}

func TestClient_History(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat/s 1", r.URL.Path)
		io.WriteString(w, `[
			{"role":"system","content":"prompt"},
			{"role":"user","content":"hi"},
			{"role":"assistant","content":"hello","audio_path":"a.wav"}
		]`)
	})

	history, err := client.History(context.Background(), "s 1")
	require.NoError(t, err)
	assert.Equal(t, []model.Message{
		model.UserMessage("hi"),
		model.AssistantMessage("hello", "a.wav"),
	}, history)
}

func TestClient_HistoryAudioPathType(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{"null", `[{"role":"assistant","content":"x","audio_path":null}]`, "", false},
		{"absent", `[{"role":"assistant","content":"x"}]`, "", false},
		{"number", `[{"role":"assistant","content":"x","audio_path":42}]`, "", true},
		{"object", `[{"role":"assistant","content":"x","audio_path":{"p":"a.wav"}}]`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, tt.body)
			})

			history, err := client.History(context.Background(), "s-1")
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformedResponse)
				return
			}
			require.NoError(t, err)
			require.Len(t, history, 1)
			assert.Equal(t, tt.want, history[0].AudioPath)
		})
	}
}

func TestClient_DeleteSession(t *testing.T) {
	var called bool
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/chat/s-1", r.URL.Path)
		io.WriteString(w, `{"status":"ok"}`)
	})

	require.NoError(t, client.DeleteSession(context.Background(), "s-1"))
	assert.True(t, called)
}

func TestClient_AudioURL(t *testing.T) {
	client, err := NewClient("http://127.0.0.1:8000/", time.Second)
	require.NoError(t, err)

	tests := []struct {
		in   string
		want string
	}{
		{"audio/s-1.wav", "http://127.0.0.1:8000/audio/s-1.wav"},
		{"/static/a.mp3", "http://127.0.0.1:8000/static/a.mp3"},
		{`api\artifacts\a.wav`, "http://127.0.0.1:8000/api/artifacts/a.wav"},
		{"https://cdn.example.com/a.wav", "https://cdn.example.com/a.wav"},
	}
	for _, tt := range tests {
		got, err := client.AudioURL(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err = client.AudioURL("  ")
	assert.Error(t, err)
}

func TestClient_FetchAudio(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/s-1.wav", r.URL.Path)
		w.Write([]byte("RIFF"))
	})

	var buf bytes.Buffer
	n, err := client.FetchAudio(context.Background(), "audio/s-1.wav", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.Equal(t, "RIFF", buf.String())
}

func TestNewClientInvalidURL(t *testing.T) {
	_, err := NewClient("localhost", time.Second)
	assert.Error(t, err)
}
