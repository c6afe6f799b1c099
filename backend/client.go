// Package backend is the HTTP client for the chat backend.
//
// Information Hiding:
// - HTTP client implementation details hidden
// - Request/response encoding and shape validation hidden
// - Transport failures normalized into ErrUnreachable, StatusError and ErrMalformedResponse

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/richinex/chatline/model"
)

const maxErrorBody = 512

// Client talks to the chat backend over HTTP/JSON.
type Client struct {
	baseURL *url.URL
	client  *http.Client
	logger  log.FieldLogger
}

// NewClient creates a client for the backend at baseURL with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host required", baseURL)
	}
	return &Client{
		baseURL: u,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: log.StandardLogger(),
	}, nil
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.client = hc
	return c
}

// WithLogger sets the logger used for request tracing.
func (c *Client) WithLogger(logger log.FieldLogger) *Client {
	c.logger = logger
	return c
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Chat sends a single message.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("failed to encode chat request: %w", err)
	}
	if req.TTS {
		body, err = sjson.SetBytes(body, "tts", true)
		if err != nil {
			return ChatResponse{}, fmt.Errorf("failed to encode chat request: %w", err)
		}
	}

	data, err := c.do(ctx, http.MethodPost, "/api/chat", body)
	if err != nil {
		return ChatResponse{}, err
	}

	res := gjson.ParseBytes(data)
	reply := res.Get("reply")
	if reply.Type != gjson.String {
		return ChatResponse{}, malformed("reply must be a string")
	}
	sessionID, err := optionalString(res, "session_id")
	if err != nil {
		return ChatResponse{}, err
	}
	audioPath, err := optionalString(res, "audio_path")
	if err != nil {
		return ChatResponse{}, err
	}

	return ChatResponse{
		Reply:     reply.String(),
		SessionID: sessionID,
		AudioPath: audioPath,
	}, nil
}

// ChatBatch sends several messages in one request.
// The reply list is validated for shape only; matching it against the request is the caller's job.
func (c *Client) ChatBatch(ctx context.Context, req BatchRequest) (BatchResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return BatchResponse{}, fmt.Errorf("failed to encode batch request: %w", err)
	}

	data, err := c.do(ctx, http.MethodPost, "/api/chat/batch", body)
	if err != nil {
		return BatchResponse{}, err
	}

	res := gjson.ParseBytes(data)
	replies := res.Get("replies")
	if !replies.IsArray() {
		return BatchResponse{}, malformed("replies must be an array")
	}

	out := BatchResponse{Replies: []string{}}
	for i, r := range replies.Array() {
		if r.Type != gjson.String {
			return BatchResponse{}, malformed("replies[%d] must be a string", i)
		}
		out.Replies = append(out.Replies, r.String())
	}

	out.SessionID, err = optionalString(res, "session_id")
	if err != nil {
		return BatchResponse{}, err
	}
	return out, nil
}

// Sessions lists the sessions the backend knows about.
func (c *Client) Sessions(ctx context.Context) ([]model.SessionInfo, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/sessions", nil)
	if err != nil {
		return nil, err
	}

	res := gjson.ParseBytes(data)
	if !res.IsArray() {
		return nil, malformed("session list must be an array")
	}

	sessions := []model.SessionInfo{}
	for i, item := range res.Array() {
		id := item.Get("id")
		if id.Type != gjson.String || id.String() == "" {
			return nil, malformed("sessions[%d].id must be a non-empty string", i)
		}
		sessions = append(sessions, model.SessionInfo{
			ID:   id.String(),
			Name: item.Get("name").String(),
		})
	}
	return sessions, nil
}

// History fetches the stored messages of one session.
// Entries with roles other than user and assistant (e.g. system prompts) are skipped.
func (c *Client) History(ctx context.Context, sessionID string) ([]model.Message, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/chat/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return nil, err
	}

	res := gjson.ParseBytes(data)
	if !res.IsArray() {
		return nil, malformed("history must be an array")
	}

	messages := []model.Message{}
	for i, item := range res.Array() {
		role, err := model.ParseRole(item.Get("role").String())
		if err != nil {
			c.logger.WithField("session_id", sessionID).Debugf("skipping history entry %d: %v", i, err)
			continue
		}
		content := item.Get("content")
		if content.Type != gjson.String {
			return nil, malformed("history[%d].content must be a string", i)
		}
		audioPath, err := optionalString(item, "audio_path")
		if err != nil {
			return nil, fmt.Errorf("history[%d]: %w", i, err)
		}
		messages = append(messages, model.Message{
			Role:      role,
			Content:   content.String(),
			AudioPath: audioPath,
		})
	}
	return messages, nil
}

// DeleteSession removes a session on the backend.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/chat/"+url.PathEscape(sessionID), nil)
	return err
}

// AudioURL resolves an audio_path returned by the backend into an absolute URL.
func (c *Client) AudioURL(audioPath string) (string, error) {
	audioPath = strings.ReplaceAll(strings.TrimSpace(audioPath), `\`, "/")
	if audioPath == "" {
		return "", errors.New("empty audio path")
	}
	ref, err := url.Parse(audioPath)
	if err != nil {
		return "", fmt.Errorf("invalid audio path %q: %w", audioPath, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	base := *c.baseURL
	base.Path = strings.TrimRight(base.Path, "/") + "/"
	return base.ResolveReference(&url.URL{Path: strings.TrimLeft(ref.Path, "/")}).String(), nil
}

// FetchAudio downloads the audio artifact at audioPath into w.
func (c *Client) FetchAudio(ctx context.Context, audioPath string, w io.Writer) (int64, error) {
	target, err := c.AudioURL(audioPath)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, c.transportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, statusError(resp, http.MethodGet, target)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to read audio: %w", err)
	}
	return n, nil
}

// do performs a request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	target := c.baseURL.String() + path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, c.transportError(ctx, err)
	}
	defer resp.Body.Close()

	c.logger.WithFields(log.Fields{
		"method":  method,
		"path":    path,
		"status":  resp.StatusCode,
		"latency": time.Since(start).Truncate(time.Millisecond),
	}).Debug("backend request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp, method, path)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %v", ErrUnreachable, err)
	}
	if method != http.MethodDelete && !gjson.ValidBytes(data) {
		return nil, malformed("response is not valid JSON")
	}
	return data, nil
}

func (c *Client) transportError(ctx context.Context, err error) error {
	// Caller cancellation is not a backend failure.
	if ctx.Err() == context.Canceled {
		return ctx.Err()
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

func statusError(resp *http.Response, method, path string) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Method:     method,
		Path:       path,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(data)),
	}
}

// optionalString reads key as a string; absent and null both yield "".
func optionalString(res gjson.Result, key string) (string, error) {
	v := res.Get(key)
	switch v.Type {
	case gjson.Null:
		return "", nil
	case gjson.String:
		return v.String(), nil
	default:
		return "", malformed("%s must be a string", key)
	}
}
