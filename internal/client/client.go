// Package client consumes the chartad streaming chat API.
//
// It sends the full conversation, decodes the line-delimited answer stream,
// and hands frames to the caller in order. Cancellation is driven by the
// request context: cancelling it abandons the in-flight stream.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/chartalabs/chartad/internal/chat"
	api "github.com/chartalabs/chartad/internal/http"
	"github.com/chartalabs/chartad/internal/stream"
)

// Client talks to a chartad server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the server at baseURL, e.g. http://localhost:8787.
// No overall request timeout is set: answer streams are open-ended and are
// bounded by the caller's context instead.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{},
	}
}

// Stream is one in-flight answer stream.
type Stream struct {
	resp    *http.Response
	dec     *stream.Decoder
	sources string
}

// Chat posts the conversation and returns the open answer stream. The caller
// must Close the stream when done. Non-2xx responses are returned as errors
// carrying the server's generic message.
func (c *Client) Chat(ctx context.Context, messages []chat.Message) (*Stream, error) {
	body, err := json.Marshal(api.ChatRequest{Messages: messages})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		var apiErr api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("server error (%d): %s", resp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("server error (%d)", resp.StatusCode)
	}

	return &Stream{
		resp:    resp,
		dec:     stream.NewDecoder(resp.Body),
		sources: resp.Header.Get(api.HeaderRetrievedSections),
	}, nil
}

// Sources returns the sanitized retrieved-section identifier list from the
// response header. Empty when retrieval found nothing.
func (s *Stream) Sources() string {
	return s.sources
}

// Next returns the next frame. io.EOF signals a server that closed the
// stream without a finish frame.
func (s *Stream) Next() (stream.Frame, error) {
	return s.dec.Next()
}

// Close releases the underlying connection.
func (s *Stream) Close() error {
	return s.resp.Body.Close()
}

// Now returns the client-side timestamp attached to outgoing messages.
// Split out for tests.
var Now = func() time.Time { return time.Now().UTC() }

// UserMessage builds a user turn with the current timestamp.
func UserMessage(content string) chat.Message {
	return chat.Message{Role: chat.RoleUser, Content: content, Timestamp: Now()}
}

// AssistantMessage builds an assistant turn with the current timestamp.
func AssistantMessage(content string) chat.Message {
	return chat.Message{Role: chat.RoleAssistant, Content: content, Timestamp: Now()}
}
