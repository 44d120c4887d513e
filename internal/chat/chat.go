// Package chat defines the conversation model shared by the server and client.
//
// A conversation is owned entirely by the client; the server is stateless and
// receives the full ordered message list on every request.
package chat

import (
	"errors"
	"time"
)

// Message roles. These match the roles accepted by chat completion models.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

var (
	// ErrEmptyConversation indicates a conversation with no messages.
	ErrEmptyConversation = errors.New("conversation has no messages")

	// ErrLastNotUser indicates the conversation does not end with a user turn.
	ErrLastNotUser = errors.New("last message must be a user message")

	// ErrInvalidRole indicates a message with an unknown role.
	ErrInvalidRole = errors.New("invalid message role")
)

// Message is a single conversation turn.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Validate checks that a conversation is well formed for a retrieval call:
// non-empty, known roles only, and ending with a user turn.
func Validate(messages []Message) error {
	if len(messages) == 0 {
		return ErrEmptyConversation
	}
	for _, m := range messages {
		switch m.Role {
		case RoleUser, RoleAssistant, RoleSystem:
		default:
			return ErrInvalidRole
		}
	}
	if messages[len(messages)-1].Role != RoleUser {
		return ErrLastNotUser
	}
	return nil
}

// LastUserContent returns the content of the final user message, which is the
// retrieval query for the request. Returns "" for an empty conversation.
func LastUserContent(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
