package model

import (
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message represents a committed room message.
type Message struct {
	// Identity
	ID     string `json:"id"`
	RoomID string `json:"room_id"`

	// Content
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// Position within the room, starting at 1.
	Sequence uint64 `json:"sequence"`

	// LLM metadata (assistant messages only)
	Model     *string `json:"model,omitempty"`
	TokensIn  *int    `json:"tokens_in,omitempty"`
	TokensOut *int    `json:"tokens_out,omitempty"`
	LatencyMs *int64  `json:"latency_ms,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Turn is one user message and the assistant reply to it, committed as a
// unit. Title is only used when the commit creates the room.
type Turn struct {
	RoomID    string
	Title     string
	User      *Message
	Assistant *Message
	At        time.Time
}

// ChatRequest is the body of a chat call.
type ChatRequest struct {
	Prompt string `json:"prompt"`
}

// ChatResult is the outcome of a successful chat call.
type ChatResult struct {
	RoomID           string   `json:"room_id"`
	Reply            string   `json:"reply"`
	PromptTruncated  bool     `json:"prompt_truncated"`
	RoomCreated      bool     `json:"room_created,omitempty"`
	UserMessage      *Message `json:"user_message,omitempty"`
	AssistantMessage *Message `json:"assistant_message,omitempty"`
}

// ChatResponse is the HTTP response of a chat call.
type ChatResponse struct {
	RoomID          string `json:"room_id"`
	Reply           string `json:"reply"`
	PromptTruncated bool   `json:"prompt_truncated"`
	Sequence        uint64 `json:"sequence"`
	RoomCreated     bool   `json:"room_created"`
}

// ListMessagesResponse is the response for listing room messages.
type ListMessagesResponse struct {
	RoomID       string    `json:"room_id"`
	Messages     []Message `json:"messages"`
	LastSequence uint64    `json:"last_sequence"`
}

// ErrorEvent is the JSON error body returned to callers.
type ErrorEvent struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after,omitempty"`
}
