package domain

import (
	"time"
)

// MessageRole identifies who produced a chat message.
type MessageRole string

const (
	// RoleUser is text typed by the user.
	RoleUser MessageRole = "user"
	// RoleBot is a reply derived from the upstream endpoint.
	RoleBot MessageRole = "bot"
	// RoleError is a failure shown in place of a reply.
	RoleError MessageRole = "error"
)

// ChatMessage is one persisted entry of a user's chat history.
type ChatMessage struct {
	ID        string      `json:"id"`
	UserID    string      `json:"-"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	DataJSON  string      `json:"-"`
	CreatedAt time.Time   `json:"created_at"`
}
