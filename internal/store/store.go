// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/genie/internal/domain"
)

// ErrDuplicateEmail is returned when creating a user whose email is taken.
var ErrDuplicateEmail = errors.New("email already registered")

// Repository defines the interface for persisting users, sessions and chat history.
type Repository interface {
	// CreateUser inserts a new user. Returns ErrDuplicateEmail if the email exists.
	CreateUser(ctx context.Context, user *domain.User) error

	// GetUser retrieves a user by ID. Returns nil, nil if not found.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// GetUserByEmail retrieves a user by normalized email. Returns nil, nil if not found.
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// CreateSession stores a new sign-in session.
	CreateSession(ctx context.Context, session *domain.Session) error

	// GetSession retrieves a session by token. Returns nil, nil if not found.
	GetSession(ctx context.Context, token string) (*domain.Session, error)

	// DeleteSession removes a session.
	DeleteSession(ctx context.Context, token string) error

	// DeleteExpiredSessions removes sessions that expired before now.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	// AppendMessage records a chat message, assigning an ID if empty.
	AppendMessage(ctx context.Context, msg *domain.ChatMessage) error

	// ListMessages returns up to limit most recent messages, oldest first.
	ListMessages(ctx context.Context, userID string, limit int) ([]*domain.ChatMessage, error)

	// DeleteMessages clears a user's chat history.
	DeleteMessages(ctx context.Context, userID string) (int64, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
