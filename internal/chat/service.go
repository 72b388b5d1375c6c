// Package chat ties the message relay to per-user rate limiting and history.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/genie/internal/domain"
	"github.com/ashureev/genie/internal/relay"
	"github.com/ashureev/genie/internal/store"
)

// ErrRateLimited is returned when a user sends messages too quickly.
var ErrRateLimited = errors.New("You are sending messages too quickly. Please wait a moment.") //nolint:staticcheck // shown to users verbatim

// DefaultHistoryLimit bounds how many messages History returns.
const DefaultHistoryLimit = 100

// Sender forwards one message upstream.
type Sender interface {
	Send(ctx context.Context, userInput string) (*relay.Result, error)
}

// Service handles chat messages for signed-in users.
type Service struct {
	sender  Sender
	repo    store.Repository
	limiter *RateLimiter
	logger  *slog.Logger
}

// NewService creates a chat service. limiter may be nil to disable throttling.
func NewService(sender Sender, repo store.Repository, limiter *RateLimiter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{sender: sender, repo: repo, limiter: limiter, logger: logger}
}

// Send relays text for userID and records both sides of the exchange.
func (s *Service) Send(ctx context.Context, userID, text string) (*relay.Result, error) {
	// Blank input never reaches the limiter, so it costs no tokens.
	if strings.TrimSpace(text) == "" {
		return nil, relay.ErrEmptyInput
	}
	if s.limiter != nil && !s.limiter.Allow(userID) {
		s.logger.Warn("Chat rate limit exceeded", "user_id", userID)
		return nil, ErrRateLimited
	}

	res, err := s.sender.Send(ctx, text)
	if errors.Is(err, relay.ErrEmptyInput) {
		return nil, err
	}

	s.record(ctx, &domain.ChatMessage{UserID: userID, Role: domain.RoleUser, Content: text})
	if err != nil {
		s.record(ctx, &domain.ChatMessage{UserID: userID, Role: domain.RoleError, Content: err.Error()})
		return nil, err
	}

	reply := &domain.ChatMessage{UserID: userID, Role: domain.RoleBot, Content: res.Message}
	if res.Data != nil {
		if data, mErr := json.Marshal(res.Data); mErr == nil {
			reply.DataJSON = string(data)
		}
	}
	s.record(ctx, reply)
	return res, nil
}

// HistoryEntry is a stored message ready for display.
type HistoryEntry struct {
	*domain.ChatMessage
	Data json.RawMessage `json:"data,omitempty"`
}

// History returns the user's most recent messages, oldest first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 || limit > DefaultHistoryLimit {
		limit = DefaultHistoryLimit
	}
	msgs, err := s.repo.ListMessages(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]HistoryEntry, 0, len(msgs))
	for _, m := range msgs {
		entry := HistoryEntry{ChatMessage: m}
		if m.DataJSON != "" {
			entry.Data = json.RawMessage(m.DataJSON)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ClearHistory deletes the user's messages.
func (s *Service) ClearHistory(ctx context.Context, userID string) (int64, error) {
	return s.repo.DeleteMessages(ctx, userID)
}

// StartLimiterEviction periodically drops idle rate limiters until ctx is done.
func (s *Service) StartLimiterEviction(ctx context.Context, interval time.Duration) {
	if s.limiter == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				if n := s.limiter.Evict(now); n > 0 {
					s.logger.Debug("Evicted idle chat rate limiters", "count", n)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// record persists msg. History is best-effort and never fails a chat.
func (s *Service) record(ctx context.Context, msg *domain.ChatMessage) {
	if s.repo == nil {
		return
	}
	if err := s.repo.AppendMessage(context.WithoutCancel(ctx), msg); err != nil {
		s.logger.Warn("Failed to record chat message", "user_id", msg.UserID, "role", msg.Role, "error", err)
	}
}
