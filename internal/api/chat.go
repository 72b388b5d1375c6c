package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ashureev/genie/internal/chat"
	"github.com/ashureev/genie/internal/identity"
	"github.com/ashureev/genie/internal/relay"
	"github.com/go-chi/chi/v5"
)

// ChatHandler handles chat messages over plain HTTP.
type ChatHandler struct {
	chat *chat.Service
}

// NewChatHandler creates a chat handler.
func NewChatHandler(svc *chat.Service) *ChatHandler {
	return &ChatHandler{chat: svc}
}

type chatRequest struct {
	Message string `json:"message"`
}

// RegisterRoutes registers chat routes. All require a signed-in user.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/chat", func(r chi.Router) {
		r.Use(identity.RequireUser)
		r.Post("/", h.Send)
		r.Get("/history", h.History)
		r.Delete("/history", h.ClearHistory)
	})
}

// Send forwards one message upstream and returns the normalized result.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())

	var req chatRequest
	if !decodeBody(w, r, &req) {
		return
	}

	slog.Info("Chat request", "user_id", userID, "message_len", len(req.Message))

	res, err := h.chat.Send(r.Context(), userID, req.Message)
	if err != nil {
		status, msg := ChatErrorStatus(err)
		Error(w, status, msg)
		return
	}
	JSON(w, http.StatusOK, res)
}

// History returns the signed-in user's recent messages.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	entries, err := h.chat.History(r.Context(), userID, limit)
	if err != nil {
		slog.Error("Failed to load chat history", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"messages": entries})
}

// ClearHistory deletes the signed-in user's messages.
func (h *ChatHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	n, err := h.chat.ClearHistory(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to clear chat history", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to clear history")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"deleted": n})
}

// ChatErrorStatus maps a chat failure to an HTTP status and a user-facing message.
func ChatErrorStatus(err error) (int, string) {
	var reqErr *relay.RequestError
	switch {
	case errors.Is(err, relay.ErrEmptyInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, chat.ErrRateLimited):
		return http.StatusTooManyRequests, err.Error()
	case errors.As(err, &reqErr):
		return http.StatusBadGateway, reqErr.Message
	default:
		slog.Error("Unexpected chat failure", "error", err)
		return http.StatusInternalServerError, relay.GenericFailureMessage
	}
}
