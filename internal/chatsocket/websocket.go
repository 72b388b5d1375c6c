package chatsocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/genie/internal/api"
	"github.com/ashureev/genie/internal/appconfig"
	"github.com/ashureev/genie/internal/chat"
	"github.com/ashureev/genie/internal/identity"
	"github.com/ashureev/genie/internal/store"
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

const (
	maxFrameSize = 64 << 10
	writeTimeout = 10 * time.Second
)

// ConfigSource provides the greeting sent when a socket opens.
type ConfigSource interface {
	Get() *appconfig.Configuration
}

// Handler upgrades signed-in requests to a chat socket.
type Handler struct {
	chat          *chat.Service
	config        ConfigSource
	repo          store.Repository
	sm             *SessionManager
	allowedOrigins []string
}

// NewHandler creates a WebSocket chat handler. allowedOrigins is the same
// list the CORS middleware uses. repo may be nil, in which case last-seen
// timestamps are not updated.
func NewHandler(svc *chat.Service, config ConfigSource, repo store.Repository, sm *SessionManager, allowedOrigins []string) *Handler {
	return &Handler{
		chat:           svc,
		config:         config,
		repo:           repo,
		sm:             sm,
		allowedOrigins: allowedOrigins,
	}
}

// inFrame is a client-to-server frame.
type inFrame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// outFrame is a server-to-client frame.
type outFrame struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Status  int    `json:"status,omitempty"`
}

// ServeHTTP implements http.Handler for the WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	slog.Info("Chat socket request", "user_id", userID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "chat ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()
	ws.SetReadLimit(maxFrameSize)

	connID := uuid.NewString()
	h.sm.Register(userID, connID, identity.SessionToken(r), ws)
	defer h.sm.Unregister(userID, connID, ws)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	welcome := outFrame{Type: "welcome"}
	if cfg := h.config.Get(); cfg != nil {
		welcome.Message = cfg.DefaultBotMessage
	}
	if err := h.writeJSON(ctx, ws, welcome); err != nil {
		slog.Debug("Failed to send welcome", "error", err, "user_id", userID)
		return
	}

	h.readLoop(ctx, ws, userID)
	slog.Info("Chat socket ended", "user_id", userID, "conn_id", connID)
}

// checkOrigin accepts requests without an Origin, same-host pages and the
// configured origins.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if origin == "http://"+r.Host || origin == "https://"+r.Host {
		return true
	}
	for _, o := range h.allowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigins)
	return false
}

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, userID string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "user_id", userID)
			} else if ctx.Err() == nil {
				slog.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var msg inFrame
		if err := json.Unmarshal(data, &msg); err != nil {
			if err := h.writeJSON(ctx, ws, outFrame{Type: "error", Error: "invalid frame", Status: http.StatusBadRequest}); err != nil {
				return
			}
			continue
		}

		var reply outFrame
		switch msg.Type {
		case "message":
			reply = h.handleMessage(ctx, userID, msg.Content)
			h.touch(userID)
		case "ping":
			reply = outFrame{Type: "pong"}
		default:
			reply = outFrame{Type: "error", Error: "unsupported frame type", Status: http.StatusBadRequest}
		}

		if err := h.writeJSON(ctx, ws, reply); err != nil {
			slog.Debug("Failed to write frame", "error", err, "user_id", userID, "type", reply.Type)
			return
		}
	}
}

func (h *Handler) handleMessage(ctx context.Context, userID, content string) outFrame {
	res, err := h.chat.Send(ctx, userID, content)
	if err != nil {
		status, text := api.ChatErrorStatus(err)
		return outFrame{Type: "error", Error: text, Status: status}
	}
	return outFrame{Type: "reply", Message: res.Message, Data: res.Data}
}

// touch updates the user's last-seen time without holding up the socket.
func (h *Handler) touch(userID string) {
	if h.repo == nil {
		return
	}
	go func() {
		updateCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.repo.UpdateLastSeen(updateCtx, userID, time.Now()); err != nil {
			slog.Warn("Failed to update last seen", "error", err)
		}
	}()
}

func (h *Handler) writeJSON(ctx context.Context, ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(writeCtx, websocket.MessageText, data)
}
