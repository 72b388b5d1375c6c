// Package chatsocket serves the chat over WebSocket connections.
package chatsocket

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

type conn struct {
	ws           *websocket.Conn
	sessionToken string
}

// SessionManager tracks open chat sockets per user. A user may have several
// tabs open; each socket is keyed by its own connection ID.
type SessionManager struct {
	mu     sync.RWMutex
	active map[string]map[string]conn
}

// NewSessionManager creates a new session manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		active: make(map[string]map[string]conn),
	}
}

// GetActive returns the socket for a user and connection ID.
func (m *SessionManager) GetActive(userID, connID string) *websocket.Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if conns, ok := m.active[userID]; ok {
		return conns[connID].ws
	}
	return nil
}

// Count returns how many sockets userID has open.
func (m *SessionManager) Count(userID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active[userID])
}

// Register adds a socket opened under sessionToken.
func (m *SessionManager) Register(userID, connID, sessionToken string, ws *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.active[userID]; !exists {
		m.active[userID] = make(map[string]conn)
	}
	m.active[userID][connID] = conn{ws: ws, sessionToken: sessionToken}
	slog.Info("Chat socket registered", "user_id", userID, "conn_id", connID)
}

// Unregister removes a socket if it is still the one registered under connID.
func (m *SessionManager) Unregister(userID, connID string, ws *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conns, ok := m.active[userID]; ok {
		if current, exists := conns[connID]; exists && current.ws == ws {
			delete(conns, connID)
			if len(conns) == 0 {
				delete(m.active, userID)
			}
			slog.Info("Chat socket unregistered", "user_id", userID, "conn_id", connID)
		}
	}
}

// CloseSession closes every socket that was opened with sessionToken. It is
// called on sign-out so a revoked session cannot keep chatting.
func (m *SessionManager) CloseSession(userID, sessionToken string) {
	if sessionToken == "" {
		return
	}

	var closing []*websocket.Conn
	m.mu.Lock()
	if conns, ok := m.active[userID]; ok {
		for id, c := range conns {
			if c.sessionToken != sessionToken {
				continue
			}
			closing = append(closing, c.ws)
			delete(conns, id)
			slog.Info("Chat socket closed", "user_id", userID, "conn_id", id)
		}
		if len(conns) == 0 {
			delete(m.active, userID)
		}
	}
	m.mu.Unlock()

	// Close blocks on the closing handshake, so it runs outside the lock.
	for _, ws := range closing {
		go func(ws *websocket.Conn) {
			_ = ws.Close(websocket.StatusPolicyViolation, "signed out")
		}(ws)
	}
}
