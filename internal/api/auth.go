package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/genie/internal/identity"
	"github.com/go-chi/chi/v5"
)

// AuthHandler handles registration, sign-in and sign-out.
type AuthHandler struct {
	svc           *identity.Service
	secureCookies bool
	onSignOut     func(userID, token string)
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(svc *identity.Service, secureCookies bool) *AuthHandler {
	return &AuthHandler{svc: svc, secureCookies: secureCookies}
}

// OnSignOut registers fn to run after a session is ended, for example to
// close sockets opened with it.
func (h *AuthHandler) OnSignOut(fn func(userID, token string)) {
	h.onSignOut = fn
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRoutes registers auth routes.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
	})
	r.With(identity.RequireUser).Get("/api/me", h.Me)
}

// Register creates an account and signs it in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := h.svc.Register(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, identity.ErrInvalidEmail), errors.Is(err, identity.ErrWeakPassword):
		Error(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, identity.ErrEmailTaken):
		Error(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		slog.Error("Failed to register user", "error", err)
		Error(w, http.StatusInternalServerError, "registration failed")
		return
	}

	session, err := h.svc.StartSession(r.Context(), user)
	if err != nil {
		slog.Error("Failed to start session", "error", err, "user_id", user.UserID)
		Error(w, http.StatusInternalServerError, "registration failed")
		return
	}

	slog.Info("User registered", "user_id", user.UserID)
	identity.SetSessionCookie(w, session, h.secureCookies)
	JSON(w, http.StatusCreated, h.profile(user.UserID, user.Email, h.svc.IsAdmin(user), session.ExpiresAt))
}

// Login signs a user in.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decodeBody(w, r, &req) {
		return
	}

	user, session, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, identity.ErrInvalidCredentials) {
		Error(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		slog.Error("Failed to log in", "error", err)
		Error(w, http.StatusInternalServerError, "login failed")
		return
	}

	slog.Info("User logged in", "user_id", user.UserID)
	identity.SetSessionCookie(w, session, h.secureCookies)
	JSON(w, http.StatusOK, h.profile(user.UserID, user.Email, h.svc.IsAdmin(user), session.ExpiresAt))
}

// Logout ends the current session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := identity.SessionToken(r)
	if err := h.svc.Logout(r.Context(), token); err != nil {
		slog.Warn("Failed to delete session", "error", err)
	}
	if userID := identity.UserIDFromContext(r.Context()); userID != "" && h.onSignOut != nil {
		h.onSignOut(userID, token)
	}
	identity.ClearSessionCookie(w, h.secureCookies)
	JSON(w, http.StatusOK, map[string]string{"status": "signed_out"})
}

// Me returns the signed-in user's profile.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := identity.UserFromContext(r.Context())
	JSON(w, http.StatusOK, map[string]interface{}{
		"user_id":      user.UserID,
		"email":        user.Email,
		"display_name": user.DisplayName(),
		"is_admin":     identity.IsAdminFromContext(r.Context()),
	})
}

func (h *AuthHandler) profile(userID, email string, isAdmin bool, expiresAt time.Time) map[string]interface{} {
	return map[string]interface{}{
		"user_id":            userID,
		"email":              email,
		"is_admin":           isAdmin,
		"session_expires_at": expiresAt.UTC().Format(time.RFC3339),
	}
}
