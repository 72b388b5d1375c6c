package identity

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/genie/internal/domain"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "genie_session"

type contextKey int

const (
	userKey contextKey = iota
	adminKey
)

// UserFromContext returns the signed-in user, or nil.
func UserFromContext(ctx context.Context) *domain.User {
	if v, ok := ctx.Value(userKey).(*domain.User); ok {
		return v
	}
	return nil
}

// UserIDFromContext returns the signed-in user's ID, or "".
func UserIDFromContext(ctx context.Context) string {
	if u := UserFromContext(ctx); u != nil {
		return u.UserID
	}
	return ""
}

// IsAdminFromContext reports whether the signed-in user is the administrator.
func IsAdminFromContext(ctx context.Context) bool {
	v, _ := ctx.Value(adminKey).(bool)
	return v
}

// WithUser returns a context carrying user and its admin flag.
func WithUser(ctx context.Context, user *domain.User, isAdmin bool) context.Context {
	ctx = context.WithValue(ctx, userKey, user)
	return context.WithValue(ctx, adminKey, isAdmin)
}

// SetSessionCookie writes the session cookie.
func SetSessionCookie(w http.ResponseWriter, session *domain.Session, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		MaxAge:   int(time.Until(session.ExpiresAt).Seconds()),
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
	})
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
	})
}

// SessionToken returns the session token sent with r, or "".
func SessionToken(r *http.Request) string {
	if c, err := r.Cookie(SessionCookieName); err == nil {
		return c.Value
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

// Middleware resolves the session cookie and stores the user in the request
// context. Requests without a valid session pass through anonymously.
func Middleware(svc *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, err := svc.Authenticate(r.Context(), token)
			if err != nil {
				slog.Error("Failed to authenticate session", "error", err)
				http.Error(w, `{"error":"failed to resolve session"}`, http.StatusInternalServerError)
				return
			}
			if user == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := WithUser(r.Context(), user, svc.IsAdmin(user))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/") ||
		strings.HasPrefix(r.URL.Path, "/ws/") ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}

// RequireUser rejects anonymous requests: API calls get 401, pages are
// redirected to /login.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) == nil {
			if wantsJSON(r) {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects non-administrators: API calls get 401/403, pages are
// redirected to /login or /chat.
func RequireAdmin(next http.Handler) http.Handler {
	return RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAdminFromContext(r.Context()) {
			slog.Warn("Admin access denied", "user_id", UserIDFromContext(r.Context()), "path", r.URL.Path)
			if wantsJSON(r) {
				http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
				return
			}
			http.Redirect(w, r, "/chat", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// RedirectIfSignedIn sends signed-in users away from the login and register pages.
func RedirectIfSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) != nil {
			http.Redirect(w, r, "/chat", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}
