package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/genie/internal/domain"
	"github.com/ashureev/genie/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIterations = 1000

func newTestService(t *testing.T) (*Service, store.Repository) {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "genie.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	svc := NewService(repo, Options{
		AdminEmail:     "admin@genie.com",
		SessionTTL:     time.Hour,
		HashIterations: testIterations,
	})
	return svc, repo
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret!", testIterations)
	require.NoError(t, err)

	assert.True(t, VerifyPassword(hash, "s3cret!"))
	assert.False(t, VerifyPassword(hash, "s3cret"))
	assert.False(t, VerifyPassword("plaintext", "plaintext"))
	assert.False(t, VerifyPassword("pbkdf2-sha256$x$aa$bb", "x"))

	other, err := HashPassword("s3cret!", testIterations)
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "salts should differ")
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "not-an-email", "password")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = svc.Register(ctx, "ada@example.com", "short")
	assert.ErrorIs(t, err, ErrWeakPassword)

	user, err := svc.Register(ctx, " Ada@Example.com ", "password")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)

	_, err = svc.Register(ctx, "ada@example.com", "password2")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLoginAndAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "ada@example.com", "password")
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody@example.com", "password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	user, session, err := svc.Login(ctx, "ADA@example.com", "password")
	require.NoError(t, err)
	assert.Len(t, session.Token, 64)

	got, err := svc.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, user.UserID, got.UserID)

	require.NoError(t, svc.Logout(ctx, session.Token))
	got, err = svc.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLoginUnknownEmailStillHashes(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "ada@example.com", "password")
	require.NoError(t, err)

	var checked []string
	svc.verify = func(encoded, password string) bool {
		checked = append(checked, encoded)
		return VerifyPassword(encoded, password)
	}

	_, _, err = svc.Login(ctx, "nobody@example.com", "password")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "ghost@example.com", "password")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	require.Len(t, checked, 2)
	assert.True(t, strings.HasPrefix(checked[0], "pbkdf2-sha256$"+strconv.Itoa(testIterations)+"$"), checked[0])
	assert.Equal(t, checked[0], checked[1], "the throwaway hash is computed once")

	_, _, err = svc.Login(ctx, "ada@example.com", "password")
	require.NoError(t, err)
	assert.Len(t, checked, 3)
}

func TestAuthenticateRejectsExpiredAndBogusTokens(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "ada@example.com", "password")
	require.NoError(t, err)
	session, err := svc.StartSession(ctx, user)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	got, err := svc.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	assert.Nil(t, got)

	stored, err := repo.GetSession(ctx, session.Token)
	require.NoError(t, err)
	assert.Nil(t, stored, "expired session should be deleted")

	got, err = svc.Authenticate(ctx, "not-hex")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestIsAdmin(t *testing.T) {
	svc, _ := newTestService(t)
	assert.True(t, svc.IsAdmin(&domain.User{Email: "admin@genie.com"}))
	assert.False(t, svc.IsAdmin(&domain.User{Email: "ada@example.com"}))
}

func TestMiddlewareAndGuards(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "ada@example.com", "password")
	require.NoError(t, err)
	_, userSession, err := svc.Login(ctx, "ada@example.com", "password")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "admin@genie.com", "password")
	require.NoError(t, err)
	_, adminSession, err := svc.Login(ctx, "admin@genie.com", "password")
	require.NoError(t, err)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	mux := http.NewServeMux()
	mux.Handle("/chat", RequireUser(ok))
	mux.Handle("/admin", RequireAdmin(ok))
	mux.Handle("/api/admin/config", RequireAdmin(ok))
	mux.Handle("/login", RedirectIfSignedIn(ok))
	handler := Middleware(svc)(mux)

	tests := []struct {
		name     string
		path     string
		token    string
		wantCode int
		wantLoc  string
	}{
		{name: "anonymous chat page", path: "/chat", wantCode: http.StatusFound, wantLoc: "/login"},
		{name: "anonymous admin api", path: "/api/admin/config", wantCode: http.StatusUnauthorized},
		{name: "user chat page", path: "/chat", token: userSession.Token, wantCode: http.StatusNoContent},
		{name: "user admin page", path: "/admin", token: userSession.Token, wantCode: http.StatusFound, wantLoc: "/chat"},
		{name: "user admin api", path: "/api/admin/config", token: userSession.Token, wantCode: http.StatusForbidden},
		{name: "admin page", path: "/admin", token: adminSession.Token, wantCode: http.StatusNoContent},
		{name: "signed in login page", path: "/login", token: userSession.Token, wantCode: http.StatusFound, wantLoc: "/chat"},
		{name: "anonymous login page", path: "/login", wantCode: http.StatusNoContent},
		{name: "stale cookie is anonymous", path: "/chat", token: "deadbeef", wantCode: http.StatusFound, wantLoc: "/login"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: tt.token})
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantLoc != "" {
				assert.Equal(t, tt.wantLoc, rec.Header().Get("Location"))
			}
		})
	}
}

func TestSessionTokenFromBearerHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer abc123")
	assert.Equal(t, "abc123", SessionToken(req))
}

func TestSweepExpiredSessions(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "ada@example.com", "password")
	require.NoError(t, err)
	_, err = svc.StartSession(ctx, user)
	require.NoError(t, err)

	assert.Equal(t, int64(0), sweepExpiredSessions(ctx, repo, time.Now()))
	assert.Equal(t, int64(1), sweepExpiredSessions(ctx, repo, time.Now().Add(2*time.Hour)))
}
