package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/genie/internal/appconfig"
	"github.com/ashureev/genie/internal/chat"
	"github.com/ashureev/genie/internal/identity"
	"github.com/ashureev/genie/internal/relay"
	"github.com/ashureev/genie/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

// testEnv wires the API handlers against a temp database, a temp config
// file and a fake upstream.
type testEnv struct {
	t          *testing.T
	router     http.Handler
	configPath string
	config     *appconfig.Store
	identity   *identity.Service
	auth       *AuthHandler
	upstream   *httptest.Server
	upstreamFn http.HandlerFunc
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{t: t}
	env.upstreamFn = func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	}
	env.upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.upstreamFn(w, r)
	}))
	t.Cleanup(env.upstream.Close)

	dir := t.TempDir()
	env.configPath = filepath.Join(dir, "app.config.json")
	env.writeConfig(`{"appName":"Genie","apiEndpoint":"` + env.upstream.URL + `","defaultBotMessage":"Hi there"}`)
	env.config = appconfig.NewStore(appconfig.Options{Path: env.configPath, Logger: quietLogger()})

	repo, err := store.NewSQLite(filepath.Join(dir, "genie.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	env.identity = identity.NewService(repo, identity.Options{
		AdminEmail:     "admin@genie.com",
		SessionTTL:     time.Hour,
		HashIterations: 1000,
	})
	chatSvc := chat.NewService(relay.New(env.config, relay.WithLogger(quietLogger())), repo, nil, quietLogger())

	r := chi.NewRouter()
	r.Use(identity.Middleware(env.identity))
	NewHealthHandler(repo).RegisterRoutes(r)
	NewConfigHandler(env.config).RegisterRoutes(r)
	env.auth = NewAuthHandler(env.identity, false)
	env.auth.RegisterRoutes(r)
	NewChatHandler(chatSvc).RegisterRoutes(r)
	env.router = r
	return env
}

func (e *testEnv) writeConfig(body string) {
	e.t.Helper()
	require.NoError(e.t, os.WriteFile(e.configPath, []byte(body), 0o644))
}

// signIn registers email and returns its session cookie.
func (e *testEnv) signIn(email string) *http.Cookie {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/auth/register", `{"email":"`+email+`","password":"password"}`, nil)
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	for _, c := range rec.Result().Cookies() {
		if c.Name == identity.SessionCookieName {
			return c
		}
	}
	e.t.Fatal("register did not set a session cookie")
	return nil
}

func (e *testEnv) do(method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	e.t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr).WithContext(context.Background())
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}
