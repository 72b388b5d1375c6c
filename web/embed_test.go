package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ashureev/genie/internal/domain"
	"github.com/ashureev/genie/internal/identity"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func pages(user *domain.User, isAdmin bool) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user != nil {
				r = r.WithContext(identity.WithUser(r.Context(), user, isAdmin))
			}
			next.ServeHTTP(w, r)
		})
	})
	RegisterPages(r)
	return r
}

func TestPageGuards(t *testing.T) {
	dana := &domain.User{UserID: "u1", Email: "dana@example.com"}

	tests := []struct {
		name     string
		user     *domain.User
		admin    bool
		path     string
		status   int
		location string
	}{
		{"root anonymous", nil, false, "/", http.StatusFound, "/login"},
		{"root signed in", dana, false, "/", http.StatusFound, "/chat"},
		{"chat anonymous", nil, false, "/chat", http.StatusFound, "/login"},
		{"chat signed in", dana, false, "/chat", http.StatusOK, ""},
		{"admin anonymous", nil, false, "/admin", http.StatusFound, "/login"},
		{"admin non-admin", dana, false, "/admin", http.StatusFound, "/chat"},
		{"admin", dana, true, "/admin", http.StatusOK, ""},
		{"login anonymous", nil, false, "/login", http.StatusOK, ""},
		{"login signed in", dana, false, "/login", http.StatusFound, "/chat"},
		{"register signed in", dana, false, "/register", http.StatusFound, "/chat"},
		{"static asset", nil, false, "/app.js", http.StatusOK, ""},
		{"unknown api path", nil, false, "/api/nope", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			pages(tt.user, tt.admin).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.status, rec.Code)
			if tt.location != "" {
				assert.Equal(t, tt.location, rec.Header().Get("Location"))
			}
		})
	}
}

func TestSPAFallsBackToIndex(t *testing.T) {
	rec := httptest.NewRecorder()
	SPAHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/some/client/route", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<script src="/app.js"></script>`)
}
