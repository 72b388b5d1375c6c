// Package web embeds the frontend (dist/) and serves it as a single-page
// application behind the page route guards.
package web

import (
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ashureev/genie/internal/identity"
	"github.com/go-chi/chi/v5"
)

//go:embed all:dist
var distFS embed.FS

// RegisterPages registers the guarded page routes and the SPA catch-all.
// /chat and /admin need a session, /admin also needs the admin account, and
// signed-in users are sent away from /login and /register.
func RegisterPages(r chi.Router) {
	spa := SPAHandler()

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		if identity.UserFromContext(r.Context()) != nil {
			http.Redirect(w, r, "/chat", http.StatusFound)
			return
		}
		http.Redirect(w, r, "/login", http.StatusFound)
	})
	r.With(identity.RequireUser).Get("/chat", spa.ServeHTTP)
	r.With(identity.RequireAdmin).Get("/admin", spa.ServeHTTP)
	r.With(identity.RedirectIfSignedIn).Get("/login", spa.ServeHTTP)
	r.With(identity.RedirectIfSignedIn).Get("/register", spa.ServeHTTP)
	r.Handle("/*", spa)
}

// SPAHandler returns an http.Handler that serves the embedded frontend.
// It serves static files from dist/, and falls back to index.html for
// any path that doesn't match a file (SPA client-side routing).
func SPAHandler() http.Handler {
	subFS, err := fs.Sub(distFS, "dist")
	if err != nil {
		panic("web: failed to create sub filesystem: " + err.Error())
	}

	fileServer := http.FileServer(http.FS(subFS))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/")
		if path == "" {
			path = "index.html"
		}

		if f, err := subFS.Open(path); err == nil {
			if closeErr := f.Close(); closeErr != nil {
				slog.Debug("web: failed to close embedded file", "path", path, "error", closeErr)
			}
			fileServer.ServeHTTP(w, r)
			return
		}

		// Unknown API paths get a JSON 404 instead of the page.
		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not found"}`))
			return
		}

		r.URL.Path = "/"
		fileServer.ServeHTTP(w, r)
	})
}
