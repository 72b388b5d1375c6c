package api

import (
	"log/slog"
	"net/http"

	"github.com/ashureev/genie/internal/appconfig"
	"github.com/ashureev/genie/internal/identity"
	"github.com/go-chi/chi/v5"
)

// ConfigSource reads and reloads the application configuration.
type ConfigSource interface {
	Get() *appconfig.Configuration
	Reload() *appconfig.Configuration
}

// ConfigHandler exposes the application configuration.
type ConfigHandler struct {
	store ConfigSource
}

// NewConfigHandler creates a config handler.
func NewConfigHandler(store ConfigSource) *ConfigHandler {
	return &ConfigHandler{store: store}
}

// RegisterRoutes registers the public and admin config routes.
func (h *ConfigHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/config", h.GetConfig)
	r.Route("/api/admin/config", func(r chi.Router) {
		r.Use(identity.RequireAdmin)
		r.Get("/", h.GetConfig)
		r.Post("/reload", h.Reload)
	})
}

// GetConfig returns the current configuration.
func (h *ConfigHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.safely(h.store.Get)
	if !ok {
		Error(w, http.StatusInternalServerError, "Failed to load configuration")
		return
	}
	JSON(w, http.StatusOK, cfg)
}

// Reload re-reads the configuration file and returns the new value.
func (h *ConfigHandler) Reload(w http.ResponseWriter, r *http.Request) {
	slog.Info("Admin config reload requested", "user_id", identity.UserIDFromContext(r.Context()))
	cfg, ok := h.safely(h.store.Reload)
	if !ok {
		Error(w, http.StatusInternalServerError, "Failed to reload configuration")
		return
	}
	JSON(w, http.StatusOK, cfg)
}

// safely calls load and converts a panic or nil result into a failure.
// The store never fails by contract; this guards the HTTP boundary anyway.
func (h *ConfigHandler) safely(load func() *appconfig.Configuration) (cfg *appconfig.Configuration, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Failed to get config for API route", "panic", rec)
			cfg, ok = nil, false
		}
	}()
	cfg = load()
	return cfg, cfg != nil
}
