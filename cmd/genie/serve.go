package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/genie/internal/api"
	"github.com/ashureev/genie/internal/appconfig"
	"github.com/ashureev/genie/internal/chat"
	"github.com/ashureev/genie/internal/chatsocket"
	"github.com/ashureev/genie/internal/config"
	"github.com/ashureev/genie/internal/identity"
	"github.com/ashureev/genie/internal/middleware"
	"github.com/ashureev/genie/internal/relay"
	"github.com/ashureev/genie/internal/store"
	"github.com/ashureev/genie/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/urfave/cli/v3"
)

const (
	limiterEvictionInterval = 5 * time.Minute
	shutdownTimeout         = 10 * time.Second
)

var serveCmd = &cli.Command{
	Name:   "serve",
	Usage:  "Start the web server",
	Action: serveAction,
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := loadEnv(cmd)
	if err != nil {
		return exitf("failed to load configuration: %v", err)
	}

	logger.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "version", Version)

	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		return exitf("failed to start: %v", err)
	}
	defer app.Close()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      app.Handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // WebSocket chats are long-lived
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return exitf("server failed: %v", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return exitf("server forced to shutdown: %v", err)
	}

	logger.Info("Server stopped successfully")
	return nil
}

// application holds the wired dependencies behind the HTTP handler.
type application struct {
	Handler   http.Handler
	Repo      store.Repository
	AppConfig *appconfig.Store
	Sockets   *chatsocket.SessionManager
}

// newApplication wires storage, services and routes. Background workers
// stop when ctx is done.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := repo.Ping(ctx); err != nil {
		_ = repo.Close()
		return nil, err
	}
	logger.Info("Database connected", "path", cfg.DBPath)

	appCfg := appconfig.NewStore(appconfig.Options{
		Path:             cfg.AppConfig.Path,
		AlwaysReload:     cfg.IsDevelopment(),
		FallbackEndpoint: cfg.AppConfig.FallbackEndpoint,
		Logger:           logger,
	})
	initial := appCfg.Get()
	logger.Info("App config loaded", "app_name", initial.AppName, "source", appCfg.Source().String(), "always_reload", cfg.IsDevelopment())

	if cfg.AppConfig.Watch && !cfg.IsDevelopment() {
		if err := appCfg.Watch(ctx, appconfig.DefaultWatchDebounce); err != nil {
			logger.Warn("App config watch disabled", "error", err)
		}
	}

	idSvc := identity.NewService(repo, identity.Options{
		AdminEmail:     cfg.Admin.Email,
		SessionTTL:     cfg.SessionTTL,
		HashIterations: cfg.Admin.HashIterations,
	})

	rel := relay.New(appCfg,
		relay.WithUserID(cfg.Relay.UserID),
		relay.WithLogger(logger),
	)
	limiter := chat.NewRateLimiter(cfg.Relay.RateLimit, cfg.Relay.RateBurst)
	chatSvc := chat.NewService(rel, repo, limiter, logger.With("component", "chat"))

	origins := middleware.AllowedOrigins(cfg.FrontendURL, cfg.IsDevelopment())
	sockets := chatsocket.NewSessionManager()
	wsHandler := chatsocket.NewHandler(chatSvc, appCfg, repo, sockets, origins)

	authHandler := api.NewAuthHandler(idSvc, cfg.SecureCookies())
	authHandler.OnSignOut(sockets.CloseSession)

	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(origins))
	r.Use(identity.Middleware(idSvc))

	api.NewHealthHandler(repo).RegisterRoutes(r)
	api.NewConfigHandler(appCfg).RegisterRoutes(r)
	authHandler.RegisterRoutes(r)
	api.NewChatHandler(chatSvc).RegisterRoutes(r)

	// WebSocket endpoint.
	r.With(identity.RequireUser).Get("/ws/chat", wsHandler.ServeHTTP)

	// Guarded pages and the embedded frontend.
	web.RegisterPages(r)

	identity.StartSessionSweeper(ctx, repo, 0)
	chatSvc.StartLimiterEviction(ctx, limiterEvictionInterval)

	return &application{
		Handler:   r,
		Repo:      repo,
		AppConfig: appCfg,
		Sockets:   sockets,
	}, nil
}

// Close releases the database.
func (a *application) Close() {
	if err := a.Repo.Close(); err != nil {
		slog.Error("Failed to close repository", "error", err)
	}
}
