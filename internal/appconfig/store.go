package appconfig

import (
	"log/slog"
	"sync"
)

// DefaultFallbackEndpoint is substituted when the file has no apiEndpoint.
const DefaultFallbackEndpoint = "https://jsonplaceholder.typicode.com/posts"

// Options configures a Store.
type Options struct {
	// Path of the JSON configuration file.
	Path string
	// AlwaysReload re-reads the file on every Get (development mode).
	AlwaysReload bool
	// FallbackEndpoint replaces a missing apiEndpoint. Defaults to DefaultFallbackEndpoint.
	FallbackEndpoint string
	Logger           *slog.Logger
}

// Store caches the single live Configuration.
type Store struct {
	path             string
	alwaysReload     bool
	fallbackEndpoint string
	logger           *slog.Logger

	mu      sync.Mutex
	current *Configuration
	source  Source
}

// NewStore creates a Store. The file is not read until the first Get or Reload.
func NewStore(opts Options) *Store {
	if opts.FallbackEndpoint == "" {
		opts.FallbackEndpoint = DefaultFallbackEndpoint
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Store{
		path:             opts.Path,
		alwaysReload:     opts.AlwaysReload,
		fallbackEndpoint: opts.FallbackEndpoint,
		logger:           opts.Logger.With("component", "appconfig", "path", opts.Path),
	}
}

// Get returns the cached Configuration, loading it on first use. In
// always-reload mode the file is read on every call.
func (s *Store) Get() *Configuration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.alwaysReload || s.current == nil {
		s.replaceLocked(s.load())
	}
	return s.current
}

// Reload re-reads the file and replaces the cached Configuration.
func (s *Store) Reload() *Configuration {
	s.logger.Info("Reloading application configuration")
	res := s.load()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceLocked(res)
	s.logger.Info("Application configuration reloaded", "source", res.source.String())
	return s.current
}

// Endpoint returns the current upstream chat endpoint.
func (s *Store) Endpoint() string {
	return s.Get().APIEndpoint
}

// Source reports where the cached Configuration came from.
func (s *Store) Source() Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) replaceLocked(res loadResult) {
	s.current = res.cfg
	s.source = res.source
}

func (s *Store) load() loadResult {
	res := load(s.path, s.fallbackEndpoint)
	switch res.source {
	case SourceFallback:
		s.logger.Error("Failed to load configuration file, using defaults", "error", res.err)
	case SourcePartial:
		s.logger.Warn("API endpoint is not defined in config, using default", "api_endpoint", s.fallbackEndpoint)
	}
	return res
}
