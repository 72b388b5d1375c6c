package appconfig

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func newTestStore(t *testing.T, path string, alwaysReload bool) *Store {
	t.Helper()
	return NewStore(Options{Path: path, AlwaysReload: alwaysReload, Logger: quietLogger()})
}

func TestStoreGetNeverReturnsEmptyEndpoint(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name  string
		setup func(path string)
	}{
		{name: "missing file", setup: func(string) {}},
		{name: "malformed json", setup: func(p string) { writeConfig(t, p, `{"appName": `) }},
		{name: "wrong shape", setup: func(p string) { writeConfig(t, p, `[1,2,3]`) }},
		{name: "null document", setup: func(p string) { writeConfig(t, p, `null`) }},
		{name: "path is a directory", setup: func(p string) { require.NoError(t, os.Mkdir(p, 0o755)) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".json")
			tt.setup(path)

			store := newTestStore(t, path, false)
			cfg := store.Get()

			require.NotNil(t, cfg)
			assert.Equal(t, DefaultFallbackEndpoint, cfg.APIEndpoint)
			assert.Equal(t, FallbackAppName, cfg.AppName)
			assert.Equal(t, FallbackBotMessage, cfg.DefaultBotMessage)
			assert.Empty(t, cfg.Features)
			assert.Equal(t, SourceFallback, store.Source())
		})
	}
}

func TestStorePartialFallbackKeepsOtherFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.config.json")
	writeConfig(t, path, `{"appName":"X","defaultBotMessage":"Hi"}`)

	store := newTestStore(t, path, false)
	cfg := store.Get()

	assert.Equal(t, "X", cfg.AppName)
	assert.Equal(t, "Hi", cfg.DefaultBotMessage)
	assert.Equal(t, DefaultFallbackEndpoint, cfg.APIEndpoint)
	assert.Equal(t, SourcePartial, store.Source())
}

func TestStoreCustomFallbackEndpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.config.json")
	writeConfig(t, path, `{"appName":"X","apiEndpoint":""}`)

	store := NewStore(Options{Path: path, FallbackEndpoint: "https://fallback.example/chat", Logger: quietLogger()})
	assert.Equal(t, "https://fallback.example/chat", store.Endpoint())
}

func TestStoreFeaturesPassThrough(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.config.json")
	writeConfig(t, path, `{
		"appName": "Genie",
		"apiEndpoint": "https://api.example/chat",
		"defaultBotMessage": "Hello!",
		"features": {"history": true, "limits": {"max": 3}, "beta": ["a", "b"]}
	}`)

	store := newTestStore(t, path, false)
	cfg := store.Get()

	assert.Equal(t, SourceFile, store.Source())
	assert.Equal(t, "https://api.example/chat", cfg.APIEndpoint)
	assert.Equal(t, true, cfg.Features["history"])
	assert.Equal(t, map[string]any{"max": float64(3)}, cfg.Features["limits"])
	assert.Equal(t, []any{"a", "b"}, cfg.Features["beta"])
}

func TestStoreCachesUntilReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.config.json")
	writeConfig(t, path, `{"appName":"First","apiEndpoint":"https://one.example"}`)

	store := newTestStore(t, path, false)
	first := store.Get()
	assert.Equal(t, "First", first.AppName)

	writeConfig(t, path, `{"appName":"Second","apiEndpoint":"https://two.example"}`)

	assert.Same(t, first, store.Get(), "cached instance should be returned without reload")

	reloaded := store.Reload()
	assert.Equal(t, "Second", reloaded.AppName)
	assert.NotSame(t, first, reloaded)
	assert.Same(t, reloaded, store.Get())
	assert.Equal(t, "https://two.example", store.Endpoint())
}

func TestStoreReloadWithoutPriorGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.config.json")
	writeConfig(t, path, `{"appName":"Fresh","apiEndpoint":"https://fresh.example"}`)

	store := newTestStore(t, path, false)
	cfg := store.Reload()

	assert.Equal(t, "Fresh", cfg.AppName)
	assert.Same(t, cfg, store.Get())
}

func TestStoreReloadDegradesToFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.config.json")
	writeConfig(t, path, `{"appName":"Good","apiEndpoint":"https://good.example"}`)

	store := newTestStore(t, path, false)
	require.Equal(t, "Good", store.Get().AppName)

	require.NoError(t, os.Remove(path))
	cfg := store.Reload()

	assert.Equal(t, FallbackAppName, cfg.AppName)
	assert.Equal(t, DefaultFallbackEndpoint, cfg.APIEndpoint)
}

func TestStoreAlwaysReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.config.json")
	writeConfig(t, path, `{"appName":"First","apiEndpoint":"https://one.example"}`)

	store := newTestStore(t, path, true)
	assert.Equal(t, "First", store.Get().AppName)

	writeConfig(t, path, `{"appName":"Second","apiEndpoint":"https://two.example"}`)
	assert.Equal(t, "Second", store.Get().AppName)
}

func TestReadFileIsStrict(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadFile(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.json")
	writeConfig(t, bad, `{`)
	_, err = ReadFile(bad)
	require.Error(t, err)

	good := filepath.Join(dir, "good.json")
	writeConfig(t, good, `{"appName":"Genie"}`)
	cfg, err := ReadFile(good)
	require.NoError(t, err)
	assert.Empty(t, cfg.APIEndpoint, "strict read must not substitute defaults")
}

func TestSourceString(t *testing.T) {
	assert.Equal(t, "file", SourceFile.String())
	assert.Equal(t, "partial", SourcePartial.String())
	assert.Equal(t, "fallback", SourceFallback.String())
	assert.Equal(t, "Source(9)", Source(9).String())
}

func TestStoreWatchReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.config.json")
	writeConfig(t, path, `{"appName":"Before","apiEndpoint":"https://before.example"}`)

	store := newTestStore(t, path, false)
	require.Equal(t, "Before", store.Get().AppName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, store.Watch(ctx, 20*time.Millisecond))

	writeConfig(t, path, `{"appName":"After","apiEndpoint":"https://after.example"}`)

	assert.Eventually(t, func() bool {
		return store.Get().AppName == "After"
	}, 3*time.Second, 20*time.Millisecond)
}
