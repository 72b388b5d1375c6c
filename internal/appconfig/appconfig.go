// Package appconfig owns the application Configuration read from a JSON file.
//
// A Store keeps exactly one live Configuration. Loads never fail from the
// caller's point of view: I/O and parse errors are logged and replaced by a
// fallback value, so the chat screen is never blocked by a bad file.
package appconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

const (
	// FallbackAppName is used when the file cannot be loaded.
	FallbackAppName = "Genie (Default)"
	// FallbackBotMessage is used when the file cannot be loaded.
	FallbackBotMessage = "Welcome to Genie! Configuration could not be loaded."
)

// Configuration is the application's runtime settings record.
type Configuration struct {
	AppName           string         `json:"appName"`
	APIEndpoint       string         `json:"apiEndpoint"`
	DefaultBotMessage string         `json:"defaultBotMessage"`
	Features          map[string]any `json:"features,omitzero"`
}

// Source tells where a loaded Configuration came from.
type Source int

const (
	// SourceFile means every field came from the file.
	SourceFile Source = iota
	// SourcePartial means the file parsed but apiEndpoint was substituted.
	SourcePartial
	// SourceFallback means the file could not be read or parsed.
	SourceFallback
)

func (s Source) String() string {
	switch s {
	case SourceFile:
		return "file"
	case SourcePartial:
		return "partial"
	case SourceFallback:
		return "fallback"
	default:
		return fmt.Sprintf("Source(%d)", int(s))
	}
}

var errNullDocument = errors.New("config document is null")

// ReadFile strictly reads and parses a configuration file. Unlike Store it
// reports errors and does not substitute any defaults.
func ReadFile(path string) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a configuration document.
func Parse(data []byte) (*Configuration, error) {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil, errNullDocument
	}
	var cfg Configuration
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return &cfg, nil
}

// Fallback returns the configuration used when the file cannot be loaded.
func Fallback(endpoint string) *Configuration {
	return &Configuration{
		AppName:           FallbackAppName,
		APIEndpoint:       endpoint,
		DefaultBotMessage: FallbackBotMessage,
		Features:          map[string]any{},
	}
}

// loadResult is a tagged load outcome; err is set only for SourceFallback.
type loadResult struct {
	cfg    *Configuration
	source Source
	err    error
}

func load(path, fallbackEndpoint string) loadResult {
	cfg, err := ReadFile(path)
	if err != nil {
		return loadResult{cfg: Fallback(fallbackEndpoint), source: SourceFallback, err: err}
	}
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = fallbackEndpoint
		return loadResult{cfg: cfg, source: SourcePartial}
	}
	return loadResult{cfg: cfg, source: SourceFile}
}
