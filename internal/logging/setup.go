// Package logging builds the slog handlers used by the server and CLI.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// NewHandler returns a JSON or text handler for the given format and level.
func NewHandler(format, level string, w io.Writer) slog.Handler {
	if strings.EqualFold(format, "text") {
		return TextHandler(level, w)
	}
	return JSONHandler(level, w)
}

// TextHandler returns a human-readable handler backed by charmbracelet/log.
func TextHandler(level string, w io.Writer) slog.Handler {
	if w == nil {
		w = os.Stderr
	}

	reportTimestamp := true
	lvl := log.InfoLevel
	switch strings.ToLower(level) {
	case "debug":
		lvl = log.DebugLevel
	case "warn", "warning":
		lvl = log.WarnLevel
	case "error":
		lvl = log.ErrorLevel
	case "quiet":
		reportTimestamp = false
		lvl = log.ErrorLevel
	}

	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: reportTimestamp,
		Level:           lvl,
	})
}

// JSONHandler returns a structured JSON handler.
func JSONHandler(level string, w io.Writer) slog.Handler {
	if w == nil {
		w = os.Stdout
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "quiet":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup installs a handler as the process default and returns the logger.
func Setup(format, level string) *slog.Logger {
	logger := slog.New(NewHandler(format, level, nil))
	slog.SetDefault(logger)
	return logger
}
