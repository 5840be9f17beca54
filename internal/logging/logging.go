// Package logging configures slog for the server. Output always goes to a
// writer other than stdout, which carries the stdio protocol.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// ParseLevel maps debug, info, warn (or warning) and error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// New returns a logger writing to w: JSON when structured, colored text
// otherwise.
func New(w io.Writer, level slog.Level, structured bool) *slog.Logger {
	if structured {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	}))
}

// Setup builds the logger and installs it as the slog default.
func Setup(w io.Writer, level string, structured bool) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger := New(w, lvl, structured).With("service", "confluence-mcp")
	slog.SetDefault(logger)
	return logger, nil
}
