// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging configures the process-wide slog logger.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeranaias/thinkchat/internal/config"
)

// Output selects where log records go.
type Output string

const (
	// ToStderr is used by the line-oriented commands.
	ToStderr Output = "stderr"
	// ToFile is used while the TUI owns the terminal.
	ToFile Output = "file"
	// Discard drops everything.
	Discard Output = "discard"
)

// Setup installs a slog default logger built from cfg and returns the
// closer for any file it opened. The closer is never nil.
func Setup(cfg config.LogConfig, out Output) (io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nopCloser{}, fmt.Errorf("invalid log level: %w", err)
	}

	var (
		writer io.Writer
		closer io.Closer = nopCloser{}
	)
	switch out {
	case ToStderr:
		writer = os.Stderr
	case ToFile:
		if cfg.File == "" {
			return closer, fmt.Errorf("log file path is required when output is 'file'")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return closer, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return closer, fmt.Errorf("failed to open log file: %w", err)
		}
		writer, closer = f, f
	case Discard:
		writer = io.Discard
	default:
		return closer, fmt.Errorf("invalid log output: %s", out)
	}

	handler, err := NewHandler(writer, cfg.Format, level)
	if err != nil {
		closer.Close()
		return nopCloser{}, err
	}
	slog.SetDefault(slog.New(handler))

	slog.Debug("logger initialized", "level", cfg.Level, "format", cfg.Format, "output", string(out))
	return closer, nil
}

// NewHandler builds a text or JSON handler with millisecond timestamps.
func NewHandler(w io.Writer, format string, level slog.Level) (slog.Handler, error) {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.String(slog.TimeKey, a.Value.Time().Format("2006-01-02T15:04:05.000Z07:00"))
			}
			return a
		},
	}

	switch format {
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	case "text", "":
		return slog.NewTextHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}
}

// ParseLevel parses a level name into a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", level)
	}
}

// =============================================================================
// CONTEXT HELPERS
// =============================================================================

type contextKey struct{}

// FromContext returns the logger stored in ctx, or the default logger.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithContext stores logger in ctx.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
