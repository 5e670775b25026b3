// Package logging builds the process slog.Logger and carries request-scoped
// attributes through contexts.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Format selects the slog handler.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
	FormatTint Format = "tint"
)

// Config controls logger construction.
type Config struct {
	Level  string
	Format string
	// File, when set, sends output to a size-rotated file instead of Writer.
	File       string
	MaxSizeMB  int
	MaxBackups int
	Writer     io.Writer
}

// New creates a logger from cfg. The returned closer releases the log file,
// if any, and is always non-nil.
func New(cfg Config) (*slog.Logger, io.Closer) {
	var writer io.Writer = os.Stdout
	if cfg.Writer != nil {
		writer = cfg.Writer
	}
	var closer io.Closer = nopCloser{}

	if path := strings.TrimSpace(cfg.File); path != "" {
		maxSize := cfg.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 100
		}
		maxBackups := cfg.MaxBackups
		if maxBackups <= 0 {
			maxBackups = 5
		}
		rotator := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSize, // megabytes
			MaxBackups: maxBackups,
		}
		writer = rotator
		closer = rotator
	}

	return slog.New(newHandler(cfg, writer)), closer
}

func newHandler(cfg Config, writer io.Writer) slog.Handler {
	level := ParseLevel(cfg.Level)
	switch Format(strings.ToLower(strings.TrimSpace(cfg.Format))) {
	case FormatText:
		return slog.NewTextHandler(writer, &slog.HandlerOptions{Level: level})
	case FormatTint:
		return tint.NewHandler(writer, &tint.Options{
			Level:      level,
			TimeFormat: time.RFC3339,
			NoColor:    strings.TrimSpace(cfg.File) != "",
		})
	default:
		return slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: level})
	}
}

// ParseLevel maps a level name to a slog level. Unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithComponent returns a logger annotated with the component field.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With("component", component)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type contextKey string

const requestIDKey contextKey = "request_id"

// ContextWithRequestID stores id on ctx when it is non-empty.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	id = strings.TrimSpace(id)
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request ID stored on ctx.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok && id != ""
}

// WithContext annotates logger with the request ID held in ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if id, ok := RequestIDFromContext(ctx); ok {
		return logger.With("request_id", id)
	}
	return logger
}
