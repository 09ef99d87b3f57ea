// Package logging constructs the single process-scoped *logrus.Logger and
// the correlation-id-aware field helper every component threads through
// its constructor, matching the reference system's *logrus.Logger
// dependency-injection convention (no package-level loggers).
package logging

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
)

type correlationKey struct{}

// New builds a logger. format is "json" or "text"; level is any logrus
// level string ("debug", "info", "warn", "error").
func New(format, level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	return logger
}

// WithCorrelationID returns a context carrying the correlation id, so it
// propagates as a value (never a back-pointer) per spec.md §9.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID extracts the correlation id from ctx, or "" if absent.
func CorrelationID(ctx context.Context) string {
	if v, ok := ctx.Value(correlationKey{}).(string); ok {
		return v
	}
	return ""
}

// Entry builds a logrus.Entry pre-populated with the request's
// correlation id and component name, the convention every package in this
// repo uses for its log lines.
func Entry(ctx context.Context, logger *logrus.Logger, component string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		"component":      component,
		"correlation_id": CorrelationID(ctx),
	})
}
