package common

import (
	"context"
	"log/slog"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRunID      contextKey = "run_id"
	ContextKeyProviderID contextKey = "provider_id"
)

// WithRunID adds an extraction run ID to the context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, ContextKeyRunID, runID)
}

// RunIDFromContext extracts the run ID from context
func RunIDFromContext(ctx context.Context) string {
	if runID, ok := ctx.Value(ContextKeyRunID).(string); ok {
		return runID
	}
	return ""
}

// WithProviderID adds a provider ID to the context
func WithProviderID(ctx context.Context, providerID string) context.Context {
	return context.WithValue(ctx, ContextKeyProviderID, providerID)
}

// ProviderIDFromContext extracts the provider ID from context
func ProviderIDFromContext(ctx context.Context) string {
	if providerID, ok := ctx.Value(ContextKeyProviderID).(string); ok {
		return providerID
	}
	return ""
}

// LoggerFromContext decorates logger with the run and provider ids found in ctx.
func LoggerFromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if id := RunIDFromContext(ctx); id != "" {
		logger = logger.With("run_id", id)
	}
	if id := ProviderIDFromContext(ctx); id != "" {
		logger = logger.With("provider_id", id)
	}
	return logger
}
