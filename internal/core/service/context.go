package service

import "context"

type runIDKey struct{}

// WithRunID returns a context carrying the load run ID for logs and audit entries.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFromContext returns the run ID set by WithRunID, or "".
func RunIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(runIDKey{}).(string); ok {
		return v
	}
	return ""
}

type operationKey struct{}

// WithOperation names the caller-facing operation (CLI command, MCP tool, HTTP route)
// recorded in audit entries.
func WithOperation(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, operationKey{}, name)
}

func operationFromCtx(ctx context.Context, fallback string) string {
	if v, ok := ctx.Value(operationKey{}).(string); ok && v != "" {
		return v
	}
	return fallback
}
