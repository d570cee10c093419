package services

import "context"

type contextKey string

const (
	requestIDKey  contextKey = "request_id"
	runIDKey      contextKey = "run_id"
	batchIndexKey contextKey = "batch_index"
)

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRunID annotates context with a seeding cycle identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext returns the seeding cycle identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithBatchIndex annotates context with the 1-based sub-batch index within an add call.
func WithBatchIndex(ctx context.Context, index int) context.Context {
	if index <= 0 {
		return ctx
	}
	return context.WithValue(ctx, batchIndexKey, index)
}

// BatchIndexFromContext returns the sub-batch index if present.
func BatchIndexFromContext(ctx context.Context) (int, bool) {
	if v, ok := ctx.Value(batchIndexKey).(int); ok && v > 0 {
		return v, true
	}
	return 0, false
}
