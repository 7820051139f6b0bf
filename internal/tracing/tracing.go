package tracing

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ronakrm/promptrelay/internal/contexts"
)

// GenerateTraceID generate trace id, format as pr-{{uuid}}.
func GenerateTraceID() string {
	id := uuid.New()
	return fmt.Sprintf("pr-%s", id.String())
}

// GenerateRequestID generate request id, format as req-{{uuid}}.
func GenerateRequestID() string {
	id := uuid.New()
	return fmt.Sprintf("req-%s", id.String())
}

// WithTraceID store trace id to context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return contexts.WithTraceID(ctx, traceID)
}

// GetTraceID get trace id from context.
func GetTraceID(ctx context.Context) (string, bool) {
	return contexts.GetTraceID(ctx)
}

// WithRequestID store request id to context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return contexts.WithRequestID(ctx, requestID)
}

// GetRequestID get request id from context.
func GetRequestID(ctx context.Context) (string, bool) {
	return contexts.GetRequestID(ctx)
}

// WithOperationName store operation name to context.
func WithOperationName(ctx context.Context, name string) context.Context {
	return contexts.WithOperationName(ctx, name)
}

// GetOperationName get operation name from context.
func GetOperationName(ctx context.Context) (string, bool) {
	return contexts.GetOperationName(ctx)
}

// EnsureRequestID returns the context unchanged when it already carries a
// request id, otherwise it attaches a freshly generated one.
func EnsureRequestID(ctx context.Context) context.Context {
	if _, ok := GetRequestID(ctx); ok {
		return ctx
	}

	return WithRequestID(ctx, GenerateRequestID())
}
