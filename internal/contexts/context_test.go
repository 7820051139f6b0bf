package contexts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTraceID(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		_, ok := GetTraceID(context.Background())
		require.False(t, ok)
	})

	t.Run("round trip", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "pr-trace-1")

		got, ok := GetTraceID(ctx)
		require.True(t, ok)
		require.Equal(t, "pr-trace-1", got)
	})

	t.Run("container is shared", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "pr-trace-1")
		ctx = WithRequestID(ctx, "pr-req-1")

		traceID, ok := GetTraceID(ctx)
		require.True(t, ok)
		require.Equal(t, "pr-trace-1", traceID)

		requestID, ok := GetRequestID(ctx)
		require.True(t, ok)
		require.Equal(t, "pr-req-1", requestID)
	})
}

func TestOperationName(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		_, ok := GetOperationName(context.Background())
		require.False(t, ok)
	})

	t.Run("round trip", func(t *testing.T) {
		ctx := WithOperationName(context.Background(), "chat-completion")

		got, ok := GetOperationName(ctx)
		require.True(t, ok)
		require.Equal(t, "chat-completion", got)
	})
}
