package maxtoken

import (
	"context"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/ronakrm/promptrelay/llm"
)

func TestEnsureMaxTokens(t *testing.T) {
	tests := []struct {
		name      string
		maxTokens *int64
		want      int64
	}{
		{
			name:      "unset gets default",
			maxTokens: nil,
			want:      1024,
		},
		{
			name:      "below default untouched",
			maxTokens: lo.ToPtr(int64(512)),
			want:      512,
		},
		{
			name:      "above default clamped",
			maxTokens: lo.ToPtr(int64(8192)),
			want:      1024,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := EnsureMaxTokens(1024)

			got, err := mw.OnInboundLlmRequest(context.Background(), &llm.Request{
				Model:     "gpt-4o",
				MaxTokens: tt.maxTokens,
			})
			require.NoError(t, err)
			require.NotNil(t, got.MaxTokens)
			require.Equal(t, tt.want, *got.MaxTokens)
		})
	}
}
