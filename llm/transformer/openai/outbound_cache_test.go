package openai

import (
	"context"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/ronakrm/promptrelay/llm"
)

func newTestOutboundTransformer(t *testing.T) *OutboundTransformer {
	t.Helper()

	transformer, err := NewOutboundTransformer("https://api.openai.com/v1", "test-api-key")
	require.NoError(t, err)

	return transformer.(*OutboundTransformer)
}

func TestTransformRequest_CachePointsDropped(t *testing.T) {
	transformer := newTestOutboundTransformer(t)

	llmReq := &llm.Request{
		Model: "gpt-4o",
		Messages: []llm.Message{
			{
				Role: "user",
				Content: llm.MessageContent{
					MultipleContent: []llm.MessageContentPart{
						{Type: "text", Text: lo.ToPtr("Here is the document.")},
						{Type: llm.ContentTypeCachePoint, CachePoint: &llm.CachePoint{}},
						{Type: "text", Text: lo.ToPtr("Summarize it.")},
					},
				},
			},
		},
		Cache: &llm.CacheConfig{TTL: llm.CacheTTL1h},
	}

	httpReq, err := transformer.TransformRequest(context.Background(), llmReq)
	require.NoError(t, err)
	require.NotNil(t, httpReq)

	body := string(httpReq.Body)

	// The marker and every cache annotation must be gone from the wire: this
	// provider caches on its own.
	require.NotContains(t, body, "cache_point")
	require.NotContains(t, body, "cache_control")
	require.False(t, gjson.Get(body, "cache").Exists())

	parts := gjson.Get(body, "messages.0.content")
	require.True(t, parts.IsArray())
	require.Len(t, parts.Array(), 2)
	require.Equal(t, "Here is the document.", parts.Array()[0].Get("text").String())
	require.Equal(t, "Summarize it.", parts.Array()[1].Get("text").String())

	// The input request is untouched.
	require.Len(t, llmReq.Messages[0].Content.MultipleContent, 3)
}

func TestTransformRequest_CachePointInAssistantMessage(t *testing.T) {
	transformer := newTestOutboundTransformer(t)

	llmReq := &llm.Request{
		Model: "gpt-4o",
		Messages: []llm.Message{
			{
				Role:    "user",
				Content: llm.MessageContent{Content: lo.ToPtr("Hello")},
			},
			{
				Role: "assistant",
				Content: llm.MessageContent{
					MultipleContent: []llm.MessageContentPart{
						{Type: "text", Text: lo.ToPtr("Hi there")},
						{Type: llm.ContentTypeCachePoint, CachePoint: &llm.CachePoint{}},
					},
				},
			},
		},
	}

	httpReq, err := transformer.TransformRequest(context.Background(), llmReq)
	require.Error(t, err)
	require.ErrorIs(t, err, llm.ErrInvalidCachePoint)
	require.Nil(t, httpReq)
}

func TestTransformRequest_PromptCacheKeyPassthrough(t *testing.T) {
	transformer := newTestOutboundTransformer(t)

	llmReq := &llm.Request{
		Model:          "gpt-4o",
		PromptCacheKey: lo.ToPtr("tenant-42-conversation-7"),
		Messages: []llm.Message{
			{
				Role:    "user",
				Content: llm.MessageContent{Content: lo.ToPtr("Hello")},
			},
		},
	}

	httpReq, err := transformer.TransformRequest(context.Background(), llmReq)
	require.NoError(t, err)
	require.Equal(t, "tenant-42-conversation-7", gjson.GetBytes(httpReq.Body, "prompt_cache_key").String())
}

func TestTransformRequest_CacheConfigHasNoWireEffect(t *testing.T) {
	transformer := newTestOutboundTransformer(t)

	base := &llm.Request{
		Model: "gpt-4o",
		Messages: []llm.Message{
			{
				Role:    "user",
				Content: llm.MessageContent{Content: lo.ToPtr("Hello")},
			},
		},
		Tools: []llm.Tool{
			{
				Type:     llm.ToolTypeFunction,
				Function: llm.Function{Name: "get_weather"},
			},
		},
	}

	withCache := *base
	withCache.Cache = &llm.CacheConfig{Instructions: true, ToolDefinitions: true, TTL: llm.CacheTTL5m}

	plainReq, err := transformer.TransformRequest(context.Background(), base)
	require.NoError(t, err)

	cachedReq, err := transformer.TransformRequest(context.Background(), &withCache)
	require.NoError(t, err)

	require.JSONEq(t, string(plainReq.Body), string(cachedReq.Body))
}
