package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/samber/lo"

	"github.com/ronakrm/promptrelay/llm"
	"github.com/ronakrm/promptrelay/llm/httpclient"
	"github.com/ronakrm/promptrelay/llm/internal/pkg/xjson"
	"github.com/ronakrm/promptrelay/llm/streams"
)

// streamState carries the message identity and token usage across the SSE
// events of one Anthropic stream. Anthropic only sends the message ID, model
// and input token counts on message_start, while unified chunks repeat them.
type streamState struct {
	messageID string
	model     string
	usage     *Usage

	// contentIndexToToolIndex maps Anthropic content block indexes to tool
	// call indexes in the unified stream.
	contentIndexToToolIndex map[int64]int
	nextToolIndex           int
}

// TransformStream transforms Anthropic SSE events into unified response chunks.
func (t *OutboundTransformer) TransformStream(
	ctx context.Context,
	stream streams.Stream[*httpclient.StreamEvent],
) (streams.Stream[*llm.Response], error) {
	state := &streamState{
		contentIndexToToolIndex: make(map[int64]int),
	}

	mapped := streams.MapErr(stream, func(event *httpclient.StreamEvent) (*llm.Response, error) {
		return t.transformStreamEvent(ctx, state, event)
	})

	return streams.NoNil(mapped), nil
}

//nolint:unparam // ctx kept for symmetry with the other transform methods.
func (t *OutboundTransformer) transformStreamEvent(
	ctx context.Context,
	state *streamState,
	event *httpclient.StreamEvent,
) (*llm.Response, error) {
	if event == nil {
		return nil, nil
	}

	if bytes.HasPrefix(event.Data, []byte("[DONE]")) {
		return llm.DoneResponse, nil
	}

	var streamEvent StreamEvent

	err := json.Unmarshal(event.Data, &streamEvent)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal anthropic stream event: %w", err)
	}

	switch streamEvent.Type {
	case "message_start":
		return state.handleMessageStart(&streamEvent), nil
	case "content_block_start":
		return state.handleContentBlockStart(&streamEvent), nil
	case "content_block_delta":
		return state.handleContentBlockDelta(&streamEvent), nil
	case "message_delta":
		return state.handleMessageDelta(&streamEvent, t.config.Type), nil
	case "message_stop":
		return llm.DoneResponse, nil
	case "error":
		return nil, streamEventError(event.Data)
	default:
		// ping, content_block_stop and unknown events carry nothing to forward.
		return nil, nil
	}
}

// handleMessageStart pins the message identity and emits the role chunk.
func (s *streamState) handleMessageStart(event *StreamEvent) *llm.Response {
	if event.Message == nil {
		return nil
	}

	s.messageID = event.Message.ID
	s.model = event.Message.Model
	s.usage = event.Message.Usage

	return s.chunk(llm.Choice{
		Index: 0,
		Delta: &llm.Message{Role: "assistant"},
	})
}

// handleContentBlockStart emits the tool call header for tool_use blocks and
// the opaque payload for redacted_thinking blocks. Text and thinking blocks
// start empty; their content arrives via deltas.
func (s *streamState) handleContentBlockStart(event *StreamEvent) *llm.Response {
	if event.ContentBlock == nil || event.Index == nil {
		return nil
	}

	switch event.ContentBlock.Type {
	case "tool_use":
		toolIndex := s.nextToolIndex
		s.contentIndexToToolIndex[*event.Index] = toolIndex
		s.nextToolIndex++

		return s.chunk(llm.Choice{
			Index: 0,
			Delta: &llm.Message{
				ToolCalls: []llm.ToolCall{
					{
						Index: toolIndex,
						ID:    event.ContentBlock.ID,
						Type:  "function",
						Function: llm.FunctionCall{
							Name: lo.FromPtr(event.ContentBlock.Name),
						},
					},
				},
			},
		})
	case "redacted_thinking":
		if event.ContentBlock.Data == "" {
			return nil
		}

		return s.chunk(llm.Choice{
			Index: 0,
			Delta: &llm.Message{
				RedactedReasoningContent: &event.ContentBlock.Data,
			},
		})
	default:
		return nil
	}
}

// handleContentBlockDelta maps one incremental payload to a unified chunk.
func (s *streamState) handleContentBlockDelta(event *StreamEvent) *llm.Response {
	if event.Delta == nil {
		return nil
	}

	delta := &llm.Message{}

	switch event.Delta.Type {
	case "text_delta":
		delta.Content = llm.MessageContent{Content: event.Delta.Text}
	case "thinking_delta":
		delta.ReasoningContent = event.Delta.Thinking
	case "signature_delta":
		delta.ReasoningSignature = event.Delta.Signature
	case "input_json_delta":
		toolIndex, ok := s.contentIndexToToolIndex[lo.FromPtr(event.Index)]
		if !ok {
			return nil
		}

		delta.ToolCalls = []llm.ToolCall{
			{
				Index: toolIndex,
				Function: llm.FunctionCall{
					Arguments: lo.FromPtr(event.Delta.PartialJSON),
				},
			},
		}
	default:
		return nil
	}

	return s.chunk(llm.Choice{Index: 0, Delta: delta})
}

// handleMessageDelta emits the finish chunk with the merged usage.
// The Delta field stays non-nil even when empty: OpenAI-compatible clients
// reject chunks whose choices carry a finish_reason without a delta.
func (s *streamState) handleMessageDelta(event *StreamEvent, platformType PlatformType) *llm.Response {
	var finishReason *string
	if event.Delta != nil {
		finishReason = convertToLlmFinishReason(event.Delta.StopReason)
	}

	resp := s.chunk(llm.Choice{
		Index:        0,
		Delta:        &llm.Message{},
		FinishReason: finishReason,
	})
	resp.Usage = convertToLlmUsage(mergeUsage(s.usage, event.Usage), platformType)

	return resp
}

func (s *streamState) chunk(choice llm.Choice) *llm.Response {
	return &llm.Response{
		ID:      s.messageID,
		Object:  "chat.completion.chunk",
		Model:   s.model,
		Choices: []llm.Choice{choice},
	}
}

// mergeUsage overlays the message_delta usage on the message_start usage.
// Anthropic reports input and cache token counts at message_start and the
// final output count at message_delta, which may also repeat input counts.
func mergeUsage(start, delta *Usage) *Usage {
	if start == nil {
		return delta
	}

	if delta == nil {
		return start
	}

	merged := *start
	merged.OutputTokens = delta.OutputTokens

	if delta.InputTokens > 0 {
		merged.InputTokens = delta.InputTokens
	}

	if delta.CacheReadInputTokens > 0 {
		merged.CacheReadInputTokens = delta.CacheReadInputTokens
	}

	if delta.CacheCreationInputTokens > 0 {
		merged.CacheCreationInputTokens = delta.CacheCreationInputTokens
	}

	if delta.CacheCreation.Ephemeral5mInputTokens > 0 || delta.CacheCreation.Ephemeral1hInputTokens > 0 {
		merged.CacheCreation = delta.CacheCreation
	}

	if delta.CachedTokens > 0 {
		merged.CachedTokens = delta.CachedTokens
	}

	return &merged
}

// streamEventError converts an Anthropic error event into a response error.
func streamEventError(data []byte) error {
	aErr, err := xjson.To[AnthropicError](data)
	if err != nil || aErr.Error.Message == "" {
		return fmt.Errorf("anthropic stream error: %s", string(data))
	}

	return &llm.ResponseError{
		StatusCode: http.StatusInternalServerError,
		Detail: llm.ErrorDetail{
			Type:    aErr.Error.Type,
			Message: aErr.Error.Message,
		},
	}
}
