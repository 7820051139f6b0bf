package anthropic

import (
	"context"
	"encoding/json"

	"github.com/samber/lo"

	"github.com/ronakrm/promptrelay/llm"
	"github.com/ronakrm/promptrelay/llm/httpclient"
	"github.com/ronakrm/promptrelay/llm/streams"
)

// TransformStream renders the unified response stream as Anthropic SSE events.
func (t *InboundTransformer) TransformStream(
	ctx context.Context,
	stream streams.Stream[*llm.Response],
) (streams.Stream[*httpclient.StreamEvent], error) {
	return &anthropicInboundStream{source: stream}, nil
}

// anthropicInboundStream is the stateful 1:N rendering of unified chunks as
// Anthropic SSE events. One unified chunk can open, continue or close a
// content block, and the lifecycle events around blocks only exist on the
// Anthropic side, so produced events are queued and drained before the next
// source chunk is pulled.
type anthropicInboundStream struct {
	source streams.Stream[*llm.Response]

	hasMessageStarted bool
	hasMessageStopped bool
	hasFinished       bool

	// blockType is the type of the open content block, "" when none is open.
	blockType  string
	blockIndex int64

	usage *llm.Usage

	eventQueue []*httpclient.StreamEvent
	queueIndex int
	err        error
}

func (s *anthropicInboundStream) enqueueEvent(event *StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	s.eventQueue = append(s.eventQueue, &httpclient.StreamEvent{
		Type: event.Type,
		Data: data,
	})

	return nil
}

func (s *anthropicInboundStream) Next() bool {
	// Drain queued events before pulling the next source chunk.
	if s.queueIndex < len(s.eventQueue) {
		return true
	}

	s.eventQueue = nil
	s.queueIndex = 0

	if !s.source.Next() {
		// The upstream may end without a [DONE] marker; close the message so
		// clients still see a complete stream.
		if s.hasMessageStarted && !s.hasMessageStopped {
			s.hasMessageStopped = true

			if err := s.finishMessage(); err != nil {
				s.err = err
				return false
			}

			return s.queueIndex < len(s.eventQueue)
		}

		return false
	}

	chunk := s.source.Current()
	if chunk == nil {
		return s.Next()
	}

	if chunk.Object == "[DONE]" {
		if s.hasMessageStarted && !s.hasMessageStopped {
			s.hasMessageStopped = true

			if err := s.finishMessage(); err != nil {
				s.err = err
				return false
			}
		}

		return s.Next()
	}

	if err := s.processChunk(chunk); err != nil {
		s.err = err
		return false
	}

	return s.Next()
}

func (s *anthropicInboundStream) processChunk(chunk *llm.Response) error {
	if chunk.Usage != nil {
		s.usage = chunk.Usage
	}

	if !s.hasMessageStarted {
		s.hasMessageStarted = true

		if err := s.emitMessageStart(chunk); err != nil {
			return err
		}
	}

	if len(chunk.Choices) == 0 {
		return nil
	}

	choice := chunk.Choices[0]
	if choice.Delta != nil {
		if err := s.processDelta(choice.Delta); err != nil {
			return err
		}
	}

	if choice.FinishReason != nil && !s.hasFinished {
		s.hasFinished = true

		if err := s.closeContentBlock(); err != nil {
			return err
		}

		if err := s.emitMessageDelta(choice.FinishReason); err != nil {
			return err
		}
	}

	return nil
}

func (s *anthropicInboundStream) processDelta(delta *llm.Message) error {
	if content := delta.RedactedReasoningContent; content != nil && *content != "" {
		if err := s.emitRedactedThinkingBlock(*content); err != nil {
			return err
		}
	}

	if content := delta.ReasoningContent; content != nil && *content != "" {
		if err := s.ensureContentBlock("thinking"); err != nil {
			return err
		}

		if err := s.enqueueBlockDelta(&Delta{Type: "thinking_delta", Thinking: content}); err != nil {
			return err
		}
	}

	if signature := delta.ReasoningSignature; signature != nil && *signature != "" {
		if err := s.ensureContentBlock("thinking"); err != nil {
			return err
		}

		if err := s.enqueueBlockDelta(&Delta{Type: "signature_delta", Signature: signature}); err != nil {
			return err
		}
	}

	if content := delta.Content.Content; content != nil && *content != "" {
		if err := s.ensureContentBlock("text"); err != nil {
			return err
		}

		if err := s.enqueueBlockDelta(&Delta{Type: "text_delta", Text: content}); err != nil {
			return err
		}
	}

	for _, toolCall := range delta.ToolCalls {
		if err := s.processToolCallDelta(toolCall); err != nil {
			return err
		}
	}

	return nil
}

// processToolCallDelta opens a tool_use block for header entries, which carry
// the call ID and name, and streams argument fragments into the open block.
func (s *anthropicInboundStream) processToolCallDelta(toolCall llm.ToolCall) error {
	if toolCall.ID != "" || toolCall.Function.Name != "" {
		return s.openToolUseBlock(toolCall)
	}

	if s.blockType != "tool_use" || toolCall.Function.Arguments == "" {
		return nil
	}

	return s.enqueueBlockDelta(&Delta{
		Type:        "input_json_delta",
		PartialJSON: lo.ToPtr(toolCall.Function.Arguments),
	})
}

// ensureContentBlock opens a content block of the given type, closing the
// previous one when the type changes.
func (s *anthropicInboundStream) ensureContentBlock(blockType string) error {
	if s.blockType == blockType {
		return nil
	}

	if err := s.closeContentBlock(); err != nil {
		return err
	}

	block := &MessageContentBlock{Type: blockType}

	switch blockType {
	case "text":
		block.Text = lo.ToPtr("")
	case "thinking":
		block.Thinking = lo.ToPtr("")
	}

	s.blockType = blockType

	return s.enqueueEvent(&StreamEvent{
		Type:         "content_block_start",
		Index:        lo.ToPtr(s.blockIndex),
		ContentBlock: block,
	})
}

func (s *anthropicInboundStream) openToolUseBlock(toolCall llm.ToolCall) error {
	if err := s.closeContentBlock(); err != nil {
		return err
	}

	s.blockType = "tool_use"

	return s.enqueueEvent(&StreamEvent{
		Type:  "content_block_start",
		Index: lo.ToPtr(s.blockIndex),
		ContentBlock: &MessageContentBlock{
			Type:  "tool_use",
			ID:    toolCall.ID,
			Name:  lo.ToPtr(toolCall.Function.Name),
			Input: json.RawMessage("{}"),
		},
	})
}

// emitRedactedThinkingBlock emits a complete redacted_thinking block. The
// payload is opaque and arrives in one piece, so the block opens and closes
// in the same turn.
func (s *anthropicInboundStream) emitRedactedThinkingBlock(data string) error {
	if err := s.closeContentBlock(); err != nil {
		return err
	}

	err := s.enqueueEvent(&StreamEvent{
		Type:  "content_block_start",
		Index: lo.ToPtr(s.blockIndex),
		ContentBlock: &MessageContentBlock{
			Type: "redacted_thinking",
			Data: data,
		},
	})
	if err != nil {
		return err
	}

	err = s.enqueueEvent(&StreamEvent{
		Type:  "content_block_stop",
		Index: lo.ToPtr(s.blockIndex),
	})
	if err != nil {
		return err
	}

	s.blockIndex++

	return nil
}

func (s *anthropicInboundStream) closeContentBlock() error {
	if s.blockType == "" {
		return nil
	}

	err := s.enqueueEvent(&StreamEvent{
		Type:  "content_block_stop",
		Index: lo.ToPtr(s.blockIndex),
	})
	if err != nil {
		return err
	}

	s.blockType = ""
	s.blockIndex++

	return nil
}

func (s *anthropicInboundStream) enqueueBlockDelta(delta *Delta) error {
	return s.enqueueEvent(&StreamEvent{
		Type:  "content_block_delta",
		Index: lo.ToPtr(s.blockIndex),
		Delta: delta,
	})
}

func (s *anthropicInboundStream) emitMessageStart(chunk *llm.Response) error {
	message := &Message{
		ID:      chunk.ID,
		Type:    "message",
		Role:    "assistant",
		Content: []MessageContentBlock{},
		Model:   chunk.Model,
		Usage:   &Usage{},
	}

	if chunk.Usage != nil {
		message.Usage = convertToAnthropicUsage(chunk.Usage)
	}

	return s.enqueueEvent(&StreamEvent{
		Type:    "message_start",
		Message: message,
	})
}

func (s *anthropicInboundStream) emitMessageDelta(finishReason *string) error {
	event := &StreamEvent{
		Type:  "message_delta",
		Delta: &Delta{StopReason: convertToAnthropicStopReason(finishReason)},
	}

	if s.usage != nil {
		event.Usage = convertToAnthropicUsage(s.usage)
	}

	return s.enqueueEvent(event)
}

// finishMessage closes any open content block and terminates the message.
func (s *anthropicInboundStream) finishMessage() error {
	if err := s.closeContentBlock(); err != nil {
		return err
	}

	return s.enqueueEvent(&StreamEvent{Type: "message_stop"})
}

func (s *anthropicInboundStream) Current() *httpclient.StreamEvent {
	if s.queueIndex < len(s.eventQueue) {
		event := s.eventQueue[s.queueIndex]
		s.queueIndex++

		return event
	}

	return nil
}

func (s *anthropicInboundStream) Err() error {
	if s.err != nil {
		return s.err
	}

	return s.source.Err()
}

func (s *anthropicInboundStream) Close() error {
	return s.source.Close()
}
