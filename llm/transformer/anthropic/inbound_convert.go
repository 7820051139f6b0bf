package anthropic

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/ronakrm/promptrelay/llm"
	"github.com/ronakrm/promptrelay/llm/internal/pkg/xjson"
	"github.com/ronakrm/promptrelay/llm/internal/pkg/xurl"
	"github.com/ronakrm/promptrelay/llm/transformer"
)

// convertToLLMRequest converts an Anthropic Messages request to the unified
// request. It is the inverse of convertToAnthropicRequestWithConfig: string
// contents stay strings, block arrays stay arrays, and cache_control
// annotations are lifted onto the matching help fields so a round trip
// preserves them.
func convertToLLMRequest(anthropicReq *MessageRequest) (*llm.Request, error) {
	llmReq := &llm.Request{
		Model:       anthropicReq.Model,
		MaxTokens:   lo.ToPtr(anthropicReq.MaxTokens),
		Temperature: anthropicReq.Temperature,
		TopP:        anthropicReq.TopP,
		Stream:      anthropicReq.Stream,
		APIFormat:   llm.APIFormatAnthropicMessage,
	}

	if anthropicReq.Metadata != nil && anthropicReq.Metadata.UserID != "" {
		llmReq.Metadata = map[string]string{"user_id": anthropicReq.Metadata.UserID}
	}

	switch len(anthropicReq.StopSequences) {
	case 0:
	case 1:
		llmReq.Stop = &llm.Stop{Stop: lo.ToPtr(anthropicReq.StopSequences[0])}
	default:
		llmReq.Stop = &llm.Stop{MultipleStop: anthropicReq.StopSequences}
	}

	if anthropicReq.Thinking != nil && anthropicReq.Thinking.Type == "enabled" {
		llmReq.ReasoningBudget = lo.ToPtr(anthropicReq.Thinking.BudgetTokens)
		llmReq.ReasoningEffort = thinkingBudgetToReasoningEffort(anthropicReq.Thinking.BudgetTokens)
	}

	llmReq.Messages = convertSystemPromptToLLM(anthropicReq.System, &llmReq.TransformOptions)

	for i := range anthropicReq.Messages {
		converted, err := convertAnthropicMessage(anthropicReq.Messages[i], i)
		if err != nil {
			return nil, err
		}

		llmReq.Messages = append(llmReq.Messages, converted...)
	}

	llmReq.Tools = convertToolsToLLM(anthropicReq.Tools)

	applyToolChoiceToLLM(anthropicReq.ToolChoice, llmReq)

	return llmReq, nil
}

// convertSystemPromptToLLM maps the system prompt to leading system messages.
// The array form is recorded in TransformOptions so the outbound conversion
// restores the shape the client sent.
func convertSystemPromptToLLM(system *SystemPrompt, opts *llm.TransformOptions) []llm.Message {
	if system == nil {
		return nil
	}

	if system.Prompt != nil {
		return []llm.Message{{
			Role:    "system",
			Content: llm.MessageContent{Content: system.Prompt},
		}}
	}

	if len(system.MultiplePrompts) == 0 {
		return nil
	}

	opts.ArrayInstructions = lo.ToPtr(true)

	return lo.Map(system.MultiplePrompts, func(part SystemPromptPart, _ int) llm.Message {
		text := part.Text

		return llm.Message{
			Role:         "system",
			Content:      llm.MessageContent{Content: &text},
			CacheControl: convertToLLMCacheControl(part.CacheControl),
		}
	})
}

func convertAnthropicMessage(msg MessageParam, index int) ([]llm.Message, error) {
	switch msg.Role {
	case "user":
		return convertAnthropicUserMessage(msg, index), nil
	case "assistant":
		return []llm.Message{convertAnthropicAssistantMessage(msg)}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported message role: %s", transformer.ErrInvalidRequest, msg.Role)
	}
}

// convertAnthropicUserMessage splits a user turn into unified messages.
// tool_result blocks become tool messages and the remaining blocks stay a
// user message. All messages of one turn share a MessageIndex so the
// outbound conversion can reassemble them into a single turn.
func convertAnthropicUserMessage(msg MessageParam, index int) []llm.Message {
	if msg.Content.Content != nil {
		return []llm.Message{{
			Role:    "user",
			Content: llm.MessageContent{Content: msg.Content.Content},
		}}
	}

	var (
		toolMessages []llm.Message
		userParts    []llm.MessageContentPart
	)

	for _, block := range msg.Content.MultipleContent {
		switch block.Type {
		case "tool_result":
			toolMessages = append(toolMessages, convertToolResultBlockToLLM(block))
		case "text":
			userParts = append(userParts, llm.MessageContentPart{
				Type:         "text",
				Text:         block.Text,
				CacheControl: convertToLLMCacheControl(block.CacheControl),
			})
		case "image":
			if part, ok := convertAnthropicImageBlock(block); ok {
				userParts = append(userParts, part)
			}
		}
	}

	if len(toolMessages) == 0 {
		if len(userParts) == 0 {
			return nil
		}

		return []llm.Message{{
			Role:    "user",
			Content: llm.MessageContent{MultipleContent: userParts},
		}}
	}

	messages := toolMessages
	for i := range messages {
		messages[i].MessageIndex = lo.ToPtr(index)
	}

	if len(userParts) > 0 {
		messages = append(messages, llm.Message{
			Role:         "user",
			Content:      llm.MessageContent{MultipleContent: userParts},
			MessageIndex: lo.ToPtr(index),
		})
	}

	return messages
}

func convertToolResultBlockToLLM(block MessageContentBlock) llm.Message {
	msg := llm.Message{
		Role:            "tool",
		ToolCallID:      block.ToolUseID,
		ToolCallIsError: block.IsError,
		CacheControl:    convertToLLMCacheControl(block.CacheControl),
	}

	if block.Content != nil {
		msg.Content = convertAnthropicContentToLLM(*block.Content)
	}

	return msg
}

func convertAnthropicContentToLLM(content MessageContent) llm.MessageContent {
	if content.Content != nil {
		return llm.MessageContent{Content: content.Content}
	}

	parts := make([]llm.MessageContentPart, 0, len(content.MultipleContent))

	for _, block := range content.MultipleContent {
		switch block.Type {
		case "text":
			parts = append(parts, llm.MessageContentPart{
				Type:         "text",
				Text:         block.Text,
				CacheControl: convertToLLMCacheControl(block.CacheControl),
			})
		case "image":
			if part, ok := convertAnthropicImageBlock(block); ok {
				parts = append(parts, part)
			}
		}
	}

	return llm.MessageContent{MultipleContent: parts}
}

// convertAnthropicImageBlock maps an image block to an image_url part.
// Base64 sources become data URLs.
func convertAnthropicImageBlock(block MessageContentBlock) (llm.MessageContentPart, bool) {
	if block.Source == nil {
		return llm.MessageContentPart{}, false
	}

	var url string

	switch block.Source.Type {
	case "base64":
		url = xurl.FormatDataURL(block.Source.MediaType, block.Source.Data)
	case "url":
		url = block.Source.URL
	default:
		return llm.MessageContentPart{}, false
	}

	return llm.MessageContentPart{
		Type:         "image_url",
		ImageURL:     &llm.ImageURL{URL: url},
		CacheControl: convertToLLMCacheControl(block.CacheControl),
	}, true
}

// convertAnthropicAssistantMessage folds an assistant turn into one unified
// message: thinking blocks land in the reasoning fields, tool_use blocks in
// ToolCalls and visible content in Content.
func convertAnthropicAssistantMessage(msg MessageParam) llm.Message {
	out := llm.Message{Role: "assistant"}

	if msg.Content.Content != nil {
		out.Content = llm.MessageContent{Content: msg.Content.Content}
		return out
	}

	var parts []llm.MessageContentPart

	for _, block := range msg.Content.MultipleContent {
		switch block.Type {
		case "text":
			parts = append(parts, llm.MessageContentPart{
				Type:         "text",
				Text:         block.Text,
				CacheControl: convertToLLMCacheControl(block.CacheControl),
			})
		case "thinking":
			out.ReasoningContent = block.Thinking
			out.ReasoningSignature = block.Signature
		case "redacted_thinking":
			if block.Data != "" {
				out.RedactedReasoningContent = lo.ToPtr(block.Data)
			}
		case "tool_use":
			out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
				ID:   block.ID,
				Type: "function",
				Function: llm.FunctionCall{
					Name:      lo.FromPtr(block.Name),
					Arguments: string(block.Input),
				},
				CacheControl: convertToLLMCacheControl(block.CacheControl),
			})
		}
	}

	out.Content = llm.MessageContent{MultipleContent: parts}

	return out
}

func convertToolsToLLM(tools []Tool) []llm.Tool {
	if len(tools) == 0 {
		return nil
	}

	llmTools := make([]llm.Tool, 0, len(tools))

	for _, tool := range tools {
		switch tool.Type {
		case ToolTypeWebSearch20250305:
			llmTools = append(llmTools, convertWebSearchToolToLLM(tool))
		default:
			llmTools = append(llmTools, llm.Tool{
				Type: llm.ToolTypeFunction,
				Function: llm.Function{
					Name:        tool.Name,
					Description: tool.Description,
					Parameters:  tool.InputSchema,
				},
				CacheControl: convertToLLMCacheControl(tool.CacheControl),
			})
		}
	}

	return llmTools
}

func convertWebSearchToolToLLM(tool Tool) llm.Tool {
	out := llm.Tool{
		Type:         llm.ToolTypeWebSearch,
		CacheControl: convertToLLMCacheControl(tool.CacheControl),
	}

	if tool.MaxUses != nil || len(tool.AllowedDomains) > 0 || len(tool.BlockedDomains) > 0 {
		out.WebSearch = &llm.WebSearchTool{
			MaxUses:        tool.MaxUses,
			AllowedDomains: tool.AllowedDomains,
			BlockedDomains: tool.BlockedDomains,
		}
	}

	return out
}

func applyToolChoiceToLLM(choice *ToolChoice, llmReq *llm.Request) {
	if choice == nil {
		return
	}

	switch choice.Type {
	case "auto":
		llmReq.ToolChoice = &llm.ToolChoice{ToolChoice: lo.ToPtr("auto")}
	case "any":
		llmReq.ToolChoice = &llm.ToolChoice{ToolChoice: lo.ToPtr("required")}
	case "none":
		llmReq.ToolChoice = &llm.ToolChoice{ToolChoice: lo.ToPtr("none")}
	case "tool":
		llmReq.ToolChoice = &llm.ToolChoice{
			NamedToolChoice: &llm.NamedToolChoice{
				Type:     "function",
				Function: llm.ToolFunction{Name: choice.Name},
			},
		}
	}

	if lo.FromPtr(choice.DisableParallelToolUse) {
		llmReq.ParallelToolCalls = lo.ToPtr(false)
	}
}

// convertToAnthropicResponse renders a unified response as an Anthropic Message.
func convertToAnthropicResponse(chatResp *llm.Response) *Message {
	resp := &Message{
		ID:    chatResp.ID,
		Type:  "message",
		Role:  "assistant",
		Model: chatResp.Model,
	}

	if len(chatResp.Choices) > 0 {
		choice := chatResp.Choices[0]

		if choice.Message != nil {
			resp.Content = convertLLMMessageToBlocks(*choice.Message)
		}

		resp.StopReason = convertToAnthropicStopReason(choice.FinishReason)
	}

	if chatResp.Usage != nil {
		resp.Usage = convertToAnthropicUsage(chatResp.Usage)
	}

	return resp
}

// convertLLMMessageToBlocks rebuilds the assistant content blocks in the
// order Anthropic emits them: thinking first, then visible text, then tool
// use.
func convertLLMMessageToBlocks(message llm.Message) []MessageContentBlock {
	blocks := make([]MessageContentBlock, 0, 2+len(message.ToolCalls))

	if message.ReasoningContent != nil && *message.ReasoningContent != "" {
		blocks = append(blocks, MessageContentBlock{
			Type:      "thinking",
			Thinking:  message.ReasoningContent,
			Signature: message.ReasoningSignature,
		})
	}

	if message.RedactedReasoningContent != nil && *message.RedactedReasoningContent != "" {
		blocks = append(blocks, MessageContentBlock{
			Type: "redacted_thinking",
			Data: *message.RedactedReasoningContent,
		})
	}

	if message.Content.Content != nil && *message.Content.Content != "" {
		blocks = append(blocks, MessageContentBlock{Type: "text", Text: message.Content.Content})
	}

	for _, part := range message.Content.MultipleContent {
		if part.Type == "text" && part.Text != nil {
			blocks = append(blocks, MessageContentBlock{Type: "text", Text: part.Text})
		}
	}

	for _, toolCall := range message.ToolCalls {
		name := toolCall.Function.Name
		blocks = append(blocks, MessageContentBlock{
			Type:  "tool_use",
			ID:    toolCall.ID,
			Name:  &name,
			Input: xjson.SafeJSONRawMessage(toolCall.Function.Arguments),
		})
	}

	return blocks
}

// convertToAnthropicStopReason maps the unified finish reason back to the
// Anthropic stop reason.
func convertToAnthropicStopReason(finishReason *string) *string {
	if finishReason == nil {
		return nil
	}

	switch *finishReason {
	case "stop":
		return lo.ToPtr("end_turn")
	case "length":
		return lo.ToPtr("max_tokens")
	case "tool_calls":
		return lo.ToPtr("tool_use")
	case "content_filter":
		return lo.ToPtr("refusal")
	default:
		return finishReason
	}
}
