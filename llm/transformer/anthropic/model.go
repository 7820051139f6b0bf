package anthropic

import (
	"encoding/json"
	"errors"
)

// MessageRequest is the Anthropic Messages API request.
// https://docs.claude.com/en/api/messages
type MessageRequest struct {
	// Model is omitted on Bedrock, where the model is part of the URL.
	Model string `json:"model,omitempty"`

	// AnthropicVersion is only sent in the body on Bedrock.
	AnthropicVersion string `json:"anthropic_version,omitempty"`

	// AnthropicBeta carries beta feature flags in the body on platforms
	// without custom header support.
	AnthropicBeta []string `json:"anthropic_beta,omitempty"`

	Messages []MessageParam `json:"messages"`

	// System is the system prompt, a plain string or a list of text parts.
	System *SystemPrompt `json:"system,omitempty"`

	MaxTokens int64 `json:"max_tokens"`

	Metadata *AnthropicMetadata `json:"metadata,omitempty"`

	StopSequences []string `json:"stop_sequences,omitempty"`

	Stream *bool `json:"stream,omitempty"`

	Temperature *float64 `json:"temperature,omitempty"`

	TopK *int64 `json:"top_k,omitempty"`

	TopP *float64 `json:"top_p,omitempty"`

	Tools []Tool `json:"tools,omitempty"`

	ToolChoice *ToolChoice `json:"tool_choice,omitempty"`

	Thinking *Thinking `json:"thinking,omitempty"`
}

// AnthropicMetadata describes the request metadata.
type AnthropicMetadata struct {
	// UserID is an external identifier for the user of the request.
	UserID string `json:"user_id,omitempty"`
}

// Thinking configures extended thinking.
type Thinking struct {
	// Type is "enabled" or "disabled".
	Type string `json:"type"`

	// BudgetTokens is the max tokens the model may spend thinking.
	BudgetTokens int64 `json:"budget_tokens,omitempty"`
}

// CacheControl is the prompt caching breakpoint annotation. A block carrying
// it marks everything up to and including itself as cacheable.
type CacheControl struct {
	// Type is always "ephemeral".
	Type string `json:"type"`

	// TTL is the cache entry lifetime, "5m" or "1h". Empty means the
	// provider default of five minutes.
	TTL string `json:"ttl,omitempty"`
}

// MessageParam is a single conversation turn.
type MessageParam struct {
	Role    string         `json:"role"`
	Content MessageContent `json:"content"`
}

// MessageContent is the content of a turn, a plain string or a list of
// content blocks. The array form is kept as-is when marshalling because
// block-level annotations like cache_control only exist in that form.
type MessageContent struct {
	Content         *string               `json:"-"`
	MultipleContent []MessageContentBlock `json:"-"`
}

func (c MessageContent) MarshalJSON() ([]byte, error) {
	if len(c.MultipleContent) > 0 {
		return json.Marshal(c.MultipleContent)
	}

	return json.Marshal(c.Content)
}

func (c *MessageContent) UnmarshalJSON(data []byte) error {
	var str string

	err := json.Unmarshal(data, &str)
	if err == nil {
		c.Content = &str
		return nil
	}

	var blocks []MessageContentBlock

	err = json.Unmarshal(data, &blocks)
	if err == nil {
		c.MultipleContent = blocks
		return nil
	}

	return errors.New("invalid content type")
}

// ExtractTrivalBlocks returns the content as blocks, normalizing the string
// form to a single text block. When cacheControl is given it is attached to
// the last block, so the breakpoint covers the whole content.
func (c MessageContent) ExtractTrivalBlocks(cacheControl *CacheControl) []MessageContentBlock {
	var blocks []MessageContentBlock

	if len(c.MultipleContent) > 0 {
		blocks = make([]MessageContentBlock, len(c.MultipleContent))
		copy(blocks, c.MultipleContent)
	} else if c.Content != nil {
		blocks = []MessageContentBlock{{Type: "text", Text: c.Content}}
	}

	if cacheControl != nil && len(blocks) > 0 {
		blocks[len(blocks)-1].CacheControl = cacheControl
	}

	return blocks
}

// MessageContentBlock is a single content block inside a turn or a response.
// The populated fields depend on Type:
//   - "text": Text
//   - "image": Source
//   - "tool_use": ID, Name, Input
//   - "tool_result": ToolUseID, Content, IsError
//   - "thinking": Thinking, Signature
//   - "redacted_thinking": Data
type MessageContentBlock struct {
	Type string `json:"type"`

	Text *string `json:"text,omitempty"`

	Source *ImageSource `json:"source,omitempty"`

	ID    string          `json:"id,omitempty"`
	Name  *string         `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	ToolUseID *string         `json:"tool_use_id,omitempty"`
	Content   *MessageContent `json:"content,omitempty"`
	IsError   *bool           `json:"is_error,omitempty"`

	Thinking  *string `json:"thinking,omitempty"`
	Signature *string `json:"signature,omitempty"`

	Data string `json:"data,omitempty"`

	CacheControl *CacheControl `json:"cache_control,omitempty"`
}

// ImageSource is the source of an image block.
type ImageSource struct {
	// Type is "base64" or "url".
	Type string `json:"type"`

	MediaType string `json:"media_type,omitempty"`

	// Data is the base64 payload when type is "base64".
	Data string `json:"data,omitempty"`

	// URL is the image location when type is "url".
	URL string `json:"url,omitempty"`
}

// SystemPrompt is the system prompt, a plain string or a list of text parts.
type SystemPrompt struct {
	Prompt          *string            `json:"-"`
	MultiplePrompts []SystemPromptPart `json:"-"`
}

func (s SystemPrompt) MarshalJSON() ([]byte, error) {
	if len(s.MultiplePrompts) > 0 {
		return json.Marshal(s.MultiplePrompts)
	}

	return json.Marshal(s.Prompt)
}

func (s *SystemPrompt) UnmarshalJSON(data []byte) error {
	var str string

	err := json.Unmarshal(data, &str)
	if err == nil {
		s.Prompt = &str
		return nil
	}

	var parts []SystemPromptPart

	err = json.Unmarshal(data, &parts)
	if err == nil {
		s.MultiplePrompts = parts
		return nil
	}

	return errors.New("invalid system prompt type")
}

// SystemPromptPart is a single text part of the array form system prompt.
type SystemPromptPart struct {
	Type string `json:"type"`
	Text string `json:"text"`

	CacheControl *CacheControl `json:"cache_control,omitempty"`
}

// Tool is a tool definition. Function tools carry Name, Description and
// InputSchema; provider-native tools like web search carry Type and the
// search limits instead.
type Tool struct {
	// Type is empty for custom function tools, or a provider-native tool
	// type like "web_search_20250305".
	Type string `json:"type,omitempty"`

	Name string `json:"name,omitempty"`

	Description string `json:"description,omitempty"`

	InputSchema json.RawMessage `json:"input_schema,omitempty"`

	// MaxUses limits how many searches the model may perform.
	MaxUses *int64 `json:"max_uses,omitempty"`

	AllowedDomains []string `json:"allowed_domains,omitempty"`
	BlockedDomains []string `json:"blocked_domains,omitempty"`

	CacheControl *CacheControl `json:"cache_control,omitempty"`
}

// ToolChoice controls how the model may use tools.
type ToolChoice struct {
	// Type is "auto", "any", "tool" or "none".
	Type string `json:"type"`

	// Name of the tool to use, required when type is "tool".
	Name string `json:"name,omitempty"`

	DisableParallelToolUse *bool `json:"disable_parallel_tool_use,omitempty"`
}

// Message is the Anthropic Messages API response.
type Message struct {
	ID string `json:"id"`

	// Type is "message".
	Type string `json:"type"`

	Role string `json:"role"`

	Content []MessageContentBlock `json:"content"`

	Model string `json:"model"`

	// StopReason is end_turn, max_tokens, stop_sequence, tool_use,
	// pause_turn or refusal.
	StopReason *string `json:"stop_reason,omitempty"`

	StopSequence *string `json:"stop_sequence,omitempty"`

	Usage *Usage `json:"usage,omitempty"`
}

// StreamEvent is a single Anthropic SSE event payload.
type StreamEvent struct {
	Type string `json:"type"`

	// Message is present on message_start.
	Message *Message `json:"message,omitempty"`

	// Index is the content block index, present on content_block_* events.
	Index *int64 `json:"index,omitempty"`

	// ContentBlock is present on content_block_start.
	ContentBlock *MessageContentBlock `json:"content_block,omitempty"`

	// Delta is present on content_block_delta and message_delta.
	Delta *Delta `json:"delta,omitempty"`

	// Usage is present on message_delta.
	Usage *Usage `json:"usage,omitempty"`
}

// Delta is the incremental payload of a streaming event.
type Delta struct {
	// Type is text_delta, thinking_delta, signature_delta or
	// input_json_delta on content_block_delta events.
	Type string `json:"type,omitempty"`

	Text *string `json:"text,omitempty"`

	Thinking *string `json:"thinking,omitempty"`

	Signature *string `json:"signature,omitempty"`

	PartialJSON *string `json:"partial_json,omitempty"`

	// StopReason and StopSequence are present on message_delta events.
	StopReason   *string `json:"stop_reason,omitempty"`
	StopSequence *string `json:"stop_sequence,omitempty"`
}

// AnthropicError is the Anthropic API error response.
type AnthropicError struct {
	// StatusCode is the HTTP status, carried out of band.
	StatusCode int `json:"-"`

	// Type is "error".
	Type string `json:"type,omitempty"`

	RequestID string `json:"request_id,omitempty"`

	Error ErrorDetail `json:"error"`
}

// ErrorDetail is the error payload of an AnthropicError.
type ErrorDetail struct {
	// Type is the error kind, e.g. invalid_request_error or api_error.
	Type string `json:"type"`

	Message string `json:"message"`
}
