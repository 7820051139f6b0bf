package openai

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cast"

	"github.com/ronakrm/promptrelay/llm"
)

// TransformerMetadataKeyCitations keys the citation list that search grounded
// OpenAI compatible providers attach to the unified response metadata.
const TransformerMetadataKeyCitations = "citations"

// Request is the chat completion request on the OpenAI wire. It mirrors the
// unified request without the help fields and without cache placement: this
// wire carries no cache_control, the provider decides boundaries on its own
// and prompt_cache_key is the only caching affordance.
type Request struct {
	Messages []Message `json:"messages"`

	Model string `json:"model"`

	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`

	Logprobs *bool `json:"logprobs,omitempty"`

	MaxCompletionTokens *int64 `json:"max_completion_tokens,omitempty"`

	MaxTokens *int64 `json:"max_tokens,omitempty"`

	PresencePenalty *float64 `json:"presence_penalty,omitempty"`

	Seed *int64 `json:"seed,omitempty"`

	Store *bool `json:"store,omitzero"`

	Temperature *float64 `json:"temperature,omitempty"`

	TopLogprobs *int64 `json:"top_logprobs,omitzero"`

	TopP *float64 `json:"top_p,omitempty"`

	// PromptCacheKey groups requests that share a prompt prefix so the
	// provider can route them to the same cache. Passed through as-is.
	PromptCacheKey *string `json:"prompt_cache_key,omitzero"`

	SafetyIdentifier *string `json:"safety_identifier,omitzero"`

	User *string `json:"user,omitempty"`

	LogitBias map[string]int64 `json:"logit_bias,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`

	Modalities []string `json:"modalities,omitempty"`

	ReasoningEffort string `json:"reasoning_effort,omitempty"`

	ServiceTier *string `json:"service_tier,omitempty"`

	Stop *Stop `json:"stop,omitempty"`

	Stream        *bool          `json:"stream,omitempty"`
	StreamOptions *StreamOptions `json:"stream_options,omitempty"`

	ParallelToolCalls *bool       `json:"parallel_tool_calls,omitempty"`
	Tools             []Tool      `json:"tools,omitempty"`
	ToolChoice        *ToolChoice `json:"tool_choice,omitempty"`

	ResponseFormat *llm.ResponseFormat `json:"response_format,omitempty"`

	Verbosity *string `json:"verbosity,omitempty"`
}

type StreamOptions struct {
	IncludeUsage bool `json:"include_usage,omitempty"`
}

// Stop is the stop sequence list, a string or an array of strings on the wire.
type Stop struct {
	Stop         *string
	MultipleStop []string
}

func (s Stop) MarshalJSON() ([]byte, error) {
	if s.Stop != nil {
		return json.Marshal(s.Stop)
	}

	if len(s.MultipleStop) > 0 {
		return json.Marshal(s.MultipleStop)
	}

	return []byte("[]"), nil
}

func (s *Stop) UnmarshalJSON(data []byte) error {
	var str string

	err := json.Unmarshal(data, &str)
	if err == nil {
		s.Stop = &str
		return nil
	}

	var strs []string

	err = json.Unmarshal(data, &strs)
	if err == nil {
		s.MultipleStop = strs
		return nil
	}

	return errors.New("invalid stop type")
}

// Message is a conversation message on the OpenAI wire.
type Message struct {
	Role string `json:"role,omitempty"`

	// Content of the message, a string or an array of content parts.
	// The omitzero tag is required: some frameworks depend on the field
	// being absent rather than null.
	Content MessageContent `json:"content,omitzero"`

	Name *string `json:"name,omitempty"`

	Refusal string `json:"refusal,omitempty"`

	ToolCallID *string        `json:"tool_call_id,omitempty"`
	ToolCalls  []llm.ToolCall `json:"tool_calls,omitempty"`

	Annotations []Annotation `json:"annotations,omitempty"`

	ReasoningContent *string `json:"reasoning_content,omitempty"`
}

type MessageContent struct {
	Content         *string
	MultipleContent []MessageContentPart
}

func (c MessageContent) MarshalJSON() ([]byte, error) {
	if len(c.MultipleContent) > 0 {
		if len(c.MultipleContent) == 1 && c.MultipleContent[0].Type == "text" {
			return json.Marshal(c.MultipleContent[0].Text)
		}

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

	var parts []MessageContentPart

	err = json.Unmarshal(data, &parts)
	if err == nil {
		c.MultipleContent = parts
		return nil
	}

	return errors.New("invalid content type")
}

// MessageContentPart is a single content block, e.g. text or an image.
type MessageContentPart struct {
	Type string `json:"type"`

	Text *string `json:"text,omitempty"`

	ImageURL *ImageURL `json:"image_url,omitempty"`

	Audio *llm.Audio `json:"input_audio,omitempty"`
}

// ImageURL represents an image URL with optional detail level.
type ImageURL struct {
	URL string `json:"url"`

	// Any of "auto", "low", "high".
	Detail *string `json:"detail,omitempty"`
}

// Tool describes a function tool the model may call.
type Tool struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

type Function struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ToolChoice controls which tool the model should call.
// string ("none", "auto", "required") or a named tool.
type ToolChoice struct {
	ToolChoice      *string
	NamedToolChoice *NamedToolChoice
}

type NamedToolChoice struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

type ToolFunction struct {
	Name string `json:"name"`
}

func (tc ToolChoice) MarshalJSON() ([]byte, error) {
	if tc.ToolChoice != nil {
		return json.Marshal(tc.ToolChoice)
	}

	if tc.NamedToolChoice != nil {
		return json.Marshal(tc.NamedToolChoice)
	}

	return []byte("null"), nil
}

func (tc *ToolChoice) UnmarshalJSON(data []byte) error {
	var str string

	err := json.Unmarshal(data, &str)
	if err == nil {
		tc.ToolChoice = &str
		return nil
	}

	var named NamedToolChoice

	err = json.Unmarshal(data, &named)
	if err == nil {
		tc.NamedToolChoice = &named
		return nil
	}

	return errors.New("invalid tool choice type")
}

// Annotation is a provider annotation on an assistant message.
type Annotation struct {
	Type string `json:"type"`

	URLCitation *URLCitation `json:"url_citation,omitempty"`
}

type URLCitation struct {
	URL        string `json:"url"`
	Title      string `json:"title,omitempty"`
	StartIndex int64  `json:"start_index,omitempty"`
	EndIndex   int64  `json:"end_index,omitempty"`
}

func (a Annotation) ToLLMAnnotation() llm.Annotation {
	annotation := llm.Annotation{Type: a.Type}
	if a.URLCitation != nil {
		annotation.URLCitation = &llm.URLCitation{
			URL:        a.URLCitation.URL,
			Title:      a.URLCitation.Title,
			StartIndex: a.URLCitation.StartIndex,
			EndIndex:   a.URLCitation.EndIndex,
		}
	}

	return annotation
}

func annotationFromLLM(a llm.Annotation) Annotation {
	annotation := Annotation{Type: a.Type}
	if a.URLCitation != nil {
		annotation.URLCitation = &URLCitation{
			URL:        a.URLCitation.URL,
			Title:      a.URLCitation.Title,
			StartIndex: a.URLCitation.StartIndex,
			EndIndex:   a.URLCitation.EndIndex,
		}
	}

	return annotation
}

// Response is the chat completion response on the OpenAI wire. Stream and
// non-stream responses share the struct, as upstream does.
type Response struct {
	ID string `json:"id"`

	Choices []Choice `json:"choices"`

	Object string `json:"object"`

	Created int64 `json:"created"`

	Model string `json:"model"`

	Usage *Usage `json:"usage,omitempty"`

	SystemFingerprint string `json:"system_fingerprint,omitempty"`

	ServiceTier string `json:"service_tier,omitempty"`

	// Citations is the flat citation list emitted by search grounded
	// compatible providers such as Perplexity.
	Citations []string `json:"citations,omitempty"`
}

type Choice struct {
	Index int `json:"index"`

	// Message is present on non-stream responses.
	Message *Message `json:"message,omitempty"`

	// Delta is present on stream chunks.
	Delta *Message `json:"delta,omitempty"`

	FinishReason *string `json:"finish_reason,omitempty"`

	Logprobs *llm.LogprobsContent `json:"logprobs,omitempty"`
}

// RequestFromLLM converts a unified request to the OpenAI wire form. Help
// fields, cache placement and non-function tools are dropped.
func RequestFromLLM(llmReq *llm.Request) *Request {
	if llmReq == nil {
		return nil
	}

	req := &Request{
		Model:               llmReq.Model,
		FrequencyPenalty:    llmReq.FrequencyPenalty,
		Logprobs:            llmReq.Logprobs,
		MaxCompletionTokens: llmReq.MaxCompletionTokens,
		MaxTokens:           llmReq.MaxTokens,
		PresencePenalty:     llmReq.PresencePenalty,
		Seed:                llmReq.Seed,
		Store:               llmReq.Store,
		Temperature:         llmReq.Temperature,
		TopLogprobs:         llmReq.TopLogprobs,
		TopP:                llmReq.TopP,
		PromptCacheKey:      llmReq.PromptCacheKey,
		SafetyIdentifier:    llmReq.SafetyIdentifier,
		User:                llmReq.User,
		LogitBias:           llmReq.LogitBias,
		Metadata:            llmReq.Metadata,
		Modalities:          llmReq.Modalities,
		ReasoningEffort:     llmReq.ReasoningEffort,
		ServiceTier:         llmReq.ServiceTier,
		Stream:              llmReq.Stream,
		ParallelToolCalls:   llmReq.ParallelToolCalls,
		ResponseFormat:      llmReq.ResponseFormat,
		Verbosity:           llmReq.Verbosity,
	}

	req.Messages = make([]Message, 0, len(llmReq.Messages))
	for _, msg := range llmReq.Messages {
		req.Messages = append(req.Messages, MessageFromLLM(msg))
	}

	for _, tool := range llmReq.Tools {
		if tool.Type != llm.ToolTypeFunction {
			continue
		}

		req.Tools = append(req.Tools, Tool{
			Type: tool.Type,
			Function: Function{
				Name:        tool.Function.Name,
				Description: tool.Function.Description,
				Parameters:  tool.Function.Parameters,
			},
		})
	}

	if llmReq.ToolChoice != nil {
		req.ToolChoice = toolChoiceFromLLM(llmReq.ToolChoice)
	}

	if llmReq.Stop != nil {
		req.Stop = &Stop{
			Stop:         llmReq.Stop.Stop,
			MultipleStop: llmReq.Stop.MultipleStop,
		}
	}

	if llmReq.StreamOptions != nil {
		req.StreamOptions = &StreamOptions{IncludeUsage: llmReq.StreamOptions.IncludeUsage}
	}

	return req
}

// ToLLMRequest converts the wire request to the unified form.
func (r *Request) ToLLMRequest() *llm.Request {
	if r == nil {
		return nil
	}

	llmReq := &llm.Request{
		Model:               r.Model,
		FrequencyPenalty:    r.FrequencyPenalty,
		Logprobs:            r.Logprobs,
		MaxCompletionTokens: r.MaxCompletionTokens,
		MaxTokens:           r.MaxTokens,
		PresencePenalty:     r.PresencePenalty,
		Seed:                r.Seed,
		Store:               r.Store,
		Temperature:         r.Temperature,
		TopLogprobs:         r.TopLogprobs,
		TopP:                r.TopP,
		PromptCacheKey:      r.PromptCacheKey,
		SafetyIdentifier:    r.SafetyIdentifier,
		User:                r.User,
		LogitBias:           r.LogitBias,
		Metadata:            r.Metadata,
		Modalities:          r.Modalities,
		ReasoningEffort:     r.ReasoningEffort,
		ServiceTier:         r.ServiceTier,
		Stream:              r.Stream,
		ParallelToolCalls:   r.ParallelToolCalls,
		ResponseFormat:      r.ResponseFormat,
		Verbosity:           r.Verbosity,
	}

	llmReq.Messages = make([]llm.Message, 0, len(r.Messages))
	for _, msg := range r.Messages {
		llmReq.Messages = append(llmReq.Messages, msg.ToLLMMessage())
	}

	for _, tool := range r.Tools {
		llmReq.Tools = append(llmReq.Tools, llm.Tool{
			Type: tool.Type,
			Function: llm.Function{
				Name:        tool.Function.Name,
				Description: tool.Function.Description,
				Parameters:  tool.Function.Parameters,
			},
		})
	}

	if r.ToolChoice != nil {
		llmReq.ToolChoice = toolChoiceToLLM(r.ToolChoice)
	}

	if r.Stop != nil {
		llmReq.Stop = &llm.Stop{
			Stop:         r.Stop.Stop,
			MultipleStop: r.Stop.MultipleStop,
		}
	}

	if r.StreamOptions != nil {
		llmReq.StreamOptions = &llm.StreamOptions{IncludeUsage: r.StreamOptions.IncludeUsage}
	}

	return llmReq
}

// MessageFromLLM converts a unified message to the wire form, dropping the
// help fields and any cache boundary leftovers.
func MessageFromLLM(msg llm.Message) Message {
	out := Message{
		Role:             msg.Role,
		Name:             msg.Name,
		Refusal:          msg.Refusal,
		ToolCallID:       msg.ToolCallID,
		ReasoningContent: msg.ReasoningContent,
		Content:          contentFromLLM(msg.Content),
	}

	if len(msg.ToolCalls) > 0 {
		out.ToolCalls = make([]llm.ToolCall, len(msg.ToolCalls))
		copy(out.ToolCalls, msg.ToolCalls)
	}

	for _, annotation := range msg.Annotations {
		out.Annotations = append(out.Annotations, annotationFromLLM(annotation))
	}

	return out
}

// ToLLMMessage converts the wire message to the unified form.
func (m Message) ToLLMMessage() llm.Message {
	msg := llm.Message{
		Role:             m.Role,
		Name:             m.Name,
		Refusal:          m.Refusal,
		ToolCallID:       m.ToolCallID,
		ReasoningContent: m.ReasoningContent,
		Content:          contentToLLM(m.Content),
	}

	if len(m.ToolCalls) > 0 {
		msg.ToolCalls = make([]llm.ToolCall, len(m.ToolCalls))
		copy(msg.ToolCalls, m.ToolCalls)
	}

	if len(m.Annotations) > 0 {
		msg.Annotations = make([]llm.Annotation, 0, len(m.Annotations))
		for _, annotation := range m.Annotations {
			msg.Annotations = append(msg.Annotations, annotation.ToLLMAnnotation())
		}
	}

	return msg
}

func contentFromLLM(content llm.MessageContent) MessageContent {
	if content.Content != nil || len(content.MultipleContent) == 0 {
		return MessageContent{Content: content.Content}
	}

	parts := make([]MessageContentPart, 0, len(content.MultipleContent))

	for _, part := range content.MultipleContent {
		// Cache boundary markers are not representable on this wire.
		if llm.IsCachePoint(part) {
			continue
		}

		wirePart := MessageContentPart{
			Type:  part.Type,
			Text:  part.Text,
			Audio: part.Audio,
		}
		if part.ImageURL != nil {
			wirePart.ImageURL = &ImageURL{
				URL:    part.ImageURL.URL,
				Detail: part.ImageURL.Detail,
			}
		}

		parts = append(parts, wirePart)
	}

	return MessageContent{MultipleContent: parts}
}

func contentToLLM(content MessageContent) llm.MessageContent {
	if content.Content != nil || len(content.MultipleContent) == 0 {
		return llm.MessageContent{Content: content.Content}
	}

	parts := make([]llm.MessageContentPart, 0, len(content.MultipleContent))

	for _, part := range content.MultipleContent {
		llmPart := llm.MessageContentPart{
			Type:  part.Type,
			Text:  part.Text,
			Audio: part.Audio,
		}
		if part.ImageURL != nil {
			llmPart.ImageURL = &llm.ImageURL{
				URL:    part.ImageURL.URL,
				Detail: part.ImageURL.Detail,
			}
		}

		parts = append(parts, llmPart)
	}

	return llm.MessageContent{MultipleContent: parts}
}

func toolChoiceFromLLM(tc *llm.ToolChoice) *ToolChoice {
	choice := &ToolChoice{ToolChoice: tc.ToolChoice}
	if tc.NamedToolChoice != nil {
		choice.NamedToolChoice = &NamedToolChoice{
			Type:     tc.NamedToolChoice.Type,
			Function: ToolFunction{Name: tc.NamedToolChoice.Function.Name},
		}
	}

	return choice
}

func toolChoiceToLLM(tc *ToolChoice) *llm.ToolChoice {
	choice := &llm.ToolChoice{ToolChoice: tc.ToolChoice}
	if tc.NamedToolChoice != nil {
		choice.NamedToolChoice = &llm.NamedToolChoice{
			Type:     tc.NamedToolChoice.Type,
			Function: llm.ToolFunction{Name: tc.NamedToolChoice.Function.Name},
		}
	}

	return choice
}

// ToLLMResponse converts the wire response to the unified form. Citations are
// preserved on the transformer metadata.
func (r *Response) ToLLMResponse() *llm.Response {
	if r == nil {
		return nil
	}

	resp := &llm.Response{
		ID:                r.ID,
		Object:            r.Object,
		Created:           r.Created,
		Model:             r.Model,
		SystemFingerprint: r.SystemFingerprint,
		ServiceTier:       r.ServiceTier,
		Usage:             r.Usage.ToLLMUsage(),
	}

	resp.Choices = make([]llm.Choice, 0, len(r.Choices))
	for _, choice := range r.Choices {
		resp.Choices = append(resp.Choices, choice.toLLMChoice())
	}

	if len(r.Citations) > 0 {
		citations := make([]string, len(r.Citations))
		copy(citations, r.Citations)

		resp.TransformerMetadata = map[string]any{
			TransformerMetadataKeyCitations: citations,
		}
	}

	return resp
}

// ResponseFromLLM converts a unified response to the wire form.
func ResponseFromLLM(llmResp *llm.Response) *Response {
	if llmResp == nil {
		return nil
	}

	resp := &Response{
		ID:                llmResp.ID,
		Object:            llmResp.Object,
		Created:           llmResp.Created,
		Model:             llmResp.Model,
		SystemFingerprint: llmResp.SystemFingerprint,
		ServiceTier:       llmResp.ServiceTier,
		Usage:             UsageFromLLM(llmResp.Usage),
	}

	resp.Choices = make([]Choice, 0, len(llmResp.Choices))
	for _, choice := range llmResp.Choices {
		resp.Choices = append(resp.Choices, choiceFromLLM(choice))
	}

	// The metadata value may arrive as []string or as []any after a JSON
	// round trip, so coerce rather than type-assert.
	if raw, ok := llmResp.TransformerMetadata[TransformerMetadataKeyCitations]; ok {
		if citations, err := cast.ToStringSliceE(raw); err == nil && len(citations) > 0 {
			resp.Citations = citations
		}
	}

	return resp
}

func (c Choice) toLLMChoice() llm.Choice {
	choice := llm.Choice{
		Index:        c.Index,
		FinishReason: c.FinishReason,
		Logprobs:     c.Logprobs,
	}

	if c.Message != nil {
		msg := c.Message.ToLLMMessage()
		choice.Message = &msg
	}

	if c.Delta != nil {
		delta := c.Delta.ToLLMMessage()
		choice.Delta = &delta
	}

	return choice
}

func choiceFromLLM(c llm.Choice) Choice {
	choice := Choice{
		Index:        c.Index,
		FinishReason: c.FinishReason,
		Logprobs:     c.Logprobs,
	}

	if c.Message != nil {
		msg := MessageFromLLM(*c.Message)
		choice.Message = &msg
	}

	if c.Delta != nil {
		delta := MessageFromLLM(*c.Delta)
		choice.Delta = &delta
	}

	return choice
}

// OpenAIError is the error envelope on the OpenAI wire.
type OpenAIError struct {
	Detail llm.ErrorDetail `json:"error"`
}
