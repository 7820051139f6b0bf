package openai

import "github.com/ronakrm/promptrelay/llm"

// Usage is the token usage block on the OpenAI wire.
//
// Compatible providers disagree on where the cache read counter lives: the
// upstream API reports it in prompt_tokens_details, others report a top level
// cached_tokens. Both spellings are accepted and folded into the unified
// details. There is no write counter on this wire, the provider manages its
// cache without explicit placement.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`

	PromptTokensDetails     PromptTokensDetails     `json:"prompt_tokens_details,omitzero"`
	CompletionTokensDetails CompletionTokensDetails `json:"completion_tokens_details,omitzero"`

	// CachedTokens is the top level cache read counter used by providers
	// such as Moonshot and DeepSeek.
	CachedTokens int64 `json:"cached_tokens,omitempty"`
}

type PromptTokensDetails struct {
	AudioTokens       int64 `json:"audio_tokens,omitempty"`
	CachedTokens      int64 `json:"cached_tokens"`
	WriteCachedTokens int64 `json:"write_cached_tokens,omitempty"`
}

type CompletionTokensDetails struct {
	AudioTokens              int64 `json:"audio_tokens,omitempty"`
	ReasoningTokens          int64 `json:"reasoning_tokens,omitempty"`
	AcceptedPredictionTokens int64 `json:"accepted_prediction_tokens,omitempty"`
	RejectedPredictionTokens int64 `json:"rejected_prediction_tokens,omitempty"`
}

// ToLLMUsage converts the wire usage to the unified form. The details block
// in prompt_tokens_details wins over a top level cached_tokens counter.
func (u *Usage) ToLLMUsage() *llm.Usage {
	if u == nil {
		return nil
	}

	usage := &llm.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}

	promptDetails := u.PromptTokensDetails
	if promptDetails.CachedTokens == 0 && u.CachedTokens > 0 {
		promptDetails.CachedTokens = u.CachedTokens
	}

	if promptDetails != (PromptTokensDetails{}) {
		usage.PromptTokensDetails = &llm.PromptTokensDetails{
			AudioTokens:       promptDetails.AudioTokens,
			CachedTokens:      promptDetails.CachedTokens,
			WriteCachedTokens: promptDetails.WriteCachedTokens,
		}
	}

	if u.CompletionTokensDetails != (CompletionTokensDetails{}) {
		usage.CompletionTokensDetails = &llm.CompletionTokensDetails{
			AudioTokens:              u.CompletionTokensDetails.AudioTokens,
			ReasoningTokens:          u.CompletionTokensDetails.ReasoningTokens,
			AcceptedPredictionTokens: u.CompletionTokensDetails.AcceptedPredictionTokens,
			RejectedPredictionTokens: u.CompletionTokensDetails.RejectedPredictionTokens,
		}
	}

	return usage
}

// UsageFromLLM creates the wire usage from unified llm.Usage.
func UsageFromLLM(u *llm.Usage) *Usage {
	if u == nil {
		return nil
	}

	usage := &Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}

	if u.PromptTokensDetails != nil {
		usage.PromptTokensDetails = PromptTokensDetails{
			AudioTokens:       u.PromptTokensDetails.AudioTokens,
			CachedTokens:      u.PromptTokensDetails.CachedTokens,
			WriteCachedTokens: u.PromptTokensDetails.WriteCachedTokens,
		}
	}

	if u.CompletionTokensDetails != nil {
		usage.CompletionTokensDetails = CompletionTokensDetails{
			AudioTokens:              u.CompletionTokensDetails.AudioTokens,
			ReasoningTokens:          u.CompletionTokensDetails.ReasoningTokens,
			AcceptedPredictionTokens: u.CompletionTokensDetails.AcceptedPredictionTokens,
			RejectedPredictionTokens: u.CompletionTokensDetails.RejectedPredictionTokens,
		}
	}

	return usage
}
