package anthropic

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/ronakrm/promptrelay/llm"
	"github.com/ronakrm/promptrelay/llm/httpclient"
	"github.com/ronakrm/promptrelay/llm/oauth"
	"github.com/ronakrm/promptrelay/llm/transformer"
)

// oauthBetaFeature must accompany every request that authenticates with an
// OAuth access token instead of an API key.
const oauthBetaFeature = "oauth-2025-04-20"

// OAuthParams contains parameters for creating an OAuthTransformer.
type OAuthParams struct {
	TokenProvider oauth.TokenGetter // OAuth token provider (required)
	BaseURL       string            // Base URL for the Anthropic API (optional)
}

// NewOAuthTransformer creates an outbound transformer that authenticates with
// OAuth bearer tokens instead of an API key. Tokens are fetched per request
// from the provider, so refresh handling stays outside the transformer.
func NewOAuthTransformer(params OAuthParams) (*OAuthTransformer, error) {
	if params.TokenProvider == nil {
		return nil, fmt.Errorf("TokenProvider is required")
	}

	baseURL := params.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com/v1"
	}

	outbound, err := NewOutboundTransformerWithConfig(&Config{
		Type:    PlatformDirect,
		BaseURL: baseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create outbound transformer: %w", err)
	}

	return &OAuthTransformer{
		Outbound: outbound,
		tokens:   params.TokenProvider,
	}, nil
}

// OAuthTransformer wraps an OutboundTransformer and swaps API key
// authentication for OAuth bearer tokens. The OAuth endpoint only serves
// beta-flagged requests, so any "betas" array found in the request body is
// lifted into the Anthropic-Beta header alongside the OAuth beta feature.
type OAuthTransformer struct {
	transformer.Outbound

	tokens oauth.TokenGetter
}

func (t *OAuthTransformer) TransformRequest(
	ctx context.Context,
	llmReq *llm.Request,
) (*httpclient.Request, error) {
	if llmReq == nil {
		return nil, fmt.Errorf("request is nil")
	}

	creds, err := t.tokens.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get oauth token: %w", err)
	}

	// The API rejects thinking when tool_choice forces tool use, clear it
	// before serialization.
	reqCopy := disableThinkingIfToolChoiceForced(llmReq)

	httpReq, err := t.Outbound.TransformRequest(ctx, reqCopy)
	if err != nil {
		return nil, err
	}

	betas := []string{oauthBetaFeature}

	if len(httpReq.Body) > 0 {
		bodyBetas, body := extractAndRemoveBetas(httpReq.Body)
		httpReq.Body = body
		betas = append(betas, bodyBetas...)
	}

	httpReq.Headers.Set("Anthropic-Beta", mergeBetasIntoHeader(httpReq.Headers.Get("Anthropic-Beta"), betas))

	if httpReq.Query == nil {
		httpReq.Query = make(url.Values)
	}

	if httpReq.Query.Get("beta") == "" {
		httpReq.Query.Set("beta", "true")
	}

	if llmReq.Stream != nil && *llmReq.Stream {
		httpReq.Headers.Set("Accept", "text/event-stream")
	}

	httpReq.Auth = &httpclient.AuthConfig{
		Type:   httpclient.AuthTypeBearer,
		APIKey: creds.AccessToken,
	}

	return httpReq, nil
}

// disableThinkingIfToolChoiceForced clears reasoning settings when tool_choice
// forces tool use. The API does not allow thinking together with tool_choice
// "any" or a specific named tool.
func disableThinkingIfToolChoiceForced(llmReq *llm.Request) *llm.Request {
	if llmReq.ToolChoice == nil {
		return llmReq
	}

	forcesToolUse := false

	if llmReq.ToolChoice.ToolChoice != nil {
		if *llmReq.ToolChoice.ToolChoice == "any" {
			forcesToolUse = true
		}
	} else if llmReq.ToolChoice.NamedToolChoice != nil {
		if llmReq.ToolChoice.NamedToolChoice.Type == "tool" {
			forcesToolUse = true
		}
	}

	if forcesToolUse && (llmReq.ReasoningEffort != "" || llmReq.ReasoningBudget != nil) {
		reqCopy := *llmReq
		reqCopy.ReasoningEffort = ""
		reqCopy.ReasoningBudget = nil

		return &reqCopy
	}

	return llmReq
}

// extractAndRemoveBetas extracts the "betas" array from the body and removes
// it. Returns the extracted betas as a string slice and the modified body.
func extractAndRemoveBetas(body []byte) ([]string, []byte) {
	betasResult := gjson.GetBytes(body, "betas")
	if !betasResult.Exists() {
		return nil, body
	}

	var betas []string

	if betasResult.IsArray() {
		for _, item := range betasResult.Array() {
			if s := strings.TrimSpace(item.String()); s != "" {
				betas = append(betas, s)
			}
		}
	} else if s := strings.TrimSpace(betasResult.String()); s != "" {
		betas = append(betas, s)
	}

	body, _ = sjson.DeleteBytes(body, "betas")

	return betas, body
}

// mergeBetasIntoHeader merges beta features into the Anthropic-Beta header
// value, preserving order and dropping duplicates.
func mergeBetasIntoHeader(baseBetas string, extraBetas []string) string {
	var parts []string

	existingSet := make(map[string]bool)

	baseBetas = strings.TrimSpace(baseBetas)
	if baseBetas != "" {
		for _, b := range strings.Split(baseBetas, ",") {
			b = strings.TrimSpace(b)
			if b != "" && !existingSet[b] {
				parts = append(parts, b)
				existingSet[b] = true
			}
		}
	}

	for _, beta := range extraBetas {
		beta = strings.TrimSpace(beta)
		if beta != "" && !existingSet[beta] {
			parts = append(parts, beta)
			existingSet[beta] = true
		}
	}

	return strings.Join(parts, ",")
}
