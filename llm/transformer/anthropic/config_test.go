package anthropic

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/ronakrm/promptrelay/llm"
	"github.com/ronakrm/promptrelay/llm/httpclient"
)

func TestOutboundTransformer_PlatformConfigurations(t *testing.T) {
	tests := []struct {
		name            string
		config          *Config
		stream          bool
		expectedURL     string
		expectedVersion string
		expectedAuth    string
	}{
		{
			name: "Direct Anthropic API",
			config: &Config{
				Type:    PlatformDirect,
				BaseURL: "https://api.anthropic.com",
				APIKey:  "test-api-key",
			},
			expectedURL:     "https://api.anthropic.com/v1/messages",
			expectedVersion: "2023-06-01",
			expectedAuth:    httpclient.AuthTypeAPIKey,
		},
		{
			name: "Direct with v1 suffix",
			config: &Config{
				Type:    PlatformDirect,
				BaseURL: "https://api.anthropic.com/v1",
				APIKey:  "test-api-key",
			},
			expectedURL:     "https://api.anthropic.com/v1/messages",
			expectedVersion: "2023-06-01",
			expectedAuth:    httpclient.AuthTypeAPIKey,
		},
		{
			name: "Raw URL marker skips version segment",
			config: &Config{
				Type:    PlatformDirect,
				BaseURL: "https://gateway.internal/anthropic#",
				APIKey:  "test-api-key",
			},
			expectedURL:     "https://gateway.internal/anthropic/messages",
			expectedVersion: "2023-06-01",
			expectedAuth:    httpclient.AuthTypeAPIKey,
		},
		{
			name: "Moonshot anthropic endpoint",
			config: &Config{
				Type:    PlatformMoonshot,
				BaseURL: "https://api.moonshot.cn/anthropic",
				RawURL:  true,
				APIKey:  "test-api-key",
			},
			expectedURL:     "https://api.moonshot.cn/anthropic/messages",
			expectedVersion: "2023-06-01",
			expectedAuth:    httpclient.AuthTypeAPIKey,
		},
		{
			name: "Bedrock invoke",
			config: &Config{
				Type:    PlatformBedrock,
				BaseURL: "https://bedrock-runtime.us-east-1.amazonaws.com",
				APIKey:  "bedrock-token",
			},
			expectedURL:     "https://bedrock-runtime.us-east-1.amazonaws.com/model/claude-3-sonnet-20240229/invoke",
			expectedVersion: "bedrock-2023-05-31",
			expectedAuth:    httpclient.AuthTypeBearer,
		},
		{
			name: "Bedrock invoke with stream",
			config: &Config{
				Type:    PlatformBedrock,
				BaseURL: "https://bedrock-runtime.us-east-1.amazonaws.com",
				APIKey:  "bedrock-token",
			},
			stream:          true,
			expectedURL:     "https://bedrock-runtime.us-east-1.amazonaws.com/model/claude-3-sonnet-20240229/invoke-with-response-stream",
			expectedVersion: "bedrock-2023-05-31",
			expectedAuth:    httpclient.AuthTypeBearer,
		},
		{
			name: "Vertex rawPredict",
			config: &Config{
				Type:      PlatformVertex,
				BaseURL:   "https://us-east5-aiplatform.googleapis.com",
				ProjectID: "proj-1",
				Region:    "us-east5",
				APIKey:    "vertex-token",
			},
			expectedURL:     "https://us-east5-aiplatform.googleapis.com/v1/projects/proj-1/locations/us-east5/publishers/anthropic/models/claude-3-sonnet-20240229:rawPredict",
			expectedVersion: "vertex-2023-10-16",
			expectedAuth:    httpclient.AuthTypeBearer,
		},
		{
			name: "Vertex streamRawPredict",
			config: &Config{
				Type:      PlatformVertex,
				BaseURL:   "https://us-east5-aiplatform.googleapis.com",
				ProjectID: "proj-1",
				Region:    "us-east5",
				APIKey:    "vertex-token",
			},
			stream:          true,
			expectedURL:     "https://us-east5-aiplatform.googleapis.com/v1/projects/proj-1/locations/us-east5/publishers/anthropic/models/claude-3-sonnet-20240229:streamRawPredict",
			expectedVersion: "vertex-2023-10-16",
			expectedAuth:    httpclient.AuthTypeBearer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transformer, err := NewOutboundTransformerWithConfig(tt.config)
			require.NoError(t, err)

			req := &llm.Request{
				Model:     "claude-3-sonnet-20240229",
				MaxTokens: lo.ToPtr(int64(1000)),
				Messages: []llm.Message{
					{
						Role: "user",
						Content: llm.MessageContent{
							Content: lo.ToPtr("Hello, world!"),
						},
					},
				},
				Stream: &tt.stream,
			}

			httpReq, err := transformer.TransformRequest(context.Background(), req)
			require.NoError(t, err)
			require.NotNil(t, httpReq)

			require.Equal(t, tt.expectedURL, httpReq.URL)
			require.Equal(t, tt.expectedVersion, httpReq.Headers.Get("Anthropic-Version"))
			require.Equal(t, "application/json", httpReq.Headers.Get("Content-Type"))

			require.NotNil(t, httpReq.Auth)
			require.Equal(t, tt.expectedAuth, httpReq.Auth.Type)
			require.Equal(t, tt.config.APIKey, httpReq.Auth.APIKey)

			if tt.expectedAuth == httpclient.AuthTypeAPIKey {
				require.Equal(t, "X-API-Key", httpReq.Auth.HeaderKey)
			}
		})
	}
}

func TestOutboundTransformer_VertexConfigValidation(t *testing.T) {
	req := &llm.Request{
		Model:     "claude-3-sonnet-20240229",
		MaxTokens: lo.ToPtr(int64(1000)),
		Messages: []llm.Message{
			{Role: "user", Content: llm.MessageContent{Content: lo.ToPtr("Hello")}},
		},
	}

	transformer, err := NewOutboundTransformerWithConfig(&Config{
		Type:    PlatformVertex,
		BaseURL: "https://us-east5-aiplatform.googleapis.com",
		Region:  "us-east5",
		APIKey:  "vertex-token",
	})
	require.NoError(t, err)

	_, err = transformer.TransformRequest(context.Background(), req)
	require.ErrorContains(t, err, "project ID is required")

	transformer, err = NewOutboundTransformerWithConfig(&Config{
		Type:      PlatformVertex,
		BaseURL:   "https://us-east5-aiplatform.googleapis.com",
		ProjectID: "proj-1",
		APIKey:    "vertex-token",
	})
	require.NoError(t, err)

	_, err = transformer.TransformRequest(context.Background(), req)
	require.ErrorContains(t, err, "region is required")
}

func TestOutboundTransformer_BedrockBodyShape(t *testing.T) {
	transformer, err := NewOutboundTransformerWithConfig(&Config{
		Type:    PlatformBedrock,
		BaseURL: "https://bedrock-runtime.us-east-1.amazonaws.com",
		APIKey:  "bedrock-token",
	})
	require.NoError(t, err)

	req := &llm.Request{
		Model:     "claude-3-sonnet-20240229",
		MaxTokens: lo.ToPtr(int64(1000)),
		Stream:    lo.ToPtr(true),
		Messages: []llm.Message{
			{Role: "user", Content: llm.MessageContent{Content: lo.ToPtr("Hello")}},
		},
	}

	httpReq, err := transformer.TransformRequest(context.Background(), req)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(httpReq.Body, &body))

	// Bedrock carries model and streaming in the URL, not the body.
	require.NotContains(t, body, "model")
	require.NotContains(t, body, "stream")
	require.Equal(t, "bedrock-2023-05-31", body["anthropic_version"])
}
