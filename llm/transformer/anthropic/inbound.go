package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ronakrm/promptrelay/llm"
	"github.com/ronakrm/promptrelay/llm/httpclient"
	"github.com/ronakrm/promptrelay/llm/internal/pkg/xerrors"
	"github.com/ronakrm/promptrelay/llm/transformer"
)

// InboundTransformer implements transformer.Inbound for the Anthropic
// Messages format.
type InboundTransformer struct{}

// NewInboundTransformer creates a new Anthropic InboundTransformer.
func NewInboundTransformer() *InboundTransformer {
	return &InboundTransformer{}
}

func (t *InboundTransformer) APIFormat() llm.APIFormat {
	return llm.APIFormatAnthropicMessage
}

// TransformRequest parses an Anthropic Messages HTTP request into the unified request.
func (t *InboundTransformer) TransformRequest(ctx context.Context, httpReq *httpclient.Request) (*llm.Request, error) {
	if httpReq == nil {
		return nil, fmt.Errorf("%w: http request is nil", transformer.ErrInvalidRequest)
	}

	if len(httpReq.Body) == 0 {
		return nil, fmt.Errorf("%w: request body is empty", transformer.ErrInvalidRequest)
	}

	contentType := httpReq.Headers.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "application/json") {
		return nil, fmt.Errorf("%w: unsupported content type: %s", transformer.ErrInvalidRequest, contentType)
	}

	var anthropicReq MessageRequest

	err := json.Unmarshal(httpReq.Body, &anthropicReq)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode anthropic request: %w", transformer.ErrInvalidRequest, err)
	}

	if anthropicReq.Model == "" {
		return nil, fmt.Errorf("%w: model is required", transformer.ErrInvalidRequest)
	}

	if len(anthropicReq.Messages) == 0 {
		return nil, fmt.Errorf("%w: messages are required", transformer.ErrInvalidRequest)
	}

	if anthropicReq.MaxTokens <= 0 {
		return nil, fmt.Errorf("%w: max_tokens is required and must be positive", transformer.ErrInvalidRequest)
	}

	if anthropicReq.System != nil {
		for _, prompt := range anthropicReq.System.MultiplePrompts {
			if prompt.Type != "text" {
				return nil, fmt.Errorf("%w: system prompt must be text", transformer.ErrInvalidRequest)
			}
		}
	}

	return convertToLLMRequest(&anthropicReq)
}

// TransformResponse renders a unified response as an Anthropic Messages HTTP response.
func (t *InboundTransformer) TransformResponse(ctx context.Context, chatResp *llm.Response) (*httpclient.Response, error) {
	if chatResp == nil {
		return nil, fmt.Errorf("chat completion response is nil")
	}

	anthropicResp := convertToAnthropicResponse(chatResp)

	body, err := json.Marshal(anthropicResp)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal anthropic response: %w", err)
	}

	return &httpclient.Response{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: http.Header{
			"Content-Type":  []string{"application/json"},
			"Cache-Control": []string{"no-cache"},
		},
	}, nil
}

func (t *InboundTransformer) AggregateStreamChunks(ctx context.Context, chunks []*httpclient.StreamEvent) ([]byte, llm.ResponseMeta, error) {
	// The inbound side has no platform information; aggregate as the
	// Anthropic official API.
	return AggregateStreamChunks(ctx, chunks, PlatformDirect)
}

// TransformError renders any pipeline error as an Anthropic error response.
func (t *InboundTransformer) TransformError(ctx context.Context, rawErr error) *httpclient.Error {
	if rawErr == nil {
		return &httpclient.Error{
			StatusCode: http.StatusInternalServerError,
			Status:     http.StatusText(http.StatusInternalServerError),
			Body:       []byte(`{"message":"internal server error","request_id":""}`),
		}
	}

	if errors.Is(rawErr, transformer.ErrInvalidModel) {
		return &httpclient.Error{
			StatusCode: http.StatusUnprocessableEntity,
			Status:     http.StatusText(http.StatusUnprocessableEntity),
			Body: []byte(
				fmt.Sprintf(
					`{"message":"%s","type":"invalid_model_error"}`,
					strings.TrimPrefix(rawErr.Error(), transformer.ErrInvalidModel.Error()+": "),
				),
			),
		}
	}

	if llmErr, ok := xerrors.As[*llm.ResponseError](rawErr); ok {
		return anthropicHTTPError(&AnthropicError{
			StatusCode: llmErr.StatusCode,
			RequestID:  llmErr.Detail.RequestID,
			Error:      ErrorDetail{Type: llmErr.Detail.Type, Message: llmErr.Detail.Message},
		})
	}

	if httpErr, ok := xerrors.As[*httpclient.Error](rawErr); ok {
		return httpErr
	}

	// Cache boundary markers in positions the wire format cannot express are
	// client errors, rejected before any upstream call.
	if errors.Is(rawErr, llm.ErrInvalidCachePoint) {
		return anthropicHTTPError(&AnthropicError{
			StatusCode: http.StatusBadRequest,
			Error:      ErrorDetail{Type: "invalid_request_error", Message: rawErr.Error()},
		})
	}

	if errors.Is(rawErr, transformer.ErrInvalidRequest) {
		return anthropicHTTPError(&AnthropicError{
			StatusCode: http.StatusBadRequest,
			Error: ErrorDetail{
				Type:    "invalid_request_error",
				Message: strings.TrimPrefix(rawErr.Error(), transformer.ErrInvalidRequest.Error()+": "),
			},
		})
	}

	return anthropicHTTPError(&AnthropicError{
		StatusCode: http.StatusInternalServerError,
		Error:      ErrorDetail{Type: "internal_server_error", Message: rawErr.Error()},
	})
}

// anthropicHTTPError marshals an AnthropicError into an HTTP error response.
func anthropicHTTPError(aErr *AnthropicError) *httpclient.Error {
	body, err := json.Marshal(aErr)
	if err != nil {
		return &httpclient.Error{
			StatusCode: http.StatusInternalServerError,
			Status:     http.StatusText(http.StatusInternalServerError),
			Body:       []byte(`{"message":"internal server error","type":"internal_server_error"}`),
		}
	}

	return &httpclient.Error{
		StatusCode: aErr.StatusCode,
		Status:     http.StatusText(aErr.StatusCode),
		Body:       body,
	}
}
