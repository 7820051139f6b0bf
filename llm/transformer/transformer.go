package transformer

import (
	"context"

	"github.com/ronakrm/promptrelay/llm"
	"github.com/ronakrm/promptrelay/llm/httpclient"
	"github.com/ronakrm/promptrelay/llm/streams"
)

// Inbound converts between the provider-facing HTTP representation of a
// client request and the unified llm types. Implementations own one API
// format, e.g. OpenAI chat completions or Anthropic messages.
type Inbound interface {
	// APIFormat returns the API format the transformer accepts.
	APIFormat() llm.APIFormat

	// TransformRequest parses an incoming HTTP request into a unified request.
	TransformRequest(ctx context.Context, req *httpclient.Request) (*llm.Request, error)

	// TransformResponse renders a unified response in the inbound API format.
	TransformResponse(ctx context.Context, resp *llm.Response) (*httpclient.Response, error)

	// TransformStream renders a unified response stream as SSE events in the
	// inbound API format.
	TransformStream(ctx context.Context, stream streams.Stream[*llm.Response]) (streams.Stream[*httpclient.StreamEvent], error)

	// TransformError renders any pipeline error as an HTTP error response in
	// the inbound API format.
	TransformError(ctx context.Context, rawErr error) *httpclient.Error

	// AggregateStreamChunks merges the stream events emitted by TransformStream
	// into a single response body in the inbound API format.
	AggregateStreamChunks(ctx context.Context, chunks []*httpclient.StreamEvent) ([]byte, llm.ResponseMeta, error)
}

// Outbound converts between the unified llm types and the wire format of an
// upstream provider.
type Outbound interface {
	// APIFormat returns the API format the transformer emits.
	APIFormat() llm.APIFormat

	// TransformRequest builds the provider HTTP request for a unified request.
	TransformRequest(ctx context.Context, req *llm.Request) (*httpclient.Request, error)

	// TransformResponse parses a provider HTTP response into a unified response.
	TransformResponse(ctx context.Context, resp *httpclient.Response) (*llm.Response, error)

	// TransformStream parses provider SSE events into a unified response stream.
	TransformStream(ctx context.Context, stream streams.Stream[*httpclient.StreamEvent]) (streams.Stream[*llm.Response], error)

	// TransformError converts a provider HTTP error into a unified response error.
	// Implementations must handle a nil error body.
	TransformError(ctx context.Context, rawErr *httpclient.Error) *llm.ResponseError

	// AggregateStreamChunks merges raw provider stream events into a single
	// provider response body, e.g. for logging or usage accounting.
	AggregateStreamChunks(ctx context.Context, chunks []*httpclient.StreamEvent) ([]byte, llm.ResponseMeta, error)
}
