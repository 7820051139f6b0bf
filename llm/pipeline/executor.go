package pipeline

import (
	"context"

	"github.com/ronakrm/promptrelay/llm/httpclient"
	"github.com/ronakrm/promptrelay/llm/streams"
)

// Executor sends the compiled provider request. *httpclient.HttpClient is the
// production implementation; channels with bespoke signing wrap it via
// ChannelCustomizedExecutor.
type Executor interface {
	// Do executes a non-streaming request.
	Do(ctx context.Context, request *httpclient.Request) (*httpclient.Response, error)

	// DoStream executes a streaming request and returns the event stream.
	DoStream(ctx context.Context, request *httpclient.Request) (streams.Stream[*httpclient.StreamEvent], error)
}
