package bedrock

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws/protocol/eventstream"
	"github.com/tidwall/gjson"

	"github.com/ronakrm/promptrelay/llm/httpclient"
)

// Ensure awsEventStreamDecoder implements StreamDecoder.
var _ httpclient.StreamDecoder = (*awsEventStreamDecoder)(nil)

// NewAWSEventStreamDecoder creates a decoder for the AWS binary event stream
// framing used by Bedrock invoke-with-response-stream responses.
func NewAWSEventStreamDecoder(ctx context.Context, rc io.ReadCloser) httpclient.StreamDecoder {
	return &awsEventStreamDecoder{
		ctx:     ctx,
		rc:      rc,
		decoder: eventstream.NewDecoder(),
	}
}

// awsEventStreamDecoder implements streams.Stream over AWS event stream frames.
//
//nolint:containedctx // Checked.
type awsEventStreamDecoder struct {
	ctx     context.Context
	rc      io.ReadCloser
	decoder *eventstream.Decoder
	current *httpclient.StreamEvent
	err     error

	// NOT concurrency-safe: do not call Next/Close from multiple goroutines.
	closed   bool
	closeErr error
}

// Next advances to the next event in the stream.
func (s *awsEventStreamDecoder) Next() bool {
	if s.err != nil || s.closed {
		return false
	}

	select {
	case <-s.ctx.Done():
		s.err = s.ctx.Err()
		_ = s.Close()

		return false
	default:
	}

	for {
		// A fresh payload buffer every frame: events may outlive the next
		// Decode call once handed to the caller.
		msg, err := s.decoder.Decode(s.rc, nil)
		if err != nil {
			if errors.Is(err, io.EOF) {
				slog.DebugContext(s.ctx, "AWS event stream closed")
				_ = s.Close()

				return false
			}

			s.err = err
			_ = s.Close()

			return false
		}

		event, err := s.toStreamEvent(msg)
		if err != nil {
			s.err = err
			_ = s.Close()

			return false
		}

		if event == nil {
			// Non-event frame (e.g. ping), keep reading.
			continue
		}

		slog.DebugContext(s.ctx, "AWS event stream frame received", slog.Any("event", event))

		s.current = event

		return true
	}
}

// toStreamEvent converts a decoded frame to a StreamEvent. It returns nil for
// frames that carry no payload for the caller.
func (s *awsEventStreamDecoder) toStreamEvent(msg eventstream.Message) (*httpclient.StreamEvent, error) {
	messageType := headerString(msg.Headers, ":message-type")

	switch messageType {
	case "exception":
		exceptionType := headerString(msg.Headers, ":exception-type")
		return nil, fmt.Errorf("bedrock stream exception %s: %s", exceptionType, string(msg.Payload))
	case "error":
		errorCode := headerString(msg.Headers, ":error-code")
		errorMessage := headerString(msg.Headers, ":error-message")

		return nil, fmt.Errorf("bedrock stream error %s: %s", errorCode, errorMessage)
	}

	eventType := headerString(msg.Headers, ":event-type")
	if eventType == "" {
		return nil, nil
	}

	data := msg.Payload

	// Bedrock wraps the provider payload as {"bytes": "<base64>"} in chunk
	// events. Unwrap it so downstream transformers see the provider JSON.
	if encoded := gjson.GetBytes(data, "bytes"); encoded.Exists() {
		decoded, err := base64.StdEncoding.DecodeString(encoded.String())
		if err != nil {
			return nil, fmt.Errorf("failed to decode bedrock chunk payload: %w", err)
		}

		data = decoded
	}

	// The provider event type lives inside the payload for chunk frames.
	if innerType := gjson.GetBytes(data, "type"); innerType.Exists() {
		eventType = innerType.String()
	}

	return &httpclient.StreamEvent{
		Type: eventType,
		Data: data,
	}, nil
}

func headerString(headers eventstream.Headers, name string) string {
	for _, h := range headers {
		if h.Name == name {
			return h.Value.String()
		}
	}

	return ""
}

// Current returns the current event data.
func (s *awsEventStreamDecoder) Current() *httpclient.StreamEvent {
	return s.current
}

// Err returns any error that occurred during streaming.
func (s *awsEventStreamDecoder) Err() error {
	return s.err
}

// Close closes the stream and releases resources.
func (s *awsEventStreamDecoder) Close() error {
	if s.closed {
		return s.closeErr
	}

	s.closed = true

	if s.rc != nil {
		s.closeErr = s.rc.Close()
	}

	return s.closeErr
}
