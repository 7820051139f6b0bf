package httpclient

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"sync"

	"github.com/tmaxmax/go-sse"
)

// decoderRegistry holds registered stream decoders.
type decoderRegistry struct {
	mu       sync.RWMutex
	decoders map[string]StreamDecoderFactory
}

// globalRegistry is the global decoder registry.
var globalRegistry = &decoderRegistry{
	decoders: make(map[string]StreamDecoderFactory),
}

// RegisterDecoder registers a stream decoder for a specific content type.
func RegisterDecoder(contentType string, factory StreamDecoderFactory) {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()

	globalRegistry.decoders[contentType] = factory
}

// GetDecoder returns a decoder factory for the given content type.
func GetDecoder(contentType string) (StreamDecoderFactory, bool) {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	factory, exists := globalRegistry.decoders[contentType]

	return factory, exists
}

// Some providers send very large data events, so allow events up to 32MB.
const maxSSEEventSize = 32 * 1024 * 1024

// NewDefaultSSEDecoder creates a new default SSE decoder.
func NewDefaultSSEDecoder(ctx context.Context, rc io.ReadCloser) StreamDecoder {
	next, stop := iter.Pull2(sse.Read(rc, &sse.ReadConfig{
		MaxEventSize: maxSSEEventSize,
	}))

	return &defaultSSEDecoder{
		ctx:  ctx,
		rc:   rc,
		next: next,
		stop: stop,
	}
}

// Ensure defaultSSEDecoder implements StreamDecoder.
var _ StreamDecoder = (*defaultSSEDecoder)(nil)

// defaultSSEDecoder implements streams.Stream for Server-Sent Events using go-sse.
//
//nolint:containedctx // Checked.
type defaultSSEDecoder struct {
	ctx     context.Context
	rc      io.ReadCloser
	next    func() (sse.Event, error, bool)
	stop    func()
	current *StreamEvent
	err     error

	// NOT concurrency-safe: do not call Next/Close from multiple goroutines.
	// Close is made idempotent (safe to call multiple times sequentially).
	closed   bool
	closeErr error
}

// Next advances to the next event in the stream.
func (s *defaultSSEDecoder) Next() bool {
	if s.err != nil {
		return false
	}

	if s.closed {
		return false
	}

	// Check context cancellation
	select {
	case <-s.ctx.Done():
		slog.DebugContext(s.ctx, "SSE stream closed")

		s.err = s.ctx.Err()
		_ = s.Close()

		return false
	default:
	}

	// Receive next event from the go-sse reader
	event, err, ok := s.next()
	if !ok {
		slog.DebugContext(s.ctx, "SSE stream closed")
		_ = s.Close()

		return false
	}

	if err != nil {
		if errors.Is(err, io.EOF) {
			slog.DebugContext(s.ctx, "SSE stream closed")
			_ = s.Close()

			return false
		}

		s.err = err
		_ = s.Close()

		return false
	}

	slog.DebugContext(s.ctx, "SSE event received", slog.Any("event", event))

	// Create stream event for this event
	s.current = &StreamEvent{
		LastEventID: event.LastEventID,
		Type:        event.Type,
		Data:        []byte(event.Data),
	}

	return true
}

// Current returns the current event data.
func (s *defaultSSEDecoder) Current() *StreamEvent {
	return s.current
}

// Err returns any error that occurred during streaming.
func (s *defaultSSEDecoder) Err() error {
	return s.err
}

// Close closes the stream and releases resources.
func (s *defaultSSEDecoder) Close() error {
	// NOT concurrency-safe: callers must not call Close concurrently with Next.
	if s.closed {
		return s.closeErr
	}

	s.closed = true
	s.stop()

	if s.rc != nil {
		s.closeErr = s.rc.Close()
		slog.DebugContext(s.ctx, "SSE stream closed")
	}

	return s.closeErr
}

// init registers the default SSE decoder.
func init() {
	RegisterDecoder("text/event-stream", NewDefaultSSEDecoder)
	RegisterDecoder("text/event-stream; charset=utf-8", NewDefaultSSEDecoder)
}
