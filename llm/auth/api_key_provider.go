package auth

import (
	"context"
	"errors"
	"sync/atomic"
)

// APIKeyProvider provides API keys for authentication.
// Implementations can support single or multiple API keys with various selection strategies.
type APIKeyProvider interface {
	// Get returns an API key for the given context.
	// The context may contain hints (e.g., trace ID, session ID) that implementations
	// can use to ensure consistent key selection for related requests.
	Get(ctx context.Context) string
}

// StaticKeyProvider is a simple APIKeyProvider that always returns the same API key.
type StaticKeyProvider struct {
	apiKey string
}

// NewStaticKeyProvider creates a new StaticKeyProvider with the given API key.
func NewStaticKeyProvider(apiKey string) *StaticKeyProvider {
	return &StaticKeyProvider{apiKey: apiKey}
}

// Get returns the static API key.
func (p *StaticKeyProvider) Get(_ context.Context) string {
	return p.apiKey
}

// RoundRobinKeyProvider rotates over a fixed key set, spreading requests
// across provider accounts. Selection is atomic and safe for concurrent use.
type RoundRobinKeyProvider struct {
	keys []string
	next atomic.Uint64
}

// NewRoundRobinKeyProvider creates a provider over the given keys. At least
// one key is required; a single key behaves like StaticKeyProvider.
func NewRoundRobinKeyProvider(keys ...string) (*RoundRobinKeyProvider, error) {
	if len(keys) == 0 {
		return nil, errors.New("at least one API key is required")
	}

	return &RoundRobinKeyProvider{keys: keys}, nil
}

// Get returns the next key in rotation.
func (p *RoundRobinKeyProvider) Get(_ context.Context) string {
	n := p.next.Add(1) - 1
	return p.keys[n%uint64(len(p.keys))]
}
