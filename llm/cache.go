package llm

import (
	"errors"
	"fmt"
)

// ContentTypeCachePoint is the content part type of a cache boundary marker.
const ContentTypeCachePoint = "cache_point"

const (
	// CacheControlTypeEphemeral is the only cache control type providers accept today.
	CacheControlTypeEphemeral = "ephemeral"

	// CacheTTL5m keeps the cache entry for five minutes. This is the provider
	// default when no TTL is given.
	CacheTTL5m = "5m"

	// CacheTTL1h keeps the cache entry for one hour.
	CacheTTL1h = "1h"
)

// ErrInvalidCachePoint reports a cache_point part in a position the provider
// schema cannot represent, e.g. inside an assistant or tool message. It is
// returned before any network call.
var ErrInvalidCachePoint = errors.New("invalid cache_point placement")

// CacheControl represents a provider cache annotation on a content block,
// a system prompt part, or a tool definition.
// On the unified model it lives in help fields and is not serialized;
// providers with explicit cache placement render it as sibling metadata on
// the annotated block.
type CacheControl struct {
	Type string `json:"type,omitempty"`
	TTL  string `json:"ttl,omitempty"`
}

// CachePoint is the payload of a "cache_point" content part. The part is a
// structural marker: everything before it in the same message is eligible for
// caching. It carries no content and is stripped from every compiled request.
type CachePoint struct {
	// TTL overrides the request-level cache TTL for this boundary, "5m" or "1h".
	TTL string `json:"ttl,omitempty"`
}

// CacheConfig declares request-level prompt caching outside the conversation
// body: the system instructions and the tool definitions.
type CacheConfig struct {
	// Instructions annotates the system instructions block.
	Instructions bool `json:"instructions,omitempty"`

	// ToolDefinitions annotates the last tool definition, which makes the
	// provider cache the whole tool set.
	ToolDefinitions bool `json:"tool_definitions,omitempty"`

	// TTL is the cache entry lifetime, "5m" or "1h". Empty means the provider
	// default. It also applies to cache_point parts that carry no TTL of
	// their own.
	TTL string `json:"ttl,omitempty"`
}

// EntryTTL returns the configured TTL, tolerating a nil config.
func (c *CacheConfig) EntryTTL() string {
	if c == nil {
		return ""
	}

	return c.TTL
}

// IsCachePoint reports whether the part is a cache boundary marker.
func IsCachePoint(part MessageContentPart) bool {
	return part.Type == ContentTypeCachePoint || part.CachePoint != nil
}

// ValidCacheTTL reports whether ttl is a value providers accept. Empty is
// valid and means the provider default.
func ValidCacheTTL(ttl string) bool {
	switch ttl {
	case "", CacheTTL5m, CacheTTL1h:
		return true
	}

	return false
}

// ResolveCachePoints resolves cache_point markers in the given messages:
// each marker annotates the content part immediately before it in the same
// message and is stripped. Leading or adjacent markers annotate nothing and
// do not error. Each message is scanned independently.
//
// Markers in assistant or tool messages are not representable on any provider
// wire and return an error wrapping ErrInvalidCachePoint.
//
// The input is never mutated; messages holding markers are rebuilt.
func ResolveCachePoints(messages []Message, ttl string) ([]Message, error) {
	if len(messages) == 0 {
		return messages, nil
	}

	resolved := make([]Message, len(messages))

	for i, msg := range messages {
		parts := msg.Content.MultipleContent
		if !containsCachePoint(parts) {
			resolved[i] = msg
			continue
		}

		if msg.Role == "assistant" || msg.Role == "tool" {
			return nil, fmt.Errorf("%w: %s message at index %d", ErrInvalidCachePoint, msg.Role, i)
		}

		kept := make([]MessageContentPart, 0, len(parts))
		// Index into kept of the block the next marker annotates, -1 when the
		// previous part was itself a marker or nothing was emitted yet.
		lookback := -1

		for _, part := range parts {
			if !IsCachePoint(part) {
				kept = append(kept, part)
				lookback = len(kept) - 1

				continue
			}

			if lookback < 0 {
				continue
			}

			kept[lookback].CacheControl = cachePointControl(part.CachePoint, ttl)
			lookback = -1
		}

		msg.Content = MessageContent{MultipleContent: kept}
		resolved[i] = msg
	}

	return resolved, nil
}

// ContainsCachePoints reports whether any message carries a cache boundary marker.
func ContainsCachePoints(messages []Message) bool {
	for _, msg := range messages {
		if containsCachePoint(msg.Content.MultipleContent) {
			return true
		}
	}

	return false
}

func containsCachePoint(parts []MessageContentPart) bool {
	for _, part := range parts {
		if IsCachePoint(part) {
			return true
		}
	}

	return false
}

func cachePointControl(point *CachePoint, defaultTTL string) *CacheControl {
	control := &CacheControl{Type: CacheControlTypeEphemeral, TTL: defaultTTL}
	if point != nil && point.TTL != "" {
		control.TTL = point.TTL
	}

	return control
}
