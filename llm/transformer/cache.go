package transformer

import (
	"fmt"

	"github.com/ronakrm/promptrelay/llm"
)

// ValidateCacheTTLs checks every cache TTL the request carries: the
// request-level cache config and each cache_point marker. TTL values other
// than "", "5m" and "1h" are rejected before any compilation happens.
func ValidateCacheTTLs(req *llm.Request) error {
	if req == nil {
		return nil
	}

	if ttl := req.Cache.EntryTTL(); !llm.ValidCacheTTL(ttl) {
		return fmt.Errorf("%w: invalid cache ttl %q", ErrInvalidRequest, ttl)
	}

	for i, msg := range req.Messages {
		for _, part := range msg.Content.MultipleContent {
			if part.CachePoint == nil {
				continue
			}

			if !llm.ValidCacheTTL(part.CachePoint.TTL) {
				return fmt.Errorf(
					"%w: invalid cache ttl %q on cache_point in message %d",
					ErrInvalidRequest, part.CachePoint.TTL, i,
				)
			}
		}
	}

	return nil
}
