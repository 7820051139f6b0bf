package anthropic

import (
	"github.com/ronakrm/promptrelay/llm"
)

// maxCacheControlBreakpoints is the maximum number of cache_control breakpoints allowed by Anthropic.
// See https://docs.anthropic.com/en/docs/build-with-claude/prompt-caching.
const maxCacheControlBreakpoints = 4

// ensureCacheControl reconciles cache_control breakpoints on the outgoing request:
//   - caller annotations on message blocks, system parts and tools are preserved
//   - the request-level cache config adds structural anchors: tools (last) and system (last)
//   - thinking blocks and empty text blocks never carry a breakpoint
//   - at most 4 breakpoints survive; structural anchors are kept first, then
//     conversation annotations from the most recent backwards
//
// The pass is idempotent: a request that already satisfies the rules comes out
// unchanged.
func ensureCacheControl(req *MessageRequest, cache *llm.CacheConfig) {
	sanitizeUnsupportedCacheControls(req)

	applyCacheConfigAnchors(req, cache)

	enforceCacheControlBudget(req)
}

// applyCacheConfigAnchors injects the breakpoints the request-level cache
// config asks for: the last tool definition and the last system prompt part.
// Both positions are stable across requests of the same conversation, which is
// what makes them cache anchors. Caller annotations already present on those
// positions win over the config.
func applyCacheConfigAnchors(req *MessageRequest, cache *llm.CacheConfig) {
	if cache == nil {
		return
	}

	if cache.ToolDefinitions && len(req.Tools) > 0 {
		last := len(req.Tools) - 1
		if req.Tools[last].CacheControl == nil {
			req.Tools[last].CacheControl = configCacheControl(cache)
		}
	}

	if !cache.Instructions || req.System == nil {
		return
	}

	if len(req.System.MultiplePrompts) > 0 {
		last := len(req.System.MultiplePrompts) - 1
		if req.System.MultiplePrompts[last].CacheControl == nil {
			req.System.MultiplePrompts[last].CacheControl = configCacheControl(cache)
		}

		return
	}

	// A string system prompt is normalized to MultiplePrompts so the
	// breakpoint lands on an array element.
	if req.System.Prompt != nil && *req.System.Prompt != "" {
		text := *req.System.Prompt
		req.System.Prompt = nil
		req.System.MultiplePrompts = []SystemPromptPart{{
			Type:         "text",
			Text:         text,
			CacheControl: configCacheControl(cache),
		}}
	}
}

// configCacheControl builds the annotation the cache config stands for.
func configCacheControl(cache *llm.CacheConfig) *CacheControl {
	return &CacheControl{Type: "ephemeral", TTL: cache.EntryTTL()}
}

// sanitizeUnsupportedCacheControls strips annotations from blocks that cannot
// carry one. Anthropic rejects cache_control on thinking blocks and on empty
// text blocks.
func sanitizeUnsupportedCacheControls(req *MessageRequest) {
	for i := range req.Messages {
		for j := range req.Messages[i].Content.MultipleContent {
			block := &req.Messages[i].Content.MultipleContent[j]
			if !isCacheableMessageBlock(*block) && block.CacheControl != nil {
				block.CacheControl = nil
			}
		}
	}
}

// enforceCacheControlBudget drops breakpoints beyond the provider limit.
// Structural anchors on tools and system survive first; conversation
// annotations are kept from the most recent backwards, so the earliest ones
// go first. A late breakpoint covers everything an earlier one covered, which
// makes the earliest breakpoints the cheapest to lose.
func enforceCacheControlBudget(req *MessageRequest) {
	structural := annotatedRefs(collectStructuralCacheControlRefs(req))
	if len(structural) > maxCacheControlBreakpoints {
		clearRefs(structural[:len(structural)-maxCacheControlBreakpoints])
		structural = structural[len(structural)-maxCacheControlBreakpoints:]
	}

	remaining := maxCacheControlBreakpoints - len(structural)

	conversation := annotatedRefs(collectMessageBlockRefs(req))
	if len(conversation) > remaining {
		clearRefs(conversation[:len(conversation)-remaining])
	}
}

func annotatedRefs(refs []**CacheControl) []**CacheControl {
	annotated := make([]**CacheControl, 0, len(refs))

	for _, ref := range refs {
		if *ref != nil {
			annotated = append(annotated, ref)
		}
	}

	return annotated
}

func clearRefs(refs []**CacheControl) {
	for _, ref := range refs {
		*ref = nil
	}
}

// collectStructuralCacheControlRefs collects the CacheControl references of
// tools and system prompt parts in request order.
func collectStructuralCacheControlRefs(req *MessageRequest) []**CacheControl {
	refs := make([]**CacheControl, 0, len(req.Tools))

	for i := range req.Tools {
		refs = append(refs, &req.Tools[i].CacheControl)
	}

	if req.System != nil {
		for i := range req.System.MultiplePrompts {
			refs = append(refs, &req.System.MultiplePrompts[i].CacheControl)
		}
	}

	return refs
}

// collectMessageBlockRefs collects the CacheControl references of cacheable
// message blocks. Plain string contents are skipped, the string form cannot
// carry an annotation.
func collectMessageBlockRefs(req *MessageRequest) []**CacheControl {
	refs := make([]**CacheControl, 0)

	for i := range req.Messages {
		for j := range req.Messages[i].Content.MultipleContent {
			if !isCacheableMessageBlock(req.Messages[i].Content.MultipleContent[j]) {
				continue
			}

			refs = append(refs, &req.Messages[i].Content.MultipleContent[j].CacheControl)
		}
	}

	return refs
}

// countCacheControls counts all cache_control breakpoints in tools/system/messages.
func countCacheControls(req *MessageRequest) int {
	count := 0

	// Count tools.
	for i := range req.Tools {
		if req.Tools[i].CacheControl != nil {
			count++
		}
	}

	// Count system prompts.
	if req.System != nil {
		for i := range req.System.MultiplePrompts {
			if req.System.MultiplePrompts[i].CacheControl != nil {
				count++
			}
		}
	}

	// Count message content blocks.
	for i := range req.Messages {
		msg := &req.Messages[i]
		for j := range msg.Content.MultipleContent {
			if isCacheableMessageBlock(msg.Content.MultipleContent[j]) && msg.Content.MultipleContent[j].CacheControl != nil {
				count++
			}
		}
	}

	return count
}

func isCacheableMessageBlock(block MessageContentBlock) bool {
	switch block.Type {
	case "thinking", "redacted_thinking":
		return false
	case "text":
		return block.Text != nil && *block.Text != ""
	default:
		return true
	}
}
