package shared

// IsAnthropicRedactedContent checks if the content should be treated as Anthropic redacted content.
// It explicitly excludes opaque payloads recorded from other providers, so a
// conversation replayed across providers never smuggles a foreign blob into a
// redacted_thinking block the Anthropic API would reject.
func IsAnthropicRedactedContent(content *string) bool {
	if content == nil {
		return false
	}

	return !IsOpenAIEncryptedContent(content)
}
