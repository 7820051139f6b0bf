package shared

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

const sampleCiphertext = "gAAAAABoQ1v9mJXhK2tPnR8cWqYsLdE0fUziAx7NbOm4SjC6ekHrTGV5wIuFyDpM3a"

func TestIsOpenAIEncryptedContent(t *testing.T) {
	tests := []struct {
		name     string
		content  *string
		expected bool
	}{
		{name: "nil content", content: nil, expected: false},
		{name: "empty string", content: lo.ToPtr(""), expected: false},
		{name: "prefixed ciphertext", content: lo.ToPtr(OpenAIEncryptedContentPrefix + sampleCiphertext), expected: true},
		{name: "bare ciphertext", content: lo.ToPtr(sampleCiphertext), expected: false},
		{name: "prefix only", content: lo.ToPtr(OpenAIEncryptedContentPrefix), expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, IsOpenAIEncryptedContent(tt.content))
		})
	}
}

func TestDecodeOpenAIEncryptedContent(t *testing.T) {
	tests := []struct {
		name     string
		content  *string
		expected *string
	}{
		{name: "nil content", content: nil, expected: nil},
		{name: "empty string", content: lo.ToPtr(""), expected: nil},
		{name: "prefixed ciphertext", content: lo.ToPtr(OpenAIEncryptedContentPrefix + sampleCiphertext), expected: lo.ToPtr(sampleCiphertext)},
		{name: "bare ciphertext", content: lo.ToPtr(sampleCiphertext), expected: nil},
		{name: "prefix only decodes to empty string", content: lo.ToPtr(OpenAIEncryptedContentPrefix), expected: lo.ToPtr("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DecodeOpenAIEncryptedContent(tt.content)
			if tt.expected == nil {
				require.Nil(t, result)
			} else {
				require.NotNil(t, result)
				require.Equal(t, *tt.expected, *result)
			}
		})
	}
}

func TestEncodeOpenAIEncryptedContent(t *testing.T) {
	require.Nil(t, EncodeOpenAIEncryptedContent(nil))

	empty := EncodeOpenAIEncryptedContent(lo.ToPtr(""))
	require.NotNil(t, empty)
	require.Equal(t, OpenAIEncryptedContentPrefix, *empty)

	encoded := EncodeOpenAIEncryptedContent(lo.ToPtr(sampleCiphertext))
	require.NotNil(t, encoded)
	require.Equal(t, OpenAIEncryptedContentPrefix+sampleCiphertext, *encoded)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	encoded := EncodeOpenAIEncryptedContent(lo.ToPtr(sampleCiphertext))
	require.NotNil(t, encoded)
	require.True(t, IsOpenAIEncryptedContent(encoded))

	decoded := DecodeOpenAIEncryptedContent(encoded)
	require.NotNil(t, decoded)
	require.Equal(t, sampleCiphertext, *decoded)
}
