package xurl

import (
	"fmt"
	"strings"
)

// DataURL holds the decoded fields of a base64 data URL.
type DataURL struct {
	MediaType string
	Data      string
}

// ParseDataURL parses "data:<media-type>;base64,<data>" URLs. It returns nil
// when the input is not a base64 data URL.
func ParseDataURL(rawURL string) *DataURL {
	rest, ok := strings.CutPrefix(rawURL, "data:")
	if !ok {
		return nil
	}

	meta, data, ok := strings.Cut(rest, ",")
	if !ok {
		return nil
	}

	mediaType, encoding, ok := strings.Cut(meta, ";")
	if !ok || encoding != "base64" {
		return nil
	}
	if mediaType == "" {
		mediaType = "text/plain"
	}

	return &DataURL{
		MediaType: mediaType,
		Data:      data,
	}
}

// FormatDataURL is the inverse of ParseDataURL.
func FormatDataURL(mediaType, data string) string {
	return fmt.Sprintf("data:%s;base64,%s", mediaType, data)
}
