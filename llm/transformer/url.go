package transformer

import (
	"strings"
)

// NormalizeBaseURL normalizes a provider base URL against the expected
// version path segment: the segment is appended unless the URL already
// carries it. A trailing "#" opts out of normalization entirely and keeps
// the URL as configured.
func NormalizeBaseURL(url, version string) string {
	if url == "" {
		return ""
	}

	if before, ok := strings.CutSuffix(url, "#"); ok {
		return strings.TrimRight(before, "/")
	}

	if version == "" {
		return strings.TrimRight(url, "/")
	}

	if strings.HasSuffix(url, "/"+version) || strings.Contains(url, "/"+version+"/") {
		return strings.TrimRight(url, "/")
	}

	return strings.TrimRight(url, "/") + "/" + version
}
