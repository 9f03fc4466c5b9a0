package validators

import (
	"net/url"
	"strings"
)

func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen > 0 && len(trimmed) > maxLen {
		return trimmed[:maxLen]
	}
	return trimmed
}

// PathParam unescapes and trims a URL path segment.
func PathParam(raw string, maxLen int) string {
	if unescaped, err := url.PathUnescape(raw); err == nil {
		raw = unescaped
	}
	return SanitizeString(raw, maxLen)
}
