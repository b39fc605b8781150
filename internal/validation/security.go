package validation

import (
	"fmt"
	"path"
	"strings"
)

// ValidateOriginPattern checks a WebSocket origin pattern such as
// "localhost:*" or "https://docs.example.com". Patterns are globs matched
// against the request origin's host, or against scheme://host when the
// pattern carries a scheme.
func ValidateOriginPattern(pattern string) error {
	if strings.TrimSpace(pattern) == "" {
		return fmt.Errorf("origin pattern cannot be empty")
	}

	if strings.ContainsAny(pattern, " \t\r\n") {
		return fmt.Errorf("origin pattern %q contains whitespace", pattern)
	}

	host := pattern
	if scheme, rest, ok := strings.Cut(pattern, "://"); ok {
		if scheme != "http" && scheme != "https" {
			return fmt.Errorf("invalid origin scheme '%s': only http and https are allowed", scheme)
		}
		host = rest
	}
	if host == "" || strings.Contains(host, "/") {
		return fmt.Errorf("origin pattern %q must name a host", pattern)
	}

	if _, err := path.Match(pattern, ""); err != nil {
		return fmt.Errorf("origin pattern %q: %w", pattern, err)
	}

	return nil
}
