// Package validation checks user-supplied URLs and origin patterns before
// they reach the network layer.
package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateURL validates rawURL and requires one of schemes (http and https
// when none are given).
func ValidateURL(rawURL string, schemes ...string) error {
	if len(schemes) == 0 {
		schemes = []string{"http", "https"}
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	allowed := false
	for _, scheme := range schemes {
		if parsed.Scheme == scheme {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("invalid URL scheme: %q (allowed: %s)", parsed.Scheme, strings.Join(schemes, ", "))
	}

	dangerous := []string{";", "|", "`", "$", "<", ">", "\"", "'", "\\", "\n", "\r"}
	for _, char := range dangerous {
		if strings.Contains(rawURL, char) {
			return fmt.Errorf("URL contains dangerous character: %s", char)
		}
	}

	if strings.Contains(rawURL, " ") {
		return fmt.Errorf("URL contains spaces")
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL must have a valid hostname")
	}

	return nil
}
