package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// validateSlug rejects slugs that could not name a top-level document.
func validateSlug(slug string) error {
	if strings.TrimSpace(slug) == "" {
		return fmt.Errorf("slug must not be empty")
	}

	if strings.Contains(slug, "..") {
		return fmt.Errorf("path traversal attempt detected")
	}

	if strings.ContainsAny(slug, `/\`) {
		return fmt.Errorf("slug must not contain path separators")
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "{", "}", "[", "]", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(slug, char) {
			return fmt.Errorf("contains dangerous character: %s", char)
		}
	}

	if strings.HasPrefix(slug, ".") {
		return fmt.Errorf("hidden documents are never served")
	}

	return nil
}

// validateSlugs validates a slice of slug arguments
func validateSlugs(slugs []string) error {
	for _, slug := range slugs {
		if err := validateSlug(slug); err != nil {
			return fmt.Errorf("invalid slug '%s': %w", slug, err)
		}
	}
	return nil
}

// slugArgs is a cobra.PositionalArgs that validates every argument as a slug.
func slugArgs(cmd *cobra.Command, args []string) error {
	return validateSlugs(args)
}
