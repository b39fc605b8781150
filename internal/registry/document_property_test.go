//go:build property

package registry

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestFrontMatterProperties validates front matter splitting
func TestFrontMatterProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(4242)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	line := gen.AlphaString().Map(func(s string) string { return "key: " + s })

	// Property: A well-formed block splits back into its parts
	properties.Property("split recovers block and body", prop.ForAll(
		func(lines []string, body string) bool {
			block := strings.Join(lines, "\n")
			if block != "" {
				block += "\n"
			}
			src := "---\n" + block + "---\n" + body

			gotBlock, gotBody := SplitFrontMatter([]byte(src))
			return string(gotBlock) == block && string(gotBody) == body
		},
		gen.SliceOf(line),
		gen.AlphaString(),
	))

	// Property: Sources that do not open with a delimiter are all body
	properties.Property("no delimiter means no front matter", prop.ForAll(
		func(src string) bool {
			if strings.HasPrefix(src, "---\n") || strings.HasPrefix(src, "---\r\n") {
				return true
			}
			block, body := SplitFrontMatter([]byte(src))
			return block == nil && string(body) == src
		},
		gen.AnyString(),
	))

	// Property: Slugs never carry an extension or a directory
	properties.Property("slug is the bare file name", prop.ForAll(
		func(name string, ext string) bool {
			slug, ok := SlugFor("content/" + name + ext)
			return ok && slug == name
		},
		gen.Identifier(),
		gen.OneConstOf(".mdx", ".md"),
	))

	properties.TestingRun(t)
}
