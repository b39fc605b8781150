package registry

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	docerrors "github.com/conneroisu/docsite/internal/errors"
)

// Document extensions, in order of preference when two files share a slug.
var documentExts = []string{".mdx", ".md"}

// Document holds metadata about a content document
type Document struct {
	Slug        string
	Title       string
	Description string
	Date        string
	FilePath    string
	// FrontMatter is the full decoded front matter block.
	FrontMatter map[string]any
	Body        []byte
	LastMod     time.Time
	Hash        string
}

type frontMatter struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Date        string `yaml:"date"`
}

// NavGroup is one navigation section of docs.yml.
type NavGroup struct {
	Group string   `yaml:"group"`
	Pages []string `yaml:"pages"`
}

// DocsConfig is the site configuration read from <content>/docs.yml.
type DocsConfig struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Colors      map[string]string `yaml:"colors"`
	Navigation  []NavGroup        `yaml:"navigation"`
	// Extra keeps keys this package does not interpret.
	Extra map[string]any `yaml:",inline"`
}

// SlugFor returns the slug of a document file, or false when the file is not
// a document.
func SlugFor(path string) (string, bool) {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return "", false
	}
	ext := filepath.Ext(base)
	for _, e := range documentExts {
		if ext == e {
			return strings.TrimSuffix(base, ext), true
		}
	}
	return "", false
}

// IsDocument reports whether path names a markdown or MDX document.
func IsDocument(path string) bool {
	_, ok := SlugFor(path)
	return ok
}

// SplitFrontMatter separates a leading "---" delimited YAML block from the
// document body. Sources without front matter return a nil block and the
// source unchanged.
func SplitFrontMatter(src []byte) (block, body []byte) {
	rest, ok := cutDelimiter(src)
	if !ok {
		return nil, src
	}

	for offset := 0; offset <= len(rest); {
		line := rest[offset:]
		end := bytes.IndexByte(line, '\n')
		if end >= 0 {
			line = line[:end]
		}
		if string(bytes.TrimRight(line, " \t\r")) == "---" {
			block = rest[:offset]
			if end < 0 {
				return block, nil
			}
			return block, rest[offset+end+1:]
		}
		if end < 0 {
			break
		}
		offset += end + 1
	}
	// Unterminated block: treat the whole source as body.
	return nil, src
}

func cutDelimiter(src []byte) ([]byte, bool) {
	for _, open := range []string{"---\n", "---\r\n"} {
		if rest, ok := bytes.CutPrefix(src, []byte(open)); ok {
			return rest, true
		}
	}
	return nil, false
}

// ParseDocument builds a Document from a file's contents.
func ParseDocument(path string, src []byte) (*Document, error) {
	slug, ok := SlugFor(path)
	if !ok {
		return nil, docerrors.NewContentError("parse", path, os.ErrInvalid)
	}

	block, body := SplitFrontMatter(src)

	var fm frontMatter
	raw := map[string]any{}
	if len(bytes.TrimSpace(block)) > 0 {
		if err := yaml.Unmarshal(block, &raw); err != nil {
			return nil, docerrors.NewContentError("parse front matter", path, err)
		}
		if err := yaml.Unmarshal(block, &fm); err != nil {
			return nil, docerrors.NewContentError("parse front matter", path, err)
		}
	}

	title := fm.Title
	if title == "" {
		title = TitleFromSlug(slug)
	}

	sum := sha256.Sum256(src)
	return &Document{
		Slug:        slug,
		Title:       title,
		Description: fm.Description,
		Date:        fm.Date,
		FilePath:    path,
		FrontMatter: raw,
		Body:        body,
		Hash:        hex.EncodeToString(sum[:8]),
	}, nil
}

// TitleFromSlug turns "getting-started" into "Getting Started".
func TitleFromSlug(slug string) string {
	words := strings.NewReplacer("-", " ", "_", " ").Replace(slug)
	return cases.Title(language.English).String(strings.Join(strings.Fields(words), " "))
}

// LoadDocsConfig reads docs.yml (or docs.yaml) from the content root. A
// missing file yields nil without error.
func LoadDocsConfig(contentRoot string) (*DocsConfig, error) {
	for _, name := range []string{"docs.yml", "docs.yaml"} {
		path := filepath.Join(contentRoot, name)
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, docerrors.NewIOError("read", path, err)
		}

		var cfg DocsConfig
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, docerrors.NewConfigError("docs.yml", "invalid docs config %s: %v", path, err)
		}
		return &cfg, nil
	}
	return nil, nil
}
