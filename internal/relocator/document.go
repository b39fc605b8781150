package relocator

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	docerrors "github.com/conneroisu/docsite/internal/errors"
	"github.com/conneroisu/docsite/internal/registry"
)

// Kind says where in a document a reference was found.
type Kind string

const (
	KindImage      Kind = "image"
	KindLink       Kind = "link"
	KindElementImg Kind = "element-img"
	KindElementA   Kind = "element-a"
)

// Reference is one visited reference and what happened to it.
type Reference struct {
	Kind   Kind
	Ref    string
	Action Action
}

// Report lists the references of a document in document order.
type Report struct {
	References []Reference
}

// Count returns how many references ended with action a.
func (r *Report) Count(a Action) int {
	n := 0
	for _, ref := range r.References {
		if ref.Action == a {
			n++
		}
	}
	return n
}

var markdown = goldmark.New()

// ProcessFile reads a document from disk and processes it.
func (r *Relocator) ProcessFile(path string) (*Report, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, docerrors.NewIOError("read", path, err)
	}
	return r.ProcessDocument(src)
}

// ProcessDocument visits every markdown image and link and every <img src>
// and <a href> element in src and relocates what they reference. All
// references are visited even when some copies fail; the failures are
// joined into the returned error.
func (r *Relocator) ProcessDocument(src []byte) (*Report, error) {
	_, body := registry.SplitFrontMatter(src)
	doc := markdown.Parser().Parse(text.NewReader(body))

	report := &Report{}
	var errs []error
	visit := func(kind Kind, ref string) {
		if ref == "" {
			return
		}
		// Links to external sites are not considered at all.
		if (kind == KindLink || kind == KindElementA) && isExternalLink(ref) {
			report.References = append(report.References, Reference{Kind: kind, Ref: ref, Action: ActionSkippedExternal})
			return
		}
		action, err := r.relocate(ref)
		if err != nil {
			errs = append(errs, err)
		}
		report.References = append(report.References, Reference{Kind: kind, Ref: ref, Action: action})
	}

	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Image:
			visit(KindImage, string(node.Destination))
		case *ast.Link:
			visit(KindLink, string(node.Destination))
		case *ast.HTMLBlock:
			var buf bytes.Buffer
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(body))
			}
			if node.HasClosure() {
				buf.Write(node.ClosureLine.Value(body))
			}
			elementRefs(&buf, visit)
		case *ast.RawHTML:
			var buf bytes.Buffer
			for i := 0; i < node.Segments.Len(); i++ {
				seg := node.Segments.At(i)
				buf.Write(seg.Value(body))
			}
			elementRefs(&buf, visit)
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return report, err
	}
	return report, errors.Join(errs...)
}

func isExternalLink(ref string) bool {
	return strings.HasPrefix(ref, "http") || strings.HasPrefix(ref, "mailto:")
}

// elementRefs tokenizes a fragment of raw HTML or JSX and reports the src of
// every img and the href of every a element.
func elementRefs(r io.Reader, visit func(Kind, string)) {
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			return
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.DataAtom {
			case atom.Img:
				visit(KindElementImg, attr(tok, "src"))
			case atom.A:
				visit(KindElementA, attr(tok, "href"))
			}
		}
	}
}

func attr(tok html.Token, key string) string {
	for _, a := range tok.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
