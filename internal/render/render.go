// Package render turns processed note Markdown into HTML.
//
// Links carrying the internal note prefix are rewritten to the by-id route of
// the HTTP API and tagged so clients can tell them apart from web links.
package render

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/starford/notebridge/internal/textproc"
)

// NoteLinkClass is the class attribute set on rendered note links.
const NoteLinkClass = "note-link"

// DefaultNoteRoute is the path prefix note links are rendered to.
const DefaultNoteRoute = "/api/notes-by-id/"

// Options configures a Renderer.
type Options struct {
	// InternalLinkPrefix identifies note links in processed Markdown.
	InternalLinkPrefix string
	// NoteRoute is prepended to the note id in rendered hrefs.
	NoteRoute string
	// Sanitize runs the output through a UGC policy.
	Sanitize bool
}

// Renderer converts Markdown to HTML. It is safe for concurrent use.
type Renderer struct {
	md       goldmark.Markdown
	policy   *bluemonday.Policy
	sanitize bool
}

// New builds a Renderer with GFM enabled.
func New(opts Options) *Renderer {
	if opts.InternalLinkPrefix == "" {
		opts.InternalLinkPrefix = textproc.DefaultInternalLinkPrefix
	}
	if opts.NoteRoute == "" {
		opts.NoteRoute = DefaultNoteRoute
	}
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithASTTransformers(
				util.Prioritized(&noteLinkTransformer{prefix: opts.InternalLinkPrefix, route: opts.NoteRoute}, 100),
			),
		),
	)
	return &Renderer{md: md, policy: newPolicy(), sanitize: opts.Sanitize}
}

// Render converts markdown to HTML.
func (r *Renderer) Render(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render: convert: %w", err)
	}
	if r.sanitize {
		return string(r.policy.SanitizeBytes(buf.Bytes())), nil
	}
	return buf.String(), nil
}

func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^` + NoteLinkClass + `$`)).OnElements("a")
	p.AllowAttrs("data-note-id").Matching(bluemonday.Integer).OnElements("a")
	// GFM task list items.
	p.AllowAttrs("type").Matching(regexp.MustCompile(`^checkbox$`)).OnElements("input")
	p.AllowAttrs("checked", "disabled").OnElements("input")
	return p
}

// noteLinkTransformer points links that carry the internal prefix at the
// note route.
type noteLinkTransformer struct {
	prefix string
	route  string
}

func (t *noteLinkTransformer) Transform(node *ast.Document, _ text.Reader, _ parser.Context) {
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		link, ok := n.(*ast.Link)
		if !ok {
			return ast.WalkContinue, nil
		}
		id, ok := textproc.ExtractNoteID(t.prefix, string(link.Destination))
		if !ok {
			return ast.WalkContinue, nil
		}
		sid := strconv.FormatInt(id, 10)
		link.Destination = []byte(t.route + sid)
		link.SetAttributeString("class", []byte(NoteLinkClass))
		link.SetAttributeString("data-note-id", []byte(sid))
		return ast.WalkContinue, nil
	})
}
