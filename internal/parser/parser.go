// Package parser turns raw note bytes into the fields the index stores:
// frontmatter, body, title, tags, excerpt, wikilinks and numeric note refs.
package parser

import (
	"bytes"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/notebridge/internal/mdutil"
	"github.com/starford/notebridge/internal/textproc"
)

var (
	wikilinkRe = regexp.MustCompile(`\[\[([^\[\]]*)\]\]`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
	h1Re       = regexp.MustCompile(`(?m)^\s*# +(.+?)\s*$`)
)

var frontmatterDelim = []byte("---")

// Result is a parsed note.
type Result struct {
	// Frontmatter is nil when the note has none or it is not valid YAML.
	Frontmatter map[string]any
	Body        string
	// Links are wikilink targets outside code fences, aliases dropped.
	Links []string
	// NoteRefs are numeric inline link targets. The index confirms them
	// against existing ids.
	NoteRefs []string
	Tags     []string
	Title    string
	Excerpt  string
}

// Options tunes derived fields.
type Options struct {
	// ExcerptLength caps the excerpt in runes. Zero selects the mdutil default.
	ExcerptLength int
}

// Parse parses data with default options.
func Parse(data []byte) (*Result, error) {
	return ParseWithOptions(data, Options{})
}

// ParseWithOptions parses data. Malformed frontmatter is not an error: the
// whole input is then treated as body.
func ParseWithOptions(data []byte, opts Options) (*Result, error) {
	fm, body := splitFrontmatter(data)
	prose := mdutil.OutsideFences(body)
	title := deriveTitle(fm, prose)

	return &Result{
		Frontmatter: fm,
		Body:        body,
		Links:       extractLinks(prose),
		NoteRefs:    textproc.NoteLinkCandidates(body),
		Tags:        extractTags(prose, fm),
		Title:       title,
		Excerpt:     mdutil.GenerateExcerpt(body, title, opts.ExcerptLength),
	}, nil
}

// splitFrontmatter cuts a leading YAML block fenced by --- lines.
func splitFrontmatter(data []byte) (map[string]any, string) {
	trimmed := bytes.TrimLeft(data, "\r\n")
	if !bytes.HasPrefix(trimmed, frontmatterDelim) {
		return nil, string(data)
	}
	rest := trimmed[len(frontmatterDelim):]
	end := bytes.Index(rest, append([]byte("\n"), frontmatterDelim...))
	if end < 0 {
		return nil, string(data)
	}

	var fm map[string]any
	if err := yaml.Unmarshal(rest[:end], &fm); err != nil {
		return nil, string(data)
	}
	body := rest[end+1+len(frontmatterDelim):]
	return fm, strings.TrimLeft(string(body), "\r\n")
}

func extractLinks(prose string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range wikilinkRe.FindAllStringSubmatch(prose, -1) {
		target, _, _ := strings.Cut(m[1], "|")
		target = strings.TrimSpace(target)
		if target != "" && !seen[target] {
			seen[target] = true
			out = append(out, target)
		}
	}
	return out
}

// extractTags returns frontmatter tags first, then inline #tags, deduplicated.
func extractTags(prose string, fm map[string]any) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(tag string) {
		tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
		if tag != "" && !seen[tag] {
			seen[tag] = true
			out = append(out, tag)
		}
	}

	switch v := fm["tags"].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			add(s)
		}
	}
	for _, m := range tagRe.FindAllStringSubmatch(prose, -1) {
		add(m[1])
	}
	return out
}

// deriveTitle prefers the frontmatter title, then the first H1, then the first
// non-empty line without Markdown.
func deriveTitle(fm map[string]any, prose string) string {
	if s, ok := fm["title"].(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	if m := h1Re.FindStringSubmatch(prose); m != nil {
		return m[1]
	}
	return mdutil.GenerateTitle(prose)
}
