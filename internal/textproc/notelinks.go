package textproc

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// noteLinkCandidateRe matches any inline link whose target is made only of digits.
var noteLinkCandidateRe = regexp.MustCompile(`\[[^\]]*\]\((\d+)\)`)

// IDSet is a snapshot of the identifiers of notes that currently exist,
// in canonical decimal form. It is read-only once handed to a processor.
type IDSet map[string]struct{}

// NewIDSet builds an IDSet from decimal strings.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// IDSetFromInts builds an IDSet from numeric identifiers.
func IDSetFromInts(ids ...int64) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[strconv.FormatInt(id, 10)] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set. A nil set contains nothing.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// NoteLinks rewrites [label](N) into [label](<prefix>N) when N is a known note id.
type NoteLinks struct {
	prefix string
	known  IDSet
}

// NewNoteLinks returns a processor resolving numeric link targets against known.
// The set is not copied; callers hand over a fresh snapshot per use.
func NewNoteLinks(prefix string, known IDSet) *NoteLinks {
	if prefix == "" {
		prefix = DefaultInternalLinkPrefix
	}
	return &NoteLinks{prefix: prefix, known: known}
}

// Prefix returns the internal link prefix this processor inserts.
func (p *NoteLinks) Prefix() string {
	return p.prefix
}

// Process implements Processor.
func (p *NoteLinks) Process(text string) string {
	if text == "" || len(p.known) == 0 {
		return text
	}

	// First pass: candidates confirmed against the known set.
	var confirmed []string
	seen := make(map[string]struct{})
	for _, m := range noteLinkCandidateRe.FindAllStringSubmatch(text, -1) {
		id := m[1]
		if _, dup := seen[id]; dup || !p.known.Has(id) {
			continue
		}
		seen[id] = struct{}{}
		confirmed = append(confirmed, id)
	}
	if len(confirmed) == 0 {
		return text
	}

	// Second pass: rewrite only links whose whole target is a confirmed id.
	sort.Strings(confirmed)
	for i, id := range confirmed {
		confirmed[i] = regexp.QuoteMeta(id)
	}
	replaceRe := regexp.MustCompile(`\[([^\]]*)\]\((` + strings.Join(confirmed, "|") + `)\)`)
	tmpl := "[${1}](" + strings.ReplaceAll(p.prefix, "$", "$$") + "${2})"
	return replaceRe.ReplaceAllString(text, tmpl)
}

// NoteLinkCandidates returns the distinct numeric targets of all link-shaped
// matches in text, in order of first appearance. Nothing is confirmed here.
func NoteLinkCandidates(text string) []string {
	matches := noteLinkCandidateRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, dup := seen[m[1]]; dup {
			continue
		}
		seen[m[1]] = struct{}{}
		out = append(out, m[1])
	}
	return out
}

// IsNoteLink reports whether link was produced by a NoteLinks processor using prefix.
func IsNoteLink(prefix, link string) bool {
	_, ok := ExtractNoteID(prefix, link)
	return ok
}

// ExtractNoteID returns the note id carried by a rewritten note link. Only
// canonical positive ids are accepted: no sign, no leading zero.
func ExtractNoteID(prefix, link string) (int64, bool) {
	if prefix == "" {
		return 0, false
	}
	rest, ok := strings.CutPrefix(link, prefix)
	if !ok || rest == "" || rest[0] == '0' {
		return 0, false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
