// Package mdutil holds line-oriented helpers for Markdown note bodies:
// stripping markup for titles and excerpts, and locating task-list checkboxes.
package mdutil

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ExcerptLineSeparator replaces newlines in generated excerpts.
const ExcerptLineSeparator = "   "

// DefaultExcerptLength is the maximum excerpt length in runes.
const DefaultExcerptLength = 200

const (
	checkedEmoji   = "☒"
	uncheckedEmoji = "☐"
)

// ErrCheckboxNotFound is returned when a checkbox index is out of range.
var ErrCheckboxNotFound = errors.New("mdutil: checkbox not found")

var (
	listRe        = regexp.MustCompile(`(?m)^\s*[*+-]\s+`)
	headingRe     = regexp.MustCompile(`(?m)^#+\s+(.*?)\s*#*$`)
	headingLineRe = regexp.MustCompile(`(?m)^(?:=+|-+)$`)
	leadingSpace  = regexp.MustCompile(`(?m)^\s+`)
	trailingSpace = regexp.MustCompile(`(?m)\s+$`)
	codeFenceRe   = regexp.MustCompile("^(`{3,})")
	checkboxRe    = regexp.MustCompile(`(?m)^(\s*)[*+-] \[([ xX])\]`)

	// RE2 has no backreferences, so each emphasis delimiter gets its own pattern.
	emphasisRes = []*regexp.Regexp{
		regexp.MustCompile(`\*\*(.*?)\*\*`),
		regexp.MustCompile(`__(.*?)__`),
		regexp.MustCompile(`\*(.*?)\*`),
		regexp.MustCompile(`_(.*?)_`),
	}
)

// RemoveMarkdown strips list markers, checkboxes, headings, setext underlines
// and emphasis from s and trims whitespace around every line.
// Blank lines collapse because leading whitespace includes line breaks.
func RemoveMarkdown(s string) string {
	if s == "" {
		return ""
	}
	s = checkboxRe.ReplaceAllString(s, "$1")
	s = listRe.ReplaceAllString(s, "")
	s = headingRe.ReplaceAllString(s, "$1")
	s = headingLineRe.ReplaceAllString(s, "")
	for _, re := range emphasisRes {
		s = re.ReplaceAllString(s, "$1")
	}
	s = leadingSpace.ReplaceAllString(s, "")
	s = trailingSpace.ReplaceAllString(s, "")
	return s
}

// IsEmptyLine reports whether line has no text once Markdown is removed.
func IsEmptyLine(line string) bool {
	return strings.TrimSpace(RemoveMarkdown(line)) == ""
}

// GenerateTitle returns the first non-empty line of content without Markdown.
func GenerateTitle(content string) string {
	return LineWithoutMarkdown(content, 0)
}

// LineWithoutMarkdown returns line n of content stripped of Markdown, moving
// on to the next non-empty line when line n is empty.
func LineWithoutMarkdown(content string, n int) string {
	if !strings.Contains(content, "\n") {
		return RemoveMarkdown(content)
	}
	lines := strings.Split(content, "\n")
	for i := n; i < len(lines); i++ {
		if !IsEmptyLine(lines[i]) {
			return RemoveMarkdown(lines[i])
		}
	}
	return ""
}

// GenerateExcerpt returns at most maxRunes runes of content as plain text,
// skipping a leading title. Checkboxes become ☒ and ☐.
// A maxRunes of zero or less means DefaultExcerptLength.
func GenerateExcerpt(content, title string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = DefaultExcerptLength
	}
	content = RemoveMarkdown(ReplaceCheckboxesWithEmojis(strings.TrimSpace(content)))
	if content == "" {
		return ""
	}
	if title != "" {
		trimmedTitle := RemoveMarkdown(ReplaceCheckboxesWithEmojis(strings.TrimSpace(title)))
		content = strings.TrimPrefix(content, trimmedTitle)
	}
	content = truncateRunes(strings.TrimSpace(content), maxRunes)
	return strings.ReplaceAll(content, "\n", ExcerptLineSeparator)
}

// ReplaceCheckboxesWithEmojis swaps checkbox markers outside code fences for
// ☒ (checked) and ☐ (unchecked).
func ReplaceCheckboxesWithEmojis(content string) string {
	lines := strings.Split(content, "\n")
	forEachCheckbox(lines, func(i, _ int) bool {
		line := lines[i]
		open := strings.Index(line, "[")
		marker := line[open+1]
		emoji := uncheckedEmoji
		if marker == 'x' || marker == 'X' {
			emoji = checkedEmoji
		}
		start := strings.IndexAny(line, "*+-")
		lines[i] = line[:start] + emoji + line[open+3:]
		return true
	})
	return strings.Join(lines, "\n")
}

// LineStartsWithCheckbox reports whether line, ignoring surrounding
// whitespace, begins with a task-list checkbox such as "- [ ]" or "* [x]".
func LineStartsWithCheckbox(line string) bool {
	return checkboxRe.MatchString(strings.TrimSpace(line))
}

// CountCheckboxes returns the number of checkboxes outside code fences.
func CountCheckboxes(markdown string) int {
	n := 0
	forEachCheckbox(strings.Split(markdown, "\n"), func(_, _ int) bool {
		n++
		return true
	})
	return n
}

// SetCheckboxStatus sets the checkbox at index (counted from zero, ignoring
// checkboxes inside fenced code blocks) to checked or unchecked.
func SetCheckboxStatus(markdown string, index int, checked bool) (string, error) {
	if index < 0 {
		return "", ErrCheckboxNotFound
	}
	lines := strings.Split(markdown, "\n")
	found := false
	forEachCheckbox(lines, func(i, n int) bool {
		if n != index {
			return true
		}
		line := lines[i]
		open := strings.Index(line, "[")
		mark := " "
		if checked {
			mark = "x"
		}
		lines[i] = line[:open+1] + mark + line[open+2:]
		found = true
		return false
	})
	if !found {
		return "", ErrCheckboxNotFound
	}
	return strings.Join(lines, "\n"), nil
}

// fence tracks fenced code blocks line by line. A block closes only on a
// fence of the same length.
type fence struct {
	open bool
	size int
}

// step consumes one line and reports whether it is a fence marker or inside
// a block.
func (f *fence) step(line string) bool {
	m := codeFenceRe.FindStringSubmatch(line)
	switch {
	case m == nil:
		return f.open
	case !f.open:
		f.open, f.size = true, len(m[1])
	case len(m[1]) == f.size:
		f.open, f.size = false, 0
	}
	return true
}

// OutsideFences blanks every line that belongs to a fenced code block,
// including the fence markers. Line numbering is preserved.
func OutsideFences(markdown string) string {
	if !strings.Contains(markdown, "```") {
		return markdown
	}
	lines := strings.Split(markdown, "\n")
	var f fence
	for i, line := range lines {
		if f.step(line) {
			lines[i] = ""
		}
	}
	return strings.Join(lines, "\n")
}

// forEachCheckbox calls fn with the line index and running checkbox number of
// every line outside a fenced code block that starts with a non-empty checkbox
// item. Iteration stops when fn returns false.
func forEachCheckbox(lines []string, fn func(line, n int) bool) {
	var f fence
	n := 0
	for i, line := range lines {
		if f.step(line) {
			continue
		}
		// "- [ ]" alone is an empty item, not a checkbox.
		if !LineStartsWithCheckbox(line) || len(strings.TrimSpace(line)) <= len("- [ ]") {
			continue
		}
		if !fn(i, n) {
			return
		}
		n++
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
