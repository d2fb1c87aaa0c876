package textproc

import (
	"regexp"
	"strings"
)

// wwwLinkRe matches inline links whose target starts with "www.", with an
// optional quoted title. The target stops at the first closing parenthesis or
// whitespace so that two links on one line are never merged into one match.
var wwwLinkRe = regexp.MustCompile(`\[([^\]]*)\]\((www\.[^)\s]*)((?:\s+"[^"]*")?)\)`)

// WWWLinks prefixes protocol-less www. link targets with a protocol.
type WWWLinks struct {
	protocol string
}

// NewWWWLinks returns a processor prepending protocol (e.g. "https://").
func NewWWWLinks(protocol string) *WWWLinks {
	if protocol == "" {
		protocol = DefaultWWWProtocol
	}
	return &WWWLinks{protocol: protocol}
}

// Process implements Processor.
func (p *WWWLinks) Process(text string) string {
	if text == "" {
		return text
	}
	tmpl := "[${1}](" + strings.ReplaceAll(p.protocol, "$", "$$") + "${2}${3})"
	return wwwLinkRe.ReplaceAllString(text, tmpl)
}
