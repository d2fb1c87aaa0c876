// Package textproc rewrites inline links in Markdown note bodies before they
// are handed to a renderer.
//
// A Processor maps text to text. Processors are composed into a Chain that
// applies them in construction order. Every processor shipped here is a pure
// function of its input and of the values it was constructed with, so a single
// instance may be shared between goroutines.
package textproc

// Processor transforms one Markdown note body into another.
// Process must return "" for "" and must not retain or mutate shared state.
type Processor interface {
	Process(text string) string
}

// ProcessorFunc adapts an ordinary function to the Processor interface.
type ProcessorFunc func(text string) string

// Process calls f(text).
func (f ProcessorFunc) Process(text string) string {
	return f(text)
}

// Options holds the construction-time settings of the default chain.
type Options struct {
	// InternalLinkPrefix is inserted in front of confirmed note ids.
	// Link-click handling matches on it, so it must stay stable between runs.
	InternalLinkPrefix string
	// WWWProtocol is prepended to link targets that start with "www.".
	WWWProtocol string
}

const (
	// DefaultInternalLinkPrefix marks a link as resolved to another note.
	DefaultInternalLinkPrefix = "https://notebridge/notes/"
	// DefaultWWWProtocol is used for bare www. links.
	DefaultWWWProtocol = "https://"
)

// DefaultOptions returns Options populated with the default prefixes.
func DefaultOptions() Options {
	return Options{
		InternalLinkPrefix: DefaultInternalLinkPrefix,
		WWWProtocol:        DefaultWWWProtocol,
	}
}

func (o Options) withDefaults() Options {
	if o.InternalLinkPrefix == "" {
		o.InternalLinkPrefix = DefaultInternalLinkPrefix
	}
	if o.WWWProtocol == "" {
		o.WWWProtocol = DefaultWWWProtocol
	}
	return o
}

// NewDefaultChain builds the chain used for rendering notes: www. links are
// canonicalised first, then note links are resolved against known.
// The two rules match disjoint targets, so their order does not change the result.
func NewDefaultChain(opts Options, known IDSet) *Chain {
	opts = opts.withDefaults()
	return NewChain(
		NewWWWLinks(opts.WWWProtocol),
		NewNoteLinks(opts.InternalLinkPrefix, known),
	)
}
