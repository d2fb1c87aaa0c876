package textproc

// Chain applies an ordered list of processors, feeding the output of each one
// into the next. A Chain is itself a Processor.
type Chain struct {
	processors []Processor
}

// NewChain returns a chain applying ps left to right.
// Nil entries are skipped. The chain does not reorder or deduplicate.
func NewChain(ps ...Processor) *Chain {
	c := &Chain{processors: make([]Processor, 0, len(ps))}
	for _, p := range ps {
		c.Add(p)
	}
	return c
}

// Add appends p to the end of the chain and returns the chain.
func (c *Chain) Add(p Processor) *Chain {
	if p != nil {
		c.processors = append(c.processors, p)
	}
	return c
}

// Len returns the number of processors in the chain.
func (c *Chain) Len() int {
	return len(c.processors)
}

// Apply runs every processor over text in order.
// An empty chain returns text unchanged.
func (c *Chain) Apply(text string) string {
	for _, p := range c.processors {
		text = p.Process(text)
	}
	return text
}

// Process implements Processor.
func (c *Chain) Process(text string) string {
	return c.Apply(text)
}
