package link

// Counter wraps a Link and counts its traffic. It is used to audit
// chip-select bracketing and to assert that rejected operations never
// touch the bus.
type Counter struct {
	Link

	Selects     int
	Deselects   int
	Transmitted int
	Received    int

	depth    int
	maxDepth int
}

// NewCounter wraps l.
func NewCounter(l Link) *Counter {
	return &Counter{Link: l}
}

// Transmit counts and forwards b.
func (c *Counter) Transmit(b byte) {
	c.Transmitted++
	c.Link.Transmit(b)
}

// Receive counts and forwards a receive.
func (c *Counter) Receive() byte {
	c.Received++
	return c.Link.Receive()
}

// Select counts and forwards an assert.
func (c *Counter) Select() {
	c.Selects++
	c.depth++
	if c.depth > c.maxDepth {
		c.maxDepth = c.depth
	}
	c.Link.Select()
}

// Deselect counts and forwards a release.
func (c *Counter) Deselect() {
	c.Deselects++
	c.depth--
	c.Link.Deselect()
}

// Balanced reports whether every assert has been matched by one release.
func (c *Counter) Balanced() bool {
	return c.Selects == c.Deselects && c.depth == 0
}

// MaxDepth returns the deepest assert nesting observed. A correctly
// bracketed driver never exceeds one.
func (c *Counter) MaxDepth() int {
	return c.maxDepth
}

// Bytes returns the number of bytes clocked in either direction.
func (c *Counter) Bytes() int {
	return c.Transmitted + c.Received
}

// Reset clears all counts.
func (c *Counter) Reset() {
	c.Selects, c.Deselects = 0, 0
	c.Transmitted, c.Received = 0, 0
	c.depth, c.maxDepth = 0, 0
}
