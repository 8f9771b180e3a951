// Package pagination is a clamped cursor over a fixed count of pages or
// chapters, independent of the format that produced them.
package pagination

// Cursor tracks the current page. The invariant 0 <= Current() < Total()
// holds after every operation, and Total() is never below 1.
type Cursor struct {
	current int
	total   int
}

// New returns a cursor at page 0. A total below 1 is raised to 1 so even
// degenerate content has one page.
func New(total int) *Cursor {
	c := &Cursor{}
	c.SetTotal(total)
	return c
}

// Current returns the current page index.
func (c *Cursor) Current() int { return c.current }

// Total returns the page count.
func (c *Cursor) Total() int { return c.total }

// GoTo moves to page n, clamped into [0, total-1].
func (c *Cursor) GoTo(n int) {
	if n < 0 {
		n = 0
	}
	if n > c.total-1 {
		n = c.total - 1
	}
	c.current = n
}

// Next advances one page; no-op on the last page.
func (c *Cursor) Next() {
	if c.current < c.total-1 {
		c.current++
	}
}

// Prev steps back one page; no-op on page 0.
func (c *Cursor) Prev() {
	if c.current > 0 {
		c.current--
	}
}

// Reset returns to page 0.
func (c *Cursor) Reset() { c.current = 0 }

// SetTotal replaces the page count (e.g. after a reload produced different
// content) and re-clamps the current page into the new range.
func (c *Cursor) SetTotal(total int) {
	if total < 1 {
		total = 1
	}
	c.total = total
	c.GoTo(c.current)
}
