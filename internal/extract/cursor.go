package extract

import "fmt"

// Cursor pages through a finished batch one record at a time. The zero
// value over an empty slice is valid and reports no current record.
type Cursor struct {
	recs []Record
	i    int
}

func NewCursor(recs []Record) *Cursor { return &Cursor{recs: recs} }

func (c *Cursor) Len() int { return len(c.recs) }

// Index is zero-based.
func (c *Cursor) Index() int { return c.i }

func (c *Cursor) Current() (Record, bool) {
	if len(c.recs) == 0 {
		return Record{}, false
	}
	return c.recs[c.i], true
}

func (c *Cursor) HasPrev() bool { return c.i > 0 }
func (c *Cursor) HasNext() bool { return c.i < len(c.recs)-1 }

// Seek moves to the zero-based index i, reporting false when out of range.
func (c *Cursor) Seek(i int) bool {
	if i < 0 || i >= len(c.recs) {
		return false
	}
	c.i = i
	return true
}

// Label is the viewer caption, e.g. "File 2 of 5".
func (c *Cursor) Label() string {
	if len(c.recs) == 0 {
		return ""
	}
	return fmt.Sprintf("File %d of %d", c.i+1, len(c.recs))
}
