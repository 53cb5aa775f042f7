// Package ring implements the fixed-capacity circular byte store that holds
// the compressed stream.
//
// The store has exactly two cursors. The write cursor marks where the
// compressor lands its next byte; the reclaim cursor marks the oldest byte the
// live decompressor has not consumed yet. Only bytes between the reclaim
// cursor and the write cursor (wrapping) are resident. Everything else is free
// for the compressor to overwrite.
package ring

import "fmt"

// Cursor is an offset into a circular region of fixed capacity.
//
// A cursor may sit exactly at capacity ("at end") after an Advance that fills
// the region up to its physical end. Callers decide when to wrap it with
// WrapIfAtEnd; this keeps "the writer has just filled the tail" distinguishable
// from "the writer is at the start".
type Cursor struct {
	offset   int
	capacity int
}

// NewCursor returns a cursor at offset 0 of a region of the given capacity.
func NewCursor(capacity int) Cursor {
	if capacity <= 0 {
		panic(fmt.Sprintf("ring: invalid cursor capacity %d", capacity))
	}
	return Cursor{capacity: capacity}
}

// Offset returns the physical offset of the cursor.
func (c Cursor) Offset() int {
	return c.offset
}

// Capacity returns the size of the region the cursor moves through.
func (c Cursor) Capacity() int {
	return c.capacity
}

// AtEnd reports whether the cursor sits at the physical end of the region.
func (c Cursor) AtEnd() bool {
	return c.offset == c.capacity
}

// ToEnd returns the number of bytes between the cursor and the physical end.
func (c Cursor) ToEnd() int {
	return c.capacity - c.offset
}

// Advance moves the cursor n bytes forward. A cursor sitting at the end wraps
// first. Advancing past the physical end panics: spans handed out by the
// store never cross it.
func (c *Cursor) Advance(n int) {
	if n < 0 {
		panic(fmt.Sprintf("ring: negative advance %d", n))
	}
	if n == 0 {
		return
	}
	c.WrapIfAtEnd()
	if c.offset+n > c.capacity {
		panic(fmt.Sprintf("ring: advance %d from offset %d overruns capacity %d", n, c.offset, c.capacity))
	}
	c.offset += n
}

// WrapIfAtEnd moves a cursor that sits at the physical end back to 0.
// It reports whether a wrap happened.
func (c *Cursor) WrapIfAtEnd() bool {
	if c.offset == c.capacity {
		c.offset = 0
		return true
	}
	return false
}

// DistanceTo returns how many bytes lie between c and other moving forward,
// wrapping at capacity. Both cursors must share the same capacity. A cursor
// at the end is treated as being at 0. Equal positions return 0; whether that
// means "empty" or "full" is for the owner of both cursors to decide.
func (c Cursor) DistanceTo(other Cursor) int {
	if c.capacity != other.capacity {
		panic(fmt.Sprintf("ring: cursor capacity mismatch %d != %d", c.capacity, other.capacity))
	}
	from := c.offset % c.capacity
	to := other.offset % other.capacity
	if to >= from {
		return to - from
	}
	return c.capacity - from + to
}

func (c Cursor) String() string {
	return fmt.Sprintf("%d/%d", c.offset, c.capacity)
}
