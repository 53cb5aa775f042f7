package ring

import "fmt"

// Store is a fixed-capacity circular byte region with a write cursor and a
// reclaim cursor.
//
// Besides the two physical cursors the store keeps monotonic totals of bytes
// ever committed and ever released. The totals disambiguate the two states in
// which both cursors coincide: an empty ring (everything reclaimed) and a full
// one (the writer caught up with the reclaimer).
//
// Store is not safe for concurrent use. It is owned by a single retention
// engine.
type Store struct {
	buf     []byte
	write   Cursor
	reclaim Cursor

	written   uint64
	reclaimed uint64
	wraps     uint64
}

// New creates a store with the given capacity in bytes.
func New(capacity int) *Store {
	if capacity <= 0 {
		panic(fmt.Sprintf("ring: invalid capacity %d", capacity))
	}
	return &Store{
		buf:     make([]byte, capacity),
		write:   NewCursor(capacity),
		reclaim: NewCursor(capacity),
	}
}

// Capacity returns the size of the ring in bytes.
func (s *Store) Capacity() int {
	return len(s.buf)
}

// Written returns the total number of bytes ever committed by the writer.
func (s *Store) Written() uint64 {
	return s.written
}

// Reclaimed returns the total number of bytes ever released by the reclaimer.
func (s *Store) Reclaimed() uint64 {
	return s.reclaimed
}

// Wraps returns how many times the write cursor wrapped to the start.
func (s *Store) Wraps() uint64 {
	return s.wraps
}

// Primed reports whether any byte was ever reclaimed.
func (s *Store) Primed() bool {
	return s.reclaimed > 0
}

// Resident returns the number of committed bytes not yet reclaimed.
func (s *Store) Resident() int {
	return int(s.written - s.reclaimed)
}

// Free returns the number of bytes the writer may still commit before the
// reclaimer has to advance.
func (s *Store) Free() int {
	switch s.Resident() {
	case 0:
		// The reclaimer caught up with the writer: the whole ring is eligible.
		return len(s.buf)
	case len(s.buf):
		return 0
	}
	return s.write.DistanceTo(s.reclaim)
}

// WriteCursor returns a copy of the write cursor.
func (s *Store) WriteCursor() Cursor {
	return s.write
}

// ReclaimCursor returns a copy of the reclaim cursor.
func (s *Store) ReclaimCursor() Cursor {
	return s.reclaim
}

// WritableSpan returns the contiguous free region starting at the write
// cursor. It stops at the reclaim cursor or at the physical end of the ring,
// whichever comes first. The result is empty when the ring is full.
func (s *Store) WritableSpan() []byte {
	n := min(s.Free(), s.write.ToEnd())
	off := s.write.Offset()
	return s.buf[off : off+n : off+n]
}

// Commit marks the first n bytes of WritableSpan as written. The write cursor
// wraps to the start once it reaches the physical end.
func (s *Store) Commit(n int) {
	if n > len(s.WritableSpan()) {
		panic(fmt.Sprintf("ring: commit %d exceeds writable span %d at %s", n, len(s.WritableSpan()), s.write))
	}
	s.write.Advance(n)
	s.written += uint64(n)
	if s.write.WrapIfAtEnd() {
		s.wraps++
	}
}

// ReclaimableSpan returns the contiguous resident region starting at the
// reclaim cursor, stopping at the write cursor or the physical end.
func (s *Store) ReclaimableSpan() []byte {
	n := min(s.Resident(), s.reclaim.ToEnd())
	off := s.reclaim.Offset()
	return s.buf[off : off+n : off+n]
}

// Release marks the first n bytes of ReclaimableSpan as consumed, making them
// free for the writer.
func (s *Store) Release(n int) {
	if n > len(s.ReclaimableSpan()) {
		panic(fmt.Sprintf("ring: release %d exceeds reclaimable span %d at %s", n, len(s.ReclaimableSpan()), s.reclaim))
	}
	s.reclaim.Advance(n)
	s.reclaimed += uint64(n)
	s.reclaim.WrapIfAtEnd()
}

// Snapshot captures the cursor state at this instant.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		Capacity:  len(s.buf),
		Write:     s.write,
		Reclaim:   s.reclaim,
		Written:   s.written,
		Reclaimed: s.reclaimed,
	}
}

// Bytes returns the ring bytes covered by span. The slice aliases the ring and
// is only valid until the next Commit.
func (s *Store) Bytes(span Span) []byte {
	if span.Start < 0 || span.Len < 0 || span.Start+span.Len > len(s.buf) {
		panic(fmt.Sprintf("ring: span %+v outside capacity %d", span, len(s.buf)))
	}
	return s.buf[span.Start : span.Start+span.Len : span.Start+span.Len]
}

// Span is a physically contiguous range of the ring.
type Span struct {
	Start int
	Len   int
}

// Snapshot is a frozen copy of the store's cursors.
type Snapshot struct {
	Capacity  int
	Write     Cursor
	Reclaim   Cursor
	Written   uint64
	Reclaimed uint64
}

// Resident returns the number of resident bytes at snapshot time.
func (s Snapshot) Resident() int {
	return int(s.Written - s.Reclaimed)
}

// Primed reports whether the reclaimer had consumed anything at snapshot time.
func (s Snapshot) Primed() bool {
	return s.Reclaimed > 0
}

// Segments splits the resident bytes into the two physical spans in logical
// order. The first runs from the reclaim cursor towards the writer without
// wrapping. The second holds whatever resident data wrapped to the start of
// the ring; its length is the "space left" behind the reclaim cursor. A ring
// that never wrapped always yields an empty second span.
func (s Snapshot) Segments() (first, second Span) {
	resident := s.Resident()
	start := s.Reclaim.Offset() % s.Capacity
	n := min(resident, s.Capacity-start)
	first = Span{Start: start, Len: n}
	second = Span{Start: 0, Len: resident - n}
	return first, second
}
