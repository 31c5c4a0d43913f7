package protocol

import "sync/atomic"

// Sequence hands out strictly increasing timestamps for one outgoing stream.
// The first value is 1. It is safe for concurrent use.
type Sequence struct {
	n atomic.Int64
}

// Next returns the next timestamp.
func (s *Sequence) Next() int64 {
	return s.n.Add(1)
}

// Last returns the most recently issued timestamp, 0 before the first Next.
func (s *Sequence) Last() int64 {
	return s.n.Load()
}

// Watermark remembers the newest applied timestamp of one incoming stream.
// The zero value accepts any positive timestamp.
type Watermark struct {
	last int64
}

// Advance reports whether ts is strictly newer than anything applied so far
// and, if so, records it.
func (w *Watermark) Advance(ts int64) bool {
	if ts <= w.last {
		return false
	}
	w.last = ts
	return true
}

// Last returns the newest applied timestamp.
func (w *Watermark) Last() int64 {
	return w.last
}
