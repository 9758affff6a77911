package xconn

import (
	"math"
	"sync/atomic"
)

// sequenceTracker hands out full sequence numbers. The server only ever
// sees the low 16 bits. next is only called with Conn.writeLock held; last
// may be read from the read loop at any time.
type sequenceTracker struct {
	n atomic.Uint64
}

// next returns the sequence number of the request about to be written.
// The first request on a connection is number 1.
func (s *sequenceTracker) next() (uint64, error) {
	n := s.n.Load()
	if n == math.MaxUint64 {
		return 0, ErrSequenceOverflow
	}
	s.n.Store(n + 1)
	return n + 1, nil
}

// last returns the most recently issued sequence number, 0 if none.
func (s *sequenceTracker) last() uint64 {
	return s.n.Load()
}

// widen returns the most recent full sequence number, at or before last,
// whose low 16 bits equal wire. If there is none it returns wire itself.
func widen(last uint64, wire uint16) uint64 {
	back := uint64(uint16(last) - wire)
	if back > last {
		return uint64(wire)
	}
	return last - back
}
