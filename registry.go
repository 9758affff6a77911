package xconn

import "sync"

// registry maps sequence numbers of requests in flight to their cookies.
// Send inserts; the read loop and teardown remove. Each wire sequence
// number keeps its cookies oldest first, so a reply always goes to the
// oldest request that can own it.
type registry struct {
	mu      sync.Mutex
	pending map[uint16][]*Cookie
	count   int

	// voids holds the checked requests without replies in send order.
	voids []*Cookie

	closed bool
}

func newRegistry() *registry {
	return &registry{pending: make(map[uint16][]*Cookie)}
}

// insert registers ck. It fails once the table is full or torn down.
func (r *registry) insert(ck *Cookie) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrConnectionClosed
	}
	if r.count >= maxPending {
		return ErrSequenceExhausted
	}
	key := uint16(ck.Sequence)
	r.pending[key] = append(r.pending[key], ck)
	r.count++
	if ck.errorsOnly {
		r.voids = append(r.voids, ck)
	}
	return nil
}

// claim removes and returns the cookie a frame with sequence number wire
// belongs to. Replies skip cookies without replies: those requests were
// handled before the one being answered. done lists the checked requests
// without replies that are now known to have succeeded.
func (r *registry) claim(wire uint16, reply bool) (ck *Cookie, done []*Cookie) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q := r.pending[wire]
	for i, c := range q {
		if reply && c.errorsOnly {
			continue
		}
		ck = c
		r.removeAt(wire, i)
		break
	}
	if ck == nil {
		return nil, nil
	}

	for len(r.voids) > 0 && r.voids[0].Sequence <= ck.Sequence {
		v := r.voids[0]
		r.voids[0] = nil
		r.voids = r.voids[1:]
		if v == ck {
			continue
		}
		r.remove(v)
		done = append(done, v)
	}
	return ck, done
}

// remove drops ck from its sequence number's queue.
func (r *registry) remove(ck *Cookie) {
	key := uint16(ck.Sequence)
	for i, c := range r.pending[key] {
		if c == ck {
			r.removeAt(key, i)
			return
		}
	}
}

func (r *registry) removeAt(key uint16, i int) {
	q := r.pending[key]
	copy(q[i:], q[i+1:])
	q[len(q)-1] = nil
	q = q[:len(q)-1]
	if len(q) == 0 {
		delete(r.pending, key)
	} else {
		r.pending[key] = q
	}
	r.count--
}

// len reports how many cookies are registered, cancelled ones included.
func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// close empties the table for good and returns what was in it.
func (r *registry) close() []*Cookie {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	all := make([]*Cookie, 0, r.count)
	for _, q := range r.pending {
		all = append(all, q...)
	}
	r.pending = nil
	r.voids = nil
	r.count = 0
	return all
}
