package xconn

import (
	"errors"
	"sync"
)

// ErrNoMoreIds is returned once every id in the client's range was handed
// out.
var ErrNoMoreIds = errors.New("xconn: there are no more available resource identifiers")

// IdAllocator hands out resource ids from the range the server assigned to
// this client: id = base | n*inc, where inc is the lowest bit of mask.
// The connection core never allocates ids itself.
type IdAllocator struct {
	mu   sync.Mutex
	base uint32
	inc  uint32
	max  uint32
	last uint32
}

func NewIdAllocator(base, mask uint32) *IdAllocator {
	return &IdAllocator{
		base: base,
		inc:  mask & -mask,
		max:  mask,
	}
}

// NewId returns the next unused id.
// TODO: Use the XC-MISC extension to look for released ids.
func (a *IdAllocator) NewId() (Id, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.inc == 0 || (a.last > 0 && a.last >= a.max-a.inc+1) {
		return 0, ErrNoMoreIds
	}
	a.last += a.inc
	return Id(a.last | a.base), nil
}
