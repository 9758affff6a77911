package xconn

import (
	"context"
	"errors"
	"sync"
)

// maxPending is the most cookies that can wait at once. One more and two
// of them would share a 16 bit sequence number.
const maxPending = 1 << 16

// A Cookie is the handle Send returns. It pairs a request's sequence
// number with the slot its reply or error is delivered to.
//
// There are three kinds of cookies:
// Requests with replies get a slot for the reply or its error.
// Checked requests without replies get a slot that receives either the
// error or, once the server is known to have handled the request, nil.
// Unchecked requests without replies are not registered at all; their
// errors show up on the message queue.
type Cookie struct {
	// Sequence is the full, unwrapped sequence number of the request.
	Sequence uint64

	conn       *Conn
	decode     func([]byte) (interface{}, error)
	registered bool
	errorsOnly bool

	once  sync.Once
	done  chan struct{}
	reply interface{}
	err   error
}

func newCookie(c *Conn, seq uint64, req Request, checked bool) *Cookie {
	ck := &Cookie{
		Sequence: seq,
		conn:     c,
		done:     make(chan struct{}),
	}
	if rr, ok := req.(ReplyRequest); ok {
		ck.decode = rr.DecodeReply
		ck.registered = true
	} else if checked {
		ck.errorsOnly = true
		ck.registered = true
	}
	return ck
}

// resolve fills the slot. Only the first call has any effect; it reports
// whether it was that call.
func (ck *Cookie) resolve(reply interface{}, err error) bool {
	first := false
	ck.once.Do(func() {
		ck.reply, ck.err = reply, err
		close(ck.done)
		first = true
	})
	return first
}

func (ck *Cookie) resolved() bool {
	select {
	case <-ck.done:
		return true
	default:
		return false
	}
}

// Done is closed once the cookie is resolved.
func (ck *Cookie) Done() <-chan struct{} {
	return ck.done
}

// Reply waits for the reply to a request that has one. It returns the
// value produced by the request's DecodeReply, or the X error, or a
// connection failure. If ctx ends first, ctx.Err() is returned and the
// cookie stays valid: a later Reply still gets the answer.
func (ck *Cookie) Reply(ctx context.Context) (interface{}, error) {
	if !ck.registered {
		return nil, ErrNoReply
	}
	if ck.errorsOnly {
		return nil, errors.New("xconn: cookie has no reply, use Check")
	}
	select {
	case <-ck.done:
		return ck.reply, ck.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Check waits until a checked request without a reply is known to have
// succeeded or failed. When the outcome is still open it forces a round
// trip to the server.
func (ck *Cookie) Check(ctx context.Context) error {
	if !ck.registered {
		return errors.New("xconn: cannot check an unchecked request, use SendChecked")
	}
	if !ck.errorsOnly {
		return errors.New("xconn: cookie expects a reply, use Reply")
	}
	if !ck.resolved() {
		if err := ck.conn.Sync(ctx); err != nil && !errors.Is(err, ErrConnectionClosed) {
			return err
		}
	}
	select {
	case <-ck.done:
		return ck.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel gives up on the request. Waiters see ErrCancelled and the reply
// or error, when it arrives, is thrown away. Cancelling a resolved cookie
// does nothing.
func (ck *Cookie) Cancel() {
	if !ck.registered {
		return
	}
	ck.resolve(nil, ErrCancelled)
}
