package xconn

import (
	"context"
	"sync"
)

// Message is an item from the generic stream: either an event or an error
// no cookie was waiting for. Exactly one field is set.
type Message struct {
	Event Event
	Err   *ProtocolError
}

// A simple queue used to stow away messages until somebody asks for them.
// Every push replaces the wake channel and closes the old one, so all
// blocked readers get a chance to look.
type queue struct {
	mu     sync.Mutex
	data   []Message
	a, b   int
	wake   chan struct{}
	closed error
}

func newQueue() *queue {
	return &queue{
		data: make([]Message, 100),
		wake: make(chan struct{}),
	}
}

func (q *queue) push(item Message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed != nil {
		return false
	}
	if q.b == len(q.data) {
		if q.a > 0 {
			copy(q.data, q.data[q.a:q.b])
			for i := q.b - q.a; i < q.b; i++ {
				q.data[i] = Message{}
			}
			q.a, q.b = 0, q.b-q.a
		} else {
			newData := make([]Message, (len(q.data)*3)/2)
			copy(newData, q.data)
			q.data = newData
		}
	}
	q.data[q.b] = item
	q.b++

	close(q.wake)
	q.wake = make(chan struct{})
	return true
}

// poll returns the oldest message, if any. Once the queue is closed and
// drained it returns the close error.
func (q *queue) poll() (Message, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.a < q.b {
		item := q.data[q.a]
		q.data[q.a] = Message{}
		q.a++
		return item, true, nil
	}
	return Message{}, false, q.closed
}

func (q *queue) wait(ctx context.Context) (Message, error) {
	for {
		q.mu.Lock()
		wake := q.wake
		q.mu.Unlock()

		item, ok, err := q.poll()
		if ok {
			return item, nil
		}
		if err != nil {
			return Message{}, err
		}
		select {
		case <-wake:
		case <-ctx.Done():
			return Message{}, ctx.Err()
		}
	}
}

// close ends the stream. Messages already queued can still be read.
func (q *queue) close(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed != nil {
		return
	}
	q.closed = err
	close(q.wake)
	q.wake = make(chan struct{})
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.b - q.a
}
