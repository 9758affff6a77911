package xconn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xgbproject/xconn/internal/xtest"
)

// Opcodes the test server knows about.
const (
	opFail = 8   // answered with a BadWindow error
	opEcho = 16  // answered with a reply carrying the request's sequence number
	opSync = 43  // GetInputFocus, answered like opEcho
	opNop  = 127 // never answered
)

const badWindow = 3

// serve is the default server behaviour.
func serve(s *xtest.Server, r xtest.Request) {
	switch r.Opcode {
	case opEcho, opSync:
		s.Reply(r.Wire(), 0, seqPayload(r.Sequence))
	case opFail:
		s.Error(r.Wire(), badWindow, 0x1, r.Opcode)
	}
}

func seqPayload(seq uint64) []byte {
	p := make([]byte, 4)
	Put32(p, uint32(seq))
	return p
}

// echoRequest is answered by serve with its own sequence number.
type echoRequest struct{}

func (echoRequest) Bytes() ([]byte, error) { return []byte{opEcho, 0, 1, 0}, nil }

func (echoRequest) DecodeReply(buf []byte) (interface{}, error) {
	return Get32(buf[8:]), nil
}

// brokenRequest gets a reply it can not decode.
type brokenRequest struct{}

func (brokenRequest) Bytes() ([]byte, error) { return []byte{opEcho, 0, 1, 0}, nil }

func (brokenRequest) DecodeReply(buf []byte) (interface{}, error) {
	return nil, errors.New("garbled")
}

// rawReplyRequest keeps its whole reply frame.
type rawReplyRequest struct{}

func (rawReplyRequest) Bytes() ([]byte, error) { return []byte{opEcho, 0, 1, 0}, nil }

func (rawReplyRequest) DecodeReply(buf []byte) (interface{}, error) { return buf, nil }

var (
	nop  = RawRequest{opNop, 0, 1, 0}
	fail = RawRequest{opFail, 0, 2, 0, 1, 0, 0, 0}
)

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// newTestConn connects to a fresh test server. Both are closed when the
// test ends.
func newTestConn(t *testing.T, handler xtest.Handler, opts ...Option) (*Conn, *xtest.Server) {
	t.Helper()
	s := xtest.New(xtest.DefaultSetup().Bytes(), handler)
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	c, err := Connect(testContext(t), s.Client(), Credential{}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		c.Close()
		s.Close()
	})
	return c, s
}

// testCodec decodes every event into a testEvent and fails on code 99.
type testCodec struct{}

type testEvent struct {
	code byte
	seq  uint16
	size int
}

func (ev testEvent) SequenceId() uint16 { return ev.seq }

func (ev testEvent) String() string { return fmt.Sprintf("testEvent %d", ev.code) }

func (testCodec) EventLength(header []byte) int { return DefaultEventLength(header) }

func (testCodec) DecodeEvent(buf []byte) (Event, error) {
	if buf[0] == 99 {
		return nil, errors.New("unknown event")
	}
	return testEvent{buf[0] & 0x7f, Get16(buf[2:]), len(buf)}, nil
}

func (testCodec) ErrorName(code byte) string {
	if code == badWindow {
		return "BadWindow"
	}
	return ""
}

func TestConnOpenClose(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := xtest.New(xtest.DefaultSetup().Bytes(), serve)
	defer s.Close()

	c, err := Connect(context.Background(), s.Client(), Credential{}, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	assert.Equal(t, "The X.Org Foundation", c.Setup().Vendor)
	require.NotNil(t, c.DefaultScreen())
	assert.Equal(t, Id(0x1e8), c.DefaultScreen().Root)

	closed := make(chan error, 1)
	go func() {
		closed <- c.Close()
	}()
	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}

	assert.NoError(t, c.Close())
	assert.NoError(t, c.Err())

	_, err = c.Send(nop)
	assert.ErrorIs(t, err, ErrConnectionClosed)
	_, err = c.WaitForMessage(context.Background())
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestConnCredential(t *testing.T) {
	s := xtest.New(xtest.DefaultSetup().Bytes(), nil)
	defer s.Close()

	cred := Credential{Name: "MIT-MAGIC-COOKIE-1", Data: []byte("0123456789abcdef")}
	c, err := Connect(testContext(t), s.Client(), cred, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	defer c.Close()

	name, data := s.Auth()
	assert.Equal(t, cred.Name, name)
	assert.Equal(t, cred.Data, data)
}

func TestConnDefaultScreenMissing(t *testing.T) {
	s := xtest.New(xtest.DefaultSetup().Bytes(), nil)
	defer s.Close()

	_, err := Connect(testContext(t), s.Client(), Credential{},
		WithLogger(zaptest.NewLogger(t)), WithDefaultScreen(1))
	var ioErr *HandshakeIoError
	assert.ErrorAs(t, err, &ioErr)
}

func TestSequenceNumbers(t *testing.T) {
	var mu sync.Mutex
	var seen []uint64
	c, _ := newTestConn(t, func(s *xtest.Server, r xtest.Request) {
		mu.Lock()
		seen = append(seen, r.Sequence)
		mu.Unlock()
		serve(s, r)
	})
	ctx := testContext(t)

	var got []uint64
	for i := 0; i < 5; i++ {
		var ck *Cookie
		var err error
		if i%2 == 0 {
			ck, err = c.Send(nop)
		} else {
			ck, err = c.Send(echoRequest{})
		}
		require.NoError(t, err)
		got = append(got, ck.Sequence)
	}
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, got)
	require.NoError(t, c.Sync(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []uint64{1, 2, 3, 4, 5, 6}, seen)
	assert.Equal(t, uint64(6), c.seq.last())
}

func TestRequestTooLarge(t *testing.T) {
	c, _ := newTestConn(t, serve)

	max := int(c.Setup().MaximumRequestLength) * 4
	_, err := c.Send(RawRequest(make([]byte, max+4)))
	assert.ErrorIs(t, err, ErrRequestTooLarge)
	assert.Equal(t, uint64(0), c.seq.last())

	_, err = c.Send(RawRequest{opNop, 0, 1})
	assert.ErrorIs(t, err, ErrMalformedRequest)
	_, err = c.Send(RawRequest{})
	assert.ErrorIs(t, err, ErrMalformedRequest)
	assert.Equal(t, uint64(0), c.seq.last())

	// The connection is still good and numbering continues at 1.
	ck, err := c.Send(echoRequest{})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), ck.Sequence)
	v, err := ck.Reply(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), v)
}

func TestReplyRoundTrip(t *testing.T) {
	c, _ := newTestConn(t, serve)
	ctx := testContext(t)

	for i := 0; i < 3; i++ {
		_, err := c.Send(nop)
		require.NoError(t, err)
	}
	ck, err := c.Send(echoRequest{})
	require.NoError(t, err)
	v, err := ck.Reply(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), v)

	// A second Reply returns the same answer.
	v, err = ck.Reply(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), v)
	assert.Equal(t, 0, c.cookies.len())
}

func TestConcurrentSenders(t *testing.T) {
	c, _ := newTestConn(t, serve)
	ctx := testContext(t)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				ck, err := c.Send(echoRequest{})
				if !assert.NoError(t, err) {
					return
				}
				v, err := ck.Reply(ctx)
				if !assert.NoError(t, err) {
					return
				}
				assert.Equal(t, uint32(ck.Sequence), v)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(1600), c.seq.last())
}

func TestSequenceWrapAround(t *testing.T) {
	// The server holds back the reply to request 1 until request 65537,
	// which has the same wire sequence number, was sent.
	c, _ := newTestConn(t, func(s *xtest.Server, r xtest.Request) {
		if r.Opcode != opEcho {
			return
		}
		switch r.Sequence {
		case 1:
		case 1 + 1<<16:
			s.Reply(r.Wire(), 0, seqPayload(1))
			s.Reply(r.Wire(), 0, seqPayload(r.Sequence))
		default:
			serve(s, r)
		}
	})
	ctx := testContext(t)

	first, err := c.Send(echoRequest{})
	require.NoError(t, err)
	for i := 0; i < 1<<16-1; i++ {
		_, err := c.Send(nop)
		require.NoError(t, err)
	}
	second, err := c.Send(echoRequest{})
	require.NoError(t, err)
	assert.Equal(t, uint64(1+1<<16), second.Sequence)
	assert.Equal(t, uint16(first.Sequence), uint16(second.Sequence))

	v, err := first.Reply(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), v)
	v, err = second.Reply(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(1+1<<16), v)

	// Later requests still find their replies.
	third, err := c.Send(echoRequest{})
	require.NoError(t, err)
	v, err = third.Reply(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(third.Sequence), v)
}

func TestSequenceExhausted(t *testing.T) {
	c, _ := newTestConn(t, nil)
	ctx := testContext(t)

	cookies := make([]*Cookie, 0, maxPending)
	for i := 0; i < maxPending; i++ {
		ck, err := c.Send(echoRequest{})
		require.NoError(t, err)
		cookies = append(cookies, ck)
	}
	assert.Equal(t, maxPending, c.cookies.len())

	_, err := c.Send(echoRequest{})
	assert.ErrorIs(t, err, ErrConnectionClosed)
	assert.ErrorIs(t, err, ErrSequenceExhausted)
	assert.ErrorIs(t, c.Err(), ErrSequenceExhausted)

	for _, ck := range []*Cookie{cookies[0], cookies[len(cookies)-1]} {
		_, err := ck.Reply(ctx)
		assert.ErrorIs(t, err, ErrConnectionClosed)
	}
	_, err = c.Send(nop)
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestMessageOrdering(t *testing.T) {
	c, _ := newTestConn(t, func(s *xtest.Server, r xtest.Request) {
		if r.Opcode == opNop {
			s.Event(12, r.Wire(), nil)
			s.Error(r.Wire(), badWindow, 0xbad, opNop)
			s.Event(22, r.Wire(), nil)
			return
		}
		serve(s, r)
	})
	ctx := testContext(t)

	// Replies to other goroutines' requests are interleaved with the
	// messages but never reorder them.
	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				ck, err := c.Send(echoRequest{})
				if !assert.NoError(t, err) {
					return
				}
				v, err := ck.Reply(ctx)
				if !assert.NoError(t, err) {
					return
				}
				assert.Equal(t, uint32(ck.Sequence), v)
			}
		}()
	}

	const rounds = 20
	var sent []uint64
	for i := 0; i < rounds; i++ {
		ck, err := c.Send(nop)
		require.NoError(t, err)
		sent = append(sent, ck.Sequence)
	}

	for i := 0; i < rounds; i++ {
		m, err := c.WaitForMessage(ctx)
		require.NoError(t, err)
		require.Nil(t, m.Err)
		assert.Equal(t, byte(12), m.Event.(RawEvent).Code())
		assert.Equal(t, uint16(sent[i]), m.Event.SequenceId())

		m, err = c.WaitForMessage(ctx)
		require.NoError(t, err)
		require.Nil(t, m.Event)
		require.NotNil(t, m.Err)
		assert.Equal(t, byte(badWindow), m.Err.Code)
		assert.Equal(t, uint32(0xbad), m.Err.BadValue)
		assert.Equal(t, byte(opNop), m.Err.MajorOpcode)

		m, err = c.WaitForMessage(ctx)
		require.NoError(t, err)
		require.Nil(t, m.Err)
		assert.Equal(t, byte(22), m.Event.(RawEvent).Code())
		assert.Equal(t, uint16(sent[i]), m.Event.SequenceId())
	}
	close(stop)
	wg.Wait()

	_, ok, err := c.PollForMessage()
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestUnclaimedErrorSequence(t *testing.T) {
	c, _ := newTestConn(t, func(s *xtest.Server, r xtest.Request) {
		if r.Opcode == opNop {
			s.Error(r.Wire(), badWindow, 0xbad, opNop)
		}
	})
	ctx := testContext(t)

	ck, err := c.Send(nop)
	require.NoError(t, err)
	m, err := c.WaitForMessage(ctx)
	require.NoError(t, err)
	require.NotNil(t, m.Err)
	assert.Equal(t, ck.Sequence, m.Err.FullSequence)
	assert.Equal(t, uint64(1), m.Err.FullSequence)
}

func TestEventsWithCodec(t *testing.T) {
	c, _ := newTestConn(t, func(s *xtest.Server, r xtest.Request) {
		if r.Opcode == opNop {
			s.Event(2|0x80, r.Wire(), nil)
			s.Write(xtest.GenericEventFrame(131, r.Wire(), 1, []byte{1, 2, 3, 4, 5, 6}))
			s.Error(r.Wire(), badWindow, 0, opNop)
			return
		}
		serve(s, r)
	}, WithCodec(testCodec{}))
	ctx := testContext(t)

	_, err := c.Send(nop)
	require.NoError(t, err)
	require.NoError(t, c.Sync(ctx))

	ev, err := c.PollForEvent()
	require.NoError(t, err)
	assert.Equal(t, testEvent{2, 1, 32}, ev)

	ev, err = c.WaitForEvent()
	require.NoError(t, err)
	assert.Equal(t, testEvent{35, 1, 40}, ev)

	ev, err = c.WaitForEvent()
	assert.Nil(t, ev)
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "BadWindow", perr.Name)
	assert.Contains(t, perr.Error(), "BadWindow")

	ev, err = c.PollForEvent()
	assert.Nil(t, ev)
	assert.NoError(t, err)
}

func TestWaitForMessageContext(t *testing.T) {
	c, _ := newTestConn(t, serve)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.WaitForMessage(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitForEventAfterClose(t *testing.T) {
	sent := make(chan struct{})
	c, s := newTestConn(t, func(s *xtest.Server, r xtest.Request) {
		s.Event(12, r.Wire(), nil)
		close(sent)
	})

	_, err := c.Send(nop)
	require.NoError(t, err)
	<-sent
	s.Close()
	<-c.readDone

	// What was queued before the failure can still be read.
	ev, err := c.WaitForEvent()
	require.NoError(t, err)
	assert.Equal(t, byte(12), ev.(RawEvent).Code())

	ev, err = c.WaitForEvent()
	assert.Nil(t, ev)
	assert.Nil(t, err)
	_, err = c.WaitForMessage(context.Background())
	assert.ErrorIs(t, err, ErrConnectionClosed)
	_, ok, err := c.PollForMessage()
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestReadFailure(t *testing.T) {
	c, s := newTestConn(t, nil)
	ctx := testContext(t)

	a, err := c.Send(echoRequest{})
	require.NoError(t, err)
	b, err := c.Send(echoRequest{})
	require.NoError(t, err)

	s.Close()

	for _, ck := range []*Cookie{a, b} {
		_, err := ck.Reply(ctx)
		assert.ErrorIs(t, err, ErrConnectionClosed)
		var rerr *TransportReadError
		assert.ErrorAs(t, err, &rerr)
	}
	var rerr *TransportReadError
	assert.ErrorAs(t, c.Err(), &rerr)
	assert.ErrorIs(t, c.Err(), io.EOF)

	_, err = c.Send(nop)
	assert.ErrorIs(t, err, ErrConnectionClosed)
	_, err = c.WaitForMessage(ctx)
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

// failingWriter lets writes through until fail is set.
type failingWriter struct {
	io.ReadWriteCloser
	fail atomic.Bool
}

func (w *failingWriter) Write(b []byte) (int, error) {
	if w.fail.Load() {
		return 0, errors.New("broken pipe")
	}
	return w.ReadWriteCloser.Write(b)
}

// badCloser fails to close.
type badCloser struct {
	io.ReadWriteCloser
}

func (b badCloser) Close() error {
	b.ReadWriteCloser.Close()
	return errors.New("close failed")
}

func TestCloseError(t *testing.T) {
	s := xtest.New(xtest.DefaultSetup().Bytes(), serve)
	defer s.Close()
	c, err := Connect(testContext(t), badCloser{s.Client()}, Credential{}, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	assert.EqualError(t, c.Close(), "close failed")
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Err())
}

func TestWriteFailure(t *testing.T) {
	s := xtest.New(xtest.DefaultSetup().Bytes(), serve)
	defer s.Close()
	w := &failingWriter{ReadWriteCloser: s.Client()}
	c, err := Connect(testContext(t), w, Credential{}, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	defer c.Close()

	pending, err := c.Send(echoRequest{})
	require.NoError(t, err)
	_, err = pending.Reply(testContext(t))
	require.NoError(t, err)

	w.fail.Store(true)
	_, err = c.Send(echoRequest{})
	var werr *TransportWriteError
	require.ErrorAs(t, err, &werr)
	assert.ErrorAs(t, c.Err(), &werr)

	_, err = c.Send(nop)
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestUnexpectedReply(t *testing.T) {
	c, _ := newTestConn(t, func(s *xtest.Server, r xtest.Request) {
		// A reply to a request that has none.
		s.Reply(r.Wire(), 0, nil)
	})

	_, err := c.Send(nop)
	require.NoError(t, err)
	<-c.readDone

	var derr *FrameDecodeError
	require.ErrorAs(t, c.Err(), &derr)
	assert.Equal(t, "reply", derr.Kind)
	assert.Equal(t, uint16(1), derr.Sequence)
}

func TestFrameTooLong(t *testing.T) {
	for _, tc := range []struct {
		kind  string
		frame func(seq uint16) []byte
	}{
		{"reply", func(seq uint16) []byte { return xtest.ReplyFrame(seq, 0, nil) }},
		{"event", func(seq uint16) []byte { return xtest.GenericEventFrame(131, seq, 1, nil) }},
	} {
		t.Run(tc.kind, func(t *testing.T) {
			c, _ := newTestConn(t, func(s *xtest.Server, r xtest.Request) {
				// Only the header is sent; the length word claims 16 GiB.
				f := tc.frame(r.Wire())
				Put32(f[4:], 0xffffffff)
				s.Write(f)
			})

			ck, err := c.Send(echoRequest{})
			require.NoError(t, err)
			_, err = ck.Reply(testContext(t))
			assert.ErrorIs(t, err, ErrConnectionClosed)

			<-c.readDone
			var derr *FrameDecodeError
			require.ErrorAs(t, c.Err(), &derr)
			assert.Equal(t, tc.kind, derr.Kind)
			assert.Equal(t, uint16(1), derr.Sequence)
		})
	}
}

func TestLongReply(t *testing.T) {
	const n = 200000
	c, _ := newTestConn(t, func(s *xtest.Server, r xtest.Request) {
		payload := make([]byte, n)
		for i := range payload {
			payload[i] = byte(i)
		}
		s.Reply(r.Wire(), 0, payload)
	})

	ck, err := c.Send(rawReplyRequest{})
	require.NoError(t, err)
	v, err := ck.Reply(testContext(t))
	require.NoError(t, err)
	buf := v.([]byte)
	require.Len(t, buf, 8+n)
	assert.Equal(t, byte((n-1)&0xff), buf[len(buf)-1])
}

func TestReplyDecodeFailure(t *testing.T) {
	c, _ := newTestConn(t, serve)

	ck, err := c.Send(brokenRequest{})
	require.NoError(t, err)
	_, err = ck.Reply(testContext(t))
	assert.ErrorIs(t, err, ErrConnectionClosed)
	var derr *FrameDecodeError
	assert.ErrorAs(t, err, &derr)

	<-c.readDone
	assert.ErrorAs(t, c.Err(), &derr)
}

func TestEventDecodeFailure(t *testing.T) {
	c, _ := newTestConn(t, func(s *xtest.Server, r xtest.Request) {
		s.Event(99, r.Wire(), nil)
	}, WithCodec(testCodec{}))

	_, err := c.Send(nop)
	require.NoError(t, err)
	_, err = c.WaitForMessage(testContext(t))
	assert.ErrorIs(t, err, ErrConnectionClosed)

	var derr *FrameDecodeError
	require.ErrorAs(t, c.Err(), &derr)
	assert.Equal(t, "event", derr.Kind)
}

func TestReplyError(t *testing.T) {
	c, _ := newTestConn(t, func(s *xtest.Server, r xtest.Request) {
		if r.Opcode == opEcho {
			s.Error(r.Wire(), badWindow, 7, opEcho)
			return
		}
		serve(s, r)
	})
	ctx := testContext(t)

	ck, err := c.Send(echoRequest{})
	require.NoError(t, err)
	_, err = ck.Reply(ctx)
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, byte(badWindow), perr.Code)
	assert.Equal(t, uint64(1), perr.FullSequence)
	assert.False(t, errors.Is(err, ErrConnectionClosed))

	// The error was claimed, so nothing is queued, and the connection is fine.
	require.NoError(t, c.Sync(ctx))
	_, ok, _ := c.PollForMessage()
	assert.False(t, ok)
}

func TestCancel(t *testing.T) {
	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	release := make(chan struct{})
	c, _ := newTestConn(t, func(s *xtest.Server, r xtest.Request) {
		if r.Sequence == 1 {
			<-release
		}
		serve(s, r)
	}, WithMetrics(m))
	ctx := testContext(t)

	ck, err := c.Send(echoRequest{})
	require.NoError(t, err)
	ck.Cancel()
	_, err = ck.Reply(ctx)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, 1, c.cookies.len())

	close(release)
	require.NoError(t, c.Sync(ctx))
	assert.Equal(t, 0, c.cookies.len())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.discarded))
	_, ok, _ := c.PollForMessage()
	assert.False(t, ok)

	// Cancelling again, or after resolution, changes nothing.
	ck.Cancel()
	_, err = ck.Reply(ctx)
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestReplyContext(t *testing.T) {
	release := make(chan struct{})
	c, _ := newTestConn(t, func(s *xtest.Server, r xtest.Request) {
		<-release
		serve(s, r)
	})

	ck, err := c.Send(echoRequest{})
	require.NoError(t, err)

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = ck.Reply(short)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The cookie is still good.
	close(release)
	v, err := ck.Reply(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), v)
}

func TestCheckedVoid(t *testing.T) {
	c, _ := newTestConn(t, serve, WithCodec(testCodec{}))
	ctx := testContext(t)

	ok, err := c.SendChecked(nop)
	require.NoError(t, err)
	assert.NoError(t, ok.Check(ctx))
	assert.Equal(t, 0, c.cookies.len())

	bad, err := c.SendChecked(fail)
	require.NoError(t, err)
	err = bad.Check(ctx)
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "BadWindow", perr.Name)
	assert.Equal(t, bad.Sequence, perr.FullSequence)

	// Checked errors never reach the message queue.
	_, queued, _ := c.PollForMessage()
	assert.False(t, queued)
}

func TestCheckedVoidFinishedByLaterReply(t *testing.T) {
	c, _ := newTestConn(t, serve)
	ctx := testContext(t)

	void, err := c.SendChecked(nop)
	require.NoError(t, err)
	ck, err := c.Send(echoRequest{})
	require.NoError(t, err)
	_, err = ck.Reply(ctx)
	require.NoError(t, err)

	select {
	case <-void.Done():
	default:
		t.Fatal("checked request not resolved by the later reply")
	}
	assert.NoError(t, void.Check(ctx))
	assert.Equal(t, 0, c.cookies.len())
}

func TestUncheckedVoidError(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	c, _ := newTestConn(t, serve, WithLogger(zap.New(core)))
	ctx := testContext(t)

	ck, err := c.Send(fail)
	require.NoError(t, err)
	_, err = ck.Reply(ctx)
	assert.ErrorIs(t, err, ErrNoReply)
	assert.Error(t, ck.Check(ctx))

	m, err := c.WaitForMessage(ctx)
	require.NoError(t, err)
	require.NotNil(t, m.Err)
	assert.Equal(t, ck.Sequence, m.Err.FullSequence)

	entries := logs.FilterMessage("unclaimed error").All()
	require.Len(t, entries, 1)
	assert.Equal(t, m.Err.Error(), entries[0].ContextMap()["error"])
}

func TestCookieMisuse(t *testing.T) {
	c, _ := newTestConn(t, serve)
	ctx := testContext(t)

	void, err := c.SendChecked(nop)
	require.NoError(t, err)
	_, err = void.Reply(ctx)
	assert.Error(t, err)

	ck, err := c.Send(echoRequest{})
	require.NoError(t, err)
	assert.Error(t, ck.Check(ctx))
	_, err = ck.Reply(ctx)
	assert.NoError(t, err)
}

func TestCloseResolvesPending(t *testing.T) {
	c, _ := newTestConn(t, nil)
	ctx := testContext(t)

	ck, err := c.Send(echoRequest{})
	require.NoError(t, err)
	void, err := c.SendChecked(nop)
	require.NoError(t, err)

	c.Close()
	_, err = ck.Reply(ctx)
	assert.ErrorIs(t, err, ErrConnectionClosed)
	assert.ErrorIs(t, void.Check(ctx), ErrConnectionClosed)
	assert.NoError(t, c.Err())
}

func TestExtensions(t *testing.T) {
	c, _ := newTestConn(t, nil)

	_, ok := c.Extension("RANDR")
	assert.False(t, ok)

	c.SetExtension("RANDR", ExtensionInfo{MajorOpcode: 140, FirstEvent: 89, FirstError: 147})
	info, ok := c.Extension("randr")
	require.True(t, ok)
	assert.Equal(t, byte(140), info.MajorOpcode)
}

func TestConnNewId(t *testing.T) {
	c, _ := newTestConn(t, nil)

	id, err := c.NewId()
	require.NoError(t, err)
	assert.Equal(t, Id(0x00400001), id)
	id, err = c.NewId()
	require.NoError(t, err)
	assert.Equal(t, Id(0x00400002), id)
}
