// Copyright 2009 The XGB Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xconn

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

const (
	stateConnecting int32 = iota
	stateConnected
	stateClosed
)

// Id is used for all X identifiers, such as windows, pixmaps, and GCs.
type Id uint32

// ExtensionInfo is what QueryExtension reports about an extension.
type ExtensionInfo struct {
	MajorOpcode byte
	FirstEvent  byte
	FirstError  byte
}

// A Conn represents a connection to an X server.
//
// Any number of goroutines may send requests and wait for replies and
// messages concurrently. A single goroutine owned by the Conn reads
// everything the server sends.
type Conn struct {
	conn          io.ReadWriteCloser
	setup         *SetupInfo
	defaultScreen int
	codec         Codec
	log           *zap.Logger
	metrics       *Metrics

	seq     sequenceTracker
	cookies *registry
	events  *queue

	extensions map[string]ExtensionInfo
	extLock    sync.RWMutex

	idOnce sync.Once
	ids    *IdAllocator

	writeLock sync.Mutex
	state     atomic.Int32
	closeOnce sync.Once
	errLock   sync.Mutex
	err       error
	readDone  chan struct{}
}

// Option configures a connection.
type Option func(*options)

type options struct {
	logger        *zap.Logger
	metrics       *Metrics
	codec         Codec
	defaultScreen int
	authorityFile string
}

// WithLogger sets the logger. Without it a stderr logger is used if
// PrintLog is set.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics makes the connection report to m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithCodec sets the codec used for events and error names. Without it
// events are delivered as RawEvent.
func WithCodec(c Codec) Option {
	return func(o *options) { o.codec = c }
}

// WithDefaultScreen picks the screen returned by DefaultScreen.
func WithDefaultScreen(n int) Option {
	return func(o *options) { o.defaultScreen = n }
}

// WithAuthorityFile makes NewConnDisplay read credentials from path
// instead of $XAUTHORITY or ~/.Xauthority.
func WithAuthorityFile(path string) Option {
	return func(o *options) { o.authorityFile = path }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = newLogger()
	}
	if o.codec == nil {
		o.codec = rawCodec{}
	}
	return o
}

// Connect sets up a connection over transport, which must already be
// connected to the server. On failure the transport is left open; the
// caller owns it until Connect succeeds and the Conn owns it afterwards.
func Connect(ctx context.Context, transport io.ReadWriteCloser, cred Credential,
	opts ...Option) (*Conn, error) {

	o := buildOptions(opts)
	c := &Conn{
		conn:       transport,
		codec:      o.codec,
		log:        o.logger,
		metrics:    o.metrics,
		cookies:    newRegistry(),
		events:     newQueue(),
		extensions: make(map[string]ExtensionInfo),
		readDone:   make(chan struct{}),
	}
	c.state.Store(stateConnecting)

	setup, err := handshake(ctx, transport, cred)
	if err != nil {
		c.log.Debug("setup failed", zap.Error(err))
		return nil, err
	}
	if o.defaultScreen < 0 || (o.defaultScreen > 0 && o.defaultScreen >= len(setup.Roots)) {
		return nil, &HandshakeIoError{errors.New("default screen does not exist")}
	}
	c.setup = setup
	c.defaultScreen = o.defaultScreen
	c.log.Debug("connected",
		zap.String("vendor", setup.Vendor),
		zap.Uint32("release", setup.ReleaseNumber),
		zap.Int("screens", len(setup.Roots)),
		zap.Uint16("max_request_length", setup.MaximumRequestLength))

	c.state.Store(stateConnected)
	go c.readResponses()
	return c, nil
}

// Setup returns the information the server sent when the connection was
// made.
func (c *Conn) Setup() *SetupInfo { return c.setup }

// DefaultScreen returns the Screen info for the default screen, which is
// 0 or the one given in the display name. It is nil if the server has no
// screens.
func (c *Conn) DefaultScreen() *ScreenInfo {
	if c.defaultScreen >= len(c.setup.Roots) {
		return nil
	}
	return &c.setup.Roots[c.defaultScreen]
}

// Close closes the connection to the X server. Everything still waiting
// for a reply fails with ErrConnectionClosed. Close may be called any
// number of times; only the call that closes the transport reports the
// transport's Close error.
func (c *Conn) Close() error {
	err := c.shutdown(nil)
	<-c.readDone
	return err
}

// Err returns why the connection closed, or nil while it is open or if it
// was closed by Close.
func (c *Conn) Err() error {
	c.errLock.Lock()
	defer c.errLock.Unlock()
	return c.err
}

func (c *Conn) closedError() error {
	return &ConnectionClosedError{Cause: c.Err()}
}

// shutdown moves the connection to the closed state exactly once. Every
// registered cookie is resolved and the message queue is closed. It
// returns the transport's Close error to the call that did the work.
func (c *Conn) shutdown(cause error) (err error) {
	c.closeOnce.Do(func() {
		c.errLock.Lock()
		c.err = cause
		c.errLock.Unlock()
		c.state.Store(stateClosed)

		if cause != nil {
			c.log.Error("connection failed", zap.Error(cause))
			c.metrics.fault(faultKind(cause))
		}
		err = c.conn.Close()

		closed := &ConnectionClosedError{Cause: cause}
		pending := c.cookies.close()
		for _, ck := range pending {
			ck.resolve(nil, closed)
		}
		c.metrics.pendingAdd(-len(pending))
		c.events.close(closed)
	})
	return err
}

func faultKind(err error) string {
	var (
		rerr *TransportReadError
		werr *TransportWriteError
		derr *FrameDecodeError
	)
	switch {
	case errors.As(err, &rerr):
		return "read"
	case errors.As(err, &werr):
		return "write"
	case errors.As(err, &derr):
		return "decode"
	case errors.Is(err, ErrSequenceExhausted):
		return "sequence_exhausted"
	}
	return "other"
}

// Send writes req to the server. Requests with replies get a registered
// cookie; errors for requests without replies go to the message queue.
func (c *Conn) Send(req Request) (*Cookie, error) {
	return c.send(req, false)
}

// SendChecked is like Send, but a request without a reply also gets a
// registered cookie, whose Check reports the request's error.
func (c *Conn) SendChecked(req Request) (*Cookie, error) {
	return c.send(req, true)
}

func (c *Conn) send(req Request, checked bool) (*Cookie, error) {
	if c.state.Load() != stateConnected {
		return nil, c.closedError()
	}
	buf, err := req.Bytes()
	if err != nil {
		return nil, err
	}
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil, ErrMalformedRequest
	}
	if len(buf) > int(c.setup.MaximumRequestLength)*4 {
		return nil, ErrRequestTooLarge
	}

	c.writeLock.Lock()
	defer c.writeLock.Unlock()

	if c.state.Load() != stateConnected {
		return nil, c.closedError()
	}
	seq, err := c.seq.next()
	if err != nil {
		c.shutdown(err)
		return nil, c.closedError()
	}

	ck := newCookie(c, seq, req, checked)
	kind := "void"
	if ck.registered {
		if err := c.cookies.insert(ck); err != nil {
			if !errors.Is(err, ErrConnectionClosed) {
				c.shutdown(err)
			}
			return nil, c.closedError()
		}
		c.metrics.pendingAdd(1)
		kind = "checked"
		if ck.decode != nil {
			kind = "reply"
		}
	}

	if _, err := c.conn.Write(buf); err != nil {
		werr := &TransportWriteError{err}
		c.shutdown(werr)
		ck.resolve(nil, &ConnectionClosedError{Cause: c.Err()})
		return nil, werr
	}
	c.metrics.requestSent(kind)
	return ck, nil
}

// Sync makes a round trip to the server. When it returns, every request
// sent before it has been handled.
func (c *Conn) Sync(ctx context.Context) error {
	ck, err := c.Send(syncRequest{})
	if err != nil {
		return err
	}
	_, err = ck.Reply(ctx)
	return err
}

// readResponses is the only reader of the transport. It runs until the
// connection fails or is closed.
func (c *Conn) readResponses() {
	defer close(c.readDone)

	for {
		buf := make([]byte, 32)
		if _, err := io.ReadFull(c.conn, buf); err != nil {
			c.shutdown(&TransportReadError{err})
			return
		}

		var err error
		switch buf[0] {
		case 0:
			err = c.handleError(buf)
		case 1:
			err = c.handleReply(buf)
		default:
			err = c.handleEvent(buf)
		}
		if err != nil {
			c.shutdown(err)
			return
		}
	}
}

// maxFrameLength bounds the length a reply or event header may claim.
// Anything longer means the stream is garbled.
const maxFrameLength = 256 << 20

// readRest grows a frame whose first 32 bytes are in buf to size bytes.
// The buffer grows as bytes arrive, so a length word is never trusted
// with a single allocation.
func (c *Conn) readRest(kind string, buf []byte, size int) ([]byte, error) {
	if size <= len(buf) {
		return buf, nil
	}
	if size > maxFrameLength {
		return nil, &FrameDecodeError{
			Kind:     kind,
			Sequence: Get16(buf[2:]),
			Err:      fmt.Errorf("frame length %d exceeds %d", size, maxFrameLength),
		}
	}
	b := bytes.NewBuffer(make([]byte, 0, min(size, 64<<10)))
	b.Write(buf)
	if _, err := io.CopyN(b, c.conn, int64(size-len(buf))); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, &TransportReadError{err}
	}
	return b.Bytes(), nil
}

func (c *Conn) handleReply(buf []byte) error {
	seq := Get16(buf[2:])
	buf, err := c.readRest("reply", buf, 32+4*int(Get32(buf[4:])))
	if err != nil {
		return err
	}

	ck, done := c.cookies.claim(seq, true)
	c.finishVoids(done)
	if ck == nil {
		return &FrameDecodeError{
			Kind:     "reply",
			Sequence: seq,
			Err:      errors.New("no request is waiting for this reply"),
		}
	}
	c.metrics.pendingAdd(-1)

	if ck.resolved() {
		c.discard("reply", ck)
		return nil
	}
	reply, err := ck.decode(buf)
	if err != nil {
		derr := &FrameDecodeError{Kind: "reply", Sequence: seq, Err: err}
		ck.resolve(nil, &ConnectionClosedError{Cause: derr})
		return derr
	}
	if !ck.resolve(reply, nil) {
		c.discard("reply", ck)
		return nil
	}
	c.metrics.replyReceived()
	return nil
}

func (c *Conn) handleError(buf []byte) error {
	perr := newProtocolError(buf)
	perr.Name = c.codec.ErrorName(perr.Code)

	ck, done := c.cookies.claim(perr.Sequence, false)
	c.finishVoids(done)
	if ck != nil {
		c.metrics.pendingAdd(-1)
		perr.FullSequence = ck.Sequence
		if !ck.resolve(nil, perr) {
			c.discard("error", ck)
			return nil
		}
		c.metrics.errorReceived(true)
		return nil
	}

	perr.FullSequence = widen(c.seq.last(), perr.Sequence)
	c.metrics.errorReceived(false)
	c.log.Debug("unclaimed error", zap.Stringer("error", perr))
	c.publish(Message{Err: perr})
	return nil
}

func (c *Conn) handleEvent(buf []byte) error {
	size := c.codec.EventLength(buf)
	if size < 32 {
		return &FrameDecodeError{
			Kind:     "event",
			Sequence: Get16(buf[2:]),
			Err:      errors.New("event shorter than 32 bytes"),
		}
	}
	buf, err := c.readRest("event", buf, size)
	if err != nil {
		return err
	}
	ev, err := c.codec.DecodeEvent(buf)
	if err != nil {
		return &FrameDecodeError{Kind: "event", Sequence: Get16(buf[2:]), Err: err}
	}
	c.metrics.eventReceived()
	c.publish(Message{Event: ev})
	return nil
}

// finishVoids resolves checked requests the server is done with.
func (c *Conn) finishVoids(done []*Cookie) {
	for _, ck := range done {
		ck.resolve(nil, nil)
	}
	c.metrics.pendingAdd(-len(done))
}

func (c *Conn) discard(kind string, ck *Cookie) {
	c.metrics.frameDiscarded()
	c.log.Debug("discarding frame for cancelled request",
		zap.String("kind", kind), zap.Uint64("sequence", ck.Sequence))
}

func (c *Conn) publish(m Message) {
	if c.events.push(m) {
		c.metrics.queuedAdd(1)
	}
}

// WaitForMessage returns the next event or unclaimed error, blocking until
// one arrives. Once the connection is closed and the queue is drained it
// returns an error matching ErrConnectionClosed.
func (c *Conn) WaitForMessage(ctx context.Context) (Message, error) {
	m, err := c.events.wait(ctx)
	if err == nil {
		c.metrics.queuedAdd(-1)
	}
	return m, err
}

// PollForMessage returns the next message if one is queued. It never
// blocks. ok is false if nothing is queued; err is set once the
// connection is closed and the queue is drained.
func (c *Conn) PollForMessage() (m Message, ok bool, err error) {
	m, ok, err = c.events.poll()
	if ok {
		c.metrics.queuedAdd(-1)
	}
	return m, ok, err
}

// WaitForEvent returns the next event or unclaimed error from the server.
// It will block until one is available. Both are nil once the connection
// is closed.
func (c *Conn) WaitForEvent() (Event, error) {
	m, err := c.WaitForMessage(context.Background())
	if err != nil {
		return nil, nil
	}
	return m.event()
}

// PollForEvent returns the next event or unclaimed error if one is in the
// queue. It will not block; both are nil if there is nothing to return.
func (c *Conn) PollForEvent() (Event, error) {
	m, ok, _ := c.PollForMessage()
	if !ok {
		return nil, nil
	}
	return m.event()
}

func (m Message) event() (Event, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Event, nil
}

// SetExtension records the opcodes of an extension. Codecs look them up
// with Extension when encoding requests and naming events and errors.
func (c *Conn) SetExtension(name string, info ExtensionInfo) {
	c.extLock.Lock()
	c.extensions[strings.ToUpper(name)] = info
	c.extLock.Unlock()
}

// Extension returns the opcodes recorded for name.
func (c *Conn) Extension(name string) (ExtensionInfo, bool) {
	c.extLock.RLock()
	defer c.extLock.RUnlock()
	info, ok := c.extensions[strings.ToUpper(name)]
	return info, ok
}

// NewId generates a new unused ID for use with requests like CreateWindow.
// If no new ids can be generated, the id returned is 0 and error is non-nil.
func (c *Conn) NewId() (Id, error) {
	c.idOnce.Do(func() {
		c.ids = NewIdAllocator(c.setup.ResourceIdBase, c.setup.ResourceIdMask)
	})
	return c.ids.NewId()
}
