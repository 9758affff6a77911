// Package xtest runs a scripted X server on one end of an in-memory pipe.
// It knows just enough of the wire format to answer the connection setup,
// split the request stream into frames and write replies, errors and
// events back.
package xtest

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
)

var le = binary.LittleEndian

// ErrClosed is returned by the write methods once the server is closed.
var ErrClosed = errors.New("xtest: server closed")

// Request is one request frame as the server read it.
type Request struct {
	// Sequence counts requests from 1, like the client does.
	Sequence uint64
	Opcode   byte
	Data     byte
	Frame    []byte
}

// Wire is the low 16 bits of the sequence number, as sent back in frames.
func (r Request) Wire() uint16 { return uint16(r.Sequence) }

// A Handler is run on the server goroutine for every request, in order.
// It may write frames with the server's methods.
type Handler func(s *Server, r Request)

// Server is the server end of a net.Pipe. The client end is given to the
// code under test. It must be constructed with New and stopped with Close.
type Server struct {
	conn    net.Conn
	client  net.Conn
	setup   []byte
	handler Handler

	wmu sync.Mutex

	authName string
	authData []byte
	authDone chan struct{}

	done chan struct{}
	err  error
}

// New starts a server that answers the setup request with setup (see
// Setup.Bytes, Refuse and Authenticate) and hands every request to
// handler, which may be nil.
func New(setup []byte, handler Handler) *Server {
	server, client := net.Pipe()
	s := Serve(server, setup, handler)
	s.client = client
	return s
}

// Serve is like New, but serves a connection accepted from a listener.
// Client returns nil for such a server.
func Serve(conn net.Conn, setup []byte, handler Handler) *Server {
	s := &Server{
		conn:     conn,
		setup:    setup,
		handler:  handler,
		authDone: make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.serve()
	return s
}

// Client returns the client end of the pipe.
func (s *Server) Client() net.Conn { return s.client }

// Auth returns the authorization protocol name and data the client sent.
// It blocks until the setup request was read.
func (s *Server) Auth() (string, []byte) {
	select {
	case <-s.authDone:
	case <-s.done:
	}
	return s.authName, s.authData
}

// Close shuts the server end. The client sees EOF on its next read.
func (s *Server) Close() error {
	err := s.conn.Close()
	<-s.done
	return err
}

// Done is closed once the server stopped reading.
func (s *Server) Done() <-chan struct{} { return s.done }

// Err is what stopped the server. Closing either end is reported as nil.
func (s *Server) Err() error {
	<-s.done
	return s.err
}

func (s *Server) serve() {
	defer close(s.done)

	if err := s.readSetup(); err != nil {
		s.err = err
		return
	}
	if err := s.Write(s.setup); err != nil {
		s.err = err
		return
	}
	if len(s.setup) == 0 || s.setup[0] != 1 {
		// A refused client gets nothing more.
		io.Copy(io.Discard, s.conn)
		return
	}

	var seq uint64
	for {
		head := make([]byte, 4)
		if _, err := io.ReadFull(s.conn, head); err != nil {
			s.err = quiet(err)
			return
		}
		size := 4 * int(le.Uint16(head[2:]))
		if size < 4 {
			s.err = errors.New("xtest: request with zero length")
			return
		}
		frame := make([]byte, size)
		copy(frame, head)
		if _, err := io.ReadFull(s.conn, frame[4:]); err != nil {
			s.err = quiet(err)
			return
		}
		seq++
		if s.handler != nil {
			s.handler(s, Request{
				Sequence: seq,
				Opcode:   frame[0],
				Data:     frame[1],
				Frame:    frame,
			})
		}
	}
}

func (s *Server) readSetup() error {
	defer close(s.authDone)

	head := make([]byte, 12)
	if _, err := io.ReadFull(s.conn, head); err != nil {
		return err
	}
	if head[0] != 'l' {
		return errors.New("xtest: client is not little endian")
	}
	nameLen, dataLen := int(le.Uint16(head[6:])), int(le.Uint16(head[8:]))
	rest := make([]byte, pad(nameLen)+pad(dataLen))
	if _, err := io.ReadFull(s.conn, rest); err != nil {
		return err
	}
	s.authName = string(rest[:nameLen])
	s.authData = rest[pad(nameLen) : pad(nameLen)+dataLen]
	return nil
}

func quiet(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Write sends raw bytes to the client.
func (s *Server) Write(b []byte) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if _, err := s.conn.Write(b); err != nil {
		if quiet(err) == nil {
			return ErrClosed
		}
		return err
	}
	return nil
}

// Reply writes a reply. payload starts at byte 8 of the frame; the frame
// is padded to 32 bytes or the next multiple of 4.
func (s *Server) Reply(seq uint16, data byte, payload []byte) error {
	return s.Write(ReplyFrame(seq, data, payload))
}

// Error writes an error frame.
func (s *Server) Error(seq uint16, code byte, badValue uint32, major byte) error {
	return s.Write(ErrorFrame(seq, code, badValue, major))
}

// Event writes a 32 byte event. payload starts at byte 4.
func (s *Server) Event(code byte, seq uint16, payload []byte) error {
	return s.Write(EventFrame(code, seq, payload))
}

// ReplyFrame builds a reply frame.
func ReplyFrame(seq uint16, data byte, payload []byte) []byte {
	size := 32
	if n := 8 + pad(len(payload)); n > size {
		size = n
	}
	buf := make([]byte, size)
	buf[0] = 1
	buf[1] = data
	le.PutUint16(buf[2:], seq)
	le.PutUint32(buf[4:], uint32((size-32)/4))
	copy(buf[8:], payload)
	return buf
}

// ErrorFrame builds an error frame.
func ErrorFrame(seq uint16, code byte, badValue uint32, major byte) []byte {
	buf := make([]byte, 32)
	buf[0] = 0
	buf[1] = code
	le.PutUint16(buf[2:], seq)
	le.PutUint32(buf[4:], badValue)
	buf[10] = major
	return buf
}

// EventFrame builds a core event frame.
func EventFrame(code byte, seq uint16, payload []byte) []byte {
	buf := make([]byte, 32)
	buf[0] = code
	le.PutUint16(buf[2:], seq)
	copy(buf[4:], payload)
	return buf
}

// GenericEventFrame builds a GenericEvent carrying extra bytes after the
// 32 byte header. extra is padded to a multiple of 4.
func GenericEventFrame(extension byte, seq uint16, eventType uint16, extra []byte) []byte {
	buf := make([]byte, 32+pad(len(extra)))
	buf[0] = 35
	buf[1] = extension
	le.PutUint16(buf[2:], seq)
	le.PutUint32(buf[4:], uint32(pad(len(extra))/4))
	le.PutUint16(buf[8:], eventType)
	copy(buf[32:], extra)
	return buf
}

func pad(n int) int {
	return (n + 3) &^ 3
}
