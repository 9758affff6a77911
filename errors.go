package xconn

import (
	"errors"
	"fmt"
)

// Per-request faults. The connection stays usable after any of these.
var (
	// ErrRequestTooLarge is returned by Send when the encoded frame is longer
	// than the maximum request length the server announced during setup.
	ErrRequestTooLarge = errors.New("xconn: request exceeds maximum request length")

	// ErrMalformedRequest is returned by Send for empty frames and frames
	// whose length is not a multiple of 4.
	ErrMalformedRequest = errors.New("xconn: request frame is not 4-byte aligned")

	// ErrCancelled resolves a cookie that was cancelled by its owner.
	ErrCancelled = errors.New("xconn: request cancelled")

	// ErrNoReply is returned by Cookie.Reply when the cookie was never
	// registered to receive anything.
	ErrNoReply = errors.New("xconn: cookie does not expect a reply or an error")
)

// Connection-fatal faults.
var (
	// ErrConnectionClosed is matched (with errors.Is) by every failure that
	// is caused by the connection going away.
	ErrConnectionClosed = errors.New("xconn: connection closed")

	// ErrSequenceExhausted is raised when more than 65536 requests are
	// awaiting resolution at once. Replies beyond that point could not be
	// told apart by their 16 bit sequence numbers.
	ErrSequenceExhausted = errors.New("xconn: more than 65536 unresolved requests")

	// ErrSequenceOverflow is raised if the 64 bit sequence counter wraps.
	ErrSequenceOverflow = errors.New("xconn: sequence counter overflow")
)

// HandshakeRejectedError is returned by Connect when the server answers the
// setup request with Failed or Authenticate. It is fatal; the caller owns
// the transport and must close it.
type HandshakeRejectedError struct {
	Reason string
	Major  uint16
	Minor  uint16

	// Authenticate is set when the server asked for further authentication
	// instead of refusing outright.
	Authenticate bool
}

func (e *HandshakeRejectedError) Error() string {
	if e.Authenticate {
		return fmt.Sprintf("xconn: server requires further authentication: %s", e.Reason)
	}
	return fmt.Sprintf("xconn: connection refused by server (protocol %d.%d): %s",
		e.Major, e.Minor, e.Reason)
}

// HandshakeIoError wraps transport failures and malformed setup responses.
type HandshakeIoError struct {
	Err error
}

func (e *HandshakeIoError) Error() string {
	return "xconn: setup failed: " + e.Err.Error()
}

func (e *HandshakeIoError) Unwrap() error { return e.Err }

// TransportWriteError is returned by Send when the frame could not be
// written. The connection is closed as a consequence.
type TransportWriteError struct {
	Err error
}

func (e *TransportWriteError) Error() string {
	return "xconn: write error: " + e.Err.Error()
}

func (e *TransportWriteError) Unwrap() error { return e.Err }

// TransportReadError is the cause recorded when the read loop fails.
type TransportReadError struct {
	Err error
}

func (e *TransportReadError) Error() string {
	return "xconn: read error: " + e.Err.Error()
}

func (e *TransportReadError) Unwrap() error { return e.Err }

// FrameDecodeError is the cause recorded when an inbound frame can not be
// decoded or does not match any request that is in flight.
type FrameDecodeError struct {
	Kind     string
	Sequence uint16
	Err      error
}

func (e *FrameDecodeError) Error() string {
	return fmt.Sprintf("xconn: bad %s frame (sequence %d): %s", e.Kind, e.Sequence, e.Err)
}

func (e *FrameDecodeError) Unwrap() error { return e.Err }

// ConnectionClosedError is what pending cookies, Send and the message queue
// report once the connection is gone. Cause is nil after a regular Close.
type ConnectionClosedError struct {
	Cause error
}

func (e *ConnectionClosedError) Error() string {
	if e.Cause == nil {
		return ErrConnectionClosed.Error()
	}
	return ErrConnectionClosed.Error() + ": " + e.Cause.Error()
}

func (e *ConnectionClosedError) Is(target error) bool {
	return target == ErrConnectionClosed
}

func (e *ConnectionClosedError) Unwrap() error { return e.Cause }

// ProtocolError is an error reported by the server. All X errors share one
// 32 byte layout, so the core decodes them without help from the codec.
type ProtocolError struct {
	Code     byte
	Sequence uint16

	// FullSequence is the unwrapped sequence number of the failed request.
	// It is exact when the error resolved a cookie and the most recent
	// matching request otherwise.
	FullSequence uint64

	BadValue    uint32
	MinorOpcode uint16
	MajorOpcode byte

	// Name is filled in by the codec, if it knows the code.
	Name string
}

func newProtocolError(buf []byte) *ProtocolError {
	return &ProtocolError{
		Code:        buf[1],
		Sequence:    Get16(buf[2:]),
		BadValue:    Get32(buf[4:]),
		MinorOpcode: Get16(buf[8:]),
		MajorOpcode: buf[10],
	}
}

func (e *ProtocolError) Error() string { return e.String() }

func (e *ProtocolError) String() string {
	name := e.Name
	if name == "" {
		name = fmt.Sprintf("Error%d", e.Code)
	}
	return fmt.Sprintf("%s {Sequence: %d, BadValue: %d, MinorOpcode: %d, MajorOpcode: %d}",
		name, e.FullSequence, e.BadValue, e.MinorOpcode, e.MajorOpcode)
}

// SequenceId mirrors the accessor generated X error types carry.
func (e *ProtocolError) SequenceId() uint16 { return e.Sequence }
