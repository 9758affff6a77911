package xconn

import "fmt"

// Event is any decoded event. Use a type switch to get at the concrete
// event types the codec produces.
type Event interface {
	// SequenceId is the low 16 bits of the last request the server had
	// handled when it generated the event.
	SequenceId() uint16
	String() string
}

// Codec decodes what the core can not decode on its own. Requests encode
// themselves (see Request) and replies are decoded by the request that
// asked for them, so only events and error names are left.
type Codec interface {
	// EventLength returns the full length of the event whose first 32
	// bytes are header.
	EventLength(header []byte) int

	// DecodeEvent decodes a complete event frame.
	DecodeEvent(buf []byte) (Event, error)

	// ErrorName names an error code, or returns "" if it is unknown.
	ErrorName(code byte) string
}

const genericEventCode = 35

// DefaultEventLength is the event framing rule of the core protocol: all
// events are 32 bytes, except GenericEvent, which carries its extra length
// like a reply does.
func DefaultEventLength(header []byte) int {
	if header[0]&0x7f == genericEventCode {
		return 32 + 4*int(Get32(header[4:]))
	}
	return 32
}

// RawEvent is what the built-in codec produces: the undecoded frame.
type RawEvent []byte

// Code is the event code without the SendEvent bit.
func (ev RawEvent) Code() byte { return ev[0] & 0x7f }

// SentByClient reports whether the event was generated with SendEvent.
func (ev RawEvent) SentByClient() bool { return ev[0]&0x80 != 0 }

func (ev RawEvent) SequenceId() uint16 { return Get16(ev[2:]) }

func (ev RawEvent) String() string {
	return fmt.Sprintf("RawEvent {Code: %d, Sequence: %d, Length: %d}",
		ev.Code(), ev.SequenceId(), len(ev))
}

// rawCodec hands events out undecoded. It is used when no codec is given.
type rawCodec struct{}

func (rawCodec) EventLength(header []byte) int { return DefaultEventLength(header) }

func (rawCodec) DecodeEvent(buf []byte) (Event, error) { return RawEvent(buf), nil }

func (rawCodec) ErrorName(code byte) string { return "" }
