// Package xproto encodes and decodes a subset of the core X protocol for
// use with xconn: the requests a window manager or a tool needs to get
// going, the common events, and the names of the core errors.
package xproto

import (
	"fmt"
	"sync"

	"github.com/xgbproject/xconn"
)

type (
	Window   = xconn.Id
	Drawable = xconn.Id
	Visual   = xconn.Id
	Atom     uint32
	Time     uint32
)

const (
	WindowNone      Window = 0
	AtomNone        Atom   = 0
	TimeCurrentTime Time   = 0
)

const (
	WindowClassCopyFromParent = 0
	WindowClassInputOutput    = 1
	WindowClassInputOnly      = 2
)

// Window attribute value-mask bits, in the order their values must appear.
const (
	CwBackPixmap       = 1 << 0
	CwBackPixel        = 1 << 1
	CwBorderPixmap     = 1 << 2
	CwBorderPixel      = 1 << 3
	CwBitGravity       = 1 << 4
	CwWinGravity       = 1 << 5
	CwBackingStore     = 1 << 6
	CwBackingPlanes    = 1 << 7
	CwBackingPixel     = 1 << 8
	CwOverrideRedirect = 1 << 9
	CwSaveUnder        = 1 << 10
	CwEventMask        = 1 << 11
	CwDontPropagate    = 1 << 12
	CwColormap         = 1 << 13
	CwCursor           = 1 << 14
)

const (
	EventMaskKeyPress           = 1 << 0
	EventMaskKeyRelease         = 1 << 1
	EventMaskButtonPress        = 1 << 2
	EventMaskButtonRelease      = 1 << 3
	EventMaskExposure           = 1 << 15
	EventMaskStructureNotify    = 1 << 17
	EventMaskSubstructureNotify = 1 << 19
	EventMaskPropertyChange     = 1 << 22
)

// Core error codes.
const (
	BadRequest = iota + 1
	BadValue
	BadWindow
	BadPixmap
	BadAtom
	BadCursor
	BadFont
	BadMatch
	BadDrawable
	BadAccess
	BadAlloc
	BadColormap
	BadGContext
	BadIDChoice
	BadName
	BadLength
	BadImplementation
)

var errorNames = map[byte]string{
	BadRequest:        "BadRequest",
	BadValue:          "BadValue",
	BadWindow:         "BadWindow",
	BadPixmap:         "BadPixmap",
	BadAtom:           "BadAtom",
	BadCursor:         "BadCursor",
	BadFont:           "BadFont",
	BadMatch:          "BadMatch",
	BadDrawable:       "BadDrawable",
	BadAccess:         "BadAccess",
	BadAlloc:          "BadAlloc",
	BadColormap:       "BadColormap",
	BadGContext:       "BadGContext",
	BadIDChoice:       "BadIDChoice",
	BadName:           "BadName",
	BadLength:         "BadLength",
	BadImplementation: "BadImplementation",
}

// Codec decodes core events and names core errors. Decoders for extension
// events and names for extension errors can be added once the extension's
// first event and error codes are known.
type Codec struct {
	mu     sync.RWMutex
	events map[byte]func(buf []byte) xconn.Event
	errors map[byte]string
}

var _ xconn.Codec = (*Codec)(nil)

// NewCodec returns a codec that knows the core protocol.
func NewCodec() *Codec {
	c := &Codec{
		events: make(map[byte]func(buf []byte) xconn.Event, len(newEventFuncs)),
		errors: make(map[byte]string, len(errorNames)),
	}
	for code, f := range newEventFuncs {
		c.events[code] = f
	}
	for code, name := range errorNames {
		c.errors[code] = name
	}
	return c
}

// RegisterEvent installs the decoder for event code.
func (c *Codec) RegisterEvent(code byte, f func(buf []byte) xconn.Event) {
	c.mu.Lock()
	c.events[code&0x7f] = f
	c.mu.Unlock()
}

// RegisterErrorName names error code.
func (c *Codec) RegisterErrorName(code byte, name string) {
	c.mu.Lock()
	c.errors[code] = name
	c.mu.Unlock()
}

func (c *Codec) EventLength(header []byte) int {
	return xconn.DefaultEventLength(header)
}

func (c *Codec) DecodeEvent(buf []byte) (xconn.Event, error) {
	if len(buf) < 32 {
		return nil, fmt.Errorf("xproto: event of %d bytes", len(buf))
	}
	c.mu.RLock()
	f, ok := c.events[buf[0]&0x7f]
	c.mu.RUnlock()
	if !ok {
		return UnknownEvent(buf), nil
	}
	return f(buf), nil
}

func (c *Codec) ErrorName(code byte) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.errors[code]
}
