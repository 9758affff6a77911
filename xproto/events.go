package xproto

import (
	"fmt"

	"github.com/xgbproject/xconn"
)

// Core event codes.
const (
	KeyPress         = 2
	KeyRelease       = 3
	ButtonPress      = 4
	ButtonRelease    = 5
	Expose           = 12
	DestroyNotify    = 17
	UnmapNotify      = 18
	MapNotify        = 19
	ConfigureNotify  = 22
	PropertyNotify   = 28
	ClientMessage    = 33
	GenericEventCode = 35
)

// newEventFuncs is a map from event numbers to functions that create
// the corresponding event.
var newEventFuncs = map[byte]func(buf []byte) xconn.Event{
	KeyPress:         func(buf []byte) xconn.Event { return newKeyPressEvent(buf) },
	KeyRelease:       func(buf []byte) xconn.Event { return KeyReleaseEvent(newKeyPressEvent(buf)) },
	ButtonPress:      func(buf []byte) xconn.Event { return ButtonPressEvent(newKeyPressEvent(buf)) },
	ButtonRelease:    func(buf []byte) xconn.Event { return ButtonReleaseEvent(newKeyPressEvent(buf)) },
	Expose:           newExposeEvent,
	DestroyNotify:    newDestroyNotifyEvent,
	UnmapNotify:      newUnmapNotifyEvent,
	MapNotify:        newMapNotifyEvent,
	ConfigureNotify:  newConfigureNotifyEvent,
	PropertyNotify:   newPropertyNotifyEvent,
	ClientMessage:    newClientMessageEvent,
	GenericEventCode: newGenericEvent,
}

// KeyPressEvent is also the layout of key release and button events.
type KeyPressEvent struct {
	Sequence   uint16
	Detail     byte
	Time       Time
	Root       Window
	Event      Window
	Child      Window
	RootX      int16
	RootY      int16
	EventX     int16
	EventY     int16
	State      uint16
	SameScreen bool
}

func newKeyPressEvent(buf []byte) KeyPressEvent {
	return KeyPressEvent{
		Detail:     buf[1],
		Sequence:   xconn.Get16(buf[2:]),
		Time:       Time(xconn.Get32(buf[4:])),
		Root:       Window(xconn.Get32(buf[8:])),
		Event:      Window(xconn.Get32(buf[12:])),
		Child:      Window(xconn.Get32(buf[16:])),
		RootX:      int16(xconn.Get16(buf[20:])),
		RootY:      int16(xconn.Get16(buf[22:])),
		EventX:     int16(xconn.Get16(buf[24:])),
		EventY:     int16(xconn.Get16(buf[26:])),
		State:      xconn.Get16(buf[28:]),
		SameScreen: buf[30] != 0,
	}
}

func (v KeyPressEvent) SequenceId() uint16 { return v.Sequence }

func (v KeyPressEvent) String() string {
	return fmt.Sprintf("KeyPress {Sequence: %d, Detail: %d, Event: %d, EventX: %d, EventY: %d, State: %d}",
		v.Sequence, v.Detail, v.Event, v.EventX, v.EventY, v.State)
}

type KeyReleaseEvent KeyPressEvent

func (v KeyReleaseEvent) SequenceId() uint16 { return v.Sequence }

func (v KeyReleaseEvent) String() string {
	return "KeyRelease" + KeyPressEvent(v).String()[len("KeyPress"):]
}

type ButtonPressEvent KeyPressEvent

func (v ButtonPressEvent) SequenceId() uint16 { return v.Sequence }

func (v ButtonPressEvent) String() string {
	return "ButtonPress" + KeyPressEvent(v).String()[len("KeyPress"):]
}

type ButtonReleaseEvent KeyPressEvent

func (v ButtonReleaseEvent) SequenceId() uint16 { return v.Sequence }

func (v ButtonReleaseEvent) String() string {
	return "ButtonRelease" + KeyPressEvent(v).String()[len("KeyPress"):]
}

type ExposeEvent struct {
	Sequence uint16
	Window   Window
	X        uint16
	Y        uint16
	Width    uint16
	Height   uint16
	Count    uint16
}

func newExposeEvent(buf []byte) xconn.Event {
	return ExposeEvent{
		Sequence: xconn.Get16(buf[2:]),
		Window:   Window(xconn.Get32(buf[4:])),
		X:        xconn.Get16(buf[8:]),
		Y:        xconn.Get16(buf[10:]),
		Width:    xconn.Get16(buf[12:]),
		Height:   xconn.Get16(buf[14:]),
		Count:    xconn.Get16(buf[16:]),
	}
}

func (v ExposeEvent) SequenceId() uint16 { return v.Sequence }

func (v ExposeEvent) String() string {
	return fmt.Sprintf("Expose {Sequence: %d, Window: %d, X: %d, Y: %d, Width: %d, Height: %d, Count: %d}",
		v.Sequence, v.Window, v.X, v.Y, v.Width, v.Height, v.Count)
}

type DestroyNotifyEvent struct {
	Sequence uint16
	Event    Window
	Window   Window
}

func newDestroyNotifyEvent(buf []byte) xconn.Event {
	return DestroyNotifyEvent{
		Sequence: xconn.Get16(buf[2:]),
		Event:    Window(xconn.Get32(buf[4:])),
		Window:   Window(xconn.Get32(buf[8:])),
	}
}

func (v DestroyNotifyEvent) SequenceId() uint16 { return v.Sequence }

func (v DestroyNotifyEvent) String() string {
	return fmt.Sprintf("DestroyNotify {Sequence: %d, Event: %d, Window: %d}",
		v.Sequence, v.Event, v.Window)
}

type UnmapNotifyEvent struct {
	Sequence      uint16
	Event         Window
	Window        Window
	FromConfigure bool
}

func newUnmapNotifyEvent(buf []byte) xconn.Event {
	return UnmapNotifyEvent{
		Sequence:      xconn.Get16(buf[2:]),
		Event:         Window(xconn.Get32(buf[4:])),
		Window:        Window(xconn.Get32(buf[8:])),
		FromConfigure: buf[12] != 0,
	}
}

func (v UnmapNotifyEvent) SequenceId() uint16 { return v.Sequence }

func (v UnmapNotifyEvent) String() string {
	return fmt.Sprintf("UnmapNotify {Sequence: %d, Event: %d, Window: %d, FromConfigure: %t}",
		v.Sequence, v.Event, v.Window, v.FromConfigure)
}

type MapNotifyEvent struct {
	Sequence         uint16
	Event            Window
	Window           Window
	OverrideRedirect bool
}

func newMapNotifyEvent(buf []byte) xconn.Event {
	return MapNotifyEvent{
		Sequence:         xconn.Get16(buf[2:]),
		Event:            Window(xconn.Get32(buf[4:])),
		Window:           Window(xconn.Get32(buf[8:])),
		OverrideRedirect: buf[12] != 0,
	}
}

func (v MapNotifyEvent) SequenceId() uint16 { return v.Sequence }

func (v MapNotifyEvent) String() string {
	return fmt.Sprintf("MapNotify {Sequence: %d, Event: %d, Window: %d, OverrideRedirect: %t}",
		v.Sequence, v.Event, v.Window, v.OverrideRedirect)
}

type ConfigureNotifyEvent struct {
	Sequence         uint16
	Event            Window
	Window           Window
	AboveSibling     Window
	X                int16
	Y                int16
	Width            uint16
	Height           uint16
	BorderWidth      uint16
	OverrideRedirect bool
}

func newConfigureNotifyEvent(buf []byte) xconn.Event {
	return ConfigureNotifyEvent{
		Sequence:         xconn.Get16(buf[2:]),
		Event:            Window(xconn.Get32(buf[4:])),
		Window:           Window(xconn.Get32(buf[8:])),
		AboveSibling:     Window(xconn.Get32(buf[12:])),
		X:                int16(xconn.Get16(buf[16:])),
		Y:                int16(xconn.Get16(buf[18:])),
		Width:            xconn.Get16(buf[20:]),
		Height:           xconn.Get16(buf[22:]),
		BorderWidth:      xconn.Get16(buf[24:]),
		OverrideRedirect: buf[26] != 0,
	}
}

func (v ConfigureNotifyEvent) SequenceId() uint16 { return v.Sequence }

func (v ConfigureNotifyEvent) String() string {
	return fmt.Sprintf("ConfigureNotify {Sequence: %d, Window: %d, X: %d, Y: %d, Width: %d, Height: %d}",
		v.Sequence, v.Window, v.X, v.Y, v.Width, v.Height)
}

type PropertyNotifyEvent struct {
	Sequence uint16
	Window   Window
	Atom     Atom
	Time     Time
	State    byte
}

func newPropertyNotifyEvent(buf []byte) xconn.Event {
	return PropertyNotifyEvent{
		Sequence: xconn.Get16(buf[2:]),
		Window:   Window(xconn.Get32(buf[4:])),
		Atom:     Atom(xconn.Get32(buf[8:])),
		Time:     Time(xconn.Get32(buf[12:])),
		State:    buf[16],
	}
}

func (v PropertyNotifyEvent) SequenceId() uint16 { return v.Sequence }

func (v PropertyNotifyEvent) String() string {
	return fmt.Sprintf("PropertyNotify {Sequence: %d, Window: %d, Atom: %d, State: %d}",
		v.Sequence, v.Window, v.Atom, v.State)
}

type ClientMessageEvent struct {
	Sequence uint16
	Format   byte
	Window   Window
	Type     Atom
	Data     ClientMessageData
}

func newClientMessageEvent(buf []byte) xconn.Event {
	v := ClientMessageEvent{
		Format:   buf[1],
		Sequence: xconn.Get16(buf[2:]),
		Window:   Window(xconn.Get32(buf[4:])),
		Type:     Atom(xconn.Get32(buf[8:])),
	}
	getClientMessageData(buf[12:], &v.Data)
	return v
}

func (v ClientMessageEvent) SequenceId() uint16 { return v.Sequence }

func (v ClientMessageEvent) String() string {
	return fmt.Sprintf("ClientMessage {Sequence: %d, Format: %d, Window: %d, Type: %d}",
		v.Sequence, v.Format, v.Window, v.Type)
}

// GenericEvent is an extension event that carries its own length.
type GenericEvent struct {
	Sequence  uint16
	Extension byte
	EventType uint16
	Data      []byte
}

func newGenericEvent(buf []byte) xconn.Event {
	return GenericEvent{
		Extension: buf[1],
		Sequence:  xconn.Get16(buf[2:]),
		EventType: xconn.Get16(buf[8:]),
		Data:      buf[10:],
	}
}

func (v GenericEvent) SequenceId() uint16 { return v.Sequence }

func (v GenericEvent) String() string {
	return fmt.Sprintf("GenericEvent {Sequence: %d, Extension: %d, EventType: %d, Length: %d}",
		v.Sequence, v.Extension, v.EventType, len(v.Data))
}

// UnknownEvent is any event the codec has no decoder for.
type UnknownEvent []byte

func (v UnknownEvent) SequenceId() uint16 { return xconn.Get16(v[2:]) }

func (v UnknownEvent) String() string {
	return fmt.Sprintf("UnknownEvent {Code: %d, Sequence: %d}", v[0]&0x7f, v.SequenceId())
}
