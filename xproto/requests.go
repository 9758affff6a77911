package xproto

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/xgbproject/xconn"
)

// Core request opcodes.
const (
	opCreateWindow           = 1
	opChangeWindowAttributes = 2
	opDestroyWindow          = 4
	opMapWindow              = 8
	opUnmapWindow            = 10
	opGetGeometry            = 14
	opInternAtom             = 16
	opGetAtomName            = 17
	opChangeProperty         = 18
	opGetProperty            = 20
	opGetInputFocus          = 43
	opQueryExtension         = 98
	opNoOperation            = 127
)

var errShortReply = errors.New("xproto: reply too short")

func checkReply(buf []byte, n int) error {
	if len(buf) < n {
		return errShortReply
	}
	return nil
}

// checkNameLength rejects names whose length does not fit the 16 bit
// count that precedes them on the wire.
func checkNameLength(name string) error {
	if len(name) > math.MaxUint16 {
		return fmt.Errorf("xproto: name of %d bytes is longer than %d", len(name), math.MaxUint16)
	}
	return nil
}

// window requests (DestroyWindow, MapWindow, UnmapWindow) share a layout.
type windowRequest struct {
	opcode byte
	window Window
}

func (r windowRequest) Bytes() ([]byte, error) {
	buf := make([]byte, 8)
	header(buf, r.opcode, 0)
	xconn.Put32(buf[4:], uint32(r.window))
	return buf, nil
}

func sendVoid(c *xconn.Conn, req xconn.Request, checked bool) (*xconn.Cookie, error) {
	if checked {
		return c.SendChecked(req)
	}
	return c.Send(req)
}

// MapWindow sends a MapWindow request. Errors go to the message queue.
func MapWindow(c *xconn.Conn, window Window) (*xconn.Cookie, error) {
	return sendVoid(c, windowRequest{opMapWindow, window}, false)
}

// MapWindowChecked sends a MapWindow request whose error is reported by
// the cookie's Check.
func MapWindowChecked(c *xconn.Conn, window Window) (*xconn.Cookie, error) {
	return sendVoid(c, windowRequest{opMapWindow, window}, true)
}

func UnmapWindow(c *xconn.Conn, window Window) (*xconn.Cookie, error) {
	return sendVoid(c, windowRequest{opUnmapWindow, window}, false)
}

func UnmapWindowChecked(c *xconn.Conn, window Window) (*xconn.Cookie, error) {
	return sendVoid(c, windowRequest{opUnmapWindow, window}, true)
}

func DestroyWindow(c *xconn.Conn, window Window) (*xconn.Cookie, error) {
	return sendVoid(c, windowRequest{opDestroyWindow, window}, false)
}

func DestroyWindowChecked(c *xconn.Conn, window Window) (*xconn.Cookie, error) {
	return sendVoid(c, windowRequest{opDestroyWindow, window}, true)
}

// NoOperation pads the request stream. It is mostly useful for tests.
type NoOperationRequest struct{}

func (NoOperationRequest) Bytes() ([]byte, error) {
	buf := make([]byte, 4)
	header(buf, opNoOperation, 0)
	return buf, nil
}

func NoOperation(c *xconn.Conn) (*xconn.Cookie, error) {
	return c.Send(NoOperationRequest{})
}

// CreateWindowRequest creates an unmapped window. ValueList holds one
// value per bit set in ValueMask, in bit order.
type CreateWindowRequest struct {
	Depth       byte
	Wid         Window
	Parent      Window
	X, Y        int16
	Width       uint16
	Height      uint16
	BorderWidth uint16
	Class       uint16
	Visual      Visual
	ValueMask   uint32
	ValueList   []uint32
}

func (r *CreateWindowRequest) Bytes() ([]byte, error) {
	if n := xconn.PopCount(int(r.ValueMask)); n != len(r.ValueList) {
		return nil, fmt.Errorf("xproto: value mask has %d bits but %d values given", n, len(r.ValueList))
	}
	buf := make([]byte, 32+4*len(r.ValueList))
	header(buf, opCreateWindow, r.Depth)
	xconn.Put32(buf[4:], uint32(r.Wid))
	xconn.Put32(buf[8:], uint32(r.Parent))
	xconn.Put16(buf[12:], uint16(r.X))
	xconn.Put16(buf[14:], uint16(r.Y))
	xconn.Put16(buf[16:], r.Width)
	xconn.Put16(buf[18:], r.Height)
	xconn.Put16(buf[20:], r.BorderWidth)
	xconn.Put16(buf[22:], r.Class)
	xconn.Put32(buf[24:], uint32(r.Visual))
	xconn.Put32(buf[28:], r.ValueMask)
	copy(buf[32:], bytesUInt32List(r.ValueList))
	return buf, nil
}

func CreateWindow(c *xconn.Conn, r *CreateWindowRequest) (*xconn.Cookie, error) {
	return c.Send(r)
}

func CreateWindowChecked(c *xconn.Conn, r *CreateWindowRequest) (*xconn.Cookie, error) {
	return c.SendChecked(r)
}

type ChangeWindowAttributesRequest struct {
	Window    Window
	ValueMask uint32
	ValueList []uint32
}

func (r *ChangeWindowAttributesRequest) Bytes() ([]byte, error) {
	if n := xconn.PopCount(int(r.ValueMask)); n != len(r.ValueList) {
		return nil, fmt.Errorf("xproto: value mask has %d bits but %d values given", n, len(r.ValueList))
	}
	buf := make([]byte, 12+4*len(r.ValueList))
	header(buf, opChangeWindowAttributes, 0)
	xconn.Put32(buf[4:], uint32(r.Window))
	xconn.Put32(buf[8:], r.ValueMask)
	copy(buf[12:], bytesUInt32List(r.ValueList))
	return buf, nil
}

func ChangeWindowAttributes(c *xconn.Conn, window Window, mask uint32, values []uint32) (*xconn.Cookie, error) {
	return c.Send(&ChangeWindowAttributesRequest{window, mask, values})
}

const (
	PropModeReplace = 0
	PropModePrepend = 1
	PropModeAppend  = 2
)

// ChangePropertyRequest sets a property. Format is 8, 16 or 32 and Data
// must hold a whole number of format units.
type ChangePropertyRequest struct {
	Mode     byte
	Window   Window
	Property Atom
	Type     Atom
	Format   byte
	Data     []byte
}

func (r *ChangePropertyRequest) Bytes() ([]byte, error) {
	switch r.Format {
	case 8, 16, 32:
	default:
		return nil, fmt.Errorf("xproto: invalid property format %d", r.Format)
	}
	unit := int(r.Format) / 8
	if len(r.Data)%unit != 0 {
		return nil, fmt.Errorf("xproto: %d bytes is not a whole number of %d bit units", len(r.Data), r.Format)
	}
	buf := make([]byte, 24+xconn.Pad(len(r.Data)))
	header(buf, opChangeProperty, r.Mode)
	xconn.Put32(buf[4:], uint32(r.Window))
	xconn.Put32(buf[8:], uint32(r.Property))
	xconn.Put32(buf[12:], uint32(r.Type))
	buf[16] = r.Format
	xconn.Put32(buf[20:], uint32(len(r.Data)/unit))
	copy(buf[24:], r.Data)
	return buf, nil
}

func ChangeProperty(c *xconn.Conn, r *ChangePropertyRequest) (*xconn.Cookie, error) {
	return c.Send(r)
}

func ChangePropertyChecked(c *xconn.Conn, r *ChangePropertyRequest) (*xconn.Cookie, error) {
	return c.SendChecked(r)
}

// InternAtom

type InternAtomRequest struct {
	OnlyIfExists bool
	Name         string
}

type InternAtomReply struct {
	Sequence uint16
	Atom     Atom
}

type InternAtomCookie struct {
	*xconn.Cookie
}

func (r *InternAtomRequest) Bytes() ([]byte, error) {
	if err := checkNameLength(r.Name); err != nil {
		return nil, err
	}
	name := bytesString(r.Name)
	buf := make([]byte, 8+len(name))
	header(buf, opInternAtom, boolByte(r.OnlyIfExists))
	xconn.Put16(buf[4:], uint16(len(r.Name)))
	copy(buf[8:], name)
	return buf, nil
}

func (r *InternAtomRequest) DecodeReply(buf []byte) (interface{}, error) {
	if err := checkReply(buf, 32); err != nil {
		return nil, err
	}
	return &InternAtomReply{
		Sequence: xconn.Get16(buf[2:]),
		Atom:     Atom(xconn.Get32(buf[8:])),
	}, nil
}

func InternAtom(c *xconn.Conn, onlyIfExists bool, name string) (InternAtomCookie, error) {
	ck, err := c.Send(&InternAtomRequest{onlyIfExists, name})
	return InternAtomCookie{ck}, err
}

// Reply waits for the reply to InternAtom.
func (cook InternAtomCookie) Reply(ctx context.Context) (*InternAtomReply, error) {
	v, err := cook.Cookie.Reply(ctx)
	if err != nil {
		return nil, err
	}
	return v.(*InternAtomReply), nil
}

// GetAtomName

type GetAtomNameRequest struct {
	Atom Atom
}

type GetAtomNameReply struct {
	Sequence uint16
	Name     string
}

type GetAtomNameCookie struct {
	*xconn.Cookie
}

func (r *GetAtomNameRequest) Bytes() ([]byte, error) {
	buf := make([]byte, 8)
	header(buf, opGetAtomName, 0)
	xconn.Put32(buf[4:], uint32(r.Atom))
	return buf, nil
}

func (r *GetAtomNameRequest) DecodeReply(buf []byte) (interface{}, error) {
	if err := checkReply(buf, 32); err != nil {
		return nil, err
	}
	n := int(xconn.Get16(buf[8:]))
	if err := checkReply(buf, 32+n); err != nil {
		return nil, err
	}
	return &GetAtomNameReply{
		Sequence: xconn.Get16(buf[2:]),
		Name:     string(buf[32 : 32+n]),
	}, nil
}

func GetAtomName(c *xconn.Conn, atom Atom) (GetAtomNameCookie, error) {
	ck, err := c.Send(&GetAtomNameRequest{atom})
	return GetAtomNameCookie{ck}, err
}

func (cook GetAtomNameCookie) Reply(ctx context.Context) (*GetAtomNameReply, error) {
	v, err := cook.Cookie.Reply(ctx)
	if err != nil {
		return nil, err
	}
	return v.(*GetAtomNameReply), nil
}

// GetInputFocus

type GetInputFocusRequest struct{}

type GetInputFocusReply struct {
	Sequence uint16
	RevertTo byte
	Focus    Window
}

type GetInputFocusCookie struct {
	*xconn.Cookie
}

func (GetInputFocusRequest) Bytes() ([]byte, error) {
	buf := make([]byte, 4)
	header(buf, opGetInputFocus, 0)
	return buf, nil
}

func (GetInputFocusRequest) DecodeReply(buf []byte) (interface{}, error) {
	if err := checkReply(buf, 32); err != nil {
		return nil, err
	}
	return &GetInputFocusReply{
		RevertTo: buf[1],
		Sequence: xconn.Get16(buf[2:]),
		Focus:    Window(xconn.Get32(buf[8:])),
	}, nil
}

func GetInputFocus(c *xconn.Conn) (GetInputFocusCookie, error) {
	ck, err := c.Send(GetInputFocusRequest{})
	return GetInputFocusCookie{ck}, err
}

func (cook GetInputFocusCookie) Reply(ctx context.Context) (*GetInputFocusReply, error) {
	v, err := cook.Cookie.Reply(ctx)
	if err != nil {
		return nil, err
	}
	return v.(*GetInputFocusReply), nil
}

// GetGeometry

type GetGeometryRequest struct {
	Drawable Drawable
}

type GetGeometryReply struct {
	Sequence    uint16
	Depth       byte
	Root        Window
	X, Y        int16
	Width       uint16
	Height      uint16
	BorderWidth uint16
}

type GetGeometryCookie struct {
	*xconn.Cookie
}

func (r *GetGeometryRequest) Bytes() ([]byte, error) {
	buf := make([]byte, 8)
	header(buf, opGetGeometry, 0)
	xconn.Put32(buf[4:], uint32(r.Drawable))
	return buf, nil
}

func (r *GetGeometryRequest) DecodeReply(buf []byte) (interface{}, error) {
	if err := checkReply(buf, 32); err != nil {
		return nil, err
	}
	return &GetGeometryReply{
		Depth:       buf[1],
		Sequence:    xconn.Get16(buf[2:]),
		Root:        Window(xconn.Get32(buf[8:])),
		X:           int16(xconn.Get16(buf[12:])),
		Y:           int16(xconn.Get16(buf[14:])),
		Width:       xconn.Get16(buf[16:]),
		Height:      xconn.Get16(buf[18:]),
		BorderWidth: xconn.Get16(buf[20:]),
	}, nil
}

func GetGeometry(c *xconn.Conn, drawable Drawable) (GetGeometryCookie, error) {
	ck, err := c.Send(&GetGeometryRequest{drawable})
	return GetGeometryCookie{ck}, err
}

func (cook GetGeometryCookie) Reply(ctx context.Context) (*GetGeometryReply, error) {
	v, err := cook.Cookie.Reply(ctx)
	if err != nil {
		return nil, err
	}
	return v.(*GetGeometryReply), nil
}

// GetProperty

const GetPropertyTypeAny Atom = 0

type GetPropertyRequest struct {
	Delete     bool
	Window     Window
	Property   Atom
	Type       Atom
	LongOffset uint32
	LongLength uint32
}

type GetPropertyReply struct {
	Sequence   uint16
	Format     byte
	Type       Atom
	BytesAfter uint32
	ValueLen   uint32
	Value      []byte
}

type GetPropertyCookie struct {
	*xconn.Cookie
}

func (r *GetPropertyRequest) Bytes() ([]byte, error) {
	buf := make([]byte, 24)
	header(buf, opGetProperty, boolByte(r.Delete))
	xconn.Put32(buf[4:], uint32(r.Window))
	xconn.Put32(buf[8:], uint32(r.Property))
	xconn.Put32(buf[12:], uint32(r.Type))
	xconn.Put32(buf[16:], r.LongOffset)
	xconn.Put32(buf[20:], r.LongLength)
	return buf, nil
}

func (r *GetPropertyRequest) DecodeReply(buf []byte) (interface{}, error) {
	if err := checkReply(buf, 32); err != nil {
		return nil, err
	}
	v := &GetPropertyReply{
		Format:     buf[1],
		Sequence:   xconn.Get16(buf[2:]),
		Type:       Atom(xconn.Get32(buf[8:])),
		BytesAfter: xconn.Get32(buf[12:]),
		ValueLen:   xconn.Get32(buf[16:]),
	}
	n := int(v.ValueLen) * int(v.Format) / 8
	if err := checkReply(buf, 32+n); err != nil {
		return nil, err
	}
	v.Value = buf[32 : 32+n]
	return v, nil
}

func GetProperty(c *xconn.Conn, r *GetPropertyRequest) (GetPropertyCookie, error) {
	ck, err := c.Send(r)
	return GetPropertyCookie{ck}, err
}

func (cook GetPropertyCookie) Reply(ctx context.Context) (*GetPropertyReply, error) {
	v, err := cook.Cookie.Reply(ctx)
	if err != nil {
		return nil, err
	}
	return v.(*GetPropertyReply), nil
}

// QueryExtension

type QueryExtensionRequest struct {
	Name string
}

type QueryExtensionReply struct {
	Sequence    uint16
	Present     bool
	MajorOpcode byte
	FirstEvent  byte
	FirstError  byte
}

type QueryExtensionCookie struct {
	*xconn.Cookie
}

func (r *QueryExtensionRequest) Bytes() ([]byte, error) {
	if err := checkNameLength(r.Name); err != nil {
		return nil, err
	}
	name := bytesString(r.Name)
	buf := make([]byte, 8+len(name))
	header(buf, opQueryExtension, 0)
	xconn.Put16(buf[4:], uint16(len(r.Name)))
	copy(buf[8:], name)
	return buf, nil
}

func (r *QueryExtensionRequest) DecodeReply(buf []byte) (interface{}, error) {
	if err := checkReply(buf, 32); err != nil {
		return nil, err
	}
	return &QueryExtensionReply{
		Sequence:    xconn.Get16(buf[2:]),
		Present:     buf[8] != 0,
		MajorOpcode: buf[9],
		FirstEvent:  buf[10],
		FirstError:  buf[11],
	}, nil
}

func QueryExtension(c *xconn.Conn, name string) (QueryExtensionCookie, error) {
	ck, err := c.Send(&QueryExtensionRequest{name})
	return QueryExtensionCookie{ck}, err
}

func (cook QueryExtensionCookie) Reply(ctx context.Context) (*QueryExtensionReply, error) {
	v, err := cook.Cookie.Reply(ctx)
	if err != nil {
		return nil, err
	}
	return v.(*QueryExtensionReply), nil
}
