// Copyright 2009 The XGB Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xconn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

const (
	protocolMajor = 11
	protocolMinor = 0

	setupFailed       = 0
	setupSuccess      = 1
	setupAuthenticate = 2
)

// Credential is the authentication protocol name and data sent with the
// setup request. The zero value sends no authentication.
type Credential struct {
	Name string
	Data []byte
}

// SetupInfo is everything the server tells us when the connection is set
// up. It never changes for the life of a connection.
type SetupInfo struct {
	ProtocolMajorVersion uint16
	ProtocolMinorVersion uint16
	ReleaseNumber        uint32
	ResourceIdBase       uint32
	ResourceIdMask       uint32
	MotionBufferSize     uint32
	Vendor               string

	// MaximumRequestLength is counted in 4 byte units.
	MaximumRequestLength uint16

	ImageByteOrder           byte
	BitmapFormatBitOrder     byte
	BitmapFormatScanlineUnit byte
	BitmapFormatScanlinePad  byte
	MinKeycode               byte
	MaxKeycode               byte

	PixmapFormats []Format
	Roots         []ScreenInfo
}

// Format is a supported pixmap format.
type Format struct {
	Depth        byte
	BitsPerPixel byte
	ScanlinePad  byte
}

// ScreenInfo describes one root window.
type ScreenInfo struct {
	Root                Id
	DefaultColormap     Id
	WhitePixel          uint32
	BlackPixel          uint32
	CurrentInputMasks   uint32
	WidthInPixels       uint16
	HeightInPixels      uint16
	WidthInMillimeters  uint16
	HeightInMillimeters uint16
	MinInstalledMaps    uint16
	MaxInstalledMaps    uint16
	RootVisual          Id
	BackingStores       byte
	SaveUnders          bool
	RootDepth           byte
	AllowedDepths       []DepthInfo
}

type DepthInfo struct {
	Depth   byte
	Visuals []VisualInfo
}

type VisualInfo struct {
	VisualId        Id
	Class           byte
	BitsPerRgbValue byte
	ColormapEntries uint16
	RedMask         uint32
	GreenMask       uint32
	BlueMask        uint32
}

// errShortSetup is wrapped into a HandshakeIoError whenever the setup data
// ends before the structures it announces.
var errShortSetup = errors.New("setup response truncated")

// setupRequest builds the connection setup request.
func setupRequest(cred Credential) []byte {
	nameLen, dataLen := len(cred.Name), len(cred.Data)
	buf := make([]byte, 12+Pad(nameLen)+Pad(dataLen))
	buf[0] = 'l' // little endian
	Put16(buf[2:], protocolMajor)
	Put16(buf[4:], protocolMinor)
	Put16(buf[6:], uint16(nameLen))
	Put16(buf[8:], uint16(dataLen))
	copy(buf[12:], cred.Name)
	copy(buf[12+Pad(nameLen):], cred.Data)
	return buf
}

type deadliner interface {
	SetDeadline(t time.Time) error
}

// handshake performs the one synchronous setup exchange on rw.
func handshake(ctx context.Context, rw io.ReadWriter, cred Credential) (*SetupInfo, error) {
	if d, ok := rw.(deadliner); ok {
		if deadline, ok := ctx.Deadline(); ok {
			if err := d.SetDeadline(deadline); err == nil {
				defer d.SetDeadline(time.Time{})
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, &HandshakeIoError{err}
	}

	if _, err := rw.Write(setupRequest(cred)); err != nil {
		return nil, &HandshakeIoError{err}
	}

	head := make([]byte, 8)
	if _, err := io.ReadFull(rw, head); err != nil {
		return nil, &HandshakeIoError{err}
	}
	status := head[0]
	reasonLen := int(head[1])
	major, minor := Get16(head[2:]), Get16(head[4:])
	dataLen := int(Get16(head[6:])) * 4

	buf := make([]byte, 8+dataLen)
	copy(buf, head)
	if _, err := io.ReadFull(rw, buf[8:]); err != nil {
		return nil, &HandshakeIoError{err}
	}

	switch status {
	case setupFailed:
		if 8+reasonLen > len(buf) {
			return nil, &HandshakeIoError{errShortSetup}
		}
		return nil, &HandshakeRejectedError{
			Reason: string(buf[8 : 8+reasonLen]),
			Major:  major,
			Minor:  minor,
		}
	case setupAuthenticate:
		return nil, &HandshakeRejectedError{
			Reason:       trimReason(buf[8:]),
			Authenticate: true,
		}
	case setupSuccess:
	default:
		return nil, &HandshakeIoError{fmt.Errorf("unknown setup status %d", status)}
	}

	if major != protocolMajor {
		return nil, &HandshakeIoError{
			fmt.Errorf("unsupported protocol version %d.%d", major, minor)}
	}
	info, err := parseSetup(buf)
	if err != nil {
		return nil, &HandshakeIoError{err}
	}
	return info, nil
}

// trimReason drops the zero padding after an Authenticate reason.
func trimReason(b []byte) string {
	for len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return string(b)
}

// parseSetup decodes a successful setup response, header included.
func parseSetup(buf []byte) (*SetupInfo, error) {
	if len(buf) < 40 {
		return nil, errShortSetup
	}
	s := &SetupInfo{
		ProtocolMajorVersion:     Get16(buf[2:]),
		ProtocolMinorVersion:     Get16(buf[4:]),
		ReleaseNumber:            Get32(buf[8:]),
		ResourceIdBase:           Get32(buf[12:]),
		ResourceIdMask:           Get32(buf[16:]),
		MotionBufferSize:         Get32(buf[20:]),
		MaximumRequestLength:     Get16(buf[26:]),
		ImageByteOrder:           buf[30],
		BitmapFormatBitOrder:     buf[31],
		BitmapFormatScanlineUnit: buf[32],
		BitmapFormatScanlinePad:  buf[33],
		MinKeycode:               buf[34],
		MaxKeycode:               buf[35],
	}
	if s.ResourceIdMask == 0 {
		return nil, errors.New("resource id mask is zero")
	}
	if s.ResourceIdBase&s.ResourceIdMask != 0 {
		return nil, fmt.Errorf("resource id base %#x overlaps mask %#x",
			s.ResourceIdBase, s.ResourceIdMask)
	}

	vendorLen := int(Get16(buf[24:]))
	numRoots := int(buf[28])
	numFormats := int(buf[29])

	b := 40
	if b+vendorLen > len(buf) {
		return nil, errShortSetup
	}
	s.Vendor = string(buf[b : b+vendorLen])
	b += Pad(vendorLen)

	s.PixmapFormats = make([]Format, numFormats)
	for i := range s.PixmapFormats {
		if b+8 > len(buf) {
			return nil, errShortSetup
		}
		s.PixmapFormats[i] = Format{
			Depth:        buf[b],
			BitsPerPixel: buf[b+1],
			ScanlinePad:  buf[b+2],
		}
		b += 8
	}

	s.Roots = make([]ScreenInfo, numRoots)
	for i := range s.Roots {
		n, err := readScreenInfo(buf[b:], &s.Roots[i])
		if err != nil {
			return nil, err
		}
		b += n
	}
	return s, nil
}

func readScreenInfo(buf []byte, v *ScreenInfo) (int, error) {
	if len(buf) < 40 {
		return 0, errShortSetup
	}
	v.Root = Id(Get32(buf[0:]))
	v.DefaultColormap = Id(Get32(buf[4:]))
	v.WhitePixel = Get32(buf[8:])
	v.BlackPixel = Get32(buf[12:])
	v.CurrentInputMasks = Get32(buf[16:])
	v.WidthInPixels = Get16(buf[20:])
	v.HeightInPixels = Get16(buf[22:])
	v.WidthInMillimeters = Get16(buf[24:])
	v.HeightInMillimeters = Get16(buf[26:])
	v.MinInstalledMaps = Get16(buf[28:])
	v.MaxInstalledMaps = Get16(buf[30:])
	v.RootVisual = Id(Get32(buf[32:]))
	v.BackingStores = buf[36]
	v.SaveUnders = buf[37] != 0
	v.RootDepth = buf[38]
	numDepths := int(buf[39])

	b := 40
	v.AllowedDepths = make([]DepthInfo, numDepths)
	for i := range v.AllowedDepths {
		if b+8 > len(buf) {
			return 0, errShortSetup
		}
		d := &v.AllowedDepths[i]
		d.Depth = buf[b]
		numVisuals := int(Get16(buf[b+2:]))
		b += 8

		d.Visuals = make([]VisualInfo, numVisuals)
		for j := range d.Visuals {
			if b+24 > len(buf) {
				return 0, errShortSetup
			}
			d.Visuals[j] = VisualInfo{
				VisualId:        Id(Get32(buf[b:])),
				Class:           buf[b+4],
				BitsPerRgbValue: buf[b+5],
				ColormapEntries: Get16(buf[b+6:]),
				RedMask:         Get32(buf[b+8:]),
				GreenMask:       Get32(buf[b+12:]),
				BlueMask:        Get32(buf[b+16:]),
			}
			b += 24
		}
	}
	return b, nil
}
