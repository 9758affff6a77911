package xtest

// Setup is the part of a successful setup response the tests care about.
// Bytes encodes it with the fixed fields of a typical X.Org server.
type Setup struct {
	Major, Minor     uint16
	Release          uint32
	ResourceIdBase   uint32
	ResourceIdMask   uint32
	MaxRequestLength uint16
	Vendor           string
	Formats          []Format
	Screens          []Screen
}

type Format struct {
	Depth, BitsPerPixel, ScanlinePad byte
}

type Screen struct {
	Root              uint32
	Colormap          uint32
	WhitePixel        uint32
	BlackPixel        uint32
	Width, Height     uint16
	WidthMM, HeightMM uint16
	RootVisual        uint32
	RootDepth         byte
	Depths            []Depth
}

type Depth struct {
	Depth   byte
	Visuals []Visual
}

type Visual struct {
	Id                           uint32
	Class                        byte
	BitsPerRgb                   byte
	ColormapEntries              uint16
	RedMask, GreenMask, BlueMask uint32
}

// DefaultSetup is a single 1920x1080 screen at depth 24.
func DefaultSetup() Setup {
	return Setup{
		Major:            11,
		Minor:            0,
		Release:          12101004,
		ResourceIdBase:   0x00400000,
		ResourceIdMask:   0x001fffff,
		MaxRequestLength: 65535,
		Vendor:           "The X.Org Foundation",
		Formats: []Format{
			{Depth: 1, BitsPerPixel: 1, ScanlinePad: 32},
			{Depth: 24, BitsPerPixel: 32, ScanlinePad: 32},
		},
		Screens: []Screen{{
			Root:       0x000001e8,
			Colormap:   0x00000020,
			WhitePixel: 0x00ffffff,
			BlackPixel: 0,
			Width:      1920,
			Height:     1080,
			WidthMM:    508,
			HeightMM:   285,
			RootVisual: 0x21,
			RootDepth:  24,
			Depths: []Depth{
				{Depth: 24, Visuals: []Visual{{
					Id:              0x21,
					Class:           4, // TrueColor
					BitsPerRgb:      8,
					ColormapEntries: 256,
					RedMask:         0xff0000,
					GreenMask:       0x00ff00,
					BlueMask:        0x0000ff,
				}}},
				{Depth: 1},
			},
		}},
	}
}

// Bytes encodes a Success setup response.
func (s Setup) Bytes() []byte {
	size := 40 + pad(len(s.Vendor)) + 8*len(s.Formats)
	for _, scr := range s.Screens {
		size += 40
		for _, d := range scr.Depths {
			size += 8 + 24*len(d.Visuals)
		}
	}

	buf := make([]byte, size)
	buf[0] = 1
	le.PutUint16(buf[2:], s.Major)
	le.PutUint16(buf[4:], s.Minor)
	le.PutUint16(buf[6:], uint16((size-8)/4))
	le.PutUint32(buf[8:], s.Release)
	le.PutUint32(buf[12:], s.ResourceIdBase)
	le.PutUint32(buf[16:], s.ResourceIdMask)
	le.PutUint16(buf[24:], uint16(len(s.Vendor)))
	le.PutUint16(buf[26:], s.MaxRequestLength)
	buf[28] = byte(len(s.Screens))
	buf[29] = byte(len(s.Formats))
	buf[32] = 32
	buf[33] = 32
	buf[34] = 8
	buf[35] = 255
	copy(buf[40:], s.Vendor)

	b := 40 + pad(len(s.Vendor))
	for _, f := range s.Formats {
		buf[b] = f.Depth
		buf[b+1] = f.BitsPerPixel
		buf[b+2] = f.ScanlinePad
		b += 8
	}
	for _, scr := range s.Screens {
		le.PutUint32(buf[b:], scr.Root)
		le.PutUint32(buf[b+4:], scr.Colormap)
		le.PutUint32(buf[b+8:], scr.WhitePixel)
		le.PutUint32(buf[b+12:], scr.BlackPixel)
		le.PutUint16(buf[b+20:], scr.Width)
		le.PutUint16(buf[b+22:], scr.Height)
		le.PutUint16(buf[b+24:], scr.WidthMM)
		le.PutUint16(buf[b+26:], scr.HeightMM)
		le.PutUint16(buf[b+28:], 1)
		le.PutUint16(buf[b+30:], 1)
		le.PutUint32(buf[b+32:], scr.RootVisual)
		buf[b+38] = scr.RootDepth
		buf[b+39] = byte(len(scr.Depths))
		b += 40
		for _, d := range scr.Depths {
			buf[b] = d.Depth
			le.PutUint16(buf[b+2:], uint16(len(d.Visuals)))
			b += 8
			for _, v := range d.Visuals {
				le.PutUint32(buf[b:], v.Id)
				buf[b+4] = v.Class
				buf[b+5] = v.BitsPerRgb
				le.PutUint16(buf[b+6:], v.ColormapEntries)
				le.PutUint32(buf[b+8:], v.RedMask)
				le.PutUint32(buf[b+12:], v.GreenMask)
				le.PutUint32(buf[b+16:], v.BlueMask)
				b += 24
			}
		}
	}
	return buf
}

// Refuse encodes a Failed setup response.
func Refuse(reason string, major, minor uint16) []byte {
	buf := make([]byte, 8+pad(len(reason)))
	buf[0] = 0
	buf[1] = byte(len(reason))
	le.PutUint16(buf[2:], major)
	le.PutUint16(buf[4:], minor)
	le.PutUint16(buf[6:], uint16(pad(len(reason))/4))
	copy(buf[8:], reason)
	return buf
}

// Authenticate encodes an Authenticate setup response.
func Authenticate(reason string) []byte {
	buf := make([]byte, 8+pad(len(reason)))
	buf[0] = 2
	le.PutUint16(buf[6:], uint16(pad(len(reason))/4))
	copy(buf[8:], reason)
	return buf
}
