// Copyright 2009 The XGB Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package display

import (
	"bufio"
	"errors"
	"io"
	"os"
)

// As per /usr/include/X11/Xauth.h.
const familyLocal = 256

// ErrNoAuthority is returned when the authority file has no entry for the
// display.
var ErrNoAuthority = errors.New("display: no matching Xauthority entry")

// authReader decodes the counted big-endian fields of an Xauthority file.
// Short reads are sticky: once err is set every further read is a no-op.
type authReader struct {
	r   io.Reader
	buf [256]byte
	err error
}

func (ar *authReader) u16() uint16 {
	if ar.err != nil {
		return 0
	}
	if _, ar.err = io.ReadFull(ar.r, ar.buf[:2]); ar.err != nil {
		return 0
	}
	return uint16(ar.buf[0])<<8 | uint16(ar.buf[1])
}

// field returns a view into the scratch buffer, valid until the next read.
func (ar *authReader) field() []byte {
	n := int(ar.u16())
	if ar.err == nil && n > len(ar.buf) {
		ar.err = errors.New("display: Xauthority field too long")
	}
	if ar.err == nil {
		_, ar.err = io.ReadFull(ar.r, ar.buf[:n])
	}
	if ar.err == io.EOF {
		// Only the family field may end the file.
		ar.err = io.ErrUnexpectedEOF
	}
	if ar.err != nil {
		return nil
	}
	return ar.buf[:n]
}

// AuthorityFile returns $XAUTHORITY, or ~/.Xauthority if it is not set.
func AuthorityFile() (string, error) {
	fname := os.Getenv("XAUTHORITY")
	if len(fname) == 0 {
		home := os.Getenv("HOME")
		if len(home) == 0 {
			return "", errors.New("display: Xauthority not found: $XAUTHORITY, $HOME not set")
		}
		fname = home + "/.Xauthority"
	}
	return fname, nil
}

// ReadAuthority reads the X authority file for the display.
// If hostname == "" or hostname == "localhost",
// ReadAuthority uses the system's hostname (as returned by os.Hostname) instead.
func ReadAuthority(hostname, display string) (name string, data []byte, err error) {
	fname, err := AuthorityFile()
	if err != nil {
		return "", nil, err
	}
	return ReadAuthorityFile(fname, hostname, display)
}

// ReadAuthorityFile is ReadAuthority with an explicit file name.
func ReadAuthorityFile(fname, hostname, display string) (name string, data []byte, err error) {
	if len(hostname) == 0 || hostname == "localhost" {
		hostname, err = os.Hostname()
		if err != nil {
			return "", nil, err
		}
	}

	r, err := os.Open(fname)
	if err != nil {
		return "", nil, err
	}
	defer r.Close()

	return readAuthority(bufio.NewReader(r), hostname, display)
}

func readAuthority(r io.Reader, hostname, display string) (string, []byte, error) {
	ar := &authReader{r: r}
	for {
		family := ar.u16()
		if ar.err == io.EOF {
			return "", nil, ErrNoAuthority
		}
		addr := string(ar.field())
		disp := string(ar.field())
		name := string(ar.field())
		data := append([]byte(nil), ar.field()...)
		if ar.err != nil {
			return "", nil, ar.err
		}

		if family == familyLocal && addr == hostname && disp == display {
			return name, data, nil
		}
	}
}
