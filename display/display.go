// Package display finds and opens the transport to an X server: it parses
// display names, dials the matching socket and looks up credentials in
// the Xauthority file.
package display

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

const tcpPort = 6000

// Protocols understood in the protocol/ prefix of a display name.
const (
	ProtocolTCP   = "tcp"
	ProtocolInet  = "inet"
	ProtocolInet6 = "inet6"
	ProtocolUnix  = "unix"
)

var (
	ErrIllFormatted        = errors.New("display: ill-formatted display name")
	ErrUnknownProtocol     = errors.New("display: unrecognized protocol")
	ErrDECnetNotSupported  = errors.New("display: DECnet is not supported")
	ErrNoDisplayConfigured = errors.New("display: no display name given and $DISPLAY is not set")
)

// Name is a parsed display name of the form
// [protocol/][host]:display[.screen].
type Name struct {
	Protocol string
	Host     string
	Display  int
	Screen   int

	// Socket is set for names that are a path to a unix socket, such as
	// "/tmp/launch-123/:0".
	Socket string
}

// Parse parses a display name. An empty name is taken from $DISPLAY.
//
// Examples:
//	":1"                 -> unix socket /tmp/.X11-unix/X1
//	"/tmp/launch-123/:0" -> unix socket /tmp/launch-123/:0
//	"hostname:2.1"       -> tcp hostname:6002, screen 1
//	"tcp/hostname:1.0"   -> tcp hostname:6001
//	"inet6/[::1]:0"      -> tcp6 [::1]:6000
func Parse(name string) (*Name, error) {
	if name == "" {
		name = os.Getenv("DISPLAY")
		if name == "" {
			return nil, ErrNoDisplayConfigured
		}
	}
	n := &Name{}

	colon := strings.LastIndex(name, ":")
	if colon < 0 {
		return nil, ErrIllFormatted
	}
	prefix, rest := name[:colon], name[colon+1:]

	if dot := strings.LastIndex(rest, "."); dot >= 0 {
		screen, err := strconv.Atoi(rest[dot+1:])
		if err != nil || screen < 0 {
			return nil, ErrIllFormatted
		}
		n.Screen = screen
		rest = rest[:dot]
	}
	display, err := strconv.Atoi(rest)
	if err != nil || display < 0 {
		return nil, ErrIllFormatted
	}
	n.Display = display

	if strings.HasPrefix(prefix, "/") {
		n.Protocol = ProtocolUnix
		n.Socket = name[:colon+1+len(rest)]
		return n, nil
	}

	if slash := strings.Index(prefix, "/"); slash >= 0 {
		switch p := prefix[:slash]; p {
		case ProtocolTCP, ProtocolInet, ProtocolInet6, ProtocolUnix:
			n.Protocol = p
		default:
			return nil, ErrUnknownProtocol
		}
		prefix = prefix[slash+1:]
	}

	switch {
	case strings.HasSuffix(prefix, ":"):
		return nil, ErrDECnetNotSupported
	case strings.HasPrefix(prefix, "[") && strings.HasSuffix(prefix, "]"):
		n.Host = prefix[1 : len(prefix)-1]
		if n.Protocol == "" {
			n.Protocol = ProtocolInet6
		}
	case prefix == "unix":
		if n.Protocol != "" && n.Protocol != ProtocolUnix {
			return nil, ErrIllFormatted
		}
		n.Protocol = ProtocolUnix
	default:
		n.Host = prefix
	}
	if n.Protocol == ProtocolUnix && n.Host != "" {
		return nil, ErrIllFormatted
	}
	return n, nil
}

func (n *Name) String() string {
	if n.Socket != "" {
		return fmt.Sprintf("%s.%d", n.Socket, n.Screen)
	}
	var b strings.Builder
	if n.Protocol != "" {
		b.WriteString(n.Protocol)
		b.WriteByte('/')
	}
	if strings.Contains(n.Host, ":") {
		b.WriteString("[" + n.Host + "]")
	} else {
		b.WriteString(n.Host)
	}
	fmt.Fprintf(&b, ":%d.%d", n.Display, n.Screen)
	return b.String()
}

// Local reports whether the name refers to a unix socket on this machine.
func (n *Name) Local() bool {
	return n.Protocol == ProtocolUnix || (n.Protocol == "" && n.Host == "")
}

// network returns the net.Dial network and address for the name.
func (n *Name) network() (string, string) {
	if n.Socket != "" {
		return "unix", n.Socket
	}
	if n.Local() {
		return "unix", "/tmp/.X11-unix/X" + strconv.Itoa(n.Display)
	}
	host := n.Host
	if host == "" {
		host = "localhost"
	}
	addr := net.JoinHostPort(host, strconv.Itoa(tcpPort+n.Display))
	switch n.Protocol {
	case ProtocolInet:
		return "tcp4", addr
	case ProtocolInet6:
		return "tcp6", addr
	}
	return "tcp", addr
}

// Dial opens the transport to the server the name refers to.
func (n *Name) Dial(ctx context.Context) (net.Conn, error) {
	network, addr := n.network()
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("display: cannot connect to %s: %w", n, err)
	}
	return conn, nil
}

// Authority returns the credentials for the name from the Xauthority file
// fname, or from the default file if fname is empty.
func (n *Name) Authority(fname string) (string, []byte, error) {
	host := n.Host
	if n.Local() {
		host = ""
	}
	if fname == "" {
		var err error
		if fname, err = AuthorityFile(); err != nil {
			return "", nil, err
		}
	}
	return ReadAuthorityFile(fname, host, strconv.Itoa(n.Display))
}
