package xproto

import (
	"context"
	"fmt"

	"github.com/xgbproject/xconn"
)

// RegisterExtension asks the server about an extension and records its
// opcodes on the connection. Extension names are case sensitive on the
// wire. It must be run for every extension before any of its requests are
// sent.
func RegisterExtension(ctx context.Context, c *xconn.Conn, name string) (xconn.ExtensionInfo, error) {
	cook, err := QueryExtension(c, name)
	if err != nil {
		return xconn.ExtensionInfo{}, err
	}
	reply, err := cook.Reply(ctx)
	switch {
	case err != nil:
		return xconn.ExtensionInfo{}, err
	case !reply.Present:
		return xconn.ExtensionInfo{}, fmt.Errorf("xproto: no extension named '%s' is present", name)
	}

	info := xconn.ExtensionInfo{
		MajorOpcode: reply.MajorOpcode,
		FirstEvent:  reply.FirstEvent,
		FirstError:  reply.FirstError,
	}
	c.SetExtension(name, info)
	return info, nil
}
