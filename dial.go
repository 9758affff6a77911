package xconn

import (
	"context"

	"go.uber.org/zap"

	"github.com/xgbproject/xconn/display"
)

// NewConn connects to the X server named by $DISPLAY.
func NewConn(ctx context.Context, opts ...Option) (*Conn, error) {
	return NewConnDisplay(ctx, "", opts...)
}

// NewConnDisplay is just like NewConn, but allows a specific display name
// to be used. If it is empty it will be taken from $DISPLAY. See
// display.Parse for the accepted forms.
func NewConnDisplay(ctx context.Context, name string, opts ...Option) (*Conn, error) {
	dn, err := display.Parse(name)
	if err != nil {
		return nil, err
	}
	o := buildOptions(opts)

	var cred Credential
	authName, authData, err := dn.Authority(o.authorityFile)
	if err != nil {
		// Servers without access control accept an empty credential.
		o.logger.Debug("no credentials", zap.Stringer("display", dn), zap.Error(err))
	} else {
		cred = Credential{Name: authName, Data: authData}
	}

	transport, err := dn.Dial(ctx)
	if err != nil {
		return nil, err
	}

	opts = append([]Option{WithDefaultScreen(dn.Screen)}, opts...)
	c, err := Connect(ctx, transport, cred, opts...)
	if err != nil {
		transport.Close()
		return nil, err
	}
	return c, nil
}
