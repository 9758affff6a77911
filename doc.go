/*
Package xconn is the connection core of an X11 client. It performs the
connection setup, numbers and writes requests, and reads everything the
server sends on a single goroutine, handing replies and errors to the
cookies that wait for them and queueing events and unclaimed errors.

It uses the same cookie/reply model as XCB and is safe for concurrent use:
any number of goroutines may send requests, wait on cookies and read
messages at the same time. xconn does not know the layout of any request,
reply or event. Requests encode themselves, replies are decoded by the
request that asked for them, and events are decoded by a Codec. The
xproto package provides those for a part of the core protocol.

Example

This is a terse example that connects to X, creates a window, listens to
StructureNotify and Key{Press,Release} events, maps the window and prints
out every message received.

	package main

	import (
		"context"
		"fmt"

		"github.com/xgbproject/xconn"
		"github.com/xgbproject/xconn/xproto"
	)

	func main() {
		ctx := context.Background()
		X, err := xconn.NewConn(ctx, xconn.WithCodec(xproto.NewCodec()))
		if err != nil {
			fmt.Println(err)
			return
		}
		defer X.Close()

		screen := X.DefaultScreen()
		wid, _ := X.NewId()
		xproto.CreateWindow(X, &xproto.CreateWindowRequest{
			Depth:     screen.RootDepth,
			Wid:       wid,
			Parent:    screen.Root,
			Width:     500,
			Height:    500,
			Class:     xproto.WindowClassInputOutput,
			Visual:    screen.RootVisual,
			ValueMask: xproto.CwBackPixel | xproto.CwEventMask,
			ValueList: []uint32{ // values must be in the order defined by the protocol
				0xffffffff,
				xproto.EventMaskStructureNotify |
					xproto.EventMaskKeyPress |
					xproto.EventMaskKeyRelease},
		})

		xproto.MapWindow(X, wid)
		for {
			m, err := X.WaitForMessage(ctx)
			if err != nil {
				fmt.Println(err)
				return
			}
			if m.Event != nil {
				fmt.Printf("Event: %s\n", m.Event)
			}
			if m.Err != nil {
				fmt.Printf("Error: %s\n", m.Err)
			}
		}
	}

Cookies

Send returns a Cookie as soon as the request is written. For a request
with a reply, the cookie's Reply blocks until the reply or the request's
error arrives:

	cook, err := xproto.InternAtom(X, true, "_NET_ACTIVE_WINDOW")
	if err != nil {
		return err
	}
	reply, err := cook.Reply(ctx)

Errors for requests without replies are put on the message queue, unless
the request was sent with SendChecked (or a *Checked helper). Then the
cookie's Check reports the error, or nil once the server is known to have
handled the request:

	cook, err := xproto.MapWindowChecked(X, wid)
	if err != nil {
		return err
	}
	if err := cook.Check(ctx); err != nil {
		fmt.Printf("Checked Error for mapping window %d: %s\n", wid, err)
	}

A cookie that is no longer wanted can be cancelled. Its reply or error is
thrown away when it arrives.

Sequence numbers

Every request gets a 64 bit sequence number, starting at 1. The server only
echoes the low 16 bits, so at most 65536 requests may wait for a reply or
error at any time. Going over that limit closes the connection with
ErrSequenceExhausted.

Errors

Failures of a single request (ErrRequestTooLarge, ErrMalformedRequest, a
*ProtocolError) leave the connection usable. Everything else closes it;
afterwards every pending cookie, Send and WaitForMessage report an error
that matches ErrConnectionClosed, and Err returns the cause.
*/
package xconn
