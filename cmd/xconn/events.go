package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xgbproject/xconn"
	"github.com/xgbproject/xconn/xproto"
)

func eventsCmd(flags *globalFlags) *cobra.Command {
	var width, height uint16
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Open a window and print the events and errors it gets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := flags.open(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			X := s.conn
			screen := X.DefaultScreen()
			if screen == nil {
				return errors.New("server has no screens")
			}
			wid, err := X.NewId()
			if err != nil {
				return err
			}

			cook, err := xproto.CreateWindowChecked(X, &xproto.CreateWindowRequest{
				Depth:     screen.RootDepth,
				Wid:       wid,
				Parent:    screen.Root,
				Width:     width,
				Height:    height,
				Class:     xproto.WindowClassInputOutput,
				Visual:    screen.RootVisual,
				ValueMask: xproto.CwBackPixel | xproto.CwEventMask,
				ValueList: []uint32{
					screen.WhitePixel,
					xproto.EventMaskKeyPress | xproto.EventMaskKeyRelease |
						xproto.EventMaskButtonPress | xproto.EventMaskButtonRelease |
						xproto.EventMaskExposure | xproto.EventMaskStructureNotify |
						xproto.EventMaskPropertyChange,
				},
			})
			if err != nil {
				return err
			}
			if err := cook.Check(ctx); err != nil {
				return fmt.Errorf("creating window: %w", err)
			}

			cook, err = xproto.MapWindowChecked(X, wid)
			if err != nil {
				return err
			}
			if err := cook.Check(ctx); err != nil {
				return fmt.Errorf("mapping window %d: %w", wid, err)
			}
			s.logger.Info("window mapped", zap.Uint32("window", uint32(wid)))

			for {
				m, err := X.WaitForMessage(ctx)
				if err != nil {
					if errors.Is(err, xconn.ErrConnectionClosed) && X.Err() == nil {
						return nil
					}
					return err
				}
				if m.Err != nil {
					fmt.Printf("Error: %s\n", m.Err)
					continue
				}
				fmt.Printf("Event: %s\n", m.Event)
				if ev, ok := m.Event.(xproto.DestroyNotifyEvent); ok && ev.Window == wid {
					return nil
				}
			}
		},
	}
	cmd.Flags().Uint16Var(&width, "width", 500, "window width")
	cmd.Flags().Uint16Var(&height, "height", 500, "window height")
	return cmd
}
