package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func infoCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print what the server reports at connection setup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := flags.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			setup := s.conn.Setup()
			fmt.Printf("vendor:             %s\n", setup.Vendor)
			fmt.Printf("protocol:           %d.%d\n", setup.ProtocolMajorVersion, setup.ProtocolMinorVersion)
			fmt.Printf("release:            %d\n", setup.ReleaseNumber)
			fmt.Printf("resource ids:       base %#08x mask %#08x\n", setup.ResourceIdBase, setup.ResourceIdMask)
			fmt.Printf("max request length: %d bytes\n", int(setup.MaximumRequestLength)*4)
			fmt.Printf("keycodes:           %d-%d\n", setup.MinKeycode, setup.MaxKeycode)
			fmt.Printf("pixmap formats:\n")
			for _, f := range setup.PixmapFormats {
				fmt.Printf("  depth %2d, %2d bits per pixel, scanline pad %d\n",
					f.Depth, f.BitsPerPixel, f.ScanlinePad)
			}
			for i, screen := range setup.Roots {
				fmt.Printf("screen #%d:\n", i)
				fmt.Printf("  root window:  %#x\n", screen.Root)
				fmt.Printf("  dimensions:   %dx%d pixels (%dx%d millimeters)\n",
					screen.WidthInPixels, screen.HeightInPixels,
					screen.WidthInMillimeters, screen.HeightInMillimeters)
				fmt.Printf("  root depth:   %d\n", screen.RootDepth)
				fmt.Printf("  root visual:  %#x\n", screen.RootVisual)
				for _, d := range screen.AllowedDepths {
					fmt.Printf("  depth %2d: %d visuals\n", d.Depth, len(d.Visuals))
				}
			}
			return nil
		},
	}
}
