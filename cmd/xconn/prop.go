package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/xgbproject/xconn"
	"github.com/xgbproject/xconn/xproto"
)

func propCmd(flags *globalFlags) *cobra.Command {
	var window string
	cmd := &cobra.Command{
		Use:   "prop NAME",
		Short: "Print a property of the root window or of --window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := flags.open(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			X := s.conn
			var win xproto.Window
			if window != "" {
				n, err := strconv.ParseUint(window, 0, 32)
				if err != nil {
					return err
				}
				win = xproto.Window(n)
			} else if screen := X.DefaultScreen(); screen != nil {
				win = screen.Root
			}

			atomCook, err := xproto.InternAtom(X, true, args[0])
			if err != nil {
				return err
			}
			atom, err := atomCook.Reply(ctx)
			if err != nil {
				return err
			}
			if atom.Atom == xproto.AtomNone {
				return fmt.Errorf("no atom named %s", args[0])
			}

			propCook, err := xproto.GetProperty(X, &xproto.GetPropertyRequest{
				Window:     win,
				Property:   atom.Atom,
				Type:       xproto.GetPropertyTypeAny,
				LongLength: (1 << 32) - 1,
			})
			if err != nil {
				return err
			}
			prop, err := propCook.Reply(ctx)
			if err != nil {
				return err
			}
			if prop.Type == xproto.AtomNone {
				fmt.Printf("%s: not set\n", args[0])
				return nil
			}

			typeCook, err := xproto.GetAtomName(X, prop.Type)
			if err != nil {
				return err
			}
			typeName, err := typeCook.Reply(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("%s(%s) = ", args[0], typeName.Name)
			switch prop.Format {
			case 8:
				fmt.Printf("%q\n", prop.Value)
			case 16:
				for i := 0; i+2 <= len(prop.Value); i += 2 {
					fmt.Printf("%d ", xconn.Get16(prop.Value[i:]))
				}
				fmt.Println()
			default:
				for i := 0; i+4 <= len(prop.Value); i += 4 {
					fmt.Printf("%#x ", xconn.Get32(prop.Value[i:]))
				}
				fmt.Println()
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&window, "window", "w", "", "window id (default: the root window)")
	return cmd
}
