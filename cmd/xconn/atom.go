package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xgbproject/xconn/xproto"
)

func atomCmd(flags *globalFlags) *cobra.Command {
	var onlyIfExists bool
	cmd := &cobra.Command{
		Use:   "atom NAME...",
		Short: "Intern atoms and print their values",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := flags.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			// Send everything first, then collect the replies.
			cookies := make([]xproto.InternAtomCookie, len(args))
			for i, name := range args {
				if cookies[i], err = xproto.InternAtom(s.conn, onlyIfExists, name); err != nil {
					return err
				}
			}
			for i, cook := range cookies {
				reply, err := cook.Reply(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("%s\t%d\n", args[i], reply.Atom)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&onlyIfExists, "only-if-exists", false, "do not create missing atoms")
	return cmd
}
