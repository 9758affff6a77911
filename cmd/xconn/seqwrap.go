package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/xgbproject/xconn/xproto"
)

// seqwrapCmd sends more round trips than fit in 16 bit sequence numbers,
// so every reply after the first 65535 relies on wrap-around handling.
func seqwrapCmd(flags *globalFlags) *cobra.Command {
	var name string
	var batch int
	cmd := &cobra.Command{
		Use:   "seqwrap [COUNT]",
		Short: "Send InternAtom requests past the sequence number wrap",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count := 1<<16 + 10
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return err
				}
				count = n
			}
			if batch < 1 {
				batch = 1
			}

			s, err := flags.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			var want xproto.Atom
			for i := 0; i < count; i += batch {
				cookies := make([]xproto.InternAtomCookie, 0, batch)
				for j := i; j < i+batch && j < count; j++ {
					cook, err := xproto.InternAtom(s.conn, true, name)
					if err != nil {
						return err
					}
					cookies = append(cookies, cook)
				}
				for _, cook := range cookies {
					reply, err := cook.Reply(cmd.Context())
					if err != nil {
						return fmt.Errorf("sequence %d: %w", cook.Sequence, err)
					}
					if want == 0 {
						want = reply.Atom
					} else if reply.Atom != want {
						return fmt.Errorf("sequence %d: atom %d, want %d", cook.Sequence, reply.Atom, want)
					}
				}
			}
			fmt.Printf("%d replies, atom %s = %d\n", count, name, want)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "_NET_ACTIVE_WINDOW", "atom to intern")
	cmd.Flags().IntVar(&batch, "batch", 1000, "requests in flight at once")
	return cmd
}
