package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xgbproject/xconn/xproto"
)

func extCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ext NAME...",
		Short: "Look up extensions and print their opcodes",
		Long: `ext asks the server about each named extension and prints its major
opcode and the first event and error codes it was assigned. Names are
case sensitive. A missing extension is an error.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := flags.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			for _, name := range args {
				info, err := xproto.RegisterExtension(cmd.Context(), s.conn, name)
				if err != nil {
					return err
				}
				fmt.Printf("%s\tmajor %d\tfirst event %d\tfirst error %d\n",
					name, info.MajorOpcode, info.FirstEvent, info.FirstError)
			}
			return nil
		},
	}
}
