package cli

import (
	"io"

	"github.com/spf13/cobra"
	"student-records-go/console"
)

func newListCommand(globals *globalOptions, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print every student record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(globals, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()

			rt.warnSkipped(out)
			console.RenderTable(out, rt.store.ListAll())
			return nil
		},
	}
}
