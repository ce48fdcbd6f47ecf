package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"student-records-go/console"
)

type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// NewRootCommand builds the CLI. Without a subcommand it runs the interactive menu.
// Logs go to errOut so they never interleave with the menu on out.
func NewRootCommand(in io.Reader, out, errOut io.Writer, build BuildInfo) *cobra.Command {
	globals := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "student-records",
		Short:         "Manage a roster of student records",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMenu(globals, in, out, cmd.ErrOrStderr())
		},
	}
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	flags := cmd.PersistentFlags()
	flags.StringVar(&globals.ConfigPath, "config", "", "Path to a YAML config file")
	flags.StringVar(&globals.DataFile, "data-file", "", "Backing file for the roster (file backend)")
	flags.StringVar(&globals.Backend, "backend", "", "Storage backend: file or redis")
	flags.StringVar(&globals.LogLevel, "log-level", "", "Log level: debug, info, warn or error")

	cmd.AddCommand(newServeCommand(globals, out))
	cmd.AddCommand(newListCommand(globals, out))
	cmd.AddCommand(newImportCommand(globals, out))
	cmd.AddCommand(newExportCommand(globals, out))
	cmd.AddCommand(newVersionCommand(out, build))
	return cmd
}

func runMenu(globals *globalOptions, in io.Reader, out, stderr io.Writer) error {
	rt, err := openRuntime(globals, stderr)
	if err != nil {
		return err
	}
	defer rt.Close()
	rt.warnSkipped(out)

	menuErr := console.New(in, out, rt.store).Run()
	if menuErr != nil {
		rt.logger.Error("menu stopped", "error", menuErr)
	}
	// The roster is written back even when the menu ended on an input error.
	saveErr := rt.save()
	if saveErr != nil {
		fmt.Fprintln(out, "Error: records could not be saved:", saveErr)
	}
	return asExitError(ExitCodeIO, errors.Join(menuErr, saveErr))
}

func newVersionCommand(out io.Writer, build BuildInfo) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(build)
			}

			_, err := fmt.Fprintf(out, "version=%s commit=%s build_time=%s\n", build.Version, build.Commit, build.BuildTime)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print version as JSON")
	return cmd
}
