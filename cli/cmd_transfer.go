package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"student-records-go/db"
)

func newImportCommand(globals *globalOptions, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.xlsx>",
		Short: "Append students from an Excel sheet and save the roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(globals, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return &ExitError{Code: ExitCodeIO, Err: fmt.Errorf("open %s: %w", args[0], err)}
			}
			defer f.Close()

			records, report, err := db.ImportFromExcel(f, rt.logger)
			if err != nil {
				return &ExitError{Code: ExitCodeIO, Err: err}
			}

			imported, skipped := 0, len(report.Skipped)
			for _, record := range records {
				if err := rt.store.Add(record); err != nil {
					if !errors.Is(err, db.ErrDuplicateRoll) {
						return err
					}
					rt.logger.Warn("skipping duplicate roll", "roll", record.Roll)
					skipped++
					continue
				}
				imported++
			}

			if err := rt.save(); err != nil {
				return err
			}
			_, err = fmt.Fprintf(out, "Imported %d student(s), skipped %d.\n", imported, skipped)
			return err
		},
	}
}

func newExportCommand(globals *globalOptions, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file.xlsx>",
		Short: "Write the roster to an Excel sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(globals, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()

			f, err := os.Create(args[0])
			if err != nil {
				return &ExitError{Code: ExitCodeIO, Err: fmt.Errorf("create %s: %w", args[0], err)}
			}
			records := rt.store.ListAll()
			if err := db.ExportToExcel(f, records); err != nil {
				f.Close()
				return &ExitError{Code: ExitCodeIO, Err: err}
			}
			if err := f.Close(); err != nil {
				return &ExitError{Code: ExitCodeIO, Err: fmt.Errorf("close %s: %w", args[0], err)}
			}
			_, err = fmt.Fprintf(out, "Exported %d student(s) to %s.\n", len(records), args[0])
			return err
		},
	}
}
