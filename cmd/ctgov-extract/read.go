package main

import (
	"fmt"

	"github.com/Sternrassler/ctgov-extractor/pkg/logging"
	"github.com/Sternrassler/ctgov-extractor/pkg/store"
	"github.com/spf13/cobra"
)

func newReadCmd(a *app) *cobra.Command {
	var asCSV bool

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Load every stored page into one table",
		Long: "Reads all cl_run_*.parquet files in the data directory, matching columns by\n" +
			"name, and prints a summary or, with --csv, the whole table.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := store.New(store.Config{Dir: a.opts.dataDir}, logging.NewLogger("store"))
			if err != nil {
				return err
			}
			defer s.Close()

			t, err := s.ReadAll(cmd.Context())
			if err != nil {
				return err
			}

			if asCSV {
				return t.WriteCSV(a.out)
			}

			fmt.Fprintf(a.out, "%d rows, %d columns in %s\n", t.Len(), t.Width(), a.opts.dataDir)
			printColumns(a.out, t.Columns)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asCSV, "csv", false, "Write the combined table to stdout as CSV")
	return cmd
}
