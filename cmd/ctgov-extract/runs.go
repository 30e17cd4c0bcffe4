package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/Sternrassler/ctgov-extractor/pkg/ledger"
	"github.com/Sternrassler/ctgov-extractor/pkg/logging"
	"github.com/spf13/cobra"
)

func newRunsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List the pages recorded in the run ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.opts.redisURL == "" {
				return fmt.Errorf("--redis-url (or REDIS_URL) is required")
			}

			l, err := ledger.Open(cmd.Context(), a.opts.redisURL, logging.NewLogger("ledger"))
			if err != nil {
				return err
			}
			defer l.Close()

			entries, err := l.List(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN ID\tPAGE\tROWS\tSTARTED\tFILE")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", e.RunID, e.Page, e.Rows, e.StartedAt.Format(time.RFC3339), e.File)
			}
			return tw.Flush()
		},
	}
}
