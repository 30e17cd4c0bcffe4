package main

import (
	"fmt"
	"io"
	"time"

	"github.com/Sternrassler/ctgov-extractor/pkg/client"
	"github.com/Sternrassler/ctgov-extractor/pkg/ledger"
	"github.com/Sternrassler/ctgov-extractor/pkg/logging"
	"github.com/Sternrassler/ctgov-extractor/pkg/pipeline"
	"github.com/Sternrassler/ctgov-extractor/pkg/store"
	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch studies and write one Parquet file per page",
		Long: "Fetches every page of the study listing, optionally restricted to studies\n" +
			"updated on or after a date. Unless --since or --no-prompt is given, the date is\n" +
			"read from standard input (with a prompt on a terminal).",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runExtract(cmd)
		},
	}
	addRunFlags(cmd.Flags(), &a.opts)
	return cmd
}

// resolveSince returns the date filter from --since or, unless --no-prompt is
// set, from one line of standard input. The prompt text is only shown on a
// terminal; piped input is read the same way.
func (a *app) resolveSince() (*time.Time, error) {
	raw := a.opts.since
	if raw == "" && !a.opts.noPrompt {
		promptOut := io.Discard
		if a.isTerminal() {
			promptOut = a.out
		}
		answer, err := promptSince(a.in, promptOut)
		if err != nil {
			return nil, err
		}
		raw = answer
	}

	since, err := parseSince(raw)
	if err != nil {
		fmt.Fprintln(a.out, invalidDateMessage(err))
		return nil, fmt.Errorf("%w: %v", errReported, err)
	}
	return since, nil
}

func (a *app) runExtract(cmd *cobra.Command) error {
	since, err := a.resolveSince()
	if err != nil {
		return err
	}

	logger := logging.NewLogger("cli")
	ctx := cmd.Context()

	studies, err := client.New(a.clientConfig())
	if err != nil {
		return fmt.Errorf("create studies client: %w", err)
	}

	s, err := store.New(store.Config{Dir: a.opts.dataDir}, logging.NewLogger("store"))
	if err != nil {
		return err
	}
	defer s.Close()

	cfg := pipeline.Config{
		PageSize: a.opts.pageSize,
		Progress: func(r pipeline.PageResult) {
			logger.Info().
				Int("page", r.Index).
				Str("run_id", r.RunID).
				Int("rows", r.Rows).
				Str("file", r.File).
				Msg("Page stored")
		},
	}

	if a.opts.redisURL != "" {
		l, err := ledger.Open(ctx, a.opts.redisURL, logging.NewLogger("ledger"))
		if err != nil {
			return err
		}
		defer l.Close()
		cfg.Recorder = l
	}

	if since != nil {
		fmt.Fprintf(a.out, "Fetching studies changed from %s onwards...\n", since.Format(client.DateLayout))
	} else {
		fmt.Fprintln(a.out, "Fetching all studies...")
	}

	defer a.pushMetrics(cmd)

	summary, err := pipeline.New(studies, s, cfg).Run(ctx, pipeline.Options{Since: since})
	if err != nil {
		return err
	}

	if summary.Truncated {
		fmt.Fprintf(a.out, "Warning: page chain ended after %d of %d pages.\n", summary.Pages, summary.ExpectedPages)
	}
	fmt.Fprintf(a.out, "Data fetched and stored in %s directory successfully.\n", a.opts.dataDir)
	return nil
}
