package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Sternrassler/ctgov-extractor/pkg/client"
	"github.com/Sternrassler/ctgov-extractor/pkg/logging"
	"github.com/Sternrassler/ctgov-extractor/pkg/metrics"
	"github.com/Sternrassler/ctgov-extractor/pkg/ratelimit"
	"github.com/Sternrassler/ctgov-extractor/pkg/store"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

// errReported marks errors whose message has already been shown to the user.
var errReported = errors.New("reported")

// options holds the resolved command line configuration.
type options struct {
	baseURL        string
	userAgent      string
	dataDir        string
	pageSize       int
	rateLimit      float64
	maxRetries     int
	timeout        time.Duration
	redisURL       string
	pushgatewayURL string
	logLevel       string
	logPretty      bool

	since    string
	noPrompt bool
}

type app struct {
	opts       options
	in         io.Reader
	out        io.Writer
	isTerminal func() bool
}

func newApp(in io.Reader, out io.Writer) *app {
	return &app{
		in:  in,
		out: out,
		isTerminal: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd()))
		},
	}
}

func newRootCmd(a *app) *cobra.Command {
	o := &a.opts

	rootCmd := &cobra.Command{
		Use:   "ctgov-extract",
		Short: "Extract ClinicalTrials.gov studies to Parquet",
		Long: "Fetches the ClinicalTrials.gov v2 study listing page by page and writes each page\n" +
			"to <data-dir>/cl_run_<run id>.parquet. Without a subcommand it behaves like 'run'.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, err := logging.ParseLevel(o.logLevel)
			if err != nil {
				return err
			}
			logging.Setup(logging.Config{
				Level:  level,
				Pretty: o.logPretty,
				Output: os.Stderr,
			})
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runExtract(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&o.baseURL, "base-url", getEnv("CTGOV_BASE_URL", client.DefaultBaseURL), "Studies endpoint URL")
	flags.StringVar(&o.userAgent, "user-agent", getEnv("CTGOV_USER_AGENT", client.DefaultConfig().UserAgent), "User-Agent header")
	flags.StringVar(&o.dataDir, "data-dir", getEnv("CTGOV_DATA_DIR", store.DefaultDir), "Directory for Parquet files")
	flags.IntVar(&o.pageSize, "page-size", getEnvInt("CTGOV_PAGE_SIZE", client.DefaultPageSize), "Records per page (max 1000)")
	flags.Float64Var(&o.rateLimit, "rate-limit", getEnvFloat("CTGOV_RATE_LIMIT", 0), "Requests per second, 0 disables pacing")
	flags.IntVar(&o.maxRetries, "max-retries", getEnvInt("CTGOV_MAX_RETRIES", 0), "Retries for server, rate limit and network errors")
	flags.DurationVar(&o.timeout, "timeout", getEnvDuration("CTGOV_TIMEOUT", 0), "Per-request timeout, 0 disables it")
	flags.StringVar(&o.redisURL, "redis-url", getEnv("REDIS_URL", ""), "Redis URL for the run ledger (optional)")
	flags.StringVar(&o.pushgatewayURL, "pushgateway-url", getEnv("PUSHGATEWAY_URL", ""), "Prometheus Pushgateway URL (optional)")
	flags.StringVar(&o.logLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	flags.BoolVar(&o.logPretty, "log-pretty", getEnvBool("LOG_PRETTY", false), "Human-readable log output")

	addRunFlags(rootCmd.Flags(), o)

	rootCmd.AddCommand(newRunCmd(a))
	rootCmd.AddCommand(newReadCmd(a))
	rootCmd.AddCommand(newRunsCmd(a))

	return rootCmd
}

func addRunFlags(fs *pflag.FlagSet, o *options) {
	fs.StringVar(&o.since, "since", "", "Only fetch studies updated on or after this date (YYYY-MM-DD)")
	fs.BoolVar(&o.noPrompt, "no-prompt", false, "Do not read a date from standard input")
}

func (a *app) clientConfig() client.Config {
	cfg := client.DefaultConfig()
	cfg.BaseURL = a.opts.baseURL
	cfg.UserAgent = a.opts.userAgent
	cfg.Timeout = a.opts.timeout
	cfg.MaxRetries = a.opts.maxRetries
	if a.opts.rateLimit > 0 {
		cfg.RateLimit = ratelimit.Config{RequestsPerSecond: a.opts.rateLimit, Burst: 1}
	}
	return cfg
}

// pushMetrics sends the run metrics to the Pushgateway when one is configured.
func (a *app) pushMetrics(cmd *cobra.Command) {
	if a.opts.pushgatewayURL == "" {
		return
	}
	instance, _ := os.Hostname()
	if err := metrics.Push(cmd.Context(), a.opts.pushgatewayURL, metrics.DefaultJob, instance); err != nil {
		log.Warn().Err(err).Msg("Failed to push metrics")
		return
	}
	log.Debug().Str("url", a.opts.pushgatewayURL).Msg("Metrics pushed")
}

func printColumns(w io.Writer, columns []string) {
	for i, c := range columns {
		fmt.Fprintf(w, "  %3d  %s\n", i+1, c)
	}
}
