// Package pipeline runs one extraction: it fetches every page of the studies
// listing, one page at a time, and persists each page as its own file.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/ctgov-extractor/pkg/client"
	"github.com/Sternrassler/ctgov-extractor/pkg/ledger"
	"github.com/Sternrassler/ctgov-extractor/pkg/logging"
	"github.com/Sternrassler/ctgov-extractor/pkg/pagination"
	"github.com/Sternrassler/ctgov-extractor/pkg/store"
	"github.com/Sternrassler/ctgov-extractor/pkg/table"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// ErrInvalidTotal is returned when the first response carries no usable
// total record count.
var ErrInvalidTotal = errors.New("invalid total count")

var (
	pagesPersistedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ctgov_pages_persisted_total",
		Help: "Total number of pages persisted",
	})

	runsTruncatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ctgov_runs_truncated_total",
		Help: "Total number of runs whose page token chain ended before the expected page count",
	})

	expectedRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ctgov_expected_records",
		Help: "Total record count reported by the API for the last run",
	})
)

// Fetcher fetches a single page.
type Fetcher interface {
	Fetch(ctx context.Context, q client.Query) (*client.Response, error)
}

// Persister writes one page to durable storage and returns its location.
type Persister interface {
	Persist(ctx context.Context, rec store.RunRecord) (string, error)
}

// Recorder keeps an index of persisted pages.
type Recorder interface {
	Record(ctx context.Context, entry ledger.Entry) error
}

// Config holds pipeline configuration.
type Config struct {
	// PageSize is the number of records requested per page.
	PageSize int

	// Recorder, when set, receives one entry per persisted page.
	// Recorder failures are logged and do not abort the run.
	Recorder Recorder

	// Progress, when set, is called after every persisted page.
	Progress func(PageResult)
}

// Options parameterize a single run.
type Options struct {
	// Since restricts the run to studies updated on or after this date.
	// Nil fetches every study.
	Since *time.Time
}

// PageResult describes one persisted page.
type PageResult struct {
	Index   int
	RunID   string
	Rows    int
	File    string
	HasNext bool
}

// Summary describes a finished run.
type Summary struct {
	// TotalCount is the record count reported with the first page.
	TotalCount int

	// ExpectedPages is ceil(TotalCount / page size).
	ExpectedPages int

	// Pages is the number of pages persisted.
	Pages int

	// Rows is the number of data rows persisted.
	Rows int

	// Files lists the files written, in page order.
	Files []string

	// Truncated is set when the token chain ended before ExpectedPages.
	Truncated bool
}

// Pipeline orchestrates fetch, parse and persist for each page.
type Pipeline struct {
	fetcher   Fetcher
	persister Persister
	config    Config
	logger    zerolog.Logger

	newRunID func() string
	now      func() time.Time
}

// New creates a pipeline.
func New(fetcher Fetcher, persister Persister, cfg Config) *Pipeline {
	return &Pipeline{
		fetcher:   fetcher,
		persister: persister,
		config:    cfg,
		logger:    logging.NewLogger("pipeline"),
		newRunID:  uuid.NewString,
		now:       time.Now,
	}
}

// Run performs one extraction.
//
// The first page is fetched once up front; it provides the total count and
// the canonical column names, and is persisted as page 0. Later pages follow
// the page token chain. A page without a next page token ends the run after
// it has been persisted. Any error aborts the run; files already written
// are kept.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Summary, error) {
	query := client.NewQuery(p.config.PageSize)
	if opts.Since != nil {
		query = query.WithSince(*opts.Since)
	}

	first, err := p.fetcher.Fetch(ctx, query)
	if err != nil {
		p.logger.Error().
			Err(err).
			Int("status_code", client.StatusCode(err)).
			Msg("Studies endpoint unreachable")
		return nil, fmt.Errorf("%w: %w", client.ErrUnreachable, err)
	}

	total, err := first.TotalCount()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTotal, err)
	}
	expectedRecords.Set(float64(total))

	firstTable, err := table.Parse(first.Body, nil)
	if err != nil {
		return nil, fmt.Errorf("parse page 0: %w", err)
	}
	columns := firstTable.Columns

	summary := &Summary{
		TotalCount:    total,
		ExpectedPages: pagination.PageCount(total, query.PageSize()),
	}

	p.logger.Info().
		Int("total_count", total).
		Int("expected_pages", summary.ExpectedPages).
		Int("columns", len(columns)).
		Msg("Starting extraction")

	cursor := pagination.NewCursor(p.fetcher, query)
	cursor.Seed(first)

	for i := 0; i < summary.ExpectedPages; i++ {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("run cancelled after %d pages: %w", summary.Pages, err)
		}

		runID := p.newRunID()
		startedAt := p.now().UTC()

		page, ok, err := cursor.Next(ctx)
		if err != nil {
			return summary, err
		}
		if !ok {
			break
		}

		tbl := firstTable
		if page.Index > 0 {
			tbl, err = table.Parse(page.Response.Body, columns)
			if err != nil {
				return summary, fmt.Errorf("parse page %d: %w", page.Index, err)
			}
		}
		rows := tbl.Len()

		file, err := p.persister.Persist(ctx, store.RunRecord{
			RunID:     runID,
			StartedAt: startedAt,
			Table:     tbl,
		})
		if err != nil {
			return summary, fmt.Errorf("persist page %d: %w", page.Index, err)
		}
		pagesPersistedTotal.Inc()

		summary.Pages++
		summary.Rows += rows
		summary.Files = append(summary.Files, file)

		p.record(ctx, ledger.Entry{
			RunID:     runID,
			Page:      page.Index,
			Rows:      rows,
			File:      file,
			StartedAt: startedAt,
		})

		if p.config.Progress != nil {
			p.config.Progress(PageResult{
				Index:   page.Index,
				RunID:   runID,
				Rows:    rows,
				File:    file,
				HasNext: page.HasNext,
			})
		}

		if !page.HasNext {
			if i < summary.ExpectedPages-1 {
				summary.Truncated = true
				runsTruncatedTotal.Inc()
				p.logger.Warn().
					Int("page", page.Index).
					Int("expected_pages", summary.ExpectedPages).
					Msg("Page token chain ended early")
			}
			break
		}
	}

	p.logger.Info().
		Int("pages", summary.Pages).
		Int("rows", summary.Rows).
		Bool("truncated", summary.Truncated).
		Msg("Extraction finished")

	return summary, nil
}

func (p *Pipeline) record(ctx context.Context, entry ledger.Entry) {
	if p.config.Recorder == nil {
		return
	}
	if err := p.config.Recorder.Record(ctx, entry); err != nil {
		p.logger.Warn().
			Err(err).
			Str("run_id", entry.RunID).
			Int("page", entry.Page).
			Msg("Failed to record ledger entry")
	}
}
