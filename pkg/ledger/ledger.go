// Package ledger keeps a Redis index of the pages persisted by each run.
//
// Every persisted page produces one entry: the run identifier, the page
// position, the row count, the file written and the run start time. Entries
// are stored as a hash per run id plus a list that preserves write order,
// so operators can trace a Parquet file back to the extraction that wrote it.
package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Redis keys.
const (
	// KeyRuns is the list of run ids in write order.
	KeyRuns = "ctgov:runs"

	// KeyRunPrefix prefixes the per-run hash.
	KeyRunPrefix = "ctgov:run:"
)

// Hash fields of a run entry.
const (
	fieldPage      = "page"
	fieldRows      = "rows"
	fieldFile      = "file"
	fieldStartedAt = "started_at"
)

var ledgerWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ctgov_ledger_writes_total",
	Help: "Total number of ledger writes by result",
}, []string{"result"})

// Entry describes one persisted page.
type Entry struct {
	RunID     string
	Page      int
	Rows      int
	File      string
	StartedAt time.Time
}

// RunKey returns the hash key for a run id.
func RunKey(runID string) string {
	return KeyRunPrefix + runID
}

func (e Entry) fields() map[string]interface{} {
	return map[string]interface{}{
		fieldPage:      e.Page,
		fieldRows:      e.Rows,
		fieldFile:      e.File,
		fieldStartedAt: e.StartedAt.UTC().Format(time.RFC3339Nano),
	}
}

func entryFromFields(runID string, values map[string]string) (Entry, error) {
	entry := Entry{RunID: runID, File: values[fieldFile]}

	var err error
	if entry.Page, err = strconv.Atoi(values[fieldPage]); err != nil {
		return Entry{}, fmt.Errorf("parse page of run %s: %w", runID, err)
	}
	if entry.Rows, err = strconv.Atoi(values[fieldRows]); err != nil {
		return Entry{}, fmt.Errorf("parse rows of run %s: %w", runID, err)
	}
	if entry.StartedAt, err = time.Parse(time.RFC3339Nano, values[fieldStartedAt]); err != nil {
		return Entry{}, fmt.Errorf("parse started_at of run %s: %w", runID, err)
	}
	return entry, nil
}

// Ledger writes run entries to Redis.
type Ledger struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// New creates a ledger on an existing Redis client.
func New(redisClient *redis.Client, logger zerolog.Logger) *Ledger {
	return &Ledger{
		redis:  redisClient,
		logger: logger,
	}
}

// Open connects to the Redis server at rawURL (redis://[user:pass@]host:port/db)
// and verifies the connection.
func Open(ctx context.Context, rawURL string, logger zerolog.Logger) (*Ledger, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	redisClient := redis.NewClient(opts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisClient.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}

	return New(redisClient, logger), nil
}

// Close closes the underlying Redis client.
func (l *Ledger) Close() error {
	return l.redis.Close()
}

// Record stores one entry. The hash and the list are written in one pipeline.
func (l *Ledger) Record(ctx context.Context, entry Entry) error {
	if entry.RunID == "" {
		return fmt.Errorf("record ledger entry: run id is required")
	}

	pipe := l.redis.TxPipeline()
	pipe.HSet(ctx, RunKey(entry.RunID), entry.fields())
	pipe.RPush(ctx, KeyRuns, entry.RunID)

	if _, err := pipe.Exec(ctx); err != nil {
		ledgerWritesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("store ledger entry for run %s: %w", entry.RunID, err)
	}
	ledgerWritesTotal.WithLabelValues("ok").Inc()

	l.logger.Debug().
		Str("run_id", entry.RunID).
		Int("page", entry.Page).
		Int("rows", entry.Rows).
		Str("file", entry.File).
		Msg("Ledger entry recorded")

	return nil
}

// List returns all entries in write order. Run ids whose hash has been
// removed are skipped.
func (l *Ledger) List(ctx context.Context) ([]Entry, error) {
	ids, err := l.redis.LRange(ctx, KeyRuns, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list run ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := l.redis.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, RunKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("load ledger entries: %w", err)
	}

	entries := make([]Entry, 0, len(ids))
	for i, cmd := range cmds {
		values := cmd.Val()
		if len(values) == 0 {
			l.logger.Warn().Str("run_id", ids[i]).Msg("Ledger entry missing, skipping")
			continue
		}
		entry, err := entryFromFields(ids[i], values)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, nil
}
