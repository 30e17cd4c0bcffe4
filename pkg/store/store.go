// Package store writes page tables to gzip-compressed Parquet files and
// reads them back.
//
// Each persisted page becomes its own file, data/cl_run_<run id>.parquet,
// with two provenance columns appended to every row. Files are produced by
// an embedded in-memory DuckDB instance: the table is loaded into a
// VARCHAR-typed DuckDB table and exported with COPY ... (FORMAT parquet).
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Sternrassler/ctgov-extractor/pkg/table"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	_ "github.com/duckdb/duckdb-go/v2"
)

// Provenance columns appended to every persisted row.
const (
	ColumnRunID          = "pipeline_run_id"
	ColumnStartTimestamp = "pipeline_start_timestamp"
)

// DefaultDir is the output directory relative to the working directory.
const DefaultDir = "data"

const filePrefix = "cl_run_"

// ErrInvalidRunID is returned when a run id is not a UUID.
var ErrInvalidRunID = errors.New("invalid run id")

var (
	filesWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ctgov_files_written_total",
		Help: "Total number of Parquet files written",
	})

	rowsWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ctgov_rows_written_total",
		Help: "Total number of rows written to Parquet files",
	})

	persistDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ctgov_persist_duration_seconds",
		Help:    "Time spent writing one page to Parquet",
		Buckets: prometheus.DefBuckets,
	})
)

// Config holds store configuration.
type Config struct {
	// Dir is the directory Parquet files are written to and read from.
	Dir string
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{Dir: DefaultDir}
}

// RunRecord is one page ready to be written.
type RunRecord struct {
	RunID     string
	StartedAt time.Time
	Table     *table.Table
}

// FileName returns the file name for a run id.
func FileName(runID string) string {
	return filePrefix + runID + ".parquet"
}

// Store persists run records through an embedded DuckDB instance.
type Store struct {
	db     *sql.DB
	dir    string
	logger zerolog.Logger
}

// New opens an in-memory DuckDB instance for the store.
func New(cfg Config, logger zerolog.Logger) (*Store, error) {
	if cfg.Dir == "" {
		cfg.Dir = DefaultDir
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	return &Store{
		db:     db,
		dir:    cfg.Dir,
		logger: logger,
	}, nil
}

// Close releases the DuckDB instance.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dir returns the output directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file path for a run id.
func (s *Store) Path(runID string) string {
	return filepath.Join(s.dir, FileName(runID))
}

// Persist appends the provenance columns to rec.Table and writes it to
// <dir>/cl_run_<run id>.parquet, creating the directory when needed. An
// existing file with the same name is overwritten. It returns the path written.
func (s *Store) Persist(ctx context.Context, rec RunRecord) (string, error) {
	if _, err := uuid.Parse(rec.RunID); err != nil {
		return "", fmt.Errorf("%w %q: %v", ErrInvalidRunID, rec.RunID, err)
	}
	if rec.Table == nil {
		return "", fmt.Errorf("persist run %s: table is nil", rec.RunID)
	}

	start := time.Now()

	t := rec.Table
	t.AppendColumn(ColumnRunID, rec.RunID)
	t.AppendColumn(ColumnStartTimestamp, rec.StartedAt.UTC().Format(time.RFC3339Nano))
	// DuckDB identifiers must be non-empty and unique without regard to case.
	t.Columns = table.NormalizeColumns(t.Columns)

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create data directory %s: %w", s.dir, err)
	}

	path := s.Path(rec.RunID)
	if err := s.writeParquet(ctx, stagingTable(rec.RunID), t, path); err != nil {
		return "", fmt.Errorf("persist run %s: %w", rec.RunID, err)
	}

	filesWrittenTotal.Inc()
	rowsWrittenTotal.Add(float64(t.Len()))
	persistDuration.Observe(time.Since(start).Seconds())

	s.logger.Info().
		Str("run_id", rec.RunID).
		Int("rows", t.Len()).
		Str("file", path).
		Msg("Page persisted")

	return path, nil
}

// writeParquet loads t into a staging table on a single connection and
// exports it. The staging table is dropped afterwards.
func (s *Store) writeParquet(ctx context.Context, name string, t *table.Table, path string) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire duckdb connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.ExecContext(ctx, createTableSQL(name, t.Columns)); err != nil {
		return fmt.Errorf("create staging table: %w", err)
	}
	defer func() {
		if _, err := conn.ExecContext(context.Background(), "DROP TABLE IF EXISTS "+quoteIdent(name)); err != nil {
			s.logger.Warn().Err(err).Str("table", name).Msg("Failed to drop staging table")
		}
	}()

	if err := insertRows(ctx, conn, name, t); err != nil {
		return err
	}

	copySQL := fmt.Sprintf("COPY %s TO %s (FORMAT parquet, COMPRESSION gzip)", quoteIdent(name), quoteLiteral(path))
	if _, err := conn.ExecContext(ctx, copySQL); err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}
	return nil
}

func insertRows(ctx context.Context, conn *sql.Conn, name string, t *table.Table) error {
	if t.Len() == 0 {
		return nil
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertSQL(name, len(t.Columns)))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	width := len(t.Columns)
	args := make([]any, width)
	for i, row := range t.Rows {
		if len(row) > width {
			return fmt.Errorf("row %d has %d fields, header has %d", i, len(row), width)
		}
		// Short rows are padded with NULL.
		for j := range args {
			if j < len(row) {
				args[j] = row[j]
			} else {
				args[j] = nil
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}
	return nil
}

// ReadAll loads every cl_run_*.parquet file in the directory into a single
// table. Columns are matched by name; a column missing from a file reads as
// empty. A missing or empty directory yields an empty table.
func (s *Store) ReadAll(ctx context.Context) (*table.Table, error) {
	files, err := filepath.Glob(filepath.Join(s.dir, filePrefix+"*.parquet"))
	if err != nil {
		return nil, fmt.Errorf("list parquet files: %w", err)
	}
	if len(files) == 0 {
		s.logger.Debug().Str("dir", s.dir).Msg("No parquet files found")
		return table.New(), nil
	}

	quoted := make([]string, len(files))
	for i, f := range files {
		quoted[i] = quoteLiteral(f)
	}
	query := fmt.Sprintf("SELECT * FROM read_parquet([%s], union_by_name = true)", strings.Join(quoted, ", "))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read parquet files in %s: %w", s.dir, err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	out := table.New(columns...)
	values := make([]sql.NullString, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row %d: %w", out.Len(), err)
		}
		row := make([]string, len(columns))
		for i, v := range values {
			row[i] = v.String
		}
		out.Rows = append(out.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	s.logger.Info().
		Int("files", len(files)).
		Int("rows", out.Len()).
		Msg("Parquet files loaded")

	return out, nil
}

func stagingTable(runID string) string {
	return "page_" + strings.ReplaceAll(runID, "-", "_")
}

func createTableSQL(name string, columns []string) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = quoteIdent(c) + " VARCHAR"
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(name), strings.Join(defs, ", "))
}

func insertSQL(name string, width int) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", width), ", ")
	return fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(name), placeholders)
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
