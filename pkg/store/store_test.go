package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sternrassler/ctgov-extractor/pkg/table"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	s, err := New(Config{Dir: filepath.Join(t.TempDir(), "data")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleTable() *table.Table {
	return &table.Table{
		Columns: []string{"NCT Number", "Study Title", "Study Status"},
		Rows: [][]string{
			{"NCT00000001", "Aspirin, \"low dose\" trial", "COMPLETED"},
			{"NCT00000002", "Line one\nline two", "RECRUITING"},
		},
	}
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "cl_run_abc.parquet", FileName("abc"))
}

func TestDefaultConfig(t *testing.T) {
	assert.Equal(t, "data", DefaultConfig().Dir)
}

func TestPersist_InvalidRunID(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Persist(context.Background(), RunRecord{RunID: "not-a-uuid", Table: sampleTable()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRunID))

	_, statErr := os.Stat(s.Dir())
	assert.True(t, os.IsNotExist(statErr), "no directory should be created for a rejected record")
}

func TestPersist_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	runID := uuid.NewString()
	started := time.Date(2024, 4, 10, 9, 15, 30, 123456000, time.UTC)

	path, err := s.Persist(ctx, RunRecord{RunID: runID, StartedAt: started, Table: sampleTable()})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Dir(), "cl_run_"+runID+".parquet"), path)
	assert.FileExists(t, path)

	got, err := s.ReadAll(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"NCT Number", "Study Title", "Study Status", ColumnRunID, ColumnStartTimestamp}, got.Columns)
	require.Equal(t, 2, got.Len())

	assert.Equal(t, "NCT00000001", got.Rows[0][0])
	assert.Equal(t, "Aspirin, \"low dose\" trial", got.Rows[0][1])
	assert.Equal(t, "Line one\nline two", got.Rows[1][1])
	for _, row := range got.Rows {
		assert.Equal(t, runID, row[3])
		assert.Equal(t, "2024-04-10T09:15:30.123456Z", row[4])
	}
}

func TestPersist_ConvertsTimestampToUTC(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	local := time.Date(2024, 4, 10, 11, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	_, err := s.Persist(ctx, RunRecord{RunID: uuid.NewString(), StartedAt: local, Table: sampleTable()})
	require.NoError(t, err)

	got, err := s.ReadAll(ctx)
	require.NoError(t, err)
	idx := got.Column(ColumnStartTimestamp)
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, "2024-04-10T09:00:00Z", got.Rows[0][idx])
}

func TestPersist_EmptyTable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	path, err := s.Persist(ctx, RunRecord{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Table:     table.New("NCT Number"),
	})
	require.NoError(t, err)
	assert.FileExists(t, path)

	got, err := s.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
	assert.Equal(t, []string{"NCT Number", ColumnRunID, ColumnStartTimestamp}, got.Columns)
}

func TestPersist_ShortRowPadded(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tbl := &table.Table{
		Columns: []string{"a", "b"},
		Rows:    [][]string{{"1"}},
	}
	_, err := s.Persist(ctx, RunRecord{RunID: uuid.NewString(), StartedAt: time.Now(), Table: tbl})
	require.NoError(t, err)

	got, err := s.ReadAll(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, "1", got.Rows[0][0])
	assert.Equal(t, "", got.Rows[0][1])
}

func TestPersist_LongRowRejected(t *testing.T) {
	s := newTestStore(t)

	tbl := &table.Table{
		Columns: []string{"a"},
		Rows:    [][]string{{"1", "2", "3", "4"}},
	}
	_, err := s.Persist(context.Background(), RunRecord{RunID: uuid.NewString(), StartedAt: time.Now(), Table: tbl})
	assert.Error(t, err)
}

func TestPersist_DistinctFiles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 3; i++ {
		path, err := s.Persist(ctx, RunRecord{RunID: uuid.NewString(), StartedAt: time.Now(), Table: sampleTable()})
		require.NoError(t, err)
		assert.False(t, seen[path], "file name reused: %s", path)
		seen[path] = true
	}

	files, err := filepath.Glob(filepath.Join(s.Dir(), "cl_run_*.parquet"))
	require.NoError(t, err)
	assert.Len(t, files, 3)

	got, err := s.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, got.Len())
}

func TestPersist_QuotedIdentifiers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tbl := &table.Table{
		Columns: []string{`Odd "name"`, "select"},
		Rows:    [][]string{{"x", "y"}},
	}
	_, err := s.Persist(ctx, RunRecord{RunID: uuid.NewString(), StartedAt: time.Now(), Table: tbl})
	require.NoError(t, err)

	got, err := s.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, `Odd "name"`, got.Columns[0])
	assert.Equal(t, "select", got.Columns[1])
}

func TestReadAll_MissingDir(t *testing.T) {
	s := newTestStore(t)

	got, err := s.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
	assert.Empty(t, got.Columns)
}

func TestReadAll_IgnoresOtherFiles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Persist(ctx, RunRecord{RunID: uuid.NewString(), StartedAt: time.Now(), Table: sampleTable()})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "notes.txt"), []byte("ignore me"), 0o644))

	got, err := s.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Len())
}

func TestSQLHelpers(t *testing.T) {
	assert.Equal(t, `"a""b"`, quoteIdent(`a"b`))
	assert.Equal(t, `'it''s'`, quoteLiteral("it's"))
	assert.Equal(t, `INSERT INTO "t" VALUES (?, ?, ?)`, insertSQL("t", 3))
	assert.Equal(t, `CREATE TABLE "t" ("a" VARCHAR, "b" VARCHAR)`, createTableSQL("t", []string{"a", "b"}))
	assert.Equal(t, "page_0b0e7c36_4f43", stagingTable("0b0e7c36-4f43"))
}

func TestPersist_EmptyAndCaseDuplicateColumns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tbl := &table.Table{
		Columns: []string{"", "Phase", "phase"},
		Rows:    [][]string{{"0", "PHASE1", "phase1"}},
	}
	_, err := s.Persist(ctx, RunRecord{RunID: uuid.NewString(), StartedAt: time.Now(), Table: tbl})
	require.NoError(t, err)

	got, err := s.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Unnamed: 0", "Phase", "phase.1", ColumnRunID, ColumnStartTimestamp}, got.Columns)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, []string{"0", "PHASE1", "phase1"}, got.Rows[0][:3])
}
