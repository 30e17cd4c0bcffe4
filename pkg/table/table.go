// Package table holds the in-memory page table and the CSV page parser.
package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrColumnMismatch is returned when a column list does not fit the table width.
var ErrColumnMismatch = errors.New("column count mismatch")

// utf8BOM is stripped from the start of response bodies.
var utf8BOM = []byte("\ufeff")

// Table is an ordered list of named columns and ordered rows of string cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// New creates an empty table with the given columns.
func New(columns ...string) *Table {
	return &Table{Columns: columns}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Width returns the number of columns.
func (t *Table) Width() int {
	return len(t.Columns)
}

// SetColumns overwrites the column names. The new list must have the same
// length as the current one unless the table is still without columns.
func (t *Table) SetColumns(columns []string) error {
	if len(t.Columns) != 0 && len(columns) != len(t.Columns) {
		return fmt.Errorf("%w: table has %d columns, got %d names",
			ErrColumnMismatch, len(t.Columns), len(columns))
	}
	t.Columns = append([]string(nil), columns...)
	return nil
}

// AppendColumn adds a column holding the same value in every row.
func (t *Table) AppendColumn(name, value string) {
	width := len(t.Columns)
	t.Columns = append(t.Columns, name)
	for i, row := range t.Rows {
		// Short rows are padded so the new value lands under its header.
		for len(row) < width {
			row = append(row, "")
		}
		t.Rows[i] = append(row, value)
	}
}

// Column returns the index of the named column, or -1.
func (t *Table) Column(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Parse reads a comma separated response body. The first record is the
// header. When columns is non-nil it replaces the header, so that every page
// of a run carries the same names as the first one. Records may have a
// different number of fields than the header; they are kept as is.
func Parse(body []byte, columns []string) (*Table, error) {
	body = bytes.TrimPrefix(body, utf8BOM)
	if !utf8.Valid(body) {
		return nil, fmt.Errorf("response body is not valid UTF-8")
	}

	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1
	r.ReuseRecord = false

	header, err := r.Read()
	if err == io.EOF {
		t := &Table{}
		if columns != nil {
			t.Columns = append([]string(nil), columns...)
		}
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	t := &Table{Columns: NormalizeColumns(header)}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(t.Rows)+1, err)
		}
		t.Rows = append(t.Rows, record)
	}

	if columns != nil {
		if err := t.SetColumns(columns); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// WriteCSV writes the table, header first, in CSV format.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if len(t.Columns) > 0 {
		if err := cw.Write(t.Columns); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

// NormalizeColumns returns column names that are non-empty and unique without
// regard to case. An empty name at position i becomes "Unnamed: i"; a repeated
// name gets a ".1", ".2", ... suffix. Names that already qualify are unchanged.
func NormalizeColumns(columns []string) []string {
	out := make([]string, len(columns))
	used := make(map[string]bool, len(columns))
	for i, c := range columns {
		if strings.TrimSpace(c) == "" {
			c = "Unnamed: " + strconv.Itoa(i)
		}
		name := c
		for n := 1; used[strings.ToLower(name)]; n++ {
			name = c + "." + strconv.Itoa(n)
		}
		used[strings.ToLower(name)] = true
		out[i] = name
	}
	return out
}
