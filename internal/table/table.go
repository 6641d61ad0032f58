// Package table reads, writes and inspects the CSV resolution tables the
// geocoding pipeline operates on. Column order and unknown columns are
// preserved across a load/save round trip.
package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Table is an in-memory tabular dataset with a header row.
type Table struct {
	Header []string
	Rows   [][]string

	index map[string]int
}

// New builds a Table with every row at the header width. Short rows are
// padded; rows wider than the header widen it with "extra_N" columns so no
// cell is dropped or overwritten later.
func New(header []string, rows [][]string) *Table {
	width := len(header)
	for _, row := range rows {
		width = max(width, len(row))
	}
	for i := len(header); i < width; i++ {
		header = append(header, fmt.Sprintf("extra_%d", i+1))
	}

	t := &Table{Header: header, Rows: rows}
	t.reindex()
	for i, row := range t.Rows {
		if len(row) < width {
			padded := make([]string, width)
			copy(padded, row)
			t.Rows[i] = padded
		}
	}
	return t
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Header))
	for i, col := range t.Header {
		name := strings.TrimSpace(col)
		if _, dup := t.index[name]; !dup {
			t.index[name] = i
		}
	}
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Col returns the index of the named column.
func (t *Table) Col(name string) (int, bool) {
	idx, ok := t.index[name]
	return idx, ok
}

// HasCol reports whether the named column exists.
func (t *Table) HasCol(name string) bool {
	_, ok := t.index[name]
	return ok
}

// MissingCols returns the named columns the table lacks, in argument order.
func (t *Table) MissingCols(cols ...string) []string {
	var missing []string
	for _, c := range cols {
		if !t.HasCol(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// Require returns an error listing every named column the table lacks.
func (t *Table) Require(cols ...string) error {
	if missing := t.MissingCols(cols...); len(missing) > 0 {
		return eris.Errorf("table: missing columns %v", missing)
	}
	return nil
}

// EnsureColumn appends an empty column when name is absent and returns its index.
func (t *Table) EnsureColumn(name string) int {
	if idx, ok := t.index[name]; ok {
		return idx
	}
	t.Header = append(t.Header, name)
	idx := len(t.Header) - 1
	t.index[name] = idx
	for i, row := range t.Rows {
		if len(row) <= idx {
			padded := make([]string, idx+1)
			copy(padded, row)
			t.Rows[i] = padded
		}
	}
	return idx
}

// Get returns the trimmed cell value, or "" when the column does not exist.
func (t *Table) Get(row int, col string) string {
	idx, ok := t.index[col]
	if !ok || idx >= len(t.Rows[row]) {
		return ""
	}
	return strings.TrimSpace(t.Rows[row][idx])
}

// Set writes a cell value, adding the column if needed.
func (t *Table) Set(row int, col, value string) {
	idx := t.EnsureColumn(col)
	t.Rows[row][idx] = value
}

// Subset returns a new table with the same header and copies of the given rows.
func (t *Table) Subset(rows []int) *Table {
	header := append([]string(nil), t.Header...)
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, append([]string(nil), t.Rows[r]...))
	}
	return New(header, out)
}

// Load reads a table from path. Files ending in .xlsx are read as
// spreadsheets (first sheet), everything else as CSV.
func Load(path string) (*Table, error) {
	if isXLSX(path) {
		return loadXLSX(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "table: open")
	}
	defer f.Close() //nolint:errcheck

	t, err := ReadCSV(f)
	if err != nil {
		return nil, eris.Wrapf(err, "table: load %s", path)
	}
	return t, nil
}

// ReadCSV parses a CSV stream whose first record is the header.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "table: read csv")
	}
	if len(records) == 0 {
		return nil, eris.New("table: csv has no header")
	}

	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	return New(header, records[1:]), nil
}

// WriteCSV writes the header and all rows as CSV.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return eris.Wrap(err, "table: write header")
	}
	for _, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "table: write row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "table: flush csv")
}

// Save writes the table to path atomically: the data goes to a temp file in
// the same directory which then replaces path.
func Save(path string, t *Table) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrap(err, "table: create temp file")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck

	if isXLSX(path) {
		_ = tmp.Close()
		if err := saveXLSX(tmpPath, t); err != nil {
			return err
		}
	} else {
		if err := t.WriteCSV(tmp); err != nil {
			_ = tmp.Close()
			return eris.Wrapf(err, "table: save %s", path)
		}
		if err := tmp.Close(); err != nil {
			return eris.Wrap(err, "table: close temp file")
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return eris.Wrapf(err, "table: replace %s", path)
	}
	return nil
}

func isXLSX(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".xlsx")
}
