// Package dataset provides the tabular payload exchanged between assets and its
// on-disk encodings.
package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Table is an ordered set of named columns and rows of cell values. Cells hold
// nil, bool, int64, float64, string, or nested values decoded from JSON or YAML.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// NewTable creates an empty table with the given columns.
func NewTable(columns ...string) *Table {
	return &Table{Columns: append([]string(nil), columns...), Rows: [][]any{}}
}

// Append adds a row. The number of values must match the number of columns.
func (t *Table) Append(values ...any) error {
	if len(values) != len(t.Columns) {
		return fmt.Errorf("row has %d values, table has %d columns", len(values), len(t.Columns))
	}
	t.Rows = append(t.Rows, append([]any(nil), values...))
	return nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index returns the position of column, or -1.
func (t *Table) Index(column string) int {
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Value returns the cell at row for column.
func (t *Table) Value(row int, column string) (any, bool) {
	i := t.Index(column)
	if i < 0 || row < 0 || row >= len(t.Rows) {
		return nil, false
	}
	return t.Rows[row][i], true
}

// Records returns the rows as column-keyed maps.
func (t *Table) Records() []map[string]any {
	records := make([]map[string]any, 0, t.Len())
	for _, row := range t.Rows {
		rec := make(map[string]any, len(t.Columns))
		for i, c := range t.Columns {
			rec[c] = row[i]
		}
		records = append(records, rec)
	}
	return records
}

// addColumn appends a column, padding existing rows with nil.
func (t *Table) addColumn(name string) int {
	t.Columns = append(t.Columns, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], nil)
	}
	return len(t.Columns) - 1
}

// appendRecord adds a row from key/value pairs, growing the column set for
// unseen keys in first-seen order.
func (t *Table) appendRecord(keys []string, values []any) {
	row := make([]any, len(t.Columns), len(t.Columns)+len(keys))
	for i, k := range keys {
		idx := t.Index(k)
		if idx < 0 {
			idx = t.addColumn(k)
			row = append(row, nil)
		}
		row[idx] = values[i]
	}
	t.Rows = append(t.Rows, row)
}

// Float converts a numeric cell to float64. Numeric strings are accepted.
func Float(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// formatFloat writes f so that it reads back as a float: integral values keep a
// ".0" suffix (2 is written "2.0"), others use the shortest exact form.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if math.IsNaN(f) || math.IsInf(f, 0) || isFloatLiteral(s) {
		return s
	}
	return s + ".0"
}

// isFloatLiteral reports whether a number literal carries a fraction or an
// exponent. Literals without either decode as int64.
func isFloatLiteral(s string) bool {
	return strings.ContainsAny(s, ".eE")
}
