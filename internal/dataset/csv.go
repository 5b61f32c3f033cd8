package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Separator is the CSV field delimiter.
const Separator = ';'

func encodeCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	cw.Comma = Separator
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("encode csv: %w", err)
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, v := range row {
			record[i] = formatCell(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("encode csv: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// decodeCSV types cells on read: empty cells become nil, true/false bool,
// canonical integers ("42", not "042" or "+42") int64, numbers with a fraction
// or exponent float64, everything else string. CSV carries no types, so a
// string cell that reads exactly like one of those comes back typed.
func decodeCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = Separator

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return NewTable(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("decode csv header: %w", err)
	}
	t := NewTable(header...)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return t, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode csv: %w", err)
		}
		row := make([]any, len(record))
		for i, cell := range record {
			row[i] = parseCell(cell)
		}
		t.Rows = append(t.Rows, row)
	}
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return formatFloat(x)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

func parseCell(s string) any {
	if s == "" {
		return nil
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if !numeric(s[0]) {
		return s
	}
	if isFloatLiteral(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return s
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil && strconv.FormatInt(i, 10) == s {
		return i
	}
	return s
}

func numeric(c byte) bool {
	return c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9')
}
