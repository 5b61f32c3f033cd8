package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
)

func encodeJSON(w io.Writer, t *Table) error {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, row := range t.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString("\n  ")
		if err := writeObject(&buf, t.Columns, row); err != nil {
			return err
		}
	}
	if len(t.Rows) > 0 {
		buf.WriteByte('\n')
	}
	buf.WriteString("]\n")
	_, err := w.Write(buf.Bytes())
	return err
}

func encodeNDJSON(w io.Writer, t *Table) error {
	bw := bufio.NewWriter(w)
	var buf bytes.Buffer
	for _, row := range t.Rows {
		buf.Reset()
		if err := writeObject(&buf, t.Columns, row); err != nil {
			return err
		}
		buf.WriteByte('\n')
		if _, err := bw.Write(buf.Bytes()); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// writeObject writes one row as a JSON object with keys in column order.
func writeObject(buf *bytes.Buffer, columns []string, row []any) error {
	buf.WriteByte('{')
	for i, c := range columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("encode json key %q: %w", c, err)
		}
		val, err := marshalCell(row[i])
		if err != nil {
			return fmt.Errorf("encode json column %q: %w", c, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return nil
}

// marshalCell encodes a cell, keeping floats distinguishable from integers.
func marshalCell(v any) ([]byte, error) {
	if f, ok := v.(float64); ok && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return []byte(formatFloat(f)), nil
	}
	return json.Marshal(v)
}

func decodeJSON(r io.Reader) (*Table, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if errors.Is(err, io.EOF) {
		return NewTable(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, fmt.Errorf("decode json: expected array of objects, got %v", tok)
	}

	t := NewTable()
	for dec.More() {
		keys, values, err := readObject(dec)
		if err != nil {
			return nil, fmt.Errorf("decode json row %d: %w", t.Len(), err)
		}
		t.appendRecord(keys, values)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return t, nil
}

func decodeNDJSON(r io.Reader) (*Table, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	t := NewTable()
	for {
		keys, values, err := readObject(dec)
		if errors.Is(err, io.EOF) {
			return t, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode ndjson line %d: %w", t.Len()+1, err)
		}
		t.appendRecord(keys, values)
	}
}

// readObject reads one JSON object, keeping its keys in source order.
func readObject(dec *json.Decoder) ([]string, []any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("expected object, got %v", tok)
	}

	var keys []string
	var values []any
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("expected object key, got %v", tok)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, nil, err
		}
		keys = append(keys, key)
		values = append(values, normalizeJSON(v))
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return keys, values, nil
}

func normalizeJSON(v any) any {
	switch x := v.(type) {
	case json.Number:
		if !isFloatLiteral(x.String()) {
			if i, err := x.Int64(); err == nil {
				return i
			}
		}
		f, err := x.Float64()
		if err != nil {
			return x.String()
		}
		return f
	case []any:
		for i := range x {
			x[i] = normalizeJSON(x[i])
		}
		return x
	case map[string]any:
		for k := range x {
			x[k] = normalizeJSON(x[k])
		}
		return x
	default:
		return v
	}
}
