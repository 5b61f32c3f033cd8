package dataset

import (
	"errors"
	"fmt"
	"io"
	"math"

	"gopkg.in/yaml.v3"
)

// encodeYAML writes a sequence of mappings. Nodes are built by hand so keys keep
// column order.
func encodeYAML(w io.Writer, t *Table) error {
	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, row := range t.Rows {
		m := &yaml.Node{Kind: yaml.MappingNode}
		for i, c := range t.Columns {
			val, err := yamlCell(row[i])
			if err != nil {
				return fmt.Errorf("encode yaml column %q: %w", c, err)
			}
			m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: c}, val)
		}
		seq.Content = append(seq.Content, m)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(seq); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

// yamlCell encodes a cell, keeping floats distinguishable from integers.
func yamlCell(v any) (*yaml.Node, error) {
	if f, ok := v.(float64); ok && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: formatFloat(f)}, nil
	}
	val := &yaml.Node{}
	if err := val.Encode(v); err != nil {
		return nil, err
	}
	return val, nil
}

func decodeYAML(r io.Reader) (*Table, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return NewTable(), nil
		}
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	t := NewTable()
	if len(doc.Content) == 0 {
		return t, nil
	}
	seq := doc.Content[0]
	if seq.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("decode yaml: expected a sequence of mappings at line %d", seq.Line)
	}
	for n, item := range seq.Content {
		if item.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("decode yaml row %d: expected a mapping at line %d", n, item.Line)
		}
		keys := make([]string, 0, len(item.Content)/2)
		values := make([]any, 0, len(item.Content)/2)
		for i := 0; i+1 < len(item.Content); i += 2 {
			var v any
			if err := item.Content[i+1].Decode(&v); err != nil {
				return nil, fmt.Errorf("decode yaml row %d: %w", n, err)
			}
			keys = append(keys, item.Content[i].Value)
			values = append(values, normalizeYAML(v))
		}
		t.appendRecord(keys, values)
	}
	return t, nil
}

func normalizeYAML(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case uint64:
		return float64(x)
	case float64:
		return x
	case []any:
		for i := range x {
			x[i] = normalizeYAML(x[i])
		}
		return x
	case map[string]any:
		for k := range x {
			x[k] = normalizeYAML(x[k])
		}
		return x
	default:
		return v
	}
}
