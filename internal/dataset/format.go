package dataset

import (
	"fmt"
	"io"
	"strings"

	"assetgraph/internal/apperrors"
)

// Format is a table encoding.
type Format string

const (
	FormatCSV    Format = "csv"
	FormatJSON   Format = "json"
	FormatNDJSON Format = "ndjson"
	FormatYAML   Format = "yaml"
)

// Formats lists the supported encodings.
var Formats = []Format{FormatCSV, FormatJSON, FormatNDJSON, FormatYAML}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", apperrors.Validation("format", fmt.Sprintf("unsupported table format %q", s))
}

// Ext returns the file extension for the format.
func (f Format) Ext() string { return string(f) }

// Encode writes t to w in format f.
func Encode(w io.Writer, f Format, t *Table) error {
	switch f {
	case FormatCSV:
		return encodeCSV(w, t)
	case FormatJSON:
		return encodeJSON(w, t)
	case FormatNDJSON:
		return encodeNDJSON(w, t)
	case FormatYAML:
		return encodeYAML(w, t)
	default:
		return apperrors.Validation("format", fmt.Sprintf("unsupported table format %q", f))
	}
}

// Decode reads a table in format f. Column order follows the source: the CSV
// header, or the order in which keys first appear.
func Decode(r io.Reader, f Format) (*Table, error) {
	switch f {
	case FormatCSV:
		return decodeCSV(r)
	case FormatJSON:
		return decodeJSON(r)
	case FormatNDJSON:
		return decodeNDJSON(r)
	case FormatYAML:
		return decodeYAML(r)
	default:
		return nil, apperrors.Validation("format", fmt.Sprintf("unsupported table format %q", f))
	}
}
