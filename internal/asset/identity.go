package asset

import (
	"path"
	"regexp"
	"strings"

	"assetgraph/internal/apperrors"
)

const maxIDLength = 200

// idPattern allows dot-separated segments of letters, digits and underscores,
// each segment starting with a letter. Validate also rejects "__", which
// TableName reserves as the segment separator.
var idPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*(\.[A-Za-z][A-Za-z0-9_]*)*$`)

// ID identifies one asset within a registry, e.g. "sales.daily_orders".
// Persisters derive storage locations from it deterministically.
type ID string

func (id ID) String() string { return string(id) }

// Validate checks that the id is usable as a registry key and storage location.
func (id ID) Validate() error {
	if id == "" {
		return apperrors.Validation("id", "asset ID is required")
	}
	if len(id) > maxIDLength {
		return apperrors.Validation("id", "asset ID exceeds maximum length")
	}
	if !idPattern.MatchString(string(id)) {
		return apperrors.Validation("id", "asset ID "+string(id)+" must be dot-separated identifiers")
	}
	if strings.Contains(string(id), "__") {
		return apperrors.Validation("id", "asset ID "+string(id)+" must not contain a double underscore")
	}
	return nil
}

// Segments splits the id on dots.
func (id ID) Segments() []string {
	return strings.Split(string(id), ".")
}

// Path returns the slash-separated relative storage path for the id, with an
// optional extension: ID("sales.daily").Path("json") == "sales/daily.json".
func (id ID) Path(ext string) string {
	p := path.Join(id.Segments()...)
	if ext == "" {
		return p
	}
	return p + "." + strings.TrimPrefix(ext, ".")
}

// TableName returns a SQL-safe table name: ID("sales.daily").TableName() == "sales__daily".
// Distinct valid ids give distinct names: segments start with a letter and never
// contain "__", so a separator is the "__" directly followed by a letter.
func (id ID) TableName() string {
	return strings.Join(id.Segments(), "__")
}

// IDs converts strings to ids.
func IDs(values ...string) []ID {
	ids := make([]ID, len(values))
	for i, v := range values {
		ids[i] = ID(v)
	}
	return ids
}
