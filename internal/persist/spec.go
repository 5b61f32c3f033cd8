package persist

import (
	"encoding/json"
	"fmt"

	"assetgraph/internal/apperrors"
	"assetgraph/internal/dataset"
)

// ResourceSpec selects where a data persister keeps payloads. The set of
// variants is closed: FileSpec, TableSpec and MemorySpec.
type ResourceSpec interface {
	ResourceType() string
	Validate() error
}

// FileSpec stores records as files below Dir.
type FileSpec struct {
	Dir    string         `json:"dir"`
	Format dataset.Format `json:"format"`
}

// TableSpec stores records as SQLite tables in the shared database.
type TableSpec struct {
	IfTableExists TableMode `json:"if_table_exists,omitempty"`
	Batch         int       `json:"batch,omitempty"`
}

// MemorySpec keeps payloads in process memory.
type MemorySpec struct{}

func (FileSpec) ResourceType() string   { return "file" }
func (TableSpec) ResourceType() string  { return "table" }
func (MemorySpec) ResourceType() string { return "memory" }

func (s FileSpec) Validate() error {
	if s.Dir == "" {
		return apperrors.Validation("dir", "file resource requires a directory")
	}
	_, err := dataset.ParseFormat(string(s.Format))
	return err
}

func (s TableSpec) Validate() error {
	if s.IfTableExists != "" && !s.IfTableExists.Valid() {
		return apperrors.Validation("if_table_exists", fmt.Sprintf("must be replace, append or fail, got %q", s.IfTableExists))
	}
	if s.Batch < 0 {
		return apperrors.Validation("batch", "must not be negative")
	}
	return nil
}

func (MemorySpec) Validate() error { return nil }

type envelope struct {
	Type string `json:"type"`
}

// UnmarshalResourceSpec decodes a {"type": ...} document into its variant.
func UnmarshalResourceSpec(data []byte) (ResourceSpec, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, apperrors.Configuration("persist.resourceSpec", fmt.Sprintf("failed to determine resource type: %v", err))
	}

	var spec ResourceSpec
	switch env.Type {
	case "file":
		s := FileSpec{}
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, apperrors.Configuration("persist.resourceSpec", fmt.Sprintf("failed to unmarshal file resource: %v", err))
		}
		spec = s
	case "table":
		s := TableSpec{}
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, apperrors.Configuration("persist.resourceSpec", fmt.Sprintf("failed to unmarshal table resource: %v", err))
		}
		spec = s
	case "memory":
		spec = MemorySpec{}
	default:
		return nil, apperrors.Configuration("persist.resourceSpec", fmt.Sprintf("unknown resource type: %q", env.Type))
	}

	if err := spec.Validate(); err != nil {
		return nil, apperrors.Configuration("persist.resourceSpec", err.Error())
	}
	return spec, nil
}

// MarshalResourceSpec encodes a spec with its type field included.
func MarshalResourceSpec(s ResourceSpec) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	m["type"] = s.ResourceType()
	return json.Marshal(m)
}

// BuildRecordsResource builds the table resource for spec. TableSpec needs db.
func BuildRecordsResource(spec ResourceSpec, db *DB) (Resource[*dataset.Table], error) {
	if spec == nil {
		return nil, apperrors.Configuration("persist.build", "resource spec is required")
	}
	if err := spec.Validate(); err != nil {
		return nil, apperrors.Configuration("persist.build", err.Error())
	}
	switch s := spec.(type) {
	case FileSpec:
		format, _ := dataset.ParseFormat(string(s.Format))
		return RecordsFile{Root: s.Dir, Format: format}, nil
	case TableSpec:
		if db == nil {
			return nil, apperrors.Configuration("persist.build", "table resource requires a database")
		}
		return RecordsTable{DB: db, IfTableExists: s.IfTableExists, Batch: s.Batch}, nil
	case MemorySpec:
		return NewMemory[*dataset.Table](), nil
	default:
		return nil, apperrors.Configuration("persist.build", fmt.Sprintf("unsupported resource type %q", spec.ResourceType()))
	}
}
