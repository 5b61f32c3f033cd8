package persist

import (
	"encoding/json"
	"errors"
	"testing"

	"assetgraph/internal/apperrors"
	"assetgraph/internal/dataset"
)

func TestUnmarshalResourceSpec(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    ResourceSpec
		wantErr bool
	}{
		{"file", `{"type":"file","dir":"data","format":"ndjson"}`, FileSpec{Dir: "data", Format: dataset.FormatNDJSON}, false},
		{"table", `{"type":"table","if_table_exists":"append","batch":50}`, TableSpec{IfTableExists: TableAppend, Batch: 50}, false},
		{"table defaults", `{"type":"table"}`, TableSpec{}, false},
		{"memory", `{"type":"memory"}`, MemorySpec{}, false},
		{"unknown type", `{"type":"s3"}`, nil, true},
		{"missing type", `{"dir":"x"}`, nil, true},
		{"file without format", `{"type":"file","dir":"data"}`, nil, true},
		{"bad mode", `{"type":"table","if_table_exists":"merge"}`, nil, true},
		{"malformed", `{"type":`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := UnmarshalResourceSpec([]byte(tt.input))
			if tt.wantErr {
				if !errors.Is(err, apperrors.ErrConfiguration) {
					t.Fatalf("expected configuration error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestMarshalResourceSpec(t *testing.T) {
	t.Parallel()
	data, err := MarshalResourceSpec(FileSpec{Dir: "out", Format: dataset.FormatYAML})
	if err != nil {
		t.Fatalf("MarshalResourceSpec: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if m["type"] != "file" || m["dir"] != "out" || m["format"] != "yaml" {
		t.Errorf("unexpected document: %s", data)
	}

	back, err := UnmarshalResourceSpec(data)
	if err != nil {
		t.Fatalf("UnmarshalResourceSpec: %v", err)
	}
	if back != (FileSpec{Dir: "out", Format: dataset.FormatYAML}) {
		t.Errorf("unexpected spec: %#v", back)
	}
}

func TestBuildRecordsResource(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)

	r, err := BuildRecordsResource(FileSpec{Dir: "d", Format: dataset.FormatCSV}, nil)
	if err != nil {
		t.Fatalf("file: %v", err)
	}
	if _, ok := r.(RecordsFile); !ok {
		t.Errorf("expected RecordsFile, got %T", r)
	}

	r, err = BuildRecordsResource(TableSpec{Batch: 10}, db)
	if err != nil {
		t.Fatalf("table: %v", err)
	}
	if rt, ok := r.(RecordsTable); !ok || rt.Batch != 10 || rt.DB != db {
		t.Errorf("unexpected table resource: %#v", r)
	}

	if _, err := BuildRecordsResource(MemorySpec{}, nil); err != nil {
		t.Errorf("memory: %v", err)
	}
	if _, err := BuildRecordsResource(TableSpec{}, nil); !errors.Is(err, apperrors.ErrConfiguration) {
		t.Errorf("expected configuration error without db, got %v", err)
	}
	if _, err := BuildRecordsResource(nil, db); !errors.Is(err, apperrors.ErrConfiguration) {
		t.Errorf("expected configuration error for nil spec, got %v", err)
	}
}
