package persist

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"assetgraph/internal/asset"
	"assetgraph/internal/dataset"
)

// RecordsFile stores tables as <root>/<id path>.<format>.
type RecordsFile struct {
	Root   string
	Format dataset.Format
}

// Path returns the file holding the records of id.
func (r RecordsFile) Path(id asset.ID) string {
	return filePath(r.Root, id, r.Format.Ext())
}

func (r RecordsFile) Load(ctx context.Context, id asset.ID) (*dataset.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(r.Path(id))
	if err != nil {
		return nil, fmt.Errorf("open records for %s: %w", id, err)
	}
	defer f.Close()

	t, err := dataset.Decode(f, r.Format)
	if err != nil {
		return nil, fmt.Errorf("records for %s: %w", id, err)
	}
	return t, nil
}

func (r RecordsFile) Save(ctx context.Context, id asset.ID, t *dataset.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t == nil {
		t = dataset.NewTable()
	}
	var buf bytes.Buffer
	if err := dataset.Encode(&buf, r.Format, t); err != nil {
		return fmt.Errorf("records for %s: %w", id, err)
	}
	if err := writeFileAtomic(r.Path(id), buf.Bytes()); err != nil {
		return fmt.Errorf("write records for %s: %w", id, err)
	}
	return nil
}
