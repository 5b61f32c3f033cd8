package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"assetgraph/internal/apperrors"
	"assetgraph/internal/asset"
	"assetgraph/internal/dataset"
)

// DocumentFile stores any payload as a single JSON or YAML document.
type DocumentFile[T any] struct {
	Root   string
	Format dataset.Format
}

func (r DocumentFile[T]) check() error {
	if r.Format != dataset.FormatJSON && r.Format != dataset.FormatYAML {
		return apperrors.Configuration("persist.documentFile", fmt.Sprintf("document format must be json or yaml, got %q", r.Format))
	}
	return nil
}

func (r DocumentFile[T]) Load(ctx context.Context, id asset.ID) (T, error) {
	var v T
	if err := r.check(); err != nil {
		return v, err
	}
	data, err := os.ReadFile(filePath(r.Root, id, r.Format.Ext()))
	if err != nil {
		return v, fmt.Errorf("read document for %s: %w", id, err)
	}
	if r.Format == dataset.FormatYAML {
		err = yaml.Unmarshal(data, &v)
	} else {
		err = json.Unmarshal(data, &v)
	}
	if err != nil {
		return v, fmt.Errorf("decode document for %s: %w", id, err)
	}
	return v, nil
}

func (r DocumentFile[T]) Save(ctx context.Context, id asset.ID, v T) error {
	if err := r.check(); err != nil {
		return err
	}
	var (
		data []byte
		err  error
	)
	if r.Format == dataset.FormatYAML {
		data, err = yaml.Marshal(v)
	} else {
		data, err = json.MarshalIndent(v, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode document for %s: %w", id, err)
	}
	if err := writeFileAtomic(filePath(r.Root, id, r.Format.Ext()), data); err != nil {
		return fmt.Errorf("write document for %s: %w", id, err)
	}
	return nil
}
