package persist

import (
	"context"

	"assetgraph/internal/asset"
)

// Resource reads and writes payloads of type T keyed by asset id.
type Resource[T any] interface {
	Load(ctx context.Context, id asset.ID) (T, error)
	Save(ctx context.Context, id asset.ID, data T) error
}

// Data adapts a Resource into an asset.DataPersister.
type Data[T any] struct {
	resource Resource[T]
}

// NewData creates a data persister over resource.
func NewData[T any](resource Resource[T]) *Data[T] {
	return &Data[T]{resource: resource}
}

func (p *Data[T]) Register(assets ...asset.DataBinder[T]) {
	for _, a := range assets {
		a.SetDataPersister(p)
	}
}

func (p *Data[T]) Load(ctx context.Context, a asset.DataAsset[T]) error {
	data, err := p.resource.Load(ctx, a.ID())
	if err != nil {
		return err
	}
	a.SetData(data)
	return nil
}

func (p *Data[T]) Save(ctx context.Context, a asset.DataAsset[T]) error {
	return p.resource.Save(ctx, a.ID(), a.Data())
}
