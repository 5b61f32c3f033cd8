package asset

import "context"

// MetaAsset is what a metadata persister reads from and writes into.
type MetaAsset interface {
	ID() ID
	EncodeMeta() ([]byte, error)
	DecodeMeta(data []byte) error
}

// MetaBinder accepts a metadata persister.
type MetaBinder interface {
	SetMetaPersister(p MetaPersister)
}

// MetaPersister stores lifecycle metadata. Implementations live outside the core.
type MetaPersister interface {
	// Register binds the persister onto the given assets. Binding twice is a no-op.
	Register(assets ...MetaBinder)

	// Load replaces the asset's metadata with the stored document.
	// Returns an apperrors.ErrNotStored error if nothing was saved for the id.
	Load(ctx context.Context, a MetaAsset) error

	// Save writes the asset's metadata, overwriting any previous document.
	Save(ctx context.Context, a MetaAsset) error

	// Heartbeat is a liveness signal for monitoring. It has no effect on eligibility.
	Heartbeat(ctx context.Context) error
}

// DataAsset is what a data persister reads from and writes into.
type DataAsset[T any] interface {
	ID() ID
	Data() T
	SetData(data T)
}

// DataBinder accepts a data persister.
type DataBinder[T any] interface {
	SetDataPersister(p DataPersister[T])
}

// DataPersister stores asset payloads of type T.
type DataPersister[T any] interface {
	Register(assets ...DataBinder[T])
	Load(ctx context.Context, a DataAsset[T]) error
	Save(ctx context.Context, a DataAsset[T]) error
}
