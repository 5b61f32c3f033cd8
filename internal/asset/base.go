package asset

import (
	"context"
	"errors"
	"log/slog"

	"assetgraph/internal/apperrors"
)

// Base binds an identity, a metadata document and a payload, and delegates storage to
// the bound persisters. Assets without upstream dependencies use Base directly; their
// payload is produced outside the graph and handed over with SetData.
type Base[M MetaDocument, T any] struct {
	id          ID
	meta        M
	data        T
	defaultMeta func() M
	// onDecode, when set, adjusts a freshly decoded document before it replaces
	// the current one.
	onDecode func(M)

	metaPersister MetaPersister
	dataPersister DataPersister[T]
}

// NewBase creates an asset with plain lifecycle metadata.
func NewBase[T any](id ID) *Base[*Meta, T] {
	return newBase[*Meta, T](id, NewMeta)
}

func newBase[M MetaDocument, T any](id ID, defaultMeta func() M) *Base[M, T] {
	return &Base[M, T]{
		id:          id,
		meta:        defaultMeta(),
		defaultMeta: defaultMeta,
	}
}

func (b *Base[M, T]) ID() ID           { return b.id }
func (b *Base[M, T]) Meta() M          { return b.meta }
func (b *Base[M, T]) Lifecycle() *Meta { return b.meta.Lifecycle() }
func (b *Base[M, T]) Data() T          { return b.data }
func (b *Base[M, T]) SetData(data T)   { b.data = data }
func (b *Base[M, T]) Payload() any     { return b.data }

// ResetMeta replaces the metadata with a fresh INITIALIZED document.
func (b *Base[M, T]) ResetMeta() M {
	b.meta = b.defaultMeta()
	return b.meta
}

// EncodeMeta serializes the current metadata document.
func (b *Base[M, T]) EncodeMeta() ([]byte, error) {
	return EncodeMeta(b.meta)
}

// DecodeMeta replaces the current metadata with the decoded document. On error the
// current metadata is left untouched.
func (b *Base[M, T]) DecodeMeta(data []byte) error {
	doc := b.defaultMeta()
	if err := DecodeMeta(data, doc); err != nil {
		return err
	}
	if b.onDecode != nil {
		b.onDecode(doc)
	}
	b.meta = doc
	return nil
}

// SetMetaPersister binds the metadata persister.
func (b *Base[M, T]) SetMetaPersister(p MetaPersister) { b.metaPersister = p }

// SetDataPersister binds the data persister.
func (b *Base[M, T]) SetDataPersister(p DataPersister[T]) { b.dataPersister = p }

// MetaPersister returns the bound metadata persister, or nil.
func (b *Base[M, T]) MetaPersister() MetaPersister { return b.metaPersister }

// DataPersister returns the bound data persister, or nil.
func (b *Base[M, T]) DataPersister() DataPersister[T] { return b.dataPersister }

// LoadMeta refreshes the metadata from storage. An asset that was never stored is
// treated as freshly INITIALIZED.
func (b *Base[M, T]) LoadMeta(ctx context.Context) error {
	if b.metaPersister == nil {
		return b.unbound("asset.loadMeta", "metadata")
	}
	err := b.metaPersister.Load(ctx, b)
	if errors.Is(err, apperrors.ErrNotStored) {
		b.ResetMeta()
		b.logger().Debug("Metadata not stored yet, treating asset as initialized")
		return nil
	}
	return err
}

// SaveMeta writes the metadata to storage.
func (b *Base[M, T]) SaveMeta(ctx context.Context) error {
	if b.metaPersister == nil {
		return b.unbound("asset.saveMeta", "metadata")
	}
	return b.metaPersister.Save(ctx, b)
}

// LoadData reads the payload from storage.
func (b *Base[M, T]) LoadData(ctx context.Context) error {
	if b.dataPersister == nil {
		return b.unbound("asset.loadData", "data")
	}
	return b.dataPersister.Load(ctx, b)
}

// SaveData writes the payload to storage.
func (b *Base[M, T]) SaveData(ctx context.Context) error {
	if b.dataPersister == nil {
		return b.unbound("asset.saveData", "data")
	}
	return b.dataPersister.Save(ctx, b)
}

// Validate checks the id and that both persisters are bound.
func (b *Base[M, T]) Validate(ctx context.Context) error {
	if err := b.id.Validate(); err != nil {
		return apperrors.Configuration("asset.validate", err.Error())
	}
	if b.metaPersister == nil {
		return b.unbound("asset.validate", "metadata")
	}
	if b.dataPersister == nil {
		return b.unbound("asset.validate", "data")
	}
	return nil
}

// Persist saves the payload and drives the PERSISTING -> PERSISTED|PERSISTING_FAILED
// transitions. A failed save is recorded in the metadata and not returned; only
// configuration and schema errors, or a failure to save the metadata itself, are.
func (b *Base[M, T]) Persist(ctx context.Context) error {
	meta := b.Lifecycle()
	meta.UpdateStatus(StatusPersisting)
	if err := b.SaveMeta(ctx); err != nil {
		return err
	}

	if err := b.SaveData(ctx); err != nil {
		return b.recordFailure(ctx, StatusPersistingFailed, "persisting", err)
	}

	meta.UpdateStatus(StatusPersisted)
	if fp, err := Fingerprint(b.data); err == nil {
		meta.AppendLogf("persisted payload blake3:%s", fp)
	} else {
		meta.AppendLog("persisted payload")
	}
	b.logger().Info("Asset persisted")
	return b.SaveMeta(ctx)
}

// recordFailure absorbs an operational error into the lifecycle state.
func (b *Base[M, T]) recordFailure(ctx context.Context, status Status, phase string, cause error) error {
	meta := b.Lifecycle()
	meta.UpdateStatus(status)
	meta.AppendLogf("%s failed: %v", phase, cause)
	b.logger().Warn("Asset "+phase+" failed", "status", status, "error", cause)

	saveErr := b.SaveMeta(ctx)
	if !apperrors.IsOperational(cause) {
		return cause
	}
	return saveErr
}

func (b *Base[M, T]) unbound(op, kind string) error {
	return apperrors.Configuration(op, "asset "+string(b.id)+" has no "+kind+" persister registered")
}

func (b *Base[M, T]) logger() *slog.Logger {
	return slog.With("component", "asset", "assetId", string(b.id))
}
