package asset

import (
	"context"
	"errors"
	"sync"
	"testing"

	"assetgraph/internal/apperrors"
)

// fakeMeta stores encoded metadata documents in memory and counts calls.
type fakeMeta struct {
	mu      sync.Mutex
	docs    map[ID][]byte
	saves   int
	saveErr error
}

func newFakeMeta() *fakeMeta {
	return &fakeMeta{docs: make(map[ID][]byte)}
}

func (f *fakeMeta) Register(assets ...MetaBinder) {
	for _, a := range assets {
		a.SetMetaPersister(f)
	}
}

func (f *fakeMeta) Load(ctx context.Context, a MetaAsset) error {
	f.mu.Lock()
	data, ok := f.docs[a.ID()]
	f.mu.Unlock()
	if !ok {
		return apperrors.NotStored("asset meta", string(a.ID()))
	}
	return a.DecodeMeta(data)
}

func (f *fakeMeta) Save(ctx context.Context, a MetaAsset) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	data, err := a.EncodeMeta()
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[a.ID()] = data
	f.saves++
	return nil
}

func (f *fakeMeta) Heartbeat(ctx context.Context) error { return nil }

// put stores doc under id as if it had been saved by another process.
func (f *fakeMeta) put(t *testing.T, id ID, doc MetaDocument) {
	t.Helper()
	data, err := EncodeMeta(doc)
	if err != nil {
		t.Fatalf("EncodeMeta: %v", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[id] = data
}

// stored decodes the document saved under id into doc.
func (f *fakeMeta) stored(t *testing.T, id ID, doc MetaDocument) {
	t.Helper()
	f.mu.Lock()
	data, ok := f.docs[id]
	f.mu.Unlock()
	if !ok {
		t.Fatalf("no metadata stored for %s", id)
	}
	if err := DecodeMeta(data, doc); err != nil {
		t.Fatalf("DecodeMeta: %v", err)
	}
}

// fakeData stores payloads in memory.
type fakeData[T any] struct {
	mu      sync.Mutex
	data    map[ID]T
	saveErr error
	loads   int
}

func newFakeData[T any]() *fakeData[T] {
	return &fakeData[T]{data: make(map[ID]T)}
}

func (f *fakeData[T]) Register(assets ...DataBinder[T]) {
	for _, a := range assets {
		a.SetDataPersister(f)
	}
}

func (f *fakeData[T]) Load(ctx context.Context, a DataAsset[T]) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	v, ok := f.data[a.ID()]
	if !ok {
		return errors.New("payload not found")
	}
	a.SetData(v)
	return nil
}

func (f *fakeData[T]) Save(ctx context.Context, a DataAsset[T]) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[a.ID()] = a.Data()
	return nil
}

// persistedMeta returns a record that materialized at stop and persisted one second later.
func persistedMeta(materializedAt int) *Meta {
	return NewMeta().
		UpdateStatusAt(StatusMaterializing, ts(materializedAt-1)).
		UpdateStatusAt(StatusMaterialized, ts(materializedAt)).
		UpdateStatusAt(StatusPersisting, ts(materializedAt)).
		UpdateStatusAt(StatusPersisted, ts(materializedAt+1))
}

// upstreamPersistedAt returns a PERSISTED record whose persist finished at sec.
func upstreamPersistedAt(sec int) *Meta {
	return persistedMeta(sec - 1)
}
