package testutil

import (
	"context"
	"testing"
	"time"

	"assetgraph/internal/asset"
)

// PersistSource registers a source asset under id, binds the persisters and
// persists value, leaving the asset PERSISTED.
func PersistSource[T any](tb testing.TB, reg *asset.Registry, meta asset.MetaPersister, data asset.DataPersister[T], id asset.ID, value T) *asset.Base[*asset.Meta, T] {
	tb.Helper()
	a := asset.NewBase[T](id)
	if err := reg.Add(a); err != nil {
		tb.Fatalf("register %s: %v", id, err)
	}
	meta.Register(a)
	data.Register(a)
	Repersist(tb, a, value)
	return a
}

// Repersist stores a new payload for a source asset. It waits for the clock to
// move so the new persist time is strictly later than anything stamped before.
func Repersist[T any](tb testing.TB, a *asset.Base[*asset.Meta, T], value T) {
	tb.Helper()
	before := time.Now()
	for !time.Now().After(before) {
		time.Sleep(time.Millisecond)
	}
	a.SetData(value)
	if err := a.Persist(context.Background()); err != nil {
		tb.Fatalf("persist %s: %v", a.ID(), err)
	}
	if s := a.Lifecycle().Status; s != asset.StatusPersisted {
		tb.Fatalf("persist %s: status %s: %s", a.ID(), s, a.Lifecycle().LastLog())
	}
}
