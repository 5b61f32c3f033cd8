package asset

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"assetgraph/internal/apperrors"
)

// Asset is the surface shared by every asset kind.
type Asset interface {
	ID() ID
	Lifecycle() *Meta
	Payload() any

	LoadMeta(ctx context.Context) error
	SaveMeta(ctx context.Context) error
	LoadData(ctx context.Context) error
	SaveData(ctx context.Context) error
	Validate(ctx context.Context) error
}

// Registry maps asset ids to live assets. It is filled during bootstrap and only read
// afterwards; concurrent reads are safe.
type Registry struct {
	mu     sync.RWMutex
	assets map[ID]Asset
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{assets: make(map[ID]Asset)}
}

// Add registers assets. An invalid or duplicate id is a configuration error and
// nothing from the call is registered.
func (r *Registry) Add(assets ...Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[ID]bool, len(assets))
	for _, a := range assets {
		id := a.ID()
		if err := id.Validate(); err != nil {
			return apperrors.Configuration("registry.add", err.Error())
		}
		if _, exists := r.assets[id]; exists || seen[id] {
			return apperrors.Configuration("registry.add", fmt.Sprintf("asset %s is already registered", id))
		}
		seen[id] = true
	}
	for _, a := range assets {
		r.assets[a.ID()] = a
	}
	return nil
}

// Get returns the asset registered under id.
func (r *Registry) Get(id ID) (Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assets[id]
	return a, ok
}

// Resolve returns the assets for ids in the same order. A missing id means the
// pipeline was wired wrong and is reported as a configuration error.
func (r *Registry) Resolve(ids []ID) ([]Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	resolved := make([]Asset, 0, len(ids))
	for _, id := range ids {
		a, ok := r.assets[id]
		if !ok {
			return nil, apperrors.Configuration("registry.resolve", fmt.Sprintf("asset %s is not registered", id))
		}
		resolved = append(resolved, a)
	}
	return resolved, nil
}

// IDs returns all registered ids, sorted.
func (r *Registry) IDs() []ID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]ID, 0, len(r.assets))
	for id := range r.assets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Assets returns all registered assets in id order.
func (r *Registry) Assets() []Asset {
	ids := r.IDs()

	r.mu.RLock()
	defer r.mu.RUnlock()
	assets := make([]Asset, 0, len(ids))
	for _, id := range ids {
		assets = append(assets, r.assets[id])
	}
	return assets
}

// Len returns the number of registered assets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.assets)
}
