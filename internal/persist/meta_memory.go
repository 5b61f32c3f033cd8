package persist

import (
	"context"
	"sort"
	"sync"

	"assetgraph/internal/apperrors"
	"assetgraph/internal/asset"
)

// MemoryMeta keeps encoded metadata documents in memory.
type MemoryMeta struct {
	mu   sync.RWMutex
	docs map[asset.ID][]byte
}

// NewMemoryMeta creates an empty in-memory metadata persister.
func NewMemoryMeta() *MemoryMeta {
	return &MemoryMeta{docs: make(map[asset.ID][]byte)}
}

func (p *MemoryMeta) Register(assets ...asset.MetaBinder) { bindMeta(p, assets) }

func (p *MemoryMeta) Load(ctx context.Context, a asset.MetaAsset) error {
	p.mu.RLock()
	data, ok := p.docs[a.ID()]
	p.mu.RUnlock()
	if !ok {
		return apperrors.NotStored("asset meta", string(a.ID()))
	}
	return a.DecodeMeta(data)
}

func (p *MemoryMeta) Save(ctx context.Context, a asset.MetaAsset) error {
	data, err := a.EncodeMeta()
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.docs[a.ID()] = data
	return nil
}

func (p *MemoryMeta) Heartbeat(ctx context.Context) error { return nil }

func (p *MemoryMeta) List(ctx context.Context) ([]Summary, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Summary, 0, len(p.docs))
	for id, data := range p.docs {
		s, err := summarize(id, data)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
