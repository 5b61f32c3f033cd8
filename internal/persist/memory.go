package persist

import (
	"context"
	"sync"

	"assetgraph/internal/apperrors"
	"assetgraph/internal/asset"
)

// Memory keeps payloads in memory. Values are stored as given, not copied.
type Memory[T any] struct {
	mu   sync.RWMutex
	data map[asset.ID]T
}

// NewMemory creates an empty in-memory resource.
func NewMemory[T any]() *Memory[T] {
	return &Memory[T]{data: make(map[asset.ID]T)}
}

func (m *Memory[T]) Load(ctx context.Context, id asset.ID) (T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[id]
	if !ok {
		var zero T
		return zero, apperrors.NotFound("payload", string(id))
	}
	return v, nil
}

func (m *Memory[T]) Save(ctx context.Context, id asset.ID, data T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[id] = data
	return nil
}
