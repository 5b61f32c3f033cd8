// Package persist implements metadata and data persisters backed by files,
// SQLite and memory.
package persist

import (
	"context"
	"encoding/json"
	"time"

	"assetgraph/internal/asset"
)

// Summary is the indexed view of one stored metadata document.
type Summary struct {
	ID        asset.ID     `json:"id"`
	Status    asset.Status `json:"status"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Lister enumerates stored metadata documents, including ids no longer registered.
type Lister interface {
	List(ctx context.Context) ([]Summary, error)
}

// summarize extracts the indexed fields from an encoded document.
func summarize(id asset.ID, document []byte) (Summary, error) {
	var head struct {
		Status    asset.Status `json:"status"`
		UpdatedAt time.Time    `json:"updated_at"`
	}
	if err := json.Unmarshal(document, &head); err != nil {
		return Summary{}, err
	}
	return Summary{ID: id, Status: head.Status, UpdatedAt: head.UpdatedAt}, nil
}

func bindMeta(p asset.MetaPersister, assets []asset.MetaBinder) {
	for _, a := range assets {
		a.SetMetaPersister(p)
	}
}
