package pipeline

import (
	"context"
	"log/slog"
	"slices"

	"assetgraph/internal/apperrors"
	"assetgraph/internal/asset"
)

// MarkRefreshed records that the source asset id was refreshed outside the graph.
// Its metadata moves through PERSISTING to PERSISTED and note is appended to the
// log; the payload is not read or written. Downstream assets see the refresh on
// their next evaluation. Fails with a conflict while a run is in progress.
func (r *Runner) MarkRefreshed(ctx context.Context, id asset.ID, note string) (*asset.Meta, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	a, ok := r.registry.Get(id)
	if !ok {
		return nil, apperrors.NotFound("asset", string(id))
	}
	if _, ok := a.(Materializer); ok {
		return nil, apperrors.Validation("assetId", string(id)+" is computed by the graph, only source assets can be marked refreshed")
	}

	if !r.running.TryLock() {
		return nil, apperrors.Conflict("asset", string(id), "a run is in progress")
	}
	defer r.running.Unlock()

	if err := a.LoadMeta(ctx); err != nil {
		return nil, err
	}
	meta := a.Lifecycle()
	meta.UpdateStatus(asset.StatusPersisting)
	meta.UpdateStatus(asset.StatusPersisted)
	if note == "" {
		note = "refreshed externally"
	}
	meta.AppendLog(note)
	if err := a.SaveMeta(ctx); err != nil {
		return nil, err
	}
	slog.Info("Source asset marked refreshed", "component", "runner", "assetId", id, "note", note)

	snapshot := *meta
	snapshot.Log = slices.Clone(meta.Log)
	return &snapshot, nil
}
