package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"

	"assetgraph/internal/apperrors"
	"assetgraph/internal/asset"
)

// SourceFile names the file backing a source asset.
type SourceFile struct {
	ID   asset.ID
	Path string
}

// Watcher marks source assets refreshed when their files change and then
// triggers a run.
type Watcher struct {
	runner   *Runner
	sources  []SourceFile
	debounce time.Duration
}

// NewWatcher creates a watcher. Bursts of changes within debounce are folded into
// one refresh.
func NewWatcher(runner *Runner, debounce time.Duration, sources ...SourceFile) *Watcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{runner: runner, sources: sources, debounce: debounce}
}

// Watch blocks until ctx is cancelled. Files that do not exist yet are picked up
// when they are created.
func (w *Watcher) Watch(ctx context.Context) error {
	byPath := make(map[string]asset.ID, len(w.sources))
	var dirs []string
	for _, s := range w.sources {
		a, ok := w.runner.registry.Get(s.ID)
		if !ok {
			return apperrors.Configuration("watch", fmt.Sprintf("source %s is not registered", s.ID))
		}
		if _, ok := a.(Materializer); ok {
			return apperrors.Configuration("watch", fmt.Sprintf("%s is not a source asset", s.ID))
		}
		path, err := filepath.Abs(s.Path)
		if err != nil {
			return apperrors.Configuration("watch", err.Error())
		}
		byPath[path] = s.ID
		if dir := filepath.Dir(path); !slices.Contains(dirs, dir) {
			dirs = append(dirs, dir)
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	logger := slog.With("component", "watcher")
	logger.Info("Watching source files", "files", len(byPath))

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()
	pending := make(map[asset.ID]string)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			id, ok := byPath[filepath.Clean(event.Name)]
			if !ok {
				continue
			}
			pending[id] = event.Name
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error", "error", err)

		case <-timer.C:
			if !w.flush(ctx, logger, pending) {
				timer.Reset(w.debounce)
			}
		}
	}
}

// flush marks every pending source refreshed and runs the pipeline. It returns
// false when a run in progress forced it to keep sources pending.
func (w *Watcher) flush(ctx context.Context, logger *slog.Logger, pending map[asset.ID]string) bool {
	ids := make([]asset.ID, 0, len(pending))
	for id := range pending {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	marked := 0
	for _, id := range ids {
		_, err := w.runner.MarkRefreshed(ctx, id, "source file changed: "+filepath.Base(pending[id]))
		switch {
		case errors.Is(err, apperrors.ErrConflict):
			return false
		case err != nil:
			logger.Error("Failed to mark source refreshed", "assetId", id, "error", err)
		default:
			marked++
		}
		delete(pending, id)
	}
	if marked == 0 {
		return true
	}

	_, err := w.runner.Run(ctx)
	switch {
	case errors.Is(err, apperrors.ErrConflict):
		logger.Debug("Run already in progress, it will pick up the change")
	case err != nil:
		logger.Error("Triggered run failed", "error", err)
	}
	return true
}
