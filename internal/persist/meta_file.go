package persist

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"assetgraph/internal/apperrors"
	"assetgraph/internal/asset"
)

const metaExt = "json"

// FileMeta stores each metadata document as <root>/<id path>.json.
type FileMeta struct {
	root   string
	logger *slog.Logger
}

// NewFileMeta creates the root directory if needed.
func NewFileMeta(root string) (*FileMeta, error) {
	if root == "" {
		return nil, apperrors.Configuration("persist.fileMeta", "metadata directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create metadata directory: %w", err)
	}
	return &FileMeta{
		root:   root,
		logger: slog.With("component", "meta-persister", "backend", "file"),
	}, nil
}

func (p *FileMeta) Register(assets ...asset.MetaBinder) { bindMeta(p, assets) }

func (p *FileMeta) Load(ctx context.Context, a asset.MetaAsset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := os.ReadFile(filePath(p.root, a.ID(), metaExt))
	if errors.Is(err, fs.ErrNotExist) {
		return apperrors.NotStored("asset meta", string(a.ID()))
	}
	if err != nil {
		return fmt.Errorf("read metadata for %s: %w", a.ID(), err)
	}
	return a.DecodeMeta(data)
}

func (p *FileMeta) Save(ctx context.Context, a asset.MetaAsset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := a.EncodeMeta()
	if err != nil {
		return err
	}
	if err := writeFileAtomic(filePath(p.root, a.ID(), metaExt), data); err != nil {
		return fmt.Errorf("write metadata for %s: %w", a.ID(), err)
	}
	p.logger.Debug("Metadata saved", "assetId", a.ID())
	return nil
}

// Heartbeat checks that the root directory is still reachable.
func (p *FileMeta) Heartbeat(ctx context.Context) error {
	info, err := os.Stat(p.root)
	if err != nil {
		return fmt.Errorf("metadata directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("metadata directory %s is not a directory", p.root)
	}
	return nil
}

// List walks the root directory. Files that do not decode are skipped.
func (p *FileMeta) List(ctx context.Context) ([]Summary, error) {
	var out []Summary
	err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != "."+metaExt {
			return nil
		}
		rel, err := filepath.Rel(p.root, path)
		if err != nil {
			return err
		}
		id := asset.ID(strings.ReplaceAll(strings.TrimSuffix(filepath.ToSlash(rel), "."+metaExt), "/", "."))
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		s, err := summarize(id, data)
		if err != nil {
			p.logger.Warn("Skipping unreadable metadata file", "path", path, "error", err)
			return nil
		}
		out = append(out, s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
