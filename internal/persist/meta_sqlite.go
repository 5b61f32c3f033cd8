package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"assetgraph/internal/apperrors"
	"assetgraph/internal/asset"
)

// SQLiteMeta stores metadata documents in the asset_meta table. Status and
// updated_at are copied out of the document so they can be listed without decoding.
type SQLiteMeta struct {
	db     *DB
	logger *slog.Logger
}

// NewSQLiteMeta creates a metadata persister on an open database.
func NewSQLiteMeta(db *DB) *SQLiteMeta {
	return &SQLiteMeta{
		db:     db,
		logger: slog.With("component", "meta-persister", "backend", "sqlite"),
	}
}

func (p *SQLiteMeta) Register(assets ...asset.MetaBinder) { bindMeta(p, assets) }

func (p *SQLiteMeta) Load(ctx context.Context, a asset.MetaAsset) error {
	var document string
	err := p.db.db.QueryRowContext(ctx, "SELECT document FROM asset_meta WHERE asset_id = ?", string(a.ID())).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotStored("asset meta", string(a.ID()))
	}
	if err != nil {
		return fmt.Errorf("load metadata for %s: %w", a.ID(), err)
	}
	return a.DecodeMeta([]byte(document))
}

func (p *SQLiteMeta) Save(ctx context.Context, a asset.MetaAsset) error {
	data, err := a.EncodeMeta()
	if err != nil {
		return err
	}
	s, err := summarize(a.ID(), data)
	if err != nil {
		return apperrors.Schema("meta.index", err)
	}
	_, err = p.db.db.ExecContext(ctx, `
INSERT INTO asset_meta(asset_id, status, updated_at, document) VALUES(?, ?, ?, ?)
ON CONFLICT(asset_id) DO UPDATE SET
	status = excluded.status,
	updated_at = excluded.updated_at,
	document = excluded.document`,
		string(a.ID()), string(s.Status), s.UpdatedAt.UTC().Format(time.RFC3339Nano), string(data))
	if err != nil {
		return fmt.Errorf("save metadata for %s: %w", a.ID(), err)
	}
	p.logger.Debug("Metadata saved", "assetId", a.ID(), "status", s.Status)
	return nil
}

func (p *SQLiteMeta) Heartbeat(ctx context.Context) error {
	return p.db.Ping(ctx)
}

func (p *SQLiteMeta) List(ctx context.Context) ([]Summary, error) {
	rows, err := p.db.db.QueryContext(ctx, "SELECT asset_id, status, updated_at FROM asset_meta ORDER BY asset_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var id, status, updated string
		if err := rows.Scan(&id, &status, &updated); err != nil {
			return nil, err
		}
		at, err := time.Parse(time.RFC3339Nano, updated)
		if err != nil {
			return nil, apperrors.Schema("meta.list", err)
		}
		out = append(out, Summary{ID: asset.ID(id), Status: asset.Status(status), UpdatedAt: at})
	}
	return out, rows.Err()
}
