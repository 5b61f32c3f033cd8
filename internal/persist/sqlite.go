package persist

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"assetgraph/internal/apperrors"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database shared by SQLiteMeta and RecordsTable.
type DB struct {
	db   *sql.DB
	path string
}

// OpenDB opens or creates the database at path and applies pending migrations.
func OpenDB(path string) (*DB, error) {
	if path == "" {
		return nil, apperrors.Configuration("persist.openDB", "database path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	d := &DB{db: db, path: path}
	if err := d.applyPragmas(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := d.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return d, nil
}

// Close closes the database.
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Path returns the database file path.
func (d *DB) Path() string { return d.path }

// Ping verifies the connection.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *DB) applyPragmas(ctx context.Context) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := d.db.ExecContext(ctx, pragma); err != nil {
			return err
		}
	}
	return nil
}

// migrations are applied in order; index+1 is the schema version.
var migrations = []func(ctx context.Context, tx *sql.Tx) error{
	applyV1,
}

func (d *DB) migrate(ctx context.Context) (err error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	applied_at TEXT NOT NULL
)`); err != nil {
		return err
	}

	var version int
	if err = tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		return err
	}
	for i := version; i < len(migrations); i++ {
		if err = migrations[i](ctx, tx); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, "INSERT INTO schema_migrations(version, applied_at) VALUES(?, ?)",
			i+1, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func applyV1(ctx context.Context, tx *sql.Tx) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS asset_meta (
			asset_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			document TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS asset_meta_status_idx ON asset_meta(status)`,
	}
	for _, stmt := range ddl {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
