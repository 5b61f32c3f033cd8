package persist

import (
	"fmt"
	"path/filepath"

	"assetgraph/internal/apperrors"
	"assetgraph/internal/asset"
	"assetgraph/internal/config"
	"assetgraph/internal/dataset"
)

// Metadata backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config selects the metadata backend and default data location.
type Config struct {
	MetaBackend string         // file, sqlite or memory (default: sqlite)
	MetaDir     string         // file backend root (default: data/meta)
	DBPath      string         // SQLite database (default: data/assets.db)
	DataDir     string         // records file root (default: data/records)
	DataFormat  dataset.Format // records file format (default: csv)
}

// LoadConfigFromEnv loads persistence configuration from environment variables.
func LoadConfigFromEnv() Config {
	cfg := Config{
		MetaBackend: config.GetEnv("META_BACKEND", BackendSQLite),
		MetaDir:     config.GetEnv("META_DIR", ""),
		DBPath:      config.GetEnv("META_DB_PATH", ""),
		DataDir:     config.GetEnv("DATA_DIR", ""),
		DataFormat:  dataset.Format(config.GetEnv("DATA_FORMAT", "")),
	}
	return cfg.withDefaults()
}

// withDefaults fills in zero values with defaults.
func (c Config) withDefaults() Config {
	if c.MetaBackend == "" {
		c.MetaBackend = BackendSQLite
	}
	if c.MetaDir == "" {
		c.MetaDir = filepath.Join("data", "meta")
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join("data", "assets.db")
	}
	if c.DataDir == "" {
		c.DataDir = filepath.Join("data", "records")
	}
	if c.DataFormat == "" {
		c.DataFormat = dataset.FormatCSV
	}
	return c
}

// Validate checks the backend and data format.
func (c Config) Validate() error {
	switch c.MetaBackend {
	case BackendFile, BackendSQLite, BackendMemory:
	default:
		return apperrors.Configuration("persist.config", fmt.Sprintf("unknown META_BACKEND %q", c.MetaBackend))
	}
	if _, err := dataset.ParseFormat(string(c.DataFormat)); err != nil {
		return apperrors.Configuration("persist.config", err.Error())
	}
	return nil
}

// MetaStore is a metadata persister that can also list what it holds.
type MetaStore interface {
	asset.MetaPersister
	Lister
}

// NewMetaStore builds the configured metadata persister. The sqlite backend
// uses db, which the caller owns.
func NewMetaStore(cfg Config, db *DB) (MetaStore, error) {
	switch cfg.MetaBackend {
	case BackendFile:
		p, err := NewFileMeta(cfg.MetaDir)
		if err != nil {
			return nil, err
		}
		return p, nil
	case BackendSQLite:
		if db == nil {
			return nil, apperrors.Configuration("persist.metaStore", "sqlite backend requires a database")
		}
		return NewSQLiteMeta(db), nil
	case BackendMemory:
		return NewMemoryMeta(), nil
	default:
		return nil, apperrors.Configuration("persist.metaStore", fmt.Sprintf("unknown META_BACKEND %q", cfg.MetaBackend))
	}
}
