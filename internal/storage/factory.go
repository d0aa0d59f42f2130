// internal/storage/factory.go
package storage

import (
	"fmt"

	"github.com/OCAP2/turnkernel/internal/config"
	"github.com/OCAP2/turnkernel/internal/database"
	"github.com/OCAP2/turnkernel/internal/logging"
	"github.com/OCAP2/turnkernel/internal/storage/file"
	"github.com/OCAP2/turnkernel/internal/storage/memory"
	"github.com/OCAP2/turnkernel/internal/storage/postgres"
	sqlitestorage "github.com/OCAP2/turnkernel/internal/storage/sqlite"
)

var (
	_ SnapshotStore = (*file.Store)(nil)
	_ SnapshotStore = (*memory.Store)(nil)
	_ SnapshotStore = (*sqlitestorage.Backend)(nil)
	_ SnapshotStore = (*postgres.Backend)(nil)
	_ Dumper        = (*sqlitestorage.Backend)(nil)
)

// Dependencies holds what the database-backed stores need.
type Dependencies struct {
	LogManager *logging.SlogManager
	DB         *database.Manager
}

// NewStore creates a snapshot store based on configuration. The store is not
// initialized; callers run Init.
func NewStore(cfg config.StorageConfig, deps Dependencies) (SnapshotStore, error) {
	switch cfg.Type {
	case "", "file":
		return file.New(file.Config{Dir: cfg.File.Dir, Compress: cfg.File.Compress}, deps.LogManager), nil
	case "memory":
		return memory.New(), nil
	case "sqlite":
		return sqlitestorage.New(sqlitestorage.Config{
			Path:         cfg.Sqlite.Path,
			DumpPath:     cfg.Sqlite.DumpPath,
			DumpInterval: cfg.Sqlite.DumpInterval,
		}, deps.LogManager), nil
	case "postgres":
		if deps.DB == nil {
			return nil, fmt.Errorf("postgres storage requires a database manager")
		}
		return postgres.New(deps.DB, deps.LogManager), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
