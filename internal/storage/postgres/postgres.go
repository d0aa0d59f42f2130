// Package postgres stores snapshots in PostgreSQL through the gorm store, using the
// shared database manager for the connection.
package postgres

import (
	"fmt"

	"github.com/OCAP2/turnkernel/internal/database"
	"github.com/OCAP2/turnkernel/internal/logging"
	gormstorage "github.com/OCAP2/turnkernel/internal/storage/gorm"
)

// Backend implements storage.SnapshotStore on PostgreSQL.
type Backend struct {
	*gormstorage.Backend
	manager *database.Manager
	log     *logging.SlogManager
}

// New creates a new Postgres snapshot store. The connection is opened by Init unless
// the manager already holds one.
func New(manager *database.Manager, logManager *logging.SlogManager) *Backend {
	return &Backend{manager: manager, log: logManager}
}

// Init connects if needed and migrates the snapshot table.
func (b *Backend) Init() error {
	db := b.manager.DB
	if db == nil {
		var err error
		if db, err = b.manager.OpenPostgres(); err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
	}
	b.Backend = gormstorage.New(gormstorage.Dependencies{DB: db, LogManager: b.log})
	if err := b.Backend.Init(); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	b.log.WriteLog("postgres:Init", "Snapshot table ready", "INFO")
	return nil
}

// Close closes the manager's connection pool.
func (b *Backend) Close() error {
	return b.manager.Close()
}
