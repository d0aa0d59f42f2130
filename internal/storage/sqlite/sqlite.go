// Package sqlitestorage stores snapshots in SQLite through the gorm store. An empty
// path keeps the database in memory; a dump path enables periodic VACUUM INTO copies.
package sqlitestorage

import (
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/OCAP2/turnkernel/internal/database"
	"github.com/OCAP2/turnkernel/internal/logging"
	gormstorage "github.com/OCAP2/turnkernel/internal/storage/gorm"
)

// Config holds configuration for the SQLite snapshot store.
type Config struct {
	Path         string
	DumpInterval time.Duration
	DumpPath     string // Path for periodic VACUUM INTO dumps
}

// Backend wraps the gorm store for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db       *gorm.DB
	cfg      Config
	log      *logging.SlogManager
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a SQLite snapshot store. The database is opened by Init.
func New(cfg Config, logManager *logging.SlogManager) *Backend {
	return &Backend{cfg: cfg, log: logManager}
}

// Init opens the database, migrates the schema and starts the dump goroutine.
func (b *Backend) Init() error {
	db, err := database.GetSqliteDB(b.cfg.Path)
	if err != nil {
		return fmt.Errorf("failed to open SQLite snapshot DB: %w", err)
	}
	b.db = db
	b.stopChan = make(chan struct{})
	b.Backend = gormstorage.New(gormstorage.Dependencies{DB: db, LogManager: b.log})
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		b.wg.Add(1)
		go b.dumpLoop()
	}
	return nil
}

// Close stops the dump goroutine, writes a final dump and closes the database.
func (b *Backend) Close() error {
	if b.db == nil {
		return nil
	}
	close(b.stopChan)
	b.wg.Wait()

	if b.cfg.DumpPath != "" {
		if err := b.Dump(b.cfg.DumpPath); err != nil {
			b.log.WriteLog("sqlite:Close", fmt.Sprintf("Final dump failed: %v", err), "ERROR")
		}
	}
	sqlDB, err := b.db.DB()
	b.db = nil
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Dump writes a point-in-time copy of the database to path.
func (b *Backend) Dump(path string) error {
	if b.db == nil {
		return fmt.Errorf("sqlite snapshot store not initialized")
	}
	return database.DumpMemoryDBToDisk(b.db, path)
}

// dumpLoop periodically dumps the database to disk via VACUUM INTO.
func (b *Backend) dumpLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := b.Dump(b.cfg.DumpPath); err != nil {
				b.log.WriteLog("sqlite:dumpLoop", fmt.Sprintf("Error dumping to disk: %v", err), "ERROR")
			} else {
				b.log.WriteLog("sqlite:dumpLoop", fmt.Sprintf("Dumped to disk in %s", time.Since(start)), "DEBUG")
			}
		}
	}
}
