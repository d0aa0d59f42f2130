// Package gormstorage implements storage.SnapshotStore on any gorm dialect. The
// sqlite and postgres packages wrap it and only own connection handling.
package gormstorage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/OCAP2/turnkernel/internal/logging"
	"github.com/OCAP2/turnkernel/pkg/core"
)

// SnapshotRecord is the table row for one snapshot. Fragments hold the encoded
// fragment map; Summary is a queryable digest for tooling.
type SnapshotRecord struct {
	Turn        uint32 `gorm:"primaryKey;autoIncrement:false"`
	SnapshotID  string `gorm:"size:26;not null"`
	LastEventID uint64
	Version     int
	CreatedAt   time.Time
	Fragments   []byte         `gorm:"not null"`
	Summary     datatypes.JSON `gorm:"type:json"`
}

func (SnapshotRecord) TableName() string {
	return "snapshots"
}

type summary struct {
	Fragments []string       `json:"fragments"`
	Sizes     map[string]int `json:"sizes"`
	Bytes     int            `json:"bytes"`
}

// Dependencies holds all dependencies for the gorm snapshot store.
type Dependencies struct {
	DB         *gorm.DB
	LogManager *logging.SlogManager
}

// Backend implements storage.SnapshotStore using gorm.
type Backend struct {
	deps Dependencies
}

// New creates a new gorm snapshot store.
func New(deps Dependencies) *Backend {
	return &Backend{deps: deps}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init migrates the snapshot table.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return fmt.Errorf("gorm snapshot store has no database")
	}
	if err := b.deps.DB.AutoMigrate(&SnapshotRecord{}); err != nil {
		b.deps.LogManager.WriteLog("gorm:Init", fmt.Sprintf("Failed to migrate snapshots table: %s", err), "ERROR")
		return fmt.Errorf("failed to migrate snapshots table: %w", err)
	}
	return nil
}

// Close is a no-op; the connection belongs to the wrapping backend.
func (b *Backend) Close() error {
	return nil
}

func toRecord(s *core.Snapshot) (SnapshotRecord, error) {
	frags, err := json.Marshal(s.Fragments)
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("failed to encode fragments: %w", err)
	}
	sum := summary{Fragments: s.FragmentNames(), Sizes: make(map[string]int, len(s.Fragments)), Bytes: s.Size()}
	for name, data := range s.Fragments {
		sum.Sizes[name] = len(data)
	}
	sumJSON, err := json.Marshal(sum)
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("failed to encode summary: %w", err)
	}
	return SnapshotRecord{
		Turn:        s.Turn,
		SnapshotID:  s.ID,
		LastEventID: uint64(s.LastEventID),
		Version:     s.Version,
		CreatedAt:   s.CreatedAt.UTC(),
		Fragments:   frags,
		Summary:     datatypes.JSON(sumJSON),
	}, nil
}

func (r SnapshotRecord) snapshot() (*core.Snapshot, error) {
	s := &core.Snapshot{
		ID:          r.SnapshotID,
		Turn:        r.Turn,
		LastEventID: core.EventID(r.LastEventID),
		Version:     r.Version,
		CreatedAt:   r.CreatedAt.UTC(),
	}
	if err := json.Unmarshal(r.Fragments, &s.Fragments); err != nil {
		return nil, fmt.Errorf("failed to decode fragments for turn %d: %w", r.Turn, err)
	}
	return s, nil
}

// SaveSnapshot upserts the snapshot row for its turn.
func (b *Backend) SaveSnapshot(s *core.Snapshot) error {
	rec, err := toRecord(s)
	if err != nil {
		return err
	}
	err = b.deps.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "turn"}},
		UpdateAll: true,
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to save snapshot for turn %d: %w", s.Turn, err)
	}
	return nil
}

func (b *Backend) LoadSnapshot(turn uint32) (*core.Snapshot, error) {
	var rec SnapshotRecord
	err := b.deps.DB.Where("turn = ?", turn).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot for turn %d: %w", turn, err)
	}
	return rec.snapshot()
}

func (b *Backend) ListTurns() ([]uint32, error) {
	var turns []uint32
	if err := b.deps.DB.Model(&SnapshotRecord{}).Order("turn").Pluck("turn", &turns).Error; err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return turns, nil
}

func (b *Backend) DeleteSnapshot(turn uint32) error {
	if err := b.deps.DB.Where("turn = ?", turn).Delete(&SnapshotRecord{}).Error; err != nil {
		return fmt.Errorf("failed to delete snapshot for turn %d: %w", turn, err)
	}
	return nil
}
