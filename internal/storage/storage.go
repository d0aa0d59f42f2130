// internal/storage/storage.go
package storage

import "github.com/OCAP2/turnkernel/pkg/core"

// SnapshotStore is the durable tier behind the snapshot manager. Every implementation
// keys snapshots by turn; saving a turn that already exists replaces it.
type SnapshotStore interface {
	// Lifecycle
	Init() error
	Close() error

	SaveSnapshot(s *core.Snapshot) error
	// LoadSnapshot returns core.ErrSnapshotNotFound when the turn has no snapshot.
	LoadSnapshot(turn uint32) (*core.Snapshot, error)
	// ListTurns returns the stored turns in ascending order.
	ListTurns() ([]uint32, error)
	DeleteSnapshot(turn uint32) error
}

// Dumper is an optional interface for stores that can write a point-in-time copy of
// themselves to disk.
type Dumper interface {
	Dump(path string) error
}
