// internal/storage/memory/memory.go
// Package memory keeps durable snapshots in process memory. Snapshots are held in
// encoded form so a load never aliases the caller's fragments.
package memory

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/OCAP2/turnkernel/pkg/core"
)

// Store implements storage.SnapshotStore in memory.
type Store struct {
	mu    sync.RWMutex
	turns map[uint32][]byte
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{turns: make(map[uint32][]byte)}
}

func (s *Store) Init() error  { return nil }
func (s *Store) Close() error { return nil }

// SaveSnapshot encodes and stores snap, replacing any snapshot at the same turn.
func (s *Store) SaveSnapshot(snap *core.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot for turn %d: %w", snap.Turn, err)
	}
	s.mu.Lock()
	s.turns[snap.Turn] = data
	s.mu.Unlock()
	return nil
}

func (s *Store) LoadSnapshot(turn uint32) (*core.Snapshot, error) {
	s.mu.RLock()
	data, ok := s.turns[turn]
	s.mu.RUnlock()
	if !ok {
		return nil, core.ErrSnapshotNotFound
	}
	var snap core.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot for turn %d: %w", turn, err)
	}
	return &snap, nil
}

func (s *Store) ListTurns() ([]uint32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := make([]uint32, 0, len(s.turns))
	for t := range s.turns {
		turns = append(turns, t)
	}
	slices.Sort(turns)
	return turns, nil
}

func (s *Store) DeleteSnapshot(turn uint32) error {
	s.mu.Lock()
	delete(s.turns, turn)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored snapshots.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}
