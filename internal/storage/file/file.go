// Package file stores snapshots as one JSON document per turn in a directory,
// optionally gzip compressed. Writes go to a temp file and are renamed into place so a
// crash never leaves a torn snapshot behind.
package file

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/OCAP2/turnkernel/internal/logging"
	"github.com/OCAP2/turnkernel/pkg/core"
)

const (
	namePattern = "turn-%010d.json"
	gzSuffix    = ".gz"
)

// Config holds configuration for the directory store.
type Config struct {
	Dir      string
	Compress bool
}

// Store implements storage.SnapshotStore on a directory.
type Store struct {
	mu  sync.Mutex
	cfg Config
	log *logging.SlogManager
}

// New creates a directory store. Init creates the directory.
func New(cfg Config, logManager *logging.SlogManager) *Store {
	return &Store{cfg: cfg, log: logManager}
}

// Dir returns the snapshot directory.
func (s *Store) Dir() string {
	return s.cfg.Dir
}

func (s *Store) Init() error {
	if s.cfg.Dir == "" {
		return fmt.Errorf("snapshot directory not set")
	}
	if err := os.MkdirAll(s.cfg.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return nil }

func (s *Store) path(turn uint32, compressed bool) string {
	name := fmt.Sprintf(namePattern, turn)
	if compressed {
		name += gzSuffix
	}
	return filepath.Join(s.cfg.Dir, name)
}

// SaveSnapshot writes snap atomically. A snapshot stored for the same turn under the
// other compression setting is removed.
func (s *Store) SaveSnapshot(snap *core.Snapshot) error {
	var buf bytes.Buffer
	var w io.Writer = &buf
	var gz *gzip.Writer
	if s.cfg.Compress {
		gz = gzip.NewWriter(&buf)
		w = gz
	}
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		return fmt.Errorf("failed to encode snapshot for turn %d: %w", snap.Turn, err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return fmt.Errorf("failed to compress snapshot for turn %d: %w", snap.Turn, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.cfg.Dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(snap.Turn, s.cfg.Compress)); err != nil {
		return fmt.Errorf("failed to move snapshot into place: %w", err)
	}
	if err := os.Remove(s.path(snap.Turn, !s.cfg.Compress)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.log.WriteLog("file:SaveSnapshot", fmt.Sprintf("Failed to remove stale snapshot: %v", err), "WARN")
	}
	return nil
}

func (s *Store) LoadSnapshot(turn uint32) (*core.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, compressed := range []bool{true, false} {
		snap, err := readSnapshot(s.path(turn, compressed), compressed)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load snapshot for turn %d: %w", turn, err)
		}
		return snap, nil
	}
	return nil, core.ErrSnapshotNotFound
}

func readSnapshot(path string, compressed bool) (*core.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if compressed {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	}
	var snap core.Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// parseTurn extracts the turn from a snapshot file name.
func parseTurn(name string) (uint32, bool) {
	name = strings.TrimSuffix(name, gzSuffix)
	var turn uint32
	if _, err := fmt.Sscanf(name, namePattern, &turn); err != nil {
		return 0, false
	}
	return turn, name == fmt.Sprintf(namePattern, turn)
}

func (s *Store) ListTurns() ([]uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot directory: %w", err)
	}
	var turns []uint32
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if turn, ok := parseTurn(e.Name()); ok {
			turns = append(turns, turn)
		}
	}
	slices.Sort(turns)
	return slices.Compact(turns), nil
}

func (s *Store) DeleteSnapshot(turn uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, compressed := range []bool{true, false} {
		if err := os.Remove(s.path(turn, compressed)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to delete snapshot for turn %d: %w", turn, err)
		}
	}
	return nil
}
