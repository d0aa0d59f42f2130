package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/OCAP2/turnkernel/internal/eventstore"
	"github.com/OCAP2/turnkernel/internal/replay"
	"github.com/OCAP2/turnkernel/internal/snapshot"
	"github.com/OCAP2/turnkernel/internal/storage/file"
	"github.com/OCAP2/turnkernel/pkg/core"
)

const (
	// ManifestFormat identifies a saved session directory.
	ManifestFormat  = "turnkernel-session"
	ManifestVersion = 1

	ManifestFile  = "manifest.json"
	EventsFile    = "events.json"
	EventsFileGz  = "events.json.gz"
	SnapshotsDir  = "snapshots"
	manifestPerms = 0644
)

// Manifest describes a saved session directory.
type Manifest struct {
	Format      string          `json:"format"`
	Version     int             `json:"version"`
	SessionID   string          `json:"sessionId"`
	Scenario    string          `json:"scenario"`
	Players     []core.PlayerID `json:"players"`
	CurrentTurn uint32          `json:"currentTurn"`
	Ended       bool            `json:"ended,omitempty"`
	EventLog    string          `json:"eventLog"`
	Snapshots   string          `json:"snapshots"`
	Events      int             `json:"events"`
	SavedAt     time.Time       `json:"savedAt"`
}

// Save writes the manifest, the event log and every snapshot into dir.
func (s *Session) Save(dir string) (*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	logName := EventsFile
	if s.cfg.CompressLog {
		logName = EventsFileGz
	}
	if err := s.events.PersistFile(filepath.Join(dir, logName), s.cfg.CompressLog); err != nil {
		return nil, err
	}

	if err := s.copySnapshots(filepath.Join(dir, SnapshotsDir)); err != nil {
		return nil, err
	}

	m := &Manifest{
		Format:      ManifestFormat,
		Version:     ManifestVersion,
		SessionID:   s.id,
		Scenario:    s.cfg.Scenario,
		Players:     slices.Clone(s.cfg.Players),
		CurrentTurn: s.world.Turn,
		Ended:       s.world.Ended,
		EventLog:    logName,
		Snapshots:   SnapshotsDir,
		Events:      s.events.Len(),
		SavedAt:     time.Now().UTC(),
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, manifestPerms); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}
	s.logf("session:Save", "INFO", "Saved session %s (%d events, turn %d) to %s", s.id, m.Events, m.CurrentTurn, dir)
	return m, nil
}

// copySnapshots writes every snapshot the manager knows, resident or durable, into a
// file store at dir.
func (s *Session) copySnapshots(dir string) error {
	out := file.New(file.Config{Dir: dir, Compress: s.cfg.CompressLog}, s.deps.LogManager)
	if err := out.Init(); err != nil {
		return err
	}
	defer out.Close()

	for _, turn := range s.deps.Snapshots.Turns() {
		snap, ok, err := s.deps.Snapshots.GetSnapshot(turn)
		if err != nil {
			return err
		}
		if !ok || snap.Turn != turn {
			continue
		}
		if err := out.SaveSnapshot(snap); err != nil {
			return err
		}
	}
	return nil
}

// ReadManifest loads and checks the manifest of a saved session directory.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	if m.Format != ManifestFormat {
		return nil, fmt.Errorf("not a session directory: format %q", m.Format)
	}
	if m.Version != ManifestVersion {
		return nil, fmt.Errorf("unsupported session version %d", m.Version)
	}
	if m.EventLog == "" {
		m.EventLog = EventsFileGz
	}
	if m.Snapshots == "" {
		m.Snapshots = SnapshotsDir
	}
	return &m, nil
}

// Open loads a saved session for read-only replay. The log is restored, which
// rejects a corrupt log outright, and folded into the live state; the saved
// snapshots serve reconstruction. A nil deps.Snapshots reads them from the session
// directory.
func Open(dir string, cfg Config, deps Dependencies) (*Session, error) {
	m, err := ReadManifest(dir)
	if err != nil {
		return nil, err
	}
	events, err := eventstore.LoadFile(filepath.Join(dir, m.EventLog))
	if err != nil {
		return nil, err
	}

	owns := false
	if deps.Snapshots == nil {
		mgr, err := snapshot.NewManager(snapshot.Config{Interval: 1, MaxResident: 8}, snapshot.Dependencies{
			Store:      file.New(file.Config{Dir: filepath.Join(dir, m.Snapshots)}, deps.LogManager),
			LogManager: deps.LogManager,
		})
		if err != nil {
			return nil, err
		}
		if err := mgr.Init(); err != nil {
			return nil, err
		}
		deps.Snapshots = mgr
		owns = true
	}

	cfg.Scenario = m.Scenario
	cfg.Players = slices.Clone(m.Players)
	s, err := build(m.SessionID, cfg, deps, events, replay.SourceSaved)
	if err != nil {
		if owns {
			deps.Snapshots.Close()
		}
		return nil, err
	}
	s.ownsSnaps = owns

	for _, e := range events.All() {
		if err := s.world.Apply(e); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to replay saved session: %w", err)
		}
	}
	s.readOnly = true

	if s.world.Turn != m.CurrentTurn {
		s.logf("session:Open", "WARN", "Manifest turn %d differs from log turn %d", m.CurrentTurn, s.world.Turn)
	}
	s.logf("session:Open", "INFO", "Opened session %s from %s (%d events)", s.id, dir, events.Len())
	return s, nil
}

// IsSessionDir reports whether dir holds a saved session manifest.
func IsSessionDir(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ManifestFile))
	return err == nil
}
