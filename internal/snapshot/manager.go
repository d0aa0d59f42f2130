// Package snapshot keeps periodic full-state checkpoints keyed by turn. The newest
// snapshots stay resident; older ones are evicted oldest-first to a durable store and
// stay reachable through the same lookup.
package snapshot

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/OCAP2/turnkernel/internal/logging"
	"github.com/OCAP2/turnkernel/internal/queue"
	"github.com/OCAP2/turnkernel/internal/storage"
	"github.com/OCAP2/turnkernel/pkg/core"
)

// Capturer is implemented by every subsystem whose state goes into a snapshot. The
// fragment is stored verbatim.
type Capturer interface {
	Name() string
	Capture() ([]byte, error)
	Restore(fragment []byte) error
}

// Config holds the scheduling and retention policy.
type Config struct {
	Interval      uint32
	MaxResident   int
	Async         bool
	FlushInterval time.Duration
}

// Dependencies holds the collaborators of a Manager.
type Dependencies struct {
	Store      storage.SnapshotStore
	LogManager *logging.SlogManager
}

// Manager owns the snapshot collection.
type Manager struct {
	mu       sync.RWMutex
	cfg      Config
	deps     Dependencies
	resident map[uint32]*core.Snapshot
	// pending holds evicted snapshots whose durable write has not completed yet.
	pending map[uint32]*core.Snapshot
	durable map[uint32]struct{}

	writes   *queue.Queue[*core.Snapshot]
	flushMu  sync.Mutex
	stopChan chan struct{}
	wg       sync.WaitGroup
	started  bool

	metrics *metrics
	now     func() time.Time
}

// NewManager creates a manager. Init must run before use.
func NewManager(cfg Config, deps Dependencies) (*Manager, error) {
	if cfg.Interval == 0 {
		cfg.Interval = 1
	}
	if cfg.MaxResident < 1 {
		cfg.MaxResident = 1
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("snapshot manager requires a store")
	}
	m := &Manager{
		cfg:      cfg,
		deps:     deps,
		resident: make(map[uint32]*core.Snapshot),
		pending:  make(map[uint32]*core.Snapshot),
		durable:  make(map[uint32]struct{}),
		writes:   queue.New[*core.Snapshot](),
		now:      time.Now,
	}
	met, err := newMetrics(m)
	if err != nil {
		return nil, err
	}
	m.metrics = met
	return m, nil
}

// Init initializes the store, indexes what it already holds and starts the
// write-behind loop when async writes are enabled.
func (m *Manager) Init() error {
	if err := m.deps.Store.Init(); err != nil {
		return fmt.Errorf("failed to init snapshot store: %w", err)
	}
	turns, err := m.deps.Store.ListTurns()
	if err != nil {
		return fmt.Errorf("failed to index snapshot store: %w", err)
	}
	m.mu.Lock()
	for _, t := range turns {
		m.durable[t] = struct{}{}
	}
	m.mu.Unlock()

	m.stopChan = make(chan struct{})
	if m.cfg.Async {
		m.wg.Add(1)
		go m.flushLoop()
	}
	m.started = true
	return nil
}

// Close stops the write-behind loop, flushes what is pending and closes the store.
func (m *Manager) Close() error {
	if !m.started {
		return nil
	}
	close(m.stopChan)
	m.wg.Wait()
	m.started = false

	flushErr := m.Flush()
	regErr := m.metrics.reg.Unregister()
	return errors.Join(flushErr, regErr, m.deps.Store.Close())
}

// ShouldSnapshot reports whether the interval policy schedules a snapshot for turn.
func (m *Manager) ShouldSnapshot(turn uint32) bool {
	return turn%m.cfg.Interval == 0
}

// CreateSnapshot captures every capturer into a snapshot for turn. A snapshot that
// already exists for turn is replaced.
func (m *Manager) CreateSnapshot(turn uint32, lastEventID core.EventID, capturers ...Capturer) (string, error) {
	frags := make(map[string][]byte, len(capturers))
	for _, c := range capturers {
		name := c.Name()
		if _, dup := frags[name]; dup {
			return "", fmt.Errorf("duplicate snapshot fragment %q", name)
		}
		data, err := c.Capture()
		if err != nil {
			return "", fmt.Errorf("failed to capture %s: %w", name, err)
		}
		frags[name] = data
	}

	snap := &core.Snapshot{
		ID:          ulid.Make().String(),
		Turn:        turn,
		LastEventID: lastEventID,
		Version:     core.SnapshotVersion,
		CreatedAt:   m.now().UTC(),
		Fragments:   frags,
	}
	m.Put(snap)
	return snap.ID, nil
}

// Put adds an already built snapshot, replacing any resident one for the same turn.
func (m *Manager) Put(snap *core.Snapshot) {
	m.mu.Lock()
	if old, ok := m.resident[snap.Turn]; ok {
		m.deps.LogManager.WriteLog("snapshot:Put",
			fmt.Sprintf("Replacing snapshot %s for turn %d with %s", old.ID, snap.Turn, snap.ID), "DEBUG")
	}
	m.resident[snap.Turn] = snap
	evicted := m.evictLocked()
	m.mu.Unlock()

	m.metrics.created.Add(context.Background(), 1)
	if len(evicted) > 0 {
		m.metrics.evicted.Add(context.Background(), int64(len(evicted)))
		m.writes.Push(evicted...)
		if !m.cfg.Async {
			if err := m.Flush(); err != nil {
				m.deps.LogManager.WriteLog("snapshot:Put", fmt.Sprintf("Durable write failed, will retry: %v", err), "ERROR")
			}
		}
	}
}

// evictLocked moves the oldest resident snapshots to pending until the bound holds.
func (m *Manager) evictLocked() []*core.Snapshot {
	var evicted []*core.Snapshot
	for len(m.resident) > m.cfg.MaxResident {
		oldest := slices.Min(mapKeys(m.resident))
		snap := m.resident[oldest]
		delete(m.resident, oldest)
		m.pending[oldest] = snap
		evicted = append(evicted, snap)
	}
	return evicted
}

func mapKeys[V any](m map[uint32]V) []uint32 {
	keys := make([]uint32, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// GetSnapshot returns the snapshot with the greatest turn <= turn across resident,
// pending and durable snapshots. ok is false when none exists; that is not an error.
// Returned snapshots are shared and must not be modified.
func (m *Manager) GetSnapshot(turn uint32) (snap *core.Snapshot, ok bool, err error) {
	for {
		m.mu.RLock()
		best, found := m.nearestLocked(turn)
		if !found {
			m.mu.RUnlock()
			return nil, false, nil
		}
		if s, ok := m.resident[best]; ok {
			m.mu.RUnlock()
			return s, true, nil
		}
		if s, ok := m.pending[best]; ok {
			m.mu.RUnlock()
			return s, true, nil
		}
		m.mu.RUnlock()

		s, err := m.deps.Store.LoadSnapshot(best)
		if errors.Is(err, core.ErrSnapshotNotFound) {
			// The store lost it underneath us; drop it from the index and look again.
			m.mu.Lock()
			delete(m.durable, best)
			m.mu.Unlock()
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("failed to load snapshot for turn %d: %w", best, err)
		}
		return s, true, nil
	}
}

func (m *Manager) nearestLocked(turn uint32) (uint32, bool) {
	var best uint32
	found := false
	consider := func(t uint32) {
		if t <= turn && (!found || t > best) {
			best, found = t, true
		}
	}
	for t := range m.resident {
		consider(t)
	}
	for t := range m.pending {
		consider(t)
	}
	for t := range m.durable {
		consider(t)
	}
	return best, found
}

// Turns lists every turn with a snapshot, in ascending order.
func (m *Manager) Turns() []uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := make(map[uint32]struct{}, len(m.resident)+len(m.pending)+len(m.durable))
	for t := range m.resident {
		set[t] = struct{}{}
	}
	for t := range m.pending {
		set[t] = struct{}{}
	}
	for t := range m.durable {
		set[t] = struct{}{}
	}
	turns := mapKeys(set)
	slices.Sort(turns)
	return turns
}

// Resident lists the turns held in memory, in ascending order.
func (m *Manager) Resident() []uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	turns := mapKeys(m.resident)
	slices.Sort(turns)
	return turns
}

// Pending reports how many evicted snapshots still wait for their durable write.
func (m *Manager) Pending() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pending)
}

// PersistAll writes every resident snapshot to the store without evicting it.
func (m *Manager) PersistAll() error {
	m.mu.RLock()
	snaps := make([]*core.Snapshot, 0, len(m.resident))
	for _, s := range m.resident {
		snaps = append(snaps, s)
	}
	m.mu.RUnlock()
	slices.SortFunc(snaps, func(a, b *core.Snapshot) int { return cmp.Compare(a.Turn, b.Turn) })

	for _, s := range snaps {
		if err := m.deps.Store.SaveSnapshot(s); err != nil {
			return fmt.Errorf("failed to persist snapshot for turn %d: %w", s.Turn, err)
		}
		m.mu.Lock()
		m.durable[s.Turn] = struct{}{}
		m.mu.Unlock()
	}
	return m.Flush()
}
