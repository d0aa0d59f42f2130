// Package eventstore is the append-only event log with turn and entity indices.
package eventstore

import (
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/OCAP2/turnkernel/pkg/core"
)

// Store holds events in append order. The turn and entity indices hold positions
// into that slice kept sorted by (turn, time, id); both are derived data and are
// rebuilt from the slice on restore.
type Store struct {
	mu       sync.RWMutex
	events   []core.Event
	byTurn   map[uint32][]int
	byEntity map[core.EntityID][]int
	nextID   core.EventID
	maxTurn  uint32
	now      func() time.Time
}

// New creates an empty store. Event ids start at 1.
func New() *Store {
	return &Store{
		byTurn:   make(map[uint32][]int),
		byEntity: make(map[core.EntityID][]int),
		nextID:   1,
		now:      time.Now,
	}
}

// Append assigns the next id and indexes the event. Events whose turn is behind the
// current maximum are rejected with *StaleAppendError.
func (s *Store) Append(e core.Event) (core.EventID, error) {
	if err := checkEvent(e); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.events) > 0 && e.Turn < s.maxTurn {
		return 0, &StaleAppendError{Turn: e.Turn, Current: s.maxTurn}
	}

	e.ID = s.nextID
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now().UTC()
	}
	s.nextID++
	s.insert(e)
	return e.ID, nil
}

func checkEvent(e core.Event) error {
	if e.Payload == nil {
		return fmt.Errorf("%w: missing payload", ErrMalformedEvent)
	}
	if e.Time != nil {
		t := *e.Time
		if math.IsNaN(t) || t < 0 || t > core.TurnDuration {
			return fmt.Errorf("%w: time %v outside [0,%v]", ErrMalformedEvent, t, core.TurnDuration)
		}
	}
	return nil
}

// insert appends e and places its position into both indices. Caller holds the lock.
func (s *Store) insert(e core.Event) {
	idx := len(s.events)
	s.events = append(s.events, e)
	if e.Turn > s.maxTurn {
		s.maxTurn = e.Turn
	}
	s.byTurn[e.Turn] = s.insertSorted(s.byTurn[e.Turn], idx)
	seen := make(map[core.EntityID]struct{}, 2)
	for _, id := range e.Entities() {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		s.byEntity[id] = s.insertSorted(s.byEntity[id], idx)
	}
}

func (s *Store) insertSorted(list []int, idx int) []int {
	pos, _ := slices.BinarySearchFunc(list, idx, func(a, b int) int {
		return core.Compare(s.events[a], s.events[b])
	})
	return slices.Insert(list, pos, idx)
}

func (s *Store) collect(list []int) []core.Event {
	out := make([]core.Event, len(list))
	for i, idx := range list {
		out[i] = s.events[idx]
	}
	return out
}

// EventsForTurn returns the turn's events in application order.
func (s *Store) EventsForTurn(turn uint32) []core.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byTurn[turn])
}

// EventsForEntity returns every event touching id in application order.
func (s *Store) EventsForEntity(id core.EntityID) []core.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byEntity[id])
}

// EventsInRange concatenates EventsForTurn for lo..hi inclusive.
func (s *Store) EventsInRange(lo, hi uint32) []core.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rangeLocked(lo, hi)
}

func (s *Store) rangeLocked(lo, hi uint32) []core.Event {
	var out []core.Event
	if hi > s.maxTurn {
		hi = s.maxTurn
	}
	for turn := lo; turn <= hi; turn++ {
		out = append(out, s.collect(s.byTurn[turn])...)
		if turn == math.MaxUint32 {
			break
		}
	}
	return out
}

// All returns the whole log in application order.
func (s *Store) All() []core.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.events) == 0 {
		return nil
	}
	return s.rangeLocked(0, s.maxTurn)
}

// Get returns the event with the given id.
func (s *Store) Get(id core.EventID) (core.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].ID == id {
			return s.events[i], true
		}
	}
	return core.Event{}, false
}

// Len is the number of events.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// MaxTurn is the highest turn appended so far.
func (s *Store) MaxTurn() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxTurn
}

// LastID is the most recently assigned id, 0 for an empty store.
func (s *Store) LastID() core.EventID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextID - 1
}

// Turns lists the turns that hold at least one event, ascending.
func (s *Store) Turns() []uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := make([]uint32, 0, len(s.byTurn))
	for turn := range s.byTurn {
		turns = append(turns, turn)
	}
	slices.Sort(turns)
	return turns
}

// Entities lists every entity referenced by the log, ascending.
func (s *Store) Entities() []core.EntityID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]core.EntityID, 0, len(s.byEntity))
	for id := range s.byEntity {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
