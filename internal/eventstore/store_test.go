package eventstore

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/OCAP2/turnkernel/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustAppend(t *testing.T, s *Store, e core.Event) core.EventID {
	t.Helper()
	id, err := s.Append(e)
	require.NoError(t, err)
	return id
}

func ids(events []core.Event) []core.EventID {
	out := make([]core.EventID, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

func TestAppendAssignsMonotonicIDs(t *testing.T) {
	s := New()
	assert.Equal(t, core.EventID(0), s.LastID())

	a := mustAppend(t, s, core.Event{Turn: 0, Payload: core.EntitySpawned{Entity: 1}})
	b := mustAppend(t, s, core.Event{Turn: 1, Payload: core.TurnStarted{}})

	assert.Equal(t, core.EventID(1), a)
	assert.Equal(t, core.EventID(2), b)
	assert.Equal(t, core.EventID(2), s.LastID())
	assert.Equal(t, uint32(1), s.MaxTurn())

	got, ok := s.Get(1)
	require.True(t, ok)
	assert.False(t, got.Timestamp.IsZero())
}

func TestAppendRejectsStaleTurn(t *testing.T) {
	s := New()
	mustAppend(t, s, core.Event{Turn: 3, Payload: core.TurnStarted{}})

	_, err := s.Append(core.Event{Turn: 2, Payload: core.TurnEnded{}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStaleAppend)

	var stale *StaleAppendError
	require.True(t, errors.As(err, &stale))
	assert.Equal(t, uint32(3), stale.Current)
	assert.Equal(t, 1, s.Len())

	// same turn is fine
	mustAppend(t, s, core.Event{Turn: 3, Payload: core.TurnEnded{}})
}

func TestAppendRejectsMalformed(t *testing.T) {
	s := New()
	_, err := s.Append(core.Event{Turn: 1})
	assert.ErrorIs(t, err, ErrMalformedEvent)

	_, err = s.Append(core.Event{Turn: 1, Time: core.At(10.5), Payload: core.TurnEnded{}})
	assert.ErrorIs(t, err, ErrMalformedEvent)

	_, err = s.Append(core.Event{Turn: 1, Time: core.At(-0.1), Payload: core.TurnEnded{}})
	assert.ErrorIs(t, err, ErrMalformedEvent)
	assert.Equal(t, 0, s.Len())
}

func TestEventsForTurnOrdering(t *testing.T) {
	s := New()
	// Submitted out of time order within the turn.
	late := mustAppend(t, s, core.Event{Turn: 1, Time: core.At(7), Payload: core.DamageDealt{Target: 1, Amount: 5}})
	early := mustAppend(t, s, core.Event{Turn: 1, Time: core.At(2), Payload: core.DamageDealt{Target: 2, Amount: 5}})
	plan := mustAppend(t, s, core.Event{Turn: 1, Payload: core.PlayerReady{Player: "red"}})
	tie := mustAppend(t, s, core.Event{Turn: 1, Time: core.At(7), Payload: core.DamageDealt{Target: 1, Amount: 1}})

	assert.Equal(t, []core.EventID{plan, early, late, tie}, ids(s.EventsForTurn(1)))
	assert.Empty(t, s.EventsForTurn(9))
}

func TestEventsForEntity(t *testing.T) {
	s := New()
	mustAppend(t, s, core.Event{Turn: 0, Payload: core.EntitySpawned{Entity: 1}})
	mustAppend(t, s, core.Event{Turn: 0, Payload: core.EntitySpawned{Entity: 2}})
	fired := mustAppend(t, s, core.Event{Turn: 1, Time: core.At(1), Payload: core.WeaponFired{Attacker: 1, Target: 2}})
	mustAppend(t, s, core.Event{Turn: 1, Time: core.At(3), Payload: core.DamageDealt{Target: 2, Source: 2, Amount: 1}})

	assert.Equal(t, []core.EventID{1, fired}, ids(s.EventsForEntity(1)))
	assert.Len(t, s.EventsForEntity(2), 3)
	assert.Empty(t, s.EventsForEntity(42))
	assert.Equal(t, []core.EntityID{1, 2}, s.Entities())
}

func TestEventsInRange(t *testing.T) {
	s := New()
	for turn := uint32(1); turn <= 4; turn++ {
		mustAppend(t, s, core.Event{Turn: turn, Payload: core.TurnStarted{}})
		mustAppend(t, s, core.Event{Turn: turn, Time: core.At(10), Payload: core.TurnEnded{}})
	}

	got := s.EventsInRange(2, 3)
	require.Len(t, got, 4)
	assert.Equal(t, uint32(2), got[0].Turn)
	assert.Equal(t, uint32(3), got[3].Turn)

	assert.Empty(t, s.EventsInRange(3, 2))
	assert.Len(t, s.EventsInRange(4, 100), 2)
	assert.Equal(t, []uint32{1, 2, 3, 4}, s.Turns())
}

func TestConcurrentReaders(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_, _ = s.Append(core.Event{Turn: 1, Time: core.At(float64(i % 10)), Payload: core.TurnStarted{}})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = s.EventsForTurn(1)
			_ = s.All()
		}
	}()
	wg.Wait()
	assert.Equal(t, 200, s.Len())
}

func sampleStore(t *testing.T) *Store {
	s := New()
	mustAppend(t, s, core.Event{Turn: 0, Payload: core.EntitySpawned{Entity: 1, Position: core.V(1, 2, 3), Envelope: core.DefaultEnvelope()}})
	mustAppend(t, s, core.Event{Turn: 1, Payload: core.TurnStarted{}})
	mustAppend(t, s, core.Event{Turn: 1, Time: core.At(4), Payload: core.DamageDealt{Target: 1, Amount: 10}})
	mustAppend(t, s, core.Event{Turn: 1, Time: core.At(0), Payload: core.SimulationStarted{}})
	mustAppend(t, s, core.Event{Turn: 1, Time: core.At(10), Payload: core.TurnEnded{}})
	return s
}

func TestPersistRestore(t *testing.T) {
	s := sampleStore(t)

	var buf bytes.Buffer
	require.NoError(t, s.Persist(&buf))

	restored, err := Restore(&buf)
	require.NoError(t, err)
	assert.Equal(t, ids(s.All()), ids(restored.All()))
	assert.Equal(t, s.LastID(), restored.LastID())
	assert.Equal(t, s.MaxTurn(), restored.MaxTurn())
	assert.Equal(t, ids(s.EventsForEntity(1)), ids(restored.EventsForEntity(1)))

	id, err := restored.Append(core.Event{Turn: 2, Payload: core.TurnStarted{}})
	require.NoError(t, err)
	assert.Equal(t, core.EventID(6), id)
}

func TestPersistFileCompressed(t *testing.T) {
	s := sampleStore(t)
	dir := t.TempDir()

	for _, compress := range []bool{true, false} {
		path := filepath.Join(dir, "events.json")
		if compress {
			path += ".gz"
		}
		require.NoError(t, s.PersistFile(path, compress))

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, compress, raw[0] == 0x1f)

		restored, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, s.Len(), restored.Len())
	}
}

func TestPersistFileFailureKeepsPreviousLog(t *testing.T) {
	s := sampleStore(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "events.json")
	require.NoError(t, s.PersistFile(path, false))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	// NaN cannot be encoded as JSON.
	_, err = s.Append(core.Event{Turn: s.MaxTurn(), Payload: core.DamageDealt{Target: 1, Amount: math.NaN()}})
	require.NoError(t, err)
	for _, compress := range []bool{false, true} {
		assert.Error(t, s.PersistFile(path, compress))
	}

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "events.json", entries[0].Name())
}

func TestRestoreRejectsCorruptLogs(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not an array", `{"id":1}`},
		{"turn goes backwards", `[
			{"id":1,"turn":2,"type":"turn.started","payload":{}},
			{"id":2,"turn":1,"type":"turn.started","payload":{}}]`},
		{"time goes backwards", `[
			{"id":1,"turn":1,"time":5,"type":"turn.ended","payload":{}},
			{"id":2,"turn":1,"time":4,"type":"turn.ended","payload":{}}]`},
		{"tie out of id order", `[
			{"id":3,"turn":1,"time":5,"type":"turn.ended","payload":{}},
			{"id":2,"turn":1,"time":5,"type":"turn.ended","payload":{}}]`},
		{"timed before untimed", `[
			{"id":1,"turn":1,"time":0,"type":"turn.simulation_started","payload":{}},
			{"id":2,"turn":1,"type":"turn.player_ready","payload":{"player":"a"}}]`},
		{"duplicate id", `[
			{"id":1,"turn":1,"type":"turn.started","payload":{}},
			{"id":1,"turn":2,"type":"turn.started","payload":{}}]`},
		{"unknown type", `[{"id":1,"turn":1,"type":"turn.exploded","payload":{}}]`},
		{"time outside window", `[{"id":1,"turn":1,"time":11,"type":"turn.ended","payload":{}}]`},
		{"truncated", `[{"id":1,"turn":1,"type":"turn.started","payload":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Restore(strings.NewReader(tt.data))
			assert.Nil(t, s)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCorruptLog)

			var corrupt *CorruptLogError
			assert.True(t, errors.As(err, &corrupt))
		})
	}
}

func TestRestoreEmptyLog(t *testing.T) {
	s, err := Restore(strings.NewReader("[]"))
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
	assert.Nil(t, s.All())
}
