package session

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/turnkernel/internal/eventstore"
	"github.com/OCAP2/turnkernel/internal/movement"
	"github.com/OCAP2/turnkernel/internal/replay"
	"github.com/OCAP2/turnkernel/internal/sim"
	"github.com/OCAP2/turnkernel/internal/snapshot"
	"github.com/OCAP2/turnkernel/internal/storage/memory"
	"github.com/OCAP2/turnkernel/pkg/core"
)

var players = []core.PlayerID{"red", "blue"}

func newSession(t *testing.T, interval uint32, cfg Config) *Session {
	t.Helper()
	mgr, err := snapshot.NewManager(snapshot.Config{Interval: interval, MaxResident: 2}, snapshot.Dependencies{
		Store: memory.New(),
	})
	require.NoError(t, err)
	require.NoError(t, mgr.Init())
	t.Cleanup(func() { mgr.Close() })

	if cfg.Players == nil {
		cfg.Players = players
	}
	if cfg.Scenario == "" {
		cfg.Scenario = "skirmish"
	}
	s, err := New(cfg, Dependencies{Snapshots: mgr})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func spawnFleet(t *testing.T, s *Session) {
	t.Helper()
	_, err := s.SpawnEntity(core.EntitySpawned{Entity: 1, Kind: "frigate", Owner: "red", Subsystems: []string{"engine"}})
	require.NoError(t, err)
	_, err = s.SpawnEntity(core.EntitySpawned{Entity: 2, Kind: "cruiser", Owner: "blue", Position: core.V(30, 0, 0)})
	require.NoError(t, err)
}

// playTurn runs a full turn in which each entity moves by its offset. During turn 2
// entity 1 fires and the external damage model reports a hit.
func playTurn(t *testing.T, s *Session, offsets map[core.EntityID]core.Vec3) uint32 {
	t.Helper()
	turn, err := s.StartTurn()
	require.NoError(t, err)

	live := s.Live()
	for _, id := range live.EntityIDs() {
		off, ok := offsets[id]
		if !ok {
			continue
		}
		ent, _ := live.Entity(id)
		_, err := s.AppendAction(turn, id, PlanMove{Target: ent.Position.Add(off)})
		require.NoError(t, err)
		_, err = s.AppendAction(turn, id, ConfirmMove{})
		require.NoError(t, err)
	}
	for _, p := range players {
		_, err := s.AppendAction(turn, 0, Ready{Player: p})
		require.NoError(t, err)
	}
	require.NoError(t, s.BeginSimulation())
	if turn == 2 {
		_, err := s.AppendAction(turn, 1, Fire{Target: 2, Weapon: "railgun", At: 3})
		require.NoError(t, err)
		_, err = s.RecordEvent(core.At(3.5), core.ProjectileHit{Target: 2, Weapon: "railgun"})
		require.NoError(t, err)
		_, err = s.RecordEvent(core.At(3.5), core.DamageDealt{Target: 2, Source: 1, Amount: 25})
		require.NoError(t, err)
		_, err = s.RecordEvent(core.At(6), core.SubsystemDamaged{Entity: 1, Subsystem: "engine", Amount: 40})
		require.NoError(t, err)
	}
	require.NoError(t, s.CompleteSimulation())
	return turn
}

var defaultMoves = map[core.EntityID]core.Vec3{1: core.V(8, 0, 2), 2: core.V(-5, 1, 5)}

func capture(t *testing.T, w *sim.World) string {
	t.Helper()
	data, err := w.Capture()
	require.NoError(t, err)
	return string(data)
}

func TestMomentumScenario(t *testing.T) {
	s := newSession(t, 1, Config{})
	_, err := s.SpawnEntity(core.EntitySpawned{Entity: 1, Kind: "frigate"})
	require.NoError(t, err)

	turn, err := s.StartTurn()
	require.NoError(t, err)
	_, err = s.AppendAction(turn, 1, PlanMove{Target: core.V(10, 0, 0)})
	require.NoError(t, err)
	r, err := s.AppendAction(turn, 1, ConfirmMove{})
	require.NoError(t, err)
	e, ok := s.Events().Get(r.EventID)
	require.True(t, ok)
	assert.Equal(t, core.V(4, 0, 0), e.Payload.(core.MovementConfirmed).Control)

	require.NoError(t, s.BeginSimulation())
	require.NoError(t, s.CompleteSimulation())

	ent, _ := s.Live().Entity(1)
	assert.Equal(t, core.V(10, 0, 0), ent.Position)
	assert.Equal(t, core.V(6, 0, 0), ent.LastVelocity)

	turn, err = s.StartTurn()
	require.NoError(t, err)
	_, err = s.AppendAction(turn, 1, PlanMove{Target: core.V(20, 5, 0)})
	require.NoError(t, err)
	r, err = s.AppendAction(turn, 1, ConfirmMove{})
	require.NoError(t, err)
	e, _ = s.Events().Get(r.EventID)
	assert.True(t, e.Payload.(core.MovementConfirmed).Control.ApproxEqual(core.V(12.4, 0, 0), 1e-9))
}

func TestSeekMatchesLiveState(t *testing.T) {
	s := newSession(t, 2, Config{})
	spawnFleet(t, s)
	for range 4 {
		playTurn(t, s, defaultMoves)
	}

	w, err := s.SeekToTime(context.Background(), s.Replay().End())
	require.NoError(t, err)
	assert.Equal(t, capture(t, s.Live()), capture(t, w))

	target, _ := w.Entity(2)
	assert.Equal(t, 75.0, target.Health)
	assert.Equal(t, 1, target.HitsTaken)
	attacker, _ := w.Entity(1)
	assert.Equal(t, 60.0, attacker.Subsystems["engine"].Health)
}

func TestSeekIsSnapshotTransparent(t *testing.T) {
	s := newSession(t, 1, Config{})
	spawnFleet(t, s)
	for range 4 {
		playTurn(t, s, defaultMoves)
	}
	require.NotEmpty(t, s.Snapshots().Turns())

	plain, err := replay.NewController(replay.Config{}, replay.Dependencies{Events: s.Events()})
	require.NoError(t, err)

	for _, total := range []float64{0, 4, 10, 13.25, 13.5, 16, 20, 20 + core.PlanningInstant, 27.5, 40} {
		got, err := s.SeekToTime(context.Background(), total)
		require.NoError(t, err)
		want, err := plain.SeekToTime(context.Background(), total)
		require.NoError(t, err)
		assert.Equal(t, capture(t, want), capture(t, got), "t=%v", total)
	}
}

func TestEvictedSnapshotsStillServeSeeks(t *testing.T) {
	s := newSession(t, 1, Config{})
	spawnFleet(t, s)
	for range 5 {
		playTurn(t, s, defaultMoves)
	}
	assert.Equal(t, []uint32{4, 5}, s.Snapshots().Resident())
	assert.Equal(t, []uint32{1, 2, 3, 4, 5}, s.Snapshots().Turns())

	snap, ok, err := s.Snapshots().GetSnapshot(2)
	require.NoError(t, err)
	require.True(t, ok)

	w, err := s.SeekToTime(context.Background(), 20)
	require.NoError(t, err)
	assert.Equal(t, string(snap.Fragments[core.WorldFragment]), capture(t, w))
}

func TestSnapshotsFollowInterval(t *testing.T) {
	s := newSession(t, 2, Config{})
	spawnFleet(t, s)
	for range 4 {
		playTurn(t, s, defaultMoves)
	}
	assert.Equal(t, []uint32{2, 4}, s.Snapshots().Turns())

	snap, ok, err := s.Snapshots().GetSnapshot(3)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(2), snap.Turn)
	assert.Equal(t, lastID(s.Events().EventsInRange(0, 2)), snap.LastEventID)
}

func lastID(events []core.Event) core.EventID {
	var last core.EventID
	for _, e := range events {
		last = max(last, e.ID)
	}
	return last
}

func TestAppendActionRejections(t *testing.T) {
	s := newSession(t, 1, Config{})
	spawnFleet(t, s)

	_, err := s.AppendAction(1, 1, PlanMove{Target: core.V(1, 0, 0)})
	assert.ErrorIs(t, err, ErrTurnNotStarted, "setup has no turn to plan in")

	turn := playTurn(t, s, defaultMoves)
	next, err := s.StartTurn()
	require.NoError(t, err)
	before := s.Events().Len()

	_, err = s.AppendAction(turn, 1, PlanMove{Target: core.V(1, 0, 0)})
	assert.ErrorIs(t, err, eventstore.ErrStaleAppend)
	var stale *eventstore.StaleAppendError
	require.ErrorAs(t, err, &stale)
	assert.Equal(t, next, stale.Current)

	_, err = s.AppendAction(next+1, 1, PlanMove{Target: core.V(1, 0, 0)})
	assert.ErrorIs(t, err, ErrTurnNotStarted)

	_, err = s.AppendAction(next, 1, PlanMove{Target: core.V(100, 0, 0)})
	var verr *movement.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, err, movement.ErrOutOfRange)
	assert.Equal(t, core.EntityID(1), verr.Entity)

	_, err = s.AppendAction(next, 9, PlanMove{Target: core.V(1, 0, 0)})
	assert.ErrorIs(t, err, ErrUnknownEntity)

	_, err = s.AppendAction(next, 2, ConfirmMove{})
	assert.ErrorIs(t, err, ErrNoPlan)

	_, err = s.AppendAction(next, 0, Ready{Player: "green"})
	assert.ErrorIs(t, err, ErrUnknownPlayer)

	_, err = s.AppendAction(next, 1, Fire{Target: 2, At: 1})
	assert.ErrorIs(t, err, ErrWrongPhase)

	assert.Equal(t, before, s.Events().Len())

	require.NoError(t, s.BeginSimulation())
	before = s.Events().Len()
	_, err = s.AppendAction(next, 1, PlanMove{Target: core.V(1, 0, 0)})
	assert.ErrorIs(t, err, movement.ErrMidSimulation)
	assert.Equal(t, before, s.Events().Len())
}

func TestClampedPlanIsReturned(t *testing.T) {
	s := newSession(t, 1, Config{ClampTargets: true})
	_, err := s.SpawnEntity(core.EntitySpawned{Entity: 1})
	require.NoError(t, err)
	turn, err := s.StartTurn()
	require.NoError(t, err)

	r, err := s.AppendAction(turn, 1, PlanMove{Target: core.V(50, 0, 0)})
	require.NoError(t, err)
	require.NotNil(t, r.Planned)
	assert.True(t, r.Planned.Clamped)
	assert.True(t, r.Planned.Target.ApproxEqual(core.V(20, 0, 0), 1e-9))

	e, _ := s.Events().Get(r.EventID)
	assert.Equal(t, *r.Planned, e.Payload)
}

func TestRecordEventPhases(t *testing.T) {
	s := newSession(t, 1, Config{})
	spawnFleet(t, s)
	turn, err := s.StartTurn()
	require.NoError(t, err)

	_, err = s.RecordEvent(core.At(2), core.DamageDealt{Target: 2, Amount: 5})
	assert.ErrorIs(t, err, ErrWrongPhase)
	_, err = s.RecordEvent(nil, core.SubsystemDisabled{Entity: 1, Subsystem: "engine"})
	require.NoError(t, err)
	_, err = s.RecordEvent(nil, core.TurnEnded{})
	assert.ErrorIs(t, err, ErrWrongPhase)

	require.NoError(t, s.BeginSimulation())
	_, err = s.RecordEvent(nil, core.SubsystemRepaired{Entity: 1, Subsystem: "engine"})
	assert.ErrorIs(t, err, ErrWrongPhase)

	_, err = s.RecordEvent(core.At(4), core.CollisionDetected{A: 1, B: 2})
	require.NoError(t, err)
	_, err = s.RecordEvent(core.At(3), core.DamageDealt{Target: 2, Amount: 5})
	require.NoError(t, err)
	assert.Equal(t, 4.0, s.Live().Clock)
	_, err = s.RecordEvent(core.At(11), core.DamageDealt{Target: 2, Amount: 5})
	assert.ErrorIs(t, err, eventstore.ErrMalformedEvent)

	require.NoError(t, s.CompleteSimulation())
	assert.Equal(t, sim.PhaseResolved, s.Phase())
	assert.Equal(t, turn, s.Turn())
	_, err = s.RecordEvent(core.At(10), core.DamageDealt{Target: 2, Amount: 5})
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func TestLifecyclePhaseChecks(t *testing.T) {
	s := newSession(t, 1, Config{})
	spawnFleet(t, s)

	assert.ErrorIs(t, s.BeginSimulation(), ErrWrongPhase)
	assert.ErrorIs(t, s.CompleteSimulation(), ErrWrongPhase)

	_, err := s.StartTurn()
	require.NoError(t, err)
	_, err = s.StartTurn()
	assert.ErrorIs(t, err, ErrWrongPhase)

	require.NoError(t, s.BeginSimulation())
	_, err = s.SpawnEntity(core.EntitySpawned{Entity: 3})
	assert.ErrorIs(t, err, ErrWrongPhase)
	_, err = s.EndSession()
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func TestNonMovingEntitySettlesWithoutMomentum(t *testing.T) {
	s := newSession(t, 1, Config{})
	spawnFleet(t, s)
	playTurn(t, s, map[core.EntityID]core.Vec3{1: core.V(5, 0, 0)})

	parked, _ := s.Live().Entity(2)
	assert.Equal(t, core.V(30, 0, 0), parked.Position)
	assert.Equal(t, core.Zero, parked.LastVelocity)

	var updates int
	for _, e := range s.Events().EventsForTurn(1) {
		if _, ok := e.Payload.(core.PositionUpdated); ok {
			updates++
			assert.Equal(t, core.TurnDuration, *e.Time)
		}
	}
	assert.Equal(t, 2, updates)
}

func TestCreateSnapshotNow(t *testing.T) {
	s := newSession(t, 100, Config{})
	spawnFleet(t, s)

	_, err := s.CreateSnapshotNow(context.Background())
	assert.ErrorIs(t, err, ErrNoClosedTurn)

	_, err = s.StartTurn()
	require.NoError(t, err)
	_, err = s.CreateSnapshotNow(context.Background())
	assert.ErrorIs(t, err, ErrNoClosedTurn)
	require.NoError(t, s.BeginSimulation())
	require.NoError(t, s.CompleteSimulation())
	assert.Empty(t, s.Snapshots().Turns())

	id, err := s.CreateSnapshotNow(context.Background())
	require.NoError(t, err)
	assert.Len(t, id, 26)
	assert.Equal(t, []uint32{1}, s.Snapshots().Turns())

	playTurn(t, s, defaultMoves)
	endOfTwo := capture(t, s.Live())
	turn, err := s.StartTurn()
	require.NoError(t, err)
	_, err = s.AppendAction(turn, 1, PlanMove{Target: core.V(1, 0, 1)})
	require.NoError(t, err)

	_, err = s.CreateSnapshotNow(context.Background())
	require.NoError(t, err)
	snap, ok, err := s.Snapshots().GetSnapshot(2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(2), snap.Turn)
	assert.Equal(t, endOfTwo, string(snap.Fragments[core.WorldFragment]))
}

type particles struct {
	state []byte
}

func (p *particles) Name() string             { return "particles" }
func (p *particles) Capture() ([]byte, error) { return p.state, nil }
func (p *particles) Restore(b []byte) error   { p.state = b; return nil }

func TestRegisterCapturer(t *testing.T) {
	s := newSession(t, 1, Config{})
	spawnFleet(t, s)

	assert.Error(t, s.RegisterCapturer(sim.New()))
	require.NoError(t, s.RegisterCapturer(&particles{state: []byte(`{"emitters":3}`)}))
	assert.Error(t, s.RegisterCapturer(&particles{}))

	playTurn(t, s, defaultMoves)
	snap, ok, err := s.Snapshots().GetSnapshot(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"particles", core.WorldFragment}, snap.FragmentNames())
	assert.Equal(t, `{"emitters":3}`, string(snap.Fragments["particles"]))
}

func TestCurrentReconstructedState(t *testing.T) {
	s := newSession(t, 1, Config{})
	spawnFleet(t, s)
	playTurn(t, s, defaultMoves)
	playTurn(t, s, defaultMoves)

	assert.Equal(t, capture(t, s.Live()), capture(t, s.CurrentReconstructedState()))

	_, err := s.SeekToTime(context.Background(), 5)
	require.NoError(t, err)
	got := s.CurrentReconstructedState()
	assert.Equal(t, uint32(1), got.Turn)
	assert.Equal(t, 5.0, got.Clock)
	assert.Equal(t, uint32(2), s.Turn())
}

func TestEndSession(t *testing.T) {
	s := newSession(t, 1, Config{})
	spawnFleet(t, s)
	playTurn(t, s, defaultMoves)

	_, err := s.EndSession()
	require.NoError(t, err)
	assert.True(t, s.Live().Ended)

	_, err = s.StartTurn()
	assert.ErrorIs(t, err, ErrEnded)
	_, err = s.AppendAction(1, 1, CancelMove{})
	assert.ErrorIs(t, err, ErrEnded)

	snap, ok, err := s.Snapshots().GetSnapshot(1)
	require.NoError(t, err)
	require.True(t, ok)
	w := sim.New()
	require.NoError(t, w.Restore(snap.Fragments[core.WorldFragment]))
	assert.True(t, w.Ended)
	assert.Equal(t, capture(t, s.Live()), capture(t, w))
}

// Appending a turn's timed events in reverse submission order must not change
// the replayed state.
func TestOrderingIdempotence(t *testing.T) {
	s := newSession(t, 1, Config{})
	spawnFleet(t, s)
	for range 3 {
		playTurn(t, s, defaultMoves)
	}

	shuffled := eventstore.New()
	for turn := uint32(0); turn <= s.Events().MaxTurn(); turn++ {
		events := s.Events().EventsForTurn(turn)
		var untimed, timed []core.Event
		for _, e := range events {
			if e.Timed() {
				timed = append(timed, e)
			} else {
				untimed = append(untimed, e)
			}
		}
		slices.SortStableFunc(timed, func(a, b core.Event) int {
			switch {
			case *a.Time > *b.Time:
				return -1
			case *a.Time < *b.Time:
				return 1
			}
			return 0
		})
		for _, e := range append(untimed, timed...) {
			e.ID = 0
			_, err := shuffled.Append(e)
			require.NoError(t, err)
		}
	}

	ctrl, err := replay.NewController(replay.Config{}, replay.Dependencies{Events: shuffled})
	require.NoError(t, err)
	got, err := ctrl.SeekToTime(context.Background(), ctrl.End())
	require.NoError(t, err)
	want := s.Live()

	assert.Equal(t, want.Turn, got.Turn)
	assert.Equal(t, want.Phase, got.Phase)
	require.Equal(t, want.EntityIDs(), got.EntityIDs())
	for _, id := range want.EntityIDs() {
		we, _ := want.Entity(id)
		ge, _ := got.Entity(id)
		assert.Equal(t, we, ge, "entity %d", id)
	}
}

func TestLateEventRefoldsTurn(t *testing.T) {
	play := func(order []float64) *Session {
		s := newSession(t, 1, Config{})
		spawnFleet(t, s)
		playTurn(t, s, defaultMoves)
		turn, err := s.StartTurn()
		require.NoError(t, err)
		for _, id := range []core.EntityID{1, 2} {
			ent, _ := s.Live().Entity(id)
			_, err := s.AppendAction(turn, id, PlanMove{Target: ent.Position.Add(defaultMoves[id])})
			require.NoError(t, err)
			_, err = s.AppendAction(turn, id, ConfirmMove{})
			require.NoError(t, err)
		}
		require.NoError(t, s.BeginSimulation())
		for _, at := range order {
			shooter, target := core.EntityID(1), core.EntityID(2)
			if at == 5 {
				shooter, target = 2, 1
			}
			_, err := s.AppendAction(turn, shooter, Fire{Target: target, Weapon: "railgun", At: at})
			require.NoError(t, err)
		}
		_, err = s.RecordEvent(core.At(4), core.DamageDealt{Target: 2, Source: 1, Amount: 10})
		require.NoError(t, err)
		return s
	}

	sorted := play([]float64{3, 5})
	late := play([]float64{5, 3})

	want, got := sorted.Live(), late.Live()
	assert.Equal(t, want.Clock, got.Clock)
	assert.Equal(t, 5.0, got.Clock)
	assert.Equal(t, want.Phase, got.Phase)
	for _, id := range want.EntityIDs() {
		we, _ := want.Entity(id)
		ge, _ := got.Entity(id)
		assert.Equal(t, we, ge, "entity %d", id)
	}
	shooter, _ := got.Entity(1)
	assert.Equal(t, 1, shooter.ShotsFired)

	seek, err := late.SeekToTime(context.Background(), late.Replay().End())
	require.NoError(t, err)
	assert.Equal(t, capture(t, late.Live()), capture(t, seek))

	require.NoError(t, late.CompleteSimulation())
	assert.Equal(t, sim.PhaseResolved, late.Phase())
}

func TestSaveAndOpen(t *testing.T) {
	s := newSession(t, 2, Config{CompressLog: true})
	spawnFleet(t, s)
	for range 3 {
		playTurn(t, s, defaultMoves)
	}
	_, err := s.EndSession()
	require.NoError(t, err)

	dir := t.TempDir()
	m, err := s.Save(dir)
	require.NoError(t, err)
	assert.Equal(t, EventsFileGz, m.EventLog)
	assert.Equal(t, uint32(3), m.CurrentTurn)
	assert.True(t, m.Ended)
	assert.True(t, IsSessionDir(dir))
	assert.FileExists(t, filepath.Join(dir, SnapshotsDir, "turn-0000000002.json.gz"))

	opened, err := Open(dir, Config{}, Dependencies{})
	require.NoError(t, err)
	defer opened.Close()

	assert.True(t, opened.ReadOnly())
	assert.Equal(t, s.ID(), opened.ID())
	assert.Equal(t, "skirmish", opened.Scenario())
	assert.Equal(t, players, opened.Players())
	assert.Equal(t, capture(t, s.Live()), capture(t, opened.Live()))
	assert.Equal(t, []uint32{2}, opened.Snapshots().Turns())

	for _, total := range []float64{7.5, 15, 25} {
		want, err := s.SeekToTime(context.Background(), total)
		require.NoError(t, err)
		got, err := opened.SeekToTime(context.Background(), total)
		require.NoError(t, err)
		assert.Equal(t, capture(t, want), capture(t, got), "t=%v", total)
	}
	assert.True(t, opened.Replay().LastStats().FromSnapshot)

	_, err = opened.StartTurn()
	assert.ErrorIs(t, err, ErrReadOnly)
	_, err = opened.AppendAction(3, 1, CancelMove{})
	assert.ErrorIs(t, err, ErrReadOnly)

	ctrl := opened.Replay()
	ctrl.Play()
	require.NoError(t, ctrl.Advance(context.Background(), 1000))
	assert.Equal(t, replay.EndOfLog, ctrl.EndReason())
	assert.Equal(t, replay.StatePaused, ctrl.State())
}

func TestOpenRejectsCorruptLog(t *testing.T) {
	s := newSession(t, 1, Config{})
	spawnFleet(t, s)
	playTurn(t, s, defaultMoves)

	dir := t.TempDir()
	_, err := s.Save(dir)
	require.NoError(t, err)

	path := filepath.Join(dir, EventsFile)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var entries []json.RawMessage
	require.NoError(t, json.Unmarshal(data, &entries))
	entries[0], entries[len(entries)-1] = entries[len(entries)-1], entries[0]
	data, err = json.Marshal(entries)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	_, err = Open(dir, Config{}, Dependencies{})
	assert.ErrorIs(t, err, eventstore.ErrCorruptLog)
}

func TestReadManifestRejectsForeignFormat(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFile), []byte(`{"format":"other","version":1}`), 0644))
	_, err := ReadManifest(dir)
	assert.Error(t, err)

	_, err = ReadManifest(t.TempDir())
	assert.Error(t, err)
	assert.False(t, IsSessionDir(t.TempDir()))
}
