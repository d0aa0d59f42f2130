package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/OCAP2/turnkernel/internal/sim"
	"github.com/OCAP2/turnkernel/pkg/core"
)

// supersedeCheckEvery is how many applied events pass between cancellation checks.
const supersedeCheckEvery = 64

// reconstruct builds the state at target into a scratch world: it restores the
// nearest usable snapshot, or starts from the initial state when none exists, then
// replays every event visible at target.
func (c *Controller) reconstruct(ctx context.Context, gen uint64, target float64) (*sim.World, Stats, error) {
	start := time.Now()
	turn, intra := core.Decompose(target)
	stats := Stats{Source: c.cfg.Source, Target: target, Turn: turn, Intra: intra, At: start.UTC()}

	world, firstTurn, err := c.restoreNearest(turn, intra, &stats)
	if err != nil {
		return nil, stats, err
	}

	// Curves are evaluated at the latest visible event time when rounding in Decompose
	// put intra just below it.
	clock := intra
	events := c.deps.Events.EventsInRange(firstTurn, turn)
	for _, e := range events {
		if !e.VisibleBy(target) {
			break
		}
		if stats.Events%supersedeCheckEvery == 0 {
			if err := c.checkLive(ctx, gen); err != nil {
				return nil, stats, err
			}
		}
		if err := world.Apply(e); err != nil {
			return nil, stats, fmt.Errorf("replaying %s: %w", e, err)
		}
		if e.Turn == turn && e.Timed() && *e.Time > clock {
			clock = *e.Time
		}
		stats.Events++
	}
	if world.Turn == turn {
		world.EvaluateAt(clock)
	}
	if err := c.checkLive(ctx, gen); err != nil {
		return nil, stats, err
	}

	stats.Duration = time.Since(start)
	return world, stats, nil
}

// restoreNearest loads the latest snapshot that cannot contain events after the
// target. A snapshot for turn N holds all of turn N, so it serves a target inside
// turn N only at the turn's end.
func (c *Controller) restoreNearest(turn uint32, intra float64, stats *Stats) (*sim.World, uint32, error) {
	world := sim.New()
	lookup := turn
	if turn > 0 && intra < core.TurnDuration {
		lookup = turn - 1
	}

	var (
		snap *core.Snapshot
		ok   bool
		err  error
	)
	if c.deps.Snapshots != nil {
		snap, ok, err = c.deps.Snapshots.GetSnapshot(lookup)
		if err != nil {
			return nil, 0, fmt.Errorf("snapshot lookup for turn %d: %w", lookup, err)
		}
	}
	if !ok {
		c.metrics.misses.Add(context.Background(), 1)
		if lookup > 0 {
			c.deps.LogManager.WriteLog("replay:restoreNearest",
				fmt.Sprintf("No snapshot at or before turn %d, replaying from turn 0", lookup), "INFO")
		}
		return world, 0, nil
	}

	frag, present := snap.Fragments[core.WorldFragment]
	if !present {
		return nil, 0, fmt.Errorf("snapshot %s for turn %d has no %s fragment", snap.ID, snap.Turn, core.WorldFragment)
	}
	if err := world.Restore(frag); err != nil {
		return nil, 0, fmt.Errorf("snapshot %s: %w", snap.ID, err)
	}
	stats.FromSnapshot = true
	stats.SnapshotTurn = snap.Turn
	return world, snap.Turn + 1, nil
}

func (c *Controller) checkLive(ctx context.Context, gen uint64) error {
	if c.gen.Load() != gen {
		return ErrSuperseded
	}
	return ctx.Err()
}
