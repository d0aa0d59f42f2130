// Package replay reconstructs the simulation state at any instant from the event log
// and the nearest usable snapshot, and drives playback over a live or saved session.
// Every path, seek, playback and frame stepping alike, goes through one reconstruction
// routine that builds into a scratch world and swaps it in only when complete.
package replay

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/OCAP2/turnkernel/internal/logging"
	"github.com/OCAP2/turnkernel/internal/sim"
	"github.com/OCAP2/turnkernel/pkg/core"
)

// EventSource is the read side of the event log.
type EventSource interface {
	EventsInRange(lo, hi uint32) []core.Event
	EventsForTurn(turn uint32) []core.Event
	MaxTurn() uint32
	Len() int
}

// SnapshotSource finds the latest snapshot at or before a turn.
type SnapshotSource interface {
	GetSnapshot(turn uint32) (*core.Snapshot, bool, error)
}

// Config holds playback settings.
type Config struct {
	// FrameStep is the distance in seconds covered by one StepFrame.
	FrameStep float64
	MaxSpeed  float64
	Source    Source
}

// Dependencies holds the collaborators of a Controller. Snapshots, LogManager and
// Sink are optional.
type Dependencies struct {
	Events     EventSource
	Snapshots  SnapshotSource
	LogManager *logging.SlogManager
	Sink       StatsSink
}

// Controller is the playback state machine. It starts Paused at time zero.
type Controller struct {
	mu        sync.Mutex
	cfg       Config
	deps      Dependencies
	state     State
	resume    State
	speed     float64
	position  float64
	current   *sim.World
	endReason EndReason
	last      Stats

	// gen is bumped by every request that supersedes in-flight reconstructions.
	gen     atomic.Uint64
	metrics *metrics
}

// NewController creates a controller over the given event source.
func NewController(cfg Config, deps Dependencies) (*Controller, error) {
	if deps.Events == nil {
		return nil, fmt.Errorf("replay controller requires an event source")
	}
	if cfg.FrameStep <= 0 {
		cfg.FrameStep = 0.1
	}
	if cfg.MaxSpeed <= 0 {
		cfg.MaxSpeed = 8
	}
	met, err := newMetrics()
	if err != nil {
		return nil, err
	}
	return &Controller{
		cfg:     cfg,
		deps:    deps,
		state:   StatePaused,
		resume:  StatePaused,
		speed:   1,
		metrics: met,
	}, nil
}

// SeekToTime reconstructs the state at total seconds since session start and makes it
// current. A newer seek or frame step started before this one completes wins: this
// call then returns ErrSuperseded and leaves the current state untouched.
func (c *Controller) SeekToTime(ctx context.Context, total float64) (*sim.World, error) {
	if total < 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTime, total)
	}
	gen := c.gen.Add(1)

	c.mu.Lock()
	if c.state != StateSeeking && c.state != StateFrameStepping {
		c.resume = c.state
	}
	c.state = StateSeeking
	resume := c.resume
	c.mu.Unlock()

	world, stats, err := c.reconstruct(ctx, gen, total)
	if err != nil {
		c.settle(gen)
		return nil, err
	}
	if !c.swap(gen, world, total, stats, resume) {
		return nil, ErrSuperseded
	}
	return world.Clone(), nil
}

// Advance moves playback forward by dt wall seconds scaled by the speed and
// reconstructs the new instant exactly like a seek. Reaching the newest event pauses
// playback: a saved log is at its end, a live session has caught up. It does nothing
// unless Playing.
func (c *Controller) Advance(ctx context.Context, dt float64) error {
	if dt < 0 || math.IsNaN(dt) {
		return fmt.Errorf("%w: delta %v", ErrInvalidTime, dt)
	}

	c.mu.Lock()
	if c.state != StatePlaying {
		c.mu.Unlock()
		return nil
	}
	from := c.position
	target := c.position + dt*c.speed
	c.mu.Unlock()

	end := c.End()
	reached := target >= end
	if reached {
		target = max(end, from)
	}

	gen := c.gen.Load()
	world, stats, err := c.reconstruct(ctx, gen, target)
	if err != nil {
		return err
	}

	next := StatePlaying
	reason := EndNone
	if reached {
		next = StatePaused
		reason = EndOfLog
		if c.cfg.Source == SourceLive {
			reason = EndLiveEdge
		}
	}
	c.mu.Lock()
	if c.gen.Load() != gen || c.state != StatePlaying {
		c.mu.Unlock()
		return ErrSuperseded
	}
	c.commitLocked(world, target, stats)
	c.state = next
	c.resume = next
	c.endReason = reason
	c.mu.Unlock()

	switch reason {
	case EndOfLog:
		c.deps.LogManager.WriteLogf("replay:Advance", "INFO", "Reached end of log at t=%.3f", target)
	case EndLiveEdge:
		c.deps.LogManager.WriteLogf("replay:Advance", "DEBUG", "Caught up with live session at t=%.3f", target)
	}
	c.report(stats)
	return nil
}

// StepFrame reconstructs one frame step forward (dir > 0) or backward (dir < 0) and
// leaves playback Paused.
func (c *Controller) StepFrame(ctx context.Context, dir int) (*sim.World, error) {
	gen := c.gen.Add(1)

	c.mu.Lock()
	c.state = StateFrameStepping
	c.resume = StatePaused
	step := c.cfg.FrameStep
	if dir < 0 {
		step = -step
	}
	target := max(0, c.position+step)
	c.mu.Unlock()

	if end := c.End(); target > end {
		target = end
	}

	world, stats, err := c.reconstruct(ctx, gen, target)
	if err != nil {
		c.settle(gen)
		return nil, err
	}
	if !c.swap(gen, world, target, stats, StatePaused) {
		return nil, ErrSuperseded
	}
	return world.Clone(), nil
}

// Play starts playback. At the end of a saved log it rewinds to the start.
func (c *Controller) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfg.Source == SourceSaved && c.endReason == EndOfLog {
		c.position = 0
		c.current = nil
	}
	c.state = StatePlaying
	c.resume = StatePlaying
	c.endReason = EndNone
}

func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StatePaused
	c.resume = StatePaused
}

// SetSpeed sets the playback multiplier, capped at the configured maximum.
func (c *Controller) SetSpeed(speed float64) error {
	if speed <= 0 || math.IsNaN(speed) || math.IsInf(speed, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidSpeed, speed)
	}
	c.mu.Lock()
	c.speed = min(speed, c.cfg.MaxSpeed)
	c.mu.Unlock()
	return nil
}

func (c *Controller) Speed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

// Current returns a copy of the last reconstructed state, or the initial state when
// nothing has been reconstructed yet.
func (c *Controller) Current() *sim.World {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return sim.New()
	}
	return c.current.Clone()
}

// Position is the playback time in seconds since session start.
func (c *Controller) Position() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) EndReason() EndReason {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endReason
}

// LastStats describes the most recent committed reconstruction.
func (c *Controller) LastStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// End is the latest instant the log describes: the last timed event of the newest
// turn, or that turn's planning instant when it has no timed events.
func (c *Controller) End() float64 {
	if c.deps.Events.Len() == 0 {
		return 0
	}
	turn := c.deps.Events.MaxTurn()
	if turn == 0 {
		return 0
	}
	intra := core.PlanningInstant
	for _, e := range c.deps.Events.EventsForTurn(turn) {
		if e.Timed() {
			intra = max(intra, *e.Time)
		}
	}
	return core.Compose(turn, intra)
}

// swap commits a completed reconstruction if no newer request started meanwhile.
func (c *Controller) swap(gen uint64, world *sim.World, position float64, stats Stats, next State) bool {
	c.mu.Lock()
	if c.gen.Load() != gen {
		c.mu.Unlock()
		return false
	}
	c.commitLocked(world, position, stats)
	c.state = next
	c.endReason = EndNone
	c.mu.Unlock()
	c.report(stats)
	return true
}

func (c *Controller) commitLocked(world *sim.World, position float64, stats Stats) {
	c.current = world
	c.position = position
	c.last = stats
}

// settle restores the pre-request state after a failed reconstruction, unless a newer
// request already owns the state machine.
func (c *Controller) settle(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen.Load() == gen {
		c.state = c.resume
	}
}

func (c *Controller) report(s Stats) {
	c.metrics.record(s)
	if c.deps.Sink != nil {
		c.deps.Sink.RecordReconstruction(s)
	}
}
