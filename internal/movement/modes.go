package movement

import (
	"fmt"

	"github.com/OCAP2/turnkernel/pkg/core"
)

// ChainState is the momentum an entity carries into the turn being planned.
type ChainState struct {
	Velocity  core.Vec3
	BoostUsed bool
}

// Active reports whether the entity is still moving under momentum from earlier turns.
func (c ChainState) Active() bool {
	return c.Velocity.Length() >= VelocityEpsilon
}

// transitions lists the modes reachable from each mode.
var transitions = map[core.MovementMode][]core.MovementMode{
	core.ModeDefault: {core.ModeDefault, core.ModeBoosted, core.ModeBraking, core.ModeSliding},
	core.ModeBoosted: {core.ModeDefault, core.ModeBraking},
	core.ModeBraking: {core.ModeDefault, core.ModeBraking},
	core.ModeSliding: {core.ModeDefault, core.ModeBraking, core.ModeSliding},
}

// CanTransition checks the mode table plus the chain-dependent rules: boost is spent
// once per momentum chain and sliding needs momentum to slide on.
func CanTransition(from, to core.MovementMode, chain ChainState) error {
	allowed, ok := transitions[from]
	if !ok {
		return fmt.Errorf("%w: unknown mode %s", ErrIllegalTransition, from)
	}
	legal := false
	for _, m := range allowed {
		if m == to {
			legal = true
			break
		}
	}
	if !legal {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}

	switch to {
	case core.ModeBoosted:
		if chain.Active() && chain.BoostUsed {
			return fmt.Errorf("%w: boost already used in this momentum chain", ErrIllegalTransition)
		}
	case core.ModeSliding:
		if !chain.Active() {
			return fmt.Errorf("%w: no momentum to slide on", ErrIllegalTransition)
		}
	}
	return nil
}

// NextChain returns the chain state after a turn in mode ends with velocity.
// A chain ends once momentum falls below VelocityEpsilon.
func NextChain(prev ChainState, mode core.MovementMode, velocity core.Vec3) ChainState {
	next := ChainState{Velocity: velocity, BoostUsed: prev.BoostUsed || mode == core.ModeBoosted}
	if !next.Active() {
		next.BoostUsed = false
	}
	return next
}
