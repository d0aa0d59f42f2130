package movement

import (
	"errors"
	"fmt"

	"github.com/OCAP2/turnkernel/pkg/core"
)

var (
	ErrOutOfRange        = errors.New("target outside movement range")
	ErrOutOfElevation    = errors.New("target outside elevation limit")
	ErrRotationArc       = errors.New("rotation outside per-turn arc")
	ErrIllegalTransition = errors.New("illegal movement mode transition")
	ErrMidSimulation     = errors.New("entity is mid-simulation")
	ErrInvalidTarget     = errors.New("target is not a finite position or unit rotation")
)

// ValidationError rejects a proposed action before it reaches the event store.
type ValidationError struct {
	Entity core.EntityID
	Mode   core.MovementMode
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("entity %d (%s): %v", e.Entity, e.Mode, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func reject(req Request, err error) error {
	return &ValidationError{Entity: req.Entity, Mode: req.Mode, Err: err}
}
