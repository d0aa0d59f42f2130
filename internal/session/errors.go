package session

import "errors"

var (
	ErrReadOnly        = errors.New("session is read-only")
	ErrEnded           = errors.New("session has ended")
	ErrWrongPhase      = errors.New("operation not allowed in the current phase")
	ErrTurnNotStarted  = errors.New("turn has not started")
	ErrUnknownEntity   = errors.New("unknown entity")
	ErrUnknownPlayer   = errors.New("unknown player")
	ErrNoPlan          = errors.New("entity has no planned movement")
	ErrEntityDestroyed = errors.New("entity is destroyed")
	// ErrNoClosedTurn is returned by CreateSnapshotNow before any turn has closed.
	ErrNoClosedTurn  = errors.New("no closed turn to snapshot")
	ErrUnknownAction = errors.New("unknown action")
)
