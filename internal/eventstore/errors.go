package eventstore

import (
	"errors"
	"fmt"
)

var (
	// ErrCorruptLog is returned when a persisted log violates the ordering invariant.
	ErrCorruptLog = errors.New("corrupt event log")
	// ErrStaleAppend is returned for events older than the store's current turn.
	ErrStaleAppend = errors.New("stale append")
	// ErrMalformedEvent is returned for events without a payload or with an out-of-window time.
	ErrMalformedEvent = errors.New("malformed event")
)

// StaleAppendError carries the rejected turn and the turn the caller must resubmit against.
type StaleAppendError struct {
	Turn    uint32
	Current uint32
}

func (e *StaleAppendError) Error() string {
	return fmt.Sprintf("stale append: turn %d is behind current turn %d", e.Turn, e.Current)
}

func (e *StaleAppendError) Is(target error) bool {
	return target == ErrStaleAppend
}

// CorruptLogError identifies the first offending entry of a rejected log.
type CorruptLogError struct {
	Index  int
	Reason string
	Err    error
}

func (e *CorruptLogError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corrupt event log at entry %d: %s: %v", e.Index, e.Reason, e.Err)
	}
	return fmt.Sprintf("corrupt event log at entry %d: %s", e.Index, e.Reason)
}

func (e *CorruptLogError) Is(target error) bool {
	return target == ErrCorruptLog
}

func (e *CorruptLogError) Unwrap() error {
	return e.Err
}
