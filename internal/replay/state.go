package replay

import (
	"errors"
	"time"
)

var (
	// ErrSuperseded is returned to a caller whose reconstruction lost to a newer request.
	ErrSuperseded   = errors.New("reconstruction superseded by a newer request")
	ErrInvalidTime  = errors.New("invalid replay time")
	ErrInvalidSpeed = errors.New("invalid playback speed")
)

// Source tells whether the controller follows an in-progress session or a saved one.
type Source uint8

const (
	SourceLive Source = iota
	SourceSaved
)

func (s Source) String() string {
	if s == SourceSaved {
		return "saved"
	}
	return "live"
}

// State is the playback state machine.
type State uint8

const (
	StatePaused State = iota
	StatePlaying
	StateSeeking
	StateFrameStepping
)

func (s State) String() string {
	switch s {
	case StatePaused:
		return "paused"
	case StatePlaying:
		return "playing"
	case StateSeeking:
		return "seeking"
	case StateFrameStepping:
		return "frame-stepping"
	}
	return "unknown"
}

// EndReason explains why playback stopped advancing.
type EndReason uint8

const (
	EndNone EndReason = iota
	// EndOfLog: a saved session played to its last event and paused.
	EndOfLog
	// EndLiveEdge: live playback caught up with the newest event and paused.
	EndLiveEdge
)

func (r EndReason) String() string {
	switch r {
	case EndOfLog:
		return "end-of-log"
	case EndLiveEdge:
		return "live-edge"
	}
	return "none"
}

// Stats describes one reconstruction.
type Stats struct {
	Source       Source
	Target       float64
	Turn         uint32
	Intra        float64
	FromSnapshot bool
	SnapshotTurn uint32
	Events       int
	Duration     time.Duration
	At           time.Time
}

// StatsSink receives a Stats value after every completed reconstruction.
type StatsSink interface {
	RecordReconstruction(Stats)
}
