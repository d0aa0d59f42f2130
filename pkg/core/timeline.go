// pkg/core/timeline.go
package core

import "math"

// PlanningInstant is the earliest offset into a turn at which its untimed events are
// visible. Events timed at 0 are visible there too, so a turn whose simulation has
// started shows as running.
const PlanningInstant = 1e-6

// Decompose splits seconds since session start into a turn and an intra-turn offset:
// turn = ceil(total/10), intra = total - (turn-1)*10. Zero and negative totals are
// turn 0, the scenario setup.
func Decompose(total float64) (turn uint32, intra float64) {
	if total <= 0 || math.IsNaN(total) {
		return 0, 0
	}
	turn = uint32(math.Ceil(total / TurnDuration))
	intra = total - float64(turn-1)*TurnDuration
	return turn, intra
}

// Compose is the inverse of Decompose.
func Compose(turn uint32, intra float64) float64 {
	if turn == 0 {
		return 0
	}
	return float64(turn-1)*TurnDuration + intra
}

// VisibleBy reports whether e has happened by total seconds since session start:
// every event of an earlier turn, and the untimed or not-later events of the same
// turn. Timed events are compared as composed totals, so an event is visible at the
// total its own time composes to even when Decompose rounds the offset down.
func (e Event) VisibleBy(total float64) bool {
	turn, _ := Decompose(total)
	if e.Turn != turn {
		return e.Turn < turn
	}
	return e.Time == nil || Compose(e.Turn, *e.Time) <= total
}
