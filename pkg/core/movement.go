// pkg/core/movement.go
package core

import (
	"encoding/json"
	"fmt"
	"math"
)

// MovementMode selects which control-point rule a ship's curve uses for a turn.
type MovementMode uint8

const (
	ModeDefault MovementMode = iota
	ModeBoosted
	ModeBraking
	ModeSliding
)

func (m MovementMode) String() string {
	switch m {
	case ModeDefault:
		return "default"
	case ModeBoosted:
		return "boosted"
	case ModeBraking:
		return "braking"
	case ModeSliding:
		return "sliding"
	default:
		return "unknown"
	}
}

// ParseMovementMode converts a mode name back to its value.
func ParseMovementMode(s string) (MovementMode, error) {
	switch s {
	case "default", "":
		return ModeDefault, nil
	case "boosted", "boost":
		return ModeBoosted, nil
	case "braking", "brake":
		return ModeBraking, nil
	case "sliding", "slide":
		return ModeSliding, nil
	}
	return ModeDefault, fmt.Errorf("unknown movement mode %q", s)
}

func (m MovementMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *MovementMode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseMovementMode(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Envelope bounds how far a ship may move and turn in a single turn.
type Envelope struct {
	MaxRange     float64 `json:"maxRange"`     // XZ radius
	MaxElevation float64 `json:"maxElevation"` // absolute Y change
	MaxRotation  float64 `json:"maxRotation"`  // radians from the turn-start orientation
}

// DefaultEnvelope matches a standard cruiser hull.
func DefaultEnvelope() Envelope {
	return Envelope{
		MaxRange:     20,
		MaxElevation: 10,
		MaxRotation:  math.Pi / 2,
	}
}
