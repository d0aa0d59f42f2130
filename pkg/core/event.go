// pkg/core/event.go
package core

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// TurnDuration is the length of the execution window in seconds.
const TurnDuration = 10.0

// Event is an immutable record of something that happened in a session.
// Time is the intra-turn offset in seconds, nil for instantaneous planning-phase events.
type Event struct {
	ID        EventID
	Turn      uint32
	Time      *float64
	Timestamp time.Time
	Payload   Payload
}

// At returns a pointer suitable for Event.Time.
func At(seconds float64) *float64 {
	return &seconds
}

// Timed reports whether the event carries an intra-turn time.
func (e Event) Timed() bool {
	return e.Time != nil
}

// TimeKey is the intra-turn sort key. Untimed events sort before every timed event.
func (e Event) TimeKey() float64 {
	if e.Time == nil {
		return math.Inf(-1)
	}
	return *e.Time
}

// Less reports whether e is applied before o: (turn, time, id) ascending.
func (e Event) Less(o Event) bool {
	if e.Turn != o.Turn {
		return e.Turn < o.Turn
	}
	ek, ok := e.TimeKey(), o.TimeKey()
	if ek != ok {
		return ek < ok
	}
	return e.ID < o.ID
}

// Compare is Less in the three-way form used by slices.SortFunc.
func Compare(a, b Event) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	}
	return 0
}

// Entities lists the entities the payload touches.
func (e Event) Entities() []EntityID {
	if e.Payload == nil {
		return nil
	}
	return e.Payload.Entities()
}

// TotalTime converts the event position to seconds since session start.
// Untimed events are placed at the start of their turn.
func (e Event) TotalTime() float64 {
	if e.Turn == 0 {
		return 0
	}
	base := float64(e.Turn-1) * TurnDuration
	if e.Time == nil {
		return base
	}
	return base + *e.Time
}

func (e Event) String() string {
	if e.Time == nil {
		return fmt.Sprintf("#%d turn=%d %s", e.ID, e.Turn, e.Payload.Type())
	}
	return fmt.Sprintf("#%d turn=%d t=%.3f %s", e.ID, e.Turn, *e.Time, e.Payload.Type())
}

// eventJSON is the on-disk envelope.
type eventJSON struct {
	ID        EventID         `json:"id"`
	Turn      uint32          `json:"turn"`
	Time      *float64        `json:"time,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Type      PayloadType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	if e.Payload == nil {
		return nil, fmt.Errorf("event %d has no payload", e.ID)
	}
	body, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", e.Payload.Type(), err)
	}
	return json.Marshal(eventJSON{
		ID:        e.ID,
		Turn:      e.Turn,
		Time:      e.Time,
		Timestamp: e.Timestamp.UTC(),
		Type:      e.Payload.Type(),
		Payload:   body,
	})
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var raw eventJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p, err := DecodePayload(raw.Type, raw.Payload)
	if err != nil {
		return err
	}
	*e = Event{
		ID:        raw.ID,
		Turn:      raw.Turn,
		Time:      raw.Time,
		Timestamp: raw.Timestamp,
		Payload:   p,
	}
	return nil
}

// DecodePayload builds a payload of the registered type from its JSON body.
func DecodePayload(t PayloadType, body []byte) (Payload, error) {
	factory, ok := payloadFactories[t]
	if !ok {
		return nil, fmt.Errorf("unknown payload type %q", t)
	}
	ptr := factory()
	if len(body) > 0 && string(body) != "null" {
		if err := json.Unmarshal(body, ptr); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", t, err)
		}
	}
	return deref(ptr), nil
}

// deref turns the registry's pointer back into the value form stored on events,
// so type switches only ever see value payloads.
func deref(p Payload) Payload {
	switch v := p.(type) {
	case *MovementPlanned:
		return *v
	case *MovementConfirmed:
		return *v
	case *MovementCancelled:
		return *v
	case *PositionUpdated:
		return *v
	case *WeaponFired:
		return *v
	case *ProjectileHit:
		return *v
	case *DamageDealt:
		return *v
	case *EntityDestroyed:
		return *v
	case *CollisionDetected:
		return *v
	case *SubsystemDamaged:
		return *v
	case *TrajectoryAltered:
		return *v
	case *TurnStarted:
		return *v
	case *PlayerReady:
		return *v
	case *SimulationStarted:
		return *v
	case *SimulationCompleted:
		return *v
	case *TurnEnded:
		return *v
	case *SessionStarted:
		return *v
	case *SessionEnded:
		return *v
	case *EntitySpawned:
		return *v
	case *SubsystemDisabled:
		return *v
	case *SubsystemRepaired:
		return *v
	}
	return p
}
