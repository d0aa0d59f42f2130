package sim

import (
	"encoding/json"
	"fmt"

	"github.com/OCAP2/turnkernel/pkg/core"
)

// worldState is the serialized form of a World. Entities are a slice in id order so
// identical worlds always capture to identical bytes.
type worldState struct {
	Version     int             `json:"version"`
	SessionID   string          `json:"sessionId,omitempty"`
	Scenario    string          `json:"scenario,omitempty"`
	Players     []core.PlayerID `json:"players,omitempty"`
	Turn        uint32          `json:"turn"`
	Phase       Phase           `json:"phase"`
	Clock       float64         `json:"clock"`
	LastEventID core.EventID    `json:"lastEventId"`
	Ended       bool            `json:"ended,omitempty"`
	Ready       []core.PlayerID `json:"ready,omitempty"`
	Entities    []*Entity       `json:"entities"`
}

// Name identifies the world fragment inside a snapshot.
func (w *World) Name() string {
	return core.WorldFragment
}

// Capture serializes the full world state.
func (w *World) Capture() ([]byte, error) {
	st := worldState{
		Version:     core.SnapshotVersion,
		SessionID:   w.SessionID,
		Scenario:    w.Scenario,
		Players:     w.Players,
		Turn:        w.Turn,
		Phase:       w.Phase,
		Clock:       w.Clock,
		LastEventID: w.LastEventID,
		Ended:       w.Ended,
		Ready:       w.ready,
		Entities:    make([]*Entity, 0, len(w.entities)),
	}
	for _, id := range w.EntityIDs() {
		st.Entities = append(st.Entities, w.entities[id])
	}
	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("failed to capture world: %w", err)
	}
	return data, nil
}

// Restore replaces the world with a previously captured state.
func (w *World) Restore(data []byte) error {
	var st worldState
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("failed to restore world: %w", err)
	}
	if st.Version != core.SnapshotVersion {
		return fmt.Errorf("failed to restore world: unsupported version %d", st.Version)
	}

	entities := make(map[core.EntityID]*Entity, len(st.Entities))
	for _, e := range st.Entities {
		entities[e.ID] = e
	}
	*w = World{
		SessionID:   st.SessionID,
		Scenario:    st.Scenario,
		Players:     st.Players,
		Turn:        st.Turn,
		Phase:       st.Phase,
		Clock:       st.Clock,
		LastEventID: st.LastEventID,
		Ended:       st.Ended,
		entities:    entities,
		ready:       st.Ready,
	}
	return nil
}
