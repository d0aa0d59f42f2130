package core

import (
	"encoding/json"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventOrdering(t *testing.T) {
	events := []Event{
		{ID: 5, Turn: 2, Time: At(3), Payload: TurnEnded{}},
		{ID: 4, Turn: 2, Payload: TurnStarted{}},
		{ID: 3, Turn: 2, Time: At(3), Payload: TurnEnded{}},
		{ID: 2, Turn: 1, Time: At(9), Payload: TurnEnded{}},
		{ID: 6, Turn: 2, Time: At(0), Payload: SimulationStarted{}},
	}
	slices.SortFunc(events, Compare)

	ids := make([]EventID, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	assert.Equal(t, []EventID{2, 4, 6, 3, 5}, ids)
}

func TestEventLess_UntimedBeforeTimed(t *testing.T) {
	untimed := Event{ID: 9, Turn: 3, Payload: PlayerReady{Player: "a"}}
	timed := Event{ID: 1, Turn: 3, Time: At(0), Payload: SimulationStarted{}}

	assert.True(t, untimed.Less(timed))
	assert.False(t, timed.Less(untimed))
}

func TestEventTotalTime(t *testing.T) {
	assert.Equal(t, 0.0, Event{Turn: 0}.TotalTime())
	assert.Equal(t, 10.0, Event{Turn: 2}.TotalTime())
	assert.Equal(t, 14.5, Event{Turn: 2, Time: At(4.5)}.TotalTime())
}

func TestEventJSON(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	in := Event{
		ID:        7,
		Turn:      2,
		Time:      At(10),
		Timestamp: ts,
		Payload: PositionUpdated{
			Entity:   3,
			Position: V(10, 0, 0),
			Rotation: Identity,
			Velocity: V(6, 0, 0),
		},
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"movement.position_updated"`)

	var out Event
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.Turn, out.Turn)
	require.NotNil(t, out.Time)
	assert.Equal(t, 10.0, *out.Time)
	assert.True(t, ts.Equal(out.Timestamp))
	assert.Equal(t, in.Payload, out.Payload)
}

func TestEventJSON_EmptyPayloadAndNoTime(t *testing.T) {
	data, err := json.Marshal(Event{ID: 1, Turn: 1, Payload: TurnStarted{}})
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"time"`)

	var out Event
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Nil(t, out.Time)
	assert.IsType(t, TurnStarted{}, out.Payload)
}

func TestEventJSON_UnknownType(t *testing.T) {
	var e Event
	err := json.Unmarshal([]byte(`{"id":1,"turn":1,"type":"movement.teleported","payload":{}}`), &e)
	assert.ErrorContains(t, err, "unknown payload type")
}

func TestMovementModeJSON(t *testing.T) {
	data, err := json.Marshal(ModeBraking)
	require.NoError(t, err)
	assert.Equal(t, `"braking"`, string(data))

	var m MovementMode
	require.NoError(t, json.Unmarshal([]byte(`"boost"`), &m))
	assert.Equal(t, ModeBoosted, m)

	assert.Error(t, json.Unmarshal([]byte(`"warp"`), &m))
}

func TestPayloadTypeDomain(t *testing.T) {
	assert.Equal(t, "combat", TypeDamageDealt.Domain())
	assert.Equal(t, "turn", TypeTurnEnded.Domain())
}

func TestDamageDealtEntities(t *testing.T) {
	assert.Equal(t, []EntityID{2}, DamageDealt{Target: 2}.Entities())
	assert.Equal(t, []EntityID{2, 5}, DamageDealt{Target: 2, Source: 5}.Entities())
}

func TestSnapshotEqual(t *testing.T) {
	a := &Snapshot{ID: "x", Turn: 5, LastEventID: 40, Version: SnapshotVersion,
		Fragments: map[string][]byte{"world": []byte("abc"), "fx": []byte("1")}}
	b := &Snapshot{ID: "x", Turn: 5, LastEventID: 40, Version: SnapshotVersion,
		Fragments: map[string][]byte{"world": []byte("abc"), "fx": []byte("1")}, CreatedAt: time.Now()}

	assert.True(t, a.Equal(b))
	assert.Equal(t, []string{"fx", "world"}, a.FragmentNames())
	assert.Equal(t, 4, a.Size())

	b.Fragments["world"] = []byte("abd")
	assert.False(t, a.Equal(b))
}
