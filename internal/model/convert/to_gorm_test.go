package convert

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/demotimeline/internal/model"
	"github.com/OCAP2/demotimeline/pkg/core"
)

func TestHeaderToSession(t *testing.T) {
	h := core.DemoHeader{
		Filestamp:       "HL2DEMO",
		Protocol:        4,
		NetworkProtocol: 13563,
		ServerName:      "srv",
		ClientName:      "GOTV Demo",
		MapName:         "de_inferno",
		GameDirectory:   "csgo",
		PlaybackTime:    120.5,
		PlaybackTicks:   15424,
		PlaybackFrames:  7700,
	}

	s := HeaderToSession(h)

	assert.Equal(t, "de_inferno", s.MapName)
	assert.Equal(t, "srv", s.ServerName)
	assert.Equal(t, int32(13563), s.NetworkProtocol)
	assert.Equal(t, int32(15424), s.PlaybackTicks)

	var decoded core.DemoHeader
	require.NoError(t, json.Unmarshal(s.Header, &decoded))
	assert.Equal(t, h, decoded)
}

func TestFireStartedToEvent_Attributed(t *testing.T) {
	thrower := &core.Player{Slot: 3, EntityID: 4, Name: "thrower", Position: core.NewVector3(1, 2, 3)}
	e := FireStartedToEvent(core.FireStarted{
		Kind:         core.Incendiary,
		Position:     core.NewVector3(-380, 260, 12),
		DetonationID: 77,
		Time:         31.5,
		ThrownBy:     thrower,
	})

	assert.Equal(t, model.PhaseStarted, e.Phase)
	assert.Equal(t, "incendiary", e.Kind)
	assert.Equal(t, 77, e.DetonationID)
	assert.Equal(t, 31.5, e.DemoTime)
	assert.True(t, e.Attributed)
	assert.True(t, e.ThrowerSlot.Valid)
	assert.Equal(t, int32(3), e.ThrowerSlot.Int32)
	assert.Equal(t, "thrower", e.ThrowerName)

	coord, ok := e.Position.Coordinates()
	require.True(t, ok)
	assert.Equal(t, -380.0, coord.XY.X)
	assert.Equal(t, 260.0, coord.XY.Y)
	assert.Equal(t, 12.0, coord.Z)

	var extra map[string]any
	require.NoError(t, json.Unmarshal(e.Extra, &extra))
	assert.Equal(t, "thrower", extra["name"])
}

func TestFireEndedToEvent_Unattributed(t *testing.T) {
	e := FireEndedToEvent(core.FireEnded{Kind: core.Molotov, DetonationID: 5, Time: 40})

	assert.Equal(t, model.PhaseEnded, e.Phase)
	assert.Equal(t, "molotov", e.Kind)
	assert.False(t, e.Attributed)
	assert.False(t, e.ThrowerSlot.Valid)
	assert.Empty(t, e.ThrowerName)
	assert.JSONEq(t, "{}", string(e.Extra))
}
