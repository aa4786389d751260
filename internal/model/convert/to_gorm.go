// Package convert provides functions to convert core timeline types to GORM models
package convert

import (
	"database/sql"
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/OCAP2/demotimeline/internal/geo"
	"github.com/OCAP2/demotimeline/internal/model"
	"github.com/OCAP2/demotimeline/pkg/core"
)

// throwerExtra is the thrower snapshot stored with an attributed event.
type throwerExtra struct {
	Slot     int          `json:"slot"`
	EntityID int          `json:"entityId"`
	Name     string       `json:"name"`
	SteamID  int64        `json:"steamId,omitempty"`
	Position core.Vector3 `json:"position"`
	IsBot    bool         `json:"isBot,omitempty"`
}

func throwerToJSON(p *core.Player) datatypes.JSON {
	if p == nil {
		return datatypes.JSON("{}")
	}
	data, _ := json.Marshal(throwerExtra{
		Slot:     p.Slot,
		EntityID: p.EntityID,
		Name:     p.Name,
		SteamID:  p.SteamID,
		Position: p.Position,
		IsBot:    p.IsBot,
	})
	return datatypes.JSON(data)
}

// HeaderToSession converts a decoded demo header to a GORM model.Session.
func HeaderToSession(h core.DemoHeader) model.Session {
	header, _ := json.Marshal(h)
	return model.Session{
		MapName:         h.MapName,
		ServerName:      h.ServerName,
		ClientName:      h.ClientName,
		GameDirectory:   h.GameDirectory,
		Protocol:        h.Protocol,
		NetworkProtocol: h.NetworkProtocol,
		PlaybackTime:    h.PlaybackTime,
		PlaybackTicks:   h.PlaybackTicks,
		PlaybackFrames:  h.PlaybackFrames,
		Header:          datatypes.JSON(header),
	}
}

func fireEvent(phase string, kind core.EquipmentKind, pos core.Vector3, detID int, t float64, thrower *core.Player) model.FireEvent {
	e := model.FireEvent{
		Phase:        phase,
		Kind:         kind.String(),
		DetonationID: detID,
		DemoTime:     t,
		Position:     geo.PointFromVector(pos),
		Extra:        throwerToJSON(thrower),
	}
	if thrower != nil {
		e.Attributed = true
		e.ThrowerSlot = sql.NullInt32{Int32: int32(thrower.Slot), Valid: true}
		e.ThrowerName = thrower.Name
	}
	return e
}

// FireStartedToEvent converts a core.FireStarted to a GORM model.FireEvent.
func FireStartedToEvent(e core.FireStarted) model.FireEvent {
	return fireEvent(model.PhaseStarted, e.Kind, e.Position, e.DetonationID, e.Time, e.ThrownBy)
}

// FireEndedToEvent converts a core.FireEnded to a GORM model.FireEvent.
func FireEndedToEvent(e core.FireEnded) model.FireEvent {
	return fireEvent(model.PhaseEnded, e.Kind, e.Position, e.DetonationID, e.Time, e.ThrownBy)
}
