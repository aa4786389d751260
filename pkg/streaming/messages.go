// Package streaming defines the wire messages the websocket backend sends to
// a timeline server.
package streaming

import (
	"encoding/json"

	"github.com/OCAP2/demotimeline/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartSession = "start_session"
	TypeEndSession   = "end_session"
	TypeFireStarted  = "fire_started"
	TypeFireEnded    = "fire_ended"

	TypeAck = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartSessionPayload carries the decoded demo header.
type StartSessionPayload struct {
	Header *core.DemoHeader `json:"header"`
}

// ThrowerPayload is the thrower snapshot attached to a fire event.
type ThrowerPayload struct {
	Slot     int        `json:"slot"`
	Name     string     `json:"name"`
	SteamID  int64      `json:"steamId,omitempty"`
	Position [3]float64 `json:"position"`
}

// FirePayload is the body of fire_started and fire_ended.
type FirePayload struct {
	Kind         string          `json:"kind"`
	DetonationID int             `json:"detonationId"`
	Time         float64         `json:"time"`
	Position     [3]float64      `json:"position"`
	Thrower      *ThrowerPayload `json:"thrower"`
}

// NewFirePayload builds the payload for one fire lifecycle event.
func NewFirePayload(kind core.EquipmentKind, pos core.Vector3, detonationID int, t float64, thrower *core.Player) FirePayload {
	p := FirePayload{
		Kind:         kind.String(),
		DetonationID: detonationID,
		Time:         t,
		Position:     [3]float64{pos.X, pos.Y, pos.Z},
	}
	if thrower != nil {
		p.Thrower = &ThrowerPayload{
			Slot:     thrower.Slot,
			Name:     thrower.Name,
			SteamID:  thrower.SteamID,
			Position: [3]float64{thrower.Position.X, thrower.Position.Y, thrower.Position.Z},
		}
	}
	return p
}
