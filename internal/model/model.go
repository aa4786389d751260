package model

import (
	"database/sql"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []any{
	&Session{},
	&FireEvent{},
}

// Fire event phases.
const (
	PhaseStarted = "started"
	PhaseEnded   = "ended"
)

// Session is one replayed demo.
type Session struct {
	ID              uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	StartedAt       time.Time      `json:"startedAt" gorm:"type:timestamptz;"` // Wall time the replay began
	EndedAt         sql.NullTime   `json:"endedAt" gorm:"type:timestamptz;default:NULL"`
	MapName         string         `json:"mapName" gorm:"size:260;index:idx_session_map_name"`
	ServerName      string         `json:"serverName" gorm:"size:260"`
	ClientName      string         `json:"clientName" gorm:"size:260"`
	GameDirectory   string         `json:"gameDirectory" gorm:"size:260"`
	Protocol        int32          `json:"protocol"`
	NetworkProtocol int32          `json:"networkProtocol"`
	PlaybackTime    float32        `json:"playbackTime"` // Seconds of demo time
	PlaybackTicks   int32          `json:"playbackTicks"`
	PlaybackFrames  int32          `json:"playbackFrames"`
	Header          datatypes.JSON `json:"header"` // Full decoded header
}

func (*Session) TableName() string {
	return "sessions"
}

// FireEvent is one enriched fire start or end.
type FireEvent struct {
	ID           uint    `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID    uint    `json:"sessionId" gorm:"index:idx_fireevent_session_id"`
	Session      Session `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Phase        string  `json:"phase" gorm:"size:16"` // started | ended
	Kind         string  `json:"kind" gorm:"size:16"`
	DetonationID int     `json:"detonationId" gorm:"index:idx_fireevent_detonation_id"`
	DemoTime     float64 `json:"demoTime" gorm:"index:idx_fireevent_demo_time"` // Seconds since demo start

	Position geom.Point `json:"position"` // Where the fire burns, engine units

	Attributed  bool           `json:"attributed" gorm:"default:false"`
	ThrowerSlot sql.NullInt32  `json:"throwerSlot" gorm:"default:NULL"`
	ThrowerName string         `json:"throwerName" gorm:"size:128"`
	Extra       datatypes.JSON `json:"extra"` // Thrower snapshot at attribution time
}

func (*FireEvent) TableName() string {
	return "fire_events"
}
