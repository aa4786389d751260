// pkg/core/events.go
package core

// DetonationStart is the raw "nade started detonating" game event
// (inferno_startburn). It carries no thrower.
type DetonationStart struct {
	Kind         EquipmentKind
	Position     Vector3
	DetonationID int
	Time         float64
}

// DetonationEnd is the raw "nade stopped detonating" game event
// (inferno_expire). DetonationID is the same id the start used.
type DetonationEnd struct {
	Kind         EquipmentKind
	Position     Vector3
	DetonationID int
	Time         float64
}

// FireStarted is emitted once a detonation start has been matched to a
// destroyed projectile.
type FireStarted struct {
	Kind         EquipmentKind
	Position     Vector3
	DetonationID int
	Time         float64
	ThrownBy     *Player
}

// FireEnded is emitted for every detonation end. ThrownBy is nil when no
// attribution could be made.
type FireEnded struct {
	Kind         EquipmentKind
	Position     Vector3
	DetonationID int
	Time         float64
	ThrownBy     *Player
}
