package projectile

import (
	"github.com/OCAP2/demotimeline/internal/geo"
	"github.com/OCAP2/demotimeline/pkg/core"
)

// State is the lifecycle position of a projectile record.
type State uint8

const (
	// Pending records exist but have no resolved thrower yet.
	Pending State = iota
	// Thrown records have a thrower and a frozen detonation position.
	Thrown
	// Destroyed is terminal; the record has left the live set.
	Destroyed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Thrown:
		return "thrown"
	case Destroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Record is the tracked state of one projectile entity.
type Record struct {
	EntityID int
	Kind     core.EquipmentKind
	CellX    int
	CellY    int
	CellZ    int
	Origin   core.Vector3
	ThrownBy *core.Player

	state         State
	detonationPos core.Vector3
	geometry      geo.LevelGeometry
}

// State returns the lifecycle state.
func (r *Record) State() State {
	return r.state
}

// Position reconstructs the projectile's current world position from its
// cell indices and origin. It is recomputed on every call.
func (r *Record) Position() core.Vector3 {
	return geo.WorldPosition(r.geometry, r.CellX, r.CellY, r.CellZ, r.Origin)
}

// DetonationPosition is the thrower's position frozen when the thrower was
// resolved. Records that were never thrown fall back to their live position.
func (r *Record) DetonationPosition() core.Vector3 {
	if r.ThrownBy == nil {
		return r.Position()
	}
	return r.detonationPos
}
