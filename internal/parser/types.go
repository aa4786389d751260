package parser

import (
	"github.com/OCAP2/demotimeline/internal/projectile"
	"github.com/OCAP2/demotimeline/pkg/core"
)

// EntityCreated announces a new entity of a server class.
type EntityCreated struct {
	Class    string
	EntityID int
}

// EntityProperty is one property change of a live entity.
type EntityProperty struct {
	EntityID int
	Property projectile.Property
}

// EntityDestroyed announces that an entity left the world.
type EntityDestroyed struct {
	EntityID int
}

// PlayerUpdate inserts a player into the index or moves an existing one.
type PlayerUpdate struct {
	Player core.Player
}

// PlayerDisconnect removes a player from the index.
type PlayerDisconnect struct {
	Slot int
}
