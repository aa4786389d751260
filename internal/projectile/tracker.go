package projectile

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/OCAP2/demotimeline/internal/cache"
	"github.com/OCAP2/demotimeline/internal/geo"
	"github.com/OCAP2/demotimeline/pkg/core"
)

// Tracked network property names.
const (
	FieldOrigin  = "m_vecOrigin"
	FieldCellX   = "m_cellX"
	FieldCellY   = "m_cellY"
	FieldCellZ   = "m_cellZ"
	FieldThrower = "m_hThrower"
)

// ClassMolotovProjectile is the server class shared by molotovs and incendiaries.
const ClassMolotovProjectile = "CMolotovProjectile"

// ErrUnknownEntity is returned for notifications about entities that are not
// in the live set.
var ErrUnknownEntity = errors.New("unknown projectile entity")

// PlayerIndex resolves a player slot to the live player record.
type PlayerIndex interface {
	Lookup(slot int) (*core.Player, bool)
}

// Property is one decoded property change. Vector fields use Vector, integer
// fields use Int.
type Property struct {
	Field  string
	Int    int
	Vector core.Vector3
}

// Tracker keeps one Record per live projectile entity of a tracked class.
type Tracker struct {
	logger   *slog.Logger
	geometry geo.LevelGeometry
	players  PlayerIndex

	classes map[string]core.EquipmentKind
	live    map[int]*Record
}

// NewTracker creates a tracker that follows CMolotovProjectile as Incendiary.
func NewTracker(logger *slog.Logger, geometry geo.LevelGeometry, players PlayerIndex) *Tracker {
	t := &Tracker{
		logger:   logger,
		geometry: geometry,
		players:  players,
		classes:  make(map[string]core.EquipmentKind),
		live:     make(map[int]*Record),
	}
	t.Track(ClassMolotovProjectile, core.Incendiary)
	return t
}

// Track registers a server class whose entities should be followed.
func (t *Tracker) Track(class string, kind core.EquipmentKind) {
	if !kind.Valid() {
		panic(fmt.Sprintf("projectile: tracking %s with unsupported kind %v", class, kind))
	}
	t.classes[class] = kind
}

// Created allocates a pending record. It returns false for untracked classes.
func (t *Tracker) Created(class string, entityID int) bool {
	kind, ok := t.classes[class]
	if !ok {
		return false
	}
	if _, exists := t.live[entityID]; exists {
		t.logger.Warn("Projectile entity recreated before destroy", "entityID", entityID, "class", class)
	}
	t.live[entityID] = &Record{
		EntityID: entityID,
		Kind:     kind,
		state:    Pending,
		geometry: t.geometry,
	}
	return true
}

// PropertyChanged applies one property change. Untracked fields are ignored.
func (t *Tracker) PropertyChanged(entityID int, prop Property) error {
	rec, ok := t.live[entityID]
	if !ok {
		return fmt.Errorf("property %s for entity %d: %w", prop.Field, entityID, ErrUnknownEntity)
	}

	switch prop.Field {
	case FieldOrigin:
		rec.Origin = prop.Vector
	case FieldCellX:
		rec.CellX = prop.Int
	case FieldCellY:
		rec.CellY = prop.Int
	case FieldCellZ:
		rec.CellZ = prop.Int
	case FieldThrower:
		t.resolveThrower(rec, prop.Int)
	}
	return nil
}

func (t *Tracker) resolveThrower(rec *Record, handle int) {
	slot := cache.SlotFromHandle(handle)
	player, ok := t.players.Lookup(slot)
	if !ok || player == nil {
		t.logger.Debug("Thrower not yet known", "entityID", rec.EntityID, "slot", slot)
		return
	}

	rec.ThrownBy = player
	// the throw is attributed to where the thrower stands now, not to the projectile
	rec.detonationPos = player.Position
	rec.state = Thrown
}

// Destroyed removes the record from the live set and returns its final state.
func (t *Tracker) Destroyed(entityID int) (Record, error) {
	rec, ok := t.live[entityID]
	if !ok {
		return Record{}, fmt.Errorf("destroy entity %d: %w", entityID, ErrUnknownEntity)
	}
	delete(t.live, entityID)
	rec.state = Destroyed
	return *rec, nil
}

// Get returns the live record for entityID.
func (t *Tracker) Get(entityID int) (*Record, bool) {
	rec, ok := t.live[entityID]
	return rec, ok
}

// Live returns the number of in-flight projectiles.
func (t *Tracker) Live() int {
	return len(t.live)
}
