package parser

import (
	"fmt"

	"github.com/OCAP2/demotimeline/internal/geo"
	"github.com/OCAP2/demotimeline/internal/projectile"
)

func (p *Parser) parseEntityID(s string) (int, error) {
	id, err := parseIntFromFloat(s)
	if err != nil {
		return 0, fmt.Errorf("error parsing entityID: %w", err)
	}
	if id < 0 {
		return 0, fmt.Errorf("error parsing entityID: negative id %d", id)
	}
	return int(id), nil
}

// ParseEntityCreated parses an entity creation.
// Args: [className, entityID]
func (p *Parser) ParseEntityCreated(data []string) (EntityCreated, error) {
	var result EntityCreated
	if err := need(data, 2); err != nil {
		return result, err
	}
	clean(data)

	result.Class = data[0]
	id, err := p.parseEntityID(data[1])
	if err != nil {
		return result, err
	}
	result.EntityID = id
	return result, nil
}

// ParseEntityProperty parses a property change. Vector fields carry "x,y,z",
// the cell and handle fields an integer. Other fields pass through valueless.
// Args: [entityID, field, value]
func (p *Parser) ParseEntityProperty(data []string) (EntityProperty, error) {
	var result EntityProperty
	if err := need(data, 3); err != nil {
		return result, err
	}
	clean(data)

	id, err := p.parseEntityID(data[0])
	if err != nil {
		return result, err
	}
	result.EntityID = id
	result.Property.Field = data[1]

	switch data[1] {
	case projectile.FieldOrigin:
		v, err := geo.Vector3FromString(data[2])
		if err != nil {
			return result, fmt.Errorf("error parsing %s: %w", data[1], err)
		}
		result.Property.Vector = v
	case projectile.FieldCellX, projectile.FieldCellY, projectile.FieldCellZ, projectile.FieldThrower:
		v, err := parseIntFromFloat(data[2])
		if err != nil {
			return result, fmt.Errorf("error parsing %s: %w", data[1], err)
		}
		result.Property.Int = int(v)
	default:
		p.logger.Debug("Untracked property", "entityID", id, "field", data[1])
	}
	return result, nil
}

// ParseEntityDestroyed parses an entity removal.
// Args: [entityID]
func (p *Parser) ParseEntityDestroyed(data []string) (EntityDestroyed, error) {
	var result EntityDestroyed
	if err := need(data, 1); err != nil {
		return result, err
	}
	clean(data)

	id, err := p.parseEntityID(data[0])
	if err != nil {
		return result, err
	}
	result.EntityID = id
	return result, nil
}
