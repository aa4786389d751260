package parser

import (
	"fmt"

	"github.com/OCAP2/demotimeline/internal/geo"
	"github.com/OCAP2/demotimeline/pkg/core"
)

type detonation struct {
	kind     core.EquipmentKind
	position core.Vector3
	id       int
}

// Args: [kind, "x,y,z", detonationID]
func (p *Parser) parseDetonation(data []string) (detonation, error) {
	var result detonation
	if err := need(data, 3); err != nil {
		return result, err
	}
	clean(data)

	kind, err := core.ParseEquipmentKind(data[0])
	if err != nil {
		return result, fmt.Errorf("error parsing kind: %w", err)
	}
	result.kind = kind

	pos, err := geo.Vector3FromString(data[1])
	if err != nil {
		return result, fmt.Errorf("error parsing position: %w", err)
	}
	result.position = pos

	id, err := parseIntFromFloat(data[2])
	if err != nil {
		return result, fmt.Errorf("error parsing detonationID: %w", err)
	}
	result.id = int(id)
	return result, nil
}

// ParseDetonationStart parses a fire start game event recorded at t.
// Args: [kind, "x,y,z", detonationID]
func (p *Parser) ParseDetonationStart(t float64, data []string) (core.DetonationStart, error) {
	d, err := p.parseDetonation(data)
	if err != nil {
		return core.DetonationStart{}, err
	}
	return core.DetonationStart{Kind: d.kind, Position: d.position, DetonationID: d.id, Time: t}, nil
}

// ParseDetonationEnd parses a fire end game event recorded at t.
// Args: [kind, "x,y,z", detonationID]
func (p *Parser) ParseDetonationEnd(t float64, data []string) (core.DetonationEnd, error) {
	d, err := p.parseDetonation(data)
	if err != nil {
		return core.DetonationEnd{}, err
	}
	return core.DetonationEnd{Kind: d.kind, Position: d.position, DetonationID: d.id, Time: t}, nil
}
