package parser

import (
	"fmt"

	"github.com/OCAP2/demotimeline/internal/geo"
)

// ParsePlayer parses a player index update.
// Args: [slot, name, "x,y,z"]
func (p *Parser) ParsePlayer(data []string) (PlayerUpdate, error) {
	var result PlayerUpdate
	if err := need(data, 3); err != nil {
		return result, err
	}
	clean(data)

	slot, err := parseSlot(data[0])
	if err != nil {
		return result, err
	}
	result.Player.Slot = slot
	result.Player.EntityID = slot + 1
	result.Player.Name = data[1]

	pos, err := geo.Vector3FromString(data[2])
	if err != nil {
		return result, fmt.Errorf("error parsing position: %w", err)
	}
	result.Player.Position = pos
	return result, nil
}

// ParsePlayerDisconnect parses a player leaving the server.
// Args: [slot]
func (p *Parser) ParsePlayerDisconnect(data []string) (PlayerDisconnect, error) {
	var result PlayerDisconnect
	if err := need(data, 1); err != nil {
		return result, err
	}
	clean(data)

	slot, err := parseSlot(data[0])
	if err != nil {
		return result, err
	}
	result.Slot = slot
	return result, nil
}

func parseSlot(s string) (int, error) {
	slot, err := parseIntFromFloat(s)
	if err != nil {
		return 0, fmt.Errorf("error parsing slot: %w", err)
	}
	if slot < 0 {
		return 0, fmt.Errorf("error parsing slot: negative slot %d", slot)
	}
	return int(slot), nil
}
