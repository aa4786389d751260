package cache

import (
	"sync"

	"github.com/OCAP2/demotimeline/pkg/core"
)

// MaxEdictBits is the number of low bits of an entity handle that carry the
// entity index. The remaining high bits are the serial number.
const MaxEdictBits = 11

// IndexMask extracts the entity index from an entity handle.
const IndexMask = (1 << MaxEdictBits) - 1

// SlotFromHandle converts a raw entity handle (e.g. m_hThrower) into a player
// slot. Player entities occupy indices 1..MaxPlayers, slots are zero-based.
func SlotFromHandle(handle int) int {
	return (handle & IndexMask) - 1
}

// PlayerCache is the player index: it owns the live player records that
// projectiles and fire events point at.
type PlayerCache struct {
	m       sync.Mutex
	Players map[int]*core.Player
}

func NewPlayerCache() *PlayerCache {
	return &PlayerCache{
		Players: make(map[int]*core.Player),
	}
}

// Lookup returns the live player in slot, or false if the slot is unknown.
func (c *PlayerCache) Lookup(slot int) (*core.Player, bool) {
	c.m.Lock()
	defer c.m.Unlock()
	p, ok := c.Players[slot]
	return p, ok
}

// Upsert registers a player or refreshes the name and position of the one
// already in that slot. The stored pointer never changes once created.
func (c *PlayerCache) Upsert(p core.Player) *core.Player {
	c.m.Lock()
	defer c.m.Unlock()
	if existing, ok := c.Players[p.Slot]; ok {
		existing.Name = p.Name
		existing.Position = p.Position
		if p.EntityID != 0 {
			existing.EntityID = p.EntityID
		}
		if p.SteamID != 0 {
			existing.SteamID = p.SteamID
		}
		existing.IsBot = p.IsBot
		return existing
	}
	stored := p
	c.Players[p.Slot] = &stored
	return &stored
}

// Remove drops the player in slot on disconnect. Records already pointing at
// the player keep it; a later Upsert for the slot creates a new one.
func (c *PlayerCache) Remove(slot int) bool {
	c.m.Lock()
	defer c.m.Unlock()
	if _, ok := c.Players[slot]; !ok {
		return false
	}
	delete(c.Players, slot)
	return true
}

func (c *PlayerCache) Len() int {
	c.m.Lock()
	defer c.m.Unlock()
	return len(c.Players)
}
