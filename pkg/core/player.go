// pkg/core/player.go
package core

// Player is the live state of a connected player. The player index owns it
// and keeps Position current; everything else holds it by reference.
type Player struct {
	Slot     int
	EntityID int
	Name     string
	SteamID  int64
	Position Vector3
	IsBot    bool
}
