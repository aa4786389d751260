// pkg/core/equipment.go
package core

import "fmt"

// EquipmentKind is the closed set of throwables the correlation engine tracks.
type EquipmentKind uint8

const (
	Molotov EquipmentKind = iota
	Incendiary

	// EquipmentKindCount is the number of tracked kinds. Tables indexed by
	// EquipmentKind are sized with it.
	EquipmentKindCount
)

var equipmentNames = [EquipmentKindCount]string{
	Molotov:    "molotov",
	Incendiary: "incendiary",
}

// Valid reports whether k is a tracked kind.
func (k EquipmentKind) Valid() bool {
	return k < EquipmentKindCount
}

func (k EquipmentKind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("EquipmentKind(%d)", uint8(k))
	}
	return equipmentNames[k]
}

// ParseEquipmentKind resolves a kind by its lower-case name.
func ParseEquipmentKind(s string) (EquipmentKind, error) {
	for k, name := range equipmentNames {
		if name == s {
			return EquipmentKind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown equipment kind %q", s)
}
