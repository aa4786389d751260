// pkg/core/bbox.go
package core

// BoundingBox describes a collideable edict, mostly used for bombsites.
// Min must be component-wise <= Max; this is not checked.
type BoundingBox struct {
	Index int
	Min   Vector3
	Max   Vector3
}

// Contains reports whether point lies within the box, bounds inclusive.
func (b BoundingBox) Contains(point Vector3) bool {
	return point.X >= b.Min.X && point.X <= b.Max.X &&
		point.Y >= b.Min.Y && point.Y <= b.Max.Y &&
		point.Z >= b.Min.Z && point.Z <= b.Max.Z
}
