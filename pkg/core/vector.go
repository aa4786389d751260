// pkg/core/vector.go
package core

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// Vector3 is an engine-space position or offset.
// It is a value type: assigning it copies the components, so a stored
// Vector3 never changes when the value it was taken from does.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// NewVector3 builds a Vector3 from its components.
func NewVector3(x, y, z float64) Vector3 {
	return Vector3{X: x, Y: y, Z: z}
}

func (v Vector3) r3() r3.Vector {
	return r3.Vector{X: v.X, Y: v.Y, Z: v.Z}
}

func fromR3(v r3.Vector) Vector3 {
	return Vector3{X: v.X, Y: v.Y, Z: v.Z}
}

// Angle2D returns the planar angle atan2(Y, X) in radians.
func (v Vector3) Angle2D() float64 {
	return math.Atan2(v.Y, v.X)
}

// Absolute returns the Euclidean norm.
func (v Vector3) Absolute() float64 {
	return v.r3().Norm()
}

// AbsoluteSquared returns the squared Euclidean norm.
func (v Vector3) AbsoluteSquared() float64 {
	return v.r3().Norm2()
}

// Add returns v + o.
func (v Vector3) Add(o Vector3) Vector3 {
	return fromR3(v.r3().Add(o.r3()))
}

// Sub returns v - o.
func (v Vector3) Sub(o Vector3) Vector3 {
	return fromR3(v.r3().Sub(o.r3()))
}

// Distance returns the Euclidean distance between v and o.
// It is zero only when every component is exactly equal.
func (v Vector3) Distance(o Vector3) float64 {
	return v.r3().Sub(o.r3()).Norm()
}

func (v Vector3) String() string {
	return fmt.Sprintf("{X: %g, Y: %g, Z: %g}", v.X, v.Y, v.Z)
}

// Angle3 is a pitch/yaw/roll triple. It is decoded like a Vector3 but is
// never mixed with positions arithmetically.
type Angle3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}
