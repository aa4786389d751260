package geo

import (
	"errors"
	"strconv"
	"strings"

	"github.com/OCAP2/demotimeline/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// MaxCoordInteger is the engine's world half-extent. Cell indices count up
// from -MaxCoordInteger on every axis.
const MaxCoordInteger = 16384

// DefaultCellBits is the m_cellbits value every current map ships with.
const DefaultCellBits = 5

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// LevelGeometry converts coarse cell indices to a world position.
type LevelGeometry interface {
	CellToWorld(cellX, cellY, cellZ int) core.Vector3
}

// CellGrid is the engine's cell quantization for one map.
type CellGrid struct {
	CellBits int
}

// NewCellGrid returns a grid for the given m_cellbits; non-positive values
// fall back to DefaultCellBits.
func NewCellGrid(cellBits int) CellGrid {
	if cellBits <= 0 {
		cellBits = DefaultCellBits
	}
	return CellGrid{CellBits: cellBits}
}

// CellWidth is the edge length of one cell in world units.
func (g CellGrid) CellWidth() int {
	return 1 << g.CellBits
}

// CellToWorld returns the world position of the cell's minimum corner.
func (g CellGrid) CellToWorld(cellX, cellY, cellZ int) core.Vector3 {
	w := g.CellWidth()
	return core.Vector3{
		X: float64(cellX*w - MaxCoordInteger),
		Y: float64(cellY*w - MaxCoordInteger),
		Z: float64(cellZ*w - MaxCoordInteger),
	}
}

// WorldPosition reconstructs a continuous position from cell indices and the
// fractional origin inside that cell.
func WorldPosition(g LevelGeometry, cellX, cellY, cellZ int, origin core.Vector3) core.Vector3 {
	return g.CellToWorld(cellX, cellY, cellZ).Add(origin)
}

// Vector3FromString parses "x,y" or "x,y,z" into a core.Vector3.
func Vector3FromString(coords string) (core.Vector3, error) {
	coordsSplit := strings.Split(coords, ",")
	if len(coordsSplit) < 2 || len(coordsSplit) > 3 {
		return core.Vector3{}, ErrInvalidCoordinates
	}
	var out [3]float64
	for i, c := range coordsSplit {
		v, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil {
			return core.Vector3{}, ErrInvalidCoordinates
		}
		out[i] = v
	}
	return core.Vector3{X: out[0], Y: out[1], Z: out[2]}, nil
}

// PointFromVector converts an engine position into an XYZ geometry point for storage.
func PointFromVector(v core.Vector3) geom.Point {
	return geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: v.X, Y: v.Y},
			Z:    v.Z,
			Type: geom.DimXYZ,
		},
	)
}

// VectorFromPoint is the inverse of PointFromVector. Empty points map to the origin.
func VectorFromPoint(p geom.Point) core.Vector3 {
	c, ok := p.Coordinates()
	if !ok {
		return core.Vector3{}
	}
	return core.Vector3{X: c.X, Y: c.Y, Z: c.Z}
}
