// Package geom holds the scalar geometry value types drawing records
// carry. Geometric computation on them is out of scope; these are
// storage types with the few helpers the codec itself needs.
package geom

import "math"

// Point3 is a 3D location or extent corner in drawing units.
type Point3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Point2 is a 2D vertex, used by polyline geometry.
type Point2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point3) IsZero() bool { return p.X == 0 && p.Y == 0 && p.Z == 0 }
func (p Point2) IsZero() bool { return p.X == 0 && p.Y == 0 }

// Min returns the componentwise minimum of p and q.
func (p Point3) Min(q Point3) Point3 {
	return Point3{math.Min(p.X, q.X), math.Min(p.Y, q.Y), math.Min(p.Z, q.Z)}
}

// Max returns the componentwise maximum of p and q.
func (p Point3) Max(q Point3) Point3 {
	return Point3{math.Max(p.X, q.X), math.Max(p.Y, q.Y), math.Max(p.Z, q.Z)}
}

// Extents is an axis-aligned bounding range, as stored by the drawing
// header variables. Min > Max on any axis marks the empty extents.
type Extents struct {
	Min Point3 `json:"min"`
	Max Point3 `json:"max"`
}

// EmptyExtents is the conventional representation of "nothing yet":
// the header of a fresh drawing stores +inf/-inf corners.
func EmptyExtents() Extents {
	inf := math.Inf(1)
	return Extents{Min: Point3{inf, inf, inf}, Max: Point3{-inf, -inf, -inf}}
}

func (e Extents) Empty() bool {
	return e.Min.X > e.Max.X || e.Min.Y > e.Max.Y || e.Min.Z > e.Max.Z
}

// Extend grows the extents to include p.
func (e Extents) Extend(p Point3) Extents {
	if e.Empty() {
		return Extents{Min: p, Max: p}
	}
	return Extents{Min: e.Min.Min(p), Max: e.Max.Max(p)}
}
