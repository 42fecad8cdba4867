// Package geom adds the plane, ray and polygon helpers that brush geometry
// needs on top of the sdfx vector, box and matrix types.
package geom

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

const (
	// PointStatusEpsilon is the tolerance used to classify points against
	// planes during geometry rebuild.
	PointStatusEpsilon = 1e-5

	// ParallelEpsilon bounds the determinant below which planes or rays are
	// treated as parallel.
	ParallelEpsilon = 1e-9
)

// PointStatus classifies a point relative to a plane.
type PointStatus int

const (
	PointAbove  PointStatus = iota // on the side the normal points to
	PointBelow                     // inside the half-space
	PointInside                    // on the plane within tolerance
)

func (s PointStatus) String() string {
	switch s {
	case PointAbove:
		return "above"
	case PointBelow:
		return "below"
	case PointInside:
		return "inside"
	default:
		return "unknown"
	}
}

// Plane is the set of points p with Normal·p == Distance. The half-space it
// bounds is the side opposite the normal.
type Plane struct {
	Normal   v3.Vec
	Distance float64
}

// PlaneFromPoints builds the plane through three points. The normal is
// (p1-p0)×(p2-p0), normalized. It returns false if the points are collinear.
func PlaneFromPoints(p0, p1, p2 v3.Vec) (Plane, bool) {
	n := p1.Sub(p0).Cross(p2.Sub(p0))
	l := n.Length()
	if l < ParallelEpsilon {
		return Plane{}, false
	}
	n = n.DivScalar(l)
	return Plane{Normal: n, Distance: n.Dot(p0)}, true
}

// NewPlane builds a plane from a normal and a point on it.
func NewPlane(normal, anchor v3.Vec) Plane {
	n := normal.Normalize()
	return Plane{Normal: n, Distance: n.Dot(anchor)}
}

// SignedDistance returns the distance of p above the plane.
func (p Plane) SignedDistance(pt v3.Vec) float64 {
	return p.Normal.Dot(pt) - p.Distance
}

// Status classifies pt against the plane with tolerance eps.
func (p Plane) Status(pt v3.Vec, eps float64) PointStatus {
	d := p.SignedDistance(pt)
	switch {
	case d > eps:
		return PointAbove
	case d < -eps:
		return PointBelow
	default:
		return PointInside
	}
}

// Inverted returns the plane with the opposite orientation.
func (p Plane) Inverted() Plane {
	return Plane{Normal: p.Normal.Neg(), Distance: -p.Distance}
}

// Equals reports whether two planes coincide with the same orientation.
func (p Plane) Equals(o Plane, eps float64) bool {
	return p.Normal.Equals(o.Normal, eps) && math.Abs(p.Distance-o.Distance) <= eps
}

// Anchor returns the point on the plane closest to the origin.
func (p Plane) Anchor() v3.Vec {
	return p.Normal.MulScalar(p.Distance)
}

// IntersectRay returns the ray parameter at which r crosses the plane.
func (p Plane) IntersectRay(r Ray) (float64, bool) {
	denom := p.Normal.Dot(r.Direction)
	if math.Abs(denom) < ParallelEpsilon {
		return 0, false
	}
	return (p.Distance - p.Normal.Dot(r.Origin)) / denom, true
}

// IntersectPlanes returns the single point shared by three planes, or false
// if any two of them are parallel.
func IntersectPlanes(a, b, c Plane) (v3.Vec, bool) {
	bc := b.Normal.Cross(c.Normal)
	det := a.Normal.Dot(bc)
	if math.Abs(det) < ParallelEpsilon {
		return v3.Vec{}, false
	}
	ca := c.Normal.Cross(a.Normal)
	ab := a.Normal.Cross(b.Normal)
	p := bc.MulScalar(a.Distance).
		Add(ca.MulScalar(b.Distance)).
		Add(ab.MulScalar(c.Distance))
	return p.DivScalar(det), true
}

// ---------------------------------------------------------------------------
// Ray
// ---------------------------------------------------------------------------

// Ray is a half-line. Direction need not be normalized.
type Ray struct {
	Origin    v3.Vec
	Direction v3.Vec
}

// PointAt returns Origin + t*Direction.
func (r Ray) PointAt(t float64) v3.Vec {
	return r.Origin.Add(r.Direction.MulScalar(t))
}
