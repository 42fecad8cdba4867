package geom

import (
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// PointEquals compares two points componentwise with tolerance eps. A zero
// eps means exact equality.
func PointEquals(a, b v3.Vec, eps float64) bool {
	if eps == 0 {
		return a == b
	}
	return a.Equals(b, eps)
}

// SegmentEquals reports whether segments (a0,a1) and (b0,b1) share their end
// points in either direction.
func SegmentEquals(a0, a1, b0, b1 v3.Vec, eps float64) bool {
	return (PointEquals(a0, b0, eps) && PointEquals(a1, b1, eps)) ||
		(PointEquals(a0, b1, eps) && PointEquals(a1, b0, eps))
}

// PolygonEquals reports whether a and b describe the same vertex loop, up to
// rotation of the starting vertex and reversal of the winding.
func PolygonEquals(a, b []v3.Vec, eps float64) bool {
	if len(a) != len(b) {
		return false
	}
	n := len(a)
	if n == 0 {
		return true
	}
	for shift := 0; shift < n; shift++ {
		if !PointEquals(a[0], b[shift], eps) {
			continue
		}
		forward, backward := true, true
		for i := 1; i < n && (forward || backward); i++ {
			if forward && !PointEquals(a[i], b[(shift+i)%n], eps) {
				forward = false
			}
			if backward && !PointEquals(a[i], b[(shift-i+n)%n], eps) {
				backward = false
			}
		}
		if forward || backward {
			return true
		}
	}
	return false
}

// Centroid returns the average of pts.
func Centroid(pts []v3.Vec) v3.Vec {
	var c v3.Vec
	if len(pts) == 0 {
		return c
	}
	for _, p := range pts {
		c = c.Add(p)
	}
	return c.DivScalar(float64(len(pts)))
}
