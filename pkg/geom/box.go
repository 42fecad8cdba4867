package geom

import (
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// EmptyBox returns an inverted box that any Include or Extend replaces.
func EmptyBox() sdf.Box3 {
	inf := math.Inf(1)
	return sdf.Box3{
		Min: v3.Vec{X: inf, Y: inf, Z: inf},
		Max: v3.Vec{X: -inf, Y: -inf, Z: -inf},
	}
}

// IsEmptyBox reports whether b encloses no point.
func IsEmptyBox(b sdf.Box3) bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// CubeBox returns the axis-aligned cube centered at the origin with the
// given half-extent.
func CubeBox(halfSize float64) sdf.Box3 {
	return sdf.Box3{
		Min: v3.Vec{X: -halfSize, Y: -halfSize, Z: -halfSize},
		Max: v3.Vec{X: halfSize, Y: halfSize, Z: halfSize},
	}
}

// BoxIntersects reports whether a and b overlap, touching included.
func BoxIntersects(a, b sdf.Box3) bool {
	if IsEmptyBox(a) || IsEmptyBox(b) {
		return false
	}
	return a.Min.X <= b.Max.X && a.Max.X >= b.Min.X &&
		a.Min.Y <= b.Max.Y && a.Max.Y >= b.Min.Y &&
		a.Min.Z <= b.Max.Z && a.Max.Z >= b.Min.Z
}

// BoxContainsBox reports whether inner lies entirely within outer.
func BoxContainsBox(outer, inner sdf.Box3) bool {
	if IsEmptyBox(outer) || IsEmptyBox(inner) {
		return false
	}
	return inner.Min.X >= outer.Min.X && inner.Max.X <= outer.Max.X &&
		inner.Min.Y >= outer.Min.Y && inner.Max.Y <= outer.Max.Y &&
		inner.Min.Z >= outer.Min.Z && inner.Max.Z <= outer.Max.Z
}

// BoxContainsPoint reports whether p lies within b, boundary included.
func BoxContainsPoint(b sdf.Box3, p v3.Vec) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// BoxPlanes returns the six outward-facing planes of b in the order
// -X, +X, -Y, +Y, -Z, +Z.
func BoxPlanes(b sdf.Box3) [6]Plane {
	return [6]Plane{
		{Normal: v3.Vec{X: -1}, Distance: -b.Min.X},
		{Normal: v3.Vec{X: 1}, Distance: b.Max.X},
		{Normal: v3.Vec{Y: -1}, Distance: -b.Min.Y},
		{Normal: v3.Vec{Y: 1}, Distance: b.Max.Y},
		{Normal: v3.Vec{Z: -1}, Distance: -b.Min.Z},
		{Normal: v3.Vec{Z: 1}, Distance: b.Max.Z},
	}
}

// RayBox returns the entry distance of r into b using the slab method.
func RayBox(r Ray, b sdf.Box3) (float64, bool) {
	tmin, tmax := math.Inf(-1), math.Inf(1)
	o := [3]float64{r.Origin.X, r.Origin.Y, r.Origin.Z}
	d := [3]float64{r.Direction.X, r.Direction.Y, r.Direction.Z}
	lo := [3]float64{b.Min.X, b.Min.Y, b.Min.Z}
	hi := [3]float64{b.Max.X, b.Max.Y, b.Max.Z}
	for i := 0; i < 3; i++ {
		if math.Abs(d[i]) < ParallelEpsilon {
			if o[i] < lo[i] || o[i] > hi[i] {
				return 0, false
			}
			continue
		}
		t0 := (lo[i] - o[i]) / d[i]
		t1 := (hi[i] - o[i]) / d[i]
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tmin = math.Max(tmin, t0)
		tmax = math.Min(tmax, t1)
		if tmin > tmax {
			return 0, false
		}
	}
	if tmax < 0 {
		return 0, false
	}
	if tmin < 0 {
		return 0, true
	}
	return tmin, true
}
