package brush

import (
	"math"
	"sort"

	"github.com/chazu/mortar/pkg/geom"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// mergeEpsilon is the distance below which two candidate vertices are the
// same vertex.
const mergeEpsilon = 1e-4

// Edge joins two vertices and separates two faces.
type Edge struct {
	V0, V1 int    // vertex indices, V0 < V1
	Faces  [2]int // indices of the faces on either side
}

// Geometry is the convex polyhedron derived from a face list.
type Geometry struct {
	Vertices []v3.Vec
	Edges    []Edge
	Polygons [][]int // per face, vertex indices in CCW order about the normal
	Bounds   sdf.Box3
}

// InvalidReason explains why a face list does not bound a polyhedron.
type InvalidReason int

const (
	ReasonNone              InvalidReason = iota
	ReasonTooFewFaces                     // fewer than four faces
	ReasonTooFewVertices                  // intersection collapsed below four vertices
	ReasonRedundantFace                   // a face does not contribute a boundary loop
	ReasonOpen                            // the volume reaches the world bounds
	ReasonNonManifold                     // an edge is not shared by exactly two faces
)

func (r InvalidReason) String() string {
	switch r {
	case ReasonNone:
		return "valid"
	case ReasonTooFewFaces:
		return "too few faces"
	case ReasonTooFewVertices:
		return "too few vertices"
	case ReasonRedundantFace:
		return "redundant or contradictory face"
	case ReasonOpen:
		return "open volume"
	case ReasonNonManifold:
		return "non-manifold edge"
	default:
		return "unknown"
	}
}

// buildGeometry intersects the face half-spaces, clipped by the world bounds,
// into a convex polyhedron. It is a pure function of its inputs.
func buildGeometry(faces []Face, world sdf.Box3) (*Geometry, InvalidReason) {
	if len(faces) < 4 {
		return nil, ReasonTooFewFaces
	}

	planes := make([]geom.Plane, 0, len(faces)+6)
	for _, f := range faces {
		planes = append(planes, f.Plane)
	}
	nFaces := len(planes)
	for _, wp := range geom.BoxPlanes(world) {
		planes = append(planes, wp)
	}

	eps := geom.PointStatusEpsilon
	inside := func(p v3.Vec) bool {
		for _, pl := range planes {
			if pl.SignedDistance(p) > eps {
				return false
			}
		}
		return true
	}

	var verts []v3.Vec
	addVertex := func(p v3.Vec) {
		for _, v := range verts {
			if v.Sub(p).Length() <= mergeEpsilon {
				return
			}
		}
		verts = append(verts, p)
	}

	n := len(planes)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			for k := j + 1; k < n; k++ {
				p, ok := geom.IntersectPlanes(planes[i], planes[j], planes[k])
				if ok && inside(p) {
					addVertex(p)
				}
			}
		}
	}
	if len(verts) < 4 {
		return nil, ReasonTooFewVertices
	}

	g := &Geometry{Vertices: verts, Polygons: make([][]int, nFaces)}

	for i := 0; i < n; i++ {
		var incident []int
		for vi, v := range verts {
			if math.Abs(planes[i].SignedDistance(v)) <= eps {
				incident = append(incident, vi)
			}
		}
		if i < nFaces {
			if len(incident) < 3 {
				return nil, ReasonRedundantFace
			}
			g.Polygons[i] = windLoop(verts, incident, planes[i].Normal)
			continue
		}
		if len(incident) >= 3 && !coincidesWithFace(planes[i], planes[:nFaces]) {
			return nil, ReasonOpen
		}
	}

	type edgeKey struct{ a, b int }
	index := make(map[edgeKey]int)
	counts := make([]int, 0)
	for fi, loop := range g.Polygons {
		for i := range loop {
			a, b := loop[i], loop[(i+1)%len(loop)]
			if a > b {
				a, b = b, a
			}
			key := edgeKey{a, b}
			ei, ok := index[key]
			if !ok {
				index[key] = len(g.Edges)
				g.Edges = append(g.Edges, Edge{V0: a, V1: b, Faces: [2]int{fi, -1}})
				counts = append(counts, 1)
				continue
			}
			counts[ei]++
			if counts[ei] > 2 {
				return nil, ReasonNonManifold
			}
			g.Edges[ei].Faces[1] = fi
		}
	}
	for _, c := range counts {
		if c != 2 {
			return nil, ReasonNonManifold
		}
	}
	if len(g.Vertices)-len(g.Edges)+nFaces != 2 {
		return nil, ReasonNonManifold
	}

	g.Bounds = geom.EmptyBox()
	for _, v := range verts {
		g.Bounds = g.Bounds.Include(v)
	}
	return g, ReasonNone
}

func coincidesWithFace(p geom.Plane, faces []geom.Plane) bool {
	for _, f := range faces {
		if f.Equals(p, geom.PointStatusEpsilon) {
			return true
		}
	}
	return false
}

// windLoop orders the incident vertices counter-clockwise about normal and
// rotates the loop to start at its lowest vertex index.
func windLoop(verts []v3.Vec, incident []int, normal v3.Vec) []int {
	pts := make([]v3.Vec, len(incident))
	for i, vi := range incident {
		pts[i] = verts[vi]
	}
	c := geom.Centroid(pts)

	ref := v3.Vec{X: 1}
	if math.Abs(normal.X) > 0.9 {
		ref = v3.Vec{Y: 1}
	}
	u := normal.Cross(ref).Normalize()
	w := normal.Cross(u)

	angles := make(map[int]float64, len(incident))
	for _, vi := range incident {
		d := verts[vi].Sub(c)
		angles[vi] = math.Atan2(d.Dot(w), d.Dot(u))
	}
	loop := append([]int(nil), incident...)
	sort.SliceStable(loop, func(a, b int) bool {
		return angles[loop[a]] < angles[loop[b]]
	})

	lowest := 0
	for i, vi := range loop {
		if vi < loop[lowest] {
			lowest = i
		}
	}
	out := make([]int, 0, len(loop))
	out = append(out, loop[lowest:]...)
	return append(out, loop[:lowest]...)
}
