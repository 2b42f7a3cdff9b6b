// Package sdfx connects the mesh representation to the
// github.com/deadsy/sdfx signed distance field library. It provides a mesh
// backed SDF, skeleton primitives, a marching-cubes polygonizer and a
// voxel kernel.Combiner built on them.
package sdfx

import (
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/meshforge/pkg/geom"
	"github.com/chazu/meshforge/pkg/kernel"
)

// Sign rays are skewed off the axes so they do not graze axis-aligned
// edges, and three are cast so a single degenerate hit cannot flip the
// sign.
var signRays = [3]geom.Vec3{
	{X: 1, Y: 0.0137, Z: 0.0071},
	{X: -0.0093, Y: 1, Z: 0.0211},
	{X: 0.0173, Y: -0.0119, Z: 1},
}

var _ sdf.SDF3 = (*MeshSDF)(nil)

// MeshSDF evaluates a closed triangle mesh as a signed distance field:
// negative inside, positive outside.
type MeshSDF struct {
	corners [][3]geom.Vec3
	indices [][3]int
	root    *bvh
	bb      geom.Box
	limit   float64
}

// NewMeshSDF builds the acceleration structure for m. The bounding box is
// padded by pad model units. It returns nil for an empty mesh.
func NewMeshSDF(m *kernel.Mesh, pad float64) *MeshSDF {
	if m.IsEmpty() {
		return nil
	}
	tris := m.Triangles()
	s := &MeshSDF{
		corners: make([][3]geom.Vec3, len(tris)),
		indices: tris,
	}
	ids := make([]int, len(tris))
	for i, t := range tris {
		s.corners[i] = [3]geom.Vec3{m.Vertices[t[0]], m.Vertices[t[1]], m.Vertices[t[2]]}
		ids[i] = i
	}
	s.root = buildBVH(s.corners, ids)
	s.bb = m.Bounds().Expand(pad)
	return s
}

// SetDistanceLimit clamps the magnitude Evaluate reports to d. Marching
// cubes only interpolates between samples next to the surface, and the
// nearest-triangle search far from it is the dominant cost. Zero removes
// the limit.
func (s *MeshSDF) SetDistanceLimit(d float64) {
	s.limit = d
}

// Evaluate implements sdf.SDF3.
func (s *MeshSDF) Evaluate(p v3.Vec) float64 {
	q := fromV3(p)
	d := s.distance(q)
	if s.Inside(q) {
		return -d
	}
	return d
}

// BoundingBox implements sdf.SDF3.
func (s *MeshSDF) BoundingBox() sdf.Box3 {
	return toBox3(s.bb)
}

// Nearest returns the index of the triangle closest to p and the unsigned
// distance to it.
func (s *MeshSDF) Nearest(p geom.Vec3) (tri int, dist float64) {
	best, bestDist := -1, math.Inf(1)
	s.root.nearest(s.corners, p, &best, &bestDist)
	return best, math.Sqrt(bestDist)
}

// distance is the unsigned distance to the surface, clamped to the limit.
func (s *MeshSDF) distance(p geom.Vec3) float64 {
	if s.limit <= 0 {
		_, d := s.Nearest(p)
		return d
	}
	best, bestDist := -1, s.limit*s.limit
	s.root.nearest(s.corners, p, &best, &bestDist)
	if best < 0 {
		return s.limit
	}
	return math.Sqrt(bestDist)
}

// NearestVertex returns the mesh vertex index closest to p among the
// corners of the nearest triangle.
func (s *MeshSDF) NearestVertex(p geom.Vec3) int {
	tri, _ := s.Nearest(p)
	if tri < 0 {
		return -1
	}
	best, bestDist := 0, math.Inf(1)
	for c, v := range s.corners[tri] {
		if d := v.Distance(p); d < bestDist {
			best, bestDist = c, d
		}
	}
	return s.indices[tri][best]
}

// Inside reports whether p is enclosed by the mesh, by majority vote of
// ray crossing parity.
func (s *MeshSDF) Inside(p geom.Vec3) bool {
	if !s.bb.Contains(p) {
		return false
	}
	votes := 0
	for _, dir := range signRays {
		inv := geom.V(1/dir.X, 1/dir.Y, 1/dir.Z)
		if s.root.crossings(s.corners, p, dir, inv)%2 == 1 {
			votes++
		}
	}
	return votes >= 2
}

func toV3(v geom.Vec3) v3.Vec {
	return v3.Vec{X: v.X, Y: v.Y, Z: v.Z}
}

func fromV3(v v3.Vec) geom.Vec3 {
	return geom.Vec3{X: v.X, Y: v.Y, Z: v.Z}
}

func toBox3(b geom.Box) sdf.Box3 {
	return sdf.Box3{Min: toV3(b.Min), Max: toV3(b.Max)}
}

// ClosestPoint returns the point on the mesh nearest to p and the outward
// normal of the triangle it lies on.
func (s *MeshSDF) ClosestPoint(p geom.Vec3) (point, normal geom.Vec3) {
	tri, _ := s.Nearest(p)
	if tri < 0 {
		return p, geom.Vec3{}
	}
	c := s.corners[tri]
	return closestPointOnTriangle(p, c[0], c[1], c[2]), geom.TriangleNormal(c[0], c[1], c[2])
}
