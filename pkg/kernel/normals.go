package kernel

import (
	"math"

	"github.com/chazu/meshforge/pkg/geom"
)

// TriangleNormals returns one unit normal per triangle.
func TriangleNormals(vertices []Vec3, tris [][3]int) []Vec3 {
	normals := make([]Vec3, len(tris))
	for i, t := range tris {
		normals[i] = geom.TriangleNormal(vertices[t[0]], vertices[t[1]], vertices[t[2]])
	}
	return normals
}

// VertexNormals returns per-vertex normals by averaging the area-weighted
// face normals of all triangles incident on each vertex.
func VertexNormals(vertices []Vec3, tris [][3]int) []Vec3 {
	normals := make([]Vec3, len(vertices))
	for _, t := range tris {
		a, b, c := vertices[t[0]], vertices[t[1]], vertices[t[2]]
		// Unnormalized cross product weights by area.
		n := b.Sub(a).Cross(c.Sub(a))
		for _, idx := range t {
			normals[idx] = normals[idx].Add(n)
		}
	}
	for i := range normals {
		normals[i] = normals[i].Normalize()
	}
	return normals
}

// SmoothTriangleVertexNormals computes a normal for every triangle corner.
// Corner normals average the normals of the triangles around the same
// vertex position whose angle to the corner's own triangle is below
// thresholdDegrees. Corners on a hard vertex keep the flat triangle normal,
// which keeps part seams crisp.
func SmoothTriangleVertexNormals(vertices []Vec3, tris [][3]int, triNormals []Vec3,
	thresholdDegrees float64, hard map[geom.PositionKey]struct{}) [][3]Vec3 {

	cosThreshold := math.Cos(thresholdDegrees * math.Pi / 180)
	around := make(map[geom.PositionKey][]int)
	for ti, t := range tris {
		for _, idx := range t {
			k := geom.KeyOf(vertices[idx])
			around[k] = append(around[k], ti)
		}
	}

	areas := make([]float64, len(tris))
	for i, t := range tris {
		areas[i] = geom.TriangleArea(vertices[t[0]], vertices[t[1]], vertices[t[2]])
	}

	out := make([][3]Vec3, len(tris))
	for ti, t := range tris {
		own := triNormals[ti]
		for corner, idx := range t {
			k := geom.KeyOf(vertices[idx])
			if _, isHard := hard[k]; isHard {
				out[ti][corner] = own
				continue
			}
			var sum Vec3
			for _, other := range around[k] {
				n := triNormals[other]
				if n.Dot(own) < cosThreshold {
					continue
				}
				sum = sum.Add(n.Scale(areas[other]))
			}
			if sum = sum.Normalize(); sum.IsZero() {
				sum = own
			}
			out[ti][corner] = sum
		}
	}
	return out
}
