// Package bsp implements kernel.Combiner with an exact polygon BSP-tree
// boolean. Polygons are split against each other's planes, so the output
// is made only of input polygon fragments and contains no resampling
// error. It declines dense input (see Combiner), so the generator chains it
// in front of the voxel combiner by default.
package bsp

import (
	"github.com/chazu/meshforge/pkg/geom"
	"github.com/chazu/meshforge/pkg/kernel"
)

// planeEpsilon is the tolerance used to classify a point against a plane.
const planeEpsilon = 1e-5

const (
	coplanar = 0
	front    = 1
	back     = 2
	spanning = front | back
)

// vertex is a polygon corner together with the input vertex it derives
// from. Split points take the source of their nearer endpoint.
type vertex struct {
	pos geom.Vec3
	src kernel.VertexSource
}

type plane struct {
	normal geom.Vec3
	w      float64
}

func planeFromPoints(a, b, c geom.Vec3) (plane, bool) {
	n := b.Sub(a).Cross(c.Sub(a))
	if n.Length() < 1e-12 {
		return plane{}, false
	}
	n = n.Normalize()
	return plane{normal: n, w: n.Dot(a)}, true
}

func (p plane) flip() plane {
	return plane{normal: p.normal.Neg(), w: -p.w}
}

type polygon struct {
	vertices []vertex
	plane    plane
}

// newPolygon derives the plane from the first non-collinear corner
// triple. It returns false for degenerate polygons.
func newPolygon(vs []vertex) (*polygon, bool) {
	if len(vs) < 3 {
		return nil, false
	}
	for i := 2; i < len(vs); i++ {
		if pl, ok := planeFromPoints(vs[0].pos, vs[i-1].pos, vs[i].pos); ok {
			return &polygon{vertices: vs, plane: pl}, true
		}
	}
	return nil, false
}

// planar reports whether every corner lies on the polygon's plane.
func (p *polygon) planar() bool {
	for _, v := range p.vertices {
		if d := p.plane.normal.Dot(v.pos) - p.plane.w; d < -planeEpsilon || d > planeEpsilon {
			return false
		}
	}
	return true
}

func (p *polygon) flip() {
	for i, j := 0, len(p.vertices)-1; i < j; i, j = i+1, j-1 {
		p.vertices[i], p.vertices[j] = p.vertices[j], p.vertices[i]
	}
	p.plane = p.plane.flip()
}

// classify returns coplanar, front, back or spanning for poly.
func (pl plane) classify(poly *polygon) int {
	polyType := coplanar
	for _, v := range poly.vertices {
		t := pl.normal.Dot(v.pos) - pl.w
		if t < -planeEpsilon {
			polyType |= back
		} else if t > planeEpsilon {
			polyType |= front
		}
	}
	return polyType
}

// split classifies poly against the plane and appends it, or its
// fragments, to the matching lists. Coplanar polygons go to coplanarFront
// or coplanarBack depending on their orientation.
func (pl plane) split(poly *polygon, coplanarFront, coplanarBack, fronts, backs *[]*polygon) {
	polyType := 0
	var buf [8]int
	types := buf[:0]
	if len(poly.vertices) > len(buf) {
		types = make([]int, 0, len(poly.vertices))
	}
	for _, v := range poly.vertices {
		t := pl.normal.Dot(v.pos) - pl.w
		typ := coplanar
		if t < -planeEpsilon {
			typ = back
		} else if t > planeEpsilon {
			typ = front
		}
		polyType |= typ
		types = append(types, typ)
	}

	switch polyType {
	case coplanar:
		if pl.normal.Dot(poly.plane.normal) > 0 {
			*coplanarFront = append(*coplanarFront, poly)
		} else {
			*coplanarBack = append(*coplanarBack, poly)
		}
	case front:
		*fronts = append(*fronts, poly)
	case back:
		*backs = append(*backs, poly)
	case spanning:
		var f, b []vertex
		n := len(poly.vertices)
		for i := 0; i < n; i++ {
			j := (i + 1) % n
			ti, tj := types[i], types[j]
			vi, vj := poly.vertices[i], poly.vertices[j]
			if ti != back {
				f = append(f, vi)
			}
			if ti != front {
				b = append(b, vi)
			}
			if ti|tj == spanning {
				t := (pl.w - pl.normal.Dot(vi.pos)) / pl.normal.Dot(vj.pos.Sub(vi.pos))
				v := vertex{pos: vi.pos.Lerp(vj.pos, t), src: vi.src}
				if t > 0.5 {
					v.src = vj.src
				}
				f = append(f, v)
				b = append(b, v)
			}
		}
		if len(f) >= 3 {
			*fronts = append(*fronts, &polygon{vertices: f, plane: poly.plane})
		}
		if len(b) >= 3 {
			*backs = append(*backs, &polygon{vertices: b, plane: poly.plane})
		}
	}
}
