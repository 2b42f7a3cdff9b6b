package kernel

import (
	"math"
	"sort"

	"github.com/chazu/meshforge/pkg/geom"
)

const intersectEpsilon = 1e-7

// SelfIntersects reports whether any two triangles of the mesh cross each
// other. Triangles that share a vertex position are adjacent and never
// count; coplanar contact is ignored.
func SelfIntersects(m *Mesh) bool {
	if m.IsEmpty() {
		return false
	}
	tris := m.Triangles()
	type entry struct {
		tri  int
		box  geom.Box
		keys [3]geom.PositionKey
	}
	entries := make([]entry, 0, len(tris))
	for i, t := range tris {
		a, b, c := m.Vertices[t[0]], m.Vertices[t[1]], m.Vertices[t[2]]
		if geom.TriangleArea(a, b, c) < intersectEpsilon {
			continue
		}
		entries = append(entries, entry{
			tri:  i,
			box:  geom.BoxOf([]Vec3{a, b, c}),
			keys: [3]geom.PositionKey{geom.KeyOf(a), geom.KeyOf(b), geom.KeyOf(c)},
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].box.Min.X < entries[j].box.Min.X
	})

	corners := func(ti int) [3]Vec3 {
		t := tris[ti]
		return [3]Vec3{m.Vertices[t[0]], m.Vertices[t[1]], m.Vertices[t[2]]}
	}

	for i := range entries {
		ei := entries[i]
		for j := i + 1; j < len(entries); j++ {
			ej := entries[j]
			if ej.box.Min.X > ei.box.Max.X {
				break
			}
			if !ei.box.Overlaps(ej.box, 0) || sharesKey(ei.keys, ej.keys) {
				continue
			}
			if trianglesCross(corners(ei.tri), corners(ej.tri)) {
				return true
			}
		}
	}
	return false
}

func sharesKey(a, b [3]geom.PositionKey) bool {
	for _, ka := range a {
		for _, kb := range b {
			if ka == kb {
				return true
			}
		}
	}
	return false
}

func trianglesCross(t1, t2 [3]Vec3) bool {
	for i := 0; i < 3; i++ {
		if segmentCrossesTriangle(t1[i], t1[(i+1)%3], t2) {
			return true
		}
		if segmentCrossesTriangle(t2[i], t2[(i+1)%3], t1) {
			return true
		}
	}
	return false
}

// segmentCrossesTriangle is a Möller–Trumbore test restricted to the open
// segment and the triangle interior.
func segmentCrossesTriangle(p, q Vec3, t [3]Vec3) bool {
	dir := q.Sub(p)
	e1 := t[1].Sub(t[0])
	e2 := t[2].Sub(t[0])
	h := dir.Cross(e2)
	det := e1.Dot(h)
	if math.Abs(det) < intersectEpsilon {
		return false
	}
	inv := 1 / det
	s := p.Sub(t[0])
	u := inv * s.Dot(h)
	if u <= intersectEpsilon || u >= 1-intersectEpsilon {
		return false
	}
	qv := s.Cross(e1)
	v := inv * dir.Dot(qv)
	if v <= intersectEpsilon || u+v >= 1-intersectEpsilon {
		return false
	}
	tt := inv * e2.Dot(qv)
	return tt > intersectEpsilon && tt < 1-intersectEpsilon
}
