package sdfx

import (
	"math"
	"sort"

	"github.com/chazu/meshforge/pkg/geom"
)

const leafSize = 8

// bvh is a bounding volume hierarchy over the triangles of a mesh.
type bvh struct {
	box         geom.Box
	left, right *bvh
	tris        []int
}

func buildBVH(corners [][3]geom.Vec3, tris []int) *bvh {
	n := &bvh{box: geom.EmptyBox()}
	for _, t := range tris {
		for _, c := range corners[t] {
			n.box = n.box.Extend(c)
		}
	}
	if len(tris) <= leafSize {
		n.tris = tris
		return n
	}
	size := n.box.Size()
	axis := 0
	if size.Y > size.X && size.Y >= size.Z {
		axis = 1
	} else if size.Z > size.X && size.Z > size.Y {
		axis = 2
	}
	centroid := func(t int) float64 {
		c := corners[t]
		return (c[0].Component(axis) + c[1].Component(axis) + c[2].Component(axis)) / 3
	}
	sorted := append([]int(nil), tris...)
	sort.SliceStable(sorted, func(i, j int) bool { return centroid(sorted[i]) < centroid(sorted[j]) })
	mid := len(sorted) / 2
	n.left = buildBVH(corners, sorted[:mid])
	n.right = buildBVH(corners, sorted[mid:])
	return n
}

func boxDistanceSquared(b geom.Box, p geom.Vec3) float64 {
	var d float64
	for i := 0; i < 3; i++ {
		v := p.Component(i)
		lo, hi := b.Min.Component(i), b.Max.Component(i)
		if v < lo {
			d += (lo - v) * (lo - v)
		} else if v > hi {
			d += (v - hi) * (v - hi)
		}
	}
	return d
}

// nearest finds the triangle closest to p. best and bestDist carry the
// running result across the recursion.
func (n *bvh) nearest(corners [][3]geom.Vec3, p geom.Vec3, best *int, bestDist *float64) {
	if boxDistanceSquared(n.box, p) >= *bestDist {
		return
	}
	if n.tris != nil {
		for _, t := range n.tris {
			c := corners[t]
			q := closestPointOnTriangle(p, c[0], c[1], c[2])
			if d := q.Sub(p).LengthSquared(); d < *bestDist {
				*bestDist = d
				*best = t
			}
		}
		return
	}
	first, second := n.left, n.right
	if boxDistanceSquared(second.box, p) < boxDistanceSquared(first.box, p) {
		first, second = second, first
	}
	first.nearest(corners, p, best, bestDist)
	second.nearest(corners, p, best, bestDist)
}

func (n *bvh) rayHitsBox(origin, inv geom.Vec3) bool {
	tmin, tmax := 0.0, math.Inf(1)
	for i := 0; i < 3; i++ {
		o, d := origin.Component(i), inv.Component(i)
		t1 := (n.box.Min.Component(i) - o) * d
		t2 := (n.box.Max.Component(i) - o) * d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math.Max(tmin, t1)
		tmax = math.Min(tmax, t2)
		if tmin > tmax {
			return false
		}
	}
	return true
}

// crossings counts the triangles hit by the ray from origin along dir.
func (n *bvh) crossings(corners [][3]geom.Vec3, origin, dir, inv geom.Vec3) int {
	if !n.rayHitsBox(origin, inv) {
		return 0
	}
	if n.tris != nil {
		count := 0
		for _, t := range n.tris {
			c := corners[t]
			if rayHitsTriangle(origin, dir, c[0], c[1], c[2]) {
				count++
			}
		}
		return count
	}
	return n.left.crossings(corners, origin, dir, inv) + n.right.crossings(corners, origin, dir, inv)
}

func rayHitsTriangle(origin, dir, a, b, c geom.Vec3) bool {
	const eps = 1e-12
	e1 := b.Sub(a)
	e2 := c.Sub(a)
	h := dir.Cross(e2)
	det := e1.Dot(h)
	if math.Abs(det) < eps {
		return false
	}
	f := 1 / det
	s := origin.Sub(a)
	u := f * s.Dot(h)
	if u < 0 || u > 1 {
		return false
	}
	q := s.Cross(e1)
	v := f * dir.Dot(q)
	if v < 0 || u+v > 1 {
		return false
	}
	return f*e2.Dot(q) > eps
}

// closestPointOnTriangle returns the point of triangle abc nearest to p,
// using the Voronoi region classification from Ericson's Real-Time
// Collision Detection.
func closestPointOnTriangle(p, a, b, c geom.Vec3) geom.Vec3 {
	ab := b.Sub(a)
	ac := c.Sub(a)
	ap := p.Sub(a)
	d1, d2 := ab.Dot(ap), ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}
	bp := p.Sub(b)
	d3, d4 := ab.Dot(bp), ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}
	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		return a.Add(ab.Scale(d1 / (d1 - d3)))
	}
	cp := p.Sub(c)
	d5, d6 := ab.Dot(cp), ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}
	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		return a.Add(ac.Scale(d2 / (d2 - d6)))
	}
	va := d3*d6 - d5*d4
	if va <= 0 && d4-d3 >= 0 && d5-d6 >= 0 {
		return b.Add(c.Sub(b).Scale((d4 - d3) / ((d4 - d3) + (d5 - d6))))
	}
	denom := 1 / (va + vb + vc)
	v := vb * denom
	w := vc * denom
	return a.Add(ab.Scale(v)).Add(ac.Scale(w))
}
