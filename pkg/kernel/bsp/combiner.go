package bsp

import "github.com/chazu/meshforge/pkg/kernel"

var _ kernel.Combiner = (*Combiner)(nil)

// Default limits. Every face plane of a convex surface has the whole
// surface behind it, so a BSP tree over a dense rounded mesh degenerates
// into a chain and the boolean turns quadratic. Such input is declined
// rather than ground through.
const (
	DefaultMaxPolygons = 4000
	DefaultMaxWork     = 16_000_000
)

// Combiner is the BSP boolean backend. The zero value is ready to use and
// holds no state between calls.
//
// Combine returns nil when the operands together have more than
// MaxPolygons polygons or when the boolean needs more than MaxWork polygon
// classifications. Zero limits mean the defaults.
type Combiner struct {
	MaxPolygons int
	MaxWork     int
}

// New returns a BSP combiner with the default limits.
func New() *Combiner {
	return &Combiner{}
}

func (c *Combiner) limits() (maxPolygons, maxWork int) {
	maxPolygons, maxWork = c.MaxPolygons, c.MaxWork
	if maxPolygons <= 0 {
		maxPolygons = DefaultMaxPolygons
	}
	if maxWork <= 0 {
		maxWork = DefaultMaxWork
	}
	return maxPolygons, maxWork
}

// Combine implements kernel.Combiner.
func (c *Combiner) Combine(a, b *kernel.Mesh, method kernel.Method) *kernel.Result {
	if res, decided := kernel.Passthrough(a, b, method); decided {
		return res
	}

	// Operands that cannot touch need no boolean work.
	if !a.Bounds().Overlaps(b.Bounds(), planeEpsilon) {
		if method == kernel.Subtract {
			return kernel.Identity(a, kernel.SourceFirst)
		}
		return kernel.Concat(a, b)
	}

	maxPolygons, maxWork := c.limits()
	if len(a.Faces)+len(b.Faces) > maxPolygons {
		return nil
	}
	pa := toPolygons(a, kernel.SourceFirst)
	pb := toPolygons(b, kernel.SourceSecond)
	switch {
	case len(pa) == 0 && len(pb) == 0:
		return nil
	case len(pa) == 0:
		if method == kernel.Subtract {
			return nil
		}
		return kernel.Identity(b, kernel.SourceSecond)
	case len(pb) == 0:
		return kernel.Identity(a, kernel.SourceFirst)
	}

	var polys []*polygon
	work := &budget{left: maxWork}
	switch method {
	case kernel.Subtract:
		polys = subtract(pa, pb, work)
	default:
		polys = union(pa, pb, work)
	}
	if work.exhausted() {
		return nil
	}
	if len(polys) == 0 {
		// Everything was carved away.
		return &kernel.Result{Mesh: &kernel.Mesh{}}
	}
	res := fromPolygons(polys)
	res.SelfIntersecting = a.SelfIntersecting || b.SelfIntersecting
	res.Mesh.SelfIntersecting = res.SelfIntersecting
	return res
}

func union(pa, pb []*polygon, work *budget) []*polygon {
	a, b := newNode(pa, work), newNode(pb, work)
	a.clipTo(b, work)
	b.clipTo(a, work)
	b.invert()
	b.clipTo(a, work)
	b.invert()
	a.build(b.allPolygons(), work)
	return a.allPolygons()
}

func subtract(pa, pb []*polygon, work *budget) []*polygon {
	a, b := newNode(pa, work), newNode(pb, work)
	a.invert()
	a.clipTo(b, work)
	b.clipTo(a, work)
	b.invert()
	b.clipTo(a, work)
	b.invert()
	a.build(b.allPolygons(), work)
	a.invert()
	return a.allPolygons()
}

// toPolygons converts faces to polygons. Faces that are not planar, as
// left by smoothing, are fanned into triangles.
func toPolygons(m *kernel.Mesh, src kernel.Source) []*polygon {
	out := make([]*polygon, 0, len(m.Faces))
	corner := func(idx int) vertex {
		return vertex{pos: m.Vertices[idx], src: kernel.VertexSource{Source: src, Index: idx}}
	}
	for _, f := range m.Faces {
		vs := make([]vertex, len(f))
		for i, idx := range f {
			vs[i] = corner(idx)
		}
		p, ok := newPolygon(vs)
		if !ok {
			continue
		}
		if len(f) == 3 || p.planar() {
			out = append(out, p)
			continue
		}
		for i := 2; i < len(f); i++ {
			if tri, ok := newPolygon([]vertex{corner(f[0]), corner(f[i-1]), corner(f[i])}); ok {
				out = append(out, tri)
			}
		}
	}
	return out
}

// fromPolygons welds polygon corners by position. A welded vertex keeps
// the source of its first occurrence.
func fromPolygons(polys []*polygon) *kernel.Result {
	raw := &kernel.Mesh{}
	var sources []kernel.VertexSource
	for _, p := range polys {
		face := make([]int, len(p.vertices))
		for i, v := range p.vertices {
			face[i] = len(raw.Vertices)
			raw.Vertices = append(raw.Vertices, v.pos)
			sources = append(sources, v.src)
		}
		raw.Faces = append(raw.Faces, face)
	}
	welded, firstOld := raw.Weld()
	cameFrom := make([]kernel.VertexSource, len(welded.Vertices))
	for i, old := range firstOld {
		cameFrom[i] = sources[old]
	}
	return &kernel.Result{Mesh: welded, CameFrom: cameFrom}
}
