package geom

import "math"

// Box is an axis-aligned bounding box. The zero Box is empty only when
// created through EmptyBox; use Extend to grow it.
type Box struct {
	Min Vec3 `json:"min"`
	Max Vec3 `json:"max"`
}

// EmptyBox returns a box that contains nothing; extending it with a point
// yields a degenerate box around that point.
func EmptyBox() Box {
	inf := math.Inf(1)
	return Box{
		Min: Vec3{inf, inf, inf},
		Max: Vec3{-inf, -inf, -inf},
	}
}

// BoxOf returns the bounding box of the given points.
func BoxOf(points []Vec3) Box {
	b := EmptyBox()
	for _, p := range points {
		b = b.Extend(p)
	}
	return b
}

func (b Box) IsEmpty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

func (b Box) Extend(p Vec3) Box {
	return Box{
		Min: Vec3{math.Min(b.Min.X, p.X), math.Min(b.Min.Y, p.Y), math.Min(b.Min.Z, p.Z)},
		Max: Vec3{math.Max(b.Max.X, p.X), math.Max(b.Max.Y, p.Y), math.Max(b.Max.Z, p.Z)},
	}
}

func (b Box) Union(o Box) Box {
	if b.IsEmpty() {
		return o
	}
	if o.IsEmpty() {
		return b
	}
	return b.Extend(o.Min).Extend(o.Max)
}

// Expand grows the box by d on every side.
func (b Box) Expand(d float64) Box {
	return Box{
		Min: b.Min.Sub(Vec3{d, d, d}),
		Max: b.Max.Add(Vec3{d, d, d}),
	}
}

func (b Box) Size() Vec3 {
	return b.Max.Sub(b.Min)
}

func (b Box) Center() Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// MaxExtent returns the largest side length.
func (b Box) MaxExtent() float64 {
	s := b.Size()
	return math.Max(s.X, math.Max(s.Y, s.Z))
}

func (b Box) Contains(p Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Overlaps reports whether the boxes intersect, touching faces included,
// after growing both by tol.
func (b Box) Overlaps(o Box, tol float64) bool {
	if b.IsEmpty() || o.IsEmpty() {
		return false
	}
	return b.Min.X-tol <= o.Max.X && o.Min.X-tol <= b.Max.X &&
		b.Min.Y-tol <= o.Max.Y && o.Min.Y-tol <= b.Max.Y &&
		b.Min.Z-tol <= o.Max.Z && o.Min.Z-tol <= b.Max.Z
}
