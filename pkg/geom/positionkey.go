package geom

import "math"

// positionScale quantizes coordinates to 1e-4 model units.
const positionScale = 10000

// PositionKey identifies a vertex by its quantized position. Boolean
// combination does not preserve vertex identity, so seams and welds are
// matched by position.
type PositionKey struct {
	X, Y, Z int64
}

func KeyOf(p Vec3) PositionKey {
	return PositionKey{
		X: int64(math.Round(p.X * positionScale)),
		Y: int64(math.Round(p.Y * positionScale)),
		Z: int64(math.Round(p.Z * positionScale)),
	}
}

func (k PositionKey) less(o PositionKey) bool {
	if k.X != o.X {
		return k.X < o.X
	}
	if k.Y != o.Y {
		return k.Y < o.Y
	}
	return k.Z < o.Z
}

// EdgeKey is an undirected edge between two position keys; A is always the
// lesser endpoint.
type EdgeKey struct {
	A, B PositionKey
}

func EdgeKeyOf(p, q Vec3) EdgeKey {
	a, b := KeyOf(p), KeyOf(q)
	if b.less(a) {
		a, b = b, a
	}
	return EdgeKey{A: a, B: b}
}

// MirrorX returns the key of the position reflected across the X=0 plane.
func (k PositionKey) MirrorX() PositionKey {
	return PositionKey{X: -k.X, Y: k.Y, Z: k.Z}
}
