package sdfx

import (
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/meshforge/pkg/geom"
)

var (
	_ sdf.SDF3 = (*Sphere)(nil)
	_ sdf.SDF3 = (*RoundCone)(nil)
)

// Sphere is a sphere SDF, used for isolated skeleton nodes.
type Sphere struct {
	Center geom.Vec3
	Radius float64
}

func (s *Sphere) Evaluate(p v3.Vec) float64 {
	return fromV3(p).Distance(s.Center) - s.Radius
}

func (s *Sphere) BoundingBox() sdf.Box3 {
	r := geom.V(s.Radius, s.Radius, s.Radius)
	return toBox3(geom.Box{Min: s.Center.Sub(r), Max: s.Center.Add(r)})
}

// RoundCone is the convex hull of two spheres. It is the primitive a
// skeleton edge sweeps between its two end nodes.
type RoundCone struct {
	A, B   geom.Vec3
	RA, RB float64
}

// Evaluate uses the exact round cone distance from Inigo Quilez. When one
// sphere contains the other the hull is the larger sphere.
func (c *RoundCone) Evaluate(p v3.Vec) float64 {
	q := fromV3(p)
	ba := c.B.Sub(c.A)
	l2 := ba.Dot(ba)
	rr := c.RA - c.RB
	a2 := l2 - rr*rr
	if l2 < 1e-12 || a2 <= 0 {
		if c.RA >= c.RB {
			return q.Distance(c.A) - c.RA
		}
		return q.Distance(c.B) - c.RB
	}
	il2 := 1 / l2
	pa := q.Sub(c.A)
	y := pa.Dot(ba)
	z := y - l2
	x2 := pa.Scale(l2).Sub(ba.Scale(y)).LengthSquared()
	y2 := y * y * l2
	z2 := z * z * l2
	k := sign(rr) * rr * rr * x2
	if sign(z)*a2*z2 > k {
		return math.Sqrt(x2+z2)*il2 - c.RB
	}
	if sign(y)*a2*y2 < k {
		return math.Sqrt(x2+y2)*il2 - c.RA
	}
	return (math.Sqrt(x2*a2*il2)+y*rr)*il2 - c.RA
}

func (c *RoundCone) BoundingBox() sdf.Box3 {
	ra := geom.V(c.RA, c.RA, c.RA)
	rb := geom.V(c.RB, c.RB, c.RB)
	b := geom.Box{Min: c.A.Sub(ra), Max: c.A.Add(ra)}
	b = b.Union(geom.Box{Min: c.B.Sub(rb), Max: c.B.Add(rb)})
	return toBox3(b)
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}
