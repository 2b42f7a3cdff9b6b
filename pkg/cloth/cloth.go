// Package cloth relaxes a cloth body over a collision body. It is a
// position-based approximation: the body is offset along its normals,
// then repeatedly drifted by an external force, smoothed according to
// its stiffness and pushed out of the collision surface.
package cloth

import (
	"math"

	"github.com/chazu/meshforge/pkg/geom"
	"github.com/chazu/meshforge/pkg/kernel"
	"github.com/chazu/meshforge/pkg/kernel/sdfx"
	"github.com/chazu/meshforge/pkg/snapshot"
)

// DefaultStep is the force drift per iteration, in model units.
const DefaultStep = 0.01

// collisionMargin keeps pushed-out vertices just off the surface.
const collisionMargin = 1e-4

// Params configures one simulation.
type Params struct {
	Stiffness float64
	Iteration int
	Force     snapshot.ClothForce
	Offset    float64
	// MaxIterations caps Iteration; zero means no cap.
	MaxIterations int
	Step          float64
}

// ParamsFor reads the cloth settings of a component.
func ParamsFor(c *snapshot.Component) Params {
	return Params{
		Stiffness: c.ClothStiffness,
		Iteration: c.ClothIteration,
		Force:     c.ClothForce,
		Offset:    c.ClothOffset,
	}
}

// Simulate returns the relaxed copy of body. collision may be nil or
// empty, in which case only the force and stiffness act.
func Simulate(body, collision *kernel.Mesh, p Params) *kernel.Mesh {
	if body.IsEmpty() {
		return body.Clone()
	}
	out := body.Clone()
	step := p.Step
	if step <= 0 {
		step = DefaultStep
	}
	iterations := p.Iteration
	if p.MaxIterations > 0 && iterations > p.MaxIterations {
		iterations = p.MaxIterations
	}

	if p.Offset != 0 {
		normals := kernel.VertexNormals(out.Vertices, out.Triangles())
		for i, n := range normals {
			out.Vertices[i] = out.Vertices[i].Add(n.Scale(p.Offset))
		}
	}

	var field *sdfx.MeshSDF
	var center geom.Vec3
	if !collision.IsEmpty() {
		field = sdfx.NewMeshSDF(collision, collision.Bounds().MaxExtent()*0.01)
		center = collision.Centroid()
	} else {
		center = out.Centroid()
	}

	// Stiff cloth resists smoothing.
	weight := 1 - math.Min(math.Max(p.Stiffness, 0), 1)
	weights := make([]float64, len(out.Vertices))
	for i := range weights {
		weights[i] = weight * 0.5
	}

	for it := 0; it < iterations; it++ {
		for i, v := range out.Vertices {
			switch p.Force {
			case snapshot.ClothForceCentripetal:
				toward := center.Sub(v)
				if toward.Length() > step {
					out.Vertices[i] = v.Add(toward.Normalize().Scale(step))
				}
			default:
				out.Vertices[i] = v.Add(geom.V(0, -step, 0))
			}
		}
		if weight > 0 {
			kernel.LaplacianSmooth(out, weights, 1)
		}
		if field != nil {
			collide(out, field)
		}
	}
	return out
}

func collide(m *kernel.Mesh, field *sdfx.MeshSDF) {
	for i, v := range m.Vertices {
		if !field.Inside(v) {
			continue
		}
		q, n := field.ClosestPoint(v)
		m.Vertices[i] = q.Add(n.Scale(collisionMargin))
	}
}
