package sdfx

import (
	"github.com/deadsy/sdfx/sdf"

	"github.com/chazu/meshforge/pkg/kernel"
)

var _ kernel.Combiner = (*Combiner)(nil)

// Combiner is a voxel boolean backend: both operands are turned into
// signed distance fields, combined with sdfx and polygonized again. The
// result is resampled, so it is approximate and always closed.
type Combiner struct {
	// Cells is the marching cubes resolution on the longest axis.
	Cells int
}

// NewCombiner returns a voxel combiner with the given resolution.
func NewCombiner(cells int) *Combiner {
	return &Combiner{Cells: cells}
}

// Combine implements kernel.Combiner.
func (c *Combiner) Combine(a, b *kernel.Mesh, method kernel.Method) *kernel.Result {
	if res, decided := kernel.Passthrough(a, b, method); decided {
		return res
	}
	cells := c.Cells
	if cells <= 0 {
		cells = DefaultCells
	}
	pad := a.Bounds().Union(b.Bounds()).MaxExtent() / float64(cells)
	sa, sb := NewMeshSDF(a, pad), NewMeshSDF(b, pad)
	if sa == nil || sb == nil {
		return nil
	}
	sa.SetDistanceLimit(3 * pad)
	sb.SetDistanceLimit(3 * pad)

	var field sdf.SDF3
	switch method {
	case kernel.Subtract:
		field = sdf.Difference3D(sa, sb)
	default:
		field = sdf.Union3D(sa, sb)
	}
	mesh, err := Polygonize(field, cells)
	if err != nil {
		return nil
	}

	cameFrom := make([]kernel.VertexSource, len(mesh.Vertices))
	for i, v := range mesh.Vertices {
		_, da := sa.Nearest(v)
		_, db := sb.Nearest(v)
		if da <= db {
			cameFrom[i] = kernel.VertexSource{Source: kernel.SourceFirst, Index: sa.NearestVertex(v)}
		} else {
			cameFrom[i] = kernel.VertexSource{Source: kernel.SourceSecond, Index: sb.NearestVertex(v)}
		}
	}
	return &kernel.Result{
		Mesh:             mesh,
		CameFrom:         cameFrom,
		SelfIntersecting: a.SelfIntersecting || b.SelfIntersecting,
	}
}
