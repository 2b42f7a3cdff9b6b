package meshgen

import (
	"math"

	"github.com/chazu/meshforge/pkg/geom"
	"github.com/chazu/meshforge/pkg/kernel"
	"github.com/chazu/meshforge/pkg/outcome"
)

// retag derives the provenance of a combined mesh from the combiner's
// came-from report. Vertices the combiner could not attribute take the
// provenance of the nearest input vertex, so every tag still traces to a
// skeleton element of the inputs.
func retag(res *kernel.Result, first, second []outcome.Provenance, a, b *kernel.Mesh) []outcome.Provenance {
	out := make([]outcome.Provenance, len(res.Mesh.Vertices))
	for i, v := range res.Mesh.Vertices {
		var src kernel.VertexSource
		if i < len(res.CameFrom) {
			src = res.CameFrom[i]
		}
		switch {
		case src.Source == kernel.SourceFirst && src.Index >= 0 && src.Index < len(first):
			out[i] = first[src.Index]
		case src.Source == kernel.SourceSecond && src.Index >= 0 && src.Index < len(second):
			out[i] = second[src.Index]
		default:
			out[i] = nearestProvenance(v, a, first, b, second)
		}
	}
	return out
}

func nearestProvenance(v geom.Vec3, a *kernel.Mesh, first []outcome.Provenance, b *kernel.Mesh, second []outcome.Provenance) outcome.Provenance {
	var best outcome.Provenance
	bestDist := math.Inf(1)
	scan := func(m *kernel.Mesh, prov []outcome.Provenance) {
		if m == nil {
			return
		}
		for i, u := range m.Vertices {
			if i >= len(prov) {
				return
			}
			if d := u.Sub(v).LengthSquared(); d < bestDist {
				best, bestDist = prov[i], d
			}
		}
	}
	scan(a, first)
	scan(b, second)
	return best
}

// appendPiece appends a mesh and its provenance to dst.
func appendPiece(dst *kernel.Mesh, dstProv *[]outcome.Provenance, m *kernel.Mesh, prov []outcome.Provenance) {
	if m.IsEmpty() {
		return
	}
	dst.Append(m)
	*dstProv = append(*dstProv, prov...)
}
