package meshgen

import (
	"github.com/chazu/meshforge/pkg/geom"
	"github.com/chazu/meshforge/pkg/kernel"
)

// sharedEdges returns the edges present in exactly two of the inputs.
// Edges are matched by endpoint position because combination does not
// keep vertex identity.
func sharedEdges(inputs []*kernel.Mesh) map[geom.EdgeKey]struct{} {
	count := make(map[geom.EdgeKey]int)
	for _, m := range inputs {
		for k := range m.EdgeKeys() {
			count[k]++
		}
	}
	out := make(map[geom.EdgeKey]struct{})
	for k, n := range count {
		if n == 2 {
			out[k] = struct{}{}
		}
	}
	return out
}

func seamVertices(edges map[geom.EdgeKey]struct{}) map[geom.PositionKey]struct{} {
	out := make(map[geom.PositionKey]struct{}, len(edges)*2)
	for e := range edges {
		out[e.A] = struct{}{}
		out[e.B] = struct{}{}
	}
	return out
}
