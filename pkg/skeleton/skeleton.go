// Package skeleton turns one part's skeleton nodes and edges into a raw
// closed surface with per-vertex provenance.
package skeleton

import (
	"context"
	"errors"

	"github.com/chazu/meshforge/pkg/kernel"
	"github.com/chazu/meshforge/pkg/outcome"
	"github.com/chazu/meshforge/pkg/snapshot"
)

// ErrDegenerate is returned when a part's skeleton cannot produce a
// surface, for example when it has no nodes or a non-positive radius.
var ErrDegenerate = errors.New("skeleton: degenerate part")

// Input is the skeleton of one part.
type Input struct {
	Part  snapshot.Part
	Nodes []snapshot.Node
	Edges []snapshot.Edge
}

// Output is the raw part surface.
type Output struct {
	Mesh *kernel.Mesh
	// Provenance is aligned with Mesh.Vertices.
	Provenance        []outcome.Provenance
	CutFaceTransforms map[snapshot.ID]outcome.CutFaceTransform
}

// Builder is the Stroke-to-Part Builder. Implementations must be safe for
// concurrent use; the generator builds dirty parts in parallel.
type Builder interface {
	Build(ctx context.Context, in Input) (*Output, error)
}

// BuilderFunc adapts a function to the Builder interface.
type BuilderFunc func(ctx context.Context, in Input) (*Output, error)

func (f BuilderFunc) Build(ctx context.Context, in Input) (*Output, error) {
	return f(ctx, in)
}

// InputFor collects the skeleton of a part from a snapshot.
func InputFor(s *snapshot.Snapshot, partID snapshot.ID) Input {
	var in Input
	if p := s.Parts[partID]; p != nil {
		in.Part = *p
	}
	for _, n := range s.PartNodes(partID) {
		in.Nodes = append(in.Nodes, *n)
	}
	for _, e := range s.PartEdges(partID) {
		in.Edges = append(in.Edges, *e)
	}
	return in
}
