package skeleton

import (
	"context"
	"fmt"
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/meshforge/pkg/geom"
	"github.com/chazu/meshforge/pkg/kernel/sdfx"
	"github.com/chazu/meshforge/pkg/outcome"
	"github.com/chazu/meshforge/pkg/snapshot"
)

var _ Builder = (*SDFBuilder)(nil)

// SDFBuilder sweeps a sphere along the skeleton: every edge becomes a
// round cone between its end nodes, isolated nodes become spheres, and
// the union is polygonized with marching cubes. Rounded parts blend the
// primitives with a fillet instead of a sharp crease.
type SDFBuilder struct {
	// Cells is the marching cubes resolution on the longest axis.
	Cells int
}

func NewSDFBuilder(cells int) *SDFBuilder {
	return &SDFBuilder{Cells: cells}
}

type primitive struct {
	field sdf.SDF3
	prov  func(p geom.Vec3) outcome.Provenance
}

// Build implements Builder.
func (b *SDFBuilder) Build(ctx context.Context, in Input) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(in.Nodes) == 0 {
		return nil, fmt.Errorf("part %s has no nodes: %w", in.Part.ID, ErrDegenerate)
	}
	nodes := make(map[snapshot.ID]snapshot.Node, len(in.Nodes))
	for _, n := range in.Nodes {
		if n.Radius <= 0 || math.IsNaN(n.Radius) {
			return nil, fmt.Errorf("node %s radius %g: %w", n.ID, n.Radius, ErrDegenerate)
		}
		nodes[n.ID] = n
	}

	var prims []primitive
	connected := make(map[snapshot.ID]bool)
	for _, e := range in.Edges {
		from, okFrom := nodes[e.From]
		to, okTo := nodes[e.To]
		if !okFrom || !okTo {
			return nil, fmt.Errorf("edge %s references a node outside the part: %w", e.ID, ErrDegenerate)
		}
		connected[from.ID], connected[to.ID] = true, true
		edge := e
		prims = append(prims, primitive{
			field: &sdfx.RoundCone{A: from.Position, B: to.Position, RA: from.Radius, RB: to.Radius},
			prov: func(p geom.Vec3) outcome.Provenance {
				near := from.ID
				if p.Distance(to.Position)-to.Radius < p.Distance(from.Position)-from.Radius {
					near = to.ID
				}
				return outcome.Provenance{PartID: in.Part.ID, NodeID: near, EdgeID: edge.ID}
			},
		})
	}
	for _, n := range in.Nodes {
		if connected[n.ID] {
			continue
		}
		node := n
		prims = append(prims, primitive{
			field: &sdfx.Sphere{Center: node.Position, Radius: node.Radius},
			prov: func(geom.Vec3) outcome.Provenance {
				return outcome.Provenance{PartID: in.Part.ID, NodeID: node.ID}
			},
		})
	}

	fields := make([]sdf.SDF3, len(prims))
	for i, p := range prims {
		fields[i] = p.field
	}
	field := fields[0]
	if len(fields) > 1 {
		field = sdf.Union3D(fields...)
		if in.Part.Rounded {
			field.(*sdf.UnionSDF3).SetMin(sdf.PolyMin(blendRadius(in.Nodes)))
		}
	}

	cells := b.Cells
	if cells <= 0 {
		cells = sdfx.DefaultCells
	}
	if in.Part.Subdivided {
		cells = cells * 3 / 2
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mesh, err := sdfx.Polygonize(field, cells)
	if err != nil {
		return nil, fmt.Errorf("part %s: %w", in.Part.ID, err)
	}

	prov := make([]outcome.Provenance, len(mesh.Vertices))
	for i, v := range mesh.Vertices {
		p := v3.Vec{X: v.X, Y: v.Y, Z: v.Z}
		best, bestDist := 0, math.Inf(1)
		for j, prim := range prims {
			if d := math.Abs(prim.field.Evaluate(p)); d < bestDist {
				best, bestDist = j, d
			}
		}
		prov[i] = prims[best].prov(v)
	}

	return &Output{
		Mesh:              mesh,
		Provenance:        prov,
		CutFaceTransforms: cutFaces(in),
	}, nil
}

// blendRadius is the fillet size of a rounded part: half its thinnest node.
func blendRadius(nodes []snapshot.Node) float64 {
	r := math.Inf(1)
	for _, n := range nodes {
		r = math.Min(r, n.Radius)
	}
	return r / 2
}

// cutFaces places each node's cross-section perpendicular to the average
// direction of its edges. Node settings override the part's.
func cutFaces(in Input) map[snapshot.ID]outcome.CutFaceTransform {
	dirs := make(map[snapshot.ID]geom.Vec3, len(in.Nodes))
	pos := make(map[snapshot.ID]geom.Vec3, len(in.Nodes))
	for _, n := range in.Nodes {
		pos[n.ID] = n.Position
	}
	for _, e := range in.Edges {
		d := pos[e.To].Sub(pos[e.From]).Normalize()
		dirs[e.From] = dirs[e.From].Add(d)
		dirs[e.To] = dirs[e.To].Add(d)
	}
	out := make(map[snapshot.ID]outcome.CutFaceTransform, len(in.Nodes))
	for _, n := range in.Nodes {
		normal := dirs[n.ID].Normalize()
		if normal.IsZero() {
			normal = geom.V(0, 0, 1)
		}
		face, rotation := n.CutFace, n.CutRotation
		if face == "" {
			face = in.Part.CutFace
		}
		if rotation == 0 {
			rotation = in.Part.CutRotation
		}
		out[n.ID] = outcome.CutFaceTransform{
			NodeID:   n.ID,
			Origin:   n.Position,
			Normal:   normal,
			Rotation: rotation,
			Face:     face,
			Radius:   n.Radius,
		}
	}
	return out
}
