// Package outcome defines the artifact handed to the caller at the end of
// a generation pass: the final mesh, its per-vertex provenance and the
// per-node tables consumed by texturing, rigging and painting.
package outcome

import (
	"github.com/chazu/meshforge/pkg/geom"
	"github.com/chazu/meshforge/pkg/kernel"
	"github.com/chazu/meshforge/pkg/snapshot"
)

// Provenance ties an output vertex to the skeleton element it was built
// from. NodeID is set for every traced vertex; EdgeID is also set when the
// vertex lies on the sweep of an edge. The ids always refer to the input
// snapshot; mirrored copies keep the ids of the geometry they were
// mirrored from and set Mirrored.
type Provenance struct {
	PartID   snapshot.ID
	NodeID   snapshot.ID
	EdgeID   snapshot.ID
	Mirrored bool
}

// IsZero reports whether the provenance traces to nothing.
func (p Provenance) IsZero() bool {
	return p == Provenance{}
}

// Node is a skeleton node as it appears in the output.
type Node struct {
	ID       snapshot.ID
	PartID   snapshot.ID
	Position geom.Vec3
	Radius   float64
	Mirrored bool
}

// Edge is a skeleton edge as it appears in the output.
type Edge struct {
	ID       snapshot.ID
	PartID   snapshot.ID
	From     snapshot.ID
	To       snapshot.ID
	Mirrored bool
}

// CutFaceTransform is the cross-section placement of one node.
type CutFaceTransform struct {
	NodeID   snapshot.ID
	Origin   geom.Vec3
	Normal   geom.Vec3
	Rotation float64
	Face     string
	Radius   float64
}

// PaintNode is one brush anchor of a paint map.
type PaintNode struct {
	NodeID    snapshot.ID
	Origin    geom.Vec3
	Radius    float64
	Direction geom.Vec3
}

// PaintMap lists the paint anchors of one part. Color is the part's
// color as written in the script, empty when unset.
type PaintMap struct {
	PartID snapshot.ID
	Color  string
	Nodes  []PaintNode
}

// Clone returns a copy that shares no memory with m.
func (m PaintMap) Clone() PaintMap {
	m.Nodes = append([]PaintNode(nil), m.Nodes...)
	return m
}

// Preview is a lightweight, triangulated mesh used to display one part.
type Preview struct {
	Vertices  []geom.Vec3
	Triangles [][3]int
	Normals   []geom.Vec3
}

// NewPreview triangulates m and computes smooth vertex normals.
func NewPreview(m *kernel.Mesh) *Preview {
	if m.IsEmpty() {
		return &Preview{}
	}
	tris := m.Triangles()
	return &Preview{
		Vertices:  append([]geom.Vec3(nil), m.Vertices...),
		Triangles: tris,
		Normals:   kernel.VertexNormals(m.Vertices, tris),
	}
}

// Clone returns a deep copy of p.
func (p *Preview) Clone() *Preview {
	if p == nil {
		return nil
	}
	return &Preview{
		Vertices:  append([]geom.Vec3(nil), p.Vertices...),
		Triangles: append([][3]int(nil), p.Triangles...),
		Normals:   append([]geom.Vec3(nil), p.Normals...),
	}
}

// Outcome is the final artifact of one generation pass. It is owned by
// the caller once delivered.
type Outcome struct {
	Vertices []geom.Vec3
	// Faces are variable-length polygons.
	Faces                 [][]int
	Triangles             [][3]int
	TriangleNormals       []geom.Vec3
	TriangleVertexNormals [][3]geom.Vec3
	// VertexProvenance is aligned with Vertices.
	VertexProvenance  []Provenance
	Nodes             []Node
	Edges             []Edge
	CutFaceTransforms map[snapshot.ID]CutFaceTransform
	PaintMaps         []PaintMap
	MirrorPartIDs     map[snapshot.ID]snapshot.ID
	// ClothVertexCount counts the trailing vertices that belong to cloth
	// bodies appended after the solid mesh.
	ClothVertexCount int
}

// Mesh returns the polygon mesh of the outcome.
func (o *Outcome) Mesh() *kernel.Mesh {
	return &kernel.Mesh{Vertices: o.Vertices, Faces: o.Faces}
}

// IsEmpty reports whether the outcome carries no geometry.
func (o *Outcome) IsEmpty() bool {
	return o == nil || len(o.Vertices) == 0 || len(o.Faces) == 0
}
