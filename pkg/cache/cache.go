// Package cache holds the generated geometry that survives between
// generation passes: one entry per part, one per component subtree, the
// mirror part lookup and a per-pass scratch store of combined pairs.
//
// A Cache is not safe for concurrent use. Only the running generation
// pass mutates it; callers must not read it until the pass completes.
package cache

import (
	"bytes"
	"slices"

	"github.com/chazu/meshforge/pkg/geom"
	"github.com/chazu/meshforge/pkg/kernel"
	"github.com/chazu/meshforge/pkg/outcome"
	"github.com/chazu/meshforge/pkg/snapshot"
)

// GeneratedPart is the cached geometry of one part.
type GeneratedPart struct {
	Mesh *kernel.Mesh
	// Provenance is aligned with Mesh.Vertices.
	Provenance        []outcome.Provenance
	Preview           *outcome.Preview
	Nodes             []outcome.Node
	Edges             []outcome.Edge
	CutFaceTransforms map[snapshot.ID]outcome.CutFaceTransform
	PaintMap          outcome.PaintMap
	Fingerprint       snapshot.PartFingerprint
	Succeeded         bool
	// Joined is set when the mesh already contains the mirrored half.
	Joined bool
}

// GeneratedComponent is the cached geometry of one component subtree.
type GeneratedComponent struct {
	Mesh *kernel.Mesh
	// Provenance is aligned with Mesh.Vertices.
	Provenance []outcome.Provenance
	// SharedQuadEdges are the seam edges between combined siblings.
	SharedQuadEdges map[geom.EdgeKey]struct{}
	// NoneSeamVertices are positions of the subtree's own surface that
	// are not on any seam.
	NoneSeamVertices  map[geom.PositionKey]struct{}
	Nodes             []outcome.Node
	Edges             []outcome.Edge
	CutFaceTransforms map[snapshot.ID]outcome.CutFaceTransform
	PaintMaps         []outcome.PaintMap
	// Uncombined holds geometry collected beside the combined mesh.
	Uncombined       []Piece
	Cloth            []ClothBody
	Fingerprint      snapshot.ComponentFingerprint
	SelfIntersecting bool
	Succeeded        bool
}

// Piece is a mesh with its provenance.
type Piece struct {
	Mesh *kernel.Mesh
	// Provenance is aligned with Mesh.Vertices.
	Provenance []outcome.Provenance
}

// ClothBody is a contiguous run of cloth components, collected beside the
// combined mesh instead of being combined into it.
type ClothBody struct {
	Piece
	// Component is the first component of the run; its settings drive
	// the simulation.
	Component snapshot.ID
}

// CombinationKey identifies a combined pair by its two operand keys and
// the method.
type CombinationKey struct {
	Left   string
	Method kernel.Method
	Right  string
}

// Cache is the Generated-Result Cache.
type Cache struct {
	parts        map[snapshot.ID]*GeneratedPart
	components   map[snapshot.ID]*GeneratedComponent
	mirrorParts  map[snapshot.ID]snapshot.ID
	combinations map[CombinationKey]*Piece
}

// New returns an empty cache.
func New() *Cache {
	c := &Cache{}
	c.Clear()
	return c
}

func (c *Cache) Part(id snapshot.ID) (*GeneratedPart, bool) {
	p, ok := c.parts[id]
	return p, ok
}

// PutPart replaces any previous entry for the part. The previous value
// is released and must not be used afterwards.
func (c *Cache) PutPart(id snapshot.ID, p *GeneratedPart) {
	c.parts[id] = p
}

func (c *Cache) RemovePart(id snapshot.ID) {
	delete(c.parts, id)
	delete(c.mirrorParts, id)
}

func (c *Cache) Component(id snapshot.ID) (*GeneratedComponent, bool) {
	g, ok := c.components[id]
	return g, ok
}

// PutComponent replaces any previous entry for the component.
func (c *Cache) PutComponent(id snapshot.ID, g *GeneratedComponent) {
	c.components[id] = g
}

func (c *Cache) RemoveComponent(id snapshot.ID) {
	delete(c.components, id)
}

// MirrorPartID returns the id given to the mirrored copy of a part.
func (c *Cache) MirrorPartID(partID snapshot.ID) (snapshot.ID, bool) {
	id, ok := c.mirrorParts[partID]
	return id, ok
}

func (c *Cache) SetMirrorPartID(partID, mirrorID snapshot.ID) {
	c.mirrorParts[partID] = mirrorID
}

// RemoveMirrorPartID forgets the mirrored copy of a part, as when the part
// stops being mirrored or is disabled.
func (c *Cache) RemoveMirrorPartID(partID snapshot.ID) {
	delete(c.mirrorParts, partID)
}

// MirrorPartIDs returns a copy of the part to mirror-part lookup.
func (c *Cache) MirrorPartIDs() map[snapshot.ID]snapshot.ID {
	out := make(map[snapshot.ID]snapshot.ID, len(c.mirrorParts))
	for k, v := range c.mirrorParts {
		out[k] = v
	}
	return out
}

func (c *Cache) Combination(key CombinationKey) (*Piece, bool) {
	m, ok := c.combinations[key]
	return m, ok
}

// PutCombination stores the result of combining a pair in this pass.
func (c *Cache) PutCombination(key CombinationKey, m *Piece) {
	c.combinations[key] = m
}

// ResetCombinations drops the combined-pair scratch store. It is called at
// the start of every pass.
func (c *Cache) ResetCombinations() {
	c.combinations = make(map[CombinationKey]*Piece)
}

// Clear drops everything, as when the owning document is reset.
func (c *Cache) Clear() {
	c.parts = make(map[snapshot.ID]*GeneratedPart)
	c.components = make(map[snapshot.ID]*GeneratedComponent)
	c.mirrorParts = make(map[snapshot.ID]snapshot.ID)
	c.ResetCombinations()
}

// Len returns the number of cached parts and components.
func (c *Cache) Len() (parts, components int) {
	return len(c.parts), len(c.components)
}

// PartIDs returns the ids with a cached part, in byte order.
func (c *Cache) PartIDs() []snapshot.ID {
	return sortedIDs(c.parts)
}

// ComponentIDs returns the ids with a cached component, in byte order.
func (c *Cache) ComponentIDs() []snapshot.ID {
	return sortedIDs(c.components)
}

func sortedIDs[V any](m map[snapshot.ID]V) []snapshot.ID {
	out := make([]snapshot.ID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	slices.SortFunc(out, func(a, b snapshot.ID) int {
		return bytes.Compare(a[:], b[:])
	})
	return out
}
