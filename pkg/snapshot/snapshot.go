package snapshot

import (
	"crypto/sha256"
	"encoding/binary"
	"hash"
	"math"
	"sort"
)

// Snapshot is a point-in-time copy of the component tree. A generation
// pass reads it and never mutates it; use Clone before handing a live
// document's snapshot to a pass.
type Snapshot struct {
	Root       *Component
	Components map[ID]*Component
	Parts      map[ID]*Part
	Nodes      map[ID]*Node
	Edges      map[ID]*Edge
	XMirror    bool
}

// New returns an empty snapshot with a root component.
func New() *Snapshot {
	return &Snapshot{
		Root:       NewComponent(RootID),
		Components: make(map[ID]*Component),
		Parts:      make(map[ID]*Part),
		Nodes:      make(map[ID]*Node),
		Edges:      make(map[ID]*Edge),
	}
}

// Component returns the component with the given id. RootID returns the
// root.
func (s *Snapshot) Component(id ID) *Component {
	if id == RootID {
		return s.Root
	}
	return s.Components[id]
}

// ComponentParent returns the parent of the component, or nil for the
// root and unknown ids.
func (s *Snapshot) ComponentParent(id ID) *Component {
	if id == RootID {
		return nil
	}
	c := s.Components[id]
	if c == nil {
		return nil
	}
	return s.Component(c.Parent)
}

// AddComponent stores c and appends it to the children of parent.
func (s *Snapshot) AddComponent(parent ID, c *Component) {
	c.Parent = parent
	s.Components[c.ID] = c
	if p := s.Component(parent); p != nil {
		p.AddChild(c.ID)
	}
}

// RemoveComponent deletes the component and its descendants and detaches
// it from its parent. Linked parts are left in place.
func (s *Snapshot) RemoveComponent(id ID) {
	c := s.Components[id]
	if c == nil {
		return
	}
	if p := s.Component(c.Parent); p != nil {
		p.RemoveChild(id)
	}
	var drop func(id ID)
	drop = func(id ID) {
		c := s.Components[id]
		if c == nil {
			return
		}
		delete(s.Components, id)
		for _, child := range c.Children {
			drop(child)
		}
	}
	drop(id)
}

func (s *Snapshot) AddPart(p *Part) {
	s.Parts[p.ID] = p
}

func (s *Snapshot) AddNode(n *Node) {
	s.Nodes[n.ID] = n
}

func (s *Snapshot) AddEdge(e *Edge) {
	s.Edges[e.ID] = e
}

// PartNodes returns the nodes of a part ordered by id.
func (s *Snapshot) PartNodes(partID ID) []*Node {
	var out []*Node
	for _, n := range s.Nodes {
		if n.PartID == partID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return lessID(out[i].ID, out[j].ID) })
	return out
}

// PartEdges returns the edges of a part ordered by id.
func (s *Snapshot) PartEdges(partID ID) []*Edge {
	var out []*Edge
	for _, e := range s.Edges {
		if e.PartID == partID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return lessID(out[i].ID, out[j].ID) })
	return out
}

// DescendantParts returns the parts linked anywhere below the component,
// in depth-first child order, each part once. Children of a part-linked
// component are not visited.
func (s *Snapshot) DescendantParts(componentID ID) []ID {
	var out []ID
	seen := make(map[ID]bool)
	var walk func(id ID)
	walk = func(id ID) {
		if seen[id] {
			return
		}
		seen[id] = true
		c := s.Component(id)
		if c == nil {
			return
		}
		if c.HasPart() {
			if !seen[c.LinkToPart] {
				seen[c.LinkToPart] = true
				out = append(out, c.LinkToPart)
			}
			return
		}
		for _, child := range c.Children {
			walk(child)
		}
	}
	walk(componentID)
	return out
}

// PartComponent returns the component that links to the part, if any.
func (s *Snapshot) PartComponent(partID ID) *Component {
	var found *Component
	for _, c := range s.Components {
		if c.LinkToPart == partID && (found == nil || lessID(c.ID, found.ID)) {
			found = c
		}
	}
	return found
}

// Clone returns a deep copy.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		Root:       s.Root.clone(),
		Components: make(map[ID]*Component, len(s.Components)),
		Parts:      make(map[ID]*Part, len(s.Parts)),
		Nodes:      make(map[ID]*Node, len(s.Nodes)),
		Edges:      make(map[ID]*Edge, len(s.Edges)),
		XMirror:    s.XMirror,
	}
	for id, c := range s.Components {
		out.Components[id] = c.clone()
	}
	for id, p := range s.Parts {
		cp := *p
		out.Parts[id] = &cp
	}
	for id, n := range s.Nodes {
		cp := *n
		out.Nodes[id] = &cp
	}
	for id, e := range s.Edges {
		cp := *e
		out.Edges[id] = &cp
	}
	return out
}

// ClearDirty resets the dirty flags of the listed parts and components.
// Unknown ids are ignored.
func (s *Snapshot) ClearDirty(parts, components map[ID]struct{}) {
	for id := range parts {
		if p := s.Parts[id]; p != nil {
			p.Dirty = false
		}
	}
	for id := range components {
		if c := s.Component(id); c != nil {
			c.Dirty = false
		}
	}
}

// PartFingerprint identifies everything a part's geometry depends on.
// Two equal fingerprints always build the same mesh.
type PartFingerprint struct {
	Settings PartSettings
	Geometry [sha256.Size]byte
}

// ComponentFingerprint identifies a component's own settings and child
// list. Descendant changes are tracked separately by dirty propagation.
type ComponentFingerprint struct {
	Settings ComponentSettings
	Children [sha256.Size]byte
}

func (s *Snapshot) PartFingerprint(partID ID) PartFingerprint {
	var fp PartFingerprint
	if p := s.Parts[partID]; p != nil {
		fp.Settings = p.Settings()
	}
	h := sha256.New()
	for _, n := range s.PartNodes(partID) {
		h.Write(n.ID[:])
		writeFloats(h, n.Position.X, n.Position.Y, n.Position.Z, n.Radius, n.CutRotation)
		h.Write([]byte(n.CutFace))
		h.Write([]byte{0})
	}
	for _, e := range s.PartEdges(partID) {
		h.Write(e.ID[:])
		h.Write(e.From[:])
		h.Write(e.To[:])
	}
	copy(fp.Geometry[:], h.Sum(nil))
	return fp
}

func (s *Snapshot) ComponentFingerprint(id ID) ComponentFingerprint {
	var fp ComponentFingerprint
	c := s.Component(id)
	if c == nil {
		return fp
	}
	fp.Settings = c.Settings()
	h := sha256.New()
	for _, child := range c.Children {
		h.Write(child[:])
	}
	copy(fp.Children[:], h.Sum(nil))
	return fp
}

func writeFloats(h hash.Hash, vs ...float64) {
	var buf [8]byte
	for _, v := range vs {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}
}
