package engine

import (
	"fmt"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/meshforge/pkg/snapshot"
)

// DefaultNodeRadius is used for nodes declared without :radius.
const DefaultNodeRadius = 1.0

// sceneBuilder accumulates the snapshot while a script runs. IDs are
// derived from names, so re-evaluating an edited script keeps the ids of
// untouched elements stable and the generator cache stays warm.
type sceneBuilder struct {
	snap       *snapshot.Snapshot
	parts      map[string]*sexpComponent
	components map[string]*sexpComponent
	// order lists every component in definition order.
	order    []snapshot.ID
	attached map[snapshot.ID]bool
	scene    bool
}

func newSceneBuilder() *sceneBuilder {
	return &sceneBuilder{
		snap:       snapshot.New(),
		parts:      make(map[string]*sexpComponent),
		components: make(map[string]*sexpComponent),
		attached:   make(map[snapshot.ID]bool),
	}
}

func partComponentID(name string) snapshot.ID {
	return snapshot.NameID("part-component", name)
}

// definePart adds a part, its skeleton and the leaf component linking to
// it.
func (b *sceneBuilder) definePart(name string, nodes []*sexpNode, edges []*sexpEdge, kw map[string]zygo.Sexp) (*sexpComponent, error) {
	if _, dup := b.parts[name]; dup {
		return nil, fmt.Errorf("part already defined")
	}

	part := &snapshot.Part{ID: snapshot.NameID("part", name), Name: name}
	if err := applyPartSettings(part, kw); err != nil {
		return nil, err
	}
	comp := snapshot.NewComponent(partComponentID(name))
	comp.Name = name
	comp.LinkToPart = part.ID
	if err := applyComponentSettings(comp, kw); err != nil {
		return nil, err
	}

	nodeIDs := make(map[string]snapshot.ID, len(nodes))
	for _, n := range nodes {
		if _, dup := nodeIDs[n.name]; dup {
			return nil, fmt.Errorf("node %q declared twice", n.name)
		}
		if n.radius <= 0 {
			return nil, fmt.Errorf("node %q: radius must be positive, got %g", n.name, n.radius)
		}
		id := snapshot.NameID("node", name+"/"+n.name)
		nodeIDs[n.name] = id
		b.snap.AddNode(&snapshot.Node{
			ID:          id,
			PartID:      part.ID,
			Name:        n.name,
			Position:    n.position,
			Radius:      n.radius,
			CutRotation: n.cutRotation,
			CutFace:     n.cutFace,
		})
	}
	seen := make(map[snapshot.ID]bool, len(edges))
	for _, e := range edges {
		from, ok := nodeIDs[e.from]
		if !ok {
			return nil, fmt.Errorf("edge: no node named %q", e.from)
		}
		to, ok := nodeIDs[e.to]
		if !ok {
			return nil, fmt.Errorf("edge: no node named %q", e.to)
		}
		a, c := e.from, e.to
		if c < a {
			a, c = c, a
		}
		id := snapshot.NameID("edge", name+"/"+a+"/"+c)
		if seen[id] {
			return nil, fmt.Errorf("edge %q-%q declared twice", e.from, e.to)
		}
		seen[id] = true
		b.snap.AddEdge(&snapshot.Edge{ID: id, PartID: part.ID, From: from, To: to})
	}

	b.snap.AddPart(part)
	b.snap.Components[comp.ID] = comp
	b.order = append(b.order, comp.ID)
	ref := &sexpComponent{id: comp.ID, name: name}
	b.parts[name] = ref
	return ref, nil
}

// defineComponent adds a grouping component and attaches the children.
func (b *sceneBuilder) defineComponent(name string, children []*sexpComponent, kw map[string]zygo.Sexp) (*sexpComponent, error) {
	if _, dup := b.components[name]; dup {
		return nil, fmt.Errorf("component already defined")
	}
	comp := snapshot.NewComponent(snapshot.NameID("component", name))
	comp.Name = name
	if err := applyComponentSettings(comp, kw); err != nil {
		return nil, err
	}
	b.snap.Components[comp.ID] = comp
	b.order = append(b.order, comp.ID)
	if err := b.attach(comp.ID, children); err != nil {
		return nil, err
	}
	ref := &sexpComponent{id: comp.ID, name: name}
	b.components[name] = ref
	return ref, nil
}

func (b *sceneBuilder) defineScene(xMirror bool, children []*sexpComponent) error {
	if b.scene {
		return fmt.Errorf("scene already defined")
	}
	b.scene = true
	b.snap.XMirror = xMirror
	return b.attach(snapshot.RootID, children)
}

func (b *sceneBuilder) attach(parent snapshot.ID, children []*sexpComponent) error {
	for _, child := range children {
		if b.attached[child.id] {
			return fmt.Errorf("%q already has a parent", child.name)
		}
		b.attached[child.id] = true
		b.snap.AddComponent(parent, b.snap.Components[child.id])
	}
	return nil
}

// finish returns the snapshot. Without a scene form, every component
// that was never attached becomes a child of the root, in definition
// order.
func (b *sceneBuilder) finish() *snapshot.Snapshot {
	if !b.scene {
		for _, id := range b.order {
			if !b.attached[id] {
				b.attached[id] = true
				b.snap.AddComponent(snapshot.RootID, b.snap.Components[id])
			}
		}
	}
	return b.snap
}
