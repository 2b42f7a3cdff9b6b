package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/meshforge/pkg/geom"
)

func ids(names ...string) []ID {
	out := make([]ID, len(names))
	for i, n := range names {
		out[i] = NameID("component", n)
	}
	return out
}

func TestComponentChildOrdering(t *testing.T) {
	all := ids("a", "b", "c", "d")
	a, b, c, d := all[0], all[1], all[2], all[3]

	tests := []struct {
		name string
		op   func(c *Component)
		want []ID
	}{
		{"add duplicate", func(comp *Component) { comp.AddChild(a) }, []ID{a, b, c}},
		{"remove", func(comp *Component) { comp.RemoveChild(b) }, []ID{a, c}},
		{"remove missing", func(comp *Component) { comp.RemoveChild(d) }, []ID{a, b, c}},
		{"replace", func(comp *Component) { comp.ReplaceChild(b, d) }, []ID{a, d, c}},
		{"replace with existing", func(comp *Component) { comp.ReplaceChild(b, c) }, []ID{a, b, c}},
		{"up", func(comp *Component) { comp.MoveChildUp(c) }, []ID{a, c, b}},
		{"up at top", func(comp *Component) { comp.MoveChildUp(a) }, []ID{a, b, c}},
		{"down", func(comp *Component) { comp.MoveChildDown(a) }, []ID{b, a, c}},
		{"down at bottom", func(comp *Component) { comp.MoveChildDown(c) }, []ID{a, b, c}},
		{"to top", func(comp *Component) { comp.MoveChildToTop(c) }, []ID{c, a, b}},
		{"to bottom", func(comp *Component) { comp.MoveChildToBottom(a) }, []ID{b, c, a}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comp := NewComponent(NewID())
			comp.AddChild(a)
			comp.AddChild(b)
			comp.AddChild(c)
			tt.op(comp)
			assert.Equal(t, tt.want, comp.Children)
		})
	}
}

func TestComponentSmoothClamp(t *testing.T) {
	c := NewComponent(NewID())
	c.SetSmoothAll(1.5)
	c.SetSmoothSeam(-2)
	assert.Equal(t, 1.0, c.SmoothAll)
	assert.Equal(t, 0.0, c.SmoothSeam)
	assert.True(t, c.SmoothAdjusted())
	assert.False(t, c.SmoothSeamAdjusted())
	assert.False(t, c.ClothAdjusted())
	c.ClothIteration = 10
	assert.True(t, c.ClothAdjusted())
}

func TestPolyCountMultiplier(t *testing.T) {
	tests := []struct {
		p    PolyCount
		want float64
	}{
		{PolyCountOriginal, 1},
		{PolyCountVeryLow, 0.25},
		{PolyCountLow, 0.5},
		{PolyCountHigh, 2},
		{PolyCountVeryHigh, 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.p.Multiplier(), tt.p.String())
		parsed, err := ParsePolyCount(tt.p.String())
		require.NoError(t, err)
		assert.Equal(t, tt.p, parsed)
	}
	_, err := ParsePolyCount("bogus")
	assert.Error(t, err)
}

func TestNameIDIsStable(t *testing.T) {
	assert.Equal(t, NameID("part", "arm"), NameID("part", "arm"))
	assert.NotEqual(t, NameID("part", "arm"), NameID("node", "arm"))
	assert.NotEqual(t, RootID, NameID("component", ""))
}

// buildSnapshot returns root -> group -> {left, right}, each linking a
// one-node part.
func buildSnapshot() *Snapshot {
	s := New()
	group := NewComponent(NameID("component", "group"))
	s.AddComponent(RootID, group)
	for _, name := range []string{"left", "right"} {
		part := &Part{ID: NameID("part", name), Name: name}
		s.AddPart(part)
		s.AddNode(&Node{ID: NameID("node", name), PartID: part.ID, Position: geom.V(1, 0, 0), Radius: 0.5})
		c := NewComponent(NameID("component", name))
		c.LinkToPart = part.ID
		s.AddComponent(group.ID, c)
	}
	return s
}

func TestSnapshotTreeHelpers(t *testing.T) {
	s := buildSnapshot()
	group := NameID("component", "group")

	assert.Equal(t, []ID{group}, s.Root.Children)
	assert.Equal(t, []ID{NameID("part", "left"), NameID("part", "right")}, s.DescendantParts(RootID))
	assert.Equal(t, s.Root, s.ComponentParent(group))
	assert.Nil(t, s.ComponentParent(RootID))
	assert.Equal(t, NameID("component", "left"), s.PartComponent(NameID("part", "left")).ID)
	assert.Len(t, s.PartNodes(NameID("part", "left")), 1)

	s.RemoveComponent(group)
	assert.Empty(t, s.Root.Children)
	assert.Empty(t, s.Components)
	assert.Len(t, s.Parts, 2)
}

func TestSnapshotCloneIsDeep(t *testing.T) {
	s := buildSnapshot()
	c := s.Clone()
	group := NameID("component", "group")

	c.Components[group].AddChild(NewID())
	c.Nodes[NameID("node", "left")].Radius = 9
	c.Root.Dirty = true

	assert.Len(t, s.Components[group].Children, 2)
	assert.Equal(t, 0.5, s.Nodes[NameID("node", "left")].Radius)
	assert.False(t, s.Root.Dirty)
}

func TestClearDirtyOnlyTouchesListedIDs(t *testing.T) {
	s := buildSnapshot()
	left, right := NameID("part", "left"), NameID("part", "right")
	group := NameID("component", "group")
	s.Parts[left].Dirty = true
	s.Parts[right].Dirty = true
	s.Components[group].Dirty = true
	s.Root.Dirty = true

	s.ClearDirty(
		map[ID]struct{}{left: {}, NewID(): {}},
		map[ID]struct{}{RootID: {}},
	)
	assert.False(t, s.Parts[left].Dirty)
	assert.True(t, s.Parts[right].Dirty)
	assert.True(t, s.Components[group].Dirty)
	assert.False(t, s.Root.Dirty)
}

func TestFingerprints(t *testing.T) {
	s := buildSnapshot()
	left := NameID("part", "left")
	before := s.PartFingerprint(left)
	assert.Equal(t, before, s.Clone().PartFingerprint(left))

	s.Nodes[NameID("node", "left")].Radius = 0.6
	assert.NotEqual(t, before, s.PartFingerprint(left))

	s.Parts[left].Color = "#ff0000"
	after := s.PartFingerprint(left)
	s.Parts[left].Color = ""
	assert.Equal(t, after, s.PartFingerprint(left), "color does not affect geometry")

	group := NameID("component", "group")
	cf := s.ComponentFingerprint(group)
	s.Components[group].MoveChildToBottom(NameID("component", "left"))
	assert.NotEqual(t, cf, s.ComponentFingerprint(group))
}

func TestValidate(t *testing.T) {
	s := buildSnapshot()
	assert.Empty(t, Validate(s))

	group := s.Components[NameID("component", "group")]
	group.Children = append(group.Children, NameID("component", "missing"))
	s.AddEdge(&Edge{ID: NewID(), PartID: NameID("part", "left"),
		From: NameID("node", "left"), To: NameID("node", "right")})
	s.Nodes[NameID("node", "right")].Radius = 0

	errs := Validate(s)
	require.True(t, HasErrors(errs))
	var errors, warnings int
	for _, e := range errs {
		if e.Severity == SeverityError {
			errors++
		} else {
			warnings++
		}
	}
	assert.Equal(t, 2, errors, "%v", errs)
	assert.Equal(t, 1, warnings, "%v", errs)
}

func TestValidateCycle(t *testing.T) {
	s := buildSnapshot()
	left := s.Components[NameID("component", "left")]
	left.LinkToPart = RootID
	left.AddChild(NameID("component", "group"))

	errs := Validate(s)
	require.True(t, HasErrors(errs))
	assert.Contains(t, errs[0].Message, "cycle")
}
