package snapshot

import (
	"math"
	"slices"
)

// Cloth defaults.
const (
	DefaultClothStiffness = 1.0
	DefaultClothIteration = 350
)

// adjustTolerance is the smallest change to a float setting that counts
// as an adjustment.
const adjustTolerance = 0.01

// Component is a node of the component tree. A component either links to
// a single part or groups child components; children are unique and
// ordered.
type Component struct {
	ID         ID
	Name       string
	LinkToPart ID
	Parent     ID
	Children   []ID

	CombineMode CombineMode
	SmoothAll   float64
	SmoothSeam  float64
	PolyCount   PolyCount
	Layer       Layer

	ClothStiffness float64
	ClothIteration int
	ClothForce     ClothForce
	ClothOffset    float64

	Dirty bool
}

// NewComponent returns a component with default cloth settings.
func NewComponent(id ID) *Component {
	return &Component{
		ID:             id,
		ClothStiffness: DefaultClothStiffness,
		ClothIteration: DefaultClothIteration,
	}
}

// HasPart reports whether the component links to a part.
func (c *Component) HasPart() bool {
	return c.LinkToPart != RootID
}

func (c *Component) HasChild(id ID) bool {
	return slices.Contains(c.Children, id)
}

// AddChild appends id unless it is already a child.
func (c *Component) AddChild(id ID) {
	if c.HasChild(id) {
		return
	}
	c.Children = append(c.Children, id)
}

func (c *Component) RemoveChild(id ID) {
	if i := slices.Index(c.Children, id); i >= 0 {
		c.Children = slices.Delete(c.Children, i, i+1)
	}
}

// ReplaceChild swaps id for newID in place. Nothing changes when id is
// not a child or newID already is one.
func (c *Component) ReplaceChild(id, newID ID) {
	i := slices.Index(c.Children, id)
	if i < 0 || c.HasChild(newID) {
		return
	}
	c.Children[i] = newID
}

func (c *Component) MoveChildUp(id ID) {
	if i := slices.Index(c.Children, id); i > 0 {
		c.Children[i-1], c.Children[i] = c.Children[i], c.Children[i-1]
	}
}

func (c *Component) MoveChildDown(id ID) {
	if i := slices.Index(c.Children, id); i >= 0 && i < len(c.Children)-1 {
		c.Children[i], c.Children[i+1] = c.Children[i+1], c.Children[i]
	}
}

func (c *Component) MoveChildToTop(id ID) {
	if i := slices.Index(c.Children, id); i > 0 {
		copy(c.Children[1:i+1], c.Children[:i])
		c.Children[0] = id
	}
}

func (c *Component) MoveChildToBottom(id ID) {
	if i := slices.Index(c.Children, id); i >= 0 && i < len(c.Children)-1 {
		copy(c.Children[i:], c.Children[i+1:])
		c.Children[len(c.Children)-1] = id
	}
}

// SetSmoothAll clamps v to [0, 1].
func (c *Component) SetSmoothAll(v float64) {
	c.SmoothAll = clamp01(v)
}

// SetSmoothSeam clamps v to [0, 1].
func (c *Component) SetSmoothSeam(v float64) {
	c.SmoothSeam = clamp01(v)
}

func (c *Component) SmoothAllAdjusted() bool {
	return math.Abs(c.SmoothAll) >= adjustTolerance
}

func (c *Component) SmoothSeamAdjusted() bool {
	return math.Abs(c.SmoothSeam) >= adjustTolerance
}

func (c *Component) SmoothAdjusted() bool {
	return c.SmoothAllAdjusted() || c.SmoothSeamAdjusted()
}

// ClothAdjusted reports whether any cloth setting differs from its
// default.
func (c *Component) ClothAdjusted() bool {
	return math.Abs(c.ClothStiffness-DefaultClothStiffness) >= adjustTolerance ||
		c.ClothIteration != DefaultClothIteration ||
		c.ClothForce != ClothForceGravitational ||
		math.Abs(c.ClothOffset) >= adjustTolerance
}

// IsCloth reports whether the component belongs to the cloth layer.
func (c *Component) IsCloth() bool {
	return c.Layer == LayerCloth
}

// ComponentSettings holds every component attribute that affects the
// combined geometry, except the child list.
type ComponentSettings struct {
	LinkToPart     ID
	CombineMode    CombineMode
	SmoothAll      float64
	SmoothSeam     float64
	PolyCount      PolyCount
	Layer          Layer
	ClothStiffness float64
	ClothIteration int
	ClothForce     ClothForce
	ClothOffset    float64
}

func (c *Component) Settings() ComponentSettings {
	return ComponentSettings{
		LinkToPart:     c.LinkToPart,
		CombineMode:    c.CombineMode,
		SmoothAll:      c.SmoothAll,
		SmoothSeam:     c.SmoothSeam,
		PolyCount:      c.PolyCount,
		Layer:          c.Layer,
		ClothStiffness: c.ClothStiffness,
		ClothIteration: c.ClothIteration,
		ClothForce:     c.ClothForce,
		ClothOffset:    c.ClothOffset,
	}
}

func (c *Component) clone() *Component {
	out := *c
	out.Children = slices.Clone(c.Children)
	return &out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
