// Package snapshot defines the immutable, self-contained description of a
// component tree that one generation pass works on: components, parts,
// skeleton nodes and edges, with typed per-element settings.
package snapshot

import (
	"fmt"

	"github.com/chazu/meshforge/pkg/geom"
	"github.com/chazu/meshforge/pkg/kernel"
)

// Node is a skeleton node: a sphere of the given radius owned by a part.
type Node struct {
	ID          ID
	PartID      ID
	Name        string
	Position    geom.Vec3
	Radius      float64
	CutRotation float64
	CutFace     string
}

// Edge joins two nodes of the same part.
type Edge struct {
	ID     ID
	PartID ID
	From   ID
	To     ID
}

// Part is a leaf geometry source built from its nodes and edges.
type Part struct {
	ID          ID
	Name        string
	Disabled    bool
	XMirrored   bool
	Subdivided  bool
	Rounded     bool
	CutFace     string
	CutRotation float64
	Color       string
	Dirty       bool
}

// PartSettings holds every part attribute that affects geometry.
type PartSettings struct {
	Disabled    bool
	XMirrored   bool
	Subdivided  bool
	Rounded     bool
	CutFace     string
	CutRotation float64
}

// Settings returns the geometry-relevant attributes of the part.
func (p *Part) Settings() PartSettings {
	return PartSettings{
		Disabled:    p.Disabled,
		XMirrored:   p.XMirrored,
		Subdivided:  p.Subdivided,
		Rounded:     p.Rounded,
		CutFace:     p.CutFace,
		CutRotation: p.CutRotation,
	}
}

// CombineMode is how a component merges into its parent's accumulator.
type CombineMode int

const (
	CombineNormal CombineMode = iota
	CombineInversion
	CombineUncombined
)

func (m CombineMode) String() string {
	switch m {
	case CombineNormal:
		return "normal"
	case CombineInversion:
		return "inversion"
	case CombineUncombined:
		return "uncombined"
	default:
		return fmt.Sprintf("CombineMode(%d)", int(m))
	}
}

// Method normalizes the mode to the combiner method used when merging the
// component into its parent. Uncombined components are never merged, so
// they map to union.
func (m CombineMode) Method() kernel.Method {
	if m == CombineInversion {
		return kernel.Subtract
	}
	return kernel.Union
}

// ParseCombineMode accepts the names produced by String.
func ParseCombineMode(s string) (CombineMode, error) {
	switch s {
	case "normal", "union", "":
		return CombineNormal, nil
	case "inversion", "subtract":
		return CombineInversion, nil
	case "uncombined", "none":
		return CombineUncombined, nil
	}
	return CombineNormal, fmt.Errorf("unknown combine mode %q", s)
}

// PolyCount is a component's polygon density target.
type PolyCount int

const (
	PolyCountOriginal PolyCount = iota
	PolyCountVeryLow
	PolyCountLow
	PolyCountHigh
	PolyCountVeryHigh
)

// Multiplier is the factor applied to the native vertex count.
func (p PolyCount) Multiplier() float64 {
	switch p {
	case PolyCountVeryLow:
		return 0.25
	case PolyCountLow:
		return 0.5
	case PolyCountHigh:
		return 2
	case PolyCountVeryHigh:
		return 4
	default:
		return 1
	}
}

func (p PolyCount) String() string {
	switch p {
	case PolyCountOriginal:
		return "original"
	case PolyCountVeryLow:
		return "very-low"
	case PolyCountLow:
		return "low"
	case PolyCountHigh:
		return "high"
	case PolyCountVeryHigh:
		return "very-high"
	default:
		return fmt.Sprintf("PolyCount(%d)", int(p))
	}
}

func ParsePolyCount(s string) (PolyCount, error) {
	for p := PolyCountOriginal; p <= PolyCountVeryHigh; p++ {
		if p.String() == s {
			return p, nil
		}
	}
	if s == "" {
		return PolyCountOriginal, nil
	}
	return PolyCountOriginal, fmt.Errorf("unknown polycount %q", s)
}

// Layer says whether a component is solid body or cloth.
type Layer int

const (
	LayerBody Layer = iota
	LayerCloth
)

func (l Layer) String() string {
	switch l {
	case LayerBody:
		return "body"
	case LayerCloth:
		return "cloth"
	default:
		return fmt.Sprintf("Layer(%d)", int(l))
	}
}

func ParseLayer(s string) (Layer, error) {
	switch s {
	case "body", "":
		return LayerBody, nil
	case "cloth":
		return LayerCloth, nil
	}
	return LayerBody, fmt.Errorf("unknown layer %q", s)
}

// ClothForce is the external force driving a cloth simulation.
type ClothForce int

const (
	ClothForceGravitational ClothForce = iota
	ClothForceCentripetal
)

func (f ClothForce) String() string {
	switch f {
	case ClothForceGravitational:
		return "gravitational"
	case ClothForceCentripetal:
		return "centripetal"
	default:
		return fmt.Sprintf("ClothForce(%d)", int(f))
	}
}

func ParseClothForce(s string) (ClothForce, error) {
	switch s {
	case "gravitational", "":
		return ClothForceGravitational, nil
	case "centripetal":
		return ClothForceCentripetal, nil
	}
	return ClothForceGravitational, fmt.Errorf("unknown cloth force %q", s)
}
