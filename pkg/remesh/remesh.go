// Package remesh resamples a closed mesh toward a target vertex count
// while keeping every new vertex traceable to a skeleton node.
package remesh

import (
	"math"

	"github.com/chazu/meshforge/pkg/geom"
	"github.com/chazu/meshforge/pkg/kernel"
	"github.com/chazu/meshforge/pkg/kernel/sdfx"
	"github.com/chazu/meshforge/pkg/outcome"
)

// Resolution bounds for the marching cubes grid.
const (
	DefaultMinCells = 8
	DefaultMaxCells = 160
)

// NodeSample is a skeleton node the remeshed vertices are traced to.
type NodeSample struct {
	Position geom.Vec3
	Radius   float64
	Source   outcome.Provenance
}

// Config bounds the grid resolution.
type Config struct {
	MinCells int
	MaxCells int
}

// Remesher resamples one mesh. It is deterministic: the same mesh, nodes
// and multiplier always produce the same output. A Remesher is used for a
// single mesh and is not safe for concurrent use.
type Remesher struct {
	cfg   Config
	input *kernel.Mesh
	nodes []NodeSample

	vertices []geom.Vec3
	faces    [][]int
	sources  []outcome.Provenance
}

func New(cfg Config) *Remesher {
	if cfg.MinCells <= 0 {
		cfg.MinCells = DefaultMinCells
	}
	if cfg.MaxCells < cfg.MinCells {
		cfg.MaxCells = max(DefaultMaxCells, cfg.MinCells)
	}
	return &Remesher{cfg: cfg}
}

// SetMesh sets the input surface.
func (r *Remesher) SetMesh(vertices []geom.Vec3, triangles [][3]int) {
	faces := make([][]int, len(triangles))
	for i, t := range triangles {
		faces[i] = []int{t[0], t[1], t[2]}
	}
	r.input = &kernel.Mesh{Vertices: vertices, Faces: faces}
}

// SetNodes sets the skeleton nodes used for provenance.
func (r *Remesher) SetNodes(nodes []NodeSample) {
	r.nodes = nodes
}

// Remesh resamples the input so its vertex count approaches the input
// count times multiplier. It reports false, leaving the outputs empty,
// when no surface could be produced.
func (r *Remesher) Remesh(multiplier float64) bool {
	r.vertices, r.faces, r.sources = nil, nil, nil
	if r.input.IsEmpty() || multiplier <= 0 {
		return false
	}
	target := math.Max(4, math.Round(float64(len(r.input.Vertices))*multiplier))
	area := r.input.SurfaceArea()
	extent := r.input.Bounds().MaxExtent()
	if area <= 0 || extent <= 0 {
		return false
	}

	h := math.Sqrt(area / target)
	mesh, n := r.polygonize(extent, h)
	if mesh == nil {
		return false
	}
	// One correction step from the observed density.
	if n > 0 {
		h2 := h * math.Sqrt(float64(n)/target)
		if r.cells(extent, h2) != r.cells(extent, h) {
			if m2, n2 := r.polygonize(extent, h2); m2 != nil && math.Abs(float64(n2)-target) < math.Abs(float64(n)-target) {
				mesh = m2
			}
		}
	}

	r.vertices = mesh.Vertices
	r.faces = mesh.Faces
	r.sources = make([]outcome.Provenance, len(mesh.Vertices))
	for i, v := range mesh.Vertices {
		r.sources[i] = r.nearestSource(v)
	}
	return true
}

func (r *Remesher) cells(extent, h float64) int {
	c := int(math.Ceil(extent / h))
	return min(max(c, r.cfg.MinCells), r.cfg.MaxCells)
}

func (r *Remesher) polygonize(extent, h float64) (*kernel.Mesh, int) {
	cells := r.cells(extent, h)
	pad := extent / float64(cells)
	field := sdfx.NewMeshSDF(r.input, pad)
	if field == nil {
		return nil, 0
	}
	field.SetDistanceLimit(3 * pad)
	mesh, err := sdfx.Polygonize(field, cells)
	if err != nil {
		return nil, 0
	}
	return mesh, mesh.VertexCount()
}

func (r *Remesher) nearestSource(p geom.Vec3) outcome.Provenance {
	best, bestDist := -1, math.Inf(1)
	for i, n := range r.nodes {
		if d := p.Distance(n.Position) - n.Radius; d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return outcome.Provenance{}
	}
	return r.nodes[best].Source
}

func (r *Remesher) Vertices() []geom.Vec3 {
	return r.vertices
}

func (r *Remesher) Faces() [][]int {
	return r.faces
}

// VertexSources is aligned with Vertices.
func (r *Remesher) VertexSources() []outcome.Provenance {
	return r.sources
}
