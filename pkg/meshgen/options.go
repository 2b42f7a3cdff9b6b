package meshgen

import (
	"go.uber.org/zap"

	"github.com/chazu/meshforge/pkg/cache"
	"github.com/chazu/meshforge/pkg/cloth"
	"github.com/chazu/meshforge/pkg/geom"
	"github.com/chazu/meshforge/pkg/kernel"
	"github.com/chazu/meshforge/pkg/outcome"
	"github.com/chazu/meshforge/pkg/remesh"
	"github.com/chazu/meshforge/pkg/skeleton"
)

// DefaultSmoothShadingThreshold is the angle, in degrees, below which
// adjacent triangle normals are averaged.
const DefaultSmoothShadingThreshold = 60

// Remesher is the density adjustment contract used for components with a
// polycount target. A new Remesher is requested for every mesh.
type Remesher interface {
	SetMesh(vertices []geom.Vec3, triangles [][3]int)
	SetNodes(nodes []remesh.NodeSample)
	Remesh(multiplier float64) bool
	Vertices() []geom.Vec3
	Faces() [][]int
	VertexSources() []outcome.Provenance
}

// ClothSimulator relaxes a cloth body over a collision body.
type ClothSimulator func(body, collision *kernel.Mesh, p cloth.Params) *kernel.Mesh

// Option configures a Generator.
type Option func(*Generator)

// WithCache shares a cache across passes. Without one every pass is a
// full rebuild.
func WithCache(c *cache.Cache) Option {
	return func(g *Generator) { g.cache = c }
}

func WithCombiner(c kernel.Combiner) Option {
	return func(g *Generator) { g.combiner = c }
}

func WithBuilder(b skeleton.Builder) Option {
	return func(g *Generator) { g.builder = b }
}

// WithRemesher sets the factory used to obtain a Remesher.
func WithRemesher(f func() Remesher) Option {
	return func(g *Generator) { g.newRemesher = f }
}

func WithClothSimulator(s ClothSimulator) Option {
	return func(g *Generator) { g.simulateCloth = s }
}

// WithClothMaxIterations caps cloth iterations; zero means no cap.
func WithClothMaxIterations(n int) Option {
	return func(g *Generator) { g.clothMaxIterations = n }
}

// WithClothStep sets the per-iteration force drift; zero keeps the
// simulator default.
func WithClothStep(step float64) Option {
	return func(g *Generator) { g.clothStep = step }
}

func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.log = l
		}
	}
}

// WithWorkers bounds the number of parts built concurrently.
func WithWorkers(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.workers = n
		}
	}
}

func WithSmoothShadingThreshold(degrees float64) Option {
	return func(g *Generator) { g.smoothThreshold = degrees }
}

// WithSelfIntersectionCheck enables validating every combined mesh.
func WithSelfIntersectionCheck(enabled bool) Option {
	return func(g *Generator) { g.checkSelfIntersection = enabled }
}

// WithSmoothIterations sets the Laplacian passes used for component
// smoothing.
func WithSmoothIterations(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.smoothIterations = n
		}
	}
}

// WithID sets the generation id reported in the result.
func WithID(id uint64) Option {
	return func(g *Generator) { g.id = id }
}
