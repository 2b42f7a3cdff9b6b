// Package meshgen is the mesh generator: one pass walks the component
// tree, rebuilds what changed since the last pass, recombines dirty
// subtrees bottom-up and assembles the final outcome with provenance.
package meshgen

import (
	"context"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/chazu/meshforge/pkg/cache"
	"github.com/chazu/meshforge/pkg/cloth"
	"github.com/chazu/meshforge/pkg/kernel"
	"github.com/chazu/meshforge/pkg/kernel/bsp"
	"github.com/chazu/meshforge/pkg/kernel/sdfx"
	"github.com/chazu/meshforge/pkg/remesh"
	"github.com/chazu/meshforge/pkg/skeleton"
	"github.com/chazu/meshforge/pkg/snapshot"
)

// Generator runs a generation pass over one snapshot. A Generator is
// single use: call Generate or Start once.
type Generator struct {
	snap *snapshot.Snapshot

	cache                 *cache.Cache
	combiner              kernel.Combiner
	builder               skeleton.Builder
	newRemesher           func() Remesher
	simulateCloth         ClothSimulator
	log                   *zap.Logger
	workers               int
	smoothThreshold       float64
	smoothIterations      int
	checkSelfIntersection bool
	clothMaxIterations    int
	clothStep             float64
	id                    uint64
}

// DefaultCombiner is the exact BSP combiner, handing input too dense for
// it to the voxel combiner.
func DefaultCombiner() kernel.Combiner {
	return kernel.Chain{bsp.New(), sdfx.NewCombiner(sdfx.DefaultCells)}
}

// New returns a generator for a private copy of snap.
func New(snap *snapshot.Snapshot, opts ...Option) *Generator {
	g := &Generator{
		snap:                  snap.Clone(),
		combiner:              DefaultCombiner(),
		builder:               skeleton.NewSDFBuilder(sdfx.DefaultCells),
		newRemesher:           func() Remesher { return remesh.New(remesh.Config{}) },
		simulateCloth:         cloth.Simulate,
		log:                   zap.NewNop(),
		workers:               runtime.GOMAXPROCS(0),
		smoothThreshold:       DefaultSmoothShadingThreshold,
		smoothIterations:      3,
		checkSelfIntersection: true,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.cache == nil {
		g.cache = cache.New()
	}
	return g
}

// Start runs the pass on its own goroutine. The returned channel delivers
// exactly one result and is then closed.
func (g *Generator) Start(ctx context.Context) <-chan *Result {
	done := make(chan *Result, 1)
	go func() {
		defer close(done)
		done <- g.Generate(ctx)
	}()
	return done
}

// Generate runs one full generation pass. Geometric failures never abort
// the pass; they are reported in the result.
func (g *Generator) Generate(ctx context.Context) *Result {
	start := time.Now()
	p := newPass(ctx, g)
	log := g.log.With(zap.Uint64("pass", g.id))
	log.Debug("generation started",
		zap.Int("components", len(g.snap.Components)),
		zap.Int("parts", len(g.snap.Parts)))

	g.cache.ResetCombinations()
	p.validate()
	p.markDirty()
	p.buildParts()
	root := p.component(snapshot.RootID)
	p.assemble(root)
	p.prune()

	p.res.Stats.Duration = time.Since(start)
	log.Info("generation finished",
		zap.Bool("succeeded", p.res.Succeeded),
		zap.Int("dirtyParts", len(p.res.DirtyParts)),
		zap.Int("dirtyComponents", len(p.res.DirtyComponents)),
		zap.Int("partsBuilt", p.res.Stats.PartsBuilt),
		zap.Int("failures", len(p.res.Failures)),
		zap.Int("warnings", len(p.res.Warnings)),
		zap.Duration("took", p.res.Stats.Duration))
	return p.res
}
