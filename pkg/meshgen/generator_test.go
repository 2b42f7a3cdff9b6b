package meshgen

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/meshforge/pkg/cache"
	"github.com/chazu/meshforge/pkg/cloth"
	"github.com/chazu/meshforge/pkg/geom"
	"github.com/chazu/meshforge/pkg/kernel"
	"github.com/chazu/meshforge/pkg/kernel/bsp"
	"github.com/chazu/meshforge/pkg/outcome"
	"github.com/chazu/meshforge/pkg/remesh"
	"github.com/chazu/meshforge/pkg/skeleton"
	"github.com/chazu/meshforge/pkg/snapshot"
)

// boxBuilder builds an axis-aligned cube around the first node of a part,
// with half-size equal to the node radius. It counts its calls.
type boxBuilder struct {
	calls atomic.Int64
}

func (b *boxBuilder) Build(_ context.Context, in skeleton.Input) (*skeleton.Output, error) {
	b.calls.Add(1)
	if len(in.Nodes) == 0 || in.Nodes[0].Radius <= 0 {
		return nil, skeleton.ErrDegenerate
	}
	n := in.Nodes[0]
	r := geom.V(n.Radius, n.Radius, n.Radius)
	m := kernel.Box(n.Position.Sub(r), n.Position.Add(r))
	prov := make([]outcome.Provenance, len(m.Vertices))
	for i := range prov {
		prov[i] = outcome.Provenance{PartID: in.Part.ID, NodeID: n.ID}
	}
	return &skeleton.Output{Mesh: m, Provenance: prov}, nil
}

type scene struct {
	snap *snapshot.Snapshot
}

func newScene() *scene {
	return &scene{snap: snapshot.New()}
}

func partID(name string) snapshot.ID { return snapshot.NameID("part", name) }
func nodeID(name string) snapshot.ID { return snapshot.NameID("node", name) }
func compID(name string) snapshot.ID { return snapshot.NameID("component", name) }

// cube adds a part with a single node and the component linking to it.
func (s *scene) cube(parent snapshot.ID, name string, center geom.Vec3, r float64, mode snapshot.CombineMode) *snapshot.Component {
	s.snap.AddPart(&snapshot.Part{ID: partID(name), Name: name})
	s.snap.AddNode(&snapshot.Node{ID: nodeID(name), PartID: partID(name), Position: center, Radius: r})
	c := snapshot.NewComponent(compID(name))
	c.LinkToPart = partID(name)
	c.CombineMode = mode
	s.snap.AddComponent(parent, c)
	return c
}

func (s *scene) group(parent snapshot.ID, name string) *snapshot.Component {
	c := snapshot.NewComponent(compID(name))
	s.snap.AddComponent(parent, c)
	return c
}

func generate(t *testing.T, snap *snapshot.Snapshot, opts ...Option) *Result {
	t.Helper()
	res := New(snap, opts...).Generate(context.Background())
	require.NotNil(t, res)
	require.NotNil(t, res.Outcome)
	return res
}

func outVolume(res *Result) float64 {
	return res.Outcome.Mesh().Volume()
}

func TestGenerateIsIdempotent(t *testing.T) {
	s := newScene()
	s.cube(snapshot.RootID, "a", geom.V(1, 1, 1), 1, snapshot.CombineNormal)
	s.cube(snapshot.RootID, "b", geom.V(2, 1.5, 1.5), 1, snapshot.CombineNormal)

	c := cache.New()
	b := &boxBuilder{}
	first := generate(t, s.snap, WithCache(c), WithBuilder(b))
	require.True(t, first.Succeeded)
	assert.Len(t, first.DirtyParts, 2)
	assert.Equal(t, 2, first.Stats.PartsBuilt)

	second := generate(t, s.snap, WithCache(c), WithBuilder(b))
	assert.Empty(t, second.DirtyParts)
	assert.Empty(t, second.DirtyComponents)
	assert.Zero(t, second.Stats.PartsBuilt)
	assert.Zero(t, second.Stats.ComponentsCombined)
	assert.Equal(t, int64(2), b.calls.Load())
	assert.Equal(t, first.Outcome, second.Outcome)
}

func TestGenerateRebuildsOnlyChangedSubtree(t *testing.T) {
	s := newScene()
	g := s.group(snapshot.RootID, "g")
	s.cube(g.ID, "a", geom.V(0, 0, 0), 1, snapshot.CombineNormal)
	s.cube(g.ID, "b", geom.V(5, 0, 0), 1, snapshot.CombineNormal)
	s.cube(snapshot.RootID, "c", geom.V(0, 5, 0), 1, snapshot.CombineNormal)

	c := cache.New()
	b := &boxBuilder{}
	generate(t, s.snap, WithCache(c), WithBuilder(b))
	require.Equal(t, int64(3), b.calls.Load())
	before, ok := c.Component(compID("c"))
	require.True(t, ok)

	s.snap.Nodes[nodeID("a")].Position = geom.V(0, 0, 0.5)
	res := generate(t, s.snap, WithCache(c), WithBuilder(b))

	assert.Equal(t, int64(4), b.calls.Load())
	assert.Equal(t, map[snapshot.ID]struct{}{partID("a"): {}}, res.DirtyParts)
	assert.Equal(t, map[snapshot.ID]struct{}{
		compID("a"):     {},
		g.ID:            {},
		snapshot.RootID: {},
	}, res.DirtyComponents)
	assert.Equal(t, 3, res.Stats.ComponentsCombined)

	after, ok := c.Component(compID("c"))
	require.True(t, ok)
	assert.Same(t, before, after)
	assert.Equal(t, map[snapshot.ID]struct{}{partID("a"): {}}, res.PreviewPartIDs)
	assert.Len(t, res.PartPreviews, 3)
}

func TestGenerateMatchesDirectCombination(t *testing.T) {
	s := newScene()
	s.cube(snapshot.RootID, "a", geom.V(1, 1, 1), 1, snapshot.CombineNormal)
	s.cube(snapshot.RootID, "b", geom.V(2, 1, 1), 1, snapshot.CombineNormal)
	s.cube(snapshot.RootID, "c", geom.V(1, 1, 2), 0.5, snapshot.CombineInversion)

	res := generate(t, s.snap, WithBuilder(&boxBuilder{}), WithSelfIntersectionCheck(false))
	require.True(t, res.Succeeded)
	assert.Empty(t, res.Failures)
	assert.Equal(t, 2, res.Stats.Combinations)

	combiner := bsp.New()
	ab := combiner.Combine(kernel.Box(geom.V(0, 0, 0), geom.V(2, 2, 2)), kernel.Box(geom.V(1, 0, 0), geom.V(3, 2, 2)), kernel.Union)
	require.NotNil(t, ab)
	abc := combiner.Combine(ab.Mesh, kernel.Box(geom.V(0.5, 0.5, 1.5), geom.V(1.5, 1.5, 2.5)), kernel.Subtract)
	require.NotNil(t, abc)

	assert.InDelta(t, 11.5, outVolume(res), 1e-6)
	assert.Equal(t, abc.Mesh.Vertices, res.Outcome.Vertices)
	assert.Equal(t, abc.Mesh.Faces, res.Outcome.Faces)

	box := res.Outcome.Mesh().Bounds()
	assert.True(t, box.Min.ApproxEqual(geom.V(0, 0, 0), 1e-9))
	assert.True(t, box.Max.ApproxEqual(geom.V(3, 2, 2), 1e-9))
}

func TestSubtractWithoutGeometryIsSkipped(t *testing.T) {
	s := newScene()
	s.cube(snapshot.RootID, "hole", geom.V(0, 0, 0), 0.5, snapshot.CombineInversion)
	s.cube(snapshot.RootID, "a", geom.V(0, 0, 0), 1, snapshot.CombineNormal)
	off := s.cube(snapshot.RootID, "off", geom.V(0, 0, 0), 0.75, snapshot.CombineInversion)
	s.snap.Parts[off.LinkToPart].Disabled = true

	res := generate(t, s.snap, WithBuilder(&boxBuilder{}))
	require.True(t, res.Succeeded)
	assert.Empty(t, res.Failures)
	assert.InDelta(t, 8, outVolume(res), 1e-9)
	assert.Equal(t, 2, res.Stats.PartsBuilt)

	var skipped []snapshot.ID
	for _, w := range res.Warnings {
		if w.Kind == WarningSkippedSubtract {
			skipped = append(skipped, w.ID)
		}
	}
	assert.Equal(t, []snapshot.ID{compID("hole")}, skipped)
}

func assertMirrorSymmetric(t *testing.T, o *outcome.Outcome) {
	t.Helper()
	for _, v := range o.Vertices {
		want := v.MirrorX()
		found := false
		for _, u := range o.Vertices {
			if u.ApproxEqual(want, 1e-4) {
				found = true
				break
			}
		}
		assert.True(t, found, "no mirror partner for %v", v)
	}
	assert.InDelta(t, 0, o.Mesh().Centroid().X, 1e-4)
}

func TestMirroredPartIsSymmetric(t *testing.T) {
	s := newScene()
	c := s.cube(snapshot.RootID, "arm", geom.V(1.5, 0, 0), 0.5, snapshot.CombineNormal)
	s.snap.Parts[c.LinkToPart].XMirrored = true

	res := generate(t, s.snap, WithBuilder(&boxBuilder{}))
	require.True(t, res.Succeeded)
	assertMirrorSymmetric(t, res.Outcome)
	assert.InDelta(t, 2, outVolume(res), 1e-9)

	for i, v := range res.Outcome.Vertices {
		assert.Equal(t, v.X < 0, res.Outcome.VertexProvenance[i].Mirrored)
	}
	require.Len(t, res.Outcome.Nodes, 2)
	assert.True(t, res.Outcome.Nodes[1].Mirrored)
	assert.Contains(t, res.Outcome.MirrorPartIDs, partID("arm"))
}

func TestGlobalMirrorIsSymmetric(t *testing.T) {
	s := newScene()
	s.cube(snapshot.RootID, "a", geom.V(1.5, 0, 0), 1, snapshot.CombineNormal)
	s.cube(snapshot.RootID, "b", geom.V(3, 1, 0), 0.5, snapshot.CombineNormal)
	s.snap.XMirror = true

	res := generate(t, s.snap, WithBuilder(&boxBuilder{}))
	require.True(t, res.Succeeded)
	assertMirrorSymmetric(t, res.Outcome)
	assert.InDelta(t, 2*(8+1), outVolume(res), 1e-9)
	for i, v := range res.Outcome.Vertices {
		assert.Equal(t, v.X < 0, res.Outcome.VertexProvenance[i].Mirrored)
	}
	assert.Len(t, res.Outcome.Nodes, 4)
}

func TestBuildFailureIsContained(t *testing.T) {
	s := newScene()
	s.cube(snapshot.RootID, "a", geom.V(0, 0, 0), 1, snapshot.CombineNormal)
	s.cube(snapshot.RootID, "b", geom.V(5, 0, 0), 1, snapshot.CombineNormal)

	c := cache.New()
	b := &boxBuilder{}
	generate(t, s.snap, WithCache(c), WithBuilder(b))
	aBefore, ok := c.Part(partID("a"))
	require.True(t, ok)

	s.snap.Nodes[nodeID("b")].Radius = 0
	res := generate(t, s.snap, WithCache(c), WithBuilder(b))

	require.Len(t, res.Failures, 1)
	f := res.Failures[0]
	assert.Equal(t, FailureBuild, f.Kind)
	assert.Equal(t, partID("b"), f.ID)
	assert.True(t, errors.Is(f.Err, skeleton.ErrDegenerate))

	// The previous geometry of b is still served.
	assert.True(t, res.Succeeded)
	assert.InDelta(t, 16, outVolume(res), 1e-9)

	aAfter, ok := c.Part(partID("a"))
	require.True(t, ok)
	assert.Same(t, aBefore, aAfter)

	// b stays dirty until it builds again.
	again := generate(t, s.snap, WithCache(c), WithBuilder(b))
	assert.Contains(t, again.DirtyParts, partID("b"))
	assert.NotContains(t, again.DirtyParts, partID("a"))
}

func TestCombineFailureFallsBackToPreviousGeometry(t *testing.T) {
	s := newScene()
	s.cube(snapshot.RootID, "a", geom.V(0, 0, 0), 1, snapshot.CombineNormal)
	s.cube(snapshot.RootID, "b", geom.V(1, 0, 0), 1, snapshot.CombineNormal)

	c := cache.New()
	b := &boxBuilder{}
	first := generate(t, s.snap, WithCache(c), WithBuilder(b))
	require.True(t, first.Succeeded)

	failing := kernel.CombinerFunc(func(a, b *kernel.Mesh, m kernel.Method) *kernel.Result { return nil })
	s.snap.Nodes[nodeID("b")].Position = geom.V(1, 0.5, 0)
	res := generate(t, s.snap, WithCache(c), WithBuilder(b), WithCombiner(failing))

	require.Len(t, res.Failures, 1)
	assert.Equal(t, FailureCombine, res.Failures[0].Kind)
	assert.Equal(t, snapshot.RootID, res.Failures[0].ID)
	assert.Equal(t, compID("b"), res.Failures[0].Other)
	assert.Equal(t, first.Outcome.Vertices, res.Outcome.Vertices)

	// Both leaves were still cached on their own.
	_, ok := c.Component(compID("b"))
	assert.True(t, ok)

	healed := generate(t, s.snap, WithCache(c), WithBuilder(b))
	assert.Empty(t, healed.DirtyParts)
	assert.Contains(t, healed.DirtyComponents, snapshot.RootID)
	assert.Empty(t, healed.Failures)
	assert.InDelta(t, 13, outVolume(healed), 1e-6)
}

func TestCombineFailureWithoutCacheKeepsAccumulator(t *testing.T) {
	s := newScene()
	s.cube(snapshot.RootID, "a", geom.V(0, 0, 0), 1, snapshot.CombineNormal)
	s.cube(snapshot.RootID, "b", geom.V(1, 0, 0), 1, snapshot.CombineNormal)

	failing := kernel.CombinerFunc(func(a, b *kernel.Mesh, m kernel.Method) *kernel.Result { return nil })
	res := generate(t, s.snap, WithBuilder(&boxBuilder{}), WithCombiner(failing))
	require.Len(t, res.Failures, 1)
	assert.True(t, res.Succeeded)
	assert.InDelta(t, 8, outVolume(res), 1e-9)
}

func TestProvenanceTracesToSnapshot(t *testing.T) {
	s := newScene()
	g := s.group(snapshot.RootID, "g")
	s.cube(g.ID, "a", geom.V(0, 0, 0), 1, snapshot.CombineNormal)
	s.cube(g.ID, "b", geom.V(1, 0.5, 0.25), 1, snapshot.CombineNormal)
	s.cube(snapshot.RootID, "c", geom.V(0, 0, 1), 0.5, snapshot.CombineInversion)
	arm := s.cube(snapshot.RootID, "arm", geom.V(4, 0, 0), 0.5, snapshot.CombineNormal)
	s.snap.Parts[arm.LinkToPart].XMirrored = true

	res := generate(t, s.snap, WithBuilder(&boxBuilder{}))
	require.True(t, res.Succeeded)
	o := res.Outcome
	require.Len(t, o.VertexProvenance, len(o.Vertices))
	for i, pr := range o.VertexProvenance {
		require.False(t, pr.IsZero(), "vertex %d has no provenance", i)
		node, ok := s.snap.Nodes[pr.NodeID]
		require.True(t, ok, "vertex %d traces to unknown node", i)
		assert.Equal(t, node.PartID, pr.PartID)
	}
	assert.Len(t, o.PaintMaps, 4)
}

func TestUncombinedAndClothAreCollectedBeside(t *testing.T) {
	s := newScene()
	s.cube(snapshot.RootID, "body", geom.V(0, 0, 0), 1, snapshot.CombineNormal)
	s.cube(snapshot.RootID, "loose", geom.V(0.5, 0, 0), 1, snapshot.CombineUncombined)
	skirt1 := s.cube(snapshot.RootID, "skirt1", geom.V(0, -1, 0), 1.2, snapshot.CombineNormal)
	skirt2 := s.cube(snapshot.RootID, "skirt2", geom.V(0, -2, 0), 1.2, snapshot.CombineNormal)
	skirt1.Layer = snapshot.LayerCloth
	skirt2.Layer = snapshot.LayerCloth

	var sims int
	sim := func(body, collision *kernel.Mesh, p cloth.Params) *kernel.Mesh {
		sims++
		assert.Equal(t, snapshot.DefaultClothIteration, p.Iteration)
		assert.Equal(t, 10, p.MaxIterations)
		// The solid body plus the uncombined piece.
		assert.InDelta(t, 16, collision.Volume(), 1e-9)
		return body.Clone()
	}
	res := generate(t, s.snap, WithBuilder(&boxBuilder{}), WithClothSimulator(sim), WithClothMaxIterations(10))
	require.True(t, res.Succeeded)

	assert.Equal(t, 1, sims, "contiguous cloth components form one body")
	assert.Equal(t, 1, res.Stats.ClothBodies)
	assert.Equal(t, 16, res.Outcome.ClothVertexCount)
	assert.Len(t, res.Outcome.Vertices, 8*4)
	assert.Zero(t, res.Stats.Combinations)
}

func hasWarning(res *Result, kind WarningKind, id snapshot.ID) bool {
	for _, w := range res.Warnings {
		if w.Kind == kind && w.ID == id {
			return true
		}
	}
	return false
}

type failingRemesher struct{}

func (failingRemesher) SetMesh([]geom.Vec3, [][3]int)      {}
func (failingRemesher) SetNodes([]remesh.NodeSample)        {}
func (failingRemesher) Remesh(float64) bool                 { return false }
func (failingRemesher) Vertices() []geom.Vec3               { return nil }
func (failingRemesher) Faces() [][]int                      { return nil }
func (failingRemesher) VertexSources() []outcome.Provenance { return nil }

func TestRemeshFailureKeepsOriginalDensity(t *testing.T) {
	s := newScene()
	c := s.cube(snapshot.RootID, "a", geom.V(0, 0, 0), 1, snapshot.CombineNormal)
	c.PolyCount = snapshot.PolyCountHigh

	res := generate(t, s.snap,
		WithBuilder(&boxBuilder{}),
		WithRemesher(func() Remesher { return failingRemesher{} }))
	require.True(t, res.Succeeded)
	assert.Len(t, res.Outcome.Vertices, 8)
	assert.Equal(t, 1, res.Stats.Remeshes)
	assert.True(t, hasWarning(res, WarningRemeshFallback, compID("a")))
}

func TestSmoothingPinsSeams(t *testing.T) {
	s := newScene()
	g := s.group(snapshot.RootID, "g")
	g.SetSmoothAll(1)
	s.cube(g.ID, "a", geom.V(0, 0, 0), 1, snapshot.CombineNormal)
	s.cube(g.ID, "b", geom.V(2, 0, 0), 1, snapshot.CombineNormal)

	res := generate(t, s.snap, WithBuilder(&boxBuilder{}), WithSmoothIterations(1))
	require.True(t, res.Succeeded)
	assert.Less(t, outVolume(res), 16.0)

	has := func(p geom.Vec3) bool {
		for _, v := range res.Outcome.Vertices {
			if v.ApproxEqual(p, 1e-9) {
				return true
			}
		}
		return false
	}
	// The face where a meets b is a seam; its corners are pinned.
	for _, y := range []float64{-1, 1} {
		for _, z := range []float64{-1, 1} {
			assert.True(t, has(geom.V(1, y, z)), "seam corner (1, %v, %v) moved", y, z)
		}
	}
	assert.False(t, has(geom.V(-1, 1, 1)), "outer corner should be smoothed")
}

func TestStartDeliversOneResult(t *testing.T) {
	s := newScene()
	s.cube(snapshot.RootID, "a", geom.V(0, 0, 0), 1, snapshot.CombineNormal)

	done := New(s.snap, WithBuilder(&boxBuilder{}), WithID(7)).Start(context.Background())
	res, ok := <-done
	require.True(t, ok)
	assert.Equal(t, uint64(7), res.ID)
	assert.True(t, res.Succeeded)
	_, ok = <-done
	assert.False(t, ok)
}

func TestEmptySceneDoesNotSucceed(t *testing.T) {
	res := generate(t, snapshot.New())
	assert.False(t, res.Succeeded)
	assert.True(t, res.Outcome.IsEmpty())
	assert.Empty(t, res.Failures)
}
