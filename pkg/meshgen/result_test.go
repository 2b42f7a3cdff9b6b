package meshgen

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/meshforge/pkg/cache"
	"github.com/chazu/meshforge/pkg/geom"
	"github.com/chazu/meshforge/pkg/skeleton"
	"github.com/chazu/meshforge/pkg/snapshot"
)

func TestResultDoesNotShareCachedData(t *testing.T) {
	s := newScene()
	s.cube(snapshot.RootID, "a", geom.V(0, 0, 0), 1, snapshot.CombineNormal)
	c := cache.New()
	b := &boxBuilder{}

	first := generate(t, s.snap, WithCache(c), WithBuilder(b))
	preview := first.PartPreviews[partID("a")]
	require.NotNil(t, preview)
	require.NotEmpty(t, first.Outcome.PaintMaps)
	require.NotEmpty(t, first.Outcome.PaintMaps[0].Nodes)
	want := preview.Vertices[0]

	preview.Vertices[0] = geom.V(99, 99, 99)
	first.Outcome.PaintMaps[0].Nodes[0].Radius = -7

	second := generate(t, s.snap, WithCache(c), WithBuilder(b))
	assert.Equal(t, int64(1), b.calls.Load())
	assert.Equal(t, want, second.PartPreviews[partID("a")].Vertices[0])
	assert.Equal(t, 1.0, second.Outcome.PaintMaps[0].Nodes[0].Radius)
	cached, ok := c.Part(partID("a"))
	require.True(t, ok)
	assert.Equal(t, 1.0, cached.PaintMap.Nodes[0].Radius)
}

func TestClearDirtyStopsRebuilds(t *testing.T) {
	s := newScene()
	s.cube(snapshot.RootID, "a", geom.V(0, 0, 0), 1, snapshot.CombineNormal)
	s.snap.Parts[partID("a")].Dirty = true
	c := cache.New()
	b := &boxBuilder{}

	first := generate(t, s.snap, WithCache(c), WithBuilder(b))
	assert.Contains(t, first.DirtyParts, partID("a"))
	assert.True(t, s.snap.Parts[partID("a")].Dirty, "the generator works on a copy")
	first.ClearDirty(s.snap)
	assert.False(t, s.snap.Parts[partID("a")].Dirty)

	for range 2 {
		res := generate(t, s.snap, WithCache(c), WithBuilder(b))
		assert.Empty(t, res.DirtyParts)
		assert.Empty(t, res.DirtyComponents)
	}
	assert.Equal(t, int64(1), b.calls.Load())
}

func TestMirrorPartIDFollowsSettings(t *testing.T) {
	s := newScene()
	s.cube(snapshot.RootID, "arm", geom.V(1.5, 0, 0), 0.5, snapshot.CombineNormal)
	arm := s.snap.Parts[partID("arm")]
	c := cache.New()
	b := &boxBuilder{}

	arm.XMirrored = true
	res := generate(t, s.snap, WithCache(c), WithBuilder(b))
	require.Contains(t, res.Outcome.MirrorPartIDs, partID("arm"))
	mirrorID := res.Outcome.MirrorPartIDs[partID("arm")]

	arm.XMirrored = false
	res = generate(t, s.snap, WithCache(c), WithBuilder(b))
	assert.NotContains(t, res.Outcome.MirrorPartIDs, partID("arm"))

	arm.XMirrored = true
	res = generate(t, s.snap, WithCache(c), WithBuilder(b))
	assert.Equal(t, mirrorID, res.Outcome.MirrorPartIDs[partID("arm")], "mirror ids are stable")

	arm.Disabled = true
	res = generate(t, s.snap, WithCache(c), WithBuilder(b))
	assert.NotContains(t, res.Outcome.MirrorPartIDs, partID("arm"))
}

func TestPaintMapCarriesPartColor(t *testing.T) {
	s := newScene()
	s.cube(snapshot.RootID, "a", geom.V(0, 0, 0), 1, snapshot.CombineNormal)
	s.snap.Parts[partID("a")].Color = "#336699"
	c := cache.New()
	b := &boxBuilder{}

	res := generate(t, s.snap, WithCache(c), WithBuilder(b))
	require.Len(t, res.Outcome.PaintMaps, 1)
	assert.Equal(t, "#336699", res.Outcome.PaintMaps[0].Color)

	s.snap.Parts[partID("a")].Color = "#ffffff"
	res = generate(t, s.snap, WithCache(c), WithBuilder(b))
	assert.Empty(t, res.DirtyParts, "color does not rebuild geometry")
	assert.Equal(t, "#ffffff", res.Outcome.PaintMaps[0].Color)
}

func TestInstancedSubtreesShareCombination(t *testing.T) {
	s := newScene()
	g1 := s.group(snapshot.RootID, "g1")
	s.cube(g1.ID, "a", geom.V(0, 0, 0), 1, snapshot.CombineNormal)
	s.cube(g1.ID, "b", geom.V(1, 0, 0), 1, snapshot.CombineNormal)

	// g2 links the same two parts again.
	g2 := s.group(snapshot.RootID, "g2")
	for _, name := range []string{"a", "b"} {
		inst := snapshot.NewComponent(snapshot.NameID("component", name+"-instance"))
		inst.LinkToPart = partID(name)
		s.snap.AddComponent(g2.ID, inst)
	}

	b := &boxBuilder{}
	res := generate(t, s.snap, WithBuilder(b))
	require.True(t, res.Succeeded)
	assert.Equal(t, int64(2), b.calls.Load(), "each part builds once")
	assert.Equal(t, 1, res.Stats.CombinationHits)
	assert.Equal(t, 2, res.Stats.Combinations)
	assert.InDelta(t, 12, outVolume(res), 1e-6)
}

func TestDefaultPipelineCombinesSpheres(t *testing.T) {
	if testing.Short() {
		t.Skip("polygonizes two spheres at default resolution")
	}
	s := newScene()
	for _, ball := range []struct {
		name   string
		center geom.Vec3
		radius float64
	}{
		{"left", geom.V(0, 0, 0), 0.6},
		{"right", geom.V(0.8, 0, 0), 0.8},
	} {
		s.snap.AddPart(&snapshot.Part{ID: partID(ball.name), Name: ball.name})
		s.snap.AddNode(&snapshot.Node{ID: nodeID(ball.name), PartID: partID(ball.name), Position: ball.center, Radius: ball.radius})
		comp := snapshot.NewComponent(compID(ball.name))
		comp.LinkToPart = partID(ball.name)
		s.snap.AddComponent(snapshot.RootID, comp)
	}

	done := New(s.snap, WithBuilder(skeleton.NewSDFBuilder(0))).Start(context.Background())
	var res *Result
	select {
	case res = <-done:
	case <-time.After(60 * time.Second):
		t.Fatal("combining two marching cubes spheres did not finish")
	}
	require.NotNil(t, res)
	assert.True(t, res.Succeeded)
	assert.Empty(t, res.Failures)

	big := 4.0 / 3.0 * math.Pi * 0.8 * 0.8 * 0.8
	sum := big + 4.0/3.0*math.Pi*0.6*0.6*0.6
	vol := outVolume(res)
	assert.Greater(t, vol, big)
	assert.Less(t, vol, sum)
}
