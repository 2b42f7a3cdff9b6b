package bsp

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/meshforge/pkg/geom"
	"github.com/chazu/meshforge/pkg/kernel"
	"github.com/chazu/meshforge/pkg/kernel/sdfx"
)

func box(x0, y0, z0, x1, y1, z1 float64) *kernel.Mesh {
	return kernel.Box(geom.V(x0, y0, z0), geom.V(x1, y1, z1))
}

func TestCombineOverlappingBoxes(t *testing.T) {
	tests := []struct {
		name   string
		a, b   *kernel.Mesh
		method kernel.Method
		volume float64
		min    geom.Vec3
		max    geom.Vec3
	}{
		{
			name:   "union coplanar sides",
			a:      box(0, 0, 0, 2, 2, 2),
			b:      box(1, 0, 0, 3, 2, 2),
			method: kernel.Union,
			volume: 12,
			min:    geom.V(0, 0, 0),
			max:    geom.V(3, 2, 2),
		},
		{
			name:   "union offset",
			a:      box(0, 0, 0, 2, 2, 2),
			b:      box(1, -1, -1, 3, 3, 3),
			method: kernel.Union,
			volume: 36,
			min:    geom.V(0, -1, -1),
			max:    geom.V(3, 3, 3),
		},
		{
			name:   "subtract offset",
			a:      box(0, 0, 0, 2, 2, 2),
			b:      box(1, -1, -1, 3, 3, 3),
			method: kernel.Subtract,
			volume: 4,
			min:    geom.V(0, 0, 0),
			max:    geom.V(1, 2, 2),
		},
		{
			name:   "subtract coplanar sides",
			a:      box(0, 0, 0, 2, 2, 2),
			b:      box(1, 0, 0, 3, 2, 2),
			method: kernel.Subtract,
			volume: 4,
			min:    geom.V(0, 0, 0),
			max:    geom.V(1, 2, 2),
		},
	}

	c := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := c.Combine(tt.a, tt.b, tt.method)
			require.NotNil(t, res)
			require.Len(t, res.CameFrom, res.Mesh.VertexCount())
			assert.InDelta(t, tt.volume, res.Mesh.Volume(), 1e-6)
			bb := res.Mesh.Bounds()
			assert.True(t, bb.Min.ApproxEqual(tt.min, 1e-9), "min = %v", bb.Min)
			assert.True(t, bb.Max.ApproxEqual(tt.max, 1e-9), "max = %v", bb.Max)
			for i, src := range res.CameFrom {
				assert.NotEqual(t, kernel.SourceNone, src.Source, "vertex %d", i)
			}
		})
	}
}

func TestCombineLeftAssociative(t *testing.T) {
	c := New()
	a := box(0, 0, 0, 2, 2, 2)
	b := box(1, 0, 0, 3, 2, 2)
	cc := box(2, 0, 0, 4, 2, 2)

	ab := c.Combine(a, b, kernel.Union)
	require.NotNil(t, ab)
	abc := c.Combine(ab.Mesh, cc, kernel.Union)
	require.NotNil(t, abc)
	assert.InDelta(t, 16.0, abc.Mesh.Volume(), 1e-6)

	again := c.Combine(c.Combine(a, b, kernel.Union).Mesh, cc, kernel.Union)
	assert.Equal(t, abc.Mesh.Vertices, again.Mesh.Vertices, "combination must be deterministic")
	assert.Equal(t, abc.Mesh.Faces, again.Mesh.Faces)
}

func TestCombineEmptyOperands(t *testing.T) {
	c := New()
	a := box(0, 0, 0, 1, 1, 1)
	empty := &kernel.Mesh{}

	res := c.Combine(a, empty, kernel.Subtract)
	require.NotNil(t, res)
	assert.Equal(t, a.Vertices, res.Mesh.Vertices)
	assert.Equal(t, a.Faces, res.Mesh.Faces)

	assert.Nil(t, c.Combine(empty, a, kernel.Subtract))
	assert.Nil(t, c.Combine(empty, empty, kernel.Union))
	assert.Nil(t, c.Combine(nil, nil, kernel.Union))
}

func TestCombineDisjointShortCircuits(t *testing.T) {
	c := New()
	a := box(0, 0, 0, 1, 1, 1)
	b := box(5, 0, 0, 6, 1, 1)

	res := c.Combine(a, b, kernel.Union)
	require.NotNil(t, res)
	assert.Equal(t, 16, res.Mesh.VertexCount())
	assert.Equal(t, kernel.VertexSource{Source: kernel.SourceSecond, Index: 0}, res.CameFrom[8])

	sub := c.Combine(a, b, kernel.Subtract)
	require.NotNil(t, sub)
	assert.Equal(t, a.Vertices, sub.Mesh.Vertices)
}

func TestCombineKeepsSelfIntersectionMark(t *testing.T) {
	c := New()
	a := box(0, 0, 0, 2, 2, 2)
	a.SelfIntersecting = true
	res := c.Combine(a, box(1, 1, 1, 3, 3, 3), kernel.Union)
	require.NotNil(t, res)
	assert.True(t, res.SelfIntersecting)
	assert.True(t, math.Abs(res.Mesh.Volume()-15) < 1e-6)
}

func TestSubtractContainedLeavesEmptyMesh(t *testing.T) {
	res := New().Combine(box(1, 1, 1, 2, 2, 2), box(0, 0, 0, 3, 3, 3), kernel.Subtract)
	require.NotNil(t, res)
	assert.True(t, res.Mesh.IsEmpty())
}

func TestCombineDeclinesOverLimits(t *testing.T) {
	a := box(0, 0, 0, 2, 2, 2)
	b := box(1, 1, 1, 3, 3, 3)

	assert.Nil(t, (&Combiner{MaxPolygons: 10}).Combine(a, b, kernel.Union), "12 faces exceed the polygon limit")
	assert.Nil(t, (&Combiner{MaxWork: 10}).Combine(a, b, kernel.Union), "work budget exhausted")
	assert.NotNil(t, (&Combiner{}).Combine(a, b, kernel.Union))
}

// sphere polygonizes a sphere the way part meshes are built.
func sphere(t *testing.T, center geom.Vec3, r float64, cells int) *kernel.Mesh {
	t.Helper()
	m, err := sdfx.Polygonize(&sdfx.Sphere{Center: center, Radius: r}, cells)
	require.NoError(t, err)
	return m
}

func TestCombineMarchingCubesSpheres(t *testing.T) {
	a := sphere(t, geom.V(0, 0, 0), 1, 10)
	b := sphere(t, geom.V(1, 0, 0), 1, 10)

	start := time.Now()
	res := New().Combine(a, b, kernel.Union)
	require.NotNil(t, res)
	assert.Less(t, time.Since(start), 20*time.Second)

	// Two unit spheres one apart overlap in a lens of 5π/12.
	want := a.Volume() + b.Volume() - 5*math.Pi/12
	assert.InEpsilon(t, want, res.Mesh.Volume(), 0.1)
	assert.True(t, res.Mesh.Bounds().Max.X > 1.9)

	sub := New().Combine(a, b, kernel.Subtract)
	require.NotNil(t, sub)
	assert.InEpsilon(t, a.Volume()-5*math.Pi/12, sub.Mesh.Volume(), 0.15)
}

func TestCombineFansNonPlanarFaces(t *testing.T) {
	a := box(0, 0, 0, 2, 2, 2)
	// Lift one corner so the quads around it are no longer planar.
	a.Vertices[6] = a.Vertices[6].Add(geom.V(0.2, 0.3, 0.1))
	res := New().Combine(a, box(1, -1, -1, 3, 1, 1), kernel.Subtract)
	require.NotNil(t, res)
	assert.False(t, res.Mesh.IsEmpty())
}
