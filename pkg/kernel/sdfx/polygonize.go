package sdfx

import (
	"errors"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"

	"github.com/chazu/meshforge/pkg/geom"
	"github.com/chazu/meshforge/pkg/kernel"
)

// DefaultCells is the marching cubes resolution along the longest axis
// of the bounding box.
const DefaultCells = 48

// ErrEmptySurface is returned when the field produces no triangles.
var ErrEmptySurface = errors.New("sdfx: field has no surface")

// Polygonize converts s to a welded triangle mesh using uniform marching
// cubes with the given number of cells on the longest axis.
func Polygonize(s sdf.SDF3, cells int) (*kernel.Mesh, error) {
	if cells <= 0 {
		cells = DefaultCells
	}
	renderer := render.NewMarchingCubesUniform(cells)
	triangles := render.ToTriangles(s, renderer)

	raw := &kernel.Mesh{
		Vertices: make([]geom.Vec3, 0, len(triangles)*3),
		Faces:    make([][]int, 0, len(triangles)),
	}
	for _, tri := range triangles {
		base := len(raw.Vertices)
		for j := 0; j < 3; j++ {
			raw.Vertices = append(raw.Vertices, fromV3(tri[j]))
		}
		raw.Faces = append(raw.Faces, []int{base, base + 1, base + 2})
	}
	mesh, _ := raw.Weld()
	if mesh.IsEmpty() {
		return nil, ErrEmptySurface
	}
	// Faces must wind outward.
	if mesh.Volume() < 0 {
		for _, f := range mesh.Faces {
			for i, j := 0, len(f)-1; i < j; i, j = i+1, j-1 {
				f[i], f[j] = f[j], f[i]
			}
		}
	}
	return mesh, nil
}
