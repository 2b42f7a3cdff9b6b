package kernel

import (
	"github.com/chazu/meshforge/pkg/geom"
)

// Vec3 is re-exported so callers of the kernel rarely need to import geom.
type Vec3 = geom.Vec3

// Mesh is a polygon mesh. Faces are counter-clockwise (seen from outside)
// lists of vertex indices and are not necessarily triangles.
type Mesh struct {
	Vertices []Vec3  `json:"vertices"`
	Faces    [][]int `json:"faces"`
	// SelfIntersecting is set by validation; a self-intersecting mesh is
	// still usable.
	SelfIntersecting bool `json:"selfIntersecting,omitempty"`
}

// NewMesh builds a mesh from the given arrays without copying them.
func NewMesh(vertices []Vec3, faces [][]int) *Mesh {
	return &Mesh{Vertices: vertices, Faces: faces}
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	if m == nil {
		return 0
	}
	return len(m.Vertices)
}

// FaceCount returns the number of polygon faces.
func (m *Mesh) FaceCount() int {
	if m == nil {
		return 0
	}
	return len(m.Faces)
}

// IsEmpty returns true if the mesh has no geometry. A nil mesh is empty.
func (m *Mesh) IsEmpty() bool {
	return m == nil || len(m.Vertices) == 0 || len(m.Faces) == 0
}

// Clone returns a deep copy. Cloning nil returns nil.
func (m *Mesh) Clone() *Mesh {
	if m == nil {
		return nil
	}
	out := &Mesh{
		Vertices:         append([]Vec3(nil), m.Vertices...),
		Faces:            make([][]int, len(m.Faces)),
		SelfIntersecting: m.SelfIntersecting,
	}
	for i, f := range m.Faces {
		out.Faces[i] = append([]int(nil), f...)
	}
	return out
}

// Bounds returns the bounding box of the vertices.
func (m *Mesh) Bounds() geom.Box {
	if m == nil {
		return geom.EmptyBox()
	}
	return geom.BoxOf(m.Vertices)
}

// Triangles fans every polygon into triangles. Faces with fewer than three
// vertices are skipped.
func (m *Mesh) Triangles() [][3]int {
	var tris [][3]int
	for _, f := range m.Faces {
		for i := 1; i+1 < len(f); i++ {
			tris = append(tris, [3]int{f[0], f[i], f[i+1]})
		}
	}
	return tris
}

// TriangleCount returns the number of triangles Triangles would produce.
func (m *Mesh) TriangleCount() int {
	n := 0
	for _, f := range m.Faces {
		if len(f) >= 3 {
			n += len(f) - 2
		}
	}
	return n
}

// Volume returns the signed enclosed volume (positive for outward-facing,
// counter-clockwise faces) using the divergence theorem. It is exact for
// closed meshes, including ones with T-junctions.
func (m *Mesh) Volume() float64 {
	var vol float64
	for _, t := range m.Triangles() {
		a, b, c := m.Vertices[t[0]], m.Vertices[t[1]], m.Vertices[t[2]]
		vol += a.Dot(b.Cross(c))
	}
	return vol / 6
}

// SurfaceArea returns the summed triangle area.
func (m *Mesh) SurfaceArea() float64 {
	var area float64
	for _, t := range m.Triangles() {
		area += geom.TriangleArea(m.Vertices[t[0]], m.Vertices[t[1]], m.Vertices[t[2]])
	}
	return area
}

// Centroid returns the average vertex position.
func (m *Mesh) Centroid() Vec3 {
	var c Vec3
	if len(m.Vertices) == 0 {
		return c
	}
	for _, v := range m.Vertices {
		c = c.Add(v)
	}
	return c.Scale(1 / float64(len(m.Vertices)))
}

// MirrorX returns a copy reflected across the YZ plane. Winding is reversed
// so the copy stays outward facing.
func (m *Mesh) MirrorX() *Mesh {
	out := &Mesh{
		Vertices:         make([]Vec3, len(m.Vertices)),
		Faces:            make([][]int, len(m.Faces)),
		SelfIntersecting: m.SelfIntersecting,
	}
	for i, v := range m.Vertices {
		out.Vertices[i] = v.MirrorX()
	}
	for i, f := range m.Faces {
		nf := make([]int, len(f))
		for j := range f {
			nf[j] = f[len(f)-1-j]
		}
		out.Faces[i] = nf
	}
	return out
}

// Weld merges vertices that share a position key and drops faces that
// collapse to fewer than three distinct vertices. It returns the welded
// mesh and, for every new vertex, the index of the first old vertex that
// was merged into it.
func (m *Mesh) Weld() (*Mesh, []int) {
	out := &Mesh{SelfIntersecting: m.SelfIntersecting}
	var firstOld []int
	remap := make([]int, len(m.Vertices))
	byKey := make(map[geom.PositionKey]int, len(m.Vertices))
	for i, v := range m.Vertices {
		k := geom.KeyOf(v)
		if idx, ok := byKey[k]; ok {
			remap[i] = idx
			continue
		}
		idx := len(out.Vertices)
		byKey[k] = idx
		remap[i] = idx
		out.Vertices = append(out.Vertices, v)
		firstOld = append(firstOld, i)
	}
	for _, f := range m.Faces {
		nf := make([]int, 0, len(f))
		for _, idx := range f {
			r := remap[idx]
			if len(nf) > 0 && nf[len(nf)-1] == r {
				continue
			}
			nf = append(nf, r)
		}
		if len(nf) > 1 && nf[0] == nf[len(nf)-1] {
			nf = nf[:len(nf)-1]
		}
		if len(nf) >= 3 {
			out.Faces = append(out.Faces, nf)
		}
	}
	return out, firstOld
}

// EdgeKeys returns the set of undirected, position-keyed edges of the mesh.
func (m *Mesh) EdgeKeys() map[geom.EdgeKey]struct{} {
	edges := make(map[geom.EdgeKey]struct{})
	for _, f := range m.Faces {
		for i := range f {
			a, b := m.Vertices[f[i]], m.Vertices[f[(i+1)%len(f)]]
			edges[geom.EdgeKeyOf(a, b)] = struct{}{}
		}
	}
	return edges
}

// IsClosed reports whether every directed half-edge has an opposite
// half-edge, matched by vertex index.
func (m *Mesh) IsClosed() bool {
	if m.IsEmpty() {
		return false
	}
	type halfEdge struct{ a, b int }
	count := make(map[halfEdge]int)
	for _, f := range m.Faces {
		for i := range f {
			count[halfEdge{f[i], f[(i+1)%len(f)]}]++
		}
	}
	for he, n := range count {
		if count[halfEdge{he.b, he.a}] != n {
			return false
		}
	}
	return true
}

// Append adds the geometry of o to m, returning the vertex offset at which
// o's vertices were placed.
func (m *Mesh) Append(o *Mesh) int {
	offset := len(m.Vertices)
	if o == nil {
		return offset
	}
	m.Vertices = append(m.Vertices, o.Vertices...)
	for _, f := range o.Faces {
		nf := make([]int, len(f))
		for i, idx := range f {
			nf[i] = idx + offset
		}
		m.Faces = append(m.Faces, nf)
	}
	m.SelfIntersecting = m.SelfIntersecting || o.SelfIntersecting
	return offset
}

// Box returns an axis-aligned box mesh spanning min..max with quad faces,
// outward facing.
func Box(min, max Vec3) *Mesh {
	v := []Vec3{
		{X: min.X, Y: min.Y, Z: min.Z}, // 0
		{X: max.X, Y: min.Y, Z: min.Z}, // 1
		{X: max.X, Y: max.Y, Z: min.Z}, // 2
		{X: min.X, Y: max.Y, Z: min.Z}, // 3
		{X: min.X, Y: min.Y, Z: max.Z}, // 4
		{X: max.X, Y: min.Y, Z: max.Z}, // 5
		{X: max.X, Y: max.Y, Z: max.Z}, // 6
		{X: min.X, Y: max.Y, Z: max.Z}, // 7
	}
	faces := [][]int{
		{0, 3, 2, 1}, // -Z
		{4, 5, 6, 7}, // +Z
		{0, 1, 5, 4}, // -Y
		{3, 7, 6, 2}, // +Y
		{0, 4, 7, 3}, // -X
		{1, 2, 6, 5}, // +X
	}
	return &Mesh{Vertices: v, Faces: faces}
}
