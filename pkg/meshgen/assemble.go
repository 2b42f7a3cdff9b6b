package meshgen

import (
	"maps"

	"github.com/chazu/meshforge/pkg/cache"
	"github.com/chazu/meshforge/pkg/cloth"
	"github.com/chazu/meshforge/pkg/geom"
	"github.com/chazu/meshforge/pkg/kernel"
	"github.com/chazu/meshforge/pkg/outcome"
	"github.com/chazu/meshforge/pkg/snapshot"
)

// assemble turns the root entry into the outcome: global mirror, then
// uncombined pieces, then simulated cloth, then normals.
func (p *pass) assemble(root *cache.GeneratedComponent) {
	out := p.res.Outcome
	out.CutFaceTransforms = make(map[snapshot.ID]outcome.CutFaceTransform)
	out.MirrorPartIDs = p.cache.MirrorPartIDs()
	p.collectPreviews()
	if root == nil {
		return
	}

	mesh := root.Mesh.Clone()
	if mesh == nil {
		mesh = &kernel.Mesh{}
	}
	prov := append([]outcome.Provenance(nil), root.Provenance...)
	out.Nodes = append(out.Nodes, root.Nodes...)
	out.Edges = append(out.Edges, root.Edges...)
	maps.Copy(out.CutFaceTransforms, root.CutFaceTransforms)
	// Color is not part of the geometry fingerprint, so it is read from the
	// snapshot rather than the cache.
	for _, pm := range root.PaintMaps {
		pm = pm.Clone()
		if part := p.snap.Parts[pm.PartID]; part != nil {
			pm.Color = part.Color
		}
		out.PaintMaps = append(out.PaintMaps, pm)
	}

	if p.snap.XMirror && !mesh.IsEmpty() {
		mirrored := mesh.MirrorX()
		mprov := mirrorProvenance(prov)
		res := p.g.combiner.Combine(mesh, mirrored, kernel.Union)
		if res == nil {
			res = kernel.Concat(mesh, mirrored)
		}
		prov = retag(res, prov, mprov, mesh, mirrored)
		mesh = res.Mesh
		n := len(out.Nodes)
		for _, node := range out.Nodes[:n] {
			node.Position = node.Position.MirrorX()
			node.Mirrored = true
			out.Nodes = append(out.Nodes, node)
		}
		m := len(out.Edges)
		for _, e := range out.Edges[:m] {
			e.Mirrored = true
			out.Edges = append(out.Edges, e)
		}
	}

	for _, piece := range root.Uncombined {
		appendPiece(mesh, &prov, piece.Mesh, piece.Provenance)
	}

	solid := mesh.Clone()
	for _, body := range root.Cloth {
		c := p.snap.Component(body.Component)
		if c == nil || body.Mesh.IsEmpty() {
			continue
		}
		params := clothParams(c, p.g.clothMaxIterations, p.g.clothStep)
		sim := p.g.simulateCloth(body.Mesh, solid, params)
		if sim.IsEmpty() || len(sim.Vertices) != len(body.Provenance) {
			sim = body.Mesh
		}
		appendPiece(mesh, &prov, sim, body.Provenance)
		out.ClothVertexCount += len(sim.Vertices)
		p.res.Stats.ClothBodies++
	}

	hard := seamVertices(root.SharedQuadEdges)
	if p.snap.XMirror {
		mirroredSeams(hard, root.SharedQuadEdges)
	}
	tris := mesh.Triangles()
	out.Vertices = mesh.Vertices
	out.Faces = mesh.Faces
	out.Triangles = tris
	out.TriangleNormals = kernel.TriangleNormals(mesh.Vertices, tris)
	out.TriangleVertexNormals = kernel.SmoothTriangleVertexNormals(
		mesh.Vertices, tris, out.TriangleNormals, p.g.smoothThreshold, hard)
	out.VertexProvenance = prov

	p.res.Succeeded = !out.IsEmpty()
}

// collectPreviews copies the cached previews; the result is handed to the
// caller while the cache lives on.
func (p *pass) collectPreviews() {
	for _, id := range p.parts {
		if e, ok := p.cache.Part(id); ok && e.Preview != nil {
			p.res.PartPreviews[id] = e.Preview.Clone()
		}
	}
}

func clothParams(c *snapshot.Component, maxIterations int, step float64) cloth.Params {
	params := cloth.ParamsFor(c)
	params.MaxIterations = maxIterations
	params.Step = step
	return params
}

// mirroredSeams adds the reflection of every seam vertex.
func mirroredSeams(hard map[geom.PositionKey]struct{}, edges map[geom.EdgeKey]struct{}) {
	for e := range edges {
		for _, k := range [2]geom.PositionKey{e.A, e.B} {
			hard[k.MirrorX()] = struct{}{}
		}
	}
}
