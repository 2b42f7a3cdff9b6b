package meshgen

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"maps"
	"math"

	"go.uber.org/zap"

	"github.com/chazu/meshforge/pkg/cache"
	"github.com/chazu/meshforge/pkg/geom"
	"github.com/chazu/meshforge/pkg/kernel"
	"github.com/chazu/meshforge/pkg/outcome"
	"github.com/chazu/meshforge/pkg/remesh"
	"github.com/chazu/meshforge/pkg/snapshot"
)

var errNoCombination = errors.New("combiner produced no result")

// component returns the generated geometry of a component subtree,
// rebuilding it when dirty. A failed rebuild falls back to the previous
// cached value when there is one.
func (p *pass) component(id snapshot.ID) *cache.GeneratedComponent {
	if e, ok := p.built[id]; ok {
		return e
	}
	c := p.snap.Component(id)
	if c == nil {
		return nil
	}
	if p.visiting[id] {
		p.warn(WarningCycle, id, "component reached through a cycle; skipped")
		return nil
	}
	p.visiting[id] = true
	defer delete(p.visiting, id)

	if !p.compDirty[id] {
		if cached, ok := p.cache.Component(id); ok {
			p.built[id] = cached
			return cached
		}
	}

	entry, ok := p.combineComponent(c)
	if ok {
		p.cache.PutComponent(id, entry)
	} else if prev, had := p.cache.Component(id); had {
		// Keep serving the previous geometry, but make sure the
		// component is rebuilt next pass.
		prev.Fingerprint = snapshot.ComponentFingerprint{}
		entry = prev
	}
	p.built[id] = entry
	return entry
}

func newGeneratedComponent(fp snapshot.ComponentFingerprint) *cache.GeneratedComponent {
	return &cache.GeneratedComponent{
		Mesh:              &kernel.Mesh{},
		SharedQuadEdges:   make(map[geom.EdgeKey]struct{}),
		NoneSeamVertices:  make(map[geom.PositionKey]struct{}),
		CutFaceTransforms: make(map[snapshot.ID]outcome.CutFaceTransform),
		Fingerprint:       fp,
		Succeeded:         true,
	}
}

// combineComponent rebuilds one component. It reports false when a
// combination step failed; the returned entry is then the degraded
// result.
func (p *pass) combineComponent(c *snapshot.Component) (*cache.GeneratedComponent, bool) {
	p.res.Stats.ComponentsCombined++
	entry := newGeneratedComponent(p.snap.ComponentFingerprint(c.ID))
	if c.HasPart() {
		p.leafComponent(c, entry)
		return entry, true
	}

	ok := true
	var (
		acc     *cache.Piece
		accKey  string
		inputs  []*kernel.Mesh
		run     *cache.ClothBody
		inherit = make(map[geom.EdgeKey]struct{})
	)
	flushRun := func() {
		if run != nil {
			entry.Cloth = append(entry.Cloth, *run)
			run = nil
		}
	}

	for _, childID := range c.Children {
		child := p.snap.Component(childID)
		if child == nil {
			continue
		}
		ce := p.component(childID)
		if ce == nil {
			continue
		}
		mergeMetadata(entry, ce)
		maps.Copy(inherit, ce.SharedQuadEdges)
		entry.SelfIntersecting = entry.SelfIntersecting || ce.SelfIntersecting

		if child.IsCloth() {
			if run == nil {
				run = &cache.ClothBody{Component: childID, Piece: cache.Piece{Mesh: &kernel.Mesh{}}}
			}
			appendPiece(run.Mesh, &run.Provenance, ce.Mesh, ce.Provenance)
			continue
		}
		flushRun()
		if ce.Mesh.IsEmpty() {
			continue
		}
		if child.CombineMode == snapshot.CombineUncombined {
			entry.Uncombined = append(entry.Uncombined, cache.Piece{Mesh: ce.Mesh, Provenance: ce.Provenance})
			continue
		}

		method := child.CombineMode.Method()
		key := pieceKey(ce.Mesh, ce.Provenance)
		if acc == nil {
			if method == kernel.Subtract {
				p.warn(WarningSkippedSubtract, childID, "subtract before any geometry to subtract from; skipped")
				continue
			}
			acc = &cache.Piece{Mesh: ce.Mesh, Provenance: ce.Provenance}
			accKey = key
			inputs = append(inputs, ce.Mesh)
			continue
		}
		inputs = append(inputs, ce.Mesh)

		pairKey := cache.CombinationKey{Left: accKey, Method: method, Right: key}
		if hit, found := p.cache.Combination(pairKey); found {
			p.res.Stats.CombinationHits++
			acc = hit
		} else {
			p.res.Stats.Combinations++
			res := p.g.combiner.Combine(acc.Mesh, ce.Mesh, method)
			if res == nil {
				ok = false
				p.fail(Failure{Kind: FailureCombine, ID: c.ID, Other: childID, Err: errNoCombination})
				continue
			}
			next := &cache.Piece{
				Mesh:       res.Mesh,
				Provenance: retag(res, acc.Provenance, ce.Provenance, acc.Mesh, ce.Mesh),
			}
			entry.SelfIntersecting = entry.SelfIntersecting || res.SelfIntersecting
			p.cache.PutCombination(pairKey, next)
			acc = next
		}
		accKey = "(" + accKey + " " + method.String() + " " + key + ")"
	}
	flushRun()

	mesh, prov := &kernel.Mesh{}, []outcome.Provenance(nil)
	if acc != nil {
		mesh = acc.Mesh.Clone()
		prov = append(prov, acc.Provenance...)
	}

	edges := mesh.EdgeKeys()
	for k := range sharedEdges(inputs) {
		inherit[k] = struct{}{}
	}
	for k := range inherit {
		if _, on := edges[k]; on {
			entry.SharedQuadEdges[k] = struct{}{}
		}
	}

	if p.g.checkSelfIntersection && !entry.SelfIntersecting && kernel.SelfIntersects(mesh) {
		entry.SelfIntersecting = true
	}
	if entry.SelfIntersecting {
		mesh.SelfIntersecting = true
		p.warn(WarningSelfIntersection, c.ID, "combined mesh is self-intersecting")
	}

	p.finish(c, entry, mesh, prov)
	entry.Succeeded = ok
	return entry, ok
}

// leafComponent takes the geometry of the linked part. A part that never
// built contributes nothing.
func (p *pass) leafComponent(c *snapshot.Component, entry *cache.GeneratedComponent) {
	pe, ok := p.cache.Part(c.LinkToPart)
	if !ok || pe.Mesh.IsEmpty() {
		return
	}
	entry.Nodes = append(entry.Nodes, pe.Nodes...)
	entry.Edges = append(entry.Edges, pe.Edges...)
	maps.Copy(entry.CutFaceTransforms, pe.CutFaceTransforms)
	entry.PaintMaps = append(entry.PaintMaps, pe.PaintMap)
	entry.SelfIntersecting = pe.Mesh.SelfIntersecting

	p.finish(c, entry, pe.Mesh.Clone(), append([]outcome.Provenance(nil), pe.Provenance...))
}

// pieceKey identifies an operand by content, so that subtrees instancing
// the same geometry share one combination.
func pieceKey(m *kernel.Mesh, prov []outcome.Provenance) string {
	h := sha256.New()
	var buf [8]byte
	for _, v := range m.Vertices {
		for _, f := range [3]float64{v.X, v.Y, v.Z} {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
			h.Write(buf[:])
		}
	}
	for _, f := range m.Faces {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(f)))
		h.Write(buf[:])
		for _, idx := range f {
			binary.LittleEndian.PutUint64(buf[:], uint64(idx))
			h.Write(buf[:])
		}
	}
	for _, pr := range prov {
		h.Write(pr.PartID[:])
		h.Write(pr.NodeID[:])
		h.Write(pr.EdgeID[:])
		if pr.Mirrored {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func mergeMetadata(dst, src *cache.GeneratedComponent) {
	dst.Nodes = append(dst.Nodes, src.Nodes...)
	dst.Edges = append(dst.Edges, src.Edges...)
	maps.Copy(dst.CutFaceTransforms, src.CutFaceTransforms)
	dst.PaintMaps = append(dst.PaintMaps, src.PaintMaps...)
	dst.Uncombined = append(dst.Uncombined, src.Uncombined...)
	dst.Cloth = append(dst.Cloth, src.Cloth...)
}

// finish applies the component's smoothing and density target to its own
// mesh and stores it in the entry.
func (p *pass) finish(c *snapshot.Component, entry *cache.GeneratedComponent, mesh *kernel.Mesh, prov []outcome.Provenance) {
	seams := seamVertices(entry.SharedQuadEdges)

	if c.SmoothAdjusted() && !mesh.IsEmpty() {
		weights := make([]float64, len(mesh.Vertices))
		for i, v := range mesh.Vertices {
			if _, on := seams[geom.KeyOf(v)]; on {
				weights[i] = c.SmoothSeam
			} else {
				weights[i] = c.SmoothAll
			}
		}
		kernel.LaplacianSmooth(mesh, weights, p.g.smoothIterations)
	}

	if c.PolyCount != snapshot.PolyCountOriginal && !mesh.IsEmpty() {
		p.res.Stats.Remeshes++
		r := p.g.newRemesher()
		r.SetMesh(mesh.Vertices, mesh.Triangles())
		r.SetNodes(nodeSamples(entry.Nodes))
		if r.Remesh(c.PolyCount.Multiplier()) && len(r.Vertices()) > 0 && len(r.VertexSources()) == len(r.Vertices()) {
			p.log.Debug("remeshed",
				zap.Stringer("component", c.ID),
				zap.Int("from", len(mesh.Vertices)),
				zap.Int("to", len(r.Vertices())))
			mesh = &kernel.Mesh{Vertices: r.Vertices(), Faces: r.Faces(), SelfIntersecting: mesh.SelfIntersecting}
			prov = r.VertexSources()
			edges := mesh.EdgeKeys()
			for k := range entry.SharedQuadEdges {
				if _, on := edges[k]; !on {
					delete(entry.SharedQuadEdges, k)
				}
			}
			seams = seamVertices(entry.SharedQuadEdges)
		} else {
			p.warn(WarningRemeshFallback, c.ID, "remesh failed; keeping the original density")
		}
	}

	for _, v := range mesh.Vertices {
		k := geom.KeyOf(v)
		if _, on := seams[k]; !on {
			entry.NoneSeamVertices[k] = struct{}{}
		}
	}
	entry.Mesh = mesh
	entry.Provenance = prov
}

func nodeSamples(nodes []outcome.Node) []remesh.NodeSample {
	out := make([]remesh.NodeSample, len(nodes))
	for i, n := range nodes {
		out[i] = remesh.NodeSample{
			Position: n.Position,
			Radius:   n.Radius,
			Source:   outcome.Provenance{PartID: n.PartID, NodeID: n.ID, Mirrored: n.Mirrored},
		}
	}
	return out
}
