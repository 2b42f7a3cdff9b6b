package meshgen

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/meshforge/pkg/cache"
	"github.com/chazu/meshforge/pkg/kernel"
	"github.com/chazu/meshforge/pkg/outcome"
	"github.com/chazu/meshforge/pkg/skeleton"
	"github.com/chazu/meshforge/pkg/snapshot"
)

var errMisalignedProvenance = errors.New("provenance is not aligned with vertices")

type partBuild struct {
	id       snapshot.ID
	entry    *cache.GeneratedPart
	disabled bool
	err      error
}

// buildParts rebuilds every dirty part concurrently. Builds only read the
// snapshot; results are committed to the cache afterwards by the pass
// goroutine.
func (p *pass) buildParts() {
	var ids []snapshot.ID
	for _, id := range p.parts {
		if !p.partDirty[id] {
			continue
		}
		ids = append(ids, id)
		part := p.snap.Parts[id]
		if !part.XMirrored || part.Disabled {
			p.cache.RemoveMirrorPartID(id)
			continue
		}
		if _, ok := p.cache.MirrorPartID(id); !ok {
			p.cache.SetMirrorPartID(id, uuid.NewSHA1(id, []byte("x-mirror")))
		}
	}
	if len(ids) == 0 {
		return
	}

	results := make([]partBuild, len(ids))
	var eg errgroup.Group
	eg.SetLimit(p.g.workers)
	for i, id := range ids {
		eg.Go(func() error {
			results[i] = p.buildPart(id)
			return nil
		})
	}
	_ = eg.Wait()

	for _, r := range results {
		if !r.disabled {
			p.res.Stats.PartsBuilt++
		}
		if r.err == nil {
			p.cache.PutPart(r.id, r.entry)
			if r.entry.Preview != nil {
				p.res.PreviewPartIDs[r.id] = struct{}{}
			}
			continue
		}
		p.fail(Failure{Kind: FailureBuild, ID: r.id, Err: r.err})
		// Keep serving the previous geometry, but make sure the part is
		// rebuilt next pass.
		if prev, ok := p.cache.Part(r.id); ok {
			prev.Fingerprint = snapshot.PartFingerprint{}
		}
	}
}

func (p *pass) buildPart(id snapshot.ID) partBuild {
	part := p.snap.Parts[id]
	fp := p.snap.PartFingerprint(id)
	if part.Disabled {
		return partBuild{id: id, disabled: true, entry: &cache.GeneratedPart{Fingerprint: fp, Succeeded: true}}
	}

	in := skeleton.InputFor(p.snap, id)
	out, err := p.g.builder.Build(p.ctx, in)
	if err != nil {
		return partBuild{id: id, err: err}
	}
	if out == nil || out.Mesh.IsEmpty() {
		return partBuild{id: id, err: fmt.Errorf("builder returned no geometry: %w", skeleton.ErrDegenerate)}
	}
	if len(out.Provenance) != len(out.Mesh.Vertices) {
		return partBuild{id: id, err: errMisalignedProvenance}
	}

	entry := &cache.GeneratedPart{
		Mesh:              out.Mesh,
		Provenance:        out.Provenance,
		CutFaceTransforms: out.CutFaceTransforms,
		Fingerprint:       fp,
		Succeeded:         true,
	}
	if entry.CutFaceTransforms == nil {
		entry.CutFaceTransforms = make(map[snapshot.ID]outcome.CutFaceTransform)
	}
	entry.PaintMap = outcome.PaintMap{PartID: id}
	for _, n := range in.Nodes {
		entry.Nodes = append(entry.Nodes, outcome.Node{ID: n.ID, PartID: id, Position: n.Position, Radius: n.Radius})
		entry.PaintMap.Nodes = append(entry.PaintMap.Nodes, outcome.PaintNode{
			NodeID:    n.ID,
			Origin:    n.Position,
			Radius:    n.Radius,
			Direction: entry.CutFaceTransforms[n.ID].Normal,
		})
	}
	for _, e := range in.Edges {
		entry.Edges = append(entry.Edges, outcome.Edge{ID: e.ID, PartID: id, From: e.From, To: e.To})
	}

	if part.XMirrored {
		p.joinMirror(entry)
	}
	entry.Preview = outcome.NewPreview(entry.Mesh)
	return partBuild{id: id, entry: entry}
}

// joinMirror reflects the part across X and joins both halves. The copy
// keeps the original skeleton ids with Mirrored set.
func (p *pass) joinMirror(entry *cache.GeneratedPart) {
	mirrored := entry.Mesh.MirrorX()
	mprov := mirrorProvenance(entry.Provenance)
	res := p.g.combiner.Combine(entry.Mesh, mirrored, kernel.Union)
	if res == nil {
		res = kernel.Concat(entry.Mesh, mirrored)
	}
	entry.Provenance = retag(res, entry.Provenance, mprov, entry.Mesh, mirrored)
	entry.Mesh = res.Mesh
	entry.Joined = true

	n := len(entry.Nodes)
	for _, node := range entry.Nodes[:n] {
		node.Position = node.Position.MirrorX()
		node.Mirrored = true
		entry.Nodes = append(entry.Nodes, node)
	}
	m := len(entry.Edges)
	for _, e := range entry.Edges[:m] {
		e.Mirrored = true
		entry.Edges = append(entry.Edges, e)
	}
}

func mirrorProvenance(prov []outcome.Provenance) []outcome.Provenance {
	out := make([]outcome.Provenance, len(prov))
	for i, pr := range prov {
		pr.Mirrored = true
		out[i] = pr
	}
	return out
}
