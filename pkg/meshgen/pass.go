package meshgen

import (
	"context"

	"go.uber.org/zap"

	"github.com/chazu/meshforge/pkg/cache"
	"github.com/chazu/meshforge/pkg/outcome"
	"github.com/chazu/meshforge/pkg/snapshot"
)

// pass holds the state of one generation pass. Only the goroutine running
// Generate touches it, apart from the read-only part builds.
type pass struct {
	ctx   context.Context
	g     *Generator
	snap  *snapshot.Snapshot
	cache *cache.Cache
	log   *zap.Logger
	res   *Result

	parts     []snapshot.ID
	partDirty map[snapshot.ID]bool
	compDirty map[snapshot.ID]bool
	built     map[snapshot.ID]*cache.GeneratedComponent
	visiting  map[snapshot.ID]bool
}

func newPass(ctx context.Context, g *Generator) *pass {
	return &pass{
		ctx:   ctx,
		g:     g,
		snap:  g.snap,
		cache: g.cache,
		log:   g.log.With(zap.Uint64("pass", g.id)),
		res: &Result{
			ID:              g.id,
			Outcome:         &outcome.Outcome{},
			PartPreviews:    make(map[snapshot.ID]*outcome.Preview),
			PreviewPartIDs:  make(map[snapshot.ID]struct{}),
			DirtyParts:      make(map[snapshot.ID]struct{}),
			DirtyComponents: make(map[snapshot.ID]struct{}),
		},
		partDirty: make(map[snapshot.ID]bool),
		compDirty: make(map[snapshot.ID]bool),
		built:     make(map[snapshot.ID]*cache.GeneratedComponent),
		visiting:  make(map[snapshot.ID]bool),
	}
}

func (p *pass) warn(kind WarningKind, id snapshot.ID, msg string) {
	p.res.Warnings = append(p.res.Warnings, Warning{Kind: kind, ID: id, Message: msg})
	p.log.Warn(msg, zap.Stringer("kind", kind), zap.Stringer("id", id))
}

func (p *pass) fail(f Failure) {
	p.res.Failures = append(p.res.Failures, f)
	p.log.Warn("local failure",
		zap.Stringer("kind", f.Kind),
		zap.Stringer("id", f.ID),
		zap.Stringer("other", f.Other),
		zap.Error(f.Err))
}

// validate reports structural problems. The pass continues regardless;
// invalid references simply contribute no geometry.
func (p *pass) validate() {
	for _, e := range snapshot.Validate(p.snap) {
		p.warn(WarningValidation, e.ElementID, e.Error())
	}
}

// markDirty computes the dirty set. A part is dirty when flagged, never
// built, or its fingerprint differs from the cached one. A component is
// dirty on the same terms or when its part or any child is dirty.
func (p *pass) markDirty() {
	p.parts = p.snap.DescendantParts(snapshot.RootID)
	for _, id := range p.parts {
		if p.partIsDirty(id) {
			p.partDirty[id] = true
			p.res.DirtyParts[id] = struct{}{}
		}
	}
	p.componentIsDirty(snapshot.RootID, make(map[snapshot.ID]bool))
}

func (p *pass) partIsDirty(id snapshot.ID) bool {
	part := p.snap.Parts[id]
	if part == nil {
		return false
	}
	if part.Dirty {
		return true
	}
	cached, ok := p.cache.Part(id)
	return !ok || cached.Fingerprint != p.snap.PartFingerprint(id)
}

func (p *pass) componentIsDirty(id snapshot.ID, stack map[snapshot.ID]bool) bool {
	if d, ok := p.compDirty[id]; ok {
		return d
	}
	c := p.snap.Component(id)
	if c == nil || stack[id] {
		return false
	}
	stack[id] = true
	defer delete(stack, id)

	dirty := c.Dirty
	cached, ok := p.cache.Component(id)
	if !ok || cached.Fingerprint != p.snap.ComponentFingerprint(id) {
		dirty = true
	}
	if c.HasPart() {
		dirty = dirty || p.partDirty[c.LinkToPart]
	} else {
		for _, child := range c.Children {
			if p.componentIsDirty(child, stack) {
				dirty = true
			}
		}
	}
	p.compDirty[id] = dirty
	if dirty {
		p.res.DirtyComponents[id] = struct{}{}
	}
	return dirty
}

// prune drops cache entries for elements that left the document.
func (p *pass) prune() {
	for _, id := range p.cache.PartIDs() {
		if _, ok := p.snap.Parts[id]; !ok {
			p.cache.RemovePart(id)
		}
	}
	for _, id := range p.cache.ComponentIDs() {
		if p.snap.Component(id) == nil {
			p.cache.RemoveComponent(id)
		}
	}
}
