package bsp

// node is one level of a BSP tree. Polygons coplanar with the splitting
// plane are stored on the node; the rest go to the front or back subtree.
//
// Every walk below uses an explicit stack: marching cubes surfaces yield
// trees far deeper than the goroutine stack allows for recursion.
type node struct {
	plane    *plane
	front    *node
	back     *node
	polygons []*polygon
}

// job is a pending visit of a subtree with the polygons routed to it.
type job struct {
	n     *node
	polys []*polygon
}

// budget bounds the polygon classifications one boolean may perform.
type budget struct {
	left int
}

// spend charges n classifications and reports whether the budget holds.
func (b *budget) spend(n int) bool {
	b.left -= n
	return b.left >= 0
}

func (b *budget) exhausted() bool {
	return b.left < 0
}

func newNode(polygons []*polygon, b *budget) *node {
	n := &node{}
	n.build(polygons, b)
	return n
}

// nodes lists n and all of its descendants.
func (n *node) nodes() []*node {
	var out []*node
	stack := []*node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, cur)
		if cur.back != nil {
			stack = append(stack, cur.back)
		}
		if cur.front != nil {
			stack = append(stack, cur.front)
		}
	}
	return out
}

// invert converts solid space to empty space and back.
func (n *node) invert() {
	for _, cur := range n.nodes() {
		for _, p := range cur.polygons {
			p.flip()
		}
		if cur.plane != nil {
			flipped := cur.plane.flip()
			cur.plane = &flipped
		}
		cur.front, cur.back = cur.back, cur.front
	}
}

// clipPolygons removes the parts of polygons that lie inside this tree.
func (n *node) clipPolygons(polygons []*polygon, b *budget) []*polygon {
	if n.plane == nil {
		return append([]*polygon(nil), polygons...)
	}
	var out []*polygon
	stack := []job{{n, polygons}}
	for len(stack) > 0 {
		j := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if len(j.polys) == 0 {
			continue
		}
		if !b.spend(len(j.polys)) {
			return nil
		}
		var fronts, backs []*polygon
		for _, p := range j.polys {
			j.n.plane.split(p, &fronts, &backs, &fronts, &backs)
		}
		if j.n.front != nil {
			stack = append(stack, job{j.n.front, fronts})
		} else {
			out = append(out, fronts...)
		}
		// Without a back subtree the back half space is solid.
		if j.n.back != nil {
			stack = append(stack, job{j.n.back, backs})
		}
	}
	return out
}

// clipTo removes every polygon of this tree that lies inside other.
func (n *node) clipTo(other *node, b *budget) {
	for _, cur := range n.nodes() {
		if b.exhausted() {
			return
		}
		cur.polygons = other.clipPolygons(cur.polygons, b)
	}
}

func (n *node) allPolygons() []*polygon {
	var out []*polygon
	for _, cur := range n.nodes() {
		out = append(out, cur.polygons...)
	}
	return out
}

// build inserts polygons into the tree. Empty nodes take the splitting
// plane chosen by choosePlane.
func (n *node) build(polygons []*polygon, b *budget) {
	stack := []job{{n, polygons}}
	for len(stack) > 0 {
		j := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if len(j.polys) == 0 {
			continue
		}
		if !b.spend(len(j.polys)) {
			return
		}
		if j.n.plane == nil {
			pl := choosePlane(j.polys)
			j.n.plane = &pl
		}
		var fronts, backs []*polygon
		for _, p := range j.polys {
			j.n.plane.split(p, &j.n.polygons, &j.n.polygons, &fronts, &backs)
		}
		if len(fronts) > 0 {
			if j.n.front == nil {
				j.n.front = &node{}
			}
			stack = append(stack, job{j.n.front, fronts})
		}
		if len(backs) > 0 {
			if j.n.back == nil {
				j.n.back = &node{}
			}
			stack = append(stack, job{j.n.back, backs})
		}
	}
}

const (
	planeCandidates = 16
	planeSamples    = 64
	// splitCost weighs a split against one polygon of imbalance.
	splitCost = 8
)

// choosePlane picks the splitting plane among a few evenly spaced
// polygons, preferring few splits and a balanced partition. The chosen
// plane always belongs to one of polygons, so that polygon lands on the
// node and every level makes progress.
func choosePlane(polygons []*polygon) plane {
	if len(polygons) <= 2 {
		return polygons[0].plane
	}
	candStep := max(1, len(polygons)/planeCandidates)
	sampleStep := max(1, len(polygons)/planeSamples)

	best, bestScore := polygons[0].plane, -1
	for i := 0; i < len(polygons); i += candStep {
		pl := polygons[i].plane
		var fronts, backs, splits int
		for k := 0; k < len(polygons); k += sampleStep {
			switch pl.classify(polygons[k]) {
			case front:
				fronts++
			case back:
				backs++
			case spanning:
				splits++
			}
		}
		score := splitCost*splits + abs(fronts-backs)
		if bestScore < 0 || score < bestScore {
			best, bestScore = pl, score
		}
	}
	return best
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
