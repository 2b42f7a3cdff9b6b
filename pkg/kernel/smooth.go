package kernel

import "slices"

// LaplacianSmooth moves every vertex toward the average of its neighbours.
// weights is aligned with m.Vertices; a weight of 0 pins the vertex and 1
// moves it all the way to the neighbour average. The mesh is modified in
// place for the given number of iterations.
func LaplacianSmooth(m *Mesh, weights []float64, iterations int) {
	if m.IsEmpty() || iterations <= 0 {
		return
	}
	neighbours := make([]map[int]struct{}, len(m.Vertices))
	for _, f := range m.Faces {
		for i := range f {
			a, b := f[i], f[(i+1)%len(f)]
			if neighbours[a] == nil {
				neighbours[a] = make(map[int]struct{})
			}
			if neighbours[b] == nil {
				neighbours[b] = make(map[int]struct{})
			}
			neighbours[a][b] = struct{}{}
			neighbours[b][a] = struct{}{}
		}
	}

	// Sorted so the summation order, and therefore the result, is stable.
	adjacency := make([][]int, len(m.Vertices))
	for i, set := range neighbours {
		for n := range set {
			adjacency[i] = append(adjacency[i], n)
		}
		slices.Sort(adjacency[i])
	}

	next := make([]Vec3, len(m.Vertices))
	for it := 0; it < iterations; it++ {
		for i, v := range m.Vertices {
			w := weights[i]
			if w <= 0 || len(adjacency[i]) == 0 {
				next[i] = v
				continue
			}
			var avg Vec3
			for _, n := range adjacency[i] {
				avg = avg.Add(m.Vertices[n])
			}
			avg = avg.Scale(1 / float64(len(adjacency[i])))
			next[i] = v.Lerp(avg, w)
		}
		copy(m.Vertices, next)
	}
}
