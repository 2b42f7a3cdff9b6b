// Package kernel defines the mesh representation shared by the generator and
// the abstract boolean combination capability. Implementations (bsp, sdfx)
// provide the geometry behind the Combiner interface so the generator can
// swap backends without changing the rest of the system.
package kernel

import "fmt"

// Method is a boolean combination method. Only union and subtract are
// meaningful at the combiner level; other component modes are normalized
// to one of these before a combiner is invoked.
type Method int

const (
	Union Method = iota
	Subtract
)

func (m Method) String() string {
	switch m {
	case Union:
		return "union"
	case Subtract:
		return "subtract"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// Source says which input a combined vertex derives from.
type Source int

const (
	SourceNone Source = iota
	SourceFirst
	SourceSecond
)

func (s Source) String() string {
	switch s {
	case SourceNone:
		return "none"
	case SourceFirst:
		return "first"
	case SourceSecond:
		return "second"
	default:
		return fmt.Sprintf("Source(%d)", int(s))
	}
}

// VertexSource locates the input vertex an output vertex was matched to.
// Index is only meaningful when Source is SourceFirst or SourceSecond.
type VertexSource struct {
	Source Source
	Index  int
}

// Result is the output of one combination.
type Result struct {
	Mesh *Mesh
	// CameFrom is aligned with Mesh.Vertices.
	CameFrom         []VertexSource
	SelfIntersecting bool
}

// Combiner combines two closed meshes.
//
// Combine returns nil only when no result can be produced at all: both
// operands are empty or degenerate, or the first operand of a subtract is
// empty. An empty second operand yields a copy of the first operand for
// either method. Input that is not closed degrades to a best-effort result
// rather than failing. Implementations must not keep state between calls.
type Combiner interface {
	Combine(a, b *Mesh, method Method) *Result
}

// CombinerFunc adapts a function to the Combiner interface.
type CombinerFunc func(a, b *Mesh, method Method) *Result

func (f CombinerFunc) Combine(a, b *Mesh, method Method) *Result {
	return f(a, b, method)
}

// Passthrough handles the operand cases every combiner treats the same way.
// It returns (result, true) when the combination is decided without any
// geometry work.
func Passthrough(a, b *Mesh, method Method) (*Result, bool) {
	aEmpty, bEmpty := a.IsEmpty(), b.IsEmpty()
	switch {
	case aEmpty && bEmpty:
		return nil, true
	case bEmpty:
		return Identity(a, SourceFirst), true
	case aEmpty && method == Union:
		return Identity(b, SourceSecond), true
	case aEmpty:
		return nil, true
	}
	return nil, false
}

// Identity returns a copy of m whose vertices all come from src.
func Identity(m *Mesh, src Source) *Result {
	out := m.Clone()
	cameFrom := make([]VertexSource, len(out.Vertices))
	for i := range cameFrom {
		cameFrom[i] = VertexSource{Source: src, Index: i}
	}
	return &Result{Mesh: out, CameFrom: cameFrom, SelfIntersecting: m.SelfIntersecting}
}

// Concat returns the disjoint union of a and b without any boolean work,
// with a CameFrom report. It is exact when the operands do not overlap.
func Concat(a, b *Mesh) *Result {
	out := &Mesh{
		Vertices: make([]Vec3, 0, len(a.Vertices)+len(b.Vertices)),
		Faces:    make([][]int, 0, len(a.Faces)+len(b.Faces)),
	}
	cameFrom := make([]VertexSource, 0, len(a.Vertices)+len(b.Vertices))
	for i, v := range a.Vertices {
		out.Vertices = append(out.Vertices, v)
		cameFrom = append(cameFrom, VertexSource{Source: SourceFirst, Index: i})
	}
	for i, v := range b.Vertices {
		out.Vertices = append(out.Vertices, v)
		cameFrom = append(cameFrom, VertexSource{Source: SourceSecond, Index: i})
	}
	for _, f := range a.Faces {
		out.Faces = append(out.Faces, append([]int(nil), f...))
	}
	offset := len(a.Vertices)
	for _, f := range b.Faces {
		nf := make([]int, len(f))
		for i, idx := range f {
			nf[i] = idx + offset
		}
		out.Faces = append(out.Faces, nf)
	}
	out.SelfIntersecting = a.SelfIntersecting || b.SelfIntersecting
	return &Result{Mesh: out, CameFrom: cameFrom, SelfIntersecting: out.SelfIntersecting}
}

// Chain tries each combiner in order and returns the first non-nil result.
// It lets an exact backend that declines large input hand over to an
// approximate one.
type Chain []Combiner

func (c Chain) Combine(a, b *Mesh, method Method) *Result {
	for _, combiner := range c {
		if res := combiner.Combine(a, b, method); res != nil {
			return res
		}
	}
	return nil
}
