package engine

import (
	"fmt"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/meshforge/pkg/geom"
	"github.com/chazu/meshforge/pkg/snapshot"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms scene source code before passing it to
// zygomys. It performs two transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: cut-face -> cut_face
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). This converts kebab-case identifiers
//     to underscore form outside of strings and comments.
//
// Both transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments for zygomys.
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			// Skip additional ; characters (;; style).
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			// Check for keyword: colon followed by a letter.
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpVec3 wraps a geom.Vec3.
type sexpVec3 struct {
	vec geom.Vec3
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpNode is a skeleton node waiting to be claimed by a defpart.
type sexpNode struct {
	name        string
	position    geom.Vec3
	radius      float64
	cutRotation float64
	cutFace     string
}

func (n *sexpNode) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(node %q :radius %g)", n.name, n.radius)
}
func (n *sexpNode) Type() *zygo.RegisteredType { return nil }

// sexpEdge joins two nodes of the enclosing defpart by name.
type sexpEdge struct {
	from, to string
}

func (e *sexpEdge) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(edge %q %q)", e.from, e.to)
}
func (e *sexpEdge) Type() *zygo.RegisteredType { return nil }

// sexpComponent refers to a component of the scene under construction:
// the leaf component of a defpart or a grouping component.
type sexpComponent struct {
	id   snapshot.ID
	name string
}

func (c *sexpComponent) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(component %q)", c.name)
}
func (c *sexpComponent) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Keyword at end with no value: treat as flag with nil.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

func toInt(s zygo.Sexp) (int, error) {
	if v, ok := s.(*zygo.SexpInt); ok {
		return int(v.Val), nil
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

// toBool accepts true/false. A bare flag keyword counts as true.
func toBool(s zygo.Sexp) (bool, error) {
	switch v := s.(type) {
	case *zygo.SexpBool:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return true, nil
		}
	}
	return false, fmt.Errorf("expected boolean, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_low) and plain strings ("low").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], nil
	}
	return str.S, nil
}

// toVec3 extracts a Vec3 from a sexpVec3.
func toVec3(s zygo.Sexp) (geom.Vec3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return geom.Vec3{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// flatten expands list and array arguments one level, so that children
// can be passed either inline or as a (list ...).
func flatten(args []zygo.Sexp) ([]zygo.Sexp, error) {
	var out []zygo.Sexp
	for _, a := range args {
		switch a.(type) {
		case *zygo.SexpPair, *zygo.SexpArray:
			items, err := sexpListToSlice(a)
			if err != nil {
				return nil, err
			}
			out = append(out, items...)
		default:
			out = append(out, a)
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Settings
// ---------------------------------------------------------------------------

// applyPartSettings reads the part keywords of a defpart.
func applyPartSettings(p *snapshot.Part, kw map[string]zygo.Sexp) error {
	bools := []struct {
		key string
		dst *bool
	}{
		{"mirror", &p.XMirrored},
		{"disabled", &p.Disabled},
		{"subdivided", &p.Subdivided},
		{"rounded", &p.Rounded},
	}
	for _, b := range bools {
		if v, ok := kw[b.key]; ok {
			val, err := toBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", b.key, err)
			}
			*b.dst = val
		}
	}
	if v, ok := kw["cut-face"]; ok {
		s, err := toKeywordString(v)
		if err != nil {
			return fmt.Errorf("cut-face: %w", err)
		}
		p.CutFace = s
	}
	if v, ok := kw["cut-rotation"]; ok {
		f, err := toFloat64(v)
		if err != nil {
			return fmt.Errorf("cut-rotation: %w", err)
		}
		p.CutRotation = f
	}
	if v, ok := kw["color"]; ok {
		s, err := toString(v)
		if err != nil {
			return fmt.Errorf("color: %w", err)
		}
		p.Color = s
	}
	return nil
}

// applyComponentSettings reads the component keywords shared by defpart
// and component.
func applyComponentSettings(c *snapshot.Component, kw map[string]zygo.Sexp) error {
	if v, ok := kw["combine"]; ok {
		s, err := toKeywordString(v)
		if err != nil {
			return fmt.Errorf("combine: %w", err)
		}
		if c.CombineMode, err = snapshot.ParseCombineMode(s); err != nil {
			return fmt.Errorf("combine: %w", err)
		}
	}
	if v, ok := kw["polycount"]; ok {
		s, err := toKeywordString(v)
		if err != nil {
			return fmt.Errorf("polycount: %w", err)
		}
		if c.PolyCount, err = snapshot.ParsePolyCount(s); err != nil {
			return fmt.Errorf("polycount: %w", err)
		}
	}
	if v, ok := kw["layer"]; ok {
		s, err := toKeywordString(v)
		if err != nil {
			return fmt.Errorf("layer: %w", err)
		}
		if c.Layer, err = snapshot.ParseLayer(s); err != nil {
			return fmt.Errorf("layer: %w", err)
		}
	}
	if v, ok := kw["cloth-force"]; ok {
		s, err := toKeywordString(v)
		if err != nil {
			return fmt.Errorf("cloth-force: %w", err)
		}
		if c.ClothForce, err = snapshot.ParseClothForce(s); err != nil {
			return fmt.Errorf("cloth-force: %w", err)
		}
	}
	floats := []struct {
		key string
		set func(float64)
	}{
		{"smooth-all", c.SetSmoothAll},
		{"smooth-seam", c.SetSmoothSeam},
		{"cloth-stiffness", func(f float64) { c.ClothStiffness = f }},
		{"cloth-offset", func(f float64) { c.ClothOffset = f }},
	}
	for _, f := range floats {
		if v, ok := kw[f.key]; ok {
			val, err := toFloat64(v)
			if err != nil {
				return fmt.Errorf("%s: %w", f.key, err)
			}
			f.set(val)
		}
	}
	if v, ok := kw["cloth-iteration"]; ok {
		n, err := toInt(v)
		if err != nil {
			return fmt.Errorf("cloth-iteration: %w", err)
		}
		if n < 0 {
			return fmt.Errorf("cloth-iteration: must not be negative, got %d", n)
		}
		c.ClothIteration = n
	}
	return nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the scene DSL builtins into a zygomys
// environment. The builtins populate the scene builder during evaluation.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, b *sceneBuilder) {

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var xyz [3]float64
		for i, axis := range []string{"x", "y", "z"} {
			f, err := toFloat64(args[i])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %s: %w", axis, err)
			}
			xyz[i] = f
		}
		return &sexpVec3{vec: geom.V(xyz[0], xyz[1], xyz[2])}, nil
	})

	// -----------------------------------------------------------------------
	// (node "head" :at (vec3 0 1 0) :radius 0.5 :cut-rotation 0 :cut-face :round)
	// -----------------------------------------------------------------------
	env.AddFunction("node", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("node requires a name argument")
		}
		nodeName, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("node: name: %w", err)
		}
		n := &sexpNode{name: nodeName, radius: DefaultNodeRadius}
		if v, ok := pa.kw["at"]; ok {
			if n.position, err = toVec3(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("node %q: at: %w", nodeName, err)
			}
		}
		if v, ok := pa.kw["radius"]; ok {
			if n.radius, err = toFloat64(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("node %q: radius: %w", nodeName, err)
			}
		}
		if v, ok := pa.kw["cut-rotation"]; ok {
			if n.cutRotation, err = toFloat64(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("node %q: cut-rotation: %w", nodeName, err)
			}
		}
		if v, ok := pa.kw["cut-face"]; ok {
			if n.cutFace, err = toKeywordString(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("node %q: cut-face: %w", nodeName, err)
			}
		}
		return n, nil
	})

	// -----------------------------------------------------------------------
	// (edge "head" "neck")
	// -----------------------------------------------------------------------
	env.AddFunction("edge", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("edge requires exactly 2 node names, got %d", len(args))
		}
		from, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("edge: from: %w", err)
		}
		to, err := toString(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("edge: to: %w", err)
		}
		if from == to {
			return zygo.SexpNull, fmt.Errorf("edge: %q cannot join itself", from)
		}
		return &sexpEdge{from: from, to: to}, nil
	})

	// -----------------------------------------------------------------------
	// (defpart "arm" :mirror true :combine :normal (node ...) (edge ...))
	// -----------------------------------------------------------------------
	env.AddFunction("defpart", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("defpart requires a name argument")
		}
		partName, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("defpart: name: %w", err)
		}
		body, err := flatten(pa.positional[1:])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("defpart %q: %w", partName, err)
		}

		var nodes []*sexpNode
		var edges []*sexpEdge
		for i, item := range body {
			switch v := item.(type) {
			case *sexpNode:
				nodes = append(nodes, v)
			case *sexpEdge:
				edges = append(edges, v)
			default:
				return zygo.SexpNull, fmt.Errorf("defpart %q: item %d: expected node or edge, got %T (%s)",
					partName, i+1, item, item.SexpString(nil))
			}
		}

		ref, err := b.definePart(partName, nodes, edges, pa.kw)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("defpart %q: %w", partName, err)
		}
		return ref, nil
	})

	// -----------------------------------------------------------------------
	// (part "arm")
	// -----------------------------------------------------------------------
	env.AddFunction("part", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 {
			return zygo.SexpNull, fmt.Errorf("part requires a name argument")
		}
		partName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("part: name: %w", err)
		}
		ref, ok := b.parts[partName]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("part: no part named %q", partName)
		}
		return ref, nil
	})

	// -----------------------------------------------------------------------
	// (component "body" :combine :inversion :smooth-all 0.5 child ...)
	// -----------------------------------------------------------------------
	env.AddFunction("component", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("component requires a name argument")
		}
		compName, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("component: name: %w", err)
		}
		children, err := toChildren(pa.positional[1:])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("component %q: %w", compName, err)
		}
		ref, err := b.defineComponent(compName, children, pa.kw)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("component %q: %w", compName, err)
		}
		return ref, nil
	})

	// -----------------------------------------------------------------------
	// (scene :x-mirror true child ...)
	// -----------------------------------------------------------------------
	env.AddFunction("scene", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		children, err := toChildren(pa.positional)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("scene: %w", err)
		}
		xMirror := false
		if v, ok := pa.kw["x-mirror"]; ok {
			if xMirror, err = toBool(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("scene: x-mirror: %w", err)
			}
		}
		if err := b.defineScene(xMirror, children); err != nil {
			return zygo.SexpNull, fmt.Errorf("scene: %w", err)
		}
		return zygo.SexpNull, nil
	})
}

func toChildren(args []zygo.Sexp) ([]*sexpComponent, error) {
	items, err := flatten(args)
	if err != nil {
		return nil, err
	}
	out := make([]*sexpComponent, 0, len(items))
	for i, item := range items {
		ref, ok := item.(*sexpComponent)
		if !ok {
			return nil, fmt.Errorf("child %d: expected part or component, got %T (%s)",
				i+1, item, item.SexpString(nil))
		}
		out = append(out, ref)
	}
	return out, nil
}
