package engine

import (
	"strings"
	"testing"

	"github.com/chazu/meshforge/pkg/geom"
	"github.com/chazu/meshforge/pkg/snapshot"
)

// ---------------------------------------------------------------------------
// Preprocessing tests
// ---------------------------------------------------------------------------

func TestPreprocessKeywords(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "simple keyword",
			input:  `(node "a" :radius 1)`,
			expect: `(node "a" "__kw_radius" 1)`,
		},
		{
			name:   "keyword value",
			input:  `(component "c" :combine :inversion)`,
			expect: `(component "c" "__kw_combine" "__kw_inversion")`,
		},
		{
			name:   "keyword in string preserved",
			input:  `"thing with :keyword inside"`,
			expect: `"thing with :keyword inside"`,
		},
		{
			name:   "assignment operator preserved",
			input:  `(def x := 10)`,
			expect: `(def x := 10)`,
		},
		{
			name:   "kebab-case identifier",
			input:  `(my-part :cut-face ref)`,
			expect: `(my_part "__kw_cut-face" ref)`,
		},
		{
			name:   "minus operator preserved",
			input:  `(- 10 5)`,
			expect: `(- 10 5)`,
		},
		{
			name:   "comment converted to // style",
			input:  `;; comment with :keyword`,
			expect: `// comment with :keyword`,
		},
		{
			name:   "hyphen in keyword preserved",
			input:  `:very-low`,
			expect: `"__kw_very-low"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := preprocessSource(tt.input)
			if got != tt.expect {
				t.Errorf("preprocessSource(%q) = %q, want %q", tt.input, got, tt.expect)
			}
		})
	}
}

func evaluate(t *testing.T, source string) *snapshot.Snapshot {
	t.Helper()
	s, evalErrs, err := NewEngine().Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	if s == nil {
		t.Fatal("expected non-nil snapshot")
	}
	return s
}

func evaluateFails(t *testing.T, source, want string) {
	t.Helper()
	s, evalErrs, err := NewEngine().Evaluate(source)
	if err != nil {
		t.Fatalf("expected eval error, got fatal: %v", err)
	}
	if s != nil {
		t.Fatal("expected nil snapshot")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected eval errors")
	}
	var msgs []string
	for _, e := range evalErrs {
		msgs = append(msgs, e.Message)
	}
	if joined := strings.Join(msgs, "\n"); !strings.Contains(joined, want) {
		t.Errorf("errors %q do not mention %q", joined, want)
	}
}

// ---------------------------------------------------------------------------
// Scene tests
// ---------------------------------------------------------------------------

func TestDefpart(t *testing.T) {
	s := evaluate(t, `
(defpart "arm" :mirror true :subdivided true :cut-face :round :color "#ff0000"
  (node "shoulder" :at (vec3 1 2 0) :radius 0.4)
  (node "hand" :at (vec3 3 2 0) :radius 0.2 :cut-rotation 0.5)
  (edge "shoulder" "hand"))
`)
	partID := snapshot.NameID("part", "arm")
	part := s.Parts[partID]
	if part == nil {
		t.Fatal("expected part named 'arm'")
	}
	if !part.XMirrored || !part.Subdivided || part.Rounded || part.Disabled {
		t.Errorf("unexpected flags: %+v", part.Settings())
	}
	if part.CutFace != "round" {
		t.Errorf("cut-face = %q, want round", part.CutFace)
	}
	if part.Color != "#ff0000" {
		t.Errorf("color = %q", part.Color)
	}

	nodes := s.PartNodes(partID)
	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(nodes))
	}
	hand := s.Nodes[snapshot.NameID("node", "arm/hand")]
	if hand == nil {
		t.Fatal("expected node 'hand'")
	}
	if !hand.Position.ApproxEqual(geom.V(3, 2, 0), 0) || hand.Radius != 0.2 || hand.CutRotation != 0.5 {
		t.Errorf("unexpected hand node: %+v", hand)
	}

	edges := s.PartEdges(partID)
	if len(edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(edges))
	}
	if edges[0].To != hand.ID {
		t.Errorf("edge should end at hand")
	}

	// Without a scene form the leaf component hangs off the root.
	if len(s.Root.Children) != 1 {
		t.Fatalf("expected 1 root child, got %d", len(s.Root.Children))
	}
	leaf := s.Component(s.Root.Children[0])
	if leaf.LinkToPart != partID || leaf.Name != "arm" {
		t.Errorf("unexpected leaf component: %+v", leaf)
	}
	if errs := snapshot.Validate(s); snapshot.HasErrors(errs) {
		t.Errorf("scene does not validate: %v", errs)
	}
}

func TestNodeDefaultRadius(t *testing.T) {
	s := evaluate(t, `(defpart "blob" (node "n"))`)
	n := s.Nodes[snapshot.NameID("node", "blob/n")]
	if n == nil || n.Radius != DefaultNodeRadius {
		t.Fatalf("expected default radius, got %+v", n)
	}
}

func TestComponentTree(t *testing.T) {
	s := evaluate(t, `
(def body (defpart "body" (node "c" :radius 1)))
(defpart "hole" :combine :inversion (node "c" :radius 0.5))
(defpart "cape" :layer :cloth :cloth-stiffness 0.3 :cloth-iteration 50 :cloth-force :centripetal
  (node "c" :at (vec3 0 -1 0)))

(scene :x-mirror true
  (component "torso" :smooth-all 0.5 :smooth-seam 2 :polycount :very-low
    body
    (part "hole"))
  (part "cape"))
`)
	if !s.XMirror {
		t.Error("expected x-mirror")
	}
	if len(s.Root.Children) != 2 {
		t.Fatalf("expected 2 root children, got %d", len(s.Root.Children))
	}

	torso := s.Component(snapshot.NameID("component", "torso"))
	if torso == nil {
		t.Fatal("expected component 'torso'")
	}
	if s.Root.Children[0] != torso.ID {
		t.Error("torso should be the first root child")
	}
	if torso.SmoothAll != 0.5 || torso.SmoothSeam != 1 {
		t.Errorf("smoothing = %v/%v, want 0.5/1 (clamped)", torso.SmoothAll, torso.SmoothSeam)
	}
	if torso.PolyCount != snapshot.PolyCountVeryLow {
		t.Errorf("polycount = %s", torso.PolyCount)
	}
	if len(torso.Children) != 2 {
		t.Fatalf("expected 2 torso children, got %d", len(torso.Children))
	}
	hole := s.Component(torso.Children[1])
	if hole.CombineMode != snapshot.CombineInversion || hole.Parent != torso.ID {
		t.Errorf("unexpected hole component: %+v", hole)
	}

	cape := s.Component(s.Root.Children[1])
	if !cape.IsCloth() || cape.ClothStiffness != 0.3 || cape.ClothIteration != 50 ||
		cape.ClothForce != snapshot.ClothForceCentripetal {
		t.Errorf("unexpected cape settings: %+v", cape.Settings())
	}

	parts := s.DescendantParts(snapshot.RootID)
	if len(parts) != 3 {
		t.Errorf("expected 3 reachable parts, got %d", len(parts))
	}
}

func TestChildrenFromList(t *testing.T) {
	s := evaluate(t, `
(defpart "a" (node "n"))
(defpart "b" (node "n"))
(scene (list (part "a") (part "b")))
`)
	if len(s.Root.Children) != 2 {
		t.Fatalf("expected 2 root children, got %d", len(s.Root.Children))
	}
}

func TestSceneErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"duplicate part", `(defpart "a" (node "n")) (defpart "a" (node "n"))`, "already defined"},
		{"duplicate node", `(defpart "a" (node "n") (node "n"))`, "declared twice"},
		{"unknown edge node", `(defpart "a" (node "n") (edge "n" "m"))`, `no node named "m"`},
		{"self edge", `(defpart "a" (node "n") (edge "n" "n"))`, "cannot join itself"},
		{"bad radius", `(defpart "a" (node "n" :radius 0))`, "radius must be positive"},
		{"bad combine", `(defpart "a" :combine :sideways (node "n"))`, "unknown combine mode"},
		{"bad polycount", `(component "c" :polycount :lots)`, "unknown polycount"},
		{"unknown part", `(part "ghost")`, `no part named "ghost"`},
		{"two parents", `
(def a (defpart "a" (node "n")))
(component "x" a)
(component "y" a)`, "already has a parent"},
		{"bad child", `(component "c" 42)`, "expected part or component"},
		{"bad vec3", `(node "n" :at (vec3 1 2))`, "exactly 3 arguments"},
		{"two scenes", `(scene) (scene)`, "scene already defined"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evaluateFails(t, tt.source, tt.want)
		})
	}
}

func TestSceneIDsAreStable(t *testing.T) {
	src := `(scene (component "g" (defpart "a" (node "n" :radius 2))))`
	s1 := evaluate(t, src)
	s2 := evaluate(t, strings.Replace(src, ":radius 2", ":radius 3", 1))

	partID := snapshot.NameID("part", "a")
	if s1.PartFingerprint(partID) == s2.PartFingerprint(partID) {
		t.Error("editing a radius should change the part fingerprint")
	}
	gID := snapshot.NameID("component", "g")
	if s1.ComponentFingerprint(gID) != s2.ComponentFingerprint(gID) {
		t.Error("the grouping component did not change")
	}
}
