package meshgen

import (
	"fmt"
	"time"

	"github.com/chazu/meshforge/pkg/outcome"
	"github.com/chazu/meshforge/pkg/snapshot"
)

// FailureKind classifies a local failure inside a pass.
type FailureKind int

const (
	// FailureBuild means a part's raw mesh could not be constructed.
	FailureBuild FailureKind = iota
	// FailureCombine means the combiner produced no result for a pair.
	FailureCombine
)

func (k FailureKind) String() string {
	switch k {
	case FailureBuild:
		return "build"
	case FailureCombine:
		return "combine"
	default:
		return fmt.Sprintf("FailureKind(%d)", int(k))
	}
}

// Failure is a contained failure. The pass continued around it.
type Failure struct {
	Kind FailureKind
	// ID is the part or component whose rebuild failed.
	ID snapshot.ID
	// Other is the child being merged for combine failures.
	Other snapshot.ID
	Err   error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s failure on %s: %v", f.Kind, f.ID, f.Err)
}

// WarningKind classifies a non-fatal quality finding.
type WarningKind int

const (
	WarningSelfIntersection WarningKind = iota
	WarningRemeshFallback
	WarningSkippedSubtract
	WarningValidation
	WarningCycle
)

func (k WarningKind) String() string {
	switch k {
	case WarningSelfIntersection:
		return "self-intersection"
	case WarningRemeshFallback:
		return "remesh-fallback"
	case WarningSkippedSubtract:
		return "skipped-subtract"
	case WarningValidation:
		return "validation"
	case WarningCycle:
		return "cycle"
	default:
		return fmt.Sprintf("WarningKind(%d)", int(k))
	}
}

// Warning is a non-fatal diagnostic.
type Warning struct {
	Kind    WarningKind
	ID      snapshot.ID
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s on %s: %s", w.Kind, w.ID, w.Message)
}

// Stats counts the work done by a pass.
type Stats struct {
	PartsBuilt         int
	ComponentsCombined int
	Combinations       int
	CombinationHits    int
	Remeshes           int
	ClothBodies        int
	Duration           time.Duration
}

// Result is what a pass hands to its caller. The generator keeps no
// reference to it once delivered.
type Result struct {
	ID        uint64
	Outcome   *outcome.Outcome
	Succeeded bool
	// PartPreviews holds a preview for every generated part.
	PartPreviews map[snapshot.ID]*outcome.Preview
	// PreviewPartIDs are the parts whose preview was rebuilt this pass.
	PreviewPartIDs  map[snapshot.ID]struct{}
	Warnings        []Warning
	Failures        []Failure
	Stats           Stats
	// DirtyParts and DirtyComponents are the elements this pass rebuilt.
	DirtyParts      map[snapshot.ID]struct{}
	DirtyComponents map[snapshot.ID]struct{}
}

// ClearDirty resets the dirty flags this pass consumed on the snapshot it
// was generated from. Owners call it once the result is known to be
// current, so that flagged elements are not rebuilt again.
func (r *Result) ClearDirty(s *snapshot.Snapshot) {
	s.ClearDirty(r.DirtyParts, r.DirtyComponents)
}
