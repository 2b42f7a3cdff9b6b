package snapshot

import (
	"fmt"
	"sort"
)

// ValidationSeverity indicates whether a validation finding makes the
// snapshot unusable or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // geometry would be wrong
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding. ElementID is the
// component, part, node or edge the finding is about.
type ValidationError struct {
	ElementID ID
	Message   string
	Severity  ValidationSeverity
}

func (e ValidationError) Error() string {
	if e.ElementID == RootID {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Severity, short(e.ElementID), e.Message)
}

// HasErrors reports whether any finding has error severity.
func HasErrors(errs []ValidationError) bool {
	for _, e := range errs {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate runs the structural checks on the snapshot and returns every
// finding in a stable order. An empty slice means the snapshot is valid.
// It never mutates the snapshot.
func Validate(s *Snapshot) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateTree(s)...)
	errs = append(errs, validateComponents(s)...)
	errs = append(errs, validateSkeleton(s)...)
	return errs
}

// validateTree checks for cycles using DFS with 3-color marking.
func validateTree(s *Snapshot) []ValidationError {
	const (
		white = iota
		gray
		black
	)
	color := make(map[ID]int)
	var errs []ValidationError

	var visit func(id ID) bool
	visit = func(id ID) bool {
		switch color[id] {
		case black:
			return false
		case gray:
			errs = append(errs, ValidationError{
				ElementID: id,
				Message:   "component is part of a cycle",
				Severity:  SeverityError,
			})
			return true
		}
		color[id] = gray
		c := s.Component(id)
		if c == nil {
			color[id] = black
			return false
		}
		for _, child := range c.Children {
			if visit(child) {
				return true
			}
		}
		color[id] = black
		return false
	}

	if visit(RootID) {
		return errs
	}
	for _, id := range sortedIDs(s.Components) {
		if color[id] == white && visit(id) {
			break
		}
	}
	return errs
}

func validateComponents(s *Snapshot) []ValidationError {
	var errs []ValidationError
	check := func(c *Component) {
		seen := make(map[ID]bool, len(c.Children))
		for _, child := range c.Children {
			if seen[child] {
				errs = append(errs, ValidationError{
					ElementID: c.ID,
					Message:   fmt.Sprintf("duplicate child %s", short(child)),
					Severity:  SeverityError,
				})
			}
			seen[child] = true
			cc := s.Components[child]
			if cc == nil {
				errs = append(errs, ValidationError{
					ElementID: c.ID,
					Message:   fmt.Sprintf("child reference %s does not exist", short(child)),
					Severity:  SeverityError,
				})
				continue
			}
			if cc.Parent != c.ID {
				errs = append(errs, ValidationError{
					ElementID: child,
					Message:   fmt.Sprintf("parent is %s but listed under %s", short(cc.Parent), short(c.ID)),
					Severity:  SeverityWarning,
				})
			}
		}
		if c.HasPart() {
			if _, ok := s.Parts[c.LinkToPart]; !ok {
				errs = append(errs, ValidationError{
					ElementID: c.ID,
					Message:   fmt.Sprintf("linked part %s does not exist", short(c.LinkToPart)),
					Severity:  SeverityError,
				})
			}
			if len(c.Children) > 0 {
				errs = append(errs, ValidationError{
					ElementID: c.ID,
					Message:   "component links a part and has children; children are ignored",
					Severity:  SeverityWarning,
				})
			}
		}
	}
	check(s.Root)
	for _, id := range sortedIDs(s.Components) {
		check(s.Components[id])
	}
	return errs
}

func validateSkeleton(s *Snapshot) []ValidationError {
	var errs []ValidationError
	for _, id := range sortedIDs(s.Nodes) {
		n := s.Nodes[id]
		if _, ok := s.Parts[n.PartID]; !ok {
			errs = append(errs, ValidationError{
				ElementID: id,
				Message:   fmt.Sprintf("node part %s does not exist", short(n.PartID)),
				Severity:  SeverityError,
			})
		}
		if n.Radius <= 0 {
			errs = append(errs, ValidationError{
				ElementID: id,
				Message:   fmt.Sprintf("node radius %g is not positive", n.Radius),
				Severity:  SeverityWarning,
			})
		}
	}
	for _, id := range sortedIDs(s.Edges) {
		e := s.Edges[id]
		for _, end := range []ID{e.From, e.To} {
			n, ok := s.Nodes[end]
			if !ok {
				errs = append(errs, ValidationError{
					ElementID: id,
					Message:   fmt.Sprintf("edge node %s does not exist", short(end)),
					Severity:  SeverityError,
				})
				continue
			}
			if n.PartID != e.PartID {
				errs = append(errs, ValidationError{
					ElementID: id,
					Message:   fmt.Sprintf("edge node %s belongs to another part", short(end)),
					Severity:  SeverityError,
				})
			}
		}
	}
	return errs
}

func sortedIDs[V any](m map[ID]V) []ID {
	ids := make([]ID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return lessID(ids[i], ids[j]) })
	return ids
}

func short(id ID) string {
	return id.String()[:8]
}
