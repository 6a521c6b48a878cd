package richtext

import "sort"

// StyleCalculator tracks the running set of active annotation indices
// while a traversal walks pieces in tree order. ApplyStart is invoked on
// entering a piece, ApplyEnd on leaving it; see SPEC_FULL.md §4.1 for why
// that entering/leaving asymmetry is exactly what makes the Expand
// mapping reproduce the documented trailing-insert scenarios with no
// special-casing at insert time.
type StyleCalculator struct {
	registry *AnnotationRegistry
	active   map[int32]struct{}
}

// NewStyleCalculator returns a calculator with no active annotations,
// seeded optionally with indices that are open from the document start
// (annotations whose start anchor is the document-start boundary).
func NewStyleCalculator(registry *AnnotationRegistry, openFromStart []int32) *StyleCalculator {
	c := &StyleCalculator{registry: registry, active: make(map[int32]struct{})}
	for _, idx := range openFromStart {
		c.active[idx] = struct{}{}
	}
	return c
}

// ApplyStart unions start_at_start and subtracts end_at_start, in that
// order, so an annotation that both opens and closes at the same
// boundary ends up inactive.
func (c *StyleCalculator) ApplyStart(set *ElemAnchorSet) {
	set.StartAtStart.Each(func(idx int32) { c.active[idx] = struct{}{} })
	set.EndAtStart.Each(func(idx int32) { delete(c.active, idx) })
}

// ApplyEnd unions start_at_end and subtracts end_at_end.
func (c *StyleCalculator) ApplyEnd(set *ElemAnchorSet) {
	set.StartAtEnd.Each(func(idx int32) { c.active[idx] = struct{}{} })
	set.EndAtEnd.Each(func(idx int32) { delete(c.active, idx) })
}

// Snapshot returns the current active indices, sorted for deterministic
// comparison (used to detect span boundaries).
func (c *StyleCalculator) Snapshot() []int32 {
	out := make([]int32, 0, len(c.active))
	for idx := range c.active {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Resolve projects the current active set to the annotations that are
// actually visible, applying the same-Type conflict rules of spec §4.6:
// Merge keeps the greatest RangeLamport of its type; AllowMultiple always
// survives; Delete cancels a same-type Merge winner with a lesser
// RangeLamport.
func (c *StyleCalculator) Resolve() []*Annotation {
	byType := make(map[string][]*Annotation)
	for idx := range c.active {
		ann := c.registry.Get(idx)
		if ann == nil || ann.Deleted {
			continue
		}
		byType[ann.Type] = append(byType[ann.Type], ann)
	}

	var out []*Annotation
	for _, group := range byType {
		var mergeWinner *Annotation
		var deletes []*Annotation
		for _, ann := range group {
			switch ann.Behavior {
			case Merge:
				if mergeWinner == nil || mergeWinner.RangeLamport.Less(ann.RangeLamport) {
					mergeWinner = ann
				}
			case AllowMultiple:
				out = append(out, ann)
			case Delete:
				deletes = append(deletes, ann)
			}
		}
		if mergeWinner != nil {
			cancelled := false
			for _, d := range deletes {
				if mergeWinner.RangeLamport.Less(d.RangeLamport) {
					cancelled = true
					break
				}
			}
			if !cancelled {
				out = append(out, mergeWinner)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID.Less(out[j].ID) })
	return out
}

// SameActiveSet reports whether two resolved-annotation slices (as
// returned by Resolve) describe the same visible set, used to decide
// whether two adjacent spans should coalesce.
func SameActiveSet(a, b []*Annotation) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
