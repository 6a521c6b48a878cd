package richtext

import (
	"sync"

	farm "github.com/dgryski/go-farm"
)

// Behavior governs how annotations of the same Type resolve against each
// other when projecting the tree to visible spans.
type Behavior uint8

const (
	// Merge keeps the annotation with the greatest RangeLamport among
	// same-type annotations active over a span, dropping the others.
	Merge Behavior = iota
	// AllowMultiple keeps every same-type annotation active over a span.
	AllowMultiple
	// Delete cancels any active Merge-behavior annotation of the same
	// Type whose RangeLamport is less than this one's, within the overlap.
	Delete
)

// Expand controls, per boundary, whether inserts at an annotation's start
// or end join its range. An open start is an After anchor, an open end a
// Before anchor; a pinned boundary uses the other type. See
// SPEC_FULL.md §4.1 for the exact anchor-type mapping and why it departs
// from a naive reading of "Expand::After expands the end".
type Expand uint8

const (
	ExpandNone Expand = iota
	ExpandBefore
	ExpandAfter
	ExpandBoth
)

// Annotation is the shared, immutable-once-registered record describing
// one range annotation. Patches swap the Range/RangeLamport fields under
// the registry's lock rather than mutating a record another goroutine
// might be reading mid-iteration (documents are single-threaded per
// spec, but the lock keeps the struct safe to share across calls).
type Annotation struct {
	ID           OpID
	Range        AnchorRange
	RangeLamport RangeLamport
	Behavior     Behavior
	Type         string
	Value        any
	Deleted      bool
}

// AnnotationRegistry interns Annotation records, assigning each a dense,
// never-reused int32 index starting at 1 (0 is the reserved sentinel
// meaning "no annotation").
type AnnotationRegistry struct {
	mu      sync.RWMutex
	byIdx   []*Annotation // byIdx[0] is always nil (sentinel)
	idToIdx map[OpID]int32

	types     map[uint64][]int32 // farm hash of type string -> candidate dense indices
	typeNames []string
}

// NewAnnotationRegistry returns an empty registry with the sentinel slot
// reserved.
func NewAnnotationRegistry() *AnnotationRegistry {
	return &AnnotationRegistry{
		byIdx:   []*Annotation{nil},
		idToIdx: make(map[OpID]int32),
		types:   make(map[uint64][]int32),
	}
}

// Register interns ann and returns its freshly assigned index.
func (r *AnnotationRegistry) Register(ann *Annotation) int32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := int32(len(r.byIdx))
	r.byIdx = append(r.byIdx, ann)
	r.idToIdx[ann.ID] = idx
	r.internType(ann.Type)
	return idx
}

// Get returns the annotation at idx, or nil if idx is the sentinel or
// out of range.
func (r *AnnotationRegistry) Get(idx int32) *Annotation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if idx <= 0 || int(idx) >= len(r.byIdx) {
		return nil
	}
	return r.byIdx[idx]
}

// IndexOf returns the dense index registered for id, or 0 if none.
func (r *AnnotationRegistry) IndexOf(id OpID) int32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.idToIdx[id]
}

// UpdateRange swaps idx's Range and RangeLamport, used by patch
// application once the caller has already verified the new RangeLamport
// is strictly greater than the current one.
func (r *AnnotationRegistry) UpdateRange(idx int32, newRange AnchorRange, rl RangeLamport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx <= 0 || int(idx) >= len(r.byIdx) || r.byIdx[idx] == nil {
		return
	}
	cp := *r.byIdx[idx]
	cp.Range = newRange
	cp.RangeLamport = rl
	r.byIdx[idx] = &cp
}

// MarkDeleted flags idx as deleted: its anchors have already been
// removed from the tree by the caller.
func (r *AnnotationRegistry) MarkDeleted(idx int32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx <= 0 || int(idx) >= len(r.byIdx) || r.byIdx[idx] == nil {
		return
	}
	cp := *r.byIdx[idx]
	cp.Deleted = true
	r.byIdx[idx] = &cp
}

func (r *AnnotationRegistry) internType(name string) int32 {
	key := farmKey(name)
	for _, idx := range r.types[key] {
		if r.typeNames[idx] == name {
			return idx
		}
	}
	idx := int32(len(r.typeNames))
	r.types[key] = append(r.types[key], idx)
	r.typeNames = append(r.typeNames, name)
	return idx
}

// TypeIndex returns the dense index for an interned type string, or -1
// if it was never registered.
func (r *AnnotationRegistry) TypeIndex(name string) int32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key := farmKey(name)
	for _, idx := range r.types[key] {
		if r.typeNames[idx] == name {
			return idx
		}
	}
	return -1
}

// TypeName returns the interned string for a dense type index.
func (r *AnnotationRegistry) TypeName(idx int32) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if idx < 0 || int(idx) >= len(r.typeNames) {
		return ""
	}
	return r.typeNames[idx]
}

// farmKey hashes a type string with farm hash before the map lookup
// above, giving the interner a fast pre-check for long annotation-type
// names without paying Go's generic string-hashing map overhead twice.
func farmKey(s string) uint64 {
	return farm.Hash64([]byte(s))
}
