// Package richtext implements a Conflict-free Replicated Data Type for
// collaboratively edited rich text: a causally-ordered character sequence
// plus range-based style annotations (bold, comments, links, ...) that
// stay attached to the text they cover as concurrent edits are merged.
//
// A RichText converges like any CvRDT: replicas that have received the
// same set of operations, in any order, reach the same document state.
// Merge is commutative, associative, and idempotent at the operation
// level (duplicate or reordered delivery is a no-op or a tie-broken
// total order, never a divergence).
package richtext

// CRDT is the convergence contract a replicated type satisfies: state
// observed through Value must stabilize once every replica has seen the
// same updates, however they were interleaved or duplicated in transit.
//
// RichText implements this via its own Merge(*RichText) error rather
// than a blind Merge(CRDT) error, since merging two different concrete
// CRDT types (e.g. a counter into a document) is a programming error
// that should fail to compile, not be caught by a runtime type
// assertion. MergeCRDT below is the boundary adapter for callers that
// only hold a CRDT-typed reference.
type CRDT interface {
	// Value returns the current consolidated state: for RichText this
	// is the linearized, tombstone-free string (see RichText.String).
	Value() any

	// MergeCRDT combines the state of a remote CRDT into the local
	// instance. Implementations must type-assert other and return an
	// error if the concrete types are incompatible.
	//
	// To guarantee convergence across all distributed replicas, a
	// Merge implementation must be:
	//
	// 1. Commutative: the order of merging doesn't matter.
	//    A.Merge(B) results in the same state as B.Merge(A).
	//
	// 2. Associative: the grouping of merges doesn't matter.
	//    (A.Merge(B)).Merge(C) == A.Merge(B.Merge(C)).
	//
	// 3. Idempotent: merging the same state multiple times has no
	//    effect beyond the first merge. A.Merge(A) == A.
	MergeCRDT(other CRDT) error
}

var _ CRDT = (*RichText)(nil)

// MergeCRDT adapts rt's concrete Merge to the CRDT interface for callers
// that only hold a CRDT-typed reference (e.g. code iterating over a
// heterogeneous registry of replicated documents).
func (rt *RichText) MergeCRDT(other CRDT) error {
	remote, ok := other.(*RichText)
	if !ok {
		return ErrIncompatibleCRDT
	}
	return rt.Merge(remote)
}
