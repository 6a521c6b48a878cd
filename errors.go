package richtext

import "github.com/pkg/errors"

// Sentinel errors for the flat taxonomy described by the façade: local
// API misuse is returned to the caller, import failures are returned
// from Import, and everything else inside integration is total (never
// returned, never panics on well-formed causal input).
var (
	// ErrIndexOutOfBounds is returned when a local call names an index or
	// range past the end of the document.
	ErrIndexOutOfBounds = errors.New("richtext: index out of bounds")

	// ErrInvalidExpand is returned when an annotation request combines an
	// expand policy and behavior that cannot be satisfied, e.g. behavior
	// Delete with expand None on an empty range.
	ErrInvalidExpand = errors.New("richtext: invalid expand/behavior combination")

	// ErrDecode is returned by Import when the update blob is malformed,
	// truncated, or fails its checksum.
	ErrDecode = errors.New("richtext: malformed update blob")

	// ErrIncompatibleCRDT is returned by MergeCRDT when the supplied
	// CRDT is not a *RichText.
	ErrIncompatibleCRDT = errors.New("richtext: cannot merge incompatible CRDT type")
)

// errCausalPending and errStaleRangePatch are internal control values, never
// returned to a caller: a pending op is buffered and retried once its
// dependencies arrive, and a stale patch is silently dropped.
var (
	errCausalPending  = errors.New("richtext: op buffered pending dependencies")
	errStaleRangePatch = errors.New("richtext: patch superseded by a later range_lamport")
)
