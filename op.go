package richtext

import "unicode/utf8"

// OpKind tags which of the four operation shapes an Op carries.
type OpKind uint8

const (
	OpInsert OpKind = iota
	OpDelete
	OpAnnotate
	OpPatch
)

// Op is every operation kind flattened into one struct, following
// registry.go's Annotation precedent: a small closed set of kinds
// resolved by a tagged switch rather than an interface, per spec §9
// "Dynamic dispatch... resolve via tagged match, not virtual dispatch."
// Only the fields relevant to Kind are populated; the rest are zero.
type Op struct {
	ID      OpID
	Lamport Lamport
	Kind    OpKind

	// Insert
	Left  OpID
	Right OpID
	Text  string

	// Delete: StartOpID anchors the run, SignedLen's sign records the
	// typing direction (positive: forward from StartOpID, negative:
	// backward), letting adjacent user deletes RLE-merge regardless of
	// direction (spec §4.2).
	StartOpID OpID
	SignedLen int

	// Annotate
	Range    AnchorRange
	Behavior Behavior
	Type     string
	Value    any

	// Patch: op.ID itself doubles as the patch's own identity (the
	// "patch_id" spec §4.4 tie-breaks (lamport, patch_id) with).
	TargetAnnID OpID
	NewStart    *Anchor
	NewEnd      *Anchor
}

// Len reports how many atoms (counters) this op spans: an Insert spans
// its rune count, a Delete spans the absolute value of SignedLen,
// everything else spans exactly one counter.
func (op Op) Len() int {
	switch op.Kind {
	case OpInsert:
		return utf8.RuneCountInString(op.Text)
	case OpDelete:
		if op.SignedLen < 0 {
			return -op.SignedLen
		}
		return op.SignedLen
	default:
		return 1
	}
}

// deleteRange normalizes a signed-length delete into the ascending
// [from, to) counter range the piece tree consumes.
func (op Op) deleteRange() (from, to Counter) {
	if op.SignedLen >= 0 {
		return op.StartOpID.Counter, op.StartOpID.Counter + Counter(op.SignedLen)
	}
	return op.StartOpID.Counter + Counter(op.SignedLen) + 1, op.StartOpID.Counter + 1
}

// Dependencies lists the OpIDs that must already be applied before this
// op can be integrated, per spec §4.7's causal-order requirement.
func (op Op) Dependencies() []OpID {
	switch op.Kind {
	case OpInsert:
		return []OpID{op.Left, op.Right}
	case OpDelete:
		return []OpID{op.StartOpID}
	case OpAnnotate:
		return []OpID{op.Range.Start.OpID, op.Range.End.OpID}
	case OpPatch:
		deps := []OpID{op.TargetAnnID}
		if op.NewStart != nil {
			deps = append(deps, op.NewStart.OpID)
		}
		if op.NewEnd != nil {
			deps = append(deps, op.NewEnd.OpID)
		}
		return deps
	}
	return nil
}

// after returns the op advanced by k atoms, used to trim a Trim(k)
// redelivery down to its unseen suffix. Only meaningful for Insert and
// Delete, the two kinds whose Len() can exceed 1.
func (op Op) after(k int) Op {
	if k <= 0 {
		return op
	}
	out := op
	out.ID = op.ID.Add(k)
	switch op.Kind {
	case OpInsert:
		out.Left = op.ID.Add(k - 1)
		out.Text = string([]rune(op.Text)[k:])
	case OpDelete:
		if op.SignedLen >= 0 {
			out.StartOpID = op.StartOpID.Add(k)
			out.SignedLen = op.SignedLen - k
		} else {
			out.StartOpID = op.StartOpID.Add(-k)
			out.SignedLen = op.SignedLen + k
		}
	}
	return out
}
