package richtext

import "unicode/utf8"

// Element is one piece: a maximal run of characters sharing contiguous
// OpIDs, status, and creation-time neighbors. Per spec §3, a live piece's
// byte slice has length >= 1; a piece whose entire content has been
// deleted keeps its slice (tombstones are retained forever to anchor
// annotations and resolve concurrent inserts).
type Element struct {
	ID    OpID
	Left  OpID // zero means "document start" at creation time
	Right OpID // zero means "document end" at creation time

	Lamport Lamport
	Bytes   Slice

	AtomLen    int // number of Unicode code points covered, i.e. the OpID run length
	UTF16Len   int
	LineBreaks int

	DeletedTimes uint16
	Future       bool // always false in this port: nothing sets it

	Anchors ElemAnchorSet
}

// IsDead reports whether the piece contributes no live content.
func (e *Element) IsDead() bool {
	return e.Future || e.DeletedTimes > 0
}

// IDLast returns the OpID of the last atom this piece covers.
func (e *Element) IDLast() OpID {
	return e.ID.Add(e.AtomLen - 1)
}

// ContentLen returns the piece's live length in code points: 0 if dead,
// AtomLen otherwise. This is what position_to_cursor sums over.
func (e *Element) ContentLen() int {
	if e.IsDead() {
		return 0
	}
	return e.AtomLen
}

// NewElement builds a piece from an arena slice, computing its cached
// counts by scanning the bytes once.
func NewElement(id, left, right OpID, lamport Lamport, arena *Arena, bytes Slice) *Element {
	e := &Element{ID: id, Left: left, Right: right, Lamport: lamport, Bytes: bytes}
	e.recount(arena)
	return e
}

func (e *Element) recount(arena *Arena) {
	b := arena.Bytes(e.Bytes)
	atoms, utf16n, lines := 0, 0, 0
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		atoms++
		if r == '\n' {
			lines++
		}
		if r > 0xFFFF {
			utf16n += 2
		} else {
			utf16n++
		}
		i += size
	}
	e.AtomLen = atoms
	e.UTF16Len = utf16n
	e.LineBreaks = lines
}

// Split divides the piece at atom offset into two: the receiver keeps
// [0, offset) and the returned Element holds [offset, AtomLen). Anchor
// flags are redistributed per spec §3: left-edge flags (start_at_start,
// end_at_start) stay with the receiver; right-edge flags (start_at_end,
// end_at_end) move entirely to the new right piece.
func (e *Element) Split(offset int, arena *Arena) *Element {
	byteOffset := runeIndexToByteOffset(arena.Bytes(e.Bytes), offset)
	leftSlice, rightSlice := e.Bytes.Split(byteOffset)

	right := &Element{
		ID:           e.ID.Add(offset),
		Left:         e.ID.Add(offset - 1),
		Right:        e.Right,
		Lamport:      e.Lamport + Lamport(offset),
		Bytes:        rightSlice,
		DeletedTimes: e.DeletedTimes,
		Future:       e.Future,
		Anchors:      e.Anchors.SplitRight(),
	}
	right.recount(arena)

	e.Right = right.ID
	e.Bytes = leftSlice
	e.Anchors = e.Anchors.SplitLeft()
	e.recount(arena)

	return right
}

// CanMerge reports whether e and next are adjacent pieces that can
// collapse into one: contiguous client/counter run, contiguous arena
// bytes, identical dead/alive status, and no anchors pinned to the
// shared boundary (spec §3 "Mergeability").
func (e *Element) CanMerge(next *Element, arena *Arena) bool {
	if e.ID.Client != next.ID.Client {
		return false
	}
	if e.ID.Counter+Counter(e.AtomLen) != next.ID.Counter {
		return false
	}
	if e.IsDead() != next.IsDead() {
		return false
	}
	if e.DeletedTimes != next.DeletedTimes {
		return false
	}
	if e.Bytes.End != next.Bytes.Start {
		return false
	}
	if !e.Anchors.RightEdgeEmpty() || !next.Anchors.LeftEdgeEmpty() {
		return false
	}
	return true
}

// MergeWith absorbs next into e. Callers must have checked CanMerge.
func (e *Element) MergeWith(next *Element, arena *Arena) {
	e.Bytes = Slice{Start: e.Bytes.Start, End: next.Bytes.End}
	e.Right = next.Right
	next.Anchors.StartAtEnd.Each(e.Anchors.StartAtEnd.Add)
	next.Anchors.EndAtEnd.Each(e.Anchors.EndAtEnd.Add)
	e.recount(arena)
}

func runeIndexToByteOffset(b []byte, runeIdx int) int {
	i, count := 0, 0
	for i < len(b) && count < runeIdx {
		_, size := utf8.DecodeRune(b[i:])
		i += size
		count++
	}
	return i
}
