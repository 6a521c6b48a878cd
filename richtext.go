package richtext

import (
	"context"
	"sync"
	"unicode/utf8"
)

// AnnotationStyle is the request shape for Annotate/AnnotateUTF16: which
// boundary-expansion policy to use, how same-type conflicts resolve, and
// the annotation's type/value payload.
type AnnotationStyle struct {
	Expand   Expand
	Behavior Behavior
	Type     string
	Value    any
}

// RangeEndpoint names a patch's replacement anchor: Before(OpID) or
// After(OpID), or nil to leave that endpoint unchanged.
type RangeEndpoint = Anchor

// RichText is one replica of a collaboratively edited rich-text
// document (C8, the public façade of spec §6.1). All public methods
// are safe for concurrent use; per spec §5 a single instance is
// single-threaded in effect (every call runs to completion before the
// next begins), the mutex just makes that safe across goroutines.
type RichText struct {
	mu       sync.Mutex
	clientID ClientID
	counter  Counter

	arena    *Arena
	registry *AnnotationRegistry
	idmap    *IDMap
	tree     *pieceTree
	store    *OpStore

	logger    *Logger
	observers []func([]DeltaItem)
}

// New returns an empty document for the given non-zero client id.
func New(clientID uint64) *RichText {
	return NewWithOptions(clientID, Options{})
}

// NewWithOptions is New with arena preallocation and/or a Logger.
func NewWithOptions(clientID uint64, opts Options) *RichText {
	arena := NewArena(opts.arenaHint())
	registry := NewAnnotationRegistry()
	idmap := NewIDMap()
	return &RichText{
		clientID: ClientID(clientID),
		counter:  0, // a client's first op is counter 0, the next counter an empty version vector expects
		arena:    arena,
		registry: registry,
		idmap:    idmap,
		tree:     newPieceTree(arena, registry, idmap),
		store:    NewOpStore(opts.Logger),
		logger:   opts.Logger,
	}
}

func (rt *RichText) nextID(n int) OpID {
	id := OpID{Client: rt.clientID, Counter: rt.counter}
	rt.counter += Counter(n)
	return id
}

// --- local mutation ------------------------------------------------------

// Insert inserts text at a UTF-8 (code point) index.
func (rt *RichText) Insert(index int, text string) error {
	return rt.insert(index, text, IndexUTF8)
}

// InsertUTF16 inserts text at a UTF-16 code-unit index.
func (rt *RichText) InsertUTF16(index int, text string) error {
	return rt.insert(index, text, IndexUTF16)
}

func (rt *RichText) insert(index int, text string, idxType IndexType) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if index < 0 || index > rt.lenLocked(idxType) {
		return ErrIndexOutOfBounds
	}
	if text == "" {
		return nil
	}

	left, right := rt.tree.resolveLocalOrigins(index, idxType)
	id := rt.nextID(utf8.RuneCountInString(text))
	lamport := rt.store.NextLamport()

	rt.tree.Insert(id, lamport, left, right, text)
	rt.store.Record(Op{ID: id, Lamport: lamport, Kind: OpInsert, Left: left, Right: right, Text: text})
	rt.emit([]DeltaItem{retain(index, nil), insertItem(text, nil)})
	return nil
}

// Delete removes [from,to) named by UTF-8 (code point) indices.
func (rt *RichText) Delete(from, to int) error {
	return rt.delete(from, to, IndexUTF8)
}

// DeleteUTF16 removes [from,to) named by UTF-16 code-unit indices.
func (rt *RichText) DeleteUTF16(from, to int) error {
	return rt.delete(from, to, IndexUTF16)
}

func (rt *RichText) delete(from, to int, idxType IndexType) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	limit := rt.lenLocked(idxType)
	if from < 0 || to > limit || from > to {
		return ErrIndexOutOfBounds
	}
	if from == to {
		// Per DESIGN.md/spec §9 Open Questions: a zero-length delete
		// is a no-op that does not bump the Lamport clock.
		return nil
	}

	spans := rt.tree.deletionSpans(from, to, idxType)
	for _, span := range spans {
		n := int(span.To - span.From)
		id := rt.nextID(n)
		lamport := rt.store.NextLamport()
		rt.tree.Delete(span.Client, span.From, span.To)
		rt.store.Record(Op{
			ID:        id,
			Lamport:   lamport,
			Kind:      OpDelete,
			StartOpID: OpID{Client: span.Client, Counter: span.From},
			SignedLen: n,
		})
	}
	rt.emit([]DeltaItem{retain(from, nil), deleteItem(to - from)})
	return nil
}

// --- annotation ------------------------------------------------------------

// Annotate adds a range annotation over [from,to) named by UTF-8 indices.
func (rt *RichText) Annotate(from, to int, style AnnotationStyle) error {
	return rt.annotate(from, to, style, IndexUTF8)
}

// AnnotateUTF16 is Annotate with UTF-16 code-unit indices.
func (rt *RichText) AnnotateUTF16(from, to int, style AnnotationStyle) error {
	return rt.annotate(from, to, style, IndexUTF16)
}

func (rt *RichText) annotate(from, to int, style AnnotationStyle, idxType IndexType) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	limit := rt.lenLocked(idxType)
	if from < 0 || to > limit || from > to {
		return ErrIndexOutOfBounds
	}
	if from == to && style.Behavior == Delete && style.Expand == ExpandNone {
		return ErrInvalidExpand
	}

	rng := rt.resolveAnchorRange(from, to, style.Expand, idxType)
	id := rt.nextID(1)
	lamport := rt.store.NextLamport()

	ann := &Annotation{
		ID:           id,
		Range:        rng,
		RangeLamport: RangeLamport{Lamport: lamport, OpID: id},
		Behavior:     style.Behavior,
		Type:         style.Type,
		Value:        style.Value,
	}
	idx := rt.registry.Register(ann)
	rt.tree.Annotate(idx, rng)

	rt.store.Record(Op{
		ID: id, Lamport: lamport, Kind: OpAnnotate,
		Range: rng, Behavior: style.Behavior, Type: style.Type, Value: style.Value,
	})
	rt.emitFormat(idx, style.Type, style.Value)
	return nil
}

// emitFormat emits the retain/attrs delta for the range an annotation at
// idx currently resolves to, per spec §4.8 ("after each applied batch,
// the façade emits a delta"). A no-op if RangeOf does not find the range
// or the range is empty. An annotation without a value is reported with
// the attribute value true, since a nil attribute means removal in a
// composed delta.
func (rt *RichText) emitFormat(idx int32, typ string, value any) {
	start, end, ok := rt.tree.RangeOf(idx)
	if !ok || end <= start {
		return
	}
	if value == nil {
		value = true
	}
	rt.emit([]DeltaItem{retain(start, nil), retain(end-start, map[string]any{typ: value})})
}

// resolveAnchorRange implements the Expand→Anchor mapping corrected in
// SPEC_FULL.md §4.1.
func (rt *RichText) resolveAnchorRange(a, b int, expand Expand, idxType IndexType) AnchorRange {
	var start, end Anchor
	switch expand {
	case ExpandBefore, ExpandBoth:
		start = rt.anchorAfter(a-1, idxType)
	default:
		start = rt.anchorBefore(a, idxType)
	}
	switch expand {
	case ExpandAfter, ExpandBoth:
		end = rt.anchorBefore(b, idxType)
	default:
		end = rt.anchorAfter(b-1, idxType)
	}
	return AnchorRange{Start: start, End: end}
}

// anchorBefore builds a Before(pos) anchor, falling back to a boundary
// anchor of type Before when pos has no atom (pos < 0, or pos at or past
// the end of the document).
func (rt *RichText) anchorBefore(pos int, idxType IndexType) Anchor {
	if pos < 0 {
		return Anchor{Type: Before}
	}
	id, ok := rt.tree.opIDAtPosition(pos, idxType)
	if !ok {
		return Anchor{Type: Before}
	}
	return Anchor{OpID: id, Type: Before}
}

// anchorAfter builds an After(pos) anchor, falling back to the
// document-end boundary when pos has no atom (pos < 0 or past the end).
func (rt *RichText) anchorAfter(pos int, idxType IndexType) Anchor {
	if pos < 0 {
		return Anchor{Type: After}
	}
	id, ok := rt.tree.opIDAtPosition(pos, idxType)
	if !ok {
		return Anchor{Type: After}
	}
	return Anchor{OpID: id, Type: After}
}

// Patch moves an existing annotation's start and/or end anchor, applying
// last-writer-wins on range geometry per spec §4.4: it takes effect only
// if (lamport, patch_id) is strictly greater than the annotation's
// current RangeLamport, and is silently dropped (not an error)
// otherwise.
func (rt *RichText) Patch(annID OpID, newStart, newEnd *RangeEndpoint) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	lamport := rt.store.NextLamport()
	id := rt.nextID(1)
	rt.applyPatch(annID, newStart, newEnd, RangeLamport{Lamport: lamport, OpID: id})
	rt.store.Record(Op{
		ID: id, Lamport: lamport, Kind: OpPatch,
		TargetAnnID: annID, NewStart: newStart, NewEnd: newEnd,
	})
}

func (rt *RichText) applyPatch(annID OpID, newStart, newEnd *RangeEndpoint, rl RangeLamport) {
	idx := rt.registry.IndexOf(annID)
	ann := rt.registry.Get(idx)
	if ann == nil {
		return
	}
	if !ann.RangeLamport.Less(rl) {
		rt.logger.debug(context.Background(), errStaleRangePatch.Error(), "ann", annID.String())
		return
	}
	rt.tree.RemoveAnnotationAnchors(idx, ann.Range)
	newRange := ann.Range
	if newStart != nil {
		newRange.Start = *newStart
	}
	if newEnd != nil {
		newRange.End = *newEnd
	}
	rt.tree.Annotate(idx, newRange)
	rt.registry.UpdateRange(idx, newRange, rl)
}

// --- reads -----------------------------------------------------------------

// Iter returns the document's spans in order; an alias of GetSpans.
func (rt *RichText) Iter() []Span { return rt.GetSpans() }

// GetSpans returns the document's current spans (text runs sharing an
// identical resolved annotation set).
func (rt *RichText) GetSpans() []Span {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.tree.Iterate()
}

// GetLine returns the spans making up the 0-based line n (content
// between the (n-1)th and nth newline, inclusive of trailing content on
// the last line). Spans are not split at embedded newlines: a span is
// returned whole for the line it starts on and is not returned for the
// later lines it runs into.
func (rt *RichText) GetLine(n int) []Span {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	spans := rt.tree.Iterate()
	var out []Span
	line := 0
	for _, s := range spans {
		if line > n {
			break
		}
		if line == n {
			out = append(out, s)
		}
		line += countNewlines(s.Text)
	}
	return out
}

func countNewlines(s string) int {
	n := 0
	for _, r := range s {
		if r == '\n' {
			n++
		}
	}
	return n
}

// Len returns the document's length in Unicode code points.
func (rt *RichText) Len() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.tree.Len()
}

// LenUTF16 returns the document's length in UTF-16 code units.
func (rt *RichText) LenUTF16() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.tree.LenUTF16()
}

func (rt *RichText) lenLocked(idxType IndexType) int {
	if idxType == IndexUTF16 {
		return rt.tree.LenUTF16()
	}
	return rt.tree.Len()
}

// String returns the document's current visible text.
func (rt *RichText) String() string {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.tree.String()
}

// Value satisfies the CRDT interface: the linearized, tombstone-free
// text, identical to String.
func (rt *RichText) Value() any {
	return rt.String()
}

// RangeOf returns the current [start,end) character indices of the
// annotation identified by annID.
func (rt *RichText) RangeOf(annID OpID) (start, end int, ok bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	idx := rt.registry.IndexOf(annID)
	if idx == 0 {
		return 0, 0, false
	}
	return rt.tree.RangeOf(idx)
}

// --- sync: version vector, export/import, merge -----------------------

// Version returns this replica's version vector, encoded per spec §6.3.
func (rt *RichText) Version() []byte {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return EncodeVersion(rt.store.Version())
}

// Export returns every op this replica has applied that peerVV (an
// encoded version vector, or nil for the empty vector) has not yet seen.
func (rt *RichText) Export(peerVV []byte) ([]byte, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	vv := map[ClientID]Counter{}
	if len(peerVV) > 0 {
		var err error
		vv, err = DecodeVersion(peerVV)
		if err != nil {
			return nil, err
		}
	}
	return EncodeOps(rt.store.OpsSince(vv)), nil
}

// Import decodes blob and applies every op it contains, buffering any
// whose causal dependencies haven't arrived yet and draining them as
// later ops satisfy those dependencies.
func (rt *RichText) Import(blob []byte) error {
	ops, err := DecodeOps(blob)
	if err != nil {
		return err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	for _, op := range ops {
		rt.applyRemote(op)
	}
	rt.drainPending()
	return nil
}

// Merge pulls every op other has that this replica lacks, then applies
// them the same way Import would.
func (rt *RichText) Merge(other *RichText) error {
	myVV := rt.Version()
	other.mu.Lock()
	ops := other.store.OpsSince(mustDecodeVersion(myVV))
	other.mu.Unlock()

	rt.mu.Lock()
	defer rt.mu.Unlock()
	for _, op := range ops {
		rt.applyRemote(op)
	}
	rt.drainPending()
	return nil
}

func mustDecodeVersion(blob []byte) map[ClientID]Counter {
	vv, err := DecodeVersion(blob)
	if err != nil {
		return map[ClientID]Counter{}
	}
	return vv
}

// applyRemote integrates one remote op, buffering it if CanApply
// reports Pending, trimming it if it partially overlaps already-applied
// atoms, and discarding it if fully Seen. Must be called with rt.mu held.
func (rt *RichText) applyRemote(op Op) {
	result := rt.store.CanApply(op)
	switch result.Verdict {
	case Seen:
		return
	case Pending:
		rt.logger.debug(context.Background(), errCausalPending.Error(), "op", op.ID.String())
		rt.store.Buffer(op)
		return
	case Trim:
		op = op.after(result.TrimCount)
	}
	rt.integrate(op)
	rt.store.Record(op)
	if op.Lamport > 0 {
		rt.store.Observe(op.Lamport)
	}
}

// drainPending repeatedly applies any buffered op now unblocked, looping
// until a pass makes no further progress.
func (rt *RichText) drainPending() {
	for {
		ready := rt.store.DrainReady()
		if len(ready) == 0 {
			return
		}
		for _, op := range ready {
			switch result := rt.store.CanApply(op); result.Verdict {
			case Seen:
				continue
			case Trim:
				op = op.after(result.TrimCount)
			}
			rt.integrate(op)
			rt.store.Record(op)
		}
	}
}

// integrate applies one already-causally-ready op's effect to the tree
// and registry. Must be called with rt.mu held.
func (rt *RichText) integrate(op Op) {
	switch op.Kind {
	case OpInsert:
		rt.tree.Insert(op.ID, op.Lamport, op.Left, op.Right, op.Text)
		if pos, ok := rt.tree.positionOf(op.ID); ok {
			rt.emit([]DeltaItem{retain(pos, nil), insertItem(op.Text, nil)})
		}
	case OpDelete:
		from, to := op.deleteRange()
		pos, havePos := rt.tree.positionOf(OpID{Client: op.StartOpID.Client, Counter: from})
		rt.tree.Delete(op.StartOpID.Client, from, to)
		if havePos {
			rt.emit([]DeltaItem{retain(pos, nil), deleteItem(int(to - from))})
		}
	case OpAnnotate:
		ann := &Annotation{
			ID:           op.ID,
			Range:        op.Range,
			RangeLamport: RangeLamport{Lamport: op.Lamport, OpID: op.ID},
			Behavior:     op.Behavior,
			Type:         op.Type,
			Value:        op.Value,
		}
		idx := rt.registry.Register(ann)
		rt.tree.Annotate(idx, op.Range)
		rt.emitFormat(idx, op.Type, op.Value)
	case OpPatch:
		rt.applyPatch(op.TargetAnnID, op.NewStart, op.NewEnd, RangeLamport{Lamport: op.Lamport, OpID: op.ID})
		if idx := rt.registry.IndexOf(op.TargetAnnID); idx != 0 {
			if ann := rt.registry.Get(idx); ann != nil {
				rt.emitFormat(idx, ann.Type, ann.Value)
			}
		}
	}
}

// --- delta observation -------------------------------------------------

// Observe registers fn to be called with the delta describing each
// subsequent local or remote change.
func (rt *RichText) Observe(fn func([]DeltaItem)) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.observers = append(rt.observers, fn)
}

func (rt *RichText) emit(delta []DeltaItem) {
	for _, fn := range rt.observers {
		fn(delta)
	}
}
