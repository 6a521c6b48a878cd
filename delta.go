package richtext

import "unicode/utf8"

// DeltaOpKind tags a DeltaItem the same way Quill's delta format does.
type DeltaOpKind uint8

const (
	DeltaRetain DeltaOpKind = iota
	DeltaInsert
	DeltaDelete
)

// DeltaItem is one entry of a delta (spec §4.8): a contiguous retain,
// insert, or delete, optionally carrying attribute changes. Grounded on
// original_source/src/rich_text/delta.rs's DeltaItem enum.
type DeltaItem struct {
	Kind  DeltaOpKind
	Len   int // code-point count for Retain/Delete
	Text  string
	Attrs map[string]any
}

func retain(n int, attrs map[string]any) DeltaItem {
	return DeltaItem{Kind: DeltaRetain, Len: n, Attrs: attrs}
}

func insertItem(text string, attrs map[string]any) DeltaItem {
	return DeltaItem{Kind: DeltaInsert, Len: utf8.RuneCountInString(text), Text: text, Attrs: attrs}
}

func deleteItem(n int) DeltaItem {
	return DeltaItem{Kind: DeltaDelete, Len: n}
}

func (d DeltaItem) IsRetain() bool { return d.Kind == DeltaRetain }
func (d DeltaItem) IsInsert() bool { return d.Kind == DeltaInsert }
func (d DeltaItem) IsDelete() bool { return d.Kind == DeltaDelete }

// Length reports the item's span in code points.
func (d DeltaItem) Length() int { return d.Len }

// take splits off the first n code points of d, returning (head, rest).
// rest is the zero value if n consumes all of d.
func (d DeltaItem) take(n int) (head, rest DeltaItem) {
	if n >= d.Len {
		return d, DeltaItem{}
	}
	switch d.Kind {
	case DeltaInsert:
		r := []rune(d.Text)
		head = DeltaItem{Kind: DeltaInsert, Len: n, Text: string(r[:n]), Attrs: d.Attrs}
		rest = DeltaItem{Kind: DeltaInsert, Len: d.Len - n, Text: string(r[n:]), Attrs: d.Attrs}
	default:
		head = DeltaItem{Kind: d.Kind, Len: n, Attrs: d.Attrs}
		rest = DeltaItem{Kind: d.Kind, Len: d.Len - n, Attrs: d.Attrs}
	}
	return head, rest
}

// composeMeta merges this item's attributes with a following retain's
// attribute changes: next's keys win, nil values in next delete a key.
func composeMeta(base, next map[string]any) map[string]any {
	if next == nil {
		return base
	}
	out := make(map[string]any, len(base)+len(next))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range next {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// DeltaIterator walks a delta's items, letting a caller consume them in
// arbitrary-length chunks rather than whole items at a time (needed by
// compose, which must align two deltas' boundaries atom-for-atom).
type DeltaIterator struct {
	ops []DeltaItem
	pos int
}

func newDeltaIterator(ops []DeltaItem) *DeltaIterator {
	return &DeltaIterator{ops: ops}
}

func (it *DeltaIterator) HasNext() bool { return it.pos < len(it.ops) }

// Peek returns the current item without consuming it.
func (it *DeltaIterator) Peek() (DeltaItem, bool) {
	if !it.HasNext() {
		return DeltaItem{}, false
	}
	return it.ops[it.pos], true
}

func (it *DeltaIterator) PeekLength() int {
	d, ok := it.Peek()
	if !ok {
		return 0
	}
	return d.Length()
}

func (it *DeltaIterator) PeekIsInsert() bool {
	d, ok := it.Peek()
	return ok && d.IsInsert()
}

func (it *DeltaIterator) PeekIsDelete() bool {
	d, ok := it.Peek()
	return ok && d.IsDelete()
}

// Next consumes and returns the whole current item.
func (it *DeltaIterator) Next() (DeltaItem, bool) {
	d, ok := it.Peek()
	if !ok {
		return DeltaItem{}, false
	}
	it.pos++
	return d, true
}

// NextWithRef consumes at most maxLen code points from the current
// item, leaving the remainder in place for a later call.
func (it *DeltaIterator) NextWithRef(maxLen int) (DeltaItem, bool) {
	d, ok := it.Peek()
	if !ok {
		return DeltaItem{}, false
	}
	if d.Length() <= maxLen {
		it.pos++
		return d, true
	}
	head, rest := d.take(maxLen)
	it.ops[it.pos] = rest
	return head, true
}

// Rest returns every item not yet consumed.
func (it *DeltaIterator) Rest() []DeltaItem {
	return append([]DeltaItem(nil), it.ops[it.pos:]...)
}

// appendDelta appends op to ops, merging it into the previous entry
// when the two are the same kind and (for Retain/Insert) carry
// identical attributes, keeping composed deltas compact.
func appendDelta(ops []DeltaItem, op DeltaItem) []DeltaItem {
	if op.Kind != DeltaDelete && op.Kind != DeltaInsert && op.Len == 0 {
		return ops
	}
	if n := len(ops); n > 0 {
		last := ops[n-1]
		if last.Kind == op.Kind {
			switch op.Kind {
			case DeltaDelete:
				ops[n-1].Len += op.Len
				return ops
			case DeltaRetain:
				if sameAttrs(last.Attrs, op.Attrs) {
					ops[n-1].Len += op.Len
					return ops
				}
			case DeltaInsert:
				if sameAttrs(last.Attrs, op.Attrs) {
					ops[n-1].Text += op.Text
					ops[n-1].Len += op.Len
					return ops
				}
			}
		}
	}
	return append(ops, op)
}

func sameAttrs(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

// Compose applies b on top of a, producing the single delta that has
// the same net effect as applying a then b in sequence. Follows
// standard Quill compose semantics: a delete cancels an underlying
// insert outright; a delete over retained content survives; composing
// a retain's attributes onto an insert or retain merges them.
func Compose(a, b []DeltaItem) []DeltaItem {
	ai := newDeltaIterator(a)
	bi := newDeltaIterator(b)
	var out []DeltaItem

	for bi.HasNext() {
		if bi.PeekIsInsert() {
			op, _ := bi.Next()
			out = appendDelta(out, op)
			continue
		}
		if !ai.HasNext() {
			break
		}
		n := ai.PeekLength()
		if bn := bi.PeekLength(); bn < n {
			n = bn
		}
		aOp, _ := ai.NextWithRef(n)
		bOp, _ := bi.NextWithRef(n)

		switch bOp.Kind {
		case DeltaRetain:
			if aOp.Kind == DeltaDelete {
				out = appendDelta(out, aOp)
				continue
			}
			merged := aOp
			merged.Attrs = composeMeta(aOp.Attrs, bOp.Attrs)
			out = appendDelta(out, merged)
		case DeltaDelete:
			if aOp.Kind == DeltaInsert {
				continue // delete cancels the insert it covers
			}
			out = appendDelta(out, deleteItem(n))
		}
	}
	for ai.HasNext() {
		op, _ := ai.Next()
		out = appendDelta(out, op)
	}
	return chop(out)
}

// chop strips a single trailing no-op retain (length > 0, no attribute
// change), matching Quill's canonical delta form.
func chop(ops []DeltaItem) []DeltaItem {
	if n := len(ops); n > 0 {
		last := ops[n-1]
		if last.IsRetain() && last.Attrs == nil {
			return ops[:n-1]
		}
	}
	return ops
}
