package richtext

import "testing"

func TestAnnotationRegistry_RegisterAndGet(t *testing.T) {
	reg := NewAnnotationRegistry()
	id := OpID{Client: 1, Counter: 1}
	idx := reg.Register(&Annotation{ID: id, Type: "bold"})

	if idx == 0 {
		t.Fatalf("Register should never hand out the reserved sentinel index 0")
	}
	got := reg.Get(idx)
	if got == nil || got.ID != id {
		t.Fatalf("Get(%d) = %v, want the registered annotation", idx, got)
	}
	if reg.Get(0) != nil {
		t.Errorf("Get(0) should return nil for the sentinel slot")
	}
	if reg.Get(999) != nil {
		t.Errorf("Get should return nil for an out-of-range index")
	}
}

func TestAnnotationRegistry_IndexOf(t *testing.T) {
	reg := NewAnnotationRegistry()
	id := OpID{Client: 1, Counter: 1}
	idx := reg.Register(&Annotation{ID: id, Type: "bold"})

	if got := reg.IndexOf(id); got != idx {
		t.Errorf("IndexOf(%v) = %d, want %d", id, got, idx)
	}
	if got := reg.IndexOf(OpID{Client: 9, Counter: 9}); got != 0 {
		t.Errorf("IndexOf of an unregistered id should return the sentinel 0, got %d", got)
	}
}

func TestAnnotationRegistry_UpdateRange(t *testing.T) {
	reg := NewAnnotationRegistry()
	id := OpID{Client: 1, Counter: 1}
	idx := reg.Register(&Annotation{ID: id, RangeLamport: RangeLamport{Lamport: 1}})

	newRange := AnchorRange{Start: Anchor{Type: Before}, End: Anchor{Type: After}}
	reg.UpdateRange(idx, newRange, RangeLamport{Lamport: 2})

	got := reg.Get(idx)
	if got.Range != newRange {
		t.Errorf("UpdateRange did not update Range")
	}
	if got.RangeLamport.Lamport != 2 {
		t.Errorf("UpdateRange did not update RangeLamport")
	}
}

func TestAnnotationRegistry_MarkDeleted(t *testing.T) {
	reg := NewAnnotationRegistry()
	idx := reg.Register(&Annotation{ID: OpID{Client: 1, Counter: 1}})
	reg.MarkDeleted(idx)

	if !reg.Get(idx).Deleted {
		t.Errorf("expected annotation to be marked Deleted")
	}
}

func TestAnnotationRegistry_TypeInterning(t *testing.T) {
	reg := NewAnnotationRegistry()
	reg.Register(&Annotation{ID: OpID{Client: 1, Counter: 1}, Type: "bold"})
	reg.Register(&Annotation{ID: OpID{Client: 1, Counter: 2}, Type: "italic"})
	reg.Register(&Annotation{ID: OpID{Client: 1, Counter: 3}, Type: "bold"}) // repeat

	boldIdx := reg.TypeIndex("bold")
	italicIdx := reg.TypeIndex("italic")
	if boldIdx < 0 || italicIdx < 0 {
		t.Fatalf("expected both types to have been interned, got bold=%d italic=%d", boldIdx, italicIdx)
	}
	if boldIdx == italicIdx {
		t.Errorf("distinct type strings must get distinct indices")
	}
	if reg.TypeName(boldIdx) != "bold" {
		t.Errorf("TypeName(%d) = %q, want bold", boldIdx, reg.TypeName(boldIdx))
	}
	if reg.TypeIndex("underline") != -1 {
		t.Errorf("TypeIndex of a never-registered type should be -1")
	}
}

func TestAnnotationRegistry_TypeInterningHashCollisionSafe(t *testing.T) {
	// Registering many distinct type strings exercises the hash-bucket
	// collision path in internType/TypeIndex (see DESIGN.md): every
	// name must still resolve to its own, distinct index.
	reg := NewAnnotationRegistry()
	names := []string{"bold", "italic", "underline", "strike", "comment", "link", "highlight", "code"}
	for i, n := range names {
		reg.Register(&Annotation{ID: OpID{Client: 1, Counter: Counter(i + 1)}, Type: n})
	}
	seen := map[int32]string{}
	for _, n := range names {
		idx := reg.TypeIndex(n)
		if idx < 0 {
			t.Fatalf("TypeIndex(%q) unexpectedly missing", n)
		}
		if other, ok := seen[idx]; ok {
			t.Fatalf("type %q and %q collided onto the same index %d", n, other, idx)
		}
		seen[idx] = n
		if reg.TypeName(idx) != n {
			t.Errorf("TypeName(%d) = %q, want %q", idx, reg.TypeName(idx), n)
		}
	}
}
