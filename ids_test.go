package richtext

import "testing"

func TestOpID_IsZero(t *testing.T) {
	if !(OpID{}).IsZero() {
		t.Errorf("zero-value OpID should be a boundary sentinel")
	}
	if (OpID{Client: 1, Counter: 0}).IsZero() {
		t.Errorf("OpID with a non-zero client should not be IsZero")
	}
}

func TestOpID_Less(t *testing.T) {
	a := OpID{Client: 1, Counter: 5}
	b := OpID{Client: 1, Counter: 6}
	c := OpID{Client: 2, Counter: 0}

	if !a.Less(b) {
		t.Errorf("expected %v < %v", a, b)
	}
	if b.Less(a) {
		t.Errorf("expected %v not < %v", b, a)
	}
	if !a.Less(c) {
		t.Errorf("expected lower client to sort first regardless of counter")
	}
	if a.Less(a) {
		t.Errorf("Less should be strict, not reflexive")
	}
}

func TestOpID_Add(t *testing.T) {
	id := OpID{Client: 3, Counter: 10}
	got := id.Add(4)
	want := OpID{Client: 3, Counter: 14}
	if got != want {
		t.Errorf("Add(4) = %v, want %v", got, want)
	}
}

func TestOpID_String(t *testing.T) {
	if s := (OpID{}).String(); s != "<boundary>" {
		t.Errorf("zero OpID.String() = %q, want <boundary>", s)
	}
	if s := (OpID{Client: 7, Counter: 3}).String(); s != "3@7" {
		t.Errorf("OpID.String() = %q, want 3@7", s)
	}
}

func TestRangeLamport_Less(t *testing.T) {
	a := RangeLamport{Lamport: 1, OpID: OpID{Client: 1, Counter: 0}}
	b := RangeLamport{Lamport: 1, OpID: OpID{Client: 2, Counter: 0}}
	c := RangeLamport{Lamport: 2, OpID: OpID{Client: 1, Counter: 0}}

	if !a.Less(b) {
		t.Errorf("equal lamport should tie-break on OpID: expected %v < %v", a, b)
	}
	if !a.Less(c) {
		t.Errorf("greater lamport should win regardless of OpID: expected %v < %v", a, c)
	}
	if c.Less(a) {
		t.Errorf("expected %v not < %v", c, a)
	}
}
