package richtext

import "testing"

func TestStyleCalculator_ApplyStartAndEnd(t *testing.T) {
	reg := NewAnnotationRegistry()
	idx := reg.Register(&Annotation{ID: OpID{Client: 1, Counter: 1}, Type: "bold", Behavior: AllowMultiple})

	calc := NewStyleCalculator(reg, nil)
	if len(calc.Resolve()) != 0 {
		t.Fatalf("calculator should start with no active annotations")
	}

	var enter ElemAnchorSet
	enter.InsertAnn(idx, Before, true)
	calc.ApplyStart(&enter)
	if got := calc.Resolve(); len(got) != 1 || got[0].Type != "bold" {
		t.Fatalf("expected bold to become active after ApplyStart, got %v", got)
	}

	var leave ElemAnchorSet
	leave.InsertAnn(idx, After, false)
	calc.ApplyEnd(&leave)
	if got := calc.Resolve(); len(got) != 0 {
		t.Fatalf("expected bold to be inactive after ApplyEnd, got %v", got)
	}
}

func TestStyleCalculator_OpenFromStart(t *testing.T) {
	reg := NewAnnotationRegistry()
	idx := reg.Register(&Annotation{ID: OpID{Client: 1, Counter: 1}, Type: "bold", Behavior: AllowMultiple})

	calc := NewStyleCalculator(reg, []int32{idx})
	if got := calc.Resolve(); len(got) != 1 {
		t.Fatalf("an index seeded via openFromStart should be active immediately, got %v", got)
	}
}

func TestStyleCalculator_ResolveMergeBehavior(t *testing.T) {
	reg := NewAnnotationRegistry()
	older := reg.Register(&Annotation{
		ID: OpID{Client: 1, Counter: 1}, Type: "bold", Behavior: Merge,
		RangeLamport: RangeLamport{Lamport: 1},
	})
	newer := reg.Register(&Annotation{
		ID: OpID{Client: 2, Counter: 1}, Type: "bold", Behavior: Merge,
		RangeLamport: RangeLamport{Lamport: 2},
	})

	calc := NewStyleCalculator(reg, []int32{older, newer})
	got := calc.Resolve()
	if len(got) != 1 {
		t.Fatalf("Merge behavior should keep exactly one winner among same-type annotations, got %d", len(got))
	}
	if got[0].RangeLamport.Lamport != 2 {
		t.Errorf("Merge should keep the annotation with the greatest RangeLamport, got lamport %d", got[0].RangeLamport.Lamport)
	}
}

func TestStyleCalculator_ResolveAllowMultiple(t *testing.T) {
	reg := NewAnnotationRegistry()
	a := reg.Register(&Annotation{ID: OpID{Client: 1, Counter: 1}, Type: "comment", Behavior: AllowMultiple})
	b := reg.Register(&Annotation{ID: OpID{Client: 2, Counter: 1}, Type: "comment", Behavior: AllowMultiple})

	calc := NewStyleCalculator(reg, []int32{a, b})
	got := calc.Resolve()
	if len(got) != 2 {
		t.Fatalf("AllowMultiple annotations of the same type should all survive, got %d", len(got))
	}
}

func TestStyleCalculator_ResolveDeleteCancelsLesserMergeWinner(t *testing.T) {
	reg := NewAnnotationRegistry()
	mergeWinner := reg.Register(&Annotation{
		ID: OpID{Client: 1, Counter: 1}, Type: "bold", Behavior: Merge,
		RangeLamport: RangeLamport{Lamport: 1},
	})
	deleter := reg.Register(&Annotation{
		ID: OpID{Client: 2, Counter: 1}, Type: "bold", Behavior: Delete,
		RangeLamport: RangeLamport{Lamport: 5},
	})

	calc := NewStyleCalculator(reg, []int32{mergeWinner, deleter})
	got := calc.Resolve()
	if len(got) != 0 {
		t.Fatalf("a Delete with a greater RangeLamport should cancel the Merge winner, got %v", got)
	}
}

func TestStyleCalculator_ResolveDeleteDoesNotCancelGreaterMergeWinner(t *testing.T) {
	reg := NewAnnotationRegistry()
	mergeWinner := reg.Register(&Annotation{
		ID: OpID{Client: 1, Counter: 1}, Type: "bold", Behavior: Merge,
		RangeLamport: RangeLamport{Lamport: 9},
	})
	deleter := reg.Register(&Annotation{
		ID: OpID{Client: 2, Counter: 1}, Type: "bold", Behavior: Delete,
		RangeLamport: RangeLamport{Lamport: 1},
	})

	calc := NewStyleCalculator(reg, []int32{mergeWinner, deleter})
	got := calc.Resolve()
	if len(got) != 1 {
		t.Fatalf("a Delete with a lesser RangeLamport than the Merge winner should not cancel it, got %v", got)
	}
}

func TestSameActiveSet(t *testing.T) {
	a := &Annotation{ID: OpID{Client: 1, Counter: 1}}
	b := &Annotation{ID: OpID{Client: 2, Counter: 1}}

	if !SameActiveSet([]*Annotation{a, b}, []*Annotation{a, b}) {
		t.Errorf("identical slices should compare equal")
	}
	if SameActiveSet([]*Annotation{a}, []*Annotation{a, b}) {
		t.Errorf("slices of different lengths should not compare equal")
	}
	if SameActiveSet([]*Annotation{a}, []*Annotation{b}) {
		t.Errorf("slices with different pointers should not compare equal")
	}
}
