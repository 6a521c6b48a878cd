package richtext

import "testing"

func TestSmallSet_InlineThenSpill(t *testing.T) {
	var s SmallSet
	for i := int32(1); i <= 4; i++ {
		s.Add(i)
	}
	if s.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", s.Len())
	}
	for i := int32(1); i <= 4; i++ {
		if !s.Contains(i) {
			t.Errorf("Contains(%d) = false, want true", i)
		}
	}

	// A fifth value forces the inline array to spill into a map.
	s.Add(5)
	if s.Len() != 5 {
		t.Fatalf("Len() after spill = %d, want 5", s.Len())
	}
	for i := int32(1); i <= 5; i++ {
		if !s.Contains(i) {
			t.Errorf("Contains(%d) after spill = false, want true", i)
		}
	}
}

func TestSmallSet_AddIsIdempotent(t *testing.T) {
	var s SmallSet
	s.Add(1)
	s.Add(1)
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after adding the same value twice", s.Len())
	}
}

func TestSmallSet_Remove(t *testing.T) {
	var s SmallSet
	for i := int32(1); i <= 6; i++ {
		s.Add(i)
	}
	s.Remove(3)
	if s.Contains(3) {
		t.Errorf("expected 3 to be removed")
	}
	if s.Len() != 5 {
		t.Errorf("Len() = %d, want 5", s.Len())
	}

	var inline SmallSet
	inline.Add(1)
	inline.Add(2)
	inline.Remove(1)
	if inline.Contains(1) || !inline.Contains(2) || inline.Len() != 1 {
		t.Errorf("inline Remove left set in unexpected state: len=%d", inline.Len())
	}
}

func TestSmallSet_Each(t *testing.T) {
	var s SmallSet
	want := map[int32]bool{1: true, 2: true, 3: true}
	for v := range want {
		s.Add(v)
	}
	seen := map[int32]bool{}
	s.Each(func(v int32) { seen[v] = true })
	if len(seen) != len(want) {
		t.Fatalf("Each visited %d elements, want %d", len(seen), len(want))
	}
	for v := range want {
		if !seen[v] {
			t.Errorf("Each never visited %d", v)
		}
	}
}

func TestSmallSet_Union(t *testing.T) {
	var a, b SmallSet
	a.Add(1)
	a.Add(2)
	b.Add(2)
	b.Add(3)
	a.Union(&b)
	for _, v := range []int32{1, 2, 3} {
		if !a.Contains(v) {
			t.Errorf("Union result missing %d", v)
		}
	}
	if a.Len() != 3 {
		t.Errorf("Union result Len() = %d, want 3", a.Len())
	}
}

func TestAnchorSetDiff_ApplyTo(t *testing.T) {
	var cache SmallSet
	cache.Add(1)

	var diff AnchorSetDiff
	diff.Appeared(2)
	diff.Disappeared(1)

	if diff.IsEmpty() {
		t.Fatalf("diff with two recorded changes reported IsEmpty")
	}
	diff.ApplyTo(&cache)

	if cache.Contains(1) {
		t.Errorf("expected 1 to be removed from cache")
	}
	if !cache.Contains(2) {
		t.Errorf("expected 2 to be added to cache")
	}
}
