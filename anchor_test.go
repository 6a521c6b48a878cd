package richtext

import "testing"

func TestAnchor_IsBoundary(t *testing.T) {
	if !(Anchor{Type: Before}).IsBoundary() {
		t.Errorf("an anchor with a zero OpID should be a document boundary")
	}
	if (Anchor{OpID: OpID{Client: 1, Counter: 0}, Type: Before}).IsBoundary() {
		t.Errorf("an anchor with a non-zero OpID should not be a boundary")
	}
}

func TestElemAnchorSet_InsertAndRemove(t *testing.T) {
	var s ElemAnchorSet
	s.InsertAnn(1, Before, true)  // start_at_start
	s.InsertAnn(2, Before, false) // end_at_start
	s.InsertAnn(3, After, true)   // start_at_end
	s.InsertAnn(4, After, false)  // end_at_end

	if !s.StartAtStart.Contains(1) || !s.EndAtStart.Contains(2) ||
		!s.StartAtEnd.Contains(3) || !s.EndAtEnd.Contains(4) {
		t.Fatalf("InsertAnn filed an annotation into the wrong quadrant")
	}
	if s.IsEmpty() {
		t.Fatalf("set with four entries reported IsEmpty")
	}

	s.RemoveAnn(1, Before, true)
	if s.StartAtStart.Contains(1) {
		t.Errorf("RemoveAnn should undo the matching InsertAnn")
	}
}

func TestElemAnchorSet_EdgeEmptiness(t *testing.T) {
	var s ElemAnchorSet
	if !s.LeftEdgeEmpty() || !s.RightEdgeEmpty() || !s.IsEmpty() {
		t.Fatalf("a freshly zero-valued set should be empty on both edges")
	}

	s.InsertAnn(1, Before, true)
	if s.LeftEdgeEmpty() {
		t.Errorf("left edge should not be empty once a start_at_start flag is set")
	}
	if !s.RightEdgeEmpty() {
		t.Errorf("right edge should remain empty")
	}
}

func TestElemAnchorSet_SplitDistribution(t *testing.T) {
	var s ElemAnchorSet
	s.InsertAnn(1, Before, true)  // left edge
	s.InsertAnn(2, Before, false) // left edge
	s.InsertAnn(3, After, true)   // right edge
	s.InsertAnn(4, After, false)  // right edge

	left := s.SplitLeft()
	right := s.SplitRight()

	if !left.StartAtStart.Contains(1) || !left.EndAtStart.Contains(2) {
		t.Errorf("SplitLeft should keep the left-edge flags")
	}
	if left.StartAtEnd.Len() != 0 || left.EndAtEnd.Len() != 0 {
		t.Errorf("SplitLeft should not carry right-edge flags")
	}
	if !right.StartAtEnd.Contains(3) || !right.EndAtEnd.Contains(4) {
		t.Errorf("SplitRight should receive the right-edge flags")
	}
	if right.StartAtStart.Len() != 0 || right.EndAtStart.Len() != 0 {
		t.Errorf("SplitRight should not carry left-edge flags")
	}
}

func TestCacheAnchorSet_Union(t *testing.T) {
	var e ElemAnchorSet
	e.InsertAnn(1, Before, true)
	e.InsertAnn(2, Before, false)
	e.InsertAnn(3, After, true)
	e.InsertAnn(4, After, false)

	var cache CacheAnchorSet
	cache.Union(&e)

	if !cache.Start.Contains(1) || !cache.Start.Contains(3) {
		t.Errorf("CacheAnchorSet.Start should union both start_at_start and start_at_end")
	}
	if !cache.End.Contains(2) || !cache.End.Contains(4) {
		t.Errorf("CacheAnchorSet.End should union both end_at_start and end_at_end")
	}
}
