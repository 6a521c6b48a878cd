package richtext

// SmallSet is a compact set of signed annotation indices: up to 4 values
// live inline with no allocation; a fifth value spills the whole set into
// a map. Used by ElemAnchorSet, CacheAnchorSet and AnchorSetDiff, where
// a piece or an update touches only a handful of annotations.
type SmallSet struct {
	inline    [4]int32
	inlineLen int8
	spill     map[int32]struct{}
}

// Add inserts v into the set. Adding an already-present value is a no-op.
func (s *SmallSet) Add(v int32) {
	if s.Contains(v) {
		return
	}
	if s.spill != nil {
		s.spill[v] = struct{}{}
		return
	}
	if int(s.inlineLen) < len(s.inline) {
		s.inline[s.inlineLen] = v
		s.inlineLen++
		return
	}
	s.spill = make(map[int32]struct{}, len(s.inline)+1)
	for i := int8(0); i < s.inlineLen; i++ {
		s.spill[s.inline[i]] = struct{}{}
	}
	s.spill[v] = struct{}{}
	s.inlineLen = 0
}

// Remove deletes v from the set, if present.
func (s *SmallSet) Remove(v int32) {
	if s.spill != nil {
		delete(s.spill, v)
		return
	}
	for i := int8(0); i < s.inlineLen; i++ {
		if s.inline[i] == v {
			s.inline[i] = s.inline[s.inlineLen-1]
			s.inlineLen--
			return
		}
	}
}

// Contains reports whether v is in the set.
func (s *SmallSet) Contains(v int32) bool {
	if s.spill != nil {
		_, ok := s.spill[v]
		return ok
	}
	for i := int8(0); i < s.inlineLen; i++ {
		if s.inline[i] == v {
			return true
		}
	}
	return false
}

// Len returns the number of elements in the set.
func (s *SmallSet) Len() int {
	if s.spill != nil {
		return len(s.spill)
	}
	return int(s.inlineLen)
}

// Each calls f once per element, in no particular order.
func (s *SmallSet) Each(f func(v int32)) {
	if s.spill != nil {
		for v := range s.spill {
			f(v)
		}
		return
	}
	for i := int8(0); i < s.inlineLen; i++ {
		f(s.inline[i])
	}
}

// Union adds every element of other into s.
func (s *SmallSet) Union(other *SmallSet) {
	other.Each(s.Add)
}

// AnchorSetDiff is a delta over annotation indices, kept as two sets:
// indices that newly appear in an anchor cache and indices that
// disappeared from it. ApplyTo folds both into a cached set without
// re-scanning the pieces.
type AnchorSetDiff struct {
	appeared  SmallSet
	disappeared SmallSet
}

// Appeared records that idx newly appears.
func (d *AnchorSetDiff) Appeared(idx int32) { d.appeared.Add(idx) }

// Disappeared records that idx no longer appears.
func (d *AnchorSetDiff) Disappeared(idx int32) { d.disappeared.Add(idx) }

// ApplyTo folds the diff into a SmallSet representing a cached union.
func (d *AnchorSetDiff) ApplyTo(cache *SmallSet) {
	d.appeared.Each(cache.Add)
	d.disappeared.Each(cache.Remove)
}

// IsEmpty reports whether the diff carries no changes.
func (d *AnchorSetDiff) IsEmpty() bool {
	return d.appeared.Len() == 0 && d.disappeared.Len() == 0
}
