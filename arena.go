package richtext

// Arena is an append-only byte buffer. Every Slice it hands out stays
// valid for the arena's whole lifetime: bytes already appended are never
// rewritten, and a later Append only writes past the current end, so a
// Slice's indices into the backing buffer are stable even as the
// backing buffer itself is reallocated underneath.
//
// Pieces (Elements) hold a Slice rather than a copied []byte, which is
// what lets a split piece share storage with its sibling without
// copying (spec: "shared references between pieces remain valid
// without copying").
type Arena struct {
	buf []byte
}

// NewArena returns an empty Arena, optionally preallocated to hint bytes.
func NewArena(hint int) *Arena {
	if hint < 0 {
		hint = 0
	}
	return &Arena{buf: make([]byte, 0, hint)}
}

// Slice is a half-open range [Start, End) into an Arena's backing buffer.
// It is a value type: copying a Slice never copies bytes.
type Slice struct {
	Start, End int
}

// Len returns the number of bytes the slice covers.
func (s Slice) Len() int { return s.End - s.Start }

// Append writes p to the arena and returns a Slice addressing it.
func (a *Arena) Append(p []byte) Slice {
	start := len(a.buf)
	a.buf = append(a.buf, p...)
	return Slice{Start: start, End: start + len(p)}
}

// AppendString is Append for a string, avoiding a caller-side conversion.
func (a *Arena) AppendString(s string) Slice {
	start := len(a.buf)
	a.buf = append(a.buf, s...)
	return Slice{Start: start, End: start + len(s)}
}

// Bytes returns the bytes addressed by s. The returned slice aliases the
// arena's backing array and must not be mutated by the caller.
func (a *Arena) Bytes(s Slice) []byte {
	return a.buf[s.Start:s.End]
}

// String returns the bytes addressed by s as a string (one copy, as all
// Go string conversions from []byte require).
func (a *Arena) String(s Slice) string {
	return string(a.buf[s.Start:s.End])
}

// CanMergeAppend reports whether s is exactly the suffix of the arena
// that a subsequent Append(p) would extend contiguously, i.e. whether a
// piece ending at s could grow in place instead of allocating a new one.
func (a *Arena) CanMergeAppend(s Slice) bool {
	return s.End == len(a.buf)
}

// Split divides s at the given byte offset (relative to s.Start) into
// two contiguous slices.
func (s Slice) Split(offset int) (left, right Slice) {
	mid := s.Start + offset
	return Slice{Start: s.Start, End: mid}, Slice{Start: mid, End: s.End}
}
