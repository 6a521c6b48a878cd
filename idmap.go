package richtext

import "sort"

// idEntryKind distinguishes the two cursor kinds spec §4.5 describes.
type idEntryKind uint8

const (
	idEntryInsert idEntryKind = iota
	idEntryDeleteBackward
)

// idEntry is one run-table row: counters [Start, Start+Len) either point
// at the live piece holding them (Insert) or record that a delete op
// already covered them (DeleteBackward), so a redelivered delete over the
// same range can be recognized and absorbed instead of double-applied.
type idEntry struct {
	Start Counter
	Len   int
	Kind  idEntryKind
	Elem  *Element
}

func (e idEntry) end() Counter { return e.Start + Counter(e.Len) }

// IDMap maps each client's OpID counters to the tree cursor currently
// holding them. It is the durable handle pieces are found through: tree
// mutations (splits, merges) invalidate any (leaf, offset) pair taken
// before them, but an OpID's entry in the IDMap is kept current by the
// tree calling back into Insert/Split whenever a piece holding that OpID
// range moves or divides (spec §4.5, §9 "cycles / shared mutability").
type IDMap struct {
	runs map[ClientID][]idEntry
}

// NewIDMap returns an empty IDMap.
func NewIDMap() *IDMap {
	return &IDMap{runs: make(map[ClientID][]idEntry)}
}

func (m *IDMap) putClient(client ClientID, e idEntry) {
	list := m.runs[client]
	i := sort.Search(len(list), func(i int) bool { return list[i].Start >= e.Start })
	list = append(list, idEntry{})
	copy(list[i+1:], list[i:])
	list[i] = e
	m.runs[client] = list
}

// Insert records that id's run of length n now lives in elem, replacing
// any Insert entries that start inside that run.
func (m *IDMap) Insert(id OpID, n int, elem *Element) {
	end := id.Counter + Counter(n)
	list := m.runs[id.Client]
	kept := list[:0]
	for _, e := range list {
		if e.Kind == idEntryInsert && e.Start >= id.Counter && e.Start < end {
			continue
		}
		kept = append(kept, e)
	}
	m.runs[id.Client] = kept
	m.putClient(id.Client, idEntry{Start: id.Counter, Len: n, Kind: idEntryInsert, Elem: elem})
}

// Split informs the map that the entry covering id has split: the left
// half keeps [id.counter, id.counter+leftLen) pointing at left, the
// right half covers the remaining atoms and points at right.
func (m *IDMap) Split(id OpID, leftLen int, left, right *Element) {
	m.Insert(id, leftLen, left)
	m.Insert(id.Add(leftLen), right.AtomLen, right)
}

// MarkDeleted records that id's run of length n has been deleted.
func (m *IDMap) MarkDeleted(id OpID, n int) {
	m.putClient(id.Client, idEntry{Start: id.Counter, Len: n, Kind: idEntryDeleteBackward})
}

// Get returns the element currently holding id, and the offset of id
// within that element, if id falls within a recorded Insert entry.
func (m *IDMap) Get(id OpID) (elem *Element, offset int, ok bool) {
	list := m.runs[id.Client]
	i := sort.Search(len(list), func(i int) bool { return list[i].Start > id.Counter })
	for i--; i >= 0; i-- {
		e := list[i]
		if e.Kind != idEntryInsert {
			continue
		}
		if id.Counter >= e.end() {
			return nil, 0, false
		}
		return e.Elem, int(id.Counter - e.Start), true
	}
	return nil, 0, false
}

// GetLast returns the entry with the greatest Start <= id.Counter for
// id's client, even if id falls outside that entry's length, used to
// extend runs when a new insert is contiguous with a prior one.
func (m *IDMap) GetLast(id OpID) (elem *Element, ok bool) {
	list := m.runs[id.Client]
	i := sort.Search(len(list), func(i int) bool { return list[i].Start > id.Counter })
	if i == 0 {
		return nil, false
	}
	e := list[i-1]
	if e.Kind != idEntryInsert {
		return nil, false
	}
	return e.Elem, true
}

// IsDeleted reports whether id was previously recorded via MarkDeleted,
// letting a redelivered delete be recognized and absorbed as a no-op.
func (m *IDMap) IsDeleted(id OpID) bool {
	list := m.runs[id.Client]
	i := sort.Search(len(list), func(i int) bool { return list[i].end() > id.Counter })
	if i >= len(list) {
		return false
	}
	e := list[i]
	return e.Kind == idEntryDeleteBackward && id.Counter >= e.Start && id.Counter < e.end()
}
