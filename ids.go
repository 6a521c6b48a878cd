package richtext

import "fmt"

// ClientID identifies a replica. Zero is reserved as the "no replica" /
// document-boundary sentinel and is never assigned to a real client.
type ClientID uint64

// Counter is a per-client monotonically increasing sequence number.
type Counter uint32

// Lamport is a process-wide logical clock: strictly increasing per local
// op, and on merge a replica's next value is the max of its own and the
// remote value plus the remote op's length.
type Lamport uint32

// OpID names one atomic operation: the client that issued it and the
// counter at which its run begins. A run of length n occupies
// [Counter, Counter+n).
type OpID struct {
	Client  ClientID
	Counter Counter
}

// IsZero reports whether id is the document-boundary sentinel (the zero
// value). ClientID 0 is never assigned to a real replica, so this is a
// safe sentinel check.
func (id OpID) IsZero() bool {
	return id.Client == 0
}

// Less gives OpID a total order, used to tie-break concurrent inserts at
// the same position and to order patch ids for range_lamport comparison.
func (id OpID) Less(other OpID) bool {
	if id.Client != other.Client {
		return id.Client < other.Client
	}
	return id.Counter < other.Counter
}

func (id OpID) String() string {
	if id.IsZero() {
		return "<boundary>"
	}
	return fmt.Sprintf("%d@%d", id.Counter, id.Client)
}

// Add returns the OpID n counters past id, within the same run.
func (id OpID) Add(n int) OpID {
	return OpID{Client: id.Client, Counter: id.Counter + Counter(n)}
}

// RangeLamport versions an annotation's range geometry: a later patch
// must carry a strictly greater (Lamport, OpID) pair than the current one
// to take effect (last-writer-wins on range geometry, per spec §4.4).
type RangeLamport struct {
	Lamport Lamport
	OpID    OpID
}

// Less reports whether rl sorts strictly before other.
func (rl RangeLamport) Less(other RangeLamport) bool {
	if rl.Lamport != other.Lamport {
		return rl.Lamport < other.Lamport
	}
	return rl.OpID.Less(other.OpID)
}
