package richtext

import (
	"bytes"
	"encoding/binary"
	"io"
	"sort"

	farm "github.com/dgryski/go-farm"
	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// EncodeOps serializes ops into the columnar update blob of spec §6.2:
// a checksum header, then a snappy-compressed body whose columns are
// consumed in `ops`-order by kind. ops need not be pre-sorted; encoding
// sorts a copy by (client, counter) so Δ-encoded columns stay compact.
func EncodeOps(ops []Op) []byte {
	body := encodeBody(ops)
	sum := farm.Hash64(body)
	compressed := snappy.Encode(nil, body)
	out := make([]byte, 8+len(compressed))
	binary.LittleEndian.PutUint64(out, sum)
	copy(out[8:], compressed)
	return out
}

// DecodeOps reverses EncodeOps, rejecting a blob whose checksum doesn't
// match or whose body is truncated/malformed with ErrDecode.
func DecodeOps(blob []byte) ([]Op, error) {
	if len(blob) < 8 {
		return nil, errors.Wrap(ErrDecode, "blob shorter than header")
	}
	sum := binary.LittleEndian.Uint64(blob[:8])
	body, err := snappy.Decode(nil, blob[8:])
	if err != nil {
		return nil, errors.Wrap(ErrDecode, err.Error())
	}
	if farm.Hash64(body) != sum {
		return nil, errors.Wrap(ErrDecode, "checksum mismatch")
	}
	return decodeBody(body)
}

// EncodeVersion serializes a version vector as the columnar {client,
// counter} sequence of spec §6.3.
func EncodeVersion(vv map[ClientID]Counter) []byte {
	clients := make([]ClientID, 0, len(vv))
	for c := range vv {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i] < clients[j] })

	var buf bytes.Buffer
	writeUvarint(&buf, uint64(len(clients)))
	for _, c := range clients {
		writeUvarint(&buf, uint64(c))
		writeUvarint(&buf, uint64(vv[c]))
	}
	return buf.Bytes()
}

// DecodeVersion reverses EncodeVersion.
func DecodeVersion(blob []byte) (map[ClientID]Counter, error) {
	r := bytes.NewReader(blob)
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, errors.Wrap(ErrDecode, "version count")
	}
	vv := make(map[ClientID]Counter, n)
	for i := uint64(0); i < n; i++ {
		c, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, errors.Wrap(ErrDecode, "version client")
		}
		v, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, errors.Wrap(ErrDecode, "version counter")
		}
		vv[ClientID(c)] = Counter(v)
	}
	return vv, nil
}

// --- client / type interners ------------------------------------------

func collectClients(ops []Op) []ClientID {
	set := make(map[ClientID]struct{})
	add := func(id OpID) {
		if !id.IsZero() {
			set[id.Client] = struct{}{}
		}
	}
	for _, op := range ops {
		add(op.ID)
		add(op.Left)
		add(op.Right)
		add(op.StartOpID)
		add(op.Range.Start.OpID)
		add(op.Range.End.OpID)
		add(op.TargetAnnID)
		if op.NewStart != nil {
			add(op.NewStart.OpID)
		}
		if op.NewEnd != nil {
			add(op.NewEnd.OpID)
		}
	}
	out := make([]ClientID, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func collectTypes(ops []Op) []string {
	set := make(map[string]struct{})
	for _, op := range ops {
		if op.Kind == OpAnnotate && op.Type != "" {
			set[op.Type] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// --- varint helpers ------------------------------------------------------

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var scratch [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(scratch[:], v)
	buf.Write(scratch[:n])
}

func writeVarint(buf *bytes.Buffer, v int64) {
	var scratch [binary.MaxVarintLen64]byte
	n := binary.PutVarint(scratch[:], v)
	buf.Write(scratch[:n])
}

func writeString(buf *bytes.Buffer, s string) {
	writeUvarint(buf, uint64(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

// writeOpID writes client idx (by clientIdx) then counter, with no flag:
// callers only reach here once they've confirmed id is non-zero.
func writeOpID(buf *bytes.Buffer, id OpID, clientIdx map[ClientID]int) {
	writeUvarint(buf, uint64(clientIdx[id.Client]))
	writeUvarint(buf, uint64(id.Counter))
}

func readOpID(r *bytes.Reader, clients []ClientID) (OpID, error) {
	ci, err := binary.ReadUvarint(r)
	if err != nil {
		return OpID{}, err
	}
	if int(ci) >= len(clients) {
		return OpID{}, errors.New("client index out of range")
	}
	c, err := binary.ReadUvarint(r)
	if err != nil {
		return OpID{}, err
	}
	return OpID{Client: clients[ci], Counter: Counter(c)}, nil
}

// writeAnchor writes the anchor's client idx, counter, and Before/After
// type byte (writeOptAnchorPtr adds a presence byte in front). A boundary
// anchor (zero OpID) is written with a sentinel client idx of the max
// uint and no counter, so it round-trips without needing a real client.
const boundaryClientIdx = ^uint64(0)

func writeAnchor(buf *bytes.Buffer, a Anchor, clientIdx map[ClientID]int) {
	if a.IsBoundary() {
		writeUvarint(buf, boundaryClientIdx)
	} else {
		writeUvarint(buf, uint64(clientIdx[a.OpID.Client]))
		writeUvarint(buf, uint64(a.OpID.Counter))
	}
	if a.Type == Before {
		buf.WriteByte(0)
	} else {
		buf.WriteByte(1)
	}
}

func readAnchor(r *bytes.Reader, clients []ClientID) (Anchor, error) {
	ci, err := binary.ReadUvarint(r)
	if err != nil {
		return Anchor{}, err
	}
	var a Anchor
	if ci != boundaryClientIdx {
		counter, err := binary.ReadUvarint(r)
		if err != nil {
			return Anchor{}, err
		}
		if int(ci) >= len(clients) {
			return Anchor{}, errors.New("client index out of range")
		}
		a.OpID = OpID{Client: clients[ci], Counter: Counter(counter)}
	}
	typeByte, err := r.ReadByte()
	if err != nil {
		return Anchor{}, err
	}
	if typeByte == 1 {
		a.Type = After
	} else {
		a.Type = Before
	}
	return a, nil
}

func writeOptAnchorPtr(buf *bytes.Buffer, a *Anchor, clientIdx map[ClientID]int) {
	if a == nil {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(1)
	writeAnchor(buf, *a, clientIdx)
}

func readOptAnchorPtr(r *bytes.Reader, clients []ClientID) (*Anchor, error) {
	present, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if present == 0 {
		return nil, nil
	}
	a, err := readAnchor(r, clients)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// --- body encode/decode --------------------------------------------------

func encodeBody(ops []Op) []byte {
	sorted := append([]Op(nil), ops...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ID.Client != sorted[j].ID.Client {
			return sorted[i].ID.Client < sorted[j].ID.Client
		}
		return sorted[i].ID.Counter < sorted[j].ID.Counter
	})

	clients := collectClients(sorted)
	clientIdx := make(map[ClientID]int, len(clients))
	for i, c := range clients {
		clientIdx[c] = i
	}
	types := collectTypes(sorted)
	typeIdx := make(map[string]int, len(types))
	for i, t := range types {
		typeIdx[t] = i
	}

	opLen := make(map[ClientID]int, len(clients))
	for _, op := range sorted {
		opLen[op.ID.Client]++
	}

	var buf bytes.Buffer

	writeUvarint(&buf, uint64(len(clients)))
	for _, c := range clients {
		writeUvarint(&buf, uint64(c))
	}
	writeUvarint(&buf, uint64(len(types)))
	for _, t := range types {
		writeString(&buf, t)
	}
	for _, c := range clients {
		writeUvarint(&buf, uint64(opLen[c]))
	}

	writeUvarint(&buf, uint64(len(sorted)))
	prevCounter := make(map[ClientID]Counter, len(clients))
	prevLamport := make(map[ClientID]Lamport, len(clients))
	for _, op := range sorted {
		writeUvarint(&buf, uint64(clientIdx[op.ID.Client]))
		writeUvarint(&buf, uint64(op.ID.Counter-prevCounter[op.ID.Client]))
		writeVarint(&buf, int64(op.Lamport)-int64(prevLamport[op.ID.Client]))
		buf.WriteByte(byte(op.Kind))
		prevCounter[op.ID.Client] = op.ID.Counter
		prevLamport[op.ID.Client] = op.Lamport
	}

	for _, op := range sorted {
		if op.Kind != OpInsert {
			continue
		}
		writeString(&buf, op.Text)
		mask := byte(0)
		if !op.Left.IsZero() {
			mask |= 1
		}
		if !op.Right.IsZero() {
			mask |= 2
		}
		buf.WriteByte(mask)
		if mask&1 != 0 {
			writeOpID(&buf, op.Left, clientIdx)
		}
		if mask&2 != 0 {
			writeOpID(&buf, op.Right, clientIdx)
		}
	}

	for _, op := range sorted {
		if op.Kind != OpDelete {
			continue
		}
		writeOpID(&buf, op.StartOpID, clientIdx)
		writeVarint(&buf, int64(op.SignedLen))
	}

	for _, op := range sorted {
		if op.Kind != OpAnnotate {
			continue
		}
		writeAnchor(&buf, op.Range.Start, clientIdx)
		writeAnchor(&buf, op.Range.End, clientIdx)
		buf.WriteByte(byte(op.Behavior))
		writeUvarint(&buf, uint64(typeIdx[op.Type]))
	}

	for _, op := range sorted {
		if op.Kind != OpPatch {
			continue
		}
		writeOpID(&buf, op.TargetAnnID, clientIdx)
		writeOptAnchorPtr(&buf, op.NewStart, clientIdx)
		writeOptAnchorPtr(&buf, op.NewEnd, clientIdx)
	}

	return buf.Bytes()
}

func decodeBody(body []byte) ([]Op, error) {
	r := bytes.NewReader(body)

	nClients, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, errors.Wrap(ErrDecode, "clients count")
	}
	clients := make([]ClientID, nClients)
	for i := range clients {
		v, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, errors.Wrap(ErrDecode, "clients")
		}
		clients[i] = ClientID(v)
	}

	nTypes, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, errors.Wrap(ErrDecode, "types count")
	}
	types := make([]string, nTypes)
	for i := range types {
		s, err := readString(r)
		if err != nil {
			return nil, errors.Wrap(ErrDecode, "types")
		}
		types[i] = s
	}

	opLen := make([]uint64, nClients)
	for i := range opLen {
		v, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, errors.Wrap(ErrDecode, "op_len")
		}
		opLen[i] = v
	}

	nOps, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, errors.Wrap(ErrDecode, "ops count")
	}
	ops := make([]Op, nOps)
	prevCounter := make([]Counter, nClients)
	prevLamport := make([]Lamport, nClients)
	for i := range ops {
		ci, err := binary.ReadUvarint(r)
		if err != nil || int(ci) >= len(clients) {
			return nil, errors.Wrap(ErrDecode, "op client idx")
		}
		dCounter, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, errors.Wrap(ErrDecode, "op counter")
		}
		dLamport, err := binary.ReadVarint(r)
		if err != nil {
			return nil, errors.Wrap(ErrDecode, "op lamport")
		}
		kindByte, err := r.ReadByte()
		if err != nil {
			return nil, errors.Wrap(ErrDecode, "op kind")
		}
		counter := prevCounter[ci] + Counter(dCounter)
		lamport := Lamport(int64(prevLamport[ci]) + dLamport)
		prevCounter[ci] = counter
		prevLamport[ci] = lamport
		ops[i] = Op{
			ID:      OpID{Client: clients[ci], Counter: counter},
			Lamport: lamport,
			Kind:    OpKind(kindByte),
		}
	}

	for i := range ops {
		if ops[i].Kind != OpInsert {
			continue
		}
		text, err := readString(r)
		if err != nil {
			return nil, errors.Wrap(ErrDecode, "insert text")
		}
		mask, err := r.ReadByte()
		if err != nil {
			return nil, errors.Wrap(ErrDecode, "insert mask")
		}
		ops[i].Text = text
		if mask&1 != 0 {
			if ops[i].Left, err = readOpID(r, clients); err != nil {
				return nil, errors.Wrap(ErrDecode, "insert left")
			}
		}
		if mask&2 != 0 {
			if ops[i].Right, err = readOpID(r, clients); err != nil {
				return nil, errors.Wrap(ErrDecode, "insert right")
			}
		}
	}

	for i := range ops {
		if ops[i].Kind != OpDelete {
			continue
		}
		start, err := readOpID(r, clients)
		if err != nil {
			return nil, errors.Wrap(ErrDecode, "delete start")
		}
		n, err := binary.ReadVarint(r)
		if err != nil {
			return nil, errors.Wrap(ErrDecode, "delete len")
		}
		ops[i].StartOpID = start
		ops[i].SignedLen = int(n)
	}

	for i := range ops {
		if ops[i].Kind != OpAnnotate {
			continue
		}
		start, err := readAnchor(r, clients)
		if err != nil {
			return nil, errors.Wrap(ErrDecode, "annotation start")
		}
		end, err := readAnchor(r, clients)
		if err != nil {
			return nil, errors.Wrap(ErrDecode, "annotation end")
		}
		behavior, err := r.ReadByte()
		if err != nil {
			return nil, errors.Wrap(ErrDecode, "annotation behavior")
		}
		typeIdx, err := binary.ReadUvarint(r)
		if err != nil || int(typeIdx) >= len(types) {
			return nil, errors.Wrap(ErrDecode, "annotation type")
		}
		ops[i].Range = AnchorRange{Start: start, End: end}
		ops[i].Behavior = Behavior(behavior)
		ops[i].Type = types[typeIdx]
	}

	for i := range ops {
		if ops[i].Kind != OpPatch {
			continue
		}
		target, err := readOpID(r, clients)
		if err != nil {
			return nil, errors.Wrap(ErrDecode, "patch target")
		}
		newStart, err := readOptAnchorPtr(r, clients)
		if err != nil {
			return nil, errors.Wrap(ErrDecode, "patch new_start")
		}
		newEnd, err := readOptAnchorPtr(r, clients)
		if err != nil {
			return nil, errors.Wrap(ErrDecode, "patch new_end")
		}
		ops[i].TargetAnnID = target
		ops[i].NewStart = newStart
		ops[i].NewEnd = newEnd
	}

	return ops, nil
}
