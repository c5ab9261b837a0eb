package ipld

import (
	"bytes"
	"encoding/binary"
	"hash/fnv"
	"io"
	"iter"
	"math"
	"slices"

	"github.com/ipfs-rust/libipld/core/cid"
)

// Kind discriminates the variants of a Node.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindList
	KindMap
	KindLink
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindLink:
		return "link"
	}
	return "invalid"
}

// Node is a value in the IPLD data model: a recursive union of null,
// bool, int, float, string, bytes, list, string-keyed map and link.
// Nodes are immutable once built and safe to share between goroutines.
// The zero Node is Null.
//
// A Node owns everything nested inside it; a Link is the only point
// where a reference crosses a block boundary.
type Node struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	x    []byte
	l    []Node
	keys []string
	m    map[string]Node
	lnk  cid.Cid
}

// Null is the null Node.
var Null = Node{}

// NewBool builds a bool Node.
func NewBool(b bool) Node {
	return Node{kind: KindBool, b: b}
}

// NewInt builds an integer Node.
func NewInt(i int64) Node {
	return Node{kind: KindInt, i: i}
}

// NewFloat builds a 64-bit float Node.
func NewFloat(f float64) Node {
	return Node{kind: KindFloat, f: f}
}

// NewString builds a string Node. The string must be well-formed UTF-8.
func NewString(s string) Node {
	return Node{kind: KindString, s: s}
}

// NewBytes builds a bytes Node. The slice is copied.
func NewBytes(b []byte) Node {
	return Node{kind: KindBytes, x: bytes.Clone(b)}
}

// NewList builds a list Node from elements in order.
func NewList(elems ...Node) Node {
	return Node{kind: KindList, l: slices.Clone(elems)}
}

// Entry is a key/value pair for building map Nodes.
type Entry struct {
	Key   string
	Value Node
}

// NewMap builds a map Node. Iteration preserves the order keys first
// appear; a repeated key overwrites the earlier value in place. Equality
// and canonical encoding are independent of this order.
func NewMap(entries ...Entry) Node {
	keys := make([]string, 0, len(entries))
	m := make(map[string]Node, len(entries))
	for _, e := range entries {
		if _, ok := m[e.Key]; !ok {
			keys = append(keys, e.Key)
		}
		m[e.Key] = e.Value
	}
	return Node{kind: KindMap, keys: keys, m: m}
}

// NewLink builds a link Node referencing another block by CID.
func NewLink(c cid.Cid) Node {
	return Node{kind: KindLink, lnk: c}
}

// Kind returns the variant of the Node.
func (n Node) Kind() Kind {
	return n.kind
}

// IsNull reports whether the Node is Null.
func (n Node) IsNull() bool {
	return n.kind == KindNull
}

// AsBool returns the boolean value, or a TypeError for other kinds.
func (n Node) AsBool() (bool, error) {
	if n.kind != KindBool {
		return false, &TypeError{Expected: KindBool, Found: n.kind}
	}
	return n.b, nil
}

// AsInt returns the integer value, or a TypeError for other kinds.
func (n Node) AsInt() (int64, error) {
	if n.kind != KindInt {
		return 0, &TypeError{Expected: KindInt, Found: n.kind}
	}
	return n.i, nil
}

// AsFloat returns the float value, or a TypeError for other kinds.
// Integers do not coerce.
func (n Node) AsFloat() (float64, error) {
	if n.kind != KindFloat {
		return 0, &TypeError{Expected: KindFloat, Found: n.kind}
	}
	return n.f, nil
}

// AsString returns the string value, or a TypeError for other kinds.
func (n Node) AsString() (string, error) {
	if n.kind != KindString {
		return "", &TypeError{Expected: KindString, Found: n.kind}
	}
	return n.s, nil
}

// AsBytes returns the byte value, or a TypeError for other kinds. The
// returned slice must not be mutated.
func (n Node) AsBytes() ([]byte, error) {
	if n.kind != KindBytes {
		return nil, &TypeError{Expected: KindBytes, Found: n.kind}
	}
	return n.x, nil
}

// AsList returns the list elements, or a TypeError for other kinds. The
// returned slice must not be mutated.
func (n Node) AsList() ([]Node, error) {
	if n.kind != KindList {
		return nil, &TypeError{Expected: KindList, Found: n.kind}
	}
	return n.l, nil
}

// AsLink returns the linked CID, or a TypeError for other kinds.
func (n Node) AsLink() (cid.Cid, error) {
	if n.kind != KindLink {
		return cid.Undef, &TypeError{Expected: KindLink, Found: n.kind}
	}
	return n.lnk, nil
}

// Length returns the number of elements of a list or entries of a map,
// and -1 for every other kind.
func (n Node) Length() int {
	switch n.kind {
	case KindList:
		return len(n.l)
	case KindMap:
		return len(n.keys)
	}
	return -1
}

// Entries iterates map entries in insertion order. It yields nothing
// for non-map Nodes.
func (n Node) Entries() iter.Seq2[string, Node] {
	return func(yield func(string, Node) bool) {
		if n.kind != KindMap {
			return
		}
		for _, k := range n.keys {
			if !yield(k, n.m[k]) {
				return
			}
		}
	}
}

// Items iterates list elements in order. It yields nothing for non-list
// Nodes.
func (n Node) Items() iter.Seq2[int, Node] {
	return func(yield func(int, Node) bool) {
		if n.kind != KindList {
			return
		}
		for i, e := range n.l {
			if !yield(i, e) {
				return
			}
		}
	}
}

// Equals reports structural equality: same kind and equal nested
// contents, with map comparison independent of insertion order.
func (n Node) Equals(o Node) bool {
	if n.kind != o.kind {
		return false
	}
	switch n.kind {
	case KindNull:
		return true
	case KindBool:
		return n.b == o.b
	case KindInt:
		return n.i == o.i
	case KindFloat:
		return n.f == o.f
	case KindString:
		return n.s == o.s
	case KindBytes:
		return bytes.Equal(n.x, o.x)
	case KindList:
		if len(n.l) != len(o.l) {
			return false
		}
		for i := range n.l {
			if !n.l[i].Equals(o.l[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(n.m) != len(o.m) {
			return false
		}
		for k, v := range n.m {
			ov, ok := o.m[k]
			if !ok || !v.Equals(ov) {
				return false
			}
		}
		return true
	case KindLink:
		return n.lnk == o.lnk
	}
	return false
}

// Fingerprint returns a structural hash of the Node, suitable as a
// cache or set key. Equal Nodes have equal fingerprints regardless of
// map insertion order. Not cryptographic.
func (n Node) Fingerprint() uint64 {
	h := fnv.New64a()
	n.sum(h)
	return h.Sum64()
}

func (n Node) sum(w io.Writer) {
	var buf [8]byte
	writeU64 := func(v uint64) {
		binary.BigEndian.PutUint64(buf[:], v)
		w.Write(buf[:])
	}
	w.Write([]byte{byte(n.kind)})
	switch n.kind {
	case KindBool:
		if n.b {
			w.Write([]byte{1})
		} else {
			w.Write([]byte{0})
		}
	case KindInt:
		writeU64(uint64(n.i))
	case KindFloat:
		writeU64(math.Float64bits(n.f))
	case KindString:
		writeU64(uint64(len(n.s)))
		io.WriteString(w, n.s)
	case KindBytes:
		writeU64(uint64(len(n.x)))
		w.Write(n.x)
	case KindList:
		writeU64(uint64(len(n.l)))
		for _, e := range n.l {
			e.sum(w)
		}
	case KindMap:
		writeU64(uint64(len(n.keys)))
		for _, k := range n.sortedKeys() {
			writeU64(uint64(len(k)))
			io.WriteString(w, k)
			n.m[k].sum(w)
		}
	case KindLink:
		b := n.lnk.Bytes()
		writeU64(uint64(len(b)))
		w.Write(b)
	}
}

func (n Node) sortedKeys() []string {
	keys := slices.Clone(n.keys)
	slices.Sort(keys)
	return keys
}

// References collects every CID linked anywhere inside the Node,
// recursively and deduplicated, in first-encounter order of a
// deterministic traversal (lists in order, maps by sorted key).
func (n Node) References() []cid.Cid {
	var refs []cid.Cid
	seen := map[cid.Cid]struct{}{}
	n.walkRefs(func(c cid.Cid) {
		if _, ok := seen[c]; ok {
			return
		}
		seen[c] = struct{}{}
		refs = append(refs, c)
	})
	return refs
}

func (n Node) walkRefs(visit func(cid.Cid)) {
	switch n.kind {
	case KindLink:
		visit(n.lnk)
	case KindList:
		for _, e := range n.l {
			e.walkRefs(visit)
		}
	case KindMap:
		for _, k := range n.sortedKeys() {
			n.m[k].walkRefs(visit)
		}
	}
}
