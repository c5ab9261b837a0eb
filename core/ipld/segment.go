package ipld

import "strconv"

// Segment is one step of a path: a list index or a map key.
type Segment struct {
	key   string
	idx   int
	isKey bool
}

// Index builds a list-index segment.
func Index(i int) Segment {
	return Segment{idx: i}
}

// Key builds a map-key segment.
func Key(k string) Segment {
	return Segment{key: k, isKey: true}
}

func (s Segment) String() string {
	if s.isKey {
		return s.key
	}
	return strconv.Itoa(s.idx)
}

// Get indexes one level into a list or map Node. A key segment indexes
// a list when it parses as a decimal index, and an index segment
// indexes a map by its decimal string, mirroring the flexibility of
// text paths. Scalar kinds fail with a TypeError; an absent key or
// out-of-range index fails with a SegmentNotFoundError.
func (n Node) Get(seg Segment) (Node, error) {
	switch n.kind {
	case KindList:
		i := seg.idx
		if seg.isKey {
			parsed, err := strconv.Atoi(seg.key)
			if err != nil {
				return Null, &SegmentNotFoundError{Segment: seg, In: n.kind}
			}
			i = parsed
		}
		if i < 0 || i >= len(n.l) {
			return Null, &SegmentNotFoundError{Segment: seg, In: n.kind}
		}
		return n.l[i], nil
	case KindMap:
		k := seg.key
		if !seg.isKey {
			k = strconv.Itoa(seg.idx)
		}
		v, ok := n.m[k]
		if !ok {
			return Null, &SegmentNotFoundError{Segment: seg, In: n.kind}
		}
		return v, nil
	}
	expected := KindMap
	if !seg.isKey {
		expected = KindList
	}
	return Null, &TypeError{Expected: expected, Found: n.kind}
}
