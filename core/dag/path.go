package dag

import (
	"strings"

	"github.com/ipfs-rust/libipld/core/ipld"
)

// Path is an ordered sequence of segments identifying a location
// possibly several link-hops away from a root block.
type Path struct {
	segs []ipld.Segment
}

// NewPath builds a path from segments.
func NewPath(segs ...ipld.Segment) Path {
	return Path{segs: segs}
}

// ParsePath splits a "/"-separated string into key segments. Empty
// segments are dropped, so "a/b", "/a/b" and "a//b" are the same path.
// Numeric segments index lists when applied.
func ParsePath(s string) Path {
	var segs []ipld.Segment
	for _, part := range strings.Split(s, "/") {
		if part == "" {
			continue
		}
		segs = append(segs, ipld.Key(part))
	}
	return Path{segs: segs}
}

// Segments returns the segments in order. The slice must not be
// mutated.
func (p Path) Segments() []ipld.Segment {
	return p.segs
}

// Len returns the number of segments.
func (p Path) Len() int {
	return len(p.segs)
}

// Truncate returns the prefix of the path with n segments.
func (p Path) Truncate(n int) Path {
	if n > len(p.segs) {
		n = len(p.segs)
	}
	return Path{segs: p.segs[:n]}
}

func (p Path) String() string {
	parts := make([]string, len(p.segs))
	for i, seg := range p.segs {
		parts[i] = seg.String()
	}
	return strings.Join(parts, "/")
}
