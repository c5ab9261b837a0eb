// Package dag provides link-aware traversal over blocks held in a
// Store: resolving a path that may span several linked blocks, and
// marking the set of CIDs reachable from a group of roots.
package dag

import (
	"context"

	"github.com/pkg/errors"

	"github.com/ipfs-rust/libipld/core/block"
	"github.com/ipfs-rust/libipld/core/cid"
	"github.com/ipfs-rust/libipld/core/ipld"
	"github.com/ipfs-rust/libipld/core/store"
)

// Resolve loads the root block and applies the path segments in order.
// Whenever the current node is a Link and segments remain, the linked
// block is loaded through the store and decoded before continuing, so
// a path transparently spans block boundaries. A trailing Link is
// returned unresolved.
//
// Missing keys or indexes fail with ipld.SegmentNotFoundError and
// indexing into a scalar fails with ipld.TypeError, both wrapped with
// the failing segment's position.
func Resolve(ctx context.Context, s store.Store, root cid.Cid, p Path) (ipld.Node, error) {
	n, err := load(ctx, s, root)
	if err != nil {
		return ipld.Null, err
	}
	for i, seg := range p.Segments() {
		if err := ctx.Err(); err != nil {
			return ipld.Null, err
		}
		if n.Kind() == ipld.KindLink {
			c, _ := n.AsLink()
			n, err = load(ctx, s, c)
			if err != nil {
				return ipld.Null, errors.Wrapf(err, "following link at %q", p.Truncate(i))
			}
		}
		n, err = n.Get(seg)
		if err != nil {
			return ipld.Null, errors.Wrapf(err, "resolving %q", p.Truncate(i+1))
		}
	}
	return n, nil
}

// Reachable marks every CID reachable from the roots by following all
// links in every visited block, breadth-first. Each CID is visited
// exactly once however many times it is linked, so the traversal
// terminates on any DAG. The result is the mark set an external GC
// policy subtracts from the stored set to find garbage.
func Reachable(ctx context.Context, s store.Store, roots ...cid.Cid) (map[cid.Cid]struct{}, error) {
	marked := map[cid.Cid]struct{}{}
	queue := make([]cid.Cid, 0, len(roots))
	for _, root := range roots {
		if _, ok := marked[root]; ok {
			continue
		}
		marked[root] = struct{}{}
		queue = append(queue, root)
	}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c := queue[0]
		queue = queue[1:]

		n, err := load(ctx, s, c)
		if err != nil {
			return nil, errors.Wrapf(err, "marking %s", c)
		}
		for _, ref := range n.References() {
			if _, ok := marked[ref]; ok {
				continue
			}
			marked[ref] = struct{}{}
			queue = append(queue, ref)
		}
	}
	return marked, nil
}

func load(ctx context.Context, s store.Store, c cid.Cid) (ipld.Node, error) {
	b, err := s.Get(ctx, c)
	if err != nil {
		return ipld.Null, err
	}
	return block.Decode(b)
}
