package car

import (
	"context"
	"fmt"
	"io"

	"github.com/ipfs-rust/libipld/core/block"
	"github.com/ipfs-rust/libipld/core/cid"
	"github.com/ipfs-rust/libipld/core/store"
)

// Export archives every block reachable from the roots, breadth-first
// with roots first, so an archive always carries complete subgraphs.
func Export(ctx context.Context, s store.Store, roots ...cid.Cid) io.Reader {
	return Encode(roots, func(yield func(block.Block, error) bool) {
		visited := map[cid.Cid]struct{}{}
		queue := make([]cid.Cid, 0, len(roots))
		for _, root := range roots {
			if _, ok := visited[root]; ok {
				continue
			}
			visited[root] = struct{}{}
			queue = append(queue, root)
		}
		for len(queue) > 0 {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			c := queue[0]
			queue = queue[1:]

			b, err := s.Get(ctx, c)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(b, nil) {
				return
			}
			n, err := block.Decode(b)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, ref := range n.References() {
				if _, ok := visited[ref]; ok {
					continue
				}
				visited[ref] = struct{}{}
				queue = append(queue, ref)
			}
		}
	})
}

// Import reads an archive into the store and returns its roots. Blocks
// arrive verified from Decode; corrupt archives fail without partial
// trust.
func Import(ctx context.Context, s store.Store, r io.Reader) ([]cid.Cid, error) {
	roots, blocks, err := Decode(r)
	if err != nil {
		return nil, err
	}
	for b, err := range blocks {
		if err != nil {
			return nil, err
		}
		if err := s.Put(ctx, b); err != nil {
			return nil, fmt.Errorf("storing CAR block: %w", err)
		}
	}
	return roots, nil
}
