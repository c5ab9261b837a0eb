// Package store defines the minimal capability a backing medium must
// expose to hold content-addressed blocks: get, put, reference-counted
// pinning and a durability flush.
package store

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/ipfs-rust/libipld/core/block"
	"github.com/ipfs-rust/libipld/core/cid"
)

// Store is implemented by any block backing medium (memory, filesystem,
// network blob service). Methods may block on I/O and must be safe to
// call concurrently.
type Store interface {
	// Get returns the block named by the CID, or a NotFoundError.
	Get(ctx context.Context, c cid.Cid) (block.Block, error)
	// Put inserts a block. Inserting an already-present CID is a no-op:
	// content addressing guarantees the bytes are identical.
	Put(ctx context.Context, b block.Block) error
	// Pin marks the CID as a garbage-collection root. Pins are
	// reference counted: each Pin requires a matching Unpin before the
	// CID becomes collectible.
	Pin(ctx context.Context, c cid.Cid) error
	// Unpin releases one pin on the CID. Unpinning a CID with no pins
	// fails with a NotPinnedError.
	Unpin(ctx context.Context, c cid.Cid) error
	// Flush acquires whatever durability guarantee the backing medium
	// offers, returning once inserted blocks and pins are persisted.
	Flush(ctx context.Context) error
}

// PinLister is implemented by stores that can enumerate their pin set,
// which a GC policy uses as its roots.
type PinLister interface {
	Pins(ctx context.Context) ([]cid.Cid, error)
}

// Iterable is implemented by stores that can enumerate every block
// they hold, e.g. for archival or sweep phases.
type Iterable interface {
	Iterator(ctx context.Context) iter.Seq2[block.Block, error]
}

// NotFoundError means the store holds no block for the CID. It is
// recoverable: callers may retry against another source.
type NotFoundError struct {
	Cid cid.Cid
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("store: block %s not found", e.Cid)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// NotPinnedError means Unpin was called on a CID with a zero pin count.
type NotPinnedError struct {
	Cid cid.Cid
}

func (e *NotPinnedError) Error() string {
	return fmt.Sprintf("store: block %s is not pinned", e.Cid)
}
