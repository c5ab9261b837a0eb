// Package memstore is an in-memory Store, mostly useful for tests and
// as the innermost layer under the caching decorator.
package memstore

import (
	"context"
	"iter"
	"sync"

	"github.com/ipfs-rust/libipld/core/block"
	"github.com/ipfs-rust/libipld/core/cid"
	"github.com/ipfs-rust/libipld/core/store"
)

type memstore struct {
	mu   sync.RWMutex
	keys []cid.Cid
	blks map[cid.Cid]block.Block
	pins map[cid.Cid]int
}

var _ store.Store = (*memstore)(nil)
var _ store.PinLister = (*memstore)(nil)
var _ store.Iterable = (*memstore)(nil)

// Option is an option configuring a memory store.
type Option func(cfg *msConfig) error

type msConfig struct {
	blks []block.Block
}

// WithBlocks configures blocks the store should contain from the start.
func WithBlocks(blks []block.Block) Option {
	return func(cfg *msConfig) error {
		cfg.blks = blks
		return nil
	}
}

// NewStore creates an empty in-memory store.
func NewStore(options ...Option) (store.Store, error) {
	cfg := msConfig{}
	for _, opt := range options {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	ms := &memstore{
		blks: map[cid.Cid]block.Block{},
		pins: map[cid.Cid]int{},
	}
	for _, b := range cfg.blks {
		if err := ms.Put(context.Background(), b); err != nil {
			return nil, err
		}
	}
	return ms, nil
}

func (ms *memstore) Get(ctx context.Context, c cid.Cid) (block.Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	b, ok := ms.blks[c]
	if !ok {
		return nil, &store.NotFoundError{Cid: c}
	}
	return b, nil
}

func (ms *memstore) Put(ctx context.Context, b block.Block) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	c := b.Cid()
	if _, ok := ms.blks[c]; ok {
		return nil
	}
	ms.blks[c] = b
	ms.keys = append(ms.keys, c)
	return nil
}

func (ms *memstore) Pin(ctx context.Context, c cid.Cid) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.pins[c]++
	return nil
}

func (ms *memstore) Unpin(ctx context.Context, c cid.Cid) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.pins[c] == 0 {
		return &store.NotPinnedError{Cid: c}
	}
	ms.pins[c]--
	if ms.pins[c] == 0 {
		delete(ms.pins, c)
	}
	return nil
}

func (ms *memstore) Pins(ctx context.Context) ([]cid.Cid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	pins := make([]cid.Cid, 0, len(ms.pins))
	for c := range ms.pins {
		pins = append(pins, c)
	}
	return pins, nil
}

// Flush is a no-op: memory offers no durability.
func (ms *memstore) Flush(ctx context.Context) error {
	return ctx.Err()
}

// Iterator yields every block in insertion order. Mutation during
// iteration is safe; the key snapshot is taken up front.
func (ms *memstore) Iterator(ctx context.Context) iter.Seq2[block.Block, error] {
	ms.mu.RLock()
	keys := make([]cid.Cid, len(ms.keys))
	copy(keys, ms.keys)
	ms.mu.RUnlock()
	return func(yield func(block.Block, error) bool) {
		for _, k := range keys {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			ms.mu.RLock()
			b, ok := ms.blks[k]
			ms.mu.RUnlock()
			if !ok {
				continue
			}
			if !yield(b, nil) {
				return
			}
		}
	}
}
