// Package cachestore wraps any Store with a bounded in-memory block
// cache and single-flight request coalescing: concurrent Gets for the
// same uncached CID share one underlying fetch.
package cachestore

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ipfs-rust/libipld/core/block"
	"github.com/ipfs-rust/libipld/core/cid"
	"github.com/ipfs-rust/libipld/core/store"
)

// DefaultCacheSize is the block capacity used when no capacity option
// is given.
var DefaultCacheSize = 128

// Store decorates an inner store.Store. Cache entries are only ever
// invalidated by eviction: blocks are immutable, so there is no
// invalidate-on-write path.
type Store struct {
	inner store.Store
	data  cache

	mu      sync.Mutex
	flights map[cid.Cid]*flight
}

var _ store.Store = (*Store)(nil)
var _ store.PinLister = (*Store)(nil)

// flight is the awaitable placeholder late joiners attach to instead of
// issuing a duplicate fetch. blk and err are written exactly once,
// before done is closed.
type flight struct {
	done chan struct{}
	blk  block.Block
	err  error
}

// cache abstracts over the golang-lru cache flavors, whose Add
// signatures differ.
type cache interface {
	Get(c cid.Cid) (block.Block, bool)
	Add(c cid.Cid, b block.Block)
}

type lruCache struct {
	*lru.Cache[cid.Cid, block.Block]
}

func (l lruCache) Add(c cid.Cid, b block.Block) {
	l.Cache.Add(c, b)
}

type twoQueueCache struct {
	*lru.TwoQueueCache[cid.Cid, block.Block]
}

// Option is an option configuring a cache store.
type Option func(cfg *config) error

type config struct {
	capacity int
	twoQueue bool
}

// WithCapacity bounds the cache to the given number of blocks. Pass a
// value less than 1 to use DefaultCacheSize.
func WithCapacity(capacity int) Option {
	return func(cfg *config) error {
		cfg.capacity = capacity
		return nil
	}
}

// WithTwoQueue selects the 2Q eviction policy, which resists scan
// pollution better than plain LRU.
func WithTwoQueue() Option {
	return func(cfg *config) error {
		cfg.twoQueue = true
		return nil
	}
}

// New creates a caching decorator around inner.
func New(inner store.Store, options ...Option) (*Store, error) {
	cfg := config{}
	for _, opt := range options {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if cfg.capacity <= 0 {
		cfg.capacity = DefaultCacheSize
	}

	var data cache
	if cfg.twoQueue {
		c, err := lru.New2Q[cid.Cid, block.Block](cfg.capacity)
		if err != nil {
			return nil, fmt.Errorf("creating 2Q block cache: %w", err)
		}
		data = twoQueueCache{c}
	} else {
		c, err := lru.New[cid.Cid, block.Block](cfg.capacity)
		if err != nil {
			return nil, fmt.Errorf("creating block LRU: %w", err)
		}
		data = lruCache{c}
	}

	return &Store{
		inner:   inner,
		data:    data,
		flights: map[cid.Cid]*flight{},
	}, nil
}

// Get returns the cached block, joins an in-flight fetch for the same
// CID, or fetches from the inner store. The lock is never held across
// the inner Get, so unrelated lookups do not block behind I/O. A
// waiter abandoning via its context does not disturb the flight; a
// failed or abandoned fetch fails out every waiter and clears the
// slot.
func (s *Store) Get(ctx context.Context, c cid.Cid) (block.Block, error) {
	if b, ok := s.data.Get(c); ok {
		return b, nil
	}

	s.mu.Lock()
	// Re-check under the lock: the fetch that was in flight during the
	// unlocked probe may have landed already.
	if b, ok := s.data.Get(c); ok {
		s.mu.Unlock()
		return b, nil
	}
	if f, ok := s.flights[c]; ok {
		s.mu.Unlock()
		select {
		case <-f.done:
			return f.blk, f.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f := &flight{done: make(chan struct{})}
	s.flights[c] = f
	s.mu.Unlock()

	b, err := s.inner.Get(ctx, c)

	s.mu.Lock()
	delete(s.flights, c)
	if err == nil {
		s.data.Add(c, b)
	}
	s.mu.Unlock()

	f.blk, f.err = b, err
	close(f.done)

	return b, err
}

// Put writes through to the inner store and caches the block.
func (s *Store) Put(ctx context.Context, b block.Block) error {
	if err := s.inner.Put(ctx, b); err != nil {
		return err
	}
	s.data.Add(b.Cid(), b)
	return nil
}

func (s *Store) Pin(ctx context.Context, c cid.Cid) error {
	return s.inner.Pin(ctx, c)
}

func (s *Store) Unpin(ctx context.Context, c cid.Cid) error {
	return s.inner.Unpin(ctx, c)
}

func (s *Store) Flush(ctx context.Context) error {
	return s.inner.Flush(ctx)
}

// Pins enumerates the inner store's pin set.
func (s *Store) Pins(ctx context.Context) ([]cid.Cid, error) {
	if pl, ok := s.inner.(store.PinLister); ok {
		return pl.Pins(ctx)
	}
	return nil, fmt.Errorf("cachestore: inner store cannot list pins")
}
