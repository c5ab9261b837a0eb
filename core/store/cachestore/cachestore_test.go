package cachestore_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	mh "github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/require"

	"github.com/ipfs-rust/libipld/core/block"
	"github.com/ipfs-rust/libipld/core/cid"
	"github.com/ipfs-rust/libipld/core/store"
	"github.com/ipfs-rust/libipld/core/store/cachestore"
	"github.com/ipfs-rust/libipld/core/store/memstore"
	"github.com/ipfs-rust/libipld/testing/helpers"
)

// countingStore wraps a Store counting Get calls, optionally parking
// them until release is closed.
type countingStore struct {
	store.Store
	gets    atomic.Int64
	release chan struct{}
}

func (cs *countingStore) Get(ctx context.Context, c cid.Cid) (block.Block, error) {
	cs.gets.Add(1)
	if cs.release != nil {
		select {
		case <-cs.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return cs.Store.Get(ctx, c)
}

func randomBlock(t *testing.T) block.Block {
	t.Helper()
	data := helpers.RandomBytes(32)
	c, err := cid.Sum(0x55, mh.SHA2_256, data)
	require.NoError(t, err)
	return block.NewBlockUnsafe(c, data)
}

func TestGetCaches(t *testing.T) {
	ctx := context.Background()
	inner, err := memstore.NewStore()
	require.NoError(t, err)
	counting := &countingStore{Store: inner}
	s, err := cachestore.New(counting)
	require.NoError(t, err)

	b := randomBlock(t)
	require.NoError(t, inner.Put(ctx, b))

	for range 3 {
		out, err := s.Get(ctx, b.Cid())
		require.NoError(t, err)
		require.Equal(t, b.Bytes(), out.Bytes())
	}
	require.Equal(t, int64(1), counting.gets.Load())
}

func TestPutWritesThrough(t *testing.T) {
	ctx := context.Background()
	inner, err := memstore.NewStore()
	require.NoError(t, err)
	counting := &countingStore{Store: inner}
	s, err := cachestore.New(counting)
	require.NoError(t, err)

	b := randomBlock(t)
	require.NoError(t, s.Put(ctx, b))

	// Written through to the inner store...
	out, err := inner.Get(ctx, b.Cid())
	require.NoError(t, err)
	require.Equal(t, b.Bytes(), out.Bytes())

	// ...and cached, so reading back never touches it.
	_, err = s.Get(ctx, b.Cid())
	require.NoError(t, err)
	require.Equal(t, int64(0), counting.gets.Load())
}

func TestSingleFlight(t *testing.T) {
	ctx := context.Background()
	inner, err := memstore.NewStore()
	require.NoError(t, err)
	b := randomBlock(t)
	require.NoError(t, inner.Put(ctx, b))

	counting := &countingStore{Store: inner, release: make(chan struct{})}
	s, err := cachestore.New(counting)
	require.NoError(t, err)

	const waiters = 16
	var wg sync.WaitGroup
	errs := make([]error, waiters)
	for i := range waiters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.Get(ctx, b.Cid())
		}()
	}

	// Wait for the one fetch to be parked inside the inner store, then
	// let it finish.
	require.Eventually(t, func() bool {
		return counting.gets.Load() == 1
	}, time.Second, time.Millisecond)
	close(counting.release)
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int64(1), counting.gets.Load())
}

func TestFailedFlight(t *testing.T) {
	ctx := context.Background()
	inner, err := memstore.NewStore()
	require.NoError(t, err)
	counting := &countingStore{Store: inner, release: make(chan struct{})}
	s, err := cachestore.New(counting)
	require.NoError(t, err)

	c := helpers.RandomCid() // absent: the fetch will fail

	const waiters = 8
	var wg sync.WaitGroup
	errs := make([]error, waiters)
	for i := range waiters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.Get(ctx, c)
		}()
	}
	require.Eventually(t, func() bool {
		return counting.gets.Load() == 1
	}, time.Second, time.Millisecond)
	close(counting.release)
	wg.Wait()

	for _, err := range errs {
		require.True(t, store.IsNotFound(err))
	}

	t.Run("failure is not cached", func(t *testing.T) {
		_, err := s.Get(ctx, c)
		require.True(t, store.IsNotFound(err))
		require.Equal(t, int64(2), counting.gets.Load())
	})
}

func TestWaiterCancellation(t *testing.T) {
	ctx := context.Background()
	inner, err := memstore.NewStore()
	require.NoError(t, err)
	b := randomBlock(t)
	require.NoError(t, inner.Put(ctx, b))

	counting := &countingStore{Store: inner, release: make(chan struct{})}
	s, err := cachestore.New(counting)
	require.NoError(t, err)

	ownerDone := make(chan error, 1)
	go func() {
		_, err := s.Get(ctx, b.Cid())
		ownerDone <- err
	}()
	require.Eventually(t, func() bool {
		return counting.gets.Load() == 1
	}, time.Second, time.Millisecond)

	// A waiter with an already-cancelled context leaves promptly without
	// disturbing the flight.
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.Get(cancelled, b.Cid())
	require.ErrorIs(t, err, context.Canceled)

	close(counting.release)
	require.NoError(t, <-ownerDone)

	out, err := s.Get(ctx, b.Cid())
	require.NoError(t, err)
	require.Equal(t, b.Bytes(), out.Bytes())
	require.Equal(t, int64(1), counting.gets.Load())
}

func TestEviction(t *testing.T) {
	ctx := context.Background()
	inner, err := memstore.NewStore()
	require.NoError(t, err)
	counting := &countingStore{Store: inner}
	s, err := cachestore.New(counting, cachestore.WithCapacity(2))
	require.NoError(t, err)

	blks := []block.Block{randomBlock(t), randomBlock(t), randomBlock(t)}
	for _, b := range blks {
		require.NoError(t, inner.Put(ctx, b))
	}
	for _, b := range blks {
		_, err := s.Get(ctx, b.Cid())
		require.NoError(t, err)
	}
	require.Equal(t, int64(3), counting.gets.Load())

	// blks[0] was evicted by the third insert, so it costs another fetch.
	_, err = s.Get(ctx, blks[0].Cid())
	require.NoError(t, err)
	require.Equal(t, int64(4), counting.gets.Load())
}

func TestTwoQueue(t *testing.T) {
	ctx := context.Background()
	inner, err := memstore.NewStore()
	require.NoError(t, err)
	counting := &countingStore{Store: inner}
	s, err := cachestore.New(counting, cachestore.WithTwoQueue(), cachestore.WithCapacity(16))
	require.NoError(t, err)

	b := randomBlock(t)
	require.NoError(t, inner.Put(ctx, b))
	for range 2 {
		_, err := s.Get(ctx, b.Cid())
		require.NoError(t, err)
	}
	require.Equal(t, int64(1), counting.gets.Load())
}

func TestPinsDelegate(t *testing.T) {
	ctx := context.Background()
	inner, err := memstore.NewStore()
	require.NoError(t, err)
	s, err := cachestore.New(inner)
	require.NoError(t, err)

	c := helpers.RandomCid()
	require.NoError(t, s.Pin(ctx, c))
	pins, err := s.Pins(ctx)
	require.NoError(t, err)
	require.Equal(t, []cid.Cid{c}, pins)

	require.NoError(t, s.Unpin(ctx, c))
	var npe *store.NotPinnedError
	require.ErrorAs(t, s.Unpin(ctx, c), &npe)
	require.NoError(t, s.Flush(ctx))
}
