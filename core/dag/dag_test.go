package dag_test

import (
	"context"
	"sync/atomic"
	"testing"

	mh "github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/require"

	"github.com/ipfs-rust/libipld/core/block"
	"github.com/ipfs-rust/libipld/core/cid"
	"github.com/ipfs-rust/libipld/core/dag"
	"github.com/ipfs-rust/libipld/core/ipld"
	"github.com/ipfs-rust/libipld/core/ipld/codec/dagcbor"
	"github.com/ipfs-rust/libipld/core/store"
	"github.com/ipfs-rust/libipld/core/store/memstore"
	"github.com/ipfs-rust/libipld/testing/helpers"
)

func put(t *testing.T, s store.Store, n ipld.Node) cid.Cid {
	t.Helper()
	b, err := block.Encode(n, dagcbor.Codec, mh.SHA2_256)
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), b))
	return b.Cid()
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	s, err := memstore.NewStore()
	require.NoError(t, err)

	// child = {"b": 42}, root = {"a": Link(child)}
	child := put(t, s, ipld.NewMap(ipld.Entry{Key: "b", Value: ipld.NewInt(42)}))
	root := put(t, s, ipld.NewMap(ipld.Entry{Key: "a", Value: ipld.NewLink(child)}))

	t.Run("path spans a link", func(t *testing.T) {
		n, err := dag.Resolve(ctx, s, root, dag.ParsePath("a/b"))
		require.NoError(t, err)
		i, terr := n.AsInt()
		require.Nil(t, terr)
		require.Equal(t, int64(42), i)
	})

	t.Run("empty path is the root node", func(t *testing.T) {
		n, err := dag.Resolve(ctx, s, root, dag.ParsePath(""))
		require.NoError(t, err)
		require.Equal(t, ipld.KindMap, n.Kind())
	})

	t.Run("trailing link is not dereferenced", func(t *testing.T) {
		n, err := dag.Resolve(ctx, s, root, dag.ParsePath("a"))
		require.NoError(t, err)
		require.Equal(t, ipld.KindLink, n.Kind())
		c, terr := n.AsLink()
		require.Nil(t, terr)
		require.Equal(t, child, c)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := dag.Resolve(ctx, s, root, dag.ParsePath("a/c"))
		var snf *ipld.SegmentNotFoundError
		require.ErrorAs(t, err, &snf)
	})

	t.Run("indexing a scalar", func(t *testing.T) {
		_, err := dag.Resolve(ctx, s, root, dag.ParsePath("a/b/deep"))
		var te *ipld.TypeError
		require.ErrorAs(t, err, &te)
	})

	t.Run("dangling link", func(t *testing.T) {
		r := put(t, s, ipld.NewMap(ipld.Entry{Key: "a", Value: ipld.NewLink(helpers.RandomCid())}))
		_, err := dag.Resolve(ctx, s, r, dag.ParsePath("a/b"))
		require.True(t, store.IsNotFound(err))
	})

	t.Run("list index", func(t *testing.T) {
		r := put(t, s, ipld.NewMap(ipld.Entry{
			Key:   "xs",
			Value: ipld.NewList(ipld.NewString("zero"), ipld.NewString("one")),
		}))
		n, err := dag.Resolve(ctx, s, r, dag.ParsePath("xs/1"))
		require.NoError(t, err)
		str, terr := n.AsString()
		require.Nil(t, terr)
		require.Equal(t, "one", str)
	})

	t.Run("missing root", func(t *testing.T) {
		_, err := dag.Resolve(ctx, s, helpers.RandomCid(), dag.ParsePath("a"))
		require.True(t, store.IsNotFound(err))
	})
}

// countingStore records how often each CID is fetched.
type countingStore struct {
	store.Store
	gets map[cid.Cid]*atomic.Int64
}

func (cs *countingStore) Get(ctx context.Context, c cid.Cid) (block.Block, error) {
	counter, ok := cs.gets[c]
	if !ok {
		counter = &atomic.Int64{}
		cs.gets[c] = counter
	}
	counter.Add(1)
	return cs.Store.Get(ctx, c)
}

func TestReachable(t *testing.T) {
	ctx := context.Background()
	inner, err := memstore.NewStore()
	require.NoError(t, err)
	s := &countingStore{Store: inner, gets: map[cid.Cid]*atomic.Int64{}}

	// Diamond: root links X and Y, both of which link Z.
	z := put(t, s, ipld.NewString("shared leaf"))
	x := put(t, s, ipld.NewMap(ipld.Entry{Key: "z", Value: ipld.NewLink(z)}))
	y := put(t, s, ipld.NewList(ipld.NewLink(z), ipld.NewInt(7)))
	root := put(t, s, ipld.NewMap(
		ipld.Entry{Key: "x", Value: ipld.NewLink(x)},
		ipld.Entry{Key: "y", Value: ipld.NewLink(y)},
	))

	orphan := put(t, s, ipld.NewString("unreachable"))

	marked, err := dag.Reachable(ctx, s, root)
	require.NoError(t, err)
	require.Len(t, marked, 4)
	for _, c := range []cid.Cid{root, x, y, z} {
		require.Contains(t, marked, c)
	}
	require.NotContains(t, marked, orphan)

	t.Run("shared blocks load once", func(t *testing.T) {
		require.Equal(t, int64(1), s.gets[z].Load())
	})

	t.Run("multiple roots", func(t *testing.T) {
		marked, err := dag.Reachable(ctx, s, root, orphan, root)
		require.NoError(t, err)
		require.Len(t, marked, 5)
	})

	t.Run("missing root fails", func(t *testing.T) {
		_, err := dag.Reachable(ctx, s, helpers.RandomCid())
		require.Error(t, err)
	})
}

func TestParsePath(t *testing.T) {
	require.Equal(t, 0, dag.ParsePath("").Len())
	require.Equal(t, "a/b", dag.ParsePath("/a//b/").String())
	require.Equal(t, "a", dag.ParsePath("a/b").Truncate(1).String())
}
