package prime_test

import (
	"testing"

	"github.com/ipld/go-ipld-prime/datamodel"
	cidlink "github.com/ipld/go-ipld-prime/linking/cid"
	"github.com/ipld/go-ipld-prime/node/basicnode"
	"github.com/stretchr/testify/require"

	"github.com/ipfs-rust/libipld/core/ipld"
	"github.com/ipfs-rust/libipld/core/ipld/prime"
	"github.com/ipfs-rust/libipld/testing/helpers"
)

func fixture() ipld.Node {
	return ipld.NewMap(
		ipld.Entry{Key: "null", Value: ipld.Null},
		ipld.Entry{Key: "bool", Value: ipld.NewBool(true)},
		ipld.Entry{Key: "int", Value: ipld.NewInt(-7)},
		ipld.Entry{Key: "float", Value: ipld.NewFloat(2.5)},
		ipld.Entry{Key: "string", Value: ipld.NewString("hi")},
		ipld.Entry{Key: "bytes", Value: ipld.NewBytes([]byte{1, 2, 3})},
		ipld.Entry{Key: "list", Value: ipld.NewList(ipld.NewInt(1), ipld.NewString("two"))},
		ipld.Entry{Key: "link", Value: ipld.NewLink(helpers.RandomCid())},
	)
}

func TestWrap(t *testing.T) {
	n := fixture()
	w := prime.Wrap(n)
	require.Equal(t, datamodel.Kind_Map, w.Kind())
	require.Equal(t, int64(8), w.Length())

	t.Run("scalar lookups", func(t *testing.T) {
		b, err := w.LookupByString("bool")
		require.NoError(t, err)
		v, err := b.AsBool()
		require.NoError(t, err)
		require.True(t, v)

		i, err := w.LookupByString("int")
		require.NoError(t, err)
		iv, err := i.AsInt()
		require.NoError(t, err)
		require.Equal(t, int64(-7), iv)

		_, err = w.LookupByString("nope")
		require.Error(t, err)
	})

	t.Run("list lookup by index", func(t *testing.T) {
		l, err := w.LookupByString("list")
		require.NoError(t, err)
		require.Equal(t, datamodel.Kind_List, l.Kind())
		e, err := l.LookupByIndex(1)
		require.NoError(t, err)
		s, err := e.AsString()
		require.NoError(t, err)
		require.Equal(t, "two", s)
	})

	t.Run("link converts", func(t *testing.T) {
		ln, err := w.LookupByString("link")
		require.NoError(t, err)
		l, err := ln.AsLink()
		require.NoError(t, err)
		cl, ok := l.(cidlink.Link)
		require.True(t, ok)
		want, err := n.Get(ipld.Key("link"))
		require.NoError(t, err)
		c, err := want.AsLink()
		require.NoError(t, err)
		require.Equal(t, c.Bytes(), cl.Cid.Bytes())
	})

	t.Run("map iterator preserves order", func(t *testing.T) {
		var keys []string
		for it := w.MapIterator(); !it.Done(); {
			k, _, err := it.Next()
			require.NoError(t, err)
			s, err := k.AsString()
			require.NoError(t, err)
			keys = append(keys, s)
		}
		require.Equal(t, []string{"null", "bool", "int", "float", "string", "bytes", "list", "link"}, keys)
	})
}

func TestRoundTrip(t *testing.T) {
	n := fixture()
	out, err := prime.Unwrap(prime.Wrap(n))
	require.NoError(t, err)
	require.True(t, n.Equals(out))
}

func TestUnwrapBasicnode(t *testing.T) {
	nb := basicnode.Prototype.Map.NewBuilder()
	ma, err := nb.BeginMap(2)
	require.NoError(t, err)
	require.NoError(t, ma.AssembleKey().AssignString("a"))
	require.NoError(t, ma.AssembleValue().AssignInt(1))
	require.NoError(t, ma.AssembleKey().AssignString("b"))
	require.NoError(t, ma.AssembleValue().AssignString("two"))
	require.NoError(t, ma.Finish())

	out, err := prime.Unwrap(nb.Build())
	require.NoError(t, err)
	want := ipld.NewMap(
		ipld.Entry{Key: "a", Value: ipld.NewInt(1)},
		ipld.Entry{Key: "b", Value: ipld.NewString("two")},
	)
	require.True(t, want.Equals(out))
}
