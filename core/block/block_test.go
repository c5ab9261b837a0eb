package block_test

import (
	"testing"

	mh "github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/require"

	"github.com/ipfs-rust/libipld/core/block"
	"github.com/ipfs-rust/libipld/core/cid"
	"github.com/ipfs-rust/libipld/core/ipld"
	"github.com/ipfs-rust/libipld/core/ipld/codec/dagcbor"
	"github.com/ipfs-rust/libipld/core/ipld/codec/raw"
	"github.com/ipfs-rust/libipld/testing/helpers"
)

func TestEncode(t *testing.T) {
	n := ipld.NewMap(
		ipld.Entry{Key: "hello", Value: ipld.NewString("world")},
		ipld.Entry{Key: "link", Value: ipld.NewLink(helpers.RandomCid())},
	)
	b, err := block.Encode(n, dagcbor.Codec, mh.SHA2_256)
	require.NoError(t, err)
	require.Equal(t, uint64(dagcbor.Code), b.Cid().Codec())

	t.Run("decode round-trips", func(t *testing.T) {
		out, err := block.Decode(b)
		require.NoError(t, err)
		require.True(t, n.Equals(out))
	})

	t.Run("stable CID", func(t *testing.T) {
		b2, err := block.Encode(n, dagcbor.Codec, mh.SHA2_256)
		require.NoError(t, err)
		require.Equal(t, b.Cid(), b2.Cid())
	})
}

func TestNewBlock(t *testing.T) {
	data := []byte("some raw bytes")
	c := helpers.Must(cid.Sum(raw.Code, mh.SHA2_256, data))

	t.Run("valid bytes verify", func(t *testing.T) {
		b, err := block.NewBlock(c, data)
		require.NoError(t, err)
		require.Equal(t, c, b.Cid())

		out, err := block.Decode(b)
		require.NoError(t, err)
		require.True(t, out.Equals(ipld.NewBytes(data)))
	})

	t.Run("any flipped bit fails verification", func(t *testing.T) {
		for _, bit := range []int{0, 3, 7 * 8, len(data)*8 - 1} {
			corrupt := append([]byte(nil), data...)
			corrupt[bit/8] ^= 1 << (bit % 8)
			_, err := block.NewBlock(c, corrupt)
			var ve *block.VerificationError
			require.ErrorAs(t, err, &ve, "bit %d", bit)
			require.Equal(t, c, ve.Cid)
		}
	})

	t.Run("undefined CID rejected", func(t *testing.T) {
		_, err := block.NewBlock(cid.Undef, data)
		require.Error(t, err)
	})

	t.Run("oversize payload rejected", func(t *testing.T) {
		big := make([]byte, block.MaxSize+1)
		c := helpers.Must(cid.Sum(raw.Code, mh.SHA2_256, big))
		_, err := block.NewBlock(c, big)
		var tle *block.TooLargeError
		require.ErrorAs(t, err, &tle)
	})
}

func TestDecodeUnknownCodec(t *testing.T) {
	data := []byte("payload")
	// 0x71 is registered, 0x70 (dag-pb) is not.
	c := helpers.Must(cid.Sum(0x70, mh.SHA2_256, data))
	b := block.NewBlockUnsafe(c, data)
	_, err := block.Decode(b)
	var uce *cid.UnsupportedCodecError
	require.ErrorAs(t, err, &uce)
	require.Equal(t, uint64(0x70), uce.Code)
}
