// Package block pairs a CID with the raw bytes it names. A Block built
// by NewBlock has had its bytes re-hashed against the CID's multihash,
// so holding one is proof the data is what the CID claims.
package block

import (
	"bytes"

	mh "github.com/multiformats/go-multihash"

	"github.com/ipfs-rust/libipld/core/cid"
	"github.com/ipfs-rust/libipld/core/ipld"
	"github.com/ipfs-rust/libipld/core/ipld/codec"
)

// MaxSize is the largest payload a Block may carry: 1MiB.
const MaxSize = 1 << 20

// Block is a hash-verified (CID, bytes) pair. Implementations are
// immutable.
type Block interface {
	Cid() cid.Cid
	Bytes() []byte
}

type block struct {
	cid   cid.Cid
	bytes []byte
}

func (b *block) Cid() cid.Cid {
	return b.cid
}

func (b *block) Bytes() []byte {
	return b.bytes
}

// NewBlockUnsafe wraps a CID and bytes without verification. Only for
// bytes produced locally, where the CID was just computed from them.
func NewBlockUnsafe(c cid.Cid, data []byte) Block {
	return &block{c, data}
}

// NewBlock wraps bytes from an untrusted source (network, disk) after
// re-hashing them with the function named by the CID's multihash and
// comparing digests. A mismatch fails with a VerificationError; no
// Block exists for corrupt data.
func NewBlock(c cid.Cid, data []byte) (Block, error) {
	if !c.Defined() {
		return nil, &cid.FormatError{Reason: "undefined CID"}
	}
	if len(data) > MaxSize {
		return nil, &TooLargeError{Size: len(data)}
	}
	dec, err := mh.Decode(c.Hash())
	if err != nil {
		return nil, &cid.FormatError{Reason: "invalid multihash", Cause: err}
	}
	actual, err := mh.Sum(data, dec.Code, dec.Length)
	if err != nil {
		return nil, &cid.UnsupportedMultihashError{Code: dec.Code}
	}
	if !bytes.Equal(actual, c.Hash()) {
		return nil, &VerificationError{Cid: c, Actual: actual}
	}
	return &block{c, data}, nil
}

// Encode serializes a Node with the codec, hashes the bytes with the
// multihash function and returns the resulting Block. The Block's CID
// carries the codec's tag.
func Encode(n ipld.Node, enc codec.Encoder, mhCode uint64) (Block, error) {
	data, err := enc.Encode(n)
	if err != nil {
		return nil, err
	}
	if len(data) > MaxSize {
		return nil, &TooLargeError{Size: len(data)}
	}
	c, err := cid.Sum(enc.Code(), mhCode, data)
	if err != nil {
		return nil, err
	}
	return &block{c, data}, nil
}

// Decode parses the Block's bytes with the codec its CID names, looked
// up in the default registry.
func Decode(b Block) (ipld.Node, error) {
	dec, err := codec.Lookup(b.Cid().Codec())
	if err != nil {
		return ipld.Null, err
	}
	return dec.Decode(b.Bytes())
}
