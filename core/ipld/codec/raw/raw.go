// Package raw implements the raw-bytes codec: block payloads that are
// opaque byte sequences rather than structured data.
package raw

import (
	"bytes"
	"fmt"

	"github.com/ipfs-rust/libipld/core/ipld"
	"github.com/ipfs-rust/libipld/core/ipld/codec"
)

// Code is the multicodec tag for raw bytes.
const Code = 0x55

type raw struct{}

func (raw) Code() uint64 {
	return Code
}

// Encode returns the bytes of a bytes Node verbatim. Other kinds are
// not representable.
func (raw) Encode(n ipld.Node) ([]byte, error) {
	b, err := n.AsBytes()
	if err != nil {
		return nil, fmt.Errorf("raw: only bytes nodes are representable: %w", err)
	}
	return bytes.Clone(b), nil
}

// Decode wraps the data in a bytes Node. All inputs are valid.
func (raw) Decode(data []byte) (ipld.Node, error) {
	return ipld.NewBytes(data), nil
}

// Codec is the raw codec.
var Codec codec.Codec = raw{}

func init() {
	codec.Register(Codec)
}
