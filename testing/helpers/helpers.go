package helpers

import (
	crand "crypto/rand"

	mh "github.com/multiformats/go-multihash"

	"github.com/ipfs-rust/libipld/core/cid"
)

// Must takes return values from a function and returns the non-error
// one. If the error value is non-nil then it panics.
func Must[T any](val T, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}

func RandomBytes(size int) []byte {
	bytes := make([]byte, size)
	_, _ = crand.Read(bytes)
	return bytes
}

// RandomCid returns a raw-codec CID of random bytes.
func RandomCid() cid.Cid {
	return Must(cid.Sum(0x55, mh.SHA2_256, RandomBytes(10)))
}
