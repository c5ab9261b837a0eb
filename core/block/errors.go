package block

import (
	"fmt"

	mh "github.com/multiformats/go-multihash"

	"github.com/ipfs-rust/libipld/core/cid"
)

// VerificationError means re-hashing a block's bytes did not reproduce
// the digest its CID claims. It signals corruption or tampering and is
// never downgraded.
type VerificationError struct {
	Cid    cid.Cid
	Actual mh.Multihash
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("block %s: hash of data does not match the CID", e.Cid)
}

// TooLargeError means a block payload exceeds MaxSize.
type TooLargeError struct {
	Size int
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("block size %d exceeds 1MiB", e.Size)
}
