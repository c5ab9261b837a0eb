package cid

import (
	"errors"
	"fmt"
)

// ErrCidTooShort means a binary CID was truncated before the multihash.
var ErrCidTooShort = errors.New("cid too short")

// FormatError means bytes or text claiming to be a CID are malformed:
// bad varint, unknown version, truncated or inconsistent multihash, or
// an invalid multibase string.
type FormatError struct {
	Reason string
	Cause  error
}

func (e *FormatError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cid: %s: %s", e.Reason, e.Cause)
	}
	return fmt.Sprintf("cid: %s", e.Reason)
}

func (e *FormatError) Unwrap() error {
	return e.Cause
}

// UnsupportedCodecError means a CID carries a codec tag outside the
// known multicodec table, in strict mode.
type UnsupportedCodecError struct {
	Code uint64
}

func (e *UnsupportedCodecError) Error() string {
	return fmt.Sprintf("cid: unsupported codec 0x%x", e.Code)
}

// UnsupportedMultihashError means a CID carries an unknown multihash
// function code, in strict mode, or hashing was requested with one.
type UnsupportedMultihashError struct {
	Code uint64
}

func (e *UnsupportedMultihashError) Error() string {
	return fmt.Sprintf("cid: unsupported multihash 0x%x", e.Code)
}
