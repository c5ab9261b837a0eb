package cid

import (
	"fmt"
	"sync"

	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multicodec"
	mh "github.com/multiformats/go-multihash"
	"github.com/multiformats/go-varint"
)

// Cid is a self-describing content identifier: a CID version, the
// multicodec tag of the codec that produced the addressed bytes, and a
// multihash of those bytes. It is an immutable value type, comparable
// with == and usable as a map key.
type Cid struct{ str string }

// Undef is the zero value Cid. It is not a valid identifier and is
// rejected by operations that require one.
var Undef = Cid{}

// NewV1 builds a CIDv1 from a codec tag and a multihash.
func NewV1(codec uint64, hash mh.Multihash) Cid {
	buf := make([]byte, 2+varint.UvarintSize(codec)+len(hash))
	n := varint.PutUvarint(buf, 1)
	n += varint.PutUvarint(buf[n:], codec)
	n += copy(buf[n:], hash)
	return Cid{string(buf[:n])}
}

// NewV0 builds a CIDv0 from a sha2-256 multihash. CIDv0 has no explicit
// version or codec field: it is a bare 34 byte multihash and always
// addresses dag-pb bytes.
func NewV0(hash mh.Multihash) (Cid, error) {
	if len(hash) != 34 || hash[0] != mh.SHA2_256 || hash[1] != 32 {
		return Undef, &FormatError{Reason: "CIDv0 requires a sha2-256 multihash"}
	}
	return Cid{string(hash)}, nil
}

// Sum hashes data with the named multihash function and builds a CIDv1
// carrying the given codec tag.
func Sum(codec uint64, mhCode uint64, data []byte) (Cid, error) {
	hash, err := mh.Sum(data, mhCode, -1)
	if err != nil {
		return Undef, &UnsupportedMultihashError{Code: mhCode}
	}
	return NewV1(codec, hash), nil
}

// Defined reports whether c is a parsed or constructed Cid rather than
// the zero value.
func (c Cid) Defined() bool {
	return c.str != ""
}

// Version returns the CID version (0 or 1).
func (c Cid) Version() uint64 {
	if len(c.str) == 34 && c.str[0] == mh.SHA2_256 && c.str[1] == 32 {
		return 0
	}
	return 1
}

// Codec returns the multicodec tag of the wire format the CID addresses.
func (c Cid) Codec() uint64 {
	if c.Version() == 0 {
		return uint64(multicodec.DagPb)
	}
	_, n, _ := varint.FromUvarint([]byte(c.str))
	codec, _, _ := varint.FromUvarint([]byte(c.str)[n:])
	return codec
}

// Hash returns the multihash embedded in the CID.
func (c Cid) Hash() mh.Multihash {
	if c.Version() == 0 {
		return mh.Multihash(c.str)
	}
	b := []byte(c.str)
	_, n, _ := varint.FromUvarint(b)
	_, cn, _ := varint.FromUvarint(b[n:])
	return mh.Multihash(b[n+cn:])
}

// Bytes returns the binary form of the CID. For v0 this is the bare
// multihash; for v1 it is version varint, codec varint, multihash.
func (c Cid) Bytes() []byte {
	return []byte(c.str)
}

// KeyString returns the binary form as a string, suitable for map keys.
func (c Cid) KeyString() string {
	return c.str
}

// Equals reports whether two CIDs name the same content: same version,
// same codec tag, same multihash.
func (c Cid) Equals(o Cid) bool {
	return c == o
}

// String formats the CID as text. CIDv1 uses multibase base32 (the
// self-describing "b" prefix); CIDv0 is base58btc by convention.
func (c Cid) String() string {
	if !c.Defined() {
		return ""
	}
	if c.Version() == 0 {
		return c.Hash().B58String()
	}
	s, err := multibase.Encode(multibase.Base32, c.Bytes())
	if err != nil {
		// Base32 is compiled in to go-multibase.
		panic(fmt.Sprintf("cid: base32 encode: %s", err))
	}
	return s
}

// StringOfBase formats a CIDv1 in the given multibase encoding.
func (c Cid) StringOfBase(base multibase.Encoding) (string, error) {
	if !c.Defined() {
		return "", &FormatError{Reason: "cannot format undefined CID"}
	}
	if c.Version() == 0 {
		if base != multibase.Base58BTC {
			return "", &FormatError{Reason: "CIDv0 only supports base58btc"}
		}
		return c.Hash().B58String(), nil
	}
	return multibase.Encode(base, c.Bytes())
}

// Cast parses a CID from its binary form. In strict mode (the default)
// unknown codec and multihash tags are rejected; WithPermissive
// preserves them opaquely. Structural checks - varint well-formedness,
// version, digest length - always apply.
func Cast(data []byte, opts ...Option) (Cid, error) {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}

	if len(data) == 34 && data[0] == mh.SHA2_256 && data[1] == 32 {
		hash, err := mh.Cast(data)
		if err != nil {
			return Undef, &FormatError{Reason: "invalid CIDv0 multihash", Cause: err}
		}
		return Cid{string(hash)}, nil
	}

	if len(data) < 2 {
		return Undef, ErrCidTooShort
	}

	vers, n, err := varint.FromUvarint(data)
	if err != nil {
		return Undef, &FormatError{Reason: "invalid version varint", Cause: err}
	}
	if vers != 1 {
		return Undef, &FormatError{Reason: fmt.Sprintf("unknown CID version %d", vers)}
	}

	codec, cn, err := varint.FromUvarint(data[n:])
	if err != nil {
		return Undef, &FormatError{Reason: "invalid codec varint", Cause: err}
	}
	if !cfg.permissive && !knownCodec(codec) {
		return Undef, &UnsupportedCodecError{Code: codec}
	}

	rest := data[n+cn:]
	dec, err := mh.Decode(rest)
	if err != nil {
		return Undef, &FormatError{Reason: "invalid multihash", Cause: err}
	}
	if !cfg.permissive && !knownMultihash(uint64(dec.Code)) {
		return Undef, &UnsupportedMultihashError{Code: uint64(dec.Code)}
	}

	return Cid{string(data[:n+cn+len(rest)])}, nil
}

// Parse parses a CID from its text form: a multibase-prefixed CIDv1
// string, or the 46 character base58btc "Qm..." form of a CIDv0.
func Parse(s string, opts ...Option) (Cid, error) {
	if len(s) == 46 && s[:2] == "Qm" {
		hash, err := mh.FromB58String(s)
		if err != nil {
			return Undef, &FormatError{Reason: "invalid CIDv0 string", Cause: err}
		}
		return Cast(hash, opts...)
	}
	_, data, err := multibase.Decode(s)
	if err != nil {
		return Undef, &FormatError{Reason: "invalid multibase string", Cause: err}
	}
	return Cast(data, opts...)
}

// MustParse is Parse, panicking on error. For tests and constants.
func MustParse(s string) Cid {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

var knownCodecs = sync.OnceValue(func() map[uint64]struct{} {
	m := map[uint64]struct{}{}
	for _, code := range multicodec.KnownCodes() {
		m[uint64(code)] = struct{}{}
	}
	return m
})

func knownCodec(code uint64) bool {
	_, ok := knownCodecs()[code]
	return ok
}

func knownMultihash(code uint64) bool {
	_, ok := mh.Codes[code]
	return ok
}
