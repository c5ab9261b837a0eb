package codec

import (
	"sync"

	"github.com/ipfs-rust/libipld/core/cid"
	"github.com/ipfs-rust/libipld/core/ipld"
)

// Encoder serializes Nodes into a wire format. Encode is deterministic:
// the same Node always produces byte-identical output, which is what
// keeps CIDs stable.
type Encoder interface {
	// Code is the multicodec tag of the format, embedded in every CID
	// built from its output.
	Code() uint64
	Encode(n ipld.Node) ([]byte, error)
}

// Decoder parses wire-format bytes back into a Node, failing with a
// DecodeError on malformed or non-canonical input.
type Decoder interface {
	Code() uint64
	Decode(data []byte) (ipld.Node, error)
}

// Codec is a wire format: a matched Encoder/Decoder pair satisfying
// the round-trip law Decode(Encode(n)).Equals(n).
type Codec interface {
	Encoder
	Decoder
}

// Registry is an open set of Codecs keyed by multicodec tag. Safe for
// concurrent use.
type Registry struct {
	mu     sync.RWMutex
	codecs map[uint64]Codec
}

// NewRegistry creates a registry containing the given codecs.
func NewRegistry(codecs ...Codec) *Registry {
	r := &Registry{codecs: map[uint64]Codec{}}
	for _, c := range codecs {
		r.Register(c)
	}
	return r
}

// Register adds a codec, replacing any previous codec with the same tag.
func (r *Registry) Register(c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[c.Code()] = c
}

// Lookup returns the codec registered for the tag.
func (r *Registry) Lookup(code uint64) (Codec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[code]
	if !ok {
		return nil, &cid.UnsupportedCodecError{Code: code}
	}
	return c, nil
}

// Codes returns the tags of all registered codecs.
func (r *Registry) Codes() []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	codes := make([]uint64, 0, len(r.codecs))
	for code := range r.codecs {
		codes = append(codes, code)
	}
	return codes
}

var defaults = NewRegistry()

// Register adds a codec to the default registry. Concrete codec
// packages call this from init, so importing a codec package makes its
// format available module-wide.
func Register(c Codec) {
	defaults.Register(c)
}

// Lookup returns the codec registered for the tag in the default
// registry.
func Lookup(code uint64) (Codec, error) {
	return defaults.Lookup(code)
}
