// Package dagcbor implements the DAG-CBOR wire format for the IPLD
// data model.
//
// Encoding is canonical: map keys are sorted shortest-first then
// bytewise (RFC 7049 §3.9), integer heads use the minimal length,
// floats are always 64-bit and links are CBOR tag 42 wrapping the
// identity-multibase-prefixed CID bytes. Decoding is strict and rejects
// anything the encoder would not produce.
package dagcbor

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"unicode/utf8"

	"github.com/ipfs-rust/libipld/core/cid"
	"github.com/ipfs-rust/libipld/core/ipld"
	"github.com/ipfs-rust/libipld/core/ipld/codec"
)

// Code is the multicodec tag for DAG-CBOR.
const Code = 0x71

// Decoded structures deeper than this are rejected rather than risking
// stack exhaustion on hostile input.
const maxDepth = 1024

type cbor struct{}

func (cbor) Code() uint64 {
	return Code
}

func (cbor) Encode(n ipld.Node) ([]byte, error) {
	return Encode(n)
}

func (cbor) Decode(data []byte) (ipld.Node, error) {
	return Decode(data)
}

// Codec is the DAG-CBOR codec.
var Codec codec.Codec = cbor{}

func init() {
	codec.Register(Codec)
}

const (
	majorUint   = 0
	majorNegInt = 1
	majorBytes  = 2
	majorText   = 3
	majorArray  = 4
	majorMap    = 5
	majorTag    = 6
	majorOther  = 7
)

const linkTag = 42

// Encode serializes a Node to canonical DAG-CBOR.
func Encode(n ipld.Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeNode(&buf, n); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeNode(buf *bytes.Buffer, n ipld.Node) error {
	switch n.Kind() {
	case ipld.KindNull:
		buf.WriteByte(0xf6)
	case ipld.KindBool:
		b, _ := n.AsBool()
		if b {
			buf.WriteByte(0xf5)
		} else {
			buf.WriteByte(0xf4)
		}
	case ipld.KindInt:
		i, _ := n.AsInt()
		if i >= 0 {
			writeHead(buf, majorUint, uint64(i))
		} else {
			writeHead(buf, majorNegInt, uint64(-(i + 1)))
		}
	case ipld.KindFloat:
		f, _ := n.AsFloat()
		buf.WriteByte(0xfb)
		var fb [8]byte
		binary.BigEndian.PutUint64(fb[:], math.Float64bits(f))
		buf.Write(fb[:])
	case ipld.KindString:
		s, _ := n.AsString()
		if !utf8.ValidString(s) {
			return fmt.Errorf("dagcbor: string is not valid UTF-8")
		}
		writeHead(buf, majorText, uint64(len(s)))
		buf.WriteString(s)
	case ipld.KindBytes:
		b, _ := n.AsBytes()
		writeHead(buf, majorBytes, uint64(len(b)))
		buf.Write(b)
	case ipld.KindList:
		elems, _ := n.AsList()
		writeHead(buf, majorArray, uint64(len(elems)))
		for _, e := range elems {
			if err := encodeNode(buf, e); err != nil {
				return err
			}
		}
	case ipld.KindMap:
		keys := make([]string, 0, n.Length())
		vals := make(map[string]ipld.Node, n.Length())
		for k, v := range n.Entries() {
			keys = append(keys, k)
			vals[k] = v
		}
		sort.Slice(keys, func(i, j int) bool { return keyLess(keys[i], keys[j]) })
		writeHead(buf, majorMap, uint64(len(keys)))
		for _, k := range keys {
			if !utf8.ValidString(k) {
				return fmt.Errorf("dagcbor: map key is not valid UTF-8")
			}
			writeHead(buf, majorText, uint64(len(k)))
			buf.WriteString(k)
			if err := encodeNode(buf, vals[k]); err != nil {
				return err
			}
		}
	case ipld.KindLink:
		c, _ := n.AsLink()
		if !c.Defined() {
			return fmt.Errorf("dagcbor: cannot encode undefined CID")
		}
		writeHead(buf, majorTag, linkTag)
		cb := c.Bytes()
		writeHead(buf, majorBytes, uint64(len(cb)+1))
		buf.WriteByte(0x00) // identity multibase prefix
		buf.Write(cb)
	}
	return nil
}

func writeHead(buf *bytes.Buffer, major byte, val uint64) {
	switch {
	case val < 24:
		buf.WriteByte(major<<5 | byte(val))
	case val <= math.MaxUint8:
		buf.WriteByte(major<<5 | 24)
		buf.WriteByte(byte(val))
	case val <= math.MaxUint16:
		buf.WriteByte(major<<5 | 25)
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(val))
		buf.Write(b[:])
	case val <= math.MaxUint32:
		buf.WriteByte(major<<5 | 26)
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(val))
		buf.Write(b[:])
	default:
		buf.WriteByte(major<<5 | 27)
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], val)
		buf.Write(b[:])
	}
}

// Canonical map key order: shorter keys first, ties broken bytewise.
func keyLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

// Decode parses canonical DAG-CBOR into a Node. Non-canonical input
// (overlong heads, unsorted or duplicate map keys, indefinite lengths,
// narrow floats) fails with a DecodeError, as does trailing data.
func Decode(data []byte) (ipld.Node, error) {
	d := decoder{data: data}
	n, err := d.decodeNode(0)
	if err != nil {
		return ipld.Null, err
	}
	if d.pos != len(d.data) {
		return ipld.Null, &codec.DecodeError{Code: Code, Reason: "trailing bytes after value"}
	}
	return n, nil
}

type decoder struct {
	data []byte
	pos  int
}

func (d *decoder) errf(reason string) error {
	return &codec.DecodeError{Code: Code, Reason: reason}
}

func (d *decoder) readByte() (byte, error) {
	if d.pos >= len(d.data) {
		return 0, d.errf("unexpected end of input")
	}
	b := d.data[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) readBytes(n uint64) ([]byte, error) {
	if uint64(len(d.data)-d.pos) < n {
		return nil, d.errf("unexpected end of input")
	}
	b := d.data[d.pos : d.pos+int(n)]
	d.pos += int(n)
	return b, nil
}

// readHead reads a major type and its argument, enforcing minimal
// encoding of the argument.
func (d *decoder) readHead() (byte, uint64, error) {
	ib, err := d.readByte()
	if err != nil {
		return 0, 0, err
	}
	major := ib >> 5
	ai := ib & 0x1f
	switch {
	case ai < 24:
		return major, uint64(ai), nil
	case ai == 24:
		b, err := d.readByte()
		if err != nil {
			return 0, 0, err
		}
		if b < 24 {
			return 0, 0, d.errf("non-minimal head")
		}
		return major, uint64(b), nil
	case ai == 25:
		b, err := d.readBytes(2)
		if err != nil {
			return 0, 0, err
		}
		v := uint64(binary.BigEndian.Uint16(b))
		if v <= math.MaxUint8 {
			return 0, 0, d.errf("non-minimal head")
		}
		return major, v, nil
	case ai == 26:
		b, err := d.readBytes(4)
		if err != nil {
			return 0, 0, err
		}
		v := uint64(binary.BigEndian.Uint32(b))
		if v <= math.MaxUint16 {
			return 0, 0, d.errf("non-minimal head")
		}
		return major, v, nil
	case ai == 27:
		b, err := d.readBytes(8)
		if err != nil {
			return 0, 0, err
		}
		v := binary.BigEndian.Uint64(b)
		if v <= math.MaxUint32 {
			return 0, 0, d.errf("non-minimal head")
		}
		return major, v, nil
	case ai == 31:
		return 0, 0, d.errf("indefinite lengths are not allowed")
	default:
		return 0, 0, d.errf("reserved additional info")
	}
}

func (d *decoder) decodeNode(depth int) (ipld.Node, error) {
	if depth > maxDepth {
		return ipld.Null, d.errf("nesting too deep")
	}

	// Floats and simple values carry their own head handling because
	// readHead's minimality rule does not apply to major type 7.
	if d.pos < len(d.data) && d.data[d.pos]>>5 == majorOther {
		return d.decodeOther()
	}

	major, val, err := d.readHead()
	if err != nil {
		return ipld.Null, err
	}

	switch major {
	case majorUint:
		if val > math.MaxInt64 {
			return ipld.Null, d.errf("integer exceeds 64-bit range")
		}
		return ipld.NewInt(int64(val)), nil
	case majorNegInt:
		if val > math.MaxInt64 {
			return ipld.Null, d.errf("integer exceeds 64-bit range")
		}
		return ipld.NewInt(-1 - int64(val)), nil
	case majorBytes:
		b, err := d.readBytes(val)
		if err != nil {
			return ipld.Null, err
		}
		return ipld.NewBytes(b), nil
	case majorText:
		b, err := d.readBytes(val)
		if err != nil {
			return ipld.Null, err
		}
		if !utf8.Valid(b) {
			return ipld.Null, d.errf("string is not valid UTF-8")
		}
		return ipld.NewString(string(b)), nil
	case majorArray:
		elems := make([]ipld.Node, 0, int(min(val, 1024)))
		for i := uint64(0); i < val; i++ {
			e, err := d.decodeNode(depth + 1)
			if err != nil {
				return ipld.Null, err
			}
			elems = append(elems, e)
		}
		return ipld.NewList(elems...), nil
	case majorMap:
		entries := make([]ipld.Entry, 0, int(min(val, 1024)))
		var prev string
		for i := uint64(0); i < val; i++ {
			km, kl, err := d.readHead()
			if err != nil {
				return ipld.Null, err
			}
			if km != majorText {
				return ipld.Null, d.errf("map key is not a string")
			}
			kb, err := d.readBytes(kl)
			if err != nil {
				return ipld.Null, err
			}
			if !utf8.Valid(kb) {
				return ipld.Null, d.errf("map key is not valid UTF-8")
			}
			key := string(kb)
			if i > 0 && !keyLess(prev, key) {
				return ipld.Null, d.errf("map keys out of canonical order")
			}
			prev = key
			v, err := d.decodeNode(depth + 1)
			if err != nil {
				return ipld.Null, err
			}
			entries = append(entries, ipld.Entry{Key: key, Value: v})
		}
		return ipld.NewMap(entries...), nil
	case majorTag:
		if val != linkTag {
			return ipld.Null, d.errf("unknown tag")
		}
		bm, bl, err := d.readHead()
		if err != nil {
			return ipld.Null, err
		}
		if bm != majorBytes {
			return ipld.Null, d.errf("link tag content is not a byte string")
		}
		b, err := d.readBytes(bl)
		if err != nil {
			return ipld.Null, err
		}
		if len(b) < 1 || b[0] != 0x00 {
			return ipld.Null, d.errf("link is missing identity multibase prefix")
		}
		c, err := cid.Cast(b[1:], cid.WithPermissive())
		if err != nil {
			return ipld.Null, &codec.DecodeError{Code: Code, Reason: "invalid CID in link", Cause: err}
		}
		return ipld.NewLink(c), nil
	}
	return ipld.Null, d.errf("unhandled major type")
}

func (d *decoder) decodeOther() (ipld.Node, error) {
	ib, err := d.readByte()
	if err != nil {
		return ipld.Null, err
	}
	switch ib {
	case 0xf4:
		return ipld.NewBool(false), nil
	case 0xf5:
		return ipld.NewBool(true), nil
	case 0xf6:
		return ipld.Null, nil
	case 0xfb:
		b, err := d.readBytes(8)
		if err != nil {
			return ipld.Null, err
		}
		return ipld.NewFloat(math.Float64frombits(binary.BigEndian.Uint64(b))), nil
	case 0xf9, 0xfa:
		return ipld.Null, d.errf("floats must be 64-bit")
	default:
		return ipld.Null, d.errf("unsupported simple value")
	}
}
