// Package dagjson implements the DAG-JSON wire format for the IPLD
// data model.
//
// Encoding is deterministic: map keys are sorted bytewise, floats carry
// an explicit decimal point so they survive a round trip as floats,
// links are {"/": "<cid>"} and bytes are {"/": {"bytes": "<base64>"}}.
// The "/" key is reserved by the format and rejected in user maps.
package dagjson

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ipfs-rust/libipld/core/cid"
	"github.com/ipfs-rust/libipld/core/ipld"
	"github.com/ipfs-rust/libipld/core/ipld/codec"
)

// Code is the multicodec tag for DAG-JSON.
const Code = 0x0129

const maxDepth = 1024

type dagjson struct{}

func (dagjson) Code() uint64 {
	return Code
}

func (dagjson) Encode(n ipld.Node) ([]byte, error) {
	return Encode(n)
}

func (dagjson) Decode(data []byte) (ipld.Node, error) {
	return Decode(data)
}

// Codec is the DAG-JSON codec.
var Codec codec.Codec = dagjson{}

func init() {
	codec.Register(Codec)
}

var bytesEncoding = base64.StdEncoding.WithPadding(base64.NoPadding)

// Encode serializes a Node to deterministic DAG-JSON.
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
		buf.WriteString("null")
	case ipld.KindBool:
		b, _ := n.AsBool()
		if b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case ipld.KindInt:
		i, _ := n.AsInt()
		buf.WriteString(strconv.FormatInt(i, 10))
	case ipld.KindFloat:
		f, _ := n.AsFloat()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("dagjson: cannot encode NaN or infinity")
		}
		s := strconv.FormatFloat(f, 'g', -1, 64)
		// Keep whole floats distinguishable from integers.
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		buf.WriteString(s)
	case ipld.KindString:
		s, _ := n.AsString()
		if !utf8.ValidString(s) {
			return fmt.Errorf("dagjson: string is not valid UTF-8")
		}
		writeString(buf, s)
	case ipld.KindBytes:
		b, _ := n.AsBytes()
		buf.WriteString(`{"/":{"bytes":"`)
		buf.WriteString(bytesEncoding.EncodeToString(b))
		buf.WriteString(`"}}`)
	case ipld.KindLink:
		c, _ := n.AsLink()
		if !c.Defined() {
			return fmt.Errorf("dagjson: cannot encode undefined CID")
		}
		buf.WriteString(`{"/":`)
		writeString(buf, c.String())
		buf.WriteByte('}')
	case ipld.KindList:
		elems, _ := n.AsList()
		buf.WriteByte('[')
		for i, e := range elems {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeNode(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case ipld.KindMap:
		keys := make([]string, 0, n.Length())
		vals := make(map[string]ipld.Node, n.Length())
		for k, v := range n.Entries() {
			keys = append(keys, k)
			vals[k] = v
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if k == "/" {
				return fmt.Errorf("dagjson: the %q map key is reserved", "/")
			}
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, k)
			buf.WriteByte(':')
			if err := encodeNode(buf, vals[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

const hexDigits = "0123456789abcdef"

func writeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(hexDigits[r>>4])
				buf.WriteByte(hexDigits[r&0xf])
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}

// Decode parses DAG-JSON into a Node. Malformed JSON, duplicate map
// keys, misuse of the reserved "/" key and trailing data all fail with
// a DecodeError.
func Decode(data []byte) (ipld.Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return ipld.Null, &codec.DecodeError{Code: Code, Reason: "malformed JSON", Cause: err}
	}
	n, err := decodeValue(dec, tok, 0)
	if err != nil {
		return ipld.Null, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return ipld.Null, &codec.DecodeError{Code: Code, Reason: "trailing bytes after value"}
	}
	return n, nil
}

func errf(reason string) error {
	return &codec.DecodeError{Code: Code, Reason: reason}
}

func decodeValue(dec *json.Decoder, tok json.Token, depth int) (ipld.Node, error) {
	if depth > maxDepth {
		return ipld.Null, errf("nesting too deep")
	}
	switch t := tok.(type) {
	case nil:
		return ipld.Null, nil
	case bool:
		return ipld.NewBool(t), nil
	case string:
		return ipld.NewString(t), nil
	case json.Number:
		if strings.ContainsAny(t.String(), ".eE") {
			f, err := strconv.ParseFloat(t.String(), 64)
			if err != nil {
				return ipld.Null, errf("invalid float literal")
			}
			return ipld.NewFloat(f), nil
		}
		i, err := t.Int64()
		if err != nil {
			return ipld.Null, errf("integer exceeds 64-bit range")
		}
		return ipld.NewInt(i), nil
	case json.Delim:
		switch t {
		case '[':
			return decodeList(dec, depth)
		case '{':
			return decodeMap(dec, depth)
		}
	}
	return ipld.Null, errf("unexpected token")
}

func decodeList(dec *json.Decoder, depth int) (ipld.Node, error) {
	var elems []ipld.Node
	for {
		tok, err := dec.Token()
		if err != nil {
			return ipld.Null, &codec.DecodeError{Code: Code, Reason: "malformed JSON", Cause: err}
		}
		if d, ok := tok.(json.Delim); ok && d == ']' {
			return ipld.NewList(elems...), nil
		}
		e, err := decodeValue(dec, tok, depth+1)
		if err != nil {
			return ipld.Null, err
		}
		elems = append(elems, e)
	}
}

func decodeMap(dec *json.Decoder, depth int) (ipld.Node, error) {
	var entries []ipld.Entry
	seen := map[string]struct{}{}
	for {
		tok, err := dec.Token()
		if err != nil {
			return ipld.Null, &codec.DecodeError{Code: Code, Reason: "malformed JSON", Cause: err}
		}
		if d, ok := tok.(json.Delim); ok && d == '}' {
			break
		}
		key, ok := tok.(string)
		if !ok {
			return ipld.Null, errf("map key is not a string")
		}
		if _, dup := seen[key]; dup {
			return ipld.Null, errf("duplicate map key")
		}
		seen[key] = struct{}{}
		vtok, err := dec.Token()
		if err != nil {
			return ipld.Null, &codec.DecodeError{Code: Code, Reason: "malformed JSON", Cause: err}
		}
		v, err := decodeValue(dec, vtok, depth+1)
		if err != nil {
			return ipld.Null, err
		}
		entries = append(entries, ipld.Entry{Key: key, Value: v})
	}

	// The reserved "/" form encodes a link or a byte string.
	if _, reserved := seen["/"]; reserved {
		if len(entries) != 1 {
			return ipld.Null, errf("the \"/\" key must be the only map key")
		}
		return decodeReserved(entries[0].Value)
	}
	return ipld.NewMap(entries...), nil
}

func decodeReserved(v ipld.Node) (ipld.Node, error) {
	switch v.Kind() {
	case ipld.KindString:
		s, _ := v.AsString()
		c, err := cid.Parse(s, cid.WithPermissive())
		if err != nil {
			return ipld.Null, &codec.DecodeError{Code: Code, Reason: "invalid CID in link", Cause: err}
		}
		return ipld.NewLink(c), nil
	case ipld.KindMap:
		if v.Length() != 1 {
			return ipld.Null, errf("malformed bytes form")
		}
		b, err := v.Get(ipld.Key("bytes"))
		if err != nil {
			return ipld.Null, errf("malformed bytes form")
		}
		s, err := b.AsString()
		if err != nil {
			return ipld.Null, errf("malformed bytes form")
		}
		raw, err := bytesEncoding.DecodeString(s)
		if err != nil {
			return ipld.Null, &codec.DecodeError{Code: Code, Reason: "invalid base64 in bytes form", Cause: err}
		}
		return ipld.NewBytes(raw), nil
	}
	return ipld.Null, errf("the \"/\" key must hold a string or bytes form")
}
