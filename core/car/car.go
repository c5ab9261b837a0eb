// Package car reads and writes CAR v1 content archives: a CBOR header
// naming the root CIDs followed by length-delimited blocks. Archives
// are how whole DAGs move between stores as a single byte stream.
package car

import (
	"bufio"
	"fmt"
	"io"
	"iter"

	gocid "github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"
	"github.com/ipld/go-car/util"

	"github.com/ipfs-rust/libipld/core/block"
	"github.com/ipfs-rust/libipld/core/cid"
)

// ContentType is the value the HTTP Content-Type header should have
// for CARs. See https://www.iana.org/assignments/media-types/application/vnd.ipld.car
const ContentType = "application/vnd.ipld.car"

func init() {
	cbor.RegisterCborType(carHeader{})
}

type carHeader struct {
	Roots   []gocid.Cid
	Version uint64
}

// Encode streams a CAR v1 archive of the given roots and blocks. The
// returned reader fails with the first error the block iterator
// yields.
func Encode(roots []cid.Cid, blocks iter.Seq2[block.Block, error]) io.Reader {
	reader, writer := io.Pipe()
	go func() {
		hdr := carHeader{Roots: make([]gocid.Cid, 0, len(roots)), Version: 1}
		for _, root := range roots {
			gc, err := gocid.Cast(root.Bytes())
			if err != nil {
				writer.CloseWithError(fmt.Errorf("converting CAR root: %w", err))
				return
			}
			hdr.Roots = append(hdr.Roots, gc)
		}
		hb, err := cbor.DumpObject(hdr)
		if err != nil {
			writer.CloseWithError(fmt.Errorf("encoding CAR header: %w", err))
			return
		}
		if err := util.LdWrite(writer, hb); err != nil {
			writer.CloseWithError(fmt.Errorf("writing CAR header: %w", err))
			return
		}
		for b, err := range blocks {
			if err != nil {
				writer.CloseWithError(fmt.Errorf("iterating CAR blocks: %w", err))
				return
			}
			if err := util.LdWrite(writer, b.Cid().Bytes(), b.Bytes()); err != nil {
				writer.CloseWithError(fmt.Errorf("writing CAR block: %w", err))
				return
			}
		}
		writer.Close()
	}()
	return reader
}

// Decode reads a CAR v1 archive, returning its roots and an iterator
// of its blocks. Every block is hash-verified before it is yielded; a
// corrupt block fails the iteration with a VerificationError.
func Decode(reader io.Reader) ([]cid.Cid, iter.Seq2[block.Block, error], error) {
	br := bufio.NewReader(reader)

	hb, err := util.LdRead(br)
	if err != nil {
		return nil, nil, fmt.Errorf("reading CAR header: %w", err)
	}
	var hdr carHeader
	if err := cbor.DecodeInto(hb, &hdr); err != nil {
		return nil, nil, fmt.Errorf("invalid CAR header: %w", err)
	}
	if hdr.Version != 1 {
		return nil, nil, fmt.Errorf("unsupported CAR version: %d", hdr.Version)
	}

	roots := make([]cid.Cid, 0, len(hdr.Roots))
	for _, gc := range hdr.Roots {
		root, err := cid.Cast(gc.Bytes())
		if err != nil {
			return nil, nil, fmt.Errorf("invalid CAR root: %w", err)
		}
		roots = append(roots, root)
	}

	return roots, func(yield func(block.Block, error) bool) {
		for {
			gc, data, err := util.ReadNode(br)
			if err != nil {
				if err != io.EOF {
					yield(nil, fmt.Errorf("reading CAR block: %w", err))
				}
				return
			}
			c, err := cid.Cast(gc.Bytes())
			if err != nil {
				yield(nil, fmt.Errorf("invalid CAR block CID: %w", err))
				return
			}
			b, err := block.NewBlock(c, data)
			if !yield(b, err) {
				return
			}
			if err != nil {
				return
			}
		}
	}, nil
}
