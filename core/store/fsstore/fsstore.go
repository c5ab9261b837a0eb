// Package fsstore is a filesystem Store: one file per block, named by
// the base32 form of its CID, with a durable pin file. Bytes read back
// from disk are untrusted and re-verified against their CID.
package fsstore

import (
	"bufio"
	"context"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/multiformats/go-base32"
	"github.com/pkg/errors"

	"github.com/ipfs-rust/libipld/core/block"
	"github.com/ipfs-rust/libipld/core/cid"
	"github.com/ipfs-rust/libipld/core/store"
)

const (
	blockExt = ".data"
	pinsFile = "pins"
)

// Store is a filesystem-backed block store. Safe for concurrent use
// within one process; it does not arbitrate between processes.
type Store struct {
	dir string

	mu   sync.Mutex
	pins map[cid.Cid]int
}

var _ store.Store = (*Store)(nil)
var _ store.PinLister = (*Store)(nil)
var _ store.Iterable = (*Store)(nil)

// Open creates or reopens a store rooted at dir, loading the pin file
// if one was flushed previously.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating store directory")
	}
	s := &Store{dir: dir, pins: map[cid.Cid]int{}}
	if err := s.loadPins(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) blockPath(c cid.Cid) string {
	name := base32.RawStdEncoding.EncodeToString(c.Bytes())
	return filepath.Join(s.dir, name+blockExt)
}

func (s *Store) Get(ctx context.Context, c cid.Cid) (block.Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.blockPath(c))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &store.NotFoundError{Cid: c}
		}
		return nil, errors.Wrapf(err, "reading block %s", c)
	}
	// Disk contents are untrusted: verify before handing the block out.
	return block.NewBlock(c, data)
}

func (s *Store) Put(ctx context.Context, b block.Block) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := s.blockPath(b.Cid())
	if _, err := os.Stat(path); err == nil {
		// Content addressing: same CID means identical bytes.
		return nil
	}
	tmp, err := os.CreateTemp(s.dir, "put-*")
	if err != nil {
		return errors.Wrap(err, "creating temp block file")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b.Bytes()); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "writing block %s", b.Cid())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "closing block %s", b.Cid())
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "publishing block %s", b.Cid())
	}
	return nil
}

func (s *Store) Pin(ctx context.Context, c cid.Cid) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pins[c]++
	return nil
}

func (s *Store) Unpin(ctx context.Context, c cid.Cid) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pins[c] == 0 {
		return &store.NotPinnedError{Cid: c}
	}
	s.pins[c]--
	if s.pins[c] == 0 {
		delete(s.pins, c)
	}
	return nil
}

func (s *Store) Pins(ctx context.Context) ([]cid.Cid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	pins := make([]cid.Cid, 0, len(s.pins))
	for c := range s.pins {
		pins = append(pins, c)
	}
	return pins, nil
}

// Flush persists the pin table and syncs the store directory so
// renamed block files survive a crash.
func (s *Store) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	var sb strings.Builder
	for c, count := range s.pins {
		fmt.Fprintf(&sb, "%d %s\n", count, c)
	}
	s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, "pins-*")
	if err != nil {
		return errors.Wrap(err, "creating temp pin file")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(sb.String()); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writing pin file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "syncing pin file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "closing pin file")
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, pinsFile)); err != nil {
		return errors.Wrap(err, "publishing pin file")
	}

	dir, err := os.Open(s.dir)
	if err != nil {
		return errors.Wrap(err, "opening store directory")
	}
	defer dir.Close()
	if err := dir.Sync(); err != nil {
		return errors.Wrap(err, "syncing store directory")
	}
	return nil
}

func (s *Store) loadPins() error {
	f, err := os.Open(filepath.Join(s.dir, pinsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "opening pin file")
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			return errors.Errorf("malformed pin file line: %q", scanner.Text())
		}
		count, err := strconv.Atoi(fields[0])
		if err != nil || count < 1 {
			return errors.Errorf("malformed pin count: %q", fields[0])
		}
		c, err := cid.Parse(fields[1])
		if err != nil {
			return errors.Wrap(err, "parsing pinned CID")
		}
		s.pins[c] = count
	}
	return errors.Wrap(scanner.Err(), "reading pin file")
}

// Iterator yields every block file in the store, verified.
func (s *Store) Iterator(ctx context.Context) iter.Seq2[block.Block, error] {
	return func(yield func(block.Block, error) bool) {
		entries, err := os.ReadDir(s.dir)
		if err != nil {
			yield(nil, errors.Wrap(err, "listing store directory"))
			return
		}
		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			name, ok := strings.CutSuffix(entry.Name(), blockExt)
			if !ok {
				continue
			}
			raw, err := base32.RawStdEncoding.DecodeString(name)
			if err != nil {
				continue
			}
			c, err := cid.Cast(raw, cid.WithPermissive())
			if err != nil {
				continue
			}
			b, err := s.Get(ctx, c)
			if !yield(b, err) {
				return
			}
		}
	}
}
