// Package prime bridges this data model to go-ipld-prime: Wrap exposes
// a Node through the datamodel.Node interface so it can feed ipld-prime
// tooling (selectors, linking systems, its codecs), and Unwrap converts
// any datamodel.Node back.
package prime

import (
	"fmt"

	gocid "github.com/ipfs/go-cid"
	"github.com/ipld/go-ipld-prime/datamodel"
	cidlink "github.com/ipld/go-ipld-prime/linking/cid"
	"github.com/ipld/go-ipld-prime/node/basicnode"

	"github.com/ipfs-rust/libipld/core/cid"
	"github.com/ipfs-rust/libipld/core/ipld"
)

// Wrap exposes a Node as a go-ipld-prime datamodel.Node.
func Wrap(n ipld.Node) datamodel.Node {
	return wrapped{n}
}

type wrapped struct {
	n ipld.Node
}

func (w wrapped) Kind() datamodel.Kind {
	switch w.n.Kind() {
	case ipld.KindNull:
		return datamodel.Kind_Null
	case ipld.KindBool:
		return datamodel.Kind_Bool
	case ipld.KindInt:
		return datamodel.Kind_Int
	case ipld.KindFloat:
		return datamodel.Kind_Float
	case ipld.KindString:
		return datamodel.Kind_String
	case ipld.KindBytes:
		return datamodel.Kind_Bytes
	case ipld.KindList:
		return datamodel.Kind_List
	case ipld.KindMap:
		return datamodel.Kind_Map
	case ipld.KindLink:
		return datamodel.Kind_Link
	}
	return datamodel.Kind_Invalid
}

func (w wrapped) LookupByString(key string) (datamodel.Node, error) {
	v, err := w.n.Get(ipld.Key(key))
	if err != nil {
		return nil, err
	}
	return wrapped{v}, nil
}

func (w wrapped) LookupByIndex(idx int64) (datamodel.Node, error) {
	v, err := w.n.Get(ipld.Index(int(idx)))
	if err != nil {
		return nil, err
	}
	return wrapped{v}, nil
}

func (w wrapped) LookupByNode(key datamodel.Node) (datamodel.Node, error) {
	s, err := key.AsString()
	if err != nil {
		return nil, err
	}
	return w.LookupByString(s)
}

func (w wrapped) LookupBySegment(seg datamodel.PathSegment) (datamodel.Node, error) {
	if idx, err := seg.Index(); err == nil && w.n.Kind() == ipld.KindList {
		return w.LookupByIndex(idx)
	}
	return w.LookupByString(seg.String())
}

func (w wrapped) MapIterator() datamodel.MapIterator {
	if w.n.Kind() != ipld.KindMap {
		return nil
	}
	keys := make([]string, 0, w.n.Length())
	vals := make([]ipld.Node, 0, w.n.Length())
	for k, v := range w.n.Entries() {
		keys = append(keys, k)
		vals = append(vals, v)
	}
	return &mapIterator{keys: keys, vals: vals}
}

type mapIterator struct {
	keys []string
	vals []ipld.Node
	pos  int
}

func (it *mapIterator) Next() (datamodel.Node, datamodel.Node, error) {
	if it.Done() {
		return nil, nil, datamodel.ErrIteratorOverread{}
	}
	k, v := it.keys[it.pos], it.vals[it.pos]
	it.pos++
	return wrapped{ipld.NewString(k)}, wrapped{v}, nil
}

func (it *mapIterator) Done() bool {
	return it.pos >= len(it.keys)
}

func (w wrapped) ListIterator() datamodel.ListIterator {
	if w.n.Kind() != ipld.KindList {
		return nil
	}
	elems, _ := w.n.AsList()
	return &listIterator{elems: elems}
}

type listIterator struct {
	elems []ipld.Node
	pos   int
}

func (it *listIterator) Next() (int64, datamodel.Node, error) {
	if it.Done() {
		return -1, nil, datamodel.ErrIteratorOverread{}
	}
	idx, v := int64(it.pos), it.elems[it.pos]
	it.pos++
	return idx, wrapped{v}, nil
}

func (it *listIterator) Done() bool {
	return it.pos >= len(it.elems)
}

func (w wrapped) Length() int64 {
	return int64(w.n.Length())
}

func (w wrapped) IsAbsent() bool {
	return false
}

func (w wrapped) IsNull() bool {
	return w.n.IsNull()
}

func (w wrapped) AsBool() (bool, error) {
	return w.n.AsBool()
}

func (w wrapped) AsInt() (int64, error) {
	return w.n.AsInt()
}

func (w wrapped) AsFloat() (float64, error) {
	return w.n.AsFloat()
}

func (w wrapped) AsString() (string, error) {
	return w.n.AsString()
}

func (w wrapped) AsBytes() ([]byte, error) {
	return w.n.AsBytes()
}

func (w wrapped) AsLink() (datamodel.Link, error) {
	c, err := w.n.AsLink()
	if err != nil {
		return nil, err
	}
	gc, err := gocid.Cast(c.Bytes())
	if err != nil {
		return nil, fmt.Errorf("prime: converting link: %w", err)
	}
	return cidlink.Link{Cid: gc}, nil
}

func (w wrapped) Prototype() datamodel.NodePrototype {
	return basicnode.Prototype.Any
}

// Unwrap converts any go-ipld-prime node into a Node. Map keys must be
// strings and links must be CID links.
func Unwrap(n datamodel.Node) (ipld.Node, error) {
	switch n.Kind() {
	case datamodel.Kind_Null:
		return ipld.Null, nil
	case datamodel.Kind_Bool:
		b, err := n.AsBool()
		if err != nil {
			return ipld.Null, err
		}
		return ipld.NewBool(b), nil
	case datamodel.Kind_Int:
		i, err := n.AsInt()
		if err != nil {
			return ipld.Null, err
		}
		return ipld.NewInt(i), nil
	case datamodel.Kind_Float:
		f, err := n.AsFloat()
		if err != nil {
			return ipld.Null, err
		}
		return ipld.NewFloat(f), nil
	case datamodel.Kind_String:
		s, err := n.AsString()
		if err != nil {
			return ipld.Null, err
		}
		return ipld.NewString(s), nil
	case datamodel.Kind_Bytes:
		b, err := n.AsBytes()
		if err != nil {
			return ipld.Null, err
		}
		return ipld.NewBytes(b), nil
	case datamodel.Kind_List:
		elems := make([]ipld.Node, 0, int(n.Length()))
		for it := n.ListIterator(); !it.Done(); {
			_, v, err := it.Next()
			if err != nil {
				return ipld.Null, err
			}
			e, err := Unwrap(v)
			if err != nil {
				return ipld.Null, err
			}
			elems = append(elems, e)
		}
		return ipld.NewList(elems...), nil
	case datamodel.Kind_Map:
		entries := make([]ipld.Entry, 0, int(n.Length()))
		for it := n.MapIterator(); !it.Done(); {
			k, v, err := it.Next()
			if err != nil {
				return ipld.Null, err
			}
			key, err := k.AsString()
			if err != nil {
				return ipld.Null, fmt.Errorf("prime: map key is not a string: %w", err)
			}
			e, err := Unwrap(v)
			if err != nil {
				return ipld.Null, err
			}
			entries = append(entries, ipld.Entry{Key: key, Value: e})
		}
		return ipld.NewMap(entries...), nil
	case datamodel.Kind_Link:
		l, err := n.AsLink()
		if err != nil {
			return ipld.Null, err
		}
		cl, ok := l.(cidlink.Link)
		if !ok {
			return ipld.Null, fmt.Errorf("prime: unsupported link type %T", l)
		}
		c, err := cid.Cast(cl.Cid.Bytes(), cid.WithPermissive())
		if err != nil {
			return ipld.Null, fmt.Errorf("prime: converting link: %w", err)
		}
		return ipld.NewLink(c), nil
	}
	return ipld.Null, fmt.Errorf("prime: cannot convert %s node", n.Kind())
}
