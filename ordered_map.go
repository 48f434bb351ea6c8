// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// OrderedMap: a key-ordered, idempotent-insert map over a list of (key,
// value) entries written with pushKV. The live projection is an in-memory
// btree.BTreeG keyed on K, each leaf pointing at the handle of the most
// recently written (key, value) entry; stale entries for overwritten keys
// stay on disk, shadowed by the index. The map never removes or rewrites
// them.

package llsdb

import (
	"bytes"

	"github.com/google/btree"
)

// OrderedMapKeyCodec supplies the pieces specific to a key type K that the
// generic OrderedMap machinery can't infer on its own.
type OrderedMapKeyCodec[K any] struct {
	// Encode returns an Encoder that writes k's on-disk key bytes.
	Encode func(k K) Encoder
	// Decode parses k's on-disk key bytes back into a K.
	Decode func(raw []byte) (K, error)
	// Less reports whether a sorts before b.
	Less func(a, b K) bool
}

type omEntry[K any] struct {
	key    K
	handle EntryHandle
}

type mapChange[K any] struct {
	key        K
	prevHandle EntryHandle
	hadPrev    bool
}

// OrderedMap is the ordered-map index: an in-memory btree.BTreeG mirroring
// a list's live (key, value) entries in key order.
type OrderedMap[K any] struct {
	list      LinkedList
	codec     OrderedMapKeyCodec[K]
	tree      *btree.BTreeG[omEntry[K]]
	txChanges []mapChange[K]
}

type keyDecodeBox[K any] struct {
	decode func([]byte) (K, error)
	value  K
}

func (b *keyDecodeBox[K]) DecodeValue(p []byte) error {
	v, err := b.decode(p)
	if err != nil {
		return err
	}
	b.value = v
	return nil
}

// NewOrderedMap reconstructs an OrderedMap by scanning slot's entries. List
// traversal is head-to-tail = newest-to-oldest, so the first handle seen
// for a given key is kept and later (older, shadowed) ones are discarded.
func NewOrderedMap[K any](t *TxIo, slot ListSlot, codec OrderedMapKeyCodec[K]) (*OrderedMap[K], error) {
	list := NewLinkedList(slot)
	tree := btree.NewG(32, func(a, b omEntry[K]) bool { return codec.Less(a.key, b.key) })

	it := list.API(t).EntryIter()
	for {
		box := keyDecodeBox[K]{decode: codec.Decode}
		handle, ok, err := it.Next(&box)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		probe := omEntry[K]{key: box.value}
		if _, found := tree.Get(probe); !found {
			tree.ReplaceOrInsert(omEntry[K]{key: box.value, handle: handle})
		}
	}
	return &OrderedMap[K]{list: list, codec: codec, tree: tree}, nil
}

// OwnedLists implements IndexStore.
func (m *OrderedMap[K]) OwnedLists() []ListSlot { return m.list.ownedLists() }

// TxFailRollback implements IndexStore, replaying Insert changes in LIFO
// order: a key that had no previous handle is removed outright; one that
// did has its previous handle restored.
func (m *OrderedMap[K]) TxFailRollback() {
	for i := len(m.txChanges) - 1; i >= 0; i-- {
		c := m.txChanges[i]
		if c.hadPrev {
			m.tree.ReplaceOrInsert(omEntry[K]{key: c.key, handle: c.prevHandle})
		} else {
			m.tree.Delete(omEntry[K]{key: c.key})
		}
	}
	m.txChanges = nil
}

// TxSuccess implements IndexStore.
func (m *OrderedMap[K]) TxSuccess() { m.txChanges = nil }

// API binds the OrderedMap to a running transaction.
func (m *OrderedMap[K]) API(t *TxIo) *OrderedMapAPI[K] {
	return &OrderedMapAPI[K]{m: m, t: t, list: m.list.API(t)}
}

// OrderedMapAPI is an OrderedMap bound to one transaction.
type OrderedMapAPI[K any] struct {
	m    *OrderedMap[K]
	t    *TxIo
	list *LinkedListAPI
}

// Len returns the number of live keys.
func (a *OrderedMapAPI[K]) Len() int { return a.m.tree.Len() }

// IsEmpty reports whether the map has no live keys.
func (a *OrderedMapAPI[K]) IsEmpty() bool { return a.m.tree.Len() == 0 }

// Insert sets key to value. If key is already present with an identical
// encoded value, this is a no-op (no new entry is written). Otherwise a
// new (key, value) entry is appended and the old one is shadowed. The
// previously stored raw value bytes are returned, if any.
func (a *OrderedMapAPI[K]) Insert(key K, value Encoder) (prevRaw []byte, existed bool, err error) {
	newRaw, err := value.EncodeValue()
	if err != nil {
		return nil, false, errUserErr("OrderedMapAPI.Insert", err)
	}

	if existing, found := a.m.tree.Get(omEntry[K]{key: key}); found {
		existingRaw, err := a.t.readAt(existing.handle.PointerToEnd())
		if err != nil {
			return nil, false, err
		}
		if bytes.Equal(existingRaw, newRaw) {
			return existingRaw, true, nil
		}
		newHandle, err := a.list.PushKV(a.m.codec.Encode(key), Bytes(newRaw))
		if err != nil {
			return nil, false, err
		}
		a.m.tree.ReplaceOrInsert(omEntry[K]{key: key, handle: newHandle})
		a.m.txChanges = append(a.m.txChanges, mapChange[K]{key: key, prevHandle: existing.handle, hadPrev: true})
		return existingRaw, true, nil
	}

	newHandle, err := a.list.PushKV(a.m.codec.Encode(key), Bytes(newRaw))
	if err != nil {
		return nil, false, err
	}
	a.m.tree.ReplaceOrInsert(omEntry[K]{key: key, handle: newHandle})
	a.m.txChanges = append(a.m.txChanges, mapChange[K]{key: key, hadPrev: false})
	return nil, false, nil
}

// Get returns the raw value bytes stored for key, reporting false if key
// is absent.
func (a *OrderedMapAPI[K]) Get(key K) ([]byte, bool, error) {
	entry, found := a.m.tree.Get(omEntry[K]{key: key})
	if !found {
		return nil, false, nil
	}
	raw, err := a.t.readAt(entry.handle.PointerToEnd())
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

// Keys yields every live key in ascending order.
func (a *OrderedMapAPI[K]) Keys() []K {
	keys := make([]K, 0, a.m.tree.Len())
	a.m.tree.Ascend(func(e omEntry[K]) bool {
		keys = append(keys, e.key)
		return true
	})
	return keys
}

// Ascend streams (key, raw value) pairs in ascending key order, stopping
// early if yield returns false.
func (a *OrderedMapAPI[K]) Ascend(yield func(K, []byte) bool) error {
	var iterErr error
	a.m.tree.Ascend(func(e omEntry[K]) bool {
		raw, err := a.t.readAt(e.handle.PointerToEnd())
		if err != nil {
			iterErr = err
			return false
		}
		return yield(e.key, raw)
	})
	return iterErr
}

// AscendRange streams (key, raw value) pairs with key >= lo and key < hi.
func (a *OrderedMapAPI[K]) AscendRange(lo, hi K, yield func(K, []byte) bool) error {
	var iterErr error
	a.m.tree.AscendRange(omEntry[K]{key: lo}, omEntry[K]{key: hi}, func(e omEntry[K]) bool {
		raw, err := a.t.readAt(e.handle.PointerToEnd())
		if err != nil {
			iterErr = err
			return false
		}
		return yield(e.key, raw)
	})
	return iterErr
}

// Descend streams (key, raw value) pairs in descending key order, stopping
// early if yield returns false.
func (a *OrderedMapAPI[K]) Descend(yield func(K, []byte) bool) error {
	var iterErr error
	a.m.tree.Descend(func(e omEntry[K]) bool {
		raw, err := a.t.readAt(e.handle.PointerToEnd())
		if err != nil {
			iterErr = err
			return false
		}
		return yield(e.key, raw)
	})
	return iterErr
}
