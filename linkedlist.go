// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The linked list: the sole persistent data structure. Both variants are
// thin API shims over TxIo.push/pop/iter bound to one list slot; the
// mutable variant additionally tags every payload as Add(value) or
// Remap(from,to) so mid-list removal can be expressed by appending a
// record instead of rewriting existing bytes.

package llsdb

// LinkedList is an immutable, append-only list: head read, push, pop
// (which removes the most-recently-pushed entry), clear, and iteration in
// last-pushed-first order.
type LinkedList struct {
	slot ListSlot
}

// NewLinkedList returns a LinkedList bound to slot. Used internally by the
// Database when registering a named list; most callers obtain a
// LinkedList via Tx.TakeList.
func NewLinkedList(slot ListSlot) LinkedList { return LinkedList{slot: slot} }

// Slot returns the list-head slot this list is backed by.
func (l LinkedList) Slot() ListSlot { return l.slot }

// API binds the list to a running transaction's I/O.
func (l LinkedList) API(t *TxIo) *LinkedListAPI { return &LinkedListAPI{t: t, slot: l.slot} }

func (l LinkedList) ownedLists() []ListSlot { return []ListSlot{l.slot} }

// LinkedListAPI is a LinkedList bound to one transaction. Its lifetime
// must not outlive that transaction.
type LinkedListAPI struct {
	t    *TxIo
	slot ListSlot
}

// HeadPointer returns the address of the current head entry, or NULL if
// the list is empty.
func (a *LinkedListAPI) HeadPointer() Pointer { return a.t.currHead(int(a.slot)) }

// IsEmpty reports whether the list currently has no entries.
func (a *LinkedListAPI) IsEmpty() bool { return a.HeadPointer() == NULL }

// Head decodes the current head's value into into, reporting false if the
// list is empty.
func (a *LinkedListAPI) Head(into Decoder) (bool, error) {
	it := a.t.iter(int(a.slot))
	_, ok, err := it.Next(into)
	return ok, err
}

// Push appends value as the new head, returning a handle to the written
// entry.
func (a *LinkedListAPI) Push(value Encoder) (EntryHandle, error) {
	return a.t.push(int(a.slot), value, 0)
}

// PushKV appends a key/value pair as a single allocation; see TxIo.pushKV.
func (a *LinkedListAPI) PushKV(key, value Encoder) (EntryHandle, error) {
	return a.t.pushKV(int(a.slot), key, value)
}

// Pop removes and decodes the current head, reporting false if the list is
// empty.
func (a *LinkedListAPI) Pop(into Decoder) (bool, error) {
	return a.t.pop(int(a.slot), into)
}

// EntryIter returns a streaming iterator over the list's entries.
func (a *LinkedListAPI) EntryIter() *EntryIter { return a.t.iter(int(a.slot)) }

// ReadAt decodes the value stored at p directly, without walking the list.
// Used by indices (e.g. Sequence) that cache Pointers and need random
// access by address.
func (a *LinkedListAPI) ReadAt(p Pointer, into Decoder) error {
	_, raw, err := a.t.readEntry(p)
	if err != nil {
		return err
	}
	if into != nil {
		return into.DecodeValue(raw)
	}
	return nil
}

// Clear pops every entry until the list is empty.
func (a *LinkedListAPI) Clear() error {
	for {
		ok, err := a.Pop(nil)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
}

// mutTag distinguishes a mutable-list entry's two payload shapes.
type mutTag byte

const (
	mutTagAdd   mutTag = 0
	mutTagRemap mutTag = 1
)

// mutAdd frames a caller value as an Add(value) mutable-list record.
type mutAdd struct{ value Encoder }

func (m mutAdd) EncodeValue() ([]byte, error) {
	raw, err := m.value.EncodeValue()
	if err != nil {
		return nil, err
	}
	return append([]byte{byte(mutTagAdd)}, raw...), nil
}

// mutRemap frames a Remap record as a mutable-list entry payload.
type mutRemap Remap

func (m mutRemap) EncodeValue() ([]byte, error) {
	buf := []byte{byte(mutTagRemap)}
	buf = appendPointer(buf, m.From)
	buf = appendPointer(buf, m.To)
	return buf, nil
}

// mutDecoded is the result of decoding a mutable-list entry: exactly one
// of remap/value is meaningful, selected by isRemap.
type mutDecoded struct {
	isRemap bool
	remap   Remap
	value   []byte
}

func (m *mutDecoded) DecodeValue(p []byte) error {
	if len(p) == 0 {
		return errCorruption("mutDecoded.DecodeValue", "empty payload")
	}
	switch mutTag(p[0]) {
	case mutTagAdd:
		m.isRemap = false
		m.value = append([]byte(nil), p[1:]...)
		return nil
	case mutTagRemap:
		m.isRemap = true
		from, n, ok := getPointer(p[1:])
		if !ok {
			return errCorruption("mutDecoded.DecodeValue", "truncated remap from")
		}
		to, _, ok := getPointer(p[1+n:])
		if !ok {
			return errCorruption("mutDecoded.DecodeValue", "truncated remap to")
		}
		m.remap = Remap{From: from, To: to}
		return nil
	default:
		return errCorruption("mutDecoded.DecodeValue", p[0])
	}
}

// LinkedListMut is a LinkedList whose entries are tagged Add/Remap
// records, supporting O(1) mid-list removal via unlink.
type LinkedListMut struct {
	inner LinkedList
}

// NewLinkedListMut returns a LinkedListMut bound to slot.
func NewLinkedListMut(slot ListSlot) LinkedListMut {
	return LinkedListMut{inner: NewLinkedList(slot)}
}

// Slot returns the list-head slot this list is backed by.
func (l LinkedListMut) Slot() ListSlot { return l.inner.slot }

// API binds the list to a running transaction's I/O.
func (l LinkedListMut) API(t *TxIo) *LinkedListMutAPI {
	return &LinkedListMutAPI{inner: l.inner.API(t)}
}

func (l LinkedListMut) ownedLists() []ListSlot { return l.inner.ownedLists() }

// LinkedListMutAPI is a LinkedListMut bound to one transaction.
type LinkedListMutAPI struct {
	inner *LinkedListAPI
}

// Push appends value as a new Add(value) record, returning a handle to it.
func (a *LinkedListMutAPI) Push(value Encoder) (EntryHandle, error) {
	return a.inner.Push(mutAdd{value: value})
}

// Unlink removes the entry identified by handle. If it is the current
// head, this is a plain pop. Otherwise a Remap record pointing from
// handle's address to its (possibly stale) prev-pointer is appended as the
// new head, and handle's bytes are queued for reclamation; the unlinked
// entry itself is never rewritten.
func (a *LinkedListMutAPI) Unlink(handle EntryHandle) error {
	t := a.inner.t
	slot := int(a.inner.slot)
	if t.currHead(slot) == handle.ThisEntry {
		_, err := t.pop(slot, nil)
		return err
	}
	remap := Remap{From: handle.ThisEntry, To: handle.NextEntryPossiblyStale}
	if _, err := t.push(slot, mutRemap(remap), 0); err != nil {
		return err
	}
	t.free(handle)
	return nil
}

// MutIter streams the live (non-removed) entries of a mutable list,
// transparently resolving Remap records without ever surfacing a removed
// entry to the caller.
type MutIter struct {
	it *EntryIter
}

// Iter returns an iterator over the list's live entries, head to tail.
func (a *LinkedListMutAPI) Iter() *MutIter {
	return &MutIter{it: a.inner.t.iter(int(a.inner.slot))}
}

// Next decodes the next live entry's value into into (which may be nil to
// skip decoding) and returns its handle. It reports false once the chain
// is exhausted, silently skipping over any Remap records it encounters.
func (it *MutIter) Next(into Decoder) (EntryHandle, bool, error) {
	for {
		var rec mutDecoded
		handle, ok, err := it.it.Next(&rec)
		if err != nil {
			return EntryHandle{}, false, err
		}
		if !ok {
			return EntryHandle{}, false, nil
		}
		if rec.isRemap {
			it.it.remap(rec.remap)
			continue
		}
		if into != nil {
			if err := into.DecodeValue(rec.value); err != nil {
				return EntryHandle{}, false, errUserErr("MutIter.Next", err)
			}
		}
		return handle, true, nil
	}
}

// NextPointer is like Next but skips decoding; used by indices (e.g.
// RemovableSequence) that only need EntryPointers.
func (it *MutIter) NextPointer() (EntryPointer, bool, error) {
	handle, ok, err := it.Next(nil)
	return handle.EntryPointer, ok, err
}

// Pop removes and decodes the current live head, reporting false if the
// list is empty.
func (a *LinkedListMutAPI) Pop(into Decoder) (EntryHandle, bool, error) {
	handle, ok, err := a.Iter().Next(into)
	if err != nil || !ok {
		return EntryHandle{}, false, err
	}
	if err := a.Unlink(handle); err != nil {
		return EntryHandle{}, false, err
	}
	return handle, true, nil
}

// Clear unlinks every live entry.
func (a *LinkedListMutAPI) Clear() error {
	return a.inner.Clear()
}

// ReadAt decodes the live Add value stored at ep directly, without
// walking the list. Used by indices that cache EntryPointers (e.g.
// RemovableSequence) and need random access by address.
func (a *LinkedListMutAPI) ReadAt(ep EntryPointer, into Decoder) error {
	handle, raw, err := a.inner.t.readEntry(ep.ThisEntry)
	if err != nil {
		return err
	}
	var rec mutDecoded
	if err := rec.DecodeValue(raw); err != nil {
		return err
	}
	if rec.isRemap {
		return errCorruption("LinkedListMutAPI.ReadAt", "pointer refers to a Remap record")
	}
	_ = handle
	if into != nil {
		return into.DecodeValue(rec.value)
	}
	return nil
}

// UnlinkAt unlinks the entry at ep, re-reading it first to recover the
// EntryHandle (with its value length) that Unlink needs to size the
// reclaimed region correctly.
func (a *LinkedListMutAPI) UnlinkAt(ep EntryPointer) error {
	handle, _, err := a.inner.t.readEntry(ep.ThisEntry)
	if err != nil {
		return err
	}
	return a.Unlink(handle)
}
