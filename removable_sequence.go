// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// RemovableSequence: like Sequence, but backed by a mutable list so
// arbitrary elements can be removed in O(1) amortized cost via unlink
// rather than only from the tail.

package llsdb

type removableChangeKind int

const (
	removableChangePush removableChangeKind = iota
	removableChangePop
	removableChangeRemove
)

type removableChange struct {
	kind removableChangeKind
	idx  int
	ptr  EntryPointer
}

// RemovableSequence is the removable-sequence index: insertion-ordered
// EntryPointers over a LinkedListMut, supporting push/pop/get/remove(i)
// and retain(pred).
type RemovableSequence struct {
	list      LinkedListMut
	ptrs      []EntryPointer
	txChanges []removableChange
}

// NewRemovableSequence reconstructs a RemovableSequence by scanning slot's
// live entries.
func NewRemovableSequence(t *TxIo, slot ListSlot) (*RemovableSequence, error) {
	list := NewLinkedListMut(slot)
	it := list.API(t).Iter()
	var ptrs []EntryPointer
	for {
		ep, ok, err := it.NextPointer()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		ptrs = append(ptrs, ep)
	}
	for i, j := 0, len(ptrs)-1; i < j; i, j = i+1, j-1 {
		ptrs[i], ptrs[j] = ptrs[j], ptrs[i]
	}
	return &RemovableSequence{list: list, ptrs: ptrs}, nil
}

// OwnedLists implements IndexStore.
func (r *RemovableSequence) OwnedLists() []ListSlot { return r.list.ownedLists() }

// TxFailRollback implements IndexStore, replaying the change log in LIFO
// order against ptrs.
func (r *RemovableSequence) TxFailRollback() {
	for i := len(r.txChanges) - 1; i >= 0; i-- {
		c := r.txChanges[i]
		switch c.kind {
		case removableChangePush:
			r.ptrs = r.ptrs[:len(r.ptrs)-1]
		case removableChangePop:
			r.ptrs = append(r.ptrs, c.ptr)
		case removableChangeRemove:
			r.ptrs = append(r.ptrs, EntryPointer{})
			copy(r.ptrs[c.idx+1:], r.ptrs[c.idx:])
			r.ptrs[c.idx] = c.ptr
		}
	}
	r.txChanges = nil
}

// TxSuccess implements IndexStore.
func (r *RemovableSequence) TxSuccess() { r.txChanges = nil }

// API binds the RemovableSequence to a running transaction.
func (r *RemovableSequence) API(t *TxIo) *RemovableSequenceAPI {
	return &RemovableSequenceAPI{seq: r, list: r.list.API(t)}
}

// RemovableSequenceAPI is a RemovableSequence bound to one transaction.
type RemovableSequenceAPI struct {
	seq  *RemovableSequence
	list *LinkedListMutAPI
}

// Len returns the number of live entries.
func (a *RemovableSequenceAPI) Len() int { return len(a.seq.ptrs) }

// IsEmpty reports whether the sequence has no live entries.
func (a *RemovableSequenceAPI) IsEmpty() bool { return len(a.seq.ptrs) == 0 }

// Get decodes the value at index i into into.
func (a *RemovableSequenceAPI) Get(i int, into Decoder) error {
	if i < 0 || i >= len(a.seq.ptrs) {
		return errUser("RemovableSequenceAPI.Get", i)
	}
	return a.list.ReadAt(a.seq.ptrs[i], into)
}

// Push appends value, returning the handle of the written entry.
func (a *RemovableSequenceAPI) Push(value Encoder) (EntryHandle, error) {
	handle, err := a.list.Push(value)
	if err != nil {
		return EntryHandle{}, err
	}
	a.seq.ptrs = append(a.seq.ptrs, handle.EntryPointer)
	a.seq.txChanges = append(a.seq.txChanges, removableChange{kind: removableChangePush, ptr: handle.EntryPointer})
	return handle, nil
}

// Pop removes and decodes the most recently pushed live value.
func (a *RemovableSequenceAPI) Pop(into Decoder) (bool, error) {
	if len(a.seq.ptrs) == 0 {
		return false, nil
	}
	last := a.seq.ptrs[len(a.seq.ptrs)-1]
	if into != nil {
		if err := a.list.ReadAt(last, into); err != nil {
			return false, err
		}
	}
	if err := a.list.UnlinkAt(last); err != nil {
		return false, err
	}
	a.seq.ptrs = a.seq.ptrs[:len(a.seq.ptrs)-1]
	a.seq.txChanges = append(a.seq.txChanges, removableChange{kind: removableChangePop, ptr: last})
	return true, nil
}

// Remove unlinks and removes the element at index i, shifting later
// elements down by one.
func (a *RemovableSequenceAPI) Remove(i int) error {
	if i < 0 || i >= len(a.seq.ptrs) {
		return errUser("RemovableSequenceAPI.Remove", i)
	}
	ptr := a.seq.ptrs[i]
	if err := a.list.UnlinkAt(ptr); err != nil {
		return err
	}
	a.seq.ptrs = append(a.seq.ptrs[:i], a.seq.ptrs[i+1:]...)
	a.seq.txChanges = append(a.seq.txChanges, removableChange{kind: removableChangeRemove, idx: i, ptr: ptr})
	return nil
}

// Retain keeps only the elements for which keep returns true, decoding
// each element with newValue before testing it. Matching removals are
// unlinked in reverse index order so earlier indices never shift out from
// under a removal still in flight, and so a trailing removal degenerates
// to a cheap pop.
func (a *RemovableSequenceAPI) Retain(newValue func() Decoder, keep func(Decoder) bool) error {
	var drop []int
	for i, ep := range a.seq.ptrs {
		value := newValue()
		if err := a.list.ReadAt(ep, value); err != nil {
			return err
		}
		if !keep(value) {
			drop = append(drop, i)
		}
	}
	for i := len(drop) - 1; i >= 0; i-- {
		if err := a.Remove(drop[i]); err != nil {
			return err
		}
	}
	return nil
}

// Iter streams the live (index, value) pairs front to back.
func (a *RemovableSequenceAPI) Iter(newValue func() Decoder, yield func(int, Decoder) bool) error {
	for i, ep := range a.seq.ptrs {
		value := newValue()
		if err := a.list.ReadAt(ep, value); err != nil {
			return err
		}
		if !yield(i, value) {
			return nil
		}
	}
	return nil
}

// Clear removes every live element.
func (a *RemovableSequenceAPI) Clear() error {
	for len(a.seq.ptrs) > 0 {
		if _, err := a.Pop(nil); err != nil {
			return err
		}
	}
	return nil
}
