// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Sequence: an in-memory, append-only deque of entry pointers mirroring a
// LinkedList's entries in insertion order, so random-access Get(i) and Len
// don't require a list walk. Unlike Cell, Sequence's in-memory projection
// outlives any single transaction, so mutations it makes during a failed
// transaction must be explicitly undone.

package llsdb

type seqChangeKind int

const (
	seqChangePush seqChangeKind = iota
	seqChangePop
)

type seqChange struct {
	kind seqChangeKind
	ptr  Pointer
}

// Sequence is the append-only sequence index described by
// "Prebuilt indices" in the design: push/pop/get/iter/len over a list,
// backed by an in-memory slice of entry pointers rebuilt once at load
// time by scanning the list head to tail and reversing the result.
type Sequence struct {
	list      LinkedList
	ptrs      []Pointer
	txChanges []seqChange
}

// NewSequence reconstructs a Sequence by scanning slot's entries. Because
// list traversal is head-to-tail = newest-to-oldest, entries are
// collected as they're discovered and the slice is then reversed so it
// ends up in original push order.
func NewSequence(t *TxIo, slot ListSlot) (*Sequence, error) {
	list := NewLinkedList(slot)
	it := list.API(t).EntryIter()
	var ptrs []Pointer
	for {
		ep, ok, err := it.NextPointer()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		ptrs = append(ptrs, ep.ThisEntry)
	}
	for i, j := 0, len(ptrs)-1; i < j; i, j = i+1, j-1 {
		ptrs[i], ptrs[j] = ptrs[j], ptrs[i]
	}
	return &Sequence{list: list, ptrs: ptrs}, nil
}

// OwnedLists implements IndexStore.
func (s *Sequence) OwnedLists() []ListSlot { return s.list.ownedLists() }

// TxFailRollback implements IndexStore, reversing Push/Pop against ptrs in
// LIFO order.
func (s *Sequence) TxFailRollback() {
	for i := len(s.txChanges) - 1; i >= 0; i-- {
		switch c := s.txChanges[i]; c.kind {
		case seqChangePush:
			s.ptrs = s.ptrs[:len(s.ptrs)-1]
		case seqChangePop:
			s.ptrs = append(s.ptrs, c.ptr)
		}
	}
	s.txChanges = nil
}

// TxSuccess implements IndexStore.
func (s *Sequence) TxSuccess() { s.txChanges = nil }

// API binds the Sequence to a running transaction.
func (s *Sequence) API(t *TxIo) *SequenceAPI { return &SequenceAPI{seq: s, list: s.list.API(t)} }

// SequenceAPI is a Sequence bound to one transaction.
type SequenceAPI struct {
	seq  *Sequence
	list *LinkedListAPI
}

// Len returns the number of entries currently in the sequence.
func (a *SequenceAPI) Len() int { return len(a.seq.ptrs) }

// IsEmpty reports whether the sequence has no entries.
func (a *SequenceAPI) IsEmpty() bool { return len(a.seq.ptrs) == 0 }

// Get decodes the value at index i into into.
func (a *SequenceAPI) Get(i int, into Decoder) error {
	if i < 0 || i >= len(a.seq.ptrs) {
		return errUser("SequenceAPI.Get", i)
	}
	return a.list.ReadAt(a.seq.ptrs[i], into)
}

// Iter streams the (index, value) pairs front to back.
func (a *SequenceAPI) Iter(newValue func() Decoder, yield func(int, Decoder) bool) error {
	for i, p := range a.seq.ptrs {
		value := newValue()
		if err := a.list.ReadAt(p, value); err != nil {
			return err
		}
		if !yield(i, value) {
			return nil
		}
	}
	return nil
}

// Push appends value, returning the handle of the written entry.
func (a *SequenceAPI) Push(value Encoder) (EntryHandle, error) {
	handle, err := a.list.Push(value)
	if err != nil {
		return EntryHandle{}, err
	}
	a.seq.ptrs = append(a.seq.ptrs, handle.ThisEntry)
	a.seq.txChanges = append(a.seq.txChanges, seqChange{kind: seqChangePush, ptr: handle.ThisEntry})
	return handle, nil
}

// Pop removes and decodes the most recently pushed value, reporting false
// if the sequence is empty.
func (a *SequenceAPI) Pop(into Decoder) (bool, error) {
	if len(a.seq.ptrs) == 0 {
		return false, nil
	}
	ok, err := a.list.Pop(into)
	if err != nil || !ok {
		return ok, err
	}
	last := a.seq.ptrs[len(a.seq.ptrs)-1]
	a.seq.ptrs = a.seq.ptrs[:len(a.seq.ptrs)-1]
	a.seq.txChanges = append(a.seq.txChanges, seqChange{kind: seqChangePop, ptr: last})
	return true, nil
}
