// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The indexer framework: in-memory, transactionally-consistent
// accelerators whose source of truth is one or more linked lists.

package llsdb

// ListSlot is a fixed-index cell in the header table holding the head
// pointer of one linked list. Slot 0 is reserved for the metadata list.
type ListSlot int

// metaSlot holds the name -> slot metadata list; see Database.Load/Init.
const metaSlot ListSlot = 0

// IndexStore is implemented by every index type (Cell, Sequence,
// OrderedMap, ...): an in-memory projection that is a pure function of
// the entry sequence in the list slots it owns, with hooks to keep that
// projection consistent with transaction outcomes.
type IndexStore interface {
	// OwnedLists returns the list slots this index exclusively controls.
	OwnedLists() []ListSlot

	// TxFailRollback undoes whatever in-memory state changes the index
	// made during the failed transaction.
	TxFailRollback()

	// TxSuccess discards the index's undo log: the transaction committed.
	TxSuccess()
}

// indexEntry pairs a registered index with the name it was taken under,
// so the Database can release owned list slots if the index is dropped on
// transaction failure.
type indexEntry struct {
	name  string
	store IndexStore
}
