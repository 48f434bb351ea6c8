// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Cell and CellOption: lists constrained to hold exactly one entry, or at
// most one entry, respectively. Both delegate straight to the backing
// list; replace is pop-then-push, so rollback is free (list-head changes
// are transaction-scoped in TxIo and never reach the header page unless
// the transaction commits).

package llsdb

// Cell is a list constrained to always hold exactly one entry.
type Cell struct {
	list LinkedList
}

// NewCell reconstructs a Cell over an existing, non-empty list. It fails
// with a Schema error if the list is empty.
func NewCell(t *TxIo, slot ListSlot) (*Cell, error) {
	if NewLinkedList(slot).API(t).IsEmpty() {
		return nil, errSchema("NewCell", "backing list is empty")
	}
	return &Cell{list: NewLinkedList(slot)}, nil
}

// NewCellWithInitialValue reconstructs a Cell, pushing value as the
// initial entry if the backing list is empty.
func NewCellWithInitialValue(t *TxIo, slot ListSlot, value Encoder) (*Cell, error) {
	api := NewLinkedList(slot).API(t)
	if api.IsEmpty() {
		if _, err := api.Push(value); err != nil {
			return nil, err
		}
	}
	return &Cell{list: NewLinkedList(slot)}, nil
}

// OwnedLists implements IndexStore.
func (c *Cell) OwnedLists() []ListSlot { return c.list.ownedLists() }

// TxFailRollback implements IndexStore: a Cell has no state beyond the
// list head itself, which TxIo already discards on failure.
func (c *Cell) TxFailRollback() {}

// TxSuccess implements IndexStore.
func (c *Cell) TxSuccess() {}

// API binds the Cell to a running transaction.
func (c *Cell) API(t *TxIo) *CellAPI { return &CellAPI{list: c.list.API(t)} }

// CellAPI is a Cell bound to one transaction.
type CellAPI struct {
	list *LinkedListAPI
}

// Get decodes the cell's single value into into.
func (a *CellAPI) Get(into Decoder) error {
	ok, err := a.list.Head(into)
	if err != nil {
		return err
	}
	if !ok {
		return errCorruption("CellAPI.Get", "cell list unexpectedly empty")
	}
	return nil
}

// Replace pops the current value and pushes value as the new one.
func (a *CellAPI) Replace(value Encoder) error {
	if _, err := a.list.Pop(nil); err != nil {
		return err
	}
	_, err := a.list.Push(value)
	return err
}

// CellOption is a list constrained to hold zero or one entry.
type CellOption struct {
	list LinkedList
}

// NewCellOption reconstructs a CellOption over slot.
func NewCellOption(slot ListSlot) *CellOption {
	return &CellOption{list: NewLinkedList(slot)}
}

// OwnedLists implements IndexStore.
func (c *CellOption) OwnedLists() []ListSlot { return c.list.ownedLists() }

// TxFailRollback implements IndexStore.
func (c *CellOption) TxFailRollback() {}

// TxSuccess implements IndexStore.
func (c *CellOption) TxSuccess() {}

// API binds the CellOption to a running transaction.
func (c *CellOption) API(t *TxIo) *CellOptionAPI {
	return &CellOptionAPI{list: c.list.API(t)}
}

// CellOptionAPI is a CellOption bound to one transaction.
type CellOptionAPI struct {
	list *LinkedListAPI
}

// IsSome reports whether a value is currently present.
func (a *CellOptionAPI) IsSome() bool { return !a.list.IsEmpty() }

// IsNone reports whether no value is currently present.
func (a *CellOptionAPI) IsNone() bool { return a.list.IsEmpty() }

// Get decodes the current value into into, reporting false if none is set.
func (a *CellOptionAPI) Get(into Decoder) (bool, error) { return a.list.Head(into) }

// Take pops and decodes the current value, reporting false if none was set.
func (a *CellOptionAPI) Take(into Decoder) (bool, error) { return a.list.Pop(into) }

// Clear removes the current value, if any.
func (a *CellOptionAPI) Clear() error {
	_, err := a.list.Pop(nil)
	return err
}

// Replace sets the cell to value, discarding any previous value.
func (a *CellOptionAPI) Replace(value Encoder) error {
	if _, err := a.list.Pop(nil); err != nil {
		return err
	}
	_, err := a.list.Push(value)
	return err
}
