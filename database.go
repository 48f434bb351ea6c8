// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Database: the top-level object. Owns the backend, the header page, the
// free-space manager, the name -> list-slot directory, and the registry of
// live indices, and drives every mutation through Execute's commit/rollback
// protocol.

package llsdb

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/rs/zerolog"
)

// InitOptions configures a freshly initialized Database.
type InitOptions struct {
	// PageSize is the size in bytes of the header page. Default 4096.
	PageSize uint16
	// MaxSize bounds the logical address space: the first free region
	// covers [MIN, MaxSize-PageSize]. Default math.MaxUint64 (unbounded).
	MaxSize uint64
	// Compress enables snappy compression of entry value payloads written
	// by this Database. Never changes decode behavior: every payload
	// carries its own compressed/uncompressed tag byte, so a Database
	// opened with Compress=false can still read entries written by one
	// with it enabled, and vice versa.
	Compress bool
}

// metaRecord is the value type of the reserved metadata list (slot 0):
// one entry per named list, mapping its name to the slot holding its head.
type metaRecord struct {
	Name string
	Slot ListSlot
}

func (m metaRecord) EncodeValue() ([]byte, error) {
	var slotBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(slotBuf[:], uint64(m.Slot))
	buf := make([]byte, 0, n+len(m.Name))
	buf = append(buf, slotBuf[:n]...)
	buf = append(buf, m.Name...)
	return buf, nil
}

func (m *metaRecord) DecodeValue(p []byte) error {
	slot, n := binary.Uvarint(p)
	if n <= 0 {
		return errCorruption("metaRecord.DecodeValue", "malformed slot varint")
	}
	m.Slot = ListSlot(slot)
	m.Name = string(p[n:])
	return nil
}

// Database is the top-level llsdb object: one backend, one header page,
// one free-space manager, serialized transaction-by-transaction.
type Database struct {
	backend     Backend
	io          *Io
	freeSpace   *FreeSpace
	nListSlots  int
	compress    bool
	slotsByName map[string]ListSlot
	usedSlots   map[ListSlot]bool
	listRefs    map[ListSlot]bool

	indices       []indexEntry
	indicesByName map[string]IndexStore

	inTx   bool
	logger zerolog.Logger
}

// SetLogger attaches a logger for transaction-boundary and corruption
// events. The zero value (before SetLogger is called) is zerolog's no-op
// logger, so logging is opt-in and free when unused.
func (db *Database) SetLogger(logger zerolog.Logger) { db.logger = logger }

// Load opens an existing llsdb file: validates the preamble and every free
// slot, reconstructs the free-space manager, then runs a bootstrap
// transaction that scans the metadata list to recover the name -> slot
// directory and the set of used slots.
func Load(backend Backend, compress bool) (*Database, error) {
	preamble := make([]byte, preambleLen)
	if err := seekRead(backend, 0, preamble); err != nil {
		return nil, errIO("Load", err)
	}
	pageSize := binary.LittleEndian.Uint16(preamble[6:8])

	full := make([]byte, pageSize)
	if err := seekRead(backend, 0, full); err != nil {
		return nil, errIO("Load", err)
	}
	h, err := parseHeader(full)
	if err != nil {
		return nil, err
	}
	freeSlots, err := h.allFreeSlots()
	if err != nil {
		return nil, err
	}

	db := &Database{
		backend:       backend,
		io:            newIo(backend, h),
		freeSpace:     NewFreeSpaceFromPersistState(freeSlots),
		nListSlots:    h.nList,
		compress:      compress,
		slotsByName:   map[string]ListSlot{},
		usedSlots:     map[ListSlot]bool{metaSlot: true},
		listRefs:      map[ListSlot]bool{},
		indicesByName: map[string]IndexStore{},
		logger:        zerolog.Nop(),
	}

	err = db.Execute(func(tx *Tx) error {
		it := tx.io.iter(int(metaSlot))
		for {
			var meta metaRecord
			_, ok, err := it.Next(&meta)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			tx.txSlotsByName[meta.Name] = meta.Slot
			tx.txUsedSlots[meta.Slot] = true
		}
	})
	if err != nil {
		return nil, err
	}
	db.logger.Debug().
		Int("page_size", int(h.pageSize)).
		Int("lists", len(db.slotsByName)).
		Msg("llsdb: loaded")
	return db, nil
}

// Init formats backend as a new, empty llsdb file: writes the preamble,
// installs one free region covering the whole logical address space, and
// writes the header page.
func Init(backend Backend, opts InitOptions) (*Database, error) {
	pageSize := opts.PageSize
	if pageSize == 0 {
		pageSize = defaultPage
	}
	maxSize := opts.MaxSize
	if maxSize == 0 {
		maxSize = math.MaxUint64
	}
	if maxSize < uint64(pageSize) {
		return nil, errSchema("Init", "max size smaller than page size")
	}

	h, err := newHeader(pageSize)
	if err != nil {
		return nil, err
	}
	remaining := maxSize - uint64(pageSize)
	h.writeFreeSlot(0, freeFromStart(MIN, remaining))

	if err := seekWrite(backend, 0, h.buf); err != nil {
		return nil, errIO("Init", err)
	}

	freeSlots, err := h.allFreeSlots()
	if err != nil {
		return nil, err
	}
	db := &Database{
		backend:       backend,
		io:            newIo(backend, h),
		freeSpace:     NewFreeSpaceFromPersistState(freeSlots),
		nListSlots:    h.nList,
		compress:      opts.Compress,
		slotsByName:   map[string]ListSlot{},
		usedSlots:     map[ListSlot]bool{metaSlot: true},
		listRefs:      map[ListSlot]bool{},
		indicesByName: map[string]IndexStore{},
		logger:        zerolog.Nop(),
	}
	db.logger.Debug().Int("page_size", int(pageSize)).Uint64("max_size", maxSize).Msg("llsdb: initialized")
	return db, nil
}

// LoadOrInit probes backend's length and dispatches to Load (non-empty) or
// Init (empty).
func LoadOrInit(backend Backend, opts InitOptions) (*Database, error) {
	size, err := backend.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, errIO("LoadOrInit", err)
	}
	if size == 0 {
		return Init(backend, opts)
	}
	return Load(backend, opts.Compress)
}

// Backend returns the underlying backend. It is only valid to call outside
// Execute; calling it from within a transaction body returns an error.
func (db *Database) Backend() (Backend, error) {
	if db.inTx {
		return nil, errUser("Database.Backend", "backend is owned by the running transaction")
	}
	return db.backend, nil
}

// ListNames returns every registered list name.
func (db *Database) ListNames() []string {
	names := make([]string, 0, len(db.slotsByName))
	for name := range db.slotsByName {
		names = append(names, name)
	}
	return names
}

// Index returns a previously registered index by name.
func (db *Database) Index(name string) (IndexStore, bool) {
	store, ok := db.indicesByName[name]
	return store, ok
}

// TakeIndex looks up a previously registered index by name and asserts it
// to type I, the Go stand-in for Rust's typed IndexHandle. Go cannot infer
// I from the assignment, so it is always given explicitly, e.g.
//
//	seq, ok := llsdb.TakeIndex[*llsdb.Sequence](db, "events")
func TakeIndex[I IndexStore](db *Database, name string) (I, bool) {
	store, ok := db.indicesByName[name]
	if !ok {
		var zero I
		return zero, false
	}
	typed, ok := store.(I)
	if !ok {
		var zero I
		return zero, false
	}
	return typed, true
}

// Tx is the transaction context passed to an Execute body.
type Tx struct {
	io *TxIo
	db *Database

	txSlotsByName map[string]ListSlot
	txUsedSlots   map[ListSlot]bool
	txListRefs    map[ListSlot]bool
	newIndices    []indexEntry
}

// IO returns the transactional I/O handle, the seam every list and index
// API is bound through.
func (tx *Tx) IO() *TxIo { return tx.io }

// reserveNextSlot returns the lowest-numbered list slot not already in use
// by a committed list or by this transaction.
func (tx *Tx) reserveNextSlot() (ListSlot, bool) {
	for i := 0; i < tx.db.nListSlots; i++ {
		slot := ListSlot(i)
		if tx.db.usedSlots[slot] || tx.txUsedSlots[slot] {
			continue
		}
		tx.txUsedSlots[slot] = true
		return slot, true
	}
	return 0, false
}

func (tx *Tx) listTaken(slot ListSlot) bool {
	return tx.db.listRefs[slot] || tx.txListRefs[slot]
}

// TakeList returns the named list, creating it (and recording the mapping
// in the metadata list) if it doesn't already exist. It fails if the list
// is already checked out by an earlier TakeList or RegisterIndex call in
// this transaction, or is owned by an index registered in an earlier,
// committed transaction. A list no index owns is released when the
// transaction ends and can be taken again by a later one.
func (tx *Tx) TakeList(name string) (LinkedList, error) {
	slot, ok := tx.db.slotsByName[name]
	if !ok {
		slot, ok = tx.txSlotsByName[name]
	}
	if !ok {
		newSlot, reserved := tx.reserveNextSlot()
		if !reserved {
			return LinkedList{}, errCapacity("Tx.TakeList", "no more list slots available")
		}
		if _, err := tx.io.push(int(metaSlot), metaRecord{Name: name, Slot: newSlot}, 0); err != nil {
			return LinkedList{}, err
		}
		tx.txSlotsByName[name] = newSlot
		slot = newSlot
	}
	if tx.listTaken(slot) {
		return LinkedList{}, errSchema("Tx.TakeList", "list \""+name+"\" already checked out")
	}
	tx.txListRefs[slot] = true
	return NewLinkedList(slot), nil
}

// RegisterIndex records store under name, claiming exclusive ownership of
// every list slot it reports via OwnedLists. It fails if any of those
// slots is owned by an index registered in an earlier, committed
// transaction. A transaction that fails drops every index
// registered within it; the list slots it claimed are released along with
// the rest of the transaction's uncommitted state.
func (tx *Tx) RegisterIndex(name string, store IndexStore) error {
	owned := store.OwnedLists()
	for _, slot := range owned {
		// Slots this same transaction already checked out via TakeList are
		// expected here - that's the normal TakeList -> NewX -> RegisterIndex
		// construction path. Only a slot owned by an earlier, committed
		// transaction is a real conflict.
		if tx.db.listRefs[slot] {
			return errSchema("Tx.RegisterIndex", "list slot already checked out")
		}
	}
	for _, slot := range owned {
		tx.txListRefs[slot] = true
	}
	tx.newIndices = append(tx.newIndices, indexEntry{name: name, store: store})
	return nil
}

// Execute runs body against a fresh transaction context bound to the
// Database's backend and free-space manager.
//
//  1. Record the backend's current end position.
//  2. Run body.
//  3. On success: flush buffered list-head changes and pending frees into
//     the header page, write it to the backend; on failure to write, the
//     whole transaction becomes a failure.
//  4. On failure: drop indices registered this transaction, roll back the
//     surviving indices and the free-space manager, and truncate the
//     backend back to its starting length.
//  5. On success: commit the new indices (and the list slots they own),
//     slot reservations and name bindings; lists taken without an index
//     are released. Then, if the free-space manager
//     reports trailing free space, truncate it away.
func (db *Database) Execute(body func(*Tx) error) error {
	startingLength, err := db.backend.Seek(0, io.SeekEnd)
	if err != nil {
		return errIO("Database.Execute", err)
	}

	db.inTx = true
	tx := &Tx{
		io:            newTxIo(db.io, db.freeSpace, db.compress),
		db:            db,
		txSlotsByName: map[string]ListSlot{},
		txUsedSlots:   map[ListSlot]bool{},
		txListRefs:    map[ListSlot]bool{},
	}
	outcome := body(tx)
	db.inTx = false

	if outcome == nil {
		for slot, head := range tx.io.bufferedHeads {
			db.io.header.writeListHead(slot, head)
		}
		changedFreeSlots := db.freeSpace.ApplyPendingFrees()
		persisted := db.freeSpace.PersistState()
		for slot := range changedFreeSlots {
			db.io.header.writeFreeSlot(slot, persisted[slot])
		}
		if err := seekWrite(db.backend, 0, db.io.header.buf); err != nil {
			outcome = errIO("Database.Execute", err)
		}
	}

	if outcome != nil {
		for _, e := range db.indices {
			e.store.TxFailRollback()
		}
		db.freeSpace.TxFailRollback()
		_ = db.backend.Truncate(startingLength)
		event := db.logger.Debug()
		if dbErr, ok := outcome.(*Error); ok && dbErr.Kind == KindCorruption {
			event = db.logger.Warn()
		}
		event.Err(outcome).Int64("truncate_to", startingLength).Msg("llsdb: transaction rolled back")
		return outcome
	}

	db.logger.Debug().Int("new_lists", len(tx.txSlotsByName)).Int("new_indices", len(tx.newIndices)).Msg("llsdb: transaction committed")
	db.freeSpace.TxSuccess()
	for _, e := range tx.newIndices {
		for _, slot := range e.store.OwnedLists() {
			db.listRefs[slot] = true
		}
	}
	for name, slot := range tx.txSlotsByName {
		db.slotsByName[name] = slot
	}
	for slot := range tx.txUsedSlots {
		db.usedSlots[slot] = true
	}
	for _, e := range db.indices {
		e.store.TxSuccess()
	}
	for _, e := range tx.newIndices {
		db.indices = append(db.indices, e)
		db.indicesByName[e.name] = e.store
	}

	if trimTo, ok := db.freeSpace.WhereToTrim(); ok {
		_ = db.backend.Truncate(db.io.header.pointerToFilePosition(trimTo))
	}
	return nil
}
