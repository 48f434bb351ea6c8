// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Transactional I/O: the single in-memory view of the file a running
// transaction operates through. Holds the header page buffer, buffered
// list-head changes, and a handle to the free-space manager; routes every
// push/pop/iter operation through both.

package llsdb

import (
	"encoding/binary"
)

// Io is the Database's persistent view of the backend: the live backend
// plus the header page buffer and derived layout. It is shared by every
// transaction in sequence, never concurrently.
type Io struct {
	backend Backend
	header  *header
}

func newIo(backend Backend, h *header) *Io {
	return &Io{backend: backend, header: h}
}

func (io_ *Io) readAt(pos int64, buf []byte) error {
	return seekRead(io_.backend, pos, buf)
}

func (io_ *Io) writeAt(pos int64, buf []byte) error {
	return seekWrite(io_.backend, pos, buf)
}

// TxIo is the view of Io lent to a single in-flight transaction. List-head
// writes are buffered in memory (curr_head/push/pop) and only reach the
// header page buffer when the owning transaction commits; allocations are
// mediated by the FreeSpace passed in at construction.
type TxIo struct {
	io            *Io
	freeSpace     *FreeSpace
	bufferedHeads map[int]Pointer
	compress      bool
}

func newTxIo(io_ *Io, freeSpace *FreeSpace, compress bool) *TxIo {
	return &TxIo{io: io_, freeSpace: freeSpace, bufferedHeads: map[int]Pointer{}, compress: compress}
}

// currHead returns slot's head: the buffered value if this transaction has
// already changed it, else the value on the header page.
func (t *TxIo) currHead(slot int) Pointer {
	if p, ok := t.bufferedHeads[slot]; ok {
		return p
	}
	return t.io.header.readListHead(slot)
}

// push allocates and writes a new head entry for slot wrapping value, with
// extra additional bytes reserved immediately after the encoded value.
// pushKV does not go through push; it builds its own single allocation.
func (t *TxIo) push(slot int, value Encoder, extra int) (EntryHandle, error) {
	h := t.currHead(slot)
	raw, err := value.EncodeValue()
	if err != nil {
		return EntryHandle{}, errUserErr("TxIo.push", err)
	}
	payload := encodeFramedPayload(raw, t.compress)

	buf := appendPointer(nil, h)
	buf = append(buf, payload...)

	p, err := t.alloc(len(buf) + extra)
	if err != nil {
		return EntryHandle{}, err
	}
	if err := t.io.writeAt(t.io.header.pointerToFilePosition(p), buf); err != nil {
		return EntryHandle{}, errIO("TxIo.push", err)
	}
	t.bufferedHeads[slot] = p
	return EntryHandle{
		EntryPointer: EntryPointer{ThisEntry: p, NextEntryPossiblyStale: h},
		ValueLen:     uint64(len(payload)),
	}, nil
}

// pushKV writes key and value as two framed payloads in a single
// allocation. The returned handle's ValuePointer/ValueLen describe the key
// segment; PointerToEnd is the address of the value segment.
func (t *TxIo) pushKV(slot int, key, value Encoder) (EntryHandle, error) {
	rawKey, err := key.EncodeValue()
	if err != nil {
		return EntryHandle{}, errUserErr("TxIo.pushKV", err)
	}
	rawValue, err := value.EncodeValue()
	if err != nil {
		return EntryHandle{}, errUserErr("TxIo.pushKV", err)
	}
	keyPayload := encodeFramedPayload(rawKey, t.compress)
	valuePayload := encodeFramedPayload(rawValue, t.compress)

	h := t.currHead(slot)
	buf := appendPointer(nil, h)
	buf = append(buf, keyPayload...)
	buf = append(buf, valuePayload...)

	p, err := t.alloc(len(buf))
	if err != nil {
		return EntryHandle{}, err
	}
	if err := t.io.writeAt(t.io.header.pointerToFilePosition(p), buf); err != nil {
		return EntryHandle{}, errIO("TxIo.pushKV", err)
	}
	t.bufferedHeads[slot] = p
	return EntryHandle{
		EntryPointer: EntryPointer{ThisEntry: p, NextEntryPossiblyStale: h},
		ValueLen:     uint64(len(keyPayload)),
	}, nil
}

func (t *TxIo) alloc(size int) (Pointer, error) {
	p, ok := t.freeSpace.TakeForSize(uint64(size))
	if !ok {
		return 0, &Error{Kind: KindCapacity, Op: "TxIo.alloc", Arg: size}
	}
	return p, nil
}

// pop reads and unlinks the current head entry of slot, decoding its value
// into into. It reports false if the list is empty.
func (t *TxIo) pop(slot int, into Decoder) (bool, error) {
	h := t.currHead(slot)
	if h == NULL {
		return false, nil
	}
	handle, raw, err := t.readEntry(h)
	if err != nil {
		return false, err
	}
	if into != nil {
		if err := into.DecodeValue(raw); err != nil {
			return false, errUserErr("TxIo.pop", err)
		}
	}
	t.freeSpace.Free(freeFromStart(handle.ThisEntry, handle.EntryLen()))
	t.bufferedHeads[slot] = handle.NextEntryPossiblyStale
	return true, nil
}

// free queues handle's bytes for reclamation at commit.
func (t *TxIo) free(handle EntryHandle) {
	t.freeSpace.Free(freeFromStart(handle.ThisEntry, handle.EntryLen()))
}

// readAt returns the decoded value payload bytes stored at an entry's
// value pointer (used by indices such as OrderedMap that re-read a value
// by address rather than via iteration).
func (t *TxIo) readAt(p Pointer) ([]byte, error) {
	return t.readFramedPayload(t.io.header.pointerToFilePosition(int64FromPointer(p)))
}

// readEntry reads the full entry (prev-pointer + value) at address p.
func (t *TxIo) readEntry(p Pointer) (EntryHandle, []byte, error) {
	pos := t.io.header.pointerToFilePosition(int64FromPointer(p))
	prev, prevLen, err := t.readPointerAt(pos)
	if err != nil {
		return EntryHandle{}, nil, err
	}
	raw, valueLen, err := t.readFramedPayloadAt(pos + int64(prevLen))
	if err != nil {
		return EntryHandle{}, nil, err
	}
	handle := EntryHandle{
		EntryPointer: EntryPointer{ThisEntry: p, NextEntryPossiblyStale: prev},
		ValueLen:     valueLen,
	}
	return handle, raw, nil
}

func int64FromPointer(p Pointer) int64 { return int64(p) }

// readPointerAt decodes a Pointer at an absolute file position, returning
// its value and its encoded length.
func (t *TxIo) readPointerAt(pos int64) (Pointer, int, error) {
	var tag [1]byte
	if err := t.io.readAt(pos, tag[:]); err != nil {
		return 0, 0, errIO("TxIo.readPointerAt", err)
	}
	switch tag[0] {
	case tagPointer16:
		var b [2]byte
		if err := t.io.readAt(pos+1, b[:]); err != nil {
			return 0, 0, errIO("TxIo.readPointerAt", err)
		}
		return Pointer(b[0]) | Pointer(b[1])<<8, 3, nil
	case tagPointer32:
		var b [4]byte
		if err := t.io.readAt(pos+1, b[:]); err != nil {
			return 0, 0, errIO("TxIo.readPointerAt", err)
		}
		var v Pointer
		for i := 0; i < 4; i++ {
			v |= Pointer(b[i]) << (8 * i)
		}
		return v, 5, nil
	case tagPointer64:
		var b [8]byte
		if err := t.io.readAt(pos+1, b[:]); err != nil {
			return 0, 0, errIO("TxIo.readPointerAt", err)
		}
		var v Pointer
		for i := 0; i < 8; i++ {
			v |= Pointer(b[i]) << (8 * i)
		}
		return v, 9, nil
	default:
		return Pointer(tag[0]), 1, nil
	}
}

// encodeFramedPayload wraps a raw value in the self-delimiting framing
// every entry payload uses: a uvarint length prefix followed by the
// (optionally compressed) bytes, so a reader that only has the entry's
// address can tell how much to read without knowing the value's type.
func encodeFramedPayload(raw []byte, compress bool) []byte {
	compressed := compressPayload(raw, compress)
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(compressed)))
	out := make([]byte, 0, n+len(compressed))
	out = append(out, lenBuf[:n]...)
	out = append(out, compressed...)
	return out
}

// readFramedPayload reads and decodes a framed payload whose uvarint
// length prefix starts at pos.
func (t *TxIo) readFramedPayload(pos int64) ([]byte, error) {
	raw, _, err := t.readFramedPayloadAt(pos)
	return raw, err
}

func (t *TxIo) readFramedPayloadAt(pos int64) ([]byte, uint64, error) {
	length, prefixLen, err := t.readUvarintAt(pos)
	if err != nil {
		return nil, 0, err
	}
	compressed := make([]byte, length)
	if err := t.io.readAt(pos+int64(prefixLen), compressed); err != nil {
		return nil, 0, errIO("TxIo.readFramedPayloadAt", err)
	}
	raw, err := decompressPayload(compressed)
	if err != nil {
		return nil, 0, err
	}
	return raw, uint64(prefixLen) + length, nil
}

func (t *TxIo) readUvarintAt(pos int64) (uint64, int, error) {
	var buf [binary.MaxVarintLen64]byte
	for i := range buf {
		if err := t.io.readAt(pos+int64(i), buf[i:i+1]); err != nil {
			return 0, 0, errIO("TxIo.readUvarintAt", err)
		}
		if buf[i] < 0x80 {
			v, n := binary.Uvarint(buf[:i+1])
			if n <= 0 {
				return 0, 0, errCorruption("TxIo.readUvarintAt", pos)
			}
			return v, n, nil
		}
	}
	return 0, 0, errCorruption("TxIo.readUvarintAt", "length prefix too long")
}

// EntryIter streams a list's entries from its current head, walking
// prev-pointer chains. Mutable-list consumers call remap as they encounter
// Remap records so later prev-pointers equal to an unlinked entry's
// address are rerouted without ever revisiting that entry.
type EntryIter struct {
	t            *TxIo
	next         Pointer
	remap        map[Pointer]Pointer
	reverseRemap map[Pointer]Pointer
}

func (t *TxIo) iter(slot int) *EntryIter {
	return &EntryIter{
		t:            t,
		next:         t.currHead(slot),
		remap:        map[Pointer]Pointer{},
		reverseRemap: map[Pointer]Pointer{},
	}
}

// remap records that entry `from` should be treated as absent, rerouting
// traversal to `to`. It resolves `to` through any existing mapping first,
// and repoints any earlier mapping that targeted `from` at the resolved
// target, so traversal cost never grows with remap chain length.
func (it *EntryIter) remap(r Remap) {
	to := r.To
	if resolved, ok := it.remap[to]; ok {
		to = resolved
	}
	it.remap[r.From] = to
	if earlierFrom, ok := it.reverseRemap[r.From]; ok {
		it.remap[earlierFrom] = to
		it.reverseRemap[to] = earlierFrom
		delete(it.reverseRemap, r.From)
	} else {
		it.reverseRemap[to] = r.From
	}
}

func (it *EntryIter) resolve(p Pointer) Pointer {
	if mapped, ok := it.remap[p]; ok {
		return mapped
	}
	return p
}

// NextPointer advances the iterator and returns the EntryPointer of the
// next entry, without decoding its value.
func (it *EntryIter) NextPointer() (EntryPointer, bool, error) {
	p := it.resolve(it.next)
	if p == NULL {
		return EntryPointer{}, false, nil
	}
	pos := it.t.io.header.pointerToFilePosition(int64FromPointer(p))
	prev, _, err := it.t.readPointerAt(pos)
	if err != nil {
		return EntryPointer{}, false, err
	}
	ep := EntryPointer{ThisEntry: p, NextEntryPossiblyStale: prev}
	it.next = prev
	return ep, true, nil
}

// Next advances the iterator, decoding the entry's value into into. It
// reports false once the chain is exhausted.
func (it *EntryIter) Next(into Decoder) (EntryHandle, bool, error) {
	p := it.resolve(it.next)
	if p == NULL {
		return EntryHandle{}, false, nil
	}
	handle, raw, err := it.t.readEntry(p)
	if err != nil {
		return EntryHandle{}, false, err
	}
	if into != nil {
		if err := into.DecodeValue(raw); err != nil {
			return EntryHandle{}, false, errUserErr("EntryIter.Next", err)
		}
	}
	it.next = handle.NextEntryPossiblyStale
	return handle, true, nil
}
