// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package llsdb

// Pointer is a 64-bit byte offset within the logical address space, i.e.
// the file minus the header page. NULL denotes "no entry"; MIN is the
// first usable byte.
type Pointer uint64

const (
	// NULL is the pointer value that never denotes a valid entry.
	NULL Pointer = 0
	// MIN is the smallest valid Pointer.
	MIN Pointer = 1
)

// EncodedLen returns the number of bytes p occupies in its variable-length
// on-disk encoding: 1 byte if p <= 250, 3 bytes if p <= 2^16-1, 5 bytes if
// p <= 2^32-1, otherwise 9 bytes (1 tag byte plus a full-width payload, so
// the reported length always matches what Get/Put actually consume).
func (p Pointer) EncodedLen() int {
	switch {
	case p <= 250:
		return 1
	case p <= 1<<16-1:
		return 3
	case p <= 1<<32-1:
		return 5
	default:
		return 9
	}
}

// tag bytes marking the 3/5/9 byte pointer encodings; values 0..250 encode
// themselves directly in the single tag byte.
const (
	tagPointer16 = 251
	tagPointer32 = 252
	tagPointer64 = 253
)

func putPointer(buf []byte, p Pointer) int {
	switch {
	case p <= 250:
		buf[0] = byte(p)
		return 1
	case p <= 1<<16-1:
		buf[0] = tagPointer16
		buf[1] = byte(p)
		buf[2] = byte(p >> 8)
		return 3
	case p <= 1<<32-1:
		buf[0] = tagPointer32
		buf[1] = byte(p)
		buf[2] = byte(p >> 8)
		buf[3] = byte(p >> 16)
		buf[4] = byte(p >> 24)
		return 5
	default:
		buf[0] = tagPointer64
		for i := 0; i < 8; i++ {
			buf[1+i] = byte(p >> (8 * i))
		}
		return 9
	}
}

// appendPointer is the convenience form used throughout the I/O layer.
func appendPointer(buf []byte, p Pointer) []byte {
	var tmp [9]byte
	n := putPointer(tmp[:], p)
	return append(buf, tmp[:n]...)
}

// getPointer decodes a Pointer from the front of buf, returning the value
// and the number of bytes consumed. It reports false if buf is too short
// for the encoding its first byte implies.
func getPointer(buf []byte) (Pointer, int, bool) {
	if len(buf) == 0 {
		return 0, 0, false
	}
	switch buf[0] {
	case tagPointer16:
		if len(buf) < 3 {
			return 0, 0, false
		}
		return Pointer(buf[1]) | Pointer(buf[2])<<8, 3, true
	case tagPointer32:
		if len(buf) < 5 {
			return 0, 0, false
		}
		var v Pointer
		for i := 0; i < 4; i++ {
			v |= Pointer(buf[1+i]) << (8 * i)
		}
		return v, 5, true
	case tagPointer64:
		if len(buf) < 9 {
			return 0, 0, false
		}
		var v Pointer
		for i := 0; i < 8; i++ {
			v |= Pointer(buf[1+i]) << (8 * i)
		}
		return v, 9, true
	default:
		return Pointer(buf[0]), 1, true
	}
}

// EntryPointer identifies an entry and the (possibly stale) prev-pointer
// recorded in it. "Possibly stale" because the bytes of an entry are never
// rewritten even after the list topology changes around it; see the
// mutable linked list's remap records.
type EntryPointer struct {
	ThisEntry              Pointer
	NextEntryPossiblyStale Pointer
}

// EntryHandle is an EntryPointer plus the length of the entry's value
// payload, cached to avoid re-deriving it from the encoding.
type EntryHandle struct {
	EntryPointer
	ValueLen uint64
}

// EntryLen is the total on-disk length of the entry: the encoded
// prev-pointer plus the value payload.
func (h EntryHandle) EntryLen() uint64 {
	return uint64(h.NextEntryPossiblyStale.EncodedLen()) + h.ValueLen
}

// ValuePointer is the logical address of the entry's value payload, i.e. the
// first byte after the encoded prev-pointer.
func (h EntryHandle) ValuePointer() Pointer {
	return h.ThisEntry + Pointer(h.NextEntryPossiblyStale.EncodedLen())
}

// PointerToEnd is the address one past the entry's last byte. For a
// key/value pair written as a single allocation via push_kv, this is the
// address of the value that follows the key.
func (h EntryHandle) PointerToEnd() Pointer {
	return h.ThisEntry + Pointer(h.EntryLen())
}

// Remap reroutes iteration from entry `From` to entry `To`, used by the
// mutable linked list to implement O(1) mid-list removal without rewriting
// existing bytes.
type Remap struct {
	From Pointer
	To   Pointer
}
