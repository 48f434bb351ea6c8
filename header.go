// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The header page: the first `page_size` bytes of the file, holding the
// magic/version preamble, the list-head slot table, and the free-region
// slot table.

package llsdb

import "encoding/binary"

// magicBytes identifies an llsdb file.
var magicBytes = [5]byte{0x26, 0xd3, 0x64, 0x62, 0x21}

const (
	preambleLen  = 8
	listSlotLen  = 8
	freeSlotLen  = 16
	minPageSize  = 64
	defaultPage  = 4096
	versionZero  = 0
	minFreeSlots = 1
	minListSlots = 2
)

// layout computes N_list and N_free for a given page size, per the rule
// N_free = floor((page_size-8)/32), N_list = floor((page_size-8-N_free*16)/8).
func layout(pageSize uint16) (nList, nFree int, err error) {
	if pageSize < minPageSize {
		return 0, 0, errSchema("layout", pageSize)
	}
	avail := int(pageSize) - preambleLen
	nFree = avail / 32
	nList = (avail - nFree*freeSlotLen) / listSlotLen
	if nFree < minFreeSlots || nList < minListSlots {
		return 0, 0, errSchema("layout", pageSize)
	}
	return nList, nFree, nil
}

// header is the in-memory mirror of the on-disk header page.
type header struct {
	pageSize uint16
	nList    int
	nFree    int
	buf      []byte
}

func newHeader(pageSize uint16) (*header, error) {
	nList, nFree, err := layout(pageSize)
	if err != nil {
		return nil, err
	}
	h := &header{pageSize: pageSize, nList: nList, nFree: nFree, buf: make([]byte, pageSize)}
	h.writePreamble()
	return h, nil
}

func (h *header) writePreamble() {
	copy(h.buf[0:5], magicBytes[:])
	h.buf[5] = versionZero
	binary.LittleEndian.PutUint16(h.buf[6:8], h.pageSize)
}

// parseHeader validates the preamble in buf and returns a header with its
// list/free slot counts derived, ready for readListHead/readFreeSlot.
func parseHeader(buf []byte) (*header, error) {
	if len(buf) < preambleLen {
		return nil, errCorruption("parseHeader", "short buffer")
	}
	if [5]byte(buf[0:5]) != magicBytes {
		return nil, errCorruption("parseHeader", "bad magic")
	}
	if buf[5] != versionZero {
		return nil, errSchema("parseHeader", buf[5])
	}
	pageSize := binary.LittleEndian.Uint16(buf[6:8])
	nList, nFree, err := layout(pageSize)
	if err != nil {
		return nil, err
	}
	if len(buf) < int(pageSize) {
		return nil, errCorruption("parseHeader", "buffer shorter than page size")
	}
	h := &header{pageSize: pageSize, nList: nList, nFree: nFree, buf: append([]byte(nil), buf[:pageSize]...)}
	return h, nil
}

func (h *header) listSlotOffset(slot int) int { return preambleLen + slot*listSlotLen }

func (h *header) freeSlotOffset(slot int) int {
	return preambleLen + h.nList*listSlotLen + slot*freeSlotLen
}

func (h *header) readListHead(slot int) Pointer {
	off := h.listSlotOffset(slot)
	return Pointer(binary.LittleEndian.Uint64(h.buf[off : off+8]))
}

func (h *header) writeListHead(slot int, p Pointer) {
	off := h.listSlotOffset(slot)
	binary.LittleEndian.PutUint64(h.buf[off:off+8], uint64(p))
}

func (h *header) readFreeSlot(slot int) (Free, error) {
	off := h.freeSlotOffset(slot)
	b := h.buf[off : off+freeSlotLen]
	size := binary.LittleEndian.Uint64(b[0:8])
	end := Pointer(binary.LittleEndian.Uint64(b[8:16]))
	free := Free{Size: size, EndPointer: end}
	if free.Size > uint64(free.EndPointer) {
		return Free{}, errCorruption("readFreeSlot", slot)
	}
	return free, nil
}

func (h *header) writeFreeSlot(slot int, free Free) {
	off := h.freeSlotOffset(slot)
	b := h.buf[off : off+freeSlotLen]
	binary.LittleEndian.PutUint64(b[0:8], free.Size)
	binary.LittleEndian.PutUint64(b[8:16], uint64(free.EndPointer))
}

func (h *header) allFreeSlots() ([]Free, error) {
	out := make([]Free, h.nFree)
	for i := 0; i < h.nFree; i++ {
		free, err := h.readFreeSlot(i)
		if err != nil {
			return nil, err
		}
		out[i] = free
	}
	return out, nil
}

// pointerToFilePosition maps a logical Pointer to an absolute file offset:
// the header page occupies [0, page_size), so pointer p lives at
// p + page_size - 1 (pointers start at MIN=1, so MIN maps to page_size).
func (h *header) pointerToFilePosition(p Pointer) int64 {
	return int64(p) + int64(h.pageSize) - 1
}

func (h *header) filePositionToPointer(pos int64) Pointer {
	return Pointer(pos - int64(h.pageSize) + 1)
}
