// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// A memory-only implementation of Backend.

package llsdb

import (
	"bytes"
	"io"
)

const (
	pgBits = 12
	pgSize = 1 << pgBits
	pgMask = pgSize - 1
)

type memPage = [pgSize]byte

var zeroPage memPage

// MemBackend is a memory backed Backend, organized as a sparse map of
// fixed-size pages so that large runs of zero bytes cost nothing. It is not
// persistent across process restarts on its own; use ReadFrom/WriteTo to
// snapshot it to/from an io.Reader/io.Writer.
type MemBackend struct {
	m    map[int64]*memPage
	size int64
	pos  int64
}

// NewMemBackend returns a new, empty MemBackend.
func NewMemBackend() *MemBackend {
	return &MemBackend{m: map[int64]*memPage{}}
}

// Read implements io.Reader, advancing the current position.
func (f *MemBackend) Read(b []byte) (n int, err error) {
	n, err = f.readAt(b, f.pos)
	f.pos += int64(n)
	return
}

func (f *MemBackend) readAt(b []byte, off int64) (n int, err error) {
	avail := f.size - off
	if avail <= 0 {
		return 0, io.EOF
	}
	pgI := off >> pgBits
	pgO := int(off & pgMask)
	rem := len(b)
	if int64(rem) >= avail {
		rem = int(avail)
		err = io.EOF
	}
	for rem != 0 && avail > 0 {
		pg := f.m[pgI]
		if pg == nil {
			pg = &zeroPage
		}
		nc := copy(b[:min(rem, pgSize)], pg[pgO:])
		pgI++
		pgO = 0
		rem -= nc
		n += nc
		b = b[nc:]
	}
	return
}

// Write implements io.Writer, advancing the current position and growing
// the backend if the write extends past the current size.
func (f *MemBackend) Write(b []byte) (n int, err error) {
	n = f.writeAt(b, f.pos)
	f.pos += int64(n)
	return n, nil
}

func (f *MemBackend) writeAt(b []byte, off int64) (n int) {
	pgI := off >> pgBits
	pgO := int(off & pgMask)
	n = len(b)
	rem := n
	var nc int
	for rem != 0 {
		if pgO == 0 && rem >= pgSize && bytes.Equal(b[:pgSize], zeroPage[:]) {
			delete(f.m, pgI)
			nc = pgSize
		} else {
			pg := f.m[pgI]
			if pg == nil {
				pg = new(memPage)
				f.m[pgI] = pg
			}
			nc = copy((*pg)[pgO:], b)
		}
		pgI++
		pgO = 0
		rem -= nc
		b = b[nc:]
	}
	if off+int64(n) > f.size {
		f.size = off + int64(n)
	}
	return
}

// Seek implements io.Seeker.
func (f *MemBackend) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = f.pos + offset
	case io.SeekEnd:
		abs = f.size + offset
	default:
		return 0, errUser("MemBackend.Seek", whence)
	}
	if abs < 0 {
		return 0, errUser("MemBackend.Seek", abs)
	}
	f.pos = abs
	return abs, nil
}

// Truncate implements Backend.
func (f *MemBackend) Truncate(size int64) error {
	if size < 0 {
		return errUser("MemBackend.Truncate", size)
	}
	if size == 0 {
		f.m = map[int64]*memPage{}
	} else {
		first := size >> pgBits
		if size&pgMask != 0 {
			first++
		}
		last := f.size >> pgBits
		if f.size&pgMask != 0 {
			last++
		}
		for ; first < last; first++ {
			delete(f.m, first)
		}
	}
	f.size = size
	return nil
}

// Sync implements Backend as a no-op: a MemBackend has no stable storage of
// its own.
func (f *MemBackend) Sync() error { return nil }

// Size reports the current logical length of the backend.
func (f *MemBackend) Size() int64 { return f.size }

// ReadFrom populates the backend's content from r, discarding any existing
// content first.
func (f *MemBackend) ReadFrom(r io.Reader) (n int64, err error) {
	if err = f.Truncate(0); err != nil {
		return
	}
	var b [pgSize]byte
	var off int64
	for {
		rn, rerr := r.Read(b[:])
		if rn != 0 {
			f.writeAt(b[:rn], off)
			off += int64(rn)
			n += int64(rn)
		}
		if rerr != nil {
			if rerr != io.EOF {
				err = rerr
			}
			return
		}
	}
}

// WriteTo copies the backend's content to w.
func (f *MemBackend) WriteTo(w io.Writer) (n int64, err error) {
	lastPgI := f.size >> pgBits
	var off int64
	for pgI := int64(0); pgI <= lastPgI; pgI++ {
		sz := pgSize
		if pgI == lastPgI {
			sz = int(f.size & pgMask)
		}
		if sz == 0 {
			continue
		}
		pg := f.m[pgI]
		if pg == nil {
			pg = &zeroPage
		}
		wn, werr := w.Write(pg[:sz])
		n += int64(wn)
		off += int64(sz)
		if werr != nil {
			return n, werr
		}
	}
	return
}
