// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// An abstraction of file like (persistent) storage backing a Database.

package llsdb

import "io"

// Backend is a byte-addressable store a Database is built on top of: a
// file, an in-memory buffer, anything that can be read, written, seeked and
// made durable. Positions are absolute file offsets, consistent with
// os.File's own Seek/Read/Write semantics. A Backend is not safe for
// concurrent use; the Database serializes all access to it.
type Backend interface {
	io.Reader
	io.Writer
	io.Seeker

	// Truncate changes the size of the backend. It does not move the
	// current seek position.
	Truncate(size int64) error

	// Sync commits the backend's in-memory state to stable storage. A
	// Backend with no stable storage of its own (MemBackend) may
	// implement this as a no-op.
	Sync() error
}

var _ Backend = (*MemBackend)(nil)

func readFull(b Backend, buf []byte) error {
	_, err := io.ReadFull(b, buf)
	return err
}

func seekRead(b Backend, off int64, buf []byte) error {
	if _, err := b.Seek(off, io.SeekStart); err != nil {
		return err
	}
	return readFull(b, buf)
}

func seekWrite(b Backend, off int64, buf []byte) error {
	if _, err := b.Seek(off, io.SeekStart); err != nil {
		return err
	}
	_, err := b.Write(buf)
	return err
}
