// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// A basic os.File backed Backend.

package llsdb

import "os"

var _ Backend = (*FileBackend)(nil)

// FileBackend is an os.File backed Backend. It does not by itself implement
// any structural-integrity safety net beyond what Database.Execute provides
// (truncate-on-failure); callers that need durability across process crashes
// must call Sync at points that matter to them.
type FileBackend struct {
	file *os.File
}

// NewFileBackend returns a new FileBackend wrapping f.
func NewFileBackend(f *os.File) *FileBackend {
	return &FileBackend{file: f}
}

// OpenFileBackend opens (creating if necessary) name for use as a Database
// backend.
func OpenFileBackend(name string) (*FileBackend, error) {
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, errIO("OpenFileBackend", err)
	}
	return NewFileBackend(f), nil
}

// Read implements io.Reader.
func (f *FileBackend) Read(b []byte) (int, error) { return f.file.Read(b) }

// Write implements io.Writer.
func (f *FileBackend) Write(b []byte) (int, error) { return f.file.Write(b) }

// Seek implements io.Seeker.
func (f *FileBackend) Seek(offset int64, whence int) (int64, error) {
	return f.file.Seek(offset, whence)
}

// Truncate implements Backend.
func (f *FileBackend) Truncate(size int64) error {
	if size < 0 {
		return errUser("FileBackend.Truncate", size)
	}
	return f.file.Truncate(size)
}

// Sync implements Backend.
func (f *FileBackend) Sync() error { return f.file.Sync() }

// Name returns the underlying file's name.
func (f *FileBackend) Name() string { return f.file.Name() }

// Close closes the underlying file. The Database does not call this
// automatically; callers own the FileBackend's lifetime.
func (f *FileBackend) Close() error { return f.file.Close() }
