// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package llsdb

import "fmt"

// Kind classifies the failure modes a Database operation can report.
type Kind int

const (
	// KindIO covers failures reading from or writing to the Backend.
	KindIO Kind = iota
	// KindCorruption covers on-disk data that fails a structural check:
	// bad magic bytes, a Free record with size > end_pointer, a pointer
	// that lands outside the file, and the like.
	KindCorruption
	// KindSchema covers a page size or header layout that doesn't match
	// what the Database expects (wrong version, mismatched slot counts).
	KindSchema
	// KindCapacity covers a request that would exceed InitOptions.MaxSize
	// or a free-space request for more bytes than the file can grow to.
	KindCapacity
	// KindUser covers caller misuse: wrong type passed to an index,
	// unknown list slot, calling Backend() from inside a transaction.
	KindUser
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindCorruption:
		return "corruption"
	case KindSchema:
		return "schema"
	case KindCapacity:
		return "capacity"
	case KindUser:
		return "user"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned by exported llsdb operations.
// Op names the failing method, e.g. "Database.Execute" or "FreeSpace.insert".
type Error struct {
	Kind Kind
	Op   string
	Arg  interface{}
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Arg != nil {
			return fmt.Sprintf("llsdb: %s: %s (%v): %s", e.Kind, e.Op, e.Arg, e.Err)
		}
		return fmt.Sprintf("llsdb: %s: %s: %s", e.Kind, e.Op, e.Err)
	}
	if e.Arg != nil {
		return fmt.Sprintf("llsdb: %s: %s (%v)", e.Kind, e.Op, e.Arg)
	}
	return fmt.Sprintf("llsdb: %s: %s", e.Kind, e.Op)
}

func (e *Error) Unwrap() error { return e.Err }

func errIO(op string, err error) error {
	return &Error{Kind: KindIO, Op: op, Err: err}
}

func errCorruption(op string, arg interface{}) error {
	return &Error{Kind: KindCorruption, Op: op, Arg: arg}
}

// errCorruptionErr wraps a cause so errors.Is/As can see through it, unlike
// errCorruption which only records arg for display.
func errCorruptionErr(op string, err error) error {
	return &Error{Kind: KindCorruption, Op: op, Err: err}
}

func errSchema(op string, arg interface{}) error {
	return &Error{Kind: KindSchema, Op: op, Arg: arg}
}

// errSchemaErr wraps a cause so errors.Is/As can see through it, unlike
// errSchema which only records arg for display.
func errSchemaErr(op string, err error) error {
	return &Error{Kind: KindSchema, Op: op, Err: err}
}

func errCapacity(op string, arg interface{}) error {
	return &Error{Kind: KindCapacity, Op: op, Arg: arg}
}

// errCapacityErr wraps a cause so errors.Is/As can see through it, unlike
// errCapacity which only records arg for display.
func errCapacityErr(op string, err error) error {
	return &Error{Kind: KindCapacity, Op: op, Err: err}
}

func errUser(op string, arg interface{}) error {
	return &Error{Kind: KindUser, Op: op, Arg: arg}
}

// errUserErr wraps a cause so errors.Is/As can see through it, unlike errUser
// which only records arg for display.
func errUserErr(op string, err error) error {
	return &Error{Kind: KindUser, Op: op, Err: err}
}
