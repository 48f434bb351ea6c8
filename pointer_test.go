// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package llsdb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPointerEncodedLenMatchesPutPointer(t *testing.T) {
	cases := []Pointer{0, 1, 250, 251, 1 << 16 - 1, 1 << 16, 1<<32 - 1, 1 << 32, ^Pointer(0)}
	for _, p := range cases {
		buf := make([]byte, 9)
		n := putPointer(buf, p)
		require.Equal(t, p.EncodedLen(), n, "pointer %d", p)
	}
}

func TestPointerRoundTrip(t *testing.T) {
	cases := []Pointer{0, 1, 100, 250, 251, 300, 1 << 16 - 1, 1 << 16, 70000, 1<<32 - 1, 1 << 32, ^Pointer(0)}
	for _, p := range cases {
		var tmp [9]byte
		n := putPointer(tmp[:], p)
		got, consumed, ok := getPointer(tmp[:n])
		require.True(t, ok, "pointer %d", p)
		require.Equal(t, p, got)
		require.Equal(t, n, consumed)
	}
}

func TestGetPointerRejectsTruncatedBuffers(t *testing.T) {
	var tmp [9]byte
	n := putPointer(tmp[:], Pointer(1<<32))
	_, _, ok := getPointer(tmp[:n-1])
	require.False(t, ok)

	_, _, ok = getPointer(nil)
	require.False(t, ok)
}

func TestEntryHandleDerivedPointers(t *testing.T) {
	h := EntryHandle{
		EntryPointer: EntryPointer{ThisEntry: 100, NextEntryPossiblyStale: 5},
		ValueLen:     20,
	}
	require.Equal(t, Pointer(5).EncodedLen(), int(h.EntryLen()-h.ValueLen))
	require.Equal(t, h.ThisEntry+Pointer(Pointer(5).EncodedLen()), h.ValuePointer())
	require.Equal(t, h.ThisEntry+Pointer(h.EntryLen()), h.PointerToEnd())
}
