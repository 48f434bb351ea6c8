// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package llsdb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestTxIo builds a bare TxIo over a MemBackend with a single 1 MiB
// free region starting at MIN, for tests that only
// need push/pop/iter and don't go through Database.Execute.
func newTestTxIo(t *testing.T) *TxIo {
	t.Helper()
	h, err := newHeader(256)
	require.NoError(t, err)
	io_ := newIo(NewMemBackend(), h)
	fs := NewFreeSpace(h.nFree)
	fs.Free(freeFromStart(MIN, 1<<20))
	fs.ApplyPendingFrees()
	fs.TxSuccess()
	return newTxIo(io_, fs, false)
}

func TestLinkedListPushHeadPop(t *testing.T) {
	tio := newTestTxIo(t)
	list := NewLinkedList(0)
	api := list.API(tio)

	require.True(t, api.IsEmpty())
	_, err := api.Push(Uint64(1))
	require.NoError(t, err)
	_, err = api.Push(Uint64(2))
	require.NoError(t, err)
	require.False(t, api.IsEmpty())

	var v Uint64
	ok, err := api.Head(&v)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Uint64(2), v)

	ok, err = api.Pop(&v)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Uint64(2), v)

	ok, err = api.Pop(&v)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Uint64(1), v)

	ok, err = api.Pop(&v)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLinkedListEntryIterOrderIsLastPushedFirst(t *testing.T) {
	tio := newTestTxIo(t)
	list := NewLinkedList(0)
	api := list.API(tio)
	for i := uint64(0); i < 3; i++ {
		_, err := api.Push(Uint64(i))
		require.NoError(t, err)
	}

	it := api.EntryIter()
	var got []uint64
	for {
		var v Uint64
		_, ok, err := it.Next(&v)
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, uint64(v))
	}
	require.Equal(t, []uint64{2, 1, 0}, got)
}

func TestLinkedListClear(t *testing.T) {
	tio := newTestTxIo(t)
	list := NewLinkedList(0)
	api := list.API(tio)
	for i := 0; i < 5; i++ {
		_, err := api.Push(Uint64(i))
		require.NoError(t, err)
	}
	require.NoError(t, api.Clear())
	require.True(t, api.IsEmpty())
}

func TestLinkedListMutUnlinkMidListDoesNotDisturbOtherEntries(t *testing.T) {
	tio := newTestTxIo(t)
	list := NewLinkedListMut(0)
	api := list.API(tio)

	var handles []EntryHandle
	for i := uint64(0); i < 5; i++ {
		h, err := api.Push(Uint64(i))
		require.NoError(t, err)
		handles = append(handles, h)
	}
	// handles[2] holds value 2, in the middle of the list (push order
	// 0,1,2,3,4; head is the most recently pushed, so value 2 isn't head
	// or tail).
	require.NoError(t, api.Unlink(handles[2]))

	it := api.Iter()
	var got []uint64
	for {
		var v Uint64
		_, ok, err := it.Next(&v)
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, uint64(v))
	}
	require.Equal(t, []uint64{4, 3, 1, 0}, got)
}

func TestLinkedListMutReadAtAndUnlinkAt(t *testing.T) {
	tio := newTestTxIo(t)
	list := NewLinkedListMut(0)
	api := list.API(tio)

	h, err := api.Push(String("first"))
	require.NoError(t, err)
	_, err = api.Push(String("second"))
	require.NoError(t, err)

	var s String
	require.NoError(t, api.ReadAt(h.EntryPointer, &s))
	require.Equal(t, String("first"), s)

	require.NoError(t, api.UnlinkAt(h.EntryPointer))
	it := api.Iter()
	var got []string
	for {
		var v String
		_, ok, err := it.Next(&v)
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, string(v))
	}
	require.Equal(t, []string{"second"}, got)
}

func TestLinkedListMutPopIsEquivalentToUnlinkHead(t *testing.T) {
	tio := newTestTxIo(t)
	list := NewLinkedListMut(0)
	api := list.API(tio)
	_, err := api.Push(Uint64(10))
	require.NoError(t, err)
	_, err = api.Push(Uint64(20))
	require.NoError(t, err)

	var v Uint64
	_, ok, err := api.Pop(&v)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Uint64(20), v)

	_, ok, err = api.Pop(&v)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Uint64(10), v)

	_, ok, err = api.Pop(&v)
	require.NoError(t, err)
	require.False(t, ok)
}
