// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package llsdb

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestScenarioRoundTripTwoLists: init, push one value to each of two lists,
// reload, and check both heads survive.
func TestScenarioRoundTripTwoLists(t *testing.T) {
	backend := NewMemBackend()
	db, err := Init(backend, InitOptions{PageSize: 128})
	require.NoError(t, err)

	require.NoError(t, db.Execute(func(tx *Tx) error {
		l1, err := tx.TakeList("ll1")
		if err != nil {
			return err
		}
		if _, err := l1.API(tx.IO()).Push(Uint64(50)); err != nil {
			return err
		}
		l2, err := tx.TakeList("ll2")
		if err != nil {
			return err
		}
		_, err = l2.API(tx.IO()).Push(Uint64(60))
		return err
	}))

	reloaded, err := Load(backend, false)
	require.NoError(t, err)
	require.NoError(t, reloaded.Execute(func(tx *Tx) error {
		l1, err := tx.TakeList("ll1")
		if err != nil {
			return err
		}
		var v1 Uint64
		ok, err := l1.API(tx.IO()).Head(&v1)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, Uint64(50), v1)

		l2, err := tx.TakeList("ll2")
		if err != nil {
			return err
		}
		var v2 Uint64
		ok, err = l2.API(tx.IO()).Head(&v2)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, Uint64(60), v2)
		return nil
	}))
}

// TestScenarioPopReclaimsSpace: popping the most recently pushed entry
// frees its bytes at the end of the file, so the commit truncates the file
// to a shorter length.
func TestScenarioPopReclaimsSpace(t *testing.T) {
	backend := NewMemBackend()
	db, err := Init(backend, InitOptions{PageSize: 128})
	require.NoError(t, err)

	var lengthAfterFour, lengthAfterPop int64
	require.NoError(t, db.Execute(func(tx *Tx) error {
		list, err := tx.TakeList("ll")
		if err != nil {
			return err
		}
		api := list.API(tx.IO())
		for _, v := range []uint64{1, 2, 3, 4} {
			if _, err := api.Push(Uint64(v)); err != nil {
				return err
			}
		}
		return nil
	}))
	lengthAfterFour, err = backend.Seek(0, 2)
	require.NoError(t, err)

	require.NoError(t, db.Execute(func(tx *Tx) error {
		list, err := tx.TakeList("ll")
		if err != nil {
			return err
		}
		_, err = list.API(tx.IO()).Pop(nil)
		return err
	}))
	lengthAfterPop, err = backend.Seek(0, 2)
	require.NoError(t, err)

	require.Less(t, lengthAfterPop, lengthAfterFour)
}

// TestScenarioMidListUnlinkThenPushReusesSlot: unlinking a mid-list entry frees its
// bytes; the next same-sized push must land at that reclaimed address.
func TestScenarioMidListUnlinkThenPushReusesSlot(t *testing.T) {
	backend := NewMemBackend()
	db, err := Init(backend, InitOptions{PageSize: 128})
	require.NoError(t, err)

	var reclaimedAddr Pointer
	require.NoError(t, db.Execute(func(tx *Tx) error {
		list, err := tx.TakeList("ll")
		if err != nil {
			return err
		}
		mut := NewLinkedListMut(list.Slot())
		api := mut.API(tx.IO())

		_, err = api.Push(Uint64(50))
		if err != nil {
			return err
		}
		h60, err := api.Push(Uint64(60))
		if err != nil {
			return err
		}
		_, err = api.Push(Uint64(70))
		if err != nil {
			return err
		}

		reclaimedAddr = h60.ThisEntry
		return api.Unlink(h60)
	}))
	require.NoError(t, err)

	require.NoError(t, db.Execute(func(tx *Tx) error {
		list, err := tx.TakeList("ll")
		if err != nil {
			return err
		}
		mut := NewLinkedListMut(list.Slot())
		newHandle, err := mut.API(tx.IO()).Push(Uint64(99))
		if err != nil {
			return err
		}
		require.Equal(t, reclaimedAddr, newHandle.ThisEntry)
		return nil
	}))
}

// TestScenarioMapRedundantInsertNoOp: re-inserting identical (key, value)
// pairs must not grow the file.
func TestScenarioMapRedundantInsertNoOp(t *testing.T) {
	backend := NewMemBackend()
	db, err := Init(backend, InitOptions{PageSize: 128})
	require.NoError(t, err)

	codec := OrderedMapKeyCodec[int]{
		Encode: func(k int) Encoder { return Uint64(uint64(k)) },
		Decode: func(raw []byte) (int, error) {
			var v Uint64
			if err := v.DecodeValue(raw); err != nil {
				return 0, err
			}
			return int(v), nil
		},
		Less: func(a, b int) bool { return a < b },
	}

	require.NoError(t, db.Execute(func(tx *Tx) error {
		list, err := tx.TakeList("m")
		if err != nil {
			return err
		}
		m, err := NewOrderedMap(tx.IO(), list.Slot(), codec)
		if err != nil {
			return err
		}
		return tx.RegisterIndex("m", m)
	}))

	require.NoError(t, db.Execute(func(tx *Tx) error {
		stored, ok := TakeIndex[*OrderedMap[int]](db, "m")
		require.True(t, ok)
		api := stored.API(tx.IO())
		for i := 0; i < 100; i++ {
			_, _, err := api.Insert(i, String(strconv.Itoa(i)))
			if err != nil {
				return err
			}
		}
		return nil
	}))
	lengthAfterFirstInsert, err := backend.Seek(0, 2)
	require.NoError(t, err)

	require.NoError(t, db.Execute(func(tx *Tx) error {
		stored, ok := TakeIndex[*OrderedMap[int]](db, "m")
		require.True(t, ok)
		api := stored.API(tx.IO())
		for i := 0; i < 100; i++ {
			_, existed, err := api.Insert(i, String(strconv.Itoa(i)))
			if err != nil {
				return err
			}
			require.True(t, existed)
		}
		return nil
	}))
	lengthAfterRedundantInsert, err := backend.Seek(0, 2)
	require.NoError(t, err)

	require.Equal(t, lengthAfterFirstInsert, lengthAfterRedundantInsert)
}
