// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package llsdb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := Init(NewMemBackend(), InitOptions{PageSize: 256})
	require.NoError(t, err)
	return db
}

func TestInitThenLoadRoundTrips(t *testing.T) {
	backend := NewMemBackend()
	db, err := Init(backend, InitOptions{PageSize: 256})
	require.NoError(t, err)

	require.NoError(t, db.Execute(func(tx *Tx) error {
		list, err := tx.TakeList("greeting")
		if err != nil {
			return err
		}
		_, err = list.API(tx.IO()).Push(String("hello"))
		return err
	}))

	reloaded, err := Load(backend, false)
	require.NoError(t, err)
	require.Contains(t, reloaded.ListNames(), "greeting")

	require.NoError(t, reloaded.Execute(func(tx *Tx) error {
		list, err := tx.TakeList("greeting")
		if err != nil {
			return err
		}
		var s String
		ok, err := list.API(tx.IO()).Head(&s)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, String("hello"), s)
		return nil
	}))
}

func TestTakeListRejectsDoubleCheckout(t *testing.T) {
	db := newTestDatabase(t)
	require.NoError(t, db.Execute(func(tx *Tx) error {
		_, err := tx.TakeList("a")
		require.NoError(t, err)
		_, err = tx.TakeList("a")
		require.Error(t, err)
		return nil
	}))
}

func TestFailedTransactionRollsBackEverything(t *testing.T) {
	backend := NewMemBackend()
	db, err := Init(backend, InitOptions{PageSize: 256})
	require.NoError(t, err)

	lengthBefore, err := backend.Seek(0, 2)
	require.NoError(t, err)

	sentinel := errUser("test", "boom")
	err = db.Execute(func(tx *Tx) error {
		list, err := tx.TakeList("doomed")
		if err != nil {
			return err
		}
		if _, err := list.API(tx.IO()).Push(Uint64(42)); err != nil {
			return err
		}
		return sentinel
	})
	require.Error(t, err)
	require.Empty(t, db.ListNames())

	lengthAfter, err := backend.Seek(0, 2)
	require.NoError(t, err)
	require.Equal(t, lengthBefore, lengthAfter)

	// The slot must be available again in a later transaction.
	require.NoError(t, db.Execute(func(tx *Tx) error {
		_, err := tx.TakeList("doomed")
		return err
	}))
}

func TestCellThroughDatabase(t *testing.T) {
	db := newTestDatabase(t)
	var cell *Cell

	require.NoError(t, db.Execute(func(tx *Tx) error {
		list, err := tx.TakeList("counter")
		if err != nil {
			return err
		}
		cell, err = NewCellWithInitialValue(tx.IO(), list.Slot(), Uint64(0))
		if err != nil {
			return err
		}
		return tx.RegisterIndex("counter", cell)
	}))

	for i := uint64(1); i <= 3; i++ {
		require.NoError(t, db.Execute(func(tx *Tx) error {
			stored, ok := TakeIndex[*Cell](db, "counter")
			require.True(t, ok)
			api := stored.API(tx.IO())
			var v Uint64
			if err := api.Get(&v); err != nil {
				return err
			}
			return api.Replace(Uint64(uint64(v) + 1))
		}))
	}

	require.NoError(t, db.Execute(func(tx *Tx) error {
		stored, ok := TakeIndex[*Cell](db, "counter")
		require.True(t, ok)
		var v Uint64
		require.NoError(t, stored.API(tx.IO()).Get(&v))
		require.Equal(t, Uint64(3), v)
		return nil
	}))
}

func TestSequenceThroughDatabase(t *testing.T) {
	db := newTestDatabase(t)
	require.NoError(t, db.Execute(func(tx *Tx) error {
		list, err := tx.TakeList("events")
		if err != nil {
			return err
		}
		seq, err := NewSequence(tx.IO(), list.Slot())
		if err != nil {
			return err
		}
		return tx.RegisterIndex("events", seq)
	}))

	require.NoError(t, db.Execute(func(tx *Tx) error {
		stored, ok := TakeIndex[*Sequence](db, "events")
		require.True(t, ok)
		api := stored.API(tx.IO())
		for i := uint64(0); i < 5; i++ {
			if _, err := api.Push(Uint64(i)); err != nil {
				return err
			}
		}
		require.Equal(t, 5, api.Len())
		return nil
	}))

	require.NoError(t, db.Execute(func(tx *Tx) error {
		stored, ok := TakeIndex[*Sequence](db, "events")
		require.True(t, ok)
		api := stored.API(tx.IO())
		var v Uint64
		ok, err := api.Pop(&v)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, Uint64(4), v)
		require.Equal(t, 4, api.Len())
		return nil
	}))
}

func TestRemovableSequenceRetainReverseOrder(t *testing.T) {
	db := newTestDatabase(t)
	require.NoError(t, db.Execute(func(tx *Tx) error {
		list, err := tx.TakeList("jobs")
		if err != nil {
			return err
		}
		rs, err := NewRemovableSequence(tx.IO(), list.Slot())
		if err != nil {
			return err
		}
		return tx.RegisterIndex("jobs", rs)
	}))

	require.NoError(t, db.Execute(func(tx *Tx) error {
		stored, ok := TakeIndex[*RemovableSequence](db, "jobs")
		require.True(t, ok)
		api := stored.API(tx.IO())
		for i := uint64(0); i < 6; i++ {
			if _, err := api.Push(Uint64(i)); err != nil {
				return err
			}
		}
		// Keep only even values.
		return api.Retain(func() Decoder { return new(Uint64) }, func(d Decoder) bool {
			return uint64(*d.(*Uint64))%2 == 0
		})
	}))

	require.NoError(t, db.Execute(func(tx *Tx) error {
		stored, ok := TakeIndex[*RemovableSequence](db, "jobs")
		require.True(t, ok)
		api := stored.API(tx.IO())
		require.Equal(t, 3, api.Len())
		var got []uint64
		require.NoError(t, api.Iter(func() Decoder { return new(Uint64) }, func(_ int, d Decoder) bool {
			got = append(got, uint64(*d.(*Uint64)))
			return true
		}))
		require.Equal(t, []uint64{0, 2, 4}, got)
		return nil
	}))
}

func TestOrderedMapIdempotentInsert(t *testing.T) {
	db := newTestDatabase(t)
	codec := OrderedMapKeyCodec[string]{
		Encode: func(k string) Encoder { return String(k) },
		Decode: func(raw []byte) (string, error) { return string(raw), nil },
		Less:   func(a, b string) bool { return a < b },
	}

	require.NoError(t, db.Execute(func(tx *Tx) error {
		list, err := tx.TakeList("kv")
		if err != nil {
			return err
		}
		m, err := NewOrderedMap(tx.IO(), list.Slot(), codec)
		if err != nil {
			return err
		}
		return tx.RegisterIndex("kv", m)
	}))

	require.NoError(t, db.Execute(func(tx *Tx) error {
		stored, ok := TakeIndex[*OrderedMap[string]](db, "kv")
		require.True(t, ok)
		api := stored.API(tx.IO())
		_, existed, err := api.Insert("a", Uint64(1))
		require.NoError(t, err)
		require.False(t, existed)
		_, existed, err = api.Insert("b", Uint64(2))
		require.NoError(t, err)
		require.False(t, existed)
		return nil
	}))

	require.NoError(t, db.Execute(func(tx *Tx) error {
		stored, ok := TakeIndex[*OrderedMap[string]](db, "kv")
		require.True(t, ok)
		api := stored.API(tx.IO())

		// Re-inserting the same value reports the key as existing and
		// leaves the key count unchanged.
		_, existed, err := api.Insert("a", Uint64(1))
		require.NoError(t, err)
		require.True(t, existed)
		require.Equal(t, 2, api.Len())

		raw, found, err := api.Get("b")
		require.NoError(t, err)
		require.True(t, found)
		var v Uint64
		require.NoError(t, v.DecodeValue(raw))
		require.Equal(t, Uint64(2), v)

		var keys []string
		require.NoError(t, api.Ascend(func(k string, _ []byte) bool {
			keys = append(keys, k)
			return true
		}))
		require.Equal(t, []string{"a", "b"}, keys)
		return nil
	}))
}
