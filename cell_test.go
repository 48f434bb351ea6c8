// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package llsdb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewCellRejectsEmptyList(t *testing.T) {
	tio := newTestTxIo(t)
	_, err := NewCell(tio, 0)
	require.Error(t, err)
}

func TestCellGetReplace(t *testing.T) {
	tio := newTestTxIo(t)
	cell, err := NewCellWithInitialValue(tio, 0, Uint64(1))
	require.NoError(t, err)

	api := cell.API(tio)
	var v Uint64
	require.NoError(t, api.Get(&v))
	require.Equal(t, Uint64(1), v)

	require.NoError(t, api.Replace(Uint64(2)))
	require.NoError(t, api.Get(&v))
	require.Equal(t, Uint64(2), v)
}

func TestCellOptionLifecycle(t *testing.T) {
	tio := newTestTxIo(t)
	opt := NewCellOption(0)
	api := opt.API(tio)

	require.True(t, api.IsNone())
	require.NoError(t, api.Replace(Uint64(5)))
	require.True(t, api.IsSome())

	var v Uint64
	ok, err := api.Get(&v)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Uint64(5), v)

	ok, err = api.Take(&v)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Uint64(5), v)
	require.True(t, api.IsNone())

	ok, err = api.Take(&v)
	require.NoError(t, err)
	require.False(t, ok)
}
