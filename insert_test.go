// Copyright (c) 2014 Utkan Güngördü <utkan@freeconsole.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cuckoo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestInsertForcesCuckooDisplacement starts a table pinned to a small
// hashpower and drives its load factor past the point where a
// meaningful share of inserts can only land via runCuckoo's BFS
// displacement rather than an immediately empty slot, exercising both
// that path and the automatic growth it falls back to. It doesn't
// assert which path any individual key took (that's an internal
// detail), only that every distinct key inserted is still found
// afterward and Size stays consistent with the reported outcomes.
func TestInsertForcesCuckooDisplacement(t *testing.T) {
	const hp = 3 // 8 buckets
	tbl := NewComparableWithHashpower[int, int](hp, Uint64Hasher2())
	s := tbl.SlotsPerBucket()

	capacity := (1 << hp) * s
	n := capacity * 3

	inserted := 0
	for i := 0; i < n; i++ {
		ok, err := tbl.Insert(i, i*10)
		require.NoErrorf(t, err, "insert %d", i)
		if ok {
			inserted++
		}
	}

	assert.EqualValues(t, inserted, tbl.Size())
	for i := 0; i < n; i++ {
		v, found := tbl.Find(i)
		require.Truef(t, found, "key %d missing after insert", i)
		assert.Equal(t, i*10, v)
	}
}

func TestUpsertMutatesExistingWithoutDuplicating(t *testing.T) {
	tbl := newIntTable(16)

	keys := []int{1, 2, 3, 17, 33, 100}
	for _, k := range keys {
		inserted, err := tbl.Upsert(k, "v0", func(cur string) string { return cur + "+" })
		require.NoError(t, err)
		assert.True(t, inserted)
	}

	for _, k := range keys {
		inserted, err := tbl.Upsert(k, "v0", func(cur string) string { return cur + "+" })
		require.NoError(t, err)
		assert.False(t, inserted)
	}

	assert.EqualValues(t, len(keys), tbl.Size())
	for _, k := range keys {
		v, found := tbl.Find(k)
		require.True(t, found)
		assert.Equal(t, "v0+", v)
	}
}

func TestUpsertPanicsOnNilMutator(t *testing.T) {
	tbl := newIntTable(16)
	assert.Panics(t, func() {
		_, _ = tbl.Upsert(1, "x", nil)
	})
}

func TestInsertGrowsPastDefaultMaxDepthWithoutError(t *testing.T) {
	tbl := newIntTable(1)
	const n = 5000
	for i := 0; i < n; i++ {
		ok, err := tbl.Insert(i, i)
		require.NoErrorf(t, err, "insert %d", i)
		require.Truef(t, ok, "insert %d", i)
	}
	assert.EqualValues(t, n, tbl.Size())
	for i := 0; i < n; i++ {
		v, found := tbl.Find(i)
		require.True(t, found)
		assert.Equal(t, i, v)
	}
}
