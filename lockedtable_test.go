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

func TestLockedTableIteratorVisitsEveryEntry(t *testing.T) {
	tbl := newIntTable(16)
	want := map[int]string{1: "a", 2: "b", 3: "c", 100: "d"}
	for k, v := range want {
		_, _ = tbl.Insert(k, v)
	}

	lt := tbl.LockTable()
	defer lt.Unlock()

	got := make(map[int]string)
	it := lt.Iterator()
	for it.Next() {
		got[it.Key()] = it.Value()
	}
	assert.Equal(t, want, got)
	assert.EqualValues(t, len(want), lt.Size())
}

func TestLockedTableIteratorSetValue(t *testing.T) {
	tbl := newIntTable(16)
	_, _ = tbl.Insert(1, "a")

	lt := tbl.LockTable()
	it := lt.Iterator()
	require.True(t, it.Next())
	it.SetValue("z")
	lt.Unlock()

	v, _ := tbl.Find(1)
	assert.Equal(t, "z", v)
}

func TestLockedTableBulkInsertAndErase(t *testing.T) {
	tbl := newIntTable(1024)

	lt := tbl.LockTable()
	require.NoError(t, lt.BulkInsert(map[int]string{1: "a", 2: "b", 3: "c"}))
	lt.Unlock()

	assert.True(t, tbl.Contains(1))
	assert.True(t, tbl.Contains(2))
	assert.True(t, tbl.Contains(3))

	lt = tbl.LockTable()
	n := lt.BulkErase([]int{1, 3, 999})
	lt.Unlock()

	assert.Equal(t, 2, n)
	assert.False(t, tbl.Contains(1))
	assert.True(t, tbl.Contains(2))
	assert.False(t, tbl.Contains(3))
}

func TestLockedTableBulkInsertOverwritesExisting(t *testing.T) {
	tbl := newIntTable(16)
	_, _ = tbl.Insert(1, "a")

	lt := tbl.LockTable()
	require.NoError(t, lt.BulkInsert(map[int]string{1: "overwritten"}))
	lt.Unlock()

	v, _ := tbl.Find(1)
	assert.Equal(t, "overwritten", v)
	assert.EqualValues(t, 1, tbl.Size())
}

func TestLockedTableBulkInsertReportsFullWithoutDisplacement(t *testing.T) {
	const hp = 1
	tbl := NewComparableWithHashpower[int, string](hp, Uint64Hasher2())
	s := tbl.SlotsPerBucket()

	pairs := make(map[int]string, 2*s+1)
	for i := 0; i < 2*s+1; i++ {
		pairs[i] = "x"
	}

	lt := tbl.LockTable()
	err := lt.BulkInsert(pairs)
	lt.Unlock()

	// However many pairs landed directly (no BFS displacement is
	// attempted by BulkInsert), at least one must have overflowed both
	// of its candidate buckets at this hashpower.
	assert.ErrorIs(t, err, errTableFull)
}

func TestLockedTableClear(t *testing.T) {
	tbl := newIntTable(16)
	for i := 0; i < 10; i++ {
		_, _ = tbl.Insert(i, "v")
	}

	lt := tbl.LockTable()
	lt.Clear()
	lt.Unlock()

	assert.True(t, tbl.Empty())
}

func TestLockedTableReserve(t *testing.T) {
	tbl := NewComparableWithHashpower[int, string](2, Uint64Hasher2())
	for i := 0; i < 100; i++ {
		_, _ = tbl.Insert(i, "v")
	}

	lt := tbl.LockTable()
	require.NoError(t, lt.Reserve(500))
	lt.Unlock()

	assert.GreaterOrEqual(t, tbl.Capacity(), uint64(500))
	for i := 0; i < 100; i++ {
		assert.True(t, tbl.Contains(i))
	}
}

func TestLockedTableEqual(t *testing.T) {
	a := newIntTable(16)
	b := newIntTable(16)
	for _, k := range []int{1, 2, 3} {
		_, _ = a.Insert(k, "v")
		_, _ = b.Insert(k, "v")
	}

	la := a.LockTable()
	lb := b.LockTable()
	assert.True(t, la.Equal(lb))
	la.Unlock()
	lb.Unlock()

	_, _ = b.Insert(4, "v")

	la = a.LockTable()
	lb = b.LockTable()
	defer la.Unlock()
	defer lb.Unlock()
	assert.False(t, la.Equal(lb))
}
