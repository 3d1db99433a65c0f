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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConcurrentDisjointInsertsAllSurvive partitions the key space
// across goroutines so no two ever contend for the same key, and
// checks every key is present afterward with its correct value -
// exercising striped locking and automatic growth under concurrent
// writers without needing to reason about interleaved outcomes.
func TestConcurrentDisjointInsertsAllSurvive(t *testing.T) {
	tbl := newIntTable(0)
	const workers = 8
	const perWorker = 2000

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				k := base*perWorker + i
				ok, err := tbl.Insert(k, k*2)
				assert.NoErrorf(t, err, "insert %d", k)
				assert.Truef(t, ok, "insert %d", k)
			}
		}(w)
	}
	wg.Wait()

	assert.EqualValues(t, workers*perWorker, tbl.Size())
	for w := 0; w < workers; w++ {
		for i := 0; i < perWorker; i++ {
			k := w*perWorker + i
			v, found := tbl.Find(k)
			require.Truef(t, found, "key %d missing", k)
			assert.Equal(t, k*2, v)
		}
	}
}

// TestConcurrentInsertEraseOnSharedKeysNeverDuplicates hammers the
// same small set of keys from many goroutines racing Insert and
// Erase. Insert's exactly-once semantics and Erase's idempotence mean
// the table must end up holding a subset of the shared keys with no
// torn or duplicated entries, regardless of interleaving.
func TestConcurrentInsertEraseOnSharedKeysNeverDuplicates(t *testing.T) {
	tbl := newIntTable(64)
	const keys = 32
	const workers = 16
	const rounds = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				k := (seed + r) % keys
				if r%2 == 0 {
					_, _ = tbl.Insert(k, "v")
				} else {
					tbl.Erase(k)
				}
			}
		}(w)
	}
	wg.Wait()

	size := tbl.Size()
	assert.GreaterOrEqual(t, size, int64(0))
	assert.LessOrEqual(t, size, int64(keys))
	for i := 0; i < keys; i++ {
		if v, found := tbl.Find(i); found {
			assert.Equal(t, "v", v)
		}
	}
}

// TestConcurrentResizeWithReaders grows the table from underneath
// concurrent readers repeatedly calling Find, verifying the
// hashpower-changed retry discipline in snapshotAndLockTwo never
// yields a stale read or a panic.
func TestConcurrentResizeWithReaders(t *testing.T) {
	tbl := NewComparableWithHashpower[int, int](2, Uint64Hasher2())
	const n = 500
	for i := 0; i < n; i++ {
		_, err := tbl.Insert(i, i)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				for i := 0; i < n; i++ {
					v, found := tbl.Find(i)
					if found {
						assert.Equal(t, i, v)
					}
				}
			}
		}()
	}

	for i := 0; i < 6; i++ {
		require.NoError(t, tbl.fastDouble())
	}
	close(stop)
	wg.Wait()

	for i := 0; i < n; i++ {
		v, found := tbl.Find(i)
		require.True(t, found)
		assert.Equal(t, i, v)
	}
}

// TestConcurrentUpsertMutatorAppliesExactlyOncePerCall verifies that
// concurrent Upsert calls racing on the same key each either insert or
// invoke the mutator, summing to a predictable total with no lost
// updates - mutation happens under the key's stripe lock, so this is
// a true compare-and-increment, not a read-modify-write race.
func TestConcurrentUpsertMutatorAppliesExactlyOncePerCall(t *testing.T) {
	tbl := NewComparable[int, int](16, Uint64Hasher2())
	const workers = 32

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tbl.Upsert(1, 1, func(cur int) int { return cur + 1 })
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	v, found := tbl.Find(1)
	require.True(t, found)
	assert.Equal(t, workers, v)
}
