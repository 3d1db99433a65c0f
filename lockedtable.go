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

import "reflect"

// findNoLock looks up key assuming the caller already holds every
// stripe lock (or is otherwise certain no concurrent mutator can run),
// letting LockedTable operations avoid taking a lock they already
// hold — stripe locks are not reentrant.
func (t *Table[K, V]) findNoLock(key K) (V, bool) {
	hv := t.hasher.Hash(key)
	hp := t.Hashpower()
	i1, i2, tag := t.candidateBuckets(hv, hp)
	if idx := t.searchBucket(&t.buckets[i1], tag, key); idx >= 0 {
		return t.buckets[i1].slots[idx].value, true
	}
	if idx := t.searchBucket(&t.buckets[i2], tag, key); idx >= 0 {
		return t.buckets[i2].slots[idx].value, true
	}
	var zero V
	return zero, false
}

// LockedTable is an exclusive view over a Table, obtained with
// Table.LockTable. While held, no other goroutine can observe or
// mutate the table: every stripe is locked for the view's lifetime.
// Call Unlock when done; a LockedTable left unlocked stalls every
// other goroutine using the table.
type LockedTable[K, V any] struct {
	t        *Table[K, V]
	locked   []*spinlock
	released bool
}

// LockTable acquires every stripe and returns a view over t that can
// iterate, bulk-mutate, and resize without interference. Concurrent
// calls to t's regular methods block until Unlock.
func (t *Table[K, V]) LockTable() *LockedTable[K, V] {
	return &LockedTable[K, V]{t: t, locked: t.lockAll()}
}

// Unlock releases every stripe. Calling it more than once is safe.
func (lt *LockedTable[K, V]) Unlock() {
	if lt.released {
		return
	}
	lt.t.unlockAll(lt.locked)
	lt.released = true
}

// Size returns the number of entries visible through this view.
func (lt *LockedTable[K, V]) Size() int64 { return lt.t.Size() }

// Iterator returns a fresh iterator positioned before the first entry.
func (lt *LockedTable[K, V]) Iterator() *Iterator[K, V] {
	return &Iterator[K, V]{lt: lt, bucketIdx: 0, slotIdx: -1}
}

// Iterator walks every occupied slot of a LockedTable in bucket order.
// It is only valid while the LockedTable it was created from remains
// locked.
type Iterator[K, V any] struct {
	lt        *LockedTable[K, V]
	bucketIdx uint64
	slotIdx   int
}

// Next advances to the next occupied slot, reporting whether one was
// found. Call it before the first Key/Value/SetValue.
func (it *Iterator[K, V]) Next() bool {
	t := it.lt.t
	for {
		it.slotIdx++
		if it.slotIdx >= t.slotsPerBucket {
			it.slotIdx = 0
			it.bucketIdx++
		}
		if it.bucketIdx >= uint64(len(t.buckets)) {
			return false
		}
		if t.buckets[it.bucketIdx].slots[it.slotIdx].occupied {
			return true
		}
	}
}

// Key returns the current entry's key.
func (it *Iterator[K, V]) Key() K {
	return it.lt.t.buckets[it.bucketIdx].slots[it.slotIdx].key
}

// Value returns the current entry's value.
func (it *Iterator[K, V]) Value() V {
	return it.lt.t.buckets[it.bucketIdx].slots[it.slotIdx].value
}

// SetValue overwrites the current entry's value in place.
func (it *Iterator[K, V]) SetValue(v V) {
	it.lt.t.buckets[it.bucketIdx].slots[it.slotIdx].value = v
}

// BulkInsert inserts or overwrites every pair, without running the BFS
// displacement search: since a LockedTable already holds every
// stripe, the search's own per-bucket locking would deadlock against
// itself. If a pair has no free slot in either candidate bucket,
// BulkInsert stops and returns errTableFull-equivalent; grow the table
// first with Reserve or Rehash, or fall back to Table.Insert outside
// the locked view, which can displace its way to room.
func (lt *LockedTable[K, V]) BulkInsert(pairs map[K]V) error {
	t := lt.t
	for k, v := range pairs {
		hv := t.hasher.Hash(k)
		hp := t.Hashpower()
		i1, i2, tag := t.candidateBuckets(hv, hp)

		if idx := t.searchBucket(&t.buckets[i1], tag, k); idx >= 0 {
			t.buckets[i1].slots[idx].value = v
			continue
		}
		if idx := t.searchBucket(&t.buckets[i2], tag, k); idx >= 0 {
			t.buckets[i2].slots[idx].value = v
			continue
		}
		if idx := emptySlotIndex(&t.buckets[i1]); idx >= 0 {
			t.buckets[i1].setKV(idx, tag, k, v)
			t.locks.StripeFor(i1).counter.Add(1)
			continue
		}
		if idx := emptySlotIndex(&t.buckets[i2]); idx >= 0 {
			t.buckets[i2].setKV(idx, tag, k, v)
			t.locks.StripeFor(i2).counter.Add(1)
			continue
		}
		return errTableFull
	}
	return nil
}

// BulkErase removes every key present and returns how many were
// found.
func (lt *LockedTable[K, V]) BulkErase(keys []K) int {
	t := lt.t
	var n int
	for _, k := range keys {
		hv := t.hasher.Hash(k)
		hp := t.Hashpower()
		i1, i2, tag := t.candidateBuckets(hv, hp)

		if idx := t.searchBucket(&t.buckets[i1], tag, k); idx >= 0 {
			t.buckets[i1].eraseKV(idx)
			t.locks.StripeFor(i1).counter.Add(-1)
			n++
			continue
		}
		if idx := t.searchBucket(&t.buckets[i2], tag, k); idx >= 0 {
			t.buckets[i2].eraseKV(idx)
			t.locks.StripeFor(i2).counter.Add(-1)
			n++
			continue
		}
	}
	return n
}

// Clear destroys every entry visible through this view.
func (lt *LockedTable[K, V]) Clear() {
	t := lt.t
	for i := range t.buckets {
		b := &t.buckets[i]
		for s := range b.slots {
			if b.slots[s].occupied {
				b.eraseKV(s)
			}
		}
	}
	for _, s := range lt.locked {
		s.counter.Store(0)
	}
}

// Rehash resizes the underlying table to newHP. It briefly releases
// and reacquires every stripe around the call, since the resize takes
// its own full lock internally; other goroutines queued on the table
// may interleave between this call and the view's next operation.
func (lt *LockedTable[K, V]) Rehash(newHP uint) error {
	t := lt.t
	t.unlockAll(lt.locked)
	err := t.simpleExpandTo(newHP)
	lt.locked = t.lockAll()
	return err
}

// Reserve ensures the underlying table can hold at least n entries.
// Like Rehash, it briefly releases and reacquires every stripe.
func (lt *LockedTable[K, V]) Reserve(n int) error {
	t := lt.t
	t.unlockAll(lt.locked)
	err := t.Reserve(n)
	lt.locked = t.lockAll()
	return err
}

// Equal reports whether two locked views contain the same set of
// key/value pairs, independent of bucket layout or insertion order.
// Values are compared with reflect.DeepEqual since V carries no
// equality constraint of its own (only K does, via Table's Equality).
func (lt *LockedTable[K, V]) Equal(other *LockedTable[K, V]) bool {
	if lt.t.Size() != other.t.Size() {
		return false
	}
	it := lt.Iterator()
	for it.Next() {
		v, ok := other.t.findNoLock(it.Key())
		if !ok || !reflect.DeepEqual(v, it.Value()) {
			return false
		}
	}
	return true
}
