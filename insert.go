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

// Insert adds key/value if key is not already present. It reports
// true on success and false if key was already present, in which case
// the table is left unchanged. The only errors it returns are
// *LoadFactorTooLowError and *MaximumHashpowerExceededError, both
// raised only when the table needed to grow to make room and couldn't,
// plus a *panicError if the table's Hasher or Equality panicked.
func (t *Table[K, V]) Insert(key K, value V) (bool, error) {
	return t.upsert(key, value, nil)
}

// Upsert inserts key/value if key is absent, or otherwise calls
// mutator with the existing value and stores its result in place. It
// reports true if it inserted, false if mutator was invoked instead.
func (t *Table[K, V]) Upsert(key K, value V, mutator func(V) V) (inserted bool, err error) {
	if mutator == nil {
		panic("cuckoo: Upsert requires a non-nil mutator")
	}
	return t.upsert(key, value, mutator)
}

// upsertOutcome reports what a single locked attempt accomplished, so
// upsert's retry loop knows whether to loop back for another attempt
// or return straight away.
type upsertOutcome int

const (
	upsertDone upsertOutcome = iota
	upsertNeedRoom
)

// tryUpsertOnce takes one locked pass at placing or mutating key under
// the hashpower observed at lock time. Its two-bucket lock is released
// via defer so a panicking mutator (or a panicking Hasher/Equality
// invoked from searchBucket) still unwinds with both stripes unlocked,
// instead of leaving them held for the life of the table.
func (t *Table[K, V]) tryUpsertOnce(hv uint64, key K, value V, mutator func(V) V) (outcome upsertOutcome, inserted bool) {
	lock, i1, i2, tag, _ := t.snapshotAndLockTwo(hv)
	defer lock.unlock()

	if idx := t.searchBucket(&t.buckets[i1], tag, key); idx >= 0 {
		if mutator != nil {
			s := &t.buckets[i1].slots[idx]
			s.value = mutator(s.value)
		}
		return upsertDone, false
	}
	if idx := t.searchBucket(&t.buckets[i2], tag, key); idx >= 0 {
		if mutator != nil {
			s := &t.buckets[i2].slots[idx]
			s.value = mutator(s.value)
		}
		return upsertDone, false
	}

	if idx := emptySlotIndex(&t.buckets[i1]); idx >= 0 {
		t.buckets[i1].setKV(idx, tag, key, value)
		t.locks.StripeFor(i1).counter.Add(1)
		return upsertDone, true
	}
	if idx := emptySlotIndex(&t.buckets[i2]); idx >= 0 {
		t.buckets[i2].setKV(idx, tag, key, value)
		t.locks.StripeFor(i2).counter.Add(1)
		return upsertDone, true
	}

	// Both candidate buckets were full; the caller must make room.
	return upsertNeedRoom, false
}

// upsert is the shared retry loop behind Insert and Upsert. A panic
// from the table's Hasher, Equality, or (for Upsert) the caller's
// mutator unwinds through tryUpsertOnce's deferred unlock, then is
// recovered here and returned as a *panicError instead of propagating
// past the table's internal locking and deadlocking the stripes it
// had acquired.
func (t *Table[K, V]) upsert(key K, value V, mutator func(V) V) (inserted bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			inserted, err = false, &panicError{recovered: r}
		}
	}()

	hv := t.hasher.Hash(key)

	for {
		outcome, ins := t.tryUpsertOnce(hv, key, value, mutator)
		if outcome == upsertDone {
			return ins, nil
		}

		if t.runCuckoo(hv) {
			// A slot may now be free somewhere reachable from hv, but
			// another goroutine may have already claimed it (or the
			// hashpower may have moved again); loop back to the top
			// and re-evaluate from scratch either way.
			continue
		}

		if err := t.expandOnFull(); err != nil {
			return false, err
		}
		// Table grew; retry the simple path against the new layout.
	}
}
