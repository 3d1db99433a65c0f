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
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// checkResizeValidity reports a *MaximumHashpowerExceededError if
// growing to targetHP would exceed the table's configured ceiling.
func (t *Table[K, V]) checkResizeValidity(targetHP uint) error {
	if mhp := t.MaxHashpower(); mhp != NoMaximumHashpower && targetHP > mhp {
		return &MaximumHashpowerExceededError{RequestedHashpower: targetHP}
	}
	return nil
}

// expandOnFull is called when an insert's cuckoo path search is
// exhausted. It refuses to grow a pathologically sparse table
// (MinLoadFactor) and otherwise performs one step of automatic
// expansion using whichever resize strategy the table was configured
// with.
func (t *Table[K, V]) expandOnFull() error {
	lf := t.LoadFactor()
	if lf < t.MinLoadFactor() {
		t.logger.Log("event", "resize_refused", "reason", "load_factor_too_low", "load_factor", lf)
		return &LoadFactorTooLowError{LoadFactor: lf}
	}

	target := t.Hashpower() + 1
	if err := t.checkResizeValidity(target); err != nil {
		t.logger.Log("event", "resize_refused", "reason", "max_hashpower", "target", target)
		return err
	}
	if t.strongResize {
		return t.simpleExpandTo(target)
	}
	if err := t.fastDouble(); err != nil {
		if err == errFastDoubleFailed {
			t.logger.Log("event", "resize_fallback", "reason", "fast_double_eviction_exhausted", "target", target)
			return t.simpleExpandTo(target)
		}
		return err
	}
	return nil
}

// fastDouble implements the H -> H+1 expansion: grow the lock array,
// take every stripe, allocate an empty bucket array at double the
// size, place every old occupant into it, and only then publish the
// new array and hashpower. Grounded on cuckoohash_map.hh's
// cuckoo_fast_double/move_buckets for the overall shape (rehash via
// the key rather than the 8-bit partial tag, which is deliberately
// hashpower-independent so it can't resolve the new bit).
//
// Each occupant is placed with placeWithEviction, which derives its
// candidate pair in the doubled array from a fresh hash of the key and
// falls back to bounded-depth greedy eviction (single-threaded
// random-walk style) if both candidates are already full. Because the
// old array stays published until every occupant is placed, a failed
// placement or a panicking Hasher leaves the table unchanged.
func (t *Table[K, V]) fastDouble() error {
	t.resizeMu.Lock()
	defer t.resizeMu.Unlock()

	hp := t.Hashpower()
	newHP := hp + 1
	if err := t.checkResizeValidity(newHP); err != nil {
		return err
	}

	t.locks.Grow(uint64(1) << newHP)

	locked := t.lockAll()
	defer t.unlockAll(locked)

	if t.Hashpower() != hp {
		// Another goroutine doubled the table while we waited for
		// every stripe; nothing left to do.
		return nil
	}

	oldCount := uint64(1) << hp
	old := t.buckets
	grown := newBuckets[K, V](uint64(1)<<newHP, t.slotsPerBucket)

	for b := uint64(0); b < oldCount; b++ {
		for s := range old[b].slots {
			sl := &old[b].slots[s]
			if !sl.occupied {
				continue
			}
			if !placeWithEviction(grown, newHP, t.hasher, sl.key, sl.value, maxCuckooDepth) {
				return errFastDoubleFailed
			}
		}
	}
	t.buckets = grown
	t.hp.Store(uint64(newHP))

	for _, s := range locked {
		s.counter.Store(0)
	}
	for b := range t.buckets {
		n := int64(0)
		for s := range t.buckets[b].slots {
			if t.buckets[b].slots[s].occupied {
				n++
			}
		}
		t.locks.StripeFor(uint64(b)).counter.Add(n)
	}

	t.stats.fastDoubles.Add(1)
	t.logger.Log("event", "resize", "kind", "fast_double", "from", hp, "to", newHP)
	return nil
}

// simpleExpandTo implements the out-of-place rebuild: build a fresh
// table at targetHP and reinsert every live entry into it
// (parallelized across worker goroutines with golang.org/x/sync's
// errgroup, mirroring libcuckoo's worker-thread reinsertion), then
// swap it in. Unlike fastDouble this can shrink, and a panic or error
// from a worker leaves the original table completely untouched, since
// nothing is written back until every worker has succeeded.
//
// Reinsertion reuses Insert itself rather than a second hand-rolled
// placement routine, so a targetHP too small to hold every live key
// (the shrink case where the request undershoots) transparently grows
// the rebuild further instead of failing outright.
func (t *Table[K, V]) simpleExpandTo(targetHP uint) error {
	t.resizeMu.Lock()
	defer t.resizeMu.Unlock()

	hp := t.Hashpower()
	if targetHP == hp {
		return nil
	}
	if err := t.checkResizeValidity(targetHP); err != nil {
		return err
	}

	locked := t.lockAll()
	defer t.unlockAll(locked)

	tmp := &Table[K, V]{
		hasher:         t.hasher,
		eq:             t.eq,
		slotsPerBucket: t.slotsPerBucket,
		simpleKey:      t.simpleKey,
		strongResize:   true,
		stripeCap:      t.stripeCap,
		logger:         NewNopLogger(),
	}
	tmp.hp.Store(uint64(targetHP))
	tmp.buckets = newBuckets[K, V](uint64(1)<<targetHP, t.slotsPerBucket)
	tmp.locks = newLockArray(uint64(1)<<targetHP, t.stripeCap)
	tmp.minLoadFactorBits.Store(math.Float64bits(0))
	tmp.maxHashpower.Store(uint64(NoMaximumHashpower))

	oldCount := uint64(1) << hp
	workers := runtime.GOMAXPROCS(0)
	if uint64(workers) > oldCount {
		workers = int(oldCount)
	}
	if workers < 1 {
		workers = 1
	}
	chunk := (oldCount + uint64(workers) - 1) / uint64(workers)

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		start := uint64(w) * chunk
		if start >= oldCount {
			break
		}
		end := start + chunk
		if end > oldCount {
			end = oldCount
		}
		g.Go(func() error {
			for b := start; b < end; b++ {
				bk := &t.buckets[b]
				for s := range bk.slots {
					sl := &bk.slots[s]
					if !sl.occupied {
						continue
					}
					if _, err := tmp.Insert(sl.key, sl.value); err != nil {
						return err
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	finalHP := tmp.Hashpower()
	// Keep t.locks (it only grows) and recount its stripes for the new layout.
	t.locks.Grow(tmp.locks.Len())
	t.buckets = tmp.buckets
	for _, s := range locked {
		s.counter.Store(0)
	}
	for b := range t.buckets {
		for s := range t.buckets[b].slots {
			if t.buckets[b].slots[s].occupied {
				t.locks.StripeFor(uint64(b)).counter.Add(1)
			}
		}
	}
	t.hp.Store(uint64(finalHP))

	t.stats.simpleExpands.Add(1)
	t.logger.Log("event", "resize", "kind", "simple_expand", "from", hp, "requested", targetHP, "to", finalHP)
	return nil
}

// Rehash explicitly resizes the table to newHP buckets-per-power,
// using the out-of-place rebuild (it can grow or shrink). It blocks
// concurrent mutators for its duration.
func (t *Table[K, V]) Rehash(newHP uint) error {
	if newHP == t.Hashpower() {
		return nil
	}
	if err := t.simpleExpandTo(newHP); err != nil {
		return err
	}
	t.stats.rehashes.Add(1)
	return nil
}

// Reserve ensures the table can hold at least n entries without a
// further automatic expansion, rehashing to the smallest hashpower
// satisfying 2^H * SlotsPerBucket() >= n. It is a no-op if the table
// is already large enough.
func (t *Table[K, V]) Reserve(n int) error {
	want := hashpowerForCapacity(n, t.slotsPerBucket)
	if want <= t.Hashpower() {
		return nil
	}
	return t.simpleExpandTo(want)
}
