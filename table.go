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
	"sync"
	"sync/atomic"
)

// Table is a concurrent, in-memory associative container mapping
// keys of type K to values of type V. The zero value is not usable;
// construct one with New.
type Table[K, V any] struct {
	hp      atomic.Uint64
	buckets []bucket[K, V]
	locks   *lockArray

	resizeMu sync.Mutex

	hasher Hasher[K]
	eq     Equality[K]

	slotsPerBucket int
	simpleKey      bool
	strongResize   bool
	stripeCap      uint64

	minLoadFactorBits atomic.Uint64
	maxHashpower      atomic.Uint64

	logger Logger

	stats statsCounters
}

type statsCounters struct {
	fastDoubles   atomic.Uint64
	simpleExpands atomic.Uint64
	rehashes      atomic.Uint64
}

// Stats is a point-in-time snapshot of a table's resize history.
type Stats struct {
	FastDoubles   uint64
	SimpleExpands uint64
	Rehashes      uint64
}

// New creates a table with room for at least initialCapacityHint
// key/value pairs before any resize is needed, using hasher to hash
// keys and eq to compare them for identity. Use NewComparable for the
// common case where K's built-in == operator is the right equality.
func New[K, V any](initialCapacityHint int, hasher Hasher[K], eq Equality[K], opts ...Option[K, V]) *Table[K, V] {
	cfg := defaultConfig[K, V]()
	cfg.equality = eq
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.equality == nil {
		panic("cuckoo: New requires a non-nil Equality (pass one explicitly, use NewComparable, or use WithEquality)")
	}

	var hp uint
	if cfg.initialHP >= 0 {
		hp = uint(cfg.initialHP)
	} else {
		hp = hashpowerForCapacity(initialCapacityHint, cfg.slotsPerBucket)
	}

	t := &Table[K, V]{
		hasher:         hasher,
		eq:             cfg.equality,
		slotsPerBucket: cfg.slotsPerBucket,
		simpleKey:      cfg.simpleKey,
		strongResize:   cfg.strongResize,
		stripeCap:      cfg.stripeCount,
		logger:         cfg.logger,
	}
	t.hp.Store(uint64(hp))
	t.buckets = newBuckets[K, V](uint64(1)<<hp, cfg.slotsPerBucket)
	t.locks = newLockArray(uint64(1)<<hp, cfg.stripeCount)
	t.minLoadFactorBits.Store(math.Float64bits(cfg.minLoadFactor))
	t.maxHashpower.Store(uint64(cfg.maxHashpower))
	return t
}

// NewComparable creates a table for a statically comparable key type,
// using the built-in == operator for equality (EqualComparable[K]()).
func NewComparable[K comparable, V any](initialCapacityHint int, hasher Hasher[K], opts ...Option[K, V]) *Table[K, V] {
	return New[K, V](initialCapacityHint, hasher, EqualComparable[K](), opts...)
}

// Hashpower returns the base-2 logarithm of the current bucket count.
// Not linearizable with mutators.
func (t *Table[K, V]) Hashpower() uint { return uint(t.hp.Load()) }

// BucketCount returns 2^Hashpower().
func (t *Table[K, V]) BucketCount() uint64 { return uint64(1) << t.Hashpower() }

// SlotsPerBucket returns the fixed number of slots held by every
// bucket.
func (t *Table[K, V]) SlotsPerBucket() int { return t.slotsPerBucket }

// Capacity returns BucketCount() * SlotsPerBucket().
func (t *Table[K, V]) Capacity() uint64 { return t.BucketCount() * uint64(t.slotsPerBucket) }

// Size sums the per-stripe element counters without taking any
// locks. It is a best-effort snapshot approximation and may be stale
// under concurrent mutation.
func (t *Table[K, V]) Size() int64 {
	l := t.locks.Len()
	var sum int64
	for i := uint64(0); i < l; i++ {
		sum += t.locks.Stripe(i).counter.Load()
	}
	return sum
}

// Empty reports whether Size() == 0, short-circuiting on the first
// nonzero stripe counter.
func (t *Table[K, V]) Empty() bool {
	l := t.locks.Len()
	for i := uint64(0); i < l; i++ {
		if t.locks.Stripe(i).counter.Load() != 0 {
			return false
		}
	}
	return true
}

// LoadFactor returns Size() / Capacity() using the same lock-free
// snapshot as Size().
func (t *Table[K, V]) LoadFactor() float64 {
	cap := t.Capacity()
	if cap == 0 {
		return 0
	}
	return float64(t.Size()) / float64(cap)
}

// MinLoadFactor returns the configured floor for automatic expansion.
func (t *Table[K, V]) MinLoadFactor() float64 {
	return math.Float64frombits(t.minLoadFactorBits.Load())
}

// SetMinLoadFactor updates the floor for automatic expansion. Returns
// ErrInvalidArgument if lf is outside [0, 1].
func (t *Table[K, V]) SetMinLoadFactor(lf float64) error {
	if lf < 0 || lf > 1 {
		return ErrInvalidArgument
	}
	t.minLoadFactorBits.Store(math.Float64bits(lf))
	return nil
}

// MaxHashpower returns the configured ceiling on Hashpower(), or
// NoMaximumHashpower if unbounded.
func (t *Table[K, V]) MaxHashpower() uint {
	return uint(t.maxHashpower.Load())
}

// SetMaxHashpower updates the ceiling on Hashpower(). Returns
// ErrInvalidArgument if mhp is less than the table's current
// hashpower.
func (t *Table[K, V]) SetMaxHashpower(mhp uint) error {
	if mhp != NoMaximumHashpower && mhp < t.Hashpower() {
		return ErrInvalidArgument
	}
	t.maxHashpower.Store(uint64(mhp))
	return nil
}

// HashFunction returns the Hasher the table was constructed with.
func (t *Table[K, V]) HashFunction() Hasher[K] { return t.hasher }

// KeyEq returns the Equality the table was constructed with.
func (t *Table[K, V]) KeyEq() Equality[K] { return t.eq }

// Stats returns a snapshot of the table's resize history.
func (t *Table[K, V]) Stats() Stats {
	return Stats{
		FastDoubles:   t.stats.fastDoubles.Load(),
		SimpleExpands: t.stats.simpleExpands.Load(),
		Rehashes:      t.stats.rehashes.Load(),
	}
}

// Clear destroys every entry in the table. It takes every stripe
// lock, like a resize, so it is linearizable with respect to all
// other mutating operations.
func (t *Table[K, V]) Clear() {
	locked := t.lockAll()
	defer t.unlockAll(locked)

	for i := range t.buckets {
		b := &t.buckets[i]
		for s := range b.slots {
			if b.slots[s].occupied {
				b.eraseKV(s)
			}
		}
	}
	for _, s := range locked {
		s.counter.Store(0)
	}
}

// lockAll acquires every currently-allocated stripe in ascending
// order and returns them, so resize-like operations can safely
// observe and mutate every bucket. Callers must hold resizeMu before
// calling this when the intent is a structural resize, so that a
// concurrent resize can't also be mid-flight; Clear calls it without
// resizeMu since it doesn't touch hashpower or bucket layout.
func (t *Table[K, V]) lockAll() []*spinlock {
	l := t.locks.Len()
	locked := make([]*spinlock, l)
	for i := uint64(0); i < l; i++ {
		s := t.locks.Stripe(i)
		s.Lock()
		locked[i] = s
	}
	return locked
}

func (t *Table[K, V]) unlockAll(locked []*spinlock) {
	for _, s := range locked {
		s.Unlock()
	}
}
