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

// NewWithHashpower creates a table with exactly 2^hp buckets, bypassing
// the capacity-hint-to-hashpower derivation New otherwise performs.
// Useful for tests and benchmarks that want to pin the starting
// bucket count exactly, and for callers restoring a table to a known
// size after measuring an earlier run's high-water mark.
func NewWithHashpower[K, V any](hp uint, hasher Hasher[K], eq Equality[K], opts ...Option[K, V]) *Table[K, V] {
	opts = append([]Option[K, V]{withInitialHashpower[K, V](hp)}, opts...)
	return New[K, V](0, hasher, eq, opts...)
}

// NewComparableWithHashpower is NewWithHashpower's counterpart to
// NewComparable, for statically comparable key types.
func NewComparableWithHashpower[K comparable, V any](hp uint, hasher Hasher[K], opts ...Option[K, V]) *Table[K, V] {
	return NewWithHashpower[K, V](hp, hasher, EqualComparable[K](), opts...)
}

// NewWithXXHashUint64 creates a table for uint64 keys using the
// package's default xxhash-backed Uint64Hasher, so callers who don't
// need a custom hash function can skip supplying one.
func NewWithXXHashUint64[V any](initialCapacityHint int, opts ...Option[uint64, V]) *Table[uint64, V] {
	return NewComparable[uint64, V](initialCapacityHint, Uint64Hasher(), opts...)
}

// NewWithXXHashString creates a table for string keys using the
// package's default xxhash-backed StringHasher.
func NewWithXXHashString[V any](initialCapacityHint int, opts ...Option[string, V]) *Table[string, V] {
	return NewComparable[string, V](initialCapacityHint, StringHasher(), opts...)
}

// NewWithXXHashBytes creates a table for []byte keys using the
// package's default xxhash-backed BytesHasher. []byte is not
// comparable with ==, so this wires EqualBytes as the key equality.
func NewWithXXHashBytes[V any](initialCapacityHint int, opts ...Option[[]byte, V]) *Table[[]byte, V] {
	return New[[]byte, V](initialCapacityHint, BytesHasher(), EqualBytes(), opts...)
}

// FromMap builds a table pre-populated with every entry of m, using
// len(m) as the initial capacity hint. If any insert fails, FromMap
// returns nil and that insert's error unchanged.
func FromMap[K comparable, V any](m map[K]V, hasher Hasher[K], opts ...Option[K, V]) (*Table[K, V], error) {
	t := NewComparable[K, V](len(m), hasher, opts...)
	for k, v := range m {
		if _, err := t.Insert(k, v); err != nil {
			return nil, err
		}
	}
	return t, nil
}
