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
	"bytes"

	"github.com/cespare/xxhash/v2"
)

// Hasher is the single-method interface the table consumes to hash
// keys. The core engine never prescribes an algorithm; it only ever
// calls Hash. Implementations should aim for good avalanche behavior
// across all 64 bits, since both the bucket index and the partial tag
// are derived from different slices of the same hash.
type Hasher[K any] interface {
	Hash(k K) uint64
}

// Equality is the single-method interface the table consumes to
// compare keys for identity during lookup, duplicate detection, and
// deletion.
type Equality[K any] interface {
	Equal(a, b K) bool
}

// HasherFunc adapts a plain function to a Hasher.
type HasherFunc[K any] func(K) uint64

// Hash implements Hasher.
func (f HasherFunc[K]) Hash(k K) uint64 { return f(k) }

// EqualityFunc adapts a plain function to an Equality.
type EqualityFunc[K any] func(a, b K) bool

// Equal implements Equality.
func (f EqualityFunc[K]) Equal(a, b K) bool { return f(a, b) }

// comparableEquality implements Equality[K] for any comparable K using
// the built-in == operator. Used by callers of EqualComparable for
// simple key types.
type comparableEquality[K comparable] struct{}

func (comparableEquality[K]) Equal(a, b K) bool { return a == b }

// EqualComparable returns an Equality that compares keys with the
// built-in == operator. Suitable for any comparable key type.
func EqualComparable[K comparable]() Equality[K] {
	return comparableEquality[K]{}
}

type bytesEquality struct{}

func (bytesEquality) Equal(a, b []byte) bool { return bytes.Equal(a, b) }

// EqualBytes returns an Equality for []byte keys, which aren't
// comparable with the built-in == operator.
func EqualBytes() Equality[[]byte] {
	return bytesEquality{}
}

// Uint64Hasher returns a Hasher for uint64 keys backed by
// github.com/cespare/xxhash/v2.
func Uint64Hasher() Hasher[uint64] {
	return HasherFunc[uint64](func(k uint64) uint64 {
		var buf [8]byte
		putUint64(buf[:], k)
		return xxhash.Sum64(buf[:])
	})
}

// StringHasher returns a Hasher for string keys backed by
// github.com/cespare/xxhash/v2.
func StringHasher() Hasher[string] {
	return HasherFunc[string](func(k string) uint64 {
		return xxhash.Sum64String(k)
	})
}

// BytesHasher returns a Hasher for []byte keys backed by
// github.com/cespare/xxhash/v2. The slice is not retained past the
// call.
func BytesHasher() Hasher[[]byte] {
	return HasherFunc[[]byte](func(k []byte) uint64 {
		return xxhash.Sum64(k)
	})
}

func putUint64(b []byte, v uint64) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
	b[4] = byte(v >> 32)
	b[5] = byte(v >> 40)
	b[6] = byte(v >> 48)
	b[7] = byte(v >> 56)
}

// partialKey folds a 64-bit hash down to an 8-bit tag by successive
// XOR-halving. The result depends only on the hash, never on the
// current hashpower, which is what lets a fast-double resize carry
// partial keys forward unchanged.
func partialKey(h uint64) uint8 {
	h32 := uint32(h) ^ uint32(h>>32)
	h16 := uint16(h32) ^ uint16(h32>>16)
	return uint8(h16) ^ uint8(h16>>8)
}

// altConstant is the 64-bit MurmurHash2 mixing constant, used to
// derive a key's second candidate bucket from its first.
const altConstant uint64 = 0xc6a4a7935bd1e995

// indexHash returns the first candidate bucket for a key hashing to
// h, given hashpower hp.
func indexHash(hp uint, h uint64) uint64 {
	return h & hashMask(hp)
}

// altIndex returns the other candidate bucket for a key with the
// given partial tag, given one of its candidate buckets. It is an
// involution: altIndex(hp, tag, altIndex(hp, tag, i)) == i for any i
// in [0, 2^hp).
func altIndex(hp uint, tag uint8, index uint64) uint64 {
	nonzeroTag := uint64(tag) + 1
	return (index ^ (nonzeroTag * altConstant)) & hashMask(hp)
}

func hashMask(hp uint) uint64 {
	return (uint64(1) << hp) - 1
}
