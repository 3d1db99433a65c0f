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

// Package cuckoo implements a concurrent, in-memory associative
// container using bucketized cuckoo hashing with partial-key
// filtering, striped fine-grained locking, a BFS-based cuckoo path
// search for displacement, and online resizing.
//
// Lookup, insertion, update, and deletion are expected amortized
// constant time. Two candidate buckets are computed from a single key
// hash; each bucket holds a small, fixed number of slots. When both
// candidate buckets for a new key are full, the table searches for a
// short chain of displacements (the "cuckoo path") that frees a slot,
// falling back to growing the table when no such chain exists.
//
// Every key's two candidate buckets are guarded by locks drawn from a
// striped lock array that grows with the table up to a configured
// stripe count (2^16 by default), so unrelated keys can be mutated
// concurrently from different goroutines without contending on a
// single table-wide lock. Table-wide structural changes (resizing)
// briefly hold every stripe.
//
// The table does not provide ordered iteration, persistence, or
// cross-process sharing. Size and load-factor queries are best-effort
// snapshots and may be stale under concurrent mutation.
package cuckoo
