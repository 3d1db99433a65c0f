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

// This file implements the BFS cuckoo displacement search, grounded on
// libcuckoo's cuckoopath_search / cuckoopath_move / run_cuckoo. The
// shape is the same: explore
// occupied slots breadth-first from the two candidate buckets looking
// for one with a free slot within maxCuckooDepth hops, then walk the
// discovered path backward moving each displaced item one hop closer
// to its vacancy. libcuckoo packs the path into a single integer
// "pathcode" to avoid allocation; Go's allocator and GC make that
// trick pure overhead here, so the path is just a slice of steps
// built from a small parent-pointer tree.

// maxCuckooRetries bounds how many times runCuckoo will restart the
// whole search-then-move attempt after a concurrent mutation
// invalidates an in-flight move, matching libcuckoo's retry ceiling
// for the same situation.
const maxCuckooRetries = 256

// bfsNode is one node of the implicit search tree: the bucket it
// represents, the slot in its parent bucket that, if evicted, reaches
// it, and a parent pointer (-1 for the two roots).
type bfsNode struct {
	bucket   uint64
	slotUsed int
	parent   int
	depth    int
}

// pathStep is one hop of a resolved displacement path: the item
// occupying slotUsed in the previous step's bucket must move into
// intoSlot of this step's bucket. The root step has slotUsed -1, and
// its intoSlot is the root-bucket slot the path frees.
type pathStep struct {
	bucket   uint64
	slotUsed int
	intoSlot int
}

// emptySlotIn locks bucket b under hp just long enough to look for an
// unoccupied slot. stale reports that hp no longer matches the live
// hashpower, meaning the caller's whole search is invalid and must
// restart.
func (t *Table[K, V]) emptySlotIn(hp uint, b uint64) (slotIdx int, found bool, stale bool) {
	s, ok := t.lockOne(hp, b)
	if !ok {
		return -1, false, true
	}
	defer s.Unlock()
	bk := &t.buckets[b]
	for i := range bk.slots {
		if !bk.slots[i].occupied {
			return i, true, false
		}
	}
	return -1, false, false
}

// cuckoopathSearch looks for a bucket reachable from i1 or i2 within
// maxCuckooDepth evictions that has a free slot, returning the
// resolved path from root to that bucket. found is false if the
// search space was exhausted or the hashpower moved mid-search.
func (t *Table[K, V]) cuckoopathSearch(hp uint, i1, i2 uint64) (path []pathStep, found bool) {
	nodes := make([]bfsNode, 0, 64)
	nodes = append(nodes,
		bfsNode{bucket: i1, slotUsed: -1, parent: -1, depth: 0},
		bfsNode{bucket: i2, slotUsed: -1, parent: -1, depth: 0},
	)
	queue := []int{0, 1}

	for len(queue) > 0 {
		curIdx := queue[0]
		queue = queue[1:]
		cur := nodes[curIdx]

		s, ok := t.lockOne(hp, cur.bucket)
		if !ok {
			return nil, false
		}
		childStart := len(nodes)
		b := &t.buckets[cur.bucket]
		for slotIdx := range b.slots {
			sl := &b.slots[slotIdx]
			if !sl.occupied {
				continue
			}
			alt := altIndex(hp, sl.partial, cur.bucket)
			nodes = append(nodes, bfsNode{
				bucket:   alt,
				slotUsed: slotIdx,
				parent:   curIdx,
				depth:    cur.depth + 1,
			})
		}
		s.Unlock()

		if len(nodes) > bfsQueueCapacity {
			return nil, false
		}

		for ci := childStart; ci < len(nodes); ci++ {
			child := nodes[ci]
			emptyIdx, hasEmpty, stale := t.emptySlotIn(hp, child.bucket)
			if stale {
				return nil, false
			}
			if hasEmpty {
				return resolvePath(nodes, ci, emptyIdx), true
			}
			if child.depth < maxCuckooDepth {
				queue = append(queue, ci)
			}
		}
	}
	return nil, false
}

// resolvePath walks parent pointers from targetIdx back to a root,
// filling in the destination slot each hop must land in.
func resolvePath(nodes []bfsNode, targetIdx, emptySlot int) []pathStep {
	var chain []bfsNode
	for idx := targetIdx; idx != -1; idx = nodes[idx].parent {
		chain = append(chain, nodes[idx])
	}
	// chain is currently target-to-root; reverse it to root-to-target.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}

	steps := make([]pathStep, len(chain))
	for i, n := range chain {
		steps[i] = pathStep{bucket: n.bucket, slotUsed: n.slotUsed}
	}
	steps[len(steps)-1].intoSlot = emptySlot
	for i := len(steps) - 2; i >= 0; i-- {
		steps[i].intoSlot = steps[i+1].slotUsed
	}
	return steps
}

// cuckoopathMove replays a resolved path, moving each displaced item
// one hop closer to the free slot the search found. It re-validates
// every hop under a fresh two-bucket lock since the path was
// discovered without holding any lock across iterations; if anything
// along the path moved in the meantime, the move aborts and the
// caller must search again.
func (t *Table[K, V]) cuckoopathMove(path []pathStep) bool {
	for k := len(path) - 1; k >= 1; k-- {
		parent := path[k-1]
		child := path[k]
		hp := t.Hashpower()

		lock, ok := t.lockTwo(hp, parent.bucket, child.bucket)
		if !ok {
			return false
		}

		pb := &t.buckets[parent.bucket]
		cb := &t.buckets[child.bucket]
		src := &pb.slots[child.slotUsed]
		dst := &cb.slots[child.intoSlot]

		if !src.occupied || dst.occupied || altIndex(hp, src.partial, parent.bucket) != child.bucket {
			lock.unlock()
			return false
		}

		moveKV(cb, child.intoSlot, pb, child.slotUsed)
		lock.unlock()
	}
	return true
}

// runCuckoo tries to free up a slot reachable from hv's two candidate
// buckets by evicting items along a BFS displacement path, retrying
// the whole search-then-move cycle if a concurrent mutation
// invalidates an in-flight move. It reports whether it succeeded;
// the caller is responsible for retrying its own insert afterward,
// since the freed slot may already have been claimed by another
// goroutine by the time this returns.
func (t *Table[K, V]) runCuckoo(hv uint64) bool {
	for attempt := 0; attempt < maxCuckooRetries; attempt++ {
		hp := t.Hashpower()
		i1, i2, _ := t.candidateBuckets(hv, hp)

		path, found := t.cuckoopathSearch(hp, i1, i2)
		if !found {
			t.logger.Log("event", "cuckoo_path_exhausted", "hashpower", hp, "bucket1", i1, "bucket2", i2, "attempt", attempt)
			return false
		}
		if t.cuckoopathMove(path) {
			return true
		}
	}
	return false
}
