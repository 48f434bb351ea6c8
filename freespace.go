// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The free-space manager: an in-memory index of reclaimed byte ranges,
// coalescing adjacent ranges, handing out best-fit allocations, and
// maintaining a bounded snapshot suitable for persisting in the header
// page's fixed free-region slot table.

package llsdb

import (
	"github.com/google/btree"
)

// Free identifies a free byte range by its end pointer and size; the
// implied start is EndPointer - Size. Ordering is lexicographic by
// (Size, EndPointer), which is what both the best-fit allocation index
// and the persisted-snapshot displacement rule key off of.
type Free struct {
	Size       uint64
	EndPointer Pointer
}

// zeroFree is the NULL sentinel stored in unused persisted slots.
var zeroFree = Free{}

// StartPointer is the first byte of the free range.
func (f Free) StartPointer() Pointer { return f.EndPointer - Pointer(f.Size) }

func freeFromStart(start Pointer, size uint64) Free {
	return Free{Size: size, EndPointer: start + Pointer(size)}
}

func lessFree(a, b Free) bool {
	if a.Size != b.Size {
		return a.Size < b.Size
	}
	return a.EndPointer < b.EndPointer
}

type changeKind int

const (
	changeAdd changeKind = iota
	changeRemove
)

type freeChange struct {
	kind changeKind
	free Free
}

type endStart struct {
	end   Pointer
	start Pointer
}

func lessEndStart(a, b endStart) bool { return a.end < b.end }

// FreeSpace is the free-space manager described by the header-page free
// slot table. It is not safe for concurrent use; the Database serializes
// access the same way it serializes transactions.
type FreeSpace struct {
	endToStart *btree.BTreeG[endStart]
	sizes      *btree.BTreeG[Free]
	txChanges  []freeChange
	pending    []Free
	persist    persistFreeSpace
}

// NewFreeSpace returns an empty FreeSpace whose persisted snapshot has
// room for nPersist free regions.
func NewFreeSpace(nPersist int) *FreeSpace {
	return &FreeSpace{
		endToStart: btree.NewG(32, lessEndStart),
		sizes:      btree.NewG(32, lessFree),
		persist:    newPersistFreeSpace(nPersist),
	}
}

// NewFreeSpaceFromPersistState rebuilds a FreeSpace from a header page's
// free-region slot table, as read at Load time. Slots holding the NULL
// Free are treated as empty.
func NewFreeSpaceFromPersistState(state []Free) *FreeSpace {
	persist := restorePersistFreeSpace(state)
	fs := &FreeSpace{
		endToStart: btree.NewG(32, lessEndStart),
		sizes:      btree.NewG(32, lessFree),
		persist:    persist,
	}
	for _, free := range persist.state {
		if free == zeroFree {
			continue
		}
		fs.endToStart.ReplaceOrInsert(endStart{end: free.EndPointer, start: free.StartPointer()})
		fs.sizes.ReplaceOrInsert(free)
	}
	return fs
}

// PersistState returns the current bounded snapshot, suitable for writing
// into the header page's free-region slot table.
func (fs *FreeSpace) PersistState() []Free { return fs.persist.state }

// insert coalesces a newly-freed region with any adjacent regions already
// tracked and records the result as an Add change.
func (fs *FreeSpace) insert(free Free) {
	if free.Size == 0 {
		return
	}
	end := free.EndPointer
	start := free.StartPointer()
	for {
		var mergedLeft, mergedRight bool

		if item, ok := fs.predecessorStrictlyBefore(end); ok && item.end == start {
			fs.removeRange(item.end)
			start = item.start
			mergedLeft = true
		}
		if item, ok := fs.successorAtOrAfter(end); ok && item.start == end {
			fs.removeRange(item.end)
			end = item.end
			mergedRight = true
		}
		if !mergedLeft && !mergedRight {
			break
		}
	}

	merged := Free{Size: uint64(end - start), EndPointer: end}
	fs.txChanges = append(fs.txChanges, freeChange{kind: changeAdd, free: merged})
	fs.endToStart.ReplaceOrInsert(endStart{end: end, start: start})
	fs.sizes.ReplaceOrInsert(merged)
	fs.persist.add(merged)
}

func (fs *FreeSpace) predecessorStrictlyBefore(end Pointer) (endStart, bool) {
	if end == 0 {
		return endStart{}, false
	}
	var found endStart
	ok := false
	fs.endToStart.DescendLessOrEqual(endStart{end: end - 1}, func(item endStart) bool {
		found = item
		ok = true
		return false
	})
	return found, ok
}

func (fs *FreeSpace) successorAtOrAfter(end Pointer) (endStart, bool) {
	var found endStart
	ok := false
	fs.endToStart.AscendGreaterOrEqual(endStart{end: end}, func(item endStart) bool {
		found = item
		ok = true
		return false
	})
	return found, ok
}

// removeRange removes the tracked region ending at endPointer entirely.
func (fs *FreeSpace) removeRange(endPointer Pointer) (uint64, bool) {
	return fs.resize(endPointer, 0)
}

// Free defers reclamation of space until the owning transaction commits:
// reads performed later in the same transaction may still reference the
// freed addresses, and a failed transaction must never have mutated the
// coalescing index.
func (fs *FreeSpace) Free(space Free) {
	fs.pending = append(fs.pending, space)
}

func (fs *FreeSpace) resize(endPointer Pointer, newSize uint64) (uint64, bool) {
	item, ok := fs.endToStart.Delete(endStart{end: endPointer})
	if !ok {
		return 0, false
	}
	currentSize := uint64(endPointer - item.start)
	free := Free{Size: currentSize, EndPointer: endPointer}
	fs.sizes.Delete(free)
	fs.persist.remove(free)
	fs.txChanges = append(fs.txChanges, freeChange{kind: changeRemove, free: free})
	if newSize != 0 {
		fs.insert(Free{Size: newSize, EndPointer: endPointer})
	}
	return currentSize, true
}

// WhereToTrim returns the start pointer of the free region with the
// greatest end pointer, if any region is tracked. A Database uses this at
// commit time to decide whether the backing file can be truncated.
func (fs *FreeSpace) WhereToTrim() (Pointer, bool) {
	item, ok := fs.endToStart.Max()
	if !ok {
		return 0, false
	}
	return item.start, true
}

// TxFailRollback undoes every change recorded since the last TxSuccess, in
// reverse order, and discards pending frees and the snapshot's
// changed-slots set.
func (fs *FreeSpace) TxFailRollback() {
	for i := len(fs.txChanges) - 1; i >= 0; i-- {
		change := fs.txChanges[i]
		switch change.kind {
		case changeAdd:
			fs.endToStart.Delete(endStart{end: change.free.EndPointer})
			fs.sizes.Delete(change.free)
			fs.persist.remove(change.free)
		case changeRemove:
			fs.endToStart.ReplaceOrInsert(endStart{end: change.free.EndPointer, start: change.free.StartPointer()})
			fs.sizes.ReplaceOrInsert(change.free)
			fs.persist.add(change.free)
		}
	}
	fs.txChanges = nil
	fs.persist.takeChangedSlots()
	fs.pending = nil
}

// ApplyPendingFrees moves every region queued via Free into the coalescing
// index and returns the set of persisted slot indices that changed as a
// result, for the caller to write into the header page.
func (fs *FreeSpace) ApplyPendingFrees() map[int]struct{} {
	pending := fs.pending
	fs.pending = nil
	for _, free := range pending {
		fs.insert(free)
	}
	return fs.persist.takeChangedSlots()
}

// TxSuccess discards the change log without undoing anything: the
// transaction committed, so every Add/Remove recorded since the last
// TxSuccess is now permanent.
func (fs *FreeSpace) TxSuccess() {
	fs.txChanges = nil
}

// TakeForSize finds the smallest tracked region of at least size bytes,
// shrinks or removes it, and returns the start of the allocated block.
// Allocation is taken from the low end of the chosen region so its end
// pointer (and therefore its position in a coalescing chain) is preserved.
func (fs *FreeSpace) TakeForSize(size uint64) (Pointer, bool) {
	var chosen Free
	found := false
	fs.sizes.AscendGreaterOrEqual(Free{Size: size, EndPointer: MIN}, func(item Free) bool {
		chosen = item
		found = true
		return false
	})
	if !found {
		return 0, false
	}
	remaining := chosen.Size - size
	fs.resize(chosen.EndPointer, remaining)
	return chosen.StartPointer(), true
}

// persistFreeSpace is the bounded, slot-indexed snapshot of a FreeSpace
// suitable for the header page's fixed-size free-region table. Regions
// that don't fit are held in an in-memory overflow queue and are lost (not
// corrupted, just re-fragmented) if the process crashes before they're
// coalesced into a persisted region.
type persistFreeSpace struct {
	state         []Free
	reverseBySize *btree.BTreeG[freeSlot]
	unusedSlots   []int
	unplacedQueue *btree.BTreeG[Free]
	changedSlots  map[int]struct{}
}

type freeSlot struct {
	free Free
	slot int
}

func lessFreeSlot(a, b freeSlot) bool { return lessFree(a.free, b.free) }

func newPersistFreeSpace(nPersist int) persistFreeSpace {
	unused := make([]int, nPersist)
	for i := range unused {
		unused[i] = nPersist - 1 - i
	}
	return persistFreeSpace{
		state:         make([]Free, nPersist),
		reverseBySize: btree.NewG(32, lessFreeSlot),
		unusedSlots:   unused,
		unplacedQueue: btree.NewG(32, lessFree),
		changedSlots:  map[int]struct{}{},
	}
}

func restorePersistFreeSpace(state []Free) persistFreeSpace {
	p := persistFreeSpace{
		state:         append([]Free(nil), state...),
		reverseBySize: btree.NewG(32, lessFreeSlot),
		unplacedQueue: btree.NewG(32, lessFree),
		changedSlots:  map[int]struct{}{},
	}
	for i := len(p.state) - 1; i >= 0; i-- {
		if p.state[i] == zeroFree {
			p.unusedSlots = append(p.unusedSlots, i)
		} else {
			p.reverseBySize.ReplaceOrInsert(freeSlot{free: p.state[i], slot: i})
		}
	}
	return p
}

func (p *persistFreeSpace) remove(free Free) {
	if item, ok := p.reverseBySize.Delete(freeSlot{free: free}); ok {
		p.state[item.slot] = zeroFree
		p.changedSlots[item.slot] = struct{}{}
		p.unusedSlots = append(p.unusedSlots, item.slot)

		if next, ok := p.unplacedQueue.DeleteMax(); ok {
			p.add(next)
		}
		return
	}

	if _, ok := p.unplacedQueue.Delete(free); ok {
		return
	}

	panic("llsdb: removed a free region that was neither in a slot nor unplaced")
}

func (p *persistFreeSpace) add(free Free) {
	slot, ok := p.popUnusedSlot()
	if !ok {
		smallest, hasSmallest := p.reverseBySize.Min()
		if !hasSmallest {
			panic("llsdb: no unused slots and no persisted region to displace")
		}
		// Compare the full Free ordering (size then end pointer), not
		// just size: add must be the strict inverse of remove, so a
		// same-size region can still displace the current minimum.
		if lessFree(smallest.free, free) {
			p.reverseBySize.Delete(smallest)
			p.unplacedQueue.ReplaceOrInsert(smallest.free)
			slot, ok = smallest.slot, true
		}
	}

	if ok {
		p.reverseBySize.ReplaceOrInsert(freeSlot{free: free, slot: slot})
		p.state[slot] = free
		p.changedSlots[slot] = struct{}{}
	} else {
		p.unplacedQueue.ReplaceOrInsert(free)
	}
}

func (p *persistFreeSpace) popUnusedSlot() (int, bool) {
	n := len(p.unusedSlots)
	if n == 0 {
		return 0, false
	}
	slot := p.unusedSlots[n-1]
	p.unusedSlots = p.unusedSlots[:n-1]
	return slot, true
}

func (p *persistFreeSpace) takeChangedSlots() map[int]struct{} {
	changed := p.changedSlots
	p.changedSlots = map[int]struct{}{}
	return changed
}
