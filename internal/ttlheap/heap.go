// Package ttlheap implements the global TTL min-heap described in spec
// §3/§4.2: a flat array ordered by absolute expiration deadline, where every
// element carries a back-reference to its owner so that a heap-internal
// swap always leaves the owner able to report its own current heap index.
//
// The heap is built on top of container/heap (the idiomatic stdlib
// mechanism for an array-backed binary heap with custom ordering); the
// back-reference write-back happens inside the Swap/Push/Pop methods that
// satisfy heap.Interface, which is exactly where spec §4.2 requires it to
// happen ("every heap mutation that moves a slot must write the new index
// to the slot's back_ref").
//
// Heap is not safe for concurrent use; the engine protects it with the
// dedicated heap mutex described in spec §5.
//
// © 2025 minis authors. MIT License.
package ttlheap

import "container/heap"

// NoIndex is the sentinel heap index meaning "not currently scheduled",
// stored in an owner's own heapIdx field. Naming it closes the Open
// Question in spec §9 about the bare `(size_t)-1` literal.
const NoIndex = -1

// Owner is the back-reference target: anything that can be placed in the
// heap must be able to report and accept its current slot index.
type Owner interface {
	HeapIndex() int
	SetHeapIndex(idx int)
}

type slot struct {
	deadline uint64
	owner    Owner
}

// Heap is a min-heap of (deadline, owner) pairs ordered by deadline.
type Heap struct {
	slots []slot
}

// New constructs an empty heap.
func New() *Heap {
	return &Heap{}
}

// Len implements heap.Interface / Heap.Len.
func (h *Heap) Len() int { return len(h.slots) }

// Less implements heap.Interface.
func (h *Heap) Less(i, j int) bool { return h.slots[i].deadline < h.slots[j].deadline }

// Swap implements heap.Interface and is the single place that keeps each
// owner's heapIdx in sync with its actual slot.
func (h *Heap) Swap(i, j int) {
	h.slots[i], h.slots[j] = h.slots[j], h.slots[i]
	h.slots[i].owner.SetHeapIndex(i)
	h.slots[j].owner.SetHeapIndex(j)
}

// Push implements heap.Interface. Called only via heap.Push; use Add from
// outside this package. The freshly appended owner's index is set
// immediately, since sift-up may perform zero swaps (e.g. the new minimum
// stays in place) and would otherwise leave the owner's index stale.
func (h *Heap) Push(x any) {
	s := x.(slot)
	h.slots = append(h.slots, s)
	s.owner.SetHeapIndex(len(h.slots) - 1)
}

// Pop implements heap.Interface. Called only via heap.Pop/heap.Remove; use
// the package-level Add/RemoveAt/PopMin helpers from outside. The removed
// owner's index is reset to NoIndex so a stale index never lingers on a
// detached entry.
func (h *Heap) Pop() any {
	n := len(h.slots)
	s := h.slots[n-1]
	h.slots[n-1] = slot{}
	h.slots = h.slots[:n-1]
	s.owner.SetHeapIndex(NoIndex)
	return s
}

// Add inserts owner with the given absolute deadline (microseconds) and
// leaves owner.heapIdx pointing at its new slot.
func (h *Heap) Add(owner Owner, deadlineUs uint64) {
	heap.Push(h, slot{deadline: deadlineUs, owner: owner})
}

// UpdateDeadline changes the deadline of the owner currently at idx and
// restores heap order. idx must be the owner's current HeapIndex().
func (h *Heap) UpdateDeadline(idx int, deadlineUs uint64) bool {
	if idx < 0 || idx >= len(h.slots) {
		return false
	}
	h.slots[idx].deadline = deadlineUs
	heap.Fix(h, idx)
	return true
}

// RemoveAt detaches the owner currently at idx, returning it. Its
// HeapIndex() is reset to NoIndex.
func (h *Heap) RemoveAt(idx int) (Owner, bool) {
	if idx < 0 || idx >= len(h.slots) {
		return nil, false
	}
	removed := heap.Remove(h, idx).(slot)
	return removed.owner, true
}

// Top returns the owner and deadline with the smallest deadline, without
// removing it.
func (h *Heap) Top() (owner Owner, deadlineUs uint64, ok bool) {
	if len(h.slots) == 0 {
		return nil, 0, false
	}
	return h.slots[0].owner, h.slots[0].deadline, true
}

// PopMin removes and returns the owner with the smallest deadline.
func (h *Heap) PopMin() (owner Owner, deadlineUs uint64, ok bool) {
	if len(h.slots) == 0 {
		return nil, 0, false
	}
	deadlineUs = h.slots[0].deadline
	owner = heap.Pop(h).(slot).owner
	return owner, deadlineUs, true
}

// Empty reports whether the heap currently holds no entries.
func (h *Heap) Empty() bool { return len(h.slots) == 0 }

// Free drops the heap's backing array. The Heap must not be used afterward.
func (h *Heap) Free() { h.slots = nil }
