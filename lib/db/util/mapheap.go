// This file provides the expiry queue of the ttl manager: a binary min-heap
// ordered by an int64 priority (an expiry instant in unix nanoseconds) that
// is indexed by key, so a record's deadline can be replaced or dropped in
// O(log n) when the record is updated or deleted.
//
// MapHeap is not safe for concurrent use. The owner serialises access.
package util

import (
	"container/heap"
	"fmt"
)

// heapItem is a single scheduled key
type heapItem[K comparable] struct {
	key      K
	priority int64
	index    int // position in the heap, maintained by heap.Interface
}

func (i *heapItem[K]) String() string {
	return fmt.Sprintf("{Key: %v, Priority: %d}", i.key, i.priority)
}

// heapSlice implements heap.Interface and keeps the key index in sync
type heapSlice[K comparable] struct {
	items []*heapItem[K]
	byKey map[K]*heapItem[K]
}

func (h *heapSlice[K]) Len() int { return len(h.items) }

func (h *heapSlice[K]) Less(i, j int) bool { return h.items[i].priority < h.items[j].priority }

func (h *heapSlice[K]) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}

func (h *heapSlice[K]) Push(x any) {
	it := x.(*heapItem[K])
	it.index = len(h.items)
	h.items = append(h.items, it)
	h.byKey[it.key] = it
}

func (h *heapSlice[K]) Pop() any {
	n := len(h.items)
	it := h.items[n-1]
	h.items[n-1] = nil
	it.index = -1
	h.items = h.items[:n-1]
	delete(h.byKey, it.key)
	return it
}

// MapHeap is a min-heap of keys by priority with O(1) key lookup
type MapHeap[K comparable] struct {
	h heapSlice[K]
}

// NewMapHeap creates an empty heap
func NewMapHeap[K comparable]() *MapHeap[K] {
	return &MapHeap[K]{h: heapSlice[K]{
		items: make([]*heapItem[K], 0),
		byKey: make(map[K]*heapItem[K]),
	}}
}

// Len returns the number of scheduled keys
func (m *MapHeap[K]) Len() int { return m.h.Len() }

// Set schedules key with priority, replacing an earlier priority of the
// same key
func (m *MapHeap[K]) Set(key K, priority int64) {
	if it, ok := m.h.byKey[key]; ok {
		it.priority = priority
		heap.Fix(&m.h, it.index)
		return
	}
	heap.Push(&m.h, &heapItem[K]{key: key, priority: priority})
}

// Remove unschedules key and returns its priority
func (m *MapHeap[K]) Remove(key K) (int64, bool) {
	it, ok := m.h.byKey[key]
	if !ok {
		return 0, false
	}
	heap.Remove(&m.h, it.index)
	return it.priority, true
}

// Peek returns the key with the lowest priority without removing it
func (m *MapHeap[K]) Peek() (K, int64, bool) {
	if len(m.h.items) == 0 {
		var zero K
		return zero, 0, false
	}
	it := m.h.items[0]
	return it.key, it.priority, true
}

// PopMin removes and returns the key with the lowest priority
func (m *MapHeap[K]) PopMin() (K, int64, bool) {
	if len(m.h.items) == 0 {
		var zero K
		return zero, 0, false
	}
	it := heap.Pop(&m.h).(*heapItem[K])
	return it.key, it.priority, true
}

// Priority returns the scheduled priority of key
func (m *MapHeap[K]) Priority(key K) (int64, bool) {
	it, ok := m.h.byKey[key]
	if !ok {
		return 0, false
	}
	return it.priority, true
}

// Contains checks if key is scheduled
func (m *MapHeap[K]) Contains(key K) bool {
	_, ok := m.h.byKey[key]
	return ok
}

// Clear drops all scheduled keys
func (m *MapHeap[K]) Clear() {
	m.h.items = m.h.items[:0]
	clear(m.h.byKey)
}
