// Package minheap provides a binary min-heap ordered by a caller-supplied
// comparison function.
package minheap

// Heap is a binary min-heap. The zero value is not usable; construct with New.
type Heap[T comparable] struct {
	items []T
	less  func(a, b T) bool
}

// New creates a heap ordered by less. The item for which less reports true
// against every other item surfaces first.
func New[T comparable](less func(a, b T) bool) *Heap[T] {
	return &Heap[T]{less: less}
}

// Push adds an item to the heap in O(log n).
func (h *Heap[T]) Push(item T) {
	h.items = append(h.items, item)
	h.bubbleUp(len(h.items) - 1)
}

// Pop removes and returns the minimum item in O(log n).
// The second return value is false when the heap is empty.
func (h *Heap[T]) Pop() (T, bool) {
	var zero T
	if len(h.items) == 0 {
		return zero, false
	}

	min := h.items[0]
	last := h.items[len(h.items)-1]
	h.items[len(h.items)-1] = zero
	h.items = h.items[:len(h.items)-1]
	if len(h.items) > 0 {
		h.items[0] = last
		h.sinkDown(0)
	}
	return min, true
}

// Remove deletes the first occurrence of item from the heap, restoring heap
// order. It reports whether the item was present.
func (h *Heap[T]) Remove(item T) bool {
	for i := range h.items {
		if h.items[i] != item {
			continue
		}

		var zero T
		last := h.items[len(h.items)-1]
		h.items[len(h.items)-1] = zero
		h.items = h.items[:len(h.items)-1]
		if i < len(h.items) {
			h.items[i] = last
			h.bubbleUp(i)
			h.sinkDown(i)
		}
		return true
	}
	return false
}

// Len returns the number of items in the heap.
func (h *Heap[T]) Len() int {
	return len(h.items)
}

func (h *Heap[T]) bubbleUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !h.less(h.items[i], h.items[parent]) {
			return
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *Heap[T]) sinkDown(i int) {
	n := len(h.items)
	for {
		left := 2*i + 1
		right := 2*i + 2
		smallest := i

		if left < n && h.less(h.items[left], h.items[smallest]) {
			smallest = left
		}
		if right < n && h.less(h.items[right], h.items[smallest]) {
			smallest = right
		}
		if smallest == i {
			return
		}
		h.items[i], h.items[smallest] = h.items[smallest], h.items[i]
		i = smallest
	}
}
