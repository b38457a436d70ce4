package minheap

import (
	"math/rand"
	"sort"
	"testing"
)

func intLess(a, b int) bool { return a < b }

func TestHeap_PopOrder(t *testing.T) {
	h := New(intLess)
	for _, v := range []int{5, 3, 8, 1, 9, 2, 7} {
		h.Push(v)
	}

	want := []int{1, 2, 3, 5, 7, 8, 9}
	for _, w := range want {
		got, ok := h.Pop()
		if !ok {
			t.Fatalf("heap exhausted early, expected %d", w)
		}
		if got != w {
			t.Errorf("expected %d, got %d", w, got)
		}
	}

	if _, ok := h.Pop(); ok {
		t.Error("expected empty heap after draining")
	}
}

func TestHeap_PopEmpty(t *testing.T) {
	h := New(intLess)
	if v, ok := h.Pop(); ok {
		t.Errorf("expected no item from empty heap, got %d", v)
	}
}

func TestHeap_Remove(t *testing.T) {
	h := New(intLess)
	for _, v := range []int{4, 1, 6, 2, 9} {
		h.Push(v)
	}

	if !h.Remove(6) {
		t.Fatal("expected Remove to find 6")
	}
	if h.Remove(42) {
		t.Error("expected Remove to miss absent item")
	}

	var drained []int
	for {
		v, ok := h.Pop()
		if !ok {
			break
		}
		drained = append(drained, v)
	}

	want := []int{1, 2, 4, 9}
	if len(drained) != len(want) {
		t.Fatalf("expected %v, got %v", want, drained)
	}
	for i := range want {
		if drained[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, drained)
		}
	}
}

func TestHeap_RemoveLast(t *testing.T) {
	h := New(intLess)
	h.Push(3)
	h.Push(1)

	if !h.Remove(3) {
		t.Fatal("expected Remove to find 3")
	}
	v, ok := h.Pop()
	if !ok || v != 1 {
		t.Errorf("expected 1 remaining, got %d (ok=%v)", v, ok)
	}
}

func TestHeap_RandomizedOrdering(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	h := New(intLess)

	values := make([]int, 500)
	for i := range values {
		values[i] = rng.Intn(10000)
		h.Push(values[i])
	}
	sort.Ints(values)

	for i, w := range values {
		got, ok := h.Pop()
		if !ok || got != w {
			t.Fatalf("pop %d: expected %d, got %d (ok=%v)", i, w, got, ok)
		}
	}
}

type scored struct {
	id    string
	score float64
}

func TestHeap_StructTieBreak(t *testing.T) {
	// Equal scores fall back to the ordering encoded in less.
	less := func(a, b scored) bool {
		if a.score != b.score {
			return a.score < b.score
		}
		return a.id < b.id
	}

	h := New(less)
	h.Push(scored{id: "drv_b", score: 10})
	h.Push(scored{id: "drv_a", score: 10})
	h.Push(scored{id: "drv_c", score: 5})

	first, _ := h.Pop()
	if first.id != "drv_c" {
		t.Errorf("expected lowest score first, got %q", first.id)
	}
	second, _ := h.Pop()
	if second.id != "drv_a" {
		t.Errorf("expected lexicographic tie-break, got %q", second.id)
	}
}
