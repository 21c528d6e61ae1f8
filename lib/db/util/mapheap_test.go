package util

import (
	"math/rand"
	"sort"
	"testing"
)

func TestNewMapHeap(t *testing.T) {
	mh := NewMapHeap[string]()

	if mh.Len() != 0 {
		t.Errorf("New heap should be empty, but has length %d", mh.Len())
	}
	if _, _, ok := mh.Peek(); ok {
		t.Error("Peek on empty heap should return ok=false")
	}
	if _, _, ok := mh.PopMin(); ok {
		t.Error("PopMin on empty heap should return ok=false")
	}
}

func TestSetAndPeek(t *testing.T) {
	mh := NewMapHeap[string]()
	mh.Set("a", 100)
	mh.Set("b", 200)
	mh.Set("c", 50)

	if mh.Len() != 3 {
		t.Errorf("Heap should have 3 items, but has %d", mh.Len())
	}
	for _, k := range []string{"a", "b", "c"} {
		if !mh.Contains(k) {
			t.Errorf("Heap should contain key %s", k)
		}
	}

	key, prio, ok := mh.Peek()
	if !ok || key != "c" || prio != 50 {
		t.Errorf("Expected min item to be (c,50), got (%s,%d)", key, prio)
	}
}

func TestSetReplacesPriority(t *testing.T) {
	mh := NewMapHeap[string]()
	mh.Set("a", 100)
	mh.Set("b", 200)
	mh.Set("a", 300)

	if mh.Len() != 2 {
		t.Fatalf("Replacing a priority must not add an item, len=%d", mh.Len())
	}
	if p, _ := mh.Priority("a"); p != 300 {
		t.Errorf("Key a should have priority 300, got %d", p)
	}
	if key, _, _ := mh.Peek(); key != "b" {
		t.Errorf("Min item should now be b, got %s", key)
	}

	mh.Set("b", 500)
	if key, prio, _ := mh.Peek(); key != "a" || prio != 300 {
		t.Errorf("Min item should now be (a,300), got (%s,%d)", key, prio)
	}
}

func TestRemove(t *testing.T) {
	mh := NewMapHeap[int]()
	mh.Set(1, 100)
	mh.Set(2, 200)
	mh.Set(3, 300)

	prio, ok := mh.Remove(2)
	if !ok || prio != 200 {
		t.Fatalf("Remove(2) = (%d,%v), want (200,true)", prio, ok)
	}
	if mh.Contains(2) || mh.Len() != 2 {
		t.Error("Key 2 should be gone")
	}
	if _, ok := mh.Remove(99); ok {
		t.Error("Remove should return false for a missing key")
	}
}

func TestPopOrder(t *testing.T) {
	mh := NewMapHeap[int]()
	prios := rand.New(rand.NewSource(7)).Perm(500)
	for k, p := range prios {
		mh.Set(k, int64(p))
	}

	sorted := append([]int(nil), prios...)
	sort.Ints(sorted)

	for i, want := range sorted {
		key, prio, ok := mh.PopMin()
		if !ok {
			t.Fatalf("Heap empty after %d pops", i)
		}
		if prio != int64(want) || prios[key] != want {
			t.Fatalf("Pop %d: expected priority %d, got key %d priority %d", i, want, key, prio)
		}
		if mh.Contains(key) {
			t.Fatalf("Popped key %d still indexed", key)
		}
	}
	if mh.Len() != 0 {
		t.Errorf("Heap should be empty, has %d items", mh.Len())
	}
}

func TestRemoveKeepsHeapOrder(t *testing.T) {
	mh := NewMapHeap[int]()
	for i := 0; i < 100; i++ {
		mh.Set(i, int64(100-i))
	}
	for i := 0; i < 100; i += 3 {
		mh.Remove(i)
	}

	last := int64(-1)
	for mh.Len() > 0 {
		key, prio, _ := mh.PopMin()
		if key%3 == 0 {
			t.Fatalf("Removed key %d was popped", key)
		}
		if prio < last {
			t.Fatalf("Priorities out of order: %d after %d", prio, last)
		}
		last = prio
	}
}

func TestClear(t *testing.T) {
	mh := NewMapHeap[string]()
	mh.Set("x", 1)
	mh.Set("y", 2)
	mh.Clear()

	if mh.Len() != 0 || mh.Contains("x") {
		t.Error("Clear should drop all keys")
	}
	mh.Set("x", 3)
	if key, prio, _ := mh.Peek(); key != "x" || prio != 3 {
		t.Error("Heap unusable after Clear")
	}
}

func BenchmarkMapHeapSet(b *testing.B) {
	mh := NewMapHeap[int]()
	for i := 0; i < b.N; i++ {
		mh.Set(i%4096, int64(i))
	}
}
