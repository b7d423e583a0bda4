package atree

import (
	"math/rand"
	"testing"
)

func TestInsertFindAny(t *testing.T) {
	tr := New[int64, string](4)
	tr.Insert(10, "ten")
	tr.Insert(20, "twenty")
	tr.Insert(5, "five")

	if v, ok := tr.FindAny(20); !ok || v != "twenty" {
		t.Fatalf("FindAny(20) = (%q, %v), want (twenty, true)", v, ok)
	}
	if _, ok := tr.FindAny(999); ok {
		t.Fatal("FindAny(999) found a value that was never inserted")
	}
	if tr.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", tr.Len())
	}
}

func TestInsertManySplitsAndLeafChainStaysSorted(t *testing.T) {
	tr := New[int64, int](4)
	const n = 500
	for i := int64(0); i < n; i++ {
		tr.Insert(i, int(i))
	}
	if tr.Len() != n {
		t.Fatalf("Len() = %d, want %d", tr.Len(), n)
	}

	leaf, idx := tr.First()
	var got []int64
	for leaf != nil {
		for idx < leaf.Len() {
			got = append(got, leaf.Key(idx))
			idx++
		}
		leaf = leaf.Next()
		idx = 0
	}
	if len(got) != n {
		t.Fatalf("leaf chain length = %d, want %d", len(got), n)
	}
	for i := int64(0); i < n; i++ {
		if got[i] != i {
			t.Fatalf("leaf chain out of order at %d: got %d, want %d", i, got[i], i)
		}
	}
}

func TestRemoveAnyShrinksTreeAndPreservesOrder(t *testing.T) {
	tr := New[int64, int](4)
	const n = 300
	for i := int64(0); i < n; i++ {
		tr.Insert(i, int(i))
	}
	for i := int64(0); i < n; i += 2 {
		if _, ok := tr.RemoveAny(i); !ok {
			t.Fatalf("RemoveAny(%d) = false, want true", i)
		}
	}
	if tr.Len() != n/2 {
		t.Fatalf("Len() = %d, want %d", tr.Len(), n/2)
	}
	for i := int64(0); i < n; i++ {
		_, ok := tr.FindAny(i)
		want := i%2 == 1
		if ok != want {
			t.Fatalf("FindAny(%d) = %v, want %v", i, ok, want)
		}
	}

	leaf, idx := tr.First()
	var prev int64 = -1
	count := 0
	for leaf != nil {
		for idx < leaf.Len() {
			k := leaf.Key(idx)
			if k <= prev {
				t.Fatalf("leaf chain not strictly increasing: %d after %d", k, prev)
			}
			prev = k
			count++
			idx++
		}
		leaf = leaf.Next()
		idx = 0
	}
	if count != n/2 {
		t.Fatalf("surviving leaf count = %d, want %d", count, n/2)
	}
}

func TestRemoveAllLeavesEmptyTree(t *testing.T) {
	tr := New[int64, int](4)
	keys := rand.New(rand.NewSource(1)).Perm(200)
	for _, k := range keys {
		tr.Insert(int64(k), k)
	}
	for _, k := range keys {
		if _, ok := tr.RemoveAny(int64(k)); !ok {
			t.Fatalf("RemoveAny(%d) = false", k)
		}
	}
	if tr.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", tr.Len())
	}
	leaf, idx := tr.First()
	if leaf != nil {
		t.Fatalf("First() returned a leaf after removing everything: %v (idx=%d)", leaf, idx)
	}
}

func TestFindFirstAndFindLast(t *testing.T) {
	tr := New[int64, int](4)
	for _, k := range []int64{0, 10, 20, 30, 40} {
		tr.Insert(k, int(k))
	}

	leaf, idx := tr.FindFirst(15)
	if leaf.Key(idx) != 20 {
		t.Fatalf("FindFirst(15) = %d, want 20", leaf.Key(idx))
	}
	leaf, idx = tr.FindLast(15)
	if leaf.Key(idx) != 10 {
		t.Fatalf("FindLast(15) = %d, want 10", leaf.Key(idx))
	}
	leaf, idx = tr.FindFirst(0)
	if leaf.Key(idx) != 0 {
		t.Fatalf("FindFirst(0) = %d, want 0", leaf.Key(idx))
	}
	leaf, idx = tr.FindLast(40)
	if leaf.Key(idx) != 40 {
		t.Fatalf("FindLast(40) = %d, want 40", leaf.Key(idx))
	}
}

func TestRemoveMatchingPicksExactDuplicate(t *testing.T) {
	tr := New[int64, int](4)
	for s := 0; s < 20; s++ {
		tr.Insert(0, s) // every entry shares key 0, distinguished only by value
	}
	if tr.Len() != 20 {
		t.Fatalf("Len() = %d, want 20", tr.Len())
	}

	if _, ok := tr.RemoveMatching(0, func(v int) bool { return v == 13 }); !ok {
		t.Fatal("RemoveMatching(0, ==13) = false, want true")
	}
	if tr.Len() != 19 {
		t.Fatalf("Len() = %d, want 19", tr.Len())
	}
	if _, ok := tr.FindAny(99); ok {
		t.Fatal("FindAny(99) found a value for a key that was never inserted")
	}

	seen := map[int]bool{}
	leaf, idx := tr.First()
	for leaf != nil {
		for idx < leaf.Len() {
			seen[leaf.Value(idx)] = true
			idx++
		}
		leaf = leaf.Next()
		idx = 0
	}
	if seen[13] {
		t.Fatal("value 13 still present after RemoveMatching")
	}
	if len(seen) != 19 {
		t.Fatalf("surviving distinct values = %d, want 19", len(seen))
	}
}

func TestClearResetsTree(t *testing.T) {
	tr := New[int64, int](4)
	for i := int64(0); i < 50; i++ {
		tr.Insert(i, int(i))
	}
	tr.Clear()
	if tr.Len() != 0 {
		t.Fatalf("Len() after Clear() = %d, want 0", tr.Len())
	}
	if _, ok := tr.FindAny(0); ok {
		t.Fatal("FindAny(0) found a value after Clear()")
	}
}
