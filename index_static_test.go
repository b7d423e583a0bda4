package pma

import (
	"math"
	"testing"
)

func TestHyperceil(t *testing.T) {
	cases := []struct{ in, want int }{
		{1, 2}, {2, 2}, {3, 4}, {4, 4}, {5, 8}, {64, 64}, {65, 128},
	}
	for _, c := range cases {
		if got := hyperceil(c.in); got != c.want {
			t.Errorf("hyperceil(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestStaticIndexFindAfterSeparatorUpdates(t *testing.T) {
	idx := NewStaticIndex(4)
	idx.Rebuild(10)

	separators := []int64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90}
	for s, k := range separators {
		idx.SetSeparatorKey(s, k)
	}

	cases := []struct {
		key  int64
		want int
	}{
		{-5, 0},
		{0, 0},
		{5, 0},
		{10, 1},
		{25, 2},
		{89, 8},
		{90, 9},
		{1000, 9},
	}
	for _, c := range cases {
		if got := idx.Find(c.key); got != c.want {
			t.Errorf("Find(%d) = %d, want %d", c.key, got, c.want)
		}
	}
}

func TestStaticIndexAllEmptyRoutesToZero(t *testing.T) {
	idx := NewStaticIndex(4)
	idx.Rebuild(5)

	if got := idx.Find(0); got != 0 {
		t.Fatalf("Find(0) on an all-empty index = %d, want 0", got)
	}
	if got := idx.Find(math.MinInt64); got != 0 {
		t.Fatalf("Find(MinInt64) on an all-empty index = %d, want 0", got)
	}
}

func TestStaticIndexFindFirstAndFindLast(t *testing.T) {
	idx := NewStaticIndex(4)
	idx.Rebuild(6)
	separators := []int64{0, 10, 10, 30, 40, 50}
	for s, k := range separators {
		idx.SetSeparatorKey(s, k)
	}

	if got := idx.FindFirst(10); got != 1 {
		t.Fatalf("FindFirst(10) = %d, want 1", got)
	}
	if got := idx.FindLast(10); got != 2 {
		t.Fatalf("FindLast(10) = %d, want 2", got)
	}
	if got := idx.FindFirst(25); got != 3 {
		t.Fatalf("FindFirst(25) = %d, want 3", got)
	}
}

func TestStaticIndexRebuildResets(t *testing.T) {
	idx := NewStaticIndex(4)
	idx.Rebuild(4)
	idx.SetSeparatorKey(0, 5)
	idx.SetSeparatorKey(1, 15)

	idx.Rebuild(4)
	if got := idx.Find(15); got != 0 {
		t.Fatalf("Find(15) after Rebuild() = %d, want 0 (all separators reset to MaxInt64)", got)
	}
}
