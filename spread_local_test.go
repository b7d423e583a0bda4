package pma

import (
	"math"
	"testing"
)

func TestSpreadLocalInsertIntoEmptyWindow(t *testing.T) {
	s, err := NewStorage(heapTestOptions())
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	defer s.Close()

	idx := NewStaticIndex(4)
	idx.Rebuild(s.NumSegments())

	plan := []PartitionEntry{{Cardinality: 1, Segments: 2}}
	pred, succ, err := SpreadLocal(s, idx, 0, 2, plan, 5, 50, true)
	if err != nil {
		t.Fatalf("SpreadLocal: %v", err)
	}
	if pred != math.MinInt64 || succ != math.MaxInt64 {
		t.Fatalf("pred/succ = (%d, %d), want (-inf, +inf)", pred, succ)
	}
	if s.Cardinality() != 1 {
		t.Fatalf("Cardinality() = %d, want 1", s.Cardinality())
	}

	found := idx.Find(5)
	if s.Size(found) == 0 {
		t.Fatalf("index routed key 5 to segment %d, which is empty", found)
	}
}

func TestSpreadLocalRedistributesAndRefreshesIndex(t *testing.T) {
	s, err := NewStorage(heapTestOptions())
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	defer s.Close()

	idx := NewStaticIndex(4)
	idx.Rebuild(s.NumSegments())

	// Seed an unevenly distributed window (all 6 keys sit in segment 0)
	// that a spread should redistribute evenly across the pair.
	for _, k := range []int64{1, 2, 3} {
		if _, _, err := s.Insert(0, k, k*10); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	for _, k := range []int64{4, 5, 6} {
		if _, _, err := s.Insert(0, k, k*10); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	plan := []PartitionEntry{{Cardinality: 6, Segments: 2}}
	pred, succ, err := SpreadLocal(s, idx, 0, 2, plan, 0, 0, false)
	if err != nil {
		t.Fatalf("SpreadLocal: %v", err)
	}
	if pred != math.MinInt64 || succ != math.MaxInt64 {
		t.Fatalf("pred/succ with no insert = (%d, %d), want (-inf, +inf)", pred, succ)
	}

	if s.Size(0) != 3 || s.Size(1) != 3 {
		t.Fatalf("sizes after even spread = (%d, %d), want (3, 3)", s.Size(0), s.Size(1))
	}
	got := append(s.populatedKeys(0), s.populatedKeys(1)...)
	want := []int64{1, 2, 3, 4, 5, 6}
	for i, w := range want {
		if got[i] != w {
			t.Fatalf("spread output[%d] = %d, want %d", i, got[i], w)
		}
	}

	if got := idx.Find(4); got != 1 {
		t.Fatalf("index.Find(4) = %d, want 1 (refreshed separator for segment 1)", got)
	}
}
