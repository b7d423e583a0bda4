package pma

import (
	"math"
	"testing"
)

func heapTestOptions() *Options {
	o := DefaultOptions()
	o.SegmentCapacity = 32
	o.PageSize = 32 * 8 // exactly one segment's worth, keeps heap mode small
	o.PagesPerExtent = 1
	o.MaxMemory = 0 // force heap mode regardless of size
	o.InitialSegments = 4
	return o
}

func TestStorageInsertKeepsSortedOrderWithinSegment(t *testing.T) {
	s, err := NewStorage(heapTestOptions())
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	defer s.Close()

	for _, k := range []int64{30, 10, 20} {
		if _, _, err := s.Insert(0, k, k*10); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}
	keys := s.populatedKeys(0)
	want := []int64{10, 20, 30}
	for i, w := range want {
		if keys[i] != w {
			t.Fatalf("populatedKeys()[%d] = %d, want %d", i, keys[i], w)
		}
	}
	if s.Cardinality() != 3 {
		t.Fatalf("Cardinality() = %d, want 3", s.Cardinality())
	}
}

func TestStorageParityLayout(t *testing.T) {
	s, err := NewStorage(heapTestOptions())
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	defer s.Close()

	s.Insert(0, 1, 1) // even segment: should pack flush right
	lo, hi := s.PopulatedRange(0)
	segLo, segHi := s.SegmentBounds(0)
	if hi != segHi {
		t.Fatalf("even segment populated range hi = %d, want segment hi %d", hi, segHi)
	}
	if lo != segHi-1 {
		t.Fatalf("even segment populated range lo = %d, want %d", lo, segHi-1)
	}
	_ = segLo

	s.Insert(1, 2, 2) // odd segment: should pack flush left
	lo, hi = s.PopulatedRange(1)
	segLo, _ = s.SegmentBounds(1)
	if lo != segLo {
		t.Fatalf("odd segment populated range lo = %d, want segment lo %d", lo, segLo)
	}
	if hi != segLo+1 {
		t.Fatalf("odd segment populated range hi = %d, want %d", hi, segLo+1)
	}
}

func TestStorageInsertReportsPredSucc(t *testing.T) {
	s, err := NewStorage(heapTestOptions())
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	defer s.Close()

	pred, succ, err := s.Insert(0, 10, 100)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if pred != math.MinInt64 || succ != math.MaxInt64 {
		t.Fatalf("first insert pred/succ = (%d, %d), want (-inf, +inf)", pred, succ)
	}

	pred, succ, err = s.Insert(0, 20, 200)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if pred != 10 || succ != math.MaxInt64 {
		t.Fatalf("second insert pred/succ = (%d, %d), want (10, +inf)", pred, succ)
	}

	pred, succ, err = s.Insert(0, 15, 150)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if pred != 10 || succ != 20 {
		t.Fatalf("middle insert pred/succ = (%d, %d), want (10, 20)", pred, succ)
	}
}

func TestStorageRemoveKey(t *testing.T) {
	s, err := NewStorage(heapTestOptions())
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	defer s.Close()

	for _, k := range []int64{1, 2, 3, 4} {
		s.Insert(0, k, k)
	}
	v, ok := s.RemoveKey(0, 2)
	if !ok || v != 2 {
		t.Fatalf("RemoveKey(2) = (%d, %v), want (2, true)", v, ok)
	}
	if s.Cardinality() != 3 {
		t.Fatalf("Cardinality() = %d, want 3", s.Cardinality())
	}
	if _, ok := s.RemoveKey(0, 2); ok {
		t.Fatal("RemoveKey(2) twice should fail the second time")
	}
	keys := s.populatedKeys(0)
	want := []int64{1, 3, 4}
	for i, w := range want {
		if keys[i] != w {
			t.Fatalf("populatedKeys()[%d] = %d, want %d", i, keys[i], w)
		}
	}
}

func TestStorageGatherAcrossWindow(t *testing.T) {
	s, err := NewStorage(heapTestOptions())
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	defer s.Close()

	s.Insert(0, 1, 10)
	s.Insert(0, 2, 20)
	s.Insert(1, 3, 30)

	keys, values := s.Gather(0, 2)
	if len(keys) != 3 {
		t.Fatalf("Gather returned %d keys, want 3", len(keys))
	}
	want := []int64{1, 2, 3}
	for i, w := range want {
		if keys[i] != w {
			t.Fatalf("Gather keys[%d] = %d, want %d", i, keys[i], w)
		}
		if values[i] != w*10 {
			t.Fatalf("Gather values[%d] = %d, want %d", i, values[i], w*10)
		}
	}
}

func TestStorageSetSegmentUpdatesCardinality(t *testing.T) {
	s, err := NewStorage(heapTestOptions())
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	defer s.Close()

	if err := s.SetSegment(0, []int64{1, 2, 3}, []int64{10, 20, 30}); err != nil {
		t.Fatalf("SetSegment: %v", err)
	}
	if s.Cardinality() != 3 {
		t.Fatalf("Cardinality() = %d, want 3", s.Cardinality())
	}
	if err := s.SetSegment(0, []int64{1}, []int64{10}); err != nil {
		t.Fatalf("SetSegment: %v", err)
	}
	if s.Cardinality() != 1 {
		t.Fatalf("Cardinality() after shrink = %d, want 1", s.Cardinality())
	}
}

func TestStorageExtendRejectedInHeapMode(t *testing.T) {
	s, err := NewStorage(heapTestOptions())
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	defer s.Close()

	if err := s.Extend(2); err == nil {
		t.Fatal("expected error extending heap-mode storage")
	}
}

func rewiringTestOptions() *Options {
	o := DefaultOptions()
	o.SegmentCapacity = 32
	o.PagesPerExtent = 1
	o.PageSize = 32 * 8 // one segment per page, so C*8 divides PageSize
	o.MaxMemory = int64(1024) * int64(o.PageSize)
	o.InitialSegments = 64 // >= 1 extent worth, forces rewiring mode
	return o
}

func TestStorageRewiringModeInsertAndExtend(t *testing.T) {
	s, err := NewStorage(rewiringTestOptions())
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	defer s.Close()

	if !s.IsRewiring() {
		t.Fatal("expected rewiring-backed storage for a large initial segment count")
	}

	if _, _, err := s.Insert(0, 5, 50); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if v := s.ValueAt(s.SegmentCapacity() - 1); v != 50 {
		t.Fatalf("ValueAt = %d, want 50", v)
	}

	before := s.NumSegments()
	if err := s.Extend(64); err != nil {
		t.Fatalf("Extend: %v", err)
	}
	if s.NumSegments() != before+64 {
		t.Fatalf("NumSegments() = %d, want %d", s.NumSegments(), before+64)
	}
	if s.Size(before) != 0 {
		t.Fatalf("newly extended segment has size %d, want 0", s.Size(before))
	}
}
