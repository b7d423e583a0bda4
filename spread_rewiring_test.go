package pma

import "testing"

func TestSpreadRewiringFallsBackToLocalForSubExtentWindow(t *testing.T) {
	s, err := NewStorage(heapTestOptions()) // heap mode: no rewired substrate at all
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	defer s.Close()

	idx := NewStaticIndex(4)
	idx.Rebuild(s.NumSegments())

	plan := []PartitionEntry{{Cardinality: 1, Segments: 2}}
	pred, succ, err := SpreadRewiring(s, idx, 0, 2, plan, 7, 70, true)
	if err != nil {
		t.Fatalf("SpreadRewiring: %v", err)
	}
	if s.Cardinality() != 1 {
		t.Fatalf("Cardinality() = %d, want 1", s.Cardinality())
	}
	_ = pred
	_ = succ
}

func TestSpreadRewiringStreamsThroughScratchExtents(t *testing.T) {
	opts := rewiringTestOptions() // segment_capacity 32, 1 segment per extent
	s, err := NewStorage(opts)
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	defer s.Close()
	if s.SegmentsPerExtent() != 1 {
		t.Fatalf("SegmentsPerExtent() = %d, want 1 for this fixture", s.SegmentsPerExtent())
	}

	idx := NewStaticIndex(4)
	idx.Rebuild(s.NumSegments())

	// Seed segment 0 with data that should end up split across segments
	// 0 and 1 after an even two-segment spread.
	for _, k := range []int64{1, 2, 3, 4} {
		if _, _, err := s.Insert(0, k, k*100); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	plan := []PartitionEntry{{Cardinality: 4, Segments: 2}}
	pred, succ, err := SpreadRewiring(s, idx, 0, 2, plan, 0, 0, false)
	if err != nil {
		t.Fatalf("SpreadRewiring: %v", err)
	}
	_ = pred
	_ = succ

	if s.Size(0) != 2 || s.Size(1) != 2 {
		t.Fatalf("sizes after spread = (%d, %d), want (2, 2)", s.Size(0), s.Size(1))
	}
	got := append(s.populatedKeys(0), s.populatedKeys(1)...)
	want := []int64{1, 2, 3, 4}
	for i, w := range want {
		if got[i] != w {
			t.Fatalf("spread output[%d] = %d, want %d", i, got[i], w)
		}
	}
	if got := idx.Find(3); got != 1 {
		t.Fatalf("index.Find(3) = %d, want 1 (separator refreshed through the scratch-extent path)", got)
	}
}

func TestSpreadRewiringFallsBackWhenWindowNotExtentAligned(t *testing.T) {
	opts := rewiringTestOptions()
	opts.SegmentCapacity = 32
	opts.PagesPerExtent = 2 // 2 segments per extent now
	opts.PageSize = 32 * 8
	opts.MaxMemory = int64(1024) * int64(opts.PageSize)
	opts.InitialSegments = 64
	s, err := NewStorage(opts)
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	defer s.Close()
	if s.SegmentsPerExtent() != 2 {
		t.Fatalf("SegmentsPerExtent() = %d, want 2", s.SegmentsPerExtent())
	}

	idx := NewStaticIndex(4)
	idx.Rebuild(s.NumSegments())

	// A single-segment window (length 1) is never extent-aligned when
	// segments_per_extent is 2, so this must fall back to SpreadLocal
	// rather than erroring.
	plan := []PartitionEntry{{Cardinality: 1, Segments: 1}}
	if _, _, err := SpreadRewiring(s, idx, 1, 1, plan, 9, 90, true); err != nil {
		t.Fatalf("SpreadRewiring fallback: %v", err)
	}
	if s.Cardinality() != 1 {
		t.Fatalf("Cardinality() = %d, want 1", s.Cardinality())
	}
}
