package pma

import "testing"

func flatThresholds(rho, theta float64) ThresholdFunc {
	return func(int) (float64, float64) { return rho, theta }
}

func totalCardinality(entries []PartitionEntry) int {
	sum := 0
	for _, e := range entries {
		sum += e.Cardinality
	}
	return sum
}

func totalSegments(entries []PartitionEntry) int {
	sum := 0
	for _, e := range entries {
		sum += e.Segments
	}
	return sum
}

func TestPlanPartitionsBaseCaseSingleSegment(t *testing.T) {
	out := PlanPartitions(64, 1, 40, 1, nil, false, true, flatThresholds(0.3, 0.7))
	if len(out) != 1 || out[0].Cardinality != 40 || out[0].Segments != 1 {
		t.Fatalf("got %+v, want one (40, 1) partition", out)
	}
}

func TestPlanPartitionsNoWeightsDegradesToUniform(t *testing.T) {
	out := PlanPartitions(64, 3, 200, 4, nil, false, true, flatThresholds(0.3, 0.7))
	if len(out) != 1 || out[0].Segments != 4 || out[0].Cardinality != 200 {
		t.Fatalf("got %+v, want a single even (200, 4) partition", out)
	}
}

func TestPlanPartitionsResizeForbidsUnevenSplitAtTwoSegments(t *testing.T) {
	weights := []PartitionWeight{{Position: 5, Count: 100}}
	out := PlanPartitions(64, 2, 80, 2, weights, true, true, flatThresholds(0.3, 0.7))
	if len(out) != 1 || out[0].Segments != 2 || out[0].Cardinality != 80 {
		t.Fatalf("got %+v, want a single even (80, 2) partition despite weights", out)
	}
}

func TestPlanPartitionsCardinalityAndSegmentsConserved(t *testing.T) {
	weights := []PartitionWeight{
		{Position: 10, Count: 50},
		{Position: 100, Count: 5},
		{Position: 200, Count: 30},
	}
	out := PlanPartitions(64, 4, 256, 8, weights, false, true, flatThresholds(0.2, 0.8))
	if got := totalCardinality(out); got != 256 {
		t.Fatalf("totalCardinality = %d, want 256", got)
	}
	if got := totalSegments(out); got != 8 {
		t.Fatalf("totalSegments = %d, want 8", got)
	}
	for _, e := range out {
		if e.Cardinality > e.Segments*64 {
			t.Fatalf("partition %+v exceeds segment_count*capacity", e)
		}
	}
}

func TestPlanPartitionsBiasesTowardHotRegion(t *testing.T) {
	// A heavy concentration of weight near the start of the window should
	// pull the split point so the left side (which contains the hot
	// weights) ends up less full relative to its capacity than an even
	// split would leave it, biasing free space toward the hot region.
	weights := []PartitionWeight{
		{Position: 2, Count: 1000},
		{Position: 4, Count: 1000},
	}
	out := PlanPartitions(64, 3, 120, 4, weights, false, true, flatThresholds(0.1, 0.9))
	if got := totalCardinality(out); got != 120 {
		t.Fatalf("totalCardinality = %d, want 120", got)
	}
	if got := totalSegments(out); got != 4 {
		t.Fatalf("totalSegments = %d, want 4", got)
	}
	leftHalf, segs := 0, 0
	for _, e := range out {
		if segs >= 2 {
			break
		}
		leftHalf += e.Cardinality
		segs += e.Segments
	}
	if segs != 2 || leftHalf >= 60 {
		t.Fatalf("left half holds %d elements over %d segments, want fewer than the even share 60 over 2", leftHalf, segs)
	}
}

func TestPlanPartitionsCanFillSegmentsFalseLeavesSlack(t *testing.T) {
	weights := []PartitionWeight{{Position: 50, Count: 10}}
	withSlack := PlanPartitions(64, 3, 200, 4, weights, false, false, flatThresholds(0.1, 0.95))
	for _, e := range withSlack {
		if e.Cardinality > e.Segments*64-e.Segments {
			t.Fatalf("partition %+v should leave at least one free slot per segment", e)
		}
	}
}
