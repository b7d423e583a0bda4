package pma

import "math"

// PartitionWeight is one hot-spot record the adaptive partitioner
// considers when splitting a window (spec.md §4.8 "a vector W of
// weights"). Position is the record's rank within the window, counted in
// cardinality order from the window's start (not a raw storage-slot
// index), so it can be compared directly against a candidate split
// cardinality c.
type PartitionWeight struct {
	Position int
	Count    uint32
}

// PartitionEntry is one emitted partition: a run of Segments adjacent
// segments that each receive an equal share of Cardinality elements
// (spec.md §4.8 "Output").
type PartitionEntry struct {
	Cardinality int
	Segments    int
}

// ThresholdFunc returns the (rho, theta) density bounds for a calibrator
// level, as produced by a *densityCalculator.Thresholds closed over the
// caller's (height, numSegments) context (§4.6). Kept as a function value
// rather than threading a *densityCalculator through so partition.go
// stays testable without constructing one.
type ThresholdFunc func(level int) (rho, theta float64)

// PlanPartitions runs the binary-recursion adaptive partitioner of
// spec.md §4.8 over a window spanning numSegments segments at the given
// calibrator height, producing a sequence of (cardinality, segment_count)
// partitions summing to cardinality and numSegments respectively.
//
// Grounded on original_source/pma/adaptive/bh07_v2/adaptive_rebalancing.cpp's
// compute_rec: same base cases, same complementary-fill / density-corridor
// intersection, same incremental left/right weight-sum sweep to minimise
// the balance objective. Adapted from the C++'s raw storage-slot index
// arithmetic (which scales weight positions by segment_capacity to compare
// against array offsets) to cardinality-ranked PartitionWeight.Position,
// matching spec.md's own description of the objective in terms of a split
// offset "inside the window" rather than a raw array index.
func PlanPartitions(segmentCapacity int, height int, cardinality int, numSegments int, weights []PartitionWeight, resize, canFillSegments bool, thresholds ThresholdFunc) []PartitionEntry {
	var out []PartitionEntry
	recursePartition(segmentCapacity, height, cardinality, numSegments, weights, resize, canFillSegments, thresholds, &out)
	return out
}

func recursePartition(segmentCapacity, height, cardinality, numSegments int, weights []PartitionWeight, resize, canFillSegments bool, thresholds ThresholdFunc, out *[]PartitionEntry) {
	// 1. Base case: a single segment absorbs whatever cardinality remains.
	if numSegments == 1 {
		*out = append(*out, PartitionEntry{Cardinality: cardinality, Segments: 1})
		return
	}

	// 2. No hot-spot weights, or a resize forbidding uneven splits at the
	// two lowest levels: fall back to an even split.
	if len(weights) == 0 || (resize && numSegments == 2) {
		*out = append(*out, PartitionEntry{Cardinality: cardinality, Segments: numSegments})
		return
	}

	// 3. General case: find the feasible cardinality range for the left
	// child from the density corridor intersected with complementary fill.
	heightChildren := height - 1
	rho, theta := thresholds(heightChildren)
	numSegmentsChildren := numSegments / 2
	capacityChildren := segmentCapacity * numSegmentsChildren

	sizeMin := int(math.Ceil(rho * float64(capacityChildren)))
	sizeMax := int(theta * float64(capacityChildren))
	if !canFillSegments {
		maxWindowCardinality := capacityChildren - numSegmentsChildren
		if sizeMax > maxWindowCardinality {
			sizeMax = maxWindowCardinality
		}
	}
	fillMin := cardinality - sizeMax
	if fillMin < 0 {
		fillMin = 0
	}
	fillMax := cardinality - sizeMin

	start := sizeMin
	if fillMin > start {
		start = fillMin
	}
	end := sizeMax
	if fillMax < end {
		end = fillMax
	}

	// 4. Walk candidate split points c in [start, end], tracking the
	// accumulated left/right weight sums incrementally, and pick the c
	// minimising the balance objective (ties go to the earliest c).
	splitCardinality, weightsSplit := optimalSplit(weights, capacityChildren, cardinality, start, end)

	cardinalityLeft := splitCardinality
	cardinalityRight := cardinality - splitCardinality

	// 5. Recurse on both children, each taking their share of the window,
	// cardinality, and weight prefix/suffix (positions re-based by the
	// caller via weightsSplit).
	leftWeights := weights[:weightsSplit]
	rightWeights := rebaseWeights(weights[weightsSplit:], splitCardinality)

	recursePartition(segmentCapacity, heightChildren, cardinalityLeft, numSegmentsChildren, leftWeights, resize, canFillSegments, thresholds, out)
	recursePartition(segmentCapacity, heightChildren, cardinalityRight, numSegments-numSegmentsChildren, rightWeights, resize, canFillSegments, thresholds, out)
}

// rebaseWeights shifts every weight's Position so it is once again
// measured from the start of its (now smaller) sub-window.
func rebaseWeights(weights []PartitionWeight, shift int) []PartitionWeight {
	if len(weights) == 0 {
		return nil
	}
	out := make([]PartitionWeight, len(weights))
	for i, w := range weights {
		out[i] = PartitionWeight{Position: w.Position - shift, Count: w.Count}
	}
	return out
}

// optimalSplit walks candidate split cardinalities c in [start, end] and
// returns the c minimising:
//
//	f(c) = | L(c)/(capacityChildren - c) - R(c)/max(1, capacityChildren - (cardinality - c)) |
//
// where L(c) is the accumulated weight strictly left of c and R(c) the
// accumulated weight at or right of c, plus how many leading weights end
// up on the left side at that split (for the caller to slice the prefix).
func optimalSplit(weights []PartitionWeight, capacityChildren, cardinality, start, end int) (splitAt, weightsSplit int) {
	pos := 0
	var sumLeft, sumRight uint32
	for pos < len(weights) && weights[pos].Position < start {
		sumLeft += weights[pos].Count
		pos++
	}
	for i := pos; i < len(weights); i++ {
		sumRight += weights[i].Count
	}
	nextIdx := pos
	nextPos := math.MaxInt64
	if pos < len(weights) {
		nextPos = weights[pos].Position
	}

	denomLeft := float64(capacityChildren - start)
	denomRight := float64(capacityChildren - (cardinality - start))
	best := objective(sumLeft, sumRight, denomLeft, denomRight)
	splitAt = start
	weightsSplit = pos

	for c := start + 1; c <= end; c++ {
		denomLeft--
		denomRight++
		for nextIdx < len(weights) && nextPos < c {
			sumLeft += weights[nextIdx].Count
			sumRight -= weights[nextIdx].Count
			nextIdx++
			if nextIdx < len(weights) {
				nextPos = weights[nextIdx].Position
			} else {
				nextPos = math.MaxInt64
			}
		}
		cur := objective(sumLeft, sumRight, denomLeft, denomRight)
		if cur < best {
			best = cur
			splitAt = c
			weightsSplit = nextIdx
		}
	}
	return splitAt, weightsSplit
}

func objective(sumLeft, sumRight uint32, denomLeft, denomRight float64) float64 {
	if denomLeft < 1 {
		denomLeft = 1
	}
	if denomRight < 1 {
		denomRight = 1
	}
	return math.Abs(float64(sumLeft)/denomLeft - float64(sumRight)/denomRight)
}
