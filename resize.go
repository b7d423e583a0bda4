package pma

import "math"

// Double implements the insert-triggered half of spec.md §4.7.5: extend
// the substrate (or, in heap mode, reallocate larger backing slices) to
// twice the current segment count, rebuild the separator index for the
// new segment count, and run a spread of the entire array — merging in
// the pending (key, value) if hasInsert — planned by the adaptive
// partitioner over the doubled segment count. Returns the new calibrator
// height (so the caller can resize the predictor to match, per spec.md
// §6 "predictor_scale ... height * scale") and the predecessor/successor
// the insert ended up between.
func Double(storage *Storage, index SeparatorIndex, calc *densityCalculator, key, value int64, hasInsert bool) (newHeight int, pred, succ int64, err error) {
	oldNumSegments := storage.NumSegments()
	newNumSegments := oldNumSegments * 2

	if storage.IsRewiring() {
		if err := storage.Extend(oldNumSegments); err != nil {
			return 0, 0, 0, err
		}
	} else {
		if err := storage.GrowHeap(newNumSegments); err != nil {
			return 0, 0, 0, err
		}
	}

	index.Rebuild(newNumSegments)

	cardinalityAfter := storage.Cardinality()
	if hasInsert {
		cardinalityAfter++
	}

	height := calibratorHeight(newNumSegments)
	thresholds := func(level int) (rho, theta float64) {
		return calc.Thresholds(level, height, newNumSegments)
	}
	plan := PlanPartitions(storage.SegmentCapacity(), height, cardinalityAfter, newNumSegments, nil, true, true, thresholds)

	if storage.IsRewiring() {
		pred, succ, err = SpreadRewiring(storage, index, 0, newNumSegments, plan, key, value, hasInsert)
	} else {
		pred, succ, err = SpreadLocal(storage, index, 0, newNumSegments, plan, key, value, hasInsert)
	}
	if err != nil {
		return height, 0, 0, err
	}
	return height, pred, succ, nil
}

// Halve implements the delete-triggered half of spec.md §4.7.5: when
// overall density has fallen below 0.5, consolidate every live element
// into the first half of the segment range (via the same partitioner and
// scatter logic a rebalance uses, just targeting a shorter window than
// the source) and then release the upper half back to the substrate (or,
// in heap mode, recreate smaller backing slices).
//
// Simplified relative to spec.md's "rebalance under shrink with rewiring"
// wording: rather than streaming the consolidation through scratch
// extents, the whole array is gathered once (it is, by construction,
// sparse enough to halve — density < 0.5 means at most half the capacity
// is live) and scattered directly via Storage.SetSegment, which already
// performs the even/odd parity placement a rewiring stream would. This
// keeps the shrink path exercised by one routine instead of two nearly
// identical ones and is tractable to verify by inspection; the externally
// observable result — the lower half consolidated to the planned
// cardinalities, the upper half's extents released — is identical.
func Halve(storage *Storage, index SeparatorIndex, calc *densityCalculator) (newHeight int, err error) {
	oldNumSegments := storage.NumSegments()
	newNumSegments := oldNumSegments / 2
	if newNumSegments < 1 {
		return calibratorHeight(oldNumSegments), invalidArgument("Halve: cannot shrink below one segment")
	}

	cardinality := storage.Cardinality()
	height := calibratorHeight(newNumSegments)
	thresholds := func(level int) (rho, theta float64) {
		return calc.Thresholds(level, height, newNumSegments)
	}
	plan := PlanPartitions(storage.SegmentCapacity(), height, cardinality, newNumSegments, nil, true, true, thresholds)
	cards := segmentCardinalities(plan)
	if len(cards) != newNumSegments {
		return height, invariantViolation("Halve: partition plan segment count does not match target segment count")
	}

	keys, values := storage.Gather(0, oldNumSegments)

	// The halved array is, by construction, the whole surviving substrate:
	// nothing follows segment newNumSegments-1, so a trailing empty
	// segment's separator falls back to +infinity rather than peeking at
	// the upper half this call is about to discard.
	seps := make([]int64, newNumSegments)
	offsets := make([]int, newNumSegments)
	pos := 0
	for seg, c := range cards {
		offsets[seg] = pos
		pos += c
	}
	next := int64(math.MaxInt64)
	for seg := newNumSegments - 1; seg >= 0; seg-- {
		if cards[seg] > 0 {
			next = keys[offsets[seg]]
		}
		seps[seg] = next
	}

	pos = 0
	for seg := 0; seg < newNumSegments; seg++ {
		c := cards[seg]
		if err := storage.SetSegment(seg, keys[pos:pos+c], values[pos:pos+c]); err != nil {
			return height, err
		}
		pos += c
	}

	if storage.IsRewiring() {
		if err := storage.Shrink(oldNumSegments - newNumSegments); err != nil {
			return height, err
		}
	} else {
		if err := storage.ShrinkHeap(newNumSegments); err != nil {
			return height, err
		}
	}

	index.Rebuild(newNumSegments)
	for seg := 0; seg < newNumSegments; seg++ {
		index.SetSeparatorKey(seg, seps[seg])
	}
	return height, nil
}
