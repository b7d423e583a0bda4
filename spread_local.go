package pma

import (
	"math"
	"sort"
)

// gatherWindow collects every element across [windowStart, windowStart+
// windowLength) in ascending order and, if hasInsert, merges (insertKey,
// insertValue) into its sorted position, returning the predecessor and
// successor keys the new element ended up between — or the storage's
// ±infinity boundary sentinels if it landed at the window's edge (spec.md
// §4.3 "insert(...)", §4.7.3 "recording the predecessor and successor").
func gatherWindow(storage *Storage, windowStart, windowLength int, insertKey, insertValue int64, hasInsert bool) (keys, values []int64, pred, succ int64) {
	keys, values = storage.Gather(windowStart, windowLength)
	if !hasInsert {
		return keys, values, math.MinInt64, math.MaxInt64
	}

	p := sort.Search(len(keys), func(i int) bool { return keys[i] >= insertKey })

	keys = append(keys, 0)
	copy(keys[p+1:], keys[p:len(keys)-1])
	keys[p] = insertKey

	values = append(values, 0)
	copy(values[p+1:], values[p:len(values)-1])
	values[p] = insertValue

	if p > 0 {
		pred = keys[p-1]
	} else {
		pred = storage.neighborKey(windowStart, -1)
	}
	if p+1 < len(keys) {
		succ = keys[p+1]
	} else {
		succ = storage.neighborKey(windowStart+windowLength-1, +1)
	}
	return keys, values, pred, succ
}

// windowSeparators computes the separator each segment in a spread window
// should carry once cards/keys are scattered: a populated segment's first
// key, or — for an empty segment — the nearest populated segment's first
// key to its right (within the window, or beyond it via storage.neighborKey
// if nothing in the window follows), so the separator array stays
// non-decreasing (spec.md §3) however many empty segments a spread leaves
// behind. Computed once, before any segment is written, since segments
// later in the window haven't been scattered yet and reading storage
// mid-spread would see stale pre-spread contents for them.
func windowSeparators(storage *Storage, windowStart, windowLength int, cards []int, keys []int64) []int64 {
	seps := make([]int64, windowLength)
	offsets := make([]int, windowLength)
	pos := 0
	for i, c := range cards {
		offsets[i] = pos
		pos += c
	}

	next := storage.neighborKey(windowStart+windowLength-1, +1)
	for i := windowLength - 1; i >= 0; i-- {
		if cards[i] > 0 {
			next = keys[offsets[i]]
		}
		seps[i] = next
	}
	return seps
}

// segmentCardinalities expands a partition plan (runs of adjacent segments
// sharing a cardinality) into one cardinality per segment in window order,
// splitting each run's cardinality evenly and rounding the first
// (cardinality mod segments) segments up by one slot (spec.md §4.8
// "Output": "rounded up in the first few segments if cardinality isn't
// divisible").
func segmentCardinalities(plan []PartitionEntry) []int {
	var out []int
	for _, e := range plan {
		base := e.Cardinality / e.Segments
		rem := e.Cardinality % e.Segments
		for i := 0; i < e.Segments; i++ {
			c := base
			if i < rem {
				c++
			}
			out = append(out, c)
		}
	}
	return out
}

// SpreadLocal is the in-place spread executor of spec.md §4.7.3, used for
// windows smaller than one extent: gather every element in the window
// (merging in a pending insert), scatter the result across the window's
// segments per plan — which already honours parity via Storage.SetSegment
// (even segments flush-right, odd flush-left) — and refresh the separator
// index for every touched segment.
//
// Grounded on the gather/scatter shape of
// original_source/pma/adaptive/bh07_v2/adaptive_rebalancing.cpp's
// spread_range (collect then redistribute per partition), translated to
// Go slices instead of raw pointer arithmetic over the storage buffer.
func SpreadLocal(storage *Storage, index SeparatorIndex, windowStart, windowLength int, plan []PartitionEntry, insertKey, insertValue int64, hasInsert bool) (pred, succ int64, err error) {
	keys, values, pred, succ := gatherWindow(storage, windowStart, windowLength, insertKey, insertValue, hasInsert)

	cards := segmentCardinalities(plan)
	if len(cards) != windowLength {
		return 0, 0, invariantViolation("SpreadLocal: partition plan segment count does not match window length")
	}

	seps := windowSeparators(storage, windowStart, windowLength, cards, keys)

	pos := 0
	for i, c := range cards {
		seg := windowStart + i
		segKeys := keys[pos : pos+c]
		segValues := values[pos : pos+c]
		if err := storage.SetSegment(seg, segKeys, segValues); err != nil {
			return 0, 0, err
		}
		pos += c

		index.SetSeparatorKey(seg, seps[i])
	}
	return pred, succ, nil
}
