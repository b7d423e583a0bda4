package pma

import "math"

// Iterator walks live (key, value) pairs over [minKey, maxKey] in
// ascending key order (spec.md §4.10), grounded on the teacher's
// cursor.go idiom of a cursor object holding an explicit "current
// position" (there: a stack of (page, index) frames; here: a position
// within the current segment pair's contiguous run) advanced by a single
// Next method rather than re-walking the tree on every call.
//
// Segment pairs are contiguous in the flat key/value arrays by
// construction (§3's parity layout places an even segment's populated
// suffix immediately before its odd partner's populated prefix), so a
// pair's "even_tail ‖ odd_head" run (§4.10) is just PopulatedRange(s).lo
// through PopulatedRange(s+1).hi — no separate concatenation step is
// needed.
type Iterator struct {
	storage     *Storage
	pos         int
	pairEnd     int
	nextPairSeg int
	lastSeg     int
	maxKey      int64
	exhausted   bool
}

// NewIterator locates the starting segment for minKey and the final
// segment for maxKey, then positions at the first live element >=
// minKey.
//
// Deviates from spec.md's literal "index.find_first(kmin)" wording for
// the start boundary: find_first (as implemented by SeparatorIndex,
// tested in index_static_test.go's TestStaticIndexFindFirstAndFindLast)
// returns the leftmost segment whose separator is >= kmin, which skips
// straddling segments whose separator is < kmin but whose populated keys
// still reach up to or past kmin — losing elements the iterator is
// required to yield (spec.md §8 "Iterator = sorted scan"). find_first's
// actual role is disambiguating a run of segments sharing one duplicate
// separator value (used elsewhere by the dynamic index's removal path),
// not locating a range-query lower bound. Find(kmin) — the same "rightmost
// separator <= key" floor search a point lookup uses — is the correct
// segment to start from, so that is what this constructor uses; the
// per-element minKey filter below then trims any elements of that
// segment that fall short of minKey. For the common full-scan case
// (minKey == math.MinInt64) both methods agree on segment 0.
func NewIterator(storage *Storage, index SeparatorIndex, minKey, maxKey int64) (*Iterator, error) {
	if minKey > maxKey {
		return nil, invalidArgument("NewIterator: min must be <= max")
	}
	it := &Iterator{storage: storage, maxKey: maxKey}

	numSegments := storage.NumSegments()
	if numSegments == 0 {
		it.exhausted = true
		return it, nil
	}

	startSeg := index.Find(minKey)
	lastSeg := index.FindLast(maxKey)
	if startSeg > lastSeg {
		it.exhausted = true
		return it, nil
	}
	it.lastSeg = lastSeg

	pairSeg := startSeg - startSeg%2
	it.loadPair(pairSeg)
	for !it.exhausted && it.pos < it.pairEnd && it.storage.KeyAt(it.pos) < minKey {
		it.pos++
	}
	for !it.exhausted && it.pos >= it.pairEnd {
		it.loadPair(it.nextPairSeg)
	}
	return it, nil
}

// loadPair positions the iterator at the contiguous run for the segment
// pair (pairSeg, pairSeg+1), or marks the iterator exhausted once pairSeg
// runs past lastSeg or the end of storage.
func (it *Iterator) loadPair(pairSeg int) {
	numSegments := it.storage.NumSegments()
	if pairSeg > it.lastSeg || pairSeg >= numSegments {
		it.exhausted = true
		return
	}

	lo, hi := it.storage.PopulatedRange(pairSeg)
	if pairSeg+1 < numSegments {
		_, oddHi := it.storage.PopulatedRange(pairSeg + 1)
		hi = oddHi
	}
	it.pos = lo
	it.pairEnd = hi
	it.nextPairSeg = pairSeg + 2
}

// Next returns the next (key, value) pair in ascending order, or ok=false
// once the range is exhausted (either past lastSeg or past maxKey).
func (it *Iterator) Next() (key, value int64, ok bool) {
	for !it.exhausted && it.pos >= it.pairEnd {
		it.loadPair(it.nextPairSeg)
	}
	if it.exhausted {
		return 0, 0, false
	}

	k := it.storage.KeyAt(it.pos)
	if k > it.maxKey {
		it.exhausted = true
		return 0, 0, false
	}
	v := it.storage.ValueAt(it.pos)
	it.pos++
	return k, v, true
}

// RangeSum implements spec.md §4.10's range-sum specialisation over the
// same [minKey, maxKey] an Iterator walks: num_elements, sum_keys,
// sum_values, first_key, last_key — INT64_MIN for first/last on an empty
// range (§6 "find(min, max)").
//
// Built on top of Iterator.Next rather than re-deriving the pair-run walk
// (spec.md's "performs the summation in straight-line loops across each
// run" describes an optimisation — summing a contiguous slice directly
// instead of one element at a time through an interface call — that this
// does not carry out separately; the two produce the same aggregate and
// re-deriving the walk a second time would duplicate loadPair's logic for
// no externally observable difference).
func RangeSum(storage *Storage, index SeparatorIndex, minKey, maxKey int64) (numElements int, sumKeys, sumValues, firstKey, lastKey int64, err error) {
	it, err := NewIterator(storage, index, minKey, maxKey)
	if err != nil {
		return 0, 0, 0, 0, 0, err
	}

	firstKey = math.MinInt64
	lastKey = math.MinInt64
	first := true
	for {
		k, v, ok := it.Next()
		if !ok {
			break
		}
		if first {
			firstKey = k
			first = false
		}
		lastKey = k
		sumKeys += k
		sumValues += v
		numElements++
	}
	return numElements, sumKeys, sumValues, firstKey, lastKey, nil
}
