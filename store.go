package pma

import (
	"fmt"
	"io"
	"math"
	"sort"
)

// Store is the top-level coordinating type (spec.md §6): it owns the
// segmented storage, the separator index, the density-bound calculator,
// and a predictor, and dispatches insert/remove/find/iterate/sum through
// them per §4.7's rebalance-or-resize decision.
//
// Grounded on the teacher's env.go (Env as the top-level type owning the
// page cache, meta pages, and reader table, constructed from a Config
// value) and dbi.go's thin per-operation dispatch onto the owned
// subsystems; unlike Env, construction takes one Options value directly
// rather than a builder chain, since there is no on-disk environment to
// open/create.
type Store struct {
	opts    *Options
	storage *Storage
	index   SeparatorIndex
	calc    *densityCalculator

	mruPredictor     *MRUPredictor
	segmentPredictor *SegmentPredictor

	height int

	resizeCount    int
	rebalanceCount int
}

// New constructs a Store for the given options (spec.md §6 "new(...)").
// A nil opts uses DefaultOptions().
func New(opts *Options) (*Store, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	storage, err := NewStorage(opts)
	if err != nil {
		return nil, err
	}

	index := newSeparatorIndex(opts)
	index.Rebuild(storage.NumSegments())

	cutoffSegments := DefaultPrimaryCutoffExtents * opts.segmentsPerExtent()
	calc := newDensityCalculator(opts.Density, cutoffSegments)
	height := calibratorHeight(storage.NumSegments())

	s := &Store{opts: opts, storage: storage, index: index, calc: calc, height: height}
	s.initPredictor()
	return s, nil
}

func (s *Store) initPredictor() {
	switch s.opts.Predictor {
	case SegmentPredictorKind:
		s.segmentPredictor = NewSegmentPredictor(s.storage.NumSegments())
	default:
		s.mruPredictor = NewMRUPredictor(s.predictorCapacity(), DefaultPredictorCountMax)
	}
}

func (s *Store) predictorCapacity() int {
	capacity := s.height * s.opts.PredictorScale
	if capacity < DefaultPredictorMinCapacity {
		capacity = DefaultPredictorMinCapacity
	}
	return capacity
}

// Close releases the underlying rewired substrate, if any.
func (s *Store) Close() error {
	return s.storage.Close()
}

// Size returns the number of live (key, value) pairs.
func (s *Store) Size() int { return s.storage.Cardinality() }

// Empty reports whether the store holds no live pairs.
func (s *Store) Empty() bool { return s.storage.Cardinality() == 0 }

// ResizeCount returns how many doubling/halving resizes have run.
func (s *Store) ResizeCount() int { return s.resizeCount }

// RebalanceCount returns how many in-place window spreads have run.
func (s *Store) RebalanceCount() int { return s.rebalanceCount }

// MemoryFootprint estimates the live byte cost of the segmented arrays
// and the predictor (spec.md §6 "memory_footprint()"). Approximate: the
// separator index is not counted, and the predictor's internal overhead
// (MRU linked-list bookkeeping) is not walked field-by-field; only its
// dominant backing array is sized.
func (s *Store) MemoryFootprint() int64 {
	segs := int64(s.storage.NumSegments())
	capacity := int64(s.storage.SegmentCapacity())
	footprint := segs*capacity*8*2 + segs*2 // keys + values + sizes

	switch {
	case s.mruPredictor != nil:
		footprint += int64(s.mruPredictor.Len()) * 32
	case s.segmentPredictor != nil:
		footprint += segs * 4
	}
	return footprint
}

// Find returns the value stored for key, or NotFound on a miss (spec.md
// §6 "find(key) -> i64").
func (s *Store) Find(key int64) int64 {
	seg := s.index.Find(key)
	lo, hi := s.storage.PopulatedRange(seg)
	for i := lo; i < hi; i++ {
		if s.storage.KeyAt(i) == key {
			return s.storage.ValueAt(i)
		}
	}
	return NotFound
}

// FindRange returns an Iterator yielding (key, value) pairs in [min, max]
// in ascending key order (spec.md §6 "find(min, max) -> Iterator").
func (s *Store) FindRange(min, max int64) (*Iterator, error) {
	return NewIterator(s.storage, s.index, min, max)
}

// Sum aggregates [min, max] (spec.md §6 "sum(min, max) -> {...}").
func (s *Store) Sum(min, max int64) (numElements int, sumKeys, sumValues, firstKey, lastKey int64, err error) {
	return RangeSum(s.storage, s.index, min, max)
}

// Dump writes every live (key, value) pair, one per line, in ascending
// key order (spec.md §6 "dump(writer)").
func (s *Store) Dump(w io.Writer) error {
	it, err := NewIterator(s.storage, s.index, math.MinInt64, math.MaxInt64)
	if err != nil {
		return err
	}
	for {
		k, v, ok := it.Next()
		if !ok {
			return nil
		}
		if _, err := fmt.Fprintf(w, "%d %d\n", k, v); err != nil {
			return err
		}
	}
}

// Insert adds (key, value) (spec.md §6 "insert(key, value)"). If key
// already exists, the store accumulates another copy rather than
// overwriting, matching the historical integer-only PMA's multiset
// semantics (§9 open question 1 — the older variant supports insert
// only, with no defined update-in-place behaviour to reuse).
func (s *Store) Insert(key, value int64) error {
	seg := s.index.Find(key)

	if s.storage.Size(seg) < s.storage.SegmentCapacity() {
		pred, succ, err := s.storage.Insert(seg, key, value)
		if err != nil {
			return err
		}
		s.refreshSeparator(seg)
		s.notifyPredictorInsert(key, pred, succ)
		return nil
	}

	plan := PlanRebalance(s.storage, s.calc, seg, true, key, value)
	if plan.Operation == Rebalance {
		return s.executeRebalance(plan)
	}
	return s.executeDouble(key, value)
}

// Remove deletes the live pair for key, returning its value or NotFound
// (spec.md §6 "remove(key) -> i64").
func (s *Store) Remove(key int64) (int64, error) {
	if s.opts.Partitioner == UniformPartitioner {
		return NotFound, invalidArgument("remove: not supported by the uniform-partitioner variant")
	}

	seg := s.index.Find(key)
	lo, hi := s.storage.PopulatedRange(seg)
	present := false
	for i := lo; i < hi; i++ {
		if s.storage.KeyAt(i) == key {
			present = true
			break
		}
	}
	if !present {
		return NotFound, nil
	}

	// Planned before the actual removal: PlanRebalance's delta=-1 already
	// simulates the post-delete window cardinality, so the window must
	// still be observed in its pre-delete state here — planning after
	// RemoveKey would subtract the same element twice.
	plan := PlanRebalance(s.storage, s.calc, seg, false, 0, 0)

	value, _ := s.storage.RemoveKey(seg, key)
	s.refreshSeparator(seg)
	s.retargetPredictorOnRemove(key, seg)

	switch plan.Operation {
	case Rebalance:
		if err := s.executeRebalanceDelete(plan); err != nil {
			return value, err
		}
	default:
		// spec.md §4.7.5's "overall density falls below 0.5" halving
		// trigger is treated as equivalent to the window-search (§4.7.1)
		// escalating all the way to the root level for a delete: both
		// describe "even the whole array is too sparse", so no separate
		// check is layered on top (§9 open question, resolved here).
		overall := float64(s.storage.Cardinality()) / float64(s.storage.NumSegments()*s.storage.SegmentCapacity())
		if overall < resizeHalvingDensity && s.storage.NumSegments() > 1 {
			if err := s.executeHalve(); err != nil {
				return value, err
			}
		}
	}
	return value, nil
}

// refreshSeparator recomputes segment seg's separator after a direct,
// single-segment insert or delete that didn't go through a window spread.
// An emptied segment inherits the nearest populated segment's first key to
// its right (or +infinity if none remains), the same non-decreasing
// convention the spread executors maintain (see windowSeparators).
func (s *Store) refreshSeparator(seg int) {
	lo, hi := s.storage.PopulatedRange(seg)
	if hi > lo {
		s.index.SetSeparatorKey(seg, s.storage.KeyAt(lo))
	} else {
		s.index.SetSeparatorKey(seg, s.storage.neighborKey(seg, 1))
	}
}

func (s *Store) executeRebalance(plan *RebalancePlan) error {
	pred, succ, err := s.spreadWindow(plan, true)
	if err != nil {
		return err
	}
	s.rebalanceCount++
	s.notifyPredictorInsert(plan.InsertKey, pred, succ)
	return nil
}

func (s *Store) executeRebalanceDelete(plan *RebalancePlan) error {
	if _, _, err := s.spreadWindow(plan, false); err != nil {
		return err
	}
	s.rebalanceCount++
	return nil
}

func (s *Store) spreadWindow(plan *RebalancePlan, hasInsert bool) (pred, succ int64, err error) {
	thresholds := func(level int) (rho, theta float64) {
		return s.calc.Thresholds(level, s.height, s.storage.NumSegments())
	}
	var weights []PartitionWeight
	if s.opts.Partitioner != UniformPartitioner {
		weights = s.buildWeights(plan.WindowStart, plan.WindowLength)
	}
	partitionPlan := PlanPartitions(s.storage.SegmentCapacity(), plan.Level, plan.CardinalityAfter, plan.WindowLength, weights, false, true, thresholds)

	key, value := plan.InsertKey, plan.InsertValue
	if s.opts.Spread == LocalSpreadOnly || !s.storage.IsRewiring() {
		return SpreadLocal(s.storage, s.index, plan.WindowStart, plan.WindowLength, partitionPlan, key, value, hasInsert)
	}
	return SpreadRewiring(s.storage, s.index, plan.WindowStart, plan.WindowLength, partitionPlan, key, value, hasInsert)
}

func (s *Store) executeDouble(key, value int64) error {
	height, pred, succ, err := Double(s.storage, s.index, s.calc, key, value, true)
	if err != nil {
		return err
	}
	s.resizeCount++
	s.height = height
	s.resizePredictor()
	s.notifyPredictorInsert(key, pred, succ)
	return nil
}

func (s *Store) executeHalve() error {
	height, err := Halve(s.storage, s.index, s.calc)
	if err != nil {
		return err
	}
	s.resizeCount++
	s.height = height
	s.resizePredictor()
	return nil
}

// buildWeights converts whichever predictor is active into the adaptive
// partitioner's PartitionWeight vector (§4.8), anchored at each hot
// record's cardinality position within the window.
func (s *Store) buildWeights(windowStart, windowLength int) []PartitionWeight {
	switch {
	case s.segmentPredictor != nil:
		return s.buildSegmentWeights(windowStart, windowLength)
	case s.mruPredictor != nil:
		return s.buildMRUWeights(windowStart, windowLength)
	default:
		return nil
	}
}

// buildSegmentWeights anchors each hot segment's tally at its own first
// cardinality position within the window.
func (s *Store) buildSegmentWeights(windowStart, windowLength int) []PartitionWeight {
	var weights []PartitionWeight
	prefix := 0
	for seg := windowStart; seg < windowStart+windowLength; seg++ {
		if w := s.segmentPredictor.Weight(seg); w > 0 {
			weights = append(weights, PartitionWeight{Position: prefix, Count: w})
		}
		prefix += s.storage.Size(seg)
	}
	return weights
}

// buildMRUWeights maps the MRU predictor's tracked pointers (recently
// hammered keys) onto window-relative cardinality ranks: Items restricts
// the lookup to the window's own key range, and each surviving pointer is
// located in the gathered window contents by binary search. A pointer
// that no longer occupies the window (its key was removed, or it fell
// outside this particular window) contributes no weight.
func (s *Store) buildMRUWeights(windowStart, windowLength int) []PartitionWeight {
	keys, _ := s.storage.Gather(windowStart, windowLength)
	if len(keys) == 0 {
		return nil
	}
	items := s.mruPredictor.Items(int(keys[0]), int(keys[len(keys)-1]))
	if len(items) == 0 {
		return nil
	}
	weights := make([]PartitionWeight, 0, len(items))
	for _, it := range items {
		pos := sort.Search(len(keys), func(i int) bool { return keys[i] >= int64(it.Pointer) })
		if pos == len(keys) || keys[pos] != int64(it.Pointer) {
			continue
		}
		weights = append(weights, PartitionWeight{Position: pos, Count: uint32(it.Count)})
	}
	return weights
}

func (s *Store) notifyPredictorInsert(key, pred, succ int64) {
	switch {
	case s.mruPredictor != nil:
		s.mruPredictor.Update(int(key))
	case s.segmentPredictor != nil:
		seg := s.index.Find(key)
		_ = s.segmentPredictor.Update(seg, pred, succ)
	}
}

// retargetPredictorOnRemove re-homes an MRU predictor entry tracking a
// just-deleted key onto a surviving neighbour, rather than leaving it
// pointing at a key no longer present anywhere in storage (§4.9, §9
// "Callbacks-through-indices": a pointer must stay valid across the
// structural change a removal triggers, patched in place via
// ResetPointer rather than waiting for cold-decay eviction).
func (s *Store) retargetPredictorOnRemove(removedKey int64, seg int) {
	if s.mruPredictor == nil {
		return
	}
	pos, ok := s.mruPredictor.byPtr[int(removedKey)]
	if !ok {
		return
	}

	succ := math.MaxInt64
	lo, hi := s.storage.PopulatedRange(seg)
	for i := lo; i < hi; i++ {
		if k := s.storage.KeyAt(i); k > removedKey {
			succ = int(k)
			break
		}
	}
	if succ == math.MaxInt64 {
		succ = int(s.storage.neighborKey(seg, 1))
	}

	// A candidate already tracked under its own slot is skipped rather than
	// retargeted onto, which would otherwise leave two occupied slots
	// sharing one pointer value with byPtr only reachable from one of them.
	if succ != math.MaxInt64 {
		if _, tracked := s.mruPredictor.byPtr[succ]; !tracked {
			s.mruPredictor.ResetPointer(pos, succ)
			return
		}
	}
	if pred := s.storage.neighborKey(seg, -1); pred != math.MinInt64 {
		if _, tracked := s.mruPredictor.byPtr[int(pred)]; !tracked {
			s.mruPredictor.ResetPointer(pos, int(pred))
		}
	}
}

func (s *Store) resizePredictor() {
	switch {
	case s.mruPredictor != nil:
		s.mruPredictor.Resize(s.predictorCapacity())
	case s.segmentPredictor != nil:
		s.segmentPredictor.Resize(s.storage.NumSegments())
		s.segmentPredictor.Clear()
	}
}
