package pma

import (
	"math"
	"sort"
	"unsafe"

	"github.com/packedmem/pma/rewiring"
)

// storageMode selects how the keys/values/sizes arrays are backed (§4.3
// "Allocation policy").
type storageMode int

const (
	// heapBacked allocates all three arrays as plain Go slices. Extend is
	// not supported in this mode; growth requires full reallocation by the
	// caller (§4.3).
	heapBacked storageMode = iota

	// rewiringBacked allocates keys and values through their own buffered
	// rewiring pool each, and sizes through a third, unbuffered substrate.
	rewiringBacked
)

// Storage owns the sparse segmented arrays keys/values/sizes described in
// spec.md §4.3: two parallel dense arrays plus a per-segment population
// count, laid out so that even segments pack flush-right and odd segments
// pack flush-left within their [s*C, (s+1)*C) slot range.
//
// Grounded on the teacher's page.go (struct-of-arrays layout over a raw
// buffer, named slot-arithmetic helpers instead of pointer walks); unlike
// page.go there is no on-disk page header, since this store has no durable
// format (spec.md Non-goals).
type Storage struct {
	mode            storageMode
	segmentCapacity int
	numSegments     int
	cardinality     int

	heapKeys   []int64
	heapValues []int64
	heapSizes  []uint16

	keysPool        *rewiring.Pool
	valuesPool      *rewiring.Pool
	sizesSub        *rewiring.RewiredMemory
	segmentsPerExt  int64 // keys/values extent capacity, in segments
}

// NewStorage allocates a Storage for opts.InitialSegments segments,
// choosing rewiring-backed or heap-backed allocation per the §4.3 size
// threshold: rewiring is used once a full keys (or values) array would
// occupy at least one extent, and MaxMemory > 0 signals that a rewired
// substrate is available at all.
func NewStorage(opts *Options) (*Storage, error) {
	s := &Storage{
		segmentCapacity: opts.SegmentCapacity,
		numSegments:     opts.InitialSegments,
	}

	bytesNeeded := int64(s.numSegments) * int64(s.segmentCapacity) * 8
	extentSize := opts.extentSize()

	if opts.MaxMemory > 0 && bytesNeeded >= extentSize {
		if err := s.initRewiring(opts); err != nil {
			return nil, err
		}
		return s, nil
	}

	s.mode = heapBacked
	s.heapKeys = make([]int64, s.numSegments*s.segmentCapacity)
	s.heapValues = make([]int64, s.numSegments*s.segmentCapacity)
	s.heapSizes = make([]uint16, s.numSegments)
	return s, nil
}

func (s *Storage) initRewiring(opts *Options) error {
	s.mode = rewiringBacked
	extentSize := opts.extentSize()
	s.segmentsPerExt = extentSize / 8 / int64(s.segmentCapacity)

	bytesNeeded := int64(s.numSegments) * int64(s.segmentCapacity) * 8
	initialExtents := int(ceilDiv(bytesNeeded, extentSize))
	if initialExtents < 1 {
		initialExtents = 1
	}

	keysSub, err := rewiring.New(opts.PagesPerExtent, opts.PageSize, initialExtents, opts.MaxMemory, opts.HugePages)
	if err != nil {
		return err
	}
	keysPool, err := rewiring.NewPool(keysSub, initialExtents)
	if err != nil {
		keysSub.Close()
		return err
	}

	valuesSub, err := rewiring.New(opts.PagesPerExtent, opts.PageSize, initialExtents, opts.MaxMemory, opts.HugePages)
	if err != nil {
		keysPool.Close()
		return err
	}
	valuesPool, err := rewiring.NewPool(valuesSub, initialExtents)
	if err != nil {
		keysPool.Close()
		valuesSub.Close()
		return err
	}

	sizesBytes := int64(s.numSegments) * 2
	sizesExtentSize := extentSize
	sizesExtents := int(ceilDiv(sizesBytes, sizesExtentSize))
	if sizesExtents < 1 {
		sizesExtents = 1
	}
	sizesSub, err := rewiring.New(opts.PagesPerExtent, opts.PageSize, sizesExtents, opts.MaxMemory, opts.HugePages)
	if err != nil {
		keysPool.Close()
		valuesPool.Close()
		return err
	}

	s.keysPool = keysPool
	s.valuesPool = valuesPool
	s.sizesSub = sizesSub
	return nil
}

func ceilDiv(a, b int64) int64 {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// Close releases any rewired substrates backing this storage. A no-op in
// heap mode.
func (s *Storage) Close() error {
	if s.mode != rewiringBacked {
		return nil
	}
	if err := s.keysPool.Close(); err != nil {
		return err
	}
	if err := s.valuesPool.Close(); err != nil {
		return err
	}
	return s.sizesSub.Close()
}

// KeysPool and ValuesPool expose the underlying buffered rewiring pools so
// the rewiring-aware spread (§4.7.4) can acquire scratch extents and swap
// them directly into the arrays this Storage views. Nil in heap mode.
func (s *Storage) KeysPool() *rewiring.Pool   { return s.keysPool }
func (s *Storage) ValuesPool() *rewiring.Pool { return s.valuesPool }

// IsRewiring reports whether this storage can Extend/Shrink in place.
func (s *Storage) IsRewiring() bool { return s.mode == rewiringBacked }

// SegmentsPerExtent returns how many segments tile one keys/values extent;
// only meaningful in rewiring mode (§4.7.4 "process extents one at a
// time").
func (s *Storage) SegmentsPerExtent() int { return int(s.segmentsPerExt) }

func (s *Storage) keysView() []int64 {
	if s.mode == heapBacked {
		return s.heapKeys
	}
	base := s.keysPool.Base()
	return unsafe.Slice((*int64)(unsafe.Pointer(base)), s.numSegments*s.segmentCapacity)
}

func (s *Storage) valuesView() []int64 {
	if s.mode == heapBacked {
		return s.heapValues
	}
	base := s.valuesPool.Base()
	return unsafe.Slice((*int64)(unsafe.Pointer(base)), s.numSegments*s.segmentCapacity)
}

func (s *Storage) sizesView() []uint16 {
	if s.mode == heapBacked {
		return s.heapSizes
	}
	base := s.sizesSub.StartAddress()
	return unsafe.Slice((*uint16)(unsafe.Pointer(base)), s.numSegments)
}

// SegmentCapacity returns C.
func (s *Storage) SegmentCapacity() int { return s.segmentCapacity }

// NumSegments returns S.
func (s *Storage) NumSegments() int { return s.numSegments }

// Cardinality returns the total number of populated slots.
func (s *Storage) Cardinality() int { return s.cardinality }

// Size returns sizes[seg].
func (s *Storage) Size(seg int) int { return int(s.sizesView()[seg]) }

// KeyAt and ValueAt return the raw slot contents at absolute slot index.
func (s *Storage) KeyAt(slot int) int64   { return s.keysView()[slot] }
func (s *Storage) ValueAt(slot int) int64 { return s.valuesView()[slot] }

// SegmentBounds returns the absolute slot range [lo, hi) owned by segment.
func (s *Storage) SegmentBounds(seg int) (lo, hi int) {
	lo = seg * s.segmentCapacity
	hi = lo + s.segmentCapacity
	return
}

// PopulatedRange returns the absolute slot range [lo, hi) currently
// populated in segment seg, honouring parity (§3 "Storage" invariants:
// even segments free-left, odd segments free-right).
func (s *Storage) PopulatedRange(seg int) (lo, hi int) {
	segLo, segHi := s.SegmentBounds(seg)
	n := s.Size(seg)
	if seg%2 == 0 {
		return segHi - n, segHi
	}
	_ = segLo
	return segLo, segLo + n
}

// neighborKey scans outward from seg in direction dir (+1 or -1) for the
// nearest populated segment and returns its boundary key (last key if
// dir<0, first key if dir>0), or the +-infinity sentinel if the array has
// no populated segment in that direction (§4.3 "±infinity if at boundary").
func (s *Storage) neighborKey(seg, dir int) int64 {
	for t := seg + dir; t >= 0 && t < s.numSegments; t += dir {
		lo, hi := s.PopulatedRange(t)
		if hi > lo {
			if dir < 0 {
				return s.KeyAt(hi - 1)
			}
			return s.KeyAt(lo)
		}
	}
	if dir < 0 {
		return math.MinInt64
	}
	return math.MaxInt64
}

// populatedKeys and populatedValues copy out segment seg's current
// contents in sorted (storage) order.
func (s *Storage) populatedKeys(seg int) []int64 {
	lo, hi := s.PopulatedRange(seg)
	out := make([]int64, hi-lo)
	copy(out, s.keysView()[lo:hi])
	return out
}

func (s *Storage) populatedValues(seg int) []int64 {
	lo, hi := s.PopulatedRange(seg)
	out := make([]int64, hi-lo)
	copy(out, s.valuesView()[lo:hi])
	return out
}

// SetSegment overwrites segment seg's contents with keys/values (already
// sorted, len <= C), honouring parity, and adjusts cardinality by the
// resulting size delta. Used by the spread executors (§4.7.3, §4.7.4) to
// scatter a partition's share into its segment.
func (s *Storage) SetSegment(seg int, keys, values []int64) error {
	if len(keys) != len(values) {
		return invariantViolation("SetSegment: keys/values length mismatch")
	}
	if len(keys) > s.segmentCapacity {
		return invariantViolation("SetSegment: segment overflow")
	}
	segLo, segHi := s.SegmentBounds(seg)
	n := len(keys)

	var lo int
	if seg%2 == 0 {
		lo = segHi - n
	} else {
		lo = segLo
	}

	kv := s.keysView()
	vv := s.valuesView()
	copy(kv[lo:lo+n], keys)
	copy(vv[lo:lo+n], values)

	old := s.Size(seg)
	s.sizesView()[seg] = uint16(n)
	s.cardinality += n - old
	return nil
}

// setSizeAndAdjustCardinality updates sizes[seg] directly, for callers
// that already wrote a segment's slot contents through another path (the
// rewiring spread's extent-swap writes keys/values by swapping a whole
// scratch extent into place, bypassing SetSegment's own array writes).
func (s *Storage) setSizeAndAdjustCardinality(seg, n int) {
	old := s.Size(seg)
	s.sizesView()[seg] = uint16(n)
	s.cardinality += n - old
}

// ClearSegment empties segment seg.
func (s *Storage) ClearSegment(seg int) {
	old := s.Size(seg)
	s.sizesView()[seg] = 0
	s.cardinality -= old
}

// Insert places (key, value) into segment seg, which must have
// sizes[seg] < C, honouring parity and sorted order, and reports the keys
// immediately adjacent to the insertion point (or +-infinity at a storage
// boundary) for the predictor (§4.3 "insert(s, k, v, &pred, &succ)").
func (s *Storage) Insert(seg int, key, value int64) (pred, succ int64, err error) {
	if s.Size(seg) >= s.segmentCapacity {
		return 0, 0, invariantViolation("Insert: segment at capacity")
	}
	keys := s.populatedKeys(seg)
	values := s.populatedValues(seg)

	p := sort.Search(len(keys), func(i int) bool { return keys[i] >= key })

	keys = append(keys, 0)
	copy(keys[p+1:], keys[p:len(keys)-1])
	keys[p] = key

	values = append(values, 0)
	copy(values[p+1:], values[p:len(values)-1])
	values[p] = value

	if err := s.SetSegment(seg, keys, values); err != nil {
		return 0, 0, err
	}

	if p > 0 {
		pred = keys[p-1]
	} else {
		pred = s.neighborKey(seg, -1)
	}
	if p+1 < len(keys) {
		succ = keys[p+1]
	} else {
		succ = s.neighborKey(seg, +1)
	}
	return pred, succ, nil
}

// RemoveKey deletes the first occurrence of key from segment seg and
// returns its value, or (0,false) if seg does not contain key.
func (s *Storage) RemoveKey(seg int, key int64) (int64, bool) {
	keys := s.populatedKeys(seg)
	values := s.populatedValues(seg)

	p := sort.Search(len(keys), func(i int) bool { return keys[i] >= key })
	if p >= len(keys) || keys[p] != key {
		return 0, false
	}
	value := values[p]
	keys = append(keys[:p], keys[p+1:]...)
	values = append(values[:p], values[p+1:]...)

	if err := s.SetSegment(seg, keys, values); err != nil {
		return 0, false
	}
	return value, true
}

// Gather collects every populated element across the segment window
// [windowStart, windowStart+windowLength) in ascending storage order, as
// used by the local spread executor's gather phase (§4.7.3).
func (s *Storage) Gather(windowStart, windowLength int) (keys, values []int64) {
	for seg := windowStart; seg < windowStart+windowLength; seg++ {
		keys = append(keys, s.populatedKeys(seg)...)
		values = append(values, s.populatedValues(seg)...)
	}
	return keys, values
}

// WindowCardinality sums sizes over [windowStart, windowStart+windowLength).
func (s *Storage) WindowCardinality(windowStart, windowLength int) int {
	total := 0
	for seg := windowStart; seg < windowStart+windowLength; seg++ {
		total += s.Size(seg)
	}
	return total
}

// Extend grows the storage to numSegments+delta segments. Only supported
// in rewiring mode; heap mode returns an error so the caller performs a
// full reallocation instead (§4.3).
func (s *Storage) Extend(delta int) error {
	if delta <= 0 {
		return invalidArgument("Extend: delta must be positive")
	}
	if s.mode != rewiringBacked {
		return invalidArgument("Extend: not supported in heap mode; caller must reallocate")
	}

	newSegments := s.numSegments + delta
	keysExtentSize := s.keysPool.ExtentSize()
	bytesNeeded := int64(newSegments) * int64(s.segmentCapacity) * 8
	extentsNeeded := int(ceilDiv(bytesNeeded, keysExtentSize))

	if extentsNeeded > s.keysPool.UserExtents() {
		if err := s.keysPool.Extend(extentsNeeded); err != nil {
			return err
		}
		if err := s.valuesPool.Extend(extentsNeeded); err != nil {
			return err
		}
	}

	sizesBytes := int64(newSegments) * 2
	sizesExtentSize := s.sizesSub.ExtentSize()
	sizesExtentsNeeded := int(ceilDiv(sizesBytes, sizesExtentSize))
	if sizesExtentsNeeded > s.sizesSub.AllocatedExtents() {
		if err := s.sizesSub.Extend(sizesExtentsNeeded - s.sizesSub.AllocatedExtents()); err != nil {
			return err
		}
	}

	s.numSegments = newSegments
	return nil
}

// GrowHeap extends heap-backed storage to newNumSegments by reallocating
// larger backing slices and copying the existing segments' slot ranges
// forward unchanged, appending fresh empty segments at the tail. This is
// the "full reallocation in the caller" growth path §4.3 requires in heap
// mode, invoked by a doubling resize (§4.7.5) when the storage has no
// rewired substrate to extend.
func (s *Storage) GrowHeap(newNumSegments int) error {
	if s.mode != heapBacked {
		return invalidArgument("GrowHeap: only valid in heap mode")
	}
	if newNumSegments <= s.numSegments {
		return invalidArgument("GrowHeap: newNumSegments must exceed the current segment count")
	}
	newKeys := make([]int64, newNumSegments*s.segmentCapacity)
	newValues := make([]int64, newNumSegments*s.segmentCapacity)
	newSizes := make([]uint16, newNumSegments)
	copy(newKeys, s.heapKeys)
	copy(newValues, s.heapValues)
	copy(newSizes, s.heapSizes)
	s.heapKeys = newKeys
	s.heapValues = newValues
	s.heapSizes = newSizes
	s.numSegments = newNumSegments
	return nil
}

// ShrinkHeap recreates heap-backed storage at newNumSegments, assuming the
// caller has already consolidated every live element into the first
// newNumSegments segments (e.g. via a halving resize's rewiring-free
// spread); segments beyond that boundary are simply dropped. Cardinality
// is recomputed from the retained sizes so a caller error leaves it
// consistent rather than stale.
func (s *Storage) ShrinkHeap(newNumSegments int) error {
	if s.mode != heapBacked {
		return invalidArgument("ShrinkHeap: only valid in heap mode")
	}
	if newNumSegments <= 0 || newNumSegments >= s.numSegments {
		return invalidArgument("ShrinkHeap: newNumSegments out of range")
	}
	newKeys := make([]int64, newNumSegments*s.segmentCapacity)
	newValues := make([]int64, newNumSegments*s.segmentCapacity)
	newSizes := make([]uint16, newNumSegments)
	copy(newKeys, s.heapKeys[:newNumSegments*s.segmentCapacity])
	copy(newValues, s.heapValues[:newNumSegments*s.segmentCapacity])
	copy(newSizes, s.heapSizes[:newNumSegments])

	total := 0
	for _, n := range newSizes {
		total += int(n)
	}

	s.heapKeys = newKeys
	s.heapValues = newValues
	s.heapSizes = newSizes
	s.numSegments = newNumSegments
	s.cardinality = total
	return nil
}

// Shrink reduces storage to numSegments-delta segments; delta must be a
// multiple of the keys/values extent's segment capacity (§4.3 "shrink(Δ)").
func (s *Storage) Shrink(delta int) error {
	if s.mode != rewiringBacked {
		return invalidArgument("Shrink: requires rewiring mode")
	}
	if delta <= 0 || delta > s.numSegments {
		return invalidArgument("Shrink: delta out of range")
	}
	if int64(delta)%s.segmentsPerExt != 0 {
		return invalidArgument("Shrink: delta must be a multiple of segments_per_extent")
	}

	newSegments := s.numSegments - delta
	keysExtentSize := s.keysPool.ExtentSize()
	bytesNeeded := int64(newSegments) * int64(s.segmentCapacity) * 8
	extentsNeeded := int(ceilDiv(bytesNeeded, keysExtentSize))
	if extentsNeeded < 1 {
		extentsNeeded = 1
	}

	if extentsNeeded < s.keysPool.UserExtents() {
		if err := s.keysPool.Shrink(extentsNeeded); err != nil {
			return err
		}
		if err := s.valuesPool.Shrink(extentsNeeded); err != nil {
			return err
		}
	}

	// Callers (Halve) have already consolidated every live element into
	// the surviving lower segments via SetSegment; the dropped upper half
	// still carries its pre-consolidation sizes, so cardinality is
	// recomputed from the retained sizes rather than left as the whole
	// array's stale total (mirrors ShrinkHeap).
	total := 0
	sizes := s.sizesView()
	for seg := 0; seg < newSegments; seg++ {
		total += int(sizes[seg])
	}

	s.numSegments = newSegments
	s.cardinality = total
	return nil
}
