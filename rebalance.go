package pma

// RebalanceOp names the three outcomes a rebalance planning pass can reach
// (spec.md §4.7.2).
type RebalanceOp int

const (
	// Rebalance spreads an existing window back within density bounds
	// without changing the segment count (§4.7.1, §4.7.3/§4.7.4).
	Rebalance RebalanceOp = iota

	// Resize grows or shrinks the substrate itself because no calibrator
	// window — including the whole array — fits the direction of the
	// operation within bounds (§4.7.1 "If the root level fails").
	Resize

	// ResizeRebalance is a resize whose spread is carried out as a
	// rewiring operation rather than a full recreate-and-copy, chosen
	// when the target extent count is at least one extent and the
	// buffered pool's current budget would otherwise go to waste
	// (§4.7.2).
	ResizeRebalance
)

// RebalancePlan is the output of planning a rebalance or resize (spec.md
// §4.7.2): what to do, over what window, and — for an insert-triggered
// plan — the triple that must be merged in during the spread rather than
// applied before or after it.
type RebalancePlan struct {
	Operation        RebalanceOp
	WindowStart      int
	WindowLength     int
	CardinalityAfter int
	// Level is the calibrator-tree level the window was found at (§4.7.1),
	// i.e. the "height" argument the adaptive partitioner (§4.8) should
	// start its local recursion from when planning the spread over this
	// window.
	Level         int
	HasInsert     bool
	InsertKey     int64
	InsertValue   int64
	InsertSegment int
}

// windowForLevel computes the calibrator window of length 2^(level-1)
// segments that contains segment s, clipped against numSegments (§4.7.1
// "align the window to a 2^(l-1)-segment boundary ... clipping against
// S").
func windowForLevel(level, segment, numSegments int) (start, length int) {
	length = 1 << uint(level-1)
	if length > numSegments {
		length = numSegments
	}
	start = (segment / length) * length
	if start+length > numSegments {
		length = numSegments - start
	}
	return start, length
}

// PlanRebalance implements spec.md §4.7.1-4.7.2: walking the calibrator
// tree upward from segment, looking for the lowest level whose window
// density fits the bounds for the operation's direction. insert selects
// the direction (true: inserting into segment, density must stay <=
// theta; false: deleting from segment, density must stay >= rho). key and
// value are only meaningful when insert is true, and are carried
// unevaluated into the resulting plan so the eventual spread can merge
// them in directly (§4.7.3 "inserting the new (key, value) at its sorted
// position").
func PlanRebalance(storage *Storage, calc *densityCalculator, segment int, insert bool, key, value int64) *RebalancePlan {
	numSegments := storage.NumSegments()
	height := calibratorHeight(numSegments)
	capacity := storage.SegmentCapacity()

	delta := 1
	if !insert {
		delta = -1
	}

	for level := 1; level <= height; level++ {
		start, length := windowForLevel(level, segment, numSegments)
		cardinalityAfter := storage.WindowCardinality(start, length) + delta
		density := float64(cardinalityAfter) / float64(length*capacity)
		rho, theta := calc.Thresholds(level, height, numSegments)

		fits := density <= theta
		if !insert {
			fits = density >= rho
		}
		if fits {
			return &RebalancePlan{
				Operation:        Rebalance,
				WindowStart:      start,
				WindowLength:     length,
				CardinalityAfter: cardinalityAfter,
				Level:            level,
				HasInsert:        insert,
				InsertKey:        key,
				InsertValue:      value,
				InsertSegment:    segment,
			}
		}
	}

	return &RebalancePlan{
		Operation:        Resize,
		WindowStart:      0,
		WindowLength:     numSegments,
		CardinalityAfter: storage.Cardinality() + delta,
		Level:            height,
		HasInsert:        insert,
		InsertKey:        key,
		InsertValue:      value,
		InsertSegment:    segment,
	}
}
