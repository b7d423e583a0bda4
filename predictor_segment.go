package pma

import "github.com/packedmem/pma/internal/fastmap"

// SegmentPredictor is the segment-indexed predictor/detector variant of
// spec.md §4.9: "a fixed-size array indexed by segment id, updated on
// insert with (segment, predecessor, successor); emits a weight per
// segment proportional to the recent hammer count at that segment's
// predecessor/successor sentinels; cleared on full-array rebalance."
//
// Grounded on original_source/pma/adaptive/int2/move_detector_info.hpp for
// the "registered segments that need remapping after a move" shape; the
// predecessor/successor reverse lookup used by ApplyPermutation is adapted
// from internal/fastmap (the teacher's uint32-keyed open-addressing map),
// repurposed here as the old-segment-id -> new-segment-id translation the
// partitioner hands back after a windowed rebalance (Design Notes §9
// "Callbacks-through-indices").
type SegmentPredictor struct {
	tallies []uint32
	edges   []segmentEdge
}

// segmentEdge remembers the most recent boundary keys an insert reported
// for a segment, so Weight can be explained and so ApplyPermutation has
// something meaningful to carry across a remap.
type segmentEdge struct {
	predecessor int64
	successor   int64
}

// NewSegmentPredictor creates a tally array for numSegments segments.
func NewSegmentPredictor(numSegments int) *SegmentPredictor {
	return &SegmentPredictor{
		tallies: make([]uint32, numSegments),
		edges:   make([]segmentEdge, numSegments),
	}
}

// Update records an insertion into segment, bumping its tally and
// remembering the boundary keys the storage layer reported (spec.md §4.9
// "updated on insert with (segment, predecessor, successor)").
func (p *SegmentPredictor) Update(segment int, predecessor, successor int64) error {
	if segment < 0 || segment >= len(p.tallies) {
		return invalidArgument("segment predictor: segment out of range")
	}
	if p.tallies[segment] < ^uint32(0) {
		p.tallies[segment]++
	}
	p.edges[segment] = segmentEdge{predecessor: predecessor, successor: successor}
	return nil
}

// Weight returns the current hammer-count tally for segment, the value
// the adaptive partitioner consults to bias free space (spec.md §4.9).
func (p *SegmentPredictor) Weight(segment int) uint32 {
	if segment < 0 || segment >= len(p.tallies) {
		return 0
	}
	return p.tallies[segment]
}

// NumSegments returns the tally array's length.
func (p *SegmentPredictor) NumSegments() int { return len(p.tallies) }

// Clear resets every tally to zero (spec.md §4.9 "cleared on full-array
// rebalance").
func (p *SegmentPredictor) Clear() {
	for i := range p.tallies {
		p.tallies[i] = 0
		p.edges[i] = segmentEdge{}
	}
}

// Resize grows or shrinks the tally array to numSegments, preserving
// tallies for surviving low-numbered segments and zeroing new ones. Used
// after a full structural resize, where segment identities are not
// preserved across the boundary (contrast ApplyPermutation, used for a
// windowed rebalance that explicitly tracks where each segment went).
func (p *SegmentPredictor) Resize(numSegments int) {
	fresh := make([]uint32, numSegments)
	freshEdges := make([]segmentEdge, numSegments)
	copy(fresh, p.tallies)
	copy(freshEdges, p.edges)
	p.tallies = fresh
	p.edges = freshEdges
}

// SegmentMove records that the segment previously numbered From is now
// numbered To, as returned by a windowed rebalance (spec.md §9
// "Callbacks-through-indices": "returning from the partitioner a
// permutation mapping each recorded position to its new location").
type SegmentMove struct {
	From, To int
}

// ApplyPermutation carries tallies across a windowed rebalance: segments
// named in moves keep their accumulated weight at the new index; segments
// not named (outside the rebalanced window) keep their tally at their
// existing index unless it collides with a moved-in segment, in which
// case the incoming weight is added. newNumSegments is the window's
// segment count after the rebalance.
func (p *SegmentPredictor) ApplyPermutation(newNumSegments int, moves []SegmentMove) {
	lookup := fastmap.New[uint32](len(moves))
	moved := make(map[int]bool, len(moves))
	for _, m := range moves {
		lookup.Set(uint32(m.From), uint32(m.To))
		moved[m.From] = true
	}

	fresh := make([]uint32, newNumSegments)
	freshEdges := make([]segmentEdge, newNumSegments)
	for from := range p.tallies {
		tally := p.tallies[from]
		if tally == 0 {
			continue
		}
		to := from
		if mapped, ok := lookup.Get(uint32(from)); ok {
			to = int(mapped)
		}
		if to < 0 || to >= newNumSegments {
			continue
		}
		fresh[to] += tally
		if p.edges[from] != (segmentEdge{}) {
			freshEdges[to] = p.edges[from]
		}
	}
	p.tallies = fresh
	p.edges = freshEdges
}
