package pma

import "math"

// StaticIndex is the complete, array-backed (a,b)-tree separator index of
// spec.md §4.4: B = hyperceil(block_size) keys per node, rebuilt wholesale
// whenever the segment count changes, with find() binary-searching within
// each B-ary node and descending to the rightmost child whose separator is
// <= the query key.
//
// Grounded on the teacher's node.go binary-search-within-a-node idiom
// (internal/atree.search uses the identical shape); implemented as its own
// flat, level-by-level array rather than wrapping internal/atree because
// the static index's shape is a full B-ary tree rebuilt from scratch every
// time, not an online-mutated node/leaf structure — wrapping atree here
// would mean discarding and bulk-reinserting through its top-down
// preventive-split insert on every rebuild, which is both slower and less
// faithful to §4.4's "complete tree over n separators" description than a
// direct level array.
type StaticIndex struct {
	b      int
	n      int        // number of segments (logical leaves)
	levels [][]int64  // levels[0] = leaves, levels[len-1] = root (length 1)
}

// hyperceil returns the smallest power of two >= x (spec.md §4.4 "B =
// hyperceil(block_size)").
func hyperceil(x int) int {
	if x < 2 {
		return 2
	}
	p := 1
	for p < x {
		p <<= 1
	}
	return p
}

// NewStaticIndex creates an index with B = hyperceil(blockSize) keys per
// node.
func NewStaticIndex(blockSize int) *StaticIndex {
	return &StaticIndex{b: hyperceil(blockSize)}
}

// Rebuild discards the index and allocates a complete tree for n segments.
// Every separator starts at INT64_MAX (spec.md §4.4 "rebuild(n)"): an
// empty segment must sort after every real separator so the leaf array
// stays non-decreasing (and Find's binary search therefore valid) however
// many segments remain untouched after the rebuild.
func (t *StaticIndex) Rebuild(n int) {
	t.n = n
	leafCap := n
	if leafCap < 1 {
		leafCap = 1
	}
	leaves := make([]int64, leafCap)
	for i := range leaves {
		leaves[i] = math.MaxInt64
	}

	levels := [][]int64{leaves}
	cur := leaves
	for len(cur) > 1 {
		nextLen := (len(cur) + t.b - 1) / t.b
		next := make([]int64, nextLen)
		for i := range next {
			next[i] = cur[i*t.b] // leftmost child's key, valid since storage order is globally sorted
		}
		levels = append(levels, next)
		cur = next
	}
	t.levels = levels
}

// Clear empties the index (no segments).
func (t *StaticIndex) Clear() {
	t.Rebuild(0)
}

// SetSeparatorKey writes key to leaf slot s and bubbles it up the tree
// while s remains the first child of its parent at each level (spec.md
// §4.4: "bubbles the minimum up the tree when s is the first child of its
// parent" — valid because storage order is globally non-decreasing, so a
// group's minimum is always its leftmost member).
func (t *StaticIndex) SetSeparatorKey(s int, key int64) {
	if s < 0 || s >= len(t.levels[0]) {
		return
	}
	t.levels[0][s] = key
	idx := s
	for lvl := 1; lvl < len(t.levels); lvl++ {
		if idx%t.b != 0 {
			break
		}
		parent := idx / t.b
		t.levels[lvl][parent] = key
		idx = parent
	}
}

// Find returns the segment id whose separator is the largest <= key, or 0
// if key is less than every separator (spec.md §3 "find(key)"), walking
// the tree top-down in O(h), binary-searching within each B-ary node.
func (t *StaticIndex) Find(key int64) int {
	if len(t.levels) == 0 {
		return 0
	}
	idx := 0
	for lvl := len(t.levels) - 1; lvl >= 1; lvl-- {
		child := t.levels[lvl-1]
		base := idx * t.b
		end := base + t.b
		if end > len(child) {
			end = len(child)
		}
		lo, hi := base, end
		for lo < hi {
			mid := (lo + hi) / 2
			if child[mid] <= key {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		if lo <= base {
			idx = base
		} else {
			idx = lo - 1
		}
	}
	return idx
}

// FindFirst returns the leftmost segment whose separator is >= key
// (spec.md §3 "find_first(key)"), via binary search over the leaf level
// directly: the flat leaves array is already globally sorted, so this
// needs no B-ary descent of its own.
func (t *StaticIndex) FindFirst(key int64) int {
	leaves := t.levels[0]
	lo, hi := 0, len(leaves)
	for lo < hi {
		mid := (lo + hi) / 2
		if leaves[mid] < key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo >= len(leaves) {
		return len(leaves) - 1
	}
	return lo
}

// FindLast returns the rightmost segment whose separator is <= key
// (spec.md §3 "find_last(key)").
func (t *StaticIndex) FindLast(key int64) int {
	return t.Find(key)
}

// NumSegments returns the segment count this index was last rebuilt for.
func (t *StaticIndex) NumSegments() int { return t.n }
