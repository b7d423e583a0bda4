package pma

import (
	"math"

	"github.com/packedmem/pma/internal/atree"
)

// DynamicIndex is the (a,b)-tree separator index of spec.md §4.5, keyed by
// separator_key with segment id as payload. Used by variants whose segments
// are created and destroyed outside of a single global resize.
//
// Grounded on internal/atree.Tree, which itself generalises the teacher's
// node.go/cursor.go split/merge logic. The one simplification against
// spec.md's "(inode_b, leaf_b)" pair is that internal/atree uses a single
// fanout for both internal and leaf nodes — the teacher's own B+-tree pages
// likewise use one fixed page capacity for every level, so a single b
// matches the corpus's own idiom more closely than threading two knobs
// through every node operation for a distinction that only matters for
// tuning, not correctness.
type DynamicIndex struct {
	tree    *atree.Tree[int64, int]
	current []int64 // current[s] is the separator this index last recorded for segment s
}

// NewDynamicIndex creates an empty dynamic index with fanout b (spec.md
// §4.5 default 64).
func NewDynamicIndex(b int) *DynamicIndex {
	return &DynamicIndex{tree: atree.New[int64, int](b)}
}

// Rebuild discards the index and preallocates n segments. All separators
// start at INT64_MAX (spec.md §3 "rebuild(n)"): an untouched segment must
// sort after every real separator, the same non-decreasing convention
// StaticIndex uses.
func (d *DynamicIndex) Rebuild(n int) {
	d.tree.Clear()
	d.current = make([]int64, n)
	for s := range d.current {
		d.current[s] = math.MaxInt64
		d.tree.Insert(math.MaxInt64, s)
	}
}

// Clear empties the index entirely (no segments).
func (d *DynamicIndex) Clear() {
	d.tree.Clear()
	d.current = nil
}

// SetSeparatorKey records key as segment s's separator (spec.md §3
// "set_separator_key(s, k)"), removing exactly the (old_key, s) entry this
// index previously inserted for s before adding the new one — this is the
// "remove_any" primitive of §4.5 applied precisely, since a plain RemoveAny
// could otherwise delete an unrelated segment's entry when separators
// collide (e.g. two empty segments both at the INT64_MAX sentinel).
func (d *DynamicIndex) SetSeparatorKey(s int, key int64) {
	if s >= len(d.current) {
		grown := make([]int64, s+1)
		copy(grown, d.current)
		for i := len(d.current); i < len(grown); i++ {
			grown[i] = math.MaxInt64
		}
		d.current = grown
	}
	old := d.current[s]
	d.tree.RemoveMatching(old, func(v int) bool { return v == s })
	d.tree.Insert(key, s)
	d.current[s] = key
}

// Find returns the segment id whose separator is the largest <= key, or 0
// if key is less than every separator (spec.md §3 "find(key)").
func (d *DynamicIndex) Find(key int64) int {
	leaf, i := d.tree.FindLast(key)
	if leaf == nil || i < 0 {
		return 0
	}
	if i >= leaf.Len() {
		i = leaf.Len() - 1
	}
	return leaf.Value(i)
}

// FindFirst returns the leftmost segment whose separator is >= key
// (spec.md §3 "find_first(key)").
func (d *DynamicIndex) FindFirst(key int64) int {
	leaf, i := d.tree.FindFirst(key)
	if leaf == nil {
		return len(d.current) - 1
	}
	if i >= leaf.Len() {
		if next := leaf.Next(); next != nil {
			return next.Value(0)
		}
		return len(d.current) - 1
	}
	return leaf.Value(i)
}

// FindLast returns the rightmost segment whose separator is <= key
// (spec.md §3 "find_last(key)").
func (d *DynamicIndex) FindLast(key int64) int {
	return d.Find(key)
}

// NumSegments returns the segment count this index was last rebuilt for.
func (d *DynamicIndex) NumSegments() int { return len(d.current) }
