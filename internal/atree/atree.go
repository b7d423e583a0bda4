// Package atree implements an in-memory (a,b)-tree keyed by an ordered
// type, with leaves linked in key order for O(1) successor/predecessor
// traversal.
//
// This is the shared machinery behind both separator-index variants of
// spec.md: the dynamic index (§4.5) uses it directly for online
// insert/remove, and the static index (§4.4) borrows its node-search
// routine conceptually (though the static index's complete, array-backed
// tree shape is different enough that it is implemented directly in
// index_static.go rather than on top of this package).
//
// Grounded on the teacher's node.go (binary search within a fixed-fanout
// node) and cursor.go (leftmost/rightmost descent, doubly linked leaves
// for forward/backward scanning), generalised from MDBX's on-disk,
// variable-length-key pages to an in-memory, fixed-fanout tree over a
// comparable key type. Top-down preventive splitting on insert and
// bottom-up rotate/merge on remove follow the classic (a,b)-tree
// algorithm described for the dynamic index in spec.md §4.5.
package atree

import "cmp"

// Tree is an (a,b)-tree: every non-root node holds between b/2 and b
// keys, the root holds between 1 and b, and leaves are doubly linked in
// key order (spec.md §4.5 "Node invariants").
type Tree[K cmp.Ordered, V any] struct {
	b     int
	root  *node[K, V]
	first *node[K, V] // leftmost leaf
	last  *node[K, V] // rightmost leaf
	size  int
}

type node[K cmp.Ordered, V any] struct {
	leaf     bool
	keys     []K
	values   []V       // len == len(keys), leaves only
	children []*node[K, V] // len == len(keys)+1, internal nodes only
	parent   *node[K, V]
	next     *node[K, V] // leaf chain, next in key order
	prev     *node[K, V] // leaf chain, previous in key order
}

// New creates an empty tree with fanout b (spec.md §4.5 default 64).
func New[K cmp.Ordered, V any](b int) *Tree[K, V] {
	if b < 4 {
		b = 4
	}
	root := &node[K, V]{leaf: true}
	return &Tree[K, V]{b: b, root: root, first: root, last: root}
}

// Len returns the number of entries in the tree.
func (t *Tree[K, V]) Len() int { return t.size }

// Clear discards every entry (spec.md §4.5 "clear").
func (t *Tree[K, V]) Clear() {
	root := &node[K, V]{leaf: true}
	t.root = root
	t.first = root
	t.last = root
	t.size = 0
}

// search returns the index of the first key >= target within n's key
// slice, using binary search (grounded on the teacher's node.go in-node
// binary search).
func search[K cmp.Ordered, V any](n *node[K, V], target K) int {
	lo, hi := 0, len(n.keys)
	for lo < hi {
		mid := (lo + hi) / 2
		if n.keys[mid] < target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// FindAny reports whether key is present and, if so, one of its values
// (spec.md §4.5 "find_any").
func (t *Tree[K, V]) FindAny(key K) (V, bool) {
	n := t.root
	for !n.leaf {
		i := search(n, key)
		if i < len(n.keys) && n.keys[i] == key {
			i++ // descend to the right of an equal separator
		}
		n = n.children[i]
	}
	i := search(n, key)
	if i < len(n.keys) && n.keys[i] == key {
		return n.values[i], true
	}
	var zero V
	return zero, false
}

// FindFirst returns the leftmost leaf whose key is >= key, and the index
// of that key within the leaf (spec.md §4.5 "find_first").
func (t *Tree[K, V]) FindFirst(key K) (*node[K, V], int) {
	n := t.root
	for !n.leaf {
		i := search(n, key)
		n = n.children[i]
	}
	i := search(n, key)
	if i == len(n.keys) && n.next != nil {
		n, i = n.next, 0
	}
	return n, i
}

// FindLast returns the rightmost leaf whose key is <= key, and the index
// of that key within the leaf (spec.md §4.5 "find_last").
func (t *Tree[K, V]) FindLast(key K) (*node[K, V], int) {
	n := t.root
	for !n.leaf {
		i := search(n, key)
		for i < len(n.keys) && n.keys[i] <= key {
			i++ // descend right of every separator <= key
		}
		n = n.children[i]
	}
	i := search(n, key)
	for i < len(n.keys) && n.keys[i] <= key {
		i++
	}
	i--
	if i < 0 && n.prev != nil {
		n = n.prev
		i = len(n.keys) - 1
	}
	return n, i
}

// Leaf accessors used by the iterator and the separator index wrappers.
func (l *node[K, V]) Key(i int) K     { return l.keys[i] }
func (l *node[K, V]) Value(i int) V   { return l.values[i] }
func (l *node[K, V]) Len() int        { return len(l.keys) }
func (l *node[K, V]) Next() *node[K, V] { return l.next }
func (l *node[K, V]) Prev() *node[K, V] { return l.prev }

// LeafHandle is the type exposed for leaf iteration by callers outside
// this package.
type LeafHandle[K cmp.Ordered, V any] = *node[K, V]

// First returns the leftmost leaf and index 0, or (nil, 0) if empty.
func (t *Tree[K, V]) First() (LeafHandle[K, V], int) {
	if t.size == 0 {
		return nil, 0
	}
	return t.first, 0
}

// Insert adds (key, value), splitting nodes top-down so that no full
// node is ever descended into (spec.md §4.5 "insert uses top-down
// preventive split").
func (t *Tree[K, V]) Insert(key K, value V) {
	if len(t.root.keys) == t.b {
		oldRoot := t.root
		newRoot := &node[K, V]{children: []*node[K, V]{oldRoot}}
		oldRoot.parent = newRoot
		t.root = newRoot
		t.splitChild(newRoot, 0)
	}
	t.insertNonFull(t.root, key, value)
	t.size++
}

func (t *Tree[K, V]) insertNonFull(n *node[K, V], key K, value V) {
	if n.leaf {
		i := search(n, key)
		n.keys = insertAt(n.keys, i, key)
		n.values = insertAt(n.values, i, value)
		return
	}
	i := search(n, key)
	if i < len(n.keys) && n.keys[i] == key {
		i++
	}
	if len(n.children[i].keys) == t.b {
		t.splitChild(n, i)
		if key >= n.keys[i] {
			i++
		}
	}
	t.insertNonFull(n.children[i], key, value)
}

// splitChild splits the full child at index i of parent n into two
// nodes of b/2 keys each, pushing (or, for leaves, copying) the middle
// key up into n.
func (t *Tree[K, V]) splitChild(n *node[K, V], i int) {
	child := n.children[i]
	mid := len(child.keys) / 2

	sibling := &node[K, V]{leaf: child.leaf, parent: n}

	if child.leaf {
		sibling.keys = append([]K(nil), child.keys[mid:]...)
		sibling.values = append([]V(nil), child.values[mid:]...)
		child.keys = child.keys[:mid]
		child.values = child.values[:mid]

		sibling.next = child.next
		sibling.prev = child
		if child.next != nil {
			child.next.prev = sibling
		} else {
			t.last = sibling
		}
		child.next = sibling

		n.keys = insertAt(n.keys, i, sibling.keys[0])
		n.children = insertChildAt(n.children, i+1, sibling)
		return
	}

	upKey := child.keys[mid]
	sibling.keys = append([]K(nil), child.keys[mid+1:]...)
	sibling.children = append([]*node[K, V](nil), child.children[mid+1:]...)
	for _, c := range sibling.children {
		c.parent = sibling
	}
	child.keys = child.keys[:mid]
	child.children = child.children[:mid+1]

	n.keys = insertAt(n.keys, i, upKey)
	n.children = insertChildAt(n.children, i+1, sibling)
}

func insertAt[T any](s []T, i int, v T) []T {
	s = append(s, v)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func insertChildAt[K cmp.Ordered, V any](s []*node[K, V], i int, v *node[K, V]) []*node[K, V] {
	s = append(s, nil)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func removeAt[T any](s []T, i int) []T {
	copy(s[i:], s[i+1:])
	var zero T
	s[len(s)-1] = zero
	return s[:len(s)-1]
}

// RemoveAny removes exactly one entry with the given key and returns its
// value, or (zero, false) if absent (spec.md §4.5 "remove_any").
func (t *Tree[K, V]) RemoveAny(key K) (V, bool) {
	n := t.root
	path := []*node[K, V]{n}
	idx := []int{}
	for !n.leaf {
		i := search(n, key)
		if i < len(n.keys) && n.keys[i] == key {
			i++
		}
		idx = append(idx, i)
		n = n.children[i]
		path = append(path, n)
	}

	i := search(n, key)
	if i >= len(n.keys) || n.keys[i] != key {
		var zero V
		return zero, false
	}
	value := n.values[i]
	n.keys = removeAt(n.keys, i)
	n.values = removeAt(n.values, i)
	t.size--

	t.rebalanceFrom(path, idx)

	if len(t.root.keys) == 0 && !t.root.leaf {
		t.root = t.root.children[0]
		t.root.parent = nil
	}
	return value, true
}

// RemoveMatching removes the first entry with the given key for which
// match reports true, scanning forward across duplicate-key runs (which
// may span a leaf boundary) to find it. This lets a caller identify a
// specific entry among several sharing the same key — e.g. the dynamic
// separator index (spec.md §4.5) uses it to remove exactly the
// (old_separator, segment) pair it previously inserted, rather than
// whichever duplicate RemoveAny happens to find first.
func (t *Tree[K, V]) RemoveMatching(key K, match func(V) bool) (V, bool) {
	leaf, i := t.FindFirst(key)
	for leaf != nil {
		if i >= leaf.Len() {
			leaf, i = leaf.next, 0
			continue
		}
		if leaf.keys[i] != key {
			break
		}
		if match(leaf.values[i]) {
			return t.removeLeafEntry(leaf, i)
		}
		i++
	}
	var zero V
	return zero, false
}

// removeLeafEntry removes the entry at (leaf, i) directly, without a
// second descent, then rebalances from that leaf up to the root.
func (t *Tree[K, V]) removeLeafEntry(leaf *node[K, V], i int) (V, bool) {
	path, idx := t.pathTo(leaf)
	value := leaf.values[i]
	leaf.keys = removeAt(leaf.keys, i)
	leaf.values = removeAt(leaf.values, i)
	t.size--

	t.rebalanceFrom(path, idx)
	if len(t.root.keys) == 0 && !t.root.leaf {
		t.root = t.root.children[0]
		t.root.parent = nil
	}
	return value, true
}

// pathTo reconstructs the root-to-leaf descent path and child indices for
// an already-located leaf, by walking parent pointers upward then
// reversing.
func (t *Tree[K, V]) pathTo(leaf *node[K, V]) ([]*node[K, V], []int) {
	var path []*node[K, V]
	n := leaf
	for n != nil {
		path = append(path, n)
		n = n.parent
	}
	// path is leaf..root; reverse to root..leaf.
	for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
		path[l], path[r] = path[r], path[l]
	}
	idx := make([]int, len(path)-1)
	for lvl := 0; lvl < len(path)-1; lvl++ {
		parent := path[lvl]
		child := path[lvl+1]
		for ci, c := range parent.children {
			if c == child {
				idx[lvl] = ci
				break
			}
		}
	}
	return path, idx
}

// rebalanceFrom walks the descent path bottom-up, fixing any node that
// fell below the minimum occupancy b/2 via sibling rotation or merge
// (spec.md §4.5 "remove ... rebalances bottom-up via sibling rotation or
// merge").
func (t *Tree[K, V]) rebalanceFrom(path []*node[K, V], idx []int) {
	min := t.b / 2
	for level := len(path) - 1; level > 0; level-- {
		n := path[level]
		if len(n.keys) >= min {
			return
		}
		parent := path[level-1]
		childIdx := idx[level-1]

		if childIdx > 0 && len(parent.children[childIdx-1].keys) > min {
			t.rotateRight(parent, childIdx)
			return
		}
		if childIdx < len(parent.children)-1 && len(parent.children[childIdx+1].keys) > min {
			t.rotateLeft(parent, childIdx)
			return
		}
		if childIdx > 0 {
			t.merge(parent, childIdx-1)
		} else {
			t.merge(parent, childIdx)
		}
	}
}

// rotateRight moves the last entry of the left sibling of
// parent.children[i] into that child, through parent.keys[i-1].
func (t *Tree[K, V]) rotateRight(parent *node[K, V], i int) {
	child := parent.children[i]
	left := parent.children[i-1]

	if child.leaf {
		lastKey := left.keys[len(left.keys)-1]
		lastVal := left.values[len(left.values)-1]
		left.keys = left.keys[:len(left.keys)-1]
		left.values = left.values[:len(left.values)-1]

		child.keys = insertAt(child.keys, 0, lastKey)
		child.values = insertAt(child.values, 0, lastVal)
		parent.keys[i-1] = child.keys[0]
		return
	}

	child.keys = insertAt(child.keys, 0, parent.keys[i-1])
	movedChild := left.children[len(left.children)-1]
	child.children = insertChildAt(child.children, 0, movedChild)
	movedChild.parent = child

	parent.keys[i-1] = left.keys[len(left.keys)-1]
	left.keys = left.keys[:len(left.keys)-1]
	left.children = left.children[:len(left.children)-1]
}

// rotateLeft moves the first entry of the right sibling of
// parent.children[i] into that child, through parent.keys[i].
func (t *Tree[K, V]) rotateLeft(parent *node[K, V], i int) {
	child := parent.children[i]
	right := parent.children[i+1]

	if child.leaf {
		firstKey := right.keys[0]
		firstVal := right.values[0]
		right.keys = removeAt(right.keys, 0)
		right.values = removeAt(right.values, 0)

		child.keys = append(child.keys, firstKey)
		child.values = append(child.values, firstVal)
		parent.keys[i] = right.keys[0]
		return
	}

	child.keys = append(child.keys, parent.keys[i])
	movedChild := right.children[0]
	child.children = append(child.children, movedChild)
	movedChild.parent = child

	parent.keys[i] = right.keys[0]
	right.keys = removeAt(right.keys, 0)
	right.children = removeAt(right.children, 0)
}

// merge folds parent.children[i+1] into parent.children[i], removing the
// separating key parent.keys[i].
func (t *Tree[K, V]) merge(parent *node[K, V], i int) {
	left := parent.children[i]
	right := parent.children[i+1]

	if left.leaf {
		left.keys = append(left.keys, right.keys...)
		left.values = append(left.values, right.values...)
		left.next = right.next
		if right.next != nil {
			right.next.prev = left
		} else {
			t.last = left
		}
	} else {
		left.keys = append(left.keys, parent.keys[i])
		left.keys = append(left.keys, right.keys...)
		for _, c := range right.children {
			c.parent = left
		}
		left.children = append(left.children, right.children...)
	}

	parent.keys = removeAt(parent.keys, i)
	parent.children = removeAt(parent.children, i+1)
}
