// Package fastmap provides a fast hash map for uint32 keys using
// Fibonacci hashing and open addressing.
//
// Adapted from the teacher's internal/fastmap (a uint32 -> unsafe.Pointer
// map used for MDBX page-number lookups); used here by
// SegmentPredictor.ApplyPermutation as the old -> new segment-id map
// when a move-detector permutation is applied (spec.md §4.9), so each
// tally can be re-homed without scanning the move list. Generalised from a raw
// unsafe.Pointer payload to a Go generic parameter, since this module has
// no need for the teacher's original cgo-adjacent pointer aliasing.
package fastmap

// Map is an open-addressing, linear-probing hash map keyed by uint32.
type Map[V any] struct {
	buckets []bucket[V]
	count   int
	mask    uint32
}

type bucket[V any] struct {
	key   uint32
	value V
	used  bool // needed because key 0 may be a valid key
}

// fibHash32 is 2^32 divided by the golden ratio, used for Fibonacci
// hashing: multiplying by it spreads sequential keys across the table.
const fibHash32 = 2654435769

func (m *Map[V]) hash(key uint32) uint32 {
	return key * fibHash32
}

// New creates a Map with initial capacity for at least n entries.
func New[V any](n int) *Map[V] {
	cap := 8
	for cap < n*2 {
		cap <<= 1
	}
	return &Map[V]{
		buckets: make([]bucket[V], cap),
		mask:    uint32(cap - 1),
	}
}

// Get returns the value for key and whether it was present.
func (m *Map[V]) Get(key uint32) (V, bool) {
	var zero V
	if len(m.buckets) == 0 {
		return zero, false
	}
	idx := m.hash(key) & m.mask
	for {
		b := &m.buckets[idx]
		if !b.used {
			return zero, false
		}
		if b.key == key {
			return b.value, true
		}
		idx = (idx + 1) & m.mask
	}
}

// Set stores a key/value pair, growing the table first if it is at least
// half full.
func (m *Map[V]) Set(key uint32, value V) {
	if len(m.buckets) == 0 || m.count*2 >= len(m.buckets) {
		m.grow()
	}
	idx := m.hash(key) & m.mask
	for {
		b := &m.buckets[idx]
		if !b.used {
			*b = bucket[V]{key: key, value: value, used: true}
			m.count++
			return
		}
		if b.key == key {
			b.value = value
			return
		}
		idx = (idx + 1) & m.mask
	}
}

// Delete removes key from the map, if present.
func (m *Map[V]) Delete(key uint32) {
	if len(m.buckets) == 0 {
		return
	}
	idx := m.hash(key) & m.mask
	for {
		b := &m.buckets[idx]
		if !b.used {
			return
		}
		if b.key == key {
			m.deleteAt(idx)
			return
		}
		idx = (idx + 1) & m.mask
	}
}

// deleteAt removes the bucket at idx and re-inserts every entry in its
// probe run so linear probing stays correct (Robin-Hood-style hole fill).
func (m *Map[V]) deleteAt(idx uint32) {
	m.buckets[idx] = bucket[V]{}
	m.count--

	j := (idx + 1) & m.mask
	for m.buckets[j].used {
		b := m.buckets[j]
		m.buckets[j] = bucket[V]{}
		m.count--
		idx = j
		j = (j + 1) & m.mask
		m.Set(b.key, b.value)
	}
}

func (m *Map[V]) grow() {
	newCap := 8
	if len(m.buckets) > 0 {
		newCap = len(m.buckets) * 2
	}
	old := m.buckets
	m.buckets = make([]bucket[V], newCap)
	m.mask = uint32(newCap - 1)
	m.count = 0
	for _, b := range old {
		if b.used {
			m.Set(b.key, b.value)
		}
	}
}

// Len returns the number of entries currently stored.
func (m *Map[V]) Len() int { return m.count }
