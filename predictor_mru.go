package pma

import "sort"

// mruSlot is one physically fixed array slot of an MRUPredictor. Its index
// within MRUPredictor.slots is the "permuted position" spec.md §4.9 and
// §9 ("Callbacks-through-indices") name: stable across every update/move
// so the rebalancer can later call ResetPointer(permutedPosition, ...) to
// patch a pointer after a spread, without that patch racing the entry's
// position in MRU order.
type mruSlot struct {
	pointer  int
	count    int
	occupied bool
	prev     int // index of the neighbour closer to the head, -1 if none
	next     int // index of the neighbour closer to the tail, -1 if none
}

// MRUPredictor is the fixed-capacity circular MRU queue of spec.md §4.9:
// counts saturate at count_max, a present pointer moves exactly one step
// toward the head per update (not straight to the head — a slow-promotion
// scheme, distinct from classic move-to-front LRU), and a miss against a
// full queue decrements the tail's count, evicting only when it reaches
// zero (a CLOCK-style second chance before the new pointer is admitted).
//
// Grounded on original_source/pma/adaptive/bh07_v2/predictor.cpp for the
// update/eviction algorithm; the Go doubly-linked-list-over-an-array idiom
// (stable slot indices, prev/next fields instead of pointer swapping) is
// the same shape internal/fastmap.Map uses for its backing array (a fixed
// slice indexed by stable position, mutated in place rather than
// reallocated on every change).
type MRUPredictor struct {
	slots    []mruSlot
	head     int
	tail     int
	free     []int
	byPtr    map[int]int
	countMax int
	size     int
}

// NewMRUPredictor creates a predictor with capacity padded up to a power
// of two (spec.md §4.9 "capacity padded up to a power of two") and counts
// saturating at countMax.
func NewMRUPredictor(capacity, countMax int) *MRUPredictor {
	cap := hyperceil(capacity)
	p := &MRUPredictor{
		slots:    make([]mruSlot, cap),
		head:     -1,
		tail:     -1,
		byPtr:    make(map[int]int, cap),
		countMax: countMax,
	}
	for i := cap - 1; i >= 0; i-- {
		p.free = append(p.free, i)
	}
	return p
}

// Update records an insertion hot-spot at pointer (spec.md §4.9
// "update(pointer)").
func (p *MRUPredictor) Update(pointer int) {
	if idx, ok := p.byPtr[pointer]; ok {
		p.bumpCount(idx)
		p.stepTowardHead(idx)
		return
	}
	if len(p.free) > 0 {
		idx := p.free[len(p.free)-1]
		p.free = p.free[:len(p.free)-1]
		p.slots[idx] = mruSlot{pointer: pointer, count: 1, occupied: true}
		p.byPtr[pointer] = idx
		p.insertAtHead(idx)
		p.size++
		return
	}
	if p.tail < 0 {
		return
	}
	p.slots[p.tail].count--
	if p.slots[p.tail].count <= 0 {
		p.evict(p.tail)
	}
}

func (p *MRUPredictor) bumpCount(idx int) {
	p.slots[idx].count++
	if p.slots[idx].count > p.countMax {
		p.slots[idx].count = p.countMax
	}
}

// stepTowardHead swaps slot idx with its immediate head-ward neighbour,
// moving it exactly one position closer to the head (spec.md §4.9: "move
// the entry one step toward the head").
func (p *MRUPredictor) stepTowardHead(idx int) {
	a := p.slots[idx].prev
	if a < 0 {
		return // already the head
	}
	b := idx
	before := p.slots[a].prev
	after := p.slots[b].next

	if before >= 0 {
		p.slots[before].next = b
	} else {
		p.head = b
	}
	p.slots[b].prev = before
	p.slots[b].next = a

	p.slots[a].prev = b
	p.slots[a].next = after

	if after >= 0 {
		p.slots[after].prev = a
	} else {
		p.tail = a
	}
}

func (p *MRUPredictor) insertAtHead(idx int) {
	p.slots[idx].prev = -1
	p.slots[idx].next = p.head
	if p.head >= 0 {
		p.slots[p.head].prev = idx
	}
	p.head = idx
	if p.tail < 0 {
		p.tail = idx
	}
}

func (p *MRUPredictor) evict(idx int) {
	prev := p.slots[idx].prev
	next := p.slots[idx].next
	if prev >= 0 {
		p.slots[prev].next = next
	} else {
		p.head = next
	}
	if next >= 0 {
		p.slots[next].prev = prev
	} else {
		p.tail = prev
	}
	delete(p.byPtr, p.slots[idx].pointer)
	p.slots[idx] = mruSlot{}
	p.free = append(p.free, idx)
	p.size--
}

// PredictorItem is one entry returned by Items: a recorded hot pointer and
// the stable slot index the rebalancer must use to patch it after a
// spread (spec.md §4.9 "permuted position").
type PredictorItem struct {
	Pointer         int
	Count           int
	PermutedPosition int
}

// Items returns the current entries whose pointer falls in [min, max],
// sorted by pointer ascending (spec.md §4.9 "items(min, max)").
func (p *MRUPredictor) Items(min, max int) []PredictorItem {
	var out []PredictorItem
	for idx := range p.slots {
		s := p.slots[idx]
		if !s.occupied || s.pointer < min || s.pointer > max {
			continue
		}
		out = append(out, PredictorItem{Pointer: s.pointer, Count: s.count, PermutedPosition: idx})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pointer < out[j].Pointer })
	return out
}

// ResetPointer updates the pointer recorded at permutedPosition to
// newPointer, used by the rebalancer to keep predictor entries valid
// across a spread that moved the underlying element (spec.md §9
// "Callbacks-through-indices").
func (p *MRUPredictor) ResetPointer(permutedPosition, newPointer int) {
	if permutedPosition < 0 || permutedPosition >= len(p.slots) || !p.slots[permutedPosition].occupied {
		return
	}
	old := p.slots[permutedPosition].pointer
	delete(p.byPtr, old)
	p.slots[permutedPosition].pointer = newPointer
	p.byPtr[newPointer] = permutedPosition
}

// orderedEntries walks the list head to tail, i.e. most-recent first.
func (p *MRUPredictor) orderedEntries() []mruSlot {
	out := make([]mruSlot, 0, p.size)
	for idx := p.head; idx >= 0; idx = p.slots[idx].next {
		out = append(out, p.slots[idx])
	}
	return out
}

// Resize changes the predictor's backing capacity (spec.md §4.9
// "resize(new_capacity)"): entries are copied in logical (MRU-first)
// order into a fresh backing array, truncating the least-recent entries
// if the new capacity is smaller than the current population.
func (p *MRUPredictor) Resize(newCapacity int) {
	cap := hyperceil(newCapacity)
	if cap == len(p.slots) {
		return
	}
	entries := p.orderedEntries()
	if len(entries) > cap {
		entries = entries[:cap]
	}

	fresh := NewMRUPredictor(cap, p.countMax)
	for i := len(entries) - 1; i >= 0; i-- {
		fresh.Update(entries[i].pointer)
		if idx, ok := fresh.byPtr[entries[i].pointer]; ok {
			fresh.slots[idx].count = entries[i].count
		}
	}
	*p = *fresh
}

// SetMaxCount changes the saturation bound for future and existing entries
// (spec.md §4.9 "set_max_count(m)", §6 "1 <= m <= 2^16").
func (p *MRUPredictor) SetMaxCount(m int) error {
	if m < 1 || m > (1<<16) {
		return invalidArgument("set_max_count: m out of [1, 2^16] range")
	}
	p.countMax = m
	for i := range p.slots {
		if p.slots[i].occupied && p.slots[i].count > m {
			p.slots[i].count = m
		}
	}
	return nil
}

// Len returns the number of recorded entries.
func (p *MRUPredictor) Len() int { return p.size }
