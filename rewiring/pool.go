package rewiring

// Pool wraps a RewiredMemory substrate with a free list of "buffer"
// extents living past the user-visible end of the reservation, used as
// scratch space during a rewiring spread (spec.md §4.2).
//
// Grounded on teacher's spill/spill.go (Buffer: a segmented, free-list
// managed mmap region) and spill/bitmap.go (Bitmap.Allocate/Release) for
// the occupancy-bookkeeping idiom; the free list itself is kept as a
// plain slice stack rather than a bitmap, mirroring spill.Buffer's own
// split between a segment list (coarse, for growth) and a bitmap (fine,
// for per-slot occupancy) — our "slots" are whole extents, coarse enough
// that a stack suffices and a bitmap would only add indirection.
type Pool struct {
	sub         *RewiredMemory
	userExtents int
	free        []int // stack of free buffer extent indices
	used        int   // used_buffers
}

// NewPool wraps sub, treating its first userExtents extents as the
// user-visible region and the remainder as free buffers.
func NewPool(sub *RewiredMemory, userExtents int) (*Pool, error) {
	if userExtents < 0 || userExtents > sub.AllocatedExtents() {
		return nil, opError("new pool", errInvalidConfig)
	}
	p := &Pool{sub: sub, userExtents: userExtents}
	for i := userExtents; i < sub.AllocatedExtents(); i++ {
		p.free = append(p.free, i)
	}
	return p, nil
}

// Base returns the start address of the wrapped substrate's reservation,
// for callers that need to view the user region as a typed slice (e.g.
// Storage's keys/values arrays).
func (p *Pool) Base() uintptr { return p.sub.StartAddress() }

// ExtentSize returns the wrapped substrate's extent size in bytes.
func (p *Pool) ExtentSize() int64 { return p.sub.ExtentSize() }

// UserExtents returns the current size of the user-visible region, in
// extents.
func (p *Pool) UserExtents() int { return p.userExtents }

// UserExtentAddress returns the virtual address of user extent i (0-based,
// within the user-visible region), for callers that need to address a
// specific destination extent directly (e.g. a streamed rewiring spread
// swapping a scratch extent into place).
func (p *Pool) UserExtentAddress(i int) uintptr { return p.sub.ExtentAddress(i) }

// TotalBuffers returns total_buffers = allocated_extents - user_extents.
func (p *Pool) TotalBuffers() int {
	return p.sub.AllocatedExtents() - p.userExtents
}

// FreeBuffers returns total_buffers - used_buffers.
func (p *Pool) FreeBuffers() int {
	return len(p.free)
}

func (p *Pool) isBuffer(addr uintptr) bool {
	idx, ok := p.sub.extentIndex(addr)
	return ok && idx >= p.userExtents
}

// acquireBuffer returns a free buffer address, growing the substrate by
// max(4, floor(0.5*total_buffers)) extents first if the free list is
// empty (spec.md §4.2 "acquire_buffer()").
func (p *Pool) acquireBuffer() (uintptr, error) {
	if len(p.free) == 0 {
		grow := p.TotalBuffers() / 2
		if grow < 4 {
			grow = 4
		}
		before := p.sub.AllocatedExtents()
		if err := p.sub.Extend(grow); err != nil {
			return 0, err
		}
		for i := before; i < p.sub.AllocatedExtents(); i++ {
			p.free = append(p.free, i)
		}
	}

	n := len(p.free)
	idx := p.free[n-1]
	p.free = p.free[:n-1]
	p.used++
	return p.sub.ExtentAddress(idx), nil
}

// SwapAndRelease exchanges the physical backing of p and q, where exactly
// one of the two must be a buffer extent; the buffer address (by virtual
// position, regardless of which physical page it now carries) is pushed
// back onto the free list (spec.md §4.2 "swap_and_release").
func (p *Pool) SwapAndRelease(addrA, addrB uintptr) error {
	aIsBuf := p.isBuffer(addrA)
	bIsBuf := p.isBuffer(addrB)
	if aIsBuf == bIsBuf {
		return &BufferZoneError{AddrA: addrA, AddrB: addrB}
	}

	if err := p.sub.Swap(addrA, addrB); err != nil {
		return err
	}

	bufAddr := addrA
	if bIsBuf {
		bufAddr = addrB
	}
	idx, _ := p.sub.extentIndex(bufAddr)
	p.free = append(p.free, idx)
	p.used--
	return nil
}

// Extend raises user_extents to n, reclaiming any free buffer extents
// that now fall inside the new user region, and growing the substrate
// first if n exceeds its current total (spec.md §4.2 "extend(n)").
// Precondition: used_buffers == 0.
func (p *Pool) Extend(n int) error {
	if p.used != 0 {
		return opError("pool extend", errScratchOutstanding)
	}
	if n < p.userExtents {
		return opError("pool extend", errInvalidConfig)
	}
	if n > p.sub.AllocatedExtents() {
		if err := p.sub.Extend(n - p.sub.AllocatedExtents()); err != nil {
			return err
		}
	}
	kept := p.free[:0]
	for _, idx := range p.free {
		if idx >= n {
			kept = append(kept, idx)
		}
	}
	p.free = kept
	p.userExtents = n
	return nil
}

// Shrink moves the user/buffer boundary down to n, promoting the released
// user extents to free buffers (spec.md §4.2 "shrink(n)"). Precondition:
// used_buffers == 0.
func (p *Pool) Shrink(n int) error {
	if p.used != 0 {
		return opError("pool shrink", errScratchOutstanding)
	}
	if n > p.userExtents || n < 0 {
		return opError("pool shrink", errInvalidConfig)
	}
	for i := n; i < p.userExtents; i++ {
		p.free = append(p.free, i)
	}
	p.userExtents = n
	return nil
}

// Close releases the wrapped substrate's reservation and file descriptor.
func (p *Pool) Close() error { return p.sub.Close() }

// Scratch is a drop-guard around one acquired buffer extent (Design Notes
// §9 "Scoped scratch resources"): callers must either SwapInto a final
// destination or Abandon it, and both paths are safe to call from a
// deferred cleanup on an error return.
type Scratch struct {
	pool     *Pool
	addr     uintptr
	resolved bool
}

// Acquire reserves one buffer extent, returned wrapped in a Scratch so
// the caller can defer its resolution.
func (p *Pool) Acquire() (*Scratch, error) {
	addr, err := p.acquireBuffer()
	if err != nil {
		return nil, err
	}
	return &Scratch{pool: p, addr: addr}, nil
}

// Addr returns the scratch extent's virtual address.
func (s *Scratch) Addr() uintptr { return s.addr }

// SwapInto rewires dest to carry what was written into this scratch
// extent, then releases the scratch slot back to the pool.
func (s *Scratch) SwapInto(dest uintptr) error {
	if s.resolved {
		return opError("scratch swap", errScratchAlreadyResolved)
	}
	if err := s.pool.SwapAndRelease(dest, s.addr); err != nil {
		return err
	}
	s.resolved = true
	return nil
}

// Abandon releases the scratch extent without swapping it anywhere,
// for use on an error path where nothing was written that needs to
// survive. Safe to call more than once and safe to call after SwapInto.
func (s *Scratch) Abandon() {
	if s.resolved {
		return
	}
	idx, ok := s.pool.sub.extentIndex(s.addr)
	if ok {
		s.pool.free = append(s.pool.free, idx)
		s.pool.used--
	}
	s.resolved = true
}
