package rewiring

// RewiredMemory reserves a contiguous virtual address range
// [start, start+max_memory) whose first allocated_extents extents are
// backed by physical pages from a shared, anonymous file descriptor, and
// exposes swap as the primitive that exchanges the physical backing of
// two in-range extents without copying data (spec.md §4.1).
//
// Grounded on teacher's mmap/mmap_unix.go (New/Remap/Munmap), generalised
// from "map one file at a kernel-chosen address" to "reserve a fixed
// address range up front, then remap individual fixed-size extents within
// it" — the capability MAP_FIXED gives that the teacher's wrapper never
// needed for its own on-disk B+-tree use case.
type RewiredMemory struct {
	base           uintptr
	fd             int
	pagesPerExtent int
	pageSize       int
	extentSize     int64
	maxMemory      int64
	hugePages      bool

	allocated int     // allocated_extents
	t         []int64 // translation table: t[virtual extent] = physical extent offset
}

// New creates the reservation described by (pages_per_extent,
// initial_extents, max_memory) (spec.md §4.1 "Construction").
func New(pagesPerExtent, pageSize, initialExtents int, maxMemory int64, hugePages bool) (*RewiredMemory, error) {
	if pagesPerExtent <= 0 || pageSize <= 0 || initialExtents < 0 || maxMemory <= 0 {
		return nil, opError("new", errInvalidConfig)
	}
	extentSize := int64(pagesPerExtent) * int64(pageSize)
	if int64(initialExtents)*extentSize > maxMemory {
		return nil, &CapacityExceededError{Requested: int64(initialExtents) * extentSize, Available: maxMemory}
	}

	base, err := reserveAnonymous(maxMemory)
	if err != nil {
		return nil, err
	}

	fd, err := newSharedFile(int64(initialExtents)*extentSize, hugePages)
	if err != nil {
		releaseRange(base, int(maxMemory))
		return nil, err
	}

	if initialExtents > 0 {
		if err := mapFixed(fd, 0, base, int(int64(initialExtents)*extentSize), true); err != nil {
			releaseRange(base, int(maxMemory))
			return nil, err
		}
	}

	t := make([]int64, initialExtents)
	for i := range t {
		t[i] = int64(i)
	}

	return &RewiredMemory{
		base:           base,
		fd:             fd,
		pagesPerExtent: pagesPerExtent,
		pageSize:       pageSize,
		extentSize:     extentSize,
		maxMemory:      maxMemory,
		hugePages:      hugePages,
		allocated:      initialExtents,
		t:              t,
	}, nil
}

// StartAddress returns the base of the reserved virtual range.
func (r *RewiredMemory) StartAddress() uintptr { return r.base }

// ExtentSize returns pages_per_extent * page_size in bytes.
func (r *RewiredMemory) ExtentSize() int64 { return r.extentSize }

// AllocatedExtents returns the number of extents currently backed by
// physical pages.
func (r *RewiredMemory) AllocatedExtents() int { return r.allocated }

// AllocatedMemorySize returns allocated_extents * extent_size.
func (r *RewiredMemory) AllocatedMemorySize() int64 {
	return int64(r.allocated) * r.extentSize
}

// MaxMemory returns the total reserved virtual range in bytes.
func (r *RewiredMemory) MaxMemory() int64 { return r.maxMemory }

// Extend grows the file by k*extent_size bytes and appends k identity
// entries to T (spec.md §4.1 "extend(k)").
func (r *RewiredMemory) Extend(k int) error {
	if k <= 0 {
		return opError("extend", errInvalidConfig)
	}
	newAllocated := r.allocated + k
	newLength := int64(newAllocated) * r.extentSize
	if newLength > r.maxMemory {
		return &CapacityExceededError{Requested: newLength, Available: r.maxMemory}
	}

	if err := growSharedFile(r.fd, newLength); err != nil {
		return err
	}

	oldLength := int64(r.allocated) * r.extentSize
	addAddr := r.base + uintptr(oldLength)
	addLength := int(newLength - oldLength)

	// Linux can sometimes grow the existing mapping in place; if that
	// fails (always, on Darwin, and whenever the tail isn't already
	// mapped writable) fall back to an explicit fixed mapping of the
	// newly truncated file range over the already-reserved address.
	if _, err := tryExtendInPlace(r.base, int(oldLength), int(newLength)); err != nil {
		if err := mapFixed(r.fd, oldLength, addAddr, addLength, true); err != nil {
			return err
		}
	}

	for i := r.allocated; i < newAllocated; i++ {
		r.t = append(r.t, int64(i))
	}
	r.allocated = newAllocated
	return nil
}

// Swap exchanges the physical backing of the extents at addrA and addrB
// via two fixed-address mmap calls; no bytes are copied (spec.md §4.1
// "swap(addr_a, addr_b)"). T is left unchanged on any failure.
func (r *RewiredMemory) Swap(addrA, addrB uintptr) error {
	if addrA == addrB {
		return opError("swap", errSameAddress)
	}
	i, okA := r.extentIndex(addrA)
	j, okB := r.extentIndex(addrB)
	if !okA || !okB {
		return opError("swap", errUnaligned)
	}
	if i >= r.allocated || j >= r.allocated {
		return opError("swap", errOutOfRange)
	}

	p, q := r.t[i], r.t[j]
	length := int(r.extentSize)

	if err := mapFixed(r.fd, q*r.extentSize, addrA, length, true); err != nil {
		return err
	}
	if err := mapFixed(r.fd, p*r.extentSize, addrB, length, true); err != nil {
		// Best-effort restore of addrA; T is still unchanged either way,
		// so the observable state before this call is what a retry sees.
		_ = mapFixed(r.fd, p*r.extentSize, addrA, length, true)
		return err
	}

	r.t[i], r.t[j] = q, p
	return nil
}

// extentIndex returns the virtual extent index for addr, and whether addr
// is extent-aligned and within the reserved range.
func (r *RewiredMemory) extentIndex(addr uintptr) (int, bool) {
	if addr < r.base {
		return 0, false
	}
	off := int64(addr - r.base)
	if off%r.extentSize != 0 || off >= r.maxMemory {
		return 0, false
	}
	return int(off / r.extentSize), true
}

// ExtentAddress returns the virtual address of extent index i.
func (r *RewiredMemory) ExtentAddress(i int) uintptr {
	return r.base + uintptr(int64(i)*r.extentSize)
}

// Close releases the reservation and closes the backing file descriptor.
func (r *RewiredMemory) Close() error {
	if err := releaseRange(r.base, int(r.maxMemory)); err != nil {
		return err
	}
	return closeFd(r.fd)
}
