// Package rewiring implements the rewired memory substrate (spec.md §4.1)
// and the buffered rewiring pool built on top of it (§4.2): a reservation
// of virtual address space backed by a shared physical-memory file
// descriptor, with a primitive to exchange the physical backing of two
// extents without copying bytes.
package rewiring

import (
	"errors"
	"fmt"
)

var (
	errInvalidConfig          = errors.New("invalid configuration")
	errSameAddress            = errors.New("addr_a and addr_b must differ")
	errUnaligned              = errors.New("address is not extent-aligned or out of range")
	errOutOfRange             = errors.New("extent index beyond allocated_extents")
	errScratchOutstanding     = errors.New("used_buffers must be 0")
	errScratchAlreadyResolved = errors.New("scratch extent already resolved")
)

// Error reports a failed operation on the rewired substrate or pool. Errno
// holds either the errno of a failing syscall (spec.md §4.1 "Failure
// semantics") or one of this package's validation errors (invalid
// configuration, equal or unaligned addresses, outstanding scratch).
type Error struct {
	Op   string
	Errno error
}

func (e *Error) Error() string {
	return fmt.Sprintf("rewiring: %s: %v", e.Op, e.Errno)
}

func (e *Error) Unwrap() error {
	return e.Errno
}

func opError(op string, err error) *Error {
	return &Error{Op: op, Errno: err}
}

// CapacityExceededError is returned when extend would grow the substrate
// beyond max_memory (spec.md §4.1 "extend(k) ... Fails if (allocated +
// k)*extent_size > max_memory").
type CapacityExceededError struct {
	Requested, Available int64
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("rewiring: capacity exceeded: requested %d bytes, %d available", e.Requested, e.Available)
}

// BufferZoneError is returned by Pool.SwapAndRelease when neither or both of
// the two addresses refer to a buffer extent (spec.md §4.2).
type BufferZoneError struct {
	AddrA, AddrB uintptr
}

func (e *BufferZoneError) Error() string {
	return fmt.Sprintf("rewiring: exactly one of (%#x, %#x) must be a buffer extent", e.AddrA, e.AddrB)
}
