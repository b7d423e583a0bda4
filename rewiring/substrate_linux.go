//go:build linux

package rewiring

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// mmapFixedRaw issues mmap(2) with an explicit address, which the
// golang.org/x/sys/unix.Mmap wrapper does not expose (it always lets the
// kernel choose). Grounded on teacher's mmap_linux.go tryMremap, which
// reaches for the raw syscall for the same reason: the portable wrapper
// doesn't cover this one argument.
func mmapFixedRaw(fd int, offset int64, addr uintptr, length, prot, flags int) (uintptr, error) {
	newAddr, _, errno := syscall.Syscall6(
		syscall.SYS_MMAP,
		addr,
		uintptr(length),
		uintptr(prot),
		uintptr(flags),
		uintptr(fd),
		uintptr(offset),
	)
	if errno != 0 {
		return 0, errno
	}
	return newAddr, nil
}

// tryExtendInPlace attempts to grow the reservation's mapped prefix using
// Linux's mremap, which can resize a mapping without unmapping it first.
// Used as a fast path by extend() before falling back to mapFixed.
func tryExtendInPlace(addr uintptr, oldLength, newLength int) (uintptr, error) {
	const mremapMaymove = 0 // never move: addr must stay the reservation base
	newAddr, _, errno := syscall.Syscall6(
		unix.SYS_MREMAP,
		addr,
		uintptr(oldLength),
		uintptr(newLength),
		mremapMaymove,
		0, 0,
	)
	if errno != 0 {
		return 0, errno
	}
	return newAddr, nil
}
