//go:build darwin

package rewiring

import (
	"errors"
	"syscall"
)

// mmapFixedRaw issues mmap(2) with an explicit address. Darwin's syscall
// numbering exposes SYS_MMAP the same way as other BSD-derived kernels, so
// the raw-syscall approach is shared with Linux in shape, only the errno
// type differs per platform (syscall.Errno on both).
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

// tryExtendInPlace is not available on Darwin: there is no mremap
// equivalent, so extend() always falls back to mapping the grown region
// with an explicit fixed address immediately past the current reservation
// prefix. Grounded on teacher's mmap_darwin.go tryMremap stub, which makes
// the same always-fail choice for the same reason.
func tryExtendInPlace(addr uintptr, oldLength, newLength int) (uintptr, error) {
	return 0, errors.New("mremap not available on darwin")
}
