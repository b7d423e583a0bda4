//go:build unix

package rewiring

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// reserveAnonymous reserves a contiguous range of virtual address space of
// the given length without backing it with physical pages (PROT_NONE,
// MAP_ANON|MAP_PRIVATE). The kernel picks the address; every later fixed
// mapping is placed inside this reservation. Grounded on teacher's
// mmap_unix.go New(), generalised from "map a file" to "reserve a range".
func reserveAnonymous(length int64) (uintptr, error) {
	data, err := unix.Mmap(-1, 0, int(length), unix.PROT_NONE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return 0, opError("mmap(reserve)", err)
	}
	if len(data) == 0 {
		return 0, opError("mmap(reserve)", unix.EINVAL)
	}
	return uintptr(unsafe.Pointer(&data[0])), nil
}

// newSharedFile creates an anonymous, shared, memfd-backed file descriptor
// of the given length (spec.md §4.1 "create an anonymous shared memory
// object"). hugePages requests huge-page backing when supported.
func newSharedFile(length int64, hugePages bool) (int, error) {
	var flags uint
	if hugePages {
		flags |= unix.MFD_HUGETLB
	}
	fd, err := unix.MemfdCreate("pma-rewired", int(flags))
	if err != nil && hugePages {
		// Huge-page memfds require a huge-page-mounted filesystem;
		// fall back to a regular memfd if unsupported.
		fd, err = unix.MemfdCreate("pma-rewired", 0)
	}
	if err != nil {
		return -1, opError("memfd_create", err)
	}
	if err := unix.Ftruncate(fd, length); err != nil {
		unix.Close(fd)
		return -1, opError("ftruncate", err)
	}
	return fd, nil
}

// growSharedFile extends the backing file to newLength bytes.
func growSharedFile(fd int, newLength int64) error {
	if err := unix.Ftruncate(fd, newLength); err != nil {
		return opError("ftruncate(grow)", err)
	}
	return nil
}

// mapFixed maps length bytes of fd at file offset fileOffset into the
// already-reserved virtual address addr, replacing whatever was mapped
// there. This is the core rewiring primitive: mapping a different
// fileOffset at the same addr swaps the physical pages backing that
// virtual extent without moving a single byte (spec.md §4.1 "swap").
func mapFixed(fd int, fileOffset int64, addr uintptr, length int, writable bool) error {
	prot := unix.PROT_READ
	if writable {
		prot |= unix.PROT_WRITE
	}
	_, err := mmapFixedRaw(fd, fileOffset, addr, length, prot, unix.MAP_SHARED|unix.MAP_FIXED)
	if err != nil {
		return opError("mmap(fixed)", err)
	}
	return nil
}

// releaseRange unmaps length bytes starting at addr.
func releaseRange(addr uintptr, length int) error {
	s := unsafe.Slice((*byte)(unsafe.Pointer(addr)), length)
	if err := unix.Munmap(s); err != nil {
		return opError("munmap", err)
	}
	return nil
}

// closeFd closes the shared memory file descriptor.
func closeFd(fd int) error {
	if err := unix.Close(fd); err != nil {
		return opError("close", err)
	}
	return nil
}
