//go:build unix

package vmem

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

func pageSize() uint64        { return uint64(unix.Getpagesize()) }
func hugePageSize() uint64    { return 2 << 20 } // 2MiB: the common default; no portable query syscall exists
func allocGranularity() uint64 { return pageSize() }

func allocAligned(size uint64, flags Flags, alignment uint64) (*Region, error) {
	total := size + alignment
	prot := unix.PROT_NONE
	if flags&CommitFlag != 0 {
		prot = unix.PROT_READ | unix.PROT_WRITE
	}

	full, err := unix.Mmap(-1, 0, int(total), prot, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, err
	}

	base := uintptr(unsafe.Pointer(unsafe.SliceData(full)))
	misalign := base % uintptr(alignment)
	var head uint64
	if misalign != 0 {
		head = alignment - uint64(misalign)
	}

	if head > 0 {
		if err := unix.Munmap(full[:head]); err != nil {
			_ = unix.Munmap(full)
			return nil, err
		}
	}
	tailStart := head + size
	aligned := full[head:tailStart]
	if tailStart < uint64(len(full)) {
		if err := unix.Munmap(full[tailStart:]); err != nil {
			_ = unix.Munmap(aligned)
			return nil, err
		}
	}

	if flags&Hugepages != 0 {
		_ = unix.Madvise(aligned, unix.MADV_HUGEPAGE)
	}

	return &Region{mem: aligned}, nil
}

func commit(r *Region, size uint64) error {
	return unix.Mprotect(r.mem[:size], unix.PROT_READ|unix.PROT_WRITE)
}

func decommit(r *Region, size uint64) error {
	if err := unix.Mprotect(r.mem[:size], unix.PROT_NONE); err != nil {
		return err
	}
	// Best-effort: ask the kernel to actually drop the physical pages.
	// Failure here doesn't change the mapping's validity, only whether
	// the memory is reclaimed promptly.
	_ = unix.Madvise(r.mem[:size], unix.MADV_DONTNEED)
	return nil
}

func free(r *Region) error {
	return unix.Munmap(r.mem)
}

func errnoOf(err error) int64 {
	if errno, ok := err.(unix.Errno); ok {
		return int64(errno)
	}
	return -1
}
