//go:build !unix

package vmem

import (
	"fmt"
	"unsafe"
)

func uintptrOf(buf []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
}

// Non-unix platforms get a portable fallback backed by the Go heap. There
// is no real "reserve without commit" here — the bytes exist the moment
// they're allocated — but the Region/Commit/Decommit/Free contract still
// holds: Decommit zeroes the range (the cheapest thing resembling giving
// memory back without changing the slice's identity), and Free is the
// only thing that actually lets the GC reclaim it.
func pageSize() uint64         { return 4096 }
func hugePageSize() uint64     { return 2 << 20 }
func allocGranularity() uint64 { return pageSize() }

func allocAligned(size uint64, flags Flags, alignment uint64) (*Region, error) {
	total := size + alignment
	buf := make([]byte, total)

	base := alignmentOffset(buf, alignment)
	aligned := buf[base : base+size]
	return &Region{mem: aligned}, nil
}

func alignmentOffset(buf []byte, alignment uint64) uint64 {
	if len(buf) == 0 {
		return 0
	}
	addr := uint64(uintptrOf(buf))
	misalign := addr % alignment
	if misalign == 0 {
		return 0
	}
	return alignment - misalign
}

func commit(r *Region, size uint64) error {
	if size > uint64(len(r.mem)) {
		return fmt.Errorf("vmem: commit size %d exceeds region size %d", size, len(r.mem))
	}
	return nil
}

func decommit(r *Region, size uint64) error {
	if size > uint64(len(r.mem)) {
		return fmt.Errorf("vmem: decommit size %d exceeds region size %d", size, len(r.mem))
	}
	clear(r.mem[:size])
	return nil
}

func free(r *Region) error {
	r.mem = nil
	return nil
}

func errnoOf(err error) int64 { return -1 }
