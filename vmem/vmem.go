package vmem

import (
	"fmt"
	"sync/atomic"
)

// Flags selects the semantics of a single Alloc call, spec.md §6's
// {Reserve, CommitFlag, ReserveCommit, Hugepages}.
type Flags uint32

const (
	// Reserve carves out address space without backing it with physical
	// pages. The range must be Committed before it is touched.
	Reserve Flags = 1 << iota
	// CommitFlag backs an already-reserved range with physical pages.
	CommitFlag
	// ReserveCommit does both in one call.
	ReserveCommit = Reserve | CommitFlag
	// Hugepages requests huge pages where the platform supports it; on
	// platforms that don't, Alloc silently falls back to normal pages.
	Hugepages Flags = 1 << iota
)

// PageSize is spec.md's vmem_page_size().
func PageSize() uint64 { return pageSize() }

// HugePageSize is spec.md's vmem_huge_page_size().
func HugePageSize() uint64 { return hugePageSize() }

// AllocGranularity is spec.md's vmem_alloc_granularity(): the coarsest
// unit Alloc ever rounds a reservation up to.
func AllocGranularity() uint64 { return allocGranularity() }

var lastError atomic.Int64

// LastError returns the errno (or platform-equivalent) of the most recent
// failing vmem call observed by this process, matching spec.md's
// vmem_get_last_error() opaque-integer contract. 0 means no error has
// been observed yet.
func LastError() int64 { return lastError.Load() }

func setLastError(err error) {
	if err == nil {
		return
	}
	lastError.Store(int64(errnoOf(err)))
}

// Region is a reserved (and possibly committed) virtual address range.
// Its zero value is not usable; construct one via Alloc.
type Region struct {
	mem       []byte
	committed bool
}

// Bytes exposes the region's backing memory. Touching bytes outside what
// has been Committed is undefined on real-mmap platforms.
func (r *Region) Bytes() []byte { return r.mem }

// Size returns the region's total reserved size.
func (r *Region) Size() uint64 { return uint64(len(r.mem)) }

// AllocError wraps a platform allocation failure with the size and flags
// that were requested, so callers can log something more useful than a
// bare errno.
type AllocError struct {
	Size  uint64
	Flags Flags
	Err   error
}

func (e *AllocError) Error() string {
	return fmt.Sprintf("vmem: alloc %d bytes (flags=%#x): %v", e.Size, e.Flags, e.Err)
}

func (e *AllocError) Unwrap() error { return e.Err }

// Alloc reserves (and, depending on flags, commits) size bytes at the
// platform's natural alignment. Use AllocAligned for a stronger alignment
// guarantee.
func Alloc(size uint64, flags Flags) (*Region, error) {
	return AllocAligned(size, flags, AllocGranularity())
}

// AllocAligned is spec.md §6's vmem_alloc_aligned: like Alloc, but the
// returned region's base address is guaranteed aligned to alignment
// (which must be a power of two at least AllocGranularity()).
func AllocAligned(size uint64, flags Flags, alignment uint64) (*Region, error) {
	if size == 0 {
		return nil, &AllocError{Size: size, Flags: flags, Err: fmt.Errorf("size must be > 0")}
	}
	if alignment == 0 || alignment&(alignment-1) != 0 {
		return nil, &AllocError{Size: size, Flags: flags, Err: fmt.Errorf("alignment %d is not a power of two", alignment)}
	}

	r, err := allocAligned(size, flags, alignment)
	if err != nil {
		setLastError(err)
		return nil, &AllocError{Size: size, Flags: flags, Err: err}
	}
	r.committed = flags&CommitFlag != 0
	return r, nil
}

// Commit backs [0, size) of r with physical pages, spec.md's vmem_commit.
func Commit(r *Region, size uint64) bool {
	if err := commit(r, size); err != nil {
		setLastError(err)
		return false
	}
	r.committed = true
	return true
}

// Decommit gives the physical pages backing [0, size) of r back to the
// OS without releasing the address reservation itself, spec.md's
// vmem_decommit.
func Decommit(r *Region, size uint64) bool {
	if err := decommit(r, size); err != nil {
		setLastError(err)
		return false
	}
	r.committed = false
	return true
}

// Free releases the entire reservation, spec.md's vmem_free. r must not
// be used again afterward.
func Free(r *Region) bool {
	if err := free(r); err != nil {
		setLastError(err)
		return false
	}
	return true
}
