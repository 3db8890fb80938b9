package arena

import (
	"fmt"

	"vaultmem/internal/retire"
)

// listEntry is the doubly-linked intrusive node every Arena carries so it
// can sit on exactly one BinTable row's bin list, mirroring the teacher's
// own intrusive-list convention (domain/orderbook/price_level.go) instead
// of a separately-allocated container node.
type listEntry struct {
	prev *Arena
	next *Arena
}

// Arena is a bump allocator over a single, externally owned byte range.
// alignment is fixed for the arena's lifetime; only aligned allocations
// are served.
type Arena struct {
	mem       []byte
	alignment uint64
	memSize   uint64

	top   uint64 // owner-exclusive
	freed uint64 // owner-exclusive; advanced by ReleaseLocal and ReclaimAllocations

	entry listEntry

	retireData *retire.DataPtr
	chainNext  *Arena // used only while linked onto a retired-arenas chain

	// Owner is an opaque back-reference the surrounding thread-allocator
	// may set; arena itself never dereferences it.
	Owner any
}

// New wraps mem as a fresh, empty arena aligned to alignment. mem's length
// must already be a multiple of alignment; callers (internal/region by
// way of alloc) are responsible for carving region-chunks that satisfy
// this.
func New(mem []byte, alignment uint64) *Arena {
	return &Arena{
		mem:        mem,
		alignment:  alignment,
		memSize:    uint64(len(mem)),
		retireData: retire.NewDataPtr(0),
	}
}

func alignUp(n, align uint64) uint64 {
	return (n + align - 1) &^ (align - 1)
}

// Alignment returns the arena's fixed alignment.
func (a *Arena) Alignment() uint64 { return a.alignment }

// MemSize returns the arena's total byte capacity.
func (a *Arena) MemSize() uint64 { return a.memSize }

// Remaining returns how many bytes are still unbumped.
func (a *Arena) Remaining() uint64 { return a.memSize - a.top }

// Top returns the current bump offset.
func (a *Arena) Top() uint64 { return a.top }

// Freed returns the owner-local accounting of bytes released so far, not
// counting bytes still pending drain on the retire chain.
func (a *Arena) Freed() uint64 { return a.freed }

// Empty reports whether the bump offset is zero: nothing has been bumped
// since the arena was created or last Reset.
func (a *Arena) Empty() bool { return a.top == 0 }

// Resettable reports whether every byte ever bumped has since been freed,
// spec.md §4.6's precondition for clearing an arena back to empty.
func (a *Arena) Resettable() bool { return a.freed == a.top }

// InList reports whether the arena currently sits on a BinTable bin list.
// Bin-table manipulation requires this be false first.
func (a *Arena) InList() bool { return a.entry.prev != nil || a.entry.next != nil }

// Base returns the arena's backing memory, for callers that need to turn a
// bump offset into a real pointer.
func (a *Arena) Base() []byte { return a.mem }

// Acquire bumps the arena by align(size, alignment) bytes and returns the
// byte offset of the allocation, or ok=false if the arena cannot satisfy
// it. This never blocks and never touches any other arena.
func (a *Arena) Acquire(size uint64) (offset uint64, ok bool) {
	aligned := alignUp(size, a.alignment)
	if a.top+aligned > a.memSize {
		return 0, false
	}
	offset = a.top
	a.top += aligned
	return offset, true
}

// ReleaseLocal accounts for an allocation of size bytes being freed by the
// arena's own owning thread. Panics on InvariantViolation (freed exceeding
// top), matching spec.md §7's "fatal, not surfaced to caller" policy for
// internal corruption.
func (a *Arena) ReleaseLocal(size uint64) {
	aligned := alignUp(size, a.alignment)
	a.freed += aligned
	if a.freed > a.top {
		panic(fmt.Sprintf("arena: InvariantViolation: freed %d exceeds top %d", a.freed, a.top))
	}
}

// Reset clears a resettable arena back to empty so it can be recycled by
// whichever bin table it's placed back into.
func (a *Arena) Reset() {
	if !a.Resettable() {
		panic("arena: Reset called on a non-resettable arena")
	}
	a.top = 0
	a.freed = 0
}

// unlink detaches the arena from whichever bin list it's on. The caller
// must already hold the owning row's exclusive access.
func (a *Arena) unlink() {
	if a.entry.prev != nil {
		a.entry.prev.entry.next = a.entry.next
	}
	if a.entry.next != nil {
		a.entry.next.entry.prev = a.entry.prev
	}
	a.entry.prev = nil
	a.entry.next = nil
}
