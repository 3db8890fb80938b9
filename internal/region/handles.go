package region

import (
	"sync/atomic"
	"unsafe"
)

// FreeTag is the reserved kind value meaning "this handle's header holds a
// free-list link, not an owner". Real sub-allocator kinds start at 1.
const FreeTag uint16 = 0

// Owner is an opaque, GC-visible reference to whichever sub-allocator
// object (an *arena.Arena, a *chunkpool.ChunkPool, ...) currently owns a
// region-chunk. Handles never needs to know the concrete type.
type Owner = unsafe.Pointer

// headerState is the immutable snapshot each handle header atomically
// swaps between. spec.md models this as one machine word with a packed
// link/tag-or-pointer; vaultmem instead swaps a pointer to this snapshot
// (the same technique internal/retire uses), which keeps the owner
// pointer GC-visible without resorting to pointer-tagging tricks that
// Go's memory model does not sanction. All accesses are single atomic
// loads/CAS, which is at least as strong as the relaxed ordering spec.md
// §5 requires here.
type headerState struct {
	next  uint32 // valid when kind == FreeTag
	owner Owner
	kind  uint16
}

// Handles is the parallel array of fixed-size metadata slots, one per
// region-chunk, described by spec.md §3's "Handle header" entry.
type Handles struct {
	headers []atomic.Pointer[headerState]
}

// NewHandles allocates n handle headers, all initially free with no
// successor (NullLink is supplied by the caller via SetNext).
func NewHandles(n uint32) *Handles {
	h := &Handles{headers: make([]atomic.Pointer[headerState], n)}
	empty := &headerState{}
	for i := range h.headers {
		h.headers[i].Store(empty)
	}
	return h
}

// Len returns the number of handles.
func (h *Handles) Len() uint32 { return uint32(len(h.headers)) }

// SetNext installs idx's free-list successor link, clearing any owner.
// Implements flist.NodeOps so a Handles can directly back a free list.
func (h *Handles) SetNext(idx, next uint32) {
	h.headers[idx].Store(&headerState{next: next})
}

// GetNext reads idx's free-list successor link. Implements flist.NodeOps.
func (h *Handles) GetNext(idx uint32) uint32 {
	return h.headers[idx].Load().next
}

// SetOwner installs idx's owner pointer and sub-allocator kind tag. This
// must happen before any external observer can reach the chunk as
// allocated (spec.md §4.5 "Ownership of a region-chunk"); callers achieve
// that by calling SetOwner only after having popped idx off its free list
// themselves, never concurrently with another SetOwner on the same idx.
func (h *Handles) SetOwner(idx uint32, owner Owner, kind uint16) {
	h.headers[idx].Store(&headerState{owner: owner, kind: kind})
}

// GetOwner reads idx's current owner pointer and kind. If idx is currently
// free, kind is FreeTag and owner is nil.
func (h *Handles) GetOwner(idx uint32) (owner Owner, kind uint16) {
	st := h.headers[idx].Load()
	return st.owner, st.kind
}

// IsFree reports whether idx currently carries a free-list link rather
// than an owner.
func (h *Handles) IsFree(idx uint32) bool {
	return h.headers[idx].Load().kind == FreeTag
}
