// Package region implements the region-chunk substrate: the read-only
// layout map (Specs) over a pre-reserved virtual address range, the
// per-region contention-sharded pool array (Pools), the parallel handle
// array (Handles) that carries each region-chunk's owner-or-free header
// word, and the O(1)-ish pointer-to-owner decode that deallocate(ptr)
// depends on.
//
// Specs is built once at startup and never mutated afterward; Pools and
// Handles are the only mutable state here, and every mutation to them goes
// through internal/flist so the same versioned-CAS safety net protects
// every layer that is built on top (internal/arena, internal/chunkpool).
package region
