// Package arena implements the fast-arena allocator of spec.md §4.6: a
// bump allocator over a single region-chunk, organized per alignment class
// into a 2-D step/split bin table with a direct-hit cache row, plus
// cross-thread retire/reclaim of individual freed allocations at
// granularity finer than the region-chunk the arena itself is carved from.
//
// An Arena never owns virtual memory; it only bumps a pointer across a
// []byte someone else (internal/region, by way of the public alloc
// package) handed it. BinTable owns the per-thread-allocator bin lists and
// is never touched by any thread other than its owner, except through the
// single-producer/single-consumer retire chain RetireAllocation/Reclaim
// expose.
package arena
