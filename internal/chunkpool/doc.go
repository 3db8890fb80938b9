// Package chunkpool implements spec.md §4.7's chunk & shard pool
// allocator: fixed-size chunk pools carved from shards, and a shard pool
// that carves equal-size shards out of a single region-chunk.
//
// Both levels reuse internal/flist's versioned free list and bump stack
// directly rather than re-deriving the bump-or-free-list pattern, since
// spec.md explicitly describes both as the same structure as §4.1's
// primitive applied at a different granularity. The free-list link word
// for a chunk pool's chunks lives in the chunk's own first four bytes
// (slabOps); the free-list link word for a shard pool's shards lives in
// the parallel handle array from internal/region, reused here because a
// shard handle needs exactly the same {link-or-owner} union a region
// handle does.
package chunkpool
