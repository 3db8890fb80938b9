// Package alloc is the public integration surface spec.md §4.8 describes:
// it wires the region-chunk substrate (internal/region), the fast-arena
// allocator (internal/arena), the chunk & shard pool allocator
// (internal/chunkpool), and the thread graveyard (internal/graveyard)
// together behind a small Allocate/Free/Stats API, routing each request
// by size and alignment and each release by decoding ownership from the
// handle a pointer falls under.
//
// Allocator is the process-wide, shared state: one OS virtual-memory
// reservation (vmem), the region layout over it, and the graveyard.
// ThreadAllocator is per-thread state: a fast-arena bin table, a chunk
// pool set, and a lazily-carved shard pool, none of which any other
// thread ever mutates directly — concurrent release of memory this
// thread owns comes in only through the retire/reclaim chains
// internal/arena and internal/chunkpool already expose.
package alloc
