// Package flist implements the versioned lock-free intrusive free list
// and the companion bump stack that back every region-chunk pool, chunk
// pool, and shard pool in vaultmem.
//
// Nodes live in a caller-owned backing array and are addressed by 32-bit
// index, never by pointer — this is what lets the free list head fit in a
// single 64-bit word (32 bits of version, 32 bits of link) and be mutated
// with a plain CAS. Callers supply a NodeOps adapter that performs relaxed
// atomic reads/writes of each node's link field; flist itself never touches
// node payload memory.
package flist
