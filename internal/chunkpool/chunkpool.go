package chunkpool

import (
	"encoding/binary"
	"sync/atomic"
	"time"

	"vaultmem/internal/flist"
)

// slabOps reads and writes the free-list link word directly in the first
// four bytes of each free chunk's own memory, matching spec.md §4.7's
// "Each free chunk's first word stores the next index."
type slabOps struct {
	mem       []byte
	chunkSize uint32
}

func (s *slabOps) SetNext(idx, next uint32) {
	binary.LittleEndian.PutUint32(s.mem[uint64(idx)*uint64(s.chunkSize):], next)
}

func (s *slabOps) GetNext(idx uint32) uint32 {
	return binary.LittleEndian.Uint32(s.mem[uint64(idx)*uint64(s.chunkSize):])
}

func backoff() { time.Sleep(0) }

// ChunkPool is a slab allocator of fixed-size chunks carved from a single
// shard, spec.md §4.7's "Chunk pool".
type ChunkPool struct {
	mem           []byte
	ops           *slabOps
	chunkSizeLog2 uint32
	alignLog2     uint32
	capacity      uint32

	free    *flist.List
	bump    *flist.BumpStack
	retired *flist.List // remote deallocations awaiting the owner's drain

	outstanding atomic.Int32 // chunks issued but not yet released

	// chainNext links this pool onto its owning ShardPool's retired-pools
	// chain, used only when the pool itself (not an individual chunk) is
	// being retired because it went empty under a non-owning thread.
	chainNext *ChunkPool

	Owner any
}

// NewChunkPool carves mem into 1<<chunkSizeLog2-sized chunks. alignLog2 must not
// exceed chunkSizeLog2; it is recorded for callers but never checked
// against mem's own alignment, which is the caller's responsibility.
func NewChunkPool(mem []byte, chunkSizeLog2, alignLog2 uint32) *ChunkPool {
	chunkSize := uint32(1) << chunkSizeLog2
	capacity := uint32(len(mem)) / chunkSize
	ops := &slabOps{mem: mem, chunkSize: chunkSize}
	return &ChunkPool{
		mem:           mem,
		ops:           ops,
		chunkSizeLog2: chunkSizeLog2,
		alignLog2:     alignLog2,
		capacity:      capacity,
		free:          flist.New(ops),
		bump:          flist.NewBumpStack(capacity),
		retired:       flist.New(ops),
	}
}

// Capacity returns the total number of chunks this pool can ever issue.
func (cp *ChunkPool) Capacity() uint32 { return cp.capacity }

// ChunkSizeLog2 returns the pool's fixed chunk size.
func (cp *ChunkPool) ChunkSizeLog2() uint32 { return cp.chunkSizeLog2 }

// Chunk returns the backing memory for chunk idx.
func (cp *ChunkPool) Chunk(idx uint32) []byte {
	size := uint64(1) << cp.chunkSizeLog2
	off := uint64(idx) * size
	return cp.mem[off : off+size]
}

// Acquire implements spec.md §4.7's bump-or-free-list acquire: bump while
// capacity remains, otherwise pop the free list.
func (cp *ChunkPool) Acquire() (idx uint32, ok bool) {
	if b := cp.bump.Bump(); b != flist.NullLink {
		cp.outstanding.Add(1)
		return b, true
	}
	link := cp.free.Pop(backoff, flist.Unbounded)
	if link == flist.NullLink || link == flist.OpFailed {
		return 0, false
	}
	cp.outstanding.Add(1)
	return link, true
}

// Release returns idx to the pool's local free list. The owner must call
// this only for chunks it is certain are not concurrently referenced.
func (cp *ChunkPool) Release(idx uint32) {
	cp.free.Push(idx, backoff, flist.Unbounded)
	cp.outstanding.Add(-1)
}

// RetireChunk implements the remote-deallocation half of spec.md §4.7:
// a non-owning thread deposits idx onto the pool's retired chain instead
// of touching the free list directly.
func (cp *ChunkPool) RetireChunk(idx uint32) {
	cp.retired.Push(idx, backoff, flist.Unbounded)
}

// DrainRetired is the owner-side counterpart: pop chunks off the retired
// chain and release each back to the free list, spec.md's "owner drains by
// iterating and calling release(chunk)". Each pop makes a single attempt,
// so a pop that loses a race with a concurrent RetireChunk ends this drain
// early and leaves the rest on the chain for the next call. Returns how
// many chunks were drained.
func (cp *ChunkPool) DrainRetired() int {
	n := 0
	for {
		idx := cp.retired.Pop(backoff, 1)
		if idx == flist.NullLink || idx == flist.OpFailed {
			return n
		}
		cp.Release(idx)
		n++
	}
}

// Empty reports whether every chunk the pool has ever issued has since
// been returned (via either Release or a drained RetireChunk).
func (cp *ChunkPool) Empty() bool {
	return cp.outstanding.Load() == 0
}
