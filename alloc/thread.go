package alloc

import (
	"math/bits"
	"unsafe"

	"vaultmem/internal/arena"
	"vaultmem/internal/chunkpool"
	"vaultmem/internal/flist"
	"vaultmem/internal/region"
)

// ThreadAllocator is the per-thread allocation front end spec.md §4.8
// describes: a fast-arena bin table, a lazily-carved shard pool, and a
// chunk pool per size class, none of which any other thread ever mutates
// directly. A ThreadAllocator is not safe for concurrent use by more than
// one goroutine at a time — exactly one goroutine is meant to own it,
// mirroring the teacher's one-writer-per-shard convention.
type ThreadAllocator struct {
	id    uint64
	alloc *Allocator

	arenaBins     *arena.BinTable
	retiredArenas *arena.RetiredArenas

	shardPool  *chunkpool.ShardPool
	chunkPools map[uint32]*chunkpool.ChunkPool // keyed by chunk size class (log2)
}

func (t *ThreadAllocator) selfOwner() region.Owner {
	return region.Owner(unsafe.Pointer(t))
}

// relOffsetOf converts a slice known to be a sub-slice of the allocator's
// reservation into a region-relative byte offset, the coordinate system
// region.Specs.Locate expects.
func (t *ThreadAllocator) relOffsetOf(mem []byte) uint64 {
	base := uintptr(unsafe.Pointer(unsafe.SliceData(t.alloc.vm.Bytes())))
	p := uintptr(unsafe.Pointer(unsafe.SliceData(mem)))
	return uint64(p - base)
}

// carveRegionChunk obtains one fresh, never-before-issued region-chunk of
// at least minBytes from whichever region stocks chunks that size, tags
// nothing about it yet (the caller installs the real owner once whatever
// object will live there has been constructed), and returns its backing
// memory and global handle index.
func (t *ThreadAllocator) carveRegionChunk(minBytes uint64) (mem []byte, handle uint32, ok bool) {
	specs := t.alloc.specs
	params := region.AllocParams{
		SplitStart: uint32(t.id),
		SplitStep:  1,
		Attempts:   flist.Unbounded,
		Rounds:     4,
	}
	for r, rs := range specs.Regions {
		if uint64(1)<<rs.ChunkSizeLog2 < minBytes {
			continue
		}
		chunk, h, _, status := t.alloc.pools.AllocateChunk(uint32(r), params)
		if status != region.Acquired {
			continue
		}
		off := specs.ChunkByteOffset(uint32(r), chunk)
		size := uint64(1) << rs.ChunkSizeLog2
		return t.alloc.vm.Bytes()[off : off+size], h, true
	}
	return nil, 0, false
}

func ceilLog2(n uint64) uint32 {
	if n <= 1 {
		return 0
	}
	return uint32(bits.Len64(n - 1))
}

// Allocate implements spec.md §4.8's top-level allocate(size, align):
// route to the fast-arena path when the request fits under both the
// configured size ceiling and the bin table's alignment range, otherwise
// to the chunk & shard pool path. Each request tries only the path it is
// routed to; it returns ok=false when that path cannot satisfy it —
// including a size class beyond MaxChunkPow2, since spec.md §4.8 names no
// third "huge allocation" tier.
func (t *ThreadAllocator) Allocate(size, align uint64) (uint64, bool) {
	cfg := t.alloc.cfg
	maxAlign := uint64(1) << cfg.Arena.MaxAlignmentLog2
	if size <= cfg.FastArenaMaxAllocSize && align <= maxAlign {
		return t.allocateFast(size, align)
	}
	return t.allocateChunk(size, align)
}

func (t *ThreadAllocator) allocateFast(size, align uint64) (uint64, bool) {
	a, status := t.arenaBins.AcquireArena(size, align)
	if status != arena.Acquired {
		var ok bool
		a, ok = t.freshArena(size, align)
		if !ok {
			return 0, false
		}
	}
	localOff, ok := arena.Allocate(t.arenaBins, a, size)
	if !ok {
		return 0, false
	}
	return t.relOffsetOf(a.Base()) + localOff, true
}

// freshArena carves a new region-chunk to back a brand-new arena sized to
// hold at least one max-step-sized allocation, so a single small request
// doesn't strand the rest of a region-chunk as unreachable remainder.
func (t *ThreadAllocator) freshArena(size, align uint64) (*arena.Arena, bool) {
	cfg := t.alloc.cfg
	want := size
	if min := uint64(1) << cfg.Arena.MaxStepLog2; want < min {
		want = min
	}
	mem, handle, ok := t.carveRegionChunk(want)
	if !ok {
		return nil, false
	}
	a := arena.New(mem, align)
	a.Owner = t
	t.alloc.handles.SetOwner(handle, region.Owner(unsafe.Pointer(a)), ownerArenaKind)
	return a, true
}

// allocateChunk implements the chunk & shard pool path: find or carve a
// chunk pool for the request's size class and acquire one chunk from it.
func (t *ThreadAllocator) allocateChunk(size, align uint64) (uint64, bool) {
	need := size
	if align > need {
		need = align
	}
	cls := ceilLog2(need)
	cfg := t.alloc.cfg
	if cls < cfg.MinChunkPow2 {
		cls = cfg.MinChunkPow2
	}
	if cls > cfg.MaxChunkPow2 {
		return 0, false
	}

	if cp, ok := t.chunkPools[cls]; ok {
		if idx, ok := cp.Acquire(); ok {
			return t.relOffsetOf(cp.Chunk(idx)), true
		}
	}

	cp, ok := t.newChunkPool(cls)
	if !ok {
		return 0, false
	}
	idx, ok := cp.Acquire()
	if !ok {
		return 0, false
	}
	return t.relOffsetOf(cp.Chunk(idx)), true
}

// newChunkPool carves a fresh shard off this thread's shard pool (lazily
// constructing the shard pool itself on first use) and builds a chunk
// pool of size class cls over it, replacing whatever pool previously
// served that size class.
func (t *ThreadAllocator) newChunkPool(cls uint32) (*chunkpool.ChunkPool, bool) {
	sp, ok := t.ensureShardPool()
	if !ok {
		return nil, false
	}
	idx, ok := sp.AcquireShard(nil)
	if !ok {
		return nil, false
	}
	cp := chunkpool.NewChunkPool(sp.Shard(idx), cls, cls)
	cp.Owner = t
	sp.SetOwner(idx, region.Owner(unsafe.Pointer(cp)), chunkpool.ChunkPoolKind)
	t.chunkPools[cls] = cp
	return cp, true
}

func (t *ThreadAllocator) ensureShardPool() (*chunkpool.ShardPool, bool) {
	if t.shardPool != nil {
		return t.shardPool, true
	}
	mem, handle, ok := t.carveRegionChunk(uint64(1) << t.alloc.cfg.ShardSizeLog2)
	if !ok {
		return nil, false
	}
	sp := chunkpool.NewShardPool(mem, t.alloc.cfg.ShardSizeLog2)
	sp.Owner = t
	t.alloc.handles.SetOwner(handle, region.Owner(unsafe.Pointer(sp)), ownerShardPoolKind)
	t.shardPool = sp
	return sp, true
}

// Free implements spec.md §4.8's decode-and-route free(ptr, size): locate
// ptr's handle, read its owner and kind, and dispatch to the local
// release path if this thread is the owner or the cross-thread retire
// path otherwise. It returns false if ptr does not decode to any handle
// this allocator knows about.
func (t *ThreadAllocator) Free(ptr, size uint64) bool {
	specs := t.alloc.specs
	r, chunk, handle, ok := specs.Locate(ptr)
	if !ok {
		return false
	}
	owner, kind := t.alloc.handles.GetOwner(handle)
	switch kind {
	case ownerArenaKind:
		return t.freeArena((*arena.Arena)(owner), size)
	case ownerShardPoolKind:
		return t.freeChunk((*chunkpool.ShardPool)(owner), r, chunk, ptr, size)
	default:
		return false
	}
}

func (t *ThreadAllocator) freeArena(a *arena.Arena, size uint64) bool {
	owningThread, ok := a.Owner.(*ThreadAllocator)
	if !ok || owningThread == nil {
		return false
	}
	if owningThread == t {
		if arena.Deallocate(t.arenaBins, a, size) == arena.Resettable {
			t.arenaBins.ReleaseArena(a)
		}
		return true
	}
	owningThread.retiredArenas.RetireAllocation(a, size)
	return true
}

func (t *ThreadAllocator) freeChunk(sp *chunkpool.ShardPool, r, chunk uint32, ptr, size uint64) bool {
	specs := t.alloc.specs
	chunkBase := specs.ChunkByteOffset(r, chunk)
	shardSize := uint64(1) << sp.ShardSizeLog2()
	shardIdx := uint32((ptr - chunkBase) / shardSize)

	owner, kind := sp.OwnerOf(shardIdx)
	if kind != chunkpool.ChunkPoolKind {
		return false
	}
	cp := (*chunkpool.ChunkPool)(owner)

	shardBase := chunkBase + uint64(shardIdx)*shardSize
	chunkIdx := uint32((ptr - shardBase) >> cp.ChunkSizeLog2())

	owningThread, ok := cp.Owner.(*ThreadAllocator)
	if !ok || owningThread == nil {
		return false
	}
	if owningThread == t {
		cp.Release(chunkIdx)
		return true
	}
	cp.RetireChunk(chunkIdx)
	return true
}

// Drain reclaims everything remote threads have retired back to this
// thread since the last call: cross-thread arena frees and cross-thread
// chunk frees for the chunk pool currently registered for each size class.
// A pool that newChunkPool has replaced is no longer drained. Callers typically
// call this between batches of work rather than after every Free, since
// each retire chain is already safe to leave unconsumed indefinitely.
func (t *ThreadAllocator) Drain() int {
	n := 0
	for _, a := range t.retiredArenas.Reclaim() {
		a.ReclaimAllocations()
		n++
		if a.Resettable() {
			t.arenaBins.RemoveFromBin(a)
			a.Reset()
			t.arenaBins.ReleaseArena(a)
		}
	}
	for _, cp := range t.chunkPools {
		n += cp.DrainRetired()
	}
	return n
}
