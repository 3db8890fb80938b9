package chunkpool

import (
	"vaultmem/internal/flist"
	"vaultmem/internal/region"
)

// ChunkPoolKind tags a shard handle's owner as hosting a *ChunkPool,
// reusing internal/region.Handles' {link-or-owner} union for shard
// bookkeeping instead of re-deriving a third copy of it.
const ChunkPoolKind uint16 = 1

// ShardPool owns a single region-chunk subdivided into equal-size shards,
// spec.md §4.7's "Shard pool (pool of chunk pools)". Each shard, once
// carved off, typically hosts exactly one ChunkPool.
type ShardPool struct {
	mem           []byte
	shardSizeLog2 uint32
	capacity      uint32

	handles *region.Handles
	free    *flist.List
	bump    *flist.BumpStack

	retiredPools *retiredPoolChain

	// Owner is an opaque back-reference the surrounding thread-allocator
	// may set; the shard pool itself never dereferences it.
	Owner any
}

// NewShardPool carves mem into 1<<shardSizeLog2-sized shards.
func NewShardPool(mem []byte, shardSizeLog2 uint32) *ShardPool {
	capacity := uint32(len(mem)) >> shardSizeLog2
	handles := region.NewHandles(capacity)
	return &ShardPool{
		mem:           mem,
		shardSizeLog2: shardSizeLog2,
		capacity:      capacity,
		handles:       handles,
		free:          flist.New(handles),
		bump:          flist.NewBumpStack(capacity),
		retiredPools:  newRetiredPoolChain(),
	}
}

// Capacity returns the total number of shards this pool can ever issue.
func (sp *ShardPool) Capacity() uint32 { return sp.capacity }

// Shard returns the backing memory for shard idx.
func (sp *ShardPool) Shard(idx uint32) []byte {
	size := uint64(1) << sp.shardSizeLog2
	off := uint64(idx) * size
	return sp.mem[off : off+size]
}

// AcquireShard implements spec.md §4.7's bump-or-free-list acquire for
// shards: bump while capacity remains, otherwise pop the free list. On
// success the shard's handle is marked owned by owner under
// ChunkPoolKind; on failure the handle state is left untouched.
func (sp *ShardPool) AcquireShard(owner region.Owner) (idx uint32, ok bool) {
	if b := sp.bump.Bump(); b != flist.NullLink {
		sp.handles.SetOwner(b, owner, ChunkPoolKind)
		return b, true
	}
	link := sp.free.Pop(backoff, flist.Unbounded)
	if link == flist.NullLink || link == flist.OpFailed {
		return 0, false
	}
	sp.handles.SetOwner(link, owner, ChunkPoolKind)
	return link, true
}

// ReleaseShard returns idx to the shard pool's free list once its hosted
// chunk pool has gone empty and been reclaimed.
func (sp *ShardPool) ReleaseShard(idx uint32) {
	sp.handles.SetNext(idx, flist.NullLink)
	sp.free.Push(idx, backoff, flist.Unbounded)
}

// ShardSizeLog2 returns the pool's fixed shard size.
func (sp *ShardPool) ShardSizeLog2() uint32 { return sp.shardSizeLog2 }

// OwnerOf returns the current owner and kind tag for shard idx, for
// resolving a pointer inside it back to whatever object lives there.
func (sp *ShardPool) OwnerOf(idx uint32) (region.Owner, uint16) {
	return sp.handles.GetOwner(idx)
}

// SetOwner re-tags shard idx's owner, used once the object that will
// live on it (typically a freshly constructed ChunkPool) exists — shards
// are acquired before their hosted pool can be built, so the real owner
// is always installed as a second step.
func (sp *ShardPool) SetOwner(idx uint32, owner region.Owner, kind uint16) {
	sp.handles.SetOwner(idx, owner, kind)
}

// RetirePool implements spec.md §4.7's shard-pool-level retire: a
// non-owning thread observed a hosted chunk pool go empty and chains it
// onto the shard pool's retired-pools entry instead of touching the
// shard's free list itself.
func (sp *ShardPool) RetirePool(cp *ChunkPool) {
	sp.retiredPools.retire(cp)
}

// ReclaimPools is the owner-side drain: exchange the whole retired-pools
// chain for nil and return it so the owner can release each pool's shard
// back to the shard pool.
func (sp *ShardPool) ReclaimPools() []*ChunkPool {
	return sp.retiredPools.reclaim()
}
