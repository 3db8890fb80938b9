package region

import (
	"math/rand"
	"time"

	"vaultmem/internal/flist"
)

// shardPool is one region's one contention-shard: a versioned free list
// plus a bump stack over that shard's disjoint sub-range of handle
// indices, exactly spec.md §3's "Pool entry".
type shardPool struct {
	free *flist.List
	bump *flist.BumpStack
}

// regionHandleOps adapts the global Handles array to flist.NodeOps for one
// region, translating the region-local link indices a shard's free list
// operates on (matching splitBounds/regionLocalToGlobal elsewhere in this
// file) into that region's slice of the global handle index space.
// NullLink is a sentinel, never a real index, so it passes through
// untranslated in both directions.
type regionHandleOps struct {
	handles *Handles
	offset  uint32
}

func (o regionHandleOps) SetNext(idx, next uint32) {
	global := next
	if global != flist.NullLink {
		global += o.offset
	}
	o.handles.SetNext(idx+o.offset, global)
}

func (o regionHandleOps) GetNext(idx uint32) uint32 {
	next := o.handles.GetNext(idx + o.offset)
	if next != flist.NullLink {
		next -= o.offset
	}
	return next
}

// Pools is the mutable, contention-sharded pool array: one shardPool per
// (region, shard) pair, built once alongside Specs and mutated for the
// life of the process.
type Pools struct {
	specs   *Specs
	handles *Handles
	shards  [][]shardPool // [region][shard]

	// splitBounds[region][shard] is the first handle index (region-local)
	// owned by that shard; reverse lookup walks this with a linear scan,
	// matching spec.md's split_search_sentinels.
	splitBounds [][]uint32
}

// NewPools partitions each region's handle-index range evenly across
// specs.ContentionSplit shards and seeds each shard's bump stack with its
// sub-range, leaving every region-chunk unissued (on the bump stack, not
// yet on any free list) until first use.
func NewPools(specs *Specs, handles *Handles) *Pools {
	split := specs.ContentionSplit
	p := &Pools{
		specs:       specs,
		handles:     handles,
		shards:      make([][]shardPool, len(specs.Regions)),
		splitBounds: make([][]uint32, len(specs.Regions)),
	}

	for r, rs := range specs.Regions {
		p.shards[r] = make([]shardPool, split)
		p.splitBounds[r] = make([]uint32, split)

		ops := regionHandleOps{handles: handles, offset: rs.HandleOffset}
		per := rs.HandleCount / split
		rem := rs.HandleCount % split
		var localStart uint32
		for sh := uint32(0); sh < split; sh++ {
			count := per
			if sh < rem {
				count++
			}
			p.splitBounds[r][sh] = localStart
			p.shards[r][sh] = shardPool{
				free: flist.New(ops),
				bump: flist.NewBumpStack(count),
			}
			localStart += count
		}
	}
	return p
}

// ShardOf returns the shard id owning region-local handle index
// localHandle, via a linear scan of splitBounds (spec.md's
// split_search_sentinels reverse lookup).
func (p *Pools) ShardOf(region uint32, localHandle uint32) uint32 {
	bounds := p.splitBounds[region]
	for i := len(bounds) - 1; i >= 0; i-- {
		if localHandle >= bounds[i] {
			return uint32(i)
		}
	}
	return 0
}

// AllocParams bounds a single AllocateChunk call, matching spec.md §4.5's
// outer/inner retry structure.
type AllocParams struct {
	SplitStart uint32
	SplitStep  uint32
	Attempts   int // per-shard flist attempt bound; flist.Unbounded allowed
	Rounds     int // outer retry rounds across all shards
}

// AllocStatus reports why AllocateChunk did or did not succeed.
type AllocStatus int

const (
	// Acquired: a chunk was obtained.
	Acquired AllocStatus = iota
	// NoResource: every shard was genuinely exhausted (no contention).
	NoResource
	// Failed: contention was observed; the caller may want to retry at a
	// different shard start / escalate to a fresh region.
	Failed
)

func defaultBackoff() flist.Backoff {
	return func() { time.Sleep(0) }
}

// AllocateChunk implements spec.md §4.5's _allocate_chunk: it walks shards
// starting at params.SplitStart and stepping by params.SplitStep, trying
// the free list then the bump stack at each, retrying the whole sweep up
// to params.Rounds times with exponential backoff before giving up.
func (p *Pools) AllocateChunk(region uint32, params AllocParams) (chunk, handle, shard uint32, status AllocStatus) {
	shards := p.shards[region]
	n := uint32(len(shards))
	step := params.SplitStep
	if step == 0 {
		step = 1
	}

	backoff := defaultBackoff()
	rounds := params.Rounds
	if rounds <= 0 {
		rounds = 1
	}

	for round := 0; round < rounds; round++ {
		chunkSeen := false
		idx := params.SplitStart % n
		for i := uint32(0); i < n; i++ {
			sp := &shards[idx]

			link := sp.free.Pop(backoff, params.Attempts)
			if link != flist.NullLink && link != flist.OpFailed {
				h := p.regionLocalToGlobal(region, link)
				return link, h, idx, Acquired
			}
			if link == flist.OpFailed {
				chunkSeen = true
			} else {
				// NullLink: free list is genuinely empty for this shard,
				// fall through to the bump stack.
				bumped := sp.bump.Bump()
				if bumped != flist.NullLink {
					h := p.regionLocalToGlobal(region, p.splitBounds[region][idx]+bumped)
					return p.splitBounds[region][idx] + bumped, h, idx, Acquired
				}
			}
			idx = (idx + step) % n
		}
		if !chunkSeen {
			return 0, 0, 0, NoResource
		}
		if round+1 < rounds {
			time.Sleep(backoffDelay(round))
		}
	}
	return 0, 0, 0, Failed
}

func backoffDelay(round int) time.Duration {
	d := time.Microsecond << uint(min(round, 10))
	jitter := time.Duration(rand.Int63n(int64(d) + 1))
	return d + jitter
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// regionLocalToGlobal turns a region-local bump-stack index into the
// global handle index via the region's HandleOffset, matching
// shard-relative bump-stack indices (which are region-local, per
// splitBounds) back into the global handle space Handles addresses.
func (p *Pools) regionLocalToGlobal(region uint32, regionLocalChunk uint32) uint32 {
	return p.specs.Regions[region].HandleOffset + regionLocalChunk
}

// DeallocateChunk returns a known (region, handle, shard) triple to its
// shard's free list. handle is the *global* handle index; it is converted
// to the region-local link the free list expects.
func (p *Pools) DeallocateChunk(region, handle, shard uint32) {
	local := handle - p.specs.Regions[region].HandleOffset
	p.shards[region][shard].free.Push(local, defaultBackoff(), flist.Unbounded)
}

// ShardLoad reports how many handles shard currently has circulating
// (bumped but not necessarily free) for diagnostics/telemetry only.
func (p *Pools) ShardLoad(region, shard uint32) uint32 {
	return p.shards[region][shard].bump.Top()
}
