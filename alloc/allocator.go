package alloc

import (
	"fmt"
	"sync"
	"sync/atomic"

	"vaultmem/internal/arena"
	"vaultmem/internal/chunkpool"
	"vaultmem/internal/graveyard"
	"vaultmem/internal/region"
	"vaultmem/vmem"
)

// Allocator is the process-wide shared state spec.md §4.8 describes: one
// OS virtual-memory reservation, the region-chunk layout over it, and the
// graveyard idle thread-allocators park in between lives. Everything here
// is safe for concurrent use; per-thread state lives in ThreadAllocator.
type Allocator struct {
	cfg Config

	vm      *vmem.Region
	specs   *region.Specs
	handles *region.Handles
	pools   *region.Pools

	graveyard *graveyard.Graveyard
	threadSeq atomic.Uint64

	mu          sync.Mutex
	liveThreads map[uint64]*ThreadAllocator
}

// New reserves address space for cfg's region geometry and builds the
// region-chunk substrate over it. The reservation is committed up front
// (ReserveCommit) rather than lazily, matching the teacher's preference
// for failing fast at startup over surfacing OS memory pressure mid-run.
func New(cfg Config) (*Allocator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	specs, err := region.Build(cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("alloc: %w", err)
	}
	vm, err := vmem.AllocAligned(specs.TotalRegionsSize, vmem.ReserveCommit, vmem.AllocGranularity())
	if err != nil {
		return nil, fmt.Errorf("alloc: reserving address space: %w", err)
	}

	handles := region.NewHandles(specs.NumHandles)
	pools := region.NewPools(specs, handles)

	return &Allocator{
		cfg:         cfg,
		vm:          vm,
		specs:       specs,
		handles:     handles,
		pools:       pools,
		graveyard:   graveyard.New(cfg.GraveyardSlots),
		liveThreads: make(map[uint64]*ThreadAllocator),
	}, nil
}

// Close releases the entire virtual-memory reservation. No ThreadAllocator
// obtained from this Allocator may be used afterward.
func (a *Allocator) Close() bool {
	return vmem.Free(a.vm)
}

// At returns the size bytes of backing memory at a region-relative
// offset previously returned by a ThreadAllocator's Allocate.
func (a *Allocator) At(offset, size uint64) []byte {
	return a.vm.Bytes()[offset : offset+size]
}

// NewThread hands out a ThreadAllocator for the calling thread to use
// exclusively. It first tries to adopt one parked in the graveyard by a
// thread that has since gone dormant, reusing its already-carved bin
// table and chunk pools rather than carving everything from scratch —
// spec.md §4.4's whole reason for having a graveyard at all.
func (a *Allocator) NewThread() *ThreadAllocator {
	start := uint32(a.threadSeq.Add(1))
	if grave, parked, ok := a.graveyard.Acquire(start, 1); ok {
		t := parked.(*ThreadAllocator)
		a.graveyard.ReleaseThread(grave)
		a.mu.Lock()
		a.liveThreads[t.id] = t
		a.mu.Unlock()
		return t
	}

	t := &ThreadAllocator{
		id:            uint64(start),
		alloc:         a,
		arenaBins:     arena.NewBinTable(a.cfg.Arena),
		retiredArenas: arena.NewRetiredArenas(),
		chunkPools:    make(map[uint32]*chunkpool.ChunkPool),
	}
	a.mu.Lock()
	a.liveThreads[t.id] = t
	a.mu.Unlock()
	return t
}

// RetireThread parks t in the graveyard for adoption by a future NewThread
// caller instead of abandoning its arenas and chunk pools outright. The
// caller must not use t again afterward until it is handed back out by
// NewThread.
func (a *Allocator) RetireThread(t *ThreadAllocator) {
	a.mu.Lock()
	delete(a.liveThreads, t.id)
	a.mu.Unlock()
	a.graveyard.PutThreadToRest(&graveyard.GraveNode{Thread: t})
}

// Stats is a point-in-time introspection snapshot, the kind of thing a
// telemetry sidecar would poll and export rather than compute itself.
type Stats struct {
	NumHandles     uint32
	NumRegions     int
	LiveThreads    int
	GraveyardSlots int
}

func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	live := len(a.liveThreads)
	a.mu.Unlock()
	return Stats{
		NumHandles:     a.specs.NumHandles,
		NumRegions:     len(a.specs.Regions),
		LiveThreads:    live,
		GraveyardSlots: a.graveyard.SlotCount(),
	}
}
