package alloc

import (
	"testing"

	"vaultmem/internal/arena"
	"vaultmem/internal/region"
)

func testConfig() Config {
	return Config{
		Region: region.Config{
			RegionSizesLog2:      []uint32{20}, // 1MiB
			RegionChunkSizesLog2: []uint32{16}, // 64KiB region-chunks
			ContentionSplit:      4,
			HandleSize:           16,
		},
		Arena: arena.Config{
			MinAlignmentLog2:   3,
			MaxAlignmentLog2:   6,
			MinStepLog2:        9,
			MaxStepLog2:        14,
			NumSplitsLog2:      4,
			CacheMissPromotion: 4,
		},
		ShardSizeLog2:         13, // 8KiB shards
		MinChunkPow2:          6,  // 64B
		MaxChunkPow2:          9,  // 512B
		FastArenaMaxAllocSize: 1 << 7,
		GraveyardSlots:        4,
	}
}

func newTestAllocator(t *testing.T) *Allocator {
	t.Helper()
	a, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestAllocateFreeFastArenaRoundTrip(t *testing.T) {
	a := newTestAllocator(t)
	th := a.NewThread()

	off, ok := th.Allocate(64, 8)
	if !ok {
		t.Fatal("Allocate failed")
	}
	mem := a.At(off, 64)
	mem[0] = 0xAB
	mem[63] = 0xCD

	if !th.Free(off, 64) {
		t.Fatal("Free reported failure for a live local allocation")
	}
}

func TestAllocateFreeChunkPoolRoundTrip(t *testing.T) {
	a := newTestAllocator(t)
	th := a.NewThread()

	// Bigger than FastArenaMaxAllocSize, routes through the chunk pool.
	off, ok := th.Allocate(300, 8)
	if !ok {
		t.Fatal("Allocate failed")
	}
	mem := a.At(off, 300)
	mem[0] = 1
	mem[299] = 2

	if !th.Free(off, 300) {
		t.Fatal("Free reported failure for a live local chunk allocation")
	}

	// The second request is served by the same pool without carving a new
	// one: Acquire bumps before popping the free list, so it gets the
	// pool's next never-issued 512-byte chunk.
	off2, ok := th.Allocate(300, 8)
	if !ok {
		t.Fatal("second Allocate failed")
	}
	if off2 != off+1<<9 {
		t.Fatalf("expected the same pool's next chunk at %d, got %d", off+1<<9, off2)
	}
}

func TestCrossThreadFreeFastArena(t *testing.T) {
	a := newTestAllocator(t)
	owner := a.NewThread()
	other := a.NewThread()

	off, ok := owner.Allocate(64, 8)
	if !ok {
		t.Fatal("Allocate failed")
	}

	if !other.Free(off, 64) {
		t.Fatal("cross-thread Free reported failure")
	}

	if n := owner.Drain(); n == 0 {
		t.Fatal("expected Drain to reclaim at least one remote free")
	}
}

func TestCrossThreadFreeChunkPool(t *testing.T) {
	a := newTestAllocator(t)
	owner := a.NewThread()
	other := a.NewThread()

	off, ok := owner.Allocate(300, 8)
	if !ok {
		t.Fatal("Allocate failed")
	}

	if !other.Free(off, 300) {
		t.Fatal("cross-thread Free reported failure")
	}

	if n := owner.Drain(); n == 0 {
		t.Fatal("expected Drain to drain at least one retired chunk")
	}

	// Acquire bumps before popping the free list, so the next request gets
	// the same pool's next never-issued 512-byte chunk.
	off2, ok := owner.Allocate(300, 8)
	if !ok {
		t.Fatal("second Allocate failed")
	}
	if off2 != off+1<<9 {
		t.Fatalf("expected the same pool's next chunk at %d, got %d", off+1<<9, off2)
	}
}

func TestAllocatorGraveyardAdoption(t *testing.T) {
	a := newTestAllocator(t)
	th := a.NewThread()
	id := th.id

	a.RetireThread(th)
	if stats := a.Stats(); stats.LiveThreads != 0 {
		t.Fatalf("LiveThreads = %d after RetireThread, want 0", stats.LiveThreads)
	}

	adopted := a.NewThread()
	if adopted.id != id {
		t.Fatalf("expected NewThread to adopt the parked thread (id %d), got id %d", id, adopted.id)
	}
	if stats := a.Stats(); stats.LiveThreads != 1 {
		t.Fatalf("LiveThreads = %d after adoption, want 1", stats.LiveThreads)
	}
}

func TestAllocateRejectsOversizeRequest(t *testing.T) {
	a := newTestAllocator(t)
	th := a.NewThread()

	if _, ok := th.Allocate(1<<20, 8); ok {
		t.Fatal("expected Allocate to fail for a request beyond MaxChunkPow2")
	}
}
