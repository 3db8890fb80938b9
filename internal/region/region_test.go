package region

import (
	"sync"
	"testing"

	"vaultmem/internal/flist"
)

func testSpecs(t *testing.T) *Specs {
	t.Helper()
	s, err := Build(Config{
		RegionSizesLog2:      []uint32{20, 20, 22}, // 1MiB, 1MiB, 4MiB
		RegionChunkSizesLog2: []uint32{12, 13, 14},  // 4KiB, 8KiB, 16KiB
		ContentionSplit:      4,
		HandleSize:           16,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return s
}

func TestBuildRejectsBadConfig(t *testing.T) {
	cases := []Config{
		{},
		{RegionSizesLog2: []uint32{20}, RegionChunkSizesLog2: []uint32{12, 13}, ContentionSplit: 4, HandleSize: 16},
		{RegionSizesLog2: []uint32{20}, RegionChunkSizesLog2: []uint32{12}, ContentionSplit: 3, HandleSize: 16},
		{RegionSizesLog2: []uint32{20}, RegionChunkSizesLog2: []uint32{12}, ContentionSplit: 32, HandleSize: 16},
		{RegionSizesLog2: []uint32{20}, RegionChunkSizesLog2: []uint32{12}, ContentionSplit: 4, HandleSize: 3},
		{RegionSizesLog2: []uint32{20, 20}, RegionChunkSizesLog2: []uint32{13, 12}, ContentionSplit: 4, HandleSize: 16},
		{RegionSizesLog2: []uint32{12}, RegionChunkSizesLog2: []uint32{20}, ContentionSplit: 4, HandleSize: 16},
	}
	for i, c := range cases {
		if _, err := Build(c); err == nil {
			t.Errorf("case %d: expected error, got nil", i)
		}
	}
}

// TestLocateBijectivity is the Go analogue of spec.md testable property 6:
// decode(encode(region, chunk)) round-trips for every valid chunk in every
// region, and Locate rejects offsets past the reserved range.
func TestLocateBijectivity(t *testing.T) {
	s := testSpecs(t)

	for r, rs := range s.Regions {
		for chunk := uint32(0); chunk < rs.HandleCount; chunk++ {
			off := s.ChunkByteOffset(uint32(r), chunk)
			gotRegion, gotChunk, gotHandle, ok := s.Locate(off)
			if !ok {
				t.Fatalf("region %d chunk %d: Locate rejected valid offset %d", r, chunk, off)
			}
			if gotRegion != uint32(r) || gotChunk != chunk {
				t.Fatalf("region %d chunk %d: Locate returned region %d chunk %d",
					r, chunk, gotRegion, gotChunk)
			}
			wantHandle := rs.HandleOffset + chunk
			if gotHandle != wantHandle {
				t.Fatalf("region %d chunk %d: handle = %d, want %d", r, chunk, gotHandle, wantHandle)
			}
		}
	}

	if _, _, _, ok := s.Locate(s.TotalRegionsSize); ok {
		t.Fatal("Locate should reject an offset at/past TotalRegionsSize")
	}
}

func TestLocateMidChunkOffset(t *testing.T) {
	s := testSpecs(t)
	region := s.Regions[0]
	off := region.ByteOffset + (1 << region.ChunkSizeLog2) + 37 // partway into chunk 1
	r, chunk, _, ok := s.Locate(off)
	if !ok || r != 0 || chunk != 1 {
		t.Fatalf("Locate(%d) = (%d, %d, ok=%v), want (0, 1, true)", off, r, chunk, ok)
	}
}

func TestPoolsAllocateDeallocateRoundTrip(t *testing.T) {
	s := testSpecs(t)
	h := NewHandles(s.NumHandles)
	p := NewPools(s, h)

	const region = 0
	rs := s.Regions[region]
	params := AllocParams{SplitStep: 1, Attempts: flist.Unbounded, Rounds: 4}

	seen := map[uint32]bool{}
	for i := uint32(0); i < rs.HandleCount; i++ {
		_, handle, shard, status := p.AllocateChunk(region, params)
		if status != Acquired {
			t.Fatalf("allocation %d: status = %v, want Acquired", i, status)
		}
		if seen[handle] {
			t.Fatalf("handle %d issued twice", handle)
		}
		seen[handle] = true
		h.SetOwner(handle, nil, 1)
		_ = shard
	}

	if _, _, _, status := p.AllocateChunk(region, params); status != NoResource {
		t.Fatalf("allocation past capacity: status = %v, want NoResource", status)
	}

	for handle := range seen {
		shard := p.ShardOf(region, handle-rs.HandleOffset)
		h.SetNext(handle, flist.NullLink)
		p.DeallocateChunk(region, handle, shard)
	}

	again := map[uint32]bool{}
	for i := uint32(0); i < rs.HandleCount; i++ {
		_, handle, _, status := p.AllocateChunk(region, params)
		if status != Acquired {
			t.Fatalf("re-allocation %d: status = %v, want Acquired", i, status)
		}
		again[handle] = true
	}
	if len(again) != len(seen) {
		t.Fatalf("re-allocation issued %d distinct handles, want %d", len(again), len(seen))
	}
}

// TestPoolsConcurrentConservation is the Go analogue of spec.md S1: every
// handle a region can ever issue is allocated exactly once across all
// concurrent allocators, with no handle issued twice and none lost.
func TestPoolsConcurrentConservation(t *testing.T) {
	s := testSpecs(t)
	h := NewHandles(s.NumHandles)
	p := NewPools(s, h)

	const region = 2
	rs := s.Regions[region]
	params := AllocParams{SplitStep: 1, Attempts: 64, Rounds: 64}

	var mu sync.Mutex
	seen := map[uint32]bool{}
	var wg sync.WaitGroup
	const workers = 8
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(seed uint32) {
			defer wg.Done()
			myParams := params
			myParams.SplitStart = seed
			for {
				_, handle, _, status := p.AllocateChunk(region, myParams)
				if status != Acquired {
					return
				}
				mu.Lock()
				if seen[handle] {
					mu.Unlock()
					t.Errorf("handle %d issued twice", handle)
					return
				}
				seen[handle] = true
				mu.Unlock()
			}
		}(uint32(w))
	}
	wg.Wait()

	if uint32(len(seen)) != rs.HandleCount {
		t.Fatalf("issued %d distinct handles, want %d", len(seen), rs.HandleCount)
	}
}
