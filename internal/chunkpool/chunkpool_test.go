package chunkpool

import (
	"sync"
	"testing"

	"vaultmem/internal/region"
)

func TestChunkPoolAcquireReleaseRoundTrip(t *testing.T) {
	mem := make([]byte, 4096)
	cp := NewChunkPool(mem, 6, 6) // 64-byte chunks

	seen := map[uint32]bool{}
	for i := uint32(0); i < cp.Capacity(); i++ {
		idx, ok := cp.Acquire()
		if !ok {
			t.Fatalf("acquire %d failed", i)
		}
		if seen[idx] {
			t.Fatalf("chunk %d issued twice", idx)
		}
		seen[idx] = true
	}

	if _, ok := cp.Acquire(); ok {
		t.Fatal("acquire should fail once the pool is exhausted")
	}
	if cp.Empty() {
		t.Fatal("pool should not be empty while chunks are outstanding")
	}

	for idx := range seen {
		cp.Release(idx)
	}
	if !cp.Empty() {
		t.Fatal("pool should be empty once every chunk is released")
	}

	again := map[uint32]bool{}
	for i := uint32(0); i < cp.Capacity(); i++ {
		idx, ok := cp.Acquire()
		if !ok {
			t.Fatalf("re-acquire %d failed", i)
		}
		again[idx] = true
	}
	if len(again) != len(seen) {
		t.Fatalf("re-acquired %d distinct chunks, want %d", len(again), len(seen))
	}
}

func TestChunkPoolRemoteRetireDrain(t *testing.T) {
	mem := make([]byte, 4096)
	cp := NewChunkPool(mem, 6, 6)

	var owned []uint32
	for i := 0; i < 10; i++ {
		idx, ok := cp.Acquire()
		if !ok {
			t.Fatalf("acquire %d failed", i)
		}
		owned = append(owned, idx)
	}

	var wg sync.WaitGroup
	for _, idx := range owned {
		wg.Add(1)
		go func(idx uint32) {
			defer wg.Done()
			cp.RetireChunk(idx)
		}(idx)
	}
	wg.Wait()

	if cp.Empty() {
		t.Fatal("pool should still be non-empty: chunks are retired, not yet drained")
	}

	drained := cp.DrainRetired()
	if drained != len(owned) {
		t.Fatalf("drained %d chunks, want %d", drained, len(owned))
	}
	if !cp.Empty() {
		t.Fatal("pool should be empty after draining every retired chunk")
	}
}

func TestShardPoolAcquireReleaseRoundTrip(t *testing.T) {
	mem := make([]byte, 1<<20)
	sp := NewShardPool(mem, 16) // 64KiB shards

	owner := region.Owner(nil)
	seen := map[uint32]bool{}
	for i := uint32(0); i < sp.Capacity(); i++ {
		idx, ok := sp.AcquireShard(owner)
		if !ok {
			t.Fatalf("acquire shard %d failed", i)
		}
		seen[idx] = true
	}
	if _, ok := sp.AcquireShard(owner); ok {
		t.Fatal("acquire should fail once every shard is issued")
	}

	for idx := range seen {
		sp.ReleaseShard(idx)
	}

	again := 0
	for {
		if _, ok := sp.AcquireShard(owner); !ok {
			break
		}
		again++
	}
	if uint32(again) != sp.Capacity() {
		t.Fatalf("re-acquired %d shards, want %d", again, sp.Capacity())
	}
}

func TestShardPoolRetiredPoolsDrain(t *testing.T) {
	sp := NewShardPool(make([]byte, 1<<20), 16)

	var pools []*ChunkPool
	for i := 0; i < 3; i++ {
		idx, ok := sp.AcquireShard(nil)
		if !ok {
			t.Fatalf("acquire shard %d failed", i)
		}
		cp := NewChunkPool(sp.Shard(idx), 6, 6)
		pools = append(pools, cp)
	}

	var wg sync.WaitGroup
	for _, cp := range pools {
		wg.Add(1)
		go func(cp *ChunkPool) {
			defer wg.Done()
			sp.RetirePool(cp)
		}(cp)
	}
	wg.Wait()

	reclaimed := sp.ReclaimPools()
	if len(reclaimed) != len(pools) {
		t.Fatalf("reclaimed %d pools, want %d", len(reclaimed), len(pools))
	}
	seen := map[*ChunkPool]bool{}
	for _, cp := range reclaimed {
		if seen[cp] {
			t.Fatal("pool reclaimed twice")
		}
		seen[cp] = true
	}

	if more := sp.ReclaimPools(); len(more) != 0 {
		t.Fatalf("second reclaim returned %d pools, want 0", len(more))
	}
}

// TestChunkPoolConcurrentConservation mirrors spec.md invariant 1 at
// chunk-pool granularity: under concurrent acquire/release, no chunk is
// ever issued to two owners at once.
func TestChunkPoolConcurrentConservation(t *testing.T) {
	mem := make([]byte, 1<<16)
	cp := NewChunkPool(mem, 6, 6)

	var mu sync.Mutex
	live := map[uint32]bool{}
	var wg sync.WaitGroup
	const workers = 8
	const rounds = 500
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				idx, ok := cp.Acquire()
				if !ok {
					continue
				}
				mu.Lock()
				if live[idx] {
					mu.Unlock()
					t.Errorf("chunk %d double-issued", idx)
					return
				}
				live[idx] = true
				mu.Unlock()

				mu.Lock()
				delete(live, idx)
				mu.Unlock()
				cp.Release(idx)
			}
		}()
	}
	wg.Wait()
	if !cp.Empty() {
		t.Fatal("pool should be empty once all workers finish")
	}
}
