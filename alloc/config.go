package alloc

import (
	"fmt"

	"vaultmem/internal/arena"
	"vaultmem/internal/region"
)

// Config is the full geometry and policy surface for an Allocator,
// spec.md §6's options table collected into one structure the way the
// teacher's wal/config.go collects a subsystem's tunables.
type Config struct {
	Region region.Config
	Arena  arena.Config

	// ShardSizeLog2 is the fixed shard size a shard pool subdivides a
	// region-chunk into.
	ShardSizeLog2 uint32

	// MinChunkPow2 / MaxChunkPow2 bound the chunk-pool size classes this
	// allocator will carve; a request whose size class exceeds
	// MaxChunkPow2 fails rather than falling back to a third tier, since
	// spec.md §4.8 names only the fast-arena and chunk/shard pool paths.
	MinChunkPow2 uint32
	MaxChunkPow2 uint32

	// FastArenaMaxAllocSize is spec.md §4.8 step 1's
	// fast_arena_max_alloc_size threshold.
	FastArenaMaxAllocSize uint64

	GraveyardSlots int
}

// DefaultConfig returns a modest single-region configuration suitable for
// tests and small embedders.
func DefaultConfig() Config {
	return Config{
		Region: region.Config{
			RegionSizesLog2:      []uint32{30}, // 1GiB
			RegionChunkSizesLog2: []uint32{20}, // 1MiB region-chunks
			ContentionSplit:      4,
			HandleSize:           16,
		},
		Arena: arena.Config{
			MinAlignmentLog2:   3,
			MaxAlignmentLog2:   6,
			MinStepLog2:        9,
			MaxStepLog2:        15,
			NumSplitsLog2:      4,
			CacheMissPromotion: 4,
		},
		ShardSizeLog2:         16, // 64KiB shards
		MinChunkPow2:          6,  // 64B
		MaxChunkPow2:          12, // 4KiB
		FastArenaMaxAllocSize: 1 << 15,
		GraveyardSlots:        16,
	}
}

// Validate checks internal consistency beyond what region.Build already
// enforces for the embedded Region geometry.
func (c Config) Validate() error {
	if c.MinChunkPow2 == 0 || c.MaxChunkPow2 < c.MinChunkPow2 {
		return fmt.Errorf("alloc: invalid chunk size range [%d,%d]", c.MinChunkPow2, c.MaxChunkPow2)
	}
	if c.ShardSizeLog2 <= c.MaxChunkPow2 {
		return fmt.Errorf("alloc: shard size log2 %d must exceed max chunk pow2 %d", c.ShardSizeLog2, c.MaxChunkPow2)
	}
	if c.FastArenaMaxAllocSize == 0 {
		return fmt.Errorf("alloc: fast arena max alloc size must be > 0")
	}
	if c.GraveyardSlots <= 0 {
		return fmt.Errorf("alloc: graveyard slots must be > 0")
	}
	if c.Arena.MaxAlignmentLog2 < c.Arena.MinAlignmentLog2 {
		return fmt.Errorf("alloc: arena alignment range is inverted")
	}
	if _, err := region.Build(c.Region); err != nil {
		return fmt.Errorf("alloc: %w", err)
	}
	return nil
}
