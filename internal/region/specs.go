package region

import "fmt"

// MaxRegions is the hard cap spec.md §3 places on the region table.
const MaxRegions = 8

// Config is the geometry subset of the allocator's configuration that
// determines the region-chunk substrate's read-only layout. It mirrors
// the options table in spec.md §6.
type Config struct {
	RegionSizesLog2      []uint32 // ≤ MaxRegions, power-of-two byte sizes
	RegionChunkSizesLog2 []uint32 // one per region, ascending required
	ContentionSplit      uint32   // power of two, ≤ 16
	HandleSize           uint32   // control_block_size, power of two
}

// RegionSpec describes one region's placement inside the reserved address
// range and its partition into equal-sized region-chunks.
type RegionSpec struct {
	ByteOffset    uint64
	ByteSize      uint64
	ChunkSizeLog2 uint32
	HandleOffset  uint32
	HandleCount   uint32
}

// Specs is the read-only layout map built once at startup by Build and
// consulted by every decode operation thereafter. Nothing in Specs is
// mutated after Build returns.
type Specs struct {
	Regions []RegionSpec

	// AllRegionsEqualSize selects the O(1) shift decode over the linear
	// sentinel scan in Locate.
	AllRegionsEqualSize bool
	RegionSizeLog2       uint32 // meaningful only if AllRegionsEqualSize

	TotalRegionsSize uint64
	TotalHandlesSize uint64
	NumHandles       uint32

	HandleSize      uint32
	ContentionSplit uint32
}

// Build validates cfg per spec.md §7 ConfigurationInvalid rules and
// materializes the region table. It never allocates virtual memory itself
// — that is the caller's job once Specs confirms the geometry is sound.
func Build(cfg Config) (*Specs, error) {
	n := len(cfg.RegionSizesLog2)
	if n == 0 {
		return nil, fmt.Errorf("region: at least one region is required")
	}
	if n > MaxRegions {
		return nil, fmt.Errorf("region: %d regions exceeds MaxRegions=%d", n, MaxRegions)
	}
	if len(cfg.RegionChunkSizesLog2) != n {
		return nil, fmt.Errorf("region: region_chunk_sizes_log2 length %d != region_sizes_log2 length %d",
			len(cfg.RegionChunkSizesLog2), n)
	}
	if cfg.ContentionSplit == 0 || cfg.ContentionSplit&(cfg.ContentionSplit-1) != 0 {
		return nil, fmt.Errorf("region: contention_split %d must be a power of two", cfg.ContentionSplit)
	}
	if cfg.ContentionSplit > 16 {
		return nil, fmt.Errorf("region: contention_split %d exceeds max of 16", cfg.ContentionSplit)
	}
	if cfg.HandleSize == 0 || cfg.HandleSize&(cfg.HandleSize-1) != 0 {
		return nil, fmt.Errorf("region: handle size %d must be a power of two", cfg.HandleSize)
	}

	for i := 1; i < n; i++ {
		if cfg.RegionChunkSizesLog2[i] < cfg.RegionChunkSizesLog2[i-1] {
			return nil, fmt.Errorf("region: region_chunk_sizes_log2 must be ascending, got %v",
				cfg.RegionChunkSizesLog2)
		}
	}

	regions := make([]RegionSpec, n)
	equal := true
	var offset, handleOffset uint64
	for i := 0; i < n; i++ {
		sizeLog2 := cfg.RegionSizesLog2[i]
		chunkLog2 := cfg.RegionChunkSizesLog2[i]
		if chunkLog2 > sizeLog2 {
			return nil, fmt.Errorf("region %d: chunk size log2 %d exceeds region size log2 %d",
				i, chunkLog2, sizeLog2)
		}
		size := uint64(1) << sizeLog2
		chunkSize := uint64(1) << chunkLog2
		count := size / chunkSize

		if i > 0 && sizeLog2 != cfg.RegionSizesLog2[0] {
			equal = false
		}

		if handleOffset+count > uint64(^uint32(0)) {
			return nil, fmt.Errorf("region %d: handle index overflow", i)
		}

		regions[i] = RegionSpec{
			ByteOffset:    offset,
			ByteSize:      size,
			ChunkSizeLog2: chunkLog2,
			HandleOffset:  uint32(handleOffset),
			HandleCount:   uint32(count),
		}
		offset += size
		handleOffset += count
	}

	s := &Specs{
		Regions:              regions,
		AllRegionsEqualSize:  equal,
		TotalRegionsSize:     offset,
		NumHandles:           uint32(handleOffset),
		HandleSize:           cfg.HandleSize,
		ContentionSplit:      cfg.ContentionSplit,
	}
	s.TotalHandlesSize = uint64(s.NumHandles) * uint64(cfg.HandleSize)
	if equal {
		s.RegionSizeLog2 = cfg.RegionSizesLog2[0]
	}
	return s, nil
}

// Locate decodes a region-relative byte offset into (region, chunk,
// handle). It returns ok=false if relptr falls outside the reserved
// regions area entirely. This is spec.md §4.5's "Decode ptr -> location",
// steps 2-5 (step 1, the bounds check against the live reservation, is the
// caller's responsibility since Specs has no base pointer of its own).
func (s *Specs) Locate(relptr uint64) (regionIdx, chunk, handle uint32, ok bool) {
	if relptr >= s.TotalRegionsSize {
		return 0, 0, 0, false
	}

	var r uint32
	if s.AllRegionsEqualSize {
		r = uint32(relptr >> s.RegionSizeLog2)
		if int(r) >= len(s.Regions) {
			return 0, 0, 0, false
		}
	} else {
		found := false
		for i := len(s.Regions) - 1; i >= 0; i-- {
			if relptr >= s.Regions[i].ByteOffset {
				r = uint32(i)
				found = true
				break
			}
		}
		if !found {
			return 0, 0, 0, false
		}
	}

	region := s.Regions[r]
	chunk = uint32((relptr - region.ByteOffset) >> region.ChunkSizeLog2)
	if chunk >= region.HandleCount {
		return 0, 0, 0, false
	}
	handle = region.HandleOffset + chunk
	return r, chunk, handle, true
}

// ChunkByteOffset returns the region-relative byte offset of chunk within
// region r, the inverse of the chunk half of Locate.
func (s *Specs) ChunkByteOffset(r, chunk uint32) uint64 {
	region := s.Regions[r]
	return region.ByteOffset + uint64(chunk)<<region.ChunkSizeLog2
}
