package alloc

// Region-handle owner kinds. These tag the top-level region.Handles
// entries Allocator carves region-chunks off of; chunkpool.ChunkPoolKind
// is a separate namespace one level down, tagging ShardPool's own
// shard-level handles.
const (
	ownerArenaKind     uint16 = 1
	ownerShardPoolKind uint16 = 2
)
