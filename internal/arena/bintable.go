package arena

import "math/bits"

// AcquireStatus reports why AcquireArena did or did not return an arena.
type AcquireStatus int

const (
	// Acquired: an arena satisfying the request was found.
	Acquired AcquireStatus = iota
	// NoResource: no existing arena (cache, any bin, or overflow) can
	// satisfy the request; the caller must carve a fresh region-chunk.
	NoResource
)

// Config is the fast-arena bin table's geometry, spec.md §6's
// fast_arena_{min,max}_alignment_log2 / *_step_size_log2 / num_splits_log2.
type Config struct {
	MinAlignmentLog2 uint32
	MaxAlignmentLog2 uint32
	MinStepLog2      uint32
	MaxStepLog2      uint32
	NumSplitsLog2    uint32

	// CacheMissPromotion is the fixed miss count before a non-cached
	// candidate is promoted over the current cache row entry (spec.md's
	// "fixed 4-miss promotion rule").
	CacheMissPromotion uint32
}

func intlog2(r uint64) uint32 {
	if r == 0 {
		return 0
	}
	return uint32(bits.Len64(r) - 1)
}

func (c Config) numLevels() uint32 { return c.MaxStepLog2 - c.MinStepLog2 + 1 }
func (c Config) numSplits() uint32 { return uint32(1) << c.NumSplitsLog2 }
func (c Config) columnsPerRow() uint32 { return (c.numLevels() + 1) * c.numSplits() }
func (c Config) numRows() uint32 { return c.MaxAlignmentLog2 - c.MinAlignmentLog2 + 1 }

// stepSplitID is spec.md §4.6's locate_step_split_{size,arena}: it finds
// the (step, split) bin a remaining byte count of r falls into.
// forSize=true applies the size-search rounding so that every arena found
// at the returned bin or later can satisfy an allocation of r bytes;
// forSize=false is the unrounded arena-placement rule.
func (c Config) stepSplitID(r uint64, forSize bool) (col uint32) {
	numSplits := c.numSplits()

	var stepID uint32
	var base uint64
	var rangeLog2 uint32 = c.MinStepLog2
	if r >= uint64(1)<<c.MinStepLog2 {
		lvl := intlog2(r)
		if lvl < c.MinStepLog2 {
			lvl = c.MinStepLog2
		}
		if lvl > c.MaxStepLog2 {
			lvl = c.MaxStepLog2
		}
		stepID = lvl - c.MinStepLog2 + 1
		rangeLog2 = lvl
		base = uint64(1) << lvl
	}

	rr := r
	if forSize {
		stepSize := uint64(1) << rangeLog2
		round := stepSize >> c.NumSplitsLog2
		if round > 0 {
			round--
		}
		rr = r + round
	}

	var diff uint64
	if rr > base {
		diff = rr - base
	}
	split := (diff * uint64(numSplits)) >> rangeLog2
	if split >= uint64(numSplits) {
		if forSize {
			// Rounding carried r past this step's last split, whose arenas
			// may hold less than r; start the search at the next step.
			return (stepID + 1) * numSplits
		}
		split = uint64(numSplits - 1)
	}
	return stepID*numSplits + uint32(split)
}

// alignmentRow maps an alignment (power of two) to its bin-table row.
func (c Config) alignmentRow(alignment uint64) uint32 {
	log2 := intlog2(alignment)
	if log2 < c.MinAlignmentLog2 {
		log2 = c.MinAlignmentLog2
	}
	if log2 > c.MaxAlignmentLog2 {
		log2 = c.MaxAlignmentLog2
	}
	return log2 - c.MinAlignmentLog2
}

// bitset is a fixed-size present/absent bitmap over a row's columns.
type bitset struct {
	words []uint64
}

func newBitset(n uint32) bitset {
	return bitset{words: make([]uint64, (n+63)/64)}
}

func (b *bitset) set(i uint32)   { b.words[i/64] |= 1 << (i % 64) }
func (b *bitset) clear(i uint32) { b.words[i/64] &^= 1 << (i % 64) }
func (b *bitset) test(i uint32) bool {
	return b.words[i/64]&(1<<(i%64)) != 0
}

// firstSet returns the smallest set bit index >= from, or (0, false) if
// none exists at or above from.
func (b *bitset) firstSet(from uint32) (uint32, bool) {
	total := uint32(len(b.words)) * 64
	for i := from; i < total; i++ {
		if b.test(i) {
			return i, true
		}
	}
	return 0, false
}

// row is one alignment class's bin list array, direct-hit cache, and
// present-bins bitmap.
type row struct {
	bins        []*Arena // head of the doubly-linked list per column
	present     bitset
	cached      *Arena
	cacheMisses uint32
	minAllocSize uint64 // bin 0 boundary: arenas below this are unusable
}

// BinTable is a per-thread-allocator structure: only the owning thread
// mutates it directly, per spec.md's "Shared-resource policy" — the
// retire chain is the only cross-thread entry point into an arena that
// lives here.
type BinTable struct {
	cfg  Config
	rows []row
}

// NewBinTable constructs an empty bin table for the given geometry.
func NewBinTable(cfg Config) *BinTable {
	bt := &BinTable{cfg: cfg, rows: make([]row, cfg.numRows())}
	cols := cfg.columnsPerRow()
	for i := range bt.rows {
		bt.rows[i] = row{
			bins:         make([]*Arena, cols),
			present:      newBitset(cols),
			minAllocSize: uint64(1) << (cfg.MinAlignmentLog2 + uint32(i)),
		}
	}
	return bt
}

func (bt *BinTable) rowFor(alignment uint64) *row {
	return &bt.rows[bt.cfg.alignmentRow(alignment)]
}

func (rw *row) pushFront(col uint32, a *Arena) {
	head := rw.bins[col]
	a.entry.next = head
	a.entry.prev = nil
	if head != nil {
		head.entry.prev = a
	}
	rw.bins[col] = a
	rw.present.set(col)
}

func (rw *row) popFront(col uint32) *Arena {
	a := rw.bins[col]
	if a == nil {
		return nil
	}
	rw.bins[col] = a.entry.next
	if rw.bins[col] != nil {
		rw.bins[col].entry.prev = nil
	} else {
		rw.present.clear(col)
	}
	a.entry.next = nil
	a.entry.prev = nil
	return a
}

// AcquireArena implements spec.md §4.6's acquire_arena(size, align): the
// row's cache is tried first, then the present-bins bitmap for the
// nearest non-empty bin at or above the size's bin.
func (bt *BinTable) AcquireArena(size, align uint64) (*Arena, AcquireStatus) {
	rw := bt.rowFor(align)

	if rw.cached != nil && rw.cached.Remaining() >= size {
		a := rw.cached
		rw.cached = nil
		rw.cacheMisses = 0
		return a, Acquired
	}

	col := bt.cfg.stepSplitID(size, true)
	if bin, ok := rw.present.firstSet(col); ok {
		a := rw.popFront(bin)
		if a != nil {
			return a, Acquired
		}
	}
	return nil, NoResource
}

// ReleaseArena implements spec.md §4.6's release_arena(arena): install as
// the row's cache if empty, promote over a weaker cache after
// CacheMissPromotion consecutive misses, or failing that place the arena
// into its arena→bin column and set the presence bit.
func (bt *BinTable) ReleaseArena(a *Arena) {
	rw := bt.rowFor(a.Alignment())
	remaining := a.Remaining()

	if rw.cached == nil && remaining >= rw.minAllocSize {
		rw.cached = a
		rw.cacheMisses = 0
		return
	}

	if rw.cached != nil && remaining >= 2*rw.cached.Remaining() {
		old := rw.cached
		rw.cached = a
		rw.cacheMisses = 0
		bt.placeInBin(rw, old)
		return
	}

	promote := bt.cfg.CacheMissPromotion
	if promote == 0 {
		promote = 4
	}
	rw.cacheMisses++
	if rw.cached == nil || rw.cacheMisses >= promote {
		old := rw.cached
		rw.cached = a
		rw.cacheMisses = 0
		if old != nil {
			bt.placeInBin(rw, old)
		}
		return
	}

	bt.placeInBin(rw, a)
}

func (bt *BinTable) placeInBin(rw *row, a *Arena) {
	col := bt.cfg.stepSplitID(a.Remaining(), false)
	rw.pushFront(col, a)
}

// RemoveFromBin detaches an arena from its current home in the row, the
// row's cache or a bin list, for callers draining a specific arena out of
// band (e.g. deallocate's "detach from current home" step).
func (bt *BinTable) RemoveFromBin(a *Arena) {
	rw := bt.rowFor(a.Alignment())
	if rw.cached == a {
		rw.cached = nil
		return
	}
	col := bt.cfg.stepSplitID(a.Remaining(), false)
	if rw.bins[col] == a {
		rw.popFront(col)
		return
	}
	a.unlink()
}
