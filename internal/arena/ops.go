package arena

// Allocate implements spec.md §4.6's allocate(arena, size): bump the
// arena, then immediately re-home it in the bin table (release_arena),
// since an arena's bin placement always reflects its remaining space
// after the most recent mutation, never a stale snapshot.
func Allocate(bt *BinTable, a *Arena, size uint64) (offset uint64, ok bool) {
	offset, ok = a.Acquire(size)
	if !ok {
		return 0, false
	}
	bt.ReleaseArena(a)
	return offset, true
}

// DeallocateStatus reports what Deallocate did with an arena whose
// resettable condition was reached.
type DeallocateStatus int

const (
	// StillInUse: the arena has outstanding allocations; nothing to do
	// beyond the byte accounting.
	StillInUse DeallocateStatus = iota
	// Resettable: the arena just became fully resettable; it has been
	// detached from the bin table and reset, and the caller decides how
	// to recycle it.
	Resettable
)

// Deallocate implements spec.md §4.6's deallocate(arena, ptr, size) local
// path: account for the freed bytes, and if the arena has become fully
// resettable, detach it from the bin table, reset it, and report
// Resettable so the surrounding allocator can recycle it.
func Deallocate(bt *BinTable, a *Arena, size uint64) DeallocateStatus {
	a.ReleaseLocal(size)
	if !a.Resettable() {
		return StillInUse
	}
	bt.RemoveFromBin(a)
	a.Reset()
	return Resettable
}
