package retire

import "sync/atomic"

// valueBits is how many of the 64 bits in a DataPtr's word hold the
// accumulated counter; the remaining bits hold the same Flags as Ptr[T].
// 2^56 bytes is far beyond any single arena's memory_size, so this never
// constrains spec.md's accounting invariants.
const valueBits = 56

const valueMask = uint64(1)<<valueBits - 1

// DataPtr is the retire-data(n) variant of Ptr[T]: the "pointer" slot is
// replaced by an accumulating counter, used by the fast-arena allocator to
// collect freed byte counts contributed by remote deallocations without
// allocating a node per contribution.
type DataPtr struct {
	word atomic.Uint64
}

// NewDataPtr constructs a retire-data pointer with value 0 and the given
// initial flags.
func NewDataPtr(initial Flags) *DataPtr {
	d := &DataPtr{}
	d.word.Store(uint64(initial) << valueBits)
	return d
}

func packData(value uint64, flags Flags) uint64 {
	return (value & valueMask) | uint64(flags)<<valueBits
}

func unpackData(w uint64) (value uint64, flags Flags) {
	return w & valueMask, Flags(w >> valueBits)
}

// Load returns the accumulated value and current flags.
func (d *DataPtr) Load() (value uint64, flags Flags) {
	return unpackData(d.word.Load())
}

// RetireData adds n to the accumulated value and sets Retired, returning
// the flags observed before this call — mirroring Ptr[T]'s RetirePtr so
// callers can apply the same "stop propagating if already retired" rule.
func (d *DataPtr) RetireData(n uint64, backoff Backoff) Flags {
	for {
		old := d.word.Load()
		value, flags := unpackData(old)
		next := packData(value+n, flags|Retired)
		if d.word.CompareAndSwap(old, next) {
			return flags
		}
		if backoff != nil {
			backoff()
		}
	}
}

// Reclaim exchanges the accumulated value for 0, returning whatever had
// accumulated, and leaves Retired set (same contract as Ptr[T].Reclaim).
func (d *DataPtr) Reclaim() uint64 {
	for {
		old := d.word.Load()
		value, flags := unpackData(old)
		next := packData(0, flags)
		if d.word.CompareAndSwap(old, next) {
			return value
		}
	}
}

// TryResetFlags clears bits in mask, only if the accumulated value is
// currently 0.
func (d *DataPtr) TryResetFlags(mask Flags) bool {
	old := d.word.Load()
	value, flags := unpackData(old)
	if value != 0 {
		return false
	}
	next := packData(0, flags&^mask)
	return d.word.CompareAndSwap(old, next)
}
