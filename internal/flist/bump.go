package flist

import "sync/atomic"

// BumpStack issues monotonically increasing indices in [0, limit) to
// concurrent callers with a single fetch-add, used to hand out
// not-yet-circulated region-chunks/chunks/shards before any of them have
// ever been freed.
type BumpStack struct {
	top   atomic.Uint32
	limit uint32
}

// NewBumpStack creates a stack that will issue indices [0, limit).
func NewBumpStack(limit uint32) *BumpStack {
	return &BumpStack{limit: limit}
}

// Bump returns the next unissued index, or NullLink if the stack is
// exhausted. Overshoot past limit under contention is corrected by backing
// the counter off; spec.md §4.1 permits this momentary overshoot.
func (b *BumpStack) Bump() uint32 {
	if b.top.Load() >= b.limit {
		return NullLink
	}
	old := b.top.Add(1) - 1
	if old >= b.limit {
		b.top.Add(^uint32(0)) // fetch_sub(1)
		return NullLink
	}
	return old
}

// Top returns the current bump cursor, for diagnostics only.
func (b *BumpStack) Top() uint32 { return b.top.Load() }

// Limit returns the exclusive upper bound.
func (b *BumpStack) Limit() uint32 { return b.limit }

// Remaining reports how many indices have not yet been issued. It may
// under-report transiently under contention (a racing Bump may have
// already incremented top past what a concurrent Remaining observes).
func (b *BumpStack) Remaining() uint32 {
	top := b.top.Load()
	if top >= b.limit {
		return 0
	}
	return b.limit - top
}
