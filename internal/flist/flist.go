package flist

import "sync/atomic"

// NullLink marks an empty list / no successor.
const NullLink uint32 = 0xFFFFFFFF

// OpFailed marks a bounded-attempt operation that exhausted its budget
// under contention. Callers treat it as "try another shard".
const OpFailed uint32 = 0xFFFFFFFE

// Unbounded, passed as attempts, means retry forever.
const Unbounded = -1

// NodeOps adapts the caller's backing array to flist. Both methods perform
// relaxed atomic accesses on the node's own link word; flist relies on the
// head's version-bumped CAS, not on ordering of these accesses, for
// correctness.
type NodeOps interface {
	SetNext(idx, next uint32)
	GetNext(idx uint32) uint32
}

// Backoff is invoked between failed CAS attempts. Callers may spin, yield,
// or sleep; flist does not interpret the call.
type Backoff func()

// head packs {version:32, next:32} into one machine word so it can be
// mutated with a single CAS, mitigating ABA on the 32-bit link space.
type head struct {
	word atomic.Uint64
}

func pack(version, next uint32) uint64 {
	return uint64(version)<<32 | uint64(next)
}

func unpack(w uint64) (version, next uint32) {
	return uint32(w >> 32), uint32(w)
}

func (h *head) load() (version, next uint32) {
	return unpack(h.word.Load())
}

// List is a lock-free singly-linked free list over index-addressed nodes.
type List struct {
	h   head
	ops NodeOps
}

// New constructs an empty free list using ops to access node link words.
func New(ops NodeOps) *List {
	l := &List{ops: ops}
	l.h.word.Store(pack(0, NullLink))
	return l
}

// Push links node onto the head of the list. attempts bounds the number of
// CAS retries (Unbounded for no bound); it returns false only when the
// bound is exhausted under contention.
func (l *List) Push(node uint32, backoff Backoff, attempts int) bool {
	for i := 0; attempts == Unbounded || i < attempts; i++ {
		version, next := l.h.load()
		l.ops.SetNext(node, next)
		if l.h.word.CompareAndSwap(pack(version, next), pack(version+1, node)) {
			return true
		}
		if backoff != nil {
			backoff()
		}
	}
	return false
}

// Pop removes and returns the head node's index, NullLink if the list is
// empty, or OpFailed if attempts is bounded and exhausted under contention.
func (l *List) Pop(backoff Backoff, attempts int) uint32 {
	for i := 0; attempts == Unbounded || i < attempts; i++ {
		version, next := l.h.load()
		if next == NullLink {
			return NullLink
		}
		// Relaxed read: may race with a concurrent mutator. Correctness is
		// restored by the CAS below detecting any interleaved mutation via
		// the version bump, not by this read being fresh.
		succ := l.ops.GetNext(next)
		if l.h.word.CompareAndSwap(pack(version, next), pack(version+1, succ)) {
			return next
		}
		if backoff != nil {
			backoff()
		}
	}
	return OpFailed
}

// version reads the head's version counter only; it does not traverse
// nodes and exists solely so tests and diagnostics can observe it.
func (l *List) version() uint32 {
	v, _ := l.h.load()
	return v
}

// Empty reports whether the list currently has no head node.
func (l *List) Empty() bool {
	_, next := l.h.load()
	return next == NullLink
}

// Reset clears the list back to empty and bumps the version. Callers
// must guarantee exclusive access (e.g. during arena recycling).
func (l *List) Reset() {
	l.h.word.Store(pack(l.version()+1, NullLink))
}
