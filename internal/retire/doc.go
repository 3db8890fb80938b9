// Package retire implements the retire/reclaim protocol: the mechanism by
// which a thread that does not own a resource (an arena, a chunk pool, a
// shard pool) can hand a freed sub-resource to the owner without blocking,
// and by which the owner (or an adopting thread) later drains that
// hand-off list.
//
// Each retire-capable resource owns one Ptr[T], a single word conceptually
// holding {head *T, status Flags}. vaultmem represents that word as an
// atomic.Pointer to an immutable snapshot struct rather than packing a
// pointer and bits into one integer — Go gives no portable, GC-safe way to
// steal bits out of a real pointer, and the teacher repo's own retire/epoch
// code (infra/memory/epoch.go, snapshotter/reclaim.go) favors plain atomic
// fields over bit-packed pointers throughout. Every mutation publishes a
// freshly allocated snapshot and CASes the snapshot pointer, which gives
// the same "one atomic word, one winner" semantics spec.md §4.3 requires.
package retire
