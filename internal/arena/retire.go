package arena

import "vaultmem/internal/retire"

// chainOps adapts *Arena to retire.NodeOps so the root retired-arenas list
// can chain arenas through their private chainNext field, matching
// spec.md's "capability set {set_next} per resource kind".
type chainOps struct{}

func (chainOps) SetNext(node, next *Arena) { node.chainNext = next }

var ops chainOps

func backoffYield() {}

// RetiredArenas is a thread-allocator's root retired_arenas entry: a
// single-producer(-per-arena)/single-consumer chain that remote
// deallocators push onto and the owning thread drains, as described in
// spec.md §4.3 and §4.6's "retire(arena, ptr, size)" / "reclaim()" pair.
type RetiredArenas struct {
	root *retire.Ptr[Arena]
}

// NewRetiredArenas constructs an empty, owned root.
func NewRetiredArenas() *RetiredArenas {
	return &RetiredArenas{root: retire.New[Arena](retire.Root | retire.OwnerAlive)}
}

// RetireAllocation is spec.md §4.6's retire(arena, ptr, size): a remote
// thread accumulates size bytes onto the arena's own retire-data entry,
// and — only if it is the first to observe that entry go from
// not-retired to retired in this drain cycle — chains the arena onto the
// root so the owner will find it on its next Reclaim.
func (r *RetiredArenas) RetireAllocation(a *Arena, size uint64) {
	before := a.retireData.RetireData(size, backoffYield)
	if before&retire.Retired != 0 {
		// Another remote retirer already chained this arena, or the
		// owner is mid-drain; the in-flight reclaim alone will pick this
		// contribution up.
		return
	}
	retire.RetirePtr(r.root, ops, a, backoffYield)
}

// Reclaim is spec.md §4.6's reclaim(): the owner exchanges the whole
// retired-arenas chain for nil and returns it as a slice, ready for
// ReclaimAllocations to drain each entry's accumulated byte count.
func (r *RetiredArenas) Reclaim() []*Arena {
	head := r.root.Reclaim()
	var out []*Arena
	for n := head; n != nil; {
		next := n.chainNext
		n.chainNext = nil
		out = append(out, n)
		n = next
	}
	return out
}

// ReclaimAllocations drains a's accumulated retired byte count into its
// owner-local freed accounting (spec.md's release_unchecked) and clears
// the Retired bit on its retire-data entry so a future remote deallocator
// can chain it again. If a remote contribution lands between the drain and
// the clear, the clear fails and the drain repeats, so no retired bytes are
// left behind a set Retired bit.
func (a *Arena) ReclaimAllocations() {
	for {
		n := a.retireData.Reclaim()
		a.freed += n
		if a.freed > a.top {
			panic("arena: InvariantViolation: freed exceeds top after reclaim")
		}
		if a.retireData.TryResetFlags(retire.Retired) {
			return
		}
	}
}
