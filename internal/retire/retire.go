package retire

import "sync/atomic"

// Flags packs the four status bits spec.md §4.3 assigns to every
// retire/reclaim pointer.
type Flags uint8

const (
	// Retired means this resource has at least one retired sub-resource
	// pending reclaim, or that an exclusive operation is in progress and
	// all retirers must back off.
	Retired Flags = 1 << 0
	// Root is set at construction on root resources and never cleared.
	Root Flags = 1 << 1
	// OwnerAlive is cleared when the owning thread formally dies.
	OwnerAlive Flags = 1 << 2
	// Graveyard is set when the reclaimer postpones further drain and lets
	// the resource be adopted later.
	Graveyard Flags = 1 << 3
)

// Backoff is invoked between failed CAS attempts.
type Backoff func()

// NodeOps lets a resource kind (arena, chunk pool, shard pool, ...) plug
// its own node-link representation into the shared retire/reclaim CAS
// loop, matching spec.md's "capability set {set_next} per resource kind".
type NodeOps[T any] interface {
	SetNext(node, next *T)
}

// snapshot is the immutable value a Ptr[T] atomically swaps between.
type snapshot[T any] struct {
	head  *T
	flags Flags
}

// Ptr is one retire/reclaim pointer, as described in spec.md §4.3 and the
// data model's "Retire/reclaim pointer" entry.
type Ptr[T any] struct {
	state atomic.Pointer[snapshot[T]]
}

// New constructs a retire/reclaim pointer with a null head and the given
// initial flags (typically Root|OwnerAlive for a freshly created resource).
func New[T any](initial Flags) *Ptr[T] {
	p := &Ptr[T]{}
	p.state.Store(&snapshot[T]{flags: initial})
	return p
}

// Load returns the current head and flags with a relaxed read.
func (p *Ptr[T]) Load() (head *T, flags Flags) {
	s := p.state.Load()
	return s.head, s.flags
}

// RetirePtr links node onto the front of the retired list and sets Retired.
// The caller must exclusively own node at the moment of the call (spec.md
// §4.3 step 2: "non-atomic; the retirer exclusively owns this sub-resource
// at this moment"). It returns the flags observed *before* this retire, so
// the caller can decide whether to keep propagating retirement up the
// hierarchy (spec.md step 4: stop once a level already had Retired set).
func RetirePtr[T any](p *Ptr[T], ops NodeOps[T], node *T, backoff Backoff) Flags {
	for {
		old := p.state.Load()
		ops.SetNext(node, old.head)
		next := &snapshot[T]{head: node, flags: old.flags | Retired}
		if p.state.CompareAndSwap(old, next) {
			return old.flags
		}
		if backoff != nil {
			backoff()
		}
	}
}

// Reclaim unconditionally exchanges the head for nil and returns the whole
// retired list to the caller. The Retired flag is left set, excluding
// concurrent retirers from believing the resource is quiescent, until the
// caller calls TryResetFlags once it has observed an empty head.
func (p *Ptr[T]) Reclaim() *T {
	for {
		old := p.state.Load()
		next := &snapshot[T]{head: nil, flags: old.flags}
		if p.state.CompareAndSwap(old, next) {
			return old.head
		}
	}
}

// TryResetFlags clears the bits in mask, but only if the head is currently
// nil; it fails (returns false) if a retire raced in a new head first.
func (p *Ptr[T]) TryResetFlags(mask Flags) bool {
	old := p.state.Load()
	if old.head != nil {
		return false
	}
	next := &snapshot[T]{head: nil, flags: old.flags &^ mask}
	return p.state.CompareAndSwap(old, next)
}

// TryLock claims exclusive access to a resource that currently has
// Retired=0, without enqueuing any work — used to transfer ownership of a
// quiescent resource safely (e.g. graveyard adoption).
func (p *Ptr[T]) TryLock() bool {
	old := p.state.Load()
	if old.flags&Retired != 0 {
		return false
	}
	next := &snapshot[T]{head: old.head, flags: old.flags | Retired}
	return p.state.CompareAndSwap(old, next)
}

// SetFlag unconditionally ORs bits into the flags word via CAS retry,
// preserving whatever head is current. Used for one-shot flag transitions;
// ClearFlag is the counterpart for clearing bits such as OwnerAlive when a
// thread dies.
func SetFlag[T any](p *Ptr[T], bits Flags) {
	for {
		old := p.state.Load()
		next := &snapshot[T]{head: old.head, flags: old.flags | bits}
		if p.state.CompareAndSwap(old, next) {
			return
		}
	}
}

// ClearFlag unconditionally clears bits via CAS retry.
func ClearFlag[T any](p *Ptr[T], bits Flags) {
	for {
		old := p.state.Load()
		next := &snapshot[T]{head: old.head, flags: old.flags &^ bits}
		if p.state.CompareAndSwap(old, next) {
			return
		}
	}
}
