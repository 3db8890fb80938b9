package graveyard

import (
	"sync/atomic"
	"unsafe"

	"vaultmem/internal/pslist"
)

// cacheLinePad sizes the padding needed so each slot occupies its own
// cache line, the same trick the teacher uses directly on struct fields
// in infra/memory/retire_ring.go ("_pad1 [56]byte").
const cacheLinePad = 64 - 8 // atomic.Pointer is one word

// slotState is the immutable snapshot a Slot atomically swaps between:
// {thread, acquired}. spec.md §3 invariant 5 forbids (ptr != nil &&
// acquired == true) from ever being the *resting* public state seen by
// try_acquire's competitors — acquired=true is only observed transiently
// by whichever caller just won the slot, who then reads out the thread
// and immediately owns the emptying of the slot.
type slotState struct {
	thread   any
	acquired bool
}

// Slot is one cache-line-aligned grave slot.
type Slot struct {
	state atomic.Pointer[slotState]
	_pad  [cacheLinePad]byte
}

func (s *Slot) init() {
	s.state.Store(&slotState{})
}

// TryAcquire claims the slot's parked thread if it is non-empty and not
// already claimed by a racing adopter. It returns (nil, false) both when
// the slot is empty and when another adopter won the race — both are
// "no luck here, try the next slot" to the caller.
func (s *Slot) TryAcquire() (thread any, ok bool) {
	for {
		old := s.state.Load()
		if old.thread == nil || old.acquired {
			return nil, false
		}
		next := &slotState{thread: nil, acquired: true}
		if s.state.CompareAndSwap(old, next) {
			return old.thread, true
		}
	}
}

// TryPutThread places t into the slot only if it is currently empty and
// not claimed by an acquirer that has not yet released it — thread==nil
// alone does not mean empty, since a won-but-not-yet-released slot also
// carries a nil thread (see TryAcquire).
func (s *Slot) TryPutThread(t any) bool {
	old := s.state.Load()
	if old.thread != nil || old.acquired {
		return false
	}
	next := &slotState{thread: t, acquired: false}
	return s.state.CompareAndSwap(old, next)
}

// ReleaseGrave empties the slot, forgetting whatever thread it held. The
// caller must have previously won TryAcquire (or otherwise knows it has
// exclusive access) — this is not a CAS, matching spec.md's unconditional
// "exchange(slot, empty)".
func (s *Slot) ReleaseGrave() {
	s.state.Store(&slotState{})
}

// PutThreadBack restores thread t into the slot in the un-acquired state,
// used when an acquirer changes its mind after winning TryAcquire.
func (s *Slot) PutThreadBack(t any) {
	s.state.Store(&slotState{thread: t, acquired: false})
}

// nodePtr recovers the *GraveNode whose embedded pslist.Node is n. Safe
// because pslist.Node is GraveNode's first field, so both share an address.
func nodePtr(n *pslist.Node) unsafe.Pointer { return unsafe.Pointer(n) }

// GraveNode wraps a parked thread for the overflow push/snatch list.
type GraveNode struct {
	pslist.Node
	Thread any
}

// Graveyard is the process-wide singleton described by spec.md §4.4. The
// zero value is not usable; construct with New.
type Graveyard struct {
	slots []Slot
	aux   pslist.List
}

// New allocates a graveyard with slotCount direct slots plus an unbounded
// overflow list for when every slot is occupied.
func New(slotCount int) *Graveyard {
	g := &Graveyard{slots: make([]Slot, slotCount)}
	for i := range g.slots {
		g.slots[i].init()
	}
	return g
}

// SlotCount returns the number of direct slots.
func (g *Graveyard) SlotCount() int { return len(g.slots) }

// PutThreadToRest parks node (and the thread it wraps) for later adoption:
// it resets node's own chain fields to a singleton batch, then tries any
// empty slot before overflowing to the auxiliary list.
func (g *Graveyard) PutThreadToRest(node *GraveNode) {
	node.Node = pslist.Node{}
	pslist.SetTail(&node.Node, &node.Node)

	for i := range g.slots {
		if g.slots[i].TryPutThread(node.Thread) {
			return
		}
	}
	pslist.Push(&g.aux, &node.Node, nil)
}

// Acquire scans up to SlotCount() slots starting at start and stepping by
// step (both taken mod SlotCount), looking for one to claim. Failing
// that, it snatches the auxiliary list, redistributes everything past the
// head back into now-possibly-empty slots, and returns the head.
func (g *Graveyard) Acquire(start, step uint32) (grave int, thread any, ok bool) {
	n := len(g.slots)
	if n == 0 {
		return 0, nil, false
	}
	s := int(step)
	if s == 0 {
		s = 1
	}
	idx := int(start) % n
	for i := 0; i < n; i++ {
		if t, hit := g.slots[idx].TryAcquire(); hit {
			return idx, t, true
		}
		idx = (idx + s) % n
	}

	head := pslist.Snatch(&g.aux)
	if head == nil {
		return 0, nil, false
	}
	gn := (*GraveNode)(nodePtr(head))
	rest := pslist.Next(head)
	g.distributeToEmptySlots(rest)
	return -1, gn.Thread, true
}

// distributeToEmptySlots walks the chain starting at head, placing each
// node's thread into an empty slot; anything left over goes back onto the
// auxiliary list as a single batch.
func (g *Graveyard) distributeToEmptySlots(head *pslist.Node) {
	var leftover []*GraveNode

	cur := head
	for cur != nil {
		next := pslist.Next(cur)
		gn := (*GraveNode)(nodePtr(cur))
		placed := false
		for i := range g.slots {
			if g.slots[i].TryPutThread(gn.Thread) {
				placed = true
				break
			}
		}
		if !placed {
			leftover = append(leftover, gn)
		}
		cur = next
	}
	for _, gn := range leftover {
		gn.Node = pslist.Node{}
	}
	if len(leftover) > 0 {
		for i := 0; i+1 < len(leftover); i++ {
			pslist.Link(&leftover[i].Node, &leftover[i+1].Node)
		}
		pslist.SetTail(&leftover[0].Node, &leftover[len(leftover)-1].Node)
		pslist.Push(&g.aux, &leftover[0].Node, nil)
	}
}

// ReleaseThread releases grave back to empty. grave == -1 means the thread
// came from the auxiliary list (nothing to release — it was never a slot).
func (g *Graveyard) ReleaseThread(grave int) {
	if grave < 0 || grave >= len(g.slots) {
		return
	}
	g.slots[grave].ReleaseGrave()
}

// PutThreadBack restores thread t into grave in the un-acquired state,
// undoing an Acquire. grave == -1 re-parks t via PutThreadToRest instead,
// since it did not come from a slot.
func (g *Graveyard) PutThreadBack(grave int, t any) {
	if grave < 0 || grave >= len(g.slots) {
		g.PutThreadToRest(&GraveNode{Thread: t})
		return
	}
	g.slots[grave].PutThreadBack(t)
}
