package pslist

import (
	"sync/atomic"
	"unsafe"
)

// Node is embedded by any type that wants to participate in a push/snatch
// list. next chains the list; skip is a hop pointer to the tail of the
// batch this node was pushed as part of, letting Push attach a whole batch
// in O(1) regardless of its length.
type Node struct {
	next unsafe.Pointer
	skip unsafe.Pointer
}

// List is a lock-free singly-linked list with a plain-pointer atomic head.
type List struct {
	head unsafe.Pointer // *Node
}

// Backoff is invoked between failed CAS attempts.
type Backoff func()

// Push attaches batchHead (and everything reachable via batchHead.skip, if
// set, treated as the batch's tail) onto the front of the list in one CAS.
// batchHead must not be nil.
func Push(l *List, batchHead *Node, backoff Backoff) {
	tail := batchHead
	if batchHead.skip != nil {
		tail = (*Node)(batchHead.skip)
	}
	for {
		h := atomic.LoadPointer(&l.head)
		atomic.StorePointer(&tail.next, h)
		if atomic.CompareAndSwapPointer(&l.head, h, unsafe.Pointer(batchHead)) {
			return
		}
		if backoff != nil {
			backoff()
		}
	}
}

// Snatch atomically detaches and returns the entire list (nil if empty).
// Ownership of every node reachable from the returned head passes to the
// caller; no other caller can observe these nodes via l again.
func Snatch(l *List) *Node {
	return (*Node)(atomic.SwapPointer(&l.head, nil))
}

// SnatchPart snatches the whole list, splits off the first n nodes (by
// walking next), and pushes the remainder back. It returns the detached
// prefix (nil if the list was empty) and the number of nodes it contains,
// which may be less than n if the list was shorter.
func SnatchPart(l *List, n int, backoff Backoff) (*Node, int) {
	head := Snatch(l)
	if head == nil {
		return nil, 0
	}
	if n <= 0 {
		Push(l, head, backoff)
		return nil, 0
	}

	cur := head
	count := 1
	for count < n && cur.next != nil {
		cur = (*Node)(cur.next)
		count++
	}

	rest := (*Node)(cur.next)
	cur.next = nil
	if rest != nil {
		tail := rest
		for tail.next != nil {
			tail = (*Node)(tail.next)
		}
		SetTail(rest, tail)
		Push(l, rest, backoff)
	}
	return head, count
}

// Next returns the node following n in whatever list last traversed it.
func Next(n *Node) *Node { return (*Node)(n.next) }

// Link sets prev's successor to next. The caller must have exclusive
// access to prev (e.g. it was just detached by Snatch/SnatchPart, or is
// being assembled into a fresh batch that hasn't been pushed yet).
func Link(prev, next *Node) { prev.next = unsafe.Pointer(next) }

// SetTail records that tail is the last node of the batch rooted at head,
// so a subsequent Push(l, head, ...) can attach the whole batch in O(1).
func SetTail(head, tail *Node) { head.skip = unsafe.Pointer(tail) }
