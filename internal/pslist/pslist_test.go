package pslist

import (
	"sync"
	"testing"
	"unsafe"
)

type testNode struct {
	Node
	id int
}

func link(from, to *testNode) {
	from.next = unsafe.Pointer(&to.Node)
}

func TestPushSnatchSingleNode(t *testing.T) {
	var l List
	n := &testNode{id: 1}
	Push(&l, &n.Node, nil)

	got := Snatch(&l)
	if got == nil {
		t.Fatal("snatch returned nil")
	}
	if Snatch(&l) != nil {
		t.Fatal("second snatch on drained list should be nil")
	}
}

func TestPushBatchAndSnatch(t *testing.T) {
	var l List
	a := &testNode{id: 1}
	b := &testNode{id: 2}
	c := &testNode{id: 3}
	link(a, b)
	link(b, c)
	SetTail(&a.Node, &c.Node)

	Push(&l, &a.Node, nil)

	head := Snatch(&l)
	var ids []int
	for n := head; n != nil; n = Next(n) {
		ids = append(ids, (*testNode)(unsafe.Pointer(n)).id)
	}
	if len(ids) != 3 {
		t.Fatalf("snatched chain length = %d, want 3, got ids %v", len(ids), ids)
	}
	if ids[0] != 1 || ids[1] != 2 || ids[2] != 3 {
		t.Fatalf("unexpected chain order: %v", ids)
	}
}

func TestSnatchPart(t *testing.T) {
	var l List
	nodes := make([]*testNode, 5)
	for i := range nodes {
		nodes[i] = &testNode{id: i}
	}
	for i := 0; i < len(nodes)-1; i++ {
		link(nodes[i], nodes[i+1])
	}
	SetTail(&nodes[0].Node, &nodes[len(nodes)-1].Node)
	Push(&l, &nodes[0].Node, nil)

	prefix, n := SnatchPart(&l, 2, nil)
	if n != 2 {
		t.Fatalf("SnatchPart count = %d, want 2", n)
	}
	var gotIDs []int
	for cur := prefix; cur != nil; cur = Next(cur) {
		gotIDs = append(gotIDs, (*testNode)(unsafe.Pointer(cur)).id)
	}
	if len(gotIDs) != 2 || gotIDs[0] != 0 || gotIDs[1] != 1 {
		t.Fatalf("unexpected prefix ids: %v", gotIDs)
	}

	rest := Snatch(&l)
	var restIDs []int
	for cur := rest; cur != nil; cur = Next(cur) {
		restIDs = append(restIDs, (*testNode)(unsafe.Pointer(cur)).id)
	}
	if len(restIDs) != 3 || restIDs[0] != 2 {
		t.Fatalf("unexpected remainder ids: %v", restIDs)
	}
}

// TestPushSnatchConservation is the Go analogue of spec.md S3: the sum of
// set memberships across all snatched batches plus whatever remains in the
// list equals the multiset of everything ever pushed.
func TestPushSnatchConservation(t *testing.T) {
	const workers = 8
	const perWorker = 500
	total := workers * perWorker

	var l List
	var snatchedMu sync.Mutex
	snatched := make(map[int]bool, total)

	stop := make(chan struct{})
	var snatcherWG sync.WaitGroup
	snatcherWG.Add(1)
	go func() {
		defer snatcherWG.Done()
		for {
			h := Snatch(&l)
			for n := h; n != nil; n = Next(n) {
				id := (*testNode)(unsafe.Pointer(n)).id
				snatchedMu.Lock()
				snatched[id] = true
				snatchedMu.Unlock()
			}
			select {
			case <-stop:
				return
			default:
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				n := &testNode{id: base*perWorker + i}
				Push(&l, &n.Node, nil)
			}
		}(w)
	}
	wg.Wait()
	close(stop)
	snatcherWG.Wait()

	// final drain in case the snatcher goroutine exited between its last
	// Snatch and the last Push.
	h := Snatch(&l)
	for n := h; n != nil; n = Next(n) {
		id := (*testNode)(unsafe.Pointer(n)).id
		snatched[id] = true
	}

	if len(snatched) != total {
		t.Fatalf("conservation violated: saw %d distinct ids, want %d", len(snatched), total)
	}
}
