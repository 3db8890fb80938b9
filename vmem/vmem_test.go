package vmem

import "testing"

func TestAllocAlignedRoundTrip(t *testing.T) {
	const size = 1 << 20
	const alignment = 1 << 16

	r, err := AllocAligned(size, ReserveCommit, alignment)
	if err != nil {
		t.Fatalf("AllocAligned: %v", err)
	}
	defer Free(r)

	if r.Size() != size {
		t.Fatalf("Size() = %d, want %d", r.Size(), size)
	}
	b := r.Bytes()
	if len(b) != size {
		t.Fatalf("len(Bytes()) = %d, want %d", len(b), size)
	}

	b[0] = 0xAB
	b[size-1] = 0xCD
	if b[0] != 0xAB || b[size-1] != 0xCD {
		t.Fatal("committed region is not writable/readable at its bounds")
	}
}

func TestCommitDecommit(t *testing.T) {
	const size = 1 << 16
	r, err := AllocAligned(size, Reserve, uint64(PageSize()))
	if err != nil {
		t.Fatalf("AllocAligned: %v", err)
	}
	defer Free(r)

	if !Commit(r, size) {
		t.Fatalf("Commit failed, last error %d", LastError())
	}
	copy(r.Bytes(), []byte("hello"))

	if !Decommit(r, size) {
		t.Fatalf("Decommit failed, last error %d", LastError())
	}
}

func TestAllocRejectsBadInput(t *testing.T) {
	if _, err := AllocAligned(0, ReserveCommit, 4096); err == nil {
		t.Fatal("expected error for zero size")
	}
	if _, err := AllocAligned(4096, ReserveCommit, 3); err == nil {
		t.Fatal("expected error for non-power-of-two alignment")
	}
}

func TestGeometryQueries(t *testing.T) {
	if PageSize() == 0 {
		t.Fatal("PageSize() should not be 0")
	}
	if AllocGranularity() == 0 {
		t.Fatal("AllocGranularity() should not be 0")
	}
	if HugePageSize() == 0 {
		t.Fatal("HugePageSize() should not be 0")
	}
}
