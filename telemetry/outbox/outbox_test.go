package outbox

import "testing"

func TestPutGetUpdateDelete(t *testing.T) {
	dir := t.TempDir()
	o, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer o.Close()

	if err := o.PutNew(1, 7, 42, []byte("payload")); err != nil {
		t.Fatalf("PutNew: %v", err)
	}

	rec, err := o.Get(1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Kind != 7 || rec.Handle != 42 || rec.State != StateNew || string(rec.Payload) != "payload" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	if err := o.UpdateState(1, StateSent, 0); err != nil {
		t.Fatalf("UpdateState: %v", err)
	}
	rec, _ = o.Get(1)
	if rec.State != StateSent {
		t.Fatalf("State = %v, want StateSent", rec.State)
	}

	if err := o.Delete(1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := o.Get(1); err == nil {
		t.Fatal("expected Get to fail after Delete")
	}
}

func TestScanByState(t *testing.T) {
	dir := t.TempDir()
	o, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer o.Close()

	for i := uint64(1); i <= 5; i++ {
		if err := o.PutNew(i, 1, uint32(i), nil); err != nil {
			t.Fatalf("PutNew(%d): %v", i, err)
		}
	}
	if err := o.UpdateState(3, StateAcked, 0); err != nil {
		t.Fatalf("UpdateState: %v", err)
	}

	var seen []uint64
	err = o.ScanByState(StateNew, func(id uint64, rec Record) error {
		seen = append(seen, id)
		return nil
	})
	if err != nil {
		t.Fatalf("ScanByState: %v", err)
	}
	if len(seen) != 4 {
		t.Fatalf("expected 4 records still NEW, got %d: %v", len(seen), seen)
	}
}

func TestStateStringer(t *testing.T) {
	cases := map[State]string{
		StateNew:   "NEW",
		StateSent:  "SENT",
		StateAcked: "ACKED",
		StateFailed: "FAILED",
		State(99):  "UNKNOWN",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
