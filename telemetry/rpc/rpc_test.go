package rpc

import (
	"context"
	"testing"

	"vaultmem/alloc"
)

type fakeSource struct{ stats alloc.Stats }

func (f fakeSource) Stats() alloc.Stats { return f.stats }

func TestServerGetStats(t *testing.T) {
	src := fakeSource{stats: alloc.Stats{
		NumHandles:     10,
		NumRegions:     2,
		LiveThreads:    3,
		GraveyardSlots: 4,
	}}
	s := NewServer(src)

	resp, err := s.GetStats(context.Background(), &StatsRequest{})
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if resp.NumHandles != 10 || resp.NumRegions != 2 || resp.LiveThreads != 3 || resp.GraveyardSlots != 4 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestGobCodecRoundTrip(t *testing.T) {
	var c gobCodec
	want := &StatsResponse{NumHandles: 1, NumRegions: 2, LiveThreads: 3, GraveyardSlots: 4}

	data, err := c.Marshal(want)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	got := new(StatsResponse)
	if err := c.Unmarshal(data, got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if *got != *want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
	if c.Name() != "gob" {
		t.Fatalf("Name() = %q, want gob", c.Name())
	}
}
