// Package graveyard implements the process-wide thread graveyard: a fixed
// number of cache-aligned slots plus an overflow push/snatch list, used to
// park a terminated per-thread allocator's state for adoption by whichever
// thread next needs one.
//
// Parked threads are carried as `any`, mirroring the teacher's own
// type-erased ReclaimablePool convention (infra/memory/epoch.go) — the
// graveyard has no business knowing the concrete shape of a thread
// allocator, only that it can park and return one.
package graveyard
