// Package vmem is the small OS virtual-memory collaborator spec.md §6
// declares but treats as external: page-size queries and
// reserve/commit/decommit/free of raw address ranges. Everything above
// this package (internal/region's Specs, and ultimately the public alloc
// package) only ever deals in byte slices vmem hands back; nothing here
// knows about regions, chunks, or handles.
//
// On platforms exposing mmap/mprotect/munmap (build tag "unix") this is a
// thin wrapper over golang.org/x/sys/unix with real reserve-without-commit
// semantics. Elsewhere it falls back to Go's own heap via make([]byte, n),
// where Commit/Decommit are no-ops beyond zeroing — a reservation still
// exists and is still freed deterministically by Free, it simply can't be
// given back to the OS a page at a time.
package vmem
