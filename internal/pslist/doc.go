// Package pslist implements the lock-free intrusive push/snatch list used
// for bulk hand-offs; in this repository it backs the thread graveyard's
// overflow list.
//
// Unlike flist, pslist nodes are addressed by pointer (via the Node
// embedding), and the whole list is claimed atomically with one exchange
// rather than drained node-by-node — the natural shape for "someone handed
// me a batch of work" rather than "a free pool of slots".
package pslist
