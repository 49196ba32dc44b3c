// Package fifo implements a single-producer, single-consumer byte ring
// buffer.
//
// A Ring is bound once to a caller-supplied backing array and never
// resizes; callers are responsible for allocating that backing array from
// wherever makes sense for their use case (a fixed image field, an arena
// slot, a plain heap slice). This mirrors the zero-allocation, caller-owns-
// the-buffer style used throughout the SoftIO transport core.
//
// # Invariants
//
// One slot of the backing array is always kept unused so that an empty
// ring (r == w) can be distinguished from a full one ((w+1) mod L == r).
// All operations are pure data-structure bookkeeping: Ring never blocks and
// never performs I/O.
//
// # Example
//
//	buf := make([]byte, 64)
//	r := fifo.New(buf)
//	r.Enqueue('a')
//	b, _ := r.Dequeue()
package fifo
