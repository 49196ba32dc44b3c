package fifo

import "errors"

// Errors returned by Ring operations that would violate the not-full /
// not-empty preconditions.
var (
	// ErrFull indicates an enqueue was attempted on a full ring.
	ErrFull = errors.New("fifo: ring full")

	// ErrEmpty indicates a dequeue or peek was attempted on an empty ring.
	ErrEmpty = errors.New("fifo: ring empty")
)

// Ring is a single-producer, single-consumer byte ring buffer bound to a
// caller-supplied backing array. The zero value is not usable; construct
// with New.
type Ring struct {
	buf []byte
	r   int // read index, [0, len(buf))
	w   int // write index, [0, len(buf))
}

// New binds a Ring to buf. len(buf) must be at least 2: one slot is always
// kept unused to distinguish empty from full.
func New(buf []byte) *Ring {
	if len(buf) < 2 {
		panic("fifo: backing buffer must have length >= 2")
	}
	return &Ring{buf: buf}
}

// Init rebinds an existing Ring to a new backing array, resetting both
// indices. It lets a Ring be constructed once (e.g. as a struct field) and
// bound to its backing array afterward, the way Image binds its embedded
// fifos at construction time.
func (f *Ring) Init(buf []byte) {
	if len(buf) < 2 {
		panic("fifo: backing buffer must have length >= 2")
	}
	f.buf = buf
	f.r = 0
	f.w = 0
}

// Len returns the capacity of the backing array, including the one slot
// that is always kept unused.
func (f *Ring) Len() int {
	return len(f.buf)
}

// Count returns the number of bytes currently queued.
func (f *Ring) Count() int {
	return (f.w - f.r + len(f.buf)) % len(f.buf)
}

// Remain returns the number of additional bytes that can be enqueued
// before the ring reports Full.
func (f *Ring) Remain() int {
	return len(f.buf) - f.Count() - 1
}

// Full reports whether the ring has no remaining capacity.
func (f *Ring) Full() bool {
	return (f.w+1)%len(f.buf) == f.r
}

// Empty reports whether the ring holds no bytes.
func (f *Ring) Empty() bool {
	return f.r == f.w
}

// Clear discards all queued bytes without touching the write position,
// matching the spec's r = w assignment.
func (f *Ring) Clear() {
	f.r = f.w
}

// Reset rewinds both indices to zero.
func (f *Ring) Reset() {
	f.r = 0
	f.w = 0
}

// Enqueue appends one byte. It returns ErrFull if the ring has no room.
func (f *Ring) Enqueue(b byte) error {
	if f.Full() {
		return ErrFull
	}
	f.buf[f.w] = b
	f.w = (f.w + 1) % len(f.buf)
	return nil
}

// Dequeue removes and returns the oldest byte. It returns ErrEmpty if the
// ring holds no bytes.
func (f *Ring) Dequeue() (byte, error) {
	if f.Empty() {
		return 0, ErrEmpty
	}
	b := f.buf[f.r]
	f.r = (f.r + 1) % len(f.buf)
	return b, nil
}

// Peek returns the i-th queued byte (0 is the oldest) without removing it.
// It returns ErrEmpty if i >= Count().
func (f *Ring) Peek(i int) (byte, error) {
	if i < 0 || i >= f.Count() {
		return 0, ErrEmpty
	}
	return f.buf[(f.r+i)%len(f.buf)], nil
}

// PeekInto copies up to n queued bytes into dst without removing them,
// using at most two contiguous copy calls. It returns the number of bytes
// copied, which may be less than n if either the ring or dst runs out
// first.
func (f *Ring) PeekInto(dst []byte, n int) int {
	if n > len(dst) {
		n = len(dst)
	}
	if n > f.Count() {
		n = f.Count()
	}
	remaining := n
	first, second := f.segments()
	c := copy(dst[:remaining], first)
	remaining -= c
	if remaining > 0 {
		copy(dst[n-remaining:n], second)
	}
	return n
}

// Discard advances the read index past up to n queued bytes without
// copying them anywhere. It returns the number of bytes actually
// discarded, which may be less than n if the ring holds fewer.
func (f *Ring) Discard(n int) int {
	if n > f.Count() {
		n = f.Count()
	}
	f.r = (f.r + n) % len(f.buf)
	return n
}

// Move transfers up to n bytes from src to dst, one byte at a time,
// stopping early if src empties or dst fills. It returns the number of
// bytes actually moved.
func Move(dst, src *Ring, n int) int {
	moved := 0
	for moved < n {
		// Check dst before dequeuing so that no byte leaves src unless
		// dst has room for it.
		if dst.Full() {
			break
		}
		b, err := src.Dequeue()
		if err != nil {
			break
		}
		dst.Enqueue(b)
		moved++
	}
	return moved
}

// segments returns the up-to-two contiguous byte ranges that currently hold
// queued data, in read order.
func (f *Ring) segments() (first, second []byte) {
	if f.Empty() {
		return nil, nil
	}
	if f.w > f.r {
		return f.buf[f.r:f.w], nil
	}
	return f.buf[f.r:], f.buf[:f.w]
}

// freeSegments returns the up-to-two contiguous byte ranges that are free
// for writing, in write order. The reserved empty/full disambiguation slot
// is never included.
func (f *Ring) freeSegments() (first, second []byte) {
	remain := f.Remain()
	if remain == 0 {
		return nil, nil
	}
	l, w := len(f.buf), f.w
	if w+remain <= l {
		return f.buf[w : w+remain], nil
	}
	return f.buf[w:l], f.buf[:remain-(l-w)]
}

// BulkReadInto copies up to n queued bytes into dst using at most two
// contiguous copy calls (one per side of the wrap), advancing the read
// index by however many bytes were copied. It returns the number of bytes
// copied, which may be less than n if either the ring or dst runs out
// first.
func (f *Ring) BulkReadInto(dst []byte, n int) int {
	if n > len(dst) {
		n = len(dst)
	}
	if n > f.Count() {
		n = f.Count()
	}
	remaining := n
	first, second := f.segments()
	c := copy(dst[:remaining], first)
	remaining -= c
	if remaining > 0 {
		c2 := copy(dst[n-remaining:n], second)
		remaining -= c2
	}
	f.r = (f.r + n) % len(f.buf)
	return n
}

// BulkWriteFrom copies up to n bytes from src into the ring using at most
// two contiguous copy calls, advancing the write index by however many
// bytes were copied. It returns the number of bytes copied, which may be
// less than n if either src or the ring's free space runs out first.
func (f *Ring) BulkWriteFrom(src []byte, n int) int {
	if n > len(src) {
		n = len(src)
	}
	if n > f.Remain() {
		n = f.Remain()
	}
	remaining := n
	first, second := f.freeSegments()
	c := copy(first[:min(len(first), remaining)], src[:min(len(first), remaining)])
	remaining -= c
	if remaining > 0 {
		c2 := copy(second[:remaining], src[n-remaining:n])
		remaining -= c2
	}
	f.w = (f.w + n) % len(f.buf)
	return n
}
