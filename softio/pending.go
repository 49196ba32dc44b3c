package softio

import (
	"context"
	"sync"
)

// DefaultPendingCapacity is the default number of in-flight requests a
// Pending queue can hold before Reserve blocks.
const DefaultPendingCapacity = 32

// Transaction tracks one request this side has sent and is waiting on a
// response for. The handler fills in the result fields as it processes the
// matching response; callers read them back after WaitAll returns.
type Transaction struct {
	// Request is the header sent for this transaction.
	Request Header

	// Accepted is the number of bytes the peer actually accepted, valid
	// after a WRITE-FIFO-RESP (may be less than Request.Length).
	Accepted int

	// Delivered is the number of bytes the peer actually delivered, valid
	// after a READ-FIFO-RESP (may be less than Request.Length).
	Delivered int

	// Data holds the payload bytes carried by a READ-RESP or
	// READ-FIFO-RESP, valid once the response has been processed.
	Data []byte
}

// reset clears a Transaction so its slot can be reused by Reserve.
func (tr *Transaction) reset() {
	tr.Request = Header{}
	tr.Accepted = 0
	tr.Delivered = 0
	tr.Data = nil
}

// Pending is a bounded FIFO of in-flight transactions. Responses must match
// the head of the queue in strict order: the wire carries no transaction
// ID, so the queue position is the only correlation between a response and
// the request it answers.
//
// Pending shares its mutex with the owning [Session] so that Reserve can
// block via [sync.Cond] without the caller juggling a second lock.
type Pending struct {
	mu   *sync.Mutex
	full *sync.Cond
	buf  []Transaction
	r, w int
}

// NewPending constructs a Pending queue of the given capacity, guarded by
// mu. mu must be the same mutex the caller holds while invoking Reserve,
// Head, and Advance.
func NewPending(mu *sync.Mutex, capacity int) *Pending {
	if capacity < 1 {
		capacity = DefaultPendingCapacity
	}
	return &Pending{
		mu:   mu,
		full: sync.NewCond(mu),
		buf:  make([]Transaction, capacity+1),
	}
}

// Count returns the number of in-flight transactions.
func (p *Pending) Count() int {
	return (p.w - p.r + len(p.buf)) % len(p.buf)
}

// Full reports whether the queue has no free slot.
func (p *Pending) Full() bool {
	return (p.w+1)%len(p.buf) == p.r
}

// Empty reports whether the queue holds no in-flight transactions.
func (p *Pending) Empty() bool {
	return p.r == p.w
}

// Reserve blocks, with mu held, until a slot is free or ctx is done, then
// returns a pointer to that slot for the caller to fill with the request
// header about to be sent. The caller must call Commit once the header has
// been written to the wire.
//
// Reserve must be called with mu already locked.
func (p *Pending) Reserve(ctx context.Context) (*Transaction, error) {
	if ctx != nil && ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			p.mu.Lock()
			p.full.Broadcast()
			p.mu.Unlock()
		})
		defer stop()
	}
	for p.Full() {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}
		p.full.Wait()
	}
	slot := &p.buf[p.w]
	slot.reset()
	return slot, nil
}

// Commit advances the write position past the slot most recently returned
// by Reserve, making the transaction visible to Head.
func (p *Pending) Commit() {
	p.w = (p.w + 1) % len(p.buf)
}

// Head returns a pointer to the oldest in-flight transaction. It returns
// false if the queue is empty.
func (p *Pending) Head() (*Transaction, bool) {
	if p.Empty() {
		return nil, false
	}
	return &p.buf[p.r], true
}

// Advance pops the oldest in-flight transaction, freeing its slot and
// waking any goroutine blocked in Reserve.
func (p *Pending) Advance() {
	if p.Empty() {
		return
	}
	p.r = (p.r + 1) % len(p.buf)
	p.full.Broadcast()
}
