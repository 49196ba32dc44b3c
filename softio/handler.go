package softio

import (
	"fmt"

	"github.com/ardnew/softio/fifo"
	"github.com/ardnew/softio/pkg"
)

// OutcomeKind classifies the result of a single [TryHandleOne] call.
type OutcomeKind int

const (
	// KindNoInput means rx held no bytes at all; there was nothing to do.
	KindNoInput OutcomeKind = iota

	// KindHandledOne means exactly one transaction was fully processed.
	KindHandledOne

	// KindNeedInBytes means rx holds the start of a frame but not enough
	// bytes yet to decide what to do with it.
	KindNeedInBytes

	// KindNeedOutBytes means rx holds a complete, decodable frame, but tx
	// lacks room for the response it requires.
	KindNeedOutBytes
)

// String returns a short name for k.
func (k OutcomeKind) String() string {
	switch k {
	case KindNoInput:
		return "no-input"
	case KindHandledOne:
		return "handled-one"
	case KindNeedInBytes:
		return "need-in-bytes"
	case KindNeedOutBytes:
		return "need-out-bytes"
	default:
		return fmt.Sprintf("Unknown OutcomeKind (%d)", int(k))
	}
}

// Outcome reports what TryHandleOne did, or what it needs to make
// progress.
type Outcome struct {
	Kind OutcomeKind

	// N is the number of additional bytes needed, valid when Kind is
	// KindNeedInBytes (more rx bytes needed) or KindNeedOutBytes (more tx
	// room needed).
	N int
}

var (
	// NoInput is returned when rx is empty.
	NoInput = Outcome{Kind: KindNoInput}

	// HandledOne is returned after fully processing one transaction.
	HandledOne = Outcome{Kind: KindHandledOne}
)

// NeedInBytes reports that n additional rx bytes are required.
func NeedInBytes(n int) Outcome { return Outcome{Kind: KindNeedInBytes, N: n} }

// NeedOutBytes reports that n additional tx bytes of room are required.
func NeedOutBytes(n int) Outcome { return Outcome{Kind: KindNeedOutBytes, N: n} }

// Callbacks lets a caller observe transaction processing without
// subclassing the handler. Before runs once a transaction has been fully
// decoded but before any side effect is applied; After runs once the side
// effect (an image write, a fifo drain/fill) has been applied; Complete
// runs last. For a response to a request this side initiated, Complete
// receives a stable snapshot taken after the transaction has left the
// pending queue; for a request served on behalf of the peer, it runs once
// the response has been queued in tx.
type Callbacks interface {
	Before(tr *Transaction)
	After(tr *Transaction)
	Complete(tr *Transaction)
}

// NoopCallbacks implements Callbacks with no-ops. Embed it to implement
// only the callbacks a particular caller cares about.
type NoopCallbacks struct{}

func (NoopCallbacks) Before(*Transaction)   {}
func (NoopCallbacks) After(*Transaction)    {}
func (NoopCallbacks) Complete(*Transaction) {}

// TryHandleOne services at most one transaction using the bytes currently
// queued in rx, producing any response into tx and consulting/advancing
// pending for responses that answer a request this side sent.
//
// The same function runs identically on both ends of a link: the only
// difference between a host and a device session is which side happens to
// originate more requests. rx and tx are always "incoming to this side"
// and "outgoing from this side," never "host" and "device."
func TryHandleOne(rx, tx *fifo.Ring, img *Image, pending *Pending, cb Callbacks) (Outcome, error) {
	if cb == nil {
		cb = NoopCallbacks{}
	}
	if rx.Empty() {
		return NoInput, nil
	}

	first, err := rx.Peek(0)
	if err != nil {
		return NoInput, nil
	}
	t := Type(first & 0x0F)

	if t.IsResponse() {
		return handleResponse(rx, img, pending, cb, t)
	}
	return handleRequest(rx, tx, img, cb, t)
}

// peekHeader reports whether a full 4-byte header is available in rx and,
// if so, decodes it without consuming anything.
func peekHeader(rx *fifo.Ring) (Header, bool) {
	if rx.Count() < HeaderSize {
		return Header{}, false
	}
	var buf [HeaderSize]byte
	rx.PeekInto(buf[:], HeaderSize)
	return DecodeHeader(buf[:]), true
}

func handleRequest(rx, tx *fifo.Ring, img *Image, cb Callbacks, t Type) (Outcome, error) {
	header, ok := peekHeader(rx)
	if !ok {
		return NeedInBytes(HeaderSize - rx.Count()), nil
	}
	if !t.hasAddress() && header.Addr != 0 {
		return Outcome{}, pkg.ErrNonZeroLength
	}

	switch t {
	case TypeRead:
		return handleReadRequest(rx, tx, img, cb, header)
	case TypeWrite:
		return handleWriteRequest(rx, tx, img, cb, header)
	case TypeReadFifo:
		return handleReadFifoRequest(rx, tx, img, cb, header)
	case TypeWriteFifo:
		return handleWriteFifoRequest(rx, tx, img, cb, header)
	case TypeClearFifo:
		return handleFifoControlRequest(rx, tx, img, cb, header, func(r *fifo.Ring) { r.Clear() })
	case TypeResetFifo:
		return handleFifoControlRequest(rx, tx, img, cb, header, func(r *fifo.Ring) { r.Reset() })
	case TypeMCUReset:
		return handleMCUResetRequest(rx, tx, cb, header)
	default:
		return Outcome{}, pkg.ErrUnknownType
	}
}

func handleReadRequest(rx, tx *fifo.Ring, img *Image, cb Callbacks, header Header) (Outcome, error) {
	if header.Length == 0 || header.Length == 0xFF {
		return Outcome{}, pkg.ErrReservedLength
	}
	respTotal := 3 + int(header.Length) // type + length + payload + checksum
	if tx.Remain() < respTotal {
		return NeedOutBytes(respTotal - tx.Remain()), nil
	}
	rx.Discard(HeaderSize)

	payload, ok := img.readAt(header.Addr, int(header.Length))
	if !ok {
		return Outcome{}, pkg.ErrOutOfRange
	}

	tr := &Transaction{Request: header, Data: payload}
	cb.Before(tr)
	writeResponse(tx, TypeReadResp, payload)
	cb.After(tr)
	cb.Complete(tr)
	return HandledOne, nil
}

func handleWriteRequest(rx, tx *fifo.Ring, img *Image, cb Callbacks, header Header) (Outcome, error) {
	if header.Length == 0 || header.Length == 0xFF {
		return Outcome{}, pkg.ErrReservedLength
	}
	total := HeaderSize + int(header.Length) + 1 // header + payload + checksum
	if rx.Count() < total {
		return NeedInBytes(total - rx.Count()), nil
	}
	if tx.Remain() < 2 {
		return NeedOutBytes(2 - tx.Remain()), nil
	}

	buf := make([]byte, total)
	rx.PeekInto(buf, total)
	payload := buf[HeaderSize : HeaderSize+int(header.Length)]
	chk := buf[total-1]
	rx.Discard(total)

	if !verifyChecksum(payload, chk) {
		return Outcome{}, pkg.ErrChecksum
	}
	if int(header.Addr)+len(payload) > img.Size() {
		return Outcome{}, pkg.ErrOutOfRange
	}

	tr := &Transaction{Request: header, Accepted: int(header.Length)}
	cb.Before(tr)
	img.writeAt(header.Addr, payload)
	tx.Enqueue(byte(TypeWriteResp))
	tx.Enqueue(header.Length)
	cb.After(tr)
	cb.Complete(tr)
	return HandledOne, nil
}

func handleReadFifoRequest(rx, tx *fifo.Ring, img *Image, cb Callbacks, header Header) (Outcome, error) {
	if header.Length == 0 || header.Length == 0xFF {
		return Outcome{}, pkg.ErrReservedLength
	}
	ring, _, ok := img.fifoAt(header.Addr)
	if !ok {
		return Outcome{}, fifoAddressError(header.Addr)
	}

	delivered := min(int(header.Length), ring.Count())
	respTotal := 3 + delivered
	if tx.Remain() < respTotal {
		return NeedOutBytes(respTotal - tx.Remain()), nil
	}
	rx.Discard(HeaderSize)

	payload := make([]byte, delivered)

	tr := &Transaction{Request: header, Data: payload, Delivered: delivered}
	cb.Before(tr)
	ring.BulkReadInto(payload, delivered)
	writeResponse(tx, TypeReadFifoResp, payload)
	cb.After(tr)
	cb.Complete(tr)
	return HandledOne, nil
}

func handleWriteFifoRequest(rx, tx *fifo.Ring, img *Image, cb Callbacks, header Header) (Outcome, error) {
	if header.Length == 0 || header.Length == 0xFF {
		return Outcome{}, pkg.ErrReservedLength
	}
	total := HeaderSize + int(header.Length) + 1
	if rx.Count() < total {
		return NeedInBytes(total - rx.Count()), nil
	}
	if tx.Remain() < 2 {
		return NeedOutBytes(2 - tx.Remain()), nil
	}

	ring, _, ok := img.fifoAt(header.Addr)
	if !ok {
		return Outcome{}, fifoAddressError(header.Addr)
	}

	buf := make([]byte, total)
	rx.PeekInto(buf, total)
	payload := buf[HeaderSize : HeaderSize+int(header.Length)]
	chk := buf[total-1]
	rx.Discard(total)

	if !verifyChecksum(payload, chk) {
		return Outcome{}, pkg.ErrChecksum
	}

	accepted := min(len(payload), ring.Remain())

	tr := &Transaction{Request: header, Accepted: accepted}
	cb.Before(tr)
	ring.BulkWriteFrom(payload, accepted)
	tx.Enqueue(byte(TypeWriteFifoResp))
	tx.Enqueue(byte(accepted))
	cb.After(tr)
	cb.Complete(tr)
	return HandledOne, nil
}

func handleFifoControlRequest(rx, tx *fifo.Ring, img *Image, cb Callbacks, header Header, apply func(*fifo.Ring)) (Outcome, error) {
	if header.Length != 0 {
		return Outcome{}, pkg.ErrNonZeroLength
	}
	ring, _, ok := img.fifoAt(header.Addr)
	if !ok {
		return Outcome{}, fifoAddressError(header.Addr)
	}
	if tx.Remain() < 1 {
		return NeedOutBytes(1 - tx.Remain()), nil
	}
	rx.Discard(HeaderSize)

	tr := &Transaction{Request: header}
	cb.Before(tr)
	apply(ring)
	tx.Enqueue(byte(header.Type.Response()))
	cb.After(tr)
	cb.Complete(tr)
	return HandledOne, nil
}

func handleMCUResetRequest(rx, tx *fifo.Ring, cb Callbacks, header Header) (Outcome, error) {
	if header.Length != 0 {
		return Outcome{}, pkg.ErrNonZeroLength
	}
	if tx.Remain() < 1 {
		return NeedOutBytes(1 - tx.Remain()), nil
	}
	rx.Discard(HeaderSize)

	tr := &Transaction{Request: header}
	cb.Before(tr)
	tx.Enqueue(byte(TypeMCUResetResp))
	cb.After(tr)
	cb.Complete(tr)
	return HandledOne, nil
}

func handleResponse(rx *fifo.Ring, img *Image, pending *Pending, cb Callbacks, t Type) (Outcome, error) {
	head, ok := pending.Head()
	if !ok {
		return Outcome{}, pkg.ErrPendingEmpty
	}
	if head.Request.Type != t.Request() {
		return Outcome{}, pkg.ErrPendingMismatch
	}

	switch t.Request() {
	case TypeRead, TypeReadFifo:
		return handleReadResponse(rx, img, pending, cb, head, t)
	case TypeWrite, TypeWriteFifo:
		return handleWriteResponse(rx, img, pending, cb, head, t)
	case TypeClearFifo, TypeResetFifo, TypeMCUReset:
		return handleControlResponse(rx, pending, cb, head)
	default:
		return Outcome{}, pkg.ErrUnknownType
	}
}

func handleReadResponse(rx *fifo.Ring, img *Image, pending *Pending, cb Callbacks, head *Transaction, t Type) (Outcome, error) {
	if rx.Count() < 2 {
		return NeedInBytes(2 - rx.Count()), nil
	}
	var lenByte [2]byte
	rx.PeekInto(lenByte[:], 2)
	length := int(lenByte[1])
	total := 3 + length
	if rx.Count() < total {
		return NeedInBytes(total - rx.Count()), nil
	}

	if t.Request() == TypeRead && length != int(head.Request.Length) {
		return Outcome{}, pkg.ErrPendingMismatch
	}

	buf := make([]byte, total)
	rx.BulkReadInto(buf, total)
	payload := buf[2 : 2+length]
	chk := buf[total-1]
	if !verifyChecksum(payload, chk) {
		return Outcome{}, pkg.ErrChecksum
	}

	head.Data = payload
	head.Delivered = length
	cb.Before(head)
	if t.Request() == TypeRead {
		img.writeAt(head.Request.Addr, payload)
	} else {
		ring, _, ok := img.fifoAt(head.Request.Addr)
		if !ok {
			return Outcome{}, fifoAddressError(head.Request.Addr)
		}
		ring.BulkWriteFrom(payload, length)
	}
	cb.After(head)

	result := *head
	pending.Advance()
	cb.Complete(&result)
	return HandledOne, nil
}

func handleWriteResponse(rx *fifo.Ring, img *Image, pending *Pending, cb Callbacks, head *Transaction, t Type) (Outcome, error) {
	if rx.Count() < 2 {
		return NeedInBytes(2 - rx.Count()), nil
	}
	var buf [2]byte
	rx.BulkReadInto(buf[:], 2)
	length := int(buf[1])

	if t.Request() == TypeWrite && length != int(head.Request.Length) {
		return Outcome{}, pkg.ErrPendingMismatch
	}

	head.Accepted = length
	cb.Before(head)
	if t.Request() == TypeWriteFifo {
		ring, _, ok := img.fifoAt(head.Request.Addr)
		if !ok {
			return Outcome{}, fifoAddressError(head.Request.Addr)
		}
		ring.Discard(length)
	}
	cb.After(head)

	result := *head
	pending.Advance()
	cb.Complete(&result)
	return HandledOne, nil
}

func handleControlResponse(rx *fifo.Ring, pending *Pending, cb Callbacks, head *Transaction) (Outcome, error) {
	if rx.Count() < 1 {
		return NeedInBytes(1 - rx.Count()), nil
	}
	var buf [1]byte
	rx.BulkReadInto(buf[:], 1)

	cb.Before(head)
	cb.After(head)

	result := *head
	pending.Advance()
	cb.Complete(&result)
	return HandledOne, nil
}

// writeResponse enqueues a [TypeReadResp]-shaped response (type, length,
// payload, checksum) into tx. Callers must have already verified tx has
// room for 3+len(payload) bytes.
func writeResponse(tx *fifo.Ring, t Type, payload []byte) {
	tx.Enqueue(byte(t))
	tx.Enqueue(byte(len(payload)))
	for _, b := range payload {
		tx.Enqueue(b)
	}
	tx.Enqueue(checksum(payload))
}

// fifoAddressError classifies a bad fifo-descriptor address: misaligned
// within the descriptor region, or entirely out of range.
func fifoAddressError(addr uint32) error {
	a := int(addr)
	if a >= fixedRegionEnd && a < imageSize {
		return pkg.ErrFifoMisaligned
	}
	return pkg.ErrOutOfRange
}
