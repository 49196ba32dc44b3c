package softio

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/ardnew/softio/fifo"
	"github.com/ardnew/softio/link"
	"github.com/ardnew/softio/pkg"
)

// ProtocolVersion is the version reported by FieldVersion. A session's
// Open handshake fails if the peer reports a different value.
const ProtocolVersion = 1

// scratchSize bounds how many bytes a single Gets/Puts call moves between
// a session's rings and its port.
const scratchSize = 256

// Session is the flow/flush driver for one end of a SoftIO link: it owns
// the image, the pending-transaction queue, and the single mutex that
// serializes every operation against them. Sessions are not safe to use
// the same rx/tx rings for two Sessions.
type Session struct {
	mu sync.Mutex

	img     *Image
	port    link.Port
	pending *Pending
	cb      Callbacks

	rx, tx *fifo.Ring

	inBuf, outBuf []byte

	poisonErr error
}

// NewSession constructs a Session over img, communicating through port. cb
// may be nil, in which case [NoopCallbacks] is used.
func NewSession(img *Image, port link.Port, cb Callbacks) *Session {
	if cb == nil {
		cb = NoopCallbacks{}
	}
	s := &Session{
		img:    img,
		port:   port,
		cb:     cb,
		rx:     img.Fifo(FifoRx),
		tx:     img.Fifo(FifoTx),
		inBuf:  make([]byte, scratchSize),
		outBuf: make([]byte, scratchSize),
	}
	s.pending = NewPending(&s.mu, DefaultPendingCapacity)
	return s
}

// between returns the Field spanning from the start of a to the end of b.
func between(a, b Field) Field {
	return Field{Offset: a.Offset, Length: b.end() - a.Offset}
}

// Open performs the session handshake: it reads the peer's reported
// protocol version and image size and compares them against this side's
// own values, failing with [pkg.ErrVersionMismatch] or
// [pkg.ErrSizeMismatch] on disagreement.
func (s *Session) Open(ctx context.Context) error {
	expectedVersion := s.img.Version()
	expectedSize := uint32(s.img.Size())

	f := between(FieldProductID, FieldSize)
	data, err := s.ReadField(ctx, f)
	if err != nil {
		return err
	}
	gotProductID := binary.LittleEndian.Uint16(data[0:2])
	gotVersion := binary.LittleEndian.Uint32(data[2:6])
	gotSize := binary.LittleEndian.Uint32(data[6:10])

	if gotVersion != expectedVersion {
		return s.poison(pkg.ErrVersionMismatch)
	}
	if gotSize != expectedSize {
		return s.poison(pkg.ErrSizeMismatch)
	}
	s.img.SetStatus(StatusRunning)
	pkg.LogInfo(pkg.ComponentSoftIO, "session opened",
		"product_id", gotProductID, "version", gotVersion, "size", gotSize)
	return nil
}

// DelayRead stages a READ of f without waiting for the response. Call
// Flush or WaitAll to push staged requests onto the wire.
func (s *Session) DelayRead(ctx context.Context, f Field) error {
	return s.sendRequest(ctx, Header{Type: TypeRead, Addr: uint32(f.Offset), Length: uint8(f.Length)}, nil)
}

// DelayWrite stages a WRITE of data into f. The local image is updated
// immediately, write-through style; the response only confirms the peer
// accepted the same bytes.
func (s *Session) DelayWrite(ctx context.Context, f Field, data []byte) error {
	if len(data) != f.Length {
		return pkg.ErrInvalidParameter
	}
	s.mu.Lock()
	if !s.img.writeAt(uint32(f.Offset), data) {
		s.mu.Unlock()
		return pkg.ErrOutOfRange
	}
	s.mu.Unlock()
	return s.sendRequest(ctx, Header{Type: TypeWrite, Addr: uint32(f.Offset), Length: uint8(f.Length)}, data)
}

// DelayReadBetween stages a READ spanning from the start of a to the end
// of b.
func (s *Session) DelayReadBetween(ctx context.Context, a, b Field) error {
	return s.DelayRead(ctx, between(a, b))
}

// DelayWriteBetween stages a WRITE spanning from the start of a to the end
// of b.
func (s *Session) DelayWriteBetween(ctx context.Context, a, b Field, data []byte) error {
	return s.DelayWrite(ctx, between(a, b), data)
}

// DelayReadFifo stages a READ-FIFO requesting up to length bytes from the
// peer's fifo identified by id. length must fall within the reserved-length
// range [1, 254]; 0 and 255 are reserved header values.
func (s *Session) DelayReadFifo(ctx context.Context, id FifoID, length int) error {
	if length < 1 || length > 254 {
		return pkg.ErrInvalidParameter
	}
	f := FifoField(id)
	return s.sendRequest(ctx, Header{Type: TypeReadFifo, Addr: uint32(f.Offset), Length: uint8(length)}, nil)
}

// DelayWriteFifo stages a WRITE-FIFO carrying up to length bytes currently
// queued in this side's local fifo identified by id. The bytes remain in
// the local ring, merely peeked, until the matching response confirms how
// many the peer actually accepted. length must fall within the
// reserved-length range [1, 254]; 0 and 255 are reserved header values.
func (s *Session) DelayWriteFifo(ctx context.Context, id FifoID, length int) error {
	if length < 1 || length > 254 {
		return pkg.ErrInvalidParameter
	}
	s.mu.Lock()
	ring := s.img.Fifo(id)
	n := min(length, ring.Count())
	payload := make([]byte, n)
	ring.PeekInto(payload, n)
	s.mu.Unlock()

	f := FifoField(id)
	return s.sendRequest(ctx, Header{Type: TypeWriteFifo, Addr: uint32(f.Offset), Length: uint8(n)}, payload)
}

// DelayClearFifo stages a CLEAR-FIFO asking the peer to discard whatever is
// queued in its own fifo identified by id.
func (s *Session) DelayClearFifo(ctx context.Context, id FifoID) error {
	f := FifoField(id)
	return s.sendRequest(ctx, Header{Type: TypeClearFifo, Addr: uint32(f.Offset)}, nil)
}

// DelayResetFifo stages a RESET-FIFO asking the peer to rewind its own
// fifo identified by id back to empty-at-index-zero.
func (s *Session) DelayResetFifo(ctx context.Context, id FifoID) error {
	f := FifoField(id)
	return s.sendRequest(ctx, Header{Type: TypeResetFifo, Addr: uint32(f.Offset)}, nil)
}

// DelayMCUReset stages an MCU-RESET request.
func (s *Session) DelayMCUReset(ctx context.Context) error {
	return s.sendRequest(ctx, Header{Type: TypeMCUReset}, nil)
}

// ReadField issues a READ of f and blocks until the response arrives,
// returning the bytes the peer reported.
func (s *Session) ReadField(ctx context.Context, f Field) ([]byte, error) {
	if err := s.DelayRead(ctx, f); err != nil {
		return nil, err
	}
	if err := s.WaitAll(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.img.readAt(uint32(f.Offset), f.Length)
	if !ok {
		return nil, pkg.ErrOutOfRange
	}
	return data, nil
}

// WriteField issues a WRITE of data into f and blocks until the response
// confirms it.
func (s *Session) WriteField(ctx context.Context, f Field, data []byte) error {
	if err := s.DelayWrite(ctx, f, data); err != nil {
		return err
	}
	return s.WaitAll(ctx)
}

// ReadBetween issues a READ spanning from the start of a to the end of b
// and blocks for the response.
func (s *Session) ReadBetween(ctx context.Context, a, b Field) ([]byte, error) {
	return s.ReadField(ctx, between(a, b))
}

// WriteBetween issues a WRITE spanning from the start of a to the end of b
// and blocks for the response.
func (s *Session) WriteBetween(ctx context.Context, a, b Field, data []byte) error {
	return s.WriteField(ctx, between(a, b), data)
}

// ReadFifo issues a READ-FIFO requesting up to length bytes from the
// peer's fifo id, blocks for the response, and returns however many bytes
// were actually delivered (which may be fewer than length).
func (s *Session) ReadFifo(ctx context.Context, id FifoID, length int) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}

	s.mu.Lock()
	ring := s.img.Fifo(id)
	before := ring.Count()
	s.mu.Unlock()

	if err := s.DelayReadFifo(ctx, id, min(length, 254)); err != nil {
		return nil, err
	}
	if err := s.WaitAll(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delivered := ring.Count() - before
	buf := make([]byte, delivered)
	ring.BulkReadInto(buf, delivered)
	return buf, nil
}

// WriteFifo enqueues data into this side's local fifo id, issues a
// WRITE-FIFO for as much of it as fits in one frame, blocks for the
// response, and returns how many bytes the peer actually accepted (which
// may be fewer than len(data), the back-pressure case).
func (s *Session) WriteFifo(ctx context.Context, id FifoID, data []byte) (int, error) {
	s.mu.Lock()
	ring := s.img.Fifo(id)
	enq := ring.BulkWriteFrom(data, min(len(data), 254))
	before := ring.Count()
	s.mu.Unlock()

	if enq == 0 {
		return 0, nil
	}

	if err := s.DelayWriteFifo(ctx, id, enq); err != nil {
		return 0, err
	}
	if err := s.WaitAll(ctx); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return before - ring.Count(), nil
}

// FifoCapacity returns the usable byte capacity of this session's local
// mirror of fifo id (one less than its backing arena length, since a ring
// buffer always reserves one slot to disambiguate full from empty).
func (s *Session) FifoCapacity(id FifoID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ring := s.img.Fifo(id)
	return ring.Count() + ring.Remain()
}

// ClearFifo issues a CLEAR-FIFO for id and blocks for the response.
func (s *Session) ClearFifo(ctx context.Context, id FifoID) error {
	if err := s.DelayClearFifo(ctx, id); err != nil {
		return err
	}
	return s.WaitAll(ctx)
}

// ResetFifo issues a RESET-FIFO for id and blocks for the response.
func (s *Session) ResetFifo(ctx context.Context, id FifoID) error {
	if err := s.DelayResetFifo(ctx, id); err != nil {
		return err
	}
	return s.WaitAll(ctx)
}

// WriteGPIO is a convenience wrapper staging and flushing a GPIOOut write.
func (s *Session) WriteGPIO(ctx context.Context, v byte) error {
	return s.WriteField(ctx, FieldGPIOOut, []byte{v})
}

// ReadGPIO is a convenience wrapper reading GPIOIn.
func (s *Session) ReadGPIO(ctx context.Context) (byte, error) {
	data, err := s.ReadField(ctx, FieldGPIOIn)
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

// SetLED is a convenience wrapper staging and flushing an LED write.
func (s *Session) SetLED(ctx context.Context, v byte) error {
	return s.WriteField(ctx, FieldLED, []byte{v})
}

// Serve runs this session as a pure responder: it repeatedly flushes
// outgoing bytes and blocks for more incoming ones, servicing peer
// requests as they arrive, until ctx is done or the port reports an
// error. It is meant for the side of a link that mostly answers requests
// rather than issuing them, e.g. the microcontroller side of a host link.
func (s *Session) Serve(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if err := s.flushLocked(ctx); err != nil {
			return err
		}
		n, err := s.port.Gets(ctx, s.inBuf)
		if err != nil {
			return s.poison(err)
		}
		if n > 0 {
			s.rx.BulkWriteFrom(s.inBuf, n)
		}
	}
}

// Flush pushes every staged byte in tx out over the port and processes
// whatever responses or peer requests are already sitting in rx. Unlike
// WaitAll, Flush never performs a blocking read: it only drains what is
// already buffered.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked(ctx)
}

// WaitAll blocks until every staged transaction has a response, reading
// from the port as needed to make progress.
func (s *Session) WaitAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if err := s.flushLocked(ctx); err != nil {
			return err
		}
		if s.pending.Empty() {
			return nil
		}
		n, err := s.port.Gets(ctx, s.inBuf)
		if err != nil {
			return s.poison(err)
		}
		if n > 0 {
			s.rx.BulkWriteFrom(s.inBuf, n)
		}
	}
}

// sendRequest reserves a pending slot, encodes header/payload onto tx
// (flushing first if tx lacks room), and commits the reservation.
func (s *Session) sendRequest(ctx context.Context, header Header, payload []byte) error {
	frameLen := HeaderSize
	if len(payload) > 0 {
		frameLen += len(payload) + 1 // + checksum
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.poisonErr != nil {
		return s.poisonErr
	}
	if s.tx.Remain() < frameLen {
		if err := s.flushLocked(ctx); err != nil {
			return err
		}
	}
	if s.tx.Remain() < frameLen {
		return pkg.ErrInvalidParameter
	}

	tr, err := s.pending.Reserve(ctx)
	if err != nil {
		return err
	}
	tr.Request = header

	buf := make([]byte, frameLen)
	header.Encode(buf[:HeaderSize])
	if len(payload) > 0 {
		copy(buf[HeaderSize:], payload)
		buf[len(buf)-1] = checksum(payload)
	}
	s.tx.BulkWriteFrom(buf, len(buf))
	s.pending.Commit()
	return nil
}

// flushLocked is Flush's implementation, called with mu already held.
func (s *Session) flushLocked(ctx context.Context) error {
	if s.poisonErr != nil {
		return s.poisonErr
	}
	if err := s.drainTx(ctx); err != nil {
		return s.poison(err)
	}
	for {
		outcome, err := TryHandleOne(s.rx, s.tx, s.img, s.pending, s.cb)
		if err != nil {
			return s.poison(err)
		}
		switch outcome.Kind {
		case KindHandledOne:
			if err := s.drainTx(ctx); err != nil {
				return s.poison(err)
			}
			continue
		case KindNeedOutBytes:
			if err := s.drainTx(ctx); err != nil {
				return s.poison(err)
			}
			if s.tx.Remain() < outcome.N {
				// The ring itself is too small to ever hold this
				// response; no amount of draining will help.
				return s.poison(pkg.ErrInvalidParameter)
			}
			continue
		default: // KindNoInput, KindNeedInBytes
			return nil
		}
	}
}

// drainTx pushes every byte currently queued in tx out over the port.
func (s *Session) drainTx(ctx context.Context) error {
	for !s.tx.Empty() {
		n := s.tx.Count()
		if n > len(s.outBuf) {
			n = len(s.outBuf)
		}
		got := s.tx.PeekInto(s.outBuf[:n], n)
		written, err := s.port.Puts(ctx, s.outBuf[:got])
		s.tx.Discard(written)
		if err != nil {
			return err
		}
		if written < got {
			return nil
		}
	}
	return nil
}

// poison records err as fatal to this session and returns it. Once
// poisoned, every subsequent call fails fast with the recorded error.
func (s *Session) poison(err error) error {
	if s.poisonErr == nil {
		s.poisonErr = err
		s.img.SetStatus(StatusFault)
		pkg.LogError(pkg.ComponentSoftIO, "session poisoned", "kind", pkg.ClassifyError(err).String(), "err", err)
	}
	return s.poisonErr
}
