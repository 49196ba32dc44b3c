package stream

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/ardnew/softio/pkg"
	"github.com/ardnew/softio/softio"
)

// refillInterval is how long GPIO's refill loop sleeps between polls of the
// device's sample count and underflow counter.
const refillInterval = time.Millisecond

// GPIO streams samples to the device's GPIO output register at freq Hz: the
// device ISR pops one byte per tick from its local fifo0, writes it to
// GPIOOut, and decrements its sample counter. GPIO keeps that fifo fed from
// the host side until every sample has been consumed.
//
// It returns the frequency actually realized by the integer timer registers
// derived from Clock, which may differ slightly from freq.
func GPIO(ctx context.Context, s *softio.Session, clk Clock, freq float64, samples []byte) (float64, error) {
	if err := resetStreamState(ctx, s); err != nil {
		return 0, err
	}

	prog := clk.IT(freq)
	if err := programTimer(ctx, s, 1, prog); err != nil {
		return 0, err
	}

	total := len(samples)
	written := 0

	// Preload phase: feed the local fifo0 mirror until the device reports
	// it full or every sample has been queued.
	for written < total {
		end := min(written+254, total)
		chunk := samples[written:end]
		accepted, err := s.WriteFifo(ctx, softio.Fifo0, chunk)
		if err != nil {
			return 0, err
		}
		written += accepted
		if accepted < len(chunk) {
			break
		}
	}

	// Start phase.
	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(total))
	if err := s.WriteField(ctx, softio.FieldStreamCount, countBuf[:]); err != nil {
		return 0, err
	}

	capacity := s.FifoCapacity(softio.Fifo0)

	// Refill phase.
	for {
		status, err := s.ReadBetween(ctx, softio.FieldStreamCount, softio.FieldStreamUnderflow)
		if err != nil {
			return 0, err
		}
		remaining := binary.LittleEndian.Uint32(status[0:4])
		underflow := binary.LittleEndian.Uint32(status[4:8])
		if underflow != 0 {
			return 0, pkg.ErrUnderflow
		}
		if remaining == 0 {
			break
		}

		consumed := total - int(remaining)
		inFlight := written - consumed
		// capacity is already the ring's usable capacity (one less than its
		// backing arena length); don't subtract the disambiguation slot twice.
		freeSlots := capacity - inFlight
		if freeSlots > 0 && written < total {
			end := min(written+freeSlots, total, written+254)
			chunk := samples[written:end]
			accepted, err := s.WriteFifo(ctx, softio.Fifo0, chunk)
			if err != nil {
				return 0, err
			}
			written += accepted
			if err := s.Flush(ctx); err != nil {
				return 0, err
			}
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(refillInterval):
		}
	}

	return prog.RealizedHz, nil
}

// resetStreamState clears the remote sample counter and underflow counter
// and resets the remote fifo0 descriptor, the setup every streaming session
// begins with.
func resetStreamState(ctx context.Context, s *softio.Session) error {
	var zero [8]byte
	if err := s.WriteBetween(ctx, softio.FieldStreamCount, softio.FieldStreamUnderflow, zero[:]); err != nil {
		return err
	}
	return s.ResetFifo(ctx, softio.Fifo0)
}

// programTimer writes prescaler/period/pulse and the enable byte for timer
// i, in that order, matching Timer_Start_IT / Timer_Start_PWM.
func programTimer(ctx context.Context, s *softio.Session, timer int, prog Program) error {
	var buf [6]byte
	binary.LittleEndian.PutUint16(buf[0:2], prog.Prescaler)
	binary.LittleEndian.PutUint16(buf[2:4], prog.Period)
	binary.LittleEndian.PutUint16(buf[4:6], prog.Pulse)
	if err := s.WriteField(ctx, softio.TimerRateField(timer), buf[:]); err != nil {
		return err
	}
	return s.WriteField(ctx, softio.TimerITEnableField(timer), []byte{1})
}
