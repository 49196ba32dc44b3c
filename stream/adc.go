package stream

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/ardnew/softio/softio"
)

// ADC streams n samples from the device's ADC1 register at freq Hz. Unlike
// GPIO streaming, ADC capture has no device-side fifo to drain: the device
// ISR refreshes ADC1 in place at the timer rate, and the host polls it once
// per tick. It returns the collected samples and the frequency actually
// realized by the integer timer registers.
func ADC(ctx context.Context, s *softio.Session, clk Clock, freq float64, n int) ([]uint16, float64, error) {
	prog := clk.IT(freq)
	if err := programTimer(ctx, s, 0, prog); err != nil {
		return nil, 0, err
	}

	interval := time.Duration(float64(time.Second) / prog.RealizedHz)
	samples := make([]uint16, 0, n)

	for len(samples) < n {
		select {
		case <-ctx.Done():
			return samples, prog.RealizedHz, ctx.Err()
		case <-time.After(interval):
		}
		data, err := s.ReadField(ctx, softio.FieldADC1)
		if err != nil {
			return samples, prog.RealizedHz, err
		}
		samples = append(samples, binary.LittleEndian.Uint16(data)&0x0FFF)
	}

	return samples, prog.RealizedHz, nil
}
