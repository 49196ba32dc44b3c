package stream

import (
	"context"
	"encoding/binary"

	"github.com/ardnew/softio/softio"
)

// PWM programs timer into PWM output mode at freq Hz and duty in [0, 1],
// then enables it. It returns the realized frequency and duty cycle the
// integer timer registers actually produce.
func PWM(ctx context.Context, s *softio.Session, clk Clock, timer int, freq, duty float64) (realizedHz, realizedDuty float64, err error) {
	prog, realizedDuty := clk.PWM(freq, duty)

	var buf [6]byte
	binary.LittleEndian.PutUint16(buf[0:2], prog.Prescaler)
	binary.LittleEndian.PutUint16(buf[2:4], prog.Period)
	binary.LittleEndian.PutUint16(buf[4:6], prog.Pulse)
	if err := s.WriteField(ctx, softio.TimerRateField(timer), buf[:]); err != nil {
		return 0, 0, err
	}
	if err := s.WriteField(ctx, softio.TimerPWMEnableField(timer), []byte{1}); err != nil {
		return 0, 0, err
	}
	return prog.RealizedHz, realizedDuty, nil
}
