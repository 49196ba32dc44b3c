package stream

import "math"

// DefaultPeripheralClockHz is the nominal peripheral clock the timer
// prescaler/period math is derived from.
const DefaultPeripheralClockHz = 72_000_000

// maxReload is the largest value a 16-bit auto-reload/prescaler register can
// hold.
const maxReload = 1<<16 - 1

// Clock derives timer register values for a target tick rate from a
// peripheral clock. The zero value uses DefaultPeripheralClockHz.
type Clock struct {
	// PeripheralHz is the nominal peripheral clock driving the timer. Zero
	// means DefaultPeripheralClockHz.
	PeripheralHz float64
}

func (c Clock) hz() float64 {
	if c.PeripheralHz == 0 {
		return DefaultPeripheralClockHz
	}
	return c.PeripheralHz
}

// Program holds the timer register values derived for a target frequency,
// plus the frequency actually realized by those integer registers.
type Program struct {
	Prescaler uint16
	Period    uint16
	Pulse     uint16

	RealizedHz float64
}

// timerProgram finds the smallest prescaler+1 = 2^k such that the resulting
// period fits in 16 bits, per the Timer_Start_IT / Timer_Start_PWM
// derivation: period = round(C / ((prescaler+1) * f)) - 1.
func (c Clock) timerProgram(freq float64) Program {
	clk := c.hz()
	var prescaler uint32
	var period float64
	for k := 0; ; k++ {
		prescaler = 1<<uint(k) - 1
		period = math.Round(clk/(float64(prescaler+1)*freq)) - 1
		if period <= maxReload {
			break
		}
	}
	if period < 0 {
		period = 0
	}
	realized := clk / (float64(prescaler+1) * (period + 1))
	return Program{
		Prescaler:  uint16(prescaler),
		Period:     uint16(period),
		RealizedHz: realized,
	}
}

// IT derives prescaler/period registers for an interrupt-rate timer ticking
// at freq Hz.
func (c Clock) IT(freq float64) Program {
	return c.timerProgram(freq)
}

// PWM derives prescaler/period/pulse registers for a PWM timer outputting
// freq Hz at the given duty cycle in [0, 1]. It returns the realized
// frequency and the realized duty cycle those integer registers produce.
func (c Clock) PWM(freq, duty float64) (Program, float64) {
	p := c.timerProgram(freq)
	pulse := math.Round(float64(p.Period+1)*duty) - 1
	if pulse < 0 {
		pulse = 0
	}
	p.Pulse = uint16(pulse)
	realizedDuty := float64(p.Pulse+1) / float64(p.Period+1)
	return p, realizedDuty
}
