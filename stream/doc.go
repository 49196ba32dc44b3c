// Package stream implements the streaming orchestrator that sits on top of
// a [softio.Session]: programming a timer for a target tick rate, preloading
// a device-side fifo, and keeping it fed at that rate without the device's
// fifo0 running dry.
//
// GPIO streams a byte vector to the GPIO output register at a fixed rate.
// ADC streams fixed-size samples back from the device at a fixed rate. PWM
// is the one-shot timer/duty-cycle convenience wrapper the same clock math
// serves. None of the three touch the wire directly; they only stage and
// wait on the Session verbs already defined in package softio.
package stream
