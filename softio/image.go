package softio

import (
	"encoding/binary"

	"github.com/ardnew/softio/fifo"
)

// FifoID identifies one of the ring buffers embedded in an [Image].
type FifoID int

const (
	FifoRx FifoID = iota
	FifoTx
	FifoLogging
	Fifo0
	Fifo1

	numFifos
)

// String returns a short name for the fifo identified by id.
func (id FifoID) String() string {
	switch id {
	case FifoRx:
		return "rx"
	case FifoTx:
		return "tx"
	case FifoLogging:
		return "logging"
	case Fifo0:
		return "fifo0"
	case Fifo1:
		return "fifo1"
	default:
		return "unknown"
	}
}

// Field describes a named region of the image: a byte offset and width.
// Session verbs that operate on "a field" (DelayRead, DelayWrite, ...) take
// a Field rather than a raw offset so callers never hand-compute layout.
type Field struct {
	Offset int
	Length int
}

// end returns the offset one past the last byte of the field.
func (f Field) end() int { return f.Offset + f.Length }

// Status byte values reported at FieldStatus. A freshly constructed Image
// starts at StatusInit; a session transitions its own image to
// StatusRunning once it has completed the Open handshake, and to
// StatusFault if a fatal link error poisons it.
const (
	StatusInit    byte = 0
	StatusRunning byte = 1
	StatusFault   byte = 2
)

// WellKnownProductID is the product id every Image reports at
// FieldProductID and that Session.Open verifies against the peer.
const WellKnownProductID uint16 = 0x5A10

// Fixed field layout. Every offset below is relative to the start of the
// image; the descriptor region that follows is computed from these.
const (
	offStatus          = 0
	offVerbose         = 1
	offProductID       = 2
	offVersion         = 4
	offSize            = 8
	offRxOverflow      = 12
	offGPIOOut         = 16
	offGPIOIn          = 17
	offLED             = 18
	offStreamCount     = 20
	offStreamUnderflow = 24
	offADC1            = 28
	offADC2            = 30
	offTimer0          = 32
	offTimer1          = 40
	fixedRegionEnd     = 48

	timerBlockSize      = 8
	timerOffPWMEnable   = 0
	timerOffITEnable    = 1
	timerOffPrescaler   = 2
	timerOffPeriod      = 4
	timerOffPulse       = 6
	descriptorSize      = 8
	descriptorHandleOff = 0
	descriptorLenOff    = 4
)

// Named fields usable with Session.ReadField / Session.WriteField /
// Session.ReadBetween / Session.WriteBetween.
var (
	FieldStatus          = Field{offStatus, 1}
	FieldVerbose         = Field{offVerbose, 1}
	FieldProductID       = Field{offProductID, 2}
	FieldVersion         = Field{offVersion, 4}
	FieldSize            = Field{offSize, 4}
	FieldRxOverflow      = Field{offRxOverflow, 4}
	FieldGPIOOut         = Field{offGPIOOut, 1}
	FieldGPIOIn          = Field{offGPIOIn, 1}
	FieldLED             = Field{offLED, 1}
	FieldStreamCount     = Field{offStreamCount, 4}
	FieldStreamUnderflow = Field{offStreamUnderflow, 4}
	FieldADC1            = Field{offADC1, 2}
	FieldADC2            = Field{offADC2, 2}
	FieldTimer0          = Field{offTimer0, timerBlockSize}
	FieldTimer1          = Field{offTimer1, timerBlockSize}
)

// TimerField returns the Field spanning the entire 8-byte register block for
// timer i (0 or 1): PWMEnable, ITEnable, Prescaler, Period, Pulse.
func TimerField(i int) Field {
	return Field{timerOffset(i), timerBlockSize}
}

// TimerPrescalerField returns the Field for timer i's prescaler register.
func TimerPrescalerField(i int) Field {
	return Field{timerOffset(i) + timerOffPrescaler, 2}
}

// TimerPeriodField returns the Field for timer i's auto-reload period
// register.
func TimerPeriodField(i int) Field {
	return Field{timerOffset(i) + timerOffPeriod, 2}
}

// TimerPulseField returns the Field for timer i's compare/pulse register.
func TimerPulseField(i int) Field {
	return Field{timerOffset(i) + timerOffPulse, 2}
}

// TimerRateField returns the Field spanning timer i's prescaler, period, and
// pulse registers contiguously, the span Timer_Start_IT/Timer_Start_PWM
// program in one write.
func TimerRateField(i int) Field {
	return Field{timerOffset(i) + timerOffPrescaler, 6}
}

// TimerPWMEnableField returns the Field for timer i's PWM-enable byte.
func TimerPWMEnableField(i int) Field {
	return Field{timerOffset(i) + timerOffPWMEnable, 1}
}

// TimerITEnableField returns the Field for timer i's interrupt-enable byte.
func TimerITEnableField(i int) Field {
	return Field{timerOffset(i) + timerOffITEnable, 1}
}

// descriptorOffset returns the offset of the fifo descriptor for id.
func descriptorOffset(id FifoID) int {
	return fixedRegionEnd + int(id)*descriptorSize
}

// FifoField returns the Field describing the descriptor for id, the address
// used in READ-FIFO / WRITE-FIFO / CLEAR-FIFO / RESET-FIFO transactions.
func FifoField(id FifoID) Field {
	return Field{descriptorOffset(id), descriptorSize}
}

// imageSize is the total size of the fixed region plus every fifo
// descriptor. It does not include the fifo backing arrays themselves, which
// the Image allocates separately (its "arena").
const imageSize = fixedRegionEnd + int(numFifos)*descriptorSize

// FifoLengths configures the backing capacity of each embedded ring buffer.
type FifoLengths struct {
	Rx, Tx, Logging, Fifo0, Fifo1 int
}

// DefaultFifoLengths returns reasonable default capacities for every
// embedded fifo.
func DefaultFifoLengths() FifoLengths {
	return FifoLengths{Rx: 512, Tx: 512, Logging: 256, Fifo0: 256, Fifo1: 256}
}

func (l FifoLengths) byID(id FifoID) int {
	switch id {
	case FifoRx:
		return l.Rx
	case FifoTx:
		return l.Tx
	case FifoLogging:
		return l.Logging
	case Fifo0:
		return l.Fifo0
	case Fifo1:
		return l.Fifo1
	default:
		return 0
	}
}

// Image is the flat, fixed-size byte region mirrored between a host process
// and a microcontroller. It owns the fixed-field region, the descriptor
// table, and the arena of backing byte arrays each embedded [fifo.Ring]
// is bound to.
//
// Descriptors hold an opaque arena index rather than a raw pointer: on a
// 32-bit microcontroller a pointer does not survive being copied into a
// fixed-width field the same way across build configurations, so the wire
// representation of "where is this fifo's backing memory" is an index into
// a side table both ends agree on, not an address.
type Image struct {
	raw   []byte
	arena [numFifos][]byte
	fifos [numFifos]*fifo.Ring
}

// NewImage allocates an Image with the given fifo backing capacities.
func NewImage(lengths FifoLengths) *Image {
	img := &Image{raw: make([]byte, imageSize)}
	for id := FifoID(0); id < numFifos; id++ {
		n := lengths.byID(id)
		if n < 2 {
			n = 2
		}
		img.arena[id] = make([]byte, n)
		img.fifos[id] = fifo.New(img.arena[id])
		img.putDescriptor(id)
	}
	img.raw[offStatus] = StatusInit
	binary.LittleEndian.PutUint16(img.raw[offProductID:], WellKnownProductID)
	binary.LittleEndian.PutUint32(img.raw[offVersion:], ProtocolVersion)
	binary.LittleEndian.PutUint32(img.raw[offSize:], uint32(imageSize))
	return img
}

func (img *Image) putDescriptor(id FifoID) {
	off := descriptorOffset(id)
	binary.LittleEndian.PutUint32(img.raw[off+descriptorHandleOff:], uint32(id))
	binary.LittleEndian.PutUint32(img.raw[off+descriptorLenOff:], uint32(len(img.arena[id])))
}

// Size returns the total addressable size of the image, matching the Size
// field mirrored at FieldSize.
func (img *Image) Size() int { return len(img.raw) }

// Fifo returns the ring buffer identified by id.
func (img *Image) Fifo(id FifoID) *fifo.Ring { return img.fifos[id] }

// fifoAt resolves a descriptor-region address to the fifo it names. It
// returns false if addr does not point at the start of a descriptor slot.
func (img *Image) fifoAt(addr uint32) (*fifo.Ring, FifoID, bool) {
	a := int(addr)
	if a < fixedRegionEnd || a >= imageSize {
		return nil, 0, false
	}
	rel := a - fixedRegionEnd
	if rel%descriptorSize != 0 {
		return nil, 0, false
	}
	id := FifoID(rel / descriptorSize)
	return img.fifos[id], id, true
}

// readAt copies the field at [addr, addr+length) out of the image. It
// reports false if the range falls outside the image.
func (img *Image) readAt(addr uint32, length int) ([]byte, bool) {
	start := int(addr)
	end := start + length
	if start < 0 || end > len(img.raw) {
		return nil, false
	}
	out := make([]byte, length)
	copy(out, img.raw[start:end])
	return out, true
}

// writeAt copies data into the image starting at addr. It reports false if
// the range falls outside the image.
func (img *Image) writeAt(addr uint32, data []byte) bool {
	start := int(addr)
	end := start + len(data)
	if start < 0 || end > len(img.raw) {
		return false
	}
	copy(img.raw[start:end], data)
	return true
}

// --- Typed field accessors -------------------------------------------------

// Status returns the Status field.
func (img *Image) Status() byte { return img.raw[offStatus] }

// SetStatus sets the Status field.
func (img *Image) SetStatus(v byte) { img.raw[offStatus] = v }

// Verbose returns the Verbose field.
func (img *Image) Verbose() byte { return img.raw[offVerbose] }

// SetVerbose sets the Verbose field.
func (img *Image) SetVerbose(v byte) { img.raw[offVerbose] = v }

// ProductID returns the ProductID field.
func (img *Image) ProductID() uint16 { return binary.LittleEndian.Uint16(img.raw[offProductID:]) }

// SetProductID sets the ProductID field.
func (img *Image) SetProductID(v uint16) { binary.LittleEndian.PutUint16(img.raw[offProductID:], v) }

// Version returns the Version field.
func (img *Image) Version() uint32 { return binary.LittleEndian.Uint32(img.raw[offVersion:]) }

// SetVersion sets the Version field.
func (img *Image) SetVersion(v uint32) { binary.LittleEndian.PutUint32(img.raw[offVersion:], v) }

// RxOverflow returns the RxOverflow counter.
func (img *Image) RxOverflow() uint32 { return binary.LittleEndian.Uint32(img.raw[offRxOverflow:]) }

// IncRxOverflow increments the RxOverflow counter by one.
func (img *Image) IncRxOverflow() {
	v := img.RxOverflow() + 1
	binary.LittleEndian.PutUint32(img.raw[offRxOverflow:], v)
}

// GPIOOut returns the GPIOOut field.
func (img *Image) GPIOOut() byte { return img.raw[offGPIOOut] }

// SetGPIOOut sets the GPIOOut field.
func (img *Image) SetGPIOOut(v byte) { img.raw[offGPIOOut] = v }

// GPIOIn returns the GPIOIn field.
func (img *Image) GPIOIn() byte { return img.raw[offGPIOIn] }

// SetGPIOIn sets the GPIOIn field.
func (img *Image) SetGPIOIn(v byte) { img.raw[offGPIOIn] = v }

// LED returns the LED field.
func (img *Image) LED() byte { return img.raw[offLED] }

// SetLED sets the LED field.
func (img *Image) SetLED(v byte) { img.raw[offLED] = v }

// StreamCount returns the StreamCount field.
func (img *Image) StreamCount() uint32 {
	return binary.LittleEndian.Uint32(img.raw[offStreamCount:])
}

// SetStreamCount sets the StreamCount field.
func (img *Image) SetStreamCount(v uint32) {
	binary.LittleEndian.PutUint32(img.raw[offStreamCount:], v)
}

// StreamUnderflow returns the StreamUnderflow counter.
func (img *Image) StreamUnderflow() uint32 {
	return binary.LittleEndian.Uint32(img.raw[offStreamUnderflow:])
}

// SetStreamUnderflow sets the StreamUnderflow counter.
func (img *Image) SetStreamUnderflow(v uint32) {
	binary.LittleEndian.PutUint32(img.raw[offStreamUnderflow:], v)
}

// ADC1 returns the ADC1 field.
func (img *Image) ADC1() uint16 { return binary.LittleEndian.Uint16(img.raw[offADC1:]) }

// SetADC1 sets the ADC1 field.
func (img *Image) SetADC1(v uint16) { binary.LittleEndian.PutUint16(img.raw[offADC1:], v) }

// ADC2 returns the ADC2 field.
func (img *Image) ADC2() uint16 { return binary.LittleEndian.Uint16(img.raw[offADC2:]) }

// SetADC2 sets the ADC2 field.
func (img *Image) SetADC2(v uint16) { binary.LittleEndian.PutUint16(img.raw[offADC2:], v) }

// timerOffset returns the base offset of timer i (0 or 1).
func timerOffset(i int) int {
	if i == 0 {
		return offTimer0
	}
	return offTimer1
}

// TimerPWMEnable reports whether PWM output is enabled on timer i.
func (img *Image) TimerPWMEnable(i int) bool {
	return img.raw[timerOffset(i)+timerOffPWMEnable] != 0
}

// SetTimerPWMEnable enables or disables PWM output on timer i.
func (img *Image) SetTimerPWMEnable(i int, v bool) {
	img.raw[timerOffset(i)+timerOffPWMEnable] = boolByte(v)
}

// TimerITEnable reports whether the update interrupt is enabled on timer i.
func (img *Image) TimerITEnable(i int) bool {
	return img.raw[timerOffset(i)+timerOffITEnable] != 0
}

// SetTimerITEnable enables or disables the update interrupt on timer i.
func (img *Image) SetTimerITEnable(i int, v bool) {
	img.raw[timerOffset(i)+timerOffITEnable] = boolByte(v)
}

// TimerPrescaler returns timer i's prescaler register.
func (img *Image) TimerPrescaler(i int) uint16 {
	off := timerOffset(i) + timerOffPrescaler
	return binary.LittleEndian.Uint16(img.raw[off:])
}

// SetTimerPrescaler sets timer i's prescaler register.
func (img *Image) SetTimerPrescaler(i int, v uint16) {
	off := timerOffset(i) + timerOffPrescaler
	binary.LittleEndian.PutUint16(img.raw[off:], v)
}

// TimerPeriod returns timer i's auto-reload period register.
func (img *Image) TimerPeriod(i int) uint16 {
	off := timerOffset(i) + timerOffPeriod
	return binary.LittleEndian.Uint16(img.raw[off:])
}

// SetTimerPeriod sets timer i's auto-reload period register.
func (img *Image) SetTimerPeriod(i int, v uint16) {
	off := timerOffset(i) + timerOffPeriod
	binary.LittleEndian.PutUint16(img.raw[off:], v)
}

// TimerPulse returns timer i's compare/pulse register.
func (img *Image) TimerPulse(i int) uint16 {
	off := timerOffset(i) + timerOffPulse
	return binary.LittleEndian.Uint16(img.raw[off:])
}

// SetTimerPulse sets timer i's compare/pulse register.
func (img *Image) SetTimerPulse(i int, v uint16) {
	off := timerOffset(i) + timerOffPulse
	binary.LittleEndian.PutUint16(img.raw[off:], v)
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
