// Package softio implements the SoftIO shared-memory synchronization
// protocol: a framed request/response transaction format exchanged over a
// byte-stream link to keep a host-side [Image] loosely consistent with the
// same flat memory region mirrored on a microcontroller.
//
// # Architecture
//
// The package is organized around a small number of cooperating pieces:
//
//   - [Header] and the checksum helpers implement the 4-byte transaction
//     header and its wire encoding (frame codec).
//   - [Image] is the flat, fixed-size byte region addressed by every
//     transaction, plus the family of embedded ring buffers bound to it.
//   - [TryHandleOne] is the single entry point that services one in-flight
//     frame, whether it is an outbound request's matching response or an
//     inbound request from the peer. The same function runs on both ends
//     of the link; only the transport differs.
//   - [Pending] tracks requests this side has sent and is still awaiting
//     responses for.
//   - [Session] is the flow/flush driver: it exposes the user-facing verbs
//     (DelayRead, DelayWrite, Flush, WaitAll, ...) and owns the single
//     mutex that serializes all access to one session.
//
// # Zero-Allocation Bookkeeping
//
// Like the USB stack this package is descended from, [Image] and [Pending]
// allocate their backing arrays once at construction and never resize; the hot path (TryHandleOne) allocates nothing beyond what a
// single transaction's payload slice requires.
//
// # Example
//
//	img := softio.NewImage(softio.DefaultFifoLengths())
//	sess := softio.NewSession(img, port, softio.NoopCallbacks{})
//	if err := sess.Open(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	if err := sess.WriteGPIO(ctx, 0xA5); err != nil {
//	    log.Fatal(err)
//	}
package softio
