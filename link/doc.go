// Package link defines the byte-stream transport a SoftIO session runs
// over, plus a couple of in-process implementations useful for testing:
// an [io.Pipe]-backed loopback and a wrapper that fragments writes into
// small chunks to exercise a session's partial-frame handling.
//
// Production transports (a serial port, a USB CDC-ACM endpoint, a TCP
// socket) implement [Port] themselves; this package does not provide one,
// since talking to real hardware is inherently platform-specific.
package link
