package link

import "context"

// Port is the byte-stream transport a SoftIO session sends and receives
// frames over. Implementations are free to be lossy about timing but must
// preserve byte order: SoftIO's transaction framing has no resync marker,
// so a dropped or reordered byte poisons the session.
type Port interface {
	// Gets reads into buf, blocking until at least one byte is available,
	// ctx is done, or the port is closed. It returns the number of bytes
	// read.
	Gets(ctx context.Context, buf []byte) (int, error)

	// Puts writes buf, blocking until every byte is accepted, ctx is done,
	// or the port is closed. It returns the number of bytes written.
	Puts(ctx context.Context, buf []byte) (int, error)

	// Close releases the underlying transport. Gets and Puts return an
	// error after Close returns.
	Close() error
}
