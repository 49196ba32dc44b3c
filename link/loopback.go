package link

import (
	"context"
	"io"
)

// pipePort adapts a pair of [io.Pipe] halves to [Port], making blocking
// reads and writes cancellable via context.
type pipePort struct {
	r *io.PipeReader
	w *io.PipeWriter
}

type ioResult struct {
	n   int
	err error
}

func (p *pipePort) Gets(ctx context.Context, buf []byte) (int, error) {
	ch := make(chan ioResult, 1)
	go func() {
		n, err := p.r.Read(buf)
		ch <- ioResult{n, err}
	}()
	select {
	case res := <-ch:
		return res.n, res.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (p *pipePort) Puts(ctx context.Context, buf []byte) (int, error) {
	ch := make(chan ioResult, 1)
	go func() {
		n, err := p.w.Write(buf)
		ch <- ioResult{n, err}
	}()
	select {
	case res := <-ch:
		return res.n, res.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (p *pipePort) Close() error {
	rErr := p.r.Close()
	wErr := p.w.Close()
	if rErr != nil {
		return rErr
	}
	return wErr
}

// NewLoopback returns a pair of connected, in-process ports: bytes written
// to a are readable from b, and bytes written to b are readable from a.
// It is meant for tests and demos that want a host session and a device
// session talking to each other without any real transport.
func NewLoopback() (a, b Port) {
	ar, aw := io.Pipe() // a reads here; the peer writes here
	br, bw := io.Pipe() // b reads here; the peer writes here

	a = &pipePort{r: ar, w: bw}
	b = &pipePort{r: br, w: aw}
	return a, b
}
