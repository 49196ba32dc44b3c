package link

import "context"

// chunked wraps a Port, splitting every Puts into writes of at most size
// bytes. It is useful for tests that want to verify a session correctly
// handles a frame arriving split across several Gets calls.
type chunked struct {
	Port
	size int
}

// NewChunked wraps p so that outgoing writes are split into chunks of at
// most size bytes. size must be at least 1.
func NewChunked(p Port, size int) Port {
	if size < 1 {
		size = 1
	}
	return &chunked{Port: p, size: size}
}

func (c *chunked) Puts(ctx context.Context, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n := c.size
		if remain := len(buf) - total; n > remain {
			n = remain
		}
		written, err := c.Port.Puts(ctx, buf[total:total+n])
		total += written
		if err != nil {
			return total, err
		}
		if written == 0 {
			break
		}
	}
	return total, nil
}
