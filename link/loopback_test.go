package link

import (
	"context"
	"testing"
	"time"
)

func TestLoopback_RoundTrip(t *testing.T) {
	a, b := NewLoopback()
	defer a.Close()
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() {
		a.Puts(ctx, []byte("hello"))
	}()

	buf := make([]byte, 5)
	n, err := b.Gets(ctx, buf)
	if err != nil {
		t.Fatalf("Gets: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("Gets = %q, want %q", buf[:n], "hello")
	}
}

func TestLoopback_Bidirectional(t *testing.T) {
	a, b := NewLoopback()
	defer a.Close()
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() {
		b.Puts(ctx, []byte("pong"))
	}()
	buf := make([]byte, 4)
	if _, err := a.Gets(ctx, buf); err != nil {
		t.Fatalf("a.Gets: %v", err)
	}
	if string(buf) != "pong" {
		t.Fatalf("a.Gets = %q, want %q", buf, "pong")
	}
}

func TestLoopback_GetsRespectsContext(t *testing.T) {
	a, b := NewLoopback()
	defer a.Close()
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	buf := make([]byte, 4)
	_, err := a.Gets(ctx, buf)
	if err != context.DeadlineExceeded {
		t.Fatalf("Gets err = %v, want context.DeadlineExceeded", err)
	}
}
