package softio

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestPending_ReserveCommitAdvance(t *testing.T) {
	var mu sync.Mutex
	p := NewPending(&mu, 4)

	mu.Lock()
	defer mu.Unlock()

	for i := 0; i < 4; i++ {
		tr, err := p.Reserve(context.Background())
		if err != nil {
			t.Fatalf("Reserve: %v", err)
		}
		tr.Request = Header{Type: TypeWrite, Addr: uint32(i)}
		p.Commit()
	}
	if !p.Full() {
		t.Fatal("queue should be full after filling to capacity")
	}
	if p.Count() != 4 {
		t.Fatalf("Count() = %d, want 4", p.Count())
	}

	for i := 0; i < 4; i++ {
		head, ok := p.Head()
		if !ok {
			t.Fatalf("Head() at i=%d: not ok", i)
		}
		if head.Request.Addr != uint32(i) {
			t.Fatalf("Head().Request.Addr = %d, want %d", head.Request.Addr, i)
		}
		p.Advance()
	}
	if !p.Empty() {
		t.Fatal("queue should be empty after draining")
	}
}

func TestPending_ReserveBlocksUntilAdvance(t *testing.T) {
	var mu sync.Mutex
	p := NewPending(&mu, 1)

	mu.Lock()
	tr, err := p.Reserve(context.Background())
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	tr.Request = Header{Type: TypeWrite}
	p.Commit()
	mu.Unlock()

	unblocked := make(chan struct{})
	go func() {
		mu.Lock()
		defer mu.Unlock()
		_, err := p.Reserve(context.Background())
		if err != nil {
			t.Errorf("Reserve: %v", err)
		}
		close(unblocked)
	}()

	select {
	case <-unblocked:
		t.Fatal("Reserve returned before the queue had room")
	case <-time.After(20 * time.Millisecond):
	}

	mu.Lock()
	p.Advance()
	mu.Unlock()

	select {
	case <-unblocked:
	case <-time.After(time.Second):
		t.Fatal("Reserve did not unblock after Advance")
	}
}

func TestPending_ReserveRespectsContextCancellation(t *testing.T) {
	var mu sync.Mutex
	p := NewPending(&mu, 1)

	mu.Lock()
	tr, err := p.Reserve(context.Background())
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	tr.Request = Header{Type: TypeWrite}
	p.Commit()
	mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		mu.Lock()
		defer mu.Unlock()
		_, err := p.Reserve(ctx)
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Fatalf("Reserve err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Reserve did not return after context cancellation")
	}
}

func TestPending_HeadOnEmpty(t *testing.T) {
	var mu sync.Mutex
	p := NewPending(&mu, 4)
	mu.Lock()
	defer mu.Unlock()
	if _, ok := p.Head(); ok {
		t.Fatal("Head() on empty queue should report false")
	}
}
