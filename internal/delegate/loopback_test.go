package delegate

import (
	"context"
	"testing"
	"time"
)

func TestLoopbackRoundTrip(t *testing.T) {
	a, b := NewLoopbackPair()
	ctx := context.Background()

	if _, err := a.Send(ctx, []byte("hello")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	buf := make([]byte, 16)
	outcome, err := b.Recv(ctx, buf)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if got := string(buf[:outcome.N]); got != "hello" {
		t.Errorf("expected %q, got %q", "hello", got)
	}
}

func TestLoopbackCloseUnblocksRecv(t *testing.T) {
	a, b := NewLoopbackPair()
	ctx := context.Background()
	done := make(chan RecvOutcome, 1)

	go func() {
		outcome, err := b.Recv(ctx, make([]byte, 4))
		if err != nil {
			t.Errorf("Recv: %v", err)
		}
		done <- outcome
	}()

	time.Sleep(10 * time.Millisecond)
	a.CloseLoopback()

	select {
	case outcome := <-done:
		if !outcome.Closed {
			t.Error("expected Recv to report Closed after close")
		}
	case <-time.After(time.Second):
		t.Fatal("Recv did not unblock after close")
	}
}
