package channel

import (
	"context"
	"testing"
	"time"
)

func TestRingSendRecvRoundTrip(t *testing.T) {
	r := NewRing(4)
	ctx := context.Background()

	want := Frame{RequestID: 1, Payload: []byte("hello")}
	if err := r.Send(ctx, want); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	got, err := r.Recv(ctx)
	if err != nil {
		t.Fatalf("recv failed: %v", err)
	}
	if got.RequestID != want.RequestID || string(got.Payload) != string(want.Payload) {
		t.Fatalf("round trip mismatch: got %+v", got)
	}
}

func TestRingRecvRespectsContextCancellation(t *testing.T) {
	r := NewRing(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := r.Recv(ctx); err == nil {
		t.Fatal("expected context deadline error on empty ring")
	}
}

func TestRingCloseUnblocksRecv(t *testing.T) {
	r := NewRing(1)
	r.Close()

	if _, err := r.Recv(context.Background()); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := r.Send(context.Background(), Frame{}); err != ErrClosed {
		t.Fatalf("expected ErrClosed on send, got %v", err)
	}
}
