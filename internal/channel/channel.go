// Package channel implements the transport named in spec §2/§6: discrete
// request/response frames exchanged between the orchestrator and a
// worker. Two implementations are provided — a shared-memory ring buffer
// for in-process workers (goroutines sharing an address space) and a
// NATS-backed message-pass fallback for distributed workers, grounded on
// the teacher's internal/messaging/nats package.
package channel

import "context"

// Frame is one request or response crossing the transport.
type Frame struct {
	RequestID int64
	Payload   []byte
	Buffers   [][]byte
}

// Channel is the transport contract the orchestrator dispatches over; it
// is symmetric; both sides Send and Recv.
type Channel interface {
	Send(ctx context.Context, f Frame) error
	Recv(ctx context.Context) (Frame, error)
	Close() error
}
