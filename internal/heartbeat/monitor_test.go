package heartbeat

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestMarksUnresponsiveAfterMaxMissed(t *testing.T) {
	var unresponsiveCalls int32
	prober := func(ctx context.Context, workerIndex int, requestID int64) error {
		return errors.New("no reply")
	}
	m := New(nil, 5*time.Millisecond, 2*time.Millisecond, 2, ActionWarn, prober)
	m.OnUnresponsive(func(workerIndex int, action Action) {
		atomic.AddInt32(&unresponsiveCalls, 1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Register(ctx, 0)

	deadline := time.After(200 * time.Millisecond)
	for atomic.LoadInt32(&unresponsiveCalls) == 0 {
		select {
		case <-deadline:
			t.Fatal("expected worker to be marked unresponsive")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if !m.IsUnresponsive(0) {
		t.Fatal("expected IsUnresponsive to report true")
	}
}

func TestRecoversAfterSuccessfulProbe(t *testing.T) {
	var failing int32 = 1
	prober := func(ctx context.Context, workerIndex int, requestID int64) error {
		if atomic.LoadInt32(&failing) == 1 {
			return errors.New("no reply")
		}
		return nil
	}
	var recovered int32
	m := New(nil, 5*time.Millisecond, 2*time.Millisecond, 1, ActionWarn, prober)
	m.OnRecovered(func(workerIndex int) { atomic.AddInt32(&recovered, 1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Register(ctx, 0)

	deadline := time.After(200 * time.Millisecond)
	for !m.IsUnresponsive(0) {
		select {
		case <-deadline:
			t.Fatal("expected unresponsive state first")
		case <-time.After(5 * time.Millisecond):
		}
	}

	atomic.StoreInt32(&failing, 0)
	deadline = time.After(200 * time.Millisecond)
	for atomic.LoadInt32(&recovered) == 0 {
		select {
		case <-deadline:
			t.Fatal("expected recovery callback")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
