package batch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func items(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestRunAllSucceed(t *testing.T) {
	exec := func(ctx context.Context, index int, item any) (any, error) {
		return item.(int) * 2, nil
	}
	h := Run(context.Background(), items(5), exec, Options{Concurrency: 2})
	res := h.Wait()

	if !res.AllSucceeded || res.Successes != 5 || res.Failures != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	for i, s := range res.Slots {
		if !s.Success || s.Value.(int) != i*2 {
			t.Fatalf("slot %d mismatch: %+v", i, s)
		}
	}
}

func TestRunRespectsConcurrencyLimit(t *testing.T) {
	var active, maxActive int32
	exec := func(ctx context.Context, index int, item any) (any, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			m := atomic.LoadInt32(&maxActive)
			if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return nil, nil
	}
	h := Run(context.Background(), items(10), exec, Options{Concurrency: 3})
	h.Wait()
	if got := atomic.LoadInt32(&maxActive); got < 1 || got > 3 {
		t.Fatalf("expected between 1 and 3 concurrent executions, got %d", got)
	}
}

func TestFailFastCancelsRemaining(t *testing.T) {
	exec := func(ctx context.Context, index int, item any) (any, error) {
		if index == 0 {
			return nil, errors.New("boom")
		}
		select {
		case <-time.After(50 * time.Millisecond):
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	h := Run(context.Background(), items(5), exec, Options{Concurrency: 1, FailFast: true})
	res := h.Wait()

	if res.AllSucceeded {
		t.Fatal("expected failure to propagate")
	}
	if !res.Cancelled {
		t.Fatal("expected fail_fast to cancel the batch")
	}
}

func TestPauseGatesNewLaunches(t *testing.T) {
	var launched int32
	exec := func(ctx context.Context, index int, item any) (any, error) {
		atomic.AddInt32(&launched, 1)
		time.Sleep(5 * time.Millisecond)
		return nil, nil
	}
	h := Run(context.Background(), items(3), exec, Options{Concurrency: 1})
	h.Pause()
	if !h.IsPaused() {
		t.Fatal("expected handle to report paused")
	}
	// A launch already past the pause check may still start; after that
	// the count stays fixed until Resume.
	time.Sleep(20 * time.Millisecond)
	before := atomic.LoadInt32(&launched)
	time.Sleep(20 * time.Millisecond)
	if after := atomic.LoadInt32(&launched); after != before {
		t.Fatalf("expected no launches while paused, got %d then %d", before, after)
	}
	h.Resume()
	res := h.Wait()
	if res.Successes != 3 {
		t.Fatalf("expected all 3 to eventually complete, got %+v", res)
	}
}

func TestProgressCallbackReceivesFinalCompletion(t *testing.T) {
	var last Progress
	exec := func(ctx context.Context, index int, item any) (any, error) {
		return nil, nil
	}
	h := Run(context.Background(), items(4), exec, Options{
		Concurrency:      2,
		OnProgress:       func(p Progress) { last = p },
		ProgressThrottle: time.Millisecond,
	})
	h.Wait()

	if last.Completed != 4 || last.Total != 4 {
		t.Fatalf("expected final progress to report completion, got %+v", last)
	}
}
