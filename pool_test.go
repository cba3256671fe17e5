package gopool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"gopool/internal/circuit"

	"go.uber.org/zap"
)

type stubExecutor struct {
	invoke func(ctx context.Context, method string, params []any) (any, error)
}

func (s stubExecutor) Invoke(ctx context.Context, method string, params []any) (any, error) {
	return s.invoke(ctx, method, params)
}

func echoExec() stubExecutor {
	return stubExecutor{invoke: func(ctx context.Context, method string, params []any) (any, error) {
		return params, nil
	}}
}

func newTestPool(t *testing.T, opts Options, exec Executor) *Pool {
	t.Helper()
	p, err := New(opts, exec, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestExecResolvesResult(t *testing.T) {
	opts := DefaultOptions()
	opts.EagerInit = true
	p := newTestPool(t, opts, echoExec())

	r, err := p.Exec(context.Background(), "echo", []any{1, 2}, ExecOptions{})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	res := r.Wait()
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
}

func TestExecSurfacesExecutorError(t *testing.T) {
	exec := stubExecutor{invoke: func(ctx context.Context, method string, params []any) (any, error) {
		return nil, errors.New("boom")
	}}
	opts := DefaultOptions()
	opts.EagerInit = true
	p := newTestPool(t, opts, exec)

	r, err := p.Exec(context.Background(), "anything", nil, ExecOptions{})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	res := r.Wait()
	if res.Err == nil {
		t.Fatal("expected an error")
	}
}

func TestExecRetriesUntilSuccess(t *testing.T) {
	var attempts int64
	exec := stubExecutor{invoke: func(ctx context.Context, method string, params []any) (any, error) {
		n := atomic.AddInt64(&attempts, 1)
		if n < 3 {
			return nil, errors.New("transient")
		}
		return "ok", nil
	}}
	opts := DefaultOptions()
	opts.EagerInit = true
	opts.Retry.MaxRetries = 5
	opts.Retry.RetryDelay = time.Millisecond
	opts.Retry.BackoffMultiplier = 1
	p := newTestPool(t, opts, exec)

	r, err := p.Exec(context.Background(), "flaky", nil, ExecOptions{})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	res := r.Wait()
	if res.Err != nil {
		t.Fatalf("expected eventual success, got %v", res.Err)
	}
	if atomic.LoadInt64(&attempts) != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecRejectsWhenQueueFull(t *testing.T) {
	blocked := make(chan struct{})
	exec := stubExecutor{invoke: func(ctx context.Context, method string, params []any) (any, error) {
		<-blocked
		return "ok", nil
	}}
	opts := DefaultOptions()
	opts.MaxWorkers = 1
	opts.EagerInit = true
	opts.MaxQueueSize = 1
	p := newTestPool(t, opts, exec)
	defer close(blocked)

	// First task occupies the only worker; wait for dispatch to bind it
	// before relying on queue-depth timing for the rest of the test.
	if _, err := p.Exec(context.Background(), "x", nil, ExecOptions{}); err != nil {
		t.Fatalf("first exec: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for p.Stats().BusyWorkers != 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if _, err := p.Exec(context.Background(), "x", nil, ExecOptions{}); err != nil {
		t.Fatalf("second exec: %v", err)
	}
	_, err := p.Exec(context.Background(), "x", nil, ExecOptions{})
	if err == nil || KindOf(err) != KindQueueFull {
		t.Fatalf("expected QueueFullError, got %v", err)
	}
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	exec := stubExecutor{invoke: func(ctx context.Context, method string, params []any) (any, error) {
		return nil, errors.New("always fails")
	}}
	opts := DefaultOptions()
	opts.EagerInit = true
	opts.Circuit.Enabled = true
	opts.Circuit.ErrorThreshold = 2
	opts.Circuit.ResetTimeout = time.Hour
	p := newTestPool(t, opts, exec)

	for i := 0; i < 2; i++ {
		r, err := p.Exec(context.Background(), "x", nil, ExecOptions{})
		if err != nil {
			t.Fatalf("exec %d: %v", i, err)
		}
		r.Wait()
	}

	deadline := time.Now().Add(time.Second)
	for p.Stats().CircuitState != circuit.Open && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	_, err := p.Exec(context.Background(), "x", nil, ExecOptions{})
	if err == nil || KindOf(err) != KindCircuitBreaker {
		t.Fatalf("expected CircuitBreakerError once open, got %v", err)
	}
}

func TestMinWorkersSpawnedEagerly(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxWorkers = 4
	opts.MinWorkers = 2
	p := newTestPool(t, opts, echoExec())

	if stats := p.Stats(); stats.TotalWorkers != 2 {
		t.Fatalf("expected 2 workers from min_workers at construction, got %d", stats.TotalWorkers)
	}
}

func TestStatsReflectsWorkerCount(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxWorkers = 3
	opts.EagerInit = true
	p := newTestPool(t, opts, echoExec())

	stats := p.Stats()
	if stats.TotalWorkers != 3 {
		t.Errorf("expected 3 workers, got %d", stats.TotalWorkers)
	}
}

func TestTerminateRejectsQueuedTasks(t *testing.T) {
	exec := stubExecutor{invoke: func(ctx context.Context, method string, params []any) (any, error) {
		if method == "__probe__" {
			return nil, nil
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	opts := DefaultOptions()
	opts.MaxWorkers = 1
	opts.EagerInit = true
	p := newTestPool(t, opts, exec)

	// The first task occupies the only worker, so the second stays queued.
	if _, err := p.Exec(context.Background(), "block", nil, ExecOptions{}); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for p.Stats().BusyWorkers != 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	queued, err := p.Exec(context.Background(), "block", nil, ExecOptions{})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}

	if err := p.Terminate(true, time.Second); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	if res := queued.Wait(); KindOf(res.Err) != KindTermination {
		t.Fatalf("expected queued task rejected with TerminationError, got %v", res.Err)
	}

	_, err = p.Exec(context.Background(), "x", nil, ExecOptions{})
	if err == nil || KindOf(err) != KindTermination {
		t.Fatalf("expected TerminationError after Terminate, got %v", err)
	}
}

func TestTerminateClearsWorkerCount(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxWorkers = 3
	opts.EagerInit = true
	p := newTestPool(t, opts, echoExec())

	if stats := p.Stats(); stats.TotalWorkers != 3 {
		t.Fatalf("expected 3 workers before terminate, got %d", stats.TotalWorkers)
	}
	if err := p.Terminate(false, time.Second); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	if stats := p.Stats(); stats.TotalWorkers != 0 {
		t.Fatalf("expected 0 workers after terminate, got %d", stats.TotalWorkers)
	}
}

// TestExecSpawnsWorkerOnDemandCentral exercises the default, non-eager pool
// (EagerInit defaults to false): no worker exists until dispatch needs one,
// so a submitted task must still settle without the caller ever calling
// Warmup.
func TestExecSpawnsWorkerOnDemandCentral(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxWorkers = 2
	p := newTestPool(t, opts, echoExec())

	if stats := p.Stats(); stats.TotalWorkers != 0 {
		t.Fatalf("expected 0 workers before first exec, got %d", stats.TotalWorkers)
	}

	r, err := p.Exec(context.Background(), "echo", []any{"x"}, ExecOptions{})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	res := r.Wait()
	if res.Err != nil {
		t.Fatalf("expected success, got %v", res.Err)
	}
}

// TestExecSpawnsWorkerOnDemandDistributed is the work-stealing counterpart:
// every per-worker deque exists from construction, but no WorkerHandle does
// until a task lands in its deque and dispatch spawns it on demand.
func TestExecSpawnsWorkerOnDemandDistributed(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxWorkers = 2
	opts.Selection = SelectionDistributed
	p := newTestPool(t, opts, echoExec())

	r, err := p.Exec(context.Background(), "echo", []any{"x"}, ExecOptions{})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	res := r.Wait()
	if res.Err != nil {
		t.Fatalf("expected success, got %v", res.Err)
	}
}
