package gopool

import (
	"context"
	"sync"
	"time"
)

// WorkerState mirrors §3's WorkerHandle state machine.
type WorkerState string

const (
	WorkerUninitialized WorkerState = "uninitialized"
	WorkerIdle          WorkerState = "idle"
	WorkerBusy          WorkerState = "busy"
	WorkerTerminating   WorkerState = "terminating"
)

// Executor is the concrete worker transport's entry point (explicitly out
// of scope per the orchestrator spec, consumed through this interface):
// it runs one method with its arguments and returns a result or error.
// WorkerHandle.Assign runs each call on a goroutine of its own, and the
// default in-process implementation (cmd/demo) calls the method directly
// there; a distributed implementation would instead
// forward the call over an internal/channel.Channel to a remote process.
type Executor interface {
	Invoke(ctx context.Context, method string, params []any) (any, error)
}

// WorkerHandle is one isolated execution context (§3). worker_index is
// dense and reused after removal, per the spec invariant.
type WorkerHandle struct {
	mu sync.Mutex

	Index         int
	state         WorkerState
	LastHeartbeat time.Time

	current *Task
	cancel  context.CancelFunc
}

func newWorkerHandle(index int) *WorkerHandle {
	return &WorkerHandle{Index: index, state: WorkerUninitialized}
}

func (w *WorkerHandle) State() WorkerState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *WorkerHandle) setState(s WorkerState) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

func (w *WorkerHandle) IsIdle() bool { return w.State() == WorkerIdle }
func (w *WorkerHandle) IsBusy() bool { return w.State() == WorkerBusy }

// Assign marks the worker busy and runs t on exec, reporting the outcome
// through onSettle. It enforces the "at most one Task assigned at any
// moment" invariant by refusing to assign onto a non-idle worker.
func (w *WorkerHandle) Assign(ctx context.Context, t *Task, exec Executor, onSettle func(w *WorkerHandle, t *Task, result any, err error)) bool {
	w.mu.Lock()
	if w.state != WorkerIdle && w.state != WorkerUninitialized {
		w.mu.Unlock()
		return false
	}
	taskCtx, cancel := context.WithCancel(ctx)
	w.state = WorkerBusy
	w.current = t
	w.cancel = cancel
	w.mu.Unlock()

	go func() {
		result, err := exec.Invoke(taskCtx, t.Method, t.Params)

		w.mu.Lock()
		w.state = WorkerIdle
		w.current = nil
		w.cancel = nil
		w.mu.Unlock()

		onSettle(w, t, result, err)
	}()
	return true
}

// Interrupt cancels the worker's in-flight task, if any (cooperative
// cancellation per §4.4).
func (w *WorkerHandle) Interrupt() {
	w.mu.Lock()
	cancel := w.cancel
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (w *WorkerHandle) CurrentTask() *Task {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

func (w *WorkerHandle) Terminate() {
	w.Interrupt()
	w.setState(WorkerTerminating)
}
