// Package promise implements the cancelable result primitive described in
// spec §4.4 — a PendingResult that supports then/catch/finally, cancel, and
// a timeout whose timer is armed only once dispatch begins.
package promise

import (
	"sync"
	"time"
)

// State is the three-state lifecycle of a PendingResult.
type State int

const (
	Pending State = iota
	Fulfilled
	Rejected
)

// Result carries either a value or an error, never both.
type Result struct {
	Value any
	Err   error
}

// PendingResult is the caller-facing handle returned by exec(). It is safe
// for concurrent use.
type PendingResult struct {
	mu    sync.Mutex
	state State
	value any
	err   error

	// done is closed exactly once, when the handle settles.
	done chan struct{}

	thenHandlers []func(Result)

	// queuedTimerMs records a requested timeout while the task is still
	// queued; dispatch converts it into a live timer via ArmQueuedTimeout.
	queuedTimerMs int64
	timer         *time.Timer
	onTimeout     func()
	onCancel      func()
}

// New returns a fresh pending handle.
func New() *PendingResult {
	return &PendingResult{state: Pending, done: make(chan struct{})}
}

// Defer exposes a resolver split: a handle plus resolve/reject functions,
// for synthesising a handle outside New.
func Defer() (*PendingResult, func(any), func(error)) {
	p := New()
	return p, p.resolve, p.reject
}

func (p *PendingResult) IsPending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == Pending
}

func (p *PendingResult) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// OnSettleDispatchCancel registers the callback invoked when Cancel fires on
// a still-pending handle whose task is already running (i.e. a cancel frame
// must reach the worker). Registering is a no-op once settled.
func (p *PendingResult) OnSettleDispatchCancel(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onCancel = fn
}

func (p *PendingResult) resolve(v any) {
	p.mu.Lock()
	if p.state != Pending {
		p.mu.Unlock()
		return
	}
	p.state = Fulfilled
	p.value = v
	p.stopTimerLocked()
	handlers := p.thenHandlers
	p.thenHandlers = nil
	close(p.done)
	p.mu.Unlock()

	for _, h := range handlers {
		h(Result{Value: v})
	}
}

func (p *PendingResult) reject(err error) {
	p.mu.Lock()
	if p.state != Pending {
		p.mu.Unlock()
		return
	}
	p.state = Rejected
	p.err = err
	p.stopTimerLocked()
	handlers := p.thenHandlers
	p.thenHandlers = nil
	close(p.done)
	p.mu.Unlock()

	for _, h := range handlers {
		h(Result{Err: err})
	}
}

// Resolve and Reject are the exported forms used by the dispatcher.
func (p *PendingResult) Resolve(v any)    { p.resolve(v) }
func (p *PendingResult) Reject(err error) { p.reject(err) }

func (p *PendingResult) stopTimerLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// Then chains a fresh handle whose fate follows onOk/onErr's return value.
// If onOk/onErr is nil the value/error passes through unchanged.
func (p *PendingResult) Then(onOk func(any) (any, error), onErr func(error) (any, error)) *PendingResult {
	next := New()
	settle := func(r Result) {
		if r.Err == nil {
			if onOk == nil {
				next.resolve(r.Value)
				return
			}
			v, err := onOk(r.Value)
			if err != nil {
				next.reject(err)
			} else {
				next.resolve(v)
			}
			return
		}
		if onErr == nil {
			next.reject(r.Err)
			return
		}
		v, err := onErr(r.Err)
		if err != nil {
			next.reject(err)
		} else {
			next.resolve(v)
		}
	}

	p.mu.Lock()
	if p.state == Pending {
		p.thenHandlers = append(p.thenHandlers, settle)
		p.mu.Unlock()
	} else {
		state, value, err := p.state, p.value, p.err
		p.mu.Unlock()
		if state == Fulfilled {
			settle(Result{Value: value})
		} else {
			settle(Result{Err: err})
		}
	}
	return next
}

// Catch is sugar for Then(nil, onErr).
func (p *PendingResult) Catch(onErr func(error) (any, error)) *PendingResult {
	return p.Then(nil, onErr)
}

// Finally and Always both run fn once the handle settles, regardless of
// outcome; Always additionally receives the Result.
func (p *PendingResult) Finally(fn func()) *PendingResult {
	return p.Then(
		func(v any) (any, error) { fn(); return v, nil },
		func(err error) (any, error) { fn(); return nil, err },
	)
}

func (p *PendingResult) Always(fn func(Result)) *PendingResult {
	return p.Then(
		func(v any) (any, error) { fn(Result{Value: v}); return v, nil },
		func(err error) (any, error) { fn(Result{Err: err}); return nil, err },
	)
}

// Wait blocks until the handle settles and returns its terminal Result.
func (p *PendingResult) Wait() Result {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return Result{Value: p.value, Err: p.err}
}

// Done exposes the settlement channel for select-based waiting.
func (p *PendingResult) Done() <-chan struct{} { return p.done }

// Timeout arms a timer that calls onFire after ms milliseconds, replacing
// any earlier timer; it does nothing once the handle has settled. The timer
// starts immediately. For a task that is still queued, RequestQueuedTimeout
// only records the timeout, and dispatch starts it with ArmQueuedTimeout.
func (p *PendingResult) Timeout(ms int64, onFire func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Pending {
		return
	}
	p.stopTimerLocked()
	p.onTimeout = onFire
	p.timer = time.AfterFunc(time.Duration(ms)*time.Millisecond, func() {
		p.mu.Lock()
		fn := p.onTimeout
		p.mu.Unlock()
		if fn != nil {
			fn()
		}
	})
}

// RequestQueuedTimeout records a timeout duration without starting the
// timer; ArmQueuedTimeout starts it once dispatch begins (§4.4).
func (p *PendingResult) RequestQueuedTimeout(ms int64, onFire func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queuedTimerMs = ms
	p.onTimeout = onFire
}

// ArmQueuedTimeout starts the timer recorded by RequestQueuedTimeout, if
// any. A no-op if no queued timeout was requested or the handle already
// settled.
func (p *PendingResult) ArmQueuedTimeout() {
	p.mu.Lock()
	ms := p.queuedTimerMs
	fn := p.onTimeout
	pending := p.state == Pending
	p.mu.Unlock()
	if ms > 0 && fn != nil && pending {
		p.Timeout(ms, fn)
	}
}

// Cancel transitions a pending handle to rejected with cause. Fulfilled or
// rejected handles ignore Cancel. Returns true if the cancellation took
// effect.
func (p *PendingResult) Cancel(cause error) bool {
	p.mu.Lock()
	if p.state != Pending {
		p.mu.Unlock()
		return false
	}
	onCancel := p.onCancel
	p.mu.Unlock()

	if onCancel != nil {
		onCancel()
	}
	p.reject(cause)
	return true
}
