package gopool

import "time"

// defaultAffinityTTL bounds how long an affinity binding steers tasks to
// the same worker before it is free to drift again (§3).
const defaultAffinityTTL = 5 * time.Minute

// submitTaskLocked places t on the admission structure appropriate to the
// pool's selection mode. Callers must hold dispatchMu.
func (p *Pool) submitTaskLocked(t *Task) {
	if p.scheduler != nil {
		if t.PreferredWorker < 0 && t.AffinityKey != "" {
			if idx, ok := p.affinity.Lookup(t.AffinityKey); ok {
				t.PreferredWorker = idx
			}
		}
		p.scheduler.Submit(t)
		return
	}
	p.q.Push(t)
}

// armDispatch schedules one dispatch pass. It is safe to call from any
// goroutine and any number of times; passes are idempotent no-ops once
// nothing can make further progress.
func (p *Pool) armDispatch() {
	go p.dispatchOnce()
}

// dispatchOnce matches as many idle workers to queued or stealable tasks
// as it can in a single locked pass (§4.1's dispatch loop, §4.3's
// central/distributed selection split).
func (p *Pool) dispatchOnce() {
	p.dispatchMu.Lock()
	defer p.dispatchMu.Unlock()

	if p.terminated {
		return
	}
	if p.scheduler != nil {
		p.dispatchDistributedLocked()
		return
	}
	p.dispatchCentralLocked()
}

// dispatchCentralLocked pops tasks in queue order and binds each to the
// lowest-indexed idle worker via the WorkerBitmap, spawning a new worker
// on demand when none is idle and capacity remains (§4.3 central mode:
// "if none and workers.len < max_workers, spawn a new one ... and return
// it").
func (p *Pool) dispatchCentralLocked() {
	for {
		widx := p.idleBitmap.FindFirstIdle()
		if widx < 0 {
			if p.q.Size() == 0 {
				return
			}
			widx = p.spawnIdleWorkerLocked()
			if widx < 0 {
				return
			}
		}
		item, ok := p.q.Pop()
		if !ok {
			return
		}
		t := item.(*Task)
		if !t.Resolver().IsPending() {
			// Settled (timed out or cancelled) while queued; drop silently
			// and keep draining — does not consume a worker slot.
			continue
		}
		p.idleBitmap.ClearIdle(widx)
		p.bindLocked(widx, t)
	}
}

// spawnIdleWorkerLocked brings up the next not-yet-created worker slot and
// returns its index, or -1 once every slot up to max_workers is live.
func (p *Pool) spawnIdleWorkerLocked() int {
	for i, w := range p.workers {
		if w == nil {
			p.spawnWorkerLocked(i)
			return i
		}
	}
	return -1
}

// dispatchDistributedLocked lets every idle worker pull from its own
// deque first (owner LIFO, cache-warm), then steal from a victim chosen
// by the configured policy, then attempt an imbalance-triggered batch
// steal to redistribute load before giving up for this pass (§4.3). Each
// worker's deque exists from construction regardless of whether the
// worker itself has been spawned yet, so a worker slot that is still nil
// is brought up on demand the moment its own deque holds work — the
// distributed-mode counterpart of dispatchCentralLocked's on-demand
// spawn.
func (p *Pool) dispatchDistributedLocked() {
	for i := range p.workers {
		w := p.workers[i]
		if w == nil {
			if p.scheduler.Deque(i).Size() == 0 {
				continue
			}
			w = p.spawnWorkerLocked(i)
		} else if !w.IsIdle() {
			continue
		}

		d := p.scheduler.Deque(i)
		item, ok := d.PopBottom()
		if !ok {
			item, _, ok = p.scheduler.TrySteal(i)
		}
		if !ok {
			for _, stolen := range p.scheduler.TryBatchSteal(i) {
				d.PushBottom(stolen)
			}
			continue
		}

		t := item.(*Task)
		if !t.Resolver().IsPending() {
			continue
		}
		p.bindLocked(w.Index, t)
	}
}

// bindLocked hands t to worker widx. Callers must hold dispatchMu.
func (p *Pool) bindLocked(widx int, t *Task) {
	w := p.workers[widx]
	if w == nil {
		p.submitTaskLocked(t)
		return
	}
	p.metrics.RecordTaskDequeued(time.Since(t.SubmitTime))
	t.Resolver().ArmQueuedTimeout()
	if !w.Assign(p.ctx, t, p.exec, p.onSettle) {
		p.submitTaskLocked(t)
	}
}

// onSettle is the completion continuation run (from WorkerHandle.Assign's
// goroutine, never holding dispatchMu) once a task's Executor.Invoke call
// returns. It implements the retry policy (§4.1.1), feeds the circuit
// breaker and affinity router, releases the memory guard, and emits the
// terminal event before resolving the caller's PendingResult.
func (p *Pool) onSettle(w *WorkerHandle, t *Task, result any, err error) {
	duration := time.Since(t.SubmitTime)
	success := err == nil

	if p.breaker != nil {
		if success {
			p.breaker.RecordSuccess()
		} else {
			p.breaker.RecordFailure()
		}
	}
	if t.TaskType != "" {
		p.affinity.RecordObservation(w.Index, t.TaskType, duration, success)
	}
	if t.AffinityKey != "" && success {
		p.affinity.Bind(t.AffinityKey, w.Index, defaultAffinityTTL)
	}
	p.metrics.RecordTaskSettled(w.Index, duration, success, string(KindOf(err)))

	if !success {
		p.handleFailure(w, t, err, duration)
		return
	}

	p.memGuard.Release(t.EstimatedSize)
	p.events.emit(Event{
		Name: EventTaskComplete, Ts: time.Now(), TaskID: t.TaskID,
		WorkerIndex: w.Index, Result: result, DurationMs: duration.Milliseconds(),
	})
	t.Resolver().Resolve(result)
	p.rearmAfterSettle(w)
}

func (p *Pool) handleFailure(w *WorkerHandle, t *Task, err error, duration time.Duration) {
	kind := KindOf(err)
	retryCfg := effectiveRetry(p.opts.Retry, t.RetryOverrides)

	if delay, retry := shouldRetry(retryCfg, t.Attempt, kind); retry {
		t.Attempt++
		p.events.emit(Event{
			Name: EventRetry, Ts: time.Now(), TaskID: t.TaskID, WorkerIndex: w.Index,
			Attempt: t.Attempt, MaxRetries: retryCfg.MaxRetries, Err: err,
		})
		time.AfterFunc(delay, func() {
			p.dispatchMu.Lock()
			p.submitTaskLocked(t)
			p.dispatchMu.Unlock()
			p.armDispatch()
		})
		p.rearmAfterSettle(w)
		return
	}

	p.memGuard.Release(t.EstimatedSize)
	p.events.emit(Event{
		Name: EventTaskError, Ts: time.Now(), TaskID: t.TaskID, WorkerIndex: w.Index,
		Err: err, DurationMs: duration.Milliseconds(),
	})
	t.Resolver().Reject(err)
	p.rearmAfterSettle(w)
}

// rearmAfterSettle returns the worker to the idle bitmap in central mode
// (distributed mode has no bitmap to update — idleness is read directly
// off WorkerHandle.State) and triggers another dispatch pass.
func (p *Pool) rearmAfterSettle(w *WorkerHandle) {
	if p.scheduler == nil {
		p.dispatchMu.Lock()
		if w.IsIdle() {
			p.idleBitmap.SetIdle(w.Index)
		}
		p.dispatchMu.Unlock()
	}
	p.armDispatch()
}
