// Package gopool is the Pool Orchestrator of spec §4.1: admission,
// retries, circuit breaking, memory accounting, event emission, and
// graceful shutdown over a managed set of worker contexts. Grounded on
// the teacher's internal/worker/pool.go bounded dispatch loop,
// generalized from a fixed SMS sender to an arbitrary registered-method
// or serialized-function executor.
package gopool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gopool/internal/bitmap"
	"gopool/internal/circuit"
	"gopool/internal/heartbeat"
	"gopool/internal/metricscore"
	"gopool/internal/promise"
	"gopool/internal/queue"
	"gopool/internal/session"
	"gopool/internal/stealing"

	"go.uber.org/zap"
)

// Stats is the snapshot returned by Pool.Stats() (§4.1).
type Stats struct {
	TotalWorkers        int
	BusyWorkers         int
	IdleWorkers         int
	PendingTasks        int
	ActiveTasks         int
	CircuitState        circuit.State
	EstimatedQueueMemory int64
}

// Pool is the orchestrator. All admission/dispatch state transitions are
// serialised through dispatchMu, mirroring the spec's single-threaded
// executor model even though workers themselves run in parallel.
type Pool struct {
	opts   Options
	exec   Executor
	logger *zap.Logger

	taskIDs taskIDAllocator
	events  *emitter

	dispatchMu sync.Mutex
	q          queue.Strategy
	workers    []*WorkerHandle
	idleBitmap *bitmap.WorkerBitmap
	scheduler  *stealing.Scheduler
	affinity   *stealing.AffinityRouter

	memGuard *memoryGuard
	breaker  *circuit.Breaker
	metrics  *metricscore.Collector
	heart    *heartbeat.Monitor
	sessions *session.Manager

	readyCh chan struct{}
	readyOnce sync.Once

	ctx    context.Context
	cancel context.CancelFunc

	terminateOnce sync.Once
	terminated    bool
}

// New constructs a Pool around exec. Options are validated synchronously
// (§4.1's "bad types fail synchronously").
func New(opts Options, exec Executor, logger *zap.Logger) (*Pool, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	priorityOf := func(v any) int { return v.(*Task).Priority }
	var qKind queue.Kind
	switch opts.QueueKind {
	case QueueLIFO:
		qKind = queue.KindLIFO
	case QueuePriority:
		qKind = queue.KindPriority
	default:
		qKind = queue.KindFIFO
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		opts:       opts,
		exec:       exec,
		logger:     logger,
		events:     newEmitter(),
		q:          queue.New(qKind, priorityOf),
		idleBitmap: bitmap.New(),
		affinity:   stealing.NewAffinityRouter(opts.AffinityMaxEntries),
		memGuard:   newMemoryGuard(opts.MaxQueueMemory, opts.OnMemoryPressure),
		metrics:    metricscore.New(nil, time.Minute),
		sessions:   session.NewManager(),
		readyCh:    make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}

	if opts.Selection == SelectionDistributed {
		p.scheduler = stealing.NewScheduler(opts.MaxWorkers, opts.StealPolicy)
	}

	if opts.Circuit.Enabled {
		p.breaker = circuit.New(circuit.Config{
			Enabled:          true,
			ErrorThreshold:   opts.Circuit.ErrorThreshold,
			ResetTimeout:     opts.Circuit.ResetTimeout,
			HalfOpenRequests: opts.Circuit.HalfOpenRequests,
		}, logger)
		p.breaker.OnTransition(
			func() { p.events.emit(Event{Name: EventCircuitOpen, Ts: time.Now()}) },
			func() { p.events.emit(Event{Name: EventCircuitClose, Ts: time.Now()}) },
			func() { p.events.emit(Event{Name: EventCircuitHalfOpen, Ts: time.Now()}) },
		)
	}

	p.workers = make([]*WorkerHandle, opts.MaxWorkers)

	if opts.Health.Enabled {
		p.heart = heartbeat.New(slog.Default(), opts.Health.Interval, opts.Health.Timeout, opts.Health.MaxMissed, opts.Health.Action, p.probeWorker)
		p.heart.OnUnresponsive(p.onWorkerUnresponsive)
	}

	if opts.MinWorkers > 0 {
		if err := p.Warmup(ctx, opts.MinWorkers); err != nil {
			cancel()
			return nil, err
		}
	}
	if opts.EagerInit {
		if err := p.Warmup(ctx, opts.MaxWorkers); err != nil {
			cancel()
			return nil, err
		}
	}
	p.readyOnce.Do(func() { close(p.readyCh) })

	if opts.DispatchTickInterval > 0 {
		go p.dispatchTickLoop(opts.DispatchTickInterval)
	}

	return p, nil
}

// dispatchTickLoop is a defensive re-scan run on DispatchTickInterval,
// alongside the event-driven armDispatch calls: every state transition that
// can unblock dispatch (settlement, worker spawn, retry resubmission,
// memory release) already re-arms it directly, but the tick gives the pool
// a bounded recovery path if a future caller of submitTaskLocked ever
// forgets to call armDispatch.
func (p *Pool) dispatchTickLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.dispatchOnce()
		}
	}
}

// Ready is fulfilled once eager-init probes complete, or immediately
// after construction when not eager (§4.1).
func (p *Pool) Ready() <-chan struct{} { return p.readyCh }

// Exec submits one task (§4.1's exec()).
func (p *Pool) Exec(ctx context.Context, method string, params []any, opts ExecOptions) (*PendingResult, error) {
	p.dispatchMu.Lock()
	if p.terminated {
		p.dispatchMu.Unlock()
		return nil, newErr(KindTermination, "pool has been terminated", nil)
	}

	if p.breaker != nil && !p.breaker.Allow() {
		p.dispatchMu.Unlock()
		return nil, newErr(KindCircuitBreaker, "circuit breaker is open", nil)
	}

	if p.q.Size() >= p.opts.MaxQueueSize {
		p.dispatchMu.Unlock()
		p.events.emit(Event{Name: EventQueueFull, Ts: time.Now(), PendingTasks: p.q.Size(), MaxPending: p.opts.MaxQueueSize})
		return nil, newErr(KindQueueFull, "queue.size >= max_queue_size", nil)
	}
	p.dispatchMu.Unlock()

	if err := p.memGuard.Admit(ctx, opts.EstimatedSize); err != nil {
		return nil, err
	}

	resolver := promise.New()
	id := p.taskIDs.next_()
	t := newTask(id, method, params, opts, resolver)

	resolver.RequestQueuedTimeout(opts.TimeoutMs, func() {
		resolver.Reject(newErr(KindTimeout, fmt.Sprintf("task %d timed out after %dms", id, opts.TimeoutMs), nil))
	})

	p.dispatchMu.Lock()
	p.metrics.RecordTaskEnqueued()
	p.submitTaskLocked(t)
	p.dispatchMu.Unlock()

	p.events.emit(Event{Name: EventTaskStart, Ts: time.Now(), TaskID: id, Method: method})
	p.armDispatch()

	return resolver, nil
}

// On/Off/Once wire the event system (§6).
func (p *Pool) On(name EventName, handler func(Event)) int64   { return p.events.on(name, handler) }
func (p *Pool) Once(name EventName, handler func(Event)) int64 { return p.events.once(name, handler) }
func (p *Pool) Off(name EventName, id int64)                   { p.events.off(name, id) }

// Warmup force-spawns workers up to count, resolving once each has
// answered a trivial probe (§4.1).
func (p *Pool) Warmup(ctx context.Context, count int) error {
	p.dispatchMu.Lock()
	if count > len(p.workers) {
		count = len(p.workers)
	}
	var toSpawn []int
	for i := 0; i < count; i++ {
		if p.workers[i] == nil {
			toSpawn = append(toSpawn, i)
		}
	}
	p.dispatchMu.Unlock()

	for _, i := range toSpawn {
		if err := p.spawnWorker(ctx, i); err != nil {
			return err
		}
		if _, err := p.exec.Invoke(ctx, "__probe__", nil); err != nil {
			p.logger.Debug("warmup probe failed, worker still admitted", zap.Int("worker", i), zap.Error(err))
		}
	}
	return nil
}

func (p *Pool) spawnWorker(ctx context.Context, index int) error {
	p.dispatchMu.Lock()
	defer p.dispatchMu.Unlock()
	p.spawnWorkerLocked(index)
	return nil
}

// spawnWorkerLocked is the lock-held core of spawnWorker, reusable from the
// dispatch path (dispatchCentralLocked/dispatchDistributedLocked), which
// already holds dispatchMu and would deadlock calling spawnWorker directly.
func (p *Pool) spawnWorkerLocked(index int) *WorkerHandle {
	if w := p.workers[index]; w != nil {
		return w
	}
	w := newWorkerHandle(index)
	w.setState(WorkerIdle)
	p.workers[index] = w
	p.idleBitmap.SetInitialized(index)
	p.idleBitmap.SetIdle(index)

	if p.heart != nil {
		p.heart.Register(p.ctx, index)
	}
	p.events.emit(Event{Name: EventWorkerSpawn, Ts: time.Now(), WorkerIndex: index})
	return w
}

func (p *Pool) probeWorker(ctx context.Context, workerIndex int, requestID int64) error {
	_, err := p.exec.Invoke(ctx, "__heartbeat__", []any{requestID})
	return err
}

func (p *Pool) onWorkerUnresponsive(workerIndex int, action heartbeat.Action) {
	p.events.emit(Event{Name: EventWorkerError, Ts: time.Now(), WorkerIndex: workerIndex, Action: string(action)})
	switch action {
	case heartbeat.ActionRemove:
		p.removeWorker(workerIndex)
	case heartbeat.ActionRestart:
		p.removeWorker(workerIndex)
		p.spawnWorker(p.ctx, workerIndex)
	}
}

func (p *Pool) removeWorker(index int) {
	p.dispatchMu.Lock()
	w := p.workers[index]
	if w != nil {
		w.Terminate()
		p.workers[index] = nil
		p.idleBitmap.ClearIdle(index)
		p.idleBitmap.ClearInitialized(index)
	}
	p.dispatchMu.Unlock()

	p.sessions.WorkerLost(index)
	p.affinity.Forget(index)
	p.metrics.DropWorker(index)
	p.events.emit(Event{Name: EventWorkerExit, Ts: time.Now(), WorkerIndex: index})
	p.armDispatch()
}

// Stats returns the current snapshot (§4.1).
func (p *Pool) Stats() Stats {
	p.dispatchMu.Lock()
	defer p.dispatchMu.Unlock()

	var busy, idle, total int
	for _, w := range p.workers {
		if w == nil {
			continue
		}
		total++
		if w.IsBusy() {
			busy++
		} else if w.IsIdle() {
			idle++
		}
	}

	circuitState := circuit.Closed
	if p.breaker != nil {
		circuitState = p.breaker.State()
	}

	return Stats{
		TotalWorkers:         total,
		BusyWorkers:          busy,
		IdleWorkers:          idle,
		PendingTasks:         p.q.Size(),
		ActiveTasks:          busy,
		CircuitState:         circuitState,
		EstimatedQueueMemory: p.memGuard.Used(),
	}
}

// GetMetrics returns the metrics collector's snapshot (§4.6).
func (p *Pool) GetMetrics() metricscore.Snapshot { return p.metrics.Snapshot() }

// GetCapabilities reports a fixed list of operation names plus a flag for
// each optional feature this pool was built with (circuit_breaker,
// health_checks, work_stealing).
func (p *Pool) GetCapabilities() []string {
	caps := []string{"exec", "exec_batch", "map", "reduce", "filter", "forEach",
		"find", "findIndex", "count", "some", "every", "partition", "includes",
		"indexOf", "groupBy", "flatMap", "unique", "reduceRight", "warmup",
		"stats", "terminate", "get_metrics"}
	if p.breaker != nil {
		caps = append(caps, "circuit_breaker")
	}
	if p.heart != nil {
		caps = append(caps, "health_checks")
	}
	if p.scheduler != nil {
		caps = append(caps, "work_stealing")
	}
	return caps
}

// Terminate stops health probes, rejects every queued task (the central
// queue and, in distributed mode, each worker's deque) with
// TerminationError, and instructs workers to stop (§4.9). A pending
// circuit-breaker reset timer is not stopped and can still move the
// breaker to half-open afterwards.
func (p *Pool) Terminate(force bool, timeout time.Duration) error {
	var err error
	p.terminateOnce.Do(func() {
		p.dispatchMu.Lock()
		p.terminated = true
		if p.heart != nil {
			for i, w := range p.workers {
				if w != nil {
					p.heart.Unregister(i)
				}
			}
		}
		for {
			item, ok := p.q.Pop()
			if !ok {
				break
			}
			item.(*Task).Resolver().Reject(newErr(KindTermination, "pool is terminating", nil))
		}
		if p.scheduler != nil {
			for i := 0; i < p.scheduler.WorkerCount(); i++ {
				for {
					item, ok := p.scheduler.Deque(i).PopBottom()
					if !ok {
						break
					}
					item.(*Task).Resolver().Reject(newErr(KindTermination, "pool is terminating", nil))
				}
			}
		}
		workers := append([]*WorkerHandle(nil), p.workers...)
		p.dispatchMu.Unlock()

		deadline := time.Now().Add(timeout)
		for i, w := range workers {
			if w == nil {
				continue
			}
			if force {
				w.Interrupt()
			}
			for w.IsBusy() && time.Now().Before(deadline) {
				time.Sleep(time.Millisecond)
			}
			w.Terminate()

			// Clear the slot so Stats().TotalWorkers reflects the
			// post-terminate invariant (§8: total_workers == 0).
			p.dispatchMu.Lock()
			p.workers[i] = nil
			p.idleBitmap.ClearIdle(i)
			p.idleBitmap.ClearInitialized(i)
			p.dispatchMu.Unlock()
		}
		p.cancel()
	})
	return err
}
