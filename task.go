package gopool

import (
	"sync/atomic"
	"time"

	"gopool/internal/promise"
)

// PendingResult is the root-package alias for the promise package's
// pending-result handle, so callers of exec() never need to import
// internal/promise directly.
type PendingResult = promise.PendingResult

// RunMethod is the reserved method name under which a serialized function
// body is re-hosted on a worker, per §3.
const RunMethod = "run"

// taskIDAllocator hands out monotonically increasing, pool-scoped task IDs.
// Never reused, per the Task invariant in §3.
type taskIDAllocator struct{ next int64 }

func (a *taskIDAllocator) next_() int64 { return atomic.AddInt64(&a.next, 1) }

// RetryOverrides lets a single exec() call override or disable the pool's
// retry policy (§4.1.1).
type RetryOverrides struct {
	Disabled         bool
	MaxRetries       int
	RetryDelay       time.Duration
	BackoffMultiplier float64
	RetryOn          []ErrorKind
}

// ExecOptions is the fixed enumerated set accepted by exec() (§4.1).
type ExecOptions struct {
	TimeoutMs        int64
	TransferHandles  bool
	Metadata         map[string]any
	DataTransfer     DataTransferMode
	EstimatedSize    int64
	Retry            *RetryOverrides
	Priority         int
	AffinityKey      string
	TaskType         string
	// PreferredWorker names the worker whose deque receives the task in
	// SelectionDistributed mode, where another worker may still steal it;
	// SelectionCentral dispatch does not consult it (§4.3). Nil
	// means no preference; the zero value of ExecOptions must not be
	// mistaken for "prefer worker 0", hence the pointer.
	PreferredWorker *int
	OnWorkerEvent   func(Event)
}

// DataTransferMode selects the wire path for a task's payload (§6).
type DataTransferMode string

const (
	DataTransferAuto        DataTransferMode = "auto"
	DataTransferShared      DataTransferMode = "shared"
	DataTransferTransferable DataTransferMode = "transferable"
	DataTransferBinary      DataTransferMode = "binary"
	DataTransferJSON        DataTransferMode = "json"
)

// Task is a single dispatchable unit (§3). The zero value is not valid;
// construct through newTask.
type Task struct {
	TaskID      int64
	Method      string
	Params      []any
	SubmitTime  time.Time

	TimeoutMs       int64
	EstimatedSize   int64
	RetryOverrides  *RetryOverrides
	Priority        int
	AffinityKey     string
	TaskType        string
	// PreferredWorker is -1 when the task has no worker preference yet;
	// submitTaskLocked may fill it in from the affinity router.
	PreferredWorker int

	// Attempt tracks retries for this logical task; attempts never receive a
	// new TaskID (§4.1.1).
	Attempt int

	resolver *PendingResult

	metadata map[string]any
}

func newTask(id int64, method string, params []any, opts ExecOptions, resolver *PendingResult) *Task {
	preferred := -1
	if opts.PreferredWorker != nil {
		preferred = *opts.PreferredWorker
	}
	return &Task{
		TaskID:          id,
		Method:          method,
		Params:          params,
		SubmitTime:      time.Now(),
		TimeoutMs:       opts.TimeoutMs,
		EstimatedSize:   opts.EstimatedSize,
		RetryOverrides:  opts.Retry,
		Priority:        opts.Priority,
		AffinityKey:     opts.AffinityKey,
		TaskType:        opts.TaskType,
		PreferredWorker: preferred,
		resolver:        resolver,
		metadata:        opts.Metadata,
	}
}

// Resolver exposes the task's pending result handle to queue/scheduler code
// that needs to check pending-ness without importing the orchestrator.
func (t *Task) Resolver() *PendingResult { return t.resolver }

// PreferredWorkerIndex satisfies internal/stealing.StealableItem so a Task
// can be pushed directly onto a work-stealing deque.
func (t *Task) PreferredWorkerIndex() int { return t.PreferredWorker }
