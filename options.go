package gopool

import (
	"time"

	"gopool/internal/heartbeat"
	"gopool/internal/stealing"
)

// SelectionMode picks how idle workers are found (§4.3).
type SelectionMode string

const (
	SelectionCentral     SelectionMode = "central"
	SelectionDistributed SelectionMode = "distributed"
)

// MemoryPressureAction governs admission once estimated_queue_memory would
// cross max_queue_memory (§4.1.2).
type MemoryPressureAction string

const (
	MemoryActionReject MemoryPressureAction = "reject"
	MemoryActionWait   MemoryPressureAction = "wait"
	MemoryActionGC     MemoryPressureAction = "gc"
)

// QueueKind selects the admission TaskQueue realisation (§4.2).
type QueueKind string

const (
	QueueFIFO     QueueKind = "fifo"
	QueueLIFO     QueueKind = "lifo"
	QueuePriority QueueKind = "priority"
)

// HealthCheckOptions configures the periodic probe of §4.1.4.
type HealthCheckOptions struct {
	Enabled   bool
	Interval  time.Duration
	Timeout   time.Duration
	MaxMissed int
	Action    heartbeat.Action
}

// RetryOptions is the pool-wide default retry policy (§4.1.1), overridable
// per exec() call via RetryOverrides.
type RetryOptions struct {
	MaxRetries        int
	RetryDelay        time.Duration
	BackoffMultiplier float64
	RetryOn           []ErrorKind
}

// CircuitOptions configures the breaker state machine (§4.1.3).
type CircuitOptions struct {
	Enabled          bool
	ErrorThreshold   int
	ResetTimeout     time.Duration
	HalfOpenRequests int
}

// Options constructs a Pool. The zero value is not valid; use
// DefaultOptions() and override fields.
type Options struct {
	MaxWorkers int
	MinWorkers int
	EagerInit  bool

	Selection      SelectionMode
	StealPolicy    stealing.VictimPolicy
	AffinityMaxEntries int

	QueueKind     QueueKind
	MaxQueueSize  int

	MaxQueueMemory   int64
	OnMemoryPressure MemoryPressureAction

	Retry   RetryOptions
	Circuit CircuitOptions
	Health  HealthCheckOptions

	DispatchTickInterval time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxWorkers:         4,
		MinWorkers:         0,
		EagerInit:          false,
		Selection:          SelectionCentral,
		StealPolicy:        stealing.PolicyRoundRobin,
		AffinityMaxEntries: 1024,
		QueueKind:          QueueFIFO,
		MaxQueueSize:       10000,
		MaxQueueMemory:     0,
		OnMemoryPressure:   MemoryActionReject,
		Retry: RetryOptions{
			MaxRetries:        0,
			RetryDelay:        100 * time.Millisecond,
			BackoffMultiplier: 2,
		},
		Circuit: CircuitOptions{
			Enabled:          false,
			ErrorThreshold:   5,
			ResetTimeout:     30 * time.Second,
			HalfOpenRequests: 2,
		},
		Health: HealthCheckOptions{
			Enabled:   false,
			Interval:  10 * time.Second,
			Timeout:   2 * time.Second,
			MaxMissed: 3,
			Action:    heartbeat.ActionWarn,
		},
		DispatchTickInterval: time.Millisecond,
	}
}

// validate fails synchronously (§4.1's "bad types fail synchronously")
// rather than letting a misconfigured pool fail opaquely at dispatch time.
func (o Options) validate() error {
	if o.MaxWorkers <= 0 {
		return newErr(KindValidation, "max_workers must be positive", nil)
	}
	if o.MinWorkers < 0 || o.MinWorkers > o.MaxWorkers {
		return newErr(KindValidation, "min_workers must be within [0, max_workers]", nil)
	}
	if o.MaxQueueSize <= 0 {
		return newErr(KindValidation, "max_queue_size must be positive", nil)
	}
	switch o.QueueKind {
	case QueueFIFO, QueueLIFO, QueuePriority:
	default:
		return newErr(KindValidation, "unknown queue_kind "+string(o.QueueKind), nil)
	}
	return nil
}
