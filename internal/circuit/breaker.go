// Package circuit implements the three-state circuit breaker of spec §4.1.3:
// closed → open → half_open → {closed | open}. Logging follows the
// teacher's cross-cutting infrastructure register (zap), matching
// internal/rate/limiter.go and internal/observability/logging.go.
package circuit

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type State string

const (
	Closed   State = "closed"
	Open     State = "open"
	HalfOpen State = "half_open"
)

// Config mirrors the `circuit_breaker` option group of spec §6.
type Config struct {
	Enabled           bool
	ErrorThreshold    int
	ResetTimeout      time.Duration
	HalfOpenRequests  int
}

func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		ErrorThreshold:   5,
		ResetTimeout:     30 * time.Second,
		HalfOpenRequests: 2,
	}
}

// Breaker is safe for concurrent use; all transitions are serialised by mu,
// matching the single-threaded orchestrator model of §5 even when called
// from multiple goroutines in tests.
type Breaker struct {
	mu     sync.Mutex
	cfg    Config
	logger *zap.Logger

	state              State
	errorCount         int
	halfOpenSuccesses  int
	resetTimer         *time.Timer

	onOpen, onClose, onHalfOpen func()
}

func New(cfg Config, logger *zap.Logger) *Breaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Breaker{cfg: cfg, logger: logger, state: Closed}
}

// OnTransition registers callbacks used by the orchestrator to emit
// circuitOpen/circuitClose/circuitHalfOpen events.
func (b *Breaker) OnTransition(onOpen, onClose, onHalfOpen func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onOpen, b.onClose, b.onHalfOpen = onOpen, onClose, onHalfOpen
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a new submission may proceed (§4.1.3: open state
// rejects all submissions immediately).
func (b *Breaker) Allow() bool {
	if !b.cfg.Enabled {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state != Open
}

// RecordSuccess zeros the error count in closed state, or advances the
// half-open success counter toward closing the breaker.
func (b *Breaker) RecordSuccess() {
	if !b.cfg.Enabled {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		b.errorCount = 0
	case HalfOpen:
		b.halfOpenSuccesses++
		if b.halfOpenSuccesses >= b.cfg.HalfOpenRequests {
			b.toClosedLocked()
		}
	}
}

// RecordFailure increments the error count in closed state (opening the
// breaker at the threshold), or immediately reopens it from half-open.
func (b *Breaker) RecordFailure() {
	if !b.cfg.Enabled {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		b.errorCount++
		if b.errorCount >= b.cfg.ErrorThreshold {
			b.toOpenLocked()
		}
	case HalfOpen:
		b.toOpenLocked()
	}
}

func (b *Breaker) toOpenLocked() {
	b.state = Open
	b.errorCount = 0
	b.halfOpenSuccesses = 0
	b.logger.Warn("circuit breaker opened", zap.Int("error_threshold", b.cfg.ErrorThreshold))
	if b.resetTimer != nil {
		b.resetTimer.Stop()
	}
	b.resetTimer = time.AfterFunc(b.cfg.ResetTimeout, b.toHalfOpen)
	if b.onOpen != nil {
		b.onOpen()
	}
}

func (b *Breaker) toHalfOpen() {
	b.mu.Lock()
	if b.state != Open {
		b.mu.Unlock()
		return
	}
	b.state = HalfOpen
	b.halfOpenSuccesses = 0
	cb := b.onHalfOpen
	b.mu.Unlock()
	b.logger.Info("circuit breaker half-open")
	if cb != nil {
		cb()
	}
}

func (b *Breaker) toClosedLocked() {
	b.state = Closed
	b.errorCount = 0
	b.halfOpenSuccesses = 0
	b.logger.Info("circuit breaker closed")
	if b.onClose != nil {
		b.onClose()
	}
}
