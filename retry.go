package gopool

import (
	"math"
	"time"
)

// effectiveRetry resolves per-call overrides against the pool default
// (§4.1.1). A per-call RetryOverrides.Disabled short-circuits to no retry
// regardless of the pool default.
func effectiveRetry(pool RetryOptions, overrides *RetryOverrides) RetryOptions {
	if overrides == nil {
		return pool
	}
	if overrides.Disabled {
		return RetryOptions{MaxRetries: 0}
	}
	eff := pool
	if overrides.MaxRetries != 0 {
		eff.MaxRetries = overrides.MaxRetries
	}
	if overrides.RetryDelay != 0 {
		eff.RetryDelay = overrides.RetryDelay
	}
	if overrides.BackoffMultiplier != 0 {
		eff.BackoffMultiplier = overrides.BackoffMultiplier
	}
	if len(overrides.RetryOn) > 0 {
		eff.RetryOn = overrides.RetryOn
	}
	return eff
}

// shouldRetry reports whether attempt (0-based) may still be retried for
// a failure of kind, and the delay before resubmission: d * m^attempt.
func shouldRetry(r RetryOptions, attempt int, kind ErrorKind) (time.Duration, bool) {
	if attempt >= r.MaxRetries {
		return 0, false
	}
	if len(r.RetryOn) > 0 && !containsKind(r.RetryOn, kind) {
		return 0, false
	}
	mult := r.BackoffMultiplier
	if mult <= 0 {
		mult = 1
	}
	delay := time.Duration(float64(r.RetryDelay) * math.Pow(mult, float64(attempt)))
	return delay, true
}

func containsKind(kinds []ErrorKind, k ErrorKind) bool {
	for _, candidate := range kinds {
		if candidate == k {
			return true
		}
	}
	return false
}
