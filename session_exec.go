package gopool

import (
	"context"
	"time"
)

// Session is the public handle returned by OpenSession: a lease on one
// worker. Exec calls made through it carry that worker as
// ExecOptions.PreferredWorker. In SelectionDistributed mode the task is
// placed on that worker's deque, where another worker can still steal it;
// in SelectionCentral mode the preference is not consulted and the task
// runs on whichever worker dispatch picks.
type Session struct {
	id   string
	pool *Pool
}

// OpenSession leases a new session on the lowest-indexed currently idle
// worker (falling back to worker 0 when none are idle — the session
// still closes correctly on worker loss either way).
func (p *Pool) OpenSession(timeout time.Duration, maxTasks int) *Session {
	p.dispatchMu.Lock()
	widx := p.idleBitmap.FindFirstIdle()
	if widx < 0 {
		widx = 0
	}
	p.dispatchMu.Unlock()

	s := p.sessions.Open(widx, timeout, maxTasks)
	return &Session{id: s.ID, pool: p}
}

// Exec submits through the pool with the session's worker as the preferred
// worker (see Session for how far that reaches). It rejects once the
// session has closed, per §3's Session invariant.
func (s *Session) Exec(ctx context.Context, method string, params []any, opts ExecOptions) (*PendingResult, error) {
	sess, ok := s.pool.sessions.Touch(s.id)
	if !ok {
		return nil, newErr(KindTermination, "session closed", nil)
	}
	widx := sess.WorkerIndex
	opts.PreferredWorker = &widx
	return s.pool.Exec(ctx, method, params, opts)
}

// Close ends the session immediately, independent of timeout/max_tasks.
func (s *Session) Close() { s.pool.sessions.Close(s.id) }
