// Package session implements the SessionManager of spec §3: worker-affinity
// leases with per-call state carried forward, the only source of strong
// affinity in the system (§5).
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is a lease on a specific worker (§3). The pool submits every
// exec made through a Session with WorkerIndex as its preferred worker;
// if that worker is removed the session closes rather than migrating.
type Session struct {
	ID             string
	WorkerIndex    int
	TaskCount      int
	CreatedAt      time.Time
	LastActivityAt time.Time
	StateBlob      map[string]any
	Timeout        time.Duration
	MaxTasks       int
	Active         bool
}

// Manager owns the set of live sessions and their TTL/task-limit eviction.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	onClose  func(s *Session, reason string)
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

func (m *Manager) OnClose(fn func(s *Session, reason string)) { m.onClose = fn }

// Open creates a new session pinned to workerIndex.
func (m *Manager) Open(workerIndex int, timeout time.Duration, maxTasks int) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	s := &Session{
		ID:             uuid.NewString(),
		WorkerIndex:    workerIndex,
		CreatedAt:      now,
		LastActivityAt: now,
		StateBlob:      make(map[string]any),
		Timeout:        timeout,
		MaxTasks:       maxTasks,
		Active:         true,
	}
	m.sessions[s.ID] = s
	return s
}

// Touch records activity on a session ahead of dispatching a task through
// it, returning false if the session has already closed (timeout,
// task-limit, or worker loss).
func (m *Manager) Touch(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok || !s.Active {
		return nil, false
	}
	if s.Timeout > 0 && time.Since(s.LastActivityAt) > s.Timeout {
		m.closeLocked(s, "timeout")
		return nil, false
	}
	if s.MaxTasks > 0 && s.TaskCount >= s.MaxTasks {
		m.closeLocked(s, "task_limit")
		return nil, false
	}
	s.TaskCount++
	s.LastActivityAt = time.Now()
	return s, true
}

// Close explicitly ends a session.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		m.closeLocked(s, "explicit")
	}
}

// WorkerLost closes every session pinned to workerIndex — sessions never
// migrate (§5).
func (m *Manager) WorkerLost(workerIndex int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.WorkerIndex == workerIndex && s.Active {
			m.closeLocked(s, "worker_loss")
		}
	}
}

func (m *Manager) closeLocked(s *Session, reason string) {
	s.Active = false
	delete(m.sessions, s.ID)
	if m.onClose != nil {
		m.onClose(s, reason)
	}
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok && s.Active
}

// SweepExpired closes any session past its TTL, for a periodic janitor —
// sessions that are never touched again would otherwise linger.
func (m *Manager) SweepExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, s := range m.sessions {
		if s.Active && s.Timeout > 0 && now.Sub(s.LastActivityAt) > s.Timeout {
			m.closeLocked(s, "timeout")
		}
	}
}
