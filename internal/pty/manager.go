package pty

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// MaxSessions bounds how many concurrently running sessions a Manager will
// hold before it evicts the oldest one to make room for a new Start call.
const MaxSessions = 10

// Manager owns the set of live PTY sessions for one agent run, enforcing a
// cap on tracked sessions and evicting the oldest tracked session (by
// creation order) when the cap would otherwise be exceeded. A session
// that exits on its own stays tracked, and counts toward the cap, until
// it is killed, evicted or cleaned up.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	order    []string // session IDs in creation order, oldest first
	logger   *slog.Logger
	onExit   func(*Session)
}

// NewManager constructs an empty Manager. onExit, if non-nil, is invoked
// whenever any tracked session terminates, whether it exited on its own or
// was killed; the manager stays decoupled from whatever publishes that as a
// wire event (see pkg/models.NewPTYExitEvent) by taking a plain callback
// rather than a dependency on internal/wire.
func NewManager(logger *slog.Logger, onExit func(*Session)) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		logger:   logger.With("component", "pty_manager"),
		onExit:   onExit,
	}
}

// Start spawns a new session under this manager, evicting the oldest
// tracked session first if the manager is already at MaxSessions.
func (m *Manager) Start(opts Options) (*Session, error) {
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	opts.Logger = m.logger

	m.mu.Lock()
	if len(m.sessions) >= MaxSessions {
		m.evictOldestLocked()
	}
	m.mu.Unlock()

	s, err := Start(opts)
	if err != nil {
		return nil, err
	}
	s.SetOnExit(m.handleExit)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.order = append(m.order, s.ID)
	m.mu.Unlock()

	m.logger.Debug("started session", "id", s.ID, "title", s.Title)
	return s, nil
}

// evictOldestLocked kills and removes the oldest tracked session. Must be
// called with mu held.
func (m *Manager) evictOldestLocked() {
	if len(m.order) == 0 {
		return
	}
	oldestID := m.order[0]
	if s, ok := m.sessions[oldestID]; ok {
		m.logger.Debug("evicting oldest session to make room", "id", oldestID)
		_ = s.Kill()
	}
	m.removeLocked(oldestID)
}

func (m *Manager) removeLocked(id string) {
	delete(m.sessions, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// handleExit is registered as every session's on-exit hook so the manager
// learns about terminated sessions without polling.
func (m *Manager) handleExit(s *Session) {
	m.logger.Debug("session exited", "id", s.ID)
	if m.onExit != nil {
		m.onExit(s)
	}
}

// Get retrieves a tracked session by ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// List returns every tracked session, in creation order.
func (m *Manager) List() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.order))
	for _, id := range m.order {
		if s, ok := m.sessions[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Kill terminates and untracks a session by ID.
func (m *Manager) Kill(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("pty: unknown session %q", id)
	}
	m.removeLocked(id)
	m.mu.Unlock()

	return s.Kill()
}

// Cleanup kills and untracks every session the manager still holds. It is
// intended for use at the end of an agent run.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	ids := make([]string, len(m.order))
	copy(ids, m.order)
	m.mu.Unlock()

	for _, id := range ids {
		m.mu.Lock()
		s, ok := m.sessions[id]
		m.removeLocked(id)
		m.mu.Unlock()
		if ok {
			_ = s.Kill()
		}
	}
}

// ResizeAll resizes every tracked session's PTY to the current size of the
// terminal at fd, used to propagate a SIGWINCH on the controlling terminal
// to every session spawned under it.
func (m *Manager) ResizeAll(fd int) {
	for _, s := range m.List() {
		if err := s.ResizeToFd(fd); err != nil {
			m.logger.Debug("resize session failed", "id", s.ID, "error", err)
		}
	}
}

// Count returns the number of sessions currently tracked.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
