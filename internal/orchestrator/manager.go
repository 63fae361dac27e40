package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mr1hm/go-saferoute/internal/models"
)

var ErrTooManySessions = errors.New("too many sessions")

type ManagerConfig struct {
	Options       Options
	SessionTTL    time.Duration
	SweepInterval time.Duration
	MaxSessions   int // 0 means unlimited
	// OnClose runs after a session has been closed, e.g. to end its streams.
	OnClose func(sessionID string)
}

// Manager owns the per-client orchestrators and expires idle ones.
type Manager struct {
	cfg  ManagerConfig
	deps Dependencies

	mu       sync.RWMutex
	sessions map[string]*Orchestrator
	wg       sync.WaitGroup
}

func NewManager(cfg ManagerConfig, deps Dependencies) *Manager {
	return &Manager{
		cfg:      cfg,
		deps:     deps,
		sessions: make(map[string]*Orchestrator),
	}
}

// Start runs the idle-session sweeper until ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	if m.cfg.SessionTTL <= 0 || m.cfg.SweepInterval <= 0 {
		return
	}
	m.wg.Add(1)
	go m.runSweeper(ctx)
}

func (m *Manager) runSweeper(ctx context.Context) {
	defer m.wg.Done()
	slog.Info("starting session sweeper", "ttl", m.cfg.SessionTTL, "interval", m.cfg.SweepInterval)

	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session sweeper shutting down")
			return
		case <-ticker.C:
			m.sweep(time.Now())
		}
	}
}

func (m *Manager) sweep(now time.Time) {
	m.mu.RLock()
	var expired []string
	for id, o := range m.sessions {
		if now.Sub(o.LastActive()) > m.cfg.SessionTTL {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range expired {
		if m.Delete(id) {
			slog.Info("expired idle session", "session_id", id)
		}
	}
}

func (m *Manager) Create() (*Orchestrator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.MaxSessions > 0 && len(m.sessions) >= m.cfg.MaxSessions {
		return nil, ErrTooManySessions
	}

	id := uuid.NewString()
	o := New(id, m.deps, m.cfg.Options)
	m.sessions[id] = o

	slog.Debug("session created", "session_id", id)
	return o, nil
}

// Get returns the session and marks it as active.
func (m *Manager) Get(id string) (*Orchestrator, bool) {
	m.mu.RLock()
	o, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		o.touch()
	}
	return o, ok
}

// Snapshot returns the current snapshot of a session.
func (m *Manager) Snapshot(id string) (*models.Snapshot, bool) {
	m.mu.RLock()
	o, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return o.Snapshot(), true
}

func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	o, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return false
	}
	o.Close()
	if m.cfg.OnClose != nil {
		m.cfg.OnClose(id)
	}
	return true
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Stop waits for the sweeper and closes every session. OnClose is not
// called for sessions closed at shutdown.
func (m *Manager) Stop() {
	m.wg.Wait()

	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Orchestrator)
	m.mu.Unlock()

	for _, o := range sessions {
		o.Close()
	}
	slog.Info("session manager stopped")
}
