package session

import (
	"log/slog"
	"sync"

	"github.com/morgen873/kisson/internal/catalog"
	"github.com/morgen873/kisson/internal/models"
	"github.com/morgen873/kisson/internal/util"
)

// RecordLoader reads a persisted answer mirror for recovery.
type RecordLoader interface {
	GetSessionRecord(sessionID string) (*models.SessionRecord, error)
}

// Manager owns the live session controllers, one per kiosk session id.
type Manager struct {
	mu       sync.RWMutex
	catalog  *catalog.Catalog
	sessions map[string]*Controller
	loader   RecordLoader
	ctrlOpts []ControllerOption
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithRecordLoader wires the store used to recover mirrored answers.
func WithRecordLoader(l RecordLoader) ManagerOption {
	return func(m *Manager) { m.loader = l }
}

// WithControllerOptions sets options applied to every created controller.
func WithControllerOptions(opts ...ControllerOption) ManagerOption {
	return func(m *Manager) { m.ctrlOpts = opts }
}

// NewManager creates a session manager over the given catalog.
func NewManager(cat *catalog.Catalog, opts ...ManagerOption) *Manager {
	m := &Manager{
		catalog:  cat,
		sessions: make(map[string]*Controller),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create starts a new session and returns its controller.
func (m *Manager) Create() *Controller {
	id := util.GenerateSessionID()
	ctrl := NewController(id, m.catalog, m.ctrlOpts...)
	m.mu.Lock()
	m.sessions[id] = ctrl
	m.mu.Unlock()
	slog.Info("Manager created session", "session", id)
	return ctrl
}

// Get returns the controller for a session id.
func (m *Manager) Get(id string) (*Controller, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ctrl, ok := m.sessions[id]
	return ctrl, ok
}

// Recover re-creates a session from its persisted answer mirror. Used when
// the kiosk reloads mid-creation. Returns false when no mirror exists.
func (m *Manager) Recover(id string) (*Controller, bool) {
	if m.loader == nil {
		return nil, false
	}
	rec, err := m.loader.GetSessionRecord(id)
	if err != nil {
		slog.Error("Manager recovery load failed", "session", id, "error", err)
		return nil, false
	}
	if rec == nil {
		return nil, false
	}
	ctrl := NewController(id, m.catalog, m.ctrlOpts...)
	ctrl.Restore(*rec)
	m.mu.Lock()
	m.sessions[id] = ctrl
	m.mu.Unlock()
	slog.Info("Manager recovered session from mirror", "session", id)
	return ctrl, true
}

// Remove tears a session down, releasing any in-flight transition timers.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	ctrl, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		ctrl.Teardown()
		slog.Info("Manager removed session", "session", id)
	}
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
