package video

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/morgen873/kisson/internal/models"
)

// Polling constants. A job that never resolves self-terminates at the
// ceiling and releases its timers.
const (
	// DefaultPollInterval is the wait between status lookups.
	DefaultPollInterval = 5 * time.Second
	// DefaultMaxWait is the overall polling ceiling.
	DefaultMaxWait = 10 * time.Minute
)

// JobStore persists video job state across poll updates.
type JobStore interface {
	SaveVideoJob(j models.VideoJob) error
	GetVideoJob(recipeID string) (*models.VideoJob, error)
}

// Manager owns one polling task per recipe id. The active-poller map is the
// re-entrancy guard: starting a poll while one is active is a no-op, and
// only the completion/abort path clears an entry.
type Manager struct {
	mu       sync.Mutex
	service  Service
	store    JobStore
	interval time.Duration
	maxWait  time.Duration
	active   map[string]*poller
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithPollInterval overrides the poll interval, used by tests.
func WithPollInterval(d time.Duration) ManagerOption {
	return func(m *Manager) { m.interval = d }
}

// WithMaxWait overrides the polling ceiling, used by tests.
func WithMaxWait(d time.Duration) ManagerOption {
	return func(m *Manager) { m.maxWait = d }
}

// NewManager creates a video polling manager.
func NewManager(svc Service, st JobStore, opts ...ManagerOption) *Manager {
	m := &Manager{
		service:  svc,
		store:    st,
		interval: DefaultPollInterval,
		maxWait:  DefaultMaxWait,
		active:   make(map[string]*poller),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// poller is one cancellable polling task. Cancellation and natural
// termination share the stop path, so timers never outlive the task.
type poller struct {
	recipeID    string
	attempts    int
	maxAttempts int
	done        chan struct{}
	stopOnce    sync.Once
}

func (p *poller) stop() {
	p.stopOnce.Do(func() { close(p.done) })
}

// StartForRecipe begins the video follow-up for a generated recipe: one
// start call, then polling until ready, failed, or timed out. A recipe
// with an active poller is left alone.
func (m *Manager) StartForRecipe(r models.RecipeResult) {
	m.mu.Lock()
	if _, running := m.active[r.ID]; running {
		m.mu.Unlock()
		slog.Debug("VideoManager poll already active", "recipe", r.ID)
		return
	}
	p := &poller{
		recipeID:    r.ID,
		maxAttempts: int(m.maxWait / m.interval),
		done:        make(chan struct{}),
	}
	m.active[r.ID] = p
	m.mu.Unlock()

	m.saveJob(models.VideoJob{
		RecipeID:  r.ID,
		Status:    models.VideoStatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	})

	go m.run(p, r)
}

// Cancel aborts the polling task for a recipe, if one is active.
func (m *Manager) Cancel(recipeID string) {
	m.mu.Lock()
	p, ok := m.active[recipeID]
	m.mu.Unlock()
	if ok {
		p.stop()
		slog.Info("VideoManager poll cancelled", "recipe", recipeID)
	}
}

// CancelAll aborts every active polling task. Used on shutdown.
func (m *Manager) CancelAll() {
	m.mu.Lock()
	pollers := make([]*poller, 0, len(m.active))
	for _, p := range m.active {
		pollers = append(pollers, p)
	}
	m.mu.Unlock()
	for _, p := range pollers {
		p.stop()
	}
}

// IsPolling reports whether a polling task is active for the recipe.
func (m *Manager) IsPolling(recipeID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[recipeID]
	return ok
}

// Job returns the persisted job state for a recipe, nil when none exists.
func (m *Manager) Job(recipeID string) (*models.VideoJob, error) {
	if m.store == nil {
		return nil, nil
	}
	return m.store.GetVideoJob(recipeID)
}

// run drives one polling task to completion. The ticker and the deadline
// timer are both released on every exit path.
func (m *Manager) run(p *poller, r models.RecipeResult) {
	defer m.release(p.recipeID)

	startCtx, cancel := context.WithTimeout(context.Background(), DefaultRequestTimeout)
	err := m.service.Start(startCtx, models.VideoStartRequest{
		ImageURL:    r.ImageURL,
		RecipeID:    r.ID,
		RecipeTitle: r.Title,
		ImagePrompt: r.ImagePrompt,
	})
	cancel()
	if err != nil {
		slog.Error("VideoManager start call failed", "recipe", p.recipeID, "error", err)
		m.finishJob(p.recipeID, models.VideoStatusFailed, "", err.Error())
		return
	}
	slog.Info("VideoManager polling started", "recipe", p.recipeID,
		"interval", m.interval, "max_wait", m.maxWait)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	deadline := time.NewTimer(m.maxWait)
	defer deadline.Stop()

	for {
		select {
		case <-p.done:
			slog.Debug("VideoManager poll stopped", "recipe", p.recipeID, "attempts", p.attempts)
			return
		case <-deadline.C:
			slog.Warn("VideoManager poll timed out", "recipe", p.recipeID, "attempts", p.attempts)
			m.finishJob(p.recipeID, models.VideoStatusTimedOut, "", "video generation timed out")
			return
		case <-ticker.C:
			p.attempts++
			if m.pollOnce(p) {
				return
			}
			if p.maxAttempts > 0 && p.attempts >= p.maxAttempts {
				slog.Warn("VideoManager poll exhausted attempts", "recipe", p.recipeID, "attempts", p.attempts)
				m.finishJob(p.recipeID, models.VideoStatusTimedOut, "", "video generation timed out")
				return
			}
		}
	}
}

// pollOnce performs one status lookup; true means the task is finished.
// Transient lookup errors keep polling.
func (m *Manager) pollOnce(p *poller) bool {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultRequestTimeout)
	url, err := m.service.Status(ctx, p.recipeID)
	cancel()
	if err != nil {
		slog.Warn("VideoManager status lookup failed", "recipe", p.recipeID, "attempt", p.attempts, "error", err)
		return false
	}
	switch url {
	case "":
		slog.Debug("VideoManager video not ready", "recipe", p.recipeID, "attempt", p.attempts)
		return false
	case models.VideoErrorSentinel:
		slog.Error("VideoManager video generation failed", "recipe", p.recipeID)
		m.finishJob(p.recipeID, models.VideoStatusFailed, "", "video generation failed")
		return true
	default:
		slog.Info("VideoManager video ready", "recipe", p.recipeID, "attempts", p.attempts)
		m.finishJob(p.recipeID, models.VideoStatusReady, url, "")
		return true
	}
}

// release clears the active-poller entry. Single writer: only the
// completion/abort path runs it.
func (m *Manager) release(recipeID string) {
	m.mu.Lock()
	if p, ok := m.active[recipeID]; ok {
		p.stop()
		delete(m.active, recipeID)
	}
	m.mu.Unlock()
}

func (m *Manager) finishJob(recipeID string, status models.VideoStatus, url, errMsg string) {
	m.saveJob(models.VideoJob{
		RecipeID:  recipeID,
		Status:    status,
		URL:       url,
		Error:     errMsg,
		UpdatedAt: time.Now(),
	})
}

func (m *Manager) saveJob(j models.VideoJob) {
	if m.store == nil {
		return
	}
	if existing, err := m.store.GetVideoJob(j.RecipeID); err == nil && existing != nil && j.CreatedAt.IsZero() {
		j.CreatedAt = existing.CreatedAt
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now()
	}
	if err := m.store.SaveVideoJob(j); err != nil {
		slog.Error("VideoManager job save failed", "recipe", j.RecipeID, "error", err)
	}
}
