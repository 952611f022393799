// Package transition implements the between-step transition orchestrator.
//
// One Orchestrator instance covers exactly one step boundary. It guarantees
// a single completion callback under every outcome: the asset plays to the
// end, fails to load, or never reports anything at all. Timers are owned
// resources with a matching cleanup path on cancellation.
package transition

import (
	"log/slog"
	"sync"
	"time"
)

// State identifies where an orchestrator invocation currently is.
type State string

const (
	// StateIdle means Start has not been called yet.
	StateIdle State = "idle"
	// StateLoading means the asset is loading and the load timeout is armed.
	StateLoading State = "loading"
	// StatePlaying means the asset loaded and playback is underway.
	StatePlaying State = "playing"
	// StateFallback means the asset failed or timed out and the geometric
	// fallback animation is covering the boundary.
	StateFallback State = "fallback"
	// StateCompleted means the completion callback has fired.
	StateCompleted State = "completed"
	// StateCancelled means the orchestrator was torn down before completing.
	StateCancelled State = "cancelled"
)

// Default timing constants. A transition that never hears from its asset
// completes within DefaultLoadTimeout + DefaultFallbackDuration.
const (
	// DefaultLoadTimeout is how long the asset may load before fallback.
	DefaultLoadTimeout = 5 * time.Second
	// DefaultFallbackDuration is how long the fallback animation shows.
	DefaultFallbackDuration = 1 * time.Second
)

// Config carries the orchestrator timing knobs. Zero values fall back to the
// defaults; tests inject short durations.
type Config struct {
	LoadTimeout      time.Duration
	FallbackDuration time.Duration
}

func (c Config) withDefaults() Config {
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = DefaultLoadTimeout
	}
	if c.FallbackDuration <= 0 {
		c.FallbackDuration = DefaultFallbackDuration
	}
	return c
}

// Orchestrator coordinates one transition. When the transition covers the
// submission boundary, AwaitData arms a join barrier: the completion
// callback fires only once both playback has finished and the submission
// outcome has arrived, regardless of order.
type Orchestrator struct {
	mu  sync.Mutex
	cfg Config

	state      State
	awaitData  bool
	videoDone  bool
	dataReady  bool
	completed  bool
	onComplete func()

	loadTimer     *time.Timer
	fallbackTimer *time.Timer
}

// New creates an orchestrator in the Idle state. onComplete is invoked
// exactly once, outside the orchestrator's lock.
func New(cfg Config, onComplete func()) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg.withDefaults(),
		state:      StateIdle,
		onComplete: onComplete,
	}
}

// AwaitData arms the submission join barrier. Must be called before Start.
func (o *Orchestrator) AwaitData() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.awaitData = true
}

// Start begins asset loading and arms the load timeout.
func (o *Orchestrator) Start() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateIdle {
		slog.Warn("Orchestrator Start ignored", "state", o.state)
		return
	}
	o.state = StateLoading
	o.loadTimer = time.AfterFunc(o.cfg.LoadTimeout, o.loadTimedOut)
	slog.Debug("Orchestrator started", "load_timeout", o.cfg.LoadTimeout, "await_data", o.awaitData)
}

// AssetReady reports that the transition asset finished loading.
func (o *Orchestrator) AssetReady() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateLoading {
		slog.Debug("Orchestrator AssetReady ignored", "state", o.state)
		return
	}
	o.stopLoadTimerLocked()
	o.state = StatePlaying
	slog.Debug("Orchestrator asset ready, playing")
}

// AssetError reports that the transition asset failed to load. The
// orchestrator falls back to the geometric animation; asset failures are
// never surfaced as errors and never block navigation beyond the fixed
// fallback delay.
func (o *Orchestrator) AssetError() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateLoading {
		slog.Debug("Orchestrator AssetError ignored", "state", o.state)
		return
	}
	slog.Debug("Orchestrator asset failed, entering fallback")
	o.enterFallbackLocked()
}

func (o *Orchestrator) loadTimedOut() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateLoading {
		return
	}
	slog.Debug("Orchestrator load timed out, entering fallback", "timeout", o.cfg.LoadTimeout)
	o.enterFallbackLocked()
}

func (o *Orchestrator) enterFallbackLocked() {
	o.stopLoadTimerLocked()
	o.state = StateFallback
	o.fallbackTimer = time.AfterFunc(o.cfg.FallbackDuration, o.fallbackElapsed)
}

func (o *Orchestrator) fallbackElapsed() {
	o.markVideoDone("fallback elapsed")
}

// PlaybackEnded reports natural end of playback. Spurious repeats after
// completion are ignored; a listener firing twice must not double-advance
// navigation.
func (o *Orchestrator) PlaybackEnded() {
	o.mu.Lock()
	if o.state != StatePlaying {
		slog.Debug("Orchestrator PlaybackEnded ignored", "state", o.state)
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()
	o.markVideoDone("playback ended")
}

// DataReady reports that the submission pipeline has signaled completion
// (success or failure). A no-op unless AwaitData was armed.
func (o *Orchestrator) DataReady() {
	o.mu.Lock()
	o.dataReady = true
	fire := o.readyToCompleteLocked()
	o.mu.Unlock()
	if fire {
		o.fireComplete()
	}
}

func (o *Orchestrator) markVideoDone(reason string) {
	o.mu.Lock()
	if o.completed || o.state == StateCancelled {
		o.mu.Unlock()
		return
	}
	o.videoDone = true
	fire := o.readyToCompleteLocked()
	if !fire && o.awaitData {
		slog.Debug("Orchestrator playback done, waiting for submission", "reason", reason)
	}
	o.mu.Unlock()
	if fire {
		slog.Debug("Orchestrator completing", "reason", reason)
		o.fireComplete()
	}
}

// readyToCompleteLocked flips the completed latch when both halves of the
// join have arrived. The caller fires the callback after unlocking.
func (o *Orchestrator) readyToCompleteLocked() bool {
	if o.completed || o.state == StateCancelled {
		return false
	}
	if !o.videoDone {
		return false
	}
	if o.awaitData && !o.dataReady {
		return false
	}
	o.completed = true
	o.state = StateCompleted
	return true
}

func (o *Orchestrator) fireComplete() {
	if o.onComplete != nil {
		o.onComplete()
	}
}

// Cancel tears the orchestrator down, releasing pending timers. The
// completion callback will not fire afterward.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.completed || o.state == StateCancelled {
		return
	}
	o.stopLoadTimerLocked()
	if o.fallbackTimer != nil {
		o.fallbackTimer.Stop()
		o.fallbackTimer = nil
	}
	o.state = StateCancelled
	o.completed = true
	slog.Debug("Orchestrator cancelled")
}

func (o *Orchestrator) stopLoadTimerLocked() {
	if o.loadTimer != nil {
		o.loadTimer.Stop()
		o.loadTimer = nil
	}
}

// State returns the current orchestrator state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}
