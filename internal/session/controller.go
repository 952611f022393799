package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/morgen873/kisson/internal/catalog"
	"github.com/morgen873/kisson/internal/models"
	"github.com/morgen873/kisson/internal/transition"
)

// SubmissionTimeout caps one recipe generation call. The kiosk shows an
// indefinite "creating" state for its duration.
const SubmissionTimeout = 2 * time.Minute

// Submitter is the recipe submission pipeline as seen by the controller. It
// receives a snapshot of the answer store taken at the moment of submission;
// later store mutations do not affect the in-flight payload.
type Submitter interface {
	Submit(ctx context.Context, snapshot models.SessionRecord) (*models.RecipeResult, error)
}

// Mirror persists the answer store for recovery. Mirror failures are logged
// and never fail a dispatch.
type Mirror interface {
	SaveSessionRecord(rec models.SessionRecord) error
}

// position is a navigation target: the index mutation applied either
// synchronously or deferred to a transition's completion callback.
type position struct {
	phase    models.Phase
	intro    int
	creation int
}

// Controller owns where one session is in the wizard and how it moves.
// Every mutation is serialized by the session mutex: Dispatch, the
// transition completion callback, and the submission goroutine are the only
// writers. The mutex is never held across a call into the orchestrator's
// event methods, since those may fire the completion callback synchronously.
type Controller struct {
	mu      sync.Mutex
	id      string
	catalog *catalog.Catalog

	answers *Answers
	nav     models.NavigationState

	result    *models.RecipeResult
	submitErr string

	// generation is bumped by reset so that submission outcomes started
	// before the reset are discarded when they land.
	generation uint64

	orchestrator    *transition.Orchestrator
	pendingTarget   *position
	submitting      bool // the active transition covers the submission boundary
	transitionMedia *catalog.Media

	submitter     Submitter
	mirror        Mirror
	transitionCfg transition.Config
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithSubmitter wires the recipe submission pipeline.
func WithSubmitter(s Submitter) ControllerOption {
	return func(c *Controller) { c.submitter = s }
}

// WithMirror wires the persistent answer mirror.
func WithMirror(m Mirror) ControllerOption {
	return func(c *Controller) { c.mirror = m }
}

// WithTransitionConfig overrides the transition timing, used by tests.
func WithTransitionConfig(cfg transition.Config) ControllerOption {
	return func(c *Controller) { c.transitionCfg = cfg }
}

// NewController creates a session controller positioned at the hero step.
func NewController(id string, cat *catalog.Catalog, opts ...ControllerOption) *Controller {
	c := &Controller{
		id:      id,
		catalog: cat,
		answers: NewAnswers(),
		nav:     models.NavigationState{Phase: models.PhaseIntro},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID returns the session id.
func (c *Controller) ID() string { return c.id }

// Answers exposes the answer store for restoration and tests.
func (c *Controller) Answers() *Answers { return c.answers }

// View is the renderable snapshot of a session returned by every dispatch.
type View struct {
	SessionID       string                `json:"session_id"`
	Nav             models.NavigationState `json:"nav"`
	Step            *models.Step           `json:"step,omitempty"`
	CanAdvance      bool                   `json:"can_advance"`
	TransitionMedia *catalog.Media         `json:"transition_media,omitempty"`
	Result          *models.RecipeResult   `json:"result,omitempty"`
	SubmissionError string                 `json:"submission_error,omitempty"`
}

// Dispatch applies one action to the session and returns the resulting
// view. Rejected actions leave the state unchanged.
func (c *Controller) Dispatch(a models.Action) (*View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	slog.Debug("Controller Dispatch", "session", c.id, "action", a.Type, "step", a.StepID)
	switch a.Type {
	case models.ActionNext:
		return c.next()
	case models.ActionPrev:
		return c.prev()
	case models.ActionSelectAnswer:
		return c.selectAnswer(a)
	case models.ActionSetCustomAnswer:
		return c.setCustomAnswer(a)
	case models.ActionSetControl:
		return c.setControl(a)
	case models.ActionSelectTimeline:
		return c.selectTimeline(a)
	case models.ActionReset:
		return c.reset()
	default:
		slog.Warn("Controller unknown action", "session", c.id, "action", a.Type)
		return nil, models.ErrInvalidAction
	}
}

// currentStep returns the step the session is on, or nil in the result phase.
func (c *Controller) currentStep() *models.Step {
	switch c.nav.Phase {
	case models.PhaseIntro:
		if step, ok := c.catalog.IntroStep(c.nav.IntroStep); ok {
			return step
		}
	case models.PhaseCreation:
		if step, ok := c.catalog.CreationStep(c.nav.CreationStep); ok {
			return step
		}
	}
	return nil
}

func (c *Controller) view() *View {
	step := c.currentStep()
	return &View{
		SessionID:       c.id,
		Nav:             c.nav,
		Step:            step,
		CanAdvance:      c.nav.Phase != models.PhaseResult && CanAdvance(step, c.answers),
		TransitionMedia: c.transitionMedia,
		Result:          c.result,
		SubmissionError: c.submitErr,
	}
}

func (c *Controller) guardNavigation() error {
	if c.nav.IsTransitioning {
		return models.ErrTransitionInFlight
	}
	if c.nav.PendingSubmission {
		return models.ErrSubmissionPending
	}
	return nil
}

func (c *Controller) next() (*View, error) {
	if err := c.guardNavigation(); err != nil {
		slog.Debug("Controller next rejected", "session", c.id, "error", err)
		return nil, err
	}
	if c.nav.Phase == models.PhaseResult {
		return nil, models.ErrInvalidAction
	}
	if !CanAdvance(c.currentStep(), c.answers) {
		return nil, models.ErrValidationBlocked
	}

	var target position
	switch c.nav.Phase {
	case models.PhaseIntro:
		if c.nav.IntroStep+1 < c.catalog.IntroLen() {
			target = position{phase: models.PhaseIntro, intro: c.nav.IntroStep + 1}
		} else {
			target = position{phase: models.PhaseCreation, creation: 0}
		}
	case models.PhaseCreation:
		if c.nav.CreationStep+1 >= c.catalog.CreationLen() {
			// The terminal timeline step submits from its own selection
			// handler, never from a generic next.
			return nil, models.ErrNotTimelineStep
		}
		target = position{phase: models.PhaseCreation, creation: c.nav.CreationStep + 1}
	}
	c.moveTo(target)
	return c.view(), nil
}

func (c *Controller) prev() (*View, error) {
	if err := c.guardNavigation(); err != nil {
		slog.Debug("Controller prev rejected", "session", c.id, "error", err)
		return nil, err
	}

	var target position
	switch c.nav.Phase {
	case models.PhaseIntro:
		if c.nav.IntroStep == 0 {
			// The hero step has no back action.
			return c.view(), nil
		}
		target = position{phase: models.PhaseIntro, intro: c.nav.IntroStep - 1}
	case models.PhaseCreation:
		if c.nav.CreationStep == 0 {
			target = position{phase: models.PhaseIntro, intro: c.catalog.IntroLen() - 1}
		} else {
			target = position{phase: models.PhaseCreation, creation: c.nav.CreationStep - 1}
		}
	default:
		return nil, models.ErrInvalidAction
	}
	c.moveTo(target)
	return c.view(), nil
}

// moveTo applies a navigation target. Boundaries with a mapped transition
// asset defer the index mutation to the orchestrator's completion callback;
// everything else mutates immediately.
func (c *Controller) moveTo(target position) {
	fromIndex := c.nav.IntroStep
	if c.nav.Phase == models.PhaseCreation {
		fromIndex = c.nav.CreationStep
	}
	media, ok := c.catalog.TransitionMedia(c.nav.Phase, fromIndex)
	if !ok {
		c.applyPosition(target)
		return
	}

	t := target
	c.pendingTarget = &t
	c.transitionMedia = &media
	c.nav.IsTransitioning = true
	c.orchestrator = transition.New(c.transitionCfg, c.onTransitionComplete)
	c.orchestrator.Start()
	slog.Debug("Controller transition started", "session", c.id, "media", media.URL)
}

func (c *Controller) applyPosition(target position) {
	c.nav.Phase = target.phase
	c.nav.IntroStep = target.intro
	c.nav.CreationStep = target.creation
	if target.phase == models.PhaseCreation {
		if step, ok := c.catalog.CreationStep(target.creation); ok {
			// Lazily seed control defaults the first time the step is shown.
			c.answers.EnsureControlDefaults(step)
		}
	}
	slog.Debug("Controller moved", "session", c.id, "phase", target.phase,
		"intro", target.intro, "creation", target.creation)
}

// onTransitionComplete runs exactly once per orchestrator, from whatever
// goroutine delivered the final event. It applies the deferred navigation
// or, for the submission boundary, resolves the result phase.
func (c *Controller) onTransitionComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nav.IsTransitioning = false
	c.orchestrator = nil
	c.transitionMedia = nil

	if c.submitting {
		c.submitting = false
		if c.result != nil {
			c.nav.Phase = models.PhaseResult
			slog.Info("Controller entered result phase", "session", c.id, "recipe", c.result.ID)
		} else {
			slog.Warn("Controller submission transition ended without result", "session", c.id, "error", c.submitErr)
		}
		return
	}
	if c.pendingTarget != nil {
		c.applyPosition(*c.pendingTarget)
		c.pendingTarget = nil
	}
}

// MediaEvent forwards a frontend media event to the active transition.
// Events with no transition in flight are ignored. The session mutex is
// released before the orchestrator call: the final event completes the
// transition synchronously, which re-enters the controller.
func (c *Controller) MediaEvent(evt models.MediaEventType) {
	c.mu.Lock()
	orch := c.orchestrator
	c.mu.Unlock()
	if orch == nil {
		slog.Debug("Controller media event with no transition", "session", c.id, "event", evt)
		return
	}
	switch evt {
	case models.MediaEventReady:
		orch.AssetReady()
	case models.MediaEventError:
		orch.AssetError()
	case models.MediaEventEnded:
		orch.PlaybackEnded()
	}
}

func (c *Controller) selectAnswer(a models.Action) (*View, error) {
	if c.nav.PendingSubmission {
		return nil, models.ErrSubmissionPending
	}
	step, ok := c.catalog.StepByID(a.StepID)
	if !ok || step.Type != models.StepTypeQuestion {
		return nil, models.ErrUnknownStep
	}
	if a.OptionIndex < 0 || a.OptionIndex >= step.OptionCount() {
		return nil, models.ErrInvalidOptionIndex
	}
	c.answers.Select(step.ID, a.OptionIndex, step.MultiSelect)
	c.saveMirror()
	return c.view(), nil
}

func (c *Controller) setCustomAnswer(a models.Action) (*View, error) {
	if c.nav.PendingSubmission {
		return nil, models.ErrSubmissionPending
	}
	step, ok := c.catalog.StepByID(a.StepID)
	if !ok || step.CustomOption == nil {
		return nil, models.ErrUnknownStep
	}
	if len(a.Text) > models.MaxCustomAnswerLength {
		return nil, models.ErrCustomAnswerTooLong
	}
	c.answers.SetCustom(step.ID, a.Text)
	c.saveMirror()
	return c.view(), nil
}

func (c *Controller) setControl(a models.Action) (*View, error) {
	if c.nav.PendingSubmission {
		return nil, models.ErrSubmissionPending
	}
	step, ok := c.catalog.StepByID(a.StepID)
	if !ok || step.Type != models.StepTypeControls {
		return nil, models.ErrUnknownStep
	}
	if a.Control == nil || a.Control.IsEmpty() {
		return c.view(), nil
	}
	patch := *a.Control
	if patch.Temperature != nil && step.Temperature != nil {
		t := clamp(*patch.Temperature, step.Temperature.Min, step.Temperature.Max)
		patch.Temperature = &t
	}
	if patch.Enhancer != nil && len(*patch.Enhancer) > models.MaxEnhancerLength {
		return nil, models.ErrCustomAnswerTooLong
	}
	c.answers.EnsureControlDefaults(step)
	c.answers.SetControl(step.ID, patch)
	c.saveMirror()
	return c.view(), nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// selectTimeline records the timeline choice. When the session is on the
// terminal timeline step, the selection itself triggers submission.
func (c *Controller) selectTimeline(a models.Action) (*View, error) {
	if c.nav.PendingSubmission {
		return nil, models.ErrSubmissionPending
	}
	if c.nav.IsTransitioning {
		return nil, models.ErrTransitionInFlight
	}
	step, ok := c.catalog.StepByID(a.StepID)
	if !ok || step.Type != models.StepTypeTimeline {
		return nil, models.ErrUnknownStep
	}
	if a.OptionIndex < 0 || a.OptionIndex >= step.OptionCount() {
		return nil, models.ErrInvalidOptionIndex
	}
	c.answers.Select(step.ID, a.OptionIndex, false)
	c.saveMirror()

	onTerminal := c.nav.Phase == models.PhaseCreation &&
		c.nav.CreationStep == c.catalog.TimelineIndex()
	if onTerminal && c.submitter != nil {
		c.beginSubmission()
	}
	return c.view(), nil
}

// beginSubmission snapshots the answer store, locks navigation, and runs the
// pipeline in the background. The snapshot happens-before the network call.
func (c *Controller) beginSubmission() {
	snapshot := c.answers.Snapshot(c.id)
	c.nav.PendingSubmission = true
	c.submitErr = ""
	c.submitting = true

	media, hasMedia := c.catalog.TransitionMedia(models.PhaseCreation, c.nav.CreationStep)
	if hasMedia {
		c.transitionMedia = &media
		c.nav.IsTransitioning = true
		c.orchestrator = transition.New(c.transitionCfg, c.onTransitionComplete)
		c.orchestrator.AwaitData()
		c.orchestrator.Start()
	}
	orch := c.orchestrator
	gen := c.generation
	slog.Info("Controller submission started", "session", c.id, "with_transition", hasMedia)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), SubmissionTimeout)
		defer cancel()
		result, err := c.submitter.Submit(ctx, snapshot)
		c.finishSubmission(result, err, orch, hasMedia, gen)
	}()
}

// finishSubmission records the submission outcome. On failure the answer
// store is left untouched so a manual retry can resubmit without
// re-answering the wizard. Outcomes from a submission that a reset
// superseded are dropped: the session stays wherever the reset put it.
func (c *Controller) finishSubmission(result *models.RecipeResult, err error, orch *transition.Orchestrator, hasMedia bool, gen uint64) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		slog.Info("Controller discarded stale submission outcome", "session", c.id, "generation", gen)
		return
	}
	if err != nil {
		slog.Error("Controller submission failed", "session", c.id, "error", err)
		c.submitErr = "We couldn't create your recipe. Your answers are saved - try again."
	} else {
		c.result = result
		slog.Info("Controller submission succeeded", "session", c.id, "recipe", result.ID)
	}
	c.nav.PendingSubmission = false

	if !hasMedia || orch == nil {
		// No transition covered the boundary: resolve directly.
		c.submitting = false
		if c.result != nil {
			c.nav.Phase = models.PhaseResult
		}
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	// Signals the join barrier; may complete the transition synchronously.
	orch.DataReady()
}

// reset is called with the session mutex held. It is accepted in every
// state, including mid-submission: bumping the generation makes any
// in-flight submission land as a no-op.
func (c *Controller) reset() (*View, error) {
	c.generation++
	if c.orchestrator != nil {
		c.orchestrator.Cancel()
		c.orchestrator = nil
	}
	c.answers.Reset()
	c.result = nil
	c.submitErr = ""
	c.pendingTarget = nil
	c.transitionMedia = nil
	c.submitting = false
	c.nav = models.NavigationState{Phase: models.PhaseIntro, IntroStep: 1}
	c.saveMirror()
	slog.Info("Controller reset", "session", c.id)
	return c.view(), nil
}

// Teardown cancels any in-flight transition. Called when the session is
// removed.
func (c *Controller) Teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.orchestrator != nil {
		c.orchestrator.Cancel()
		c.orchestrator = nil
	}
}

// Result returns the recipe result, if the session has one.
func (c *Controller) Result() *models.RecipeResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// CurrentView returns the session's renderable state without mutating it.
func (c *Controller) CurrentView() *View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view()
}

// Restore replays a persisted answer mirror into the session verbatim.
func (c *Controller) Restore(rec models.SessionRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.answers.Restore(rec)
	slog.Info("Controller restored answers from mirror", "session", c.id,
		"answers", len(rec.Answers), "custom", len(rec.CustomAnswers), "controls", len(rec.ControlValues))
}

func (c *Controller) saveMirror() {
	if c.mirror == nil {
		return
	}
	if err := c.mirror.SaveSessionRecord(c.answers.Snapshot(c.id)); err != nil {
		slog.Warn("Controller mirror save failed", "session", c.id, "error", err)
	}
}
