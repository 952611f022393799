package session

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/morgen873/kisson/internal/catalog"
	"github.com/morgen873/kisson/internal/models"
	"github.com/morgen873/kisson/internal/transition"
)

// shortTransitions keeps the worst-case transition bound small in tests.
var shortTransitions = transition.Config{
	LoadTimeout:      30 * time.Millisecond,
	FallbackDuration: 15 * time.Millisecond,
}

func testCatalog(t *testing.T, media []catalog.MediaMapping) *catalog.Catalog {
	t.Helper()
	intro := []models.Step{
		{Type: models.StepTypeExplanation, Title: "hero"},
		{Type: models.StepTypeExplanation, Title: "welcome"},
	}
	creation := []models.Step{
		{
			Type: models.StepTypeQuestion,
			ID:   "q1",
			Options: []models.StepOption{
				{Title: "a"}, {Title: "b"}, {Title: "c"},
			},
			CustomOption: &models.CustomOption{Title: "other"},
		},
		{
			Type:        models.StepTypeQuestion,
			ID:          "q2",
			MultiSelect: true,
			Options: []models.StepOption{
				{Title: "x"}, {Title: "y"},
			},
		},
		{
			Type:        models.StepTypeControls,
			ID:          "c1",
			Temperature: &models.TemperatureSpec{Min: 100, Max: 250, Default: 160},
			Shape:       &models.EnumSpec{Options: []string{"round", "oval"}, Default: "round"},
			Flavor:      &models.EnumSpec{Options: []string{"sweet", "savory"}, Default: "savory"},
			Enhancer:    &models.EnhancerSpec{},
		},
		{
			Type: models.StepTypeTimeline,
			ID:   "t1",
			TimelineOptions: []models.TimelineOption{
				{Title: "Past", Value: "Past"}, {Title: "Future", Value: "Future"},
			},
		},
	}
	c, err := catalog.New(intro, creation, media)
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	return c
}

type fakeSubmitter struct {
	mu      sync.Mutex
	got     []models.SessionRecord
	result  *models.RecipeResult
	err     error
	release chan struct{} // when non-nil, Submit blocks until closed
}

func (f *fakeSubmitter) Submit(ctx context.Context, snapshot models.SessionRecord) (*models.RecipeResult, error) {
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, snapshot)
	return f.result, f.err
}

func (f *fakeSubmitter) snapshots() []models.SessionRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.SessionRecord, len(f.got))
	copy(out, f.got)
	return out
}

type fakeMirror struct {
	mu   sync.Mutex
	recs []models.SessionRecord
	err  error
}

func (f *fakeMirror) SaveSessionRecord(rec models.SessionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, rec)
	return f.err
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func dispatch(t *testing.T, c *Controller, a models.Action) *View {
	t.Helper()
	v, err := c.Dispatch(a)
	if err != nil {
		t.Fatalf("Dispatch(%s): %v", a.Type, err)
	}
	return v
}

// answerUpToTimeline walks a fresh controller to the terminal timeline step.
func answerUpToTimeline(t *testing.T, c *Controller) {
	t.Helper()
	dispatch(t, c, models.Action{Type: models.ActionNext}) // hero -> welcome
	dispatch(t, c, models.Action{Type: models.ActionNext}) // welcome -> creation 0
	dispatch(t, c, models.Action{Type: models.ActionSelectAnswer, StepID: "q1", OptionIndex: 0})
	dispatch(t, c, models.Action{Type: models.ActionNext})
	dispatch(t, c, models.Action{Type: models.ActionSelectAnswer, StepID: "q2", OptionIndex: 1})
	dispatch(t, c, models.Action{Type: models.ActionNext})
	dispatch(t, c, models.Action{Type: models.ActionNext}) // controls always advance
}

func TestNavigationCrossesPhaseBoundaries(t *testing.T) {
	c := NewController("s1", testCatalog(t, nil))

	v := dispatch(t, c, models.Action{Type: models.ActionNext})
	if v.Nav.Phase != models.PhaseIntro || v.Nav.IntroStep != 1 {
		t.Fatalf("nav = %+v, want intro step 1", v.Nav)
	}

	// Last intro step crosses into creation.
	v = dispatch(t, c, models.Action{Type: models.ActionNext})
	if v.Nav.Phase != models.PhaseCreation || v.Nav.CreationStep != 0 {
		t.Fatalf("nav = %+v, want creation step 0", v.Nav)
	}

	// Back from creation 0 returns to the last intro step.
	v = dispatch(t, c, models.Action{Type: models.ActionPrev})
	if v.Nav.Phase != models.PhaseIntro || v.Nav.IntroStep != 1 {
		t.Fatalf("nav after prev = %+v, want intro step 1", v.Nav)
	}
}

func TestPrevOnHeroIsNoOp(t *testing.T) {
	c := NewController("s1", testCatalog(t, nil))
	v := dispatch(t, c, models.Action{Type: models.ActionPrev})
	if v.Nav.Phase != models.PhaseIntro || v.Nav.IntroStep != 0 {
		t.Fatalf("nav = %+v, want unchanged hero position", v.Nav)
	}
}

func TestNextBlockedByValidation(t *testing.T) {
	c := NewController("s1", testCatalog(t, nil))
	dispatch(t, c, models.Action{Type: models.ActionNext})
	dispatch(t, c, models.Action{Type: models.ActionNext}) // now on q1

	if _, err := c.Dispatch(models.Action{Type: models.ActionNext}); !errors.Is(err, models.ErrValidationBlocked) {
		t.Fatalf("Next on unanswered question = %v, want ErrValidationBlocked", err)
	}

	dispatch(t, c, models.Action{Type: models.ActionSelectAnswer, StepID: "q1", OptionIndex: 2})
	v := dispatch(t, c, models.Action{Type: models.ActionNext})
	if v.Nav.CreationStep != 1 {
		t.Fatalf("nav = %+v, want creation step 1", v.Nav)
	}
}

func TestNextOnTerminalStepRejected(t *testing.T) {
	c := NewController("s1", testCatalog(t, nil))
	answerUpToTimeline(t, c)
	dispatch(t, c, models.Action{Type: models.ActionSelectTimeline, StepID: "t1", OptionIndex: 0})

	if _, err := c.Dispatch(models.Action{Type: models.ActionNext}); !errors.Is(err, models.ErrNotTimelineStep) {
		t.Fatalf("Next on terminal step = %v, want ErrNotTimelineStep", err)
	}
}

func TestControlDefaultsSeededOnEntry(t *testing.T) {
	c := NewController("s1", testCatalog(t, nil))
	dispatch(t, c, models.Action{Type: models.ActionNext})
	dispatch(t, c, models.Action{Type: models.ActionNext})

	// Not on the controls step yet: no bundle exists.
	if _, ok := c.Answers().Control("c1"); ok {
		t.Fatal("control bundle should not exist before the step is entered")
	}

	dispatch(t, c, models.Action{Type: models.ActionSelectAnswer, StepID: "q1", OptionIndex: 0})
	dispatch(t, c, models.Action{Type: models.ActionNext})
	dispatch(t, c, models.Action{Type: models.ActionSelectAnswer, StepID: "q2", OptionIndex: 0})
	dispatch(t, c, models.Action{Type: models.ActionNext}) // enters controls

	cv, ok := c.Answers().Control("c1")
	if !ok {
		t.Fatal("control bundle should be seeded on first entry")
	}
	if cv.Temperature != 160 || cv.Shape != "round" || cv.Flavor != "savory" {
		t.Errorf("seeded controls = %+v, want catalog defaults", cv)
	}
}

func TestSetControlClampsTemperature(t *testing.T) {
	c := NewController("s1", testCatalog(t, nil))
	low, high := 40, 900
	dispatch(t, c, models.Action{Type: models.ActionSetControl, StepID: "c1", Control: &models.ControlPatch{Temperature: &low}})
	cv, _ := c.Answers().Control("c1")
	if cv.Temperature != 100 {
		t.Errorf("Temperature = %d, want clamped to 100", cv.Temperature)
	}
	dispatch(t, c, models.Action{Type: models.ActionSetControl, StepID: "c1", Control: &models.ControlPatch{Temperature: &high}})
	cv, _ = c.Answers().Control("c1")
	if cv.Temperature != 250 {
		t.Errorf("Temperature = %d, want clamped to 250", cv.Temperature)
	}
}

func TestAnswerActionErrors(t *testing.T) {
	c := NewController("s1", testCatalog(t, nil))

	if _, err := c.Dispatch(models.Action{Type: models.ActionSelectAnswer, StepID: "missing", OptionIndex: 0}); !errors.Is(err, models.ErrUnknownStep) {
		t.Errorf("unknown step = %v, want ErrUnknownStep", err)
	}
	// q1 has 3 options plus the custom slot at index 3.
	if _, err := c.Dispatch(models.Action{Type: models.ActionSelectAnswer, StepID: "q1", OptionIndex: 4}); !errors.Is(err, models.ErrInvalidOptionIndex) {
		t.Errorf("out of range index = %v, want ErrInvalidOptionIndex", err)
	}
	if _, err := c.Dispatch(models.Action{Type: models.ActionSelectAnswer, StepID: "q1", OptionIndex: -1}); !errors.Is(err, models.ErrInvalidOptionIndex) {
		t.Errorf("negative index = %v, want ErrInvalidOptionIndex", err)
	}
	if _, err := c.Dispatch(models.Action{Type: models.ActionSelectAnswer, StepID: "q1", OptionIndex: 3}); err != nil {
		t.Errorf("custom slot index = %v, want accepted", err)
	}

	long := make([]byte, models.MaxCustomAnswerLength+1)
	for i := range long {
		long[i] = 'x'
	}
	if _, err := c.Dispatch(models.Action{Type: models.ActionSetCustomAnswer, StepID: "q1", Text: string(long)}); !errors.Is(err, models.ErrCustomAnswerTooLong) {
		t.Errorf("oversized custom text = %v, want ErrCustomAnswerTooLong", err)
	}
	if _, err := c.Dispatch(models.Action{Type: "bogus"}); !errors.Is(err, models.ErrInvalidAction) {
		t.Errorf("unknown action = %v, want ErrInvalidAction", err)
	}
}

func TestTransitionDefersNavigation(t *testing.T) {
	media := []catalog.MediaMapping{
		{Phase: models.PhaseIntro, FromIndex: 1, Media: catalog.Media{Kind: catalog.MediaKindVideo, URL: "/t.mp4"}},
	}
	c := NewController("s1", testCatalog(t, media), WithTransitionConfig(shortTransitions))
	dispatch(t, c, models.Action{Type: models.ActionNext}) // hero -> welcome, no media

	v := dispatch(t, c, models.Action{Type: models.ActionNext}) // welcome -> creation, mapped
	if !v.Nav.IsTransitioning {
		t.Fatal("transition should be in flight")
	}
	if v.Nav.Phase != models.PhaseIntro || v.Nav.IntroStep != 1 {
		t.Fatalf("nav = %+v, index must not move until the transition completes", v.Nav)
	}
	if v.TransitionMedia == nil || v.TransitionMedia.URL != "/t.mp4" {
		t.Fatalf("view media = %+v, want the mapped asset", v.TransitionMedia)
	}

	// Navigation is locked while the transition runs.
	if _, err := c.Dispatch(models.Action{Type: models.ActionNext}); !errors.Is(err, models.ErrTransitionInFlight) {
		t.Fatalf("Next during transition = %v, want ErrTransitionInFlight", err)
	}

	c.MediaEvent(models.MediaEventReady)
	c.MediaEvent(models.MediaEventEnded)

	v = c.CurrentView()
	if v.Nav.IsTransitioning {
		t.Fatal("transition should have completed")
	}
	if v.Nav.Phase != models.PhaseCreation || v.Nav.CreationStep != 0 {
		t.Fatalf("nav = %+v, want creation step 0 after completion", v.Nav)
	}
}

func TestTransitionFailureFallsBackWithinBound(t *testing.T) {
	media := []catalog.MediaMapping{
		{Phase: models.PhaseIntro, FromIndex: 0, Media: catalog.Media{Kind: catalog.MediaKindVideo, URL: "/t.mp4"}},
	}
	c := NewController("s1", testCatalog(t, media), WithTransitionConfig(shortTransitions))

	v := dispatch(t, c, models.Action{Type: models.ActionNext})
	if !v.Nav.IsTransitioning {
		t.Fatal("transition should be in flight")
	}
	// No media events at all: the load timeout and fallback must finish the
	// transition on their own.
	waitFor(t, func() bool {
		view := c.CurrentView()
		return !view.Nav.IsTransitioning && view.Nav.IntroStep == 1
	}, "transition never completed via fallback")
}

func TestSubmissionSnapshotPrecedesLaterEdits(t *testing.T) {
	sub := &fakeSubmitter{
		result:  &models.RecipeResult{ID: "rcp_1", Title: "Dumpling"},
		release: make(chan struct{}),
	}
	c := NewController("s1", testCatalog(t, nil), WithSubmitter(sub))
	answerUpToTimeline(t, c)

	dispatch(t, c, models.Action{Type: models.ActionSelectTimeline, StepID: "t1", OptionIndex: 0})
	if !c.CurrentView().Nav.PendingSubmission {
		t.Fatal("submission should be pending")
	}

	// Mutations after the dispatch must not leak into the in-flight payload.
	if _, err := c.Dispatch(models.Action{Type: models.ActionSelectAnswer, StepID: "q1", OptionIndex: 1}); !errors.Is(err, models.ErrSubmissionPending) {
		t.Fatalf("answer edit during submission = %v, want ErrSubmissionPending", err)
	}
	close(sub.release)

	waitFor(t, func() bool { return c.Result() != nil }, "submission never finished")
	snaps := sub.snapshots()
	if len(snaps) != 1 {
		t.Fatalf("submitter called %d times, want 1", len(snaps))
	}
	if !reflect.DeepEqual(snaps[0].Answers["q1"], []int{0}) {
		t.Errorf("snapshot q1 = %v, want the pre-submission selection [0]", snaps[0].Answers["q1"])
	}

	v := c.CurrentView()
	if v.Nav.Phase != models.PhaseResult {
		t.Errorf("nav = %+v, want result phase", v.Nav)
	}
	if v.Result == nil || v.Result.ID != "rcp_1" {
		t.Errorf("result = %+v, want rcp_1", v.Result)
	}
}

func TestSubmissionFailurePreservesAnswers(t *testing.T) {
	sub := &fakeSubmitter{err: errors.New("generation backend down")}
	c := NewController("s1", testCatalog(t, nil), WithSubmitter(sub))
	answerUpToTimeline(t, c)
	dispatch(t, c, models.Action{Type: models.ActionSelectTimeline, StepID: "t1", OptionIndex: 1})

	waitFor(t, func() bool {
		v := c.CurrentView()
		return !v.Nav.PendingSubmission && v.SubmissionError != ""
	}, "failed submission never settled")

	v := c.CurrentView()
	if v.Nav.Phase == models.PhaseResult {
		t.Error("failed submission must not enter the result phase")
	}
	if got := c.Answers().Selected("q1"); !reflect.DeepEqual(got, []int{0}) {
		t.Errorf("answers after failure = %v, want preserved", got)
	}

	// Manual retry: selecting the timeline again resubmits the same answers.
	sub.mu.Lock()
	sub.err = nil
	sub.result = &models.RecipeResult{ID: "rcp_2"}
	sub.mu.Unlock()
	dispatch(t, c, models.Action{Type: models.ActionSelectTimeline, StepID: "t1", OptionIndex: 1})
	waitFor(t, func() bool { return c.Result() != nil }, "retry never finished")
	if c.CurrentView().Nav.Phase != models.PhaseResult {
		t.Error("retry should reach the result phase")
	}
}

func TestSubmissionJoinBarrierWaitsForBoth(t *testing.T) {
	media := []catalog.MediaMapping{
		{Phase: models.PhaseCreation, FromIndex: 3, Media: catalog.Media{Kind: catalog.MediaKindVideo, URL: "/steam.mp4"}},
	}
	sub := &fakeSubmitter{
		result:  &models.RecipeResult{ID: "rcp_3"},
		release: make(chan struct{}),
	}
	cfg := transition.Config{LoadTimeout: time.Minute, FallbackDuration: time.Minute}
	c := NewController("s1", testCatalog(t, media), WithSubmitter(sub), WithTransitionConfig(cfg))
	answerUpToTimeline(t, c)
	dispatch(t, c, models.Action{Type: models.ActionSelectTimeline, StepID: "t1", OptionIndex: 0})

	// Playback finishes first; the data half of the join is still missing.
	c.MediaEvent(models.MediaEventReady)
	c.MediaEvent(models.MediaEventEnded)
	time.Sleep(20 * time.Millisecond)
	if v := c.CurrentView(); v.Nav.Phase == models.PhaseResult {
		t.Fatal("result phase must wait for the submission outcome")
	}

	close(sub.release)
	waitFor(t, func() bool {
		v := c.CurrentView()
		return v.Nav.Phase == models.PhaseResult && !v.Nav.IsTransitioning
	}, "join barrier never resolved")
}

func TestTimelineSelectionOnNonTerminalStepDoesNotSubmit(t *testing.T) {
	sub := &fakeSubmitter{result: &models.RecipeResult{ID: "rcp_x"}}
	c := NewController("s1", testCatalog(t, nil), WithSubmitter(sub))
	// Still on the hero step: the timeline answer is recorded but nothing
	// submits.
	dispatch(t, c, models.Action{Type: models.ActionSelectTimeline, StepID: "t1", OptionIndex: 0})
	time.Sleep(20 * time.Millisecond)
	if len(sub.snapshots()) != 0 {
		t.Error("submission must only trigger from the terminal step")
	}
	if got := c.Answers().Selected("t1"); !reflect.DeepEqual(got, []int{0}) {
		t.Errorf("timeline answer = %v, want recorded", got)
	}
}

func TestResetReturnsToIntro(t *testing.T) {
	sub := &fakeSubmitter{result: &models.RecipeResult{ID: "rcp_4"}}
	c := NewController("s1", testCatalog(t, nil), WithSubmitter(sub))
	answerUpToTimeline(t, c)
	dispatch(t, c, models.Action{Type: models.ActionSelectTimeline, StepID: "t1", OptionIndex: 0})
	waitFor(t, func() bool { return c.Result() != nil }, "submission never finished")

	v := dispatch(t, c, models.Action{Type: models.ActionReset})
	if v.Nav.Phase != models.PhaseIntro || v.Nav.IntroStep != 1 {
		t.Errorf("nav after reset = %+v, want intro step 1", v.Nav)
	}
	if v.Result != nil || v.SubmissionError != "" {
		t.Error("reset must clear the result and error")
	}
	if got := c.Answers().Selected("q1"); len(got) != 0 {
		t.Errorf("answers after reset = %v, want empty", got)
	}
}

func TestResetDiscardsInFlightSubmission(t *testing.T) {
	sub := &fakeSubmitter{
		result:  &models.RecipeResult{ID: "rcp_stale"},
		release: make(chan struct{}),
	}
	c := NewController("s1", testCatalog(t, nil), WithSubmitter(sub))
	answerUpToTimeline(t, c)
	dispatch(t, c, models.Action{Type: models.ActionSelectTimeline, StepID: "t1", OptionIndex: 0})

	v := dispatch(t, c, models.Action{Type: models.ActionReset})
	if v.Nav.Phase != models.PhaseIntro || v.Nav.IntroStep != 1 {
		t.Fatalf("nav after reset = %+v, want intro step 1", v.Nav)
	}

	close(sub.release)
	waitFor(t, func() bool { return len(sub.snapshots()) == 1 }, "submitter never returned")
	time.Sleep(50 * time.Millisecond) // let the outcome land

	// The outcome of the superseded submission must not surface.
	v = c.CurrentView()
	if v.Nav.Phase != models.PhaseIntro || v.Nav.IntroStep != 1 {
		t.Errorf("nav after stale outcome = %+v, want intro step 1", v.Nav)
	}
	if v.Result != nil {
		t.Errorf("result after stale outcome = %+v, want nil", v.Result)
	}
	if v.SubmissionError != "" {
		t.Errorf("submission error after stale outcome = %q, want empty", v.SubmissionError)
	}

	// The session is reusable: a fresh walk-through from intro step 1
	// submits again.
	dispatch(t, c, models.Action{Type: models.ActionNext}) // welcome -> creation 0
	dispatch(t, c, models.Action{Type: models.ActionSelectAnswer, StepID: "q1", OptionIndex: 0})
	dispatch(t, c, models.Action{Type: models.ActionNext})
	dispatch(t, c, models.Action{Type: models.ActionSelectAnswer, StepID: "q2", OptionIndex: 1})
	dispatch(t, c, models.Action{Type: models.ActionNext})
	dispatch(t, c, models.Action{Type: models.ActionNext}) // controls always advance
	dispatch(t, c, models.Action{Type: models.ActionSelectTimeline, StepID: "t1", OptionIndex: 0})
	waitFor(t, func() bool { return c.Result() != nil }, "second submission never finished")
	if got := c.Result().ID; got != "rcp_stale" {
		t.Errorf("second submission result = %q, want rcp_stale", got)
	}
}

func TestMirrorReceivesEveryAnswerMutation(t *testing.T) {
	m := &fakeMirror{}
	c := NewController("s1", testCatalog(t, nil), WithMirror(m))
	dispatch(t, c, models.Action{Type: models.ActionNext})
	dispatch(t, c, models.Action{Type: models.ActionNext})
	dispatch(t, c, models.Action{Type: models.ActionSelectAnswer, StepID: "q1", OptionIndex: 1})
	dispatch(t, c, models.Action{Type: models.ActionSetCustomAnswer, StepID: "q1", Text: "sea salt"})

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.recs) != 2 {
		t.Fatalf("mirror saved %d records, want 2", len(m.recs))
	}
	last := m.recs[len(m.recs)-1]
	if last.CustomAnswers["q1"] != "sea salt" {
		t.Errorf("mirrored custom = %q", last.CustomAnswers["q1"])
	}
}

func TestMirrorFailureDoesNotFailDispatch(t *testing.T) {
	m := &fakeMirror{err: errors.New("disk full")}
	c := NewController("s1", testCatalog(t, nil), WithMirror(m))
	dispatch(t, c, models.Action{Type: models.ActionNext})
	dispatch(t, c, models.Action{Type: models.ActionNext})
	if _, err := c.Dispatch(models.Action{Type: models.ActionSelectAnswer, StepID: "q1", OptionIndex: 0}); err != nil {
		t.Fatalf("dispatch = %v, mirror errors must not surface", err)
	}
}

func TestRestoreReplaysMirror(t *testing.T) {
	c := NewController("s1", testCatalog(t, nil))
	c.Restore(models.SessionRecord{
		SessionID:     "s1",
		Answers:       map[string][]int{"q1": {2}},
		CustomAnswers: map[string]string{"q1": "lemon"},
	})
	if got := c.Answers().Selected("q1"); !reflect.DeepEqual(got, []int{2}) {
		t.Errorf("restored selection = %v", got)
	}
	if c.Answers().Custom("q1") != "lemon" {
		t.Errorf("restored custom = %q", c.Answers().Custom("q1"))
	}
}
