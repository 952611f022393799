package catalog

import (
	"testing"

	"github.com/morgen873/kisson/internal/models"
)

func TestDefaultCatalogShape(t *testing.T) {
	c := Default()

	if got := c.IntroLen(); got != 3 {
		t.Errorf("IntroLen() = %d, want 3", got)
	}
	if got := c.CreationLen(); got != 6 {
		t.Errorf("CreationLen() = %d, want 6", got)
	}
	if got := c.TimelineIndex(); got != 5 {
		t.Errorf("TimelineIndex() = %d, want 5", got)
	}

	for _, id := range []string{StepIDMemory, StepIDEmotions, StepIDSharing, StepIDControls, StepIDTimeline} {
		if _, ok := c.StepByID(id); !ok {
			t.Errorf("StepByID(%q) not found", id)
		}
	}
	if _, ok := c.StepByID("nope"); ok {
		t.Error("StepByID(nope) should not resolve")
	}
}

func TestDefaultCatalogStepTypes(t *testing.T) {
	c := Default()

	memory, _ := c.StepByID(StepIDMemory)
	if memory.Type != models.StepTypeQuestion || memory.MultiSelect {
		t.Errorf("memory step: type=%s multi=%v, want single-select question", memory.Type, memory.MultiSelect)
	}
	if memory.CustomOption == nil {
		t.Error("memory step should offer a custom option")
	}

	emotions, _ := c.StepByID(StepIDEmotions)
	if !emotions.MultiSelect {
		t.Error("emotions step should be multi-select")
	}

	controls, _ := c.StepByID(StepIDControls)
	if controls.Type != models.StepTypeControls {
		t.Errorf("controls step type = %s", controls.Type)
	}
	if controls.Temperature == nil || controls.Temperature.Default != 160 {
		t.Errorf("controls temperature spec = %+v, want default 160", controls.Temperature)
	}

	timeline, _ := c.StepByID(StepIDTimeline)
	if timeline.Type != models.StepTypeTimeline || len(timeline.TimelineOptions) != 3 {
		t.Errorf("timeline step = %+v, want 3 timeline options", timeline)
	}
}

func TestTransitionMediaLookup(t *testing.T) {
	c := Default()

	if m, ok := c.TransitionMedia(models.PhaseIntro, 2); !ok || m.Kind != MediaKindVideo {
		t.Errorf("TransitionMedia(intro, 2) = %+v, %v; want a video mapping", m, ok)
	}
	if m, ok := c.TransitionMedia(models.PhaseCreation, 1); !ok || m.Kind != MediaKindGIF {
		t.Errorf("TransitionMedia(creation, 1) = %+v, %v; want a gif mapping", m, ok)
	}
	// The controls boundary transitions instantly.
	if _, ok := c.TransitionMedia(models.PhaseCreation, 2); ok {
		t.Error("TransitionMedia(creation, 2) should be unmapped")
	}
	if _, ok := c.TransitionMedia(models.PhaseResult, 0); ok {
		t.Error("TransitionMedia(result, 0) should be unmapped")
	}
}

func TestNewRejectsInvalidDefinitions(t *testing.T) {
	cases := []struct {
		name     string
		creation []models.Step
	}{
		{
			name: "duplicate id",
			creation: []models.Step{
				{Type: models.StepTypeQuestion, ID: "1"},
				{Type: models.StepTypeQuestion, ID: "1"},
			},
		},
		{
			name: "missing id",
			creation: []models.Step{
				{Type: models.StepTypeQuestion},
			},
		},
		{
			name: "explanation with id",
			creation: []models.Step{
				{Type: models.StepTypeExplanation, ID: "1"},
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(nil, tc.creation, nil); err == nil {
				t.Error("New() should have failed")
			}
		})
	}
}

func TestIndexBounds(t *testing.T) {
	c := Default()
	if _, ok := c.IntroStep(-1); ok {
		t.Error("IntroStep(-1) should be out of range")
	}
	if _, ok := c.IntroStep(c.IntroLen()); ok {
		t.Error("IntroStep(len) should be out of range")
	}
	if _, ok := c.CreationStep(c.CreationLen()); ok {
		t.Error("CreationStep(len) should be out of range")
	}
}
