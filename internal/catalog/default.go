// Package catalog defines the built-in KissOn exhibition wizard.
package catalog

import "github.com/morgen873/kisson/internal/models"

// Step ids for the built-in creation sequence. Stable across a session;
// also used as answer-store keys and submission payload keys.
const (
	StepIDMemory   = "1"
	StepIDEmotions = "2"
	StepIDSharing  = "3"
	StepIDControls = "4"
	StepIDTimeline = "5"
)

// Default returns the exhibition catalog used by the kiosk. Panics on an
// inconsistent definition, which only happens on a programming error in
// this file.
func Default() *Catalog {
	intro := []models.Step{
		{
			Type:  models.StepTypeExplanation,
			Title: "KissOn",
		},
		{
			Type:        models.StepTypeExplanation,
			Title:       "Welcome",
			Description: "Turn a feeling into a dumpling. KissOn asks a few questions about a memory you carry, then folds it into a recipe made just for you.",
		},
		{
			Type:        models.StepTypeExplanation,
			Title:       "How it works",
			Description: "Answer each question with a touch. When you finish, we generate your recipe, a picture of your dumpling, and a label you can take home.",
		},
	}

	creation := []models.Step{
		{
			Type:        models.StepTypeExplanation,
			Title:       "Let's begin",
			Description: "There are no wrong answers. Pick whatever feels closest.",
		},
		{
			Type:     models.StepTypeQuestion,
			ID:       StepIDMemory,
			Title:    "The memory",
			Question: "Which memory should flavor your dumpling?",
			Options: []models.StepOption{
				{Title: "A childhood memory", Description: "Something small that stayed with you"},
				{Title: "A celebration", Description: "A day everything went right"},
				{Title: "A quiet comfort", Description: "An ordinary moment you miss"},
				{Title: "A goodbye", Description: "Someone or somewhere you left"},
			},
			CustomOption: &models.CustomOption{
				Title:       "Something else",
				Placeholder: "Tell us in your own words...",
			},
		},
		{
			Type:     models.StepTypeQuestion,
			ID:       StepIDEmotions,
			Title:    "The filling",
			Question: "Which emotions should we fold in?",
			Options: []models.StepOption{
				{Title: "Joy"},
				{Title: "Longing"},
				{Title: "Courage"},
				{Title: "Calm"},
				{Title: "Mischief"},
			},
			CustomOption: &models.CustomOption{
				Title:       "Another feeling",
				Placeholder: "Name the feeling...",
			},
			MultiSelect: true,
		},
		{
			Type:     models.StepTypeQuestion,
			ID:       StepIDSharing,
			Title:    "The table",
			Question: "Who is this dumpling for?",
			Options: []models.StepOption{
				{Title: "Just for me"},
				{Title: "Someone I love"},
				{Title: "Someone I lost"},
				{Title: "A stranger"},
			},
		},
		{
			Type:        models.StepTypeControls,
			ID:          StepIDControls,
			Title:       "The kitchen",
			Description: "Set how your dumpling should be cooked.",
			Temperature: &models.TemperatureSpec{Min: 100, Max: 250, Unit: "°C", Default: 160},
			Shape: &models.EnumSpec{
				Options: []string{"round", "oval", "crescent", "square"},
				Default: "round",
			},
			Flavor: &models.EnumSpec{
				Options: []string{"sweet", "savory", "spicy", "umami"},
				Default: "savory",
			},
			Enhancer: &models.EnhancerSpec{
				Placeholder: "A secret ingredient? (optional)",
			},
		},
		{
			Type:        models.StepTypeTimeline,
			ID:          StepIDTimeline,
			Title:       "The moment",
			Description: "When does your memory live?",
			TimelineOptions: []models.TimelineOption{
				{Title: "Past", Description: "A taste of what was", Value: "Past"},
				{Title: "Present", Description: "A taste of right now", Value: "Present"},
				{Title: "Future", Description: "A taste of what could be", Value: "Future"},
			},
		},
	}

	// Transition assets keyed by the boundary they cover. Boundaries not
	// listed here transition instantly.
	media := []MediaMapping{
		{Phase: models.PhaseIntro, FromIndex: 2, Media: Media{Kind: MediaKindVideo, URL: "/transitions/doors-open.mp4"}},
		{Phase: models.PhaseCreation, FromIndex: 0, Media: Media{Kind: MediaKindVideo, URL: "/transitions/flour-cloud.mp4"}},
		{Phase: models.PhaseCreation, FromIndex: 1, Media: Media{Kind: MediaKindGIF, URL: "/transitions/kneading.gif"}},
		{Phase: models.PhaseCreation, FromIndex: 3, Media: Media{Kind: MediaKindVideo, URL: "/transitions/folding.mp4"}},
		{Phase: models.PhaseCreation, FromIndex: 5, Media: Media{Kind: MediaKindVideo, URL: "/transitions/steam-rise.mp4"}},
	}

	c, err := New(intro, creation, media)
	if err != nil {
		panic("catalog: invalid default definition: " + err.Error())
	}
	return c
}
