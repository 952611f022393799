// Package models defines the core data structures for KissOn.
//
// It includes the wizard step catalog types, answer values, and shared
// request/response payloads used across modules.
package models

import "errors"

// StepType defines how a wizard step is rendered and validated.
type StepType string

const (
	// StepTypeExplanation is an informational step with no input.
	StepTypeExplanation StepType = "explanation"
	// StepTypeQuestion is a single- or multi-select question step.
	StepTypeQuestion StepType = "question"
	// StepTypeControls is a step with numeric/enum recipe controls.
	StepTypeControls StepType = "controls"
	// StepTypeTimeline is the terminal step selecting a time period.
	StepTypeTimeline StepType = "timeline"
)

// Validation constants for input validation
const (
	// MaxCustomAnswerLength defines the maximum allowed length for custom free-text answers
	MaxCustomAnswerLength = 500
	// MaxEnhancerLength defines the maximum allowed length for the enhancer control text
	MaxEnhancerLength = 200
)

// Error variables for better error handling and testability
var (
	ErrUnknownStep         = errors.New("unknown step id")
	ErrUnknownSession      = errors.New("unknown session")
	ErrInvalidAction       = errors.New("invalid action type")
	ErrInvalidOptionIndex  = errors.New("option index out of range")
	ErrValidationBlocked   = errors.New("current step is incomplete")
	ErrTransitionInFlight  = errors.New("a step transition is already in flight")
	ErrSubmissionPending   = errors.New("a submission is already pending")
	ErrNotTimelineStep     = errors.New("submission may only be triggered from the timeline step")
	ErrCustomAnswerTooLong = errors.New("custom answer exceeds maximum length")
	ErrRecipeNotFound      = errors.New("recipe not found")
)

// StepOption is a selectable option on a question step.
type StepOption struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// CustomOption marks a question option that accepts free text instead of a
// canned answer. It always occupies the index right after the regular
// options.
type CustomOption struct {
	Title       string `json:"title"`
	Placeholder string `json:"placeholder,omitempty"`
}

// TemperatureSpec describes the cooking temperature control.
type TemperatureSpec struct {
	Min     int    `json:"min"`
	Max     int    `json:"max"`
	Unit    string `json:"unit"`
	Default int    `json:"default"`
}

// EnumSpec describes a fixed-choice control (shape, flavor).
type EnumSpec struct {
	Options []string `json:"options"`
	Default string   `json:"default"`
}

// EnhancerSpec describes the optional free-text flavor enhancer control.
type EnhancerSpec struct {
	Placeholder string `json:"placeholder,omitempty"`
	Default     string `json:"default"`
}

// TimelineOption is a selectable period on the timeline step. Value, when
// set, is what gets submitted instead of the title.
type TimelineOption struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Value       string `json:"value,omitempty"`
}

// Step is one page of the wizard. The populated fields depend on Type; ID is
// empty only for explanation steps and is the stable key into the answer
// store for every other type.
type Step struct {
	Type        StepType `json:"type"`
	ID          string   `json:"id,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`

	// Question fields
	Question     string        `json:"question,omitempty"`
	Options      []StepOption  `json:"options,omitempty"`
	CustomOption *CustomOption `json:"custom_option,omitempty"`
	MultiSelect  bool          `json:"multi_select,omitempty"`

	// Controls fields
	Temperature *TemperatureSpec `json:"temperature,omitempty"`
	Shape       *EnumSpec        `json:"shape,omitempty"`
	Flavor      *EnumSpec        `json:"flavor,omitempty"`
	Enhancer    *EnhancerSpec    `json:"enhancer,omitempty"`

	// Timeline fields
	TimelineOptions []TimelineOption `json:"timeline_options,omitempty"`
}

// CustomOptionIndex returns the index of the step's custom option, or -1
// when the step has none.
func (s *Step) CustomOptionIndex() int {
	if s.Type != StepTypeQuestion || s.CustomOption == nil {
		return -1
	}
	return len(s.Options)
}

// OptionCount returns the number of selectable options, including the custom
// option when present.
func (s *Step) OptionCount() int {
	switch s.Type {
	case StepTypeQuestion:
		n := len(s.Options)
		if s.CustomOption != nil {
			n++
		}
		return n
	case StepTypeTimeline:
		return len(s.TimelineOptions)
	default:
		return 0
	}
}

// ControlValues is the bundle of named control settings recorded for one
// controls step.
type ControlValues struct {
	Temperature int             `json:"temperature"`
	Shape       string          `json:"shape"`
	Flavor      string          `json:"flavor"`
	Enhancer    string          `json:"enhancer"`
	Dietary     map[string]bool `json:"dietary,omitempty"`
}

// ControlPatch carries a partial update for a controls step. Only non-nil
// fields are merged into the stored bundle.
type ControlPatch struct {
	Temperature *int            `json:"temperature,omitempty"`
	Shape       *string         `json:"shape,omitempty"`
	Flavor      *string         `json:"flavor,omitempty"`
	Enhancer    *string         `json:"enhancer,omitempty"`
	Dietary     map[string]bool `json:"dietary,omitempty"`
}

// IsEmpty reports whether the patch carries no changes.
func (p *ControlPatch) IsEmpty() bool {
	return p.Temperature == nil && p.Shape == nil && p.Flavor == nil &&
		p.Enhancer == nil && p.Dietary == nil
}
