// Package models defines navigation state structures for the creation flow.
package models

import "time"

// Phase identifies which part of the wizard a session is in.
type Phase string

const (
	// PhaseIntro covers the informational hero/intro screens.
	PhaseIntro Phase = "intro"
	// PhaseCreation covers the answer-collecting creation steps.
	PhaseCreation Phase = "creation"
	// PhaseResult is the terminal phase showing the generated recipe.
	PhaseResult Phase = "result"
)

// NavigationState is the externally visible position of one session in the
// wizard. Exactly one of IntroStep/CreationStep is meaningful depending on
// Phase.
type NavigationState struct {
	Phase             Phase `json:"phase"`
	IntroStep         int   `json:"intro_step"`
	CreationStep      int   `json:"creation_step"`
	IsTransitioning   bool  `json:"is_transitioning"`
	PendingSubmission bool  `json:"pending_submission"`
}

// ActionType enumerates the messages accepted by the navigation controller.
type ActionType string

const (
	// ActionNext advances to the following step, validation permitting.
	ActionNext ActionType = "next"
	// ActionPrev returns to the previous step.
	ActionPrev ActionType = "prev"
	// ActionSelectAnswer toggles or replaces a question-step selection.
	ActionSelectAnswer ActionType = "select_answer"
	// ActionSetCustomAnswer records free text for a custom option.
	ActionSetCustomAnswer ActionType = "set_custom_answer"
	// ActionSetControl merges a partial update into a controls bundle.
	ActionSetControl ActionType = "set_control"
	// ActionSelectTimeline records the timeline choice and, on the terminal
	// step, triggers submission.
	ActionSelectTimeline ActionType = "select_timeline"
	// ActionReset clears the session back to the first post-hero intro step.
	ActionReset ActionType = "reset"
)

// Action is one message dispatched into a session's navigation controller.
// The populated fields depend on Type.
type Action struct {
	Type        ActionType    `json:"type"`
	StepID      string        `json:"step_id,omitempty"`
	OptionIndex int           `json:"option_index,omitempty"`
	Text        string        `json:"text,omitempty"`
	Control     *ControlPatch `json:"control,omitempty"`
}

// MediaEventType enumerates the transition media events reported by the
// kiosk frontend.
type MediaEventType string

const (
	// MediaEventReady signals the transition asset finished loading.
	MediaEventReady MediaEventType = "ready"
	// MediaEventError signals the transition asset failed to load.
	MediaEventError MediaEventType = "error"
	// MediaEventEnded signals natural end of playback.
	MediaEventEnded MediaEventType = "ended"
)

// SessionRecord is the persisted mirror of one session's answer store.
// Transient navigation/transition flags are deliberately not part of it.
type SessionRecord struct {
	SessionID     string                   `json:"session_id"`
	Answers       map[string][]int         `json:"answers,omitempty"`
	CustomAnswers map[string]string        `json:"custom_answers,omitempty"`
	ControlValues map[string]ControlValues `json:"control_values,omitempty"`
	CreatedAt     time.Time                `json:"created_at"`
	UpdatedAt     time.Time                `json:"updated_at"`
}
