package session

import (
	"strings"

	"github.com/morgen873/kisson/internal/models"
)

// CanAdvance reports whether forward navigation away from the given step is
// currently permitted. It is a pure read: it backs a disabled/enabled button
// that re-renders on every keystroke, so it must be callable repeatedly
// without side effects.
//
// Rules by step type:
//   - Explanation and Controls steps are always complete (controls carry
//     defaults, so there is no incomplete state).
//   - Question steps require at least one selection. For single-select
//     questions where the selection is the custom option, the custom text
//     must additionally be non-empty after trimming. Multi-select questions
//     only check set emptiness; a selected custom option with empty text
//     does not block continuation there. The asymmetry mirrors the
//     exhibition behavior and is kept as-is.
//   - Timeline steps require a recorded selection.
func CanAdvance(step *models.Step, answers *Answers) bool {
	if step == nil {
		return false
	}
	switch step.Type {
	case models.StepTypeExplanation, models.StepTypeControls:
		return true
	case models.StepTypeQuestion:
		selected := answers.Selected(step.ID)
		if len(selected) == 0 {
			return false
		}
		if !step.MultiSelect {
			if custom := step.CustomOptionIndex(); custom >= 0 && selected[0] == custom {
				return strings.TrimSpace(answers.Custom(step.ID)) != ""
			}
		}
		return true
	case models.StepTypeTimeline:
		return len(answers.Selected(step.ID)) > 0
	default:
		return false
	}
}
