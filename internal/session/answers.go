// Package session implements the per-session creation-flow state: the
// answer store, the validation gate, and the navigation controller.
package session

import (
	"time"

	"github.com/morgen873/kisson/internal/models"
)

// Answers holds everything a user enters while progressing through the
// wizard: selected option indexes per step, custom free text per step, and
// control bundles per step. It is a plain state container; it enforces no
// business rules and performs no validation. All access is serialized by the
// owning Controller.
type Answers struct {
	selected map[string][]int
	custom   map[string]string
	controls map[string]models.ControlValues
}

// NewAnswers creates an empty answer store.
func NewAnswers() *Answers {
	return &Answers{
		selected: make(map[string][]int),
		custom:   make(map[string]string),
		controls: make(map[string]models.ControlValues),
	}
}

// Select records an option selection for a step. For multi-select steps the
// option toggles: selecting an already-selected index removes it. For
// single-select steps the new index replaces whatever was stored.
func (a *Answers) Select(stepID string, optionIndex int, multiSelect bool) {
	if !multiSelect {
		a.selected[stepID] = []int{optionIndex}
		return
	}
	current := a.selected[stepID]
	for i, idx := range current {
		if idx == optionIndex {
			a.selected[stepID] = append(current[:i], current[i+1:]...)
			return
		}
	}
	a.selected[stepID] = append(current, optionIndex)
}

// Selected returns the recorded option indexes for a step. The returned
// slice is the stored one; callers must not mutate it.
func (a *Answers) Selected(stepID string) []int {
	return a.selected[stepID]
}

// SetCustom overwrites the free-text answer for a step.
func (a *Answers) SetCustom(stepID, text string) {
	a.custom[stepID] = text
}

// Custom returns the free-text answer recorded for a step, if any.
func (a *Answers) Custom(stepID string) string {
	return a.custom[stepID]
}

// SetControl merges a partial control update into the step's bundle,
// preserving fields the patch does not carry.
func (a *Answers) SetControl(stepID string, patch models.ControlPatch) {
	cv := a.controls[stepID]
	if patch.Temperature != nil {
		cv.Temperature = *patch.Temperature
	}
	if patch.Shape != nil {
		cv.Shape = *patch.Shape
	}
	if patch.Flavor != nil {
		cv.Flavor = *patch.Flavor
	}
	if patch.Enhancer != nil {
		cv.Enhancer = *patch.Enhancer
	}
	if patch.Dietary != nil {
		if cv.Dietary == nil {
			cv.Dietary = make(map[string]bool, len(patch.Dietary))
		}
		for k, v := range patch.Dietary {
			cv.Dietary[k] = v
		}
	}
	a.controls[stepID] = cv
}

// Control returns the control bundle recorded for a step.
func (a *Answers) Control(stepID string) (models.ControlValues, bool) {
	cv, ok := a.controls[stepID]
	return cv, ok
}

// EnsureControlDefaults populates a controls step's bundle from the catalog
// defaults if none exists yet. Called the first time the step becomes
// current; an existing bundle is never overwritten.
func (a *Answers) EnsureControlDefaults(step *models.Step) {
	if step.Type != models.StepTypeControls || step.ID == "" {
		return
	}
	if _, ok := a.controls[step.ID]; ok {
		return
	}
	cv := models.ControlValues{}
	if step.Temperature != nil {
		cv.Temperature = step.Temperature.Default
	}
	if step.Shape != nil {
		cv.Shape = step.Shape.Default
	}
	if step.Flavor != nil {
		cv.Flavor = step.Flavor.Default
	}
	if step.Enhancer != nil {
		cv.Enhancer = step.Enhancer.Default
	}
	a.controls[step.ID] = cv
}

// Reset clears all three maps. Used on "create another" and hard resets.
func (a *Answers) Reset() {
	a.selected = make(map[string][]int)
	a.custom = make(map[string]string)
	a.controls = make(map[string]models.ControlValues)
}

// Snapshot returns a deep copy of the current contents as a persistable
// record. Mutations made after the snapshot do not affect it.
func (a *Answers) Snapshot(sessionID string) models.SessionRecord {
	rec := models.SessionRecord{
		SessionID:     sessionID,
		Answers:       make(map[string][]int, len(a.selected)),
		CustomAnswers: make(map[string]string, len(a.custom)),
		ControlValues: make(map[string]models.ControlValues, len(a.controls)),
		UpdatedAt:     time.Now(),
	}
	for id, sel := range a.selected {
		cp := make([]int, len(sel))
		copy(cp, sel)
		rec.Answers[id] = cp
	}
	for id, text := range a.custom {
		rec.CustomAnswers[id] = text
	}
	for id, cv := range a.controls {
		if cv.Dietary != nil {
			dietary := make(map[string]bool, len(cv.Dietary))
			for k, v := range cv.Dietary {
				dietary[k] = v
			}
			cv.Dietary = dietary
		}
		rec.ControlValues[id] = cv
	}
	return rec
}

// Restore replays a persisted mirror into the store verbatim, replacing the
// current contents.
func (a *Answers) Restore(rec models.SessionRecord) {
	a.Reset()
	for id, sel := range rec.Answers {
		cp := make([]int, len(sel))
		copy(cp, sel)
		a.selected[id] = cp
	}
	for id, text := range rec.CustomAnswers {
		a.custom[id] = text
	}
	for id, cv := range rec.ControlValues {
		a.controls[id] = cv
	}
}
