// Package catalog defines the static wizard step catalog for KissOn.
//
// The catalog is pure data: an ordered intro sequence and an ordered
// creation sequence, plus the transition-media table. It carries no
// navigation or validation logic.
package catalog

import (
	"fmt"

	"github.com/morgen873/kisson/internal/models"
)

// Catalog is one immutable wizard description. Sessions share a single
// instance; nothing in it is mutated after construction.
type Catalog struct {
	introSteps    []models.Step
	creationSteps []models.Step
	media         map[mediaKey]Media
	byID          map[string]int
}

type mediaKey struct {
	phase     models.Phase
	fromIndex int
}

// MediaKind distinguishes transition asset types.
type MediaKind string

const (
	// MediaKindVideo is an mp4 transition clip.
	MediaKindVideo MediaKind = "video"
	// MediaKindGIF is an animated gif frame sequence.
	MediaKindGIF MediaKind = "gif"
)

// Media describes one transition asset between two steps.
type Media struct {
	Kind MediaKind `json:"kind"`
	URL  string    `json:"url"`
}

// MediaMapping binds a transition asset to the boundary left in the forward
// direction from the given step index.
type MediaMapping struct {
	Phase     models.Phase
	FromIndex int
	Media     Media
}

// New builds a catalog from the given step sequences and media table and
// verifies the id invariants.
func New(intro, creation []models.Step, media []MediaMapping) (*Catalog, error) {
	c := &Catalog{
		introSteps:    intro,
		creationSteps: creation,
		media:         make(map[mediaKey]Media, len(media)),
		byID:          make(map[string]int),
	}
	for _, m := range media {
		c.media[mediaKey{phase: m.Phase, fromIndex: m.FromIndex}] = m.Media
	}
	for i, step := range creation {
		if step.Type == models.StepTypeExplanation {
			if step.ID != "" {
				return nil, fmt.Errorf("explanation step %d must not carry an id", i)
			}
			continue
		}
		if step.ID == "" {
			return nil, fmt.Errorf("step %d of type %s has no id", i, step.Type)
		}
		if prev, dup := c.byID[step.ID]; dup {
			return nil, fmt.Errorf("duplicate step id %q at indexes %d and %d", step.ID, prev, i)
		}
		c.byID[step.ID] = i
	}
	return c, nil
}

// IntroLen returns the number of intro steps.
func (c *Catalog) IntroLen() int { return len(c.introSteps) }

// CreationLen returns the number of creation steps.
func (c *Catalog) CreationLen() int { return len(c.creationSteps) }

// IntroStep returns the intro step at index i.
func (c *Catalog) IntroStep(i int) (*models.Step, bool) {
	if i < 0 || i >= len(c.introSteps) {
		return nil, false
	}
	return &c.introSteps[i], true
}

// CreationStep returns the creation step at index i.
func (c *Catalog) CreationStep(i int) (*models.Step, bool) {
	if i < 0 || i >= len(c.creationSteps) {
		return nil, false
	}
	return &c.creationSteps[i], true
}

// StepByID resolves a creation step by its stable id.
func (c *Catalog) StepByID(id string) (*models.Step, bool) {
	i, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	return &c.creationSteps[i], true
}

// TimelineIndex returns the index of the terminal timeline step, or -1 when
// the catalog has none.
func (c *Catalog) TimelineIndex() int {
	for i := range c.creationSteps {
		if c.creationSteps[i].Type == models.StepTypeTimeline {
			return i
		}
	}
	return -1
}

// TransitionMedia looks up the transition asset played when leaving
// fromIndex of the given phase in the forward direction. Boundaries without
// a mapping transition synchronously.
func (c *Catalog) TransitionMedia(phase models.Phase, fromIndex int) (Media, bool) {
	m, ok := c.media[mediaKey{phase: phase, fromIndex: fromIndex}]
	return m, ok
}
