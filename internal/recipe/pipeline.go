// Package recipe implements the submission pipeline: it turns a finished
// answer snapshot into a generation request, invokes the recipe generation
// service, and manages the persisted result.
package recipe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/morgen873/kisson/internal/catalog"
	"github.com/morgen873/kisson/internal/models"
	"github.com/morgen873/kisson/internal/util"
)

// GenerationService is the external recipe generation collaborator.
type GenerationService interface {
	GenerateRecipe(ctx context.Context, req models.RecipeRequest) (*models.GeneratedRecipe, error)
}

// ResultStore persists generated recipes.
type ResultStore interface {
	SaveRecipe(r models.RecipeResult) error
}

// VideoStarter kicks off the decoupled video generation follow-up. Wired
// optionally; recipe creation never depends on it.
type VideoStarter interface {
	StartForRecipe(r models.RecipeResult)
}

// Pipeline converts answer snapshots into recipe results.
type Pipeline struct {
	catalog   *catalog.Catalog
	generator GenerationService
	store     ResultStore
	origin    string
	video     VideoStarter
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithVideoStarter wires the video generation follow-up.
func WithVideoStarter(v VideoStarter) PipelineOption {
	return func(p *Pipeline) { p.video = v }
}

// NewPipeline creates a submission pipeline. origin is the public base URL
// encoded into QR payloads, e.g. "https://kisson.example.com".
func NewPipeline(cat *catalog.Catalog, gen GenerationService, st ResultStore, origin string, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		catalog:   cat,
		generator: gen,
		store:     st,
		origin:    origin,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit runs one submission end to end. The snapshot was taken by the
// caller at the moment of submission; nothing here reads live session state.
// On any error the caller's answer store is untouched, so a manual retry can
// resubmit the same answers.
func (p *Pipeline) Submit(ctx context.Context, snapshot models.SessionRecord) (*models.RecipeResult, error) {
	req := p.buildRequest(snapshot)
	slog.Info("Pipeline Submit invoked", "session", snapshot.SessionID,
		"questions", len(req.Questions), "timeline", len(req.Timeline), "controls", len(req.Controls))

	generated, err := p.generator.GenerateRecipe(ctx, req)
	if err != nil {
		slog.Error("Pipeline generation failed", "session", snapshot.SessionID, "error", err)
		return nil, fmt.Errorf("recipe generation: %w", err)
	}

	result := models.RecipeResult{
		ID:           util.GenerateRecipeID(),
		SessionID:    snapshot.SessionID,
		Title:        generated.Title,
		Description:  generated.Description,
		ImageURL:     generated.ImageURL,
		Ingredients:  generated.Ingredients,
		Instructions: generated.CookingRecipe,
		ImagePrompt:  generated.ImagePrompt,
		CreatedAt:    time.Now(),
	}
	if result.ImageURL == "" {
		result.ImageURL = models.PlaceholderImageURL
	}
	// The QR payload is always the durable recipe URL, independent of
	// anything the generation service suggested.
	result.QRData = QRPayload(p.origin, result.ID)

	if err := p.store.SaveRecipe(result); err != nil {
		slog.Error("Pipeline recipe save failed", "recipe", result.ID, "error", err)
		return nil, fmt.Errorf("recipe save: %w", err)
	}
	slog.Info("Pipeline Submit succeeded", "session", snapshot.SessionID, "recipe", result.ID, "title", result.Title)

	if p.video != nil {
		p.video.StartForRecipe(result)
	}
	return &result, nil
}

// buildRequest classifies each recorded answer by its originating step type
// and resolves it to text. Answers whose step id no longer maps to a
// catalog step are dropped with a warning.
func (p *Pipeline) buildRequest(snapshot models.SessionRecord) models.RecipeRequest {
	req := models.RecipeRequest{
		Questions: make(map[string]string),
		Timeline:  make(map[string]string),
		Controls:  make(map[string]models.ControlValues),
	}
	for stepID, selected := range snapshot.Answers {
		step, ok := p.catalog.StepByID(stepID)
		if !ok {
			slog.Warn("Pipeline dropping answer for unknown step", "step", stepID)
			continue
		}
		switch step.Type {
		case models.StepTypeQuestion:
			if text := resolveQuestionAnswer(step, selected, snapshot.CustomAnswers[stepID]); text != "" {
				req.Questions[stepID] = text
			}
		case models.StepTypeTimeline:
			if text := resolveTimelineAnswer(step, selected); text != "" {
				req.Timeline[stepID] = text
			}
		default:
			slog.Warn("Pipeline dropping answer for non-answerable step", "step", stepID, "type", step.Type)
		}
	}
	for stepID, cv := range snapshot.ControlValues {
		if step, ok := p.catalog.StepByID(stepID); !ok || step.Type != models.StepTypeControls {
			slog.Warn("Pipeline dropping controls for unknown step", "step", stepID)
			continue
		}
		req.Controls[stepID] = cv
	}
	return req
}

// resolveQuestionAnswer maps selected indexes to option titles, or to the
// custom free text when the custom option was chosen. Multiple selections
// join with a comma.
func resolveQuestionAnswer(step *models.Step, selected []int, customText string) string {
	customIdx := step.CustomOptionIndex()
	var parts []string
	for _, idx := range selected {
		switch {
		case idx == customIdx:
			if customText != "" {
				parts = append(parts, customText)
			}
		case idx >= 0 && idx < len(step.Options):
			parts = append(parts, step.Options[idx].Title)
		default:
			slog.Warn("Pipeline dropping out-of-range selection", "step", step.ID, "index", idx)
		}
	}
	return joinParts(parts)
}

// resolveTimelineAnswer prefers the option value, falling back to its title.
func resolveTimelineAnswer(step *models.Step, selected []int) string {
	if len(selected) == 0 {
		return ""
	}
	idx := selected[0]
	if idx < 0 || idx >= len(step.TimelineOptions) {
		slog.Warn("Pipeline dropping out-of-range timeline selection", "step", step.ID, "index", idx)
		return ""
	}
	opt := step.TimelineOptions[idx]
	if opt.Value != "" {
		return opt.Value
	}
	return opt.Title
}

func joinParts(parts []string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += ", " + p
	}
	return out
}
