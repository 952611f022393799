// Package genai implements the recipe generation service using the OpenAI API.
//
// One call produces the recipe text (chat completion) and the dumpling image
// (image generation). Image failures degrade to a placeholder URL instead of
// failing the recipe: a missing picture is not a missing recipe.
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/morgen873/kisson/internal/models"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrNoChoicesReturned indicates the completion API returned no choices.
var ErrNoChoicesReturned = errors.New("no choices returned")

const systemPrompt = `You are the recipe engine of KissOn, an art installation that turns memories into dumpling recipes.
Given a visitor's answers, invent a personal dumpling recipe.
Respond with a single JSON object with keys:
"title" (string), "description" (string, 2-3 sentences addressed to the visitor),
"ingredients" (array of strings), "cooking_recipe" (array of step strings),
"image_prompt" (string, a vivid prompt for an image model showing the finished dumpling).
Respond with JSON only, no surrounding text.`

// chatService defines the minimal chat completion interface, allowing tests
// to substitute the OpenAI client.
type chatService interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// imageService defines the minimal image generation interface.
type imageService interface {
	Generate(ctx context.Context, body openai.ImageGenerateParams, opts ...option.RequestOption) (*openai.ImagesResponse, error)
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey string
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// Client wraps the OpenAI services used for recipe generation.
type Client struct {
	chat   chatService
	images imageService
}

// NewClient initializes a GenAI client. Falls back to the OPENAI_API_KEY
// environment variable when no key option is provided.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}
	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &Client{chat: &cli.Chat.Completions, images: &cli.Images}, nil
}

// GenerateRecipe produces a recipe for the resolved answers, then attempts
// an image for it. The returned recipe always has a usable ImageURL.
func (c *Client) GenerateRecipe(ctx context.Context, req models.RecipeRequest) (*models.GeneratedRecipe, error) {
	userPrompt := buildUserPrompt(req)
	slog.Debug("GenAI GenerateRecipe invoked", "questions", len(req.Questions), "controls", len(req.Controls))

	resp, err := c.chat.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModelGPT4oMini,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	})
	if err != nil {
		slog.Error("GenAI chat completion failed", "error", err)
		return nil, fmt.Errorf("recipe generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Error("GenAI chat completion returned no choices")
		return nil, ErrNoChoicesReturned
	}

	recipe, err := parseRecipeJSON(resp.Choices[0].Message.Content)
	if err != nil {
		slog.Error("GenAI recipe parse failed", "error", err)
		return nil, fmt.Errorf("recipe generation returned unparseable content: %w", err)
	}

	recipe.ImageURL = c.generateImage(ctx, recipe.ImagePrompt, recipe.Title)
	slog.Info("GenAI GenerateRecipe succeeded", "title", recipe.Title,
		"placeholder_image", recipe.ImageURL == models.PlaceholderImageURL)
	return recipe, nil
}

// generateImage returns an image URL for the recipe, or the placeholder
// sentinel when generation fails. Never returns an error: a placeholder is
// a degraded success.
func (c *Client) generateImage(ctx context.Context, imagePrompt, title string) string {
	prompt := imagePrompt
	if strings.TrimSpace(prompt) == "" {
		prompt = "A single handmade dumpling called \"" + title + "\" on a ceramic plate, soft light, studio photo"
	}
	resp, err := c.images.Generate(ctx, openai.ImageGenerateParams{
		Prompt: prompt,
		Model:  openai.ImageModelDallE3,
		Size:   openai.ImageGenerateParamsSize1024x1024,
	})
	if err != nil {
		slog.Warn("GenAI image generation failed, using placeholder", "error", err)
		return models.PlaceholderImageURL
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		slog.Warn("GenAI image generation returned no data, using placeholder")
		return models.PlaceholderImageURL
	}
	return resp.Data[0].URL
}

// buildUserPrompt flattens the resolved answers into the user message.
func buildUserPrompt(req models.RecipeRequest) string {
	var b strings.Builder
	b.WriteString("Visitor answers:\n")
	for id, text := range req.Questions {
		fmt.Fprintf(&b, "- question %s: %s\n", id, text)
	}
	for id, text := range req.Timeline {
		fmt.Fprintf(&b, "- timeline %s: %s\n", id, text)
	}
	for id, cv := range req.Controls {
		fmt.Fprintf(&b, "- controls %s: temperature %d, shape %s, flavor %s", id, cv.Temperature, cv.Shape, cv.Flavor)
		if cv.Enhancer != "" {
			fmt.Fprintf(&b, ", secret ingredient %q", cv.Enhancer)
		}
		for k, v := range cv.Dietary {
			if v {
				fmt.Fprintf(&b, ", %s", k)
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// parseRecipeJSON decodes the model output, tolerating markdown code fences.
func parseRecipeJSON(content string) (*models.GeneratedRecipe, error) {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var recipe models.GeneratedRecipe
	if err := json.Unmarshal([]byte(trimmed), &recipe); err != nil {
		return nil, err
	}
	if recipe.Title == "" {
		return nil, errors.New("recipe has no title")
	}
	return &recipe, nil
}
