// Package models defines recipe and video generation structures for KissOn.
package models

import "time"

// PlaceholderImageURL is stored as the recipe image when image generation
// fails. A placeholder image is a degraded success, not an error state.
const PlaceholderImageURL = "/placeholder.svg"

// RecipeRequest is the payload sent to the recipe generation service. Keys
// are the originating step ids; values are the resolved answer texts.
type RecipeRequest struct {
	Questions map[string]string        `json:"questions"`
	Timeline  map[string]string        `json:"timeline"`
	Controls  map[string]ControlValues `json:"controls"`
}

// GeneratedRecipe is the raw response of the recipe generation service.
type GeneratedRecipe struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Ingredients   []string `json:"ingredients"`
	CookingRecipe []string `json:"cooking_recipe"`
	ImagePrompt   string   `json:"image_prompt,omitempty"`
	ImageURL      string   `json:"image_url,omitempty"`
}

// RecipeResult is the persisted outcome of a successful submission. QRData
// is always the deterministic recipe URL, never AI-suggested content.
type RecipeResult struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id,omitempty"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	ImageURL     string    `json:"image_url"`
	QRData       string    `json:"qr_data"`
	Ingredients  []string  `json:"ingredients,omitempty"`
	Instructions []string  `json:"instructions,omitempty"`
	ImagePrompt  string    `json:"image_prompt,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// VideoStatus enumerates the lifecycle of a 360° video generation job.
type VideoStatus string

const (
	// VideoStatusPending means generation was started and is being polled.
	VideoStatusPending VideoStatus = "pending"
	// VideoStatusReady means a playable video URL is available.
	VideoStatusReady VideoStatus = "ready"
	// VideoStatusFailed means the generation service reported an error.
	VideoStatusFailed VideoStatus = "failed"
	// VideoStatusTimedOut means polling hit its ceiling without a result.
	VideoStatusTimedOut VideoStatus = "timed_out"
)

// VideoErrorSentinel is the value the video generation service writes into
// the result URL field to signal a failed generation.
const VideoErrorSentinel = "error"

// VideoJob tracks one video generation follow-up per recipe.
type VideoJob struct {
	RecipeID  string      `json:"recipe_id"`
	Status    VideoStatus `json:"status"`
	URL       string      `json:"url,omitempty"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// VideoStartRequest is the payload for kicking off video generation.
type VideoStartRequest struct {
	ImageURL    string `json:"imageUrl"`
	RecipeID    string `json:"recipeId"`
	RecipeTitle string `json:"recipeTitle"`
	ImagePrompt string `json:"imagePrompt,omitempty"`
}
