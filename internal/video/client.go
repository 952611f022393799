// Package video integrates the external 360° video generation service.
//
// Generation is started once per recipe, then polled until a result URL or
// the error sentinel appears, or the wait ceiling is reached.
package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/morgen873/kisson/internal/models"
)

// Service is the external video generation collaborator.
type Service interface {
	// Start asks the service to begin generating; it acks immediately.
	Start(ctx context.Context, req models.VideoStartRequest) error
	// Status looks up the generation result for a recipe. It returns the
	// empty string while generation is still running, the ready video URL
	// on success, or models.VideoErrorSentinel on failure.
	Status(ctx context.Context, recipeID string) (string, error)
}

// DefaultRequestTimeout caps individual HTTP calls to the video service.
const DefaultRequestTimeout = 30 * time.Second

// HTTPService talks to the video generation service over HTTP.
type HTTPService struct {
	baseURL string
	client  *http.Client
}

// NewHTTPService creates a video service client for the given base URL.
func NewHTTPService(baseURL string) *HTTPService {
	return &HTTPService{
		baseURL: baseURL,
		client:  &http.Client{Timeout: DefaultRequestTimeout},
	}
}

// Start posts a generation request. The service responds before the video
// exists; the ack only means generation has begun.
func (s *HTTPService) Start(ctx context.Context, req models.VideoStartRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal video start request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/videos", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build video start request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		slog.Error("HTTPService video start failed", "recipe", req.RecipeID, "error", err)
		return fmt.Errorf("video start: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		slog.Error("HTTPService video start rejected", "recipe", req.RecipeID, "status", resp.StatusCode)
		return fmt.Errorf("video start: unexpected status %d", resp.StatusCode)
	}
	slog.Debug("HTTPService video start acked", "recipe", req.RecipeID)
	return nil
}

// Status performs one read-only lookup of the generation result.
func (s *HTTPService) Status(ctx context.Context, recipeID string) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/videos/"+recipeID, nil)
	if err != nil {
		return "", fmt.Errorf("build video status request: %w", err)
	}
	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("video status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("video status: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode video status: %w", err)
	}
	return payload.URL, nil
}
