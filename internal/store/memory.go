package store

import (
	"sync"

	"github.com/morgen873/kisson/internal/models"
)

// InMemoryStore is a mutex-guarded map-backed store used for tests and
// single-kiosk deployments without a database.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.SessionRecord
	recipes  map[string]models.RecipeResult
	videos   map[string]models.VideoJob
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]models.SessionRecord),
		recipes:  make(map[string]models.RecipeResult),
		videos:   make(map[string]models.VideoJob),
	}
}

// SaveSessionRecord stores or replaces a session's answer mirror.
func (s *InMemoryStore) SaveSessionRecord(rec models.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[rec.SessionID] = rec
	return nil
}

// GetSessionRecord retrieves a session's answer mirror, nil when absent.
func (s *InMemoryStore) GetSessionRecord(sessionID string) (*models.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// DeleteSessionRecord removes a session's answer mirror.
func (s *InMemoryStore) DeleteSessionRecord(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// SaveRecipe stores or replaces a generated recipe.
func (s *InMemoryStore) SaveRecipe(r models.RecipeResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recipes[r.ID] = r
	return nil
}

// GetRecipe retrieves a recipe by id, nil when absent.
func (s *InMemoryStore) GetRecipe(id string) (*models.RecipeResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.recipes[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

// SaveVideoJob stores or replaces a video generation job.
func (s *InMemoryStore) SaveVideoJob(j models.VideoJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videos[j.RecipeID] = j
	return nil
}

// GetVideoJob retrieves the video job for a recipe, nil when absent.
func (s *InMemoryStore) GetVideoJob(recipeID string) (*models.VideoJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.videos[recipeID]
	if !ok {
		return nil, nil
	}
	return &j, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
