// Package store provides storage backends for KissOn.
//
// This file implements an SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/morgen873/kisson/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists sessions, recipes, and video jobs in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// SaveSessionRecord stores or replaces a session's answer mirror.
func (s *SQLiteStore) SaveSessionRecord(rec models.SessionRecord) error {
	answers, custom, controls, err := marshalRecordMaps(rec)
	if err != nil {
		slog.Error("SQLiteStore SaveSessionRecord marshal failed", "error", err, "session", rec.SessionID)
		return err
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = rec.UpdatedAt
	}
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO session_records (session_id, answers, custom_answers, control_values, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.SessionID, answers, custom, controls, created, rec.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveSessionRecord failed", "error", err, "session", rec.SessionID)
		return fmt.Errorf("failed to save session record %s: %w", rec.SessionID, err)
	}
	slog.Debug("SQLiteStore SaveSessionRecord succeeded", "session", rec.SessionID)
	return nil
}

// GetSessionRecord retrieves a session's answer mirror, nil when absent.
func (s *SQLiteStore) GetSessionRecord(sessionID string) (*models.SessionRecord, error) {
	row := s.db.QueryRow(`
		SELECT session_id, answers, custom_answers, control_values, created_at, updated_at
		FROM session_records WHERE session_id = ?`, sessionID)
	rec, err := scanSessionRecord(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetSessionRecord not found", "session", sessionID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetSessionRecord failed", "error", err, "session", sessionID)
		return nil, err
	}
	return rec, nil
}

// DeleteSessionRecord removes a session's answer mirror.
func (s *SQLiteStore) DeleteSessionRecord(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM session_records WHERE session_id = ?`, sessionID)
	if err != nil {
		slog.Error("SQLiteStore DeleteSessionRecord failed", "error", err, "session", sessionID)
		return err
	}
	slog.Debug("SQLiteStore DeleteSessionRecord succeeded", "session", sessionID)
	return nil
}

// SaveRecipe stores or replaces a generated recipe.
func (s *SQLiteStore) SaveRecipe(r models.RecipeResult) error {
	ingredients, instructions, err := marshalRecipeLists(r)
	if err != nil {
		slog.Error("SQLiteStore SaveRecipe marshal failed", "error", err, "recipe", r.ID)
		return err
	}
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO recipes (id, session_id, title, description, image_url, qr_data, ingredients, instructions, image_prompt, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SessionID, r.Title, r.Description, r.ImageURL, r.QRData, ingredients, instructions, r.ImagePrompt, r.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveRecipe failed", "error", err, "recipe", r.ID)
		return fmt.Errorf("failed to save recipe %s: %w", r.ID, err)
	}
	slog.Debug("SQLiteStore SaveRecipe succeeded", "recipe", r.ID)
	return nil
}

// GetRecipe retrieves a recipe by id, nil when absent.
func (s *SQLiteStore) GetRecipe(id string) (*models.RecipeResult, error) {
	row := s.db.QueryRow(`
		SELECT id, session_id, title, description, image_url, qr_data, ingredients, instructions, image_prompt, created_at
		FROM recipes WHERE id = ?`, id)
	r, err := scanRecipe(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetRecipe not found", "recipe", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetRecipe failed", "error", err, "recipe", id)
		return nil, err
	}
	return r, nil
}

// SaveVideoJob stores or replaces a video generation job.
func (s *SQLiteStore) SaveVideoJob(j models.VideoJob) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO video_jobs (recipe_id, status, url, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		j.RecipeID, j.Status, j.URL, j.Error, j.CreatedAt, j.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveVideoJob failed", "error", err, "recipe", j.RecipeID)
		return fmt.Errorf("failed to save video job %s: %w", j.RecipeID, err)
	}
	slog.Debug("SQLiteStore SaveVideoJob succeeded", "recipe", j.RecipeID, "status", j.Status)
	return nil
}

// GetVideoJob retrieves the video job for a recipe, nil when absent.
func (s *SQLiteStore) GetVideoJob(recipeID string) (*models.VideoJob, error) {
	row := s.db.QueryRow(`
		SELECT recipe_id, status, url, error, created_at, updated_at
		FROM video_jobs WHERE recipe_id = ?`, recipeID)
	j, err := scanVideoJob(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetVideoJob not found", "recipe", recipeID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetVideoJob failed", "error", err, "recipe", recipeID)
		return nil, err
	}
	return j, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}
