// Package store provides storage backends for KissOn.
//
// This file implements a PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/morgen873/kisson/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists sessions, recipes, and video jobs in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// SaveSessionRecord stores or replaces a session's answer mirror.
func (s *PostgresStore) SaveSessionRecord(rec models.SessionRecord) error {
	answers, custom, controls, err := marshalRecordMaps(rec)
	if err != nil {
		slog.Error("PostgresStore SaveSessionRecord marshal failed", "error", err, "session", rec.SessionID)
		return err
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = rec.UpdatedAt
	}
	_, err = s.db.Exec(`
		INSERT INTO session_records (session_id, answers, custom_answers, control_values, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id) DO UPDATE SET
			answers = EXCLUDED.answers,
			custom_answers = EXCLUDED.custom_answers,
			control_values = EXCLUDED.control_values,
			updated_at = EXCLUDED.updated_at`,
		rec.SessionID, answers, custom, controls, created, rec.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveSessionRecord failed", "error", err, "session", rec.SessionID)
		return fmt.Errorf("failed to save session record %s: %w", rec.SessionID, err)
	}
	slog.Debug("PostgresStore SaveSessionRecord succeeded", "session", rec.SessionID)
	return nil
}

// GetSessionRecord retrieves a session's answer mirror, nil when absent.
func (s *PostgresStore) GetSessionRecord(sessionID string) (*models.SessionRecord, error) {
	row := s.db.QueryRow(`
		SELECT session_id, answers, custom_answers, control_values, created_at, updated_at
		FROM session_records WHERE session_id = $1`, sessionID)
	rec, err := scanSessionRecord(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetSessionRecord not found", "session", sessionID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSessionRecord failed", "error", err, "session", sessionID)
		return nil, err
	}
	return rec, nil
}

// DeleteSessionRecord removes a session's answer mirror.
func (s *PostgresStore) DeleteSessionRecord(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM session_records WHERE session_id = $1`, sessionID)
	if err != nil {
		slog.Error("PostgresStore DeleteSessionRecord failed", "error", err, "session", sessionID)
		return err
	}
	slog.Debug("PostgresStore DeleteSessionRecord succeeded", "session", sessionID)
	return nil
}

// SaveRecipe stores or replaces a generated recipe.
func (s *PostgresStore) SaveRecipe(r models.RecipeResult) error {
	ingredients, instructions, err := marshalRecipeLists(r)
	if err != nil {
		slog.Error("PostgresStore SaveRecipe marshal failed", "error", err, "recipe", r.ID)
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO recipes (id, session_id, title, description, image_url, qr_data, ingredients, instructions, image_prompt, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			image_url = EXCLUDED.image_url,
			qr_data = EXCLUDED.qr_data,
			ingredients = EXCLUDED.ingredients,
			instructions = EXCLUDED.instructions,
			image_prompt = EXCLUDED.image_prompt`,
		r.ID, nilIfEmpty(r.SessionID), r.Title, nilIfEmpty(r.Description), r.ImageURL, r.QRData,
		ingredients, instructions, nilIfEmpty(r.ImagePrompt), r.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveRecipe failed", "error", err, "recipe", r.ID)
		return fmt.Errorf("failed to save recipe %s: %w", r.ID, err)
	}
	slog.Debug("PostgresStore SaveRecipe succeeded", "recipe", r.ID)
	return nil
}

// GetRecipe retrieves a recipe by id, nil when absent.
func (s *PostgresStore) GetRecipe(id string) (*models.RecipeResult, error) {
	row := s.db.QueryRow(`
		SELECT id, session_id, title, description, image_url, qr_data, ingredients, instructions, image_prompt, created_at
		FROM recipes WHERE id = $1`, id)
	r, err := scanRecipe(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetRecipe not found", "recipe", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetRecipe failed", "error", err, "recipe", id)
		return nil, err
	}
	return r, nil
}

// SaveVideoJob stores or replaces a video generation job.
func (s *PostgresStore) SaveVideoJob(j models.VideoJob) error {
	_, err := s.db.Exec(`
		INSERT INTO video_jobs (recipe_id, status, url, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (recipe_id) DO UPDATE SET
			status = EXCLUDED.status,
			url = EXCLUDED.url,
			error = EXCLUDED.error,
			updated_at = EXCLUDED.updated_at`,
		j.RecipeID, j.Status, nilIfEmpty(j.URL), nilIfEmpty(j.Error), j.CreatedAt, j.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveVideoJob failed", "error", err, "recipe", j.RecipeID)
		return fmt.Errorf("failed to save video job %s: %w", j.RecipeID, err)
	}
	slog.Debug("PostgresStore SaveVideoJob succeeded", "recipe", j.RecipeID, "status", j.Status)
	return nil
}

// GetVideoJob retrieves the video job for a recipe, nil when absent.
func (s *PostgresStore) GetVideoJob(recipeID string) (*models.VideoJob, error) {
	row := s.db.QueryRow(`
		SELECT recipe_id, status, url, error, created_at, updated_at
		FROM video_jobs WHERE recipe_id = $1`, recipeID)
	j, err := scanVideoJob(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetVideoJob not found", "recipe", recipeID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetVideoJob failed", "error", err, "recipe", recipeID)
		return nil, err
	}
	return j, nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
