// Package store provides storage backends for KissOn.
//
// It persists session answer mirrors, generated recipes, and video
// generation jobs. An in-memory store backs tests; SQLite and PostgreSQL
// back deployments.
package store

import (
	"strings"

	"github.com/morgen873/kisson/internal/models"
)

// Store is the persistence interface shared by all backends.
type Store interface {
	// SaveSessionRecord stores or replaces a session's answer mirror.
	SaveSessionRecord(rec models.SessionRecord) error
	// GetSessionRecord retrieves a session's answer mirror, nil when absent.
	GetSessionRecord(sessionID string) (*models.SessionRecord, error)
	// DeleteSessionRecord removes a session's answer mirror.
	DeleteSessionRecord(sessionID string) error

	// SaveRecipe stores or replaces a generated recipe.
	SaveRecipe(r models.RecipeResult) error
	// GetRecipe retrieves a recipe by id, nil when absent.
	GetRecipe(id string) (*models.RecipeResult, error)

	// SaveVideoJob stores or replaces a video generation job.
	SaveVideoJob(j models.VideoJob) error
	// GetVideoJob retrieves the video job for a recipe, nil when absent.
	GetVideoJob(recipeID string) (*models.VideoJob, error)

	// Close releases the backend's resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithSQLiteDSN configures an SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN configures a PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType reports "postgres" for PostgreSQL connection strings and
// "sqlite" for anything else (file paths).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// NewStore builds a store from the configured options: Postgres for
// Postgres DSNs, SQLite for file paths, in-memory when no DSN is given.
func NewStore(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		return NewInMemoryStore(), nil
	}
	if DetectDSNType(cfg.DSN) == "postgres" {
		return NewPostgresStore(opts...)
	}
	return NewSQLiteStore(opts...)
}
