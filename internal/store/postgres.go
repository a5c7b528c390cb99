// Package store provides storage backends for Crisp.
//
// This file implements a PostgreSQL-backed store for the application state blob.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "embed"

	"github.com/BTreeMap/Crisp/internal/models"
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

// PostgresStore persists the application state in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
	mu sync.Mutex
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

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure the app_state table exists
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) loadState() (models.AppState, error) {
	var stateJSON string
	err := s.db.QueryRow(`SELECT state_json FROM app_state WHERE state_key = $1`, StateKey).Scan(&stateJSON)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore loadState: no state yet, starting empty")
		return models.NewAppState(), nil
	}
	if err != nil {
		slog.Error("PostgresStore loadState query failed", "error", err)
		return models.AppState{}, fmt.Errorf("failed to load app state: %w", err)
	}

	state := models.NewAppState()
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		slog.Error("PostgresStore loadState unmarshal failed", "error", err)
		return models.AppState{}, fmt.Errorf("failed to decode app state: %w", err)
	}
	if state.Candidates == nil {
		state.Candidates = make(map[string]models.Candidate)
	}
	return state, nil
}

func (s *PostgresStore) saveState(state models.AppState) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		slog.Error("PostgresStore saveState marshal failed", "error", err)
		return fmt.Errorf("failed to encode app state: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO app_state (state_key, state_json, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (state_key) DO UPDATE SET state_json = EXCLUDED.state_json, updated_at = NOW()`,
		StateKey, string(stateJSON))
	if err != nil {
		slog.Error("PostgresStore saveState failed", "error", err)
		return fmt.Errorf("failed to persist app state: %w", err)
	}
	slog.Debug("PostgresStore saveState succeeded", "candidates", len(state.Candidates))
	return nil
}

func (s *PostgresStore) mutate(fn func(*models.AppState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.loadState()
	if err != nil {
		return err
	}
	if err := fn(&state); err != nil {
		return err
	}
	return s.saveState(state)
}

// AppState returns a snapshot of the full application state.
func (s *PostgresStore) AppState() (models.AppState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadState()
}

// GetCandidate returns the candidate with the given id.
func (s *PostgresStore) GetCandidate(id string) (*models.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.loadState()
	if err != nil {
		return nil, err
	}
	cand, ok := state.Candidates[id]
	if !ok {
		return nil, models.ErrCandidateNotFound
	}
	return &cand, nil
}

// UpsertCandidate inserts or replaces a candidate by id.
func (s *PostgresStore) UpsertCandidate(c models.Candidate) error {
	return s.mutate(func(st *models.AppState) error {
		return upsertCandidate(st, c)
	})
}

// SetActiveCandidate marks the session with the given id active.
func (s *PostgresStore) SetActiveCandidate(id string) error {
	return s.mutate(func(st *models.AppState) error {
		return setActiveCandidate(st, id)
	})
}

// SetActiveTab records which UI tab is active.
func (s *PostgresStore) SetActiveTab(tab models.TabType) error {
	return s.mutate(func(st *models.AppState) error {
		return setActiveTab(st, tab)
	})
}

// DiscardInProgress hard-deletes an in-progress candidate with no scored answers.
func (s *PostgresStore) DiscardInProgress(id string) error {
	return s.mutate(func(st *models.AppState) error {
		return discardInProgress(st, id)
	})
}

// ListCompleted returns all completed candidates.
func (s *PostgresStore) ListCompleted() ([]models.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.loadState()
	if err != nil {
		return nil, err
	}
	return listCompleted(&state), nil
}

// FindUnfinished returns the in-progress candidate, or
// models.ErrCandidateNotFound when none exists.
func (s *PostgresStore) FindUnfinished() (*models.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.loadState()
	if err != nil {
		return nil, err
	}
	return findUnfinished(&state)
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
