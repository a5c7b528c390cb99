// Package store provides storage backends for Crisp.
//
// This file implements an SQLite-backed store for the application state blob.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "embed"

	"github.com/BTreeMap/Crisp/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists the application state in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
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

	// Ensure the directory exists
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

	// Run migrations to ensure the app_state table exists
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// loadState reads and decodes the state blob, returning an empty state when
// none has been written yet.
func (s *SQLiteStore) loadState() (models.AppState, error) {
	var stateJSON string
	err := s.db.QueryRow(`SELECT state_json FROM app_state WHERE state_key = ?`, StateKey).Scan(&stateJSON)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore loadState: no state yet, starting empty")
		return models.NewAppState(), nil
	}
	if err != nil {
		slog.Error("SQLiteStore loadState query failed", "error", err)
		return models.AppState{}, fmt.Errorf("failed to load app state: %w", err)
	}

	state := models.NewAppState()
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		slog.Error("SQLiteStore loadState unmarshal failed", "error", err)
		return models.AppState{}, fmt.Errorf("failed to decode app state: %w", err)
	}
	if state.Candidates == nil {
		state.Candidates = make(map[string]models.Candidate)
	}
	return state, nil
}

// saveState encodes and writes the whole state blob under the fixed key.
func (s *SQLiteStore) saveState(state models.AppState) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		slog.Error("SQLiteStore saveState marshal failed", "error", err)
		return fmt.Errorf("failed to encode app state: %w", err)
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO app_state (state_key, state_json, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`, StateKey, string(stateJSON))
	if err != nil {
		slog.Error("SQLiteStore saveState failed", "error", err)
		return fmt.Errorf("failed to persist app state: %w", err)
	}
	slog.Debug("SQLiteStore saveState succeeded", "candidates", len(state.Candidates))
	return nil
}

// mutate applies fn to the loaded state and persists the result.
func (s *SQLiteStore) mutate(fn func(*models.AppState) error) error {
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
func (s *SQLiteStore) AppState() (models.AppState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadState()
}

// GetCandidate returns the candidate with the given id.
func (s *SQLiteStore) GetCandidate(id string) (*models.Candidate, error) {
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
func (s *SQLiteStore) UpsertCandidate(c models.Candidate) error {
	return s.mutate(func(st *models.AppState) error {
		return upsertCandidate(st, c)
	})
}

// SetActiveCandidate marks the session with the given id active.
func (s *SQLiteStore) SetActiveCandidate(id string) error {
	return s.mutate(func(st *models.AppState) error {
		return setActiveCandidate(st, id)
	})
}

// SetActiveTab records which UI tab is active.
func (s *SQLiteStore) SetActiveTab(tab models.TabType) error {
	return s.mutate(func(st *models.AppState) error {
		return setActiveTab(st, tab)
	})
}

// DiscardInProgress hard-deletes an in-progress candidate with no scored answers.
func (s *SQLiteStore) DiscardInProgress(id string) error {
	return s.mutate(func(st *models.AppState) error {
		return discardInProgress(st, id)
	})
}

// ListCompleted returns all completed candidates.
func (s *SQLiteStore) ListCompleted() ([]models.Candidate, error) {
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
func (s *SQLiteStore) FindUnfinished() (*models.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.loadState()
	if err != nil {
		return nil, err
	}
	return findUnfinished(&state)
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
