// Package store provides storage backends for Crisp.
//
// The whole application state (every candidate, the active session, the
// active tab) is persisted as a single serialized blob under a fixed key.
// Every operation is a synchronous read-modify-write of the full state; a
// failed write is surfaced to the caller, since losing durability breaks the
// resume contract.
package store

import (
	"errors"
	"strings"
	"sync"

	"github.com/BTreeMap/Crisp/internal/models"
)

// StateKey is the fixed storage key for the serialized application state.
const StateKey = "interview-app-state"

// Error variables for better error handling and testability
var (
	ErrDiscardNotAllowed = errors.New("discard is only valid for in-progress sessions with no scored answers")
)

// Store is the session store contract shared by all backends.
type Store interface {
	// AppState returns a deep-copied snapshot of the full application state.
	AppState() (models.AppState, error)

	// GetCandidate returns a copy of the candidate with the given id, or
	// models.ErrCandidateNotFound.
	GetCandidate(id string) (*models.Candidate, error)

	// UpsertCandidate inserts or replaces a candidate by id.
	UpsertCandidate(c models.Candidate) error

	// SetActiveCandidate marks the session with the given id active; an empty
	// id clears the active session.
	SetActiveCandidate(id string) error

	// SetActiveTab records which UI tab is active.
	SetActiveTab(tab models.TabType) error

	// DiscardInProgress hard-deletes an in-progress candidate. Only valid
	// before the first answer has been scored.
	DiscardInProgress(id string) error

	// ListCompleted returns all completed candidates.
	ListCompleted() ([]models.Candidate, error)

	// FindUnfinished returns the in-progress candidate. Used to offer resume
	// on cold start. Returns models.ErrCandidateNotFound when no session is
	// in progress.
	FindUnfinished() (*models.Candidate, error)

	// Close releases backend resources.
	Close() error
}

// Opts holds configuration options for store implementations.
type Opts struct {
	DSN string
}

// Option configures store construction.
type Option func(*Opts)

// WithDSN sets the database DSN (file path for SQLite, connection string for Postgres).
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite" by its shape.
// Anything that is not recognizably a Postgres connection string is treated
// as a SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// Shared state mutation helpers. Backends load the state, apply one of
// these, and write the whole state back.

func upsertCandidate(st *models.AppState, c models.Candidate) error {
	if c.ID == "" {
		return models.ErrEmptyCandidateID
	}
	if !models.IsValidCandidateStatus(c.Status) {
		return models.ErrInvalidStatus
	}
	st.Candidates[c.ID] = c.Clone()
	return nil
}

func setActiveCandidate(st *models.AppState, id string) error {
	if id != "" {
		if _, ok := st.Candidates[id]; !ok {
			return models.ErrCandidateNotFound
		}
	}
	st.ActiveCandidateID = id
	return nil
}

func setActiveTab(st *models.AppState, tab models.TabType) error {
	if !models.IsValidTab(tab) {
		return models.ErrInvalidTab
	}
	st.ActiveTab = tab
	return nil
}

func discardInProgress(st *models.AppState, id string) error {
	cand, ok := st.Candidates[id]
	if !ok {
		return models.ErrCandidateNotFound
	}
	if cand.Status != models.StatusInProgress {
		return ErrDiscardNotAllowed
	}
	for i := range cand.Questions {
		if cand.Questions[i].Answered() {
			return ErrDiscardNotAllowed
		}
	}
	delete(st.Candidates, id)
	if st.ActiveCandidateID == id {
		st.ActiveCandidateID = ""
	}
	return nil
}

func listCompleted(st *models.AppState) []models.Candidate {
	var completed []models.Candidate
	for _, cand := range st.Candidates {
		if cand.Status == models.StatusCompleted {
			completed = append(completed, cand.Clone())
		}
	}
	return completed
}

func findUnfinished(st *models.AppState) (*models.Candidate, error) {
	for _, cand := range st.Candidates {
		if cand.Status == models.StatusInProgress {
			cp := cand.Clone()
			return &cp, nil
		}
	}
	return nil, models.ErrCandidateNotFound
}

// InMemoryStore keeps the application state in process memory. Used by tests
// and as a fallback when no DSN is configured.
type InMemoryStore struct {
	mu    sync.Mutex
	state models.AppState
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{state: models.NewAppState()}
}

// AppState returns a deep-copied snapshot of the full application state.
func (s *InMemoryStore) AppState() (models.AppState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone(), nil
}

// GetCandidate returns a copy of the candidate with the given id.
func (s *InMemoryStore) GetCandidate(id string) (*models.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cand, ok := s.state.Candidates[id]
	if !ok {
		return nil, models.ErrCandidateNotFound
	}
	cp := cand.Clone()
	return &cp, nil
}

// UpsertCandidate inserts or replaces a candidate by id.
func (s *InMemoryStore) UpsertCandidate(c models.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return upsertCandidate(&s.state, c)
}

// SetActiveCandidate marks the session with the given id active.
func (s *InMemoryStore) SetActiveCandidate(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setActiveCandidate(&s.state, id)
}

// SetActiveTab records which UI tab is active.
func (s *InMemoryStore) SetActiveTab(tab models.TabType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setActiveTab(&s.state, tab)
}

// DiscardInProgress hard-deletes an in-progress candidate with no scored answers.
func (s *InMemoryStore) DiscardInProgress(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return discardInProgress(&s.state, id)
}

// ListCompleted returns all completed candidates.
func (s *InMemoryStore) ListCompleted() ([]models.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return listCompleted(&s.state), nil
}

// FindUnfinished returns the in-progress candidate, or
// models.ErrCandidateNotFound when none exists.
func (s *InMemoryStore) FindUnfinished() (*models.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return findUnfinished(&s.state)
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
