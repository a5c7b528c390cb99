// Package models defines the core data structures for Crisp.
//
// It includes the candidate aggregate, question and chat message types, the
// interview flow configuration, and the persisted application state shared
// across modules.
package models

import (
	"errors"
	"math"
	"time"
)

// Difficulty describes how hard an interview question is.
type Difficulty string

const (
	// DifficultyEasy marks a warm-up question.
	DifficultyEasy Difficulty = "Easy"
	// DifficultyMedium marks a mid-interview question.
	DifficultyMedium Difficulty = "Medium"
	// DifficultyHard marks a closing question.
	DifficultyHard Difficulty = "Hard"
)

// IsValidDifficulty checks if the given difficulty is supported.
func IsValidDifficulty(d Difficulty) bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	default:
		return false
	}
}

// Stage is one position in the fixed interview flow.
type Stage struct {
	Difficulty       Difficulty `json:"difficulty"`
	TimeLimitSeconds int        `json:"time_limit_seconds"`
}

// DefaultInterviewFlow is the reference six-stage flow: two easy, two medium,
// two hard questions with escalating time limits. The total question count is
// always derived from the flow length, never hand-coded.
var DefaultInterviewFlow = []Stage{
	{Difficulty: DifficultyEasy, TimeLimitSeconds: 20},
	{Difficulty: DifficultyEasy, TimeLimitSeconds: 20},
	{Difficulty: DifficultyMedium, TimeLimitSeconds: 60},
	{Difficulty: DifficultyMedium, TimeLimitSeconds: 60},
	{Difficulty: DifficultyHard, TimeLimitSeconds: 120},
	{Difficulty: DifficultyHard, TimeLimitSeconds: 120},
}

// CandidateStatus represents where a candidate is in the interview lifecycle.
type CandidateStatus string

const (
	// StatusPendingInfo exists in the type domain for completeness; candidates
	// are only ever created after resume extraction, directly in InfoCollected.
	StatusPendingInfo CandidateStatus = "PendingInfo"
	// StatusInfoCollected indicates contact details are being confirmed.
	StatusInfoCollected CandidateStatus = "InfoCollected"
	// StatusInProgress indicates the timed question sequence is running.
	StatusInProgress CandidateStatus = "InProgress"
	// StatusCompleted indicates the interview is finished and scored.
	StatusCompleted CandidateStatus = "Completed"
)

// IsValidCandidateStatus checks if the given status is supported.
func IsValidCandidateStatus(s CandidateStatus) bool {
	switch s {
	case StatusPendingInfo, StatusInfoCollected, StatusInProgress, StatusCompleted:
		return true
	default:
		return false
	}
}

// Sender identifies who produced a chat message.
type Sender string

const (
	// SenderAI marks messages produced by the interviewer side.
	SenderAI Sender = "ai"
	// SenderUser marks messages typed by the candidate.
	SenderUser Sender = "user"
)

// TabType identifies which view of the app is active.
type TabType string

const (
	// TabInterviewee is the candidate-facing chat view.
	TabInterviewee TabType = "interviewee"
	// TabInterviewer is the reviewer dashboard view.
	TabInterviewer TabType = "interviewer"
)

// IsValidTab checks if the given tab is supported.
func IsValidTab(t TabType) bool {
	return t == TabInterviewee || t == TabInterviewer
}

// Contact field names, in the fixed priority order used when collecting
// missing details.
const (
	FieldName  = "name"
	FieldEmail = "email"
	FieldPhone = "phone"
)

// Error variables for better error handling and testability
var (
	ErrCandidateNotFound   = errors.New("candidate not found")
	ErrUnknownContactField = errors.New("unknown contact field")
	ErrInvalidStatus       = errors.New("invalid candidate status")
	ErrInvalidTab          = errors.New("invalid tab")
	ErrEmptyCandidateID    = errors.New("candidate id cannot be empty")
)

// Message is one append-only chat log entry.
type Message struct {
	ID     string `json:"id"`
	Sender Sender `json:"sender"`
	Text   string `json:"text"`
	IsInfo bool   `json:"is_info,omitempty"`
}

// Question is one asked interview question. Answer, Score and Feedback are
// written exactly once, when the candidate submits (or auto-submits) a
// response, and are immutable afterwards.
type Question struct {
	ID               string     `json:"id"`
	Text             string     `json:"text"`
	Difficulty       Difficulty `json:"difficulty"`
	TimeLimitSeconds int        `json:"time_limit_seconds"`
	Answer           string     `json:"answer"`
	Score            *int       `json:"score"` // 0..100, nil until evaluated
	Feedback         string     `json:"feedback"`
}

// Answered reports whether the question has been scored.
func (q *Question) Answered() bool {
	return q.Score != nil
}

// Candidate is the aggregate root for one interview attempt.
type Candidate struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	Email                string          `json:"email"`
	Phone                string          `json:"phone"`
	ResumeText           string          `json:"resume_text"`
	Status               CandidateStatus `json:"status"`
	Questions            []Question      `json:"questions"`
	CurrentQuestionIndex int             `json:"current_question_index"`
	FinalScore           *int            `json:"final_score"` // nil until Completed
	Summary              string          `json:"summary"`
	ChatHistory          []Message       `json:"chat_history"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// MissingFields returns the contact fields still unset, in the fixed
// priority order name, email, phone.
func (c *Candidate) MissingFields() []string {
	var missing []string
	if c.Name == "" {
		missing = append(missing, FieldName)
	}
	if c.Email == "" {
		missing = append(missing, FieldEmail)
	}
	if c.Phone == "" {
		missing = append(missing, FieldPhone)
	}
	return missing
}

// SetContactField assigns a value to the named contact field.
func (c *Candidate) SetContactField(field, value string) error {
	switch field {
	case FieldName:
		c.Name = value
	case FieldEmail:
		c.Email = value
	case FieldPhone:
		c.Phone = value
	default:
		return ErrUnknownContactField
	}
	return nil
}

// CurrentQuestion returns the question at CurrentQuestionIndex, or nil when
// the index points past the asked questions.
func (c *Candidate) CurrentQuestion() *Question {
	if c.CurrentQuestionIndex < 0 || c.CurrentQuestionIndex >= len(c.Questions) {
		return nil
	}
	return &c.Questions[c.CurrentQuestionIndex]
}

// ScoredTotal sums the scores of all evaluated questions.
func (c *Candidate) ScoredTotal() int {
	total := 0
	for i := range c.Questions {
		if c.Questions[i].Score != nil {
			total += *c.Questions[i].Score
		}
	}
	return total
}

// ComputeFinalScore returns round(sum of scored questions / totalQuestions).
// The divisor is always the full flow length, so an interview that ends early
// yields a partial score rather than an inflated one.
func (c *Candidate) ComputeFinalScore(totalQuestions int) int {
	if totalQuestions <= 0 {
		return 0
	}
	return int(math.Round(float64(c.ScoredTotal()) / float64(totalQuestions)))
}

// AppendMessage appends a chat message and returns its ID.
func (c *Candidate) AppendMessage(m Message) string {
	c.ChatHistory = append(c.ChatHistory, m)
	return m.ID
}

// RemoveMessage deletes the message with the given ID from the chat history.
// Only the transient evaluation placeholder is ever removed.
func (c *Candidate) RemoveMessage(id string) {
	for i := range c.ChatHistory {
		if c.ChatHistory[i].ID == id {
			c.ChatHistory = append(c.ChatHistory[:i], c.ChatHistory[i+1:]...)
			return
		}
	}
}

// Clone returns a deep copy of the candidate.
func (c *Candidate) Clone() Candidate {
	cp := *c
	cp.Questions = make([]Question, len(c.Questions))
	copy(cp.Questions, c.Questions)
	for i := range cp.Questions {
		if c.Questions[i].Score != nil {
			score := *c.Questions[i].Score
			cp.Questions[i].Score = &score
		}
	}
	cp.ChatHistory = make([]Message, len(c.ChatHistory))
	copy(cp.ChatHistory, c.ChatHistory)
	if c.FinalScore != nil {
		fs := *c.FinalScore
		cp.FinalScore = &fs
	}
	return cp
}

// AppState is the whole persisted application state: every candidate, which
// session is active and which tab is shown. Every mutation is written back
// to the store synchronously.
type AppState struct {
	Candidates        map[string]Candidate `json:"candidates"`
	ActiveCandidateID string               `json:"active_candidate_id"` // "" when no session is active
	ActiveTab         TabType              `json:"active_tab"`
}

// NewAppState returns an empty state with the interviewee tab selected.
func NewAppState() AppState {
	return AppState{
		Candidates: make(map[string]Candidate),
		ActiveTab:  TabInterviewee,
	}
}

// Clone returns a deep copy of the application state.
func (s *AppState) Clone() AppState {
	cp := AppState{
		Candidates:        make(map[string]Candidate, len(s.Candidates)),
		ActiveCandidateID: s.ActiveCandidateID,
		ActiveTab:         s.ActiveTab,
	}
	for id, cand := range s.Candidates {
		cp.Candidates[id] = cand.Clone()
	}
	return cp
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
