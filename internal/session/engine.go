package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BTreeMap/Crisp/internal/genai"
	"github.com/BTreeMap/Crisp/internal/models"
	"github.com/BTreeMap/Crisp/internal/store"
	"github.com/BTreeMap/Crisp/internal/util"
)

// Sentinel errors returned by engine operations.
var (
	// ErrEvaluationInFlight indicates the candidate already has an event being
	// processed. Events are single-flight per candidate: the caller should
	// surface the conflict rather than queue.
	ErrEvaluationInFlight = errors.New("an operation for this session is already in progress")
	// ErrNoUnfinishedSession indicates no in-progress interview exists to
	// resume or discard.
	ErrNoUnfinishedSession = errors.New("no unfinished session found")
	// ErrSessionCompleted indicates the operation is invalid on a finished
	// interview.
	ErrSessionCompleted = errors.New("session is already completed")
)

// MaxGenerateRetries is how many additional attempts follow a failed question
// generation before the interview is terminated early.
const MaxGenerateRetries = 2

// DefaultRetryDelay separates question-generation attempts.
const DefaultRetryDelay = 2 * time.Second

// DefaultTickInterval is the real-time countdown resolution.
const DefaultTickInterval = time.Second

// Expiry events that lose the single-flight guard to another event wait and
// retry rather than drop, since the holder may not answer the question (a
// pause or resume, for example).
const (
	expiryAcquireAttempts = 40
	expiryAcquireBackoff  = 25 * time.Millisecond
)

// Chat copy shown to candidates. Informational messages (IsInfo) render as
// system banners rather than chat bubbles.
const (
	allInfoCollectedText = "Great, I have all your information. The interview will now begin. You will be asked %d questions of increasing difficulty. Good luck!"
	evaluatingText       = "Evaluating your answer..."
	computingResultsText = "That was the final question. Calculating your results..."
	retryingText         = "I'm having trouble generating the next question. Trying again..."
	terminationText      = "I'm unable to generate further questions right now, so the interview has been ended early. Your answered questions have been scored."
	prematureEndText     = "The interview was ended before all questions were answered. Answered questions have been scored; the rest count as zero."
	timerResumedText     = "Timer resumed. Good luck!"
	noAnswerFeedback     = "Candidate did not provide an answer."
	evalFailedFeedback   = "AI evaluation failed."
	fallbackSummary      = "Failed to generate interview summary."
	terminationSummary   = "Interview terminated early: question generation failed repeatedly."
	prematureEndSummary  = "Interview ended early by the candidate before all questions were answered."
)

// Opts holds engine configuration.
type Opts struct {
	Flow         []models.Stage
	TickInterval time.Duration
	RetryDelay   time.Duration
}

// Option configures the engine.
type Option func(*Opts)

// WithFlow overrides the interview stage sequence.
func WithFlow(flow []models.Stage) Option {
	return func(o *Opts) { o.Flow = flow }
}

// WithTickInterval overrides the countdown resolution. Tests use a short
// interval to exercise expiry without waiting wall-clock seconds.
func WithTickInterval(d time.Duration) Option {
	return func(o *Opts) { o.TickInterval = d }
}

// WithRetryDelay overrides the pause between question-generation attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(o *Opts) { o.RetryDelay = d }
}

// runtime is the in-memory, non-persisted side of a session: the countdown
// and the single-flight guard. It is lost on restart, which is why resumed
// sessions restart the current question's timer from its full limit.
type runtime struct {
	countdown *Countdown
	busy      bool
}

// Engine drives interviews through their lifecycle. All state that must
// survive a restart lives in the store; the engine keeps only timers and
// in-flight guards.
type Engine struct {
	store      store.Store
	evaluator  genai.Evaluator
	flow       []models.Stage
	tick       time.Duration
	retryDelay time.Duration

	mu       sync.Mutex
	sessions map[string]*runtime
}

// NewEngine creates an interview engine backed by the given store and
// evaluator.
func NewEngine(st store.Store, evaluator genai.Evaluator, opts ...Option) *Engine {
	o := Opts{
		Flow:         models.DefaultInterviewFlow,
		TickInterval: DefaultTickInterval,
		RetryDelay:   DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Engine{
		store:      st,
		evaluator:  evaluator,
		flow:       o.Flow,
		tick:       o.TickInterval,
		retryDelay: o.RetryDelay,
		sessions:   make(map[string]*runtime),
	}
}

// Flow returns the stage sequence the engine runs interviews against.
func (e *Engine) Flow() []models.Stage {
	return e.flow
}

// StartSession creates a candidate from extracted resume text, makes them the
// active session and advances into info collection (or straight into the
// first question when the resume covered all contact fields).
func (e *Engine) StartSession(ctx context.Context, resumeText string) (models.Candidate, error) {
	info := e.evaluator.ExtractContactInfo(ctx, resumeText)
	now := time.Now()
	cand := models.Candidate{
		ID:         util.GenerateCandidateID(),
		Name:       strings.TrimSpace(info.Name),
		Email:      strings.TrimSpace(info.Email),
		Phone:      strings.TrimSpace(info.Phone),
		ResumeText: resumeText,
		Status:     models.StatusInfoCollected,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	cand.AppendMessage(newAIMessage(greeting(cand), false))
	slog.Info("Engine.StartSession: candidate created", "candidate_id", cand.ID,
		"name_found", cand.Name != "", "email_found", cand.Email != "", "phone_found", cand.Phone != "")

	rt, err := e.acquire(cand.ID)
	if err != nil {
		return models.Candidate{}, err
	}
	defer e.release(cand.ID)

	if err := e.persist(&cand); err != nil {
		return models.Candidate{}, err
	}
	if err := e.store.SetActiveCandidate(cand.ID); err != nil {
		return models.Candidate{}, fmt.Errorf("failed to activate session: %w", err)
	}
	if err := e.advance(ctx, rt, &cand); err != nil {
		return models.Candidate{}, err
	}
	return cand, nil
}

// Submit processes candidate input for the active question or the current
// missing contact field. It rejects concurrent submissions for the same
// candidate with ErrEvaluationInFlight.
func (e *Engine) Submit(ctx context.Context, candidateID, text string) (models.Candidate, error) {
	rt, err := e.acquire(candidateID)
	if err != nil {
		return models.Candidate{}, err
	}
	defer e.release(candidateID)
	return e.submitLocked(ctx, rt, candidateID, text)
}

// submitLocked is the submission path shared by Submit and timer expiry. The
// caller must hold the candidate's single-flight guard.
func (e *Engine) submitLocked(ctx context.Context, rt *runtime, candidateID, text string) (models.Candidate, error) {
	stored, err := e.store.GetCandidate(candidateID)
	if err != nil {
		return models.Candidate{}, err
	}
	cand := *stored
	trimmed := strings.TrimSpace(text)

	switch cand.Status {
	case models.StatusInfoCollected:
		if trimmed == "" {
			return cand, nil
		}
		missing := cand.MissingFields()
		if len(missing) == 0 {
			return cand, nil
		}
		cand.AppendMessage(newUserMessage(trimmed))
		if err := cand.SetContactField(missing[0], trimmed); err != nil {
			return models.Candidate{}, err
		}
		slog.Debug("Engine.Submit: contact field collected", "candidate_id", cand.ID, "field", missing[0])
		if err := e.persist(&cand); err != nil {
			return models.Candidate{}, err
		}

	case models.StatusInProgress:
		q := cand.CurrentQuestion()
		if q == nil || q.Answered() {
			// The answer raced the timer (or vice versa); the first event won.
			return cand, nil
		}
		rt.countdown.Stop()
		cand.AppendMessage(newUserMessage(trimmed))
		q.Answer = trimmed
		if trimmed == "" {
			zero := 0
			q.Score = &zero
			q.Feedback = noAnswerFeedback
			slog.Info("Engine.Submit: empty answer scored without evaluation", "candidate_id", cand.ID, "question_id", q.ID)
		} else {
			placeholder := newAIMessage(evaluatingText, true)
			cand.AppendMessage(placeholder)
			if err := e.persist(&cand); err != nil {
				return models.Candidate{}, err
			}
			eval, evalErr := e.evaluator.EvaluateAnswer(ctx, q.Text, trimmed)
			if evalErr != nil {
				slog.Error("Engine.Submit: answer evaluation failed", "candidate_id", cand.ID, "question_id", q.ID, "error", evalErr)
				eval = genai.AnswerEvaluation{Score: 0, Feedback: evalFailedFeedback}
			}
			cand.RemoveMessage(placeholder.ID)
			score := eval.Score
			q.Score = &score
			q.Feedback = eval.Feedback
		}
		cand.AppendMessage(newAIMessage(fmt.Sprintf("**Score: %d/100**\n\n%s", *q.Score, q.Feedback), false))
		cand.CurrentQuestionIndex++
		if err := e.persist(&cand); err != nil {
			return models.Candidate{}, err
		}

	case models.StatusCompleted:
		return cand, ErrSessionCompleted
	default:
		return cand, nil
	}

	if err := e.advance(ctx, rt, &cand); err != nil {
		return models.Candidate{}, err
	}
	return cand, nil
}

// advance pushes the session to its next stable point: the next missing-field
// prompt, the interview start, the next question, or finalization. It may
// cross several statuses in one call.
func (e *Engine) advance(ctx context.Context, rt *runtime, cand *models.Candidate) error {
	if cand.Status == models.StatusInfoCollected {
		missing := cand.MissingFields()
		if len(missing) > 0 {
			cand.AppendMessage(newAIMessage(missingFieldPrompt(missing), false))
			return e.persist(cand)
		}
		cand.Status = models.StatusInProgress
		cand.AppendMessage(newAIMessage(fmt.Sprintf(allInfoCollectedText, len(e.flow)), true))
		slog.Info("Engine.advance: interview started", "candidate_id", cand.ID)
		if err := e.persist(cand); err != nil {
			return err
		}
	}

	if cand.Status != models.StatusInProgress {
		return nil
	}
	if cand.CurrentQuestionIndex < len(e.flow) {
		return e.askNextQuestion(ctx, rt, cand)
	}
	return e.finalize(ctx, cand, "", "")
}

// askNextQuestion generates the question for the current stage, retrying a
// bounded number of times before terminating the interview early.
func (e *Engine) askNextQuestion(ctx context.Context, rt *runtime, cand *models.Candidate) error {
	stage := e.flow[cand.CurrentQuestionIndex]
	exclude := make([]string, 0, len(cand.Questions))
	for _, q := range cand.Questions {
		exclude = append(exclude, q.Text)
	}

	var text string
	var err error
	for attempt := 0; attempt <= MaxGenerateRetries; attempt++ {
		text, err = e.evaluator.GenerateQuestion(ctx, stage.Difficulty, exclude)
		if err == nil {
			break
		}
		slog.Error("Engine.askNextQuestion: question generation failed", "candidate_id", cand.ID,
			"difficulty", stage.Difficulty, "attempt", attempt+1, "error", err)
		if attempt == MaxGenerateRetries {
			return e.finalize(ctx, cand, terminationSummary, terminationText)
		}
		cand.AppendMessage(newAIMessage(retryingText, true))
		if perr := e.persist(cand); perr != nil {
			return perr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.retryDelay):
		}
	}

	q := models.Question{
		ID:               uuid.NewString(),
		Text:             text,
		Difficulty:       stage.Difficulty,
		TimeLimitSeconds: stage.TimeLimitSeconds,
	}
	cand.Questions = append(cand.Questions, q)
	cand.AppendMessage(newAIMessage(fmt.Sprintf("**Question %d of %d** (%s, %ds)\n\n%s",
		cand.CurrentQuestionIndex+1, len(e.flow), stage.Difficulty, stage.TimeLimitSeconds, text), false))
	slog.Info("Engine.askNextQuestion: question asked", "candidate_id", cand.ID,
		"index", cand.CurrentQuestionIndex, "difficulty", stage.Difficulty)
	if err := e.persist(cand); err != nil {
		return err
	}
	rt.countdown.Start(stage.TimeLimitSeconds)
	return nil
}

// finalize completes the interview: computes the final score over the full
// flow length, obtains (or substitutes) a summary and deactivates the
// session. A non-empty forcedSummary skips the evaluator and marks an early
// termination; notice is the banner posted into the chat explaining why.
func (e *Engine) finalize(ctx context.Context, cand *models.Candidate, forcedSummary, notice string) error {
	if rt := e.lookup(cand.ID); rt != nil {
		rt.countdown.Stop()
	}
	cand.Status = models.StatusCompleted
	final := cand.ComputeFinalScore(len(e.flow))
	cand.FinalScore = &final

	summary := forcedSummary
	if summary == "" {
		placeholder := newAIMessage(computingResultsText, true)
		cand.AppendMessage(placeholder)
		if err := e.persist(cand); err != nil {
			return err
		}
		var err error
		summary, err = e.evaluator.SummarizeSession(ctx, cand.Name, cand.Questions)
		if err != nil {
			slog.Error("Engine.finalize: summary generation failed", "candidate_id", cand.ID, "error", err)
			summary = fallbackSummary
		}
		cand.RemoveMessage(placeholder.ID)
	} else if notice != "" {
		cand.AppendMessage(newAIMessage(notice, true))
	}
	cand.Summary = summary
	cand.AppendMessage(newAIMessage(fmt.Sprintf("**Interview complete!**\n\n**Final score: %d/100**\n\n%s",
		final, summary), false))
	slog.Info("Engine.finalize: interview completed", "candidate_id", cand.ID,
		"final_score", final, "early_termination", forcedSummary != "")
	if err := e.persist(cand); err != nil {
		return err
	}
	if err := e.store.SetActiveCandidate(""); err != nil {
		return fmt.Errorf("failed to deactivate session: %w", err)
	}
	e.drop(cand.ID)
	return nil
}

// Pause freezes the active question's countdown. Pausing is idempotent: a
// known candidate with no runtime yet (stored session awaiting resume after a
// restart) has no timer to freeze and the call is a no-op.
func (e *Engine) Pause(candidateID string) error {
	rt := e.lookup(candidateID)
	if rt == nil {
		if _, err := e.store.GetCandidate(candidateID); err != nil {
			return err
		}
		slog.Debug("Engine.Pause: no running timer", "candidate_id", candidateID)
		return nil
	}
	rt.countdown.Pause()
	slog.Debug("Engine.Pause: session paused", "candidate_id", candidateID, "remaining", rt.countdown.Remaining())
	return nil
}

// Resume continues a paused countdown from its frozen value and posts a
// resumption notice into the chat.
func (e *Engine) Resume(ctx context.Context, candidateID string) (models.Candidate, error) {
	rt, err := e.acquire(candidateID)
	if err != nil {
		return models.Candidate{}, err
	}
	defer e.release(candidateID)

	stored, err := e.store.GetCandidate(candidateID)
	if err != nil {
		return models.Candidate{}, err
	}
	cand := *stored
	if cand.Status != models.StatusInProgress {
		return cand, nil
	}
	rt.countdown.Resume()
	cand.AppendMessage(newAIMessage(timerResumedText, true))
	if err := e.persist(&cand); err != nil {
		return models.Candidate{}, err
	}
	slog.Debug("Engine.Resume: session resumed", "candidate_id", candidateID, "remaining", rt.countdown.Remaining())
	return cand, nil
}

// EndSession force-finalizes an interview before all questions are answered.
// Unanswered questions count as zero; the summary notes the early end.
func (e *Engine) EndSession(ctx context.Context, candidateID string) (models.Candidate, error) {
	rt, err := e.acquire(candidateID)
	if err != nil {
		return models.Candidate{}, err
	}
	defer e.release(candidateID)

	stored, err := e.store.GetCandidate(candidateID)
	if err != nil {
		return models.Candidate{}, err
	}
	cand := *stored
	if cand.Status == models.StatusCompleted {
		return cand, ErrSessionCompleted
	}
	rt.countdown.Stop()
	slog.Info("Engine.EndSession: interview ended by candidate", "candidate_id", cand.ID,
		"answered", cand.CurrentQuestionIndex, "total", len(e.flow))
	if err := e.finalize(ctx, &cand, prematureEndSummary, prematureEndText); err != nil {
		return models.Candidate{}, err
	}
	return cand, nil
}

// ResumeUnfinished reactivates an in-progress interview after a restart.
// Timer state does not survive restarts, so the current question's countdown
// restarts from its full limit.
func (e *Engine) ResumeUnfinished(ctx context.Context) (models.Candidate, error) {
	stored, err := e.store.FindUnfinished()
	if err != nil {
		if errors.Is(err, models.ErrCandidateNotFound) {
			return models.Candidate{}, ErrNoUnfinishedSession
		}
		return models.Candidate{}, err
	}
	cand := *stored
	rt, err := e.acquire(cand.ID)
	if err != nil {
		return models.Candidate{}, err
	}
	defer e.release(cand.ID)

	if err := e.store.SetActiveCandidate(cand.ID); err != nil {
		return models.Candidate{}, fmt.Errorf("failed to reactivate session: %w", err)
	}
	if err := e.store.SetActiveTab(models.TabInterviewee); err != nil {
		return models.Candidate{}, err
	}
	if cand.Status == models.StatusInProgress {
		if q := cand.CurrentQuestion(); q != nil && !q.Answered() {
			rt.countdown.Start(q.TimeLimitSeconds)
		}
	}
	slog.Info("Engine.ResumeUnfinished: session restored", "candidate_id", cand.ID, "status", cand.Status)
	return cand, nil
}

// DiscardUnfinished drops an unfinished interview found at startup. Sessions
// with no scored answers are deleted outright; once any answer has been
// scored the record is force-finalized instead so the work is not lost.
func (e *Engine) DiscardUnfinished(ctx context.Context) error {
	stored, err := e.store.FindUnfinished()
	if err != nil {
		if errors.Is(err, models.ErrCandidateNotFound) {
			return ErrNoUnfinishedSession
		}
		return err
	}
	cand := *stored
	rt, err := e.acquire(cand.ID)
	if err != nil {
		return err
	}
	defer e.release(cand.ID)
	rt.countdown.Stop()

	if cand.ScoredTotal() == 0 && !anyAnswered(cand.Questions) {
		slog.Info("Engine.DiscardUnfinished: deleting unanswered session", "candidate_id", cand.ID)
		return e.store.DiscardInProgress(cand.ID)
	}
	slog.Info("Engine.DiscardUnfinished: force-finalizing answered session", "candidate_id", cand.ID)
	return e.finalize(ctx, &cand, prematureEndSummary, prematureEndText)
}

// Remaining reports the seconds left on a candidate's countdown, or zero when
// no timer is tracked.
func (e *Engine) Remaining(candidateID string) int {
	rt := e.lookup(candidateID)
	if rt == nil {
		return 0
	}
	return rt.countdown.Remaining()
}

// handleExpiry is the countdown callback: the question is auto-submitted with
// an empty answer. If another event holds the guard, the expiry waits for it
// to clear and retries; should the concurrent event have answered the
// question, the retried submission sees Answered() and becomes a no-op.
func (e *Engine) handleExpiry(candidateID string) {
	var rt *runtime
	var err error
	for attempt := 0; ; attempt++ {
		rt, err = e.acquire(candidateID)
		if err == nil {
			break
		}
		if attempt >= expiryAcquireAttempts {
			slog.Error("Engine.handleExpiry: giving up, guard never cleared", "candidate_id", candidateID)
			return
		}
		slog.Debug("Engine.handleExpiry: event in flight, retrying", "candidate_id", candidateID, "attempt", attempt+1)
		time.Sleep(expiryAcquireBackoff)
	}
	defer e.release(candidateID)
	slog.Info("Engine.handleExpiry: time expired, auto-submitting", "candidate_id", candidateID)
	if _, err := e.submitLocked(context.Background(), rt, candidateID, ""); err != nil {
		slog.Error("Engine.handleExpiry: auto-submit failed", "candidate_id", candidateID, "error", err)
	}
}

// acquire takes the candidate's single-flight guard, creating runtime state
// on first use.
func (e *Engine) acquire(candidateID string) (*runtime, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rt := e.sessions[candidateID]
	if rt == nil {
		rt = &runtime{
			countdown: NewCountdown(e.tick, func() { e.handleExpiry(candidateID) }),
		}
		e.sessions[candidateID] = rt
	}
	if rt.busy {
		return nil, ErrEvaluationInFlight
	}
	rt.busy = true
	return rt, nil
}

func (e *Engine) release(candidateID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rt := e.sessions[candidateID]; rt != nil {
		rt.busy = false
	}
}

func (e *Engine) lookup(candidateID string) *runtime {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessions[candidateID]
}

// drop discards runtime state for a finished session.
func (e *Engine) drop(candidateID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rt := e.sessions[candidateID]; rt != nil {
		rt.countdown.Stop()
	}
	delete(e.sessions, candidateID)
}

// persist stamps and saves the candidate. Storage failures are fatal to the
// operation; the session does not limp along with unsaved state.
func (e *Engine) persist(cand *models.Candidate) error {
	cand.UpdatedAt = time.Now()
	if err := e.store.UpsertCandidate(*cand); err != nil {
		return fmt.Errorf("failed to persist session state: %w", err)
	}
	return nil
}

func newAIMessage(text string, isInfo bool) models.Message {
	return models.Message{ID: uuid.NewString(), Sender: models.SenderAI, Text: text, IsInfo: isInfo}
}

func newUserMessage(text string) models.Message {
	return models.Message{ID: uuid.NewString(), Sender: models.SenderUser, Text: text}
}

// greeting builds the opening chat message based on what the resume yielded.
func greeting(cand models.Candidate) string {
	if cand.Name != "" {
		return fmt.Sprintf("Hello %s! I've read through your resume.", cand.Name)
	}
	return "Hello! I've read through your resume."
}

// missingFieldPrompt asks for the highest-priority missing contact field
// while listing everything still outstanding.
func missingFieldPrompt(missing []string) string {
	return fmt.Sprintf("Before we begin, I still need your %s. What is your %s?",
		strings.Join(missing, ", "), missing[0])
}

func anyAnswered(questions []models.Question) bool {
	for _, q := range questions {
		if q.Answered() {
			return true
		}
	}
	return false
}
