// Package genai provides the evaluator boundary for Crisp: contact-info
// extraction, question generation, answer scoring and session summarization
// over an external text-generation service.
//
// Two backends are available: OpenAI (default) and Gemini. Both are opaque,
// possibly-failing, possibly-slow remote dependencies; callers own retry and
// fallback policy.
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/BTreeMap/Crisp/internal/models"
)

// Error variables for better error handling and testability
var (
	ErrNoChoicesReturned = errors.New("no choices returned")
	ErrEmptyResponse     = errors.New("empty response returned")
	ErrAPIKeyNotSet      = errors.New("API key not set")
)

// ContactInfo holds contact details extracted from a resume. Empty fields
// mean the value was not found.
type ContactInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// AnswerEvaluation is the score and feedback for one submitted answer.
type AnswerEvaluation struct {
	Score    int    `json:"score"` // 0..100
	Feedback string `json:"feedback"`
}

// Evaluator is the consumed capability for all four interview operations.
type Evaluator interface {
	// ExtractContactInfo pulls name/email/phone out of resume text. It never
	// returns an error; extraction failure yields the zero ContactInfo.
	ExtractContactInfo(ctx context.Context, resumeText string) ContactInfo

	// GenerateQuestion produces one interview question of the given
	// difficulty, avoiding every text in exclude.
	GenerateQuestion(ctx context.Context, difficulty models.Difficulty, exclude []string) (string, error)

	// EvaluateAnswer scores an answer 0..100 with brief feedback. Callers
	// must short-circuit empty answers locally; this is never invoked for them.
	EvaluateAnswer(ctx context.Context, questionText, answerText string) (AnswerEvaluation, error)

	// SummarizeSession writes a performance summary from the full transcript.
	SummarizeSession(ctx context.Context, candidateName string, questions []models.Question) (string, error)
}

// Prompt construction shared by both backends. The interview targets a full
// stack (React/Node.js) role, matching the reviewer rubric.

func extractSystemPrompt() string {
	return "You are an expert HR assistant. Extract the full name, email address, and phone number from the resume text provided by the user. Respond ONLY with a valid JSON object with the keys \"name\", \"email\", and \"phone\". If a value is not found, set it to an empty string."
}

func questionSystemPrompt() string {
	return "You are an expert technical interviewer for a full stack (React/Node.js) role. Generate one interview question. The question should be a single, clear question. Respond with the question text only."
}

func questionUserPrompt(difficulty models.Difficulty, exclude []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate one interview question with %s difficulty.", difficulty)
	if len(exclude) > 0 {
		b.WriteString(" Do not repeat any of the following questions: ")
		b.WriteString(strings.Join(exclude, ", "))
	}
	return b.String()
}

func evaluateSystemPrompt() string {
	return "You are an expert technical interviewer. Evaluate the candidate's answer to the given question. Provide a score from 0 to 100 and brief feedback on the answer's correctness, clarity, and depth. Respond ONLY with a valid JSON object with the keys \"score\" (number) and \"feedback\" (string)."
}

func evaluateUserPrompt(questionText, answerText string) string {
	return fmt.Sprintf("Question: %s\nAnswer: %s", questionText, answerText)
}

func summarizeSystemPrompt() string {
	return "You are an expert HR manager. Based on the interview transcript provided by the user, write a concise summary of the candidate's performance, highlighting their strengths and weaknesses."
}

func summarizeUserPrompt(candidateName string, questions []models.Question) string {
	var b strings.Builder
	name := candidateName
	if name == "" {
		name = "Candidate"
	}
	fmt.Fprintf(&b, "The candidate's name is %s.\n\nTranscript:\n", name)
	for i := range questions {
		q := &questions[i]
		answer := q.Answer
		if answer == "" {
			answer = "No answer"
		}
		score := "unscored"
		if q.Score != nil {
			score = fmt.Sprintf("%d/100", *q.Score)
		}
		fmt.Fprintf(&b, "Q: %s\nA: %s\nScore: %s\nFeedback: %s\n\n", q.Text, answer, score, q.Feedback)
	}
	return b.String()
}

// stripCodeFences removes a surrounding markdown code fence from a model
// response. Models occasionally wrap JSON in ```json fences despite the
// JSON-only instruction.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// clampScore bounds a model-reported score to the valid 0..100 range.
func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// parseContactInfo decodes the extraction response.
func parseContactInfo(raw string) (ContactInfo, error) {
	var info ContactInfo
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &info); err != nil {
		return ContactInfo{}, fmt.Errorf("failed to parse contact info response: %w", err)
	}
	info.Name = strings.TrimSpace(info.Name)
	info.Email = strings.TrimSpace(info.Email)
	info.Phone = strings.TrimSpace(info.Phone)
	return info, nil
}

// parseEvaluation decodes the scoring response. Scores arrive as JSON
// numbers and may be fractional; they are rounded down and clamped.
func parseEvaluation(raw string) (AnswerEvaluation, error) {
	var payload struct {
		Score    float64 `json:"score"`
		Feedback string  `json:"feedback"`
	}
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &payload); err != nil {
		return AnswerEvaluation{}, fmt.Errorf("failed to parse evaluation response: %w", err)
	}
	return AnswerEvaluation{
		Score:    clampScore(int(payload.Score)),
		Feedback: strings.TrimSpace(payload.Feedback),
	}, nil
}
