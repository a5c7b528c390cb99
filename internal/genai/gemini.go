// Package genai: Gemini-backed evaluator implementation.
package genai

import (
	"context"
	"log/slog"
	"os"

	"github.com/BTreeMap/Crisp/internal/models"
	genaisdk "google.golang.org/genai"
)

// DefaultGeminiModel is the Gemini model used when none is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiOpts holds configuration for the Gemini evaluator client.
type GeminiOpts struct {
	APIKey string
	Model  string
}

// GeminiOption configures the Gemini evaluator client.
type GeminiOption func(*GeminiOpts)

// WithGeminiAPIKey sets the API key explicitly instead of reading GEMINI_API_KEY.
func WithGeminiAPIKey(key string) GeminiOption {
	return func(o *GeminiOpts) { o.APIKey = key }
}

// WithGeminiModel overrides the default Gemini model.
func WithGeminiModel(model string) GeminiOption {
	return func(o *GeminiOpts) { o.Model = model }
}

// GeminiClient implements Evaluator on top of the Gemini API.
type GeminiClient struct {
	client *genaisdk.Client
	model  string
}

// NewGeminiClient initializes a new Gemini evaluator client. The API key is
// taken from the options or the GEMINI_API_KEY environment variable.
func NewGeminiClient(ctx context.Context, opts ...GeminiOption) (*GeminiClient, error) {
	var cfg GeminiOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}

	client, err := genaisdk.NewClient(ctx, &genaisdk.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genaisdk.BackendGeminiAPI,
	})
	if err != nil {
		slog.Error("genai.NewGeminiClient: failed to create Gemini client", "error", err)
		return nil, err
	}

	slog.Debug("genai.NewGeminiClient: Gemini evaluator created", "model", cfg.Model)
	return &GeminiClient{client: client, model: cfg.Model}, nil
}

// generate runs one content generation call. Gemini takes a single prompt, so
// the system and user prompts are concatenated.
func (c *GeminiClient) generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	result, err := c.client.Models.GenerateContent(ctx, c.model, genaisdk.Text(systemPrompt+"\n\n"+userPrompt), nil)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", ErrEmptyResponse
	}
	text, err := result.Text()
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// ExtractContactInfo pulls name/email/phone from the resume text, downgrading
// failure to an empty ContactInfo.
func (c *GeminiClient) ExtractContactInfo(ctx context.Context, resumeText string) ContactInfo {
	raw, err := c.generate(ctx, extractSystemPrompt(), "Resume Text: "+resumeText)
	if err != nil {
		slog.Error("GeminiClient.ExtractContactInfo: generation failed", "error", err)
		return ContactInfo{}
	}
	info, err := parseContactInfo(raw)
	if err != nil {
		slog.Error("GeminiClient.ExtractContactInfo: parse failed", "error", err)
		return ContactInfo{}
	}
	return info
}

// GenerateQuestion produces one interview question of the given difficulty.
func (c *GeminiClient) GenerateQuestion(ctx context.Context, difficulty models.Difficulty, exclude []string) (string, error) {
	raw, err := c.generate(ctx, questionSystemPrompt(), questionUserPrompt(difficulty, exclude))
	if err != nil {
		slog.Error("GeminiClient.GenerateQuestion: generation failed", "error", err, "difficulty", difficulty)
		return "", err
	}
	question := stripCodeFences(raw)
	if question == "" {
		return "", ErrEmptyResponse
	}
	return question, nil
}

// EvaluateAnswer scores an answer with brief feedback.
func (c *GeminiClient) EvaluateAnswer(ctx context.Context, questionText, answerText string) (AnswerEvaluation, error) {
	raw, err := c.generate(ctx, evaluateSystemPrompt(), evaluateUserPrompt(questionText, answerText))
	if err != nil {
		slog.Error("GeminiClient.EvaluateAnswer: generation failed", "error", err)
		return AnswerEvaluation{}, err
	}
	eval, err := parseEvaluation(raw)
	if err != nil {
		slog.Error("GeminiClient.EvaluateAnswer: parse failed", "error", err)
		return AnswerEvaluation{}, err
	}
	return eval, nil
}

// SummarizeSession writes a performance summary from the transcript.
func (c *GeminiClient) SummarizeSession(ctx context.Context, candidateName string, questions []models.Question) (string, error) {
	raw, err := c.generate(ctx, summarizeSystemPrompt(), summarizeUserPrompt(candidateName, questions))
	if err != nil {
		slog.Error("GeminiClient.SummarizeSession: generation failed", "error", err)
		return "", err
	}
	summary := stripCodeFences(raw)
	if summary == "" {
		return "", ErrEmptyResponse
	}
	return summary, nil
}
