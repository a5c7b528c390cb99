// Package genai provides GenAI-backed evaluator operations using the OpenAI API.
package genai

import (
	"context"
	"log/slog"
	"os"

	"github.com/BTreeMap/Crisp/internal/models"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultOpenAIModel is the chat model used when none is configured.
const DefaultOpenAIModel = openai.ChatModelGPT4oMini

// Opts holds configuration for the OpenAI evaluator client.
type Opts struct {
	APIKey string
	Model  openai.ChatModel
}

// Option configures the OpenAI evaluator client.
type Option func(*Opts)

// WithAPIKey sets the API key explicitly instead of reading OPENAI_API_KEY.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the default chat model.
func WithModel(model openai.ChatModel) Option {
	return func(o *Opts) { o.Model = model }
}

// chatService defines minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// openaiChatService adapts the OpenAI SDK to the chatService interface.
type openaiChatService struct {
	client openai.Client
}

func (s *openaiChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// Client implements Evaluator on top of the OpenAI chat completion API.
type Client struct {
	chat  chatService
	model openai.ChatModel
}

// NewClient initializes a new OpenAI evaluator client. The API key is taken
// from the options or the OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	slog.Debug("genai.NewClient: OpenAI evaluator created", "model", cfg.Model)
	return &Client{chat: &openaiChatService{client: cli}, model: cfg.Model}, nil
}

// generate runs one chat completion with a system and user prompt.
func (c *Client) generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.chat.Create(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	return resp.Choices[0].Message.Content, nil
}

// ExtractContactInfo pulls name/email/phone from the resume text. Failures
// are logged and downgraded to an empty ContactInfo; the session flow asks
// the candidate for whatever is missing.
func (c *Client) ExtractContactInfo(ctx context.Context, resumeText string) ContactInfo {
	raw, err := c.generate(ctx, extractSystemPrompt(), "Resume Text: "+resumeText)
	if err != nil {
		slog.Error("Client.ExtractContactInfo: generation failed", "error", err)
		return ContactInfo{}
	}
	info, err := parseContactInfo(raw)
	if err != nil {
		slog.Error("Client.ExtractContactInfo: parse failed", "error", err)
		return ContactInfo{}
	}
	slog.Debug("Client.ExtractContactInfo: extracted", "name_found", info.Name != "", "email_found", info.Email != "", "phone_found", info.Phone != "")
	return info
}

// GenerateQuestion produces one interview question of the given difficulty.
func (c *Client) GenerateQuestion(ctx context.Context, difficulty models.Difficulty, exclude []string) (string, error) {
	raw, err := c.generate(ctx, questionSystemPrompt(), questionUserPrompt(difficulty, exclude))
	if err != nil {
		slog.Error("Client.GenerateQuestion: generation failed", "error", err, "difficulty", difficulty)
		return "", err
	}
	question := stripCodeFences(raw)
	if question == "" {
		slog.Error("Client.GenerateQuestion: empty question returned", "difficulty", difficulty)
		return "", ErrEmptyResponse
	}
	slog.Debug("Client.GenerateQuestion: succeeded", "difficulty", difficulty, "excluded", len(exclude))
	return question, nil
}

// EvaluateAnswer scores an answer with brief feedback.
func (c *Client) EvaluateAnswer(ctx context.Context, questionText, answerText string) (AnswerEvaluation, error) {
	raw, err := c.generate(ctx, evaluateSystemPrompt(), evaluateUserPrompt(questionText, answerText))
	if err != nil {
		slog.Error("Client.EvaluateAnswer: generation failed", "error", err)
		return AnswerEvaluation{}, err
	}
	eval, err := parseEvaluation(raw)
	if err != nil {
		slog.Error("Client.EvaluateAnswer: parse failed", "error", err)
		return AnswerEvaluation{}, err
	}
	slog.Debug("Client.EvaluateAnswer: succeeded", "score", eval.Score)
	return eval, nil
}

// SummarizeSession writes a performance summary from the transcript.
func (c *Client) SummarizeSession(ctx context.Context, candidateName string, questions []models.Question) (string, error) {
	raw, err := c.generate(ctx, summarizeSystemPrompt(), summarizeUserPrompt(candidateName, questions))
	if err != nil {
		slog.Error("Client.SummarizeSession: generation failed", "error", err)
		return "", err
	}
	summary := stripCodeFences(raw)
	if summary == "" {
		return "", ErrEmptyResponse
	}
	slog.Debug("Client.SummarizeSession: succeeded", "questions", len(questions))
	return summary, nil
}
