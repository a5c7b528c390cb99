package genai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/BTreeMap/Crisp/internal/models"
	"github.com/openai/openai-go"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp       openai.ChatCompletion
	err        error
	lastParams openai.ChatCompletionNewParams
}

func (m *mockChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	m.lastParams = params
	return m.resp, m.err
}

func chatResponse(content string) openai.ChatCompletion {
	return openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func TestExtractContactInfo_Success(t *testing.T) {
	mock := &mockChatService{resp: chatResponse(`{"name":"Ada Lovelace","email":"ada@example.com","phone":"+1 555 0100"}`)}
	client := &Client{chat: mock, model: DefaultOpenAIModel}
	info := client.ExtractContactInfo(context.Background(), "resume text")
	if info.Name != "Ada Lovelace" || info.Email != "ada@example.com" || info.Phone != "+1 555 0100" {
		t.Errorf("unexpected contact info: %+v", info)
	}
}

func TestExtractContactInfo_CodeFencedJSON(t *testing.T) {
	mock := &mockChatService{resp: chatResponse("```json\n{\"name\":\"Ada\",\"email\":\"\",\"phone\":\"\"}\n```")}
	client := &Client{chat: mock, model: DefaultOpenAIModel}
	info := client.ExtractContactInfo(context.Background(), "resume text")
	if info.Name != "Ada" {
		t.Errorf("expected fenced JSON to parse, got %+v", info)
	}
}

func TestExtractContactInfo_FailureYieldsEmpty(t *testing.T) {
	mock := &mockChatService{err: errors.New("service failure")}
	client := &Client{chat: mock, model: DefaultOpenAIModel}
	info := client.ExtractContactInfo(context.Background(), "resume text")
	if info != (ContactInfo{}) {
		t.Errorf("expected empty contact info on failure, got %+v", info)
	}

	mock = &mockChatService{resp: chatResponse("not json at all")}
	client = &Client{chat: mock, model: DefaultOpenAIModel}
	if info := client.ExtractContactInfo(context.Background(), "resume text"); info != (ContactInfo{}) {
		t.Errorf("expected empty contact info on parse failure, got %+v", info)
	}
}

func TestGenerateQuestion_Success(t *testing.T) {
	mock := &mockChatService{resp: chatResponse("What is a closure in JavaScript?")}
	client := &Client{chat: mock, model: DefaultOpenAIModel}
	question, err := client.GenerateQuestion(context.Background(), models.DifficultyEasy, []string{"What is React?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if question != "What is a closure in JavaScript?" {
		t.Errorf("unexpected question: %q", question)
	}
}

func TestGenerateQuestion_PassesExcludeList(t *testing.T) {
	mock := &mockChatService{resp: chatResponse("Another question?")}
	client := &Client{chat: mock, model: DefaultOpenAIModel}
	exclude := []string{"What is React?", "Explain event loop."}
	if _, err := client.GenerateQuestion(context.Background(), models.DifficultyMedium, exclude); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, msg := range mock.lastParams.Messages {
		if u := msg.OfUser; u != nil {
			if text := u.Content.OfString.Value; strings.Contains(text, "What is React?") && strings.Contains(text, "Explain event loop.") {
				found = true
			}
		}
	}
	if !found {
		t.Error("expected user prompt to carry the do-not-repeat list")
	}
}

func TestGenerateQuestion_ServiceError(t *testing.T) {
	mock := &mockChatService{err: errors.New("service failure")}
	client := &Client{chat: mock, model: DefaultOpenAIModel}
	if _, err := client.GenerateQuestion(context.Background(), models.DifficultyHard, nil); err == nil {
		t.Error("expected error, got nil")
	}
}

func TestGenerateQuestion_NoChoices(t *testing.T) {
	mock := &mockChatService{resp: openai.ChatCompletion{}}
	client := &Client{chat: mock, model: DefaultOpenAIModel}
	_, err := client.GenerateQuestion(context.Background(), models.DifficultyHard, nil)
	if !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected ErrNoChoicesReturned, got %v", err)
	}
}

func TestEvaluateAnswer_Success(t *testing.T) {
	mock := &mockChatService{resp: chatResponse(`{"score": 85, "feedback": "Solid answer."}`)}
	client := &Client{chat: mock, model: DefaultOpenAIModel}
	eval, err := client.EvaluateAnswer(context.Background(), "What is a closure?", "A function plus its lexical scope.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.Score != 85 || eval.Feedback != "Solid answer." {
		t.Errorf("unexpected evaluation: %+v", eval)
	}
}

func TestEvaluateAnswer_ClampsScore(t *testing.T) {
	mock := &mockChatService{resp: chatResponse(`{"score": 150, "feedback": "generous"}`)}
	client := &Client{chat: mock, model: DefaultOpenAIModel}
	eval, err := client.EvaluateAnswer(context.Background(), "q", "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.Score != 100 {
		t.Errorf("expected score clamped to 100, got %d", eval.Score)
	}

	mock.resp = chatResponse(`{"score": -3, "feedback": "harsh"}`)
	eval, err = client.EvaluateAnswer(context.Background(), "q", "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.Score != 0 {
		t.Errorf("expected score clamped to 0, got %d", eval.Score)
	}
}

func TestEvaluateAnswer_ParseError(t *testing.T) {
	mock := &mockChatService{resp: chatResponse("I would rate this 85 out of 100")}
	client := &Client{chat: mock, model: DefaultOpenAIModel}
	if _, err := client.EvaluateAnswer(context.Background(), "q", "a"); err == nil {
		t.Error("expected parse error, got nil")
	}
}

func TestSummarizeSession_TranscriptContents(t *testing.T) {
	mock := &mockChatService{resp: chatResponse("Strong fundamentals, weak on depth.")}
	client := &Client{chat: mock, model: DefaultOpenAIModel}
	score := 70
	questions := []models.Question{
		{Text: "What is React?", Answer: "A UI library.", Score: &score, Feedback: "Correct."},
		{Text: "Explain hoisting.", Answer: "", Feedback: ""},
	}
	summary, err := client.SummarizeSession(context.Background(), "Ada", questions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary != "Strong fundamentals, weak on depth." {
		t.Errorf("unexpected summary: %q", summary)
	}
	var transcript string
	for _, msg := range mock.lastParams.Messages {
		if u := msg.OfUser; u != nil {
			transcript = u.Content.OfString.Value
		}
	}
	if !strings.Contains(transcript, "Ada") {
		t.Error("expected transcript to name the candidate")
	}
	if !strings.Contains(transcript, "70/100") {
		t.Error("expected transcript to carry the score")
	}
	if !strings.Contains(transcript, "No answer") {
		t.Error("expected unanswered question to read 'No answer'")
	}
}

func TestNewClient_NoKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewClient(); !errors.Is(err, ErrAPIKeyNotSet) {
		t.Errorf("expected ErrAPIKeyNotSet when API key not provided, got %v", err)
	}
}

func TestNewClient_WithKey(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"), WithModel(openai.ChatModelGPT4o))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if cli == nil || cli.model != openai.ChatModelGPT4o {
		t.Errorf("expected configured client, got %+v", cli)
	}
}

func TestStripCodeFences(t *testing.T) {
	cases := map[string]string{
		"plain":                         "plain",
		"```json\n{\"a\":1}\n```":       `{"a":1}`,
		"```\ntext\n```":                "text",
		"  surrounded by whitespace  ": "surrounded by whitespace",
	}
	for in, want := range cases {
		if got := stripCodeFences(in); got != want {
			t.Errorf("stripCodeFences(%q) = %q, want %q", in, got, want)
		}
	}
}
