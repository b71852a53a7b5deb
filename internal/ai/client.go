package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"study-service/internal/domain"
	"study-service/internal/logger"
)

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client talks to an OpenAI-compatible completion API.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
	log     *logger.Logger
}

func New(cfg Config, log *logger.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("ai api key is required")
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		api:     openai.NewClientWithConfig(oc),
		model:   model,
		timeout: timeout,
		log:     log.Named("ai"),
	}, nil
}

// TopicDraft is a topic as proposed by the model, before ids and order are assigned.
type TopicDraft struct {
	Title   string `json:"title"`
	Icon    string `json:"icon"`
	Content string `json:"content"`
}

func (c *Client) ExtractTopics(ctx context.Context, title, content string) ([]TopicDraft, error) {
	var out struct {
		Topics []TopicDraft `json:"topics"`
	}
	if err := c.structured(ctx, topicsSchema, topicsSystemPrompt, topicsUserPrompt(title, content), &out); err != nil {
		return nil, err
	}
	return out.Topics, nil
}

// QuizRequest describes a quiz to generate.
type QuizRequest struct {
	StudyTitle      string
	Content         string
	Topics          []domain.Topic
	NumQuestions    int
	PreviousResults *domain.PreviousResults
	KnownConcepts   []string
}

// GenerateQuiz returns questions whose CorrectAnswer indexes their options.
// A question pointing outside its options fails the whole response.
func (c *Client) GenerateQuiz(ctx context.Context, req QuizRequest) ([]domain.QuizQuestion, error) {
	var out struct {
		Questions []domain.QuizQuestion `json:"questions"`
	}
	if err := c.structured(ctx, quizSchema, quizSystemPrompt, quizUserPrompt(req), &out); err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(req.Topics))
	for _, t := range req.Topics {
		known[t.ID] = true
	}
	for i := range out.Questions {
		q := &out.Questions[i]
		if !q.Valid() {
			return nil, &ErrInvalidResponse{Err: fmt.Errorf("question %d: correctAnswer %d out of range for %d options", i, q.CorrectAnswer, len(q.Options))}
		}
		if !known[q.TopicID] {
			q.TopicID = ""
		}
	}
	return out.Questions, nil
}

// AnalyzeQuiz returns a markdown report on a finished quiz.
func (c *Client) AnalyzeQuiz(ctx context.Context, studyTitle string, results []domain.QuizResult) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: analysisSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: analysisUserPrompt(studyTitle, results)},
		},
	})
	if err != nil {
		return "", mapError(err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", &ErrInvalidResponse{Err: errors.New("empty analysis")}
	}
	return resp.Choices[0].Message.Content, nil
}

// TopicScript writes a short narrated script for a topic video.
func (c *Client) TopicScript(ctx context.Context, studyTitle string, topic domain.Topic) (string, error) {
	var out struct {
		Script string `json:"script"`
	}
	if err := c.structured(ctx, scriptSchema, scriptSystemPrompt, scriptUserPrompt(studyTitle, topic), &out); err != nil {
		return "", err
	}
	return out.Script, nil
}

// ChatRequest is one user turn plus the conversation so far.
type ChatRequest struct {
	StudyTitle string
	Content    string
	Context    domain.ChatContext
	History    []domain.ChatMessage
	Message    string
	Quiz       *domain.QuizChatContext
}

// StreamChat streams the assistant reply, calling onDelta for each non-empty
// piece. It returns the full reply. An error from onDelta stops the stream.
func (c *Client) StreamChat(ctx context.Context, req ChatRequest, onDelta func(string) error) (string, error) {
	msgs := []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleSystem, Content: chatSystemPrompt(req)}}
	for _, m := range req.History {
		role := openai.ChatMessageRoleUser
		if m.Role == domain.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Message})

	stream, err := c.api.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: msgs,
		Stream:   true,
	})
	if err != nil {
		return "", mapError(err)
	}
	defer stream.Close()

	var full strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return full.String(), nil
		}
		if err != nil {
			return full.String(), mapError(err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if err := onDelta(delta); err != nil {
			return full.String(), err
		}
	}
}

func (c *Client) structured(ctx context.Context, schema *Schema, system, user string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	schemaBytes, err := json.Marshal(schema.Definition)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   schema.Name,
				Schema: json.RawMessage(schemaBytes),
				Strict: true,
			},
		},
	})
	if err != nil {
		c.log.Warn("completion failed", "schema", schema.Name, "error", err)
		return mapError(err)
	}
	if len(resp.Choices) == 0 {
		return &ErrInvalidResponse{Err: errors.New("no choices in response")}
	}
	c.log.Debug("completion done",
		"schema", schema.Name,
		"elapsed", time.Since(start),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return validate(schema, json.RawMessage(resp.Choices[0].Message.Content), out)
}
