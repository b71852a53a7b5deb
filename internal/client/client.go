// Package client is a Go client for the study API. Besides the HTTP calls it
// carries the client-side state: a typed store for one open study, optimistic
// topic updates, serialized chat sends and the in-document search session.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/publicsuffix"

	"study-service/internal/app"
	"study-service/internal/domain"
	"study-service/internal/search"
)

// Config configures a Client. BaseURL is the API root, e.g. http://localhost:8080/api.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
}

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrRateLimited  = errors.New("rate limited")
)

// APIError is a non-2xx response. Message is the server's "error" field.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Unwrap maps the status to one of the package sentinels.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return nil
}

// Client talks to the API. Auth is the server's cookie, kept in a jar.
type Client struct {
	base *url.URL
	http *http.Client
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("client: BaseURL is required")
	}
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("client: parse base url: %w", err)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	if hc.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, err
		}
		cp := *hc
		cp.Jar = jar
		hc = &cp
	}
	return &Client{base: base, http: hc}, nil
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (c *Client) send(ctx context.Context, method, path string, q url.Values, in any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, q), body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

func decodeError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &body) != nil || body.Error == "" {
		body.Error = http.StatusText(resp.StatusCode)
	}
	return &APIError{Status: resp.StatusCode, Message: body.Error}
}

func (c *Client) call(ctx context.Context, method, path string, q url.Values, in, out any) error {
	resp, err := c.send(ctx, method, path, q, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// User is the account view returned by the auth routes.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *Client) Register(ctx context.Context, email, password string) (User, error) {
	var out struct {
		User User `json:"user"`
	}
	err := c.call(ctx, http.MethodPost, "/auth/register", nil, credentials{email, password}, &out)
	return out.User, err
}

func (c *Client) Login(ctx context.Context, email, password string) (User, error) {
	var out struct {
		User User `json:"user"`
	}
	err := c.call(ctx, http.MethodPost, "/auth/login", nil, credentials{email, password}, &out)
	return out.User, err
}

func (c *Client) Logout(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
}

func (c *Client) Me(ctx context.Context) (User, error) {
	var out struct {
		User User `json:"user"`
	}
	err := c.call(ctx, http.MethodGet, "/auth/me", nil, nil, &out)
	return out.User, err
}

func (c *Client) ListStudies(ctx context.Context) ([]domain.StudySummary, error) {
	var out struct {
		Studies []domain.StudySummary `json:"studies"`
	}
	err := c.call(ctx, http.MethodGet, "/studies", nil, nil, &out)
	return out.Studies, err
}

// CreateStudy creates a study from notes.
func (c *Client) CreateStudy(ctx context.Context, title, description, content string) (domain.Study, error) {
	var out struct {
		Study domain.Study `json:"study"`
	}
	in := map[string]string{"title": title, "description": description, "content": content}
	err := c.call(ctx, http.MethodPost, "/studies", nil, in, &out)
	return out.Study, err
}

func (c *Client) GetStudy(ctx context.Context, id string) (domain.Study, domain.QuestionRecommendation, error) {
	var out struct {
		Study          domain.Study                  `json:"study"`
		Recommendation domain.QuestionRecommendation `json:"questionRecommendation"`
	}
	err := c.call(ctx, http.MethodGet, "/studies/"+url.PathEscape(id), nil, nil, &out)
	return out.Study, out.Recommendation, err
}

func (c *Client) SetTopicLearned(ctx context.Context, studyID, topicID string, learned bool) (domain.Topic, error) {
	var out struct {
		Topic domain.Topic `json:"topic"`
	}
	path := "/studies/" + url.PathEscape(studyID) + "/topics/" + url.PathEscape(topicID) + "/learned"
	err := c.call(ctx, http.MethodPatch, path, nil, map[string]bool{"learned": learned}, &out)
	return out.Topic, err
}

// SetTopicsLearned sets learned on topicIDs, or on every topic when topicIDs is empty.
func (c *Client) SetTopicsLearned(ctx context.Context, studyID string, topicIDs []string, learned bool) ([]domain.Topic, error) {
	var out struct {
		Topics []domain.Topic `json:"topics"`
	}
	in := struct {
		TopicIDs []string `json:"topicIds,omitempty"`
		Learned  bool     `json:"learned"`
	}{topicIDs, learned}
	err := c.call(ctx, http.MethodPatch, "/studies/"+url.PathEscape(studyID)+"/topics/learned", nil, in, &out)
	return out.Topics, err
}

func (c *Client) ClearTopicVideo(ctx context.Context, studyID, topicID string) error {
	path := "/studies/" + url.PathEscape(studyID) + "/topics/" + url.PathEscape(topicID) + "/video"
	return c.call(ctx, http.MethodDelete, path, nil, nil, nil)
}

func (c *Client) GenerateQuiz(ctx context.Context, studyID string, req app.GenerateQuizRequest) ([]domain.QuizQuestion, error) {
	var out struct {
		Questions []domain.QuizQuestion `json:"questions"`
	}
	err := c.call(ctx, http.MethodPost, "/studies/"+url.PathEscape(studyID)+"/quiz", nil, req, &out)
	return out.Questions, err
}

func (c *Client) RecordHistory(ctx context.Context, studyID string, answers []domain.QuizAnswer, selectedTopics []string) (domain.QuizHistoryEntry, error) {
	var out struct {
		Entry domain.QuizHistoryEntry `json:"historyEntry"`
	}
	in := map[string]any{"answers": answers, "selectedTopics": selectedTopics}
	err := c.call(ctx, http.MethodPost, "/studies/"+url.PathEscape(studyID)+"/quiz-history", nil, in, &out)
	return out.Entry, err
}

func (c *Client) DeleteHistory(ctx context.Context, studyID, historyID string) error {
	path := "/studies/" + url.PathEscape(studyID) + "/quiz-history/" + url.PathEscape(historyID)
	return c.call(ctx, http.MethodDelete, path, nil, nil, nil)
}

func (c *Client) ChatHistory(ctx context.Context, studyID string, chat domain.ChatContext) ([]domain.ChatMessage, error) {
	var out struct {
		Messages []domain.ChatMessage `json:"messages"`
	}
	err := c.call(ctx, http.MethodGet, "/studies/"+url.PathEscape(studyID)+"/chat/"+string(chat), nil, nil, &out)
	return out.Messages, err
}

func (c *Client) ClearChat(ctx context.Context, studyID string, chat domain.ChatContext) error {
	return c.call(ctx, http.MethodDelete, "/studies/"+url.PathEscape(studyID)+"/chat/"+string(chat), nil, nil, nil)
}

// StreamChat starts a chat reply and returns the event stream body. The caller
// closes it; chatstream.Reassembler decodes it.
func (c *Client) StreamChat(ctx context.Context, studyID string, chat domain.ChatContext, message string, quiz *domain.QuizChatContext) (io.ReadCloser, error) {
	in := struct {
		Message             string                  `json:"message"`
		ActiveTab           domain.ChatContext      `json:"activeTab"`
		CurrentQuizQuestion *domain.QuizChatContext `json:"currentQuizQuestion,omitempty"`
	}{message, chat, quiz}
	resp, err := c.send(ctx, http.MethodPost, "/studies/"+url.PathEscape(studyID)+"/chat/stream", nil, in)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Search highlights query in a study, or in one topic when topicID is set.
func (c *Client) Search(ctx context.Context, studyID, topicID, query string, current int) (search.Result, error) {
	q := url.Values{"q": {query}, "current": {strconv.Itoa(current)}}
	if topicID != "" {
		q.Set("topicId", topicID)
	}
	var out search.Result
	err := c.call(ctx, http.MethodGet, "/studies/"+url.PathEscape(studyID)+"/search", q, nil, &out)
	return out, err
}
