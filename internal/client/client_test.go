package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-service/internal/ai"
	"study-service/internal/app"
	"study-service/internal/chatstream"
	"study-service/internal/domain"
	"study-service/internal/infra/memory"
	"study-service/internal/logger"
	"study-service/internal/quiz"
	"study-service/internal/search"
	transport "study-service/internal/transport/http"
)

func newClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := New(Config{BaseURL: srv.URL + "/api"})
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeEvents(w http.ResponseWriter, events ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	for _, ev := range events {
		fmt.Fprintf(w, "data: %s\n\n", ev)
		w.(http.Flusher).Flush()
	}
}

func seededWorkspace(c *Client) *Workspace {
	store := NewStore()
	url := "https://v/old.mp4"
	store.Dispatch(StudyLoaded{Study: domain.Study{
		ID: "s1",
		Topics: []domain.Topic{
			{ID: "t1", Title: "Cells"},
			{ID: "t2", Title: "Plants", Learned: true, VideoURL: &url},
		},
	}})
	return NewWorkspace(c, store, "s1")
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestErrorBodiesMapToSentinels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/me":
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		case "/api/studies/s1/chat/stream":
			writeJSON(w, http.StatusConflict, map[string]string{"error": "busy"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	c := newClient(t, srv)

	_, err := c.Me(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Unauthorized", apiErr.Message)

	_, err = c.StreamChat(context.Background(), "s1", domain.ChatDocument, "hi", nil)
	assert.ErrorIs(t, err, ErrConflict)

	_, _, err = c.GetStudy(context.Background(), "s1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestToggleTopicLearnedRollsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}))
	defer srv.Close()
	ws := seededWorkspace(newClient(t, srv))

	var seen []bool
	ws.Store().Subscribe(func(st State) {
		topic, _ := st.Study.TopicByID("t1")
		seen = append(seen, topic.Learned)
	})

	err := ws.ToggleTopicLearned(context.Background(), "t1")
	require.Error(t, err)
	assert.Equal(t, []bool{true, false}, seen)
}

func TestMarkAllTopicsLearnedRollsBackEachTopic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "down"})
	}))
	defer srv.Close()
	ws := seededWorkspace(newClient(t, srv))

	require.Error(t, ws.MarkAllTopicsLearned(context.Background()))
	st := ws.Store().State()
	assert.False(t, st.Study.Topics[0].Learned)
	assert.True(t, st.Study.Topics[1].Learned)
}

func TestDeleteTopicVideoRollsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Topic not found"})
	}))
	defer srv.Close()
	ws := seededWorkspace(newClient(t, srv))

	err := ws.DeleteTopicVideo(context.Background(), "t2")
	require.ErrorIs(t, err, ErrNotFound)
	st := ws.Store().State()
	topic, _ := st.Study.TopicByID("t2")
	require.NotNil(t, topic.VideoURL)
	assert.Equal(t, "https://v/old.mp4", *topic.VideoURL)
}

func TestOptimisticUpdateKeptOnSuccess(t *testing.T) {
	var got map[string]bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, http.StatusOK, map[string]any{"topic": domain.Topic{ID: "t1", Learned: true}})
	}))
	defer srv.Close()
	ws := seededWorkspace(newClient(t, srv))

	require.NoError(t, ws.ToggleTopicLearned(context.Background(), "t1"))
	assert.Equal(t, map[string]bool{"learned": true}, got)
	st := ws.Store().State()
	topic, _ := st.Study.TopicByID("t1")
	assert.True(t, topic.Learned)
}

func TestGenerateQuizFollowsPlanAndClearsFocus(t *testing.T) {
	var (
		got  app.GenerateQuizRequest
		fail bool
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = app.GenerateQuizRequest{}
		_ = json.NewDecoder(r.Body).Decode(&got)
		if fail {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "AI service unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"questions": []domain.QuizQuestion{
			{Question: "q", Options: []string{"a", "b"}, CorrectAnswer: 1},
		}})
	}))
	defer srv.Close()
	ws := seededWorkspace(newClient(t, srv))
	ctx := context.Background()

	plan := ws.UpdatePlan(func(p *quiz.Planner) {
		p.SetMode(quiz.ModeCustom)
		p.Toggle("t2")
		p.SetCount(7)
	})
	assert.Equal(t, []string{"t2"}, plan.SelectedTopics)
	assert.Equal(t, 7, plan.Count)

	ws.ToggleHistorySelection("h1")
	fail = true
	_, err := ws.GenerateQuiz(ctx, app.GenerateQuizRequest{})
	require.Error(t, err)
	assert.Equal(t, []string{"h1"}, ws.Store().State().SelectedHistoryIDs, "failed generation keeps the focus")

	fail = false
	_, err = ws.GenerateQuiz(ctx, app.GenerateQuizRequest{})
	require.NoError(t, err)
	assert.Equal(t, quiz.ModeCustom, got.TopicMode)
	assert.Equal(t, []string{"t2"}, got.SelectedTopics)
	assert.Equal(t, 7, got.NumQuestions)
	assert.Equal(t, []string{"h1"}, got.HistoryIDs)

	st := ws.Store().State()
	assert.Empty(t, st.SelectedHistoryIDs)
	assert.Len(t, st.Study.QuizQuestions, 1)

	_, err = ws.GenerateQuiz(ctx, app.GenerateQuizRequest{})
	require.NoError(t, err)
	assert.Empty(t, got.HistoryIDs, "focus is used once")
}

func TestPlanFollowsLearnedToggles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"topic": domain.Topic{ID: "t1", Learned: true}})
	}))
	defer srv.Close()
	ws := seededWorkspace(newClient(t, srv))

	plan := ws.UpdatePlan(func(p *quiz.Planner) { p.SetMode(quiz.ModeToLearn) })
	assert.Equal(t, []string{"t1"}, plan.SelectedTopics)
	assert.Equal(t, 10, plan.Count)

	require.NoError(t, ws.ToggleTopicLearned(context.Background(), "t1"))
	plan = ws.Plan()
	assert.Empty(t, plan.SelectedTopics)
	assert.Equal(t, 20, plan.Count, "nothing left to learn falls back to every topic")
}

func TestConversationStreamsIntoLastMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEvents(w, `{"content":"Hel"}`, `{"content":"lo"}`, `{"done":true}`)
	}))
	defer srv.Close()
	ws := seededWorkspace(newClient(t, srv))

	var contents []string
	ws.Store().Subscribe(func(st State) {
		msgs := st.Chat[domain.ChatDocument]
		contents = append(contents, msgs[len(msgs)-1].Content)
	})

	reply, err := NewConversation(ws).Send(context.Background(), domain.ChatDocument, "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello", reply)
	require.GreaterOrEqual(t, len(contents), 3)
	assert.Equal(t, []string{"hi", ""}, contents[:2])
	assert.Equal(t, "Hello", contents[len(contents)-1])
	for i := 3; i < len(contents); i++ {
		assert.True(t, strings.HasPrefix(contents[i], contents[i-1]), "content shrank: %q", contents)
	}
	assert.Empty(t, ws.Store().State().Chat[domain.ChatQuiz])
}

func TestConversationFailureMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEvents(w, `{"content":"par"}`, `{"error":"Failed to generate response"}`)
	}))
	defer srv.Close()
	ws := seededWorkspace(newClient(t, srv))

	reply, err := NewConversation(ws).Send(context.Background(), domain.ChatQuiz, "why?", &domain.QuizChatContext{Question: "q"})
	require.ErrorIs(t, err, chatstream.ErrStreamFailed)
	assert.Equal(t, chatstream.FailureMessage, reply)

	msgs := ws.Store().State().Chat[domain.ChatQuiz]
	require.Len(t, msgs, 2)
	assert.Equal(t, "why?", msgs[0].Content)
	assert.Equal(t, chatstream.FailureMessage, msgs[1].Content)
}

func TestConversationSerializesSendsPerContext(t *testing.T) {
	var (
		mu       sync.Mutex
		inFlight int
		maxSeen  int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		inFlight++
		if inFlight > maxSeen {
			maxSeen = inFlight
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		writeEvents(w, fmt.Sprintf(`{"content":"re:%s"}`, body.Message), `{"done":true}`)
	}))
	defer srv.Close()
	ws := seededWorkspace(newClient(t, srv))
	conv := NewConversation(ws)

	var wg sync.WaitGroup
	for _, m := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func(m string) {
			defer wg.Done()
			_, _ = conv.Send(context.Background(), domain.ChatDocument, m, nil)
		}(m)
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	msgs := ws.Store().State().Chat[domain.ChatDocument]
	require.Len(t, msgs, 6)
	for i := 0; i < len(msgs); i += 2 {
		assert.Equal(t, domain.RoleUser, msgs[i].Role)
		assert.Equal(t, "re:"+msgs[i].Content, msgs[i+1].Content)
	}
}

func TestSearchSessionDebouncesAndNavigates(t *testing.T) {
	var (
		mu      sync.Mutex
		queries []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		mu.Lock()
		queries = append(queries, q.Get("q"))
		mu.Unlock()
		current := 0
		fmt.Sscan(q.Get("current"), &current)
		total := search.CountMatches("cat dog cat", q.Get("q"))
		writeJSON(w, http.StatusOK, search.Result{HTML: "<p>cat dog cat</p>", Matches: total, Current: current})
	}))
	defer srv.Close()
	ws := seededWorkspace(newClient(t, srv))

	results := make(chan search.Result, 8)
	s := NewSearchSession(context.Background(), ws, "", 10*time.Millisecond, func(r search.Result, err error) {
		assert.NoError(t, err)
		results <- r
	})
	defer s.Close()

	s.Open()
	s.Type("c")
	s.Type("ca")
	s.Type("cat")
	select {
	case r := <-results:
		assert.Equal(t, 2, r.Matches)
	case <-time.After(2 * time.Second):
		t.Fatal("debounced search never ran")
	}
	mu.Lock()
	assert.Equal(t, []string{"cat"}, queries)
	mu.Unlock()

	st := s.State()
	assert.Equal(t, "cat", st.Active)
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, 1, st.Position)

	s.Next()
	assert.Equal(t, 1, (<-results).Current)
	s.Next()
	assert.Equal(t, 0, (<-results).Current)
	s.Prev()
	assert.Equal(t, 1, (<-results).Current)
	assert.Equal(t, 2, ws.Store().State().Search.Position)

	container := search.Rect{Top: 100, Height: 400}
	assert.Equal(t, 150.0, s.ScrollTarget(container, 0, search.Rect{Top: 440, Height: 20}))
	assert.Equal(t, 320.0, ws.TopicScrollTarget(container, 0, search.Rect{Top: 440, Height: 20}))

	s.Escape()
	st = s.State()
	assert.False(t, st.Open)
	assert.Empty(t, st.Query)
	assert.Zero(t, st.Total)
}

type echoAI struct{}

func (echoAI) ExtractTopics(context.Context, string, string) ([]ai.TopicDraft, error) {
	return nil, nil
}

func (echoAI) GenerateQuiz(context.Context, ai.QuizRequest) ([]domain.QuizQuestion, error) {
	return []domain.QuizQuestion{{Question: "q", Options: []string{"a", "b"}, CorrectAnswer: 0}}, nil
}

func (echoAI) AnalyzeQuiz(context.Context, string, []domain.QuizResult) (string, error) {
	return "fine", nil
}

func (echoAI) StreamChat(_ context.Context, req ai.ChatRequest, onDelta func(string) error) (string, error) {
	reply := "you said " + req.Message
	for _, part := range strings.SplitAfter(reply, " ") {
		if err := onDelta(part); err != nil {
			return "", err
		}
	}
	return reply, nil
}

func TestAgainstRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := logger.Nop()
	studies := memory.NewStudyRepository()
	studySvc := app.NewStudyService(studies, echoAI{}, nil, log)
	router := transport.NewRouter(transport.RouterConfig{
		Auth:      app.NewAuthService(memory.NewUserRepository(), "secret", time.Hour, log),
		Studies:   studySvc,
		Quiz:      app.NewQuizService(studies, memory.NewSessionStore(), echoAI{}, log),
		Chat:      app.NewChatService(studies, memory.NewStreamLocks(), echoAI{}, log),
		Video:     app.NewVideoService(studySvc, nil, log),
		Log:       log,
		ChatRPS:   100,
		ChatBurst: 100,
	})
	srv := httptest.NewServer(router)
	defer srv.Close()

	ctx := context.Background()
	c := newClient(t, srv)
	_, err := c.Register(ctx, "go@example.com", "secret1")
	require.NoError(t, err)
	me, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "go@example.com", me.Email)

	study, err := c.CreateStudy(ctx, "Biology", "", "# Cells\n\nCells are small.\n\n# Plants\n\nPlants are green.")
	require.NoError(t, err)

	ws := NewWorkspace(c, NewStore(), study.ID)
	rec, err := ws.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, rec.Suggested)

	require.NoError(t, ws.ToggleTopicLearned(ctx, study.Topics[0].ID))
	require.NoError(t, ws.MarkAllTopicsLearned(ctx))
	fresh, _, err := c.GetStudy(ctx, study.ID)
	require.NoError(t, err)
	for _, topic := range fresh.Topics {
		assert.True(t, topic.Learned, topic.Title)
	}

	reply, err := NewConversation(ws).Send(ctx, domain.ChatDocument, "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "you said hello", reply)
	history, err := c.ChatHistory(ctx, study.ID, domain.ChatDocument)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, reply, history[1].Content)

	entry, err := ws.RecordHistory(ctx, []domain.QuizAnswer{{Question: "q", Options: []string{"a", "b"}, UserAnswer: 0}}, nil)
	require.NoError(t, err)
	ws.ToggleHistorySelection(entry.ID)
	require.NoError(t, ws.DeleteHistoryEntry(ctx, entry.ID))
	st := ws.Store().State()
	assert.Empty(t, st.Study.QuizHistory)
	assert.Empty(t, st.SelectedHistoryIDs)

	require.NoError(t, c.Logout(ctx))
	_, err = c.Me(ctx)
	assert.True(t, errors.Is(err, ErrUnauthorized))
}
