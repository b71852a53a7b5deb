package app_test

import (
	"context"
	"errors"
	"sync"

	"study-service/internal/ai"
	"study-service/internal/app"
	"study-service/internal/domain"
	"study-service/internal/infra/memory"
	"study-service/internal/logger"
)

// fakeAI implements every AI port with canned answers.
type fakeAI struct {
	mu sync.Mutex

	topics    []ai.TopicDraft
	topicsErr error

	questions []domain.QuizQuestion
	quizErr   error
	quizReqs  []ai.QuizRequest

	analysis    string
	analysisErr error

	script    string
	scriptErr error

	deltas  []string
	chatErr error
	chatReq []ai.ChatRequest
	// block, when set, holds StreamChat until closed.
	block chan struct{}
}

func (f *fakeAI) ExtractTopics(context.Context, string, string) ([]ai.TopicDraft, error) {
	return f.topics, f.topicsErr
}

func (f *fakeAI) GenerateQuiz(_ context.Context, req ai.QuizRequest) ([]domain.QuizQuestion, error) {
	f.mu.Lock()
	f.quizReqs = append(f.quizReqs, req)
	f.mu.Unlock()
	return f.questions, f.quizErr
}

func (f *fakeAI) AnalyzeQuiz(context.Context, string, []domain.QuizResult) (string, error) {
	return f.analysis, f.analysisErr
}

func (f *fakeAI) TopicScript(context.Context, string, domain.Topic) (string, error) {
	return f.script, f.scriptErr
}

func (f *fakeAI) StreamChat(ctx context.Context, req ai.ChatRequest, onDelta func(string) error) (string, error) {
	f.mu.Lock()
	f.chatReq = append(f.chatReq, req)
	f.mu.Unlock()
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	var full string
	for _, d := range f.deltas {
		if err := onDelta(d); err != nil {
			return full, err
		}
		full += d
	}
	return full, f.chatErr
}

func (f *fakeAI) lastQuizRequest() ai.QuizRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.quizReqs[len(f.quizReqs)-1]
}

// recordingSink collects a chat stream.
type recordingSink struct {
	content []string
	errs    []string
	done    bool
}

func (s *recordingSink) Content(d string) error { s.content = append(s.content, d); return nil }
func (s *recordingSink) Error(m string) error   { s.errs = append(s.errs, m); return nil }
func (s *recordingSink) Done() error            { s.done = true; return nil }

type fakeRenderer struct {
	url string
	err error
}

func (r *fakeRenderer) Generate(_ context.Context, _ string, onProgress func(domain.VideoProgress)) (string, error) {
	onProgress(domain.VideoProgress{Status: domain.VideoStarted})
	if r.err != nil {
		return "", r.err
	}
	onProgress(domain.VideoProgress{Status: domain.VideoComplete, VideoURL: r.url})
	return r.url, nil
}

var errBoom = errors.New("boom")

type fixture struct {
	studies *memory.StudyRepository
	ai      *fakeAI
	study   *app.StudyService
	quiz    *app.QuizService
	chat    *app.ChatService
}

func newFixture(fake *fakeAI, opts ...app.SessionOption) *fixture {
	log := logger.Nop()
	studies := memory.NewStudyRepository()
	return &fixture{
		studies: studies,
		ai:      fake,
		study:   app.NewStudyService(studies, fake, fake, log),
		quiz:    app.NewQuizService(studies, memory.NewSessionStore(), fake, log, opts...),
		chat:    app.NewChatService(studies, memory.NewStreamLocks(), fake, log),
	}
}

func seedStudy(f *fixture) domain.Study {
	study := domain.Study{
		ID:      "s1",
		UserID:  "u1",
		Title:   "Biology",
		Content: "# Cells\n\nCells are small.\n\n# Plants\n\nPlants are green.",
		Topics: []domain.Topic{
			{ID: "t1", Title: "Cells", Content: "Cells are small.", Learned: true},
			{ID: "t2", Title: "Plants", Content: "Plants are green.", Order: 1},
		},
	}
	_ = f.studies.Create(context.Background(), &study)
	return study
}
