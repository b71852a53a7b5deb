package app

import (
	"context"
	"time"

	"study-service/internal/ai"
	"study-service/internal/domain"
)

// StudyRepository stores studies. Get and List only return studies owned by
// userID; Update replaces the whole document (last write wins).
type StudyRepository interface {
	Create(ctx context.Context, study *domain.Study) error
	Get(ctx context.Context, userID, id string) (domain.Study, error)
	List(ctx context.Context, userID string) ([]domain.Study, error)
	Update(ctx context.Context, study *domain.Study) error
}

// UserRepository stores accounts. Create returns domain.ErrEmailTaken for a
// duplicate email.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, id string) (domain.User, error)
}

// SessionRepository abstracts how quiz sessions are held (in-memory, Redis-marked, etc).
type SessionRepository interface {
	GetOrCreate(key string, create func() *QuizSession) (session *QuizSession, created bool)
	Get(key string) (*QuizSession, bool)
	DeleteIfEmpty(key string)
}

// StreamLocks guards against two chat streams for the same key running at once.
// Acquire returns domain.ErrStreamInFlight when the key is held.
type StreamLocks interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// TopicExtractor splits study material into topics.
type TopicExtractor interface {
	ExtractTopics(ctx context.Context, title, content string) ([]ai.TopicDraft, error)
}

// QuizAI generates and grades quizzes.
type QuizAI interface {
	GenerateQuiz(ctx context.Context, req ai.QuizRequest) ([]domain.QuizQuestion, error)
	AnalyzeQuiz(ctx context.Context, studyTitle string, results []domain.QuizResult) (string, error)
}

// ScriptWriter writes narration scripts for topic videos.
type ScriptWriter interface {
	TopicScript(ctx context.Context, studyTitle string, topic domain.Topic) (string, error)
}

// ChatAI streams tutor replies.
type ChatAI interface {
	StreamChat(ctx context.Context, req ai.ChatRequest, onDelta func(string) error) (string, error)
}

// VideoRenderer turns a script into a hosted video.
type VideoRenderer interface {
	Generate(ctx context.Context, script string, onProgress func(domain.VideoProgress)) (string, error)
}

// ChatSink receives a chat stream. chatstream.Writer implements it.
type ChatSink interface {
	Content(delta string) error
	Error(msg string) error
	Done() error
}
