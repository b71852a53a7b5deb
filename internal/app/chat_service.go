package app

import (
	"context"
	"strings"
	"time"

	"study-service/internal/ai"
	"study-service/internal/domain"
	"study-service/internal/logger"
)

// StreamLockTTL bounds how long a crashed stream can block its chat.
const StreamLockTTL = 3 * time.Minute

// StreamErrorMessage is sent to the client when the AI stream fails.
const StreamErrorMessage = "Failed to generate response"

// ChatRequest is one message sent from a study's chat panel.
type ChatRequest struct {
	Message string
	Context domain.ChatContext
	Quiz    *domain.QuizChatContext
}

// ChatService runs the per-study tutor chats.
type ChatService struct {
	studies StudyRepository
	locks   StreamLocks
	ai      ChatAI
	log     *logger.Logger
	now     func() time.Time
}

func NewChatService(studies StudyRepository, locks StreamLocks, chatAI ChatAI, log *logger.Logger) *ChatService {
	return &ChatService{
		studies: studies,
		locks:   locks,
		ai:      chatAI,
		log:     log.With("service", "ChatService"),
		now:     time.Now,
	}
}

// History returns one chat's messages.
func (s *ChatService) History(ctx context.Context, userID, studyID string, c domain.ChatContext) ([]domain.ChatMessage, error) {
	study, err := s.studies.Get(ctx, userID, studyID)
	if err != nil {
		return nil, err
	}
	msgs := study.ChatHistory(c)
	if msgs == nil {
		msgs = []domain.ChatMessage{}
	}
	return msgs, nil
}

// Clear empties one chat, leaving the other untouched.
func (s *ChatService) Clear(ctx context.Context, userID, studyID string, c domain.ChatContext) error {
	study, err := s.studies.Get(ctx, userID, studyID)
	if err != nil {
		return err
	}
	study.SetChatHistory(c, nil)
	study.UpdatedAt = s.now()
	return s.studies.Update(ctx, &study)
}

// ChatTurn is an accepted message whose reply has not been streamed yet. It
// holds the chat's stream lock until Run returns or Close is called.
type ChatTurn struct {
	svc     *ChatService
	userID  string
	study   domain.Study
	req     ChatRequest
	release func()
}

// Begin validates a message and takes the chat's stream lock. It fails with
// domain.ErrStreamInFlight while another reply for the same chat is streaming.
func (s *ChatService) Begin(ctx context.Context, userID, studyID string, req ChatRequest) (*ChatTurn, error) {
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return nil, domain.Invalid("Message is required")
	}
	if req.Context == "" {
		req.Context = domain.ChatDocument
	}
	if _, err := domain.ParseChatContext(string(req.Context)); err != nil {
		return nil, err
	}
	study, err := s.studies.Get(ctx, userID, studyID)
	if err != nil {
		return nil, err
	}
	release, err := s.locks.Acquire(ctx, streamKey(userID, studyID, req.Context), StreamLockTTL)
	if err != nil {
		return nil, err
	}
	return &ChatTurn{svc: s, userID: userID, study: study, req: req, release: release}, nil
}

func streamKey(userID, studyID string, c domain.ChatContext) string {
	return "chat:stream:" + userID + ":" + studyID + ":" + string(c)
}

// Close releases the stream lock without running the turn.
func (t *ChatTurn) Close() {
	if t.release != nil {
		t.release()
		t.release = nil
	}
}

// Run streams the reply into sink and persists the exchange. On AI failure the
// sink gets an error event and only the user message is kept.
func (t *ChatTurn) Run(ctx context.Context, sink ChatSink) error {
	defer t.Close()
	s := t.svc
	sent := s.now()
	userMsg := domain.ChatMessage{Role: domain.RoleUser, Content: t.req.Message, Timestamp: &sent}

	var reply string
	var streamErr error
	if s.ai == nil {
		streamErr = &ai.ErrProviderUnavailable{}
	} else {
		reply, streamErr = s.ai.StreamChat(ctx, ai.ChatRequest{
			StudyTitle: t.study.Title,
			Content:    t.study.Content,
			Context:    t.req.Context,
			History:    t.study.ChatHistory(t.req.Context),
			Message:    t.req.Message,
			Quiz:       t.req.Quiz,
		}, sink.Content)
	}

	toSave := []domain.ChatMessage{userMsg}
	if streamErr == nil {
		done := s.now()
		toSave = append(toSave, domain.ChatMessage{Role: domain.RoleAssistant, Content: reply, Timestamp: &done})
	}
	// Persist against a fresh copy so edits made while streaming survive.
	if err := s.appendMessages(context.WithoutCancel(ctx), t.userID, t.study.ID, t.req.Context, toSave); err != nil {
		s.log.Error("saving chat failed", "study_id", t.study.ID, "error", err)
		if streamErr == nil {
			streamErr = err
		}
	}

	if streamErr != nil {
		s.log.Warn("chat stream failed", "study_id", t.study.ID, "context", t.req.Context, "error", streamErr)
		_ = sink.Error(StreamErrorMessage)
		return streamErr
	}
	return sink.Done()
}

func (s *ChatService) appendMessages(ctx context.Context, userID, studyID string, c domain.ChatContext, msgs []domain.ChatMessage) error {
	study, err := s.studies.Get(ctx, userID, studyID)
	if err != nil {
		return err
	}
	study.SetChatHistory(c, append(study.ChatHistory(c), msgs...))
	study.UpdatedAt = s.now()
	return s.studies.Update(ctx, &study)
}
