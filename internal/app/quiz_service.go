package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"study-service/internal/ai"
	"study-service/internal/domain"
	"study-service/internal/logger"
	"study-service/internal/quiz"
)

// MaxQuestions caps a single generation request.
const MaxQuestions = 100

// GenerateMode says what a new quiz should be built from.
type GenerateMode string

const (
	GenerateNew           GenerateMode = "new"
	GenerateSameTopics    GenerateMode = "same_topics"
	GenerateWrongConcepts GenerateMode = "wrong_concepts"
)

// GenerateQuizRequest is the body of a quiz generation call. Fields the client
// leaves empty are derived from the study: KnownConcepts from history when
// AvoidKnownConcepts is set, PreviousResults from HistoryIDs (first) or the
// current session when Mode is wrong_concepts, NumQuestions from the recommendation.
type GenerateQuizRequest struct {
	NumQuestions       int                     `json:"numQuestions"`
	SelectedTopics     []string                `json:"selectedTopics"`
	PreviousResults    *domain.PreviousResults `json:"previousResults"`
	KnownConcepts      []string                `json:"knownConcepts"`
	Mode               GenerateMode            `json:"mode"`
	TopicMode          quiz.Mode               `json:"topicMode"`
	HistoryIDs         []string                `json:"historyIds"`
	AvoidKnownConcepts bool                    `json:"avoidKnownConcepts"`
	CurrentAnswers     []*int                  `json:"currentAnswers"`
}

// AnalysisResult is a quiz analysis and whether it came from the local fallback.
type AnalysisResult struct {
	Analysis string `json:"analysis"`
	Fallback bool   `json:"fallback"`
}

// QuizService contains the quiz use cases: generation, analysis, history and
// the interactive session.
type QuizService struct {
	studies  StudyRepository
	sessions SessionRepository
	ai       QuizAI
	log      *logger.Logger
	now      func() time.Time
	opts     []SessionOption
}

func NewQuizService(studies StudyRepository, sessions SessionRepository, quizAI QuizAI, log *logger.Logger, opts ...SessionOption) *QuizService {
	return &QuizService{
		studies:  studies,
		sessions: sessions,
		ai:       quizAI,
		log:      log.With("service", "QuizService"),
		now:      time.Now,
		opts:     opts,
	}
}

func sessionKey(userID, studyID string) string { return userID + ":" + studyID }

// Generate creates and stores a new question set and restarts the session on it.
func (s *QuizService) Generate(ctx context.Context, userID, studyID string, req GenerateQuizRequest) ([]domain.QuizQuestion, error) {
	study, err := s.studies.Get(ctx, userID, studyID)
	if err != nil {
		return nil, err
	}
	if req.NumQuestions < 0 || req.NumQuestions > MaxQuestions {
		return nil, domain.Invalid(fmt.Sprintf("numQuestions must be between 1 and %d", MaxQuestions))
	}

	known := req.KnownConcepts
	if known == nil && req.AvoidKnownConcepts {
		known = quiz.KnownConcepts(study.QuizHistory)
	}

	topicIDs := req.SelectedTopics
	if req.TopicMode != "" {
		mode := quiz.ParseMode(string(req.TopicMode))
		if mode != quiz.ModeAll {
			topicIDs = quiz.SelectTopics(mode, study.Topics, req.SelectedTopics)
		} else {
			topicIDs = nil
		}
	}
	count := req.NumQuestions
	if count == 0 {
		mode := quiz.ParseMode(string(req.TopicMode))
		if req.TopicMode == "" && len(topicIDs) > 0 {
			mode = quiz.ModeCustom
		}
		count = quiz.Recommend(mode, len(study.Topics), len(topicIDs)).Suggested
	}

	prev := req.PreviousResults
	if prev == nil {
		switch {
		case len(req.HistoryIDs) > 0:
			prev = quiz.FocusFromHistory(study.QuizHistory, req.HistoryIDs).Results
		case req.Mode == GenerateWrongConcepts && len(study.QuizQuestions) > 0:
			answers := req.CurrentAnswers
			if answers == nil {
				answers = s.currentAnswers(userID, studyID)
			}
			focus := quiz.FocusFromAnswers(study.QuizQuestions, answers)
			prev = focus.Results
			if len(focus.WrongTopics) > 0 {
				topicIDs = focus.WrongTopics
			}
			count = quiz.FocusQuestionCount(focus.WrongCount)
		}
	}

	if s.ai == nil {
		return nil, &ai.ErrProviderUnavailable{}
	}
	topics := pickTopics(study.Topics, topicIDs)
	questions, err := s.ai.GenerateQuiz(ctx, ai.QuizRequest{
		StudyTitle:      study.Title,
		Content:         quizContent(study, topics),
		Topics:          topics,
		NumQuestions:    count,
		PreviousResults: prev,
		KnownConcepts:   known,
	})
	if err != nil {
		s.log.Error("quiz generation failed", "study_id", studyID, "error", err)
		return nil, err
	}

	study.QuizQuestions = questions
	study.UpdatedAt = s.now()
	if err := s.studies.Update(ctx, &study); err != nil {
		return nil, err
	}
	if session, ok := s.sessions.Get(sessionKey(userID, studyID)); ok {
		session.Load(questions, topicIDs)
	}
	s.log.Info("quiz generated", "study_id", studyID, "questions", len(questions), "focused", prev != nil)
	return questions, nil
}

func (s *QuizService) currentAnswers(userID, studyID string) []*int {
	session, ok := s.sessions.Get(sessionKey(userID, studyID))
	if !ok {
		return nil
	}
	_, selected := session.Answers()
	return selected
}

func pickTopics(all []domain.Topic, ids []string) []domain.Topic {
	if len(ids) == 0 {
		return all
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []domain.Topic
	for _, t := range all {
		if wanted[t.ID] {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return all
	}
	return out
}

func quizContent(study domain.Study, topics []domain.Topic) string {
	if len(topics) == 0 || len(topics) == len(study.Topics) {
		return study.Content
	}
	parts := make([]string, len(topics))
	for i, t := range topics {
		parts[i] = "# " + t.Title + "\n\n" + t.Content
	}
	return strings.Join(parts, "\n\n")
}

// Analyze asks the AI to review a finished quiz and falls back to a locally
// computed report when that fails. Empty results are taken from the session.
func (s *QuizService) Analyze(ctx context.Context, userID, studyID string, results []domain.QuizResult) (AnalysisResult, error) {
	study, err := s.studies.Get(ctx, userID, studyID)
	if err != nil {
		return AnalysisResult{}, err
	}
	if len(results) == 0 {
		if session, ok := s.sessions.Get(sessionKey(userID, studyID)); ok {
			questions, selected := session.Answers()
			results = quiz.Results(questions, selected)
		}
	}
	if len(results) == 0 {
		return AnalysisResult{}, domain.Invalid("results are required")
	}
	if s.ai != nil {
		analysis, err := s.ai.AnalyzeQuiz(ctx, study.Title, results)
		if err == nil {
			return AnalysisResult{Analysis: analysis}, nil
		}
		s.log.Warn("quiz analysis failed, using fallback", "study_id", studyID, "error", err)
	}
	return AnalysisResult{Analysis: quiz.FallbackAnalysis(results), Fallback: true}, nil
}

// RecordHistory stores a completed attempt sent by a client. Counts are
// recomputed from the answers.
func (s *QuizService) RecordHistory(ctx context.Context, userID, studyID string, answers []domain.QuizAnswer, selectedTopics []string) (domain.QuizHistoryEntry, error) {
	if len(answers) == 0 {
		return domain.QuizHistoryEntry{}, domain.Invalid("answers are required")
	}
	entry := quiz.HistoryEntryFromAnswers(newID(), answers, selectedTopics, s.now())
	if err := s.appendHistory(ctx, userID, studyID, entry); err != nil {
		return domain.QuizHistoryEntry{}, err
	}
	return entry, nil
}

func (s *QuizService) appendHistory(ctx context.Context, userID, studyID string, entry domain.QuizHistoryEntry) error {
	study, err := s.studies.Get(ctx, userID, studyID)
	if err != nil {
		return err
	}
	study.QuizHistory = append([]domain.QuizHistoryEntry{entry}, study.QuizHistory...)
	study.UpdatedAt = s.now()
	if err := s.studies.Update(ctx, &study); err != nil {
		return err
	}
	s.log.Info("quiz history saved", "study_id", studyID, "history_id", entry.ID, "percentage", entry.Percentage)
	return nil
}

// DeleteHistory removes one history entry.
func (s *QuizService) DeleteHistory(ctx context.Context, userID, studyID, historyID string) error {
	study, err := s.studies.Get(ctx, userID, studyID)
	if err != nil {
		return err
	}
	kept := study.QuizHistory[:0:0]
	for _, h := range study.QuizHistory {
		if h.ID != historyID {
			kept = append(kept, h)
		}
	}
	if len(kept) == len(study.QuizHistory) {
		return domain.ErrHistoryNotFound
	}
	study.QuizHistory = kept
	study.UpdatedAt = s.now()
	return s.studies.Update(ctx, &study)
}

// MasteredConcepts ranks what the user has answered correctly across attempts.
func (s *QuizService) MasteredConcepts(ctx context.Context, userID, studyID string) ([]domain.MasteredConcept, error) {
	study, err := s.studies.Get(ctx, userID, studyID)
	if err != nil {
		return nil, err
	}
	return quiz.MasteredConcepts(study.QuizHistory, study.Topics), nil
}

// Join attaches a client to the user's session for a study, creating it from
// the stored questions when needed.
func (s *QuizService) Join(ctx context.Context, userID, studyID string) (*QuizSession, error) {
	study, err := s.studies.Get(ctx, userID, studyID)
	if err != nil {
		return nil, err
	}
	key := sessionKey(userID, studyID)
	opts := append([]SessionOption{WithCompletion(func(ctx context.Context, entry domain.QuizHistoryEntry) error {
		return s.appendHistory(ctx, userID, studyID, entry)
	})}, s.opts...)
	session, created := s.sessions.GetOrCreate(key, func() *QuizSession {
		return NewQuizSession(key, studyID, opts...)
	})
	if created {
		session.Load(study.QuizQuestions, nil)
	}
	session.Attach()
	return session, nil
}

// Session returns the live session for a study.
func (s *QuizService) Session(userID, studyID string) (*QuizSession, error) {
	session, ok := s.sessions.Get(sessionKey(userID, studyID))
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Leave detaches a client and drops the session once nobody is attached.
func (s *QuizService) Leave(userID, studyID string) {
	key := sessionKey(userID, studyID)
	session, ok := s.sessions.Get(key)
	if !ok {
		return
	}
	session.Detach()
	if session.IsEmpty() {
		s.sessions.DeleteIfEmpty(key)
	}
}
