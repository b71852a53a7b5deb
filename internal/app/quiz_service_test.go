package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-service/internal/ai"
	"study-service/internal/app"
	"study-service/internal/domain"
	"study-service/internal/infra/memory"
	"study-service/internal/logger"
	"study-service/internal/quiz"
)

func intPtr(i int) *int { return &i }

func TestGenerateStoresQuestions(t *testing.T) {
	fake := &fakeAI{questions: sampleQuestions()}
	f := newFixture(fake)
	seedStudy(f)
	ctx := context.Background()

	qs, err := f.quiz.Generate(ctx, "u1", "s1", app.GenerateQuizRequest{NumQuestions: 3})
	require.NoError(t, err)
	assert.Len(t, qs, 3)

	stored, _ := f.studies.Get(ctx, "u1", "s1")
	assert.Len(t, stored.QuizQuestions, 3)
	assert.Equal(t, 3, fake.lastQuizRequest().NumQuestions)
}

func TestGenerateDefaultsToRecommendation(t *testing.T) {
	fake := &fakeAI{questions: sampleQuestions()}
	f := newFixture(fake)
	seedStudy(f)

	_, err := f.quiz.Generate(context.Background(), "u1", "s1", app.GenerateQuizRequest{TopicMode: quiz.ModeReview})
	require.NoError(t, err)
	req := fake.lastQuizRequest()
	assert.Equal(t, 10, req.NumQuestions)
	require.Len(t, req.Topics, 1)
	assert.Equal(t, "t1", req.Topics[0].ID)
}

func TestGenerateCustomWithoutSelectionSuggestsOneTopic(t *testing.T) {
	fake := &fakeAI{questions: sampleQuestions()}
	f := newFixture(fake)
	seedStudy(f)

	_, err := f.quiz.Generate(context.Background(), "u1", "s1", app.GenerateQuizRequest{TopicMode: quiz.ModeCustom})
	require.NoError(t, err)
	assert.Equal(t, quiz.Recommend(quiz.ModeCustom, 2, 0).Suggested, fake.lastQuizRequest().NumQuestions)
	assert.Equal(t, 10, fake.lastQuizRequest().NumQuestions)
}

func TestGenerateValidatesCount(t *testing.T) {
	f := newFixture(&fakeAI{})
	seedStudy(f)
	_, err := f.quiz.Generate(context.Background(), "u1", "s1", app.GenerateQuizRequest{NumQuestions: app.MaxQuestions + 1})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestGenerateFocusHistoryTakesPrecedence(t *testing.T) {
	fake := &fakeAI{questions: sampleQuestions()}
	f := newFixture(fake)
	study := seedStudy(f)
	study.QuizQuestions = sampleQuestions()
	study.QuizHistory = []domain.QuizHistoryEntry{{
		ID: "h1",
		Answers: []domain.QuizAnswer{
			{Question: "old", Options: []string{"a", "b"}, CorrectAnswer: 0, UserAnswer: 1},
		},
	}}
	ctx := context.Background()
	require.NoError(t, f.studies.Update(ctx, &study))

	_, err := f.quiz.Generate(ctx, "u1", "s1", app.GenerateQuizRequest{
		Mode:           app.GenerateWrongConcepts,
		HistoryIDs:     []string{"h1"},
		CurrentAnswers: []*int{intPtr(0), intPtr(0), intPtr(0)},
	})
	require.NoError(t, err)
	prev := fake.lastQuizRequest().PreviousResults
	require.NotNil(t, prev)
	require.Len(t, prev.WrongQuestions, 1)
	assert.Equal(t, "old", prev.WrongQuestions[0].Question)
}

func TestGenerateWrongConceptsFromCurrentAnswers(t *testing.T) {
	fake := &fakeAI{questions: sampleQuestions()}
	f := newFixture(fake)
	study := seedStudy(f)
	study.QuizQuestions = sampleQuestions()
	ctx := context.Background()
	require.NoError(t, f.studies.Update(ctx, &study))

	_, err := f.quiz.Generate(ctx, "u1", "s1", app.GenerateQuizRequest{
		Mode:           app.GenerateWrongConcepts,
		CurrentAnswers: []*int{intPtr(1), intPtr(2), intPtr(0)},
	})
	require.NoError(t, err)
	req := fake.lastQuizRequest()
	require.NotNil(t, req.PreviousResults)
	assert.Equal(t, 2, req.PreviousResults.Wrong)
	assert.Equal(t, quiz.FocusQuestionCount(2), req.NumQuestions)
}

func TestGenerateWithoutProvider(t *testing.T) {
	studies := memory.NewStudyRepository()
	svc := app.NewQuizService(studies, memory.NewSessionStore(), nil, logger.Nop())
	study := domain.Study{ID: "s1", UserID: "u1"}
	_ = studies.Create(context.Background(), &study)

	_, err := svc.Generate(context.Background(), "u1", "s1", app.GenerateQuizRequest{NumQuestions: 5})
	var unavailable *ai.ErrProviderUnavailable
	assert.True(t, errors.As(err, &unavailable))
}

func TestAnalyzeFallsBack(t *testing.T) {
	f := newFixture(&fakeAI{analysisErr: errBoom})
	seedStudy(f)
	results := []domain.QuizResult{{Question: "q", UserAnswer: "a", CorrectAnswer: "b"}}

	res, err := f.quiz.Analyze(context.Background(), "u1", "s1", results)
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, quiz.FallbackAnalysis(results), res.Analysis)

	_, err = f.quiz.Analyze(context.Background(), "u1", "s1", nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAnalyzeUsesAI(t *testing.T) {
	f := newFixture(&fakeAI{analysis: "Great job"})
	seedStudy(f)
	res, err := f.quiz.Analyze(context.Background(), "u1", "s1", []domain.QuizResult{{Question: "q", IsCorrect: true}})
	require.NoError(t, err)
	assert.False(t, res.Fallback)
	assert.Equal(t, "Great job", res.Analysis)
}

func TestHistoryRecordAndDelete(t *testing.T) {
	f := newFixture(&fakeAI{})
	seedStudy(f)
	ctx := context.Background()
	answers := []domain.QuizAnswer{
		{Question: "q1", Options: []string{"a", "b"}, CorrectAnswer: 0, UserAnswer: 0, IsCorrect: false},
		{Question: "q2", Options: []string{"a", "b"}, CorrectAnswer: 1, UserAnswer: 0, IsCorrect: true},
	}

	first, err := f.quiz.RecordHistory(ctx, "u1", "s1", answers, []string{"t1"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.CorrectCount, "correctness is recomputed")
	assert.Equal(t, 50, first.Percentage)

	second, err := f.quiz.RecordHistory(ctx, "u1", "s1", answers, nil)
	require.NoError(t, err)

	stored, _ := f.studies.Get(ctx, "u1", "s1")
	require.Len(t, stored.QuizHistory, 2)
	assert.Equal(t, second.ID, stored.QuizHistory[0].ID, "newest first")

	require.NoError(t, f.quiz.DeleteHistory(ctx, "u1", "s1", first.ID))
	assert.ErrorIs(t, f.quiz.DeleteHistory(ctx, "u1", "s1", first.ID), domain.ErrHistoryNotFound)

	_, err = f.quiz.RecordHistory(ctx, "u1", "s1", nil, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSessionCompletionWritesHistory(t *testing.T) {
	sched := &manualScheduler{}
	f := newFixture(&fakeAI{}, app.WithScheduler(sched.schedule))
	study := seedStudy(f)
	study.QuizQuestions = sampleQuestions()[:1]
	ctx := context.Background()
	require.NoError(t, f.studies.Update(ctx, &study))

	session, err := f.quiz.Join(ctx, "u1", "s1")
	require.NoError(t, err)
	_, err = session.Select(1)
	require.NoError(t, err)
	snap, err := session.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, app.PhaseResults, snap.Phase)

	stored, _ := f.studies.Get(ctx, "u1", "s1")
	require.Len(t, stored.QuizHistory, 1)
	assert.Equal(t, snap.Result.HistoryID, stored.QuizHistory[0].ID)
	assert.Equal(t, 100, stored.QuizHistory[0].Percentage)

	mastered, err := f.quiz.MasteredConcepts(ctx, "u1", "s1")
	require.NoError(t, err)
	require.Len(t, mastered, 1)
	assert.Equal(t, "4", mastered[0].Answer)
}

func TestJoinLeave(t *testing.T) {
	f := newFixture(&fakeAI{})
	seedStudy(f)
	ctx := context.Background()

	_, err := f.quiz.Session("u1", "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	s1, err := f.quiz.Join(ctx, "u1", "s1")
	require.NoError(t, err)
	s2, err := f.quiz.Join(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Same(t, s1, s2)
	assert.Equal(t, app.PhaseEmpty, s1.Snapshot().Phase)

	f.quiz.Leave("u1", "s1")
	_, err = f.quiz.Session("u1", "s1")
	assert.NoError(t, err, "one client still attached")
	f.quiz.Leave("u1", "s1")
	_, err = f.quiz.Session("u1", "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = f.quiz.Join(ctx, "u2", "s1")
	assert.ErrorIs(t, err, domain.ErrStudyNotFound)
}

func TestGenerateReloadsLiveSession(t *testing.T) {
	fake := &fakeAI{questions: sampleQuestions()}
	f := newFixture(fake)
	seedStudy(f)
	ctx := context.Background()

	session, err := f.quiz.Join(ctx, "u1", "s1")
	require.NoError(t, err)
	_, err = f.quiz.Generate(ctx, "u1", "s1", app.GenerateQuizRequest{NumQuestions: 3})
	require.NoError(t, err)
	snap := session.Snapshot()
	assert.Equal(t, app.PhaseQuestion, snap.Phase)
	assert.Equal(t, 3, snap.Total)
}
