package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"study-service/internal/app"
	"study-service/internal/domain"
)

// manualScheduler queues transitions until fire is called.
type manualScheduler struct {
	mu      sync.Mutex
	pending []*func()
}

func (m *manualScheduler) schedule(_ time.Duration, fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot := &fn
	m.pending = append(m.pending, slot)
	return func() {
		m.mu.Lock()
		*slot = nil
		m.mu.Unlock()
	}
}

func (m *manualScheduler) fire() {
	m.mu.Lock()
	var due []func()
	for _, slot := range m.pending {
		if *slot != nil {
			due = append(due, *slot)
		}
	}
	m.pending = nil
	m.mu.Unlock()
	for _, fn := range due {
		fn()
	}
}

func sampleQuestions() []domain.QuizQuestion {
	return []domain.QuizQuestion{
		{Question: "2+2?", Options: []string{"3", "4"}, CorrectAnswer: 1, Explanation: "basic", TopicID: "t1"},
		{Question: "Capital of France?", Options: []string{"Paris", "Rome", "Oslo"}, CorrectAnswer: 0, TopicID: "t2"},
		{Question: "Sky colour?", Options: []string{"Green", "Blue"}, CorrectAnswer: 1, TopicID: "t1"},
	}
}

func newSession(t *testing.T, onComplete app.CompletionFunc) (*app.QuizSession, *manualScheduler) {
	t.Helper()
	sched := &manualScheduler{}
	s := app.NewQuizSession("u1:s1", "s1",
		app.WithScheduler(sched.schedule),
		app.WithIDs(func() string { return "h1" }),
		app.WithCompletion(onComplete),
	)
	s.Load(sampleQuestions(), []string{"t1", "t2"})
	return s, sched
}

func TestSessionSelectShowsFeedback(t *testing.T) {
	s, _ := newSession(t, nil)

	snap, err := s.Select(0)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if snap.Feedback == nil || snap.Feedback.Correct || snap.Feedback.CorrectAnswer != 1 {
		t.Fatalf("unexpected feedback %+v", snap.Feedback)
	}
	snap, _ = s.Select(1)
	if !snap.Feedback.Correct {
		t.Fatalf("re-selection before moving on should be allowed")
	}
	if _, err := s.Select(5); !errors.Is(err, domain.ErrOptionOutOfRange) {
		t.Fatalf("expected option out of range, got %v", err)
	}
}

func TestSessionRejectsInputDuringTransition(t *testing.T) {
	s, sched := newSession(t, nil)
	_, _ = s.Select(1)

	snap, err := s.Advance(context.Background())
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if !snap.Transitioning || snap.Index != 0 {
		t.Fatalf("expected pending transition on question 0, got %+v", snap)
	}
	if _, err := s.Select(0); !errors.Is(err, domain.ErrTransitioning) {
		t.Fatalf("expected transitioning error, got %v", err)
	}
	if _, err := s.Advance(context.Background()); !errors.Is(err, domain.ErrTransitioning) {
		t.Fatalf("expected transitioning error on double advance, got %v", err)
	}

	sched.fire()
	snap = s.Snapshot()
	if snap.Transitioning || snap.Index != 1 || snap.Feedback != nil {
		t.Fatalf("expected fresh question 1, got %+v", snap)
	}
}

func TestSessionCompletionSavesOnce(t *testing.T) {
	var saved []domain.QuizHistoryEntry
	s, sched := newSession(t, func(_ context.Context, e domain.QuizHistoryEntry) error {
		saved = append(saved, e)
		return nil
	})
	ctx := context.Background()

	_, _ = s.Select(1) // correct
	_, _ = s.Advance(ctx)
	sched.fire()
	_, _ = s.Select(2) // wrong
	_, _ = s.Advance(ctx)
	sched.fire()
	// third left unanswered
	snap, err := s.Advance(ctx)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if snap.Phase != app.PhaseResults || snap.Result == nil {
		t.Fatalf("expected results, got %+v", snap)
	}
	if snap.Result.Correct != 1 || snap.Result.Total != 3 || snap.Result.Percentage != 33 {
		t.Fatalf("unexpected result %+v", snap.Result)
	}
	if _, err := s.Advance(ctx); !errors.Is(err, domain.ErrQuizComplete) {
		t.Fatalf("expected quiz complete, got %v", err)
	}
	if len(saved) != 1 {
		t.Fatalf("expected one saved attempt, got %d", len(saved))
	}
	entry := saved[0]
	if entry.ID != "h1" || entry.WrongCount != 2 || entry.Answers[2].UserAnswer != -1 {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if len(entry.SelectedTopics) != 2 {
		t.Fatalf("expected selected topics carried, got %v", entry.SelectedTopics)
	}
}

func TestSessionNavigation(t *testing.T) {
	s, sched := newSession(t, nil)

	if _, err := s.Prev(); !errors.Is(err, domain.ErrQuestionOutOfRange) {
		t.Fatalf("expected out of range at first question, got %v", err)
	}
	if _, err := s.GoTo(3); !errors.Is(err, domain.ErrQuestionOutOfRange) {
		t.Fatalf("expected out of range, got %v", err)
	}
	_, _ = s.GoTo(2)
	sched.fire()
	if s.Snapshot().Index != 2 {
		t.Fatalf("expected index 2")
	}
	_, _ = s.Prev()
	sched.fire()
	if s.Snapshot().Index != 1 {
		t.Fatalf("expected index 1")
	}
}

func TestSessionRegenerateCancelsTransition(t *testing.T) {
	s, sched := newSession(t, nil)
	_, _ = s.Select(1)
	_, _ = s.Advance(context.Background())

	snap := s.Regenerate()
	if snap.Phase != app.PhaseEmpty || snap.Transitioning {
		t.Fatalf("expected empty session, got %+v", snap)
	}
	sched.fire()
	if s.Snapshot().Index != 0 {
		t.Fatalf("stale transition must not move the index")
	}
	if _, err := s.Select(0); !errors.Is(err, domain.ErrNoQuiz) {
		t.Fatalf("expected no quiz, got %v", err)
	}
	if _, err := s.Retake(); !errors.Is(err, domain.ErrNoQuiz) {
		t.Fatalf("expected no quiz on retake, got %v", err)
	}
}

func TestSessionRetakeClearsAnswers(t *testing.T) {
	s, sched := newSession(t, nil)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, _ = s.Select(0)
		_, _ = s.Advance(ctx)
		sched.fire()
	}
	if s.Snapshot().Phase != app.PhaseResults {
		t.Fatalf("expected results")
	}

	snap, err := s.Retake()
	if err != nil {
		t.Fatalf("retake: %v", err)
	}
	if snap.Phase != app.PhaseQuestion || snap.Index != 0 || snap.Result != nil {
		t.Fatalf("unexpected snapshot after retake %+v", snap)
	}
	for i, sel := range snap.Selected {
		if sel != nil {
			t.Fatalf("answer %d not cleared", i)
		}
	}
}

func TestSessionToggleHint(t *testing.T) {
	s, sched := newSession(t, nil)
	snap, _ := s.ToggleHint()
	if !snap.ShowHint {
		t.Fatalf("expected hint shown")
	}
	_, _ = s.Advance(context.Background())
	sched.fire()
	if s.Snapshot().ShowHint {
		t.Fatalf("hint should reset on the next question")
	}
}

func TestSessionSubscribeLatestWins(t *testing.T) {
	s, _ := newSession(t, nil)
	ch, cancel := s.Subscribe()
	defer cancel()

	// nobody reads while three updates happen
	_, _ = s.Select(0)
	_, _ = s.Select(1)
	_, _ = s.ToggleHint()

	snap := <-ch
	if !snap.ShowHint || snap.Feedback == nil || snap.Feedback.Selected != 1 {
		t.Fatalf("expected only the latest snapshot, got %+v", snap)
	}
	select {
	case extra := <-ch:
		t.Fatalf("unexpected queued snapshot %+v", extra)
	default:
	}

	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel after cancel")
	}
}
