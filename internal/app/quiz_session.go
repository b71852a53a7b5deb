package app

import (
	"context"
	"sync"
	"time"

	"study-service/internal/domain"
	"study-service/internal/quiz"
)

// TransitionDelay is the pause between questions.
const TransitionDelay = 300 * time.Millisecond

// Phase is the coarse state of a quiz session.
type Phase string

const (
	PhaseEmpty    Phase = "empty"
	PhaseQuestion Phase = "question"
	PhaseResults  Phase = "results"
)

// Scheduler runs fn after d and returns a function that cancels it. fn takes
// the session lock, so it must not run synchronously inside the call.
type Scheduler func(d time.Duration, fn func()) (cancel func())

func afterFunc(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

// CompletionFunc persists a finished attempt. It runs once per completion.
type CompletionFunc func(ctx context.Context, entry domain.QuizHistoryEntry) error

// Feedback is shown once the current question has an answer.
type Feedback struct {
	Selected      int    `json:"selected"`
	Correct       bool   `json:"correct"`
	CorrectAnswer int    `json:"correctAnswer"`
	Explanation   string `json:"explanation"`
}

// SessionResult is the score screen.
type SessionResult struct {
	Correct    int    `json:"correct"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
	HistoryID  string `json:"historyId"`
}

// SessionSnapshot is what subscribers see after every change.
type SessionSnapshot struct {
	StudyID       string               `json:"studyId"`
	Phase         Phase                `json:"phase"`
	Index         int                  `json:"index"`
	Total         int                  `json:"total"`
	Question      *domain.QuizQuestion `json:"question,omitempty"`
	Selected      []*int               `json:"selected"`
	Answered      []bool               `json:"answered"`
	Feedback      *Feedback            `json:"feedback,omitempty"`
	ShowHint      bool                 `json:"showHint"`
	Transitioning bool                 `json:"transitioning"`
	Result        *SessionResult       `json:"result,omitempty"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

// QuizSession is the server-held state of one user working through a study's quiz.
// Answer input is rejected while a question transition is pending and after the
// results screen is reached; reaching results hands the attempt to the
// completion hook exactly once.
type QuizSession struct {
	key     string
	studyID string
	now     func() time.Time
	newID   func() string
	sched   Scheduler

	mu             sync.Mutex
	questions      []domain.QuizQuestion
	selectedTopics []string
	selected       []*int
	answered       []bool
	index          int
	phase          Phase
	showHint       bool
	transitioning  bool
	cancelPending  func()
	gen            int
	result         *SessionResult
	onComplete     CompletionFunc
	clients        int
	subscribers    map[chan SessionSnapshot]struct{}
}

// SessionOption customises a QuizSession.
type SessionOption func(*QuizSession)

// WithScheduler replaces the timer used for question transitions.
func WithScheduler(s Scheduler) SessionOption { return func(q *QuizSession) { q.sched = s } }

// WithClock replaces time.Now for deterministic snapshots.
func WithClock(now func() time.Time) SessionOption { return func(q *QuizSession) { q.now = now } }

// WithIDs replaces the history entry id generator.
func WithIDs(newID func() string) SessionOption { return func(q *QuizSession) { q.newID = newID } }

// WithCompletion sets the hook that saves finished attempts.
func WithCompletion(fn CompletionFunc) SessionOption {
	return func(q *QuizSession) { q.onComplete = fn }
}

func NewQuizSession(key, studyID string, opts ...SessionOption) *QuizSession {
	s := &QuizSession{
		key:         key,
		studyID:     studyID,
		now:         time.Now,
		newID:       newID,
		sched:       afterFunc,
		phase:       PhaseEmpty,
		subscribers: make(map[chan SessionSnapshot]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *QuizSession) Key() string { return s.key }

// Load replaces the question set and starts from the first question.
func (s *QuizSession) Load(questions []domain.QuizQuestion, selectedTopics []string) SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked(questions)
	s.selectedTopics = selectedTopics
	return s.broadcastLocked()
}

// Regenerate drops the questions and every per-question state.
func (s *QuizSession) Regenerate() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked(nil)
	s.selectedTopics = nil
	return s.broadcastLocked()
}

// Retake clears the answers and starts the same questions again.
func (s *QuizSession) Retake() (SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.questions) == 0 {
		return s.snapshotLocked(), domain.ErrNoQuiz
	}
	s.resetLocked(s.questions)
	return s.broadcastLocked(), nil
}

func (s *QuizSession) resetLocked(questions []domain.QuizQuestion) {
	s.stopPendingLocked()
	s.questions = questions
	s.selected = make([]*int, len(questions))
	s.answered = make([]bool, len(questions))
	s.index = 0
	s.showHint = false
	s.result = nil
	if len(questions) == 0 {
		s.phase = PhaseEmpty
	} else {
		s.phase = PhaseQuestion
	}
}

// Select records option i for the current question. Re-selection is allowed
// until the user moves on.
func (s *QuizSession) Select(option int) (SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.acceptInputLocked(); err != nil {
		return s.snapshotLocked(), err
	}
	q := s.questions[s.index]
	if option < 0 || option >= len(q.Options) {
		return s.snapshotLocked(), domain.ErrOptionOutOfRange
	}
	s.selected[s.index] = &option
	s.answered[s.index] = true
	return s.broadcastLocked(), nil
}

// ToggleHint shows or hides the hint for the current question.
func (s *QuizSession) ToggleHint() (SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.acceptInputLocked(); err != nil {
		return s.snapshotLocked(), err
	}
	s.showHint = !s.showHint
	return s.broadcastLocked(), nil
}

// Advance moves to the next question after the transition delay. On the last
// question it shows the results and saves the attempt.
func (s *QuizSession) Advance(ctx context.Context) (SessionSnapshot, error) {
	s.mu.Lock()
	if err := s.acceptInputLocked(); err != nil {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, err
	}
	if s.index < len(s.questions)-1 {
		snap := s.transitionLocked(s.index + 1)
		s.mu.Unlock()
		return snap, nil
	}

	entry := quiz.BuildHistoryEntry(s.newID(), s.questions, s.selected, s.selectedTopics, s.now())
	s.phase = PhaseResults
	s.showHint = false
	s.result = &SessionResult{
		Correct:    entry.CorrectCount,
		Total:      entry.TotalQuestions,
		Percentage: entry.Percentage,
		HistoryID:  entry.ID,
	}
	hook := s.onComplete
	snap := s.broadcastLocked()
	s.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, entry); err != nil {
			return snap, err
		}
	}
	return snap, nil
}

// Prev moves to the previous question after the transition delay.
func (s *QuizSession) Prev() (SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.acceptInputLocked(); err != nil {
		return s.snapshotLocked(), err
	}
	if s.index == 0 {
		return s.snapshotLocked(), domain.ErrQuestionOutOfRange
	}
	return s.transitionLocked(s.index - 1), nil
}

// GoTo jumps to question i after the transition delay, answered or not.
func (s *QuizSession) GoTo(i int) (SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.acceptInputLocked(); err != nil {
		return s.snapshotLocked(), err
	}
	if i < 0 || i >= len(s.questions) {
		return s.snapshotLocked(), domain.ErrQuestionOutOfRange
	}
	return s.transitionLocked(i), nil
}

func (s *QuizSession) acceptInputLocked() error {
	switch {
	case s.phase == PhaseEmpty:
		return domain.ErrNoQuiz
	case s.phase == PhaseResults:
		return domain.ErrQuizComplete
	case s.transitioning:
		return domain.ErrTransitioning
	}
	return nil
}

func (s *QuizSession) transitionLocked(target int) SessionSnapshot {
	s.transitioning = true
	s.gen++
	gen := s.gen
	snap := s.broadcastLocked()
	s.cancelPending = s.sched(TransitionDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if gen != s.gen || !s.transitioning {
			return
		}
		s.index = target
		s.transitioning = false
		s.showHint = false
		s.cancelPending = nil
		s.broadcastLocked()
	})
	return snap
}

func (s *QuizSession) stopPendingLocked() {
	if s.cancelPending != nil {
		s.cancelPending()
		s.cancelPending = nil
	}
	s.transitioning = false
	s.gen++
}

// Score counts the answers recorded so far.
func (s *QuizSession) Score() quiz.ScoreResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return quiz.Score(s.questions, s.selected)
}

// Answers returns the questions with the selections made for them.
func (s *QuizSession) Answers() ([]domain.QuizQuestion, []*int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sel := make([]*int, len(s.selected))
	copy(sel, s.selected)
	return s.questions, sel
}

func (s *QuizSession) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Attach and Detach count connected clients so idle sessions can be dropped.
func (s *QuizSession) Attach() {
	s.mu.Lock()
	s.clients++
	s.mu.Unlock()
}

func (s *QuizSession) Detach() {
	s.mu.Lock()
	if s.clients > 0 {
		s.clients--
	}
	s.mu.Unlock()
}

// IsEmpty reports whether no client is attached.
func (s *QuizSession) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clients == 0
}

// Subscribe returns a channel of snapshots starting with the current one.
// Slow readers only ever see the latest snapshot. Call cancel to unsubscribe.
func (s *QuizSession) Subscribe() (<-chan SessionSnapshot, func()) {
	ch := make(chan SessionSnapshot, 1)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *QuizSession) broadcastLocked() SessionSnapshot {
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// drop the stale snapshot
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
	return snap
}

func (s *QuizSession) snapshotLocked() SessionSnapshot {
	snap := SessionSnapshot{
		StudyID:       s.studyID,
		Phase:         s.phase,
		Index:         s.index,
		Total:         len(s.questions),
		Selected:      append([]*int(nil), s.selected...),
		Answered:      append([]bool(nil), s.answered...),
		ShowHint:      s.showHint,
		Transitioning: s.transitioning,
		UpdatedAt:     s.now(),
	}
	if s.result != nil {
		r := *s.result
		snap.Result = &r
	}
	if s.phase != PhaseQuestion {
		return snap
	}
	q := s.questions[s.index]
	snap.Question = &q
	if sel := s.selected[s.index]; sel != nil {
		snap.Feedback = &Feedback{
			Selected:      *sel,
			Correct:       *sel == q.CorrectAnswer,
			CorrectAnswer: q.CorrectAnswer,
			Explanation:   q.Explanation,
		}
	}
	return snap
}
