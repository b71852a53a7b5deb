package client

import (
	"sync"

	"study-service/internal/domain"
	"study-service/internal/search"
)

// State is everything the client shows for one open study.
type State struct {
	Study              domain.Study
	Chat               map[domain.ChatContext][]domain.ChatMessage
	SelectedHistoryIDs []string
	Search             search.BarState
}

func (s State) clone() State {
	out := State{
		Study:              s.Study.Clone(),
		Chat:               make(map[domain.ChatContext][]domain.ChatMessage, len(s.Chat)),
		SelectedHistoryIDs: append([]string(nil), s.SelectedHistoryIDs...),
		Search:             s.Search,
	}
	for k, v := range s.Chat {
		out.Chat[k] = append([]domain.ChatMessage(nil), v...)
	}
	return out
}

// Action is one state mutation.
type Action interface {
	apply(*State)
}

type (
	// StudyLoaded replaces the whole state with a freshly fetched study.
	StudyLoaded struct{ Study domain.Study }

	TopicLearnedSet struct {
		TopicID string
		Learned bool
	}

	// AllTopicsLearnedSet sets learned on every topic.
	AllTopicsLearnedSet struct{ Learned bool }

	// TopicVideoSet stores a video URL; a nil URL removes the video.
	TopicVideoSet struct {
		TopicID string
		URL     *string
	}

	TopicVideoGenerating struct {
		TopicID    string
		Generating bool
	}

	QuizQuestionsReplaced struct{ Questions []domain.QuizQuestion }

	// HistoryEntryAdded puts a new attempt at the front of the history.
	HistoryEntryAdded struct{ Entry domain.QuizHistoryEntry }

	// HistoryEntryDeleted removes an attempt from the history and from the
	// focus selection.
	HistoryEntryDeleted struct{ ID string }

	HistorySelectionToggled struct{ ID string }

	// HistorySelectionCleared empties the focus selection once a quiz used it.
	HistorySelectionCleared struct{}

	ChatMessageAppended struct {
		Context domain.ChatContext
		Message domain.ChatMessage
	}

	// ChatLastMessageReplaced swaps the newest message of one chat. It is a
	// no-op on an empty chat.
	ChatLastMessageReplaced struct {
		Context domain.ChatContext
		Message domain.ChatMessage
	}

	ChatCleared struct{ Context domain.ChatContext }

	SearchChanged struct{ State search.BarState }

	// topicsLearnedRestored puts back per-topic learned flags captured before
	// an optimistic update.
	topicsLearnedRestored struct{ learned map[string]bool }
)

func (a StudyLoaded) apply(s *State) {
	*s = State{
		Study: a.Study.Clone(),
		Chat: map[domain.ChatContext][]domain.ChatMessage{
			domain.ChatDocument: append([]domain.ChatMessage(nil), a.Study.DocumentChatHistory...),
			domain.ChatQuiz:     append([]domain.ChatMessage(nil), a.Study.QuizChatHistory...),
		},
	}
}

func (a TopicLearnedSet) apply(s *State) {
	if t, ok := s.Study.TopicByID(a.TopicID); ok {
		t.Learned = a.Learned
	}
}

func (a AllTopicsLearnedSet) apply(s *State) {
	for i := range s.Study.Topics {
		s.Study.Topics[i].Learned = a.Learned
	}
}

func (a TopicVideoSet) apply(s *State) {
	if t, ok := s.Study.TopicByID(a.TopicID); ok {
		t.VideoURL = a.URL
		t.VideoGenerating = false
	}
}

func (a TopicVideoGenerating) apply(s *State) {
	if t, ok := s.Study.TopicByID(a.TopicID); ok {
		t.VideoGenerating = a.Generating
	}
}

func (a QuizQuestionsReplaced) apply(s *State) {
	s.Study.QuizQuestions = append([]domain.QuizQuestion(nil), a.Questions...)
}

func (a HistoryEntryAdded) apply(s *State) {
	s.Study.QuizHistory = append([]domain.QuizHistoryEntry{a.Entry}, s.Study.QuizHistory...)
}

func (a HistoryEntryDeleted) apply(s *State) {
	s.Study.QuizHistory = removeFunc(s.Study.QuizHistory, func(h domain.QuizHistoryEntry) bool { return h.ID == a.ID })
	s.SelectedHistoryIDs = removeFunc(s.SelectedHistoryIDs, func(id string) bool { return id == a.ID })
}

func (a HistorySelectionToggled) apply(s *State) {
	before := len(s.SelectedHistoryIDs)
	s.SelectedHistoryIDs = removeFunc(s.SelectedHistoryIDs, func(id string) bool { return id == a.ID })
	if len(s.SelectedHistoryIDs) == before {
		s.SelectedHistoryIDs = append(s.SelectedHistoryIDs, a.ID)
	}
}

func (HistorySelectionCleared) apply(s *State) { s.SelectedHistoryIDs = nil }

func (a ChatMessageAppended) apply(s *State) {
	if s.Chat == nil {
		s.Chat = make(map[domain.ChatContext][]domain.ChatMessage)
	}
	s.Chat[a.Context] = append(s.Chat[a.Context], a.Message)
}

func (a ChatLastMessageReplaced) apply(s *State) {
	msgs := s.Chat[a.Context]
	if len(msgs) == 0 {
		return
	}
	msgs[len(msgs)-1] = a.Message
}

func (a ChatCleared) apply(s *State) {
	delete(s.Chat, a.Context)
}

func (a SearchChanged) apply(s *State) { s.Search = a.State }

func (a topicsLearnedRestored) apply(s *State) {
	for i := range s.Study.Topics {
		if v, ok := a.learned[s.Study.Topics[i].ID]; ok {
			s.Study.Topics[i].Learned = v
		}
	}
}

func removeFunc[T any](in []T, drop func(T) bool) []T {
	out := in[:0:0]
	for _, v := range in {
		if !drop(v) {
			out = append(out, v)
		}
	}
	return out
}

// Store holds State and applies actions to it one at a time. Subscribers are
// called synchronously, in order, after every dispatch.
type Store struct {
	mu    sync.Mutex
	state State
	subs  map[int]func(State)
	next  int
}

func NewStore() *Store {
	return &Store{subs: make(map[int]func(State))}
}

// Dispatch applies a and returns the new state.
func (s *Store) Dispatch(a Action) State {
	s.mu.Lock()
	a.apply(&s.state)
	snap := s.state.clone()
	subs := make([]func(State), 0, len(s.subs))
	for i := 0; i < s.next; i++ {
		if fn, ok := s.subs[i]; ok {
			subs = append(subs, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
	return snap
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe registers fn for every future state change.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}
