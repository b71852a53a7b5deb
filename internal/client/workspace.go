package client

import (
	"context"
	"fmt"
	"sync"

	"study-service/internal/app"
	"study-service/internal/domain"
	"study-service/internal/quiz"
	"study-service/internal/search"
)

// Workspace binds a Client to the Store of one open study. Topic edits are
// applied to the store first and rolled back when the server rejects them.
type Workspace struct {
	client  *Client
	store   *Store
	studyID string

	planMu  sync.Mutex
	planner *quiz.Planner
}

// QuizPlan is the quiz setup form: the topics a new quiz covers and how many
// questions it asks.
type QuizPlan struct {
	Mode           quiz.Mode                     `json:"mode"`
	SelectedTopics []string                      `json:"selectedTopics"`
	Count          int                           `json:"count"`
	Recommendation domain.QuestionRecommendation `json:"recommendation"`
}

func NewWorkspace(c *Client, store *Store, studyID string) *Workspace {
	return &Workspace{client: c, store: store, studyID: studyID}
}

func (w *Workspace) Store() *Store   { return w.store }
func (w *Workspace) StudyID() string { return w.studyID }

// Load fetches the study and replaces the store state with it.
func (w *Workspace) Load(ctx context.Context) (domain.QuestionRecommendation, error) {
	study, rec, err := w.client.GetStudy(ctx, w.studyID)
	if err != nil {
		return domain.QuestionRecommendation{}, err
	}
	w.store.Dispatch(StudyLoaded{Study: study})
	w.planMu.Lock()
	w.planner = nil
	w.planMu.Unlock()
	return rec, nil
}

// Plan returns the current quiz setup.
func (w *Workspace) Plan() QuizPlan {
	return w.UpdatePlan(func(*quiz.Planner) {})
}

// UpdatePlan edits the quiz setup, e.g. p.SetMode or p.SetCount, and returns
// the result. GenerateQuiz uses it for requests that name no topics or count.
func (w *Workspace) UpdatePlan(edit func(p *quiz.Planner)) QuizPlan {
	w.planMu.Lock()
	defer w.planMu.Unlock()
	if w.planner == nil {
		w.planner = quiz.NewPlanner(w.store.State().Study.Topics)
	}
	edit(w.planner)
	return QuizPlan{
		Mode:           w.planner.Mode(),
		SelectedTopics: w.planner.SelectedTopics(),
		Count:          w.planner.Count(),
		Recommendation: w.planner.Recommendation(),
	}
}

// TopicScrollTarget is the scrollTop that brings a topic's heading just below
// the top of the document view when the topic is picked from the sidebar.
func (w *Workspace) TopicScrollTarget(container search.Rect, scrollTop float64, heading search.Rect) float64 {
	return search.TopScrollTop(container, scrollTop, heading)
}

// syncPlan hands the planner the store's current topics.
func (w *Workspace) syncPlan() {
	w.planMu.Lock()
	defer w.planMu.Unlock()
	if w.planner != nil {
		w.planner.SetTopics(w.store.State().Study.Topics)
	}
}

// ToggleTopicLearned flips one topic's learned flag.
func (w *Workspace) ToggleTopicLearned(ctx context.Context, topicID string) error {
	st := w.store.State()
	topic, ok := st.Study.TopicByID(topicID)
	if !ok {
		return domain.ErrTopicNotFound
	}
	prev := topic.Learned
	w.store.Dispatch(TopicLearnedSet{TopicID: topicID, Learned: !prev})
	defer w.syncPlan()

	if _, err := w.client.SetTopicLearned(ctx, w.studyID, topicID, !prev); err != nil {
		w.store.Dispatch(TopicLearnedSet{TopicID: topicID, Learned: prev})
		return fmt.Errorf("toggle topic learned: %w", err)
	}
	return nil
}

// MarkAllTopicsLearned sets every topic learned, or unlearned when all already are.
func (w *Workspace) MarkAllTopicsLearned(ctx context.Context) error {
	st := w.store.State()
	prev := make(map[string]bool, len(st.Study.Topics))
	allLearned := len(st.Study.Topics) > 0
	for _, t := range st.Study.Topics {
		prev[t.ID] = t.Learned
		allLearned = allLearned && t.Learned
	}
	target := !allLearned
	w.store.Dispatch(AllTopicsLearnedSet{Learned: target})
	defer w.syncPlan()

	if _, err := w.client.SetTopicsLearned(ctx, w.studyID, nil, target); err != nil {
		w.store.Dispatch(topicsLearnedRestored{learned: prev})
		return fmt.Errorf("mark all topics learned: %w", err)
	}
	return nil
}

// DeleteTopicVideo removes a topic's video.
func (w *Workspace) DeleteTopicVideo(ctx context.Context, topicID string) error {
	st := w.store.State()
	topic, ok := st.Study.TopicByID(topicID)
	if !ok {
		return domain.ErrTopicNotFound
	}
	prev := topic.VideoURL
	w.store.Dispatch(TopicVideoSet{TopicID: topicID, URL: nil})

	if err := w.client.ClearTopicVideo(ctx, w.studyID, topicID); err != nil {
		w.store.Dispatch(TopicVideoSet{TopicID: topicID, URL: prev})
		return fmt.Errorf("delete topic video: %w", err)
	}
	return nil
}

// DeleteHistoryEntry removes an attempt on the server, then from the store.
func (w *Workspace) DeleteHistoryEntry(ctx context.Context, historyID string) error {
	if err := w.client.DeleteHistory(ctx, w.studyID, historyID); err != nil {
		return err
	}
	w.store.Dispatch(HistoryEntryDeleted{ID: historyID})
	return nil
}

// ToggleHistorySelection adds or removes an attempt from the focus selection.
func (w *Workspace) ToggleHistorySelection(historyID string) State {
	return w.store.Dispatch(HistorySelectionToggled{ID: historyID})
}

// GenerateQuiz asks for new questions. A request without topics or count
// takes them from the quiz plan. When attempts are selected in the history
// they become the focus of the new quiz, and the selection is cleared once
// the quiz exists.
func (w *Workspace) GenerateQuiz(ctx context.Context, req app.GenerateQuizRequest) ([]domain.QuizQuestion, error) {
	if req.TopicMode == "" && req.SelectedTopics == nil && req.NumQuestions == 0 {
		plan := w.Plan()
		req.TopicMode = plan.Mode
		req.SelectedTopics = plan.SelectedTopics
		req.NumQuestions = min(plan.Count, app.MaxQuestions)
	}
	if len(req.HistoryIDs) == 0 {
		req.HistoryIDs = w.store.State().SelectedHistoryIDs
	}
	questions, err := w.client.GenerateQuiz(ctx, w.studyID, req)
	if err != nil {
		return nil, err
	}
	w.store.Dispatch(QuizQuestionsReplaced{Questions: questions})
	w.store.Dispatch(HistorySelectionCleared{})
	return questions, nil
}

// RecordHistory saves a finished attempt and adds it to the store.
func (w *Workspace) RecordHistory(ctx context.Context, answers []domain.QuizAnswer, selectedTopics []string) (domain.QuizHistoryEntry, error) {
	entry, err := w.client.RecordHistory(ctx, w.studyID, answers, selectedTopics)
	if err != nil {
		return domain.QuizHistoryEntry{}, err
	}
	w.store.Dispatch(HistoryEntryAdded{Entry: entry})
	return entry, nil
}

// ClearChat empties one chat on the server and in the store.
func (w *Workspace) ClearChat(ctx context.Context, chat domain.ChatContext) error {
	if err := w.client.ClearChat(ctx, w.studyID, chat); err != nil {
		return err
	}
	w.store.Dispatch(ChatCleared{Context: chat})
	return nil
}
