package quiz

import (
	"strings"
	"testing"
	"time"

	"study-service/internal/domain"
)

func intp(i int) *int { return &i }

func sampleTopics() []domain.Topic {
	return []domain.Topic{
		{ID: "t1", Title: "Cells", Learned: true},
		{ID: "t2", Title: "Genetics"},
		{ID: "t3", Title: "Evolution"},
	}
}

func TestRecommendFormulas(t *testing.T) {
	for k := 1; k <= 20; k++ {
		rec := Recommend(ModeCustom, 25, k)
		if rec.Suggested != k*10 {
			t.Fatalf("k=%d: suggested %d", k, rec.Suggested)
		}
		if rec.Min != max(5, k*5) {
			t.Fatalf("k=%d: min %d", k, rec.Min)
		}
		if rec.Max != k*15 {
			t.Fatalf("k=%d: max %d", k, rec.Max)
		}
	}
}

func TestRecommendLabels(t *testing.T) {
	if got := Recommend(ModeAll, 3, 0); got.Label != "All 3 topics" || got.Suggested != 30 {
		t.Fatalf("all mode: %+v", got)
	}
	empty := Recommend(ModeCustom, 3, 0)
	if empty.Label != "Select topics" {
		t.Fatalf("expected select label, got %q", empty.Label)
	}
	if empty.Min != 5 || empty.Suggested != 10 || empty.Max != 15 {
		t.Fatalf("expected k clamped to 1, got %+v", empty)
	}
	if got := Recommend(ModeReview, 3, 2); got.Label != "2 of 3 topics" {
		t.Fatalf("review label %q", got.Label)
	}
	if got := Recommend(ModeToLearn, 0, 0); got.Suggested != 10 {
		t.Fatalf("zero topics should count as one, got %+v", got)
	}
}

func TestSelectTopicsByMode(t *testing.T) {
	topics := sampleTopics()
	if got := SelectTopics(ModeToLearn, topics, nil); strings.Join(got, ",") != "t2,t3" {
		t.Fatalf("to_learn: %v", got)
	}
	if got := SelectTopics(ModeReview, topics, nil); strings.Join(got, ",") != "t1" {
		t.Fatalf("review: %v", got)
	}
	if got := SelectTopics(ModeCustom, topics, []string{"t3", "nope", "t1"}); strings.Join(got, ",") != "t1,t3" {
		t.Fatalf("custom: %v", got)
	}
}

func TestPlannerKeepsExplicitCountUntilSelectionChanges(t *testing.T) {
	p := NewPlanner(sampleTopics())
	if p.Count() != 30 {
		t.Fatalf("expected 30 for all topics, got %d", p.Count())
	}
	p.SetCount(12)
	if p.Count() != 12 {
		t.Fatalf("explicit count lost: %d", p.Count())
	}

	p.SetMode(ModeCustom)
	if p.Count() != 10 || p.Recommendation().Label != "Select topics" {
		t.Fatalf("custom with nothing selected: count=%d rec=%+v", p.Count(), p.Recommendation())
	}
	p.SetCount(7)
	p.Toggle("t2")
	if p.Count() != 10 {
		t.Fatalf("toggle should recompute, got %d", p.Count())
	}
	p.Toggle("t3")
	if p.Count() != 20 || p.Recommendation().Label != "2 of 3 topics" {
		t.Fatalf("two topics: count=%d rec=%+v", p.Count(), p.Recommendation())
	}
	p.Toggle("t2")
	if got := p.SelectedTopics(); len(got) != 1 || got[0] != "t3" {
		t.Fatalf("toggle off failed: %v", got)
	}
	p.Toggle("missing")
	if len(p.SelectedTopics()) != 1 {
		t.Fatalf("unknown topic should be ignored")
	}
}

func history() []domain.QuizHistoryEntry {
	opts := []string{"A", "B", "C"}
	return []domain.QuizHistoryEntry{
		{
			ID: "h1", CorrectCount: 1, WrongCount: 1,
			Answers: []domain.QuizAnswer{
				{Question: "Q1", Options: opts, CorrectAnswer: 0, UserAnswer: 0, IsCorrect: true, TopicID: "t1"},
				{Question: "Q2", Options: opts, CorrectAnswer: 1, UserAnswer: 2, IsCorrect: false, TopicID: "t2"},
			},
		},
		{
			ID: "h2", CorrectCount: 2, WrongCount: 1,
			Answers: []domain.QuizAnswer{
				{Question: "Q3", Options: opts, CorrectAnswer: 2, UserAnswer: 2, IsCorrect: true},
				{Question: "Q1", Options: opts, CorrectAnswer: 0, UserAnswer: 0, IsCorrect: true, TopicID: "t1"},
				{Question: "Q4", Options: opts, CorrectAnswer: 0, UserAnswer: -1, IsCorrect: false, TopicID: "t3"},
			},
		},
	}
}

func TestMasteredConceptsRanksByRepetition(t *testing.T) {
	got := MasteredConcepts(history(), sampleTopics())
	if len(got) != 2 {
		t.Fatalf("expected 2 concepts, got %d", len(got))
	}
	if got[0].Question != "Q1" || got[0].Count != 2 || got[0].Answer != "A" || got[0].TopicTitle != "Cells" {
		t.Fatalf("unexpected top concept %+v", got[0])
	}
	if got[1].Question != "Q3" || got[1].Count != 1 || got[1].TopicTitle != "" {
		t.Fatalf("unexpected second concept %+v", got[1])
	}
}

func TestMasteredConceptsIsIdempotent(t *testing.T) {
	h := history()
	first := MasteredConcepts(h, sampleTopics())
	second := MasteredConcepts(h, sampleTopics())
	if len(first) != len(second) {
		t.Fatalf("length changed")
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("entry %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestKnownConceptsDistinctQuestions(t *testing.T) {
	got := KnownConcepts(history())
	if strings.Join(got, ",") != "Q1,Q3" {
		t.Fatalf("unexpected known concepts %v", got)
	}
	if KnownConcepts(nil) != nil {
		t.Fatalf("expected nil for empty history")
	}
}

func TestFocusFromHistoryUsesSelectedEntries(t *testing.T) {
	f := FocusFromHistory(history(), []string{"h2"})
	if f.Results == nil || f.WrongCount != 1 {
		t.Fatalf("expected one wrong question, got %+v", f)
	}
	wq := f.Results.WrongQuestions[0]
	if wq.Question != "Q4" || wq.UserAnswer != "Not answered" || wq.CorrectAnswer != "A" {
		t.Fatalf("unexpected wrong question %+v", wq)
	}
	if f.Results.Total != 3 || f.Results.Correct != 2 {
		t.Fatalf("unexpected totals %+v", f.Results)
	}
	if len(f.WrongTopics) != 1 || f.WrongTopics[0] != "t3" {
		t.Fatalf("unexpected wrong topics %v", f.WrongTopics)
	}

	none := FocusFromHistory(history(), []string{"missing"})
	if none.Results != nil {
		t.Fatalf("expected nil results without mistakes")
	}
}

func TestFocusFromAnswersAndCount(t *testing.T) {
	questions := []domain.QuizQuestion{
		{Question: "Q1", Options: []string{"a", "b"}, CorrectAnswer: 0, TopicID: "t1"},
		{Question: "Q2", Options: []string{"a", "b"}, CorrectAnswer: 1, TopicID: "t2"},
		{Question: "Q3", Options: []string{"a", "b"}, CorrectAnswer: 1},
	}
	f := FocusFromAnswers(questions, []*int{intp(0), intp(0), nil})
	if f.WrongCount != 2 || f.Results.Correct != 1 || f.Results.Total != 3 {
		t.Fatalf("unexpected focus %+v", f.Results)
	}
	if len(f.WrongTopics) != 1 || f.WrongTopics[0] != "t2" {
		t.Fatalf("unexpected topics %v", f.WrongTopics)
	}

	cases := map[int]int{0: 5, 1: 5, 2: 5, 3: 6, 7: 14, 8: 15, 30: 15}
	for wrong, want := range cases {
		if got := FocusQuestionCount(wrong); got != want {
			t.Fatalf("FocusQuestionCount(%d) = %d, want %d", wrong, got, want)
		}
	}
}

func TestScoreBounds(t *testing.T) {
	questions := []domain.QuizQuestion{
		{Options: []string{"a", "b"}, CorrectAnswer: 1},
		{Options: []string{"a", "b"}, CorrectAnswer: 0},
	}
	s := Score(questions, []*int{intp(1), nil})
	if s.Correct != 1 || s.Total != 2 || s.Percentage() != 50 {
		t.Fatalf("unexpected score %+v", s)
	}
	empty := Score(nil, nil)
	if empty.Total != 0 || empty.Percentage() != 0 {
		t.Fatalf("empty quiz should not divide, got %+v", empty)
	}
}

func TestBuildHistoryEntry(t *testing.T) {
	questions := []domain.QuizQuestion{
		{Question: "Q1", Options: []string{"a", "b"}, CorrectAnswer: 1, TopicID: "t1"},
		{Question: "Q2", Options: []string{"a", "b"}, CorrectAnswer: 0},
		{Question: "Q3", Options: []string{"a", "b"}, CorrectAnswer: 0},
	}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	e := BuildHistoryEntry("h", questions, []*int{intp(1), intp(1)}, nil, now)
	if e.CorrectCount != 1 || e.WrongCount != 2 || e.Percentage != 33 || e.TotalQuestions != 3 {
		t.Fatalf("unexpected entry %+v", e)
	}
	if e.Answers[2].UserAnswer != -1 || e.Answers[2].IsCorrect {
		t.Fatalf("unanswered question should record -1")
	}
	if e.SelectedTopics == nil || !e.TakenAt.Equal(now) {
		t.Fatalf("expected empty topic list and timestamp")
	}
}

func TestFallbackAnalysis(t *testing.T) {
	results := []domain.QuizResult{
		{Question: "Q1", IsCorrect: true},
		{Question: "Q2", IsCorrect: false},
	}
	got := FallbackAnalysis(results)
	if !strings.Contains(got, "**1/2** (50%)") {
		t.Fatalf("missing score line: %s", got)
	}
	if !strings.Contains(got, "Keep studying!") || !strings.Contains(got, "- Q2\n") {
		t.Fatalf("missing review section: %s", got)
	}
	great := FallbackAnalysis([]domain.QuizResult{{IsCorrect: true}})
	if !strings.Contains(great, "Great job!") || strings.Contains(great, "Areas to Review") {
		t.Fatalf("unexpected perfect analysis: %s", great)
	}
}

func TestPlannerSelectAllAndClear(t *testing.T) {
	p := NewPlanner(sampleTopics())
	p.SelectAll()
	if p.SelectedTopics() != nil {
		t.Fatalf("select all outside custom mode should be ignored")
	}
	p.SetMode(ModeCustom)
	p.SelectAll()
	if len(p.SelectedTopics()) != 3 || p.Count() != 30 {
		t.Fatalf("select all: %v count=%d", p.SelectedTopics(), p.Count())
	}
	p.Clear()
	if len(p.SelectedTopics()) != 0 || p.Recommendation().Label != "Select topics" {
		t.Fatalf("clear: %v %+v", p.SelectedTopics(), p.Recommendation())
	}
}

func TestPlannerFollowsTopicChanges(t *testing.T) {
	p := NewPlanner(sampleTopics())
	p.SetMode(ModeToLearn)
	p.SetCount(9)

	p.SetTopics(sampleTopics())
	if p.Count() != 9 {
		t.Fatalf("unchanged topics should keep the explicit count, got %d", p.Count())
	}

	topics := sampleTopics()
	topics[1].Learned = true
	p.SetTopics(topics)
	if got := p.SelectedTopics(); len(got) != 1 || got[0] != "t3" {
		t.Fatalf("to_learn selection not refreshed: %v", got)
	}
	if p.Count() != 10 {
		t.Fatalf("selection change should reset the count, got %d", p.Count())
	}
}
