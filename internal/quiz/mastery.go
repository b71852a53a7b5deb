package quiz

import (
	"sort"

	"study-service/internal/domain"
)

const (
	focusMinQuestions = 5
	focusMaxQuestions = 15
	notAnswered       = "Not answered"
)

// MasteredConcepts aggregates every correct answer across the history into
// concepts keyed by (correct answer text, question text), most repeated first.
// Ties keep the order in which concepts were first seen.
func MasteredConcepts(history []domain.QuizHistoryEntry, topics []domain.Topic) []domain.MasteredConcept {
	type key struct{ answer, question string }
	index := make(map[key]int)
	var concepts []domain.MasteredConcept

	for _, entry := range history {
		for _, ans := range entry.Answers {
			if !ans.IsCorrect {
				continue
			}
			answer := optionAt(ans.Options, ans.CorrectAnswer)
			k := key{answer, ans.Question}
			if i, ok := index[k]; ok {
				concepts[i].Count++
				continue
			}
			c := domain.MasteredConcept{
				Answer:   answer,
				Question: ans.Question,
				TopicID:  ans.TopicID,
				Count:    1,
			}
			if t, ok := findTopic(topics, ans.TopicID); ok && ans.TopicID != "" {
				c.TopicTitle = t.Title
			}
			index[k] = len(concepts)
			concepts = append(concepts, c)
		}
	}

	sort.SliceStable(concepts, func(i, j int) bool {
		return concepts[i].Count > concepts[j].Count
	})
	return concepts
}

// KnownConcepts lists the distinct question texts answered correctly anywhere in
// the history, in first-seen order. Nil means there is nothing to avoid.
func KnownConcepts(history []domain.QuizHistoryEntry) []string {
	seen := make(map[string]bool)
	var out []string
	for _, entry := range history {
		for _, ans := range entry.Answers {
			if !ans.IsCorrect || seen[ans.Question] {
				continue
			}
			seen[ans.Question] = true
			out = append(out, ans.Question)
		}
	}
	return out
}

// Focus is the input for a mistakes-focused regeneration.
type Focus struct {
	Results     *domain.PreviousResults
	WrongTopics []string
	WrongCount  int
	FromHistory bool
}

// FocusFromHistory collects wrong answers from the selected history entries.
// Results is nil when the selection contains no mistakes.
func FocusFromHistory(history []domain.QuizHistoryEntry, selectedIDs []string) Focus {
	wanted := make(map[string]bool, len(selectedIDs))
	for _, id := range selectedIDs {
		wanted[id] = true
	}
	var (
		wrong          []domain.WrongQuestion
		topics         []string
		correct, total int
		missed         int
	)
	seenTopic := make(map[string]bool)
	for _, entry := range history {
		if !wanted[entry.ID] {
			continue
		}
		correct += entry.CorrectCount
		missed += entry.WrongCount
		for _, ans := range entry.Answers {
			if ans.IsCorrect {
				continue
			}
			wrong = append(wrong, domain.WrongQuestion{
				Question:      ans.Question,
				UserAnswer:    answerText(ans.Options, ans.UserAnswer),
				CorrectAnswer: optionAt(ans.Options, ans.CorrectAnswer),
			})
			if ans.TopicID != "" && !seenTopic[ans.TopicID] {
				seenTopic[ans.TopicID] = true
				topics = append(topics, ans.TopicID)
			}
		}
	}
	total = correct + missed
	f := Focus{WrongTopics: topics, WrongCount: len(wrong), FromHistory: true}
	if len(wrong) > 0 {
		f.Results = &domain.PreviousResults{
			Correct:        correct,
			Wrong:          missed,
			Total:          total,
			WrongQuestions: wrong,
		}
	}
	return f
}

// FocusFromAnswers collects wrong answers from the quiz currently on screen.
// selected[i] is nil for unanswered questions.
func FocusFromAnswers(questions []domain.QuizQuestion, selected []*int) Focus {
	var (
		wrong  []domain.WrongQuestion
		topics []string
	)
	seenTopic := make(map[string]bool)
	for i, q := range questions {
		sel := selectedAt(selected, i)
		if sel == q.CorrectAnswer {
			continue
		}
		wrong = append(wrong, domain.WrongQuestion{
			Question:      q.Question,
			UserAnswer:    answerText(q.Options, sel),
			CorrectAnswer: q.OptionText(q.CorrectAnswer),
		})
		if q.TopicID != "" && !seenTopic[q.TopicID] {
			seenTopic[q.TopicID] = true
			topics = append(topics, q.TopicID)
		}
	}
	return Focus{
		Results: &domain.PreviousResults{
			Correct:        len(questions) - len(wrong),
			Wrong:          len(wrong),
			Total:          len(questions),
			WrongQuestions: wrong,
		},
		WrongTopics: topics,
		WrongCount:  len(wrong),
	}
}

// FocusQuestionCount sizes a mistakes-focused quiz: two per mistake, clamped to [5, 15].
func FocusQuestionCount(wrong int) int {
	return min(focusMaxQuestions, max(focusMinQuestions, wrong*2))
}

func optionAt(options []string, i int) string {
	if i < 0 || i >= len(options) {
		return ""
	}
	return options[i]
}

func answerText(options []string, i int) string {
	if s := optionAt(options, i); s != "" {
		return s
	}
	return notAnswered
}

func selectedAt(selected []*int, i int) int {
	if i >= len(selected) || selected[i] == nil {
		return -1
	}
	return *selected[i]
}
