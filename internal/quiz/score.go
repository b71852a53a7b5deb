package quiz

import (
	"fmt"
	"math"
	"strings"
	"time"

	"study-service/internal/domain"
)

// ScoreResult is the correct count over the quiz size.
type ScoreResult struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// Percentage is the rounded score, 0 for an empty quiz.
func (s ScoreResult) Percentage() int {
	return Percentage(s.Correct, s.Total)
}

// Score counts questions whose selected option equals the correct one.
func Score(questions []domain.QuizQuestion, selected []*int) ScoreResult {
	res := ScoreResult{Total: len(questions)}
	for i, q := range questions {
		if selectedAt(selected, i) == q.CorrectAnswer {
			res.Correct++
		}
	}
	return res
}

// Percentage rounds correct/total to a whole percent. total <= 0 yields 0.
func Percentage(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(total) * 100))
}

// BuildHistoryEntry snapshots a finished quiz.
func BuildHistoryEntry(id string, questions []domain.QuizQuestion, selected []*int, selectedTopics []string, takenAt time.Time) domain.QuizHistoryEntry {
	answers := make([]domain.QuizAnswer, len(questions))
	for i, q := range questions {
		answers[i] = domain.QuizAnswer{
			Question:      q.Question,
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
			UserAnswer:    selectedAt(selected, i),
			TopicID:       q.TopicID,
		}
	}
	return HistoryEntryFromAnswers(id, answers, selectedTopics, takenAt)
}

// HistoryEntryFromAnswers derives the aggregate counts from answer records.
// Correctness is recomputed from the indexes rather than trusted from the caller.
func HistoryEntryFromAnswers(id string, answers []domain.QuizAnswer, selectedTopics []string, takenAt time.Time) domain.QuizHistoryEntry {
	correct := 0
	for i := range answers {
		answers[i].IsCorrect = answers[i].UserAnswer >= 0 && answers[i].UserAnswer == answers[i].CorrectAnswer
		if answers[i].IsCorrect {
			correct++
		}
	}
	if selectedTopics == nil {
		selectedTopics = []string{}
	}
	return domain.QuizHistoryEntry{
		ID:             id,
		TakenAt:        takenAt,
		TotalQuestions: len(answers),
		CorrectCount:   correct,
		WrongCount:     len(answers) - correct,
		Percentage:     Percentage(correct, len(answers)),
		SelectedTopics: selectedTopics,
		Answers:        answers,
	}
}

// Results turns the on-screen quiz into analysis rows.
func Results(questions []domain.QuizQuestion, selected []*int) []domain.QuizResult {
	out := make([]domain.QuizResult, len(questions))
	for i, q := range questions {
		sel := selectedAt(selected, i)
		out[i] = domain.QuizResult{
			Question:      q.Question,
			UserAnswer:    answerText(q.Options, sel),
			CorrectAnswer: q.OptionText(q.CorrectAnswer),
			IsCorrect:     sel == q.CorrectAnswer,
			TopicID:       q.TopicID,
		}
	}
	return out
}

// FallbackAnalysis is the locally computed report used when the AI analysis fails.
func FallbackAnalysis(results []domain.QuizResult) string {
	correct := 0
	for _, r := range results {
		if r.IsCorrect {
			correct++
		}
	}
	total := len(results)
	pct := Percentage(correct, total)

	var b strings.Builder
	b.WriteString("## 📊 Quiz Analysis\n\n")
	fmt.Fprintf(&b, "You scored **%d/%d** (%d%%)\n\n", correct, total, pct)

	switch {
	case pct >= 80:
		b.WriteString("### ✅ Great job!\nYou have a strong understanding of this material.\n\n")
	case pct >= 60:
		b.WriteString("### 💡 Good effort!\nYou're on the right track, but there's room for improvement.\n\n")
	default:
		b.WriteString("### 📚 Keep studying!\nReview the material and try again.\n\n")
	}

	wrongHeader := false
	for _, r := range results {
		if r.IsCorrect {
			continue
		}
		if !wrongHeader {
			b.WriteString("### ⚠️ Areas to Review:\n")
			wrongHeader = true
		}
		fmt.Fprintf(&b, "- %s\n", r.Question)
	}
	return b.String()
}
