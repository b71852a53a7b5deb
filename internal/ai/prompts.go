package ai

import (
	"fmt"
	"strings"

	"study-service/internal/domain"
)

const topicsSystemPrompt = `You split study material into a small number of coherent topics.
Each topic has a short title, a single emoji icon and the markdown content that belongs to it.
Keep the original wording of the material; do not summarise it away. Return JSON only.`

func topicsUserPrompt(title, content string) string {
	return fmt.Sprintf("Study title: %s\n\nMaterial:\n%s", title, content)
}

const quizSystemPrompt = `You write multiple choice quiz questions for a student.
Every question has 4 options, exactly one correct. correctAnswer is the 0-based index of the correct option.
explanation says why the answer is right. hint nudges without giving the answer away.
topicId is the id of the topic the question is about, or "" when it spans topics. Return JSON only.`

func quizUserPrompt(req QuizRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Study title: %s\n", req.StudyTitle)
	fmt.Fprintf(&b, "Write exactly %d questions.\n\n", req.NumQuestions)
	if len(req.Topics) > 0 {
		b.WriteString("Topics:\n")
		for _, t := range req.Topics {
			fmt.Fprintf(&b, "- id=%s title=%q\n", t.ID, t.Title)
		}
		b.WriteString("\n")
	}
	if pr := req.PreviousResults; pr != nil && len(pr.WrongQuestions) > 0 {
		fmt.Fprintf(&b, "The student previously scored %d/%d. Focus on the concepts behind these missed questions, asking about them in new ways:\n", pr.Correct, pr.Total)
		for _, w := range pr.WrongQuestions {
			fmt.Fprintf(&b, "- %s (answered %q, correct %q)\n", w.Question, w.UserAnswer, w.CorrectAnswer)
		}
		b.WriteString("\n")
	}
	if len(req.KnownConcepts) > 0 {
		b.WriteString("The student already knows these; avoid asking about them again where possible:\n")
		for _, k := range req.KnownConcepts {
			fmt.Fprintf(&b, "- %s\n", k)
		}
		b.WriteString("\n")
	}
	b.WriteString("Material:\n")
	b.WriteString(req.Content)
	return b.String()
}

const analysisSystemPrompt = `You are a study coach. Given quiz results, write a short markdown analysis:
the score, what the student understands well, which concepts to review and one concrete next step.`

func analysisUserPrompt(title string, results []domain.QuizResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Study: %s\n\n", title)
	for i, r := range results {
		mark := "wrong"
		if r.IsCorrect {
			mark = "correct"
		}
		fmt.Fprintf(&b, "%d. %s\n   answered: %s\n   correct: %s\n   result: %s\n", i+1, r.Question, r.UserAnswer, r.CorrectAnswer, mark)
	}
	return b.String()
}

const scriptSystemPrompt = `You write a punchy 45 second narrated script for a vertical short video
that teaches one topic. Plain spoken sentences only, no stage directions, no emoji. Return JSON only.`

func scriptUserPrompt(studyTitle string, topic domain.Topic) string {
	return fmt.Sprintf("Study: %s\nTopic: %s\n\n%s", studyTitle, topic.Title, topic.Content)
}

func chatSystemPrompt(req ChatRequest) string {
	var b strings.Builder
	b.WriteString("You are a friendly tutor helping a student with their study material. Answer in markdown.\n")
	fmt.Fprintf(&b, "Study: %s\n\nMaterial:\n%s\n", req.StudyTitle, req.Content)
	if req.Context != domain.ChatQuiz || req.Quiz == nil {
		return b.String()
	}
	q := req.Quiz
	b.WriteString("\nThe student is taking a quiz. Current question:\n")
	b.WriteString(q.Question + "\n")
	for i, o := range q.Options {
		fmt.Fprintf(&b, "%c) %s\n", 'A'+i, o)
	}
	if !q.HasAnswered {
		b.WriteString("They have not answered yet. Do not reveal the answer; give hints only.\n")
		return b.String()
	}
	if q.SelectedOption != nil {
		fmt.Fprintf(&b, "They chose: %s\n", *q.SelectedOption)
	}
	if q.IsCorrect != nil {
		fmt.Fprintf(&b, "That was %s.\n", map[bool]string{true: "correct", false: "incorrect"}[*q.IsCorrect])
	}
	if q.CorrectAnswer != nil {
		fmt.Fprintf(&b, "The correct answer is: %s\n", *q.CorrectAnswer)
	}
	return b.String()
}
