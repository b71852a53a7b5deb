package domain

import "time"

// SourceType records where a study's content came from.
type SourceType string

const (
	SourceNotes SourceType = "notes"
	SourcePDF   SourceType = "pdf"
)

// User is an account that owns studies.
type User struct {
	ID           string    `json:"id" bson:"_id"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"-" bson:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
}

// Study is a user's uploaded learning unit plus everything derived from it.
type Study struct {
	ID                  string             `json:"_id" bson:"_id"`
	UserID              string             `json:"userId" bson:"userId"`
	Title               string             `json:"title" bson:"title"`
	Description         string             `json:"description,omitempty" bson:"description,omitempty"`
	Content             string             `json:"content" bson:"content"`
	SourceType          SourceType         `json:"sourceType" bson:"sourceType"`
	PDFFileNames        []string           `json:"pdfFileNames,omitempty" bson:"pdfFileNames,omitempty"`
	Topics              []Topic            `json:"topics,omitempty" bson:"topics,omitempty"`
	QuizQuestions       []QuizQuestion     `json:"quizQuestions,omitempty" bson:"quizQuestions,omitempty"`
	DocumentChatHistory []ChatMessage      `json:"documentChatHistory,omitempty" bson:"documentChatHistory,omitempty"`
	QuizChatHistory     []ChatMessage      `json:"quizChatHistory,omitempty" bson:"quizChatHistory,omitempty"`
	QuizHistory         []QuizHistoryEntry `json:"quizHistory,omitempty" bson:"quizHistory,omitempty"`
	CreatedAt           time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt           time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// StudySummary is the dashboard view of a study.
type StudySummary struct {
	ID          string     `json:"_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	SourceType  SourceType `json:"sourceType"`
	TopicCount  int        `json:"topicCount"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Summary projects a study onto its dashboard view.
func (s Study) Summary() StudySummary {
	return StudySummary{
		ID:          s.ID,
		Title:       s.Title,
		Description: s.Description,
		SourceType:  s.SourceType,
		TopicCount:  len(s.Topics),
		CreatedAt:   s.CreatedAt,
	}
}

// TopicByID returns the topic with the given id.
func (s *Study) TopicByID(id string) (*Topic, bool) {
	for i := range s.Topics {
		if s.Topics[i].ID == id {
			return &s.Topics[i], true
		}
	}
	return nil, false
}

// Topic is an ordered unit of a study's content.
type Topic struct {
	ID              string  `json:"id" bson:"id"`
	Title           string  `json:"title" bson:"title"`
	Icon            string  `json:"icon" bson:"icon"`
	Content         string  `json:"content" bson:"content"`
	Order           int     `json:"order" bson:"order"`
	Learned         bool    `json:"learned" bson:"learned"`
	VideoURL        *string `json:"videoUrl" bson:"videoUrl,omitempty"`
	VideoGenerating bool    `json:"videoGenerating,omitempty" bson:"videoGenerating,omitempty"`
}

// QuizQuestion is a multiple choice question. CorrectAnswer indexes Options.
type QuizQuestion struct {
	Question      string   `json:"question" bson:"question"`
	Options       []string `json:"options" bson:"options"`
	CorrectAnswer int      `json:"correctAnswer" bson:"correctAnswer"`
	Explanation   string   `json:"explanation" bson:"explanation"`
	Hint          string   `json:"hint,omitempty" bson:"hint,omitempty"`
	TopicID       string   `json:"topicId,omitempty" bson:"topicId,omitempty"`
}

// Valid reports whether CorrectAnswer points into Options.
func (q QuizQuestion) Valid() bool {
	return q.CorrectAnswer >= 0 && q.CorrectAnswer < len(q.Options)
}

// OptionText returns the option at i, or "" when i is out of range.
func (q QuizQuestion) OptionText(i int) string {
	if i < 0 || i >= len(q.Options) {
		return ""
	}
	return q.Options[i]
}

// QuizAnswer is one answered question inside a history entry.
type QuizAnswer struct {
	Question      string   `json:"question" bson:"question"`
	Options       []string `json:"options" bson:"options"`
	CorrectAnswer int      `json:"correctAnswer" bson:"correctAnswer"`
	UserAnswer    int      `json:"userAnswer" bson:"userAnswer"` // -1 when unanswered
	IsCorrect     bool     `json:"isCorrect" bson:"isCorrect"`
	TopicID       string   `json:"topicId,omitempty" bson:"topicId,omitempty"`
}

// QuizHistoryEntry is an immutable snapshot of one completed quiz attempt.
type QuizHistoryEntry struct {
	ID             string       `json:"id" bson:"id"`
	TakenAt        time.Time    `json:"takenAt" bson:"takenAt"`
	TotalQuestions int          `json:"totalQuestions" bson:"totalQuestions"`
	CorrectCount   int          `json:"correctCount" bson:"correctCount"`
	WrongCount     int          `json:"wrongCount" bson:"wrongCount"`
	Percentage     int          `json:"percentage" bson:"percentage"`
	SelectedTopics []string     `json:"selectedTopics" bson:"selectedTopics"`
	Answers        []QuizAnswer `json:"answers" bson:"answers"`
}

// Role is the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is a single chat turn.
type ChatMessage struct {
	Role      Role       `json:"role" bson:"role"`
	Content   string     `json:"content" bson:"content"`
	Timestamp *time.Time `json:"timestamp,omitempty" bson:"timestamp,omitempty"`
}

// QuestionRecommendation bounds the number of questions to generate.
type QuestionRecommendation struct {
	Min       int    `json:"min"`
	Max       int    `json:"max"`
	Suggested int    `json:"suggested"`
	Label     string `json:"label"`
}

// MasteredConcept is a question/answer pair answered correctly at least once.
type MasteredConcept struct {
	Answer     string `json:"answer"`
	Question   string `json:"question"`
	TopicID    string `json:"topicId,omitempty"`
	TopicTitle string `json:"topicTitle,omitempty"`
	Count      int    `json:"count"`
}

// WrongQuestion summarises a missed question for the generator.
type WrongQuestion struct {
	Question      string `json:"question"`
	UserAnswer    string `json:"userAnswer"`
	CorrectAnswer string `json:"correctAnswer"`
	IsCorrect     bool   `json:"isCorrect"`
}

// PreviousResults conditions quiz generation on earlier mistakes.
type PreviousResults struct {
	Correct        int             `json:"correct"`
	Wrong          int             `json:"wrong"`
	Total          int             `json:"total"`
	WrongQuestions []WrongQuestion `json:"wrongQuestions"`
}

// QuizResult is one row of a finished quiz sent for analysis.
type QuizResult struct {
	Question      string `json:"question"`
	UserAnswer    string `json:"userAnswer"`
	CorrectAnswer string `json:"correctAnswer"`
	IsCorrect     bool   `json:"isCorrect"`
	TopicID       string `json:"topicId,omitempty"`
}

// Video generation statuses reported by the external renderer.
const (
	VideoGeneratingScript   = "generating_script"
	VideoStarted            = "started"
	VideoGeneratingAudio    = "generating_audio"
	VideoAudioComplete      = "audio_complete"
	VideoGeneratingCaptions = "generating_captions"
	VideoBundling           = "bundling"
	VideoRendering          = "rendering"
	VideoComplete           = "complete"
	VideoError              = "error"
)

// VideoProgress is a progress update from the video pipeline.
type VideoProgress struct {
	Status   string `json:"status"`
	Progress *int   `json:"progress,omitempty"`
	Error    string `json:"error,omitempty"`
	VideoURL string `json:"videoUrl,omitempty"`
}

// Clone returns a deep copy that shares no slices or pointers with s.
func (s Study) Clone() Study {
	c := s
	c.PDFFileNames = cloneSlice(s.PDFFileNames)
	if s.Topics != nil {
		c.Topics = make([]Topic, len(s.Topics))
		for i, t := range s.Topics {
			if t.VideoURL != nil {
				u := *t.VideoURL
				t.VideoURL = &u
			}
			c.Topics[i] = t
		}
	}
	if s.QuizQuestions != nil {
		c.QuizQuestions = make([]QuizQuestion, len(s.QuizQuestions))
		for i, q := range s.QuizQuestions {
			q.Options = cloneSlice(q.Options)
			c.QuizQuestions[i] = q
		}
	}
	c.DocumentChatHistory = cloneMessages(s.DocumentChatHistory)
	c.QuizChatHistory = cloneMessages(s.QuizChatHistory)
	if s.QuizHistory != nil {
		c.QuizHistory = make([]QuizHistoryEntry, len(s.QuizHistory))
		for i, h := range s.QuizHistory {
			h.SelectedTopics = cloneSlice(h.SelectedTopics)
			if h.Answers != nil {
				answers := make([]QuizAnswer, len(h.Answers))
				for j, a := range h.Answers {
					a.Options = cloneSlice(a.Options)
					answers[j] = a
				}
				h.Answers = answers
			}
			c.QuizHistory[i] = h
		}
	}
	return c
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	return append(make([]T, 0, len(in)), in...)
}

func cloneMessages(in []ChatMessage) []ChatMessage {
	if in == nil {
		return nil
	}
	out := make([]ChatMessage, len(in))
	for i, m := range in {
		if m.Timestamp != nil {
			ts := *m.Timestamp
			m.Timestamp = &ts
		}
		out[i] = m
	}
	return out
}
