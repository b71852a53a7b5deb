package domain

// ChatContext selects which of a study's chat histories a message belongs to.
type ChatContext string

const (
	ChatDocument ChatContext = "document"
	ChatQuiz     ChatContext = "quiz"
)

// ParseChatContext validates a context name from a URL or request body.
func ParseChatContext(raw string) (ChatContext, error) {
	switch ChatContext(raw) {
	case ChatDocument, ChatQuiz:
		return ChatContext(raw), nil
	default:
		return "", ErrInvalidChatContext
	}
}

// ChatHistory returns the message list for the given context.
func (s *Study) ChatHistory(c ChatContext) []ChatMessage {
	if c == ChatQuiz {
		return s.QuizChatHistory
	}
	return s.DocumentChatHistory
}

// SetChatHistory replaces the message list for the given context.
func (s *Study) SetChatHistory(c ChatContext, msgs []ChatMessage) {
	if c == ChatQuiz {
		s.QuizChatHistory = msgs
		return
	}
	s.DocumentChatHistory = msgs
}

// QuizChatContext describes the question on screen when a quiz-context chat is sent.
type QuizChatContext struct {
	Question       string   `json:"question"`
	Options        []string `json:"options"`
	HasAnswered    bool     `json:"hasAnswered"`
	SelectedOption *string  `json:"selectedOption"`
	IsCorrect      *bool    `json:"isCorrect"`
	CorrectAnswer  *string  `json:"correctAnswer"`
}
