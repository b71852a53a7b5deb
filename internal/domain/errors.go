package domain

import "errors"

var (
	// ErrValidation wraps request validation failures; the message is user facing.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized is returned for missing or invalid credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials is returned by login for an unknown email or wrong password.
	ErrInvalidCredentials = errors.New("Invalid email or password")
	// ErrEmailTaken is returned when registering an email that already exists.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUserNotFound is returned when a user lookup misses.
	ErrUserNotFound = errors.New("user not found")
	// ErrStudyNotFound is returned when a study does not exist or is not owned by the caller.
	ErrStudyNotFound = errors.New("study not found")
	// ErrTopicNotFound indicates an unknown topic id.
	ErrTopicNotFound = errors.New("topic not found")
	// ErrHistoryNotFound indicates an unknown quiz history entry.
	ErrHistoryNotFound = errors.New("quiz history entry not found")
	// ErrNoQuiz is returned when a quiz operation needs questions and there are none.
	ErrNoQuiz = errors.New("no quiz questions")
	// ErrSessionNotFound is returned when a quiz session has not been initialized.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrQuestionOutOfRange indicates a question index outside the quiz.
	ErrQuestionOutOfRange = errors.New("question index out of range")
	// ErrOptionOutOfRange indicates an answer index outside the question's options.
	ErrOptionOutOfRange = errors.New("option index out of range")
	// ErrTransitioning is returned for input that arrives during a question transition.
	ErrTransitioning = errors.New("question transition in progress")
	// ErrQuizComplete is returned for navigation after the results screen is reached.
	ErrQuizComplete = errors.New("quiz already complete")
	// ErrInvalidChatContext indicates an unknown chat context name.
	ErrInvalidChatContext = errors.New("invalid chat context")
	// ErrStreamInFlight is returned when a chat stream for the same context is already running.
	ErrStreamInFlight = errors.New("a response is already streaming for this chat")
)

// ValidationError carries a user facing message and matches ErrValidation.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a ValidationError.
func Invalid(msg string) error {
	return &ValidationError{Message: msg}
}
