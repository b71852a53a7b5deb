package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"study-service/internal/ai"
	"study-service/internal/domain"
	"study-service/internal/logger"
	"study-service/internal/video"
)

// errorBody is the shape every failed request returns.
type errorBody struct {
	Error string `json:"error"`
}

// statusFor maps service errors to an HTTP status and a client-facing message.
func statusFor(err error) (int, string) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Message
	case errors.Is(err, domain.ErrInvalidChatContext),
		errors.Is(err, domain.ErrQuestionOutOfRange),
		errors.Is(err, domain.ErrOptionOutOfRange):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, domain.ErrStudyNotFound):
		return http.StatusNotFound, "Study not found"
	case errors.Is(err, domain.ErrTopicNotFound):
		return http.StatusNotFound, "Topic not found"
	case errors.Is(err, domain.ErrHistoryNotFound),
		errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrEmailTaken):
		return http.StatusConflict, "User already exists"
	case errors.Is(err, domain.ErrStreamInFlight),
		errors.Is(err, domain.ErrNoQuiz),
		errors.Is(err, domain.ErrQuizComplete),
		errors.Is(err, domain.ErrTransitioning):
		return http.StatusConflict, err.Error()
	case ai.IsRateLimit(err):
		return http.StatusTooManyRequests, "AI provider is rate limited, try again shortly"
	}

	var unavailable *ai.ErrProviderUnavailable
	var invalid *ai.ErrInvalidResponse
	switch {
	case errors.As(err, &unavailable):
		return http.StatusServiceUnavailable, "AI provider unavailable"
	case errors.As(err, &invalid):
		return http.StatusBadGateway, "AI returned an invalid response"
	case errors.Is(err, video.ErrTimeout):
		return http.StatusGatewayTimeout, err.Error()
	case errors.Is(err, video.ErrFailed), errors.Is(err, video.ErrConnection):
		return http.StatusBadGateway, err.Error()
	}
	return http.StatusInternalServerError, "Internal server error"
}

func respondError(c *gin.Context, log *logger.Logger, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, errorBody{Error: msg})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: msg})
}
