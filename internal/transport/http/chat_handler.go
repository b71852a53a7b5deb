package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"study-service/internal/app"
	"study-service/internal/chatstream"
	"study-service/internal/domain"
)

type chatStreamRequest struct {
	Message             string                  `json:"message"`
	ActiveTab           string                  `json:"activeTab"`
	CurrentQuizQuestion *domain.QuizChatContext `json:"currentQuizQuestion"`
}

func (h *Handler) chatHistory(c *gin.Context) {
	chatCtx, err := domain.ParseChatContext(c.Param("context"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	msgs, err := h.chat.History(c.Request.Context(), currentUser(c), c.Param("id"), chatCtx)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *Handler) clearChat(c *gin.Context) {
	chatCtx, err := domain.ParseChatContext(c.Param("context"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if err := h.chat.Clear(c.Request.Context(), currentUser(c), c.Param("id"), chatCtx); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Chat history cleared"})
}

// streamChat answers with JSON errors until the turn is accepted, then
// switches to the event stream.
func (h *Handler) streamChat(c *gin.Context) {
	var req chatStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Message is required")
		return
	}
	chatReq := app.ChatRequest{Message: req.Message, Context: domain.ChatContext(req.ActiveTab)}
	if chatReq.Context == domain.ChatQuiz {
		chatReq.Quiz = req.CurrentQuizQuestion
	}
	turn, err := h.chat.Begin(c.Request.Context(), currentUser(c), c.Param("id"), chatReq)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	w := chatstream.NewWriter(c.Writer)
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()
	if err := turn.Run(c.Request.Context(), w); err != nil {
		h.log.Warn("chat stream ended with error", "study_id", c.Param("id"), "error", err)
	}
}
