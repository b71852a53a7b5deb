package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"study-service/internal/app"
	"study-service/internal/domain"
)

func (h *Handler) generateQuiz(c *gin.Context) {
	var req app.GenerateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid quiz request")
		return
	}
	questions, err := h.quiz.Generate(c.Request.Context(), currentUser(c), c.Param("id"), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": questions})
}

type analyzeRequest struct {
	Results []domain.QuizResult `json:"results"`
}

func (h *Handler) analyzeQuiz(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "results are required")
		return
	}
	res, err := h.quiz.Analyze(c.Request.Context(), currentUser(c), c.Param("id"), req.Results)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type historyRequest struct {
	Answers        []domain.QuizAnswer `json:"answers"`
	SelectedTopics []string            `json:"selectedTopics"`
}

func (h *Handler) recordHistory(c *gin.Context) {
	var req historyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "answers are required")
		return
	}
	entry, err := h.quiz.RecordHistory(c.Request.Context(), currentUser(c), c.Param("id"), req.Answers, req.SelectedTopics)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"historyEntry": entry})
}

func (h *Handler) deleteHistory(c *gin.Context) {
	if err := h.quiz.DeleteHistory(c.Request.Context(), currentUser(c), c.Param("id"), c.Param("historyId")); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "History entry deleted"})
}

func (h *Handler) masteredConcepts(c *gin.Context) {
	concepts, err := h.quiz.MasteredConcepts(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if concepts == nil {
		concepts = []domain.MasteredConcept{}
	}
	c.JSON(http.StatusOK, gin.H{"concepts": concepts})
}
