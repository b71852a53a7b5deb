package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"study-service/internal/domain"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func viewOf(u domain.User) userView { return userView{ID: u.ID, Email: u.Email} }

func (h *Handler) setAuthCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AuthCookie, token, maxAge, "/", "", h.secureCookie, true)
}

func (h *Handler) register(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Email and password are required")
		return
	}
	user, err := h.auth.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	token, err := h.auth.IssueToken(user.ID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	h.setAuthCookie(c, token, int(h.auth.TokenTTL().Seconds()))
	c.JSON(http.StatusCreated, gin.H{"message": "User created successfully", "user": viewOf(user)})
}

func (h *Handler) login(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Email and password are required")
		return
	}
	user, token, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	h.setAuthCookie(c, token, int(h.auth.TokenTTL().Seconds()))
	c.JSON(http.StatusOK, gin.H{"message": "Login successful", "user": viewOf(user)})
}

func (h *Handler) logout(c *gin.Context) {
	h.setAuthCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (h *Handler) me(c *gin.Context) {
	user, err := h.auth.CurrentUser(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": viewOf(user)})
}
