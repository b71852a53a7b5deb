package http

import (
	"context"

	"github.com/gin-gonic/gin"

	"study-service/internal/domain"
)

type videoDone struct {
	VideoURL string `json:"videoUrl"`
}

// serveVideoWS generates a topic video and relays progress to the browser.
// Closing the socket cancels the generation.
func (h *Handler) serveVideoWS(c *gin.Context) {
	userID := currentUser(c)
	studyID, topicID := c.Query("studyId"), c.Query("topicId")
	if studyID == "" || topicID == "" {
		badRequest(c, "studyId and topicId are required")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	defer cancel()

	// The browser sends nothing; a read error means it went away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	send := make(chan outboundMessage, 16)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				cancel()
				return
			}
		}
	}()

	url, err := h.video.Generate(ctx, userID, studyID, topicID, func(p domain.VideoProgress) {
		select {
		case send <- outboundMessage{Type: "progress", Payload: p}:
		case <-ctx.Done():
		}
	})
	final := outboundMessage{Type: "complete", Payload: videoDone{VideoURL: url}}
	if err != nil {
		_, msg := statusFor(err)
		final = outboundMessage{Type: "error", Payload: errorPayload{Message: msg}}
	}
	select {
	case send <- final:
	case <-writerDone:
	}
	close(send)
	<-writerDone
}
