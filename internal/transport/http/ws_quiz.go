package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"

	"study-service/internal/app"
)

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type selectPayload struct {
	Option int `json:"option"`
}

type gotoPayload struct {
	Index int `json:"index"`
}

// serveQuizWS drives the caller's quiz session for one study. Every change is
// pushed as a "snapshot" message; rejected input gets an "error" message.
func (h *Handler) serveQuizWS(c *gin.Context) {
	userID := currentUser(c)
	studyID := c.Query("studyId")
	if studyID == "" {
		badRequest(c, "studyId is required")
		return
	}
	session, err := h.quiz.Join(c.Request.Context(), userID, studyID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	defer h.quiz.Leave(userID, studyID)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates, cancel := session.Subscribe()
	defer cancel()

	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// single writer: gorilla connections do not allow concurrent writes
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write failed", "error", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage{Type: "snapshot", Payload: snap}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	ctx := context.WithoutCancel(c.Request.Context())
	for {
		var in inboundMessage
		if err := conn.ReadJSON(&in); err != nil {
			break
		}
		if err := h.applyQuizInput(ctx, session, in); err != nil {
			select {
			case send <- outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}}:
			case <-writerDone:
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *Handler) applyQuizInput(ctx context.Context, s *app.QuizSession, in inboundMessage) error {
	var err error
	switch in.Type {
	case "select":
		var p selectPayload
		if json.Unmarshal(in.Payload, &p) != nil {
			return fmt.Errorf("invalid %s payload", in.Type)
		}
		_, err = s.Select(p.Option)
	case "next":
		_, err = s.Advance(ctx)
	case "prev":
		_, err = s.Prev()
	case "goto":
		var p gotoPayload
		if json.Unmarshal(in.Payload, &p) != nil {
			return fmt.Errorf("invalid %s payload", in.Type)
		}
		_, err = s.GoTo(p.Index)
	case "hint":
		_, err = s.ToggleHint()
	case "retake":
		_, err = s.Retake()
	case "regenerate":
		s.Regenerate()
	default:
		return errors.New("unsupported message type")
	}
	return err
}
