package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"study-service/internal/domain"
	"study-service/internal/logger"
)

const requestType = "generate-rant-for-study"

// DefaultTimeout bounds a whole generation run.
const DefaultTimeout = 5 * time.Minute

var (
	ErrTimeout    = errors.New("Video generation timed out")
	ErrFailed     = errors.New("Video generation failed")
	ErrConnection = errors.New("Connection error")
)

type request struct {
	Type   string `json:"type"`
	Script string `json:"script"`
}

type message struct {
	Type     string `json:"type"`
	Status   string `json:"status"`
	Progress *int   `json:"progress"`
	Error    string `json:"error"`
	VideoURL string `json:"videoUrl"`
}

// Client drives the external video renderer over a websocket.
type Client struct {
	url     string
	timeout time.Duration
	dialer  *websocket.Dialer
	log     *logger.Logger
}

func New(url string, timeout time.Duration, log *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		url:     url,
		timeout: timeout,
		dialer:  websocket.DefaultDialer,
		log:     log.Named("video"),
	}
}

// Generate renders script into a video and returns its URL. onProgress sees
// every status update, starting with "started" once the socket is open. The
// run fails with ErrTimeout when it exceeds the client timeout.
func (c *Client) Generate(ctx context.Context, script string, onProgress func(domain.VideoProgress)) (string, error) {
	if onProgress == nil {
		onProgress = func(domain.VideoProgress) {}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", ErrTimeout
		}
		return "", fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer conn.Close()

	// Unblock the read loop when the deadline passes or the caller goes away.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	onProgress(domain.VideoProgress{Status: domain.VideoStarted})
	if err := conn.WriteJSON(request{Type: requestType, Script: script}); err != nil {
		return "", fmt.Errorf("%w: %v", ErrConnection, err)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			switch {
			case errors.Is(ctx.Err(), context.DeadlineExceeded):
				return "", ErrTimeout
			case ctx.Err() != nil:
				return "", ctx.Err()
			default:
				return "", fmt.Errorf("%w: %v", ErrConnection, err)
			}
		}
		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn("unparseable video message", "error", err)
			continue
		}

		if msg.Type != requestType {
			if msg.Status != "" && msg.Status != "pong" {
				onProgress(domain.VideoProgress{Status: msg.Status, Progress: msg.Progress})
			}
			continue
		}

		status := msg.Status
		if status == "" {
			status = domain.VideoStarted
		}
		onProgress(domain.VideoProgress{Status: status, Progress: msg.Progress, Error: msg.Error, VideoURL: msg.VideoURL})

		switch status {
		case domain.VideoComplete:
			return msg.VideoURL, nil
		case domain.VideoError:
			if msg.Error != "" {
				return "", fmt.Errorf("%w: %s", ErrFailed, msg.Error)
			}
			return "", ErrFailed
		}
	}
}
