package chatstream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// Event is one `data:` payload on the chat stream.
type Event struct {
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
	Done    bool   `json:"done,omitempty"`
}

const linePrefix = "data: "

// Writer emits events in the `data: <json>\n\n` framing and flushes after each one.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
	f  http.Flusher
}

// NewWriter wraps w. When w is an http.ResponseWriter the stream headers are set.
func NewWriter(w io.Writer) *Writer {
	sw := &Writer{w: w}
	if f, ok := w.(http.Flusher); ok {
		sw.f = f
	}
	if rw, ok := w.(http.ResponseWriter); ok {
		h := rw.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
	}
	return sw
}

func (w *Writer) Content(delta string) error { return w.Write(Event{Content: delta}) }
func (w *Writer) Error(msg string) error     { return w.Write(Event{Error: msg}) }
func (w *Writer) Done() error                { return w.Write(Event{Done: true}) }

// Write sends a single event.
func (w *Writer) Write(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := fmt.Fprintf(w.w, "%s%s\n\n", linePrefix, payload); err != nil {
		return err
	}
	if w.f != nil {
		w.f.Flush()
	}
	return nil
}
