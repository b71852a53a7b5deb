package chatstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// FailureMessage replaces the assistant message when a stream fails.
const FailureMessage = "Sorry, I couldn't process your question. Please try again."

// ErrStreamFailed is returned when the server reports an error event.
var ErrStreamFailed = errors.New("chat stream failed")

// Reassembler rebuilds an assistant reply from stream chunks. Chunks may split
// lines anywhere; the unterminated tail is carried into the next Feed.
// Lines without the data prefix and payloads that do not parse are skipped.
type Reassembler struct {
	carry   []byte
	content strings.Builder
	done    bool
}

// Feed consumes a chunk. changed reports whether the accumulated content grew.
// An error event returns ErrStreamFailed wrapping the server message.
func (r *Reassembler) Feed(chunk []byte) (changed bool, err error) {
	buf := append(r.carry, chunk...)
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		line := buf[:i]
		buf = buf[i+1:]
		grew, lineErr := r.line(line)
		changed = changed || grew
		if lineErr != nil {
			r.carry = nil
			return changed, lineErr
		}
	}
	r.carry = append([]byte(nil), buf...)
	return changed, nil
}

// Flush handles a final line that arrived without a trailing newline.
func (r *Reassembler) Flush() (changed bool, err error) {
	if len(r.carry) == 0 {
		return false, nil
	}
	line := r.carry
	r.carry = nil
	return r.line(line)
}

func (r *Reassembler) line(raw []byte) (bool, error) {
	raw = bytes.TrimSuffix(raw, []byte("\r"))
	if !bytes.HasPrefix(raw, []byte(linePrefix)) {
		return false, nil
	}
	var ev Event
	if err := json.Unmarshal(raw[len(linePrefix):], &ev); err != nil {
		return false, nil
	}
	if ev.Error != "" {
		return false, fmt.Errorf("%w: %s", ErrStreamFailed, ev.Error)
	}
	if ev.Done {
		r.done = true
	}
	if ev.Content == "" {
		return false, nil
	}
	r.content.WriteString(ev.Content)
	return true, nil
}

// Content is everything accumulated so far.
func (r *Reassembler) Content() string { return r.content.String() }

// Done reports whether the terminating event was seen.
func (r *Reassembler) Done() bool { return r.done }

// Consume reads body until EOF, a done event or an error event, calling onUpdate
// with the full accumulated text every time it grows.
func (r *Reassembler) Consume(ctx context.Context, body io.Reader, onUpdate func(content string)) (string, error) {
	buf := make([]byte, 4096)
	for {
		if err := ctx.Err(); err != nil {
			return r.Content(), err
		}
		n, readErr := body.Read(buf)
		if n > 0 {
			changed, err := r.Feed(buf[:n])
			if changed && onUpdate != nil {
				onUpdate(r.Content())
			}
			if err != nil {
				return r.Content(), err
			}
			if r.done {
				return r.Content(), nil
			}
		}
		if errors.Is(readErr, io.EOF) {
			changed, err := r.Flush()
			if changed && onUpdate != nil {
				onUpdate(r.Content())
			}
			return r.Content(), err
		}
		if readErr != nil {
			return r.Content(), fmt.Errorf("read stream: %w", readErr)
		}
	}
}
