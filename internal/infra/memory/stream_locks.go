package memory

import (
	"context"
	"sync"
	"time"

	"study-service/internal/domain"
)

// StreamLocks is a process-local app.StreamLocks. Held keys expire after their
// ttl so a stream that never released does not block the chat forever.
type StreamLocks struct {
	mu    sync.Mutex
	clock func() time.Time
	held  map[string]lease
	seq   uint64
}

type lease struct {
	id        uint64
	expiresAt time.Time
}

func NewStreamLocks() *StreamLocks {
	return &StreamLocks{clock: time.Now, held: make(map[string]lease)}
}

func (l *StreamLocks) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()
	if cur, ok := l.held[key]; ok && cur.expiresAt.After(now) {
		return nil, domain.ErrStreamInFlight
	}
	l.seq++
	mine := lease{id: l.seq, expiresAt: now.Add(ttl)}
	l.held[key] = mine

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			// an expired lease may have been taken over
			if cur, ok := l.held[key]; ok && cur.id == mine.id {
				delete(l.held, key)
			}
		})
	}, nil
}
