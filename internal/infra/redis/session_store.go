package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"study-service/internal/app"
)

// SessionStore keeps quiz sessions in process and marks each live one in Redis
// under quiz:session:{key}, so other instances and operators can see which
// users are mid-quiz.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.QuizSession
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.QuizSession),
	}
}

func (s *SessionStore) GetOrCreate(key string, create func() *app.QuizSession) (*app.QuizSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[key]; ok {
		s.touch(key)
		return session, false
	}
	session := create()
	s.sessions[key] = session
	s.touch(key)
	return session, true
}

func (s *SessionStore) Get(key string) (*app.QuizSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[key]
	return session, ok
}

func (s *SessionStore) DeleteIfEmpty(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[key]
	if !ok || !session.IsEmpty() {
		return
	}
	delete(s.sessions, key)
	_ = s.client.Del(context.Background(), s.liveKey(key)).Err()
}

// touch is best effort; the marker only reports liveness.
func (s *SessionStore) touch(key string) {
	_ = s.client.Set(context.Background(), s.liveKey(key), "1", s.ttl).Err()
}

func (s *SessionStore) liveKey(key string) string {
	return "quiz:session:" + key
}
