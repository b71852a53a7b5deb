package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"study-service/internal/domain"
)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// StreamLocks is an app.StreamLocks shared by every instance using the same Redis.
type StreamLocks struct {
	client *redis.Client
}

func NewStreamLocks(client *redis.Client) *StreamLocks {
	return &StreamLocks{client: client}
}

func (l *StreamLocks) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire stream lock: %w", err)
	}
	if !ok {
		return nil, domain.ErrStreamInFlight
	}
	return func() {
		_ = releaseScript.Run(context.Background(), l.client, []string{key}, token).Err()
	}, nil
}
