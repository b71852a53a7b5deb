package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"study-service/internal/app"
	"study-service/internal/domain"
	"study-service/internal/logger"
)

// StudyCache caches whole study documents in Redis and falls back to the
// wrapped repository on a miss. Studies are stored as JSON under
// study:{userID}:{studyID}. Cache failures are logged and never fail a call.
type StudyCache struct {
	client *redis.Client
	next   app.StudyRepository
	ttl    time.Duration
	log    *logger.Logger
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewStudyCache(client *redis.Client, next app.StudyRepository, ttl time.Duration, log *logger.Logger) *StudyCache {
	return &StudyCache{
		client: client,
		next:   next,
		ttl:    ttl,
		log:    log.Named("study-cache"),
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func studyKey(userID, id string) string { return "study:" + userID + ":" + id }

func (c *StudyCache) Get(ctx context.Context, userID, id string) (domain.Study, error) {
	key := studyKey(userID, id)
	if study, ok := c.read(ctx, key); ok {
		return study, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// another caller may have filled it
		if study, ok := c.read(ctx, key); ok {
			return study, nil
		}
		study, err := c.next.Get(ctx, userID, id)
		if err != nil {
			return domain.Study{}, err
		}
		c.write(ctx, &study)
		return study, nil
	})
	if err != nil {
		return domain.Study{}, err
	}
	return result.(domain.Study).Clone(), nil
}

func (c *StudyCache) List(ctx context.Context, userID string) ([]domain.Study, error) {
	return c.next.List(ctx, userID)
}

func (c *StudyCache) Create(ctx context.Context, study *domain.Study) error {
	if err := c.next.Create(ctx, study); err != nil {
		return err
	}
	c.write(ctx, study)
	return nil
}

func (c *StudyCache) Update(ctx context.Context, study *domain.Study) error {
	if err := c.next.Update(ctx, study); err != nil {
		c.Invalidate(ctx, study.UserID, study.ID)
		return err
	}
	c.write(ctx, study)
	return nil
}

// Invalidate drops one cached study.
func (c *StudyCache) Invalidate(ctx context.Context, userID, id string) {
	if err := c.client.Del(ctx, studyKey(userID, id)).Err(); err != nil {
		c.log.Warn("cache delete failed", "study_id", id, "error", err)
	}
}

func (c *StudyCache) read(ctx context.Context, key string) (domain.Study, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Study{}, false
	}
	if err != nil {
		c.log.Warn("cache read failed", "key", key, "error", err)
		return domain.Study{}, false
	}
	var study domain.Study
	if err := json.Unmarshal(raw, &study); err != nil {
		c.log.Warn("cache entry corrupt", "key", key, "error", err)
		return domain.Study{}, false
	}
	return study, true
}

func (c *StudyCache) write(ctx context.Context, study *domain.Study) {
	key := studyKey(study.UserID, study.ID)
	raw, err := json.Marshal(study)
	if err != nil {
		c.log.Warn("cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err(); err != nil {
		c.log.Warn("cache write failed", "key", key, "error", err)
	}
}

func (c *StudyCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
