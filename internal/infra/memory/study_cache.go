package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"study-service/internal/app"
	"study-service/internal/domain"
)

// StudyCache is a read-through cache in front of a slower study store. Reads
// for the same study are collapsed into one backend call; writes go through
// and refresh the cached copy.
type StudyCache struct {
	next  app.StudyRepository
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedStudy
}

type cachedStudy struct {
	study     domain.Study
	expiresAt time.Time
}

func NewStudyCache(next app.StudyRepository, ttl time.Duration) *StudyCache {
	return &StudyCache{
		next:  next,
		ttl:   ttl,
		clock: time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache: make(map[string]cachedStudy),
	}
}

func cacheKey(userID, id string) string { return userID + "/" + id }

func (c *StudyCache) lookup(key string, now time.Time) (domain.Study, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[key]
	if !ok || !entry.expiresAt.After(now) {
		return domain.Study{}, false
	}
	return entry.study.Clone(), true
}

func (c *StudyCache) Get(ctx context.Context, userID, id string) (domain.Study, error) {
	key := cacheKey(userID, id)
	if study, ok := c.lookup(key, c.clock()); ok {
		return study, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		if study, ok := c.lookup(key, c.clock()); ok {
			return study, nil
		}
		study, err := c.next.Get(ctx, userID, id)
		if err != nil {
			return domain.Study{}, err
		}
		c.store(key, study)
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
	c.store(cacheKey(study.UserID, study.ID), *study)
	return nil
}

func (c *StudyCache) Update(ctx context.Context, study *domain.Study) error {
	key := cacheKey(study.UserID, study.ID)
	if err := c.next.Update(ctx, study); err != nil {
		c.Invalidate(key)
		return err
	}
	c.store(key, *study)
	return nil
}

// Invalidate drops one cached study.
func (c *StudyCache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.cache, key)
	c.mu.Unlock()
}

func (c *StudyCache) store(key string, study domain.Study) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.cache[key] = cachedStudy{study: study.Clone(), expiresAt: c.clock().Add(c.ttlWithJitter())}
	c.mu.Unlock()
}

// ttlWithJitter adds up to 10% so entries loaded together do not expire together.
// Callers hold c.mu.
func (c *StudyCache) ttlWithJitter() time.Duration {
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
