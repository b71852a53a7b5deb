package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-service/internal/app"
	"study-service/internal/domain"
	"study-service/internal/infra/memory"
	"study-service/internal/logger"
)

type countingRepo struct {
	app.StudyRepository
	gets int
}

func (r *countingRepo) Get(ctx context.Context, userID, id string) (domain.Study, error) {
	r.gets++
	return r.StudyRepository.Get(ctx, userID, id)
}

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func sampleStudy() domain.Study {
	return domain.Study{
		ID:      "s1",
		UserID:  "u1",
		Title:   "Biology",
		Content: "Cells.",
		Topics:  []domain.Topic{{ID: "t1", Title: "Cells", Icon: "🔬"}},
	}
}

func TestStudyCacheReadThrough(t *testing.T) {
	mr, client := newClient(t)
	ctx := context.Background()
	backend := &countingRepo{StudyRepository: memory.NewStudyRepository()}
	study := sampleStudy()
	require.NoError(t, backend.Create(ctx, &study))

	cache := NewStudyCache(client, backend, time.Minute, logger.Nop())
	got, err := cache.Get(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, "Biology", got.Title)
	assert.True(t, mr.Exists("study:u1:s1"))

	ttl := mr.TTL("study:u1:s1")
	assert.GreaterOrEqual(t, ttl, time.Minute)
	assert.LessOrEqual(t, ttl, time.Minute+6*time.Second)

	got, err = cache.Get(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, "🔬", got.Topics[0].Icon)
	assert.Equal(t, 1, backend.gets)
}

func TestStudyCacheMissPropagatesNotFound(t *testing.T) {
	_, client := newClient(t)
	cache := NewStudyCache(client, memory.NewStudyRepository(), time.Minute, logger.Nop())
	_, err := cache.Get(context.Background(), "u1", "missing")
	assert.ErrorIs(t, err, domain.ErrStudyNotFound)
}

func TestStudyCacheWriteThrough(t *testing.T) {
	_, client := newClient(t)
	ctx := context.Background()
	backend := &countingRepo{StudyRepository: memory.NewStudyRepository()}
	cache := NewStudyCache(client, backend, time.Minute, logger.Nop())

	study := sampleStudy()
	require.NoError(t, cache.Create(ctx, &study))
	study.Topics[0].Learned = true
	require.NoError(t, cache.Update(ctx, &study))

	got, err := cache.Get(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.True(t, got.Topics[0].Learned)
	assert.Zero(t, backend.gets)
}

func TestStudyCacheFallsBackWhenRedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	ctx := context.Background()
	backend := &countingRepo{StudyRepository: memory.NewStudyRepository()}
	study := sampleStudy()
	require.NoError(t, backend.Create(ctx, &study))
	cache := NewStudyCache(client, backend, time.Minute, logger.Nop())

	mr.Close()
	got, err := cache.Get(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)
}
