package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"study-service/internal/domain"
)

func TestStreamLocks(t *testing.T) {
	ctx := context.Background()
	locks := NewStreamLocks()

	release, err := locks.Acquire(ctx, "k", time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := locks.Acquire(ctx, "k", time.Minute); !errors.Is(err, domain.ErrStreamInFlight) {
		t.Fatalf("expected in-flight error, got %v", err)
	}
	if _, err := locks.Acquire(ctx, "other", time.Minute); err != nil {
		t.Fatalf("other keys are independent: %v", err)
	}
	release()
	release()
	if _, err := locks.Acquire(ctx, "k", time.Minute); err != nil {
		t.Fatalf("expected key free after release: %v", err)
	}
}

func TestStreamLocksExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	locks := NewStreamLocks()
	locks.clock = func() time.Time { return now }

	stale, _ := locks.Acquire(ctx, "k", time.Second)
	now = now.Add(2 * time.Second)
	if _, err := locks.Acquire(ctx, "k", time.Second); err != nil {
		t.Fatalf("expected expired lease to be taken over: %v", err)
	}
	stale()
	if _, err := locks.Acquire(ctx, "k", time.Second); !errors.Is(err, domain.ErrStreamInFlight) {
		t.Fatalf("stale release must not free the new lease, got %v", err)
	}
}
