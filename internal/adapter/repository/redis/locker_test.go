package redis

import (
	"context"
	"testing"
	"time"
)

func TestLocker_TryLockIsExclusive(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()
	first := NewLocker(client)
	second := NewLocker(client)

	ok, err := first.TryLock(ctx, "sweep", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected first lock, got ok=%v err=%v", ok, err)
	}

	ok, err = second.TryLock(ctx, "sweep", time.Minute)
	if err != nil || ok {
		t.Fatalf("expected second lock to fail, got ok=%v err=%v", ok, err)
	}

	// A locker that does not hold the key must not release it.
	if err := second.Unlock(ctx, "sweep"); err != nil {
		t.Fatalf("unlock failed: %v", err)
	}
	if !mr.Exists("sweep") {
		t.Fatalf("foreign unlock released the key")
	}

	if err := first.Unlock(ctx, "sweep"); err != nil {
		t.Fatalf("unlock failed: %v", err)
	}

	ok, err = second.TryLock(ctx, "sweep", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected lock after release, got ok=%v err=%v", ok, err)
	}
}

func TestLocker_ExpiredLockIsNotStolenBack(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()
	first := NewLocker(client)
	second := NewLocker(client)

	if ok, err := first.TryLock(ctx, "sweep", time.Second); err != nil || !ok {
		t.Fatalf("expected lock, got ok=%v err=%v", ok, err)
	}

	mr.FastForward(2 * time.Second)

	if ok, err := second.TryLock(ctx, "sweep", time.Minute); err != nil || !ok {
		t.Fatalf("expected lock after expiry, got ok=%v err=%v", ok, err)
	}

	// The stale holder's unlock leaves the new owner in place.
	if err := first.Unlock(ctx, "sweep"); err != nil {
		t.Fatalf("unlock failed: %v", err)
	}
	if !mr.Exists("sweep") {
		t.Fatalf("stale unlock released the new owner's key")
	}
}
