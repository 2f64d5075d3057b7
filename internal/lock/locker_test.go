package lock

import (
	"context"
	"testing"
	"time"
)

func TestAcquireAndUnlockAllowsReacquire(t *testing.T) {
	l := NewInProcessLocker()
	ctx := context.Background()

	lk, ok := l.Acquire(ctx, "drive/1", "owner-a", time.Minute)
	if !ok {
		t.Fatal("expected first acquire to succeed")
	}
	lk.Unlock()

	lk2, ok := l.Acquire(ctx, "drive/1", "owner-b", time.Minute)
	if !ok {
		t.Fatal("expected acquire after unlock to succeed")
	}
	lk2.Unlock()
}

func TestAcquireBlocksUntilReleased(t *testing.T) {
	l := NewInProcessLocker()
	ctx := context.Background()

	lk, ok := l.Acquire(ctx, "changer", "owner-a", time.Minute)
	if !ok {
		t.Fatal("expected first acquire to succeed")
	}

	acquired := make(chan bool, 1)
	go func() {
		lk2, ok := l.Acquire(ctx, "changer", "owner-b", time.Minute)
		acquired <- ok
		if ok {
			lk2.Unlock()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire should have blocked while the lock is held")
	case <-time.After(50 * time.Millisecond):
	}

	lk.Unlock()

	select {
	case ok := <-acquired:
		if !ok {
			t.Fatal("expected second acquire to succeed after release")
		}
	case <-time.After(time.Second):
		t.Fatal("second acquire never unblocked after release")
	}
}

func TestAcquireTimesOutOnContextCancellation(t *testing.T) {
	l := NewInProcessLocker()
	lk, ok := l.Acquire(context.Background(), "drive/2", "owner-a", time.Minute)
	if !ok {
		t.Fatal("expected first acquire to succeed")
	}
	defer lk.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, ok := l.Acquire(ctx, "drive/2", "owner-b", time.Minute); ok {
		t.Fatal("expected acquire to fail once the context expires")
	}
}

func TestAcquireExpiresByTTL(t *testing.T) {
	l := NewInProcessLocker()
	if _, ok := l.Acquire(context.Background(), "drive/3", "owner-a", 10*time.Millisecond); !ok {
		t.Fatal("expected first acquire to succeed")
	}

	// Give the TTL time to lapse before the next Acquire's first check,
	// so it finds the slot already expired rather than blocking on the
	// release channel (which a TTL lapse alone never closes).
	time.Sleep(30 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	lk2, ok := l.Acquire(ctx, "drive/3", "owner-b", time.Minute)
	if !ok {
		t.Fatal("expected acquire to succeed once the first holder's TTL expires")
	}
	lk2.Unlock()
}

func TestUnlockIsIdempotent(t *testing.T) {
	l := NewInProcessLocker()
	lk, _ := l.Acquire(context.Background(), "drive/4", "owner-a", time.Minute)
	lk.Unlock()
	lk.Unlock()
}
