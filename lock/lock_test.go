package lock

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Tsukikage7/elected-scheduler/logger"
)

// newTestLockers 创建共享同一存储的两个锁.
func newTestLockers(opts ...Option) (*Mutex, *Mutex, *MemoryStore, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	store := NewMemoryStoreWithClock(clock)
	return NewMemory(store, opts...), NewMemory(store, opts...), store, clock
}

func TestTryLock(t *testing.T) {
	locker, other, store, _ := newTestLockers()
	ctx := context.Background()

	t.Run("acquire lock", func(t *testing.T) {
		acquired, err := locker.TryLock(ctx, "test-key", time.Minute)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if !acquired {
			t.Error("expected to acquire lock")
		}
		if !locker.IsHeld("test-key") {
			t.Error("expected lock to be held")
		}
		if got := store.Owner("lock:test-key"); got != locker.OwnerID() {
			t.Errorf("expected owner %s, got %s", locker.OwnerID(), got)
		}

		_ = locker.Unlock(ctx, "test-key")
	})

	t.Run("lock already held", func(t *testing.T) {
		acquired, _ := locker.TryLock(ctx, "held-key", time.Minute)
		if !acquired {
			t.Fatal("failed to acquire lock")
		}

		acquired2, err := other.TryLock(ctx, "held-key", time.Minute)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if acquired2 {
			t.Error("expected lock to fail (already held)")
		}

		_ = locker.Unlock(ctx, "held-key")
	})

	t.Run("cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := locker.TryLock(cancelled, "cancelled-key", time.Minute); !errors.Is(err, context.Canceled) {
			t.Errorf("expected Canceled, got %v", err)
		}
	})
}

func TestLockExpires(t *testing.T) {
	locker, other, _, clock := newTestLockers()
	ctx := context.Background()

	if acquired, _ := locker.TryLock(ctx, "ttl-key", time.Second); !acquired {
		t.Fatal("failed to acquire lock")
	}

	clock.Advance(999 * time.Millisecond)
	if acquired, _ := other.TryLock(ctx, "ttl-key", time.Second); acquired {
		t.Fatal("expected lock to still be held")
	}

	clock.Advance(time.Millisecond)
	if acquired, _ := other.TryLock(ctx, "ttl-key", time.Second); !acquired {
		t.Fatal("expected expired lock to be acquirable")
	}

	if err := locker.Extend(ctx, "ttl-key", time.Second); !errors.Is(err, ErrLockNotHeld) {
		t.Errorf("expected ErrLockNotHeld, got %v", err)
	}
	if locker.IsHeld("ttl-key") {
		t.Error("expected local ownership to be dropped")
	}
}

func TestLock(t *testing.T) {
	locker, other, _, _ := newTestLockers(WithRetryWait(10 * time.Millisecond))
	ctx := context.Background()

	t.Run("blocking acquire", func(t *testing.T) {
		if err := locker.Lock(ctx, "blocking-key", time.Minute); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		_ = locker.Unlock(ctx, "blocking-key")
	})

	t.Run("context cancellation", func(t *testing.T) {
		_, _ = locker.TryLock(ctx, "cancel-key", time.Minute)

		cancelCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		err := other.Lock(cancelCtx, "cancel-key", time.Minute)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected DeadlineExceeded, got %v", err)
		}
		_ = locker.Unlock(ctx, "cancel-key")
	})

	t.Run("max retries", func(t *testing.T) {
		limited := NewMemory(NewMemoryStore(), WithRetryWait(time.Millisecond), WithMaxRetries(3))
		holder := NewMemory(limited.store.(*MemoryStore))
		_, _ = holder.TryLock(ctx, "retry-key", time.Minute)

		if err := limited.Lock(ctx, "retry-key", time.Minute); !errors.Is(err, ErrLockNotAcquired) {
			t.Errorf("expected ErrLockNotAcquired, got %v", err)
		}
	})
}

func TestUnlock(t *testing.T) {
	locker, other, _, clock := newTestLockers()
	ctx := context.Background()

	t.Run("unlock held lock", func(t *testing.T) {
		_, _ = locker.TryLock(ctx, "unlock-key", time.Minute)
		if err := locker.Unlock(ctx, "unlock-key"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if locker.IsHeld("unlock-key") {
			t.Error("expected lock to be released")
		}
		if acquired, _ := other.TryLock(ctx, "unlock-key", time.Minute); !acquired {
			t.Error("expected released lock to be acquirable")
		}
	})

	t.Run("unlock not held lock", func(t *testing.T) {
		if err := locker.Unlock(ctx, "not-held-key"); !errors.Is(err, ErrLockNotHeld) {
			t.Errorf("expected ErrLockNotHeld, got %v", err)
		}
	})

	t.Run("unlock expired lock", func(t *testing.T) {
		_, _ = locker.TryLock(ctx, "expired-key", time.Second)
		clock.Advance(2 * time.Second)
		if err := locker.Unlock(ctx, "expired-key"); !errors.Is(err, ErrLockNotHeld) {
			t.Errorf("expected ErrLockNotHeld, got %v", err)
		}
	})
}

func TestExtend(t *testing.T) {
	locker, other, _, clock := newTestLockers()
	ctx := context.Background()

	t.Run("extend held lock", func(t *testing.T) {
		_, _ = locker.TryLock(ctx, "extend-key", time.Second)
		clock.Advance(900 * time.Millisecond)

		if err := locker.Extend(ctx, "extend-key", time.Second); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		clock.Advance(900 * time.Millisecond)
		if acquired, _ := other.TryLock(ctx, "extend-key", time.Second); acquired {
			t.Error("expected extended lock to still be held")
		}
		_ = locker.Unlock(ctx, "extend-key")
	})

	t.Run("extend expired lock", func(t *testing.T) {
		_, _ = locker.TryLock(ctx, "gone-key", time.Second)
		clock.Advance(2 * time.Second)

		if err := locker.Extend(ctx, "gone-key", time.Second); !errors.Is(err, ErrLockExpired) {
			t.Errorf("expected ErrLockExpired, got %v", err)
		}
	})

	t.Run("extend not held lock", func(t *testing.T) {
		if err := locker.Extend(ctx, "never-key", time.Second); !errors.Is(err, ErrLockNotHeld) {
			t.Errorf("expected ErrLockNotHeld, got %v", err)
		}
	})
}

func TestOptions(t *testing.T) {
	store := NewMemoryStore()
	locker := NewMemory(store, WithKeyPrefix("app:"), WithOwnerID("node-1"))

	if locker.OwnerID() != "node-1" {
		t.Errorf("expected owner node-1, got %s", locker.OwnerID())
	}

	_, _ = locker.TryLock(context.Background(), "k", time.Minute)
	if store.Owner("app:k") != "node-1" {
		t.Error("expected key prefix to be applied")
	}

	if NewMemory(store).OwnerID() == NewMemory(store).OwnerID() {
		t.Error("expected generated owner ids to differ")
	}
}

func TestConcurrentTryLock(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := NewMemory(store).TryLock(ctx, "race-key", time.Minute); ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	if winners.Load() != 1 {
		t.Errorf("expected exactly one winner, got %d", winners.Load())
	}
}

func TestNilBackendPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	NewMemory(nil)
}

func TestRedisConfig(t *testing.T) {
	var nilConfig *RedisConfig
	if err := nilConfig.Validate(); !errors.Is(err, ErrNilConfig) {
		t.Errorf("expected ErrNilConfig, got %v", err)
	}

	config := &RedisConfig{}
	if err := config.Validate(); !errors.Is(err, ErrEmptyAddr) {
		t.Errorf("expected ErrEmptyAddr, got %v", err)
	}

	config.ApplyDefaults()
	if config.PoolSize != 10 || config.Timeout != 5*time.Second || config.KeyPrefix != "lock:" {
		t.Errorf("unexpected defaults: %+v", config)
	}
}

// TestRedis 需要真实的 Redis，通过 REDIS_ADDR 指定地址.
func TestRedis(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	ctx := context.Background()
	client, err := NewRedisClient(ctx, &RedisConfig{Addr: addr}, logger.NewNop())
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	defer client.Close()

	prefix := WithKeyPrefix("elected-scheduler-test:")
	locker := NewRedis(client, prefix)
	other := NewRedis(client, prefix)

	acquired, err := locker.TryLock(ctx, "k", time.Second)
	if err != nil || !acquired {
		t.Fatalf("expected to acquire lock: %v", err)
	}
	if acquired, _ := other.TryLock(ctx, "k", time.Second); acquired {
		t.Error("expected second owner to fail")
	}
	if err := locker.Extend(ctx, "k", 2*time.Second); err != nil {
		t.Errorf("unexpected extend error: %v", err)
	}
	if err := locker.Unlock(ctx, "k"); err != nil {
		t.Errorf("unexpected unlock error: %v", err)
	}
	if acquired, _ := other.TryLock(ctx, "k", time.Second); !acquired {
		t.Error("expected released lock to be acquirable")
	}
	_ = other.Unlock(ctx, "k")

	if err := locker.Extend(ctx, "k", time.Second); !errors.Is(err, ErrLockNotHeld) {
		t.Errorf("expected ErrLockNotHeld, got %v", err)
	}
}

func TestNewRedisClientUnreachable(t *testing.T) {
	_, err := NewRedisClient(context.Background(), &RedisConfig{Addr: "127.0.0.1:1", Timeout: 200 * time.Millisecond}, logger.NewNop())
	if err == nil {
		t.Error("expected connection error")
	}
}
