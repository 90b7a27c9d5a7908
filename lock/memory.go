package lock

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// memoryItem 内存锁条目.
type memoryItem struct {
	owner    string
	expireAt time.Time
}

// MemoryStore 进程内锁存储，多个 Mutex 共享同一个 MemoryStore 时互斥.
type MemoryStore struct {
	mu    sync.Mutex
	clock clockwork.Clock
	items map[string]memoryItem
}

// NewMemoryStore 创建进程内锁存储.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(clockwork.NewRealClock())
}

// NewMemoryStoreWithClock 使用指定时钟创建进程内锁存储.
func NewMemoryStoreWithClock(clock clockwork.Clock) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore{
		clock: clock,
		items: make(map[string]memoryItem),
	}
}

// NewMemory 创建基于 MemoryStore 的锁.
func NewMemory(s *MemoryStore, opts ...Option) *Mutex {
	if s == nil {
		panic(ErrNilStore)
	}
	return newMutex(s, opts...)
}

// Owner 返回锁当前的持有者，锁不存在或已过期时返回空字符串.
func (s *MemoryStore) Owner(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.live(key)
	if !ok {
		return ""
	}
	return item.owner
}

// live 返回未过期的条目，过期条目会被清理. 调用方需持有 mu.
func (s *MemoryStore) live(key string) (memoryItem, bool) {
	item, ok := s.items[key]
	if !ok {
		return memoryItem{}, false
	}
	if !s.clock.Now().Before(item.expireAt) {
		delete(s.items, key)
		return memoryItem{}, false
	}
	return item, true
}

func (s *MemoryStore) acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.live(key); ok {
		return false, nil
	}
	s.items[key] = memoryItem{owner: owner, expireAt: s.clock.Now().Add(ttl)}
	return true, nil
}

func (s *MemoryStore) release(ctx context.Context, key, owner string) (outcome, error) {
	if err := ctx.Err(); err != nil {
		return outcomeMissing, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.live(key)
	if !ok {
		return outcomeMissing, nil
	}
	if item.owner != owner {
		return outcomeForeign, nil
	}
	delete(s.items, key)
	return outcomeOK, nil
}

func (s *MemoryStore) refresh(ctx context.Context, key, owner string, ttl time.Duration) (outcome, error) {
	if err := ctx.Err(); err != nil {
		return outcomeMissing, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.live(key)
	if !ok {
		return outcomeMissing, nil
	}
	if item.owner != owner {
		return outcomeForeign, nil
	}
	item.expireAt = s.clock.Now().Add(ttl)
	s.items[key] = item
	return outcomeOK, nil
}
