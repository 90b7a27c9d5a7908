// Package lock 提供带过期时间和持有者校验的分布式锁.
//
// Mutex 把获取、续期、释放委托给存储后端：
//   - NewRedis: 基于 Redis SET NX PX 与 Lua 脚本，适用于多进程部署
//   - NewMemory: 基于进程内共享的 MemoryStore，适用于单进程与测试
//
// 每个 Mutex 有唯一的 owner ID，只有持有者能续期或释放锁.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Locker 分布式锁接口.
type Locker interface {
	// TryLock 尝试获取锁，不阻塞.
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Extend 延长已持有锁的过期时间.
	Extend(ctx context.Context, key string, ttl time.Duration) error

	// Unlock 释放锁.
	Unlock(ctx context.Context, key string) error

	// OwnerID 返回锁持有者 ID.
	OwnerID() string
}

// outcome 存储后端对持有者校验的结果.
type outcome int

const (
	outcomeOK outcome = iota
	// outcomeMissing 锁不存在（已过期或已释放）
	outcomeMissing
	// outcomeForeign 锁被其他持有者占用
	outcomeForeign
)

// store 锁存储后端.
type store interface {
	acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	release(ctx context.Context, key, owner string) (outcome, error)
	refresh(ctx context.Context, key, owner string, ttl time.Duration) (outcome, error)
}

// Option 锁配置选项.
type Option func(*Mutex)

// WithKeyPrefix 设置锁键前缀.
//
// 默认 "lock:".
func WithKeyPrefix(prefix string) Option {
	return func(m *Mutex) {
		m.keyPrefix = prefix
	}
}

// WithOwnerID 设置锁持有者 ID.
//
// 默认自动生成 UUID.
func WithOwnerID(id string) Option {
	return func(m *Mutex) {
		if id != "" {
			m.ownerID = id
		}
	}
}

// WithRetryWait 设置 Lock 获取失败时的重试间隔.
//
// 默认 100ms.
func WithRetryWait(wait time.Duration) Option {
	return func(m *Mutex) {
		m.retryWait = wait
	}
}

// WithMaxRetries 设置 Lock 的最大重试次数，0 表示无限重试（直到 context 取消）.
func WithMaxRetries(n int) Option {
	return func(m *Mutex) {
		m.maxRetries = n
	}
}

// Mutex 分布式锁.
type Mutex struct {
	store      store
	keyPrefix  string
	ownerID    string
	retryWait  time.Duration
	maxRetries int

	mu sync.Mutex
	// 当前持有的锁，用于 Unlock 和 Extend 时的本地所有权校验
	held map[string]bool
}

func newMutex(s store, opts ...Option) *Mutex {
	m := &Mutex{
		store:     s,
		keyPrefix: "lock:",
		ownerID:   uuid.New().String(),
		retryWait: 100 * time.Millisecond,
		held:      make(map[string]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TryLock 尝试获取锁.
func (m *Mutex) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	acquired, err := m.store.acquire(ctx, m.keyPrefix+key, m.ownerID, ttl)
	if err != nil {
		return false, err
	}

	if acquired {
		m.mu.Lock()
		m.held[key] = true
		m.mu.Unlock()
	}
	return acquired, nil
}

// Lock 获取锁（阻塞）.
func (m *Mutex) Lock(ctx context.Context, key string, ttl time.Duration) error {
	retries := 0

	for {
		acquired, err := m.TryLock(ctx, key, ttl)
		if err != nil {
			return err
		}
		if acquired {
			return nil
		}

		retries++
		if m.maxRetries > 0 && retries >= m.maxRetries {
			return ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.retryWait):
		}
	}
}

// Unlock 释放锁.
func (m *Mutex) Unlock(ctx context.Context, key string) error {
	if !m.IsHeld(key) {
		return ErrLockNotHeld
	}

	res, err := m.store.release(ctx, m.keyPrefix+key, m.ownerID)
	if err != nil {
		return err
	}

	m.forget(key)
	if res != outcomeOK {
		return ErrLockNotHeld
	}
	return nil
}

// Extend 延长锁的过期时间.
func (m *Mutex) Extend(ctx context.Context, key string, ttl time.Duration) error {
	if !m.IsHeld(key) {
		return ErrLockNotHeld
	}

	res, err := m.store.refresh(ctx, m.keyPrefix+key, m.ownerID, ttl)
	if err != nil {
		return err
	}

	switch res {
	case outcomeMissing:
		m.forget(key)
		return ErrLockExpired
	case outcomeForeign:
		m.forget(key)
		return ErrLockNotHeld
	}
	return nil
}

// OwnerID 返回当前锁持有者 ID.
func (m *Mutex) OwnerID() string {
	return m.ownerID
}

// IsHeld 检查本地记录中是否持有指定的锁.
func (m *Mutex) IsHeld(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held[key]
}

func (m *Mutex) forget(key string) {
	m.mu.Lock()
	delete(m.held, key)
	m.mu.Unlock()
}
