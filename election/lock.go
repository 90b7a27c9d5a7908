package election

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Tsukikage7/elected-scheduler/lock"
)

// LockElector 基于分布式锁的选举.
//
// 以选举超时作为锁的过期时间，持有期间每 timeout/3 续期一次.
// 领导权只在最近一次成功获取或续期后的 timeout 内有效，
// 锁已过期或被他人持有时立即失去领导权；其他续期错误在有效期内重试，
// 超过有效期后 IsLeader 返回 false.
type LockElector struct {
	locker  lock.Locker
	key     string
	timeout time.Duration
	opts    *options

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	held atomic.Bool
	// validUntil 领导权有效期（UnixNano）
	validUntil atomic.Int64
}

// NewLockElector 创建基于分布式锁的选举.
func NewLockElector(locker lock.Locker, key string, timeout time.Duration, opts ...Option) (*LockElector, error) {
	if locker == nil {
		return nil, ErrNilLocker
	}
	if key == "" {
		return nil, ErrEmptyKey
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &LockElector{
		locker:  locker,
		key:     key,
		timeout: timeout,
		opts:    applyOptions(opts),
	}, nil
}

// IsLeader 返回当前实例是否为领导者.
//
// 首次调用时在后台启动竞选，本身不阻塞.
func (e *LockElector) IsLeader() bool {
	e.ensureCampaign()
	if !e.held.Load() {
		return false
	}
	return e.opts.clock.Now().UnixNano() < e.validUntil.Load()
}

// Timeout 返回选举超时时间.
func (e *LockElector) Timeout() time.Duration {
	return e.timeout
}

// Key 返回选举键.
func (e *LockElector) Key() string {
	return e.key
}

// Release 停止竞选并释放持有的锁.
func (e *LockElector) Release() error {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	if !e.held.Swap(false) {
		return nil
	}
	e.validUntil.Store(0)

	ctx, cancelUnlock := context.WithTimeout(context.Background(), e.timeout)
	defer cancelUnlock()

	if err := e.locker.Unlock(ctx, e.key); err != nil && !errors.Is(err, lock.ErrLockNotHeld) {
		e.opts.logger.Errorf("[Election] 释放锁失败 [key:%s] [error:%v]", e.key, err)
		return err
	}
	e.opts.logger.Infof("[Election] 已释放领导权 [key:%s]", e.key)
	return nil
}

func (e *LockElector) ensureCampaign() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	go e.campaign(ctx, e.done)
}

// campaign 竞选循环：未持有时尝试获取，持有时续期.
func (e *LockElector) campaign(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	interval := e.timeout / 3
	for {
		e.attempt(ctx)

		select {
		case <-ctx.Done():
			return
		case <-e.opts.clock.After(interval):
		}
	}
}

func (e *LockElector) attempt(ctx context.Context) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout/3)
	defer cancel()

	// 以调用前的时间计算有效期
	start := e.opts.clock.Now()

	if e.held.Load() {
		if err := e.locker.Extend(callCtx, e.key, e.timeout); err != nil {
			lost := errors.Is(err, lock.ErrLockExpired) || errors.Is(err, lock.ErrLockNotHeld)
			if !lost && start.UnixNano() < e.validUntil.Load() {
				e.opts.logger.Warnf("[Election] 续期失败，稍后重试 [key:%s] [error:%v]", e.key, err)
				return
			}
			e.held.Store(false)
			e.validUntil.Store(0)
			e.opts.logger.Warnf("[Election] 续期失败，失去领导权 [key:%s] [error:%v]", e.key, err)
			return
		}
		e.validUntil.Store(start.Add(e.timeout).UnixNano())
		return
	}

	acquired, err := e.locker.TryLock(callCtx, e.key, e.timeout)
	if err != nil {
		if ctx.Err() == nil {
			e.opts.logger.Warnf("[Election] 竞选失败 [key:%s] [error:%v]", e.key, err)
		}
		return
	}
	if acquired {
		e.validUntil.Store(start.Add(e.timeout).UnixNano())
		e.held.Store(true)
		e.opts.logger.Infof("[Election] 当选领导者 [key:%s] [owner:%s]", e.key, e.locker.OwnerID())
	}
}
