package election

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/consul/api"
)

// minSessionTTL Consul 允许的最小 session TTL.
const minSessionTTL = 10 * time.Second

// Consul 基于 Consul session 锁的选举.
//
// session 由 api.Lock 在后台自动续期，锁丢失时通过 lostCh 通知.
type Consul struct {
	client  *api.Client
	key     string
	timeout time.Duration
	opts    *options

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	leader atomic.Bool
}

// NewConsul 创建基于 Consul 的选举，key 为 KV 路径.
func NewConsul(client *api.Client, key string, timeout time.Duration, opts ...Option) (*Consul, error) {
	if client == nil {
		return nil, &ConfigError{Field: "consul", Message: "client cannot be nil"}
	}
	if key == "" {
		return nil, ErrEmptyKey
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	o := applyOptions(opts)
	if o.identity == "" {
		o.identity = defaultIdentity()
	}

	return &Consul{
		client:  client,
		key:     key,
		timeout: timeout,
		opts:    o,
	}, nil
}

// NewConsulClient 创建 Consul 客户端.
func NewConsulClient(config *ConsulConfig) (*api.Client, error) {
	consulConfig := api.DefaultConfig()
	if config != nil {
		if config.Addr != "" {
			consulConfig.Address = config.Addr
		}
		if config.Token != "" {
			consulConfig.Token = config.Token
		}
	}
	return api.NewClient(consulConfig)
}

// IsLeader 返回当前实例是否为领导者.
func (c *Consul) IsLeader() bool {
	c.ensureCampaign()
	return c.leader.Load()
}

// Timeout 返回选举超时时间.
func (c *Consul) Timeout() time.Duration {
	return c.timeout
}

// Release 停止竞选并释放锁.
func (c *Consul) Release() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	c.leader.Store(false)
	return nil
}

func (c *Consul) ensureCampaign() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.campaign(ctx, c.done)
}

func (c *Consul) newLock() (*api.Lock, error) {
	ttl := max(2*c.timeout, minSessionTTL)
	return c.client.LockOpts(&api.LockOptions{
		Key:   c.key,
		Value: []byte(c.opts.identity),
		SessionOpts: &api.SessionEntry{
			Name:      "elected-scheduler:" + c.key,
			TTL:       ttl.String(),
			LockDelay: c.timeout,
			Behavior:  api.SessionBehaviorRelease,
		},
		LockTryOnce:  true,
		LockWaitTime: c.timeout,
	})
}

// campaign 竞选循环：获取锁后等待锁丢失或停止.
func (c *Consul) campaign(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	retry := c.timeout / 3
	for {
		if !c.holdOnce(ctx) {
			select {
			case <-ctx.Done():
				return
			case <-c.opts.clock.After(retry):
			}
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// holdOnce 尝试获取一次锁，获取成功时阻塞到锁丢失或 ctx 取消，返回是否曾持有锁.
func (c *Consul) holdOnce(ctx context.Context) bool {
	lk, err := c.newLock()
	if err != nil {
		c.opts.logger.Errorf("[Election] 创建 consul 锁失败 [key:%s] [error:%v]", c.key, err)
		return false
	}

	lostCh, err := lk.Lock(ctx.Done())
	if err != nil {
		if ctx.Err() == nil {
			c.opts.logger.Warnf("[Election] consul 竞选失败 [key:%s] [error:%v]", c.key, err)
		}
		return false
	}
	if lostCh == nil {
		return false
	}

	c.leader.Store(true)
	c.opts.logger.Infof("[Election] 当选领导者 [key:%s] [identity:%s]", c.key, c.opts.identity)

	select {
	case <-lostCh:
		c.leader.Store(false)
		c.opts.logger.Warnf("[Election] consul 锁丢失 [key:%s]", c.key)
	case <-ctx.Done():
		c.leader.Store(false)
	}

	if err := lk.Unlock(); err != nil && err != api.ErrLockNotHeld {
		c.opts.logger.Warnf("[Election] 释放 consul 锁失败 [key:%s] [error:%v]", c.key, err)
	}
	return true
}
