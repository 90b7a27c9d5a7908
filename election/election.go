// Package election 提供调度器使用的领导者选举实现.
//
// 支持的后端：
//   - LockElector: 基于 lock.Locker（Redis 或进程内存储）抢占带过期时间的锁
//   - Consul: 基于 Consul session 锁
//   - Kubernetes: 基于 coordination.k8s.io Lease
//   - Manual: 手动切换，适用于单节点部署和测试
//
// 所有实现的 IsLeader 均不阻塞：竞选在后台协程中进行，首次调用 IsLeader 时启动，
// Release 停止竞选并释放持有的资源，之后再次调用 IsLeader 会重新竞选.
package election

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Tsukikage7/elected-scheduler/logger"
)

// Elector 领导者选举接口，与 scheduler.Elector 方法集一致.
type Elector interface {
	// IsLeader 返回当前实例是否为领导者.
	IsLeader() bool

	// Timeout 返回选举超时时间.
	Timeout() time.Duration

	// Release 释放选举资源.
	Release() error
}

// 后端类型.
const (
	BackendRedis      = "redis"
	BackendMemory     = "memory"
	BackendConsul     = "consul"
	BackendKubernetes = "kubernetes"
	BackendManual     = "manual"
)

// DefaultTimeout 默认选举超时时间.
const DefaultTimeout = 5 * time.Second

// Option 选举配置选项.
type Option func(*options)

type options struct {
	logger   logger.Logger
	clock    clockwork.Clock
	identity string
}

func defaultOptions() *options {
	return &options{
		logger: logger.NewNop(),
		clock:  clockwork.NewRealClock(),
	}
}

func applyOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger 设置日志记录器.
func WithLogger(log logger.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.logger = log
		}
	}
}

// WithClock 设置时钟.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithIdentity 设置当前实例标识.
//
// 默认使用主机名.
func WithIdentity(id string) Option {
	return func(o *options) {
		o.identity = id
	}
}
