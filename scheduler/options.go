package scheduler

import (
	"context"

	"github.com/jonboulle/clockwork"

	"github.com/Tsukikage7/elected-scheduler/logger"
)

// DefaultFollowerBackoff 非领导者退避时长占选举超时的比例.
const DefaultFollowerBackoff = 0.25

// Option 调度器配置选项.
type Option func(*options)

// options 调度器内部配置.
type options struct {
	logger          logger.Logger
	clock           clockwork.Clock
	hooks           *Hooks
	metrics         MetricsRecorder
	followerBackoff float64
	ctx             context.Context
}

// defaultOptions 返回默认配置.
func defaultOptions() *options {
	return &options{
		logger:          logger.NewNop(),
		clock:           clockwork.NewRealClock(),
		followerBackoff: DefaultFollowerBackoff,
		ctx:             context.Background(),
	}
}

// WithLogger 设置日志记录器.
//
// 未单独设置日志记录器的任务也会使用它记录执行失败.
func WithLogger(log logger.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.logger = log
		}
	}
}

// WithClock 设置时钟，测试中可传入 clockwork.NewFakeClock().
func WithClock(c clockwork.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithHooks 设置钩子.
func WithHooks(hooks *Hooks) Option {
	return func(o *options) {
		o.hooks = hooks
	}
}

// WithMetrics 设置指标记录器.
func WithMetrics(m MetricsRecorder) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithFollowerBackoff 设置非领导者退避时长占选举超时的比例.
//
// 默认: 0.25.
func WithFollowerBackoff(ratio float64) Option {
	return func(o *options) {
		if ratio >= 0 {
			o.followerBackoff = ratio
		}
	}
}

// WithContext 设置派发任务时使用的上下文.
//
// Stop 不会取消该上下文，已派发的任务会继续执行.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}
