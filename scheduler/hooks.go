package scheduler

import (
	"context"
	"time"
)

// JobContext 任务执行上下文.
type JobContext struct {
	// Key 调度键.
	Key string

	// Job 当前任务.
	Job *Job

	// Tick 触发本次执行的轮询时间.
	Tick time.Time

	// StartTime 开始执行时间.
	StartTime time.Time

	// Duration 执行耗时.
	Duration time.Duration

	// Success 是否执行成功.
	Success bool
}

// LifecycleHook Poller 生命周期回调.
// BeforeStart 返回 error 将使启动失败并回滚到 stopped.
type LifecycleHook func(ctx context.Context, p *Poller) error

// JobHook 任务执行回调.
type JobHook func(ctx context.Context, jc *JobContext)

// Hooks 钩子集合.
type Hooks struct {
	// BeforeStart 启动轮询循环前回调.
	BeforeStart []LifecycleHook

	// AfterStop 停止并释放选举资源后回调.
	AfterStop []LifecycleHook

	// AfterJob 任务执行后回调（无论成功失败都会调用）.
	AfterJob []JobHook

	// OnError 任务失败回调.
	OnError []JobHook
}

// runLifecycle 依次执行生命周期钩子，遇到错误立即返回.
func (h *Hooks) runLifecycle(ctx context.Context, p *Poller, hooks func(*Hooks) []LifecycleHook) error {
	if h == nil {
		return nil
	}
	for _, hook := range hooks(h) {
		if err := hook(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hooks) runBeforeStart(ctx context.Context, p *Poller) error {
	return h.runLifecycle(ctx, p, func(h *Hooks) []LifecycleHook { return h.BeforeStart })
}

func (h *Hooks) runAfterStop(ctx context.Context, p *Poller) error {
	return h.runLifecycle(ctx, p, func(h *Hooks) []LifecycleHook { return h.AfterStop })
}

// runAfterHooks 执行后置钩子.
func (h *Hooks) runAfterHooks(ctx context.Context, jc *JobContext) {
	if h == nil {
		return
	}
	for _, hook := range h.AfterJob {
		hook(ctx, jc)
	}
}

// runErrorHooks 执行错误钩子.
func (h *Hooks) runErrorHooks(ctx context.Context, jc *JobContext) {
	if h == nil {
		return
	}
	for _, hook := range h.OnError {
		hook(ctx, jc)
	}
}

// HooksBuilder 钩子构建器.
type HooksBuilder struct {
	hooks *Hooks
}

// NewHooks 创建钩子构建器.
func NewHooks() *HooksBuilder {
	return &HooksBuilder{hooks: &Hooks{}}
}

// BeforeStart 添加启动前钩子.
func (b *HooksBuilder) BeforeStart(hook LifecycleHook) *HooksBuilder {
	b.hooks.BeforeStart = append(b.hooks.BeforeStart, hook)
	return b
}

// AfterStop 添加停止后钩子.
func (b *HooksBuilder) AfterStop(hook LifecycleHook) *HooksBuilder {
	b.hooks.AfterStop = append(b.hooks.AfterStop, hook)
	return b
}

// AfterJob 添加任务后置钩子.
func (b *HooksBuilder) AfterJob(hook JobHook) *HooksBuilder {
	b.hooks.AfterJob = append(b.hooks.AfterJob, hook)
	return b
}

// OnError 添加任务错误钩子.
func (b *HooksBuilder) OnError(hook JobHook) *HooksBuilder {
	b.hooks.OnError = append(b.hooks.OnError, hook)
	return b
}

// Build 构建钩子.
func (b *HooksBuilder) Build() *Hooks {
	return b.hooks
}
