package app

import (
	"context"
	"errors"

	"github.com/Tsukikage7/elected-scheduler/scheduler"
)

// PollerComponent 将轮询器适配为应用组件.
type PollerComponent struct {
	poller *scheduler.Poller
}

// NewPollerComponent 创建轮询器组件.
func NewPollerComponent(p *scheduler.Poller) *PollerComponent {
	return &PollerComponent{poller: p}
}

// Start 启动轮询器并阻塞直到 ctx 取消，返回前停止轮询器并释放选举资源.
//
// ctx 已取消时不启动轮询器，直接返回 ctx.Err().
func (c *PollerComponent) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.poller.Start(); err != nil {
		return err
	}
	defer func() { _ = c.stop() }()

	<-ctx.Done()
	return nil
}

// stop 停止运行中的轮询器，Stop 会释放选举资源.
func (c *PollerComponent) stop() error {
	if !c.poller.Running() {
		return nil
	}
	if _, err := c.poller.Stop(); err != nil && !errors.Is(err, scheduler.ErrNotRunning) {
		return err
	}
	return nil
}

// Stop 停止轮询器并等待已派发的任务结束.
func (c *PollerComponent) Stop(ctx context.Context) error {
	if err := c.stop(); err != nil {
		return err
	}
	return c.poller.Shutdown(ctx)
}

// Name 返回组件名称.
func (c *PollerComponent) Name() string {
	return "poller:" + c.poller.Key()
}
