// Package app 提供守护进程生命周期管理.
package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"

	"github.com/Tsukikage7/elected-scheduler/logger"
)

// ErrRunning 应用正在运行.
var ErrRunning = errors.New("app: 应用正在运行")

// Component 受应用管理的组件.
//
// Start 应阻塞直到 ctx 取消或组件出错，Stop 在关闭阶段、所有 Start 返回之后被调用.
// ctx 已取消时 Start 可返回 context.Canceled，不视为启动失败.
type Component interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Name() string
}

// Application 应用程序，管理多个组件的生命周期.
type Application struct {
	opts       *options
	components []Component
	ctx        context.Context
	cancel     context.CancelFunc
	mu         sync.Mutex
	running    bool
	startErr   error
	starting   sync.WaitGroup
}

// New 创建应用程序.
func New(opts ...Option) *Application {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	if o.logger == nil {
		panic("app: logger is required")
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Application{
		opts:   o,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Use 注册组件.
func (a *Application) Use(components ...Component) *Application {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.components = append(a.components, components...)
	return a
}

// Run 运行应用程序，阻塞直到收到信号、Stop 被调用或某个组件启动失败.
//
// 组件启动失败时执行完整的关闭流程并返回该错误.
func (a *Application) Run() error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return ErrRunning
	}
	a.running = true
	a.mu.Unlock()

	if err := a.opts.hooks.runBeforeStart(a.ctx); err != nil {
		a.setStopped()
		return err
	}

	a.opts.logger.With(
		logger.String("name", a.opts.name),
		logger.String("version", a.opts.version),
	).Info("[App] starting")

	a.start()

	if err := a.opts.hooks.runAfterStart(a.ctx); err != nil {
		a.opts.logger.With(logger.Err(err)).Error("[App] after start hook failed")
	}

	return a.waitForShutdown()
}

// Stop 主动停止应用程序.
func (a *Application) Stop() {
	a.cancel()
}

// Context 获取应用上下文.
func (a *Application) Context() context.Context {
	return a.ctx
}

// Name 获取应用名称.
func (a *Application) Name() string {
	return a.opts.name
}

// Version 获取应用版本.
func (a *Application) Version() string {
	return a.opts.version
}

func (a *Application) start() {
	if len(a.components) == 0 {
		a.opts.logger.Warn("[App] no components registered")
		return
	}

	for _, c := range a.components {
		a.starting.Add(1)
		go func(c Component) {
			defer a.starting.Done()
			a.opts.logger.With(logger.String("component", c.Name())).Info("[App] starting component")
			if err := c.Start(a.ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.opts.logger.With(
					logger.String("component", c.Name()),
					logger.Err(err),
				).Error("[App] component failed")
				a.fail(err)
			}
		}(c)
	}
}

// fail 记录第一个启动错误并触发关闭.
func (a *Application) fail(err error) {
	a.mu.Lock()
	if a.startErr == nil {
		a.startErr = err
	}
	a.mu.Unlock()
	a.cancel()
}

func (a *Application) waitForShutdown() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, a.opts.signals...)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.opts.logger.With(logger.String("signal", sig.String())).Info("[App] received signal")
		a.cancel()
	case <-a.ctx.Done():
		a.opts.logger.Info("[App] context cancelled")
	}

	return a.shutdown()
}

func (a *Application) shutdown() error {
	a.opts.logger.With(
		logger.Duration("timeout", a.opts.gracefulTimeout),
	).Info("[App] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.opts.gracefulTimeout)
	defer cancel()

	if err := a.opts.hooks.runBeforeStop(shutdownCtx); err != nil {
		a.opts.logger.With(logger.Err(err)).Error("[App] before stop hook failed")
	}

	// 组件的 Start 返回后再调用 Stop
	if !wait(shutdownCtx, &a.starting) {
		a.opts.logger.Warn("[App] components still starting, stopping anyway")
	}

	var wg sync.WaitGroup
	for _, c := range a.components {
		wg.Add(1)
		go func(c Component) {
			defer wg.Done()
			a.opts.logger.With(logger.String("component", c.Name())).Info("[App] stopping component")
			if err := c.Stop(shutdownCtx); err != nil {
				a.opts.logger.With(
					logger.String("component", c.Name()),
					logger.Err(err),
				).Error("[App] component stop failed")
			}
		}(c)
	}

	if wait(shutdownCtx, &wg) {
		a.opts.logger.Info("[App] all components stopped")
	} else {
		a.opts.logger.Warn("[App] shutdown timeout")
	}

	a.opts.cleanups.run(shutdownCtx, a.opts.logger)

	if err := a.opts.hooks.runAfterStop(context.Background()); err != nil {
		a.opts.logger.With(logger.Err(err)).Error("[App] after stop hook failed")
	}

	err := a.setStopped()
	a.opts.logger.Info("[App] stopped")
	return err
}

// setStopped 重置运行状态，返回记录的启动错误.
func (a *Application) setStopped() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.running = false
	return a.startErr
}

// wait 等待 wg 完成，ctx 先结束时返回 false.
func wait(ctx context.Context, wg *sync.WaitGroup) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
